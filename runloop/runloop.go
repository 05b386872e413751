// Package runloop implements protocore's cooperative, thread-indexed
// scheduler (spec.md §3, §4.3). A Runloop is a process-wide registry of
// named "threads" — on bare-metal there is exactly one; on a host able to
// give each a real OS thread or goroutine, each ThreadID still denotes one
// single-threaded, cooperative context. Platform code drives progress by
// calling Iterate(threadID) from its own main loop; no entry may block
// (spec.md §5).
//
// Grounded on the teacher repo's services/hal/internal/core poller/loop
// pattern (timer-driven re-arm, single consumer, no goroutine spun up per
// registration) generalized from one hardwired HAL loop into a reusable,
// multi-thread scheduler.
package runloop

import "github.com/jangala-dev/protocore/container"

// ThreadID names one cooperative execution context (spec.md Glossary).
type ThreadID int

// MaxEntriesPerThread bounds the periodic-entry table per thread, keeping
// registration itself allocation-free after Runloop construction.
const MaxEntriesPerThread = 32

// MaxOneShotsPerThread bounds the pending one-shot queue per thread.
const MaxOneShotsPerThread = 32

// PeriodicFunc is invoked once per Iterate call, in registration order.
type PeriodicFunc func()

// OneShotFunc is invoked exactly once, no earlier than the next Iterate of
// its thread (spec.md Glossary "One-shot").
type OneShotFunc func()

type entry struct {
	onInit      func()
	periodic    PeriodicFunc
	initialized bool
}

type thread struct {
	entries  *container.FixedArray[*entry]
	oneShots *container.FIFO[OneShotFunc]
}

func newThread() *thread {
	return &thread{
		entries:  container.NewFixedArray[*entry](MaxEntriesPerThread),
		oneShots: container.NewFIFO[OneShotFunc](MaxOneShotsPerThread, container.DropNewest),
	}
}

// Runloop is the process-wide thread registry. The zero value is not
// usable; use New.
type Runloop struct {
	threads map[ThreadID]*thread
}

func New() *Runloop {
	return &Runloop{threads: make(map[ThreadID]*thread)}
}

func (r *Runloop) threadFor(id ThreadID) *thread {
	t, ok := r.threads[id]
	if !ok {
		t = newThread()
		r.threads[id] = t
	}
	return t
}

// AddEntry registers a periodic callback on the given thread. onInit, if
// non-nil, runs exactly once, the first time that thread ticks after
// registration (spec.md §4.3). Returns false if the thread's entry table
// is full.
func (r *Runloop) AddEntry(id ThreadID, onInit func(), periodic PeriodicFunc) bool {
	t := r.threadFor(id)
	return t.entries.Append(&entry{onInit: onInit, periodic: periodic})
}

// DispatchNextIteration schedules fn to run exactly once, no earlier than
// the next Iterate call on the given thread (spec.md §4.3, §5). Returns
// false if the thread's one-shot queue is full — the caller may retry on
// its own cadence (no dynamic growth, per spec.md's no-allocation rule).
func (r *Runloop) DispatchNextIteration(id ThreadID, fn OneShotFunc) bool {
	t := r.threadFor(id)
	return t.oneShots.Enqueue(fn)
}

// Iterate runs one tick of the named thread: periodic entries in
// registration order (running any pending onInit first), then drains every
// one-shot queued for this thread as of the start of this call. One-shots
// enqueued during this call (e.g. by a periodic entry) run on the *next*
// Iterate, never within the current tick (spec.md §5 ordering guarantee).
func (r *Runloop) Iterate(id ThreadID) {
	t, ok := r.threads[id]
	if !ok {
		return
	}
	pending := t.oneShots.Len()
	t.entries.ForEach(func(_ int, e *entry) bool {
		if !e.initialized {
			e.initialized = true
			if e.onInit != nil {
				e.onInit()
			}
		}
		if e.periodic != nil {
			e.periodic()
		}
		return true
	})

	for i := 0; i < pending; i++ {
		fn, ok := t.oneShots.Dequeue()
		if !ok {
			break
		}
		fn()
	}
}

// PendingOneShots reports how many one-shots are queued for a thread
// (primarily for tests and diagnostics).
func (r *Runloop) PendingOneShots(id ThreadID) int {
	t, ok := r.threads[id]
	if !ok {
		return 0
	}
	return t.oneShots.Len()
}
