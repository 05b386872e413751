// Package fsm implements protocore's declarative state machine (spec.md
// §3, §4.3): an ordered table of state records (enter/state/leave
// callbacks, optional timed auto-transition), a queued-by-default
// transition model, and an Update method meant to be registered as a
// runloop periodic entry. Every byte-stream parser (package parser), the
// BTLE connection pool (package btle/central) and the bridge RPC node are
// built on top of one or more FSM instances.
//
// Grounded on the teacher repo's services/hal/internal/core state-tracking
// pattern (a small ordered table of named states driving a single owner
// object) generalized into a standalone, reusable engine with the
// queued/immediate transition split and timed-state support spec.md adds.
package fsm

import (
	"github.com/jangala-dev/protocore/container"
	"github.com/jangala-dev/protocore/internal/mathx"
)

// StateID identifies one state within an FSM's table.
type StateID int

// NoState (-1) is the "no current state" sentinel CurrentStateID reports
// before Start. It is not the zero value of StateID, so 0 is free to use
// as a real state id.
const NoState StateID = -1

// Timed describes a state that auto-transitions to NextID after
// DurationMs milliseconds have elapsed since it was entered, unless an
// explicit transition was queued first (spec.md §4.3, invariant #4).
type Timed struct {
	NextID     StateID
	DurationMs uint32
}

// Callback is a state lifecycle hook. Any of enter/update/leave may be
// nil when unused — pass nil and the engine skips it.
type Callback func()

type stateRecord struct {
	id     StateID
	name   string
	enter  Callback
	update Callback
	leave  Callback
	timed  *Timed
}

// Clock supplies monotonic milliseconds for timed-state deadlines. It is
// satisfied by an adapter over capability.TimeBase (NowUs()/1000) or a
// fake clock in tests.
type Clock interface {
	NowMs() uint64
}

// FSM is a single state machine instance. Use New to construct one; the
// zero value is not usable.
type FSM struct {
	clock   Clock
	states  *container.FixedArray[*stateRecord]
	current *stateRecord
	hasNext bool
	next    StateID

	enteredAtMs uint64
}

// New constructs an FSM with room for up to maxStates state records.
func New(clock Clock, maxStates int) *FSM {
	return &FSM{
		clock:  clock,
		states: container.NewFixedArray[*stateRecord](maxStates),
	}
}

// AddState registers a state. enter/update/leave may be nil. Returns false
// if the table is full or id is already registered.
func (f *FSM) AddState(id StateID, name string, enter, update, leave Callback, timed *Timed) bool {
	if f.findIndex(id) >= 0 {
		return false
	}
	rec := &stateRecord{id: id, name: name, enter: enter, update: update, leave: leave}
	if timed != nil {
		clamped := *timed
		// A zero duration would re-transition on every Update tick; clamp
		// it to at least 1ms (spec.md §4.3 invariant #4).
		clamped.DurationMs = mathx.Clamp(clamped.DurationMs, 1, ^uint32(0))
		rec.timed = &clamped
	}
	return f.states.Append(rec)
}

func (f *FSM) findIndex(id StateID) int {
	return f.states.IndexFunc(func(s *stateRecord) bool { return s.id == id })
}

func (f *FSM) find(id StateID) *stateRecord {
	i := f.findIndex(id)
	if i < 0 {
		return nil
	}
	s, _ := f.states.At(i)
	return s
}

// Start sets the initial current state and runs its enter callback. It
// must be called before the first Update, and must not be called once a
// current state already exists (use Transition/TransitionNow instead).
func (f *FSM) Start(id StateID) bool {
	if f.current != nil {
		return false
	}
	s := f.find(id)
	if s == nil {
		return false
	}
	f.enterState(s)
	return true
}

func (f *FSM) enterState(s *stateRecord) {
	f.current = s
	f.hasNext = false
	if f.clock != nil {
		f.enteredAtMs = f.clock.NowMs()
	}
	if s.enter != nil {
		s.enter()
	}
}

// Transition queues a move to id, taken at the start of the next Update
// call (spec.md §4.3). Calling Transition again before that Update
// overwrites the pending target: later supersedes earlier.
func (f *FSM) Transition(id StateID) bool {
	if f.find(id) == nil {
		return false
	}
	f.next = id
	f.hasNext = true
	return true
}

// TransitionNow runs leave(current) then enter(id) synchronously, bypassing
// the queue. Safe to call from within an enter/update/leave callback: the
// engine tolerates nesting and simply leaves at most one transition
// pending afterwards (spec.md §4.3).
func (f *FSM) TransitionNow(id StateID) bool {
	s := f.find(id)
	if s == nil {
		return false
	}
	if f.current != nil && f.current.leave != nil {
		f.current.leave()
	}
	f.enterState(s)
	return true
}

// Update performs one FSM tick (spec.md §4.3):
//  1. If a transition is pending, take it (leave current, enter next) and
//     return — the newly entered state's own update runs on a later tick.
//  2. Else, if the current state is Timed and duration_ms has elapsed
//     since enter, queue-and-take the scheduled transition immediately.
//  3. Else invoke the current state's update callback, if any.
func (f *FSM) Update() {
	if f.current == nil {
		return
	}
	if f.hasNext {
		id := f.next
		f.hasNext = false
		f.TransitionNow(id)
		return
	}
	if t := f.current.timed; t != nil && f.clock != nil {
		if f.clock.NowMs()-f.enteredAtMs >= uint64(t.DurationMs) {
			f.TransitionNow(t.NextID)
			return
		}
	}
	if f.current.update != nil {
		f.current.update()
	}
}

// CurrentStateID reports the current state id, or (NoState, false) before
// Start has been called.
func (f *FSM) CurrentStateID() (StateID, bool) {
	if f.current == nil {
		return NoState, false
	}
	return f.current.id, true
}

// CurrentStateName reports the current state's registered name, or "" if
// no state is current.
func (f *FSM) CurrentStateName() string {
	if f.current == nil {
		return ""
	}
	return f.current.name
}

// Pending reports whether a queued transition is awaiting the next Update.
func (f *FSM) Pending() (StateID, bool) {
	return f.next, f.hasNext
}
