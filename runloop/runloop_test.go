package runloop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunloop_OnInitRunsOnceOnFirstIterate(t *testing.T) {
	r := New()
	inits, ticks := 0, 0
	require.True(t, r.AddEntry(0, func() { inits++ }, func() { ticks++ }))

	r.Iterate(0)
	r.Iterate(0)
	r.Iterate(0)

	assert.Equal(t, 1, inits)
	assert.Equal(t, 3, ticks)
}

func TestRunloop_EntriesRunInRegistrationOrder(t *testing.T) {
	r := New()
	var order []int
	require.True(t, r.AddEntry(0, nil, func() { order = append(order, 1) }))
	require.True(t, r.AddEntry(0, nil, func() { order = append(order, 2) }))
	require.True(t, r.AddEntry(0, nil, func() { order = append(order, 3) }))

	r.Iterate(0)
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestRunloop_ThreadsAreIndependent(t *testing.T) {
	r := New()
	ticksA, ticksB := 0, 0
	require.True(t, r.AddEntry(0, nil, func() { ticksA++ }))
	require.True(t, r.AddEntry(1, nil, func() { ticksB++ }))

	r.Iterate(0)
	assert.Equal(t, 1, ticksA)
	assert.Equal(t, 0, ticksB)
}

func TestRunloop_AddEntryFailsWhenThreadFull(t *testing.T) {
	r := New()
	for i := 0; i < MaxEntriesPerThread; i++ {
		require.True(t, r.AddEntry(0, nil, func() {}))
	}
	assert.False(t, r.AddEntry(0, nil, func() {}))
}

func TestRunloop_OneShotRunsOnNextIterateNotCurrent(t *testing.T) {
	r := New()
	ran := false
	require.True(t, r.AddEntry(0, nil, func() {
		r.DispatchNextIteration(0, func() { ran = true })
	}))

	r.Iterate(0) // periodic entry enqueues the one-shot
	assert.False(t, ran, "one-shot must not run within the tick that queued it")

	r.Iterate(0) // one-shot drains here
	assert.True(t, ran)
}

func TestRunloop_OneShotDrainsOnlyQueuedAsOfTickStart(t *testing.T) {
	r := New()
	var order []int
	r.DispatchNextIteration(0, func() {
		order = append(order, 1)
		r.DispatchNextIteration(0, func() { order = append(order, 2) })
	})

	r.Iterate(0)
	assert.Equal(t, []int{1}, order, "one-shot enqueued mid-drain must wait for the next tick")

	r.Iterate(0)
	assert.Equal(t, []int{1, 2}, order)
}

func TestRunloop_DispatchNextIterationRespectsCapacity(t *testing.T) {
	r := New()
	for i := 0; i < MaxOneShotsPerThread; i++ {
		require.True(t, r.DispatchNextIteration(0, func() {}))
	}
	assert.False(t, r.DispatchNextIteration(0, func() {}), "DropNewest policy rejects once full")
	assert.Equal(t, MaxOneShotsPerThread, r.PendingOneShots(0))
}

func TestRunloop_IterateOnUnknownThreadIsNoop(t *testing.T) {
	r := New()
	assert.NotPanics(t, func() { r.Iterate(42) })
}
