package fsm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests advance milliseconds deterministically.
type fakeClock struct{ ms uint64 }

func (c *fakeClock) NowMs() uint64 { return c.ms }
func (c *fakeClock) advance(d uint64) { c.ms += d }

const (
	stateA StateID = iota
	stateB
	stateC
)

func TestFSM_StartRunsEnterExactlyOnce(t *testing.T) {
	clk := &fakeClock{}
	f := New(clk, 4)
	enters := 0
	require.True(t, f.AddState(stateA, "A", func() { enters++ }, nil, nil, nil))

	require.True(t, f.Start(stateA))
	assert.Equal(t, 1, enters)
	id, ok := f.CurrentStateID()
	require.True(t, ok)
	assert.Equal(t, stateA, id)
}

func TestFSM_TransitionIsQueuedUntilUpdate(t *testing.T) {
	// spec.md §8 invariant #3: after fsm.transition(x); fsm.update():
	// current_state_id()==x and enter(x) was called exactly once since update.
	clk := &fakeClock{}
	f := New(clk, 4)
	entersB := 0
	require.True(t, f.AddState(stateA, "A", nil, nil, nil, nil))
	require.True(t, f.AddState(stateB, "B", func() { entersB++ }, nil, nil, nil))
	require.True(t, f.Start(stateA))

	require.True(t, f.Transition(stateB))
	id, _ := f.CurrentStateID()
	assert.Equal(t, stateA, id, "transition must not take effect before Update")

	f.Update()
	id, _ = f.CurrentStateID()
	assert.Equal(t, stateB, id)
	assert.Equal(t, 1, entersB)
}

func TestFSM_TransitionNowRunsLeaveThenEnterSynchronously(t *testing.T) {
	clk := &fakeClock{}
	f := New(clk, 4)
	var order []string
	require.True(t, f.AddState(stateA, "A", nil, nil, func() { order = append(order, "leaveA") }, nil))
	require.True(t, f.AddState(stateB, "B", func() { order = append(order, "enterB") }, nil, nil, nil))
	require.True(t, f.Start(stateA))

	require.True(t, f.TransitionNow(stateB))
	assert.Equal(t, []string{"leaveA", "enterB"}, order)
	id, _ := f.CurrentStateID()
	assert.Equal(t, stateB, id)
}

func TestFSM_LaterTransitionSupersedesEarlier(t *testing.T) {
	clk := &fakeClock{}
	f := New(clk, 4)
	require.True(t, f.AddState(stateA, "A", nil, nil, nil, nil))
	require.True(t, f.AddState(stateB, "B", nil, nil, nil, nil))
	require.True(t, f.AddState(stateC, "C", nil, nil, nil, nil))
	require.True(t, f.Start(stateA))

	require.True(t, f.Transition(stateB))
	require.True(t, f.Transition(stateC))
	f.Update()
	id, _ := f.CurrentStateID()
	assert.Equal(t, stateC, id)
}

func TestFSM_EnterMayTransitionNowRecursively(t *testing.T) {
	// A state's enter callback calling TransitionNow must leave the engine
	// settled with at most one pending transition afterwards (spec.md §4.3).
	clk := &fakeClock{}
	f := New(clk, 4)
	entersB, entersC := 0, 0
	require.True(t, f.AddState(stateA, "A", nil, nil, nil, nil))
	var fsmRef *FSM
	require.True(t, f.AddState(stateB, "B", func() {
		entersB++
		fsmRef.TransitionNow(stateC)
	}, nil, nil, nil))
	require.True(t, f.AddState(stateC, "C", func() { entersC++ }, nil, nil, nil))
	fsmRef = f
	require.True(t, f.Start(stateA))

	require.True(t, f.TransitionNow(stateB))
	assert.Equal(t, 1, entersB)
	assert.Equal(t, 1, entersC)
	id, _ := f.CurrentStateID()
	assert.Equal(t, stateC, id)
	_, pending := f.Pending()
	assert.False(t, pending)
}

func TestFSM_TimedStateAutoTransitionsWithinWindow(t *testing.T) {
	// spec.md S4: duration=100ms, 1ms-period updates; current==A through
	// tick 99, current==B by tick 102 at the latest, exactly one enter(B).
	clk := &fakeClock{}
	f := New(clk, 4)
	entersB := 0
	require.True(t, f.AddState(stateA, "A", nil, nil, nil, &Timed{NextID: stateB, DurationMs: 100}))
	require.True(t, f.AddState(stateB, "B", func() { entersB++ }, nil, nil, nil))
	require.True(t, f.Start(stateA))

	for i := 0; i < 99; i++ {
		clk.advance(1)
		f.Update()
		id, _ := f.CurrentStateID()
		require.Equal(t, stateA, id, "must not leave A before duration elapses")
	}

	clk.advance(1) // tick 100: elapsed==100, schedules+takes transition
	f.Update()
	id, _ := f.CurrentStateID()
	assert.Equal(t, stateB, id)
	assert.Equal(t, 1, entersB)
}

func TestFSM_ExplicitTransitionPreemptsTimedState(t *testing.T) {
	clk := &fakeClock{}
	f := New(clk, 4)
	entersC := 0
	require.True(t, f.AddState(stateA, "A", nil, nil, nil, &Timed{NextID: stateB, DurationMs: 100}))
	require.True(t, f.AddState(stateB, "B", nil, nil, nil, nil))
	require.True(t, f.AddState(stateC, "C", func() { entersC++ }, nil, nil, nil))
	require.True(t, f.Start(stateA))

	clk.advance(10)
	require.True(t, f.Transition(stateC))
	f.Update()
	id, _ := f.CurrentStateID()
	assert.Equal(t, stateC, id, "explicit transition takes priority over the timed deadline")
	assert.Equal(t, 1, entersC)
}

func TestFSM_UpdateInvokesPeriodicCallbackWhenNoTransitionDue(t *testing.T) {
	clk := &fakeClock{}
	f := New(clk, 4)
	ticks := 0
	require.True(t, f.AddState(stateA, "A", nil, func() { ticks++ }, nil, nil))
	require.True(t, f.Start(stateA))

	f.Update()
	f.Update()
	assert.Equal(t, 2, ticks)
}
