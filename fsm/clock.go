package fsm

import "github.com/jangala-dev/protocore/capability"

// TimeBaseClock adapts a capability.TimeBase (microsecond resolution) to
// the millisecond-resolution Clock the FSM engine expects.
type TimeBaseClock struct {
	TimeBase capability.TimeBase
}

func (c TimeBaseClock) NowMs() uint64 { return c.TimeBase.NowUs() / 1000 }
