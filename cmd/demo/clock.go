package main

import "time"

// wallClock is the host-side fsm.Clock used by every subsystem driven by
// a run-loop periodic entry. Grounded on the teacher's main.go, which
// reaches for the standard library's time package directly at the
// top-level wiring point rather than through a platform abstraction.
type wallClock struct{ start time.Time }

func newWallClock() *wallClock { return &wallClock{start: time.Now()} }

func (c *wallClock) NowMs() uint64 { return uint64(time.Since(c.start).Milliseconds()) }
