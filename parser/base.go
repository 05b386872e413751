// Package parser implements protocore's generic byte-stream protocol
// parser (spec.md §4.4): a reusable base state machine — Idle → WaitStart →
// WaitBody → WaitStart | Error, with a completed frame delivered to
// listeners from within WaitBody — driven by the run-loop, plus
// four concrete framings (CRLF, CLE-proto, MQTT, BGAPI) that plug into it
// via the Framing interface.
//
// Grounded on original_source/cxa_protocolParser.c (base state model,
// 5-second reception timeout, paused mode, reset_error) and the teacher's
// services/bridge framing/transport-adapter code for the Go idiom of
// wrapping a capability.ByteStream.
package parser

import (
	"github.com/jangala-dev/protocore/capability"
	"github.com/jangala-dev/protocore/container"
	"github.com/jangala-dev/protocore/errcode"
	"github.com/jangala-dev/protocore/fsm"
	"github.com/jangala-dev/protocore/iostream"
)

// ReceptionTimeoutMs bounds how long a frame may stay open, measured from
// the first byte of that frame rather than the most recently received one
// (frameStartMs is stamped once, at frame start, never per byte) — a frame
// that trickles in one byte at a time right up to this deadline still
// times out (spec.md §4.4).
const ReceptionTimeoutMs = 5000

// MaxBytesPerTick bounds how many received bytes one Update call consumes,
// keeping per-tick latency bounded (spec.md §4.4).
const MaxBytesPerTick = 16

// FeedOutcome is the result of feeding one byte to a Framing.
type FeedOutcome uint8

const (
	NeedMore FeedOutcome = iota
	FrameComplete
	FrameMalformed
)

// Framing is the per-wire-format contract the Base engine drives.
type Framing interface {
	// Reset clears accumulated state; called when a new frame begins.
	Reset()
	// Feed consumes one byte of an in-progress frame.
	Feed(b byte) FeedOutcome
	// Payload returns the decoded payload of the frame accumulated so far
	// (complete, on FrameComplete; partial, on a reception timeout).
	Payload() []byte
}

// Listener receives parser events (spec.md §4.4, §7).
type Listener interface {
	OnPacket(payload []byte)
	OnIOException(err error)
	OnReceptionTimeout(partial []byte)
	OnMalformedPacket()
}

const maxListeners = 4

var (
	stateIdle      fsm.StateID = 0
	stateWaitStart fsm.StateID = 1
	stateWaitBody  fsm.StateID = 2
	stateError     fsm.StateID = 3
)

// Base is the framing-agnostic parser engine. Construct one per concrete
// framing via New.
type Base struct {
	framing Framing
	stream  *iostream.Peekable
	clock   fsm.Clock
	machine *fsm.FSM

	frameStartMs uint64
	paused       bool
	listeners    *container.FixedArray[Listener]
}

// New constructs a Base driving framing over stream, using clock for
// reception-timeout deadlines.
func New(framing Framing, stream *iostream.Peekable, clock fsm.Clock) *Base {
	b := &Base{framing: framing, stream: stream, clock: clock, listeners: container.NewFixedArray[Listener](maxListeners)}
	b.machine = fsm.New(clock, 4)
	// Idle never consumes bytes: it exists only so reset_error() has a
	// distinct landing state from the operational WaitStart (spec.md §4.4).
	b.machine.AddState(stateIdle, "Idle", nil, b.idleUpdate, nil, nil)
	b.machine.AddState(stateWaitStart, "WaitStart", nil, b.waitingUpdate, nil, nil)
	b.machine.AddState(stateWaitBody, "WaitBody", nil, b.bodyUpdate, nil, nil)
	b.machine.AddState(stateError, "Error", nil, nil, nil, nil)
	b.machine.Start(stateIdle)
	return b
}

// AddListener registers a listener. Returns false if the listener table is full.
func (b *Base) AddListener(l Listener) bool { return b.listeners.Append(l) }

func (b *Base) Pause()        { b.paused = true }
func (b *Base) Resume()       { b.paused = false }
func (b *Base) Paused() bool  { return b.paused }

// CurrentStateID reports the engine's current state (Idle/WaitStart/WaitBody/Error).
func (b *Base) CurrentStateID() fsm.StateID {
	id, _ := b.machine.CurrentStateID()
	return id
}

// ResetError transitions Error → Idle (spec.md §4.4's reset_error()). No-op,
// returning false, if not currently in Error.
func (b *Base) ResetError() bool {
	if b.CurrentStateID() != stateError {
		return false
	}
	b.machine.TransitionNow(stateIdle)
	return true
}

// Update runs one tick of the parser; register it as a runloop periodic entry.
func (b *Base) Update() { b.machine.Update() }

func (b *Base) idleUpdate() {
	b.machine.TransitionNow(stateWaitStart)
}

func (b *Base) waitingUpdate() {
	if b.paused {
		return
	}
	b.consumeBatch(true)
}

func (b *Base) bodyUpdate() {
	if b.paused {
		return
	}
	if b.clock != nil && b.clock.NowMs()-b.frameStartMs >= ReceptionTimeoutMs {
		partial := append([]byte(nil), b.framing.Payload()...)
		b.notifyTimeout(partial)
		b.framing.Reset()
		b.machine.TransitionNow(stateWaitStart)
		return
	}
	b.consumeBatch(false)
}

// consumeBatch reads and feeds up to MaxBytesPerTick bytes, starting a new
// frame on the first byte if startingFresh is true. It stops early on a
// completed or malformed frame, an I/O error, or exhausted input.
func (b *Base) consumeBatch(startingFresh bool) {
	for i := 0; i < MaxBytesPerTick; i++ {
		by, result := b.stream.ReadByte()
		if result == capability.NoData {
			return
		}
		if result == capability.ReadError {
			b.notifyIOException(errcode.Wrap(errcode.IoException, "parser", nil))
			b.machine.TransitionNow(stateError)
			return
		}
		if startingFresh {
			b.framing.Reset()
			if b.clock != nil {
				b.frameStartMs = b.clock.NowMs()
			}
			b.machine.TransitionNow(stateWaitBody)
			startingFresh = false
		}
		switch b.framing.Feed(by) {
		case FrameComplete:
			payload := append([]byte(nil), b.framing.Payload()...)
			b.notifyPacket(payload)
			b.machine.TransitionNow(stateWaitStart)
			return
		case FrameMalformed:
			b.notifyMalformed()
			b.machine.TransitionNow(stateWaitStart)
			return
		}
	}
}

func (b *Base) notifyPacket(payload []byte) {
	b.listeners.ForEach(func(_ int, l Listener) bool { l.OnPacket(payload); return true })
}

func (b *Base) notifyIOException(err error) {
	b.listeners.ForEach(func(_ int, l Listener) bool { l.OnIOException(err); return true })
}

func (b *Base) notifyTimeout(partial []byte) {
	b.listeners.ForEach(func(_ int, l Listener) bool { l.OnReceptionTimeout(partial); return true })
}

func (b *Base) notifyMalformed() {
	b.listeners.ForEach(func(_ int, l Listener) bool { l.OnMalformedPacket(); return true })
}
