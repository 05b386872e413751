package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jangala-dev/protocore/capability"
	"github.com/jangala-dev/protocore/iostream"
)

// fakeStream is a queue-backed capability.ByteStream for tests.
type fakeStream struct {
	queue []byte
	err   bool
	bound bool
}

func newFakeStream() *fakeStream { return &fakeStream{bound: true} }

func (s *fakeStream) push(p []byte) { s.queue = append(s.queue, p...) }

func (s *fakeStream) ReadByte() (byte, capability.ReadResult) {
	if s.err {
		return 0, capability.ReadError
	}
	if len(s.queue) == 0 {
		return 0, capability.NoData
	}
	b := s.queue[0]
	s.queue = s.queue[1:]
	return b, capability.GotData
}

func (s *fakeStream) WriteByte(b byte) bool     { return true }
func (s *fakeStream) WriteBytes(p []byte) bool  { return true }
func (s *fakeStream) IsBound() bool             { return s.bound }

type recordingListener struct {
	packets   [][]byte
	ioErrs    int
	timeouts  [][]byte
	malformed int
}

func (l *recordingListener) OnPacket(p []byte) {
	cp := append([]byte(nil), p...)
	l.packets = append(l.packets, cp)
}
func (l *recordingListener) OnIOException(err error)       { l.ioErrs++ }
func (l *recordingListener) OnReceptionTimeout(p []byte)    { l.timeouts = append(l.timeouts, append([]byte(nil), p...)) }
func (l *recordingListener) OnMalformedPacket()             { l.malformed++ }

type fakeClock struct{ ms uint64 }

func (c *fakeClock) NowMs() uint64   { return c.ms }
func (c *fakeClock) advance(d uint64) { c.ms += d }

func driveUntilIdle(b *Base, maxTicks int) {
	for i := 0; i < maxTicks; i++ {
		b.Update()
	}
}

func TestCRLF_RoundTrip(t *testing.T) {
	stream := newFakeStream()
	stream.push(EncodeCRLF("hello world"))
	clk := &fakeClock{}
	base := New(NewCRLF(64), iostream.NewPeekable(stream), clk)
	rec := &recordingListener{}
	require.True(t, base.AddListener(rec))

	driveUntilIdle(base, 4)

	require.Len(t, rec.packets, 1)
	assert.Equal(t, append([]byte("hello world"), 0), rec.packets[0])
}

func TestCLEProto_RoundTrip(t *testing.T) {
	payload := []byte("device-status-ok")
	wire, ok := EncodeCLEProto(payload)
	require.True(t, ok)

	stream := newFakeStream()
	stream.push(wire)
	clk := &fakeClock{}
	base := New(NewCLEProto(256), iostream.NewPeekable(stream), clk)
	rec := &recordingListener{}
	require.True(t, base.AddListener(rec))

	driveUntilIdle(base, 4)

	require.Len(t, rec.packets, 1)
	assert.Equal(t, payload, rec.packets[0])
}

func TestBGAPI_RoundTrip(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03}
	wire, ok := EncodeBGAPI([2]byte{0x05, 0x10}, payload)
	require.True(t, ok)

	stream := newFakeStream()
	stream.push(wire)
	clk := &fakeClock{}
	base := New(NewBGAPI(64), iostream.NewPeekable(stream), clk)
	rec := &recordingListener{}
	require.True(t, base.AddListener(rec))

	driveUntilIdle(base, 4)

	require.Len(t, rec.packets, 1)
	assert.Equal(t, wire, rec.packets[0])
}

// S5 — Parser timeout: PUBLISH with declared remaining length 5, only 6 of
// the 7 required wire bytes supplied (the final payload byte withheld),
// then no input for 5s.
func TestMQTT_S5ReceptionTimeout(t *testing.T) {
	stream := newFakeStream()
	stream.push([]byte{0x30, 0x05, 0x00, 0x03, 'a', 'b'})
	clk := &fakeClock{}
	base := New(NewMQTT(256), iostream.NewPeekable(stream), clk)
	rec := &recordingListener{}
	require.True(t, base.AddListener(rec))

	driveUntilIdle(base, 4) // consume all 6 supplied bytes, still in WaitBody
	assert.Equal(t, stateWaitBody, base.CurrentStateID())
	assert.Empty(t, rec.timeouts)

	clk.advance(ReceptionTimeoutMs)
	base.Update()

	require.Len(t, rec.timeouts, 1)
	assert.Equal(t, stateWaitStart, base.CurrentStateID())
}

func TestMQTT_MalformedRemainingLengthResetsToWaitStart(t *testing.T) {
	// spec.md §8 boundary behaviour: bit 7 set in all four length bytes.
	stream := newFakeStream()
	stream.push([]byte{0x30, 0xFF, 0xFF, 0xFF, 0xFF})
	clk := &fakeClock{}
	base := New(NewMQTT(256), iostream.NewPeekable(stream), clk)
	rec := &recordingListener{}
	require.True(t, base.AddListener(rec))

	driveUntilIdle(base, 4)

	assert.Equal(t, 1, rec.malformed)
	assert.Equal(t, stateWaitStart, base.CurrentStateID())
}

func TestMQTT_InvalidFlagsAreMalformed(t *testing.T) {
	// SUBSCRIBE (type 8) requires flags 0b0010; 0b0000 here is invalid.
	stream := newFakeStream()
	stream.push([]byte{0x80})
	clk := &fakeClock{}
	base := New(NewMQTT(256), iostream.NewPeekable(stream), clk)
	rec := &recordingListener{}
	require.True(t, base.AddListener(rec))

	driveUntilIdle(base, 4)
	assert.Equal(t, 1, rec.malformed)
}

func TestBase_IOExceptionTransitionsToErrorAndResetErrorRecovers(t *testing.T) {
	stream := newFakeStream()
	stream.err = true
	clk := &fakeClock{}
	base := New(NewCRLF(64), iostream.NewPeekable(stream), clk)
	rec := &recordingListener{}
	require.True(t, base.AddListener(rec))

	driveUntilIdle(base, 3)
	assert.Equal(t, 1, rec.ioErrs)
	assert.Equal(t, stateError, base.CurrentStateID())

	stream.err = false
	require.True(t, base.ResetError())
	assert.Equal(t, stateIdle, base.CurrentStateID())
}

func TestBase_PausedModeSuspendsConsumption(t *testing.T) {
	stream := newFakeStream()
	stream.push(EncodeCRLF("line-one"))
	clk := &fakeClock{}
	base := New(NewCRLF(64), iostream.NewPeekable(stream), clk)
	rec := &recordingListener{}
	require.True(t, base.AddListener(rec))

	base.Pause()
	driveUntilIdle(base, 4)
	assert.Empty(t, rec.packets, "paused parser must not consume input")

	base.Resume()
	driveUntilIdle(base, 4)
	require.Len(t, rec.packets, 1)
}

func TestBase_Scan16BytesPerTickBound(t *testing.T) {
	stream := newFakeStream()
	stream.push(make([]byte, 40)) // well under any CRLF, never completes
	clk := &fakeClock{}
	crlf := NewCRLF(64)
	base := New(crlf, iostream.NewPeekable(stream), clk)

	base.Update() // Idle -> WaitStart (no consumption)
	base.Update() // WaitStart -> consumes first byte, enters WaitBody, consumes up to 16 total
	assert.LessOrEqual(t, crlf.n, MaxBytesPerTick)
}
