package main

import "github.com/jangala-dev/protocore/capability"

// loopbackStream is a capability.ByteStream double: writes land in an
// internal ring that subsequent ReadByte calls drain. Used for the
// downstream bridge's client transport on every platform (a local console
// session has no real wire either way), and as the host build's stand-in
// for the BGAPI radio UART — mirroring the role HostI2C plays for the I²C
// bus in factories_host.go.
type loopbackStream struct {
	buf   []byte
	bound bool
}

func newLoopbackStream() *loopbackStream { return &loopbackStream{bound: true} }

func (s *loopbackStream) ReadByte() (byte, capability.ReadResult) {
	if len(s.buf) == 0 {
		return 0, capability.NoData
	}
	b := s.buf[0]
	s.buf = s.buf[1:]
	return b, capability.GotData
}

func (s *loopbackStream) WriteByte(b byte) bool {
	s.buf = append(s.buf, b)
	return true
}

func (s *loopbackStream) WriteBytes(p []byte) bool {
	s.buf = append(s.buf, p...)
	return true
}

func (s *loopbackStream) IsBound() bool { return s.bound }

var _ capability.ByteStream = (*loopbackStream)(nil)
