//go:build rp2040 || rp2350

package main

import (
	"github.com/jangala-dev/protocore/capability"
	"github.com/jangala-dev/tinygo-uartx/uartx"
)

// uartBGAPIStream wraps a tinygo-uartx port as protocore's
// capability.ByteStream, the concrete transport the BGAPI-framed BTLE
// backend dials. Mirrors
// services/hal/internal/platform/factories_rp2xxx.go's rp2UART, trimmed to
// the non-blocking ReadByte/WriteByte/WriteBytes shape capability.ByteStream
// requires instead of the HAL's io.Reader/Writer-shaped UARTPort.
type uartBGAPIStream struct{ u *uartx.UART }

func (s *uartBGAPIStream) ReadByte() (byte, capability.ReadResult) {
	var b [1]byte
	n, err := s.u.Read(b[:])
	if err != nil || n == 0 {
		return 0, capability.NoData
	}
	return b[0], capability.GotData
}

func (s *uartBGAPIStream) WriteByte(b byte) bool { return s.u.WriteByte(b) == nil }

func (s *uartBGAPIStream) WriteBytes(p []byte) bool {
	n, err := s.u.Write(p)
	return err == nil && n == len(p)
}

func (s *uartBGAPIStream) IsBound() bool { return s.u != nil }

var _ capability.ByteStream = (*uartBGAPIStream)(nil)

// defaultBGAPIStream configures UART1 for the BGAPI radio link, mirroring
// DefaultUARTFactory's UART1 wiring in factories_rp2xxx.go.
func defaultBGAPIStream() capability.ByteStream {
	_ = uartx.UART1.Configure(uartx.UARTConfig{})
	return &uartBGAPIStream{u: uartx.UART1}
}
