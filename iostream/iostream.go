// Package iostream implements the peekable adapter over a
// capability.ByteStream (spec.md §4.2): "peek" performs a read and stashes
// the byte; the next ReadByte returns the stashed byte first, at most one
// byte of lookahead. This is the substrate every protocol parser in
// package parser is built on.
package iostream

import "github.com/jangala-dev/protocore/capability"

// Peekable wraps a capability.ByteStream, adding single-byte lookahead.
type Peekable struct {
	stream capability.ByteStream
	stash  byte
	have   bool
}

func NewPeekable(stream capability.ByteStream) *Peekable {
	return &Peekable{stream: stream}
}

// Bind swaps the underlying transport (used for "ping-pong" buffer/stream
// swaps, or to rebind after a reconnect). Any stashed peek byte is dropped:
// it belonged to the previous transport.
func (p *Peekable) Bind(stream capability.ByteStream) {
	p.stream = stream
	p.have = false
}

func (p *Peekable) IsBound() bool { return p.stream != nil && p.stream.IsBound() }

// Peek attempts a read from the underlying stream and stashes the byte if
// one was available, without consuming it for the next ReadByte.
// Calling Peek twice without an intervening ReadByte returns the
// already-stashed byte without issuing a second underlying read.
func (p *Peekable) Peek() (b byte, result capability.ReadResult) {
	if p.have {
		return p.stash, capability.GotData
	}
	b, result = p.stream.ReadByte()
	if result == capability.GotData {
		p.stash, p.have = b, true
	}
	return b, result
}

// ReadByte returns the stashed peek byte first if present, otherwise reads
// directly from the underlying stream.
func (p *Peekable) ReadByte() (b byte, result capability.ReadResult) {
	if p.have {
		p.have = false
		return p.stash, capability.GotData
	}
	return p.stream.ReadByte()
}

func (p *Peekable) WriteByte(b byte) bool    { return p.stream.WriteByte(b) }
func (p *Peekable) WriteBytes(bs []byte) bool { return p.stream.WriteBytes(bs) }
