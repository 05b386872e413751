// Package buf implements protocore's fixed-capacity byte buffer and the
// linked-field views over it (spec.md §3, §4.1). A Buffer owns a
// contiguous, preallocated region; LinkedField is a non-owning view into a
// sub-range, letting every protocol layer above it (MQTT messages, BGAPI
// frames) treat one buffer as a typed, ordered record without copying.
package buf

import "encoding/binary"

// Buffer is a contiguous byte region of fixed capacity. Length never
// exceeds capacity; every mutator returns false instead of truncating or
// panicking (spec.md §3 invariant, §4.1 failure policy).
type Buffer struct {
	data []byte
	len  int
}

// NewBuffer allocates a Buffer with the given fixed capacity.
func NewBuffer(capacity int) *Buffer {
	if capacity < 0 {
		capacity = 0
	}
	return &Buffer{data: make([]byte, capacity)}
}

// WrapBuffer adopts an existing slice as backing storage, with the given
// initial logical length (<= len(backing)). Used when a caller supplies its
// own receive buffer ("ping-pong" buffers, spec.md §4.4).
func WrapBuffer(backing []byte, initialLen int) *Buffer {
	if initialLen < 0 {
		initialLen = 0
	}
	if initialLen > len(backing) {
		initialLen = len(backing)
	}
	return &Buffer{data: backing, len: initialLen}
}

func (b *Buffer) Cap() int { return len(b.data) }
func (b *Buffer) Len() int { return b.len }

// Bytes returns the logical (length-bounded) contents. The slice aliases
// the buffer's storage; callers must not retain it across a mutation.
func (b *Buffer) Bytes() []byte { return b.data[:b.len] }

// Clear resets the logical length to zero without touching capacity.
func (b *Buffer) Clear() { b.len = 0 }

// Append adds bytes at the end. Fails (no mutation) if the result would
// exceed capacity.
func (b *Buffer) Append(p []byte) bool {
	if b.len+len(p) > len(b.data) {
		return false
	}
	copy(b.data[b.len:], p)
	b.len += len(p)
	return true
}

// AppendByte appends a single byte.
func (b *Buffer) AppendByte(v byte) bool {
	if b.len+1 > len(b.data) {
		return false
	}
	b.data[b.len] = v
	b.len++
	return true
}

// Insert inserts p at index, shifting trailing bytes right. Fails if the
// result would exceed capacity or index is out of [0, Len()].
func (b *Buffer) Insert(index int, p []byte) bool {
	if index < 0 || index > b.len || b.len+len(p) > len(b.data) {
		return false
	}
	copy(b.data[index+len(p):b.len+len(p)], b.data[index:b.len])
	copy(b.data[index:], p)
	b.len += len(p)
	return true
}

// Remove deletes n bytes starting at index, shifting trailing bytes left.
func (b *Buffer) Remove(index, n int) bool {
	if index < 0 || n < 0 || index+n > b.len {
		return false
	}
	copy(b.data[index:b.len-n], b.data[index+n:b.len])
	b.len -= n
	return true
}

// Overwrite replaces n bytes starting at index with p (len(p) must equal n
// in effect — this does not change length). Fails if [index, index+len(p))
// is outside [0, Len()).
func (b *Buffer) Overwrite(index int, p []byte) bool {
	if index < 0 || index+len(p) > b.len {
		return false
	}
	copy(b.data[index:], p)
	return true
}

// --- Typed accessors; all bounds-checked, none panic. ---

func (b *Buffer) ReadU8(index int) (byte, bool) {
	if index < 0 || index >= b.len {
		return 0, false
	}
	return b.data[index], true
}

func (b *Buffer) WriteU8(index int, v byte) bool {
	if index < 0 || index >= b.len {
		return false
	}
	b.data[index] = v
	return true
}

func (b *Buffer) ReadU16LE(index int) (uint16, bool) {
	if index < 0 || index+2 > b.len {
		return 0, false
	}
	return binary.LittleEndian.Uint16(b.data[index:]), true
}

func (b *Buffer) WriteU16LE(index int, v uint16) bool {
	if index < 0 || index+2 > b.len {
		return false
	}
	binary.LittleEndian.PutUint16(b.data[index:], v)
	return true
}

func (b *Buffer) ReadU16BE(index int) (uint16, bool) {
	if index < 0 || index+2 > b.len {
		return 0, false
	}
	return binary.BigEndian.Uint16(b.data[index:]), true
}

func (b *Buffer) WriteU16BE(index int, v uint16) bool {
	if index < 0 || index+2 > b.len {
		return false
	}
	binary.BigEndian.PutUint16(b.data[index:], v)
	return true
}

func (b *Buffer) ReadU32LE(index int) (uint32, bool) {
	if index < 0 || index+4 > b.len {
		return 0, false
	}
	return binary.LittleEndian.Uint32(b.data[index:]), true
}

func (b *Buffer) WriteU32LE(index int, v uint32) bool {
	if index < 0 || index+4 > b.len {
		return false
	}
	binary.LittleEndian.PutUint32(b.data[index:], v)
	return true
}

func (b *Buffer) ReadU32BE(index int) (uint32, bool) {
	if index < 0 || index+4 > b.len {
		return 0, false
	}
	return binary.BigEndian.Uint32(b.data[index:]), true
}

func (b *Buffer) WriteU32BE(index int, v uint32) bool {
	if index < 0 || index+4 > b.len {
		return false
	}
	binary.BigEndian.PutUint32(b.data[index:], v)
	return true
}

// ReadLPString reads a u16-big-endian-length-prefixed string (MQTT's wire
// string encoding, spec.md §6): two length bytes followed by that many raw,
// non-null-terminated bytes.
func (b *Buffer) ReadLPString(index int) (s string, byteLen int, ok bool) {
	n, ok := b.ReadU16BE(index)
	if !ok {
		return "", 0, false
	}
	start := index + 2
	if start+int(n) > b.len {
		return "", 0, false
	}
	return string(b.data[start : start+int(n)]), 2 + int(n), true
}

// WriteLPString appends a u16-big-endian-length-prefixed string at the
// buffer's current end. Fails if s is too long to be length-prefixed by a
// u16 or there isn't room.
func (b *Buffer) WriteLPString(s string) bool {
	if len(s) > 0xFFFF {
		return false
	}
	if b.len+2+len(s) > len(b.data) {
		return false
	}
	var hdr [2]byte
	binary.BigEndian.PutUint16(hdr[:], uint16(len(s)))
	b.Append(hdr[:])
	b.Append([]byte(s))
	return true
}
