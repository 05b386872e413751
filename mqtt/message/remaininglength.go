// Package message implements the MQTT 3.1.1 message model (spec.md §4.5):
// init_*-style encoders and validate_received_bytes-style decoders for the
// packet types protocore supports, built over buf.Buffer/buf.LinkedField so
// every field's bounds are checked via the chain rather than by hand.
//
// Grounded on original_source/cxa_mqtt_message.c (field layout, remaining-
// length encoding) and original_source/cxa_mqtt_message_connect.c (will-field
// flag gating, per SPEC_FULL.md §12).
package message

import "github.com/jangala-dev/protocore/internal/mathx"

// MaxRemainingLengthBytes is the maximum number of continuation-encoded
// bytes in an MQTT remaining-length field (spec.md §4.5).
const MaxRemainingLengthBytes = 4

// MaxRemainingLengthValue is 2^28-1, the largest value four continuation
// bytes can encode.
const MaxRemainingLengthValue = 0x0FFFFFFF

// RemainingLengthDecoder incrementally decodes the continuation-bit
// variable-length integer one byte at a time, so a byte-stream parser can
// feed it without blocking for more input (spec.md §4.4).
type RemainingLengthDecoder struct {
	value      uint32
	multiplier uint32
	bytesRead  int
}

func NewRemainingLengthDecoder() *RemainingLengthDecoder {
	return &RemainingLengthDecoder{multiplier: 1}
}

// Feed consumes one byte. done reports the value is complete (bit 7 clear).
// malformed reports the fourth byte still had bit 7 set (spec.md §4.4, §8
// boundary behaviour): the caller must abandon this attempt and resync.
func (d *RemainingLengthDecoder) Feed(b byte) (done, malformed bool) {
	d.bytesRead++
	d.value += uint32(b&0x7F) * d.multiplier
	if b&0x80 == 0 {
		return true, false
	}
	if d.bytesRead >= MaxRemainingLengthBytes {
		return false, true
	}
	d.multiplier *= 128
	return false, false
}

func (d *RemainingLengthDecoder) Value() uint32 { return d.value }
func (d *RemainingLengthDecoder) BytesRead() int { return d.bytesRead }

// EncodeRemainingLength encodes value as 1-4 continuation-bit bytes
// (spec.md §4.5). ok is false if value exceeds MaxRemainingLengthValue.
func EncodeRemainingLength(value uint32) (out [MaxRemainingLengthBytes]byte, n int, ok bool) {
	if !mathx.Between(value, 0, MaxRemainingLengthValue) {
		return out, 0, false
	}
	for {
		b := byte(value % 128)
		value /= 128
		if value > 0 {
			b |= 0x80
		}
		out[n] = b
		n++
		if value == 0 {
			break
		}
	}
	return out, n, true
}

// DecodeRemainingLength decodes a complete byte slice (used when the full
// packet is already in memory, as opposed to streaming decode via
// RemainingLengthDecoder). Returns the value and how many bytes it consumed.
func DecodeRemainingLength(b []byte) (value uint32, n int, ok bool) {
	d := NewRemainingLengthDecoder()
	for i, by := range b {
		done, malformed := d.Feed(by)
		if malformed {
			return 0, 0, false
		}
		if done {
			return d.Value(), i + 1, true
		}
	}
	return 0, 0, false
}
