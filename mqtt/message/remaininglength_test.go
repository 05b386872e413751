package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemainingLength_S2KnownEncodings(t *testing.T) {
	cases := []struct {
		value uint32
		bytes []byte
	}{
		{127, []byte{0x7F}},
		{128, []byte{0x80, 0x01}},
		{16383, []byte{0xFF, 0x7F}},
		{2097151, []byte{0xFF, 0xFF, 0x7F}},
	}
	for _, c := range cases {
		out, n, ok := EncodeRemainingLength(c.value)
		require.True(t, ok)
		assert.Equal(t, c.bytes, out[:n])

		value, consumed, ok := DecodeRemainingLength(c.bytes)
		require.True(t, ok)
		assert.Equal(t, c.value, value)
		assert.Equal(t, len(c.bytes), consumed)
	}
}

func TestRemainingLength_BijectionOverFullRange(t *testing.T) {
	for _, v := range []uint32{0, 1, 63, 64, 16384, 2097152, MaxRemainingLengthValue} {
		out, n, ok := EncodeRemainingLength(v)
		require.True(t, ok)
		got, consumed, ok := DecodeRemainingLength(out[:n])
		require.True(t, ok)
		assert.Equal(t, v, got)
		assert.Equal(t, n, consumed)
	}
}

func TestRemainingLength_EncodeRejectsOutOfRange(t *testing.T) {
	_, _, ok := EncodeRemainingLength(MaxRemainingLengthValue + 1)
	assert.False(t, ok)
}

func TestRemainingLengthDecoder_AllFourBytesContinuationIsMalformed(t *testing.T) {
	d := NewRemainingLengthDecoder()
	bytes := []byte{0xFF, 0xFF, 0xFF, 0xFF}
	var malformed bool
	for _, b := range bytes {
		var done bool
		done, malformed = d.Feed(b)
		if done || malformed {
			break
		}
	}
	assert.True(t, malformed)
}
