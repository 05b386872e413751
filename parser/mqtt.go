package parser

import "github.com/jangala-dev/protocore/mqtt/message"

// mqttStage names MQTT framing's internal position within one frame.
type mqttStage uint8

const (
	mqttExpectHeader mqttStage = iota
	mqttExpectRemLen
	mqttExpectBody
)

// MQTT implements MQTT 3.1.1 wire framing (spec.md §4.4, §6): packet
// type+flags validated against the type, 1-4 continuation-encoded
// remaining-length bytes, then exactly that many payload bytes. Payload()
// returns the complete packet (header byte included) ready for
// mqtt/message's decoders.
type MQTT struct {
	raw       []byte
	n         int
	stage     mqttStage
	rl        *message.RemainingLengthDecoder
	bodyLen   int
	bodyTaken int
}

// NewMQTT constructs an MQTT framing accepting packets up to maxPacket
// bytes total (fixed header + remaining length + body).
func NewMQTT(maxPacket int) *MQTT {
	return &MQTT{raw: make([]byte, maxPacket)}
}

func (m *MQTT) Reset() {
	m.n, m.stage, m.bodyTaken = 0, mqttExpectHeader, 0
	m.rl = nil
}

func (m *MQTT) Feed(b byte) FeedOutcome {
	if m.n >= len(m.raw) {
		return FrameMalformed
	}
	m.raw[m.n] = b
	m.n++

	switch m.stage {
	case mqttExpectHeader:
		typ := message.PacketType(b >> 4)
		flags := b & 0x0F
		if !message.ValidateFlags(typ, flags) {
			return FrameMalformed
		}
		m.rl = message.NewRemainingLengthDecoder()
		m.stage = mqttExpectRemLen
		return NeedMore
	case mqttExpectRemLen:
		done, malformed := m.rl.Feed(b)
		if malformed {
			return FrameMalformed
		}
		if done {
			m.bodyLen = int(m.rl.Value())
			if m.n+m.bodyLen > len(m.raw) {
				return FrameMalformed
			}
			if m.bodyLen == 0 {
				return FrameComplete
			}
			m.stage = mqttExpectBody
		}
		return NeedMore
	case mqttExpectBody:
		m.bodyTaken++
		if m.bodyTaken >= m.bodyLen {
			return FrameComplete
		}
		return NeedMore
	}
	return FrameMalformed
}

func (m *MQTT) Payload() []byte { return m.raw[:m.n] }
