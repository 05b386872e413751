package message

import (
	"github.com/jangala-dev/protocore/buf"
	"github.com/jangala-dev/protocore/errcode"
)

// PacketType is the MQTT 3.1.1 control packet type (upper nibble of the
// fixed header's first byte).
type PacketType uint8

const (
	Connect   PacketType = 1
	Connack   PacketType = 2
	Publish   PacketType = 3
	Subscribe PacketType = 8
	Suback    PacketType = 9
	Pingreq   PacketType = 12
	Pingresp  PacketType = 13
)

// ConnackCode is CONNACK's one-byte return code (spec.md §4.5).
type ConnackCode uint8

const (
	ConnackAccepted            ConnackCode = 0
	ConnackBadProto            ConnackCode = 1
	ConnackBadClientID         ConnackCode = 2
	ConnackServerUnavailable   ConnackCode = 3
	ConnackBadCredentials      ConnackCode = 4
	ConnackNotAuthorized       ConnackCode = 5
)

// ValidateFlags checks the fixed-header flag nibble against the packet
// type's required pattern (spec.md §4.4): SUBSCRIBE must be exactly 0b0010,
// PUBLISH accepts any flags (DUP/QoS/RETAIN), everything else must be zero.
func ValidateFlags(t PacketType, flags uint8) bool {
	flags &= 0x0F
	switch t {
	case Subscribe:
		return flags == 0b0010
	case Suback:
		return flags == 0
	case Publish:
		return true
	case Connect, Connack, Pingreq, Pingresp:
		return flags == 0
	default:
		return false
	}
}

// Message is an MQTT packet built or parsed over a fixed-capacity buf.Buffer:
// a 1-byte fixed header, a variable-length remaining-length field, and a
// variable-header+payload body — each a buf.LinkedField in the same chain
// (spec.md §4.5, §8 invariant 2).
type Message struct {
	Type       PacketType
	Flags      uint8
	buffer     *buf.Buffer
	header     *buf.LinkedField
	remLen     *buf.LinkedField
	body       *buf.LinkedField
	Configured bool
}

func lpBytes(p []byte) []byte {
	out := make([]byte, 2+len(p))
	out[0] = byte(len(p) >> 8)
	out[1] = byte(len(p))
	copy(out[2:], p)
	return out
}

func lpString(s string) []byte { return lpBytes([]byte(s)) }

// newOutgoing starts building a packet of the given type/flags in a fresh
// buffer of the given capacity.
func newOutgoing(t PacketType, flags uint8, capacity int) (*Message, bool) {
	b := buf.NewBuffer(capacity)
	if !b.AppendByte(byte(t)<<4 | (flags & 0x0F)) {
		return nil, false
	}
	header, ok := buf.InitRoot(b, 0, 1)
	if !ok {
		return nil, false
	}
	remLen, ok := header.InitChild(-1)
	if !ok {
		return nil, false
	}
	body, ok := remLen.InitChild(-1)
	if !ok {
		return nil, false
	}
	return &Message{Type: t, Flags: flags, buffer: b, header: header, remLen: remLen, body: body}, true
}

// finalize computes and writes the remaining-length field from the body's
// final size, marking the message Configured.
func (m *Message) finalize() bool {
	out, n, ok := EncodeRemainingLength(uint32(m.body.Len()))
	if !ok {
		return false
	}
	if !m.remLen.Init(out[:n]) {
		return false
	}
	m.Configured = true
	return true
}

// Bytes returns the complete wire-format packet (header+remaining-length+body).
func (m *Message) Bytes() []byte { return m.buffer.Bytes() }

// rewriteRemainingLength re-encodes the remaining-length field after an
// in-place edit changed the size of whatever follows it (spec.md §4.7
// topic-rewrite primitives). remLen is never marked fixed, so it can be
// fully replaced. The new value is derived from the buffer's current total
// length rather than m.body.Len(), since a decoded PUBLISH's edits go
// through topicField (a sibling of body, not a child of it) and never
// touch body's own recorded length.
func (m *Message) rewriteRemainingLength() bool {
	value := uint32(m.buffer.Len() - m.remLen.Start() - m.remLen.Len())
	out, n, ok := EncodeRemainingLength(value)
	if !ok {
		return false
	}
	old := m.remLen.Len()
	if old > 0 && !m.remLen.Remove(0, old) {
		return false
	}
	return m.remLen.Append(out[:n])
}

// decodeEnvelope reconstructs the header/remLen/body chain over a complete,
// already-framed packet (spec.md "Decoding validates each field's bounds
// using the linked-field chain"). raw must be exactly one complete packet.
func decodeEnvelope(raw []byte) (*Message, bool) {
	if len(raw) < 2 {
		return nil, false
	}
	// Reslice to raw's full capacity, not just its current length: decoded
	// fields stay resizable (PrependTopic et al., spec.md §4.7) only if the
	// wrapped buffer has room to grow into, exactly as WrapBuffer documents.
	b := buf.WrapBuffer(raw[:cap(raw)], len(raw))
	header, ok := buf.InitRoot(b, 0, 1)
	if !ok {
		return nil, false
	}
	typByte, ok := b.ReadU8(0)
	if !ok {
		return nil, false
	}
	typ := PacketType(typByte >> 4)
	flags := typByte & 0x0F
	if !ValidateFlags(typ, flags) {
		return nil, false
	}

	value, n, ok := DecodeRemainingLength(raw[1:])
	if !ok {
		return nil, false
	}
	// AdoptChild, not InitChild: remLen's bytes are already decoded above,
	// and rewriteRemainingLength must be able to replace them after a
	// PUBLISH topic edit changes how many bytes they need to encode.
	remLen, ok := header.AdoptChild(n)
	if !ok || remLen.End() > b.Len() {
		return nil, false
	}
	body, ok := remLen.InitChild(int(value))
	if !ok || body.End() > b.Len() {
		return nil, false
	}
	// spec.md §8 invariant 2: buffer.len == 1 + remaining_length.len + remaining_length.value
	if b.Len() != 1+remLen.Len()+int(value) {
		return nil, false
	}
	return &Message{Type: typ, Flags: flags, buffer: b, header: header, remLen: remLen, body: body}, true
}

// readLPField reads a u16-big-endian length-prefixed string starting at
// local offset off within body, returning the string, the field's total
// byte length (2+strlen), and whether it was in bounds.
func readLPField(body *buf.LinkedField, off int) (string, int, bool) {
	n16, ok := body.ReadU16BE(off)
	if !ok {
		return "", 0, false
	}
	n := int(n16)
	if off+2+n > body.Len() {
		return "", 0, false
	}
	return string(body.Bytes()[off+2 : off+2+n]), 2 + n, true
}

// ---------------------------------------------------------------------
// CONNECT
// ---------------------------------------------------------------------

// ConnectOptions parameterizes EncodeConnect.
type ConnectOptions struct {
	ClientID     string
	CleanSession bool
	KeepAliveSec uint16
	WillTopic    string // "" means no will
	WillMessage  []byte
	WillRetain   bool
	Username     string // "" means absent
	Password     string // only meaningful if Username != ""
}

// ConnectFlags bit positions (spec.md §4.5).
const (
	connectFlagUsername = 1 << 7
	connectFlagPassword = 1 << 6
	connectFlagWillRet  = 1 << 5
	connectFlagWill     = 1 << 2
	connectFlagClean    = 1 << 1
)

// EncodeConnect builds a CONNECT packet (spec.md §4.5). Client id length
// must be 1-23 bytes.
func EncodeConnect(capacity int, opts ConnectOptions) (*Message, error) {
	if len(opts.ClientID) < 1 || len(opts.ClientID) > 23 {
		return nil, errcode.Wrap(errcode.InvalidParams, "EncodeConnect", nil)
	}
	m, ok := newOutgoing(Connect, 0, capacity)
	if !ok {
		return nil, errcode.Wrap(errcode.PoolExhausted, "EncodeConnect", nil)
	}

	var flags uint8
	if opts.CleanSession {
		flags |= connectFlagClean
	}
	hasWill := opts.WillTopic != ""
	if hasWill {
		flags |= connectFlagWill
		if opts.WillRetain {
			flags |= connectFlagWillRet
		}
	}
	if opts.Username != "" {
		flags |= connectFlagUsername
		if opts.Password != "" {
			flags |= connectFlagPassword
		}
	}

	ok = m.body.Append(lpString("MQTT"))
	ok = ok && m.body.Append([]byte{4})    // protocol level
	ok = ok && m.body.Append([]byte{flags}) // connect flags
	ok = ok && m.body.Append([]byte{byte(opts.KeepAliveSec >> 8), byte(opts.KeepAliveSec)})
	ok = ok && m.body.Append(lpString(opts.ClientID))
	if hasWill {
		ok = ok && m.body.Append(lpString(opts.WillTopic))
		ok = ok && m.body.Append(lpBytes(opts.WillMessage))
	}
	if opts.Username != "" {
		ok = ok && m.body.Append(lpString(opts.Username))
		if opts.Password != "" {
			ok = ok && m.body.Append(lpString(opts.Password))
		}
	}
	if !ok || !m.finalize() {
		return nil, errcode.Wrap(errcode.PoolExhausted, "EncodeConnect", nil)
	}
	return m, nil
}

// Connect is the decoded view of a CONNECT packet's variable header/payload.
type Connect struct {
	ProtocolOK   bool
	CleanSession bool
	KeepAliveSec uint16
	ClientID     string
	HasWill      bool
	WillTopic    string
	WillMessage  []byte
	WillRetain   bool
	HasUsername  bool
	Username     string
	HasPassword  bool
	Password     string
}

// DecodeConnect validates and decodes a complete CONNECT packet. Will
// fields are only read when the will flag bit is set (SPEC_FULL.md §12 —
// strict gating, not the original C source's occasionally-unconditional read).
func DecodeConnect(raw []byte) (*Connect, bool) {
	m, ok := decodeEnvelope(raw)
	if !ok || m.Type != Connect {
		return nil, false
	}
	body := m.body
	off := 0

	proto, n, ok := readLPField(body, off)
	if !ok || proto != "MQTT" {
		return nil, false
	}
	off += n

	level, ok := body.ReadU8(off)
	if !ok || level != 4 {
		return nil, false
	}
	off++

	flags, ok := body.ReadU8(off)
	if !ok {
		return nil, false
	}
	off++

	keepAlive, ok := body.ReadU16BE(off)
	if !ok {
		return nil, false
	}
	off += 2

	clientID, n, ok := readLPField(body, off)
	if !ok {
		return nil, false
	}
	off += n

	c := &Connect{
		ProtocolOK:   true,
		CleanSession: flags&connectFlagClean != 0,
		KeepAliveSec: keepAlive,
		ClientID:     clientID,
	}

	if flags&connectFlagWill != 0 {
		c.HasWill = true
		c.WillRetain = flags&connectFlagWillRet != 0
		willTopic, n, ok := readLPField(body, off)
		if !ok {
			return nil, false
		}
		off += n
		c.WillTopic = willTopic
		willMsg, n, ok := readLPField(body, off)
		if !ok {
			return nil, false
		}
		off += n
		c.WillMessage = []byte(willMsg)
	}

	if flags&connectFlagUsername != 0 {
		c.HasUsername = true
		username, n, ok := readLPField(body, off)
		if !ok {
			return nil, false
		}
		off += n
		c.Username = username
	}

	if flags&connectFlagPassword != 0 {
		c.HasPassword = true
		password, n, ok := readLPField(body, off)
		if !ok {
			return nil, false
		}
		off += n
		c.Password = password
	}

	return c, true
}

// ---------------------------------------------------------------------
// CONNACK
// ---------------------------------------------------------------------

func EncodeConnack(capacity int, sessionPresent bool, code ConnackCode) (*Message, error) {
	m, ok := newOutgoing(Connack, 0, capacity)
	if !ok {
		return nil, errcode.Wrap(errcode.PoolExhausted, "EncodeConnack", nil)
	}
	var sp byte
	if sessionPresent {
		sp = 1
	}
	if !m.body.Append([]byte{sp, byte(code)}) || !m.finalize() {
		return nil, errcode.Wrap(errcode.PoolExhausted, "EncodeConnack", nil)
	}
	return m, nil
}

type Connack struct {
	SessionPresent bool
	Code           ConnackCode
}

func DecodeConnack(raw []byte) (*Connack, bool) {
	m, ok := decodeEnvelope(raw)
	if !ok || m.Type != Connack || m.body.Len() != 2 {
		return nil, false
	}
	sp, ok := m.body.ReadU8(0)
	if !ok {
		return nil, false
	}
	code, ok := m.body.ReadU8(1)
	if !ok {
		return nil, false
	}
	return &Connack{SessionPresent: sp&1 != 0, Code: ConnackCode(code)}, true
}

// ---------------------------------------------------------------------
// PUBLISH
// ---------------------------------------------------------------------

// EncodePublish builds a QoS-0 PUBLISH (the only QoS protocore supports;
// spec.md §1 Non-goals). retain/dup set the corresponding fixed-header bits.
func EncodePublish(capacity int, topic string, payload []byte, retain, dup bool) (*Message, error) {
	var flags uint8
	if retain {
		flags |= 1
	}
	if dup {
		flags |= 1 << 3
	}
	m, ok := newOutgoing(Publish, flags, capacity)
	if !ok {
		return nil, errcode.Wrap(errcode.PoolExhausted, "EncodePublish", nil)
	}
	if !m.body.Append(lpString(topic)) || !m.body.Append(payload) || !m.finalize() {
		return nil, errcode.Wrap(errcode.PoolExhausted, "EncodePublish", nil)
	}
	return m, nil
}

// Publish is the decoded, editable view of a PUBLISH packet. Topic/Payload
// are read-only snapshots taken at decode time; TrimTopicPrefix/PrependTopic
// mutate the underlying wire bytes in place and refresh Topic (spec.md
// §4.5, §4.7: the bridge's topic-remapping primitives). Neither primitive
// changes the payload's byte values, though the payload shifts position in
// the buffer by however much the topic grows or shrinks.
type Publish struct {
	Topic   string
	Payload []byte
	Retain  bool
	Dup     bool

	msg        *Message
	topicField *buf.LinkedField // child of remLen (sibling of body); [2-byte LP length][topic bytes]
}

// containsWildcard reports whether a topic name contains either MQTT
// wildcard character; PUBLISH topic names must not (spec.md §4.5).
func containsWildcard(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '+' || s[i] == '#' {
			return true
		}
	}
	return false
}

func DecodePublish(raw []byte) (*Publish, bool) {
	m, ok := decodeEnvelope(raw)
	if !ok || m.Type != Publish {
		return nil, false
	}
	topicStr, n, ok := readLPField(m.body, 0)
	if !ok || containsWildcard(topicStr) {
		return nil, false
	}
	// topicField aliases the first n bytes of body (the [2-byte LP length]
	// [topic bytes] already decoded above) rather than being chained after
	// it — body already extends to the end of the buffer, so a field
	// chained after it would never fit.
	topicField, ok := m.remLen.AdoptChild(n)
	if !ok {
		return nil, false
	}
	payload := append([]byte(nil), m.body.Bytes()[n:]...)
	return &Publish{
		Topic:      topicStr,
		Payload:    payload,
		Retain:     m.Flags&1 != 0,
		Dup:        m.Flags&(1<<3) != 0,
		msg:        m,
		topicField: topicField,
	}, true
}

// refreshFromTopicField re-reads Topic and re-encodes the packet's
// remaining-length field after an in-place edit of topicField.
func (p *Publish) refreshFromTopicField() bool {
	p.Topic = string(p.topicField.Bytes()[2:])
	return p.msg.rewriteRemainingLength()
}

// TrimTopicPrefix removes the first n bytes of the topic string (the
// bridge's "trim-to-pointer" primitive) and updates the topic's length
// prefix and the packet's remaining-length field. The payload's byte values
// are unchanged; they move n bytes toward the front of the buffer.
func (p *Publish) TrimTopicPrefix(n int) bool {
	if n < 0 || n > len(p.Topic) {
		return false
	}
	if !p.topicField.Remove(2, n) {
		return false
	}
	if !p.topicField.WriteU16BE(0, uint16(len(p.Topic)-n)) {
		return false
	}
	return p.refreshFromTopicField()
}

// PrependTopic inserts s before the current topic string (the bridge's
// "prepend" primitive) and updates the topic's length prefix and the
// packet's remaining-length field.
func (p *Publish) PrependTopic(s string) bool {
	if !p.topicField.InsertAt(2, []byte(s)) {
		return false
	}
	if !p.topicField.WriteU16BE(0, uint16(len(p.Topic)+len(s))) {
		return false
	}
	return p.refreshFromTopicField()
}

// Bytes returns the packet's current complete wire bytes, reflecting any
// topic edits applied so far.
func (p *Publish) Bytes() []byte { return p.msg.Bytes() }

// ---------------------------------------------------------------------
// SUBSCRIBE / SUBACK
// ---------------------------------------------------------------------

// SubscribeReturnCode mirrors the single-topic-filter SUBSCRIBE/SUBACK
// model protocore supports (one filter per packet, spec.md §4.5).
type SubscribeReturnCode uint8

const (
	SubackQoS0    SubscribeReturnCode = 0
	SubackFailure SubscribeReturnCode = 0x80
)

func EncodeSubscribe(capacity int, packetID uint16, topicFilter string) (*Message, error) {
	m, ok := newOutgoing(Subscribe, 0b0010, capacity)
	if !ok {
		return nil, errcode.Wrap(errcode.PoolExhausted, "EncodeSubscribe", nil)
	}
	ok = m.body.Append([]byte{byte(packetID >> 8), byte(packetID)})
	ok = ok && m.body.Append(lpString(topicFilter))
	ok = ok && m.body.Append([]byte{0}) // requested QoS 0, the only QoS supported
	if !ok || !m.finalize() {
		return nil, errcode.Wrap(errcode.PoolExhausted, "EncodeSubscribe", nil)
	}
	return m, nil
}

type Subscribe struct {
	PacketID    uint16
	TopicFilter string
}

func DecodeSubscribe(raw []byte) (*Subscribe, bool) {
	m, ok := decodeEnvelope(raw)
	if !ok || m.Type != Subscribe {
		return nil, false
	}
	pid, ok := m.body.ReadU16BE(0)
	if !ok {
		return nil, false
	}
	filter, _, ok := readLPField(m.body, 2)
	if !ok {
		return nil, false
	}
	return &Subscribe{PacketID: pid, TopicFilter: filter}, true
}

func EncodeSuback(capacity int, packetID uint16, code SubscribeReturnCode) (*Message, error) {
	m, ok := newOutgoing(Suback, 0, capacity)
	if !ok {
		return nil, errcode.Wrap(errcode.PoolExhausted, "EncodeSuback", nil)
	}
	if !m.body.Append([]byte{byte(packetID >> 8), byte(packetID), byte(code)}) || !m.finalize() {
		return nil, errcode.Wrap(errcode.PoolExhausted, "EncodeSuback", nil)
	}
	return m, nil
}

type Suback struct {
	PacketID uint16
	Code     SubscribeReturnCode
}

func DecodeSuback(raw []byte) (*Suback, bool) {
	m, ok := decodeEnvelope(raw)
	if !ok || m.Type != Suback || m.body.Len() != 3 {
		return nil, false
	}
	pid, ok := m.body.ReadU16BE(0)
	if !ok {
		return nil, false
	}
	code, ok := m.body.ReadU8(2)
	if !ok {
		return nil, false
	}
	return &Suback{PacketID: pid, Code: SubscribeReturnCode(code)}, true
}

// ---------------------------------------------------------------------
// PINGREQ / PINGRESP
// ---------------------------------------------------------------------

func EncodePingreq(capacity int) (*Message, error) {
	m, ok := newOutgoing(Pingreq, 0, capacity)
	if !ok || !m.finalize() {
		return nil, errcode.Wrap(errcode.PoolExhausted, "EncodePingreq", nil)
	}
	return m, nil
}

func EncodePingresp(capacity int) (*Message, error) {
	m, ok := newOutgoing(Pingresp, 0, capacity)
	if !ok || !m.finalize() {
		return nil, errcode.Wrap(errcode.PoolExhausted, "EncodePingresp", nil)
	}
	return m, nil
}

func DecodePingreq(raw []byte) bool {
	m, ok := decodeEnvelope(raw)
	return ok && m.Type == Pingreq && m.body.Len() == 0
}

func DecodePingresp(raw []byte) bool {
	m, ok := decodeEnvelope(raw)
	return ok && m.Type == Pingresp && m.body.Len() == 0
}
