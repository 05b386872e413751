// Package client implements a QoS-0 MQTT 3.1.1 client over protocore's
// generic parser and message-model layers: CONNECT/CONNACK handshake,
// PUBLISH send/receive, SUBSCRIBE with wildcard-aware dispatch, and a
// connection state machine (fsm.FSM, Disconnected/Connecting/Connected)
// driving the handshake. Ping is caller-driven: the caller arms its own
// periodic call to Ping at opts.KeepAliveSec, the same way
// runloop.Runloop's periodic entries drive everything else in this
// module — none of Client's states are fsm.Timed.
//
// Grounded on original_source/src/mqtt/cxa_mqtt_client.c (connect/publish/
// subscribe/keep-alive sequencing; the "client" collaborator
// cxa_mqtt_rpc_node_root.c calls cxa_mqtt_client_publish/_subscribe on)
// and the teacher repo's services/bridge connection/reconnect idiom for
// the Go-shaped state machine around it. Message framing is
// package parser's MQTT Framing; encode/decode is package mqtt/message;
// subscriber dispatch is package mqtt/topicmatch.
package client

import (
	"github.com/jangala-dev/protocore/capability"
	"github.com/jangala-dev/protocore/errcode"
	"github.com/jangala-dev/protocore/fsm"
	"github.com/jangala-dev/protocore/iostream"
	"github.com/jangala-dev/protocore/logx"
	"github.com/jangala-dev/protocore/mqtt/message"
	"github.com/jangala-dev/protocore/mqtt/topicmatch"
	"github.com/jangala-dev/protocore/parser"
)

// MaxPacketBytes bounds a single encoded/decoded MQTT packet.
const MaxPacketBytes = 1024

// PublishHandler receives a delivered PUBLISH matching a subscription.
type PublishHandler func(topic string, payload []byte, retain bool)

// Options parameterizes Connect.
type Options struct {
	ClientID     string
	CleanSession bool
	KeepAliveSec uint16
	Username     string
	Password     string
	WillTopic    string
	WillMessage  []byte
	WillRetain   bool
}

type subEntry struct {
	id      topicmatch.ID
	handler PublishHandler
}

const (
	stateDisconnected fsm.StateID = iota
	stateConnecting
	stateConnected
)

// Client is a single QoS-0 MQTT connection. The zero value is not usable;
// use New.
type Client struct {
	stream  *iostream.Peekable
	parsr   *parser.Base
	framing *parser.MQTT
	clock   fsm.Clock
	log     *logx.Logger

	machine *fsm.FSM

	opts        Options
	connected   bool
	connAckCode message.ConnackCode

	table *topicmatch.Table
	subs  map[topicmatch.ID]subEntry

	onConnack func(accepted bool)
}

// New constructs a Client over transport, using clock for the parser's
// reception-timeout deadlines.
func New(transport capability.ByteStream, clock fsm.Clock, log *logx.Logger) *Client {
	stream := iostream.NewPeekable(transport)
	framing := parser.NewMQTT(MaxPacketBytes)
	c := &Client{
		stream:  stream,
		parsr:   parser.New(framing, stream, clock),
		framing: framing,
		clock:   clock,
		log:     log,
		table:   topicmatch.New(),
		subs:    make(map[topicmatch.ID]subEntry),
	}
	c.parsr.AddListener(c)
	c.machine = fsm.New(clock, 4)
	c.machine.AddState(stateDisconnected, "Disconnected", nil, nil, nil, nil)
	c.machine.AddState(stateConnecting, "Connecting", nil, nil, nil, nil)
	c.machine.AddState(stateConnected, "Connected", nil, nil, nil, nil)
	c.machine.Start(stateDisconnected)
	return c
}

// Update drives both the framing parser and the client's own state
// machine; register it as a runloop periodic entry.
func (c *Client) Update() {
	c.parsr.Update()
	c.machine.Update()
}

// Connect sends CONNECT and arms the Connecting state; onConnack is
// invoked once, when the matching CONNACK is decoded.
func (c *Client) Connect(opts Options, onConnack func(accepted bool)) error {
	if !c.stream.IsBound() {
		return errcode.Wrap(errcode.IoException, "Connect", nil)
	}
	c.opts = opts
	c.onConnack = onConnack
	msg, err := message.EncodeConnect(MaxPacketBytes, message.ConnectOptions{
		ClientID:     opts.ClientID,
		CleanSession: opts.CleanSession,
		KeepAliveSec: opts.KeepAliveSec,
		WillTopic:    opts.WillTopic,
		WillMessage:  opts.WillMessage,
		WillRetain:   opts.WillRetain,
		Username:     opts.Username,
		Password:     opts.Password,
	})
	if err != nil {
		return err
	}
	if !c.stream.WriteBytes(msg.Bytes()) {
		return errcode.Wrap(errcode.IoException, "Connect", nil)
	}
	c.machine.TransitionNow(stateConnecting)
	return nil
}

// Connected reports whether a CONNACK with ConnackAccepted has been received.
func (c *Client) Connected() bool { return c.connected }

// Publish encodes and writes a QoS-0 PUBLISH.
func (c *Client) Publish(topic string, payload []byte, retain bool) bool {
	msg, err := message.EncodePublish(MaxPacketBytes, topic, payload, retain, false)
	if err != nil {
		if c.log != nil {
			c.log.Warnf("publish encode failed: %s", errcode.Of(err))
		}
		return false
	}
	return c.stream.WriteBytes(msg.Bytes())
}

// Subscribe registers handler for every delivered PUBLISH whose topic
// matches filter (which may contain '+'/'#' wildcards) and writes the
// SUBSCRIBE packet. Returns the subscription id for later Unsubscribe.
func (c *Client) Subscribe(packetID uint16, filter string, handler PublishHandler) (topicmatch.ID, bool) {
	msg, err := message.EncodeSubscribe(MaxPacketBytes, packetID, filter)
	if err != nil || !c.stream.WriteBytes(msg.Bytes()) {
		return 0, false
	}
	id := c.table.Subscribe(filter)
	c.subs[id] = subEntry{id: id, handler: handler}
	return id, true
}

// Unsubscribe removes a local subscription registered via Subscribe. MQTT
// 3.1.1 UNSUBSCRIBE wire support is out of scope (spec.md's packet-type
// set does not include it); this only stops local dispatch.
func (c *Client) Unsubscribe(id topicmatch.ID) {
	c.table.Unsubscribe(id)
	delete(c.subs, id)
}

// Ping writes a PINGREQ.
func (c *Client) Ping() bool {
	msg, err := message.EncodePingreq(MaxPacketBytes)
	if err != nil {
		return false
	}
	return c.stream.WriteBytes(msg.Bytes())
}

// ---------------------------------------------------------------------
// parser.Listener
// ---------------------------------------------------------------------

func (c *Client) OnPacket(payload []byte) {
	if len(payload) == 0 {
		return
	}
	typ := message.PacketType(payload[0] >> 4)
	switch typ {
	case message.Connack:
		c.handleConnack(payload)
	case message.Publish:
		c.handlePublish(payload)
	case message.Pingresp:
		// no action required; keep-alive pacing is left to the caller
		// (see the package doc), so a PINGRESP updates no client state.
	default:
		if c.log != nil {
			c.log.Tracef("ignoring packet type %d", typ)
		}
	}
}

func (c *Client) handleConnack(payload []byte) {
	ack, ok := message.DecodeConnack(payload)
	if !ok {
		if c.log != nil {
			c.log.Warn("malformed CONNACK")
		}
		return
	}
	c.connAckCode = ack.Code
	c.connected = ack.Code == message.ConnackAccepted
	c.machine.TransitionNow(stateConnected)
	if c.onConnack != nil {
		cb := c.onConnack
		c.onConnack = nil
		cb(c.connected)
	}
}

func (c *Client) handlePublish(payload []byte) {
	pub, ok := message.DecodePublish(payload)
	if !ok {
		if c.log != nil {
			c.log.Warn("malformed PUBLISH")
		}
		return
	}
	ids := c.table.Match(pub.Topic)
	for _, id := range ids {
		if entry, ok := c.subs[id]; ok && entry.handler != nil {
			entry.handler(pub.Topic, pub.Payload, pub.Retain)
		}
	}
}

func (c *Client) OnIOException(err error) {
	c.connected = false
	c.machine.TransitionNow(stateDisconnected)
	if c.log != nil {
		c.log.Warnf("io exception: %s", err)
	}
}

func (c *Client) OnReceptionTimeout(partial []byte) {
	if c.log != nil {
		c.log.Warnf("reception timeout, %d bytes discarded", len(partial))
	}
}

func (c *Client) OnMalformedPacket() {
	if c.log != nil {
		c.log.Warn("malformed packet dropped")
	}
}
