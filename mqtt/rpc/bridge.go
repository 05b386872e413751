package rpc

import (
	"strings"

	"github.com/jangala-dev/protocore/capability"
	"github.com/jangala-dev/protocore/container"
	"github.com/jangala-dev/protocore/fsm"
	"github.com/jangala-dev/protocore/iostream"
	"github.com/jangala-dev/protocore/logx"
	"github.com/jangala-dev/protocore/mqtt/message"
	"github.com/jangala-dev/protocore/parser"
)

// MaxBridgeClients bounds the bridge's authenticated-client table.
const MaxBridgeClients = 8

// MaxBridgePacketBytes bounds one downstream-framed MQTT packet.
const MaxBridgePacketBytes = 1024

// AuthenticateFunc authenticates a downstream CONNECT. It returns the
// local mapped name this client will be known by (ok=true), or ok=false
// to refuse the connection with CONNACK bad_credentials (spec.md §4.7).
type AuthenticateFunc func(clientID, username, password string) (mappedName string, ok bool)

type remoteEntry struct {
	clientID   string
	mappedName string
	lastSeenMs uint64
}

// Bridge is an rpc.Node subtype presenting an authenticated downstream
// MQTT client population as a single upstream subtree: it terminates its
// own MQTT connection (CONNECT/PINGREQ) over a downstream framed stream,
// and installs a catch-all that rewrites forwarded upstream publishes
// addressed to a mapped client name into "~/<client_id>/…" before
// retransmitting them downstream (spec.md §3 "Bridge node", §4.7).
//
// Grounded on original_source/src/mqtt/rpc/cxa_mqtt_rpc_node_bridge.c.
type Bridge struct {
	Node

	stream  *iostream.Peekable
	parsr   *parser.Base
	framing *parser.MQTT
	clock   fsm.Clock

	authCb AuthenticateFunc

	clients *container.FixedArray[remoteEntry]

	// EntryTTL expires a client-table entry that hasn't re-CONNECTed in
	// this many milliseconds; 0 disables expiry (SPEC_FULL.md §12 — this
	// is liveness bookkeeping, not persisted session state, so it doesn't
	// conflict with spec.md §1's "no session persistence" Non-goal).
	EntryTTL uint64
}

// NewBridge constructs a bridge as a child of parent, terminating its own
// MQTT connection over downstream (a capability.ByteStream to the
// downstream client), and installs the topic-remapping catch-all.
func NewBridge(parent *Node, name string, downstream capability.ByteStream, clock fsm.Clock) (*Bridge, bool) {
	stream := iostream.NewPeekable(downstream)
	framing := parser.NewMQTT(MaxBridgePacketBytes)
	b := &Bridge{
		Node:    *newNode(name, parent, parent.root, parent.log),
		stream:  stream,
		framing: framing,
		clock:   clock,
		clients: container.NewFixedArray[remoteEntry](MaxBridgeClients),
	}
	// register &b.Node (not a separately-allocated Node) as the child, so
	// the tree's dispatch walk reaches this Bridge's own catch-all below.
	if !parent.subs.Append(&b.Node) {
		return nil, false
	}
	b.parsr = parser.New(framing, stream, clock)
	b.parsr.AddListener(b)
	b.Node.SetCatchAll(b.catchAll)
	return b, true
}

// SetAuthenticationCb installs the downstream CONNECT authenticator.
func (b *Bridge) SetAuthenticationCb(cb AuthenticateFunc) { b.authCb = cb }

// Update drives the downstream framing parser; register as a runloop
// periodic entry (original's cxa_mqtt_rpc_node_bridge_update).
func (b *Bridge) Update() {
	b.parsr.Update()
	if b.clock != nil {
		b.ExpireStale(b.clock.NowMs())
	}
}

func (b *Bridge) nowMs() uint64 {
	if b.clock == nil {
		return 0
	}
	return b.clock.NowMs()
}

// ExpireStale drops any client-table entry that hasn't re-CONNECTed within
// EntryTTL milliseconds of nowMs. A zero EntryTTL disables expiry
// (cxa_mqtt_rpc_node_bridge.c's last-seen timeout, SPEC_FULL.md §12).
func (b *Bridge) ExpireStale(nowMs uint64) {
	if b.EntryTTL == 0 {
		return
	}
	for i := b.clients.Len() - 1; i >= 0; i-- {
		e, ok := b.clients.At(i)
		if !ok {
			continue
		}
		if nowMs-e.lastSeenMs >= b.EntryTTL {
			if b.log != nil {
				b.log.Debugf("expiring stale client '%s'", e.clientID)
			}
			b.clients.RemoveAt(i)
		}
	}
}

// ---------------------------------------------------------------------
// parser.Listener — downstream packets
// ---------------------------------------------------------------------

func (b *Bridge) OnPacket(payload []byte) {
	if len(payload) == 0 {
		return
	}
	switch message.PacketType(payload[0] >> 4) {
	case message.Connect:
		b.handleConnect(payload)
	case message.Pingreq:
		b.handlePingreq()
	case message.Subscribe:
		if b.log != nil {
			b.log.Trace("got subscribe")
		}
	case message.Publish:
		if b.log != nil {
			b.log.Trace("got publish")
		}
	}
}

func (b *Bridge) OnIOException(err error)           {}
func (b *Bridge) OnReceptionTimeout(partial []byte) {}
func (b *Bridge) OnMalformedPacket()                {}

func (b *Bridge) handleConnect(payload []byte) {
	if b.authCb == nil {
		return
	}
	conn, ok := message.DecodeConnect(payload)
	if !ok {
		if b.log != nil {
			b.log.Warn("problem getting CONNECT info")
		}
		return
	}

	if idx := b.clients.IndexFunc(func(e remoteEntry) bool { return e.clientID == conn.ClientID }); idx >= 0 {
		if b.log != nil {
			b.log.Debug("CONNECT for prev auth client")
		}
		if e, ok := b.clients.At(idx); ok {
			e.lastSeenMs = b.nowMs()
			b.clients.Overwrite(idx, e)
		}
		b.sendConnack(false, message.ConnackAccepted)
		return
	}

	mappedName, ok := b.authCb(conn.ClientID, conn.Username, conn.Password)
	if !ok {
		if b.log != nil {
			b.log.Warnf("client not authorized: '%s'", conn.ClientID)
		}
		b.sendConnack(false, message.ConnackBadCredentials)
		return
	}

	if !b.clients.Append(remoteEntry{clientID: conn.ClientID, mappedName: mappedName, lastSeenMs: b.nowMs()}) {
		if b.log != nil {
			b.log.Warn("too many remote clients")
		}
		b.sendConnack(false, message.ConnackServerUnavailable)
		return
	}
	if b.log != nil {
		b.log.Infof("new client '%s'::'%s'", mappedName, conn.ClientID)
	}
	b.sendConnack(false, message.ConnackAccepted)
}

func (b *Bridge) handlePingreq() {
	msg, err := message.EncodePingresp(MaxBridgePacketBytes)
	if err != nil || !b.stream.WriteBytes(msg.Bytes()) {
		if b.log != nil {
			b.log.Warn("failed to send PINGRESP")
		}
	}
}

func (b *Bridge) sendConnack(sessionPresent bool, code message.ConnackCode) {
	msg, err := message.EncodeConnack(MaxBridgePacketBytes, sessionPresent, code)
	if err != nil || !b.stream.WriteBytes(msg.Bytes()) {
		if b.log != nil {
			b.log.Warn("failed to send CONNACK")
		}
	}
}

// ---------------------------------------------------------------------
// catch-all — upstream-to-downstream remapping (spec.md §4.7)
// ---------------------------------------------------------------------

// catchAll is installed as this bridge node's rpc.CatchAllCallback: it
// receives the remaining topic below the bridge's own node name (e.g.
// "sensor/temp"), finds the mapped client whose name prefixes it, and
// rewrites+forwards the publish downstream as "~/<client_id>/temp".
// The forwarded packet is freshly encoded, so the rewritten topic may be
// longer or shorter than the original; payload bytes are forwarded
// unchanged.
func (b *Bridge) catchAll(node *Node, remainingTopic string, id uint16, payload []byte) bool {
	var match *remoteEntry
	b.clients.ForEach(func(_ int, e remoteEntry) bool {
		if len(e.mappedName) <= len(remainingTopic) && strings.HasPrefix(remainingTopic, e.mappedName) {
			match = &e
			return false
		}
		return true
	})
	if match == nil {
		if b.log != nil {
			b.log.Warnf("couldn't handle '%s'", remainingTopic)
		}
		return false
	}

	newTopic := remainingTopic[len(match.mappedName):]
	if len(newTopic) < 1 || newTopic[0] != '/' {
		if b.log != nil {
			b.log.Warn("error remapping topic name, dropping")
		}
		return true // handled (dropped), per original's "return true because we should have handled this"
	}
	rewritten := "~/" + match.clientID + newTopic

	msg, err := message.EncodePublish(MaxBridgePacketBytes, rewritten, payload, false, false)
	if err != nil || !b.stream.WriteBytes(msg.Bytes()) {
		if b.log != nil {
			b.log.Warn("error forwarding message")
		}
	}
	return true
}
