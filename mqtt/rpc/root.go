package rpc

import (
	"encoding/binary"

	"github.com/jangala-dev/protocore/logx"
	"github.com/jangala-dev/protocore/mqtt/client"
	"github.com/jangala-dev/protocore/mqtt/topicmatch"
)

// MaxReturnParamsBytes is the original's return-payload size limit
// (CXA_MQTT_RPCNODE_MAXLEN_RETURNPARAMS_BYTES). dispatch does not check a
// method's return payload against it.
const MaxReturnParamsBytes = 64

// mqttPublisher is the slice of *client.Client the RPC tree depends on: a
// request-response bridge doesn't need the whole client surface (connect,
// keep-alive), only publish+subscribe (spec.md §9's capability-interface
// guidance applied to the RPC tree's one collaborator).
type mqttPublisher interface {
	Publish(topic string, payload []byte, retain bool) bool
	Subscribe(packetID uint16, filter string, handler client.PublishHandler) (topicmatch.ID, bool)
}

// Root is the tree's root node: it additionally owns the MQTT client
// reference and the configurable topic prefix every path is rooted under
// (spec.md §3 "RPC node" invariant).
type Root struct {
	Node
	client      mqttPublisher
	prefix      string
	subPacketID uint16
}

// NewRoot constructs the tree root, subscribes to <prefix>/<name>/# on
// mqttClient, and returns it. name must be non-empty and fit MaxNameLen.
func NewRoot(mqttClient mqttPublisher, prefix, name string, log *logx.Logger) *Root {
	r := &Root{prefix: prefix, client: mqttClient}
	r.Node = *newNode(name, nil, r, log)

	filter := name + "/#"
	if prefix != "" {
		filter = prefix + "/" + filter
	}
	r.subPacketID++
	mqttClient.Subscribe(r.subPacketID, filter, r.onPublish)
	return r
}

// prefixLen is the byte count to strip from an incoming topic before the
// node-name walk begins: len(prefix)+1 when a prefix is set, else 0
// (original_source's cxa_mqtt_rpc_node_root.c prefixLen_bytes; spec.md's
// Open Questions note treats this root-side computation as authoritative
// over the sibling node.c variant).
func (r *Root) prefixLen() int {
	if r.prefix == "" {
		return 0
	}
	return len(r.prefix) + 1
}

func (r *Root) onPublish(topic string, payload []byte, retain bool) {
	if len(payload) < 2 || len(topic) < r.prefixLen() {
		if r.log != nil {
			r.log.Warnf("malformed request: %d bytes", len(payload))
		}
		return
	}
	id := binary.BigEndian.Uint16(payload[:2])
	params := payload[2:]

	rest := topic[r.prefixLen():]
	r.dispatch(&r.Node, rest, id, params, topic)
}

// dispatch walks rest (the topic with the root's prefix already stripped)
// segment by segment, matching each against currNode's own name, then
// either descending into a child node or invoking a method/catch-all
// (spec.md §4.6 steps 2-4; grounded on
// original_source/cxa_mqtt_rpc_node_root.c's mqttClientCb_onPublish).
func (r *Root) dispatch(currNode *Node, rest string, id uint16, params []byte, origTopic string) {
	for len(rest) > 0 {
		name := currNode.name
		if len(name) > len(rest) || rest[:len(name)] != name {
			r.warnAndRespond(origTopic, id, StatusMalformedPath, "unknown node")
			return
		}
		rest = rest[len(name):]

		if len(rest) < 1 || rest[0] != '/' {
			r.warnAndRespond(origTopic, id, StatusMalformedPath, "malformed path")
			return
		}
		rest = rest[1:]

		if len(rest) > len(ReqPrefix) && rest[:len(ReqPrefix)] == ReqPrefix {
			methodName := rest[len(ReqPrefix):]
			if cb := currNode.findMethod(methodName); cb != nil {
				var retParams []byte
				status := cb(currNode, params, &retParams)
				r.sendResponse(origTopic, id, status, retParams)
				return
			}
			if currNode.catchAll != nil {
				fullMethod := ReqPrefix + methodName
				if currNode.catchAll(currNode, fullMethod, id, params) {
					return
				}
			}
			r.warnAndRespond(origTopic, id, StatusMethodDNE, "unknown method")
			return
		}

		if child := currNode.findChildByPrefix(rest); child != nil {
			currNode = child
			continue
		}

		if currNode.catchAll != nil {
			if currNode.catchAll(currNode, rest, id, params) {
				return
			}
		}
		r.warnAndRespond(origTopic, id, StatusNodeDNE, "unknown node")
		return
	}
}

func (r *Root) warnAndRespond(origTopic string, id uint16, status MethodStatus, reason string) {
	if r.log != nil {
		r.log.Warnf("%s: '%s'", reason, origTopic)
	}
	r.sendResponse(origTopic, id, status, nil)
}

// sendResponse publishes to /rpcResp/<originalTopic>/<id>/<status> (spec.md
// §3, §4.6 step 5).
func (r *Root) sendResponse(origTopic string, id uint16, status MethodStatus, retParams []byte) {
	topic := RespPrefix + "/" + origTopic + "/" + itoa(uint32(id)) + "/" + itoa(uint32(status))
	if !r.client.Publish(topic, retParams, false) && r.log != nil {
		r.log.Warn("problem assembling/sending response")
	}
}

func itoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
