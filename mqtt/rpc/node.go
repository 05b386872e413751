// Package rpc implements protocore's MQTT RPC tree (spec.md §3 "RPC node",
// §4.6): a hierarchical node tree with method dispatch, notification
// publish, and (package rpc's Bridge) a remote-client-authenticating
// bridge that remaps topics between a downstream framed stream and the
// upstream MQTT client.
//
// Grounded on original_source/src/mqtt/rpc/cxa_mqtt_rpc_node.c (node
// tree shape, method/catch-all tables, getTopicForNode/publishNotification)
// and cxa_mqtt_rpc_node_root.c (dispatch walk — see root.go). Arena-style
// ownership (spec.md §9 "cyclic / back-reference ownership"): each Node
// holds a parent pointer and a slice of child pointers built at
// construction time, not freed/reused at runtime, matching the teacher's
// services/hal tree-of-drivers composition pattern rather than an
// index-based arena (no pool churn: nodes are registered once at startup
// and live for the process lifetime, like the teacher's driver tree).
package rpc

import (
	"github.com/jangala-dev/protocore/container"
	"github.com/jangala-dev/protocore/errcode"
	"github.com/jangala-dev/protocore/logx"
)

// MaxNameLen bounds a node's own path segment (spec.md §3 MAX_NAME_LEN).
const MaxNameLen = 16

// MaxSubNodes and MaxMethods bound a node's children/method tables
// (original's CXA_MQTT_RPCNODE_MAXNUM_SUBNODES/_METHODS).
const (
	MaxSubNodes = 4
	MaxMethods  = 8
)

// ReqPrefix marks a request-method path segment; RespPrefix roots every
// response topic (spec.md §3, §4.6).
const (
	ReqPrefix  = "::"
	RespPrefix = "/rpcResp"
)

// MethodStatus is a method call's outcome, published as the numeric
// suffix of a response topic (spec.md §4.6, §7).
type MethodStatus uint8

const (
	StatusSuccess        MethodStatus = 0
	StatusMalformedPath  MethodStatus = 1
	StatusNodeDNE        MethodStatus = 2
	StatusMethodDNE      MethodStatus = 3
	StatusInvalidParams  MethodStatus = 4
	StatusBadState       MethodStatus = 5
	StatusInternal       MethodStatus = 255
)

// Code maps a MethodStatus onto protocore's shared errcode taxonomy, for
// callers that want a single error type across layers.
func (s MethodStatus) Code() errcode.Code {
	switch s {
	case StatusSuccess:
		return errcode.OK
	case StatusMalformedPath:
		return errcode.RpcMalformedPath
	case StatusNodeDNE:
		return errcode.RpcNodeDNE
	case StatusMethodDNE:
		return errcode.RpcMethodDNE
	case StatusInvalidParams:
		return errcode.RpcInvalidParams
	case StatusBadState:
		return errcode.RpcBadState
	default:
		return errcode.RpcInternal
	}
}

// MethodCallback implements one RPC method. params is the request payload
// after the 2-byte id prefix; the callback stores its return payload in
// *retParams (nil on entry; dispatch does not bound its size) and reports
// a status.
type MethodCallback func(node *Node, params []byte, retParams *[]byte) MethodStatus

// CatchAllCallback handles a path segment that matched no child node or
// method (spec.md §4.6 step 4). remainingTopic is everything after this
// node's own name (and separator). Returning true means handled — no
// automatic DNE response is published.
type CatchAllCallback func(node *Node, remainingTopic string, id uint16, payload []byte) bool

type methodEntry struct {
	name string
	cb   MethodCallback
}

// Node is one tree node. The tree's root must be a *Root (constructed via
// NewRoot); every other node is constructed via NewChild (or NewBridge,
// for a bridge node).
type Node struct {
	name    string
	parent  *Node
	root    *Root
	log     *logx.Logger
	subs    *container.FixedArray[*Node]
	methods *container.FixedArray[methodEntry]

	catchAll CatchAllCallback
}

func newNode(name string, parent *Node, root *Root, log *logx.Logger) *Node {
	return &Node{
		name:    name,
		parent:  parent,
		root:    root,
		log:     log,
		subs:    container.NewFixedArray[*Node](MaxSubNodes),
		methods: container.NewFixedArray[methodEntry](MaxMethods),
	}
}

// NewChild constructs a node as a child of parent, registering itself in
// parent's sub-node table. Returns (nil, false) if parent's table is full.
func NewChild(parent *Node, name string) (*Node, bool) {
	n := newNode(name, parent, parent.root, parent.log)
	if !parent.subs.Append(n) {
		return nil, false
	}
	return n, true
}

// Name returns this node's own path segment.
func (n *Node) Name() string { return n.name }

// Parent returns this node's parent, or nil for the root.
func (n *Node) Parent() *Node { return n.parent }

// AddMethod registers a method callback under name. Returns false if the
// method table is full.
func (n *Node) AddMethod(name string, cb MethodCallback) bool {
	return n.methods.Append(methodEntry{name: name, cb: cb})
}

// SetCatchAll installs (or clears, with nil) the subtree-forwarding
// fallback handler (spec.md §4.6 step 4).
func (n *Node) SetCatchAll(cb CatchAllCallback) { n.catchAll = cb }

// findMethod returns the registered callback for name, or nil.
func (n *Node) findMethod(name string) MethodCallback {
	var found MethodCallback
	n.methods.ForEach(func(_ int, m methodEntry) bool {
		if m.name == name {
			found = m.cb
			return false
		}
		return true
	})
	return found
}

// findChildByPrefix returns the first child whose name is a prefix of
// rest (original_source's cxa_stringUtils_startsWith(currPath,
// (*currSubNode)->name) match — the remaining-topic string is not
// pre-split into '/'-delimited segments; the separator is checked on the
// *next* loop iteration, after the matched child becomes currNode).
func (n *Node) findChildByPrefix(rest string) *Node {
	var found *Node
	n.subs.ForEach(func(_ int, c *Node) bool {
		if len(c.name) <= len(rest) && rest[:len(c.name)] == c.name {
			found = c
			return false
		}
		return true
	})
	return found
}

// Path returns this node's full topic path: prefix/ancestor0.../self.name
// (spec.md §3 "a node's full path"). Node.root is shared by every node in
// the tree, so the prefix only needs reading off the root once, rather
// than requiring virtual dispatch through the parent chain.
func (n *Node) Path() string {
	var segs []string
	for cur := n; cur != nil; cur = cur.parent {
		segs = append(segs, cur.name)
	}
	path := segs[len(segs)-1]
	for i := len(segs) - 2; i >= 0; i-- {
		path += "/" + segs[i]
	}
	if n.root != nil && n.root.prefix != "" {
		path = n.root.prefix + "/" + path
	}
	return path
}

// PublishNotification publishes payload to <node-path>/^^<name> via the
// tree's MQTT client (spec.md §4.6 "publish_notification").
func (n *Node) PublishNotification(name string, payload []byte) bool {
	client := n.mqttClient()
	if client == nil {
		return false
	}
	topic := n.Path() + "/^^" + name
	ok := client.Publish(topic, payload, false)
	if !ok && n.log != nil {
		n.log.Warnf("error publishing notification '%s'", name)
	}
	return ok
}

func (n *Node) mqttClient() mqttPublisher {
	if n.root != nil {
		return n.root.client
	}
	return nil
}
