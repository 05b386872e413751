// Package central implements protocore's BTLE central connection pool
// (spec.md §3 "BTLE connection", §4.8): a fixed-size pool of connection
// slots, each driven by its own fsm.FSM through Idle -> Connecting ->
// Connected -> {ResolvingService -> ResolvingCharacteristic ->
// PendingProcedure -> Ready} -> Closing -> Idle, demultiplexing backend
// events by connection handle (post-open) or by address (pre-open).
//
// Grounded on
// original_source/src/btle/siLabsBgApi/cxa_siLabsBgApi_btle_central.c:
// getConnectionByAddress/getConnectionByHandle demux the BGAPI event
// switch to the right slot; start_scan/stop_scan/start_connection/
// stop_connection/read/write/change_notifications are re-expressed here
// as Central's public methods. The sibling cxa_siLabsBgApi_btle_connection
// (per-slot sub-FSM) wasn't present in the retrieved sources, so its
// resolve-then-act state sequence is built directly from spec.md §4.8's
// lifecycle description and the S6 scenario's expected event ordering.
//
// Per spec.md §9's redesign note on "cyclic / back-reference ownership":
// connSlot holds no pointer back to Central. Central owns a fixed []connSlot
// and builds each slot's FSM callbacks as closures over its own index,
// formed once at construction and never escaping Central's lifetime —
// the arena is the slice, the "handle" is the slot's integer index.
package central

import (
	"github.com/jangala-dev/protocore/btle/advpacket"
	"github.com/jangala-dev/protocore/capability"
	"github.com/jangala-dev/protocore/container"
	"github.com/jangala-dev/protocore/fsm"
	"github.com/jangala-dev/protocore/logx"
)

// MaxListeners bounds Central's listener table (original's
// CXA_BTLE_CLIENT_MAXNUM_LISTENERS).
const MaxListeners = 2

// MaxCachedHandles bounds a connection slot's resolved-handle cache.
const MaxCachedHandles = 4

// Backend is the radio command surface a BTLE stack (e.g. a BGAPI or
// tinygo.org/x/drivers/bluetooth binding) must provide. Every method
// issues a command and returns whether the backend accepted it;
// completion arrives later via Central's On* event methods (spec.md §9
// "polymorphism via embedded super structs" re-cast as an interface).
type Backend interface {
	StartScan(active bool) bool
	StopScan()
	Connect(addr capability.EUI48, isRandom bool) bool
	Disconnect(handle uint8)
	DiscoverServices(handle uint8, serviceUUID string) bool
	DiscoverCharacteristics(handle uint8, serviceHandle uint16, characteristicUUID string) bool
	ReadCharacteristicValue(handle uint8, characteristicHandle uint16) bool
	WriteCharacteristicValue(handle uint8, characteristicHandle uint16, data []byte, withResponse bool) bool
	WriteCCCD(handle uint8, characteristicHandle uint16, enable bool) bool

	// RequestRSSI asks the backend to refresh its RSSI reading for addr
	// without requiring a full connection (original_source's
	// cxa_siLabsBgApi_btle_central "get_rssi" follow-up, see SPEC_FULL.md
	// §12). Completion arrives via Central.OnRSSIUpdated.
	RequestRSSI(addr capability.EUI48) bool
}

// Listener receives Central's notifications (spec.md §4.8's backend event
// list, demultiplexed and re-delivered as completions/lifecycle events).
type Listener interface {
	OnScanStart(success bool)
	OnScanStop()
	OnAdvertRx(pkt *advpacket.Packet)
	OnConnectionOpened(addr capability.EUI48)
	OnConnectionClosed(addr capability.EUI48, reason uint16)
	OnReadComplete(addr capability.EUI48, serviceUUID, characteristicUUID string, success bool, data []byte)
	OnWriteComplete(addr capability.EUI48, serviceUUID, characteristicUUID string, success bool)
	OnCharacteristicValueUpdated(addr capability.EUI48, characteristicHandle uint16, data []byte)
	OnRSSIUpdated(addr capability.EUI48, rssi int)
}

type procOp uint8

const (
	opNone procOp = iota
	opRead
	opWrite
	opCCCD
)

type handleCacheEntry struct {
	serviceUUID, characteristicUUID string
	serviceHandle, characteristicHandle uint16
}

// connSlot is plain data: no back-pointer to Central (see package doc).
type connSlot struct {
	used      bool
	addr      capability.EUI48
	isRandom  bool
	handle    uint8
	hasHandle bool

	machine *fsm.FSM
	cache   *container.FixedArray[handleCacheEntry]

	pendingOp                procOp
	pendingServiceUUID       string
	pendingCharacteristicUUID string
	pendingServiceHandle     uint16
	pendingCharHandle        uint16
	pendingWriteData         []byte
	pendingEnable            bool
	pendingReadData          []byte
}

const (
	stateIdle fsm.StateID = iota
	stateConnecting
	stateConnected
	stateResolvingService
	stateResolvingCharacteristic
	statePendingProcedure
	stateReady
	stateClosing
)

// Central owns a fixed pool of connection slots, sized by New's maxConns
// argument (spec.md §4.8 "a central owns a pool of MAX_CONNS connection
// slots").
type Central struct {
	backend Backend
	clock   fsm.Clock
	log     *logx.Logger

	conns []connSlot

	listeners *container.FixedArray[Listener]
	scanning  bool
}

// New constructs a Central with maxConns connection slots.
func New(backend Backend, clock fsm.Clock, log *logx.Logger, maxConns int) *Central {
	c := &Central{
		backend:   backend,
		clock:     clock,
		log:       log,
		conns:     make([]connSlot, maxConns),
		listeners: container.NewFixedArray[Listener](MaxListeners),
	}
	for i := range c.conns {
		c.initSlot(i)
	}
	return c
}

func (c *Central) initSlot(i int) {
	s := &c.conns[i]
	s.cache = container.NewFixedArray[handleCacheEntry](MaxCachedHandles)
	s.machine = fsm.New(c.clock, 8)
	s.machine.AddState(stateIdle, "idle", nil, nil, nil, nil)
	s.machine.AddState(stateConnecting, "connecting", nil, nil, nil, nil)
	s.machine.AddState(stateConnected, "connected", nil, nil, nil, nil)
	s.machine.AddState(stateResolvingService, "resolving_service", func() { c.onEnterResolvingService(i) }, nil, nil, nil)
	s.machine.AddState(stateResolvingCharacteristic, "resolving_characteristic", func() { c.onEnterResolvingCharacteristic(i) }, nil, nil, nil)
	s.machine.AddState(statePendingProcedure, "pending_procedure", func() { c.onEnterPendingProcedure(i) }, nil, nil, nil)
	s.machine.AddState(stateReady, "ready", nil, nil, nil, nil)
	s.machine.AddState(stateClosing, "closing", nil, nil, nil, nil)
	s.machine.Start(stateIdle)
}

// AddListener registers l. Returns false if the listener table is full.
func (c *Central) AddListener(l Listener) bool { return c.listeners.Append(l) }

// ---------------------------------------------------------------------
// scanning
// ---------------------------------------------------------------------

// StartScan begins GAP discovery. Idempotent while already scanning
// (spec.md §8 boundary behaviour: "no new radio command issued").
func (c *Central) StartScan(active bool) {
	if c.scanning {
		c.notifyScanStart(true)
		return
	}
	if !c.backend.StartScan(active) {
		c.notifyScanStart(false)
		return
	}
	c.scanning = true
	c.notifyScanStart(true)
}

// StopScan ends the GAP procedure.
func (c *Central) StopScan() {
	if !c.scanning {
		return
	}
	c.backend.StopScan()
	c.scanning = false
	c.notifyScanStop()
}

// OnScanResponse delivers a backend scan_response event: parses the raw
// advertisement bytes and fans the packet out to listeners.
func (c *Central) OnScanResponse(addr capability.EUI48, isRandom bool, rssi int, data []byte) {
	pkt, ok := advpacket.New(addr, isRandom, rssi, data)
	if !ok {
		if c.log != nil {
			c.log.Warn("malformed advert packet")
		}
		return
	}
	c.listeners.ForEach(func(_ int, l Listener) bool { l.OnAdvertRx(pkt); return true })
}

func (c *Central) notifyScanStart(success bool) {
	c.listeners.ForEach(func(_ int, l Listener) bool { l.OnScanStart(success); return true })
}
func (c *Central) notifyScanStop() {
	c.listeners.ForEach(func(_ int, l Listener) bool { l.OnScanStop(); return true })
}

// ---------------------------------------------------------------------
// connection lifecycle
// ---------------------------------------------------------------------

// StartConnection reserves a free slot and begins connecting. Returns
// false if the pool is full (spec.md §4.8).
func (c *Central) StartConnection(addr capability.EUI48, isRandom bool) bool {
	idx := c.findUnused()
	if idx < 0 {
		return false
	}
	s := &c.conns[idx]
	s.used = true
	s.addr = addr
	s.isRandom = isRandom
	s.hasHandle = false
	s.cache.Clear()
	if !c.backend.Connect(addr, isRandom) {
		s.used = false
		return false
	}
	s.machine.TransitionNow(stateConnecting)
	return true
}

// StopConnection initiates a close if addr is known, else logs a warning
// (spec.md §4.8).
func (c *Central) StopConnection(addr capability.EUI48) {
	idx := c.findByAddr(addr)
	if idx < 0 {
		if c.log != nil {
			c.log.Warnf("not connected to '%v'", addr)
		}
		return
	}
	s := &c.conns[idx]
	if s.hasHandle {
		c.backend.Disconnect(s.handle)
	}
	s.machine.TransitionNow(stateClosing)
}

// OnConnectionOpened delivers a backend connection_opened event.
func (c *Central) OnConnectionOpened(addr capability.EUI48, handle uint8) {
	idx := c.findByAddr(addr)
	if idx < 0 {
		return
	}
	s := &c.conns[idx]
	s.handle = handle
	s.hasHandle = true
	s.machine.TransitionNow(stateConnected)
	addrCopy := s.addr
	c.listeners.ForEach(func(_ int, l Listener) bool { l.OnConnectionOpened(addrCopy); return true })
}

// OnConnectionClosed delivers a backend connection_closed event and frees
// the slot back to the pool.
func (c *Central) OnConnectionClosed(handle uint8, reason uint16) {
	idx := c.findByHandle(handle)
	if idx < 0 {
		return
	}
	s := &c.conns[idx]
	addr := s.addr
	s.used = false
	s.hasHandle = false
	s.pendingOp = opNone
	s.cache.Clear()
	s.machine.TransitionNow(stateIdle)
	c.listeners.ForEach(func(_ int, l Listener) bool { l.OnConnectionClosed(addr, reason); return true })
}

// ---------------------------------------------------------------------
// GATT operations
// ---------------------------------------------------------------------

// ReadCharacteristic looks up cached handles for (serviceUUID,
// characteristicUUID); on a cache miss it resolves the service then the
// characteristic before reading (spec.md §4.8).
func (c *Central) ReadCharacteristic(addr capability.EUI48, serviceUUID, characteristicUUID string) {
	idx := c.findByAddr(addr)
	if idx < 0 || c.busy(idx) {
		c.notifyReadComplete(addr, serviceUUID, characteristicUUID, false, nil)
		return
	}
	s := &c.conns[idx]
	s.pendingOp = opRead
	s.pendingServiceUUID = serviceUUID
	s.pendingCharacteristicUUID = characteristicUUID
	s.pendingReadData = nil
	c.beginProcedure(idx)
}

// WriteCharacteristic mirrors ReadCharacteristic, using write-with-response.
func (c *Central) WriteCharacteristic(addr capability.EUI48, serviceUUID, characteristicUUID string, data []byte) {
	idx := c.findByAddr(addr)
	if idx < 0 || c.busy(idx) {
		c.notifyWriteComplete(addr, serviceUUID, characteristicUUID, false)
		return
	}
	s := &c.conns[idx]
	s.pendingOp = opWrite
	s.pendingServiceUUID = serviceUUID
	s.pendingCharacteristicUUID = characteristicUUID
	s.pendingWriteData = data
	c.beginProcedure(idx)
}

// ChangeNotifications writes the CCCD enabling/disabling notifications.
func (c *Central) ChangeNotifications(addr capability.EUI48, serviceUUID, characteristicUUID string, enable bool) {
	idx := c.findByAddr(addr)
	if idx < 0 || c.busy(idx) {
		c.notifyWriteComplete(addr, serviceUUID, characteristicUUID, false)
		return
	}
	s := &c.conns[idx]
	s.pendingOp = opCCCD
	s.pendingServiceUUID = serviceUUID
	s.pendingCharacteristicUUID = characteristicUUID
	s.pendingEnable = enable
	c.beginProcedure(idx)
}

// busy reports whether idx's slot has a GATT procedure in flight (spec.md
// §4.8 "a new read/write is rejected... if the slot is busy").
func (c *Central) busy(idx int) bool {
	id, _ := c.conns[idx].machine.CurrentStateID()
	return id != stateConnected && id != stateReady
}

func (c *Central) beginProcedure(idx int) {
	s := &c.conns[idx]
	if entry, ok := c.cached(idx); ok {
		s.pendingServiceHandle = entry.serviceHandle
		s.pendingCharHandle = entry.characteristicHandle
		s.machine.TransitionNow(statePendingProcedure)
		return
	}
	s.machine.TransitionNow(stateResolvingService)
}

func (c *Central) cached(idx int) (handleCacheEntry, bool) {
	s := &c.conns[idx]
	i := s.cache.IndexFunc(func(e handleCacheEntry) bool {
		return e.serviceUUID == s.pendingServiceUUID && e.characteristicUUID == s.pendingCharacteristicUUID
	})
	if i < 0 {
		return handleCacheEntry{}, false
	}
	e, _ := s.cache.At(i)
	return e, true
}

func (c *Central) onEnterResolvingService(idx int) {
	s := &c.conns[idx]
	if !c.backend.DiscoverServices(s.handle, s.pendingServiceUUID) {
		c.failProcedure(idx)
	}
}

func (c *Central) onEnterResolvingCharacteristic(idx int) {
	s := &c.conns[idx]
	if !c.backend.DiscoverCharacteristics(s.handle, s.pendingServiceHandle, s.pendingCharacteristicUUID) {
		c.failProcedure(idx)
	}
}

func (c *Central) onEnterPendingProcedure(idx int) {
	s := &c.conns[idx]
	var ok bool
	switch s.pendingOp {
	case opRead:
		ok = c.backend.ReadCharacteristicValue(s.handle, s.pendingCharHandle)
	case opWrite:
		ok = c.backend.WriteCharacteristicValue(s.handle, s.pendingCharHandle, s.pendingWriteData, true)
	case opCCCD:
		ok = c.backend.WriteCCCD(s.handle, s.pendingCharHandle, s.pendingEnable)
	}
	if !ok {
		c.failProcedure(idx)
	}
}

// OnGattService delivers a backend gatt_service event.
func (c *Central) OnGattService(handle uint8, uuid string, serviceHandle uint16) {
	idx := c.findByHandle(handle)
	if idx < 0 {
		return
	}
	s := &c.conns[idx]
	if uuid == s.pendingServiceUUID {
		s.pendingServiceHandle = serviceHandle
	}
}

// OnGattCharacteristic delivers a backend gatt_characteristic event.
func (c *Central) OnGattCharacteristic(handle uint8, uuid string, characteristicHandle uint16) {
	idx := c.findByHandle(handle)
	if idx < 0 {
		return
	}
	s := &c.conns[idx]
	if uuid == s.pendingCharacteristicUUID {
		s.pendingCharHandle = characteristicHandle
	}
}

// OnGattCharacteristicValue delivers a backend gatt_characteristic_value
// event: the read payload, or a subscribed notification.
func (c *Central) OnGattCharacteristicValue(handle uint8, characteristicHandle uint16, opcode uint8, data []byte) {
	idx := c.findByHandle(handle)
	if idx < 0 {
		return
	}
	s := &c.conns[idx]
	if s.pendingOp == opRead && s.pendingCharHandle == characteristicHandle {
		s.pendingReadData = data
		return
	}
	addr := s.addr
	c.listeners.ForEach(func(_ int, l Listener) bool { l.OnCharacteristicValueUpdated(addr, characteristicHandle, data); return true })
}

// OnGattProcedureCompleted delivers a backend gatt_procedure_completed
// event, advancing idx's sub-FSM (spec.md §4.8, §8 scenario S6).
func (c *Central) OnGattProcedureCompleted(handle uint8, status uint16) {
	idx := c.findByHandle(handle)
	if idx < 0 {
		return
	}
	s := &c.conns[idx]
	id, _ := s.machine.CurrentStateID()
	switch id {
	case stateResolvingService:
		if status != 0 {
			c.failProcedure(idx)
			return
		}
		s.machine.TransitionNow(stateResolvingCharacteristic)
	case stateResolvingCharacteristic:
		if status != 0 {
			c.failProcedure(idx)
			return
		}
		s.cache.Append(handleCacheEntry{
			serviceUUID: s.pendingServiceUUID, characteristicUUID: s.pendingCharacteristicUUID,
			serviceHandle: s.pendingServiceHandle, characteristicHandle: s.pendingCharHandle,
		})
		s.machine.TransitionNow(statePendingProcedure)
	case statePendingProcedure:
		c.completeProcedure(idx, status == 0)
	}
}

func (c *Central) completeProcedure(idx int, success bool) {
	s := &c.conns[idx]
	addr := s.addr
	svcUUID, chrUUID := s.pendingServiceUUID, s.pendingCharacteristicUUID
	op := s.pendingOp
	data := s.pendingReadData

	s.pendingOp = opNone
	s.pendingReadData = nil
	s.machine.TransitionNow(stateReady)

	switch op {
	case opRead:
		c.notifyReadComplete(addr, svcUUID, chrUUID, success, data)
	case opWrite, opCCCD:
		c.notifyWriteComplete(addr, svcUUID, chrUUID, success)
	}
}

func (c *Central) failProcedure(idx int) {
	c.completeProcedure(idx, false)
}

func (c *Central) notifyReadComplete(addr capability.EUI48, serviceUUID, characteristicUUID string, success bool, data []byte) {
	c.listeners.ForEach(func(_ int, l Listener) bool {
		l.OnReadComplete(addr, serviceUUID, characteristicUUID, success, data)
		return true
	})
}

func (c *Central) notifyWriteComplete(addr capability.EUI48, serviceUUID, characteristicUUID string, success bool) {
	c.listeners.ForEach(func(_ int, l Listener) bool {
		l.OnWriteComplete(addr, serviceUUID, characteristicUUID, success)
		return true
	})
}

// ---------------------------------------------------------------------
// slot lookup
// ---------------------------------------------------------------------

func (c *Central) findUnused() int {
	for i := range c.conns {
		if !c.conns[i].used {
			return i
		}
	}
	return -1
}

func (c *Central) findByAddr(addr capability.EUI48) int {
	for i := range c.conns {
		if c.conns[i].used && c.conns[i].addr.Equal(addr) {
			return i
		}
	}
	return -1
}

func (c *Central) findByHandle(handle uint8) int {
	for i := range c.conns {
		if c.conns[i].used && c.conns[i].hasHandle && c.conns[i].handle == handle {
			return i
		}
	}
	return -1
}

// StateName reports the current sub-FSM state name for the connection to
// addr, or "" if unknown — primarily useful for tests and diagnostics.
func (c *Central) StateName(addr capability.EUI48) string {
	idx := c.findByAddr(addr)
	if idx < 0 {
		return ""
	}
	return c.conns[idx].machine.CurrentStateName()
}

// MaxConnections reports the pool's fixed slot count (SPEC_FULL.md §12,
// original_source's compile-time MAX_CONNS bound).
func (c *Central) MaxConnections() int { return len(c.conns) }

// UpdateRSSI asks the backend to refresh addr's RSSI without opening a
// connection — used by a scanner tracking a device's signal strength
// between full connects (SPEC_FULL.md §12).
func (c *Central) UpdateRSSI(addr capability.EUI48) bool {
	return c.backend.RequestRSSI(addr)
}

// OnRSSIUpdated delivers the backend's RSSI-refresh completion.
func (c *Central) OnRSSIUpdated(addr capability.EUI48, rssi int) {
	c.listeners.ForEach(func(_ int, l Listener) bool { l.OnRSSIUpdated(addr, rssi); return true })
}
