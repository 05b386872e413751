package central

import (
	"testing"

	"github.com/jangala-dev/protocore/btle/advpacket"
	"github.com/jangala-dev/protocore/capability"
)

type fakeClock struct{ ms uint64 }

func (c *fakeClock) NowMs() uint64 { return c.ms }

type call struct {
	name string
	args []any
}

type fakeBackend struct {
	calls      []call
	nextHandle uint8
}

func (b *fakeBackend) StartScan(active bool) bool {
	b.calls = append(b.calls, call{"StartScan", []any{active}})
	return true
}
func (b *fakeBackend) StopScan() { b.calls = append(b.calls, call{"StopScan", nil}) }
func (b *fakeBackend) Connect(addr capability.EUI48, isRandom bool) bool {
	b.calls = append(b.calls, call{"Connect", []any{addr, isRandom}})
	return true
}
func (b *fakeBackend) Disconnect(handle uint8) {
	b.calls = append(b.calls, call{"Disconnect", []any{handle}})
}
func (b *fakeBackend) DiscoverServices(handle uint8, serviceUUID string) bool {
	b.calls = append(b.calls, call{"DiscoverServices", []any{handle, serviceUUID}})
	return true
}
func (b *fakeBackend) DiscoverCharacteristics(handle uint8, serviceHandle uint16, characteristicUUID string) bool {
	b.calls = append(b.calls, call{"DiscoverCharacteristics", []any{handle, serviceHandle, characteristicUUID}})
	return true
}
func (b *fakeBackend) ReadCharacteristicValue(handle uint8, characteristicHandle uint16) bool {
	b.calls = append(b.calls, call{"ReadCharacteristicValue", []any{handle, characteristicHandle}})
	return true
}
func (b *fakeBackend) WriteCharacteristicValue(handle uint8, characteristicHandle uint16, data []byte, withResponse bool) bool {
	b.calls = append(b.calls, call{"WriteCharacteristicValue", []any{handle, characteristicHandle, data, withResponse}})
	return true
}
func (b *fakeBackend) WriteCCCD(handle uint8, characteristicHandle uint16, enable bool) bool {
	b.calls = append(b.calls, call{"WriteCCCD", []any{handle, characteristicHandle, enable}})
	return true
}
func (b *fakeBackend) RequestRSSI(addr capability.EUI48) bool {
	b.calls = append(b.calls, call{"RequestRSSI", []any{addr}})
	return true
}

type recordingListener struct {
	scanStarts    []bool
	opens         []capability.EUI48
	closes        []capability.EUI48
	readCompletes []struct {
		success bool
		data    []byte
	}
	writeCompletes []bool
	rssiUpdates    []int
}

func (l *recordingListener) OnScanStart(success bool) { l.scanStarts = append(l.scanStarts, success) }
func (l *recordingListener) OnScanStop()               {}
func (l *recordingListener) OnAdvertRx(pkt *advpacket.Packet) {}
func (l *recordingListener) OnConnectionOpened(addr capability.EUI48) {
	l.opens = append(l.opens, addr)
}
func (l *recordingListener) OnConnectionClosed(addr capability.EUI48, reason uint16) {
	l.closes = append(l.closes, addr)
}
func (l *recordingListener) OnReadComplete(addr capability.EUI48, serviceUUID, characteristicUUID string, success bool, data []byte) {
	l.readCompletes = append(l.readCompletes, struct {
		success bool
		data    []byte
	}{success, data})
}
func (l *recordingListener) OnWriteComplete(addr capability.EUI48, serviceUUID, characteristicUUID string, success bool) {
	l.writeCompletes = append(l.writeCompletes, success)
}
func (l *recordingListener) OnCharacteristicValueUpdated(addr capability.EUI48, characteristicHandle uint16, data []byte) {
}
func (l *recordingListener) OnRSSIUpdated(addr capability.EUI48, rssi int) {
	l.rssiUpdates = append(l.rssiUpdates, rssi)
}

func newListener() (*recordingListener, Listener) {
	r := &recordingListener{}
	return r, r
}

func TestStartConnectionPoolExhausted(t *testing.T) {
	be := &fakeBackend{}
	c := New(be, &fakeClock{}, nil, 1)
	addr1 := capability.EUI48{1, 2, 3, 4, 5, 6}
	addr2 := capability.EUI48{1, 2, 3, 4, 5, 7}

	if !c.StartConnection(addr1, false) {
		t.Fatal("expected first connection to succeed")
	}
	if c.StartConnection(addr2, false) {
		t.Fatal("expected second connection to fail: pool exhausted")
	}
}

func TestScanStartIdempotent(t *testing.T) {
	be := &fakeBackend{}
	c := New(be, &fakeClock{}, nil, 1)
	rec, l := newListener()
	c.AddListener(l)

	c.StartScan(true)
	c.StartScan(true)

	scanCalls := 0
	for _, call := range be.calls {
		if call.name == "StartScan" {
			scanCalls++
		}
	}
	if scanCalls != 1 {
		t.Fatalf("expected exactly one backend StartScan call, got %d", scanCalls)
	}
	if len(rec.scanStarts) != 2 || !rec.scanStarts[0] || !rec.scanStarts[1] {
		t.Fatalf("expected two success notifications, got %+v", rec.scanStarts)
	}
}

// TestCharacteristicReadCacheMiss exercises spec.md §8 scenario S6: start a
// connection, observe connection_opened, issue a read with no cached
// handles, and confirm the ordering service-resolve -> characteristic-
// resolve -> read, with a single terminal read_complete(success=true).
func TestCharacteristicReadCacheMiss(t *testing.T) {
	be := &fakeBackend{}
	c := New(be, &fakeClock{}, nil, 2)
	rec, l := newListener()
	c.AddListener(l)

	addr := capability.EUI48{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}
	if !c.StartConnection(addr, false) {
		t.Fatal("StartConnection failed")
	}
	c.OnConnectionOpened(addr, 1)
	if len(rec.opens) != 1 {
		t.Fatalf("expected one connection_opened notification")
	}

	c.ReadCharacteristic(addr, "180F", "2A19")

	if be.calls[len(be.calls)-1].name != "DiscoverServices" {
		t.Fatalf("expected DiscoverServices to be issued, got %+v", be.calls)
	}

	c.OnGattService(1, "180F", 0x10)
	c.OnGattProcedureCompleted(1, 0)

	if be.calls[len(be.calls)-1].name != "DiscoverCharacteristics" {
		t.Fatalf("expected DiscoverCharacteristics next, got %+v", be.calls)
	}

	c.OnGattCharacteristic(1, "2A19", 0x12)
	c.OnGattProcedureCompleted(1, 0)

	if be.calls[len(be.calls)-1].name != "ReadCharacteristicValue" {
		t.Fatalf("expected ReadCharacteristicValue next, got %+v", be.calls)
	}

	c.OnGattCharacteristicValue(1, 0x12, 0, []byte{0x64})
	c.OnGattProcedureCompleted(1, 0)

	if len(rec.readCompletes) != 1 {
		t.Fatalf("expected exactly one read_complete, got %d", len(rec.readCompletes))
	}
	if !rec.readCompletes[0].success || string(rec.readCompletes[0].data) != "\x64" {
		t.Fatalf("unexpected read_complete: %+v", rec.readCompletes[0])
	}

	// second read for the same characteristic should hit the cache and
	// skip straight to the read.
	c.ReadCharacteristic(addr, "180F", "2A19")
	if be.calls[len(be.calls)-1].name != "ReadCharacteristicValue" {
		t.Fatalf("expected cached read to skip resolution, got %+v", be.calls)
	}
}

func TestBusyRejectsConcurrentRead(t *testing.T) {
	be := &fakeBackend{}
	c := New(be, &fakeClock{}, nil, 1)
	rec, l := newListener()
	c.AddListener(l)

	addr := capability.EUI48{1, 1, 1, 1, 1, 1}
	c.StartConnection(addr, false)
	c.OnConnectionOpened(addr, 1)

	c.ReadCharacteristic(addr, "svc", "chr")
	c.ReadCharacteristic(addr, "svc", "chr") // should be rejected: busy

	if len(rec.readCompletes) != 1 || rec.readCompletes[0].success {
		t.Fatalf("expected exactly one failed read_complete for the busy request, got %+v", rec.readCompletes)
	}
}

func TestUpdateRSSIAndMaxConnections(t *testing.T) {
	be := &fakeBackend{}
	c := New(be, &fakeClock{}, nil, 3)
	if c.MaxConnections() != 3 {
		t.Fatalf("MaxConnections = %d, want 3", c.MaxConnections())
	}

	addr := capability.EUI48{9, 9, 9, 9, 9, 9}
	if !c.UpdateRSSI(addr) {
		t.Fatal("expected RequestRSSI to be accepted")
	}

	rec, l := newListener()
	c.AddListener(l)
	c.OnRSSIUpdated(addr, -67)
	if len(rec.rssiUpdates) != 1 || rec.rssiUpdates[0] != -67 {
		t.Fatalf("expected one RSSI update of -67, got %+v", rec.rssiUpdates)
	}
}

func TestConnectionClosedFreesSlot(t *testing.T) {
	be := &fakeBackend{}
	c := New(be, &fakeClock{}, nil, 1)
	rec, l := newListener()
	c.AddListener(l)

	addr := capability.EUI48{2, 2, 2, 2, 2, 2}
	c.StartConnection(addr, false)
	c.OnConnectionOpened(addr, 5)
	c.OnConnectionClosed(5, 0)

	if len(rec.closes) != 1 {
		t.Fatalf("expected one connection_closed notification")
	}
	if !c.StartConnection(addr, false) {
		t.Fatal("expected slot to be reusable after close")
	}
}
