package advpacket

import (
	"testing"

	"github.com/jangala-dev/protocore/capability"
)

func addr() capability.EUI48 {
	return capability.EUI48{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}
}

func TestFlagsField(t *testing.T) {
	data := []byte{0x02, byte(FieldFlags), 0x06}
	p, ok := New(addr(), false, -40, data)
	if !ok {
		t.Fatal("expected valid packet")
	}
	n, ok := p.NumFields()
	if !ok || n != 1 {
		t.Fatalf("NumFields = %d, %v", n, ok)
	}
	f, ok := p.GetField(0)
	if !ok || f.Type != FieldFlags || f.Flags != 0x06 {
		t.Fatalf("unexpected field: %+v", f)
	}
}

func TestTxPowerField(t *testing.T) {
	data := []byte{0x02, byte(FieldTxPower), 0xEC} // -20 as int8
	p, _ := New(addr(), false, -40, data)
	f, ok := p.GetField(0)
	if !ok || f.TxPower != -20 {
		t.Fatalf("TxPower = %d, ok=%v", f.TxPower, ok)
	}
}

func TestManufacturerDataField(t *testing.T) {
	data := []byte{0x06, byte(FieldManufacturerData), 0x4C, 0x00, 0x01, 0x02, 0x03}
	p, ok := New(addr(), false, -40, data)
	if !ok {
		t.Fatal("expected valid packet")
	}
	f, ok := p.GetField(0)
	if !ok {
		t.Fatal("expected field")
	}
	if f.CompanyID != 0x004C {
		t.Fatalf("CompanyID = %#x", f.CompanyID)
	}
	want := []byte{0x01, 0x02, 0x03}
	if len(f.ManufacturerData) != len(want) {
		t.Fatalf("ManufacturerData = % x", f.ManufacturerData)
	}
	for i := range want {
		if f.ManufacturerData[i] != want[i] {
			t.Fatalf("ManufacturerData = % x, want % x", f.ManufacturerData, want)
		}
	}
}

func TestServiceUUIDsAndIsAdvertisingService(t *testing.T) {
	uuid := make([]byte, 16)
	for i := range uuid {
		uuid[i] = byte(i + 1)
	}
	data := append([]byte{byte(len(uuid) + 1), byte(FieldCompleteServiceUUIDs)}, uuid...)

	p, ok := New(addr(), true, -55, data)
	if !ok {
		t.Fatal("expected valid packet")
	}
	if !p.IsAdvertisingService(uuid) {
		t.Fatal("expected service match")
	}
	other := make([]byte, 16)
	if p.IsAdvertisingService(other) {
		t.Fatal("unexpected service match")
	}

	f, ok := p.GetField(0)
	if !ok || f.NumUUIDs() != 1 {
		t.Fatalf("unexpected field: %+v", f)
	}
	got, ok := f.UUID(0)
	if !ok || string(got) != string(uuid) {
		t.Fatalf("UUID(0) = % x, want % x", got, uuid)
	}
}

func TestMultipleFields(t *testing.T) {
	data := []byte{
		0x02, byte(FieldFlags), 0x06,
		0x02, byte(FieldTxPower), 0x00,
	}
	p, ok := New(addr(), false, -40, data)
	if !ok {
		t.Fatal("expected valid packet")
	}
	n, ok := p.NumFields()
	if !ok || n != 2 {
		t.Fatalf("NumFields = %d, %v", n, ok)
	}
	f0, _ := p.GetField(0)
	f1, _ := p.GetField(1)
	if f0.Type != FieldFlags || f1.Type != FieldTxPower {
		t.Fatalf("unexpected field order: %+v %+v", f0, f1)
	}
}

func TestMalformedLengthRejected(t *testing.T) {
	data := []byte{0x05, byte(FieldFlags), 0x06} // declares more bytes than present
	if _, ok := New(addr(), false, -40, data); ok {
		t.Fatal("expected rejection of malformed AD chain")
	}
}

func TestZeroLengthFieldRejected(t *testing.T) {
	data := []byte{0x00}
	if _, ok := New(addr(), false, -40, data); ok {
		t.Fatal("expected rejection of zero-length field")
	}
}

func TestEmptyPacketHasNoFields(t *testing.T) {
	p, ok := New(addr(), false, -40, nil)
	if !ok {
		t.Fatal("expected empty packet to be valid")
	}
	n, ok := p.NumFields()
	if !ok || n != 0 {
		t.Fatalf("NumFields = %d, %v", n, ok)
	}
}
