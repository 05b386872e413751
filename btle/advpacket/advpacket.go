// Package advpacket iterates BTLE advertisement data (spec.md §3
// "Advertisement packet", §4.9): a length-prefixed chain of AD structures
// over a borrowed byte slice, with lazy per-field parsing — no field is
// decoded until GetField is called, and no bytes are copied.
//
// Grounded on original_source/src/btle/cxa_btle_advPacket.c (the
// index-by-rescan field walk: GetNumFields/GetField both re-walk the
// length-prefixed chain from the start rather than caching an index,
// trading a little CPU for zero extra storage — matching spec.md's
// "does not copy" design note).
package advpacket

import "github.com/jangala-dev/protocore/capability"

// FieldType is an AD structure's type byte (spec.md §4.9).
type FieldType uint8

const (
	FieldFlags                  FieldType = 0x01
	FieldIncompleteServiceUUIDs FieldType = 0x06
	FieldCompleteServiceUUIDs   FieldType = 0x07
	FieldTxPower                FieldType = 0x0A
	FieldManufacturerData       FieldType = 0xFF
)

// uuidSize is the byte length of a 128-bit BTLE service UUID.
const uuidSize = 16

// Field is one decoded AD structure. Only the members matching Type are
// meaningful.
type Field struct {
	Length  uint8
	Type    FieldType
	Flags   uint8
	TxPower int8

	// CompanyID/ManufacturerData are populated for FieldManufacturerData.
	CompanyID        uint16
	ManufacturerData []byte

	// ServiceUUIDBytes holds the raw concatenated 16-byte UUIDs for
	// FieldIncompleteServiceUUIDs/FieldCompleteServiceUUIDs; use
	// NumUUIDs/UUID to access individual entries.
	ServiceUUIDBytes []byte
}

// NumUUIDs reports how many complete 16-byte UUIDs ServiceUUIDBytes holds.
func (f *Field) NumUUIDs() int { return len(f.ServiceUUIDBytes) / uuidSize }

// UUID returns the raw 16 bytes of the i'th UUID in this field.
func (f *Field) UUID(i int) ([]byte, bool) {
	if i < 0 || (i+1)*uuidSize > len(f.ServiceUUIDBytes) {
		return nil, false
	}
	return f.ServiceUUIDBytes[i*uuidSize : (i+1)*uuidSize], true
}

// Packet is one received advertisement: a source address, an RSSI
// reading, and a view over the raw AD-structure data section
// (spec.md §3 "Advertisement packet").
type Packet struct {
	Addr            capability.EUI48
	IsRandomAddress bool
	RSSI            int

	data []byte
}

// New constructs a Packet over data (not copied — the caller must keep it
// alive for the Packet's lifetime) and validates that the AD-structure
// chain it contains is well-formed.
func New(addr capability.EUI48, isRandom bool, rssi int, data []byte) (*Packet, bool) {
	p := &Packet{Addr: addr, IsRandomAddress: isRandom, RSSI: rssi, data: data}
	if _, ok := p.NumFields(); !ok {
		return nil, false
	}
	return p, true
}

// nextFieldResult is getByteIndexOfNextField's outcome.
type nextFieldResult uint8

const (
	nextDone nextFieldResult = iota
	nextMore
	nextInvalid
)

func (p *Packet) nextFieldIndex(curr int) (int, nextFieldResult) {
	if curr == len(p.data) {
		return 0, nextDone
	}
	if curr > len(p.data) {
		return 0, nextInvalid
	}
	fieldLen := int(p.data[curr])
	if fieldLen == 0 || curr+fieldLen+1 > len(p.data) {
		return 0, nextInvalid
	}
	return curr + fieldLen + 1, nextMore
}

// NumFields walks the AD-structure chain and counts well-formed fields.
func (p *Packet) NumFields() (int, bool) {
	n := 0
	idx := 0
	for {
		next, result := p.nextFieldIndex(idx)
		switch result {
		case nextDone:
			return n, true
		case nextMore:
			n++
			idx = next
		default:
			return 0, false
		}
	}
}

// GetField decodes the i'th AD structure. Re-walks the chain from the
// start each call (spec.md §4.9, grounded on the original's re-scan
// design — no cached index, no allocation beyond the returned Field).
func (p *Packet) GetField(i int) (Field, bool) {
	idx := 0
	for n := 0; ; n++ {
		if n == i {
			return p.parseField(idx)
		}
		next, result := p.nextFieldIndex(idx)
		if result != nextMore {
			return Field{}, false
		}
		idx = next
	}
}

func (p *Packet) parseField(idx int) (Field, bool) {
	if idx+2 > len(p.data) {
		return Field{}, false
	}
	f := Field{Length: p.data[idx], Type: FieldType(p.data[idx+1])}
	switch f.Type {
	case FieldFlags:
		if idx+3 > len(p.data) {
			return Field{}, false
		}
		f.Flags = p.data[idx+2]
	case FieldTxPower:
		if idx+3 > len(p.data) {
			return Field{}, false
		}
		f.TxPower = int8(p.data[idx+2])
	case FieldManufacturerData:
		if idx+4 > len(p.data) || f.Length < 3 {
			return Field{}, false
		}
		f.CompanyID = uint16(p.data[idx+2]) | uint16(p.data[idx+3])<<8
		manLen := int(f.Length) - 3
		if idx+4+manLen > len(p.data) {
			return Field{}, false
		}
		f.ManufacturerData = p.data[idx+4 : idx+4+manLen]
	case FieldIncompleteServiceUUIDs, FieldCompleteServiceUUIDs:
		if f.Length < 1 {
			return Field{}, false
		}
		uuidLen := int(f.Length) - 1
		if idx+2+uuidLen > len(p.data) {
			return Field{}, false
		}
		f.ServiceUUIDBytes = p.data[idx+2 : idx+2+uuidLen]
	}
	return f, true
}

// IsAdvertisingService reports whether any service-UUID field (complete
// or incomplete) lists uuid (raw 16 bytes, spec.md §4.9).
func (p *Packet) IsAdvertisingService(uuid []byte) bool {
	n, ok := p.NumFields()
	if !ok {
		return false
	}
	for i := 0; i < n; i++ {
		f, ok := p.GetField(i)
		if !ok || (f.Type != FieldIncompleteServiceUUIDs && f.Type != FieldCompleteServiceUUIDs) {
			continue
		}
		for j := 0; j < f.NumUUIDs(); j++ {
			u, ok := f.UUID(j)
			if ok && bytesEqual(u, uuid) {
				return true
			}
		}
	}
	return false
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
