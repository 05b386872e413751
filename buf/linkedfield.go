package buf

// LinkedField is a view into a Buffer describing one logical sub-range
// [start, start+len). Fields form a singly-linked chain: a child's start is
// always parent.Start()+parent.Len(), so appending to one field
// automatically moves every downstream field in the same chain (spec.md
// §3, §4.1) without anyone having to walk the chain and patch offsets by
// hand. A field is either fixed-length (length frozen when it is created)
// or variable-length (may grow/shrink via Append/InsertAt/Remove).
type LinkedField struct {
	buf       *Buffer
	parent    *LinkedField // nil only for the chain's root
	rootStart int          // meaningful only when parent == nil
	length    int
	fixed     bool
}

// InitRoot attaches a top-level field at a fixed buffer offset. Succeeds
// only if start+len <= buf.Cap().
func InitRoot(b *Buffer, start, length int) (*LinkedField, bool) {
	if start < 0 || length < 0 || start+length > b.Cap() {
		return nil, false
	}
	return &LinkedField{buf: b, rootStart: start, length: length, fixed: true}, true
}

// InitChild attaches a new field immediately after f in the chain. If
// length is negative, the child starts empty and variable-length (the
// caller will grow it with Append once the wire value is known); otherwise
// it is fixed-length at the given size.
func (f *LinkedField) InitChild(length int) (*LinkedField, bool) {
	fixed := true
	if length < 0 {
		length, fixed = 0, false
	}
	child := &LinkedField{buf: f.buf, parent: f, length: length, fixed: fixed}
	if child.Start()+child.length > f.buf.Cap() {
		return nil, false
	}
	return child, true
}

// AdoptChild attaches a child field of the given length whose bytes already
// exist in the buffer (a decoded wire field, as opposed to one grown in
// place via Append), leaving it variable-length so InsertAt/Remove can edit
// it afterwards. Unlike InitChild, a non-negative length here does not fix
// the field.
func (f *LinkedField) AdoptChild(length int) (*LinkedField, bool) {
	if length < 0 {
		return nil, false
	}
	child := &LinkedField{buf: f.buf, parent: f, length: length, fixed: false}
	if child.Start()+child.length > f.buf.Cap() {
		return nil, false
	}
	return child, true
}

// Start returns the field's absolute offset into the underlying Buffer.
func (f *LinkedField) Start() int {
	if f.parent == nil {
		return f.rootStart
	}
	return f.parent.Start() + f.parent.Len()
}

// Len returns the field's current length in bytes.
func (f *LinkedField) Len() int { return f.length }

// End returns Start()+Len().
func (f *LinkedField) End() int { return f.Start() + f.length }

// Fixed reports whether the field's length is frozen.
func (f *LinkedField) Fixed() bool { return f.fixed }

// Bytes returns the field's current contents, aliasing the buffer.
func (f *LinkedField) Bytes() []byte {
	return f.buf.Bytes()[f.Start():f.End()]
}

// Append grows a variable-length field by inserting p at its current end.
// Fails if the field is fixed-length or the underlying buffer rejects the
// insert (out of capacity).
func (f *LinkedField) Append(p []byte) bool {
	if f.fixed {
		return false
	}
	if !f.buf.Insert(f.End(), p) {
		return false
	}
	f.length += len(p)
	return true
}

// InsertAt grows a variable-length field by inserting p at local offset
// index (relative to the field's own start), shifting the rest of the
// field's own content right along with every downstream field in the chain.
func (f *LinkedField) InsertAt(index int, p []byte) bool {
	if f.fixed || index < 0 || index > f.length {
		return false
	}
	if !f.buf.Insert(f.Start()+index, p) {
		return false
	}
	f.length += len(p)
	return true
}

// Remove shrinks a variable-length field by deleting n bytes starting at
// local offset index (relative to the field's own start).
func (f *LinkedField) Remove(index, n int) bool {
	if f.fixed || index < 0 || n < 0 || index+n > f.length {
		return false
	}
	if !f.buf.Remove(f.Start()+index, n) {
		return false
	}
	f.length -= n
	return true
}

// Init (for a variable-length field with length still 0) writes the full
// initial contents of the field in one shot, leaving it len(p) long. The
// field stays variable-length afterwards, so it can still be edited with
// Append/InsertAt/Remove. This is the common case for the MQTT message
// model: a field is InitChild(-1)'d, then Init(p) writes its wire value.
func (f *LinkedField) Init(p []byte) bool {
	if f.length != 0 {
		return false
	}
	return f.Append(p)
}

// --- Typed accessors, offset relative to the field's own start. ---

func (f *LinkedField) ReadU8(i int) (byte, bool) {
	if i < 0 || i >= f.length {
		return 0, false
	}
	return f.buf.ReadU8(f.Start() + i)
}

func (f *LinkedField) WriteU8(i int, v byte) bool {
	if i < 0 || i >= f.length {
		return false
	}
	return f.buf.WriteU8(f.Start()+i, v)
}

func (f *LinkedField) ReadU16BE(i int) (uint16, bool) {
	if i < 0 || i+2 > f.length {
		return 0, false
	}
	return f.buf.ReadU16BE(f.Start() + i)
}

func (f *LinkedField) WriteU16BE(i int, v uint16) bool {
	if i < 0 || i+2 > f.length {
		return false
	}
	return f.buf.WriteU16BE(f.Start()+i, v)
}

func (f *LinkedField) ReadU16LE(i int) (uint16, bool) {
	if i < 0 || i+2 > f.length {
		return 0, false
	}
	return f.buf.ReadU16LE(f.Start() + i)
}

// ChainValid checks spec.md §8 invariant 1 over a chain given in root-first
// order: adjacent fields are contiguous, and the sum of lengths equals n
// (the supplied total, normally buf.Len()).
func ChainValid(fields []*LinkedField, n int) bool {
	if len(fields) == 0 {
		return n == 0
	}
	sum := 0
	for i, f := range fields {
		sum += f.Len()
		if i+1 < len(fields) {
			if f.End() != fields[i+1].Start() {
				return false
			}
		}
	}
	return sum == n
}
