// Package bits provides a fixed capacity bit buffer addressed by wire position.
package bits

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// BitField is a fixed length sequence of bits. Bit 0 is the first bit received
// on the wire and is stored as the most significant bit of the first byte.
type BitField struct {
	data []byte
	size int
}

// New creates a zeroed BitField holding size bits
func New(size int) *BitField {
	if size < 0 {
		panic(fmt.Sprintf("bits: negative size %d", size))
	}
	return &BitField{
		data: make([]byte, (size+7)/8),
		size: size,
	}
}

// FromBytes creates a BitField of size bits loaded from b, MSB first.
// Missing bytes are zero, surplus bytes are ignored.
func FromBytes(b []byte, size int) *BitField {
	bf := New(size)
	copy(bf.data, b)
	bf.clearTail()
	return bf
}

// FromHex creates a BitField of size bits from a hex string. Each digit
// counts four bits, so "ABC" holds 12 bits and cannot fill 16.
func FromHex(s string, size int) (*BitField, error) {
	if len(s)*4 < size {
		return nil, fmt.Errorf("hex string holds %d bits, need %d", len(s)*4, size)
	}
	if len(s)%2 == 1 {
		s += "0"
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex bit string: %w", err)
	}
	return FromBytes(b, size), nil
}

// Parse creates a BitField from a string of '0' and '1' characters. Spaces
// and underscores are ignored so test vectors can be grouped.
func Parse(s string) (*BitField, error) {
	s = strings.NewReplacer(" ", "", "_", "").Replace(s)
	bf := New(len(s))
	for i, c := range s {
		switch c {
		case '0':
		case '1':
			bf.Set(i, true)
		default:
			return nil, fmt.Errorf("invalid bit character %q at %d", c, i)
		}
	}
	return bf, nil
}

// Size returns the fixed capacity in bits
func (b *BitField) Size() int {
	return b.size
}

func (b *BitField) check(i int) {
	if i < 0 || i >= b.size {
		panic(fmt.Sprintf("bits: index %d out of range [0,%d)", i, b.size))
	}
}

// Get returns the bit at index i
func (b *BitField) Get(i int) bool {
	b.check(i)
	return b.data[i/8]&(0x80>>uint(i%8)) != 0
}

// Set sets the bit at index i
func (b *BitField) Set(i int, v bool) {
	b.check(i)
	if v {
		b.data[i/8] |= 0x80 >> uint(i%8)
	} else {
		b.data[i/8] &^= 0x80 >> uint(i%8)
	}
}

// Flip toggles the bit at index i
func (b *BitField) Flip(i int) {
	b.check(i)
	b.data[i/8] ^= 0x80 >> uint(i%8)
}

// Uint gathers the bits at indices into an unsigned integer. indices[0] is
// the most significant bit of the result.
func (b *BitField) Uint(indices []int) uint32 {
	if len(indices) > 32 {
		panic(fmt.Sprintf("bits: %d indices do not fit in 32 bits", len(indices)))
	}
	return uint32(b.gather(indices))
}

// Uint64 is Uint for fields up to 64 bits wide
func (b *BitField) Uint64(indices []int) uint64 {
	if len(indices) > 64 {
		panic(fmt.Sprintf("bits: %d indices do not fit in 64 bits", len(indices)))
	}
	return b.gather(indices)
}

func (b *BitField) gather(indices []int) uint64 {
	var v uint64
	for _, i := range indices {
		v <<= 1
		if b.Get(i) {
			v |= 1
		}
	}
	return v
}

// SetUint writes the low len(indices) bits of v to indices, MSB first
func (b *BitField) SetUint(indices []int, v uint64) {
	n := len(indices)
	for k, i := range indices {
		b.Set(i, v&(1<<uint(n-1-k)) != 0)
	}
}

// Hex renders the bits at indices as zero padded uppercase hex with at least
// digits characters. When len(indices) is not a multiple of four the leading
// bits form a partial most significant nibble.
func (b *BitField) Hex(indices []int, digits int) string {
	const hexDigits = "0123456789ABCDEF"

	var sb strings.Builder
	pad := (4 - len(indices)%4) % 4
	nibble := 0
	count := pad
	for _, i := range indices {
		nibble <<= 1
		if b.Get(i) {
			nibble |= 1
		}
		count++
		if count == 4 {
			sb.WriteByte(hexDigits[nibble])
			nibble = 0
			count = 0
		}
	}

	out := sb.String()
	if len(out) < digits {
		out = strings.Repeat("0", digits-len(out)) + out
	}
	return out
}

// Copy returns an independent copy
func (b *BitField) Copy() *BitField {
	c := &BitField{
		data: make([]byte, len(b.data)),
		size: b.size,
	}
	copy(c.data, b.data)
	return c
}

// Slice copies the bits in [start, end) into a new BitField
func (b *BitField) Slice(start, end int) *BitField {
	if start < 0 || end > b.size || start > end {
		panic(fmt.Sprintf("bits: slice [%d,%d) out of range [0,%d)", start, end, b.size))
	}
	s := New(end - start)
	for i := start; i < end; i++ {
		if b.Get(i) {
			s.Set(i-start, true)
		}
	}
	return s
}

// CopyInto writes all bits of src into b starting at offset
func (b *BitField) CopyInto(offset int, src *BitField) {
	for i := 0; i < src.size; i++ {
		b.Set(offset+i, src.Get(i))
	}
}

// Bytes returns the packed bits, MSB first. The final byte is zero padded.
func (b *BitField) Bytes() []byte {
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out
}

// Equal reports whether both fields hold the same bits
func (b *BitField) Equal(o *BitField) bool {
	if o == nil || b.size != o.size {
		return false
	}
	for i := range b.data {
		if b.data[i] != o.data[i] {
			return false
		}
	}
	return true
}

// String renders the field as a string of '0' and '1'
func (b *BitField) String() string {
	var sb strings.Builder
	sb.Grow(b.size)
	for i := 0; i < b.size; i++ {
		if b.Get(i) {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

func (b *BitField) clearTail() {
	if rem := b.size % 8; rem != 0 {
		b.data[len(b.data)-1] &= byte(0xFF << uint(8-rem))
	}
}

// Range returns the indices start through end inclusive
func Range(start, end int) []int {
	if end < start {
		return nil
	}
	out := make([]int, 0, end-start+1)
	for i := start; i <= end; i++ {
		out = append(out, i)
	}
	return out
}

// Concat joins index tables in order
func Concat(tables ...[]int) []int {
	var n int
	for _, t := range tables {
		n += len(t)
	}
	out := make([]int, 0, n)
	for _, t := range tables {
		out = append(out, t...)
	}
	return out
}
