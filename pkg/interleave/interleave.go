// Package interleave reorders fixed size bit blocks between transmitted and
// logical order.
package interleave

import (
	"fmt"

	"github.com/dbehnke/p25-nexus/pkg/bits"
)

// Table is a bit permutation: the transmitted bit at offset t belongs at
// logical offset Table[t].
type Table []int

// NewTable validates that positions is a permutation of 0..len-1
func NewTable(positions []int) (Table, error) {
	seen := make([]bool, len(positions))
	for t, p := range positions {
		if p < 0 || p >= len(positions) {
			return nil, fmt.Errorf("position %d at offset %d out of range", p, t)
		}
		if seen[p] {
			return nil, fmt.Errorf("position %d repeated at offset %d", p, t)
		}
		seen[p] = true
	}
	return Table(positions), nil
}

// MustTable is NewTable for package level tables
func MustTable(positions []int) Table {
	t, err := NewTable(positions)
	if err != nil {
		panic("interleave: " + err.Error())
	}
	return t
}

// Size is the block length in bits
func (t Table) Size() int {
	return len(t)
}

// Inverse returns the permutation that undoes t
func (t Table) Inverse() Table {
	inv := make(Table, len(t))
	for i, p := range t {
		inv[p] = i
	}
	return inv
}

// Deinterleave rewrites the block at start from transmitted to logical order
func Deinterleave(bf *bits.BitField, start int, t Table) {
	block := bf.Slice(start, start+len(t))
	for i, p := range t {
		bf.Set(start+p, block.Get(i))
	}
}

// Interleave rewrites the block at start from logical to transmitted order
func Interleave(bf *bits.BitField, start int, t Table) {
	block := bf.Slice(start, start+len(t))
	for i, p := range t {
		bf.Set(start+i, block.Get(p))
	}
}

// IMBE is the 144 bit voice frame permutation of the Phase 1 air
// interface, taken from TIA-102.BABA. Logical order is the code vectors
// u0..u3 (23 bits), u4..u6 (15 bits) and u7 (7 bits) back to back.
var IMBE = MustTable([]int{
	0, 24, 48, 72, 96, 120, 25, 1, 73, 49, 121, 97,
	2, 26, 50, 74, 98, 122, 27, 3, 75, 51, 123, 99,
	4, 28, 52, 76, 100, 124, 29, 5, 77, 53, 125, 101,
	6, 30, 54, 78, 102, 126, 31, 7, 79, 55, 127, 103,
	8, 32, 56, 80, 104, 128, 33, 9, 81, 57, 129, 105,
	10, 34, 58, 82, 106, 130, 35, 11, 83, 59, 131, 107,
	12, 36, 60, 84, 108, 132, 37, 13, 85, 61, 133, 109,
	14, 38, 62, 86, 110, 134, 39, 15, 87, 63, 135, 111,
	16, 40, 64, 88, 112, 136, 41, 17, 89, 65, 137, 113,
	18, 42, 66, 90, 114, 138, 43, 19, 91, 67, 139, 115,
	20, 44, 68, 92, 116, 140, 45, 21, 93, 69, 141, 117,
	22, 46, 70, 94, 118, 142, 47, 23, 95, 71, 143, 119,
})
