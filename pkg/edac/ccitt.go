package edac

import "github.com/dbehnke/p25-nexus/pkg/bits"

const (
	crcCCITT16Poly = 0x1021
	crc9Poly       = 0x059 // x^9 + x^6 + x^4 + x^3 + 1, top bit implicit
	crc32Poly      = 0x04C11DB7
)

// crcBits runs an MSB first CRC of the given width over the bits at indices,
// starting from a zero register
func crcBits(bf *bits.BitField, indices []int, width uint, poly uint32) uint32 {
	top := uint32(1) << (width - 1)
	mask := top<<1 - 1
	var crc uint32
	for _, i := range indices {
		fb := crc&top != 0
		if bf.Get(i) {
			fb = !fb
		}
		crc = (crc << 1) & mask
		if fb {
			crc ^= poly
		}
	}
	return crc
}

// CCITT80 is the 16 bit CRC-CCITT protecting an 80 bit block followed by its
// checksum: P25 TSBK and PDU headers, DMR data headers and USBD. The register
// starts at zero and the result is xored with a final mask.
type CCITT80 struct {
	finalXor uint16
}

// P25CCITT80 inverts the checksum
var P25CCITT80 = CCITT80{finalXor: 0xFFFF}

// DMRCCITT80 inverts the checksum and applies a DMR data type mask
func DMRCCITT80(mask uint16) CCITT80 {
	return CCITT80{finalXor: 0xFFFF ^ mask}
}

// ccitt80Syndromes maps the syndrome of a single bit error to its offset in
// the 96 bit protected block
var ccitt80Syndromes = func() map[uint16]int {
	table := make(map[uint16]int, 96)
	for i := 0; i < 80; i++ {
		bf := bits.New(80)
		bf.Set(i, true)
		table[uint16(crcBits(bf, bits.Range(0, 79), 16, crcCCITT16Poly))] = i
	}
	for i := 0; i < 16; i++ {
		table[uint16(1)<<uint(15-i)] = 80 + i
	}
	return table
}()

// Checksum computes the CRC of the 80 bits at start
func (c CCITT80) Checksum(bf *bits.BitField, start int) uint16 {
	return uint16(crcBits(bf, bits.Range(start, start+79), 16, crcCCITT16Poly)) ^ c.finalXor
}

// Write stores the checksum of the 80 bits at start in the following 16 bits
func (c CCITT80) Write(bf *bits.BitField, start int) {
	bf.SetUint(bits.Range(start+80, start+95), uint64(c.Checksum(bf, start)))
}

// Correct checks the 96 bit block at start and repairs a single bit error in
// place. It returns the number of bit errors: 0, 1 (corrected) or 2 (more
// than one error, uncorrectable, block untouched).
func (c CCITT80) Correct(bf *bits.BitField, start int) int {
	received := uint16(bf.Uint(bits.Range(start+80, start+95)))
	syndrome := c.Checksum(bf, start) ^ received
	if syndrome == 0 {
		return 0
	}
	if offset, ok := ccitt80Syndromes[syndrome]; ok {
		bf.Flip(start + offset)
		return 1
	}
	return 2
}

// Check wraps Correct as a CRC result
func (c CCITT80) Check(bf *bits.BitField, start int) CRC {
	switch n := c.Correct(bf, start); n {
	case 0:
		return Pass()
	case 1:
		return CorrectedBy(1)
	default:
		return Fail(n)
	}
}

// CRC9 computes the inverted 9 bit CRC of a confirmed packet data block over
// the bits at indices (block serial number followed by user data)
func CRC9(bf *bits.BitField, indices []int) uint16 {
	return uint16(crcBits(bf, indices, 9, crc9Poly) ^ 0x1FF)
}

// CRC32 computes the inverted 32 bit packet CRC over the bits at indices
func CRC32(bf *bits.BitField, indices []int) uint32 {
	return crcBits(bf, indices, 32, crc32Poly) ^ 0xFFFFFFFF
}
