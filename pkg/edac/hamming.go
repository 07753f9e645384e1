package edac

import "github.com/dbehnke/p25-nexus/pkg/bits"

// Hamming(10,6,3) protects each 6 bit hex word of P25 LDU link control and
// encryption sync. Word layout: 6 data bits MSB first, then 4 parity bits.
var (
	hamming10Weights = [6]uint16{0xE, 0xD, 0xC, 0xB, 0x7, 0x3}

	// syndrome -> bit offset within the 10 bit word, -1 clean, -2 double error
	hamming10Syndromes = [16]int{
		-1, 9, 8, 5, 7, -2, -2, 4,
		6, -2, -2, 3, 2, 1, 0, -2,
	}
)

// Hamming10 results
const (
	HammingClean         = 0
	HammingCorrected     = 1
	HammingUncorrectable = 2
)

// Hamming10Parity computes the parity nibble for 6 data bits
func Hamming10Parity(data uint16) uint16 {
	var parity uint16
	for i := 0; i < 6; i++ {
		if data&(1<<uint(5-i)) != 0 {
			parity ^= hamming10Weights[i]
		}
	}
	return parity
}

// Hamming10Encode returns the 10 bit codeword for 6 data bits
func Hamming10Encode(data uint16) uint16 {
	data &= 0x3F
	return data<<4 | Hamming10Parity(data)
}

// Hamming10Correct checks the 10 bit word at start and repairs a single bit
// error in place. It returns HammingClean, HammingCorrected or
// HammingUncorrectable; an uncorrectable word is left untouched.
func Hamming10Correct(bf *bits.BitField, start int) int {
	word := bf.Uint(bits.Range(start, start+9))
	data := uint16(word >> 4)
	received := uint16(word & 0xF)

	syndrome := Hamming10Parity(data) ^ received
	switch pos := hamming10Syndromes[syndrome]; pos {
	case -1:
		return HammingClean
	case -2:
		return HammingUncorrectable
	default:
		bf.Flip(start + pos)
		return HammingCorrected
	}
}
