package edac

import (
	"math/bits"

	bitfield "github.com/dbehnke/p25-nexus/pkg/bits"
)

// Golay(24,12,8): the perfect Golay(23,12) code plus an overall even parity
// bit. Codeword layout MSB first: 12 data bits, 11 check bits, parity bit.
// Generator polynomial x^11 + x^10 + x^6 + x^5 + x^4 + x^2 + 1.
const golayGenerator = 0xC75

// golaySyndromes maps every 11 bit syndrome of the (23,12) code to the unique
// error pattern of weight <= 3 producing it.
var golaySyndromes [2048]uint32

func init() {
	golaySyndromes[0] = 0
	for i := 0; i < 23; i++ {
		p1 := uint32(1) << uint(i)
		golaySyndromes[golayRemainder(p1)] = p1
		for j := i + 1; j < 23; j++ {
			p2 := p1 | uint32(1)<<uint(j)
			golaySyndromes[golayRemainder(p2)] = p2
			for k := j + 1; k < 23; k++ {
				p3 := p2 | uint32(1)<<uint(k)
				golaySyndromes[golayRemainder(p3)] = p3
			}
		}
	}
}

// golayRemainder divides a 23 bit word by the generator
func golayRemainder(v uint32) uint32 {
	for i := 22; i >= 11; i-- {
		if v&(1<<uint(i)) != 0 {
			v ^= golayGenerator << uint(i-11)
		}
	}
	return v & 0x7FF
}

// Golay24Encode returns the 24 bit codeword for 12 data bits
func Golay24Encode(data uint32) uint32 {
	data &= 0xFFF
	c23 := data<<11 | golayRemainder(data<<11)
	return c23<<1 | uint32(bits.OnesCount32(c23)&1)
}

// Golay24Decode corrects up to 3 bit errors in a 24 bit codeword and returns
// the data bits and the number of corrected bits. ok is false when 4 errors
// are detected.
func Golay24Decode(word uint32) (data uint32, errors int, ok bool) {
	word &= 0xFFFFFF
	c23 := word >> 1
	pattern := golaySyndromes[golayRemainder(c23)]
	corrected := c23 ^ pattern
	errors = bits.OnesCount32(pattern)

	if uint32(bits.OnesCount32(corrected)&1) != word&1 {
		if errors == 3 {
			return c23 >> 11, 4, false
		}
		errors++
	}
	return corrected >> 11, errors, true
}

// CorrectGolay24 repairs the 24 bit codeword at start in place
func CorrectGolay24(bf *bitfield.BitField, start int) CRC {
	indices := bitfield.Range(start, start+23)
	data, errors, ok := Golay24Decode(bf.Uint(indices))
	if !ok {
		return Fail(errors)
	}
	bf.SetUint(indices, uint64(Golay24Encode(data)))
	return CorrectedBy(errors)
}

// Golay18Encode returns the 18 bit shortened Golay(18,6,8) codeword for 6
// data bits: the Golay(24,12,8) codeword with six leading zero data bits
// removed.
func Golay18Encode(data uint32) uint32 {
	return Golay24Encode(data&0x3F) & 0x3FFFF
}

// CorrectGolay18 repairs the 18 bit shortened codeword at start in place. A
// correction that lands in the removed leading positions is uncorrectable.
func CorrectGolay18(bf *bitfield.BitField, start int) CRC {
	indices := bitfield.Range(start, start+17)
	data, errors, ok := Golay24Decode(bf.Uint(indices))
	if !ok || data > 0x3F {
		return Fail(errors)
	}
	bf.SetUint(indices, uint64(Golay18Encode(data)))
	return CorrectedBy(errors)
}
