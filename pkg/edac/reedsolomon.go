package edac

import "fmt"

// GF(64) arithmetic, primitive polynomial x^6 + x + 1
const (
	gfSize      = 64
	gfOrder     = gfSize - 1
	gfPrimitive = 0x43
)

// gfExp and gfLog are built by initializer so the package level codecs
// below, which depend on them, see filled tables.
var gfExp, gfLog = buildGF()

func buildGF() (exp [2 * gfOrder]int, log [gfSize]int) {
	x := 1
	for i := 0; i < gfOrder; i++ {
		exp[i] = x
		exp[i+gfOrder] = x
		log[x] = i
		x <<= 1
		if x&gfSize != 0 {
			x ^= gfPrimitive
		}
	}
	return exp, log
}

func gfMul(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	return gfExp[gfLog[a]+gfLog[b]]
}

func gfDiv(a, b int) int {
	if b == 0 {
		panic("edac: division by zero in GF(64)")
	}
	if a == 0 {
		return 0
	}
	return gfExp[(gfLog[a]+gfOrder-gfLog[b])%gfOrder]
}

func gfPow(e int) int {
	e %= gfOrder
	if e < 0 {
		e += gfOrder
	}
	return gfExp[e]
}

// polyEval evaluates p (lowest degree first) at x
func polyEval(p []int, x int) int {
	v := 0
	for i := len(p) - 1; i >= 0; i-- {
		v = gfMul(v, x) ^ p[i]
	}
	return v
}

// ReedSolomon is a (shortened) Reed-Solomon code over GF(64) with generator
// roots alpha^1 .. alpha^(n-k). Codewords are slices of 6 bit symbols; symbol
// 0 carries the highest power, the first k symbols are data and the
// remaining n-k are parity.
type ReedSolomon struct {
	n, k int
	gen  []int // generator polynomial, lowest degree first
}

// P25 codes
var (
	RS63_47_17 = NewReedSolomon(63, 47)
	RS36_20_17 = NewReedSolomon(36, 20)
	RS24_16_9  = NewReedSolomon(24, 16)
	RS24_12_13 = NewReedSolomon(24, 12)
)

// NewReedSolomon builds an (n,k) code. It panics on parameters outside GF(64).
func NewReedSolomon(n, k int) *ReedSolomon {
	if n > gfOrder || k <= 0 || k >= n {
		panic(fmt.Sprintf("edac: invalid Reed-Solomon parameters (%d,%d)", n, k))
	}
	gen := []int{1}
	for j := 1; j <= n-k; j++ {
		// gen *= (x + alpha^j)
		next := make([]int, len(gen)+1)
		root := gfPow(j)
		for i, c := range gen {
			next[i] ^= gfMul(c, root)
			next[i+1] ^= c
		}
		gen = next
	}
	return &ReedSolomon{n: n, k: k, gen: gen}
}

// N is the codeword length in symbols
func (rs *ReedSolomon) N() int { return rs.n }

// K is the number of data symbols
func (rs *ReedSolomon) K() int { return rs.k }

// MaxErrors is the number of symbol errors the code can correct
func (rs *ReedSolomon) MaxErrors() int { return (rs.n - rs.k) / 2 }

func (rs *ReedSolomon) String() string {
	return fmt.Sprintf("RS(%d,%d,%d)", rs.n, rs.k, rs.n-rs.k+1)
}

// Encode returns the systematic codeword for k data symbols
func (rs *ReedSolomon) Encode(data []int) []int {
	if len(data) != rs.k {
		panic(fmt.Sprintf("edac: %s needs %d data symbols, got %d", rs, rs.k, len(data)))
	}
	nsym := rs.n - rs.k
	rem := make([]int, nsym)
	for _, d := range data {
		fb := (d & gfOrder) ^ rem[0]
		copy(rem, rem[1:])
		rem[nsym-1] = 0
		if fb != 0 {
			for j := 0; j < nsym; j++ {
				rem[j] ^= gfMul(fb, rs.gen[nsym-1-j])
			}
		}
	}

	cw := make([]int, 0, rs.n)
	for _, d := range data {
		cw = append(cw, d&gfOrder)
	}
	return append(cw, rem...)
}

func (rs *ReedSolomon) syndromes(cw []int) ([]int, bool) {
	nsym := rs.n - rs.k
	s := make([]int, nsym)
	clean := true
	for j := 0; j < nsym; j++ {
		x := gfPow(j + 1)
		v := 0
		for _, c := range cw {
			v = gfMul(v, x) ^ c
		}
		s[j] = v
		if v != 0 {
			clean = false
		}
	}
	return s, clean
}

// berlekampMassey returns the error locator polynomial (lowest degree first)
// and its length L
func berlekampMassey(s []int) ([]int, int) {
	c := make([]int, len(s)+1)
	b := make([]int, len(s)+1)
	c[0], b[0] = 1, 1
	l, m, lastD := 0, 1, 1

	for n := 0; n < len(s); n++ {
		d := s[n]
		for i := 1; i <= l; i++ {
			d ^= gfMul(c[i], s[n-i])
		}
		if d == 0 {
			m++
			continue
		}

		coef := gfDiv(d, lastD)
		if 2*l <= n {
			t := make([]int, len(c))
			copy(t, c)
			for i := 0; i+m < len(c); i++ {
				c[i+m] ^= gfMul(coef, b[i])
			}
			l = n + 1 - l
			b = t
			lastD = d
			m = 1
		} else {
			for i := 0; i+m < len(c); i++ {
				c[i+m] ^= gfMul(coef, b[i])
			}
			m++
		}
	}
	return c[:l+1], l
}

// Decode checks the codeword in place. Up to MaxErrors symbol errors are
// repaired; anything beyond that is reported as Failed and cw is left as
// received.
func (rs *ReedSolomon) Decode(cw []int) CRC {
	if len(cw) != rs.n {
		panic(fmt.Sprintf("edac: %s needs %d symbols, got %d", rs, rs.n, len(cw)))
	}
	s, clean := rs.syndromes(cw)
	if clean {
		return Pass()
	}

	locator, l := berlekampMassey(s)
	if l > rs.MaxErrors() || locator[l] == 0 {
		return Fail(l)
	}

	// Chien search restricted to the positions that exist in the
	// (possibly shortened) codeword
	var positions []int
	for i := 0; i < rs.n; i++ {
		power := rs.n - 1 - i
		if polyEval(locator, gfPow(-power)) == 0 {
			positions = append(positions, i)
		}
	}
	if len(positions) != l {
		return Fail(l)
	}

	// Forney: evaluator = S(x) * locator(x) mod x^(n-k)
	nsym := rs.n - rs.k
	evaluator := make([]int, nsym)
	for i := 0; i < nsym; i++ {
		for j := 0; j <= i && j < len(locator); j++ {
			evaluator[i] ^= gfMul(locator[j], s[i-j])
		}
	}
	derivative := make([]int, len(locator))
	for i := 1; i < len(locator); i += 2 {
		derivative[i-1] = locator[i]
	}

	fixed := make([]int, rs.n)
	copy(fixed, cw)
	for _, i := range positions {
		xInv := gfPow(-(rs.n - 1 - i))
		denom := polyEval(derivative, xInv)
		if denom == 0 {
			return Fail(l)
		}
		fixed[i] ^= gfDiv(polyEval(evaluator, xInv), denom)
	}

	if _, ok := rs.syndromes(fixed); !ok {
		return Fail(l)
	}
	copy(cw, fixed)
	return CorrectedBy(l)
}
