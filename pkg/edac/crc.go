// Package edac implements the error detection and correction codes used by
// P25 and DMR framing: Hamming, Golay, Reed-Solomon over GF(64) and CRCs.
//
// Codecs operate on a region of a bits.BitField, never touch bits outside it,
// and report uncorrectable input as data instead of panicking.
package edac

import "fmt"

// Status is the outcome of checking one protected region
type Status int

const (
	Passed Status = iota
	Corrected
	Failed
)

func (s Status) String() string {
	switch s {
	case Passed:
		return "PASSED"
	case Corrected:
		return "CORRECTED"
	case Failed:
		return "FAILED"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// CRC is the check result for one protected region. Errors holds the number
// of bits or symbols repaired, or detected when the check failed.
type CRC struct {
	Status Status `json:"status"`
	Errors int    `json:"errors"`
}

// Pass is a clean result
func Pass() CRC {
	return CRC{Status: Passed}
}

// CorrectedBy is a result with n repaired errors. n == 0 is a pass.
func CorrectedBy(n int) CRC {
	if n == 0 {
		return Pass()
	}
	return CRC{Status: Corrected, Errors: n}
}

// Fail is an uncorrectable result with n detected errors
func Fail(n int) CRC {
	return CRC{Status: Failed, Errors: n}
}

// Passed reports whether the region is usable (clean or repaired)
func (c CRC) Passed() bool {
	return c.Status != Failed
}

// Failed reports whether the region is uncorrectable
func (c CRC) Failed() bool {
	return c.Status == Failed
}

func (c CRC) String() string {
	if c.Status == Corrected {
		return fmt.Sprintf("CORRECTED(%d)", c.Errors)
	}
	return c.Status.String()
}

// Combine folds several results into one. Any failure fails the whole,
// otherwise repaired errors are summed.
func Combine(results ...CRC) CRC {
	total := 0
	for _, r := range results {
		if r.Failed() {
			return Fail(r.Errors)
		}
		total += r.Errors
	}
	return CorrectedBy(total)
}
