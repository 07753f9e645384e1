// Package p25 decodes APCO-25 Phase 1 frames into typed messages.
//
// A frame arrives as a bits.BitField that an external framer has already
// synchronized, stripped of status symbols and trellis decoded, together
// with the result of the NID check. NewMessage applies deinterleaving and
// error correction, then selects the message variant from the DUID and,
// for packet data, the PDU format, vendor and opcode. Decoding never fails:
// errors surface as CRC results and unknown discriminators degrade to the
// generic variant of their family.
package p25

import (
	"fmt"
	"strings"

	"github.com/dbehnke/p25-nexus/pkg/bits"
	"github.com/dbehnke/p25-nexus/pkg/edac"
	"github.com/dbehnke/p25-nexus/pkg/identifier"
)

// Frame sizes in bits
const (
	nidSize        = 64
	hduFrameSize   = nidSize + 36*18
	lduFrameSize   = 1632
	tdulcFrameSize = nidSize + 12*24
	blockFrameSize = nidSize + 96
)

var (
	nidNAC  = bits.Range(0, 11)
	nidDUID = bits.Range(12, 15)
)

// Message is a decoded P25 frame
type Message interface {
	DUID() DataUnitID
	NAC() int
	Kind() string
	IsValid() bool
	CRCs() []edac.CRC
	Identifiers() []identifier.Identifier
	String() string
}

// Envelope holds what every message shares: the corrected frame, the DUID,
// the NAC and one CRC result per protected region. Message variants embed it.
type Envelope struct {
	frame *bits.BitField
	duid  DataUnitID
	nac   int
	kind  string
	crcs  []edac.CRC
}

func newEnvelope(frame *bits.BitField, nidCRC edac.CRC) *Envelope {
	e := &Envelope{
		frame: frame,
		duid:  UnknownDataUnit,
		crcs:  []edac.CRC{nidCRC},
	}
	if frame.Size() >= 16 {
		e.nac = int(frame.Uint(nidNAC))
		e.duid = ParseDataUnitID(int(frame.Uint(nidDUID)))
	}
	e.kind = e.duid.String()
	return e
}

// DUID returns the data unit ID
func (e *Envelope) DUID() DataUnitID { return e.duid }

// NAC returns the 12 bit network access code
func (e *Envelope) NAC() int { return e.nac }

// NACHex renders the NAC as 3 hex digits
func (e *Envelope) NACHex() string { return nacHex(e.nac) }

func nacHex(nac int) string { return fmt.Sprintf("%03X", nac) }

// Kind names the message variant
func (e *Envelope) Kind() string { return e.kind }

// CRCs returns the check result of each protected region, NID first
func (e *Envelope) CRCs() []edac.CRC {
	out := make([]edac.CRC, len(e.crcs))
	copy(out, e.crcs)
	return out
}

// IsValid is false when any protected region failed
func (e *Envelope) IsValid() bool {
	for _, c := range e.crcs {
		if c.Failed() {
			return false
		}
	}
	return true
}

// CorrectedErrors sums the bit and symbol errors repaired in the frame
func (e *Envelope) CorrectedErrors() int {
	n := 0
	for _, c := range e.crcs {
		if c.Status == edac.Corrected {
			n += c.Errors
		}
	}
	return n
}

// Frame returns a copy of the corrected frame bits
func (e *Envelope) Frame() *bits.BitField { return e.frame.Copy() }

// Identifiers is empty for messages without addressing
func (e *Envelope) Identifiers() []identifier.Identifier { return nil }

func (e *Envelope) String() string {
	return e.stub()
}

func (e *Envelope) addCRC(c edac.CRC) {
	e.crcs = append(e.crcs, c)
}

func (e *Envelope) stub() string {
	s := fmt.Sprintf("NAC:%s %s", e.NACHex(), e.duid)
	if !e.IsValid() {
		s += " [CRC FAIL]"
	}
	return s
}

func (e *Envelope) field(indices []int) int {
	return int(e.frame.Uint(indices))
}

func (e *Envelope) bit(i int) bool {
	return e.frame.Get(i)
}

// render joins the envelope stub with variant fields
func render(e *Envelope, fields ...string) string {
	parts := make([]string, 0, len(fields)+1)
	parts = append(parts, e.stub())
	for _, f := range fields {
		if f != "" {
			parts = append(parts, f)
		}
	}
	return strings.Join(parts, " ")
}

// UnknownMessage is a frame with an undefined DUID or an unusable length
type UnknownMessage struct {
	*Envelope
}

func (m *UnknownMessage) String() string {
	return render(m.Envelope, fmt.Sprintf("%d BITS", m.frame.Size()))
}

// TDUMessage is a simple terminator without link control
type TDUMessage struct {
	*Envelope
}

func (m *TDUMessage) String() string {
	return render(m.Envelope, "TERMINATOR")
}
