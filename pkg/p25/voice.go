package p25

import (
	"fmt"

	"github.com/dbehnke/p25-nexus/pkg/bits"
	"github.com/dbehnke/p25-nexus/pkg/edac"
	"github.com/dbehnke/p25-nexus/pkg/identifier"
	"github.com/dbehnke/p25-nexus/pkg/interleave"
)

// IMBEFrameStarts locates the nine 144 bit voice frames of an LDU
var IMBEFrameStarts = [9]int{64, 208, 392, 576, 760, 944, 1128, 1312, 1488}

// IMBEFrameSize is the length of one voice frame in bits
const IMBEFrameSize = 144

// LDU hex words: 24 Hamming(10,6,3) words in six groups of four
var (
	lduHexGroupStarts = [6]int{352, 536, 720, 904, 1088, 1272}
	lduLowSpeedData   = bits.Range(1456, 1487)
)

// LDUHexWordStart returns the offset of hex word w (0-23) in an LDU
func LDUHexWordStart(w int) int {
	return lduHexGroupStarts[w/4] + (w%4)*10
}

// LDU2 encryption sync fields
var (
	ldu2AlgorithmID = bits.Concat(bits.Range(904, 909), bits.Range(914, 915))
	ldu2KeyID       = bits.Concat(bits.Range(916, 919), bits.Range(924, 929), bits.Range(934, 939))
	ldu2MI          = func() []int {
		var out []int
		for w := 0; w < 12; w++ {
			s := LDUHexWordStart(w)
			out = append(out, bits.Range(s, s+5)...)
		}
		return out
	}()
)

// HDU payload offsets, relative to the 120 corrected header bits
const hduPayloadSize = 120

var (
	hduMI          = bits.Range(0, 71)
	hduVendor      = bits.Range(72, 79)
	hduAlgorithmID = bits.Range(80, 87)
	hduKeyID       = bits.Range(88, 103)
	hduTalkgroup   = bits.Range(104, 119)
)

// HDUWordStart returns the offset of Golay(18,6,8) word w (0-35) in an HDU
func HDUWordStart(w int) int {
	return nidSize + 18*w
}

// decodeHexWords runs the Reed-Solomon check over 6 bit symbols read from
// the frame and writes corrected data symbols back through write
func decodeHexWords(rs *edac.ReedSolomon, read func(i int) int, write func(i, v int)) (edac.CRC, []int) {
	cw := make([]int, rs.N())
	for i := range cw {
		cw[i] = read(i)
	}
	before := append([]int(nil), cw...)
	crc := rs.Decode(cw)
	if crc.Status == edac.Corrected {
		for i := range cw {
			if cw[i] != before[i] {
				write(i, cw[i])
			}
		}
	}
	return crc, cw
}

// wordResult folds the inner word code results of a Reed-Solomon protected
// field. Words the inner code could not repair are symbol errors for
// Reed-Solomon and only fail the region when Reed-Solomon failed too.
func wordResult(words []edac.CRC, rs edac.CRC) edac.CRC {
	fixed, lost := 0, 0
	for _, w := range words {
		if w.Failed() {
			lost++
			continue
		}
		fixed += w.Errors
	}
	if lost > 0 && rs.Failed() {
		return edac.Fail(lost)
	}
	return edac.CorrectedBy(fixed)
}

// HDUMessage is the header data unit that opens a voice call
type HDUMessage struct {
	*Envelope
	payload *bits.BitField
}

func newHDU(env *Envelope) *HDUMessage {
	frame := env.frame
	golay := make([]edac.CRC, 0, 36)
	for w := 0; w < 36; w++ {
		golay = append(golay, edac.CorrectGolay18(frame, HDUWordStart(w)))
	}

	crc, symbols := decodeHexWords(edac.RS36_20_17,
		func(i int) int { return int(frame.Uint(bits.Range(HDUWordStart(i), HDUWordStart(i)+5))) },
		func(i, v int) {
			frame.SetUint(bits.Range(HDUWordStart(i), HDUWordStart(i)+17), uint64(edac.Golay18Encode(uint32(v))))
		})
	env.addCRC(wordResult(golay, crc))
	env.addCRC(crc)

	payload := bits.New(hduPayloadSize)
	for i := 0; i < 20; i++ {
		payload.SetUint(bits.Range(i*6, i*6+5), uint64(symbols[i]))
	}
	return &HDUMessage{Envelope: env, payload: payload}
}

// MessageIndicator is the 72 bit encryption MI as 18 hex digits
func (m *HDUMessage) MessageIndicator() string { return m.payload.Hex(hduMI, 18) }

// Vendor is the MFID of the call
func (m *HDUMessage) Vendor() Vendor { return Vendor(m.payload.Uint(hduVendor)) }

// Encryption is the algorithm of the call
func (m *HDUMessage) Encryption() Algorithm { return Algorithm(m.payload.Uint(hduAlgorithmID)) }

// KeyID is the encryption key ID
func (m *HDUMessage) KeyID() int { return int(m.payload.Uint(hduKeyID)) }

// Talkgroup is the called group
func (m *HDUMessage) Talkgroup() int { return int(m.payload.Uint(hduTalkgroup)) }

func (m *HDUMessage) Identifiers() []identifier.Identifier {
	ids := []identifier.Identifier{identifier.NewTalkgroup(m.Talkgroup(), identifier.To)}
	if m.Encryption().Encrypted() {
		ids = append(ids, encryptionID(m.Encryption(), m.KeyID(), m.MessageIndicator()))
	}
	return ids
}

func (m *HDUMessage) String() string {
	return render(m.Envelope,
		fmt.Sprintf("TALKGROUP:%d", m.Talkgroup()),
		encryptionStub(m.Encryption(), m.KeyID(), m.MessageIndicator()))
}

func encryptionID(alg Algorithm, keyID int, mi string) identifier.Encryption {
	return identifier.Encryption{
		Tag:       identifier.Tag{P: identifier.APCO25},
		Algorithm: alg.String(),
		KeyID:     keyID,
		MI:        mi,
	}
}

func encryptionStub(alg Algorithm, keyID int, mi string) string {
	if !alg.Encrypted() {
		return ""
	}
	return fmt.Sprintf("ENCRYPTION:%s KEY:%04X MI:%s", alg, keyID, mi)
}

// ldu holds what LDU1 and LDU2 share: deinterleaved voice frames, Hamming
// protected hex words and low speed data
type ldu struct {
	*Envelope
}

func newLDU(env *Envelope, rs *edac.ReedSolomon) *ldu {
	frame := env.frame
	for _, start := range IMBEFrameStarts {
		interleave.Deinterleave(frame, start, interleave.IMBE)
	}

	hamming := make([]edac.CRC, 0, 24)
	for w := 0; w < 24; w++ {
		switch edac.Hamming10Correct(frame, LDUHexWordStart(w)) {
		case edac.HammingCorrected:
			hamming = append(hamming, edac.CorrectedBy(1))
		case edac.HammingUncorrectable:
			hamming = append(hamming, edac.Fail(2))
		}
	}

	crc, _ := decodeHexWords(rs,
		func(i int) int {
			return int(frame.Uint(bits.Range(LDUHexWordStart(i), LDUHexWordStart(i)+5)))
		},
		func(i, v int) {
			frame.SetUint(bits.Range(LDUHexWordStart(i), LDUHexWordStart(i)+9), uint64(edac.Hamming10Encode(uint16(v))))
		})
	env.addCRC(wordResult(hamming, crc))
	env.addCRC(crc)
	return &ldu{Envelope: env}
}

// VoiceFrame returns voice frame i (0-8) in logical order
func (l *ldu) VoiceFrame(i int) *bits.BitField {
	return l.frame.Slice(IMBEFrameStarts[i], IMBEFrameStarts[i]+IMBEFrameSize)
}

// LowSpeedData returns the 32 bit low speed data field
func (l *ldu) LowSpeedData() int {
	return l.field(lduLowSpeedData)
}

// LDU1Message carries voice frames and link control
type LDU1Message struct {
	*ldu
	lc LinkControl
}

func newLDU1(env *Envelope) *LDU1Message {
	l := newLDU(env, edac.RS24_12_13)
	lcBits := bits.New(LinkControlSize)
	for w := 0; w < 12; w++ {
		s := LDUHexWordStart(w)
		lcBits.SetUint(bits.Range(w*6, w*6+5), uint64(env.frame.Uint(bits.Range(s, s+5))))
	}
	return &LDU1Message{ldu: l, lc: NewLinkControl(lcBits)}
}

// LinkControl returns the embedded link control word
func (m *LDU1Message) LinkControl() LinkControl { return m.lc }

func (m *LDU1Message) Identifiers() []identifier.Identifier { return m.lc.Identifiers() }

func (m *LDU1Message) String() string {
	return render(m.Envelope, m.lc.String())
}

// LDU2Message carries voice frames and encryption sync
type LDU2Message struct {
	*ldu
}

func newLDU2(env *Envelope) *LDU2Message {
	return &LDU2Message{ldu: newLDU(env, edac.RS24_16_9)}
}

// Encryption returns the algorithm of the call
func (m *LDU2Message) Encryption() Algorithm { return Algorithm(m.field(ldu2AlgorithmID)) }

// KeyID returns the 16 bit key ID
func (m *LDU2Message) KeyID() int { return m.field(ldu2KeyID) }

// MessageIndicator is the 72 bit MI as 18 hex digits
func (m *LDU2Message) MessageIndicator() string { return m.frame.Hex(ldu2MI, 18) }

func (m *LDU2Message) Identifiers() []identifier.Identifier {
	if !m.Encryption().Encrypted() {
		return nil
	}
	return []identifier.Identifier{encryptionID(m.Encryption(), m.KeyID(), m.MessageIndicator())}
}

func (m *LDU2Message) String() string {
	stub := encryptionStub(m.Encryption(), m.KeyID(), m.MessageIndicator())
	if stub == "" {
		stub = "UNENCRYPTED"
	}
	return render(m.Envelope, stub)
}

// TDULCMessage is a terminator carrying link control
type TDULCMessage struct {
	*Envelope
	lc LinkControl
}

// TDULCWordStart returns the offset of Golay(24,12,8) word w (0-11)
func TDULCWordStart(w int) int {
	return nidSize + 24*w
}

func newTDULC(env *Envelope) *TDULCMessage {
	frame := env.frame
	golay := make([]edac.CRC, 0, 12)
	for w := 0; w < 12; w++ {
		golay = append(golay, edac.CorrectGolay24(frame, TDULCWordStart(w)))
	}

	// each Golay word carries two hex symbols
	symbolIndices := func(i int) []int {
		s := TDULCWordStart(i/2) + (i%2)*6
		return bits.Range(s, s+5)
	}
	crc, symbols := decodeHexWords(edac.RS24_12_13,
		func(i int) int { return int(frame.Uint(symbolIndices(i))) },
		func(i, v int) {
			frame.SetUint(symbolIndices(i), uint64(v))
			w := TDULCWordStart(i / 2)
			data := frame.Uint(bits.Range(w, w+11))
			frame.SetUint(bits.Range(w, w+23), uint64(edac.Golay24Encode(data)))
		})
	env.addCRC(wordResult(golay, crc))
	env.addCRC(crc)

	lcBits := bits.New(LinkControlSize)
	for i := 0; i < 12; i++ {
		lcBits.SetUint(bits.Range(i*6, i*6+5), uint64(symbols[i]))
	}
	return &TDULCMessage{Envelope: env, lc: NewLinkControl(lcBits)}
}

// LinkControl returns the embedded link control word
func (m *TDULCMessage) LinkControl() LinkControl { return m.lc }

func (m *TDULCMessage) Identifiers() []identifier.Identifier { return m.lc.Identifiers() }

func (m *TDULCMessage) String() string {
	return render(m.Envelope, m.lc.String())
}
