package testhelpers

import (
	"github.com/dbehnke/p25-nexus/pkg/bits"
	"github.com/dbehnke/p25-nexus/pkg/edac"
	"github.com/dbehnke/p25-nexus/pkg/interleave"
	"github.com/dbehnke/p25-nexus/pkg/p25"
)

// NewFrame returns a zeroed frame sized for duid with the NAC and DUID set
func NewFrame(nac int, duid p25.DataUnitID) *bits.BitField {
	bf := bits.New(duid.FrameSize())
	SetField(bf, 0, 11, uint64(nac))
	SetField(bf, 12, 15, uint64(duid))
	return bf
}

// SetField writes v into the inclusive bit range [from, to]
func SetField(bf *bits.BitField, from, to int, v uint64) {
	bf.SetUint(bits.Range(from, to), v)
}

// TSBK builds a single, last block trunking signaling block with a valid CRC
func TSBK(nac int, vendor p25.Vendor, opcode p25.TSBKOpcode, args uint64) *bits.BitField {
	bf := NewFrame(nac, p25.TrunkingSignalingBlock)
	bf.Set(64, true)
	SetField(bf, 66, 71, uint64(opcode))
	SetField(bf, 72, 79, uint64(vendor))
	SetField(bf, 80, 143, args)
	edac.P25CCITT80.Write(bf, p25.TSBKStart)
	return bf
}

// Seal rewrites the CRC of the block following the NID after a test changed
// its fields
func Seal(bf *bits.BitField) {
	edac.P25CCITT80.Write(bf, p25.TSBKStart)
}

// PDUHeader describes the header fields a test sets
type PDUHeader struct {
	ConfirmationRequired bool
	Outbound             bool
	Format               p25.PDUFormat
	SAP                  int
	Vendor               p25.Vendor
	LogicalLinkID        int
	FullMessage          bool
	BlocksToFollow       int
	PadOctets            int
	Opcode               p25.MBTOpcode
	ServiceSpecific      int
	ResponseClass        p25.ResponseClass
	ResponseType         int
	ResponseStatus       int
}

// Build encodes the header with a valid CRC
func (h PDUHeader) Build(nac int) *bits.BitField {
	bf := NewFrame(nac, p25.PacketDataUnit)
	bf.Set(65, h.ConfirmationRequired)
	bf.Set(66, h.Outbound)
	SetField(bf, 69, 73, uint64(h.Format))
	if h.Format == p25.FormatResponse {
		SetField(bf, 74, 75, uint64(h.ResponseClass))
		SetField(bf, 76, 78, uint64(h.ResponseType))
		SetField(bf, 79, 81, uint64(h.ResponseStatus))
	} else {
		SetField(bf, 74, 79, uint64(h.SAP))
		SetField(bf, 81, 88, uint64(h.Vendor))
	}
	SetField(bf, 89, 112, uint64(h.LogicalLinkID))
	bf.Set(113, h.FullMessage)
	SetField(bf, 114, 120, uint64(h.BlocksToFollow))
	if h.Format == p25.FormatAlternateMultiBlockTrunking {
		SetField(bf, 122, 127, uint64(h.Opcode))
		SetField(bf, 128, 143, uint64(h.ServiceSpecific))
	} else {
		SetField(bf, 123, 127, uint64(h.PadOctets))
	}
	edac.P25CCITT80.Write(bf, p25.PDUHeaderStart)
	return bf
}

// blockDataSize is the user data carried by one block
func blockDataSize(confirmed bool) int {
	if confirmed {
		return p25.ConfirmedBlockSize - 16
	}
	return p25.UnconfirmedBlockSize
}

// PacketBlocks splits user data into data blocks closed by the packet
// CRC-32. It returns the blocks and the pad octet count for the header.
func PacketBlocks(data []byte, confirmed bool) ([]*bits.BitField, int) {
	size := blockDataSize(confirmed)
	octetsPerBlock := size / 8
	needed := len(data) + 4
	count := (needed + octetsPerBlock - 1) / octetsPerBlock
	pad := count*octetsPerBlock - needed

	payload := bits.New(count * size)
	for i, b := range data {
		SetField(payload, i*8, i*8+7, uint64(b))
	}
	return SplitBlocks(payload, confirmed), pad
}

// SplitBlocks closes payload with its CRC-32 and cuts it into data blocks.
// The payload must hold a whole number of blocks.
func SplitBlocks(payload *bits.BitField, confirmed bool) []*bits.BitField {
	size := blockDataSize(confirmed)
	end := payload.Size() - 32
	SetField(payload, end, payload.Size()-1, uint64(edac.CRC32(payload, bits.Range(0, end-1))))

	blocks := make([]*bits.BitField, payload.Size()/size)
	for i := range blocks {
		blocks[i] = DataBlock(payload.Slice(i*size, (i+1)*size), confirmed, i)
	}
	return blocks
}

// DataBlock wraps block data bits. Confirmed blocks get the serial and a
// valid CRC-9.
func DataBlock(data *bits.BitField, confirmed bool, serial int) *bits.BitField {
	if !confirmed {
		return data.Copy()
	}
	bf := bits.New(p25.ConfirmedBlockSize)
	SetField(bf, 0, 6, uint64(serial%128))
	bf.CopyInto(16, data)
	check := bits.Concat(bits.Range(0, 6), bits.Range(16, p25.ConfirmedBlockSize-1))
	SetField(bf, 7, 15, uint64(edac.CRC9(bf, check)))
	return bf
}

// LinkControl returns a 72 bit link control word for opcode. Standard
// opcodes whose MFID octet carries data get the implicit MFID flag.
func LinkControl(opcode p25.LinkControlOpcode) *bits.BitField {
	bf := bits.New(p25.LinkControlSize)
	SetField(bf, 2, 7, uint64(opcode))
	switch opcode {
	case p25.LCGroupVoiceChannelUpdate, p25.LCSecondaryControlChannelBroadcast, p25.LCAdjacentSiteStatus:
		bf.Set(1, true)
	}
	return bf
}

// GroupVoiceLinkControl builds a GROUP_VOICE_CHANNEL_USER word
func GroupVoiceLinkControl(options p25.ServiceOptions, group, source int) *bits.BitField {
	bf := LinkControl(p25.LCGroupVoiceChannelUser)
	SetField(bf, 16, 23, uint64(options))
	SetField(bf, 32, 47, uint64(group))
	SetField(bf, 48, 71, uint64(source))
	return bf
}

// symbols splits a field into 6 bit Reed-Solomon symbols
func symbols(bf *bits.BitField, count int) []int {
	out := make([]int, count)
	for i := range out {
		out[i] = int(bf.Uint(bits.Range(i*6, i*6+5)))
	}
	return out
}

// LDU1 builds an interleaved LDU1 carrying lc
func LDU1(nac int, lc *bits.BitField) *bits.BitField {
	return ldu(nac, p25.LogicalDataUnit1, edac.RS24_12_13.Encode(symbols(lc, 12)))
}

// LDU2 builds an interleaved LDU2 carrying encryption sync. mi holds 72 bits.
func LDU2(nac int, mi *bits.BitField, algorithm p25.Algorithm, keyID int) *bits.BitField {
	data := bits.New(96)
	data.CopyInto(0, mi)
	SetField(data, 72, 79, uint64(algorithm))
	SetField(data, 80, 95, uint64(keyID))
	return ldu(nac, p25.LogicalDataUnit2, edac.RS24_16_9.Encode(symbols(data, 16)))
}

func ldu(nac int, duid p25.DataUnitID, codeword []int) *bits.BitField {
	bf := NewFrame(nac, duid)
	for w, v := range codeword {
		s := p25.LDUHexWordStart(w)
		SetField(bf, s, s+9, uint64(edac.Hamming10Encode(uint16(v))))
	}
	for _, start := range p25.IMBEFrameStarts {
		interleave.Interleave(bf, start, interleave.IMBE)
	}
	return bf
}

// HDU builds a header data unit. payload holds 120 bits: MI, MFID,
// algorithm, key ID and talkgroup.
func HDU(nac int, payload *bits.BitField) *bits.BitField {
	bf := NewFrame(nac, p25.HeaderDataUnit)
	for w, v := range edac.RS36_20_17.Encode(symbols(payload, 20)) {
		s := p25.HDUWordStart(w)
		SetField(bf, s, s+17, uint64(edac.Golay18Encode(uint32(v))))
	}
	return bf
}

// HDUPayload lays out the 120 HDU header bits
func HDUPayload(mi *bits.BitField, vendor p25.Vendor, algorithm p25.Algorithm, keyID, talkgroup int) *bits.BitField {
	bf := bits.New(120)
	bf.CopyInto(0, mi)
	SetField(bf, 72, 79, uint64(vendor))
	SetField(bf, 80, 87, uint64(algorithm))
	SetField(bf, 88, 103, uint64(keyID))
	SetField(bf, 104, 119, uint64(talkgroup))
	return bf
}

// TDULC builds a terminator carrying lc
func TDULC(nac int, lc *bits.BitField) *bits.BitField {
	bf := NewFrame(nac, p25.TerminatorDataUnitLinkControl)
	cw := edac.RS24_12_13.Encode(symbols(lc, 12))
	for w := 0; w < 12; w++ {
		data := uint32(cw[2*w])<<6 | uint32(cw[2*w+1])
		s := p25.TDULCWordStart(w)
		SetField(bf, s, s+23, uint64(edac.Golay24Encode(data)))
	}
	return bf
}
