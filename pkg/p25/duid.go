package p25

import "fmt"

// DataUnitID identifies the logical type of a P25 frame (NID bits 12-15)
type DataUnitID int

const (
	HeaderDataUnit                DataUnitID = 0x0
	TerminatorDataUnit            DataUnitID = 0x3
	LogicalDataUnit1              DataUnitID = 0x5
	TrunkingSignalingBlock        DataUnitID = 0x7
	LogicalDataUnit2              DataUnitID = 0xA
	PacketDataUnit                DataUnitID = 0xC
	TerminatorDataUnitLinkControl DataUnitID = 0xF
	UnknownDataUnit               DataUnitID = -1
)

var duidNames = map[DataUnitID]string{
	HeaderDataUnit:                "HDU",
	TerminatorDataUnit:            "TDU",
	LogicalDataUnit1:              "LDU1",
	TrunkingSignalingBlock:        "TSBK",
	LogicalDataUnit2:              "LDU2",
	PacketDataUnit:                "PDU",
	TerminatorDataUnitLinkControl: "TDULC",
	UnknownDataUnit:               "UNKNOWN",
}

// ParseDataUnitID maps the 4 bit DUID field. Values without a defined data
// unit become UnknownDataUnit.
func ParseDataUnitID(v int) DataUnitID {
	d := DataUnitID(v)
	if _, ok := duidNames[d]; ok && d != UnknownDataUnit {
		return d
	}
	return UnknownDataUnit
}

func (d DataUnitID) String() string {
	if name, ok := duidNames[d]; ok {
		return name
	}
	return fmt.Sprintf("DUID(%d)", int(d))
}

// FrameSize returns the number of bits a frame of this type carries after
// the framer has removed status symbols and trellis coding, NID included
func (d DataUnitID) FrameSize() int {
	switch d {
	case HeaderDataUnit:
		return hduFrameSize
	case TerminatorDataUnit:
		return nidSize
	case LogicalDataUnit1, LogicalDataUnit2:
		return lduFrameSize
	case TrunkingSignalingBlock, PacketDataUnit:
		return blockFrameSize
	case TerminatorDataUnitLinkControl:
		return tdulcFrameSize
	default:
		return nidSize
	}
}
