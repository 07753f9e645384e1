package p25

import (
	"github.com/dbehnke/p25-nexus/pkg/bits"
	"github.com/dbehnke/p25-nexus/pkg/edac"
)

// NewMessage decodes one frame. nidCRC is the NID check result reported by
// the framer. The frame is corrected in place and owned by the returned
// message. NewMessage never returns nil: undefined DUIDs and frames too
// short for their DUID yield an UnknownMessage, unrecognized formats and
// opcodes yield the generic variant of their family.
func NewMessage(frame *bits.BitField, nidCRC edac.CRC) Message {
	env := newEnvelope(frame, nidCRC)
	duid := env.DUID()
	if duid == UnknownDataUnit {
		return &UnknownMessage{Envelope: env}
	}
	if frame.Size() < duid.FrameSize() {
		env.addCRC(edac.Fail(duid.FrameSize() - frame.Size()))
		env.kind = "TRUNCATED " + duid.String()
		return &UnknownMessage{Envelope: env}
	}

	switch duid {
	case HeaderDataUnit:
		return newHDU(env)
	case LogicalDataUnit1:
		return newLDU1(env)
	case LogicalDataUnit2:
		return newLDU2(env)
	case TerminatorDataUnit:
		return &TDUMessage{Envelope: env}
	case TerminatorDataUnitLinkControl:
		return newTDULC(env)
	case TrunkingSignalingBlock:
		return decodeTSBK(env)
	case PacketDataUnit:
		return decodePDU(env)
	default:
		return &UnknownMessage{Envelope: env}
	}
}
