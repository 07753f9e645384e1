package p25

import (
	"fmt"

	"github.com/dbehnke/p25-nexus/pkg/bits"
	"github.com/dbehnke/p25-nexus/pkg/identifier"
)

// LinkControlOpcode is the 6 bit LCO of a link control word
type LinkControlOpcode int

const (
	LCGroupVoiceChannelUser            LinkControlOpcode = 0x00
	LCGroupVoiceChannelUpdate          LinkControlOpcode = 0x02
	LCUnitToUnitVoiceChannelUser       LinkControlOpcode = 0x03
	LCCallTermination                  LinkControlOpcode = 0x0F
	LCSecondaryControlChannelBroadcast LinkControlOpcode = 0x21
	LCAdjacentSiteStatus               LinkControlOpcode = 0x22
)

var linkControlNames = map[LinkControlOpcode]string{
	LCGroupVoiceChannelUser:            "GROUP_VOICE_CHANNEL_USER",
	LCGroupVoiceChannelUpdate:          "GROUP_VOICE_CHANNEL_UPDATE",
	LCUnitToUnitVoiceChannelUser:       "UNIT_TO_UNIT_VOICE_CHANNEL_USER",
	LCCallTermination:                  "CALL_TERMINATION",
	LCSecondaryControlChannelBroadcast: "SECONDARY_CONTROL_CHANNEL_BROADCAST",
	LCAdjacentSiteStatus:               "ADJACENT_SITE_STATUS",
}

func (o LinkControlOpcode) String() string {
	if name, ok := linkControlNames[o]; ok {
		return name
	}
	return fmt.Sprintf("LCO(0x%02X)", int(o))
}

// LinkControlSize is the length of a link control word in bits
const LinkControlSize = 72

// link control word offsets
var (
	lcProtected    = 0
	lcImplicitMFID = 1
	lcOpcode       = bits.Range(2, 7)
	lcVendor       = bits.Range(8, 15)
	lcOptions      = bits.Range(16, 23)

	lcGroupAddress  = bits.Range(32, 47)
	lcSourceAddress = bits.Range(48, 71)
	lcTargetAddress = bits.Range(24, 47)
	lcTermTarget    = bits.Range(48, 71)

	lcUpdateChannelA = bits.Range(8, 23)
	lcUpdateGroupA   = bits.Range(24, 39)
	lcUpdateChannelB = bits.Range(40, 55)
	lcUpdateGroupB   = bits.Range(56, 71)

	lcSCCRFSS     = bits.Range(8, 15)
	lcSCCSite     = bits.Range(16, 23)
	lcSCCChannelA = bits.Range(24, 39)
	lcSCCClassA   = bits.Range(40, 47)
	lcSCCChannelB = bits.Range(48, 63)
	lcSCCClassB   = bits.Range(64, 71)

	lcAdjLRA     = bits.Range(8, 15)
	lcAdjSystem  = bits.Range(20, 31)
	lcAdjRFSS    = bits.Range(32, 39)
	lcAdjSite    = bits.Range(40, 47)
	lcAdjChannel = bits.Range(48, 63)
	lcAdjClass   = bits.Range(64, 71)
)

// LinkControl is a 72 bit link control word recovered from an LDU1 or a
// TDULC after error correction
type LinkControl struct {
	bf *bits.BitField
}

// NewLinkControl wraps 72 corrected link control bits
func NewLinkControl(bf *bits.BitField) LinkControl {
	if bf.Size() != LinkControlSize {
		panic(fmt.Sprintf("p25: link control needs %d bits, got %d", LinkControlSize, bf.Size()))
	}
	return LinkControl{bf: bf}
}

func (lc LinkControl) get(indices []int) int {
	return int(lc.bf.Uint(indices))
}

// Protected reports the P bit (link control is encrypted)
func (lc LinkControl) Protected() bool { return lc.bf.Get(lcProtected) }

// Opcode returns the LCO
func (lc LinkControl) Opcode() LinkControlOpcode { return LinkControlOpcode(lc.get(lcOpcode)) }

// Vendor returns the MFID. Words with the implicit MFID flag are standard.
func (lc LinkControl) Vendor() Vendor {
	if lc.bf.Get(lcImplicitMFID) {
		return VendorStandard
	}
	return Vendor(lc.get(lcVendor))
}

// IsStandard reports a TIA standard, unencrypted link control word
func (lc LinkControl) IsStandard() bool {
	return !lc.Protected() && lc.Vendor().IsStandard()
}

// ServiceOptions of voice channel user words
func (lc LinkControl) ServiceOptions() ServiceOptions {
	return ServiceOptions(lc.get(lcOptions))
}

// GroupAddress of a group voice channel user word
func (lc LinkControl) GroupAddress() int { return lc.get(lcGroupAddress) }

// SourceAddress of a voice channel user word
func (lc LinkControl) SourceAddress() int { return lc.get(lcSourceAddress) }

// TargetAddress of a unit to unit voice channel user or call termination word
func (lc LinkControl) TargetAddress() int {
	if lc.Opcode() == LCCallTermination {
		return lc.get(lcTermTarget)
	}
	return lc.get(lcTargetAddress)
}

// Hex renders the whole word
func (lc LinkControl) Hex() string {
	return lc.bf.Hex(bits.Range(0, LinkControlSize-1), 18)
}

// Identifiers lists the addresses and channels the word carries
func (lc LinkControl) Identifiers() []identifier.Identifier {
	if !lc.IsStandard() {
		return nil
	}
	switch lc.Opcode() {
	case LCGroupVoiceChannelUser:
		return []identifier.Identifier{
			identifier.NewTalkgroup(lc.GroupAddress(), identifier.To),
			identifier.NewRadio(lc.SourceAddress(), identifier.From),
		}
	case LCUnitToUnitVoiceChannelUser:
		return []identifier.Identifier{
			identifier.NewRadio(lc.TargetAddress(), identifier.To),
			identifier.NewRadio(lc.SourceAddress(), identifier.From),
		}
	case LCGroupVoiceChannelUpdate:
		return []identifier.Identifier{
			identifier.NewChannel(lc.get(lcUpdateChannelA)),
			identifier.NewTalkgroup(lc.get(lcUpdateGroupA), identifier.To),
			identifier.NewChannel(lc.get(lcUpdateChannelB)),
			identifier.NewTalkgroup(lc.get(lcUpdateGroupB), identifier.To),
		}
	case LCCallTermination:
		return []identifier.Identifier{identifier.NewRadio(lc.TargetAddress(), identifier.To)}
	case LCSecondaryControlChannelBroadcast:
		return []identifier.Identifier{
			identifier.NewChannel(lc.get(lcSCCChannelA)),
			identifier.NewChannel(lc.get(lcSCCChannelB)),
		}
	case LCAdjacentSiteStatus:
		return []identifier.Identifier{
			identifier.System{System: lc.get(lcAdjSystem), RFSS: lc.get(lcAdjRFSS), Site: lc.get(lcAdjSite)},
			identifier.NewChannel(lc.get(lcAdjChannel)),
		}
	}
	return nil
}

func (lc LinkControl) String() string {
	if lc.Protected() {
		return "ENCRYPTED LINK CONTROL " + lc.Hex()
	}
	if !lc.Vendor().IsStandard() {
		return fmt.Sprintf("%s LCO:%02X %s", lc.Vendor(), int(lc.Opcode()), lc.Hex())
	}

	op := lc.Opcode()
	switch op {
	case LCGroupVoiceChannelUser:
		return fmt.Sprintf("%s FROM:%d TO:%d %s", op, lc.SourceAddress(), lc.GroupAddress(), lc.ServiceOptions())
	case LCUnitToUnitVoiceChannelUser:
		return fmt.Sprintf("%s FROM:%d TO:%d %s", op, lc.SourceAddress(), lc.TargetAddress(), lc.ServiceOptions())
	case LCGroupVoiceChannelUpdate:
		return fmt.Sprintf("%s GROUP A:%d CHAN A:%s GROUP B:%d CHAN B:%s", op,
			lc.get(lcUpdateGroupA), identifier.NewChannel(lc.get(lcUpdateChannelA)),
			lc.get(lcUpdateGroupB), identifier.NewChannel(lc.get(lcUpdateChannelB)))
	case LCCallTermination:
		return fmt.Sprintf("%s TO:%d", op, lc.TargetAddress())
	case LCSecondaryControlChannelBroadcast:
		return fmt.Sprintf("%s RFSS:%d SITE:%d CHAN A:%s CLASS:%02X CHAN B:%s CLASS:%02X", op,
			lc.get(lcSCCRFSS), lc.get(lcSCCSite),
			identifier.NewChannel(lc.get(lcSCCChannelA)), lc.get(lcSCCClassA),
			identifier.NewChannel(lc.get(lcSCCChannelB)), lc.get(lcSCCClassB))
	case LCAdjacentSiteStatus:
		return fmt.Sprintf("%s LRA:%d SYSTEM:%03X RFSS:%d SITE:%d CHAN:%s CLASS:%02X", op,
			lc.get(lcAdjLRA), lc.get(lcAdjSystem), lc.get(lcAdjRFSS), lc.get(lcAdjSite),
			identifier.NewChannel(lc.get(lcAdjChannel)), lc.get(lcAdjClass))
	default:
		return fmt.Sprintf("%s %s", op, lc.Hex())
	}
}
