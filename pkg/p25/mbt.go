package p25

import (
	"fmt"

	"github.com/dbehnke/p25-nexus/pkg/bits"
	"github.com/dbehnke/p25-nexus/pkg/identifier"
)

// MBTOpcode is the opcode of an alternate multi-block trunking message
type MBTOpcode int

const (
	MBTGroupVoiceChannelGrantExplicit      MBTOpcode = 0x00
	MBTUnitToUnitVoiceChannelGrantExtended MBTOpcode = 0x04
	MBTGroupDataChannelGrantExtended       MBTOpcode = 0x11
	MBTRFSSStatusExtended                  MBTOpcode = 0x3A
	MBTNetworkStatusExtended               MBTOpcode = 0x3B
	MBTAdjacentStatusExtended              MBTOpcode = 0x3C
)

var mbtNames = map[MBTOpcode]string{
	MBTGroupVoiceChannelGrantExplicit:      "GROUP_VOICE_CHANNEL_GRANT_EXPLICIT",
	MBTUnitToUnitVoiceChannelGrantExtended: "UNIT_TO_UNIT_VOICE_CHANNEL_GRANT_EXTENDED",
	MBTGroupDataChannelGrantExtended:       "GROUP_DATA_CHANNEL_GRANT_EXTENDED",
	MBTRFSSStatusExtended:                  "RFSS_STATUS_EXTENDED",
	MBTNetworkStatusExtended:               "NETWORK_STATUS_EXTENDED",
	MBTAdjacentStatusExtended:              "ADJACENT_STATUS_EXTENDED",
}

func (o MBTOpcode) String() string {
	if name, ok := mbtNames[o]; ok {
		return name
	}
	return fmt.Sprintf("MBT OPCODE(0x%02X)", int(o))
}

// MBT header fields (service specific octets) and block relative offsets
var (
	mbtServiceOptions = bits.Range(128, 135)
	mbtLRA            = bits.Range(128, 135)
	mbtServiceClass   = bits.Range(136, 143)

	mbtGrantTransmit = bits.Range(0, 15)
	mbtGrantReceive  = bits.Range(16, 31)
	mbtGrantGroup    = bits.Range(32, 47)

	mbtUUSource   = bits.Range(0, 55)
	mbtUUTransmit = bits.Range(56, 71)
	mbtUUReceive  = bits.Range(72, 87)
	mbtUUTarget   = bits.Range(0, 55)

	mbtSiteSystem   = bits.Range(0, 11)
	mbtSiteRFSS     = bits.Range(16, 23)
	mbtSiteSite     = bits.Range(24, 31)
	mbtSiteTransmit = bits.Range(32, 47)
	mbtSiteReceive  = bits.Range(48, 63)

	mbtNetWACN   = bits.Range(0, 19)
	mbtNetSystem = bits.Range(20, 31)
)

// MBTMessage is the shared base of standard multi-block trunking messages.
// Fields carried in data blocks report false until their block arrives.
type MBTMessage struct {
	*PDUMessage
}

// Opcode returns the MBT opcode
func (m *MBTMessage) Opcode() MBTOpcode { return MBTOpcode(m.field(pduMBTOpcode)) }

// ServiceSpecific returns the two service specific header octets
func (m *MBTMessage) ServiceSpecific() int { return m.field(pduMBTOctets) }

func optionalChannel(v int, ok bool) identifier.Channel {
	if !ok {
		return identifier.Channel{}
	}
	return identifier.NewChannel(v)
}

func unavailable(ok bool, s string) string {
	if !ok {
		return "?"
	}
	return s
}

// GroupChannelGrantExplicitMessage is a group voice or group data channel
// grant with explicit transmit and receive channels
type GroupChannelGrantExplicitMessage struct {
	*MBTMessage
}

func (m *GroupChannelGrantExplicitMessage) ServiceOptions() ServiceOptions {
	return ServiceOptions(m.field(mbtServiceOptions))
}

// SourceAddress is the radio holding the grant
func (m *GroupChannelGrantExplicitMessage) SourceAddress() int { return m.LogicalLinkID() }

func (m *GroupChannelGrantExplicitMessage) TransmitChannel() (identifier.Channel, bool) {
	v, ok := m.seq.blockUint(0, mbtGrantTransmit)
	return optionalChannel(v, ok), ok
}

func (m *GroupChannelGrantExplicitMessage) ReceiveChannel() (identifier.Channel, bool) {
	v, ok := m.seq.blockUint(0, mbtGrantReceive)
	return optionalChannel(v, ok), ok
}

func (m *GroupChannelGrantExplicitMessage) GroupAddress() (int, bool) {
	return m.seq.blockUint(0, mbtGrantGroup)
}

func (m *GroupChannelGrantExplicitMessage) Identifiers() []identifier.Identifier {
	ids := []identifier.Identifier{identifier.NewRadio(m.SourceAddress(), identifier.From)}
	if group, ok := m.GroupAddress(); ok {
		ids = append(ids, identifier.NewTalkgroup(group, identifier.To))
	}
	if ch, ok := m.TransmitChannel(); ok {
		ids = append(ids, ch)
	}
	if ch, ok := m.ReceiveChannel(); ok {
		ids = append(ids, ch)
	}
	return ids
}

func (m *GroupChannelGrantExplicitMessage) String() string {
	group, ok := m.GroupAddress()
	tx, _ := m.TransmitChannel()
	rx, _ := m.ReceiveChannel()
	return m.pduStub(m.Kind(),
		fmt.Sprintf("FROM:%d TO:%s CHAN DN:%s CHAN UP:%s", m.SourceAddress(),
			unavailable(ok, fmt.Sprint(group)), unavailable(ok, tx.String()), unavailable(ok, rx.String())),
		m.ServiceOptions().String())
}

// UnitToUnitVoiceChannelGrantExtendedMessage grants a private call to a
// radio from another system, identified by WACN, system and ID
type UnitToUnitVoiceChannelGrantExtendedMessage struct {
	*MBTMessage
}

func (m *UnitToUnitVoiceChannelGrantExtendedMessage) ServiceOptions() ServiceOptions {
	return ServiceOptions(m.field(mbtServiceOptions))
}

// TargetAddress is the called radio
func (m *UnitToUnitVoiceChannelGrantExtendedMessage) TargetAddress() int { return m.LogicalLinkID() }

// Source is the fully qualified calling radio
func (m *UnitToUnitVoiceChannelGrantExtendedMessage) Source() (identifier.FullyQualifiedRadio, bool) {
	v, ok := m.seq.blockUint64(0, mbtUUSource)
	if !ok {
		return identifier.FullyQualifiedRadio{}, false
	}
	return identifier.NewFullyQualifiedRadio(v, identifier.From), true
}

// Target is the fully qualified called radio
func (m *UnitToUnitVoiceChannelGrantExtendedMessage) Target() (identifier.FullyQualifiedRadio, bool) {
	v, ok := m.seq.blockUint64(1, mbtUUTarget)
	if !ok {
		return identifier.FullyQualifiedRadio{}, false
	}
	return identifier.NewFullyQualifiedRadio(v, identifier.To), true
}

func (m *UnitToUnitVoiceChannelGrantExtendedMessage) TransmitChannel() (identifier.Channel, bool) {
	v, ok := m.seq.blockUint(0, mbtUUTransmit)
	return optionalChannel(v, ok), ok
}

func (m *UnitToUnitVoiceChannelGrantExtendedMessage) ReceiveChannel() (identifier.Channel, bool) {
	v, ok := m.seq.blockUint(0, mbtUUReceive)
	return optionalChannel(v, ok), ok
}

func (m *UnitToUnitVoiceChannelGrantExtendedMessage) Identifiers() []identifier.Identifier {
	ids := []identifier.Identifier{identifier.NewRadio(m.TargetAddress(), identifier.To)}
	if src, ok := m.Source(); ok {
		ids = append(ids, src)
	}
	if dst, ok := m.Target(); ok {
		ids = append(ids, dst)
	}
	if ch, ok := m.TransmitChannel(); ok {
		ids = append(ids, ch)
	}
	if ch, ok := m.ReceiveChannel(); ok {
		ids = append(ids, ch)
	}
	return ids
}

func (m *UnitToUnitVoiceChannelGrantExtendedMessage) String() string {
	src, ok := m.Source()
	tx, _ := m.TransmitChannel()
	return m.pduStub(m.Kind(),
		fmt.Sprintf("FROM:%s TO:%d CHAN:%s", unavailable(ok, src.String()), m.TargetAddress(), unavailable(ok, tx.String())),
		m.ServiceOptions().String())
}

// SiteStatusExtendedMessage is an RFSS, network or adjacent site status
// broadcast with explicit channels
type SiteStatusExtendedMessage struct {
	*MBTMessage
}

func (m *SiteStatusExtendedMessage) LocationRegistrationArea() int { return m.field(mbtLRA) }
func (m *SiteStatusExtendedMessage) ServiceClass() int            { return m.field(mbtServiceClass) }

// WACN is carried by network status broadcasts only
func (m *SiteStatusExtendedMessage) WACN() (int, bool) {
	if m.Opcode() != MBTNetworkStatusExtended {
		return 0, false
	}
	return m.seq.blockUint(0, mbtNetWACN)
}

func (m *SiteStatusExtendedMessage) System() (int, bool) {
	if m.Opcode() == MBTNetworkStatusExtended {
		return m.seq.blockUint(0, mbtNetSystem)
	}
	return m.seq.blockUint(0, mbtSiteSystem)
}

func (m *SiteStatusExtendedMessage) RFSS() (int, bool) {
	if m.Opcode() == MBTNetworkStatusExtended {
		return 0, false
	}
	return m.seq.blockUint(0, mbtSiteRFSS)
}

func (m *SiteStatusExtendedMessage) Site() (int, bool) {
	if m.Opcode() == MBTNetworkStatusExtended {
		return 0, false
	}
	return m.seq.blockUint(0, mbtSiteSite)
}

func (m *SiteStatusExtendedMessage) TransmitChannel() (identifier.Channel, bool) {
	v, ok := m.seq.blockUint(0, mbtSiteTransmit)
	return optionalChannel(v, ok), ok
}

func (m *SiteStatusExtendedMessage) ReceiveChannel() (identifier.Channel, bool) {
	v, ok := m.seq.blockUint(0, mbtSiteReceive)
	return optionalChannel(v, ok), ok
}

func (m *SiteStatusExtendedMessage) Identifiers() []identifier.Identifier {
	system, ok := m.System()
	if !ok {
		return nil
	}
	wacn, _ := m.WACN()
	rfss, _ := m.RFSS()
	site, _ := m.Site()
	tx, _ := m.TransmitChannel()
	rx, _ := m.ReceiveChannel()
	return []identifier.Identifier{
		identifier.System{Tag: identifier.Tag{P: identifier.APCO25}, WACN: wacn, System: system, RFSS: rfss, Site: site},
		tx,
		rx,
	}
}

func (m *SiteStatusExtendedMessage) String() string {
	system, ok := m.System()
	if !ok {
		return m.pduStub(m.Kind(), fmt.Sprintf("LRA:%d", m.LocationRegistrationArea()))
	}
	var where string
	if wacn, isNet := m.WACN(); isNet {
		where = fmt.Sprintf("WACN:%05X SYSTEM:%03X", wacn, system)
	} else {
		rfss, _ := m.RFSS()
		site, _ := m.Site()
		where = fmt.Sprintf("SYSTEM:%03X RFSS:%d SITE:%d", system, rfss, site)
	}
	tx, _ := m.TransmitChannel()
	rx, _ := m.ReceiveChannel()
	return m.pduStub(m.Kind(), where,
		fmt.Sprintf("LRA:%d CHAN DN:%s CHAN UP:%s CLASS:%02X", m.LocationRegistrationArea(), tx, rx, m.ServiceClass()))
}

// decodeMBT selects the variant of a standard vendor MBT header
func decodeMBT(pdu *PDUMessage) Message {
	base := &MBTMessage{PDUMessage: pdu}
	op := base.Opcode()
	if _, ok := mbtNames[op]; !ok {
		return pdu
	}
	pdu.kind = op.String()

	switch op {
	case MBTGroupVoiceChannelGrantExplicit, MBTGroupDataChannelGrantExtended:
		return &GroupChannelGrantExplicitMessage{base}
	case MBTUnitToUnitVoiceChannelGrantExtended:
		return &UnitToUnitVoiceChannelGrantExtendedMessage{base}
	default:
		return &SiteStatusExtendedMessage{base}
	}
}
