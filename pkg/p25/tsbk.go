package p25

import (
	"fmt"

	"github.com/dbehnke/p25-nexus/pkg/bandplan"
	"github.com/dbehnke/p25-nexus/pkg/bits"
	"github.com/dbehnke/p25-nexus/pkg/edac"
	"github.com/dbehnke/p25-nexus/pkg/identifier"
)

// TSBKOpcode is the 6 bit trunking signaling block opcode
type TSBKOpcode int

const (
	GroupVoiceChannelGrant       TSBKOpcode = 0x00
	GroupVoiceChannelGrantUpdate TSBKOpcode = 0x02
	UnitToUnitVoiceChannelGrant  TSBKOpcode = 0x04
	AcknowledgeResponse          TSBKOpcode = 0x20
	DenyResponse                 TSBKOpcode = 0x27
	GroupAffiliationResponse     TSBKOpcode = 0x28
	UnitRegistrationResponse     TSBKOpcode = 0x2C
	IdentifierUpdateVHFUHF       TSBKOpcode = 0x34
	RFSSStatusBroadcast          TSBKOpcode = 0x3A
	NetworkStatusBroadcast       TSBKOpcode = 0x3B
	AdjacentStatusBroadcast      TSBKOpcode = 0x3C
	IdentifierUpdate             TSBKOpcode = 0x3D
)

var tsbkNames = map[TSBKOpcode]string{
	GroupVoiceChannelGrant:       "GRP_V_CH_GRANT",
	GroupVoiceChannelGrantUpdate: "GRP_V_CH_GRANT_UPDT",
	UnitToUnitVoiceChannelGrant:  "UU_V_CH_GRANT",
	AcknowledgeResponse:          "ACK_RSP_FNE",
	DenyResponse:                 "DENY_RSP",
	GroupAffiliationResponse:     "GRP_AFF_RSP",
	UnitRegistrationResponse:     "U_REG_RSP",
	IdentifierUpdateVHFUHF:       "IDEN_UP_VU",
	RFSSStatusBroadcast:          "RFSS_STS_BCST",
	NetworkStatusBroadcast:       "NET_STS_BCST",
	AdjacentStatusBroadcast:      "ADJ_STS_BCST",
	IdentifierUpdate:             "IDEN_UP",
}

func (o TSBKOpcode) String() string {
	if name, ok := tsbkNames[o]; ok {
		return name
	}
	return fmt.Sprintf("OPCODE(0x%02X)", int(o))
}

// TSBK block offsets
var (
	tsbkLastBlock = 64
	tsbkProtected = 65
	tsbkOpcode    = bits.Range(66, 71)
	tsbkVendor    = bits.Range(72, 79)
	tsbkArguments = bits.Range(80, 143)
)

// TSBKStart is the offset of the CRC protected block
const TSBKStart = nidSize

// TSBKMessage is a trunking signaling block. Opcodes without a dedicated
// variant, and every vendor specific block, decode to this type.
type TSBKMessage struct {
	*Envelope
}

func newTSBK(env *Envelope) *TSBKMessage {
	env.addCRC(edac.P25CCITT80.Check(env.frame, TSBKStart))
	m := &TSBKMessage{Envelope: env}
	if m.Vendor().IsStandard() {
		env.kind = m.Opcode().String()
	} else {
		env.kind = fmt.Sprintf("TSBK %s", m.Vendor())
	}
	return m
}

// LastBlock reports the last block flag
func (m *TSBKMessage) LastBlock() bool { return m.bit(tsbkLastBlock) }

// Protected reports an encrypted block
func (m *TSBKMessage) Protected() bool { return m.bit(tsbkProtected) }

// Opcode returns the opcode
func (m *TSBKMessage) Opcode() TSBKOpcode { return TSBKOpcode(m.field(tsbkOpcode)) }

// Vendor returns the MFID
func (m *TSBKMessage) Vendor() Vendor { return Vendor(m.field(tsbkVendor)) }

// Arguments renders the 64 argument bits as hex
func (m *TSBKMessage) Arguments() string { return m.frame.Hex(tsbkArguments, 16) }

func (m *TSBKMessage) String() string {
	if m.Vendor().IsStandard() {
		return render(m.Envelope, m.Opcode().String(), m.Arguments())
	}
	return render(m.Envelope, fmt.Sprintf("%s OPCODE:%02X", m.Vendor(), int(m.Opcode())), m.Arguments())
}

func channel(m *Envelope, indices []int) identifier.Channel {
	return identifier.NewChannel(m.field(indices))
}

// Voice channel grants

var (
	gvcgOptions = bits.Range(80, 87)
	gvcgChannel = bits.Range(88, 103)
	gvcgGroup   = bits.Range(104, 119)
	gvcgSource  = bits.Range(120, 143)

	gvcguChannelA = bits.Range(80, 95)
	gvcguGroupA   = bits.Range(96, 111)
	gvcguChannelB = bits.Range(112, 127)
	gvcguGroupB   = bits.Range(128, 143)

	uuvcgChannel = bits.Range(80, 95)
	uuvcgTarget  = bits.Range(96, 119)
	uuvcgSource  = bits.Range(120, 143)
)

// GroupVoiceChannelGrantMessage assigns a traffic channel to a group call
type GroupVoiceChannelGrantMessage struct {
	*TSBKMessage
}

func (m *GroupVoiceChannelGrantMessage) ServiceOptions() ServiceOptions {
	return ServiceOptions(m.field(gvcgOptions))
}
func (m *GroupVoiceChannelGrantMessage) Channel() identifier.Channel {
	return channel(m.Envelope, gvcgChannel)
}
func (m *GroupVoiceChannelGrantMessage) GroupAddress() int  { return m.field(gvcgGroup) }
func (m *GroupVoiceChannelGrantMessage) SourceAddress() int { return m.field(gvcgSource) }

func (m *GroupVoiceChannelGrantMessage) Identifiers() []identifier.Identifier {
	return []identifier.Identifier{
		m.Channel(),
		identifier.NewTalkgroup(m.GroupAddress(), identifier.To),
		identifier.NewRadio(m.SourceAddress(), identifier.From),
	}
}

func (m *GroupVoiceChannelGrantMessage) String() string {
	return render(m.Envelope, m.Kind(),
		fmt.Sprintf("FROM:%d TO:%d CHAN:%s", m.SourceAddress(), m.GroupAddress(), m.Channel()),
		m.ServiceOptions().String())
}

// GroupVoiceChannelGrantUpdateMessage announces up to two ongoing group calls
type GroupVoiceChannelGrantUpdateMessage struct {
	*TSBKMessage
}

func (m *GroupVoiceChannelGrantUpdateMessage) ChannelA() identifier.Channel {
	return channel(m.Envelope, gvcguChannelA)
}
func (m *GroupVoiceChannelGrantUpdateMessage) GroupAddressA() int { return m.field(gvcguGroupA) }
func (m *GroupVoiceChannelGrantUpdateMessage) ChannelB() identifier.Channel {
	return channel(m.Envelope, gvcguChannelB)
}
func (m *GroupVoiceChannelGrantUpdateMessage) GroupAddressB() int { return m.field(gvcguGroupB) }

func (m *GroupVoiceChannelGrantUpdateMessage) Identifiers() []identifier.Identifier {
	return []identifier.Identifier{
		m.ChannelA(),
		identifier.NewTalkgroup(m.GroupAddressA(), identifier.To),
		m.ChannelB(),
		identifier.NewTalkgroup(m.GroupAddressB(), identifier.To),
	}
}

func (m *GroupVoiceChannelGrantUpdateMessage) String() string {
	return render(m.Envelope, m.Kind(),
		fmt.Sprintf("GROUP A:%d CHAN A:%s GROUP B:%d CHAN B:%s",
			m.GroupAddressA(), m.ChannelA(), m.GroupAddressB(), m.ChannelB()))
}

// UnitToUnitVoiceChannelGrantMessage assigns a traffic channel to a private call
type UnitToUnitVoiceChannelGrantMessage struct {
	*TSBKMessage
}

func (m *UnitToUnitVoiceChannelGrantMessage) Channel() identifier.Channel {
	return channel(m.Envelope, uuvcgChannel)
}
func (m *UnitToUnitVoiceChannelGrantMessage) TargetAddress() int { return m.field(uuvcgTarget) }
func (m *UnitToUnitVoiceChannelGrantMessage) SourceAddress() int { return m.field(uuvcgSource) }

func (m *UnitToUnitVoiceChannelGrantMessage) Identifiers() []identifier.Identifier {
	return []identifier.Identifier{
		m.Channel(),
		identifier.NewRadio(m.TargetAddress(), identifier.To),
		identifier.NewRadio(m.SourceAddress(), identifier.From),
	}
}

func (m *UnitToUnitVoiceChannelGrantMessage) String() string {
	return render(m.Envelope, m.Kind(),
		fmt.Sprintf("FROM:%d TO:%d CHAN:%s", m.SourceAddress(), m.TargetAddress(), m.Channel()))
}

// Responses

var (
	ackAIV     = 80
	ackEX      = 81
	ackService = bits.Range(82, 87)
	ackSource  = bits.Range(96, 119)
	ackTarget  = bits.Range(120, 143)

	denyAIV        = 80
	denyService    = bits.Range(82, 87)
	denyReason     = bits.Range(88, 95)
	denyAdditional = bits.Range(96, 119)
	denyTarget     = bits.Range(120, 143)

	gafLocalGlobal  = 80
	gafResponse     = bits.Range(86, 87)
	gafAnnouncement = bits.Range(88, 103)
	gafGroup        = bits.Range(104, 119)
	gafTarget       = bits.Range(120, 143)

	uregResponse = bits.Range(82, 83)
	uregSystem   = bits.Range(84, 95)
	uregSourceID = bits.Range(96, 119)
	uregAddress  = bits.Range(120, 143)
)

// ResponseValue is the 2 bit outcome of affiliation and registration requests
type ResponseValue int

const (
	ResponseAccept ResponseValue = iota
	ResponseFail
	ResponseDeny
	ResponseRefused
)

func (r ResponseValue) String() string {
	switch r {
	case ResponseAccept:
		return "ACCEPT"
	case ResponseFail:
		return "FAIL"
	case ResponseDeny:
		return "DENY"
	default:
		return "REFUSED"
	}
}

// AcknowledgeResponseMessage acknowledges a service request on behalf of the FNE
type AcknowledgeResponseMessage struct {
	*TSBKMessage
}

// AdditionalInfoValid reports the AIV flag
func (m *AcknowledgeResponseMessage) AdditionalInfoValid() bool { return m.bit(ackAIV) }

// Extended reports the EX flag
func (m *AcknowledgeResponseMessage) Extended() bool { return m.bit(ackEX) }

// ServiceType is the opcode of the acknowledged request
func (m *AcknowledgeResponseMessage) ServiceType() TSBKOpcode {
	return TSBKOpcode(m.field(ackService))
}
func (m *AcknowledgeResponseMessage) SourceAddress() int { return m.field(ackSource) }
func (m *AcknowledgeResponseMessage) TargetAddress() int { return m.field(ackTarget) }

func (m *AcknowledgeResponseMessage) Identifiers() []identifier.Identifier {
	ids := []identifier.Identifier{identifier.NewRadio(m.TargetAddress(), identifier.To)}
	if m.AdditionalInfoValid() {
		ids = append(ids, identifier.NewRadio(m.SourceAddress(), identifier.From))
	}
	return ids
}

func (m *AcknowledgeResponseMessage) String() string {
	return render(m.Envelope, m.Kind(),
		fmt.Sprintf("SERVICE:%s TO:%d", m.ServiceType(), m.TargetAddress()))
}

// DenyResponseMessage refuses a service request
type DenyResponseMessage struct {
	*TSBKMessage
}

func (m *DenyResponseMessage) AdditionalInfoValid() bool { return m.bit(denyAIV) }
func (m *DenyResponseMessage) ServiceType() TSBKOpcode {
	return TSBKOpcode(m.field(denyService))
}
func (m *DenyResponseMessage) Reason() int         { return m.field(denyReason) }
func (m *DenyResponseMessage) AdditionalInfo() int { return m.field(denyAdditional) }
func (m *DenyResponseMessage) TargetAddress() int  { return m.field(denyTarget) }

func (m *DenyResponseMessage) Identifiers() []identifier.Identifier {
	return []identifier.Identifier{identifier.NewRadio(m.TargetAddress(), identifier.To)}
}

func (m *DenyResponseMessage) String() string {
	return render(m.Envelope, m.Kind(),
		fmt.Sprintf("SERVICE:%s REASON:%02X TO:%d", m.ServiceType(), m.Reason(), m.TargetAddress()))
}

// GroupAffiliationResponseMessage answers a radio's group affiliation
type GroupAffiliationResponseMessage struct {
	*TSBKMessage
}

// Global reports a global (system wide) affiliation
func (m *GroupAffiliationResponseMessage) Global() bool { return m.bit(gafLocalGlobal) }
func (m *GroupAffiliationResponseMessage) Response() ResponseValue {
	return ResponseValue(m.field(gafResponse))
}
func (m *GroupAffiliationResponseMessage) AnnouncementGroup() int { return m.field(gafAnnouncement) }
func (m *GroupAffiliationResponseMessage) GroupAddress() int      { return m.field(gafGroup) }
func (m *GroupAffiliationResponseMessage) TargetAddress() int     { return m.field(gafTarget) }

func (m *GroupAffiliationResponseMessage) Identifiers() []identifier.Identifier {
	return []identifier.Identifier{
		identifier.NewRadio(m.TargetAddress(), identifier.To),
		identifier.NewTalkgroup(m.GroupAddress(), identifier.Any),
	}
}

func (m *GroupAffiliationResponseMessage) String() string {
	scope := "LOCAL"
	if m.Global() {
		scope = "GLOBAL"
	}
	return render(m.Envelope, m.Kind(),
		fmt.Sprintf("%s %s RADIO:%d GROUP:%d ANNOUNCEMENT GROUP:%d",
			m.Response(), scope, m.TargetAddress(), m.GroupAddress(), m.AnnouncementGroup()))
}

// UnitRegistrationResponseMessage answers a radio's registration
type UnitRegistrationResponseMessage struct {
	*TSBKMessage
}

func (m *UnitRegistrationResponseMessage) Response() ResponseValue {
	return ResponseValue(m.field(uregResponse))
}
func (m *UnitRegistrationResponseMessage) System() int        { return m.field(uregSystem) }
func (m *UnitRegistrationResponseMessage) SourceID() int      { return m.field(uregSourceID) }
func (m *UnitRegistrationResponseMessage) SourceAddress() int { return m.field(uregAddress) }

func (m *UnitRegistrationResponseMessage) Identifiers() []identifier.Identifier {
	return []identifier.Identifier{
		identifier.NewRadio(m.SourceID(), identifier.To),
		identifier.System{Tag: identifier.Tag{P: identifier.APCO25}, System: m.System()},
	}
}

func (m *UnitRegistrationResponseMessage) String() string {
	return render(m.Envelope, m.Kind(),
		fmt.Sprintf("%s SYSTEM:%03X RADIO:%d ADDRESS:%d", m.Response(), m.System(), m.SourceID(), m.SourceAddress()))
}

// Channel identifier updates

var (
	idenID = bits.Range(80, 83)

	idenBandwidth     = bits.Range(84, 92)
	idenOffsetSign    = 93
	idenOffset        = bits.Range(94, 101)
	idenSpacing       = bits.Range(102, 111)
	idenBaseFrequency = bits.Range(112, 143)

	idenVUBandwidth  = bits.Range(84, 87)
	idenVUOffsetSign = 88
	idenVUOffset     = bits.Range(89, 101)
)

// IdentifierUpdateMessage announces a band plan entry (IDEN_UP and IDEN_UP_VU)
type IdentifierUpdateMessage struct {
	*TSBKMessage
}

// Identifier is the 4 bit channel identifier the entry defines
func (m *IdentifierUpdateMessage) Identifier() int { return m.field(idenID) }

// BaseHz is the frequency of channel number 0
func (m *IdentifierUpdateMessage) BaseHz() int64 { return int64(m.field(idenBaseFrequency)) * 5 }

// SpacingHz is the channel spacing
func (m *IdentifierUpdateMessage) SpacingHz() int64 { return int64(m.field(idenSpacing)) * 125 }

// BandwidthHz is the channel bandwidth
func (m *IdentifierUpdateMessage) BandwidthHz() int64 {
	if m.Opcode() == IdentifierUpdateVHFUHF {
		switch m.field(idenVUBandwidth) {
		case 0x4:
			return 6250
		case 0x5:
			return 12500
		default:
			return 0
		}
	}
	return int64(m.field(idenBandwidth)) * 125
}

// TransmitOffsetHz is the uplink offset from the downlink frequency. VHF/UHF
// offsets count channel spacings, 700/800/900 MHz offsets count 250 kHz steps.
func (m *IdentifierUpdateMessage) TransmitOffsetHz() int64 {
	offset := int64(m.field(idenOffset)) * 250000
	positive := m.bit(idenOffsetSign)
	if m.Opcode() == IdentifierUpdateVHFUHF {
		offset = int64(m.field(idenVUOffset)) * m.SpacingHz()
		positive = m.bit(idenVUOffsetSign)
	}
	if !positive {
		offset = -offset
	}
	return offset
}

// Band converts the update into a band plan entry
func (m *IdentifierUpdateMessage) Band() bandplan.Band {
	return bandplan.Band{
		ID:               m.Identifier(),
		BaseHz:           m.BaseHz(),
		SpacingHz:        m.SpacingHz(),
		TransmitOffsetHz: m.TransmitOffsetHz(),
		BandwidthHz:      m.BandwidthHz(),
	}
}

func (m *IdentifierUpdateMessage) String() string {
	return render(m.Envelope, m.Kind(),
		fmt.Sprintf("ID:%d BASE:%d SPACING:%d OFFSET:%d BANDWIDTH:%d",
			m.Identifier(), m.BaseHz(), m.SpacingHz(), m.TransmitOffsetHz(), m.BandwidthHz()))
}

// Status broadcasts

var (
	stsLRA = bits.Range(80, 87)

	rfssRoaming = 90
	rfssActive  = 91
	rfssSystem  = bits.Range(92, 103)
	rfssRFSS    = bits.Range(104, 111)
	rfssSite    = bits.Range(112, 119)
	stsChannel  = bits.Range(120, 135)
	stsClass    = bits.Range(136, 143)

	netWACN   = bits.Range(88, 107)
	netSystem = bits.Range(108, 119)

	adjFlags  = bits.Range(88, 91)
	adjSystem = bits.Range(92, 103)
	adjRFSS   = bits.Range(104, 111)
	adjSite   = bits.Range(112, 119)
)

// StatusBroadcastMessage is an RFSS, network or adjacent site status
// broadcast. Fields a given broadcast does not carry read as zero.
type StatusBroadcastMessage struct {
	*TSBKMessage
}

// LocationRegistrationArea is the LRA
func (m *StatusBroadcastMessage) LocationRegistrationArea() int { return m.field(stsLRA) }

// Channel is the control channel of the announced site
func (m *StatusBroadcastMessage) Channel() identifier.Channel { return channel(m.Envelope, stsChannel) }

// ServiceClass is the system service class octet
func (m *StatusBroadcastMessage) ServiceClass() int { return m.field(stsClass) }

// WACN is the wide area communication network ID (network status only)
func (m *StatusBroadcastMessage) WACN() int {
	if m.Opcode() == NetworkStatusBroadcast {
		return m.field(netWACN)
	}
	return 0
}

// System is the 12 bit system ID
func (m *StatusBroadcastMessage) System() int {
	switch m.Opcode() {
	case NetworkStatusBroadcast:
		return m.field(netSystem)
	case AdjacentStatusBroadcast:
		return m.field(adjSystem)
	default:
		return m.field(rfssSystem)
	}
}

// RFSS is the RF subsystem ID
func (m *StatusBroadcastMessage) RFSS() int {
	switch m.Opcode() {
	case RFSSStatusBroadcast:
		return m.field(rfssRFSS)
	case AdjacentStatusBroadcast:
		return m.field(adjRFSS)
	default:
		return 0
	}
}

// Site is the site ID
func (m *StatusBroadcastMessage) Site() int {
	switch m.Opcode() {
	case RFSSStatusBroadcast:
		return m.field(rfssSite)
	case AdjacentStatusBroadcast:
		return m.field(adjSite)
	default:
		return 0
	}
}

// ActiveNetworkConnection reports the A flag of an RFSS status broadcast
func (m *StatusBroadcastMessage) ActiveNetworkConnection() bool {
	return m.Opcode() == RFSSStatusBroadcast && m.bit(rfssActive)
}

// Roaming reports the R flag of an RFSS status broadcast
func (m *StatusBroadcastMessage) Roaming() bool {
	return m.Opcode() == RFSSStatusBroadcast && m.bit(rfssRoaming)
}

// SiteFlags is the conventional/failure/valid/active nibble of an adjacent
// status broadcast
func (m *StatusBroadcastMessage) SiteFlags() int {
	if m.Opcode() == AdjacentStatusBroadcast {
		return m.field(adjFlags)
	}
	return 0
}

func (m *StatusBroadcastMessage) Identifiers() []identifier.Identifier {
	return []identifier.Identifier{
		identifier.System{
			Tag:    identifier.Tag{P: identifier.APCO25},
			WACN:   m.WACN(),
			System: m.System(),
			RFSS:   m.RFSS(),
			Site:   m.Site(),
		},
		m.Channel(),
	}
}

func (m *StatusBroadcastMessage) String() string {
	var where string
	if m.Opcode() == NetworkStatusBroadcast {
		where = fmt.Sprintf("WACN:%05X SYSTEM:%03X", m.WACN(), m.System())
	} else {
		where = fmt.Sprintf("SYSTEM:%03X RFSS:%d SITE:%d", m.System(), m.RFSS(), m.Site())
	}
	return render(m.Envelope, m.Kind(), where,
		fmt.Sprintf("LRA:%d CHAN:%s CLASS:%02X", m.LocationRegistrationArea(), m.Channel(), m.ServiceClass()))
}

// decodeTSBK dispatches a standard vendor block to its opcode variant
func decodeTSBK(env *Envelope) Message {
	base := newTSBK(env)
	if !base.Vendor().IsStandard() || base.Protected() {
		return base
	}
	switch base.Opcode() {
	case GroupVoiceChannelGrant:
		return &GroupVoiceChannelGrantMessage{base}
	case GroupVoiceChannelGrantUpdate:
		return &GroupVoiceChannelGrantUpdateMessage{base}
	case UnitToUnitVoiceChannelGrant:
		return &UnitToUnitVoiceChannelGrantMessage{base}
	case AcknowledgeResponse:
		return &AcknowledgeResponseMessage{base}
	case DenyResponse:
		return &DenyResponseMessage{base}
	case GroupAffiliationResponse:
		return &GroupAffiliationResponseMessage{base}
	case UnitRegistrationResponse:
		return &UnitRegistrationResponseMessage{base}
	case IdentifierUpdate, IdentifierUpdateVHFUHF:
		return &IdentifierUpdateMessage{base}
	case RFSSStatusBroadcast, NetworkStatusBroadcast, AdjacentStatusBroadcast:
		return &StatusBroadcastMessage{base}
	default:
		return base
	}
}
