package p25

import (
	"fmt"

	"github.com/dbehnke/p25-nexus/pkg/bits"
	"github.com/dbehnke/p25-nexus/pkg/edac"
	"github.com/dbehnke/p25-nexus/pkg/identifier"
)

// PDUFormat is the 5 bit packet format of a PDU header
type PDUFormat int

const (
	FormatResponse                    PDUFormat = 0x03
	FormatUnconfirmedDelivery         PDUFormat = 0x15
	FormatConfirmedDelivery           PDUFormat = 0x16
	FormatAlternateMultiBlockTrunking PDUFormat = 0x17
)

func (f PDUFormat) String() string {
	switch f {
	case FormatResponse:
		return "RESPONSE"
	case FormatUnconfirmedDelivery:
		return "UNCONFIRMED"
	case FormatConfirmedDelivery:
		return "CONFIRMED"
	case FormatAlternateMultiBlockTrunking:
		return "ALTERNATE MULTI-BLOCK TRUNKING"
	default:
		return fmt.Sprintf("FORMAT(0x%02X)", int(f))
	}
}

// ServiceAccessPoint identifies the user of a packet
type ServiceAccessPoint int

var sapNames = map[ServiceAccessPoint]string{
	0x00: "USER DATA",
	0x01: "ENCRYPTED USER DATA",
	0x02: "CIRCUIT DATA",
	0x03: "CIRCUIT DATA CONTROL",
	0x04: "PACKET DATA",
	0x05: "ADDRESS RESOLUTION PROTOCOL",
	0x06: "SNDCP PACKET DATA CONTROL",
	0x1F: "EXTENDED ADDRESS",
	0x20: "REGISTRATION AND AUTHORIZATION",
	0x21: "CHANNEL REASSIGNMENT",
	0x22: "SYSTEM CONFIGURATION",
	0x23: "MOBILE RADIO LOOPBACK",
	0x24: "MOBILE RADIO STATISTICS",
	0x25: "MOBILE RADIO OUT OF SERVICE",
	0x26: "MOBILE RADIO PAGING",
	0x27: "MOBILE RADIO CONFIGURATION",
	0x28: "UNENCRYPTED KEY MANAGEMENT",
	0x29: "ENCRYPTED KEY MANAGEMENT",
	0x3D: "TRUNKING CONTROL",
	0x3F: "ENCRYPTED TRUNKING CONTROL",
}

func (s ServiceAccessPoint) String() string {
	if name, ok := sapNames[s]; ok {
		return name
	}
	return fmt.Sprintf("SAP(0x%02X)", int(s))
}

// PDU header offsets
var (
	pduConfirmationRequired = 65
	pduOutbound             = 66
	pduFormat               = bits.Range(69, 73)
	pduSAP                  = bits.Range(74, 79)
	pduVendor               = bits.Range(81, 88)
	pduLogicalLinkID        = bits.Range(89, 112)
	pduFullMessage          = 113
	pduBlocksToFollow       = bits.Range(114, 120)
	pduPadOctets            = bits.Range(123, 127)
	pduResynchronize        = 128
	pduSequenceNumber       = bits.Range(129, 131)
	pduFragmentSequence     = bits.Range(132, 135)
	pduDataHeaderOffset     = bits.Range(138, 143)

	pduResponseClass  = bits.Range(74, 75)
	pduResponseType   = bits.Range(76, 78)
	pduResponseStatus = bits.Range(79, 81)

	pduMBTOpcode = bits.Range(122, 127)
	pduMBTOctets = bits.Range(128, 143)
)

// PDUHeaderStart is the offset of the CRC protected header block
const PDUHeaderStart = nidSize

// PDUMessage is a packet data unit header with the data blocks collected
// for it so far. Formats, vendors and opcodes without a dedicated variant
// decode to this type.
type PDUMessage struct {
	*Envelope
	seq *PDUSequence
}

func newPDU(env *Envelope) *PDUMessage {
	env.addCRC(edac.P25CCITT80.Check(env.frame, PDUHeaderStart))
	m := &PDUMessage{Envelope: env}
	m.seq = NewPDUSequence(env.frame.Slice(0, packetPrefixSize), m.BlocksToFollow(), m.Format() == FormatConfirmedDelivery)
	env.kind = "PDU " + m.Format().String()
	return m
}

// Sequence returns the block reassembler fed by the processor
func (m *PDUMessage) Sequence() *PDUSequence { return m.seq }

// ConfirmationRequired reports the A/N flag
func (m *PDUMessage) ConfirmationRequired() bool { return m.bit(pduConfirmationRequired) }

// Outbound reports the I/O flag: true from the FNE to the radio
func (m *PDUMessage) Outbound() bool { return m.bit(pduOutbound) }

// Format returns the packet format
func (m *PDUMessage) Format() PDUFormat { return PDUFormat(m.field(pduFormat)) }

// SAP returns the service access point. Response headers have none.
func (m *PDUMessage) SAP() ServiceAccessPoint { return ServiceAccessPoint(m.field(pduSAP)) }

// Vendor returns the MFID
func (m *PDUMessage) Vendor() Vendor { return Vendor(m.field(pduVendor)) }

// LogicalLinkID is the radio the packet is addressed to or sent from
func (m *PDUMessage) LogicalLinkID() int { return m.field(pduLogicalLinkID) }

// FullMessage reports the FMF flag
func (m *PDUMessage) FullMessage() bool { return m.bit(pduFullMessage) }

// BlocksToFollow is the declared data block count
func (m *PDUMessage) BlocksToFollow() int { return m.field(pduBlocksToFollow) }

// IsComplete reports whether every declared data block has arrived
func (m *PDUMessage) IsComplete() bool { return m.seq.IsComplete() }

// IsValid also accounts for the data block and packet CRCs
func (m *PDUMessage) IsValid() bool {
	if !m.Envelope.IsValid() {
		return false
	}
	for _, c := range m.seq.CRCs() {
		if c.Failed() {
			return false
		}
	}
	return true
}

// CRCs lists header results followed by block and packet results
func (m *PDUMessage) CRCs() []edac.CRC {
	return append(m.Envelope.CRCs(), m.seq.CRCs()...)
}

func (m *PDUMessage) llid() identifier.Radio {
	role := identifier.From
	if m.Outbound() {
		role = identifier.To
	}
	return identifier.NewRadio(m.LogicalLinkID(), role)
}

func (m *PDUMessage) Identifiers() []identifier.Identifier {
	return []identifier.Identifier{m.llid()}
}

// pduStub renders the envelope and the sequence state
func (m *PDUMessage) pduStub(fields ...string) string {
	stub := render(m.Envelope, fields...)
	if !m.seq.IsComplete() {
		stub += " " + m.seq.String()
	}
	if !m.Envelope.IsValid() || m.IsValid() {
		return stub
	}
	return stub + " [BLOCK CRC FAIL]"
}

func (m *PDUMessage) String() string {
	return m.pduStub(m.Format().String(),
		fmt.Sprintf("%s LLID:%d SAP:%s BLOCKS:%d", m.Vendor(), m.LogicalLinkID(), m.SAP(), m.BlocksToFollow()))
}

// ResponseMessage acknowledges confirmed packet data. The response octet
// takes the place of the SAP and runs into the vendor field, so responses
// carry no MFID.
type ResponseMessage struct {
	*PDUMessage
}

// Vendor is always standard for a response
func (m *ResponseMessage) Vendor() Vendor { return VendorStandard }

// ResponseClass is ACK, NACK or SACK
type ResponseClass int

const (
	ResponseClassACK ResponseClass = iota
	ResponseClassNACK
	ResponseClassSACK
	ResponseClassReserved
)

func (c ResponseClass) String() string {
	return [...]string{"ACK", "NACK", "SACK", "RESERVED"}[c&3]
}

var nackTypes = map[int]string{
	0: "ILLEGAL FORMAT",
	1: "PACKET CRC ERROR",
	2: "MEMORY FULL",
	3: "FSN OUT OF SEQUENCE",
	4: "UNDELIVERABLE",
	5: "NS OUT OF SEQUENCE",
	6: "INVALID USER",
}

func (m *ResponseMessage) Class() ResponseClass { return ResponseClass(m.field(pduResponseClass)) }
func (m *ResponseMessage) Type() int            { return m.field(pduResponseType) }
func (m *ResponseMessage) Status() int          { return m.field(pduResponseStatus) }

// Description names the class and type
func (m *ResponseMessage) Description() string {
	switch m.Class() {
	case ResponseClassACK:
		return "ACK"
	case ResponseClassNACK:
		if name, ok := nackTypes[m.Type()]; ok {
			return "NACK " + name
		}
		return fmt.Sprintf("NACK TYPE:%d", m.Type())
	case ResponseClassSACK:
		return "SACK"
	default:
		return fmt.Sprintf("RESPONSE CLASS:%d TYPE:%d", int(m.Class()), m.Type())
	}
}

func (m *ResponseMessage) String() string {
	return m.pduStub("RESPONSE", m.Description(),
		fmt.Sprintf("STATUS:%d LLID:%d", m.Status(), m.LogicalLinkID()))
}

// PacketDataMessage is confirmed or unconfirmed user packet data
type PacketDataMessage struct {
	*PDUMessage
}

func (m *PacketDataMessage) PadOctets() int        { return m.field(pduPadOctets) }
func (m *PacketDataMessage) Resynchronize() bool   { return m.bit(pduResynchronize) }
func (m *PacketDataMessage) SequenceNumber() int   { return m.field(pduSequenceNumber) }
func (m *PacketDataMessage) FragmentSequence() int { return m.field(pduFragmentSequence) }
func (m *PacketDataMessage) DataHeaderOffset() int { return m.field(pduDataHeaderOffset) }

// UserData returns the packet octets without pad octets and packet CRC.
// It is unavailable until the sequence is complete.
func (m *PacketDataMessage) UserData() ([]byte, bool) {
	if !m.seq.IsComplete() {
		return nil, false
	}
	payload := m.seq.Payload()
	n := payload.Size()/8 - 4 - m.PadOctets()
	if n < 0 {
		return nil, false
	}
	return payload.Bytes()[:n], true
}

func (m *PacketDataMessage) String() string {
	fields := []string{m.Format().String(), fmt.Sprintf("LLID:%d SAP:%s", m.LogicalLinkID(), m.SAP())}
	if data, ok := m.UserData(); ok {
		fields = append(fields, fmt.Sprintf("%d OCTETS", len(data)))
	}
	return m.pduStub(fields...)
}

// decodePDU dispatches a PDU header on format, vendor and opcode
func decodePDU(env *Envelope) Message {
	base := newPDU(env)
	switch base.Format() {
	case FormatResponse:
		return &ResponseMessage{base}
	case FormatUnconfirmedDelivery, FormatConfirmedDelivery:
		return &PacketDataMessage{base}
	case FormatAlternateMultiBlockTrunking:
		if !base.Vendor().IsStandard() {
			return base
		}
		return decodeMBT(base)
	default:
		return base
	}
}
