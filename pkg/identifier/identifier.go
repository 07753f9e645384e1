// Package identifier models the protocol values decoded messages expose:
// talkgroups, radios, channels, encryption parameters and textual IDs.
package identifier

import (
	"fmt"
	"regexp"
	"strings"
)

// Role is the direction an identifier plays in a message
type Role int

const (
	Any Role = iota
	From
	To
)

func (r Role) String() string {
	switch r {
	case From:
		return "FROM"
	case To:
		return "TO"
	default:
		return "ANY"
	}
}

// MarshalText renders the role name in JSON
func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// Protocol tags the air interface an identifier belongs to
type Protocol int

const (
	UnknownProtocol Protocol = iota
	APCO25
	DMR
	Fleetsync
	MPT1327
	LoJack
)

var protocolNames = map[Protocol]string{
	UnknownProtocol: "UNKNOWN",
	APCO25:          "APCO25",
	DMR:             "DMR",
	Fleetsync:       "FLEETSYNC",
	MPT1327:         "MPT1327",
	LoJack:          "LOJACK",
}

func (p Protocol) String() string {
	if name, ok := protocolNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Protocol(%d)", int(p))
}

// MarshalText renders the protocol name in JSON
func (p Protocol) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// Form is the kind of value an identifier carries
type Form int

const (
	TalkgroupForm Form = iota
	RadioForm
	FullyQualifiedRadioForm
	FleetsyncForm
	EncryptionForm
	ChannelForm
	ESNForm
	MINForm
	MPT1327Form
	LoJackForm
	SystemForm
)

var formNames = map[Form]string{
	TalkgroupForm:           "TALKGROUP",
	RadioForm:               "RADIO",
	FullyQualifiedRadioForm: "FULLY_QUALIFIED_RADIO",
	FleetsyncForm:           "FLEETSYNC",
	EncryptionForm:          "ENCRYPTION",
	ChannelForm:             "CHANNEL",
	ESNForm:                 "ESN",
	MINForm:                 "MIN",
	MPT1327Form:             "MPT1327",
	LoJackForm:              "LOJACK",
	SystemForm:              "SYSTEM",
}

func (f Form) String() string {
	if name, ok := formNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Form(%d)", int(f))
}

// MarshalText renders the form name in JSON
func (f Form) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

// Identifier is implemented by every identifier type
type Identifier interface {
	Form() Form
	Role() Role
	Protocol() Protocol
	String() string
}

// Tag carries the role and protocol shared by all identifiers
type Tag struct {
	R Role     `json:"role"`
	P Protocol `json:"protocol"`
}

func (t Tag) Role() Role         { return t.R }
func (t Tag) Protocol() Protocol { return t.P }

// Talkgroup is a group address
type Talkgroup struct {
	Tag
	Value int `json:"value"`
}

// NewTalkgroup creates a P25 talkgroup
func NewTalkgroup(value int, role Role) Talkgroup {
	return Talkgroup{Tag: Tag{R: role, P: APCO25}, Value: value}
}

func (Talkgroup) Form() Form       { return TalkgroupForm }
func (t Talkgroup) String() string { return fmt.Sprintf("%d", t.Value) }

// Radio is an individual unit address
type Radio struct {
	Tag
	Value int `json:"value"`
}

// NewRadio creates a P25 radio ID
func NewRadio(value int, role Role) Radio {
	return Radio{Tag: Tag{R: role, P: APCO25}, Value: value}
}

func (Radio) Form() Form       { return RadioForm }
func (r Radio) String() string { return fmt.Sprintf("%d", r.Value) }

// FullyQualifiedRadio is a radio ID qualified by its home WACN and system
type FullyQualifiedRadio struct {
	Tag
	WACN   int `json:"wacn"`
	System int `json:"system"`
	ID     int `json:"id"`
}

// NewFullyQualifiedRadio splits a 56 bit WACN(20) + system(12) + ID(24) value
func NewFullyQualifiedRadio(combined uint64, role Role) FullyQualifiedRadio {
	return FullyQualifiedRadio{
		Tag:    Tag{R: role, P: APCO25},
		WACN:   int(combined >> 36 & 0xFFFFF),
		System: int(combined >> 24 & 0xFFF),
		ID:     int(combined & 0xFFFFFF),
	}
}

func (FullyQualifiedRadio) Form() Form { return FullyQualifiedRadioForm }

func (r FullyQualifiedRadio) String() string {
	return fmt.Sprintf("%05X.%03X.%d", r.WACN, r.System, r.ID)
}

// FleetsyncID is a Fleetsync fleet and ident pair
type FleetsyncID struct {
	Tag
	Fleet int `json:"fleet"`
	Ident int `json:"ident"`
}

// NewFleetsyncID splits a combined fleet(8) + ident(12) value
func NewFleetsyncID(combined int, role Role) FleetsyncID {
	return FleetsyncID{
		Tag:   Tag{R: role, P: Fleetsync},
		Fleet: combined >> 12 & 0xFF,
		Ident: combined & 0xFFF,
	}
}

func (FleetsyncID) Form() Form { return FleetsyncForm }

func (f FleetsyncID) String() string {
	return fmt.Sprintf("%03d-%04d", f.Fleet, f.Ident)
}

// Encryption describes the cipher protecting a call
type Encryption struct {
	Tag
	Algorithm string `json:"algorithm"`
	KeyID     int    `json:"key_id"`
	MI        string `json:"message_indicator,omitempty"`
}

func (Encryption) Form() Form { return EncryptionForm }

func (e Encryption) String() string {
	if e.MI != "" {
		return fmt.Sprintf("%s KEY:%04X MI:%s", e.Algorithm, e.KeyID, e.MI)
	}
	return fmt.Sprintf("%s KEY:%04X", e.Algorithm, e.KeyID)
}

// Channel is a band plan identifier + channel number pair, with the
// frequencies resolved when a band plan entry was available
type Channel struct {
	Tag
	Band     int   `json:"band"`
	Number   int   `json:"number"`
	Downlink int64 `json:"downlink_hz,omitempty"`
	Uplink   int64 `json:"uplink_hz,omitempty"`
}

// NewChannel creates an unresolved P25 channel from its 16 bit form
func NewChannel(value int) Channel {
	return Channel{Tag: Tag{P: APCO25}, Band: value >> 12 & 0xF, Number: value & 0xFFF}
}

func (Channel) Form() Form { return ChannelForm }

// Resolved reports whether a frequency is known
func (c Channel) Resolved() bool { return c.Downlink > 0 }

func (c Channel) String() string {
	if c.Resolved() {
		return fmt.Sprintf("%d-%d [%.5f MHz]", c.Band, c.Number, float64(c.Downlink)/1e6)
	}
	return fmt.Sprintf("%d-%d", c.Band, c.Number)
}

// System names a P25 system by WACN, system and optionally RFSS and site
type System struct {
	Tag
	WACN   int `json:"wacn,omitempty"`
	System int `json:"system"`
	RFSS   int `json:"rfss,omitempty"`
	Site   int `json:"site,omitempty"`
}

func (System) Form() Form { return SystemForm }

func (s System) String() string {
	return fmt.Sprintf("%05X.%03X RFSS %d SITE %d", s.WACN, s.System, s.RFSS, s.Site)
}

// Text is a textual identifier (ESN, MIN, MPT1327, LoJack) that may carry
// '*' wildcards when used as a pattern
type Text struct {
	Tag
	F     Form   `json:"form"`
	Value string `json:"value"`
}

// NewText creates a textual identifier
func NewText(form Form, protocol Protocol, value string) Text {
	return Text{Tag: Tag{P: protocol}, F: form, Value: value}
}

func (t Text) Form() Form     { return t.F }
func (t Text) String() string { return t.Value }

// Matches reports whether t, read as a pattern, matches other. Each '*' in
// the pattern matches exactly one character and the whole value must match.
func (t Text) Matches(other Text) bool {
	return t.F == other.F && MatchPattern(t.Value, other.Value)
}

// MatchPattern matches value against a '*' wildcard pattern. A pattern
// without wildcards must equal value. An invalid pattern matches nothing.
func MatchPattern(pattern, value string) bool {
	if !strings.Contains(pattern, "*") {
		return pattern == value
	}
	re, err := compilePattern(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(value)
}

func compilePattern(pattern string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString("^")
	for _, part := range strings.SplitAfter(pattern, "*") {
		if strings.HasSuffix(part, "*") {
			sb.WriteString(regexp.QuoteMeta(strings.TrimSuffix(part, "*")))
			sb.WriteString(".")
			continue
		}
		sb.WriteString(regexp.QuoteMeta(part))
	}
	sb.WriteString("$")
	return regexp.Compile(sb.String())
}
