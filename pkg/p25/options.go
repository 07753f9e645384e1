package p25

import (
	"fmt"
	"strings"
)

// ServiceOptions is the 8 bit service options octet of grants and link
// control: emergency, encrypted, duplex, session mode, reserved, priority.
type ServiceOptions uint8

// Emergency reports an emergency call
func (s ServiceOptions) Emergency() bool { return s&0x80 != 0 }

// Encrypted reports an encrypted call
func (s ServiceOptions) Encrypted() bool { return s&0x40 != 0 }

// Duplex renders FULL or HALF
func (s ServiceOptions) Duplex() string {
	if s&0x20 != 0 {
		return "FULL"
	}
	return "HALF"
}

// SessionMode renders PACKET or CIRCUIT
func (s ServiceOptions) SessionMode() string {
	if s&0x10 != 0 {
		return "PACKET"
	}
	return "CIRCUIT"
}

// Priority is 1 (lowest) to 7 (highest), 0 when unset
func (s ServiceOptions) Priority() int { return int(s & 0x07) }

func (s ServiceOptions) String() string {
	var parts []string
	if s.Emergency() {
		parts = append(parts, "EMERGENCY")
	}
	if s.Encrypted() {
		parts = append(parts, "ENCRYPTED")
	}
	parts = append(parts, s.Duplex()+" DUPLEX", s.SessionMode(), fmt.Sprintf("PRI%d", s.Priority()))
	return strings.Join(parts, " ")
}

// Algorithm is the encryption algorithm ID
type Algorithm int

const (
	AlgorithmAccordion     Algorithm = 0x00
	AlgorithmBatonEven     Algorithm = 0x01
	AlgorithmFirefly       Algorithm = 0x02
	AlgorithmMayfly        Algorithm = 0x03
	AlgorithmSaville       Algorithm = 0x04
	AlgorithmBatonOdd      Algorithm = 0x41
	AlgorithmUnencrypted   Algorithm = 0x80
	AlgorithmDESOFB        Algorithm = 0x81
	AlgorithmTripleDES2Key Algorithm = 0x82
	AlgorithmTripleDES3Key Algorithm = 0x83
	AlgorithmAES256        Algorithm = 0x84
	AlgorithmAES128        Algorithm = 0x85
	AlgorithmAESCBC        Algorithm = 0x88
	AlgorithmDESXL         Algorithm = 0x9F
	AlgorithmDVIXL         Algorithm = 0xA0
	AlgorithmDVPXL         Algorithm = 0xA1
	AlgorithmADP           Algorithm = 0xAA
)

var algorithmNames = map[Algorithm]string{
	AlgorithmAccordion:     "ACCORDION",
	AlgorithmBatonEven:     "BATON_EVEN",
	AlgorithmFirefly:       "FIREFLY",
	AlgorithmMayfly:        "MAYFLY",
	AlgorithmSaville:       "SAVILLE",
	AlgorithmBatonOdd:      "BATON_ODD",
	AlgorithmUnencrypted:   "UNENCRYPTED",
	AlgorithmDESOFB:        "DES-OFB",
	AlgorithmTripleDES2Key: "2-KEY 3DES",
	AlgorithmTripleDES3Key: "3-KEY 3DES",
	AlgorithmAES256:        "AES-256",
	AlgorithmAES128:        "AES-128",
	AlgorithmAESCBC:        "AES-CBC",
	AlgorithmDESXL:         "DES-XL",
	AlgorithmDVIXL:         "DVI-XL",
	AlgorithmDVPXL:         "DVP-XL",
	AlgorithmADP:           "ADP",
}

// Known reports whether the ID is an assigned algorithm
func (a Algorithm) Known() bool {
	_, ok := algorithmNames[a]
	return ok
}

// Encrypted is true for every algorithm except UNENCRYPTED
func (a Algorithm) Encrypted() bool { return a != AlgorithmUnencrypted }

func (a Algorithm) String() string {
	if name, ok := algorithmNames[a]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(0x%02X)", int(a))
}

// Vendor is the manufacturer ID (MFID)
type Vendor int

const (
	VendorStandard    Vendor = 0x00
	VendorStandardAlt Vendor = 0x01
	VendorMotorola    Vendor = 0x90
	VendorHarris      Vendor = 0xA4
)

var vendorNames = map[Vendor]string{
	VendorStandard:    "STANDARD",
	VendorStandardAlt: "STANDARD",
	VendorMotorola:    "MOTOROLA",
	VendorHarris:      "HARRIS",
}

// IsStandard reports the TIA standard vendor IDs
func (v Vendor) IsStandard() bool {
	return v == VendorStandard || v == VendorStandardAlt
}

func (v Vendor) String() string {
	if name, ok := vendorNames[v]; ok {
		return name
	}
	return fmt.Sprintf("VENDOR(0x%02X)", int(v))
}
