// Package dmr decodes the DMR unified single block data (USBD) burst, the
// DMR data type that shares the CRC-CCITT-80 codec with P25.
package dmr

import (
	"fmt"

	"github.com/dbehnke/p25-nexus/pkg/bits"
	"github.com/dbehnke/p25-nexus/pkg/edac"
)

// USBD block layout
const (
	USBDSize = 96
	USBDMask = 0x3333
)

var (
	usbdServiceType = bits.Range(0, 3)
	usbdPayload     = bits.Range(4, 79)
	usbdCRC         = edac.DMRCCITT80(USBDMask)
)

// ServiceType is the 4 bit USBD service
type ServiceType int

const (
	ServiceLIP ServiceType = 0x0
)

func (s ServiceType) String() string {
	switch {
	case s == ServiceLIP:
		return "LIP"
	case s >= 0x8:
		return fmt.Sprintf("MANUFACTURER SPECIFIC %d", int(s))
	default:
		return fmt.Sprintf("RESERVED %d", int(s))
	}
}

// USBDMessage is one unified single block data burst after CRC correction
type USBDMessage struct {
	bf        *bits.BitField
	corrected int
}

// NewUSBD checks and corrects a 96 bit block in place
func NewUSBD(bf *bits.BitField) (*USBDMessage, error) {
	if bf.Size() != USBDSize {
		return nil, fmt.Errorf("usbd block is %d bits, expected %d", bf.Size(), USBDSize)
	}
	return &USBDMessage{bf: bf, corrected: usbdCRC.Correct(bf, 0)}, nil
}

// CorrectedBits is 0 for a clean block, 1 after a single bit repair and 2
// when the block could not be repaired
func (m *USBDMessage) CorrectedBits() int { return m.corrected }

// IsValid accepts blocks with fewer than two bit errors
func (m *USBDMessage) IsValid() bool { return m.corrected < 2 }

// CRC reports the check as a status value
func (m *USBDMessage) CRC() edac.CRC {
	switch m.corrected {
	case 0:
		return edac.Pass()
	case 1:
		return edac.CorrectedBy(1)
	default:
		return edac.Fail(m.corrected)
	}
}

func (m *USBDMessage) ServiceType() ServiceType {
	return ServiceType(m.bf.Uint(usbdServiceType))
}

// Payload is the 76 bit service payload as 19 hex digits
func (m *USBDMessage) Payload() string { return m.bf.Hex(usbdPayload, 19) }

func (m *USBDMessage) String() string {
	s := fmt.Sprintf("DMR USBD %s %s", m.ServiceType(), m.Payload())
	if !m.IsValid() {
		s += " [CRC FAIL]"
	}
	return s
}
