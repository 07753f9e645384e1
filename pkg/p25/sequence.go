package p25

import (
	"errors"
	"fmt"

	"github.com/dbehnke/p25-nexus/pkg/bits"
	"github.com/dbehnke/p25-nexus/pkg/edac"
)

// Data block sizes in bits
const (
	UnconfirmedBlockSize = 96
	ConfirmedBlockSize   = 144
	confirmedDataSize    = ConfirmedBlockSize - 16
	packetPrefixSize     = 16
)

var (
	confirmedSerial = bits.Range(0, 6)
	confirmedCRC    = bits.Range(7, 15)
	confirmedData   = bits.Range(16, ConfirmedBlockSize-1)
	confirmedCheck  = bits.Concat(confirmedSerial, confirmedData)
)

// Sequence errors
var (
	ErrSequenceComplete = errors.New("pdu sequence already complete")
	ErrBlockType        = errors.New("data block type does not match pdu header")
	ErrBlockOutOfOrder  = errors.New("data block out of sequence")
	ErrDuplicateBlock   = errors.New("duplicate data block")
)

// DataBlock is one physical packet data block following a PDU header
type DataBlock struct {
	bf        *bits.BitField
	confirmed bool
	crc       edac.CRC
}

// NewDataBlock wraps a received block. Confirmed blocks are 144 bits with a
// 7 bit serial number and a CRC-9, unconfirmed blocks are 96 data bits.
func NewDataBlock(bf *bits.BitField, confirmed bool) (DataBlock, error) {
	want := UnconfirmedBlockSize
	if confirmed {
		want = ConfirmedBlockSize
	}
	if bf.Size() != want {
		return DataBlock{}, fmt.Errorf("%w: %d bits, expected %d", ErrBlockType, bf.Size(), want)
	}

	b := DataBlock{bf: bf.Copy(), confirmed: confirmed, crc: edac.Pass()}
	if confirmed {
		if uint32(edac.CRC9(bf, confirmedCheck)) != bf.Uint(confirmedCRC) {
			b.crc = edac.Fail(1)
		}
	}
	return b, nil
}

// Confirmed reports a confirmed delivery block
func (b DataBlock) Confirmed() bool { return b.confirmed }

// Serial returns the 7 bit serial number of a confirmed block, 0 otherwise
func (b DataBlock) Serial() int {
	if !b.confirmed {
		return 0
	}
	return int(b.bf.Uint(confirmedSerial))
}

// CRC is the block level check result
func (b DataBlock) CRC() edac.CRC { return b.crc }

// Data returns the user data bits (96 or 128)
func (b DataBlock) Data() *bits.BitField {
	if b.confirmed {
		return b.bf.Slice(16, ConfirmedBlockSize)
	}
	return b.bf.Copy()
}

// PDUSequence collects the data blocks announced by a PDU header. It is
// owned by a single decode chain.
type PDUSequence struct {
	prefix         *bits.BitField
	blocksToFollow int
	confirmed      bool
	blocks         []DataBlock
}

// NewPDUSequence starts a sequence. prefix holds the 16 NAC and DUID bits
// that lead the consolidated packet.
func NewPDUSequence(prefix *bits.BitField, blocksToFollow int, confirmed bool) *PDUSequence {
	return &PDUSequence{
		prefix:         prefix,
		blocksToFollow: blocksToFollow,
		confirmed:      confirmed,
	}
}

// BlocksToFollow is the block count the header declared
func (s *PDUSequence) BlocksToFollow() int { return s.blocksToFollow }

// Received is the number of blocks stored so far
func (s *PDUSequence) Received() int { return len(s.blocks) }

// Confirmed reports whether blocks use confirmed delivery
func (s *PDUSequence) Confirmed() bool { return s.confirmed }

// IsComplete is true once every declared block has arrived
func (s *PDUSequence) IsComplete() bool { return len(s.blocks) == s.blocksToFollow }

// AddDataBlock appends the next block in order. Surplus, mistyped, out of
// order and duplicate blocks are rejected and not stored.
func (s *PDUSequence) AddDataBlock(b DataBlock) error {
	if s.IsComplete() {
		return ErrSequenceComplete
	}
	if b.confirmed != s.confirmed {
		return ErrBlockType
	}
	if s.confirmed && b.crc.Passed() {
		want := len(s.blocks) % 128
		if n := len(s.blocks); n > 0 && b.Serial() == s.blocks[n-1].Serial() {
			return fmt.Errorf("%w: serial %d", ErrDuplicateBlock, b.Serial())
		}
		if b.Serial() != want {
			return fmt.Errorf("%w: serial %d, expected %d", ErrBlockOutOfOrder, b.Serial(), want)
		}
	}
	s.blocks = append(s.blocks, b)
	return nil
}

// HasDataBlock reports whether block i has arrived and is of the type the
// header announced
func (s *PDUSequence) HasDataBlock(i int) bool {
	return i >= 0 && i < len(s.blocks) && s.blocks[i].confirmed == s.confirmed
}

// DataBlock returns block i, or false while it has not arrived
func (s *PDUSequence) DataBlock(i int) (DataBlock, bool) {
	if !s.HasDataBlock(i) {
		return DataBlock{}, false
	}
	return s.blocks[i], true
}

// blockUint reads indices from the user data of block i
func (s *PDUSequence) blockUint(i int, indices []int) (int, bool) {
	b, ok := s.DataBlock(i)
	if !ok {
		return 0, false
	}
	return int(b.Data().Uint64(indices)), true
}

func (s *PDUSequence) blockUint64(i int, indices []int) (uint64, bool) {
	b, ok := s.DataBlock(i)
	if !ok {
		return 0, false
	}
	return b.Data().Uint64(indices), true
}

// blockDataSize is the user data size of one block
func (s *PDUSequence) blockDataSize() int {
	if s.confirmed {
		return confirmedDataSize
	}
	return UnconfirmedBlockSize
}

// Payload concatenates the user data of the received blocks
func (s *PDUSequence) Payload() *bits.BitField {
	size := s.blockDataSize()
	out := bits.New(len(s.blocks) * size)
	for i, b := range s.blocks {
		out.CopyInto(i*size, b.Data())
	}
	return out
}

// Packet is the consolidated message: the 16 bit NAC and DUID prefix
// followed by the user data of every received block
func (s *PDUSequence) Packet() *bits.BitField {
	payload := s.Payload()
	out := bits.New(packetPrefixSize + payload.Size())
	out.CopyInto(0, s.prefix)
	out.CopyInto(packetPrefixSize, payload)
	return out
}

// PacketCRC checks the CRC-32 closing the payload. It is unavailable until
// the sequence is complete or when the payload is shorter than the CRC.
func (s *PDUSequence) PacketCRC() (edac.CRC, bool) {
	if !s.IsComplete() {
		return edac.CRC{}, false
	}
	payload := s.Payload()
	if payload.Size() <= 32 {
		return edac.CRC{}, false
	}
	end := payload.Size() - 32
	received := payload.Uint(bits.Range(end, payload.Size()-1))
	if edac.CRC32(payload, bits.Range(0, end-1)) != received {
		return edac.Fail(1), true
	}
	return edac.Pass(), true
}

// CRCs returns the block results followed by the packet CRC when available
func (s *PDUSequence) CRCs() []edac.CRC {
	out := make([]edac.CRC, 0, len(s.blocks)+1)
	for _, b := range s.blocks {
		out = append(out, b.crc)
	}
	if crc, ok := s.PacketCRC(); ok {
		out = append(out, crc)
	}
	return out
}

func (s *PDUSequence) String() string {
	if s.IsComplete() {
		return fmt.Sprintf("%d DATA BLOCKS", s.blocksToFollow)
	}
	return fmt.Sprintf("INCOMPLETE - RECEIVED %d/%d DATA BLOCKS", len(s.blocks), s.blocksToFollow)
}
