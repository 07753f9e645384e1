package p25_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbehnke/p25-nexus/internal/testhelpers"
	"github.com/dbehnke/p25-nexus/pkg/bits"
	"github.com/dbehnke/p25-nexus/pkg/edac"
	"github.com/dbehnke/p25-nexus/pkg/identifier"
	"github.com/dbehnke/p25-nexus/pkg/p25"
)

func userData(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i*7 + 1)
	}
	return data
}

func addBlock(t *testing.T, seq *p25.PDUSequence, bf *bits.BitField) {
	t.Helper()
	block, err := p25.NewDataBlock(bf, seq.Confirmed())
	require.NoError(t, err)
	require.NoError(t, seq.AddDataBlock(block))
}

func TestPDU_UnconfirmedSequenceCompletesOnLastBlock(t *testing.T) {
	data := userData(32)
	blocks, pad := testhelpers.PacketBlocks(data, false)
	require.Len(t, blocks, 3)

	header := testhelpers.PDUHeader{
		Format:         p25.FormatUnconfirmedDelivery,
		SAP:            0x04,
		LogicalLinkID:  1234,
		BlocksToFollow: 3,
		PadOctets:      pad,
		FullMessage:    true,
	}.Build(testNAC)

	msg := p25.NewMessage(header, edac.Pass())
	pdu, ok := msg.(*p25.PacketDataMessage)
	require.True(t, ok, "got %T", msg)
	assert.Equal(t, "PDU UNCONFIRMED", pdu.Kind())
	assert.Equal(t, 1234, pdu.LogicalLinkID())
	assert.Equal(t, p25.ServiceAccessPoint(0x04), pdu.SAP())
	assert.True(t, pdu.FullMessage())

	seq := pdu.Sequence()
	assert.Equal(t, 3, seq.BlocksToFollow())
	assert.False(t, seq.IsComplete())
	assert.False(t, seq.HasDataBlock(0))
	assert.Contains(t, pdu.String(), "INCOMPLETE - RECEIVED 0/3 DATA BLOCKS")
	_, ok = pdu.UserData()
	assert.False(t, ok)

	for i, b := range blocks {
		addBlock(t, seq, b)
		assert.Equal(t, i == 2, seq.IsComplete(), "after block %d", i)
		assert.True(t, seq.HasDataBlock(i))
		assert.False(t, seq.HasDataBlock(i+1))
	}

	packet := seq.Packet()
	assert.Equal(t, 16+3*96, packet.Size())
	assert.Len(t, packet.Bytes(), 38)
	assert.Equal(t, uint32(testNAC), packet.Uint(bits.Range(0, 11)))

	got, ok := pdu.UserData()
	require.True(t, ok)
	assert.Equal(t, data, got)
	assert.True(t, pdu.IsValid())
	assert.NotContains(t, pdu.String(), "INCOMPLETE")
	assert.Contains(t, pdu.String(), "32 OCTETS")

	crc, ok := seq.PacketCRC()
	require.True(t, ok)
	assert.Equal(t, edac.Pass(), crc)
}

func TestPDU_PacketCRCFailure(t *testing.T) {
	blocks, pad := testhelpers.PacketBlocks(userData(8), false)
	header := testhelpers.PDUHeader{
		Format:         p25.FormatUnconfirmedDelivery,
		BlocksToFollow: len(blocks),
		PadOctets:      pad,
	}.Build(testNAC)
	pdu := p25.NewMessage(header, edac.Pass()).(*p25.PacketDataMessage)

	blocks[0].Flip(5)
	addBlock(t, pdu.Sequence(), blocks[0])

	assert.True(t, pdu.Sequence().IsComplete())
	assert.False(t, pdu.IsValid())
	assert.Contains(t, pdu.String(), "[BLOCK CRC FAIL]")
}

func TestPDU_ConfirmedSequence(t *testing.T) {
	data := userData(20)
	blocks, pad := testhelpers.PacketBlocks(data, true)
	require.Len(t, blocks, 2)
	assert.Equal(t, 8, pad)

	newPDU := func() *p25.PacketDataMessage {
		header := testhelpers.PDUHeader{
			ConfirmationRequired: true,
			Format:               p25.FormatConfirmedDelivery,
			LogicalLinkID:        42,
			BlocksToFollow:       2,
			PadOctets:            pad,
		}.Build(testNAC)
		return p25.NewMessage(header, edac.Pass()).(*p25.PacketDataMessage)
	}

	t.Run("in order", func(t *testing.T) {
		pdu := newPDU()
		assert.True(t, pdu.ConfirmationRequired())
		assert.True(t, pdu.Sequence().Confirmed())
		for _, b := range blocks {
			addBlock(t, pdu.Sequence(), b)
		}
		got, ok := pdu.UserData()
		require.True(t, ok)
		assert.Equal(t, data, got)
		assert.True(t, pdu.IsValid())

		block, ok := pdu.Sequence().DataBlock(1)
		require.True(t, ok)
		assert.Equal(t, 1, block.Serial())
		assert.Equal(t, 128, block.Data().Size())
	})

	t.Run("sequence errors", func(t *testing.T) {
		seq := newPDU().Sequence()

		outOfOrder, err := p25.NewDataBlock(blocks[1], true)
		require.NoError(t, err)
		assert.ErrorIs(t, seq.AddDataBlock(outOfOrder), p25.ErrBlockOutOfOrder)

		addBlock(t, seq, blocks[0])
		duplicate, err := p25.NewDataBlock(blocks[0], true)
		require.NoError(t, err)
		assert.ErrorIs(t, seq.AddDataBlock(duplicate), p25.ErrDuplicateBlock)
		assert.Equal(t, 1, seq.Received())

		_, err = p25.NewDataBlock(bits.New(p25.UnconfirmedBlockSize), true)
		assert.ErrorIs(t, err, p25.ErrBlockType)

		unconfirmed, err := p25.NewDataBlock(bits.New(p25.UnconfirmedBlockSize), false)
		require.NoError(t, err)
		assert.ErrorIs(t, seq.AddDataBlock(unconfirmed), p25.ErrBlockType)

		addBlock(t, seq, blocks[1])
		assert.ErrorIs(t, seq.AddDataBlock(duplicate), p25.ErrSequenceComplete)
	})

	t.Run("block crc failure", func(t *testing.T) {
		pdu := newPDU()
		bad := blocks[0].Copy()
		bad.Flip(40)
		block, err := p25.NewDataBlock(bad, true)
		require.NoError(t, err)
		assert.True(t, block.CRC().Failed())

		require.NoError(t, pdu.Sequence().AddDataBlock(block))
		addBlock(t, pdu.Sequence(), blocks[1])
		assert.False(t, pdu.IsValid())
		assert.Contains(t, pdu.String(), "[BLOCK CRC FAIL]")
	})
}

func TestPDU_Response(t *testing.T) {
	header := testhelpers.PDUHeader{
		Format:         p25.FormatResponse,
		Outbound:       true,
		ResponseClass:  p25.ResponseClassNACK,
		ResponseType:   1,
		ResponseStatus: 3,
		LogicalLinkID:  777,
	}.Build(testNAC)

	msg := p25.NewMessage(header, edac.Pass())
	rsp, ok := msg.(*p25.ResponseMessage)
	require.True(t, ok, "got %T", msg)
	assert.True(t, rsp.IsComplete())
	assert.Equal(t, p25.FormatResponse, rsp.Format())
	assert.Equal(t, p25.ResponseClassNACK, rsp.Class())
	assert.Equal(t, "NACK PACKET CRC ERROR", rsp.Description())
	assert.Equal(t, 3, rsp.Status())
	assert.True(t, rsp.Vendor().IsStandard())
	assert.Contains(t, rsp.String(), "RESPONSE NACK PACKET CRC ERROR STATUS:3 LLID:777")
	assert.Equal(t, []identifier.Identifier{identifier.NewRadio(777, identifier.To)}, rsp.Identifiers())
}

func TestPDU_FormatFallback(t *testing.T) {
	header := testhelpers.PDUHeader{Format: 0x1F, LogicalLinkID: 9}.Build(testNAC)
	msg := p25.NewMessage(header, edac.Pass())
	assert.IsType(t, &p25.PDUMessage{}, msg)
	assert.Equal(t, "PDU FORMAT(0x1F)", msg.Kind())
}

func TestPDU_HeaderCRC(t *testing.T) {
	header := testhelpers.PDUHeader{Format: p25.FormatUnconfirmedDelivery, LogicalLinkID: 1001}.Build(testNAC)
	header.Flip(100)
	pdu := p25.NewMessage(header, edac.Pass()).(*p25.PacketDataMessage)
	assert.True(t, pdu.IsValid())
	assert.Equal(t, 1001, pdu.LogicalLinkID())

	header.Flip(90)
	header.Flip(130)
	pdu = p25.NewMessage(header, edac.Pass()).(*p25.PacketDataMessage)
	assert.False(t, pdu.IsValid())
	assert.Contains(t, pdu.String(), "[CRC FAIL]")
	assert.NotContains(t, pdu.String(), "[BLOCK CRC FAIL]")
}

func mbtHeader(opcode p25.MBTOpcode, vendor p25.Vendor, llid, blocks, octets int) *bits.BitField {
	return testhelpers.PDUHeader{
		Format:          p25.FormatAlternateMultiBlockTrunking,
		Outbound:        true,
		Vendor:          vendor,
		LogicalLinkID:   llid,
		BlocksToFollow:  blocks,
		Opcode:          opcode,
		ServiceSpecific: octets,
	}.Build(testNAC)
}

func TestMBT_Dispatch(t *testing.T) {
	tests := []struct {
		name   string
		opcode p25.MBTOpcode
		vendor p25.Vendor
		want   interface{}
		kind   string
	}{
		{"group voice grant", p25.MBTGroupVoiceChannelGrantExplicit, p25.VendorStandard, &p25.GroupChannelGrantExplicitMessage{}, "GROUP_VOICE_CHANNEL_GRANT_EXPLICIT"},
		{"group data grant", p25.MBTGroupDataChannelGrantExtended, p25.VendorStandard, &p25.GroupChannelGrantExplicitMessage{}, "GROUP_DATA_CHANNEL_GRANT_EXTENDED"},
		{"unit to unit", p25.MBTUnitToUnitVoiceChannelGrantExtended, p25.VendorStandard, &p25.UnitToUnitVoiceChannelGrantExtendedMessage{}, "UNIT_TO_UNIT_VOICE_CHANNEL_GRANT_EXTENDED"},
		{"rfss", p25.MBTRFSSStatusExtended, p25.VendorStandard, &p25.SiteStatusExtendedMessage{}, "RFSS_STATUS_EXTENDED"},
		{"network", p25.MBTNetworkStatusExtended, p25.VendorStandard, &p25.SiteStatusExtendedMessage{}, "NETWORK_STATUS_EXTENDED"},
		{"adjacent", p25.MBTAdjacentStatusExtended, p25.VendorStandard, &p25.SiteStatusExtendedMessage{}, "ADJACENT_STATUS_EXTENDED"},
		{"unknown opcode", 0x22, p25.VendorStandard, &p25.PDUMessage{}, "PDU ALTERNATE MULTI-BLOCK TRUNKING"},
		{"vendor", p25.MBTGroupVoiceChannelGrantExplicit, p25.VendorHarris, &p25.PDUMessage{}, "PDU ALTERNATE MULTI-BLOCK TRUNKING"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := p25.NewMessage(mbtHeader(tt.opcode, tt.vendor, 1, 1, 0), edac.Pass())
			assert.IsType(t, tt.want, msg)
			assert.Equal(t, tt.kind, msg.Kind())
		})
	}
}

func TestMBT_GroupGrantIncompleteUntilBlockArrives(t *testing.T) {
	msg := p25.NewMessage(mbtHeader(p25.MBTGroupVoiceChannelGrantExplicit, p25.VendorStandard, 4567, 1, 0x8000), edac.Pass())
	grant := msg.(*p25.GroupChannelGrantExplicitMessage)

	assert.Equal(t, 4567, grant.SourceAddress())
	assert.True(t, grant.ServiceOptions().Emergency())
	_, ok := grant.GroupAddress()
	assert.False(t, ok)
	_, ok = grant.TransmitChannel()
	assert.False(t, ok)
	assert.Len(t, grant.Identifiers(), 1)
	assert.Contains(t, grant.String(), "TO:?")
	assert.Contains(t, grant.String(), "INCOMPLETE - RECEIVED 0/1 DATA BLOCKS")

	payload := bits.New(p25.UnconfirmedBlockSize)
	testhelpers.SetField(payload, 0, 15, 0x1032)
	testhelpers.SetField(payload, 16, 31, 0x1033)
	testhelpers.SetField(payload, 32, 47, 2001)
	addBlock(t, grant.Sequence(), testhelpers.SplitBlocks(payload, false)[0])

	group, ok := grant.GroupAddress()
	require.True(t, ok)
	assert.Equal(t, 2001, group)
	tx, ok := grant.TransmitChannel()
	require.True(t, ok)
	assert.Equal(t, identifier.NewChannel(0x1032), tx)
	rx, _ := grant.ReceiveChannel()
	assert.Equal(t, 0x33, rx.Number)
	assert.Len(t, grant.Identifiers(), 4)
	assert.True(t, grant.IsValid())
	assert.Contains(t, grant.String(), "FROM:4567 TO:2001 CHAN DN:1-50 CHAN UP:1-51")
}

func TestMBT_UnitToUnitExtended(t *testing.T) {
	msg := p25.NewMessage(mbtHeader(p25.MBTUnitToUnitVoiceChannelGrantExtended, p25.VendorStandard, 300, 2, 0), edac.Pass())
	grant := msg.(*p25.UnitToUnitVoiceChannelGrantExtendedMessage)

	source := uint64(0xBEE00)<<36 | uint64(0x3AB)<<24 | 123456
	target := uint64(0xBEE01)<<36 | uint64(0x001)<<24 | 300
	payload := bits.New(2 * p25.UnconfirmedBlockSize)
	testhelpers.SetField(payload, 0, 55, source)
	testhelpers.SetField(payload, 56, 71, 0x2010)
	testhelpers.SetField(payload, 72, 87, 0x2011)
	testhelpers.SetField(payload, 96, 151, target)
	blocks := testhelpers.SplitBlocks(payload, false)

	addBlock(t, grant.Sequence(), blocks[0])
	src, ok := grant.Source()
	require.True(t, ok)
	assert.Equal(t, "BEE00.3AB.123456", src.String())
	assert.Equal(t, identifier.From, src.Role())
	_, ok = grant.Target()
	assert.False(t, ok)

	addBlock(t, grant.Sequence(), blocks[1])
	dst, ok := grant.Target()
	require.True(t, ok)
	assert.Equal(t, 300, dst.ID)
	assert.Equal(t, 0xBEE01, dst.WACN)
	assert.True(t, grant.IsValid())
	assert.Len(t, grant.Identifiers(), 5)
}

func TestMBT_NetworkStatusExtended(t *testing.T) {
	msg := p25.NewMessage(mbtHeader(p25.MBTNetworkStatusExtended, p25.VendorStandard, 0, 1, 0x0570), edac.Pass())
	sts := msg.(*p25.SiteStatusExtendedMessage)
	assert.Equal(t, 5, sts.LocationRegistrationArea())
	assert.Equal(t, 0x70, sts.ServiceClass())
	assert.Equal(t, 0x0570, sts.ServiceSpecific())
	assert.Equal(t, p25.MBTNetworkStatusExtended, sts.Opcode())
	assert.Nil(t, sts.Identifiers())

	payload := bits.New(p25.UnconfirmedBlockSize)
	testhelpers.SetField(payload, 0, 19, 0xBEE00)
	testhelpers.SetField(payload, 20, 31, 0x3AB)
	testhelpers.SetField(payload, 32, 47, 0x1032)
	addBlock(t, sts.Sequence(), testhelpers.SplitBlocks(payload, false)[0])

	wacn, ok := sts.WACN()
	require.True(t, ok)
	assert.Equal(t, 0xBEE00, wacn)
	system, _ := sts.System()
	assert.Equal(t, 0x3AB, system)
	_, ok = sts.RFSS()
	assert.False(t, ok)
	assert.Contains(t, sts.String(), "WACN:BEE00 SYSTEM:3AB")
}
