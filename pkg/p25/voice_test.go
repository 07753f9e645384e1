package p25_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbehnke/p25-nexus/internal/testhelpers"
	"github.com/dbehnke/p25-nexus/pkg/bits"
	"github.com/dbehnke/p25-nexus/pkg/edac"
	"github.com/dbehnke/p25-nexus/pkg/identifier"
	"github.com/dbehnke/p25-nexus/pkg/interleave"
	"github.com/dbehnke/p25-nexus/pkg/p25"
)

const testNAC = 0x293

func mustHex(t *testing.T, s string, size int) *bits.BitField {
	t.Helper()
	bf, err := bits.FromHex(s, size)
	require.NoError(t, err)
	return bf
}

func TestLDU2_EncryptionAndKeyID(t *testing.T) {
	mi := mustHex(t, "0123456789ABCDEF01", 72)
	frame := testhelpers.LDU2(testNAC, mi, p25.AlgorithmAES256, 0x1234)

	msg := p25.NewMessage(frame, edac.Pass())
	ldu2, ok := msg.(*p25.LDU2Message)
	require.True(t, ok, "got %T", msg)

	assert.True(t, ldu2.IsValid())
	assert.Equal(t, p25.LogicalDataUnit2, ldu2.DUID())
	assert.Equal(t, testNAC, ldu2.NAC())
	assert.Equal(t, p25.AlgorithmAES256, ldu2.Encryption())
	assert.Equal(t, 0x1234, ldu2.KeyID())
	assert.Equal(t, "0123456789ABCDEF01", ldu2.MessageIndicator())
	assert.Contains(t, ldu2.String(), "NAC:293 LDU2 ENCRYPTION:AES-256 KEY:1234")

	ids := ldu2.Identifiers()
	require.Len(t, ids, 1)
	enc, ok := ids[0].(identifier.Encryption)
	require.True(t, ok)
	assert.Equal(t, "AES-256", enc.Algorithm)
	assert.Equal(t, 0x1234, enc.KeyID)
}

func TestLDU2_Unencrypted(t *testing.T) {
	frame := testhelpers.LDU2(testNAC, bits.New(72), p25.AlgorithmUnencrypted, 0)
	ldu2 := p25.NewMessage(frame, edac.Pass()).(*p25.LDU2Message)

	assert.False(t, ldu2.Encryption().Encrypted())
	assert.Empty(t, ldu2.Identifiers())
	assert.Contains(t, ldu2.String(), "UNENCRYPTED")
}

func TestLDU2_HexWordErrors(t *testing.T) {
	mi := mustHex(t, "0123456789ABCDEF01", 72)
	frame := testhelpers.LDU2(testNAC, mi, p25.AlgorithmADP, 0xBEEF)

	// single bit error: repaired by Hamming
	frame.Flip(p25.LDUHexWordStart(7) + 2)
	// double error: Hamming gives up, Reed-Solomon repairs the symbol
	frame.Flip(p25.LDUHexWordStart(13))
	frame.Flip(p25.LDUHexWordStart(13) + 4)

	ldu2 := p25.NewMessage(frame, edac.Pass()).(*p25.LDU2Message)
	require.True(t, ldu2.IsValid(), ldu2.CRCs())
	assert.Equal(t, p25.AlgorithmADP, ldu2.Encryption())
	assert.Equal(t, 0xBEEF, ldu2.KeyID())
	assert.Equal(t, "0123456789ABCDEF01", ldu2.MessageIndicator())

	crcs := ldu2.CRCs()
	require.Len(t, crcs, 3)
	assert.Equal(t, edac.CorrectedBy(1), crcs[1])
	assert.Equal(t, edac.CorrectedBy(1), crcs[2])
}

func TestLDU1_LinkControl(t *testing.T) {
	lc := testhelpers.GroupVoiceLinkControl(p25.ServiceOptions(0x80), 1001, 7654321)
	frame := testhelpers.LDU1(testNAC, lc)

	msg := p25.NewMessage(frame, edac.Pass())
	ldu1, ok := msg.(*p25.LDU1Message)
	require.True(t, ok, "got %T", msg)
	assert.True(t, ldu1.IsValid())

	got := ldu1.LinkControl()
	assert.Equal(t, p25.LCGroupVoiceChannelUser, got.Opcode())
	assert.True(t, got.IsStandard())
	assert.True(t, got.ServiceOptions().Emergency())
	assert.Equal(t, 1001, got.GroupAddress())
	assert.Equal(t, 7654321, got.SourceAddress())
	assert.Contains(t, ldu1.String(), "GROUP_VOICE_CHANNEL_USER FROM:7654321 TO:1001")

	assert.Equal(t, []identifier.Identifier{
		identifier.NewTalkgroup(1001, identifier.To),
		identifier.NewRadio(7654321, identifier.From),
	}, ldu1.Identifiers())
}

func TestLDU1_VoiceFramesDeinterleaved(t *testing.T) {
	lc := testhelpers.GroupVoiceLinkControl(0, 1, 2)
	frame := testhelpers.LDU1(testNAC, lc)

	voice := bits.New(p25.IMBEFrameSize)
	for i := 0; i < voice.Size(); i += 5 {
		voice.Set(i, true)
	}
	transmitted := voice.Copy()
	interleave.Interleave(transmitted, 0, interleave.IMBE)
	frame.CopyInto(p25.IMBEFrameStarts[3], transmitted)
	testhelpers.SetField(frame, 1456, 1487, 0xCAFEF00D)

	ldu1 := p25.NewMessage(frame, edac.Pass()).(*p25.LDU1Message)
	assert.True(t, voice.Equal(ldu1.VoiceFrame(3)))
	assert.True(t, bits.New(p25.IMBEFrameSize).Equal(ldu1.VoiceFrame(4)))
	assert.Equal(t, 0xCAFEF00D, ldu1.LowSpeedData())
}

func TestLDU1_VendorLinkControl(t *testing.T) {
	lc := testhelpers.LinkControl(0x15)
	testhelpers.SetField(lc, 8, 15, uint64(p25.VendorMotorola))
	ldu1 := p25.NewMessage(testhelpers.LDU1(testNAC, lc), edac.Pass()).(*p25.LDU1Message)

	assert.False(t, ldu1.LinkControl().IsStandard())
	assert.Nil(t, ldu1.Identifiers())
	assert.Contains(t, ldu1.String(), "MOTOROLA LCO:15")
}

func TestHDU_Correction(t *testing.T) {
	mi := mustHex(t, "00112233445566778A", 72)
	payload := testhelpers.HDUPayload(mi, p25.VendorStandard, p25.AlgorithmDESOFB, 0x0042, 1001)
	frame := testhelpers.HDU(testNAC, payload)

	// one bit error in a Golay word
	frame.Flip(p25.HDUWordStart(0) + 10)
	// three valid Golay words carrying wrong symbols
	for _, w := range []int{1, 2, 3} {
		s := p25.HDUWordStart(w)
		sym := frame.Uint(bits.Range(s, s+5)) ^ 0x15
		testhelpers.SetField(frame, s, s+17, uint64(edac.Golay18Encode(sym)))
	}

	msg := p25.NewMessage(frame, edac.Pass())
	hdu, ok := msg.(*p25.HDUMessage)
	require.True(t, ok, "got %T", msg)
	require.True(t, hdu.IsValid(), hdu.CRCs())

	crcs := hdu.CRCs()
	require.Len(t, crcs, 3)
	assert.Equal(t, edac.CorrectedBy(1), crcs[1])
	assert.Equal(t, edac.CorrectedBy(3), crcs[2])

	assert.Equal(t, "00112233445566778A", hdu.MessageIndicator())
	assert.Equal(t, p25.AlgorithmDESOFB, hdu.Encryption())
	assert.Equal(t, 0x0042, hdu.KeyID())
	assert.Equal(t, 1001, hdu.Talkgroup())
	assert.True(t, hdu.Vendor().IsStandard())
	assert.Len(t, hdu.Identifiers(), 2)
	assert.Contains(t, hdu.String(), "TALKGROUP:1001 ENCRYPTION:DES-OFB KEY:0042")
}

func TestTDULC_Correction(t *testing.T) {
	lc := testhelpers.GroupVoiceLinkControl(0, 2002, 1234567)
	frame := testhelpers.TDULC(testNAC, lc)
	frame.Flip(p25.TDULCWordStart(0) + 3)
	frame.Flip(p25.TDULCWordStart(0) + 17)
	frame.Flip(p25.TDULCWordStart(5) + 23)

	msg := p25.NewMessage(frame, edac.Pass())
	tdulc, ok := msg.(*p25.TDULCMessage)
	require.True(t, ok, "got %T", msg)
	require.True(t, tdulc.IsValid())
	assert.Equal(t, edac.CorrectedBy(3), tdulc.CRCs()[1])
	assert.Equal(t, 3, tdulc.CorrectedErrors())
	assert.Equal(t, 2002, tdulc.LinkControl().GroupAddress())
	assert.Equal(t, 1234567, tdulc.LinkControl().SourceAddress())
}

func TestTDULC_CallTermination(t *testing.T) {
	lc := testhelpers.LinkControl(p25.LCCallTermination)
	testhelpers.SetField(lc, 48, 71, 555)
	tdulc := p25.NewMessage(testhelpers.TDULC(testNAC, lc), edac.Pass()).(*p25.TDULCMessage)

	assert.Equal(t, 555, tdulc.LinkControl().TargetAddress())
	assert.Equal(t, []identifier.Identifier{identifier.NewRadio(555, identifier.To)}, tdulc.Identifiers())
	assert.Contains(t, tdulc.String(), "CALL_TERMINATION TO:555")
}

func TestTDULC_ChannelUpdateUsesImplicitVendor(t *testing.T) {
	lc := testhelpers.LinkControl(p25.LCGroupVoiceChannelUpdate)
	testhelpers.SetField(lc, 8, 23, 0x1032)
	testhelpers.SetField(lc, 24, 39, 100)
	tdulc := p25.NewMessage(testhelpers.TDULC(testNAC, lc), edac.Pass()).(*p25.TDULCMessage)

	require.True(t, tdulc.LinkControl().IsStandard())
	ids := tdulc.Identifiers()
	require.Len(t, ids, 4)
	ch, ok := ids[0].(identifier.Channel)
	require.True(t, ok)
	assert.Equal(t, 1, ch.Band)
	assert.Equal(t, 0x32, ch.Number)
	assert.Equal(t, identifier.NewTalkgroup(100, identifier.To), ids[1])
}

func TestTDU(t *testing.T) {
	msg := p25.NewMessage(testhelpers.NewFrame(testNAC, p25.TerminatorDataUnit), edac.Pass())
	_, ok := msg.(*p25.TDUMessage)
	require.True(t, ok, "got %T", msg)
	assert.Equal(t, "NAC:293 TDU TERMINATOR", msg.String())
}
