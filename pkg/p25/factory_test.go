package p25_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbehnke/p25-nexus/internal/testhelpers"
	"github.com/dbehnke/p25-nexus/pkg/bits"
	"github.com/dbehnke/p25-nexus/pkg/edac"
	"github.com/dbehnke/p25-nexus/pkg/p25"
)

func TestParseDataUnitID(t *testing.T) {
	for _, v := range []int{0x0, 0x3, 0x5, 0x7, 0xA, 0xC, 0xF} {
		assert.NotEqual(t, p25.UnknownDataUnit, p25.ParseDataUnitID(v), "DUID %X", v)
	}
	for _, v := range []int{0x1, 0x2, 0x4, 0x6, 0x8, 0x9, 0xB, 0xD, 0xE} {
		assert.Equal(t, p25.UnknownDataUnit, p25.ParseDataUnitID(v), "DUID %X", v)
	}
}

func TestNewMessage_UnknownDUID(t *testing.T) {
	frame := bits.New(160)
	testhelpers.SetField(frame, 0, 11, testNAC)
	testhelpers.SetField(frame, 12, 15, 0x9)

	msg := p25.NewMessage(frame, edac.Pass())
	require.IsType(t, &p25.UnknownMessage{}, msg)
	assert.Equal(t, p25.UnknownDataUnit, msg.DUID())
	assert.Equal(t, testNAC, msg.NAC())
	assert.Equal(t, "UNKNOWN", msg.Kind())
	assert.True(t, msg.IsValid())
	assert.Equal(t, "NAC:293 UNKNOWN 160 BITS", msg.String())
}

func TestNewMessage_TruncatedFrame(t *testing.T) {
	frame := testhelpers.NewFrame(testNAC, p25.LogicalDataUnit1).Slice(0, 1000)

	msg := p25.NewMessage(frame, edac.Pass())
	require.IsType(t, &p25.UnknownMessage{}, msg)
	assert.Equal(t, p25.LogicalDataUnit1, msg.DUID())
	assert.Equal(t, "TRUNCATED LDU1", msg.Kind())
	assert.False(t, msg.IsValid())
	crcs := msg.CRCs()
	assert.Equal(t, edac.Fail(632), crcs[len(crcs)-1])
	assert.Contains(t, msg.String(), "[CRC FAIL]")
}

func TestNewMessage_ShorterThanNID(t *testing.T) {
	msg := p25.NewMessage(bits.New(8), edac.Pass())
	require.IsType(t, &p25.UnknownMessage{}, msg)
	assert.Equal(t, p25.UnknownDataUnit, msg.DUID())
	assert.Equal(t, 0, msg.NAC())
}

func TestNewMessage_CRCsAreCopies(t *testing.T) {
	msg := p25.NewMessage(buildTSBK(p25.VendorStandard, p25.GroupVoiceChannelGrant), edac.Pass())
	crcs := msg.CRCs()
	crcs[0] = edac.Fail(1)
	assert.True(t, msg.IsValid())
}
