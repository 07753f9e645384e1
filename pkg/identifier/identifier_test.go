package identifier

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		pattern string
		value   string
		want    bool
	}{
		{"123*", "1234", true},
		{"123*", "1239", true},
		{"123*", "12", false},
		{"123*", "4123", false},
		{"123*", "12345", false},
		{"**34", "1234", true},
		{"**34", "5634", true},
		{"**34", "234", false},
		{"1234", "1234", true},
		{"1234", "1235", false},
		{"1.3*", "1x34", false},
		{"1.3*", "1.34", true},
		{"(*", "(a", true},
	}
	for _, tc := range tests {
		t.Run(tc.pattern+"/"+tc.value, func(t *testing.T) {
			assert.Equal(t, tc.want, MatchPattern(tc.pattern, tc.value))
		})
	}
}

func TestText_MatchesIsAsymmetric(t *testing.T) {
	pattern := NewText(ESNForm, UnknownProtocol, "A1B2*")
	value := NewText(ESNForm, UnknownProtocol, "A1B2C")

	assert.True(t, pattern.Matches(value))
	assert.False(t, value.Matches(pattern))

	minID := NewText(MINForm, UnknownProtocol, "A1B2C")
	assert.False(t, pattern.Matches(minID), "different forms never match")
}

func TestFullyQualifiedRadio_SplitsCombinedValue(t *testing.T) {
	combined := uint64(0xBEE00)<<36 | uint64(0x3A5)<<24 | 0x123456
	r := NewFullyQualifiedRadio(combined, From)

	assert.Equal(t, 0xBEE00, r.WACN)
	assert.Equal(t, 0x3A5, r.System)
	assert.Equal(t, 0x123456, r.ID)
	assert.Equal(t, From, r.Role())
	assert.Equal(t, "BEE00.3A5.1193046", r.String())
}

func TestFleetsync_SplitsCombinedValue(t *testing.T) {
	id := NewFleetsyncID(100<<12|2001, To)
	assert.Equal(t, 100, id.Fleet)
	assert.Equal(t, 2001, id.Ident)
	assert.Equal(t, "100-2001", id.String())
	assert.Equal(t, Fleetsync, id.Protocol())
}

func TestChannel(t *testing.T) {
	c := NewChannel(0x1234)
	assert.Equal(t, 1, c.Band)
	assert.Equal(t, 0x234, c.Number)
	assert.False(t, c.Resolved())
	assert.Equal(t, "1-564", c.String())

	c.Downlink = 851012500
	assert.Equal(t, "1-564 [851.01250 MHz]", c.String())
}

func TestIdentifierJSON(t *testing.T) {
	raw, err := json.Marshal(NewTalkgroup(1001, To))
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"TO","protocol":"APCO25","value":1001}`, string(raw))
}
