package bits

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUint_ReadsIndicesMSBFirst(t *testing.T) {
	bf, err := Parse("1011 0000 0000 0001")
	require.NoError(t, err)

	assert.Equal(t, uint32(0xB), bf.Uint([]int{0, 1, 2, 3}))
	assert.Equal(t, uint32(0xB001), bf.Uint(Range(0, 15)))
	// order of the index list decides significance
	assert.Equal(t, uint32(0xD), bf.Uint([]int{3, 2, 1, 0}))
	assert.Equal(t, uint32(0x3), bf.Uint([]int{15, 0}))
}

func TestSetUint_RoundTrip(t *testing.T) {
	tests := []struct {
		desc    string
		indices []int
		value   uint64
	}{
		{desc: "single bit", indices: []int{5}, value: 1},
		{desc: "byte", indices: Range(8, 15), value: 0xA5},
		{desc: "scattered", indices: []int{40, 3, 17, 9, 33}, value: 0x15},
		{desc: "32 bits", indices: Range(10, 41), value: 0xDEADBEEF},
	}
	for _, tc := range tests {
		t.Run(tc.desc, func(t *testing.T) {
			bf := New(64)
			bf.SetUint(tc.indices, tc.value)
			assert.Equal(t, tc.value, bf.Uint64(tc.indices))
			if len(tc.indices) <= 32 {
				assert.Equal(t, uint32(tc.value), bf.Uint(tc.indices))
			}
		})
	}
}

func TestUint64_WideFields(t *testing.T) {
	bf := New(80)
	bf.SetUint(Range(4, 59), 0x00ABCDEF1234567)
	assert.Equal(t, uint64(0x00ABCDEF1234567), bf.Uint64(Range(4, 59)))
}

func TestHex(t *testing.T) {
	bf := New(24)
	bf.SetUint(Range(0, 11), 0x293)
	bf.SetUint(Range(12, 17), 0x2D)

	assert.Equal(t, "293", bf.Hex(Range(0, 11), 3))
	assert.Equal(t, "0293", bf.Hex(Range(0, 11), 4))
	// 6 bits: the leading two bits form the partial most significant nibble
	assert.Equal(t, "2D", bf.Hex(Range(12, 17), 2))
	assert.Equal(t, "002D", bf.Hex(Range(12, 17), 4))
}

func TestFlip(t *testing.T) {
	bf := New(10)
	bf.Flip(3)
	assert.True(t, bf.Get(3))
	bf.Flip(3)
	assert.False(t, bf.Get(3))
	assert.Equal(t, "0000000000", bf.String())
}

func TestOutOfRangePanics(t *testing.T) {
	bf := New(8)
	assert.Panics(t, func() { bf.Get(8) })
	assert.Panics(t, func() { bf.Flip(-1) })
	assert.Panics(t, func() { bf.Uint(Range(0, 32)) })
}

func TestFromHexAndBytes(t *testing.T) {
	bf, err := FromHex("F0A5", 12)
	require.NoError(t, err)
	assert.Equal(t, 12, bf.Size())
	assert.Equal(t, "111100001010", bf.String())
	assert.Equal(t, []byte{0xF0, 0xA0}, bf.Bytes())

	_, err = FromHex("F0", 12)
	assert.Error(t, err)
	_, err = FromHex("zz", 8)
	assert.Error(t, err)
}

func TestFromHex_OddLength(t *testing.T) {
	bf, err := FromHex("ABC", 12)
	require.NoError(t, err)
	assert.Equal(t, "101010111100", bf.String())

	bf, err = FromHex("ABC", 10)
	require.NoError(t, err)
	assert.Equal(t, "1010101111", bf.String())

	// the pad nibble is not data
	_, err = FromHex("ABC", 16)
	assert.Error(t, err)
	_, err = FromHex("ABC", 13)
	assert.Error(t, err)
}

func TestSliceCopyEqual(t *testing.T) {
	bf, err := Parse("1100_1010_1111")
	require.NoError(t, err)

	s := bf.Slice(4, 8)
	assert.Equal(t, "1010", s.String())

	c := bf.Copy()
	assert.True(t, c.Equal(bf))
	c.Flip(0)
	assert.False(t, c.Equal(bf))

	dst := New(8)
	dst.CopyInto(2, s)
	assert.Equal(t, "00101000", dst.String())
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse("0102")
	assert.Error(t, err)
}
