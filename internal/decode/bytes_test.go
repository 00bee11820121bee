package decode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssembleBytes(t *testing.T) {
	assert.Equal(t, CommandBytes{0xA1, 0x82}, AssembleBytes("1010000110000010"))
	assert.Equal(t, CommandBytes{0xA1}, AssembleBytes("1010000110"), "partial trailing group is dropped")
	assert.Empty(t, AssembleBytes("1010"))
}

func TestBytesRoundTrip(t *testing.T) {
	inputs := []CommandBytes{
		{},
		{0x00},
		{0xFF, 0x00, 0x5A},
		{0xA1, 0x82, 0x42, 0xFF, 0xFF, 0x5F, 0x17, 0x9F, 0x6F, 0x40, 0x00, 0x28},
	}
	for _, in := range inputs {
		bits := in.Bits()
		assert.Len(t, bits, 8*len(in))
		assert.Equal(t, in, AssembleBytes(bits))
	}
}

func TestChecksum(t *testing.T) {
	valid := CommandBytes{0xA1, 0x82, 0x42, 0xFF, 0xFF, 0x61}
	assert.Equal(t, byte(0x61), valid.Checksum())
	assert.True(t, valid.ChecksumValid())

	for i := 0; i < len(valid)-1; i++ {
		flipped := append(CommandBytes(nil), valid...)
		flipped[i] ^= 0x01
		assert.False(t, flipped.ChecksumValid(), "flipping byte %d", i)
	}

	// XOR of A1 82 42 FF FF is 0x61, so a trailing 0x5F does not validate.
	assert.False(t, CommandBytes{0xA1, 0x82, 0x42, 0xFF, 0xFF, 0x5F}.ChecksumValid())
	assert.False(t, CommandBytes{0x42}.ChecksumValid())
}

func TestWithChecksum(t *testing.T) {
	c := CommandBytes{0xA1, 0x82, 0x42, 0x12, 0x00, 0x00}.WithChecksum()
	assert.Equal(t, byte(0x73), c[5])
	assert.True(t, c.ChecksumValid())
}

func TestHex(t *testing.T) {
	assert.Equal(t, "0xA1, 0x02", CommandBytes{0xA1, 0x02}.Hex())
}
