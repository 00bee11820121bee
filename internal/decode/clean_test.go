package decode

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClean_AssumeZero(t *testing.T) {
	tests := []struct {
		in   string
		want Bits
	}{
		{"0110", "0110"},
		{"??0110?", "0110"},
		{"1?0", "100"},
		{"?1??1?", "1001"},
		{"????", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Clean(ParseSymbols(tt.in), AssumeZero)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClean_Idempotent(t *testing.T) {
	for _, in := range []string{"??01?10??", "1", "?", "0000", "1??1"} {
		once, err := Clean(ParseSymbols(in), AssumeZero)
		require.NoError(t, err)
		twice, err := Clean(once.Symbols(), AssumeZero)
		require.NoError(t, err)
		assert.Equal(t, once, twice, in)
	}
}

func TestClean_Reject(t *testing.T) {
	got, err := Clean(ParseSymbols("?0110?"), Reject)
	require.NoError(t, err)
	assert.Equal(t, Bits("0110"), got)

	_, err = Clean(ParseSymbols("01?10"), Reject)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAmbiguousBit))
	assert.ErrorContains(t, err, "position 2")
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, AssumeZero, p)

	p, err = ParsePolicy("REJECT")
	require.NoError(t, err)
	assert.Equal(t, Reject, p)

	_, err = ParsePolicy("coin_flip")
	assert.Error(t, err)
}

func TestBitsPad(t *testing.T) {
	assert.Equal(t, Bits("10100000"), Bits("101").Pad(8))
	assert.Equal(t, Bits("1010"), Bits("1010").Pad(2))
}
