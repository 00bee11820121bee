package decode

import (
	"slices"
	"testing"

	"github.com/audiolibrelab/irdecode/internal/trace"
	"github.com/stretchr/testify/assert"
)

func TestDecodeBit(t *testing.T) {
	tm := DefaultTiming()
	tests := []struct {
		name         string
		pulse, space int
		want         Symbol
	}{
		{"short pulse", 560, 560, Zero},
		{"short pulse lower edge", 400, 400, Zero},
		{"short pulse upper edge", 700, 700, Zero},
		{"long pulse", 1600, 560, One},
		{"long pulse edges", 1550, 500, One},
		{"long pulse upper edge", 1650, 600, One},
		{"between windows", 1000, 560, Unknown},
		{"too long", 1700, 560, Unknown},
		{"too short", 100, 560, Unknown},
		{"gap after zero", 560, 701, Unknown},
		{"gap after one", 1600, 5000, Unknown},
		{"short space below window", 560, 200, Zero},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tm.DecodeBit(tt.pulse, tt.space))
		})
	}
}

func TestDecodeBit_Total(t *testing.T) {
	tm := DefaultTiming()
	for pulse := -100; pulse <= 6000; pulse += 37 {
		for space := -100; space <= 6000; space += 41 {
			s := tm.DecodeBit(pulse, space)
			assert.Contains(t, []Symbol{Zero, One, Unknown}, s)
			assert.Equal(t, s, tm.DecodeBit(pulse, space))
		}
	}
}

func TestLocate(t *testing.T) {
	tests := []struct {
		name string
		d    trace.Durations
		want int
	}{
		{"starts at leader", trace.Durations{4400, 4400, 560, 560}, 0},
		{"idle prefix", trace.Durations{120000, 300, 200, 150, 4400, 4350, 560, 560}, 4},
		{"pulse long but space short", trace.Durations{5000, 500, 4100, 4000, 560, 560}, 2},
		{"no leader", trace.Durations{560, 560, 1600, 560}, 0},
		{"odd index never chosen", trace.Durations{100, 4400, 4400, 100}, 0},
		{"empty", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Locate(tt.d, 4000))
		})
	}
}

func TestDemodulate(t *testing.T) {
	d := trace.Durations{4400, 4400, 560, 560, 1600, 560, 1000, 560, 560}
	got := slices.Collect(Demodulate(d, DefaultTiming()))
	assert.Equal(t, []Symbol{Zero, One, Unknown}, got)
	assert.Equal(t, "01?", Symbols(got).String())
}

func TestDemodulate_StopsEarly(t *testing.T) {
	d := trace.Durations{4400, 4400, 560, 560, 1600, 560, 560, 560}
	var seen []Symbol
	for s := range Demodulate(d, DefaultTiming()) {
		seen = append(seen, s)
		if len(seen) == 2 {
			break
		}
	}
	assert.Equal(t, []Symbol{Zero, One}, seen)
}

func TestDemodulate_LeaderOnly(t *testing.T) {
	assert.Empty(t, slices.Collect(Demodulate(trace.Durations{4400, 4400, 560}, DefaultTiming())))
}

func TestParseSymbols(t *testing.T) {
	s := ParseSymbols("0?1x")
	assert.Equal(t, Symbols{Zero, Unknown, One, Unknown}, s)
	assert.Equal(t, []int{1, 3}, s.Unknowns())
	assert.Equal(t, "0?1?", s.String())
}
