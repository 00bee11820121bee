package decode

import (
	"iter"
	"strings"

	"github.com/audiolibrelab/irdecode/internal/trace"
)

// Symbol is one demodulated pulse/space pair.
type Symbol uint8

const (
	Zero Symbol = iota
	One
	Unknown
)

// Rune returns '0', '1' or '?'.
func (s Symbol) Rune() rune {
	switch s {
	case Zero:
		return '0'
	case One:
		return '1'
	}
	return '?'
}

func (s Symbol) String() string {
	return string(s.Rune())
}

// Symbols is a demodulated bit stream that may still contain Unknown.
type Symbols []Symbol

func (s Symbols) String() string {
	var b strings.Builder
	b.Grow(len(s))
	for _, sym := range s {
		b.WriteRune(sym.Rune())
	}
	return b.String()
}

// Unknowns returns the positions of Unknown symbols.
func (s Symbols) Unknowns() []int {
	var idx []int
	for i, sym := range s {
		if sym == Unknown {
			idx = append(idx, i)
		}
	}
	return idx
}

// ParseSymbols converts a "01?" string back to symbols. Any rune other than
// '0' or '1' becomes Unknown.
func ParseSymbols(str string) Symbols {
	out := make(Symbols, 0, len(str))
	for _, r := range str {
		switch r {
		case '0':
			out = append(out, Zero)
		case '1':
			out = append(out, One)
		default:
			out = append(out, Unknown)
		}
	}
	return out
}

// Locate returns the even index of the first pair whose pulse and space are
// both at least minPulse. It returns 0 when no such pair exists, in which
// case the trace is assumed to start at its leader.
func Locate(d trace.Durations, minPulse int) int {
	for i := 0; i+1 < len(d); i += 2 {
		if d[i] >= minPulse && d[i+1] >= minPulse {
			return i
		}
	}
	return 0
}

// DecodeBit classifies one pulse/space pair. A space longer than the short
// space window marks a gap and always yields Unknown; otherwise the pulse
// width selects Zero or One.
func (t Timing) DecodeBit(pulse, space int) Symbol {
	if space > t.ShortSpace.Max {
		return Unknown
	}
	switch {
	case t.ShortPulse.Contains(pulse):
		return Zero
	case t.LongPulse.Contains(pulse):
		return One
	}
	return Unknown
}

// Demodulate yields one symbol per pulse/space pair following the leader
// (index 2 onwards). A trailing unpaired duration is ignored.
func Demodulate(d trace.Durations, t Timing) iter.Seq[Symbol] {
	return func(yield func(Symbol) bool) {
		for i := 2; i+1 < len(d); i += 2 {
			if !yield(t.DecodeBit(d[i], d[i+1])) {
				return
			}
		}
	}
}
