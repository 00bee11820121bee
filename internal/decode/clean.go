package decode

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAmbiguousBit is returned by Clean under the Reject policy when an
// Unknown symbol survives trimming.
var ErrAmbiguousBit = errors.New("ambiguous bit in stream")

// AmbiguousBitPolicy decides what happens to Unknown symbols that sit
// between valid bits.
type AmbiguousBitPolicy string

const (
	// AssumeZero substitutes '0'. It loses precision but keeps every
	// capture decodable.
	AssumeZero AmbiguousBitPolicy = "assume_zero"
	// Reject fails the decode instead of guessing.
	Reject AmbiguousBitPolicy = "reject"
)

// ParsePolicy accepts the policy names used in configuration.
func ParsePolicy(s string) (AmbiguousBitPolicy, error) {
	switch AmbiguousBitPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", AssumeZero:
		return AssumeZero, nil
	case Reject:
		return Reject, nil
	}
	return "", fmt.Errorf("unknown ambiguous bit policy %q (valid: assume_zero, reject)", s)
}

// Bits is a bit string holding only '0' and '1'.
type Bits string

// Clean trims leading and trailing Unknown runs and resolves the remaining
// Unknown symbols according to policy. A stream without valid bits cleans
// to the empty string rather than to a run of zeros of the same length, as
// there is nothing left to assume a value for. Clean is idempotent.
func Clean(s Symbols, policy AmbiguousBitPolicy) (Bits, error) {
	start, end := 0, len(s)
	for start < end && s[start] == Unknown {
		start++
	}
	for end > start && s[end-1] == Unknown {
		end--
	}

	var b strings.Builder
	b.Grow(end - start)
	for i := start; i < end; i++ {
		if s[i] == Unknown {
			if policy == Reject {
				return "", fmt.Errorf("%w at position %d", ErrAmbiguousBit, i)
			}
			b.WriteByte('0')
			continue
		}
		b.WriteRune(s[i].Rune())
	}
	return Bits(b.String()), nil
}

// Symbols converts the bit string back to symbols.
func (b Bits) Symbols() Symbols {
	return ParseSymbols(string(b))
}

// Pad right-pads the bit string with '0' up to n bits.
func (b Bits) Pad(n int) Bits {
	if len(b) >= n {
		return b
	}
	return b + Bits(strings.Repeat("0", n-len(b)))
}
