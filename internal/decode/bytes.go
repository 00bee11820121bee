package decode

import (
	"fmt"
	"strings"
)

// CommandBytes is an assembled command, most significant bit first.
type CommandBytes []byte

// AssembleBytes groups the bit string into bytes. A trailing group shorter
// than eight bits is dropped.
func AssembleBytes(b Bits) CommandBytes {
	out := make(CommandBytes, 0, len(b)/8)
	for i := 0; i+8 <= len(b); i += 8 {
		var v byte
		for _, c := range b[i : i+8] {
			v <<= 1
			if c == '1' {
				v |= 1
			}
		}
		out = append(out, v)
	}
	return out
}

// Bits renders the bytes as an 8*len(c) bit string. AssembleBytes(c.Bits())
// returns c.
func (c CommandBytes) Bits() Bits {
	var b strings.Builder
	b.Grow(len(c) * 8)
	for _, v := range c {
		fmt.Fprintf(&b, "%08b", v)
	}
	return Bits(b.String())
}

// Checksum returns the XOR of every byte except the last.
func (c CommandBytes) Checksum() byte {
	var x byte
	for i := 0; i+1 < len(c); i++ {
		x ^= c[i]
	}
	return x
}

// ChecksumValid reports whether the last byte equals the XOR of the others.
// Commands shorter than two bytes never validate.
func (c CommandBytes) ChecksumValid() bool {
	if len(c) < 2 {
		return false
	}
	return c.Checksum() == c[len(c)-1]
}

// Hex renders the bytes as "0xA1, 0x82, ...".
func (c CommandBytes) Hex() string {
	parts := make([]string, len(c))
	for i, v := range c {
		parts[i] = fmt.Sprintf("0x%02X", v)
	}
	return strings.Join(parts, ", ")
}

// WithChecksum returns a copy of c with the last byte replaced by the
// XOR of the preceding ones.
func (c CommandBytes) WithChecksum() CommandBytes {
	out := append(CommandBytes(nil), c...)
	if len(out) > 0 {
		out[len(out)-1] = out.Checksum()
	}
	return out
}
