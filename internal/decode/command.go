package decode

import (
	"errors"
	"fmt"
	"strings"
)

// MinCommandBytes is the shortest command field decoding accepts.
const MinCommandBytes = 6

// ProtocolBits is the expected length of a Midea frame half.
const ProtocolBits = MinCommandBytes * 8

// ErrIncompleteCommand is returned when fewer than MinCommandBytes bytes are
// available. The raw bytes remain usable.
var ErrIncompleteCommand = errors.New("incomplete command")

type Power bool

const (
	PowerOff Power = false
	PowerOn  Power = true
)

func (p Power) String() string {
	if p {
		return "On"
	}
	return "Off"
}

type Mode uint8

const (
	ModeAuto Mode = iota
	ModeCool
	ModeDry
	ModeFan
	ModeHeat
)

var modeNames = map[Mode]string{
	ModeAuto: "Auto",
	ModeCool: "Cool",
	ModeDry:  "Dry",
	ModeFan:  "Fan",
	ModeHeat: "Heat",
}

// Known reports whether the mode value has a name.
func (m Mode) Known() bool {
	_, ok := modeNames[m]
	return ok
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", uint8(m))
}

type FanSpeed uint8

const (
	FanAuto   FanSpeed = 0
	FanLow    FanSpeed = 1
	FanMedium FanSpeed = 2
	FanHigh   FanSpeed = 3
	FanSilent FanSpeed = 7
)

var fanNames = map[FanSpeed]string{
	FanAuto:   "Auto",
	FanLow:    "Low",
	FanMedium: "Medium",
	FanHigh:   "High",
	FanSilent: "Silent",
}

func (f FanSpeed) Known() bool {
	_, ok := fanNames[f]
	return ok
}

func (f FanSpeed) String() string {
	if name, ok := fanNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", uint8(f))
}

// Swing is a set of louver directions.
type Swing uint8

const (
	SwingVertical Swing = 1 << iota
	SwingHorizontal
)

func (s Swing) Vertical() bool   { return s&SwingVertical != 0 }
func (s Swing) Horizontal() bool { return s&SwingHorizontal != 0 }

func (s Swing) String() string {
	var parts []string
	if s.Vertical() {
		parts = append(parts, "Vertical")
	}
	if s.Horizontal() {
		parts = append(parts, "Horizontal")
	}
	if len(parts) == 0 {
		return "Off"
	}
	return strings.Join(parts, " + ")
}

const (
	MinTemperature  = 16
	MaxTemperature  = 30
	temperatureBase = 17
)

// Temperature is a setpoint in degrees Celsius. Raw holds the encoded
// nibble so out of range values can still be reported.
type Temperature struct {
	Celsius int
	Raw     uint8
	Valid   bool
}

// DecodeTemperature maps the low nibble of b to degrees Celsius.
func DecodeTemperature(b byte) Temperature {
	raw := b & 0x0F
	c := int(raw) + temperatureBase
	return Temperature{
		Celsius: c,
		Raw:     raw,
		Valid:   c >= MinTemperature && c <= MaxTemperature,
	}
}

func (t Temperature) String() string {
	if !t.Valid {
		return fmt.Sprintf("Unknown(%d)", t.Raw)
	}
	return fmt.Sprintf("%d°C", t.Celsius)
}

// Command is the decoded view of a Midea command frame.
type Command struct {
	Bytes            CommandBytes
	Power            Power
	Mode             Mode
	Temperature      Temperature
	Fan              FanSpeed
	Swing            Swing
	Checksum         byte
	ExpectedChecksum byte
	ChecksumValid    bool
}

// DecodeCommand reads the fields out of b:
//
//	byte 1 bit 7     power
//	byte 1 bits 5-7  mode
//	byte 2 bits 0-3  temperature - 17
//	byte 3 bits 0-2  fan speed
//	byte 3 bit 4/5   vertical/horizontal swing
//	last byte        XOR of the preceding bytes
func DecodeCommand(b CommandBytes) (Command, error) {
	if len(b) < MinCommandBytes {
		return Command{}, fmt.Errorf("%w: %d of %d bytes", ErrIncompleteCommand, len(b), MinCommandBytes)
	}

	var swing Swing
	if b[3]&0x10 != 0 {
		swing |= SwingVertical
	}
	if b[3]&0x20 != 0 {
		swing |= SwingHorizontal
	}

	return Command{
		Bytes:            append(CommandBytes(nil), b...),
		Power:            Power(b[1]&0x80 != 0),
		Mode:             Mode((b[1] >> 5) & 0x07),
		Temperature:      DecodeTemperature(b[2]),
		Fan:              FanSpeed(b[3] & 0x07),
		Swing:            swing,
		Checksum:         b[len(b)-1],
		ExpectedChecksum: b.Checksum(),
		ChecksumValid:    b.ChecksumValid(),
	}, nil
}

// DecodeBits pads b to ProtocolBits when short, assembles it and decodes the
// command. The returned diagnostics note any padding.
func DecodeBits(b Bits) (Command, []Diagnostic, error) {
	var diags []Diagnostic
	if len(b) < ProtocolBits {
		diags = append(diags, Diagnostic{
			Kind:    DiagShortBitStream,
			Message: fmt.Sprintf("only %d bits, padded to %d", len(b), ProtocolBits),
		})
		b = b.Pad(ProtocolBits)
	}
	cmd, err := DecodeCommand(AssembleBytes(b))
	return cmd, diags, err
}

// Summary is a one line human readable rendering of the command.
func (c Command) Summary() string {
	return fmt.Sprintf("Power %s, Mode %s, Temp %s, Fan %s, Swing %s",
		c.Power, c.Mode, c.Temperature, c.Fan, c.Swing)
}
