package decode

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/audiolibrelab/irdecode/internal/trace"
)

// MinTraceLength is the shortest trace that can hold a leader and one bit.
const MinTraceLength = 4

// MinAnalysisBits is the fewest cleaned bits for which field decoding is
// attempted.
const MinAnalysisBits = 24

var ErrTraceTooShort = errors.New("trace too short")

// DiagnosticKind names a recoverable condition found while decoding.
type DiagnosticKind string

const (
	DiagLeaderWarning     DiagnosticKind = "leader_warning"
	DiagAmbiguousBits     DiagnosticKind = "ambiguous_bits"
	DiagShortBitStream    DiagnosticKind = "short_bit_stream"
	DiagInsufficientBits  DiagnosticKind = "insufficient_bits"
	DiagIncompleteCommand DiagnosticKind = "incomplete_command"
	DiagChecksumMismatch  DiagnosticKind = "checksum_mismatch"
)

// Diagnostic is attached to a Result instead of failing the decode.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind"`
	Message string         `json:"message"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s", d.Kind, d.Message)
}

// Leader is the pulse/space pair at the located offset.
type Leader struct {
	Pulse int `json:"pulse"`
	Space int `json:"space"`
}

// Result is everything learned from one trace.
type Result struct {
	// Offset is the index in the original trace where the leader starts.
	Offset      int
	Signal      trace.Durations
	Leader      Leader
	LeaderValid bool
	Symbols     Symbols
	Bits        Bits
	// Bytes are assembled from the unpadded bits.
	Bytes       CommandBytes
	Command     *Command
	Diagnostics []Diagnostic
}

// Has reports whether a diagnostic of the given kind was raised.
func (r *Result) Has(kind DiagnosticKind) bool {
	return slices.ContainsFunc(r.Diagnostics, func(d Diagnostic) bool { return d.Kind == kind })
}

func (r *Result) warn(kind DiagnosticKind, format string, args ...any) {
	d := Diagnostic{Kind: kind, Message: fmt.Sprintf(format, args...)}
	r.Diagnostics = append(r.Diagnostics, d)
	slog.Debug("Decode diagnostic", "kind", d.Kind, "message", d.Message)
}

// Decoder runs the full pipeline with a fixed set of thresholds.
type Decoder struct {
	Timing Timing
	Policy AmbiguousBitPolicy
}

// NewDecoder returns a Decoder using the default thresholds and the
// AssumeZero policy.
func NewDecoder() *Decoder {
	return &Decoder{Timing: DefaultTiming(), Policy: AssumeZero}
}

// Decode locates the leader, demodulates the following pairs, cleans the
// bit stream and decodes the command. Only a trace too short to hold a
// leader and one bit, or an ambiguous bit under the Reject policy, is an
// error; everything else is reported as a diagnostic.
func (d *Decoder) Decode(durations trace.Durations) (*Result, error) {
	if len(durations) < MinTraceLength {
		return nil, fmt.Errorf("%w: %d durations, need at least %d", ErrTraceTooShort, len(durations), MinTraceLength)
	}

	policy := d.Policy
	if policy == "" {
		policy = AssumeZero
	}

	res := &Result{Offset: Locate(durations, d.Timing.MinLeader)}
	res.Signal = durations.From(res.Offset)
	if len(res.Signal) < 2 {
		return nil, fmt.Errorf("%w: no leader after offset %d", ErrTraceTooShort, res.Offset)
	}

	res.Leader = Leader{Pulse: res.Signal[0], Space: res.Signal[1]}
	res.LeaderValid = d.Timing.IsValidLeader(res.Leader.Pulse, res.Leader.Space)
	if !res.LeaderValid {
		res.warn(DiagLeaderWarning, "leader %d/%d us outside pulse %s space %s",
			res.Leader.Pulse, res.Leader.Space, d.Timing.LeaderPulse, d.Timing.LeaderSpace)
	}

	res.Symbols = slices.Collect(Demodulate(res.Signal, d.Timing))

	if unknown := res.Symbols.Unknowns(); len(unknown) > 0 {
		bits, err := Clean(res.Symbols, policy)
		if err != nil {
			return nil, err
		}
		res.Bits = bits
		res.warn(DiagAmbiguousBits, "%d ambiguous symbols at %v, cleaned to %d bits", len(unknown), unknown, len(bits))
	} else {
		res.Bits = Bits(res.Symbols.String())
	}

	res.Bytes = AssembleBytes(res.Bits)

	if len(res.Bits) < MinAnalysisBits {
		res.warn(DiagInsufficientBits, "%d bits, need %d for command analysis", len(res.Bits), MinAnalysisBits)
		return res, nil
	}

	cmd, diags, err := DecodeBits(res.Bits)
	for _, diag := range diags {
		res.warn(diag.Kind, "%s", diag.Message)
	}
	if err != nil {
		if errors.Is(err, ErrIncompleteCommand) {
			res.warn(DiagIncompleteCommand, "%v", err)
			return res, nil
		}
		return nil, err
	}
	res.Command = &cmd
	if !cmd.ChecksumValid {
		res.warn(DiagChecksumMismatch, "got 0x%02X, expected 0x%02X", cmd.Checksum, cmd.ExpectedChecksum)
	}

	slog.Debug("Trace decoded", "offset", res.Offset, "bits", len(res.Bits), "bytes", len(res.Bytes), "command", cmd.Summary())
	return res, nil
}
