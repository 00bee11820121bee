// Package decode turns pulse/space timing traces into Midea air conditioner
// commands.
package decode

import "fmt"

// Range is a closed interval of microseconds.
type Range struct {
	Min int `mapstructure:"min" yaml:"min" json:"min"`
	Max int `mapstructure:"max" yaml:"max" json:"max"`
}

// Contains reports whether v lies within [Min, Max].
func (r Range) Contains(v int) bool {
	return v >= r.Min && v <= r.Max
}

func (r Range) String() string {
	return fmt.Sprintf("[%d, %d]", r.Min, r.Max)
}

// Timing holds the thresholds used to classify a trace. Every decoding
// function takes a Timing so captures from different receivers can be
// tuned independently.
type Timing struct {
	LeaderPulse Range `mapstructure:"leader_pulse" yaml:"leader_pulse" json:"leader_pulse"`
	LeaderSpace Range `mapstructure:"leader_space" yaml:"leader_space" json:"leader_space"`
	ShortPulse  Range `mapstructure:"short_pulse" yaml:"short_pulse" json:"short_pulse"`
	ShortSpace  Range `mapstructure:"short_space" yaml:"short_space" json:"short_space"`
	LongPulse   Range `mapstructure:"long_pulse" yaml:"long_pulse" json:"long_pulse"`

	// MinLeader is the shortest pulse and space accepted by Locate as the
	// start of a transmission.
	MinLeader int `mapstructure:"min_leader" yaml:"min_leader" json:"min_leader"`
}

// DefaultTiming returns the Midea thresholds:
//
//	leader pulse/space  4000-5000 us
//	short pulse/space    400-700 us
//	long pulse          1550-1650 us
//	locator minimum     4000 us
func DefaultTiming() Timing {
	return Timing{
		LeaderPulse: Range{Min: 4000, Max: 5000},
		LeaderSpace: Range{Min: 4000, Max: 5000},
		ShortPulse:  Range{Min: 400, Max: 700},
		ShortSpace:  Range{Min: 400, Max: 700},
		LongPulse:   Range{Min: 1550, Max: 1650},
		MinLeader:   4000,
	}
}

// Validate checks that every window is well formed and that the short and
// long pulse windows do not overlap.
func (t Timing) Validate() error {
	windows := []struct {
		name string
		r    Range
	}{
		{"leader_pulse", t.LeaderPulse},
		{"leader_space", t.LeaderSpace},
		{"short_pulse", t.ShortPulse},
		{"short_space", t.ShortSpace},
		{"long_pulse", t.LongPulse},
	}
	for _, w := range windows {
		if w.r.Min <= 0 {
			return fmt.Errorf("%s: min must be > 0, got %d", w.name, w.r.Min)
		}
		if w.r.Max < w.r.Min {
			return fmt.Errorf("%s: max %d is below min %d", w.name, w.r.Max, w.r.Min)
		}
	}
	if t.ShortPulse.Max >= t.LongPulse.Min && t.LongPulse.Max >= t.ShortPulse.Min {
		return fmt.Errorf("short_pulse %s overlaps long_pulse %s", t.ShortPulse, t.LongPulse)
	}
	if t.MinLeader <= 0 {
		return fmt.Errorf("min_leader must be > 0, got %d", t.MinLeader)
	}
	return nil
}

// IsValidLeader reports whether a pulse/space pair looks like a leader.
// The result is advisory; decoding continues either way.
func (t Timing) IsValidLeader(pulse, space int) bool {
	return t.LeaderPulse.Contains(pulse) && t.LeaderSpace.Contains(space)
}
