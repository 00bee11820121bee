package trace

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Durations is an ordered pulse/space timing trace in microseconds.
// Even indices are pulses (carrier on), odd indices are spaces.
type Durations []int

// Pairs returns the number of complete pulse/space pairs. A trailing
// pulse without a space is not counted.
func (d Durations) Pairs() int {
	return len(d) / 2
}

// Pair returns the pulse and space at pair index i.
func (d Durations) Pair(i int) (pulse, space int) {
	return d[2*i], d[2*i+1]
}

// From returns the trace starting at offset. Offsets past the end yield an
// empty trace.
func (d Durations) From(offset int) Durations {
	if offset <= 0 {
		return d
	}
	if offset >= len(d) {
		return Durations{}
	}
	return d[offset:]
}

// Total returns the summed duration of the trace in microseconds.
func (d Durations) Total() int {
	total := 0
	for _, v := range d {
		total += v
	}
	return total
}

// String renders the trace as a space separated list, e.g. "4420 4380 560 1620".
func (d Durations) String() string {
	parts := make([]string, len(d))
	for i, v := range d {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, " ")
}

// WriteText writes the trace as one duration per line. Durations below one
// second are written in seconds with microsecond precision, longer ones as
// integer microseconds, so ImportText reads both back with the default unit
// detection.
func WriteText(w io.Writer, d Durations, header string) error {
	bw := bufio.NewWriter(w)
	if header != "" {
		for _, line := range strings.Split(header, "\n") {
			if _, err := fmt.Fprintf(bw, "# %s\n", line); err != nil {
				return err
			}
		}
	}
	for _, v := range d {
		var err error
		if v >= 1e6 {
			_, err = fmt.Fprintf(bw, "%d\n", v)
		} else {
			_, err = fmt.Fprintf(bw, "%.6f\n", float64(v)/1e6)
		}
		if err != nil {
			return err
		}
	}
	return bw.Flush()
}
