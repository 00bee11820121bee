package trace

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Unit selects how raw time values are converted to microseconds.
type Unit string

const (
	// UnitAuto guesses per value: below 1 is seconds, below 1000 is
	// milliseconds, anything else is already microseconds.
	UnitAuto    Unit = "auto"
	UnitSeconds Unit = "s"
	UnitMillis  Unit = "ms"
	UnitMicros  Unit = "us"
)

// ParseUnit accepts the unit names used in configuration files and flags.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return UnitAuto, nil
	case "s", "sec", "seconds":
		return UnitSeconds, nil
	case "ms", "millis", "milliseconds":
		return UnitMillis, nil
	case "us", "µs", "micros", "microseconds":
		return UnitMicros, nil
	}
	return "", fmt.Errorf("unknown time unit %q (valid: auto, s, ms, us)", s)
}

// ToMicros converts a raw time value to microseconds.
func (u Unit) ToMicros(v float64) float64 {
	switch u {
	case UnitSeconds:
		return v * 1e6
	case UnitMillis:
		return v * 1e3
	case UnitMicros:
		return v
	}
	switch {
	case v < 1:
		return v * 1e6
	case v < 1000:
		return v * 1e3
	default:
		return v
	}
}

// Options tune how traces are read.
type Options struct {
	// Unit overrides magnitude based unit detection for generic CSV and text
	// traces. Saleae exports always carry seconds.
	Unit Unit
}

func (o Options) unit() Unit {
	if o.Unit == "" {
		return UnitAuto
	}
	return o.Unit
}

// Layout identifies a tabular capture export.
type Layout string

const (
	LayoutSaleae  Layout = "saleae"
	LayoutGeneric Layout = "generic"
)

const sniffSize = 1024

var (
	timeColumns  = []string{"Time", "Time [s]", "Time(s)", "Timestamp"}
	numericToken = regexp.MustCompile(`[\d.]+`)
)

// Import reads a trace from path. Files ending in .csv are parsed as logic
// analyzer exports, everything else as a text list of durations.
func Import(path string, opts Options) (Durations, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, importError(KindNotFound, path, err)
		}
		return nil, importError(KindIOFailure, path, err)
	}
	defer f.Close()

	var d Durations
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		d, err = ImportCSV(f, opts)
	} else {
		d, err = ImportText(f, opts)
	}
	if err != nil {
		var ie *ImportError
		if errors.As(err, &ie) && ie.Path == "" {
			ie.Path = path
		}
		return nil, err
	}

	slog.Debug("Trace imported", "path", path, "durations", len(d))
	return d, nil
}

// DetectLayout sniffs the header area of a CSV export.
func DetectLayout(sample []byte) (Layout, bool) {
	s := string(sample)
	switch {
	case strings.Contains(s, "Time [s]") || strings.Contains(s, "Time(s)"):
		return LayoutSaleae, true
	case strings.Contains(s, "Time") && strings.Contains(s, "Channel"):
		return LayoutGeneric, true
	}
	return "", false
}

// ImportCSV parses a Saleae or generic logic analyzer CSV export. Durations
// are the differences between consecutive timestamps; non-positive
// differences are dropped.
func ImportCSV(r io.Reader, opts Options) (Durations, error) {
	br := bufio.NewReaderSize(r, sniffSize*4)
	sample, err := br.Peek(sniffSize)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, importError(KindIOFailure, "", err)
	}

	layout, ok := DetectLayout(sample)
	if !ok {
		return nil, importError(KindUnrecognizedFormat, "", errors.New("no time column header found"))
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, importError(KindUnrecognizedFormat, "", errors.New("missing header row"))
		}
		return nil, importError(KindIOFailure, "", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	slog.Debug("CSV layout detected", "layout", layout, "columns", header)

	var rows rowParser
	switch layout {
	case LayoutSaleae:
		rows = newSaleaeParser(header)
	default:
		rows = newGenericParser(header, opts.unit())
	}

	var (
		durations Durations
		prev      float64
		havePrev  bool
		line      = 1
	)
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				slog.Debug("Skipping malformed CSV row", "line", line, "error", err)
				continue
			}
			return nil, importError(KindIOFailure, "", err)
		}

		us, ok := rows.timeMicros(record)
		if !ok {
			continue
		}
		if havePrev {
			if d := int(math.Round(us - prev)); d > 0 {
				durations = append(durations, d)
			}
		}
		prev, havePrev = us, true
	}

	return durations, nil
}

type rowParser interface {
	timeMicros(record []string) (float64, bool)
}

type saleaeParser struct {
	timeCol  int
	stateCol int
}

func newSaleaeParser(header []string) *saleaeParser {
	p := &saleaeParser{timeCol: -1, stateCol: -1}
	for i, h := range header {
		if p.timeCol < 0 && (h == "Time [s]" || h == "Time(s)") {
			p.timeCol = i
		}
		if p.stateCol < 0 && (strings.Contains(h, "Channel") || strings.Contains(h, "Digital")) {
			p.stateCol = i
		}
	}
	if p.timeCol < 0 {
		for i, h := range header {
			if strings.HasPrefix(h, "Time") {
				p.timeCol = i
				break
			}
		}
	}
	if p.stateCol < 0 && len(header) > 1 {
		p.stateCol = 1
	}
	return p
}

func (p *saleaeParser) timeMicros(record []string) (float64, bool) {
	if p.timeCol < 0 || p.stateCol < 0 || p.timeCol >= len(record) || p.stateCol >= len(record) {
		return 0, false
	}
	t, err := strconv.ParseFloat(strings.TrimSpace(record[p.timeCol]), 64)
	if err != nil {
		return 0, false
	}
	if _, err := strconv.Atoi(strings.TrimSpace(record[p.stateCol])); err != nil {
		return 0, false
	}
	return t * 1e6, true
}

type genericParser struct {
	timeCol int
	unit    Unit
}

func newGenericParser(header []string, unit Unit) *genericParser {
	p := &genericParser{timeCol: -1, unit: unit}
	for _, name := range timeColumns {
		for i, h := range header {
			if h == name {
				p.timeCol = i
				return p
			}
		}
	}
	return p
}

func (p *genericParser) timeMicros(record []string) (float64, bool) {
	if p.timeCol < 0 || p.timeCol >= len(record) {
		return 0, false
	}
	t, err := strconv.ParseFloat(strings.TrimSpace(record[p.timeCol]), 64)
	if err != nil {
		return 0, false
	}
	return p.unit.ToMicros(t), true
}

// ImportText parses one duration per line. The first numeric token of each
// line is used; blank lines, '#' comments and lines without a parseable
// number are skipped.
func ImportText(r io.Reader, opts Options) (Durations, error) {
	unit := opts.unit()
	var durations Durations

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		token := numericToken.FindString(line)
		if token == "" {
			continue
		}
		v, err := strconv.ParseFloat(token, 64)
		if err != nil {
			continue
		}
		durations = append(durations, int(math.Round(unit.ToMicros(v))))
	}
	if err := scanner.Err(); err != nil {
		return nil, importError(KindIOFailure, "", err)
	}

	return durations, nil
}

// ImportBytes is a convenience for callers holding a trace in memory, such as
// an uploaded file. The name decides the parser the same way Import does.
func ImportBytes(name string, data []byte, opts Options) (Durations, error) {
	if strings.EqualFold(filepath.Ext(name), ".csv") {
		return ImportCSV(bytes.NewReader(data), opts)
	}
	return ImportText(bytes.NewReader(data), opts)
}
