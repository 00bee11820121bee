// Package export writes decoded commands as C arrays for an embedded IR
// transmitter.
package export

import (
	"bufio"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/audiolibrelab/irdecode/internal/decode"
	"github.com/audiolibrelab/irdecode/internal/trace"
)

// DefaultHeaderFile is where commands are appended when no path is configured.
const DefaultHeaderFile = "midea_commands.h"

const valuesPerRow = 8

//go:embed command.h.tmpl
var commandTemplate string

var tmpl = template.Must(template.New("command").Parse(commandTemplate))

// Entry is one command block in the header.
type Entry struct {
	Name    string
	Decoded time.Time
	// Timing holds the pulse/space pairs after the leader.
	Timing []int
	Bytes  decode.CommandBytes
	// Command is set when Bytes holds a full frame.
	Command *decode.Command
}

// NewEntry builds an entry from a decode result. Bytes are the unpadded
// assembled bytes; the analysis block is only filled when they hold at least
// six bytes.
func NewEntry(name string, res *decode.Result) Entry {
	e := Entry{
		Name:   name,
		Timing: timingPairs(res.Signal),
		Bytes:  res.Bytes,
	}
	if cmd, err := decode.DecodeCommand(res.Bytes); err == nil {
		e.Command = &cmd
	}
	return e
}

func timingPairs(signal trace.Durations) []int {
	var out []int
	for i := 2; i+1 < len(signal); i += 2 {
		out = append(out, signal[i], signal[i+1])
	}
	return out
}

type templateData struct {
	Entry
	Upper      string
	Lower      string
	Stamp      string
	RawBytes   string
	TimingRows []string
	ByteList   string
}

func (e Entry) data() templateData {
	hex := make([]string, len(e.Bytes))
	for i, b := range e.Bytes {
		hex[i] = fmt.Sprintf("0x%02X", b)
	}

	var rows []string
	for i := 0; i < len(e.Timing); i += valuesPerRow {
		end := min(i+valuesPerRow, len(e.Timing))
		cells := make([]string, 0, end-i)
		for _, v := range e.Timing[i:end] {
			cells = append(cells, fmt.Sprintf("%4d", v))
		}
		row := strings.Join(cells, ", ")
		if end < len(e.Timing) {
			row += ","
		}
		rows = append(rows, row)
	}

	return templateData{
		Entry:      e,
		Upper:      strings.ToUpper(e.Name),
		Lower:      strings.ToLower(e.Name),
		Stamp:      e.Decoded.Format("2006-01-02 15:04:05"),
		RawBytes:   strings.Join(hex, " "),
		TimingRows: rows,
		ByteList:   strings.Join(hex, ", "),
	}
}

// Render writes the C block for e.
func Render(w io.Writer, e Entry) error {
	if e.Name == "" {
		return errors.New("command name is required")
	}
	return tmpl.Execute(w, e.data())
}

// Header appends command blocks to a C header file. Appends are serialized
// so one Header may be shared between goroutines.
type Header struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

// NewHeader returns a Header writing to path.
func NewHeader(path string) *Header {
	if path == "" {
		path = DefaultHeaderFile
	}
	return &Header{path: path, now: time.Now}
}

// Path returns the header file path.
func (h *Header) Path() string {
	return h.path
}

// Append opens the header, writes the block for e and closes it again.
// A zero Decoded time is stamped with the current time.
func (h *Header) Append(e Entry) error {
	e.Name = SanitizeName(e.Name)
	if e.Name == "" {
		return errors.New("command name is empty after sanitizing")
	}
	if e.Decoded.IsZero() {
		e.Decoded = h.now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	f, err := os.OpenFile(h.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", h.path, err)
	}
	bw := bufio.NewWriter(f)
	if err := Render(bw, e); err != nil {
		f.Close()
		return fmt.Errorf("failed to render %s: %w", e.Name, err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", h.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", h.path, err)
	}

	slog.Info("Command exported", "name", e.Name, "file", h.path,
		"timing", len(e.Timing), "bytes", len(e.Bytes))
	return nil
}

// Reset truncates the header so a batch run starts from an empty file.
func (h *Header) Reset() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := os.WriteFile(h.path, nil, 0o644); err != nil {
		return fmt.Errorf("failed to reset %s: %w", h.path, err)
	}
	return nil
}

var timingDefine = regexp.MustCompile(`(?m)^#define ([A-Z0-9_]+)_TIMING_COUNT `)

// Names lists the command names already present in the header, lower
// cased, in file order. A missing file has no names.
func (h *Header) Names() ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	data, err := os.ReadFile(h.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", h.path, err)
	}
	var names []string
	for _, m := range timingDefine.FindAllStringSubmatch(string(data), -1) {
		names = append(names, strings.ToLower(m[1]))
	}
	return names, nil
}
