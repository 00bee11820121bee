package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/audiolibrelab/irdecode/internal/config"
	"github.com/audiolibrelab/irdecode/internal/export"
	"github.com/audiolibrelab/irdecode/internal/trace"
)

// ErrNoTimings is returned by Stop when the receiver sent nothing usable.
var ErrNoTimings = errors.New("no timings received")

// SerialRecorder implements the Recorder interface for a serial IR receiver.
// The receiver prints durations in microseconds, one or more per line;
// separators and signs are ignored and '#' lines are comments.
type SerialRecorder struct {
	cfg       *config.Config
	logWriter io.Writer
	open      PortOpener

	mutex     sync.RWMutex
	status    Status
	session   *SessionInfo
	port      Port
	durations trace.Durations
	readErr   error

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSerialRecorder creates a new serial recorder
func NewSerialRecorder(cfg *config.Config, logWriter io.Writer) *SerialRecorder {
	if logWriter == nil {
		logWriter = io.Discard
	}

	return &SerialRecorder{
		cfg:       cfg,
		logWriter: logWriter,
		open:      openSerial,
		status:    StatusStandby,
	}
}

// StartReady opens the port and transitions from STANDBY to READY state
func (r *SerialRecorder) StartReady(name string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.status != StatusStandby && r.status != StatusError {
		return fmt.Errorf("can only start ready from standby or error state, current: %s", r.status)
	}
	if r.cancel != nil {
		return fmt.Errorf("previous capture is still running, stop it first")
	}

	cleanName := export.SanitizeName(name)
	if cleanName == "" {
		return fmt.Errorf("capture name is required")
	}

	if err := os.MkdirAll(r.cfg.Input.CapturesDir, 0755); err != nil {
		r.status = StatusError
		return fmt.Errorf("failed to create captures directory: %w", err)
	}

	opts := PortOptions{
		BaudRate: r.cfg.Capture.BaudRate,
		DataBits: r.cfg.Capture.DataBits,
		StopBits: r.cfg.Capture.StopBits,
		Parity:   r.cfg.Capture.Parity,
	}
	mode, err := opts.SerialMode()
	if err != nil {
		r.status = StatusError
		return err
	}

	port, err := r.open(r.cfg.Capture.Port, mode)
	if err != nil {
		r.status = StatusError
		return fmt.Errorf("failed to open %s: %w", r.cfg.Capture.Port, err)
	}

	r.port = port
	r.session = &SessionInfo{
		Name:       cleanName,
		StartTime:  time.Now(),
		OutputFile: filepath.Join(r.cfg.Input.CapturesDir, cleanName+".txt"),
		Port:       r.cfg.Capture.Port,
	}
	r.durations = nil
	r.readErr = nil
	r.status = StatusReady

	slog.Info("Serial capture ready", "name", cleanName, "port", r.cfg.Capture.Port, "baud", mode.BaudRate)
	return nil
}

// StartRecording begins reading timings from READY state
func (r *SerialRecorder) StartRecording() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.status != StatusReady {
		return fmt.Errorf("can only start recording from ready state, current: %s", r.status)
	}

	if r.session == nil || r.port == nil {
		return fmt.Errorf("no session prepared, call StartReady first")
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	r.session.StartTime = time.Now()
	r.status = StatusRecording

	go r.readLoop(ctx, r.port, r.done)

	slog.Info("Serial capture started", "name", r.session.Name)
	return nil
}

// readLoop consumes lines until a read fails. Everything already received,
// including buffered lines, is consumed first. A read error after ctx is
// cancelled is the port being closed by Stop and ends the capture normally.
func (r *SerialRecorder) readLoop(ctx context.Context, port Port, done chan struct{}) {
	defer close(done)

	reader := bufio.NewReader(port)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			r.consume(line)
		}
		if err == nil {
			continue
		}
		if ctx.Err() != nil || errors.Is(err, io.EOF) {
			slog.Debug("Serial reader finished", "reason", err)
			return
		}
		r.mutex.Lock()
		r.readErr = err
		r.status = StatusError
		r.mutex.Unlock()
		slog.Error("Serial read failed", "error", err)
		return
	}
}

func (r *SerialRecorder) consume(line string) {
	fmt.Fprint(r.logWriter, line)

	values := ParseLine(line)
	if len(values) == 0 {
		return
	}

	r.mutex.Lock()
	r.durations = append(r.durations, values...)
	if r.session != nil {
		r.session.Durations = len(r.durations)
	}
	r.mutex.Unlock()
}

// ParseLine extracts the durations printed on one receiver line.
func ParseLine(line string) []int {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}

	fields := strings.FieldsFunc(line, func(c rune) bool {
		return c < '0' || c > '9'
	})

	var values []int
	for _, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil || v <= 0 {
			continue
		}
		values = append(values, v)
	}
	return values
}

// Stop ends the capture and writes the trace file
func (r *SerialRecorder) Stop() error {
	r.mutex.Lock()
	if r.cancel == nil {
		r.mutex.Unlock()
		return fmt.Errorf("no capture in progress")
	}
	cancel, done, port := r.cancel, r.done, r.port
	r.mutex.Unlock()

	slog.Debug("Stopping serial capture...")

	// cancel marks the close below as intentional; the reader keeps
	// draining until the closed port fails
	cancel()
	closeErr := port.Close()
	<-done

	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.port = nil
	r.cancel = nil

	if closeErr != nil {
		slog.Debug("Serial port close failed", "error", closeErr)
	}
	if r.readErr != nil {
		r.status = StatusError
		return fmt.Errorf("serial read failed: %w", r.readErr)
	}
	if len(r.durations) == 0 {
		r.status = StatusError
		return ErrNoTimings
	}

	if err := r.writeTrace(); err != nil {
		r.status = StatusError
		return err
	}

	r.status = StatusStandby
	slog.Info("Serial capture completed", "output", r.session.OutputFile, "durations", len(r.durations))

	return nil
}

func (r *SerialRecorder) writeTrace() error {
	f, err := os.Create(r.session.OutputFile)
	if err != nil {
		return fmt.Errorf("failed to create trace file: %w", err)
	}

	header := fmt.Sprintf("irdecode serial capture %q\nport: %s\ncaptured: %s",
		r.session.Name, r.session.Port, r.session.StartTime.Format(time.RFC3339))
	if err := trace.WriteText(f, r.durations, header); err != nil {
		f.Close()
		return fmt.Errorf("failed to write trace file: %w", err)
	}
	return f.Close()
}

// CancelReady closes the port and returns to STANDBY
func (r *SerialRecorder) CancelReady() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.status != StatusReady {
		return fmt.Errorf("can only cancel from ready state, current: %s", r.status)
	}

	if r.port != nil {
		r.port.Close()
		r.port = nil
	}

	r.status = StatusStandby
	r.session = nil
	slog.Debug("Serial capture cancelled, returned to standby")

	return nil
}

// GetStatus returns the current status and a copy of the session info
func (r *SerialRecorder) GetStatus() (Status, *SessionInfo) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var sessionCopy *SessionInfo
	if r.session != nil {
		s := *r.session
		sessionCopy = &s
	}

	return r.status, sessionCopy
}

// Durations returns a copy of the timings received so far.
func (r *SerialRecorder) Durations() trace.Durations {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return append(trace.Durations(nil), r.durations...)
}

// Cleanup releases the port whatever the state
func (r *SerialRecorder) Cleanup() error {
	r.mutex.Lock()
	cancel, done, port := r.cancel, r.done, r.port
	r.cancel, r.port = nil, nil
	if r.status == StatusRecording || r.status == StatusReady {
		r.status = StatusStandby
	}
	r.mutex.Unlock()

	if cancel != nil {
		cancel()
	}
	if port != nil {
		port.Close()
	}
	if cancel != nil && done != nil {
		<-done
	}

	slog.Debug("Serial recorder cleaned up")
	return nil
}
