package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/audiolibrelab/irdecode/internal/capture"
	"github.com/audiolibrelab/irdecode/internal/catalog"
	"github.com/audiolibrelab/irdecode/internal/config"
	"github.com/audiolibrelab/irdecode/internal/decode"
	"github.com/audiolibrelab/irdecode/internal/export"
	"github.com/audiolibrelab/irdecode/internal/trace"
)

// ErrCatalogDisabled is returned by catalog operations when no catalog path
// is configured.
var ErrCatalogDisabled = errors.New("catalog is disabled, set catalog.path in the config profile")

// Service represents the core irdecode service interface
type Service interface {
	// Decoding operations
	DecodeFile(path string) (*decode.Result, error)
	DecodeBytes(name string, data []byte) (*decode.Result, error)
	Export(name string, res *decode.Result) (string, error)
	Store(ctx context.Context, name, source string, res *decode.Result) (catalog.Record, error)
	RunBatch(ctx context.Context, opts BatchOptions) (*BatchReport, error)

	// Capture operations
	StartReady(name string) error
	StartCapture() error
	CancelReady() error
	StopCapture() error
	GetCaptureStatus() (CaptureStatus, *CaptureSession)
	ListSources() ([]string, error)
	ListCaptures() ([]CaptureFileInfo, error)

	// Pipeline operations
	RunPipeline(ctx context.Context, name, steps string, stop <-chan struct{}) (*PipelineResult, error)

	// Catalog operations
	ListCommands(ctx context.Context) ([]catalog.Record, error)
	GetCommand(ctx context.Context, name string) (catalog.Record, error)

	// Configuration operations
	LoadProfile(profile string) error
	GetConfig() *config.Config

	// Information operations
	GetLastError() string

	Close() error
}

// CaptureStatus represents the current capture state
type CaptureStatus string

const (
	StatusStandby   CaptureStatus = "STANDBY"
	StatusReady     CaptureStatus = "READY"
	StatusRecording CaptureStatus = "RECORDING"
	StatusError     CaptureStatus = "ERROR"
)

// CaptureSession contains information about the current capture session
type CaptureSession struct {
	Name       string    `json:"name"`
	StartTime  time.Time `json:"start_time"`
	OutputFile string    `json:"output_file"`
	Port       string    `json:"port"`
	Durations  int       `json:"durations"`
}

// CaptureFileInfo describes a trace file in the captures directory
type CaptureFileInfo struct {
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	SizeHuman    string    `json:"size_human"`
	ModTime      time.Time `json:"mod_time"`
	ModTimeHuman string    `json:"mod_time_human"`
}

// IRDecodeService is the main service implementation
type IRDecodeService struct {
	cfg        *config.Config
	configFile string
	backend    capture.Backend
	recorder   capture.Recorder
	logWriter  io.Writer

	header *export.Header

	catalogMutex sync.Mutex
	catalog      *catalog.Store

	// Error tracking
	lastError      string
	lastErrorMutex sync.RWMutex
}

// Option customizes a service at construction time.
type Option func(*IRDecodeService)

// WithBackend replaces the serial capture backend.
func WithBackend(b capture.Backend) Option {
	return func(s *IRDecodeService) {
		s.backend = b
	}
}

// New creates a new irdecode service instance
func New(cfg *config.Config, configFile string, logWriter io.Writer, opts ...Option) Service {
	if logWriter == nil {
		logWriter = io.Discard
	}

	s := &IRDecodeService{
		cfg:        cfg,
		configFile: configFile,
		backend:    &capture.SerialBackend{},
		logWriter:  logWriter,
		header:     export.NewHeader(cfg.Output.HeaderFile),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.recorder = s.backend.NewRecorder(cfg, logWriter)
	return s
}

// DecodeFile imports and decodes one capture file
func (s *IRDecodeService) DecodeFile(path string) (*decode.Result, error) {
	opts, err := s.cfg.TraceOptions()
	if err != nil {
		return nil, err
	}
	durations, err := trace.Import(path, opts)
	if err != nil {
		return nil, err
	}
	slog.Debug("Trace imported", "file", path, "durations", len(durations))
	return s.decode(durations)
}

// DecodeBytes decodes a capture held in memory, such as an upload
func (s *IRDecodeService) DecodeBytes(name string, data []byte) (*decode.Result, error) {
	opts, err := s.cfg.TraceOptions()
	if err != nil {
		return nil, err
	}
	durations, err := trace.ImportBytes(name, data, opts)
	if err != nil {
		return nil, err
	}
	return s.decode(durations)
}

func (s *IRDecodeService) decode(durations trace.Durations) (*decode.Result, error) {
	decoder, err := s.cfg.Decoder()
	if err != nil {
		return nil, err
	}
	return decoder.Decode(durations)
}

// Export appends the command to the configured header and returns the
// sanitized name it was written under
func (s *IRDecodeService) Export(name string, res *decode.Result) (string, error) {
	entry := export.NewEntry(name, res)
	if err := s.header.Append(entry); err != nil {
		s.setLastError(fmt.Sprintf("Failed to export %s: %v", name, err))
		return "", err
	}
	return export.SanitizeName(name), nil
}

// Store saves the command in the catalog
func (s *IRDecodeService) Store(ctx context.Context, name, source string, res *decode.Result) (catalog.Record, error) {
	store, err := s.openCatalog()
	if err != nil {
		return catalog.Record{}, err
	}
	rec, err := store.Save(ctx, catalog.NewRecord(export.SanitizeName(name), source, res))
	if err != nil {
		s.setLastError(fmt.Sprintf("Failed to store %s: %v", name, err))
		return catalog.Record{}, err
	}
	slog.Info("Command stored", "name", rec.Name, "id", rec.ID)
	return rec, nil
}

// ListCommands returns every command in the catalog
func (s *IRDecodeService) ListCommands(ctx context.Context) ([]catalog.Record, error) {
	store, err := s.openCatalog()
	if err != nil {
		return nil, err
	}
	return store.List(ctx)
}

// GetCommand returns one command from the catalog
func (s *IRDecodeService) GetCommand(ctx context.Context, name string) (catalog.Record, error) {
	store, err := s.openCatalog()
	if err != nil {
		return catalog.Record{}, err
	}
	return store.Get(ctx, name)
}

func (s *IRDecodeService) openCatalog() (*catalog.Store, error) {
	s.catalogMutex.Lock()
	defer s.catalogMutex.Unlock()

	if s.catalog != nil {
		return s.catalog, nil
	}
	if s.cfg.Catalog.Path == "" {
		return nil, ErrCatalogDisabled
	}
	if s.cfg.Catalog.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(s.cfg.Catalog.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create catalog directory: %w", err)
		}
	}

	store, err := catalog.Open(s.cfg.Catalog.Path)
	if err != nil {
		s.setLastError(fmt.Sprintf("Failed to open catalog: %v", err))
		return nil, err
	}
	s.catalog = store
	return store, nil
}

// StartReady opens the receiver port (STANDBY -> READY)
func (s *IRDecodeService) StartReady(name string) error {
	slog.Debug("Service.StartReady called", "name", name)
	s.clearLastError()
	err := s.recorder.StartReady(name)
	if err != nil {
		s.setLastError(fmt.Sprintf("Failed to start capture: %v", err))
	}
	return err
}

// StartCapture begins reading timings (READY -> RECORDING)
func (s *IRDecodeService) StartCapture() error {
	err := s.recorder.StartRecording()
	if err != nil {
		s.setLastError(fmt.Sprintf("Failed to start capture: %v", err))
	}
	return err
}

// CancelReady cancels ready state (READY -> STANDBY)
func (s *IRDecodeService) CancelReady() error {
	return s.recorder.CancelReady()
}

// StopCapture stops the current capture and writes the trace file
func (s *IRDecodeService) StopCapture() error {
	err := s.recorder.Stop()
	if err != nil {
		s.setLastError(fmt.Sprintf("Failed to stop capture: %v", err))
	} else {
		s.clearLastError()
	}
	return err
}

// GetCaptureStatus returns the current capture status and session info
func (s *IRDecodeService) GetCaptureStatus() (CaptureStatus, *CaptureSession) {
	status, session := s.recorder.GetStatus()

	var svcStatus CaptureStatus
	switch status {
	case capture.StatusStandby:
		svcStatus = StatusStandby
	case capture.StatusReady:
		svcStatus = StatusReady
	case capture.StatusRecording:
		svcStatus = StatusRecording
	case capture.StatusError:
		svcStatus = StatusError
	}

	var svcSession *CaptureSession
	if session != nil {
		svcSession = &CaptureSession{
			Name:       session.Name,
			StartTime:  session.StartTime,
			OutputFile: session.OutputFile,
			Port:       session.Port,
			Durations:  session.Durations,
		}
	}

	return svcStatus, svcSession
}

// ListSources returns the serial ports available for capture
func (s *IRDecodeService) ListSources() ([]string, error) {
	return s.backend.ListSources()
}

// ListCaptures returns the trace files in the captures directory, newest first
func (s *IRDecodeService) ListCaptures() ([]CaptureFileInfo, error) {
	paths, err := traceFiles(s.cfg.Input.CapturesDir)
	if err != nil {
		return nil, err
	}

	var files []CaptureFileInfo
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			slog.Warn("Failed to get file info for capture", "file", path, "error", err)
			continue
		}
		files = append(files, CaptureFileInfo{
			Name:         filepath.Base(path),
			Path:         path,
			Size:         info.Size(),
			SizeHuman:    formatBytes(info.Size()),
			ModTime:      info.ModTime(),
			ModTimeHuman: info.ModTime().Format("2006-01-02 15:04:05"),
		})
	}

	sort.SliceStable(files, func(i, j int) bool {
		return files[i].ModTime.After(files[j].ModTime)
	})

	return files, nil
}

// traceFiles lists the .csv and .txt files of dir in name order
func traceFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read captures directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".csv", ".txt":
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// LoadProfile loads a new configuration profile
func (s *IRDecodeService) LoadProfile(profile string) error {
	newCfg, err := config.LoadWithProfile(s.configFile, profile)
	if err != nil {
		return fmt.Errorf("failed to load profile '%s': %w", profile, err)
	}

	if s.recorder != nil {
		s.recorder.Cleanup()
	}

	s.catalogMutex.Lock()
	if s.catalog != nil && s.cfg.Catalog.Path != newCfg.Catalog.Path {
		s.catalog.Close()
		s.catalog = nil
	}
	s.catalogMutex.Unlock()

	s.cfg = newCfg
	s.header = export.NewHeader(newCfg.Output.HeaderFile)
	s.recorder = s.backend.NewRecorder(s.cfg, s.logWriter)
	return nil
}

// GetConfig returns the current configuration
func (s *IRDecodeService) GetConfig() *config.Config {
	return s.cfg
}

// Close releases the recorder and the catalog
func (s *IRDecodeService) Close() error {
	if s.recorder != nil {
		s.recorder.Cleanup()
	}

	s.catalogMutex.Lock()
	defer s.catalogMutex.Unlock()
	if s.catalog != nil {
		err := s.catalog.Close()
		s.catalog = nil
		return err
	}
	return nil
}

// GetLastError returns the last error message (thread-safe)
func (s *IRDecodeService) GetLastError() string {
	s.lastErrorMutex.RLock()
	defer s.lastErrorMutex.RUnlock()
	return s.lastError
}

// setLastError sets the last error message (thread-safe)
func (s *IRDecodeService) setLastError(err string) {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = err

	slog.Error("Service error occurred", "error_message", err)
}

// clearLastError clears the last error message (thread-safe)
func (s *IRDecodeService) clearLastError() {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = ""
}

// formatBytes converts bytes to human readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
