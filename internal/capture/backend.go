// Package capture records raw IR timings from a receiver attached to a
// serial port and stores them as text traces the importer reads back.
package capture

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"go.bug.st/serial"

	"github.com/audiolibrelab/irdecode/internal/config"
)

// BackendType represents the type of capture backend
type BackendType string

const (
	BackendTypeSerial BackendType = "serial"
)

// Backend defines the interface for capture backend implementations
type Backend interface {
	// Create a new recorder instance
	NewRecorder(cfg *config.Config, logWriter io.Writer) Recorder

	// List available capture sources
	ListSources() ([]string, error)

	// Validate if a source is available
	ValidateSource(source string) error

	// Get the backend type
	GetType() BackendType
}

// SerialBackend captures from a microcontroller that prints pulse and space
// durations in microseconds over a serial line.
type SerialBackend struct {
	// Open and List default to go.bug.st/serial when nil.
	Open PortOpener
	List func() ([]string, error)
}

// NewRecorder creates a recorder using the serial backend
func NewRecorder(cfg *config.Config, logWriter io.Writer) Recorder {
	backend := &SerialBackend{}
	return backend.NewRecorder(cfg, logWriter)
}

// NewRecorder creates a new serial recorder
func (b *SerialBackend) NewRecorder(cfg *config.Config, logWriter io.Writer) Recorder {
	rec := NewSerialRecorder(cfg, logWriter)
	if b.Open != nil {
		rec.open = b.Open
	}
	return rec
}

// ListSources returns the serial ports present on this machine
func (b *SerialBackend) ListSources() ([]string, error) {
	list := b.List
	if list == nil {
		list = serial.GetPortsList
	}
	ports, err := list()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	slices.Sort(ports)
	return ports, nil
}

// ValidateSource checks that a serial port exists
func (b *SerialBackend) ValidateSource(source string) error {
	if strings.TrimSpace(source) == "" {
		return fmt.Errorf("no serial port configured")
	}

	ports, err := b.ListSources()
	if err != nil {
		return err
	}
	if !slices.Contains(ports, source) {
		return fmt.Errorf("port not found: %s", source)
	}
	return nil
}

// GetType returns the backend type
func (b *SerialBackend) GetType() BackendType {
	return BackendTypeSerial
}
