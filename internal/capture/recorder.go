package capture

import (
	"time"
)

// Status represents the current state of the recorder
type Status string

const (
	StatusStandby   Status = "STANDBY"
	StatusReady     Status = "READY"
	StatusRecording Status = "RECORDING"
	StatusError     Status = "ERROR"
)

// SessionInfo contains information about the current capture session
type SessionInfo struct {
	Name       string    `json:"name"`
	StartTime  time.Time `json:"start_time"`
	OutputFile string    `json:"output_file"`
	Port       string    `json:"port"`
	Durations  int       `json:"durations"`
}

// Recorder defines the interface that all capture recorders must implement
type Recorder interface {
	StartReady(name string) error
	StartRecording() error
	CancelReady() error
	Stop() error

	// Status and information
	GetStatus() (Status, *SessionInfo)

	// Cleanup
	Cleanup() error
}
