package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"

	"github.com/audiolibrelab/irdecode/internal/config"
	"github.com/audiolibrelab/irdecode/internal/decode"
	"github.com/audiolibrelab/irdecode/internal/service"
)

// Server represents the web server for controlling irdecode
type Server struct {
	service       service.Service
	configFile    string
	port          string
	activeProfile string

	// Guards service and activeProfile across profile switches
	mu sync.RWMutex
}

// StatusResponse represents the JSON response for status endpoint
type StatusResponse struct {
	Status        string                  `json:"status"`
	Message       string                  `json:"message,omitempty"`
	Session       *service.CaptureSession `json:"session,omitempty"`
	Config        *ResolvedConfigInfo     `json:"resolved_config"`
	ActiveProfile string                  `json:"active_profile"`
}

// ResolvedConfigInfo contains configuration information for clients
type ResolvedConfigInfo struct {
	TimingRef     string        `json:"timing_ref"`
	Timing        decode.Timing `json:"timing"`
	AmbiguousBits string        `json:"ambiguous_bits"`
	CapturesDir   string        `json:"captures_dir"`
	HeaderFile    string        `json:"header_file"`
	CatalogPath   string        `json:"catalog_path,omitempty"`
	Port          string        `json:"port"`
	BaudRate      int           `json:"baud_rate"`
	Inheritance   string        `json:"timing_inheritance"` // "inherited" or "profile-specific"
}

// SourcesResponse represents the JSON response for sources endpoint
type SourcesResponse struct {
	Sources    []string `json:"sources"`
	Configured string   `json:"configured"`
	Available  bool     `json:"available"`
}

// New creates a new web server around an existing service
func New(svc service.Service, configFile string, port string) *Server {
	return &Server{
		service:       svc,
		configFile:    configFile,
		port:          port,
		activeProfile: getActiveProfileName(configFile),
	}
}

// Handler returns the routes served by Start
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/ready", s.handleStartReady)
	mux.HandleFunc("/start", s.handleStartCapture)
	mux.HandleFunc("/cancel", s.handleCancelReady)
	mux.HandleFunc("/stop", s.handleStopCapture)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/sources", s.handleSources)
	mux.HandleFunc("/config/profiles", s.handleProfiles)
	mux.HandleFunc("/config/select", s.handleSelectProfile)
	mux.HandleFunc("/api/decode", s.handleDecode)
	mux.HandleFunc("/api/batch", s.handleBatch)
	mux.HandleFunc("/api/captures", s.handleCaptures)
	mux.HandleFunc("/api/commands", s.handleCommands)
	mux.HandleFunc("/api/commands/", s.handleCommand)
	return mux
}

// Start starts the web server
func (s *Server) Start() error {
	localIP := getLocalIP()

	slog.Info("Starting irdecode web server",
		"port", s.port,
		"local_url", fmt.Sprintf("http://%s:%s", localIP, s.port),
		"localhost_url", fmt.Sprintf("http://localhost:%s", s.port))

	return http.ListenAndServe(":"+s.port, s.Handler())
}

func (s *Server) svc() service.Service {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.service
}

// handleIndex serves a short endpoint listing
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.sendErrorResponse(w, http.StatusNotFound, "Not found", "path", r.URL.Path)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write([]byte(indexHTML))
}

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>irdecode</title>
</head>
<body>
    <h1>irdecode</h1>
    <h2>API Endpoints:</h2>
    <ul>
        <li>POST /api/decode - Decode an uploaded trace (field "trace", optional "name", "export", "store")</li>
        <li>POST /api/batch - Decode every capture in the captures directory</li>
        <li>GET /api/captures - List capture files</li>
        <li>GET /api/commands - List stored commands</li>
        <li>GET /api/commands/{name} - Get one stored command</li>
        <li>POST /ready, /start, /cancel, /stop - Control serial capture</li>
        <li>GET /status - Get capture status</li>
        <li>GET /sources - List serial ports</li>
        <li>GET /config/profiles - List profiles</li>
        <li>POST /config/select - Switch profile</li>
    </ul>
</body>
</html>`

// handleStartReady opens the receiver (STANDBY -> READY)
func (s *Server) handleStartReady(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	if err := r.ParseForm(); err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, "Failed to parse form", "operation", "start_ready")
		return
	}

	name := r.FormValue("name")
	if name == "" {
		s.sendErrorResponse(w, http.StatusBadRequest, "Capture name is required", "operation", "start_ready")
		return
	}

	if err := s.svc().StartReady(name); err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to start ready: %v", err),
			"name", name, "operation", "start_ready")
		return
	}

	sendJSON(w, map[string]interface{}{
		"success": true,
		"message": "Ready state activated",
		"name":    name,
	})
}

// handleStartCapture starts reading timings (READY -> RECORDING)
func (s *Server) handleStartCapture(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	if err := s.svc().StartCapture(); err != nil {
		s.sendErrorResponse(w, http.StatusConflict,
			fmt.Sprintf("Failed to start capture: %v", err),
			"operation", "start_capture")
		return
	}

	sendJSON(w, map[string]interface{}{
		"success": true,
		"message": "Capture started",
	})
}

// handleCancelReady cancels READY state (READY -> STANDBY)
func (s *Server) handleCancelReady(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	if err := s.svc().CancelReady(); err != nil {
		s.sendErrorResponse(w, http.StatusConflict,
			fmt.Sprintf("Failed to cancel ready: %v", err),
			"operation", "cancel_ready")
		return
	}

	sendJSON(w, map[string]interface{}{
		"success": true,
		"message": "Ready state cancelled",
	})
}

// handleStopCapture stops the capture and decodes the trace it wrote
func (s *Server) handleStopCapture(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	svc := s.svc()
	if err := svc.StopCapture(); err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to stop capture: %v", err),
			"operation", "stop_capture")
		return
	}

	response := map[string]interface{}{
		"success": true,
		"message": "Capture stopped",
	}

	if _, session := svc.GetCaptureStatus(); session != nil {
		response["output_file"] = session.OutputFile
		response["durations"] = session.Durations

		res, err := svc.DecodeFile(session.OutputFile)
		if err != nil {
			response["decode_error"] = err.Error()
			slog.Warn("Captured trace did not decode", "file", session.OutputFile, "error", err)
		} else {
			response["decoded"] = newDecodeResponse(session.Name, res)
		}
	}

	sendJSON(w, response)
}

// handleStatus returns the current status and session info
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	svc := s.svc()
	status, session := svc.GetCaptureStatus()

	s.mu.RLock()
	activeProfile := s.activeProfile
	s.mu.RUnlock()

	sendJSON(w, StatusResponse{
		Status:        string(status),
		Message:       s.generateStatusMessage(svc, status, session),
		Session:       session,
		Config:        resolvedConfigInfo(svc.GetConfig()),
		ActiveProfile: activeProfile,
	})
}

// handleSources lists serial ports and whether the configured one is present
func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	svc := s.svc()
	sources, err := svc.ListSources()
	if err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError, err.Error(), "operation", "list_sources")
		return
	}
	if sources == nil {
		sources = []string{}
	}

	configured := svc.GetConfig().Capture.Port
	available := false
	for _, src := range sources {
		if src == configured {
			available = true
			break
		}
	}

	sendJSON(w, SourcesResponse{Sources: sources, Configured: configured, Available: available})
}

// handleProfiles returns available configuration profiles
func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	profiles := []string{}
	if s.configFile != "" {
		if names, _, err := config.ListProfiles(s.configFile); err == nil {
			profiles = names
		} else {
			slog.Debug("Failed to read profiles", "config_file", s.configFile, "error", err)
		}
	}

	s.mu.RLock()
	active := s.activeProfile
	s.mu.RUnlock()

	sendJSON(w, map[string]interface{}{
		"profiles":       profiles,
		"active_profile": active,
	})
}

// handleSelectProfile switches the active profile and saves the choice
func (s *Server) handleSelectProfile(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	if err := r.ParseForm(); err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, "Failed to parse form", "operation", "profile_selection")
		return
	}
	profile := r.FormValue("profile")
	if profile == "" {
		s.sendErrorResponse(w, http.StatusBadRequest, "Profile is required", "operation", "profile_selection")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Switching profiles would drop an open serial port
	if status, _ := s.service.GetCaptureStatus(); status == service.StatusReady || status == service.StatusRecording {
		s.sendErrorResponse(w, http.StatusConflict,
			fmt.Sprintf("Cannot change profile while capture is %s", status),
			"profile", profile, "operation", "profile_selection")
		return
	}

	if err := s.service.LoadProfile(profile); err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, err.Error(), "profile", profile, "operation", "profile_selection")
		return
	}
	if err := config.UpdateActiveConfig(s.configFile, profile); err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to save profile selection to config file: %v", err),
			"profile", profile, "operation", "profile_selection")
		return
	}
	s.activeProfile = profile

	slog.Info("Profile changed", "profile", profile)

	sendJSON(w, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("Profile changed to %s", profile),
		"profile": profile,
	})
}

func resolvedConfigInfo(cfg *config.Config) *ResolvedConfigInfo {
	info := &ResolvedConfigInfo{
		TimingRef:     cfg.TimingRef,
		Timing:        cfg.Timing,
		AmbiguousBits: cfg.AmbiguousBits,
		CapturesDir:   cfg.Input.CapturesDir,
		HeaderFile:    cfg.Output.HeaderFile,
		CatalogPath:   cfg.Catalog.Path,
		Port:          cfg.Capture.Port,
		BaudRate:      cfg.Capture.BaudRate,
		Inheritance:   "profile-specific",
	}
	if cfg.Inheritance != nil && cfg.Inheritance.Timing != "" {
		info.Inheritance = cfg.Inheritance.Timing
	}
	return info
}

func getActiveProfileName(configFile string) string {
	if configFile == "" {
		return "default"
	}
	if _, err := os.Stat(configFile); err != nil {
		return "default"
	}
	_, active, err := config.ListProfiles(configFile)
	if err != nil {
		return "default"
	}
	return active
}

// generateStatusMessage creates appropriate status messages based on current state
func (s *Server) generateStatusMessage(svc service.Service, status service.CaptureStatus, session *service.CaptureSession) string {
	switch status {
	case service.StatusReady:
		return "Receiver port open - start the capture, then press the remote button"
	case service.StatusRecording:
		if session != nil {
			return fmt.Sprintf("Capturing %s - %d durations received", session.Name, session.Durations)
		}
		return "Capture in progress"
	case service.StatusError:
		if errorDetails := svc.GetLastError(); errorDetails != "" {
			return errorDetails
		}
		return "An error occurred during the operation"
	default:
		return ""
	}
}

// errorStatus maps decode and catalog errors to HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrCatalogDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, decode.ErrTraceTooShort), errors.Is(err, decode.ErrAmbiguousBit):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusMethodNotAllowed)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   "Method not allowed",
	})
	return false
}

func sendJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// sendErrorResponse logs the error and sends a JSON error response to the client
func (s *Server) sendErrorResponse(w http.ResponseWriter, statusCode int, errorMsg string, logContext ...interface{}) {
	logFields := []interface{}{"error_message", errorMsg, "status_code", statusCode}
	if len(logContext) > 0 {
		logFields = append(logFields, logContext...)
	}
	slog.Error("Sending error response to client", logFields...)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   errorMsg,
	})
}

func getLocalIP() string {
	// Try to connect to a remote address to determine local IP
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "localhost"
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String()
}
