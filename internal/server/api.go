package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/audiolibrelab/irdecode/internal/catalog"
	"github.com/audiolibrelab/irdecode/internal/decode"
	"github.com/audiolibrelab/irdecode/internal/export"
	"github.com/audiolibrelab/irdecode/internal/service"
	"github.com/audiolibrelab/irdecode/internal/trace"
)

// maxUploadSize bounds trace uploads; a Saleae export of one frame is a few KB.
const maxUploadSize = 8 << 20

// CommandInfo is the JSON view of a decoded command
type CommandInfo struct {
	Power            string `json:"power"`
	Mode             string `json:"mode"`
	Temperature      string `json:"temperature"`
	Fan              string `json:"fan"`
	Swing            string `json:"swing"`
	Checksum         string `json:"checksum"`
	ExpectedChecksum string `json:"expected_checksum"`
	ChecksumValid    bool   `json:"checksum_valid"`
	Summary          string `json:"summary"`
}

// DecodeResponse is returned by POST /api/decode
type DecodeResponse struct {
	Success     bool            `json:"success"`
	Name        string          `json:"name"`
	Offset      int             `json:"offset"`
	Leader      decode.Leader   `json:"leader"`
	LeaderValid bool            `json:"leader_valid"`
	Bits        string          `json:"bits"`
	Bytes       string          `json:"bytes"`
	Command     *CommandInfo    `json:"command,omitempty"`
	Diagnostics []string        `json:"diagnostics,omitempty"`
	Exported    string          `json:"exported,omitempty"`
	Stored      *catalog.Record `json:"stored,omitempty"`
}

func newDecodeResponse(name string, res *decode.Result) DecodeResponse {
	resp := DecodeResponse{
		Success:     true,
		Name:        name,
		Offset:      res.Offset,
		Leader:      res.Leader,
		LeaderValid: res.LeaderValid,
		Bits:        string(res.Bits),
		Bytes:       res.Bytes.Hex(),
	}
	if c := res.Command; c != nil {
		resp.Command = &CommandInfo{
			Power:            c.Power.String(),
			Mode:             c.Mode.String(),
			Temperature:      c.Temperature.String(),
			Fan:              c.Fan.String(),
			Swing:            c.Swing.String(),
			Checksum:         fmt.Sprintf("0x%02X", c.Checksum),
			ExpectedChecksum: fmt.Sprintf("0x%02X", c.ExpectedChecksum),
			ChecksumValid:    c.ChecksumValid,
			Summary:          c.Summary(),
		}
	}
	for _, d := range res.Diagnostics {
		resp.Diagnostics = append(resp.Diagnostics, d.String())
	}
	return resp
}

// handleDecode decodes a trace sent as a multipart "trace" file or as the
// raw request body. The "filename" parameter picks the parser for raw
// bodies; "export" and "store" also write the command out.
func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	filename, data, err := readTrace(r)
	if err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, err.Error(), "operation", "decode_upload")
		return
	}

	svc := s.svc()
	res, err := svc.DecodeBytes(filename, data)
	if err != nil {
		status := errorStatus(err)
		if errors.Is(err, trace.ErrUnrecognizedFormat) {
			status = http.StatusBadRequest
		}
		s.sendErrorResponse(w, status, err.Error(), "file", filename, "operation", "decode")
		return
	}

	name := r.FormValue("name")
	if name == "" {
		name = export.SuggestName(res.Bytes, filename)
	}
	resp := newDecodeResponse(export.SanitizeName(name), res)

	if formBool(r, "export") {
		exported, err := svc.Export(name, res)
		if err != nil {
			s.sendErrorResponse(w, http.StatusInternalServerError, err.Error(), "name", name, "operation", "export")
			return
		}
		resp.Exported = exported
	}
	if formBool(r, "store") {
		rec, err := svc.Store(r.Context(), name, filename, res)
		if err != nil {
			s.sendErrorResponse(w, errorStatus(err), err.Error(), "name", name, "operation", "store")
			return
		}
		resp.Stored = &rec
	}

	sendJSON(w, resp)
}

func readTrace(r *http.Request) (string, []byte, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			return "", nil, fmt.Errorf("failed to parse upload: %w", err)
		}
		file, header, err := r.FormFile("trace")
		if err != nil {
			return "", nil, fmt.Errorf("missing 'trace' file field: %w", err)
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return "", nil, fmt.Errorf("failed to read upload: %w", err)
		}
		return header.Filename, data, nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read request body: %w", err)
	}
	if len(data) == 0 {
		return "", nil, fmt.Errorf("empty request body")
	}
	filename := r.URL.Query().Get("filename")
	if filename == "" {
		filename = "upload.txt"
	}
	return filename, data, nil
}

func formBool(r *http.Request, key string) bool {
	v, err := strconv.ParseBool(r.FormValue(key))
	return err == nil && v
}

// handleBatch decodes every capture in the captures directory
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	opts := service.BatchOptions{
		Fresh: formBool(r, "fresh"),
		Store: formBool(r, "store"),
	}
	report, err := s.svc().RunBatch(r.Context(), opts)
	if err != nil {
		s.sendErrorResponse(w, errorStatus(err), err.Error(), "operation", "batch")
		return
	}

	sendJSON(w, report)
}

// handleCaptures lists the capture files
func (s *Server) handleCaptures(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	svc := s.svc()
	files, err := svc.ListCaptures()
	if err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError, err.Error(), "operation", "list_captures")
		return
	}
	if files == nil {
		files = []service.CaptureFileInfo{}
	}

	sendJSON(w, map[string]interface{}{
		"files":        files,
		"total_count":  len(files),
		"captures_dir": svc.GetConfig().Input.CapturesDir,
	})
}

// handleCommands lists the catalog
func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	records, err := s.svc().ListCommands(r.Context())
	if err != nil {
		s.sendErrorResponse(w, errorStatus(err), err.Error(), "operation", "list_commands")
		return
	}
	if records == nil {
		records = []catalog.Record{}
	}

	sendJSON(w, map[string]interface{}{
		"commands":    records,
		"total_count": len(records),
	})
}

// handleCommand returns one catalog entry
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/api/commands/")
	if name == "" || strings.Contains(name, "/") {
		s.sendErrorResponse(w, http.StatusBadRequest, "Command name is required", "operation", "get_command")
		return
	}

	rec, err := s.svc().GetCommand(r.Context(), name)
	if err != nil {
		status := errorStatus(err)
		if errors.Is(err, catalog.ErrNotFound) {
			status = http.StatusNotFound
		}
		s.sendErrorResponse(w, status, err.Error(), "name", name, "operation", "get_command")
		return
	}

	sendJSON(w, rec)
}
