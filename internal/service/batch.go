package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/audiolibrelab/irdecode/internal/export"
)

// BatchOptions controls a batch run over a captures directory.
type BatchOptions struct {
	// Dir defaults to the profile's captures directory.
	Dir string
	// Fresh truncates the header before the first export.
	Fresh bool
	// Store also saves every decoded command in the catalog.
	Store bool
}

// BatchItem is the outcome for one capture file.
type BatchItem struct {
	File          string   `json:"file"`
	Name          string   `json:"name,omitempty"`
	Hex           string   `json:"hex,omitempty"`
	Summary       string   `json:"summary,omitempty"`
	ChecksumValid bool     `json:"checksum_valid"`
	Diagnostics   []string `json:"diagnostics,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// BatchReport summarizes a batch run.
type BatchReport struct {
	RunID    uuid.UUID   `json:"run_id"`
	Dir      string      `json:"dir"`
	Header   string      `json:"header"`
	Started  time.Time   `json:"started"`
	Finished time.Time   `json:"finished"`
	Items    []BatchItem `json:"items"`
	Exported int         `json:"exported"`
	Failed   int         `json:"failed"`
}

// RunBatch decodes every .csv and .txt file in the directory in name order
// and exports each under a name suggested from its file name and contents.
// A file that fails is recorded in the report and the run continues.
func (s *IRDecodeService) RunBatch(ctx context.Context, opts BatchOptions) (*BatchReport, error) {
	dir := opts.Dir
	if dir == "" {
		dir = s.cfg.Input.CapturesDir
	}

	files, err := traceFiles(dir)
	if err != nil {
		return nil, err
	}

	report := &BatchReport{
		RunID:   uuid.New(),
		Dir:     dir,
		Header:  s.header.Path(),
		Started: time.Now(),
	}
	log := slog.With("run_id", report.RunID)
	log.Info("Batch started", "dir", dir, "files", len(files), "fresh", opts.Fresh)

	if opts.Fresh {
		if err := s.header.Reset(); err != nil {
			return nil, err
		}
	}

	used := make(map[string]int)
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		item := BatchItem{File: file}
		res, err := s.DecodeFile(file)
		if err != nil {
			log.Warn("Skipping capture", "file", file, "error", err)
			item.Error = err.Error()
			report.Items = append(report.Items, item)
			report.Failed++
			continue
		}

		name := export.SuggestName(res.Bytes, file)
		if n := used[name]; n > 0 {
			used[name] = n + 1
			name = fmt.Sprintf("%s_%d", name, n+1)
		} else {
			used[name] = 1
		}

		item.Name = name
		item.Hex = res.Bytes.Hex()
		if res.Command != nil {
			item.Summary = res.Command.Summary()
			item.ChecksumValid = res.Command.ChecksumValid
		}
		for _, d := range res.Diagnostics {
			item.Diagnostics = append(item.Diagnostics, d.String())
		}

		if _, err := s.Export(name, res); err != nil {
			item.Error = err.Error()
			report.Items = append(report.Items, item)
			report.Failed++
			continue
		}
		report.Exported++

		if opts.Store {
			if _, err := s.Store(ctx, name, file, res); err != nil {
				item.Error = err.Error()
			}
		}
		report.Items = append(report.Items, item)
	}

	report.Finished = time.Now()
	log.Info("Batch finished", "exported", report.Exported, "failed", report.Failed,
		"elapsed", report.Finished.Sub(report.Started))
	return report, nil
}
