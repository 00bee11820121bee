package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/audiolibrelab/irdecode/internal/catalog"
	"github.com/audiolibrelab/irdecode/internal/decode"
	"github.com/audiolibrelab/irdecode/internal/export"
)

// Pipeline steps
const (
	StepCapture = 'c'
	StepDecode  = 'd'
	StepExport  = 'e'
	StepStore   = 's'
)

// ValidSteps lists the pipeline steps in the order they are documented.
const ValidSteps = "c=capture, d=decode, e=export, s=store"

// ValidateSteps checks a pipeline string such as "cde".
func ValidateSteps(steps string) error {
	if steps == "" {
		return fmt.Errorf("no pipeline specified, use -p flag (e.g., -p cde)")
	}
	for _, step := range strings.ToLower(steps) {
		switch step {
		case StepCapture, StepDecode, StepExport, StepStore:
		default:
			return fmt.Errorf("invalid pipeline step: '%c' (valid: %s)", step, ValidSteps)
		}
	}
	return nil
}

// PipelineResult collects what each step produced.
type PipelineResult struct {
	Name     string
	Trace    string
	Result   *decode.Result
	Exported string
	Record   *catalog.Record
}

// RunPipeline executes a sequence of steps on the named capture. The capture
// step records until stop is closed; decode reads the trace the capture step
// writes, so the steps also work on a trace captured earlier.
func (s *IRDecodeService) RunPipeline(ctx context.Context, name, steps string, stop <-chan struct{}) (*PipelineResult, error) {
	if err := ValidateSteps(steps); err != nil {
		return nil, err
	}

	clean := export.SanitizeName(name)
	if clean == "" {
		return nil, fmt.Errorf("command name is required")
	}
	out := &PipelineResult{
		Name:  clean,
		Trace: filepath.Join(s.cfg.Input.CapturesDir, clean+".txt"),
	}

	for _, step := range strings.ToLower(steps) {
		switch step {
		case StepCapture:
			if err := s.captureUntil(ctx, name, stop); err != nil {
				return out, fmt.Errorf("pipeline capture failed: %w", err)
			}
		case StepDecode:
			res, err := s.DecodeFile(out.Trace)
			if err != nil {
				return out, fmt.Errorf("pipeline decode failed: %w", err)
			}
			out.Result = res
		case StepExport:
			if out.Result == nil {
				return out, fmt.Errorf("pipeline export failed: step 'e' needs a decode step first")
			}
			exported, err := s.Export(name, out.Result)
			if err != nil {
				return out, fmt.Errorf("pipeline export failed: %w", err)
			}
			out.Exported = exported
		case StepStore:
			if out.Result == nil {
				return out, fmt.Errorf("pipeline store failed: step 's' needs a decode step first")
			}
			rec, err := s.Store(ctx, name, out.Trace, out.Result)
			if err != nil {
				return out, fmt.Errorf("pipeline store failed: %w", err)
			}
			out.Record = &rec
		}
	}
	return out, nil
}

func (s *IRDecodeService) captureUntil(ctx context.Context, name string, stop <-chan struct{}) error {
	if err := s.StartReady(name); err != nil {
		return err
	}
	if err := s.StartCapture(); err != nil {
		s.recorder.Cleanup()
		return err
	}

	select {
	case <-stop:
		return s.StopCapture()
	case <-ctx.Done():
		s.recorder.Cleanup()
		return ctx.Err()
	}
}
