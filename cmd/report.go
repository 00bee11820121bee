package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/audiolibrelab/irdecode/internal/catalog"
	"github.com/audiolibrelab/irdecode/internal/decode"
	"github.com/audiolibrelab/irdecode/internal/service"

	"github.com/fatih/color"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	warnf  = color.New(color.FgYellow).SprintfFunc()
	titlef = color.New(color.Bold).SprintfFunc()
)

func okMark() string   { return green("✓") }
func failMark() string { return red("✗") }

func mark(ok bool) string {
	if ok {
		return okMark()
	}
	return failMark()
}

// printResult writes the human readable analysis of one decoded trace.
func printResult(w io.Writer, source string, res *decode.Result, showBits bool) {
	fmt.Fprintln(w, titlef("=== %s ===", source))
	fmt.Fprintf(w, "signal: %d durations from offset %d\n", len(res.Signal), res.Offset)
	fmt.Fprintf(w, "leader: %dus / %dus %s\n", res.Leader.Pulse, res.Leader.Space, mark(res.LeaderValid))
	fmt.Fprintf(w, "bits:   %d\n", len(res.Bits))

	if showBits {
		printBitBreakdown(w, res.Bytes)
	}

	fmt.Fprintf(w, "bytes:  %s\n", res.Bytes.Hex())

	if cmd := res.Command; cmd != nil {
		fmt.Fprintf(w, "\n[Command]\n")
		fmt.Fprintf(w, "power:       %s\n", cmd.Power)
		fmt.Fprintf(w, "mode:        %s\n", cmd.Mode)
		fmt.Fprintf(w, "temperature: %s\n", cmd.Temperature)
		fmt.Fprintf(w, "fan:         %s\n", cmd.Fan)
		fmt.Fprintf(w, "swing:       %s\n", cmd.Swing)
		fmt.Fprintf(w, "checksum:    0x%02X (expected 0x%02X) %s\n", cmd.Checksum, cmd.ExpectedChecksum, mark(cmd.ChecksumValid))
	}

	if len(res.Diagnostics) > 0 {
		fmt.Fprintf(w, "\n[Diagnostics]\n")
		for _, d := range res.Diagnostics {
			fmt.Fprintln(w, warnf("  %s", d))
		}
	}
}

// printBitBreakdown shows each byte with its bits in transmission order.
func printBitBreakdown(w io.Writer, b decode.CommandBytes) {
	fmt.Fprintf(w, "\n[Bits]\n")
	for i, v := range b {
		fmt.Fprintf(w, "  byte %d: %08b  0x%02X\n", i, v, v)
	}
	fmt.Fprintln(w)
}

func printExported(w io.Writer, name, header string) {
	fmt.Fprintf(w, "\n%s exported %s to %s\n", okMark(), name, header)
}

func printStored(w io.Writer, rec catalog.Record) {
	fmt.Fprintf(w, "%s stored %s (%s)\n", okMark(), rec.Name, rec.ID)
}

func printBatchReport(w io.Writer, report *service.BatchReport) {
	fmt.Fprintln(w, titlef("=== BATCH %s ===", report.RunID))
	fmt.Fprintf(w, "directory: %s\n", report.Dir)
	fmt.Fprintf(w, "header:    %s\n\n", report.Header)

	for _, item := range report.Items {
		if item.Error != "" {
			fmt.Fprintf(w, "%s %s: %s\n", failMark(), item.File, item.Error)
			continue
		}
		fmt.Fprintf(w, "%s %s -> %s\n", mark(item.ChecksumValid), item.File, item.Name)
		fmt.Fprintf(w, "    %s\n", item.Hex)
		if item.Summary != "" {
			fmt.Fprintf(w, "    %s\n", item.Summary)
		}
		if len(item.Diagnostics) > 0 {
			fmt.Fprintln(w, warnf("    %s", strings.Join(item.Diagnostics, "; ")))
		}
	}

	fmt.Fprintf(w, "\nexported: %d, failed: %d, took %s\n",
		report.Exported, report.Failed, report.Finished.Sub(report.Started).Round(time.Millisecond))
}
