package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/audiolibrelab/irdecode/internal/config"
	"github.com/audiolibrelab/irdecode/internal/decode"
	"github.com/audiolibrelab/irdecode/internal/export"
	"github.com/audiolibrelab/irdecode/internal/service"
	"github.com/audiolibrelab/irdecode/internal/trace"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

func TestPrintResult(t *testing.T) {
	b := decode.CommandBytes{0xA1, 0x82, 0x48, 0xFF, 0xFF, 0x00}.WithChecksum()
	cmd, err := decode.DecodeCommand(b)
	require.NoError(t, err)

	res := &decode.Result{
		Offset:      3,
		Signal:      make([]int, 100),
		Leader:      decode.Leader{Pulse: 4400, Space: 4300},
		LeaderValid: true,
		Bits:        b.Bits(),
		Bytes:       b,
		Command:     &cmd,
		Diagnostics: []decode.Diagnostic{{Kind: decode.DiagAmbiguousBits, Message: "2 ambiguous bits"}},
	}

	var buf bytes.Buffer
	printResult(&buf, "power_on.csv", res, true)
	out := buf.String()

	assert.Contains(t, out, "=== power_on.csv ===")
	assert.Contains(t, out, "leader: 4400us / 4300us ✓")
	assert.Contains(t, out, "byte 0: 10100001  0xA1")
	assert.Contains(t, out, "bytes:  "+b.Hex())
	assert.Contains(t, out, "power:       On")
	assert.Contains(t, out, "mode:        Heat")
	assert.Contains(t, out, "ambiguous_bits: 2 ambiguous bits")
	assert.Regexp(t, `checksum:\s+0x[0-9A-F]{2} \(expected 0x[0-9A-F]{2}\) ✓`, out)
}

func TestPrintResult_NoCommand(t *testing.T) {
	res := &decode.Result{
		Leader: decode.Leader{Pulse: 3000, Space: 4400},
		Bytes:  decode.CommandBytes{0xA1},
	}

	var buf bytes.Buffer
	printResult(&buf, "short.txt", res, false)
	out := buf.String()

	assert.Contains(t, out, "leader: 3000us / 4400us ✗")
	assert.NotContains(t, out, "[Command]")
	assert.NotContains(t, out, "[Bits]")
}

func TestPrintBatchReport(t *testing.T) {
	started := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	report := &service.BatchReport{
		Dir:      "ir_captures",
		Header:   "midea_commands.h",
		Started:  started,
		Finished: started.Add(1500 * time.Millisecond),
		Items: []service.BatchItem{
			{File: "cool_24.txt", Name: "cool_24", Hex: "0xA1", Summary: "Power On", ChecksumValid: true},
			{File: "noise.txt", Error: "trace too short"},
		},
		Exported: 1,
		Failed:   1,
	}

	var buf bytes.Buffer
	printBatchReport(&buf, report)
	out := buf.String()

	assert.Contains(t, out, "✓ cool_24.txt -> cool_24")
	assert.Contains(t, out, "✗ noise.txt: trace too short")
	assert.Contains(t, out, "exported: 1, failed: 1, took 1.5s")
}

func TestResolveName(t *testing.T) {
	b := decode.CommandBytes{0xA1, 0x82, 0x48, 0xFF, 0xFF, 0x00}.WithChecksum()
	res := &decode.Result{Bytes: b}

	t.Cleanup(func() { commandName = "" })

	commandName = "Living Room-Off"
	name, err := resolveName("capture1.txt", res)
	require.NoError(t, err)
	assert.Equal(t, "Living_Room_Off", name)

	commandName = "%%%"
	_, err = resolveName("capture1.txt", res)
	assert.Error(t, err)

	commandName = ""
	name, err = resolveName("cool_24.txt", res)
	require.NoError(t, err)
	assert.Equal(t, "cool_24", name)
}

func TestExportAndStore_ReportsHeaderPath(t *testing.T) {
	dir := t.TempDir()
	testCfg := config.Default()
	testCfg.Output.HeaderFile = filepath.Join(dir, "midea_commands.h")
	testCfg.Catalog.Path = filepath.Join(dir, "catalog.db")

	svc := service.New(testCfg, "", nil)
	t.Cleanup(func() { svc.Close() })

	raw := decode.CommandBytes{0xA1, 0x82, 0x42, 0x12, 0x00, 0x73}
	d := trace.Durations{4420, 4380}
	for _, c := range raw.Bits() {
		if c == '1' {
			d = append(d, 1600, 560)
		} else {
			d = append(d, 560, 560)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, trace.WriteText(&buf, d, ""))
	res, err := svc.DecodeBytes("heat.txt", buf.Bytes())
	require.NoError(t, err)

	t.Cleanup(func() { noExport, storeResult = false, false })
	noExport, storeResult = false, true

	var out bytes.Buffer
	require.NoError(t, exportAndStore(context.Background(), &out, svc, "heat_19", "heat.txt", res))

	assert.Contains(t, out.String(), "exported heat_19 to "+testCfg.Output.HeaderFile)
	assert.NotContains(t, out.String(), "to heat_19")
	assert.Contains(t, out.String(), "stored heat_19")

	names, err := export.NewHeader(testCfg.Output.HeaderFile).Names()
	require.NoError(t, err)
	assert.Equal(t, []string{"heat_19"}, names)
}
