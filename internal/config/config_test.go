package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/audiolibrelab/irdecode/internal/decode"
	"github.com/audiolibrelab/irdecode/internal/trace"
)

func TestMergeConfigs_SelectionAndFallback(t *testing.T) {
	base := Default()
	base.Catalog.Path = "~/ir/catalog.db"

	wide := decode.DefaultTiming()
	wide.LongPulse = decode.Range{Min: 1450, Max: 1750}

	profile := &Config{
		TimingRef: "wide",
		Timing:    wide,
		Input:     InputConfig{Unit: "us"},
		Capture:   CaptureConfig{Port: "/dev/ttyACM0"},
	}

	result := mergeConfigs(base, profile)

	if result.TimingRef != "wide" || result.Timing.LongPulse.Max != 1750 {
		t.Errorf("Expected wide timing, got %s %+v", result.TimingRef, result.Timing.LongPulse)
	}
	if result.Inheritance.Timing != "profile-specific" {
		t.Errorf("Expected timing to be profile-specific, got %s", result.Inheritance.Timing)
	}

	if result.Input.Unit != "us" || result.Inheritance.Input.Unit != "profile-specific" {
		t.Errorf("Expected profile unit 'us', got %s (%s)", result.Input.Unit, result.Inheritance.Input.Unit)
	}
	if result.Input.CapturesDir != "ir_captures" || result.Inheritance.Input.CapturesDir != "inherited" {
		t.Errorf("Expected inherited captures dir, got %s (%s)", result.Input.CapturesDir, result.Inheritance.Input.CapturesDir)
	}

	if result.Capture.Port != "/dev/ttyACM0" {
		t.Errorf("Expected capture port override, got %s", result.Capture.Port)
	}
	if result.Capture.BaudRate != 115200 || result.Inheritance.Capture.BaudRate != "inherited" {
		t.Errorf("Expected inherited baud rate 115200, got %d (%s)", result.Capture.BaudRate, result.Inheritance.Capture.BaudRate)
	}

	if result.Catalog.Path != "~/ir/catalog.db" {
		t.Errorf("Expected inherited catalog path, got %s", result.Catalog.Path)
	}
	if result.AmbiguousBits != "assume_zero" || result.Inheritance.AmbiguousBits != "inherited" {
		t.Errorf("Expected inherited policy, got %s (%s)", result.AmbiguousBits, result.Inheritance.AmbiguousBits)
	}
}

func TestMergeConfigs_EmptyProfile(t *testing.T) {
	result := mergeConfigs(Default(), &Config{})

	if result.Timing != decode.DefaultTiming() {
		t.Errorf("Expected default timing, got %+v", result.Timing)
	}
	if result.Output.HeaderFile != "midea_commands.h" {
		t.Errorf("Expected default header file, got %s", result.Output.HeaderFile)
	}
	if result.Inheritance.Output.HeaderFile != "inherited" {
		t.Errorf("Expected header file to be inherited, got %s", result.Inheritance.Output.HeaderFile)
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()

	if got := expandPath("~/ir/commands.h"); got != filepath.Join(home, "ir/commands.h") {
		t.Errorf("Expected expanded path, got %s", got)
	}
	if got := expandPath("/tmp/commands.h"); got != "/tmp/commands.h" {
		t.Errorf("Expected unchanged absolute path, got %s", got)
	}
	if got := expandPath("commands.h"); got != "commands.h" {
		t.Errorf("Expected unchanged relative path, got %s", got)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	dec, err := cfg.Decoder()
	if err != nil {
		t.Fatalf("Decoder() failed: %v", err)
	}
	if dec.Policy != decode.AssumeZero {
		t.Errorf("Expected AssumeZero policy, got %s", dec.Policy)
	}
	if dec.Timing != decode.DefaultTiming() {
		t.Errorf("Expected default timing, got %+v", dec.Timing)
	}

	opts, err := cfg.TraceOptions()
	if err != nil {
		t.Fatalf("TraceOptions() failed: %v", err)
	}
	if opts.Unit != trace.UnitAuto {
		t.Errorf("Expected auto unit, got %s", opts.Unit)
	}

	// Default must hand out copies
	cfg.Output.HeaderFile = "changed.h"
	if Default().Output.HeaderFile != "midea_commands.h" {
		t.Errorf("Default() returned shared state")
	}
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "irdecode.yaml")

	cfg, err := LoadOrDefault(missing, "", false)
	if err != nil {
		t.Fatalf("Expected defaults for missing implicit config, got error: %v", err)
	}
	if cfg.TimingRef != "midea" {
		t.Errorf("Expected built-in midea timing, got %s", cfg.TimingRef)
	}

	if _, err := LoadOrDefault(missing, "", true); err == nil {
		t.Errorf("Expected error for missing explicit config")
	}

	if _, err := LoadOrDefault(missing, "bench", false); err == nil {
		t.Errorf("Expected error for a named profile without a config file")
	}
}

const profilesConfig = `
active_config: bench
globals:
  output:
    catalog_path: /var/lib/irdecode/catalog.db
definitions:
  timings:
    - id: midea
      leader_pulse: {min: 4000, max: 5000}
      leader_space: {min: 4000, max: 5000}
      short_pulse: {min: 400, max: 700}
      short_space: {min: 400, max: 700}
      long_pulse: {min: 1550, max: 1650}
      min_leader: 4000
    - id: tsop-slow
      description: receiver with slow fall time
      leader_pulse: {min: 3800, max: 5200}
      leader_space: {min: 3800, max: 5200}
      short_pulse: {min: 350, max: 800}
      short_space: {min: 350, max: 800}
      long_pulse: {min: 1450, max: 1750}
configs:
  default:
    timing:
      ref: midea
    input:
      captures_dir: captures
    output:
      header_file: default.h
  bench:
    timing:
      ref: tsop-slow
      long_pulse: {min: 1400, max: 1800}
    ambiguous_bits: reject
    capture:
      port: /dev/ttyACM0
`

func TestLoadWithProfile_Inheritance(t *testing.T) {
	configFile := createTempConfig(t, profilesConfig)
	defer os.Remove(configFile)

	cfg, err := LoadWithProfile(configFile, "")
	if err != nil {
		t.Fatalf("LoadWithProfile failed: %v", err)
	}

	if cfg.TimingRef != "tsop-slow" {
		t.Errorf("Expected active profile timing tsop-slow, got %s", cfg.TimingRef)
	}
	if cfg.Timing.LongPulse != (decode.Range{Min: 1400, Max: 1800}) {
		t.Errorf("Expected long pulse override, got %+v", cfg.Timing.LongPulse)
	}
	if cfg.Timing.MinLeader != 3800 {
		t.Errorf("Expected min leader to follow leader pulse min, got %d", cfg.Timing.MinLeader)
	}
	if cfg.AmbiguousBits != "reject" {
		t.Errorf("Expected reject policy, got %s", cfg.AmbiguousBits)
	}
	if cfg.Input.CapturesDir != "captures" || cfg.Inheritance.Input.CapturesDir != "inherited" {
		t.Errorf("Expected captures dir inherited from default profile, got %s (%s)", cfg.Input.CapturesDir, cfg.Inheritance.Input.CapturesDir)
	}
	if cfg.Output.HeaderFile != "default.h" {
		t.Errorf("Expected header file from default profile, got %s", cfg.Output.HeaderFile)
	}
	if cfg.Catalog.Path != "/var/lib/irdecode/catalog.db" {
		t.Errorf("Expected global catalog path, got %s", cfg.Catalog.Path)
	}
	if cfg.Capture.BaudRate != 115200 {
		t.Errorf("Expected built-in baud rate, got %d", cfg.Capture.BaudRate)
	}

	def, err := LoadWithProfile(configFile, "default")
	if err != nil {
		t.Fatalf("LoadWithProfile(default) failed: %v", err)
	}
	if def.TimingRef != "midea" || def.AmbiguousBits != "assume_zero" {
		t.Errorf("Expected midea/assume_zero for default profile, got %s/%s", def.TimingRef, def.AmbiguousBits)
	}

	if _, err := LoadWithProfile(configFile, "missing"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("Expected not found error, got %v", err)
	}
}

func TestListProfilesAndUpdateActive(t *testing.T) {
	configFile := createTempConfig(t, profilesConfig)
	defer os.Remove(configFile)

	names, active, err := ListProfiles(configFile)
	if err != nil {
		t.Fatalf("ListProfiles failed: %v", err)
	}
	if len(names) != 2 || names[0] != "bench" || names[1] != "default" {
		t.Errorf("Expected [bench default], got %v", names)
	}
	if active != "bench" {
		t.Errorf("Expected active bench, got %s", active)
	}

	if err := UpdateActiveConfig(configFile, "default"); err != nil {
		t.Fatalf("UpdateActiveConfig failed: %v", err)
	}
	_, active, err = ListProfiles(configFile)
	if err != nil {
		t.Fatalf("ListProfiles failed: %v", err)
	}
	if active != "default" {
		t.Errorf("Expected active default after update, got %s", active)
	}

	if err := UpdateActiveConfig(configFile, "nope"); err == nil {
		t.Errorf("Expected error for unknown profile")
	}
}
