package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"github.com/audiolibrelab/irdecode/internal/decode"
	"github.com/audiolibrelab/irdecode/internal/trace"
)

const (
	inherited       = "inherited"
	profileSpecific = "profile-specific"
)

type DefinitionsConfig struct {
	Timings []TimingDefinition `mapstructure:"timings" yaml:"timings"`
}

// TimingDefinition is a named set of receiver thresholds that profiles
// reference by ID.
type TimingDefinition struct {
	ID            string `mapstructure:"id" yaml:"id"`
	Description   string `mapstructure:"description,omitempty" yaml:"description,omitempty"`
	decode.Timing `mapstructure:",squash" yaml:",inline"`
}

// TimingReference selects a definition and optionally overrides single windows.
type TimingReference struct {
	Ref        string        `mapstructure:"ref" yaml:"ref"`
	ShortPulse *decode.Range `mapstructure:"short_pulse,omitempty" yaml:"short_pulse,omitempty"`
	ShortSpace *decode.Range `mapstructure:"short_space,omitempty" yaml:"short_space,omitempty"`
	LongPulse  *decode.Range `mapstructure:"long_pulse,omitempty" yaml:"long_pulse,omitempty"`
	MinLeader  *int          `mapstructure:"min_leader,omitempty" yaml:"min_leader,omitempty"`
}

type GlobalsConfig struct {
	Output GlobalOutputConfig `mapstructure:"output" yaml:"output"`
}

type GlobalOutputConfig struct {
	HeaderFile  string `mapstructure:"header_file" yaml:"header_file"`
	CatalogPath string `mapstructure:"catalog_path" yaml:"catalog_path"`
}

type RootConfig struct {
	ActiveConfig string                    `mapstructure:"active_config" yaml:"active_config"`
	Globals      *GlobalsConfig            `mapstructure:"globals,omitempty" yaml:"globals,omitempty"`
	Definitions  *DefinitionsConfig        `mapstructure:"definitions,omitempty" yaml:"definitions,omitempty"`
	Configs      map[string]*ConfigProfile `mapstructure:"configs" yaml:"configs"`
}

type ConfigProfile struct {
	Timing        *TimingReference `mapstructure:"timing" yaml:"timing"`
	AmbiguousBits string           `mapstructure:"ambiguous_bits" yaml:"ambiguous_bits"`
	Input         InputConfig      `mapstructure:"input" yaml:"input"`
	Output        OutputConfig     `mapstructure:"output" yaml:"output"`
	Catalog       CatalogConfig    `mapstructure:"catalog" yaml:"catalog"`
	Capture       CaptureConfig    `mapstructure:"capture" yaml:"capture"`
}

// Config is a resolved profile.
type Config struct {
	TimingRef     string        `mapstructure:"timing_ref" yaml:"timing_ref"`
	Timing        decode.Timing `mapstructure:"timing" yaml:"timing"`
	AmbiguousBits string        `mapstructure:"ambiguous_bits" yaml:"ambiguous_bits"`
	Input         InputConfig   `mapstructure:"input" yaml:"input"`
	Output        OutputConfig  `mapstructure:"output" yaml:"output"`
	Catalog       CatalogConfig `mapstructure:"catalog" yaml:"catalog"`
	Capture       CaptureConfig `mapstructure:"capture" yaml:"capture"`

	// Internal field to track inheritance information for info command
	Inheritance *InheritanceInfo `mapstructure:"-" yaml:"-"`
}

type InheritanceInfo struct {
	Timing        string // "inherited" or "profile-specific"
	AmbiguousBits string
	Input         struct {
		CapturesDir string
		Unit        string
	}
	Output struct {
		HeaderFile string
	}
	Catalog struct {
		Path string
	}
	Capture struct {
		Port     string
		BaudRate string
	}
}

type InputConfig struct {
	CapturesDir string `mapstructure:"captures_dir" yaml:"captures_dir"`
	Unit        string `mapstructure:"unit" yaml:"unit"` // "auto", "s", "ms", "us"
}

type OutputConfig struct {
	HeaderFile string `mapstructure:"header_file" yaml:"header_file"`
}

type CatalogConfig struct {
	Path string `mapstructure:"path" yaml:"path"` // empty disables the catalog
}

type CaptureConfig struct {
	Port     string `mapstructure:"port" yaml:"port"`
	BaudRate int    `mapstructure:"baud_rate" yaml:"baud_rate"`
	DataBits int    `mapstructure:"data_bits" yaml:"data_bits"`
	StopBits int    `mapstructure:"stop_bits" yaml:"stop_bits"`
	Parity   string `mapstructure:"parity" yaml:"parity"`
}

var defaultConfig = Config{
	TimingRef:     "midea",
	Timing:        decode.DefaultTiming(),
	AmbiguousBits: string(decode.AssumeZero),
	Input: InputConfig{
		CapturesDir: "ir_captures",
		Unit:        string(trace.UnitAuto),
	},
	Output: OutputConfig{
		HeaderFile: "midea_commands.h",
	},
	Capture: CaptureConfig{
		Port:     "/dev/ttyUSB0",
		BaudRate: 115200,
	},
}

// Default returns the built-in configuration used when no config file exists.
func Default() *Config {
	cfg := defaultConfig
	cfg.Inheritance = &InheritanceInfo{}
	markAll(cfg.Inheritance, inherited)
	return &cfg
}

// DefaultPath returns $HOME/.config/irdecode.yaml.
func DefaultPath() string {
	return os.ExpandEnv("$HOME/.config/irdecode.yaml")
}

// Policy returns the configured ambiguous bit policy.
func (c *Config) Policy() (decode.AmbiguousBitPolicy, error) {
	return decode.ParsePolicy(c.AmbiguousBits)
}

// TraceOptions returns the importer options for this profile.
func (c *Config) TraceOptions() (trace.Options, error) {
	unit, err := trace.ParseUnit(c.Input.Unit)
	if err != nil {
		return trace.Options{}, err
	}
	return trace.Options{Unit: unit}, nil
}

// Decoder builds a decoder from the profile thresholds and policy.
func (c *Config) Decoder() (*decode.Decoder, error) {
	policy, err := c.Policy()
	if err != nil {
		return nil, err
	}
	return &decode.Decoder{Timing: c.Timing, Policy: policy}, nil
}

// LoadOrDefault loads configFile when it exists. A missing file falls back to
// the built-in defaults unless the caller asked for that file explicitly.
func LoadOrDefault(configFile, profile string, explicit bool) (*Config, error) {
	if _, err := os.Stat(configFile); errors.Is(err, os.ErrNotExist) && !explicit {
		if profile != "" && profile != "default" {
			return nil, fmt.Errorf("configuration profile '%s' requested but %s does not exist", profile, configFile)
		}
		return Default(), nil
	}
	return LoadWithProfile(configFile, profile)
}

func LoadWithProfile(configFile, profile string) (*Config, error) {
	if configFile == "" {
		return nil, fmt.Errorf("no config file specified, use --config flag")
	}

	// Validate configuration format first
	rootConfig, err := ValidateConfigurationFormat(configFile)
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	// Determine which config to use
	configName := profile
	if configName == "" {
		configName = rootConfig.ActiveConfig
	}
	if configName == "" {
		configName = "default"
	}

	selectedProfile, exists := rootConfig.Configs[configName]
	if !exists {
		return nil, fmt.Errorf("configuration profile '%s' not found", configName)
	}

	selectedConfig, err := convertProfileToConfig(selectedProfile, rootConfig.Definitions)
	if err != nil {
		return nil, fmt.Errorf("error resolving configuration profile '%s': %w", configName, err)
	}

	// Profiles fall back to the "default" profile, which itself falls back
	// to the built-in defaults.
	base := Default()
	if configName != "default" {
		if defaultProfile, exists := rootConfig.Configs["default"]; exists {
			resolvedDefault, err := convertProfileToConfig(defaultProfile, rootConfig.Definitions)
			if err != nil {
				return nil, fmt.Errorf("error resolving default configuration: %w", err)
			}
			base = mergeConfigs(base, resolvedDefault)
		}
	}
	selectedConfig = mergeConfigs(base, selectedConfig)

	// Global output settings take priority over profile values
	if rootConfig.Globals != nil {
		if rootConfig.Globals.Output.HeaderFile != "" {
			selectedConfig.Output.HeaderFile = rootConfig.Globals.Output.HeaderFile
		}
		if rootConfig.Globals.Output.CatalogPath != "" {
			selectedConfig.Catalog.Path = rootConfig.Globals.Output.CatalogPath
		}
	}

	selectedConfig.Input.CapturesDir = expandPath(selectedConfig.Input.CapturesDir)
	selectedConfig.Output.HeaderFile = expandPath(selectedConfig.Output.HeaderFile)
	selectedConfig.Catalog.Path = expandPath(selectedConfig.Catalog.Path)

	if err := validateResolved(selectedConfig); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return selectedConfig, nil
}

// UpdateActiveConfig updates the active_config field in the config file
func UpdateActiveConfig(configFile, newActiveConfig string) error {
	if configFile == "" {
		return fmt.Errorf("no config file specified")
	}

	v := viper.New()
	v.SetConfigFile(configFile)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	var root RootConfig
	if err := v.Unmarshal(&root); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}
	if _, ok := root.Configs[newActiveConfig]; !ok {
		return fmt.Errorf("configuration profile '%s' not found", newActiveConfig)
	}

	v.Set("active_config", newActiveConfig)

	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("error writing config file %s: %w", configFile, err)
	}

	return nil
}

// ListProfiles returns the profile names in the config file, sorted, and the
// active profile.
func ListProfiles(configFile string) (names []string, active string, err error) {
	rootConfig, err := ValidateConfigurationFormat(configFile)
	if err != nil {
		return nil, "", err
	}
	for name := range rootConfig.Configs {
		names = append(names, name)
	}
	sort.Strings(names)
	active = rootConfig.ActiveConfig
	if active == "" {
		active = "default"
	}
	return names, active, nil
}

// convertProfileToConfig converts a ConfigProfile to Config by resolving the timing reference
func convertProfileToConfig(profile *ConfigProfile, definitions *DefinitionsConfig) (*Config, error) {
	if profile == nil {
		return nil, fmt.Errorf("profile cannot be nil")
	}

	config := &Config{
		AmbiguousBits: profile.AmbiguousBits,
		Input:         profile.Input,
		Output:        profile.Output,
		Catalog:       profile.Catalog,
		Capture:       profile.Capture,
	}

	if profile.Timing == nil {
		return config, nil
	}

	ref := profile.Timing
	if ref.Ref == "" {
		return nil, fmt.Errorf("timing: 'ref' is required")
	}

	definition := findTiming(definitions, ref.Ref)
	if definition == nil {
		return nil, fmt.Errorf("timing: reference '%s' not found in definitions", ref.Ref)
	}

	timing := definition.Timing
	if ref.ShortPulse != nil {
		timing.ShortPulse = *ref.ShortPulse
	}
	if ref.ShortSpace != nil {
		timing.ShortSpace = *ref.ShortSpace
	}
	if ref.LongPulse != nil {
		timing.LongPulse = *ref.LongPulse
	}
	if ref.MinLeader != nil {
		timing.MinLeader = *ref.MinLeader
	}
	if timing.MinLeader == 0 {
		timing.MinLeader = timing.LeaderPulse.Min
	}

	config.TimingRef = ref.Ref
	config.Timing = timing
	return config, nil
}

func findTiming(definitions *DefinitionsConfig, id string) *TimingDefinition {
	if definitions == nil {
		return nil
	}
	for i := range definitions.Timings {
		if definitions.Timings[i].ID == id {
			return &definitions.Timings[i]
		}
	}
	return nil
}

// mergeConfigs fills every field the profile leaves unset from base and
// records where each value came from.
func mergeConfigs(base, profile *Config) *Config {
	result := &Config{Inheritance: &InheritanceInfo{}}

	if base != nil {
		result.TimingRef = base.TimingRef
		result.Timing = base.Timing
		result.AmbiguousBits = base.AmbiguousBits
		result.Input = base.Input
		result.Output = base.Output
		result.Catalog = base.Catalog
		result.Capture = base.Capture
		markAll(result.Inheritance, inherited)
	}

	if profile == nil {
		return result
	}

	if profile.TimingRef != "" {
		result.TimingRef = profile.TimingRef
		result.Timing = profile.Timing
		result.Inheritance.Timing = profileSpecific
	}
	if profile.AmbiguousBits != "" {
		result.AmbiguousBits = profile.AmbiguousBits
		result.Inheritance.AmbiguousBits = profileSpecific
	}
	if profile.Input.CapturesDir != "" {
		result.Input.CapturesDir = profile.Input.CapturesDir
		result.Inheritance.Input.CapturesDir = profileSpecific
	}
	if profile.Input.Unit != "" {
		result.Input.Unit = profile.Input.Unit
		result.Inheritance.Input.Unit = profileSpecific
	}
	if profile.Output.HeaderFile != "" {
		result.Output.HeaderFile = profile.Output.HeaderFile
		result.Inheritance.Output.HeaderFile = profileSpecific
	}
	if profile.Catalog.Path != "" {
		result.Catalog.Path = profile.Catalog.Path
		result.Inheritance.Catalog.Path = profileSpecific
	}
	if profile.Capture.Port != "" {
		result.Capture.Port = profile.Capture.Port
		result.Inheritance.Capture.Port = profileSpecific
	}
	if profile.Capture.BaudRate != 0 {
		result.Capture.BaudRate = profile.Capture.BaudRate
		result.Inheritance.Capture.BaudRate = profileSpecific
	}
	if profile.Capture.DataBits != 0 {
		result.Capture.DataBits = profile.Capture.DataBits
	}
	if profile.Capture.StopBits != 0 {
		result.Capture.StopBits = profile.Capture.StopBits
	}
	if profile.Capture.Parity != "" {
		result.Capture.Parity = profile.Capture.Parity
	}

	return result
}

func markAll(info *InheritanceInfo, status string) {
	info.Timing = status
	info.AmbiguousBits = status
	info.Input.CapturesDir = status
	info.Input.Unit = status
	info.Output.HeaderFile = status
	info.Catalog.Path = status
	info.Capture.Port = status
	info.Capture.BaudRate = status
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// validateResolved checks the values a profile resolved to
func validateResolved(config *Config) error {
	if err := config.Timing.Validate(); err != nil {
		return fmt.Errorf("timing '%s': %w", config.TimingRef, err)
	}
	if _, err := config.Policy(); err != nil {
		return err
	}
	if _, err := config.TraceOptions(); err != nil {
		return fmt.Errorf("input: %w", err)
	}
	if config.Output.HeaderFile == "" {
		return fmt.Errorf("output.header_file must not be empty")
	}
	if config.Capture.BaudRate < 0 {
		return fmt.Errorf("capture.baud_rate must be >= 0, got: %d", config.Capture.BaudRate)
	}
	return nil
}

// ValidateConfigurationFormat validates the configuration file format and returns parsed config
func ValidateConfigurationFormat(configFile string) (*RootConfig, error) {
	v := viper.New()
	v.SetConfigFile(configFile)

	v.SetEnvPrefix("IRDECODE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	var rootConfig RootConfig
	if err := v.Unmarshal(&rootConfig); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateDefinitions(rootConfig.Definitions); err != nil {
		return nil, fmt.Errorf("invalid definitions: %w", err)
	}

	if len(rootConfig.Configs) == 0 {
		return nil, fmt.Errorf("configs section is required")
	}

	for configName, configProfile := range rootConfig.Configs {
		if err := validateProfile(configProfile, rootConfig.Definitions); err != nil {
			return nil, fmt.Errorf("invalid config '%s': %w", configName, err)
		}
	}

	return &rootConfig, nil
}

// validateDefinitions validates the definitions section
func validateDefinitions(definitions *DefinitionsConfig) error {
	if definitions == nil {
		return fmt.Errorf("definitions section is required")
	}

	if len(definitions.Timings) == 0 {
		return fmt.Errorf("definitions.timings cannot be empty")
	}

	seenIDs := make(map[string]bool)

	for i, def := range definitions.Timings {
		prefix := fmt.Sprintf("definitions.timings[%d]", i)
		if def.ID == "" {
			return fmt.Errorf("%s: 'id' is required", prefix)
		}
		if seenIDs[def.ID] {
			return fmt.Errorf("%s: duplicate ID '%s'", prefix, def.ID)
		}
		seenIDs[def.ID] = true

		timing := def.Timing
		if timing.MinLeader == 0 {
			timing.MinLeader = timing.LeaderPulse.Min
		}
		if err := timing.Validate(); err != nil {
			return fmt.Errorf("%s '%s': %w", prefix, def.ID, err)
		}
	}

	return nil
}

// validateProfile validates the references and enums in a config profile
func validateProfile(profile *ConfigProfile, definitions *DefinitionsConfig) error {
	if profile == nil {
		return nil
	}

	if ref := profile.Timing; ref != nil {
		if ref.Ref == "" {
			return fmt.Errorf("timing: 'ref' is required")
		}
		if findTiming(definitions, ref.Ref) == nil {
			return fmt.Errorf("timing: references undefined timing definition '%s'", ref.Ref)
		}
		if ref.MinLeader != nil && *ref.MinLeader <= 0 {
			return fmt.Errorf("timing: min_leader override must be > 0, got %d", *ref.MinLeader)
		}
	}

	if profile.AmbiguousBits != "" {
		if _, err := decode.ParsePolicy(profile.AmbiguousBits); err != nil {
			return err
		}
	}

	if profile.Input.Unit != "" {
		if _, err := trace.ParseUnit(profile.Input.Unit); err != nil {
			return fmt.Errorf("input: %w", err)
		}
	}

	return nil
}
