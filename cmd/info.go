package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/audiolibrelab/irdecode/internal/export"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info [name]",
	Short: "Show resolved configuration and file paths",
	Long: `Display the resolved configuration with inheritance indicators. Shows which
values are inherited from default vs profile-specific. With a command name,
also show the capture file the pipeline would use for it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			cleanName := export.SanitizeName(args[0])
			if cleanName == "" {
				return fmt.Errorf("invalid command name %q", args[0])
			}
			fmt.Printf("=== FILE PATHS ===\n")
			fmt.Printf("capture: %s\n", filepath.Join(cfg.Input.CapturesDir, cleanName+".txt"))
			fmt.Printf("header: %s\n", cfg.Output.HeaderFile)
			fmt.Printf("clean_name: %s\n\n", cleanName)
		}

		inh := cfg.Inheritance

		fmt.Printf("=== RESOLVED CONFIGURATION ===\n")
		fmt.Printf("config: %s\n", cfgFile)

		fmt.Printf("\n[Timing]\n")
		fmt.Printf("ref: %s %s\n", cfg.TimingRef, getInheritanceIndicator(inh.Timing))
		t := cfg.Timing
		fmt.Printf("leader_pulse: %s\n", t.LeaderPulse)
		fmt.Printf("leader_space: %s\n", t.LeaderSpace)
		fmt.Printf("short_pulse:  %s\n", t.ShortPulse)
		fmt.Printf("short_space:  %s\n", t.ShortSpace)
		fmt.Printf("long_pulse:   %s\n", t.LongPulse)
		fmt.Printf("min_leader:   %dus\n", t.MinLeader)

		fmt.Printf("\n[Decoding]\n")
		fmt.Printf("ambiguous_bits: %s %s\n", cfg.AmbiguousBits, getInheritanceIndicator(inh.AmbiguousBits))

		fmt.Printf("\n[Input]\n")
		fmt.Printf("captures_dir: %s %s\n", cfg.Input.CapturesDir, getInheritanceIndicator(inh.Input.CapturesDir))
		fmt.Printf("unit: %s %s\n", cfg.Input.Unit, getInheritanceIndicator(inh.Input.Unit))

		fmt.Printf("\n[Output]\n")
		fmt.Printf("header_file: %s %s\n", cfg.Output.HeaderFile, getInheritanceIndicator(inh.Output.HeaderFile))

		fmt.Printf("\n[Catalog]\n")
		catalogPath := cfg.Catalog.Path
		if catalogPath == "" {
			catalogPath = "(disabled)"
		}
		fmt.Printf("path: %s %s\n", catalogPath, getInheritanceIndicator(inh.Catalog.Path))

		fmt.Printf("\n[Capture]\n")
		fmt.Printf("port: %s %s\n", cfg.Capture.Port, getInheritanceIndicator(inh.Capture.Port))
		fmt.Printf("baud_rate: %d %s\n", cfg.Capture.BaudRate, getInheritanceIndicator(inh.Capture.BaudRate))

		return nil
	},
}

// getInheritanceIndicator returns a formatted indicator for inheritance status
func getInheritanceIndicator(status string) string {
	switch status {
	case "inherited":
		return "[inherited]"
	case "profile-specific":
		return "[profile-specific]"
	default:
		return "[built-in]"
	}
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
