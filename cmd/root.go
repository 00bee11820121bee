package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/audiolibrelab/irdecode/internal/config"
	"github.com/audiolibrelab/irdecode/internal/service"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	cfg          *config.Config
	cfgFile      string
	logFile      string
	pipeline     string
	profile      string
	verboseLevel int
)

var rootCmd = &cobra.Command{
	Use:   "irdecode [capture-file]",
	Short: "Decode Midea air conditioner IR captures",
	Long: `irdecode turns raw infrared timing captures of a Midea air conditioner remote
into command bytes, decoded fields and a C header ready for firmware.

Captures come from logic analyzer CSV exports, text duration lists or a serial
IR receiver. Decoded commands are appended to a header file and can be kept
in a local catalog.

When a capture file is provided, it acts as 'irdecode decode [capture-file]'.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging(verboseLevel, logFile)

		explicit := cfgFile != ""
		if !explicit {
			cfgFile = config.DefaultPath()
		}

		// validate reports problems itself instead of failing here
		if cmd.Name() == "validate" {
			return nil
		}

		var err error
		cfg, err = config.LoadOrDefault(cfgFile, profile, explicit)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if pipeline != "" {
			if err := service.ValidateSteps(pipeline); err != nil {
				return err
			}
		}

		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			return decodeCmd.RunE(cmd, args)
		}
		return cmd.Help()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/irdecode.yaml)")
	rootCmd.PersistentFlags().StringVarP(&pipeline, "pipeline", "p", "", "pipeline steps: c=capture, d=decode, e=export, s=store (e.g., 'cde', 'cdes')")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "configuration profile to use (overrides active_config from file)")
	rootCmd.PersistentFlags().IntVarP(&verboseLevel, "verbose", "v", 0, "verbose level: 0=info, 1=debug, 2=raw serial lines")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this file, rotated at 10 MB")

	addDecodeFlags(rootCmd)

	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(commandsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(serveCmd)
}

// setupLogging configures slog based on the verbose level and optional log file
func setupLogging(level int, path string) {
	slogLevel := slog.LevelInfo
	if level >= 1 {
		slogLevel = slog.LevelDebug
	}

	var out io.Writer = os.Stderr
	if path != "" {
		rotator := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		}
		out = io.MultiWriter(os.Stderr, rotator)
	}

	opts := &slog.HandlerOptions{
		Level: slogLevel,
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(out, opts)))
}

// newService builds the service for one command invocation. Raw serial
// lines are echoed to stderr from verbose level 2.
func newService() service.Service {
	var logWriter io.Writer = io.Discard
	if verboseLevel >= 2 {
		logWriter = os.Stderr
	}
	return service.New(cfg, cfgFile, logWriter)
}
