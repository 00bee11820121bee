package cmd

import (
	"fmt"
	"log/slog"

	"github.com/audiolibrelab/irdecode/internal/service"

	"github.com/spf13/cobra"
)

var captureCmd = &cobra.Command{
	Use:   "capture [name]",
	Short: "Capture raw timings from a serial IR receiver",
	Long: `Open the configured serial port and record the pulse and space durations
printed by an IR receiver sketch, one value per line. Press Enter or Ctrl+C to
stop; the trace is saved as <captures_dir>/<name>.txt and can be decoded with
'irdecode decode'. Use -p to continue with more steps, e.g. -p cde.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		if port, _ := cmd.Flags().GetString("port"); port != "" {
			cfg.Capture.Port = port
		}
		if baud, _ := cmd.Flags().GetInt("baud"); baud > 0 {
			cfg.Capture.BaudRate = baud
		}

		svc := newService()
		defer svc.Close()

		if pipeline != "" {
			steps := pipeline
			if steps[0] != byte(service.StepCapture) {
				steps = string(service.StepCapture) + steps
			}
			return runSteps(cmd.Context(), svc, name, steps)
		}

		slog.Info("Capture command started", "name", name, "port", cfg.Capture.Port, "baud", cfg.Capture.BaudRate)
		if err := svc.StartReady(name); err != nil {
			return fmt.Errorf("failed to open receiver: %w", err)
		}
		if err := svc.StartCapture(); err != nil {
			return fmt.Errorf("failed to start capture: %w", err)
		}

		fmt.Println("Capturing... point the remote at the receiver, press Enter or Ctrl+C to stop")
		<-stopOnEnterOrSignal()

		_, session := svc.GetCaptureStatus()
		if err := svc.StopCapture(); err != nil {
			return fmt.Errorf("failed to stop capture: %w", err)
		}
		if session != nil {
			fmt.Printf("%s saved %s\n", okMark(), session.OutputFile)
		}
		return nil
	},
}

func init() {
	captureCmd.Flags().String("port", "", "serial port (overrides config)")
	captureCmd.Flags().Int("baud", 0, "baud rate (overrides config)")
}
