package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/audiolibrelab/irdecode/internal/service"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [name]",
	Short: "Execute pipeline steps for a command",
	Long: `Execute the specified pipeline steps for a named command. Use -p to specify
which steps to run:

  c  capture from the serial receiver into <captures_dir>/<name>.txt
  d  decode that capture
  e  append the decoded command to the header
  s  save the decoded command in the catalog

Example: irdecode run power_on -p cde`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := service.ValidateSteps(pipeline); err != nil {
			return err
		}

		svc := newService()
		defer svc.Close()

		return runSteps(cmd.Context(), svc, args[0], pipeline)
	},
}

// runSteps executes a pipeline and prints what each step produced. While
// capturing, Enter or Ctrl+C ends the capture and the pipeline continues;
// without a capture step Ctrl+C aborts.
func runSteps(ctx context.Context, svc service.Service, name, steps string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var stop <-chan struct{}
	if strings.ContainsRune(strings.ToLower(steps), service.StepCapture) {
		fmt.Println("Pipeline: capturing... press Enter or Ctrl+C to stop")
		stop = stopOnEnterOrSignal()
	} else {
		var cancel context.CancelFunc
		ctx, cancel = signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer cancel()
	}

	fmt.Printf("Pipeline: executing '%s' for %s\n", steps, name)
	out, err := svc.RunPipeline(ctx, name, steps, stop)
	if out != nil {
		printPipelineResult(out, svc.GetConfig().Output.HeaderFile)
	}
	if err != nil {
		return err
	}
	fmt.Println("Pipeline: completed")
	return nil
}

func printPipelineResult(out *service.PipelineResult, header string) {
	if out.Result != nil {
		fmt.Println()
		printResult(os.Stdout, out.Trace, out.Result, showBits)
	}
	if out.Exported != "" {
		printExported(os.Stdout, out.Exported, header)
	}
	if out.Record != nil {
		printStored(os.Stdout, *out.Record)
	}
}

func init() {
	runCmd.Flags().BoolVar(&showBits, "bits", false, "show the per-byte bit breakdown")
}
