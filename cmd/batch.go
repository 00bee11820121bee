package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/audiolibrelab/irdecode/internal/service"

	"github.com/spf13/cobra"
)

var batchCmd = &cobra.Command{
	Use:   "batch [directory]",
	Short: "Decode every capture in a directory",
	Long: `Decode every .csv and .txt capture in a directory (the profile's captures
directory by default) and append each command to the header. Names are derived
from the file names and the decoded fields. A capture that fails to decode is
reported and the run continues.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fresh, _ := cmd.Flags().GetBool("fresh")
		store, _ := cmd.Flags().GetBool("store")

		opts := service.BatchOptions{Fresh: fresh, Store: store}
		if len(args) == 1 {
			opts.Dir = args[0]
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc := newService()
		defer svc.Close()

		report, err := svc.RunBatch(ctx, opts)
		if report != nil {
			printBatchReport(os.Stdout, report)
		}
		if err != nil {
			return fmt.Errorf("batch failed: %w", err)
		}
		if report.Failed > 0 && report.Exported == 0 {
			return fmt.Errorf("no capture in %s could be decoded", report.Dir)
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().Bool("fresh", false, "truncate the header before exporting")
	batchCmd.Flags().Bool("store", false, "also save every command in the catalog")
}
