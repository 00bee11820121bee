package cmd

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/audiolibrelab/irdecode/internal/catalog"

	"github.com/spf13/cobra"
)

var commandsCmd = &cobra.Command{
	Use:   "commands [name]",
	Short: "List or show commands saved in the catalog",
	Long: `Without arguments, list every command saved in the catalog. With a name,
show the stored bytes, decoded fields and diagnostics for that command.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := newService()
		defer svc.Close()

		if len(args) == 1 {
			rec, err := svc.GetCommand(cmd.Context(), args[0])
			if errors.Is(err, catalog.ErrNotFound) {
				return fmt.Errorf("command '%s' not found in catalog", args[0])
			}
			if err != nil {
				return err
			}
			printRecord(rec)
			return nil
		}

		records, err := svc.ListCommands(cmd.Context())
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("Catalog is empty")
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tCHECKSUM\tSUMMARY\tUPDATED")
		for _, rec := range records {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", rec.Name, mark(rec.ChecksumValid), rec.Summary, rec.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return tw.Flush()
	},
}

func printRecord(rec catalog.Record) {
	fmt.Println(titlef("=== %s ===", rec.Name))
	fmt.Printf("id:        %s\n", rec.ID)
	fmt.Printf("source:    %s\n", rec.Source)
	fmt.Printf("durations: %d\n", len(rec.Durations))
	fmt.Printf("bytes:     %s\n", rec.Bytes.Hex())
	fmt.Printf("summary:   %s\n", rec.Summary)
	fmt.Printf("checksum:  %s\n", mark(rec.ChecksumValid))
	for _, d := range rec.Diagnostics {
		fmt.Println(warnf("  %s", d))
	}
	fmt.Printf("created:   %s\n", rec.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("updated:   %s\n", rec.UpdatedAt.Format("2006-01-02 15:04:05"))
}
