package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List available serial ports",
	Long:  `List the serial ports an IR receiver can be attached to and show the port configured in the active profile.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := newService()
		defer svc.Close()

		sources, err := svc.ListSources()
		if err != nil {
			return fmt.Errorf("failed to list serial ports: %w", err)
		}

		fmt.Printf("📡 Serial Ports (%s)\n", runtime.GOOS)
		fmt.Printf("═══════════════════════════════════════\n\n")

		fmt.Printf("📋 PORTS (%d found):\n", len(sources))
		configured := false
		for i, source := range sources {
			marker := ""
			if source == cfg.Capture.Port {
				marker = " " + okMark()
				configured = true
			}
			fmt.Printf("  %d. %s%s\n", i+1, source, marker)
		}

		fmt.Printf("\n💡 Configured port: %s @ %d baud", cfg.Capture.Port, cfg.Capture.BaudRate)
		if !configured {
			fmt.Printf(" %s not present", failMark())
		}
		fmt.Printf("\n  • Set capture.port in the profile or pass --port to 'irdecode capture'\n\n")

		return nil
	},
}
