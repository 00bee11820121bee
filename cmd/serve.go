package cmd

import (
	"fmt"
	"log/slog"

	"github.com/audiolibrelab/irdecode/internal/server"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server for remote capture and decoding",
	Long: `Start the irdecode web server. Captures can be started and stopped from a phone
while standing next to the air conditioner, and traces can be posted to
/api/decode from other tools.

The server will display the local network URL for easy access from mobile devices.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetString("port")

		svc := newService()
		defer svc.Close()

		srv := server.New(svc, cfgFile, port)
		slog.Info("irdecode web server starting", "port", port, "config", cfgFile)

		if err := srv.Start(); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("port", "8080", "port for the web server")
}
