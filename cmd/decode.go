package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/audiolibrelab/irdecode/internal/decode"
	"github.com/audiolibrelab/irdecode/internal/export"
	"github.com/audiolibrelab/irdecode/internal/service"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

var (
	commandName string
	interactive bool
	noExport    bool
	storeResult bool
	showBits    bool
)

var decodeCmd = &cobra.Command{
	Use:   "decode [capture-file]",
	Short: "Decode one IR capture",
	Long: `Decode a CSV or text capture, print the bit stream, bytes and command fields,
then append the command to the configured C header.

The command name comes from --name, an interactive prompt (--interactive) or
is derived from the file name and the decoded fields.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		svc := newService()
		defer svc.Close()

		res, err := svc.DecodeFile(path)
		if err != nil {
			return fmt.Errorf("failed to decode %s: %w", path, err)
		}

		printResult(os.Stdout, path, res, showBits)

		if noExport && !storeResult {
			return nil
		}

		name, err := resolveName(path, res)
		if err != nil {
			return err
		}

		return exportAndStore(cmd.Context(), os.Stdout, svc, name, path, res)
	},
}

// exportAndStore appends the command to the profile's header unless
// --no-export is set and saves it in the catalog when --store is set.
func exportAndStore(ctx context.Context, w io.Writer, svc service.Service, name, source string, res *decode.Result) error {
	if !noExport {
		exported, err := svc.Export(name, res)
		if err != nil {
			return fmt.Errorf("failed to export %s: %w", name, err)
		}
		printExported(w, exported, svc.GetConfig().Output.HeaderFile)
	}

	if storeResult {
		rec, err := svc.Store(ctx, name, source, res)
		if err != nil {
			return fmt.Errorf("failed to store %s: %w", name, err)
		}
		printStored(w, rec)
	}

	return nil
}

// addDecodeFlags registers the decode flags on c. The root command shares
// them so 'irdecode capture.csv --name power_on' works.
func addDecodeFlags(c *cobra.Command) {
	c.Flags().StringVarP(&commandName, "name", "n", "", "command name used in the header (default derived from the file name)")
	c.Flags().BoolVarP(&interactive, "interactive", "i", false, "prompt for the command name")
	c.Flags().BoolVar(&noExport, "no-export", false, "only print the analysis, do not append to the header")
	c.Flags().BoolVar(&storeResult, "store", false, "also save the command in the catalog")
	c.Flags().BoolVar(&showBits, "bits", false, "show the per-byte bit breakdown")
}

func init() {
	addDecodeFlags(decodeCmd)
}

func resolveName(path string, res *decode.Result) (string, error) {
	suggested := export.SuggestName(res.Bytes, path)

	name := commandName
	if name == "" && interactive {
		var err error
		name, err = promptName(suggested)
		if err != nil {
			return "", err
		}
	}
	if name == "" {
		name = suggested
	}

	clean := export.SanitizeName(name)
	if clean == "" {
		return "", fmt.Errorf("invalid command name %q", name)
	}
	if clean != name {
		slog.Info("Command name sanitized", "from", name, "to", clean)
	}
	return clean, nil
}

// promptName asks for a command name. An empty answer keeps the suggestion.
func promptName(suggested string) (string, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          fmt.Sprintf("command name [%s]: ", suggested),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return "", fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	line, err := rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
		return "", errors.New("aborted")
	}
	if err != nil {
		return "", err
	}
	if line = strings.TrimSpace(line); line != "" {
		return line, nil
	}
	return suggested, nil
}
