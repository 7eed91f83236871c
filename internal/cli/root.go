// Package cli wires the rp command tree.
package cli

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rp-cli/rp/internal/errors"
	"github.com/rp-cli/rp/internal/ui"
)

// rootCmd is the base command; subcommands register themselves in init().
var rootCmd = &cobra.Command{
	Use:   "rp",
	Short: "Manage RunPod GPU pods and their SSH config entries",
	Long: `rp creates, tracks, and connects to RunPod GPU pods.

Each tracked pod gets an alias and a managed Host block in your SSH config,
so "ssh <alias>", VS Code, and Cursor just work. Blocks rp writes are marked
and rewritten on every start; everything else in the file is left untouched.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and renders structured errors.
func Execute() {
	ui.ConfigureColors()

	if err := rootCmd.Execute(); err != nil {
		// Structured errors render themselves with symbol and suggestion.
		var rpErr *errors.Error
		if stderrors.As(err, &rpErr) {
			fmt.Fprintln(os.Stderr, rpErr.Error())
		} else {
			fmt.Fprintf(os.Stderr, "%s %v\n", ui.SymbolFail, err)
		}
		os.Exit(1)
	}
}
