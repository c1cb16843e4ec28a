// Hookgen generates the package-level boilerplate a static hook needs.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hookgen",
	Short: "hookgen generates static hook declarations for the detour package.",
	Long: `hookgen generates the package-level glue a static hook needs: the hook ` +
		`variable, a thunk with the target's signature that forwards through the ` +
		`hook, and the panic containment boundary.`,
}

func main() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
