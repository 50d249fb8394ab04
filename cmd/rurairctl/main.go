// Command rurairctl inspects palettes, validates map requests and queries the
// data engine without going through the HTTP service.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "rurairctl",
		Short:         "Operator tools for the RurAirConnect map service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("database-url", envOr("DATABASE_URL", "postgres://localhost:5432/postgres"), "PostgreSQL DSN")
	root.PersistentFlags().String("palette-file", os.Getenv("PALETTE_FILE"), "palette YAML (embedded default when empty)")
	root.PersistentFlags().BoolP("yaml", "y", false, "print YAML instead of JSON")

	root.AddCommand(
		newCategoriesCmd(),
		newValidateCmd(),
		newLegendCmd(),
		newQueryCmd(),
		newRefreshCmd(),
	)
	return root
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
