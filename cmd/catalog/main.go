package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/okian/catalog/internal/cli"
	"github.com/okian/catalog/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "catalog",
		Short:   "Catalog - event and venue feed ingestion",
		Version: version.String(),
		Long: `catalog runs ingestion passes over venue and event feeds outside the
HTTP service. Feeds are local paths or http(s) URLs in CSV or JSON.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(cli.IngestCmd())
	rootCmd.AddCommand(cli.VenuesCmd())
	rootCmd.AddCommand(cli.VersionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
