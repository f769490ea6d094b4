// Package main provides the schemalogd server daemon.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// configFile is set by the --config flag.
var configFile string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "schemalogd",
	Short: "schemalogd is a schema-validated log sink",
	Long: `schemalogd stores JSON log entries validated on write against
user-registered, versioned JSON Schema definitions. It serves a public,
API-key-gated HTTP API for schemas, log ingestion, filtered queries, and a
live event stream, plus a separate admin API for key management.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: schemalog.yaml in the working directory)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
