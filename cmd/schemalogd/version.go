// Version command for the schemalogd daemon.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/schemalog/pkg/types"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the schemalogd version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("schemalogd", types.Version)
	},
}
