package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harun/nodeshell/pkg/transport"
)

var transportsCmd = &cobra.Command{
	Use:   "transports",
	Short: "List the available repository transports",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range transport.Default().Names() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
	},
}

func init() {
	rootCmd.AddCommand(transportsCmd)
}
