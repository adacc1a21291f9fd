package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	logsContainer string
	logsSince     string
	logsLimit     int
)

var logsCmd = &cobra.Command{
	Use:   "logs <unit>",
	Short: "Fetch a unit's container logs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logs, err := newClient().Logs(cmd.Context(), args[0], logsContainer, logsSince, logsLimit)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), logs)
		return nil
	},
}

func init() {
	logsCmd.Flags().StringVar(&logsContainer, "container", "", "restrict to one container role")
	logsCmd.Flags().StringVar(&logsSince, "since", "1h", "how far back to query")
	logsCmd.Flags().IntVar(&logsLimit, "limit", 1000, "maximum lines")
}
