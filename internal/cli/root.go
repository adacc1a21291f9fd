// Package cli implements the stackctl command tree.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	apiToken  string
)

var rootCmd = &cobra.Command{
	Use:           "stackctl",
	Short:         "stackctl manages stackd service units",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("STACKD_SERVER", "http://localhost:8080"), "stackd API base URL")
	rootCmd.PersistentFlags().StringVar(&apiToken, "token", os.Getenv("STACKD_TOKEN"), "API token")

	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(teardownCmd)
	rootCmd.AddCommand(renderCmd)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newClient() *Client {
	return NewClient(serverURL, apiToken)
}
