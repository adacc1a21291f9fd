package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/meridian-platform/stackd/internal/manifest"
)

var (
	teardownFile string
	teardownYes  bool
)

var teardownCmd = &cobra.Command{
	Use:   "teardown",
	Short: "Destroy a stack and its infrastructure",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := manifest.Load(teardownFile)
		if err != nil {
			return err
		}

		if !teardownYes {
			fmt.Fprintf(cmd.OutOrStdout(), "destroy unit %q and all its infrastructure? [y/N] ", m.Unit.Name)
			line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if strings.TrimSpace(strings.ToLower(line)) != "y" {
				fmt.Fprintln(cmd.OutOrStdout(), "aborted")
				return nil
			}
		}

		if err := newClient().Teardown(cmd.Context(), m); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "unit %q destroyed\n", m.Unit.Name)
		return nil
	},
}

func init() {
	teardownCmd.Flags().StringVarP(&teardownFile, "filename", "f", "", "stack manifest file")
	teardownCmd.Flags().BoolVarP(&teardownYes, "yes", "y", false, "skip confirmation")
	_ = teardownCmd.MarkFlagRequired("filename")
}
