package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/meridian-platform/stackd/internal/domain"
	"github.com/meridian-platform/stackd/internal/health"
)

var statusCmd = &cobra.Command{
	Use:   "status <unit>",
	Short: "Show a unit's serving revision and health",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := newClient().Status(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		var status struct {
			Unit    *domain.ServiceUnit `json:"unit"`
			Serving *domain.Revision    `json:"serving"`
			Health  *health.Report      `json:"health"`
			History []*domain.Revision  `json:"history"`
		}
		if err := json.Unmarshal(raw, &status); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "unit: %s\n", args[0])
		if status.Serving != nil {
			fmt.Fprintf(out, "serving: %s (version %s)\n", status.Serving.ID, status.Serving.Version)
		} else {
			fmt.Fprintln(out, "serving: none")
		}
		if status.Health != nil {
			fmt.Fprintf(out, "healthy: %v\n", status.Health.Healthy)
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CONTAINER\tPROBE\tREADY")
			for _, c := range status.Health.Containers {
				fmt.Fprintf(w, "%s\t%v\t%v\n", c.Role, c.ProbeReady, c.Ready)
			}
			w.Flush()
		}
		if len(status.History) > 0 {
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "REVISION\tVERSION\tSTATUS\tCREATED")
			for _, rev := range status.History {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", rev.ID, rev.Version, rev.Status, rev.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			w.Flush()
		}
		return nil
	},
}
