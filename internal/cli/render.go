package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/meridian-platform/stackd/internal/config"
	"github.com/meridian-platform/stackd/internal/domain"
	"github.com/meridian-platform/stackd/internal/render"
	"github.com/meridian-platform/stackd/internal/route"
)

var renderRoutes string

// render works offline: route table plus environment slots in, proxy server
// configuration out. It is what the proxy image runs at container start.
var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render the proxy configuration from a route table",
	RunE: func(cmd *cobra.Command, args []string) error {
		table := route.DefaultTable()
		if renderRoutes != "" {
			t, err := route.LoadFromFile(renderRoutes)
			if err != nil {
				return err
			}
			table = t
		}

		cfg := config.LoadRender()
		out, err := render.Config(table, render.Params{
			ListenPort:         cfg.ListenPort,
			ServerName:         cfg.ServerName,
			ACMEChallengeBlock: cfg.ACMEChallengeBlock,
			HTTPSBlock:         cfg.HTTPSBlock,
			Upstreams: map[domain.Role]render.Upstream{
				domain.RoleAPI: {Host: cfg.APIHost, Port: cfg.APIPort},
				domain.RoleWeb: {Host: cfg.WebHost, Port: cfg.WebPort},
			},
		})
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	renderCmd.Flags().StringVar(&renderRoutes, "routes", os.Getenv("ROUTES_CONFIG"), "route table YAML file")
}
