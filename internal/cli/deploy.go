package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meridian-platform/stackd/internal/domain"
	"github.com/meridian-platform/stackd/internal/manifest"
)

var (
	deployFile    string
	deployVersion string
	redeployProxy bool
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy a stack manifest",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := manifest.Load(deployFile)
		if err != nil {
			return err
		}
		// Validate locally before shipping the manifest to the server.
		if _, err := m.ToDomain(); err != nil {
			return err
		}

		rev, err := newClient().Deploy(cmd.Context(), m, deployVersion, redeployProxy)
		if err != nil {
			if rev != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "revision %s (%s): %v\n", rev.ID, rev.Status, err)
			}
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "revision %s serving (version %s)\n", rev.ID, rev.Version)
		for _, role := range domain.Roles {
			fmt.Fprintf(cmd.OutOrStdout(), "  %-5s %s\n", role, rev.Images[role])
		}
		return nil
	},
}

func init() {
	deployCmd.Flags().StringVarP(&deployFile, "filename", "f", "", "stack manifest file")
	deployCmd.Flags().StringVar(&deployVersion, "version", "latest", "backend image version to deploy")
	deployCmd.Flags().BoolVar(&redeployProxy, "redeploy-proxy", false, "re-pin the proxy to its stable tag")
	_ = deployCmd.MarkFlagRequired("filename")
}
