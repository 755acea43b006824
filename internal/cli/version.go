package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/illallangi/cloudflare-tools/internal/render"
	"github.com/illallangi/cloudflare-tools/internal/version"
)

func newVersionCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		// Build information does not depend on configuration.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if asJSON {
				return render.WriteJSON(cmd.OutOrStdout(), version.GetBuildInfo())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cloudflare-account %s\n", version.Info())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Write build information as JSON")

	return cmd
}
