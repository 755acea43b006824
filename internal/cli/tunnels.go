package cli

import (
	"github.com/spf13/cobra"

	"github.com/illallangi/cloudflare-tools/internal/account"
	"github.com/illallangi/cloudflare-tools/internal/render"
)

func newTunnelsCmd(a *app) *cobra.Command {
	var output outputFlags

	cmd := &cobra.Command{
		Use:   "tunnels",
		Short: "List the account's tunnels",
		Long: `List the Cloudflare Tunnels of the account that are not deleted.

The table view shows each tunnel's name and status. --json and --yaml
write the full records, including id and _expires.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.newClient()
			if err != nil {
				return err
			}

			stop := a.console.spin(" Fetching tunnels...")
			tunnels, err := client.ListTunnels(cmd.Context())
			stop()
			if err != nil {
				return err
			}

			return render.Write(cmd.OutOrStdout(), output.format(), tunnels, func() (render.Table, error) {
				return tunnelTable(tunnels), nil
			})
		},
	}
	output.register(cmd)

	return cmd
}

func tunnelTable(tunnels []account.Tunnel) render.Table {
	t := render.Table{Headers: []string{"name", "status"}}
	for _, tunnel := range tunnels {
		t.AddRow(tunnel.Name, tunnel.Status)
	}
	return t
}
