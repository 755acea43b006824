package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/illallangi/cloudflare-tools/internal/account"
	"github.com/illallangi/cloudflare-tools/internal/render"
)

func newIngressesCmd(a *app) *cobra.Command {
	var output outputFlags

	cmd := &cobra.Command{
		Use:   "ingresses",
		Short: "List the ingress rules of every tunnel",
		Long: `List the ingress rules configured on every tunnel of the account, in
tunnel order and then rule order. The catch-all http_status:404 rule is
omitted.

The table view names each rule's tunnel. --json and --yaml write the full
records, which carry tunnel_id instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.newClient()
			if err != nil {
				return err
			}

			stop := a.console.spin(" Fetching ingresses...")
			ingresses, err := client.ListIngresses(cmd.Context())
			stop()
			if err != nil {
				return err
			}

			return render.Write(cmd.OutOrStdout(), output.format(), ingresses, func() (render.Table, error) {
				// Names come from a fresh listing, which the cache answers.
				tunnels, err := client.ListTunnels(cmd.Context())
				if err != nil {
					return render.Table{}, err
				}
				return ingressTable(ingresses, tunnels)
			})
		},
	}
	output.register(cmd)

	return cmd
}

// ingressTable builds every row before anything is written, so a tunnel
// that fails to resolve leaves stdout untouched.
func ingressTable(ingresses []account.Ingress, tunnels []account.Tunnel) (render.Table, error) {
	t := render.Table{Headers: []string{"tunnel", "sort", "url", "service", "origin_request"}}
	for _, ingress := range ingresses {
		name, err := account.ResolveTunnelName(tunnels, ingress.TunnelID)
		if err != nil {
			return render.Table{}, err
		}

		origin, err := json.Marshal(ingress.OriginRequest)
		if err != nil {
			return render.Table{}, fmt.Errorf("failed to encode origin request: %w", err)
		}

		var sort string
		if ingress.Sort != nil {
			sort = *ingress.Sort
		}

		t.AddRow(name, sort, ingress.URL, ingress.Service, string(origin))
	}
	return t, nil
}
