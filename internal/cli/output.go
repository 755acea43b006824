package cli

import (
	"github.com/spf13/cobra"

	"github.com/illallangi/cloudflare-tools/internal/render"
)

// outputFlags are the --json and --yaml switches shared by the listing
// commands.
type outputFlags struct {
	json bool
	yaml bool
}

func (o *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.json, "json", false, "Write the records as a JSON array")
	cmd.Flags().BoolVar(&o.yaml, "yaml", false, "Write the records as a YAML sequence")
	cmd.MarkFlagsMutuallyExclusive("json", "yaml")
}

func (o *outputFlags) format() render.Format {
	switch {
	case o.json:
		return render.FormatJSON
	case o.yaml:
		return render.FormatYAML
	default:
		return render.FormatTable
	}
}
