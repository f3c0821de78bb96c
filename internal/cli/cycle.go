package cli

import (
	"time"

	"github.com/spf13/cobra"

	"marketing-brain/internal/app"
)

var (
	cycleOrg    string
	cycleAsOf   string
	cycleDryRun bool
	cycleJSON   bool
)

var cycleCmd = &cobra.Command{
	Use:   "cycle",
	Short: "Run a single brain cycle for one organization",
	RunE: func(cmd *cobra.Command, args []string) error {
		asOf := time.Now().UTC()
		if cycleAsOf != "" {
			parsed, err := parseTimeFlag("as-of", cycleAsOf)
			if err != nil {
				return err
			}
			asOf = parsed
		}

		opts := app.CycleOptions{
			Organization: cycleOrg,
			AsOf:         asOf,
			DryRun:       cycleDryRun,
			JSON:         cycleJSON,
		}
		return getApp().Cycle(cmd.Context(), opts)
	},
}

func init() {
	cycleCmd.Flags().StringVar(&cycleOrg, "org", "", "Organization ID")
	cycleCmd.Flags().StringVar(&cycleAsOf, "as-of", "", "Cycle timestamp (RFC3339 or YYYY-MM-DD, defaults to now)")
	cycleCmd.Flags().BoolVar(&cycleDryRun, "dry-run", false, "Compute without persisting, caching or alerting")
	cycleCmd.Flags().BoolVar(&cycleJSON, "json", false, "Print the full result as JSON")
	_ = cycleCmd.MarkFlagRequired("org")
}
