package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"marketing-brain/internal/app"
)

var (
	backfillFrom   string
	backfillTo     string
	backfillOrgs   []string
	backfillDryRun bool
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Replay one cycle per day over a historical range",
	RunE: func(cmd *cobra.Command, args []string) error {
		if backfillFrom == "" || backfillTo == "" {
			return fmt.Errorf("--from and --to must be provided")
		}

		from, err := parseTimeFlag("from", backfillFrom)
		if err != nil {
			return err
		}

		to, err := parseTimeFlag("to", backfillTo)
		if err != nil {
			return err
		}

		if !from.Before(to) {
			return fmt.Errorf("--from must be before --to")
		}

		opts := app.BackfillOptions{
			Organizations: backfillOrgs,
			From:          from,
			To:            to,
			DryRun:        backfillDryRun,
		}

		return getApp().Backfill(cmd.Context(), opts)
	},
}

func init() {
	backfillCmd.Flags().StringVar(&backfillFrom, "from", "", "Start date (RFC3339 or YYYY-MM-DD, inclusive)")
	backfillCmd.Flags().StringVar(&backfillTo, "to", "", "End date (RFC3339 or YYYY-MM-DD, exclusive)")
	backfillCmd.Flags().StringSliceVar(&backfillOrgs, "org", nil, "Organizations to backfill (defaults to brain.organizations)")
	backfillCmd.Flags().BoolVar(&backfillDryRun, "dry-run", false, "Run without writing to storage")
}
