package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"marketing-brain/internal/app"
)

var (
	showLimit  int
	showOrg    string
	showLatest bool
	showJSON   bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recent cycles or the latest full result",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			Organization: showOrg,
			Limit:        showLimit,
			Latest:       showLatest,
			JSON:         showJSON,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of cycles to display")
	showCmd.Flags().StringVar(&showOrg, "org", "", "Restrict to one organization")
	showCmd.Flags().BoolVar(&showLatest, "latest", false, "Print the latest full cycle result (requires --org)")
	showCmd.Flags().BoolVar(&showJSON, "json", false, "Print the latest result as JSON")
}
