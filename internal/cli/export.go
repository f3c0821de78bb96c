package cli

import (
	"github.com/spf13/cobra"

	"marketing-brain/internal/app"
)

var (
	exportOrg       string
	exportFrom      string
	exportTo        string
	exportPNGPath   string
	exportCSVPath   string
	exportMaxPoints int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export an organization's cycle history as CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := optionalTimeFlag("from", exportFrom)
		if err != nil {
			return err
		}
		to, err := optionalTimeFlag("to", exportTo)
		if err != nil {
			return err
		}

		opts := app.ExportOptions{
			Organization: exportOrg,
			From:         from,
			To:           to,
			PNGPath:      exportPNGPath,
			CSVPath:      exportCSVPath,
			MaxPoints:    exportMaxPoints,
		}

		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOrg, "org", "", "Organization ID")
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "Start timestamp (RFC3339 or YYYY-MM-DD, inclusive)")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "End timestamp (RFC3339 or YYYY-MM-DD, exclusive)")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Maximum data points to export (defaults to config)")
}
