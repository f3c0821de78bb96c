package cli

import (
	"github.com/spf13/cobra"

	"marketing-brain/internal/app"
)

var runNow bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduled brain cycles until interrupted (SIGHUP triggers a cycle)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Run(cmd.Context(), app.RunOptions{Immediate: runNow})
	},
}

func init() {
	runCmd.Flags().BoolVar(&runNow, "now", false, "Run one cycle immediately instead of waiting for the first tick")
}
