package cli

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"marketing-brain/internal/app"
)

var (
	simulateFixture string
	simulateOrg     string
	simulateAsOf    string
	simulateJSON    bool
	simulateNotify  bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "基于本地数据文件模拟一次完整周期（不写入历史）",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateFixture == "" {
			return errors.New("--fixture 必须提供")
		}

		asOf := time.Now().UTC()
		if simulateAsOf != "" {
			parsed, err := parseTimeFlag("as-of", simulateAsOf)
			if err != nil {
				return err
			}
			asOf = parsed
		}

		opts := app.SimulateOptions{
			FixturePath:  simulateFixture,
			Organization: simulateOrg,
			AsOf:         asOf,
			JSON:         simulateJSON,
			Notify:       simulateNotify,
		}
		return getApp().Simulate(cmd.Context(), opts)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateFixture, "fixture", "", "YAML 或 JSON 数据文件")
	simulateCmd.Flags().StringVar(&simulateOrg, "org", "demo", "组织 ID")
	simulateCmd.Flags().StringVar(&simulateAsOf, "as-of", "", "周期时间（RFC3339 或 YYYY-MM-DD，默认当前时间）")
	simulateCmd.Flags().BoolVar(&simulateJSON, "json", false, "以 JSON 输出完整结果")
	simulateCmd.Flags().BoolVar(&simulateNotify, "notify", false, "同时发送告警")
}
