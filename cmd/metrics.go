package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/daskuntal75/CareerCoPilot-sub001/internal/telemetry"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show satisfaction metrics for a template",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		zlog, config, db := setup()

		key, _ := cmd.Flags().GetString("key")
		versionNumber, _ := cmd.Flags().GetInt("version")

		aggregator := telemetry.NewAggregator(db, zlog)
		metrics, err := aggregator.Metrics(ctx, config.Owner, key, versionNumber)
		if err != nil {
			zlog.Fatal("aggregating metrics", zap.Error(err), zap.String("content_key", key))
		}

		pretty, err := json.MarshalIndent(metrics, "", "  ")
		if err != nil {
			zlog.Fatal("encoding metrics", zap.Error(err))
		}

		fmt.Println(string(pretty))
	},
}

func init() {
	rootCmd.AddCommand(metricsCmd)

	metricsCmd.Flags().StringP("key", "k", "", "content key to aggregate")
	metricsCmd.Flags().IntP("version", "v", 0, "restrict to one version number (0 for all versions)")
	metricsCmd.MarkFlagRequired("key")
}
