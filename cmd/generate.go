package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/daskuntal75/CareerCoPilot-sub001/internal/ai"
	"github.com/daskuntal75/CareerCoPilot-sub001/internal/prompts"
	"github.com/daskuntal75/CareerCoPilot-sub001/internal/telemetry"
	"github.com/daskuntal75/CareerCoPilot-sub001/internal/versions"
)

var generateCmd = &cobra.Command{
	Use:   "generate <key>",
	Short: "Generate a career document with the current template for a key",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		zlog, config, db := setup()
		store := versions.NewStore(db, zlog)
		seedDefaults(ctx, store, config.Owner, zlog)

		key := args[0]

		docType, ok := prompts.DocType(key)
		if !ok {
			zlog.Fatal("unknown prompt key", zap.String("content_key", key), zap.Strings("known", prompts.Keys()))
		}

		inputFile, _ := cmd.Flags().GetString("input")
		input, err := os.ReadFile(inputFile)
		if err != nil {
			zlog.Fatal("reading input file", zap.Error(err))
		}

		current, err := store.Current(ctx, config.Owner, key)
		if err != nil {
			zlog.Fatal("loading current template", zap.Error(err), zap.String("content_key", key))
		}

		generator, err := newGenerator(ctx, config.AI, zlog)
		if err != nil {
			zlog.Fatal("building generation client", zap.Error(err))
		}

		output, err := generator.Generate(ctx, ai.Request{
			SystemPrompt: current.Payload,
			UserPrompt:   string(input),
			Type:         docType,
		})
		if err != nil {
			zlog.Fatal("generation failed", zap.Error(err), zap.String("content_key", key))
		}

		fmt.Println(output)

		aggregator := telemetry.NewAggregator(db, zlog)
		telemetryID, err := aggregator.Track(ctx, config.Owner, key, current.VersionNumber, "generate",
			fmt.Sprintf(`{"model":%q}`, generator.Model()))
		if err != nil {
			zlog.Warn("recording telemetry", zap.Error(err))
			return
		}

		fmt.Printf("telemetry id: %s (rate it with: %s rate %s <1-5>)\n", telemetryID, app, telemetryID)
	},
}

var rateCmd = &cobra.Command{
	Use:   "rate <telemetry-id> <rating>",
	Short: "Rate a generated document from 1 (poor) to 5 (great)",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		zlog, config, db := setup()

		rating, err := strconv.Atoi(args[1])
		if err != nil {
			zlog.Fatal("rating must be a number between 1 and 5", zap.String("got", args[1]))
		}

		aggregator := telemetry.NewAggregator(db, zlog)
		if err := aggregator.Rate(ctx, config.Owner, args[0], rating); err != nil {
			zlog.Fatal("rating telemetry record", zap.Error(err), zap.String("telemetry_id", args[0]))
		}

		zlog.Info("rating recorded", zap.String("telemetry_id", args[0]), zap.Int("rating", rating))
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(rateCmd)

	generateCmd.Flags().StringP("input", "i", "", "file with the user input (resume, job posting)")
	generateCmd.MarkFlagRequired("input")
}
