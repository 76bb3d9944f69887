package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/daskuntal75/CareerCoPilot-sub001/internal/ai"
	"github.com/daskuntal75/CareerCoPilot-sub001/internal/approval"
	"github.com/daskuntal75/CareerCoPilot-sub001/internal/diff"
	"github.com/daskuntal75/CareerCoPilot-sub001/internal/experiment"
	"github.com/daskuntal75/CareerCoPilot-sub001/internal/prompts"
	"github.com/daskuntal75/CareerCoPilot-sub001/internal/versions"
)

const actionPromoteExperiment = "promote_experiment"

// promotion is the action payload stored on a promote_experiment approval
// request.
type promotion struct {
	Key     string `json:"key"`
	Payload string `json:"payload"`
	Label   string `json:"label"`
}

var experimentCmd = &cobra.Command{
	Use:   "experiment",
	Short: "Generate with the current template and a candidate side by side",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		zlog, config, db := setup()
		store := versions.NewStore(db, zlog)
		seedDefaults(ctx, store, config.Owner, zlog)

		key, _ := cmd.Flags().GetString("key")
		candidateFile, _ := cmd.Flags().GetString("candidate")
		inputFile, _ := cmd.Flags().GetString("input")

		docType, ok := prompts.DocType(key)
		if !ok {
			zlog.Fatal("unknown prompt key", zap.String("content_key", key), zap.Strings("known", prompts.Keys()))
		}

		current, err := store.Current(ctx, config.Owner, key)
		if err != nil {
			zlog.Fatal("loading current template", zap.Error(err), zap.String("content_key", key))
		}

		candidate, err := os.ReadFile(candidateFile)
		if err != nil {
			zlog.Fatal("reading candidate template", zap.Error(err))
		}

		input, err := os.ReadFile(inputFile)
		if err != nil {
			zlog.Fatal("reading input file", zap.Error(err))
		}

		generator, err := newGenerator(ctx, config.AI, zlog)
		if err != nil {
			zlog.Fatal("building generation client", zap.Error(err))
		}

		runner := experiment.NewRunner(generator, zlog)
		result := runner.Run(ctx,
			experiment.Variant{
				Name: fmt.Sprintf("current (v%d)", current.VersionNumber),
				Request: ai.Request{
					SystemPrompt: current.Payload,
					UserPrompt:   string(input),
					Type:         docType,
				},
			},
			experiment.Variant{
				Name: "candidate",
				Request: ai.Request{
					SystemPrompt: string(candidate),
					UserPrompt:   string(input),
					Type:         docType,
				},
			},
		)

		printOutcome(result.A)
		printOutcome(result.B)

		if result.A.Err == nil && result.B.Err == nil {
			fmt.Println("=== output diff (current -> candidate) ===")
			printDiff(diff.Lines(result.A.Content, result.B.Content))
		}

		if result.B.Err != nil {
			zlog.Info("candidate failed, nothing to promote")
			return
		}

		promote := promptui.Select{
			Label: "Promote the candidate template to a new current version?",
			Items: []string{"Yes", "No"},
		}
		_, answer, err := promote.Run()
		if err != nil || answer != "Yes" {
			return
		}

		promoPayload, err := json.Marshal(promotion{
			Key:     key,
			Payload: string(candidate),
			Label:   "Promoted from experiment",
		})
		if err != nil {
			zlog.Fatal("encoding promotion payload", zap.Error(err))
		}

		gate := approval.NewGate(db, zlog)
		ticket, err := gate.Request(ctx, config.Owner, actionPromoteExperiment, key, string(promoPayload))
		if err != nil {
			zlog.Fatal("requesting approval", zap.Error(err))
		}

		fmt.Printf("Approval hash: %s\n", ticket.Hash)

		if err := confirmWithHash(ctx, gate, config.Owner, ticket); err != nil {
			zlog.Fatal("promotion not approved", zap.Error(err))
		}

		v, err := store.Create(ctx, config.Owner, key, string(candidate), "Promoted from experiment")
		if err != nil {
			zlog.Fatal("promoting candidate", zap.Error(err))
		}

		zlog.Info("promoted candidate",
			zap.String("content_key", key),
			zap.Int("version_number", v.VersionNumber),
		)
	},
}

func printOutcome(o experiment.Outcome) {
	fmt.Printf("=== %s (%s) ===\n", o.Name, o.Elapsed.Round(10*time.Millisecond))
	if o.Err != nil {
		fmt.Printf("failed: %v\n\n", o.Err)
		return
	}
	fmt.Printf("%s\n\n", o.Content)
}

func init() {
	rootCmd.AddCommand(experimentCmd)

	experimentCmd.Flags().StringP("key", "k", "", "content key of the template under test")
	experimentCmd.Flags().StringP("candidate", "c", "", "file with the candidate template")
	experimentCmd.Flags().StringP("input", "i", "", "file with the user input (resume, job posting)")

	experimentCmd.MarkFlagRequired("key")
	experimentCmd.MarkFlagRequired("candidate")
	experimentCmd.MarkFlagRequired("input")
}
