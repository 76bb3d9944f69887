package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/daskuntal75/CareerCoPilot-sub001/internal/approval"
	"github.com/daskuntal75/CareerCoPilot-sub001/internal/diff"
	"github.com/daskuntal75/CareerCoPilot-sub001/internal/prompts"
	"github.com/daskuntal75/CareerCoPilot-sub001/internal/versions"
)

const actionImportPrompts = "import_prompts"

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Manage versioned prompt templates",
}

var promptsListCmd = &cobra.Command{
	Use:   "list [key]",
	Short: "List versions of a prompt template, newest first",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		zlog, config, db := setup()
		store := versions.NewStore(db, zlog)
		seedDefaults(ctx, store, config.Owner, zlog)

		keys := prompts.Keys()
		if len(args) == 1 {
			keys = []string{args[0]}
		}

		limit, _ := cmd.Flags().GetInt("limit")

		for _, key := range keys {
			history, err := store.List(ctx, config.Owner, key, limit)
			if errors.Is(err, versions.ErrNotFound) {
				continue
			}
			if err != nil {
				zlog.Fatal("listing versions", zap.Error(err), zap.String("content_key", key))
			}

			fmt.Printf("%s\n", key)
			for _, v := range history {
				marker := " "
				if v.IsCurrent {
					marker = "*"
				}
				fmt.Printf("  %s v%-3d id=%-4d %s  %s\n",
					marker, v.VersionNumber, v.ID, v.CreatedAt.Format("2006-01-02 15:04"), v.Label)
			}
		}
	},
}

var promptsShowCmd = &cobra.Command{
	Use:   "show <key>",
	Short: "Print the current template for a key, or a specific version with --id",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		zlog, config, db := setup()
		store := versions.NewStore(db, zlog)
		seedDefaults(ctx, store, config.Owner, zlog)

		id, _ := cmd.Flags().GetUint64("id")

		var v *versions.Version
		var err error
		if id != 0 {
			v, err = store.Get(ctx, config.Owner, id)
		} else {
			v, err = store.Current(ctx, config.Owner, args[0])
		}
		if err != nil {
			zlog.Fatal("loading version", zap.Error(err), zap.String("content_key", args[0]))
		}

		fmt.Println(v.Payload)
	},
}

var promptsSaveCmd = &cobra.Command{
	Use:   "save <key> <file>",
	Short: "Save the file contents as a new version of the template",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		zlog, config, db := setup()
		store := versions.NewStore(db, zlog)
		seedDefaults(ctx, store, config.Owner, zlog)

		key := args[0]
		if !prompts.IsKnown(key) {
			zlog.Fatal("unknown prompt key", zap.String("content_key", key), zap.Strings("known", prompts.Keys()))
		}

		payload, err := os.ReadFile(args[1])
		if err != nil {
			zlog.Fatal("reading template file", zap.Error(err))
		}

		label, _ := cmd.Flags().GetString("label")

		v, err := store.Create(ctx, config.Owner, key, string(payload), label)
		if err != nil {
			zlog.Fatal("saving version", zap.Error(err), zap.String("content_key", key))
		}

		zlog.Info("saved new current version",
			zap.String("content_key", key),
			zap.Int("version_number", v.VersionNumber),
			zap.Uint64("id", v.ID),
		)
	},
}

var promptsRestoreCmd = &cobra.Command{
	Use:   "restore <key> <id>",
	Short: "Make an older version current again by appending a copy of it",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		zlog, config, db := setup()
		store := versions.NewStore(db, zlog)

		id := parseID(args[1], zlog)

		v, err := store.Restore(ctx, config.Owner, args[0], id)
		if err != nil {
			zlog.Fatal("restoring version", zap.Error(err), zap.String("content_key", args[0]))
		}

		zlog.Info("restored version",
			zap.String("content_key", args[0]),
			zap.Int("version_number", v.VersionNumber),
			zap.String("label", v.Label),
		)
	},
}

var promptsLabelCmd = &cobra.Command{
	Use:   "label <id> <label>",
	Short: "Attach a label to a version without creating a new one",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		zlog, config, db := setup()
		store := versions.NewStore(db, zlog)

		id := parseID(args[0], zlog)

		if err := store.Label(ctx, config.Owner, id, args[1]); err != nil {
			zlog.Fatal("labeling version", zap.Error(err), zap.Uint64("id", id))
		}

		zlog.Info("labeled version", zap.Uint64("id", id), zap.String("label", args[1]))
	},
}

var promptsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a non-current version",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		zlog, config, db := setup()
		store := versions.NewStore(db, zlog)

		id := parseID(args[0], zlog)

		if err := store.Delete(ctx, config.Owner, id); err != nil {
			if errors.Is(err, versions.ErrInvalidOperation) {
				zlog.Fatal("refusing to delete the current version; restore another version first", zap.Uint64("id", id))
			}
			zlog.Fatal("deleting version", zap.Error(err), zap.Uint64("id", id))
		}

		zlog.Info("deleted version", zap.Uint64("id", id))
	},
}

var promptsDiffCmd = &cobra.Command{
	Use:   "diff <old-id> <new-id>",
	Short: "Show the line changes between two versions",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		zlog, config, db := setup()
		store := versions.NewStore(db, zlog)

		oldV, err := store.Get(ctx, config.Owner, parseID(args[0], zlog))
		if err != nil {
			zlog.Fatal("loading old version", zap.Error(err))
		}
		newV, err := store.Get(ctx, config.Owner, parseID(args[1], zlog))
		if err != nil {
			zlog.Fatal("loading new version", zap.Error(err))
		}

		printDiff(diff.Lines(oldV.Payload, newV.Payload))
	},
}

var promptsExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export the current version of every template as a JSON document",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		zlog, config, db := setup()
		store := versions.NewStore(db, zlog)
		seedDefaults(ctx, store, config.Owner, zlog)

		doc, err := prompts.Export(ctx, store, config.Owner)
		if err != nil {
			zlog.Fatal("exporting templates", zap.Error(err))
		}

		pretty, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			zlog.Fatal("encoding export document", zap.Error(err))
		}

		if len(args) == 1 {
			if err := os.WriteFile(args[0], append(pretty, '\n'), 0o600); err != nil {
				zlog.Fatal("writing export file", zap.Error(err))
			}
			zlog.Info("exported templates", zap.String("file", args[0]), zap.Int("count", len(doc.Prompts)))
			return
		}

		fmt.Println(string(pretty))
	},
}

var promptsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import templates from an export document (requires confirmation)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		zlog, config, db := setup()
		store := versions.NewStore(db, zlog)

		raw, err := os.ReadFile(args[0])
		if err != nil {
			zlog.Fatal("reading import file", zap.Error(err))
		}

		var payload map[string]any
		if err := json.Unmarshal(raw, &payload); err != nil {
			zlog.Fatal("import document is not valid json", zap.Error(err))
		}

		// Validate the whole document before asking anyone to approve it.
		doc, err := prompts.Decode(payload)
		if err != nil {
			zlog.Fatal("import document rejected", zap.Error(err))
		}

		gate := approval.NewGate(db, zlog)
		ticket, err := gate.Request(ctx, config.Owner, actionImportPrompts, args[0], string(raw))
		if err != nil {
			zlog.Fatal("requesting approval", zap.Error(err))
		}

		fmt.Printf("Importing %d template(s). Approval hash: %s\n", len(doc.Prompts), ticket.Hash)

		if err := confirmWithHash(ctx, gate, config.Owner, ticket); err != nil {
			zlog.Fatal("import not approved", zap.Error(err))
		}

		changed, err := prompts.Import(ctx, store, config.Owner, doc)
		if err != nil {
			zlog.Fatal("applying import", zap.Error(err))
		}

		zlog.Info("imported templates", zap.Strings("changed_keys", changed))
	},
}

// confirmWithHash asks the operator to re-enter the approval hash and
// resolves the ticket with the answer.
func confirmWithHash(ctx context.Context, gate *approval.Gate, owner string, ticket *approval.Ticket) error {
	entry := promptui.Prompt{
		Label: "Re-enter the approval hash to confirm (empty to reject)",
	}

	presented, err := entry.Run()
	if err != nil {
		return err
	}

	if presented == "" {
		if err := gate.Reject(ctx, owner, ticket.ID, ticket.Hash); err != nil {
			return err
		}
		return errors.New("rejected by operator")
	}

	return gate.Approve(ctx, owner, ticket.ID, presented)
}

func printDiff(segments []diff.Segment) {
	for _, s := range segments {
		prefix := " "
		switch s.Op {
		case diff.Added:
			prefix = "+"
		case diff.Removed:
			prefix = "-"
		}
		fmt.Printf("%s %s\n", prefix, s.Text)
	}
}

func parseID(s string, zlog *zap.Logger) uint64 {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		zlog.Fatal("version id must be a number", zap.String("got", s))
	}
	return id
}

func init() {
	rootCmd.AddCommand(promptsCmd)

	promptsCmd.AddCommand(promptsListCmd)
	promptsCmd.AddCommand(promptsShowCmd)
	promptsCmd.AddCommand(promptsSaveCmd)
	promptsCmd.AddCommand(promptsRestoreCmd)
	promptsCmd.AddCommand(promptsLabelCmd)
	promptsCmd.AddCommand(promptsDeleteCmd)
	promptsCmd.AddCommand(promptsDiffCmd)
	promptsCmd.AddCommand(promptsExportCmd)
	promptsCmd.AddCommand(promptsImportCmd)

	promptsListCmd.Flags().IntP("limit", "n", 0, "maximum number of versions per key (0 for all)")
	promptsShowCmd.Flags().Uint64("id", 0, "show a specific version id instead of the current one")
	promptsSaveCmd.Flags().StringP("label", "l", "", "optional label for the new version")
}
