package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/daskuntal75/CareerCoPilot-sub001/internal/approval"
	"github.com/daskuntal75/CareerCoPilot-sub001/internal/prompts"
	"github.com/daskuntal75/CareerCoPilot-sub001/internal/versions"
)

const (
	reviewApprove = "Approve (enter hash)"
	reviewReject  = "Reject (enter hash)"
	reviewSkip    = "Skip"
	reviewExit    = "Exit"
)

var approvalsCmd = &cobra.Command{
	Use:   "approvals",
	Short: "Review pending approval requests",
}

var approvalsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending approval requests that are still inside their window",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		zlog, config, db := setup()
		gate := approval.NewGate(db, zlog)

		pending, err := gate.ListPending(ctx, config.Owner)
		if err != nil {
			zlog.Fatal("listing pending approvals", zap.Error(err))
		}

		if len(pending) == 0 {
			fmt.Println("No pending approval requests.")
			return
		}

		for _, req := range pending {
			fmt.Printf("%s  %-20s %-30s expires %s\n",
				req.ID, req.ActionType, req.ActionTarget, req.ExpiresAt().Format("15:04:05"))
		}
	},
}

var approvalsReviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Walk through pending requests and approve or reject each",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		zlog, config, db := setup()
		gate := approval.NewGate(db, zlog)

		for {
			pending, err := gate.ListPending(ctx, config.Owner)
			if err != nil {
				zlog.Fatal("listing pending approvals", zap.Error(err))
			}

			if len(pending) == 0 {
				fmt.Println("No pending approval requests.")
				return
			}

			items := make([]string, 0, len(pending)+1)
			for _, req := range pending {
				items = append(items, fmt.Sprintf("%s %s %s", req.ID, req.ActionType, req.ActionTarget))
			}
			items = append(items, reviewExit)

			pick := promptui.Select{
				Label: "Choose a request and press ENTER",
				Items: items,
			}

			idx, selected, err := pick.Run()
			if err != nil {
				zlog.Fatal("exiting", zap.Error(err))
			}
			if selected == reviewExit {
				return
			}

			if err := reviewOne(ctx, db, gate, config.Owner, pending[idx], zlog); err != nil {
				zlog.Warn("review step failed", zap.Error(err), zap.String("id", pending[idx].ID))
			}
		}
	},
}

func reviewOne(ctx context.Context, db *gorm.DB, gate *approval.Gate, owner string, req *approval.Request, zlog *zap.Logger) error {
	action := promptui.Select{
		Label: fmt.Sprintf("%s on %s", req.ActionType, req.ActionTarget),
		Items: []string{reviewApprove, reviewReject, reviewSkip},
	}

	_, choice, err := action.Run()
	if err != nil {
		return err
	}
	if choice == reviewSkip {
		return nil
	}

	entry := promptui.Prompt{Label: "Approval hash"}
	presented, err := entry.Run()
	if err != nil {
		return err
	}

	switch choice {
	case reviewApprove:
		if err := gate.Approve(ctx, owner, req.ID, presented); err != nil {
			return fmt.Errorf("approve: %w", err)
		}
		zlog.Info("approved request", zap.String("id", req.ID), zap.String("action_type", req.ActionType))
		return executeApproved(ctx, db, owner, req, zlog)
	case reviewReject:
		if err := gate.Reject(ctx, owner, req.ID, presented); err != nil {
			return fmt.Errorf("reject: %w", err)
		}
		zlog.Info("rejected request", zap.String("id", req.ID), zap.String("action_type", req.ActionType))
		return nil
	default:
		return fmt.Errorf("invalid choice: %s", choice)
	}
}

// executeApproved carries out the action an approved request was gating.
func executeApproved(ctx context.Context, db *gorm.DB, owner string, req *approval.Request, zlog *zap.Logger) error {
	store := versions.NewStore(db, zlog)

	switch req.ActionType {
	case actionImportPrompts:
		var payload map[string]any
		if err := json.Unmarshal([]byte(req.ActionData), &payload); err != nil {
			return fmt.Errorf("decode import document: %w", err)
		}

		doc, err := prompts.Decode(payload)
		if err != nil {
			return err
		}

		changed, err := prompts.Import(ctx, store, owner, doc)
		if err != nil {
			return err
		}

		zlog.Info("imported templates", zap.Strings("changed_keys", changed))
		return nil
	case actionPromoteExperiment:
		var promo promotion
		if err := json.Unmarshal([]byte(req.ActionData), &promo); err != nil {
			return fmt.Errorf("decode promotion payload: %w", err)
		}
		if promo.Key == "" || promo.Payload == "" {
			return errors.New("promotion payload is incomplete")
		}

		v, err := store.Create(ctx, owner, promo.Key, promo.Payload, promo.Label)
		if err != nil {
			return err
		}

		zlog.Info("promoted experiment winner",
			zap.String("content_key", promo.Key),
			zap.Int("version_number", v.VersionNumber),
		)
		return nil
	default:
		return fmt.Errorf("no executor for action type: %s", req.ActionType)
	}
}

func init() {
	rootCmd.AddCommand(approvalsCmd)
	approvalsCmd.AddCommand(approvalsListCmd)
	approvalsCmd.AddCommand(approvalsReviewCmd)
}
