package approval

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrNotFound indicates the approval request does not exist.
	ErrNotFound = errors.New("approval request not found")
	// ErrExpired indicates the request outlived its confirmation window.
	ErrExpired = errors.New("approval request expired")
	// ErrHashMismatch indicates the presented hash does not match the stored one.
	ErrHashMismatch = errors.New("approval hash mismatch")
	// ErrAlreadyResolved indicates the request was already approved or rejected.
	ErrAlreadyResolved = errors.New("approval request already resolved")
	// ErrUnauthorized indicates an attempt to touch another owner's request.
	ErrUnauthorized = errors.New("unauthorized")
)

// now is a seam for tests to control the clock.
var now = time.Now

// Gate is the time-boxed human confirmation workflow for sensitive actions.
// Any automated or agent-initiated mutation asks the gate first; the mutation
// proceeds only once a human re-presents the hash within the window.
type Gate struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewGate(db *gorm.DB, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{db: db, logger: logger}
}

// Request records a pending confirmation and returns the ticket the caller
// must keep to resolve it.
func (g *Gate) Request(ctx context.Context, owner, actionType, target, data string) (*Ticket, error) {
	owner = strings.TrimSpace(owner)
	actionType = strings.TrimSpace(actionType)
	if owner == "" || actionType == "" {
		return nil, errors.New("owner and action type are required")
	}

	hash, err := newHash()
	if err != nil {
		return nil, err
	}

	req := &Request{
		ID:           uuid.NewString(),
		Owner:        owner,
		ActionType:   actionType,
		ActionTarget: strings.TrimSpace(target),
		ActionData:   data,
		ApprovalHash: hash,
		Status:       StatusPending,
		CreatedAt:    now(),
	}

	if err := g.db.WithContext(ctx).Create(req).Error; err != nil {
		return nil, fmt.Errorf("create approval request: %w", err)
	}

	g.logger.Info("approval requested",
		zap.String("approval_id", req.ID),
		zap.String("action_type", actionType),
		zap.String("action_target", req.ActionTarget),
		zap.Time("expires_at", req.ExpiresAt()),
	)

	return &Ticket{ID: req.ID, Hash: hash}, nil
}

// Approve resolves a pending request. It fails with ErrAlreadyResolved when
// the request is no longer pending, ErrHashMismatch when the presented hash
// is wrong, and ErrExpired when the window has passed. The stored row is only
// mutated on success.
func (g *Gate) Approve(ctx context.Context, owner, id, presentedHash string) error {
	return g.resolve(ctx, owner, id, presentedHash, StatusApproved)
}

// Reject resolves a pending request negatively. The hash is required here
// too: without it, anyone holding an id could void a pending request.
func (g *Gate) Reject(ctx context.Context, owner, id, presentedHash string) error {
	return g.resolve(ctx, owner, id, presentedHash, StatusRejected)
}

func (g *Gate) resolve(ctx context.Context, owner, id, presentedHash string, to Status) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var req Request
		if err := tx.First(&req, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", ErrNotFound, id)
			}
			return fmt.Errorf("load approval request: %w", err)
		}

		if req.Owner != owner {
			return fmt.Errorf("%w: request %s belongs to another owner", ErrUnauthorized, id)
		}

		if req.Status != StatusPending {
			return fmt.Errorf("%w: request %s is %s", ErrAlreadyResolved, id, req.Status)
		}

		if req.ApprovalHash != strings.TrimSpace(presentedHash) {
			return fmt.Errorf("%w: request %s", ErrHashMismatch, id)
		}

		// Approval is time-boxed; rejection of an overdue request is allowed
		// since it only narrows what the request could do.
		resolvedAt := now()
		if to == StatusApproved && req.ExpiredAt(resolvedAt) {
			return fmt.Errorf("%w: request %s expired at %s", ErrExpired, id, req.ExpiresAt().Format(time.RFC3339))
		}

		updates := map[string]any{"status": to}
		if to == StatusApproved {
			updates["approved_at"] = resolvedAt
		}

		result := tx.Model(&Request{}).
			Where("id = ? AND status = ?", id, StatusPending).
			Updates(updates)
		if result.Error != nil {
			return fmt.Errorf("resolve approval request: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: request %s", ErrAlreadyResolved, id)
		}

		g.logger.Info("approval resolved",
			zap.String("approval_id", id),
			zap.String("status", string(to)),
		)

		return nil
	})
}

// Get returns one request, enforcing the owner scope.
func (g *Gate) Get(ctx context.Context, owner, id string) (*Request, error) {
	var req Request
	if err := g.db.WithContext(ctx).First(&req, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("load approval request: %w", err)
	}

	if req.Owner != owner {
		return nil, fmt.Errorf("%w: request %s belongs to another owner", ErrUnauthorized, id)
	}

	return &req, nil
}

// ListPending returns the owner's still-confirmable requests, oldest first.
// Pending rows that outlived the window are treated as expired and omitted;
// there is no background sweep.
func (g *Gate) ListPending(ctx context.Context, owner string) ([]*Request, error) {
	cutoff := now().Add(-Window)

	var pending []*Request
	err := g.db.WithContext(ctx).
		Where("owner = ? AND status = ? AND created_at > ?", owner, StatusPending, cutoff).
		Order("created_at ASC").
		Find(&pending).Error
	if err != nil {
		return nil, fmt.Errorf("list pending approvals: %w", err)
	}

	return pending, nil
}

func newHash() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate approval hash: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
