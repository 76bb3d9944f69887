package approval

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const testOwner = "user-1"

func newTestGate(t *testing.T) *Gate {
	t.Helper()

	path := filepath.Join(t.TempDir(), "governance.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	if err := db.AutoMigrate(&Request{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	return NewGate(db, zap.NewNop())
}

func withClock(t *testing.T, at time.Time) func(time.Time) {
	t.Helper()

	original := now
	current := at
	now = func() time.Time { return current }
	t.Cleanup(func() { now = original })

	return func(next time.Time) { current = next }
}

func TestApproveFlow(t *testing.T) {
	gate := newTestGate(t)
	ctx := context.Background()

	ticket, err := gate.Request(ctx, testOwner, "promote_experiment", "prompt.cover_letter", "{}")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if ticket.ID == "" || len(ticket.Hash) != 32 {
		t.Fatalf("unexpected ticket: %+v", ticket)
	}

	if err := gate.Approve(ctx, testOwner, ticket.ID, "wrong"); !errors.Is(err, ErrHashMismatch) {
		t.Fatalf("expected ErrHashMismatch, got %v", err)
	}

	if err := gate.Approve(ctx, testOwner, ticket.ID, ticket.Hash); err != nil {
		t.Fatalf("approve: %v", err)
	}

	req, err := gate.Get(ctx, testOwner, ticket.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if req.Status != StatusApproved || req.ApprovedAt == nil {
		t.Fatalf("unexpected request after approval: %+v", req)
	}

	if err := gate.Approve(ctx, testOwner, ticket.ID, ticket.Hash); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("expected ErrAlreadyResolved on second approve, got %v", err)
	}
}

func TestApprovalWindowBoundary(t *testing.T) {
	gate := newTestGate(t)
	ctx := context.Background()

	createdAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	advance := withClock(t, createdAt)

	ticket, err := gate.Request(ctx, testOwner, "import_prompts", "", "")
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	advance(createdAt.Add(Window - time.Second))
	if err := gate.Approve(ctx, testOwner, ticket.ID, ticket.Hash); err != nil {
		t.Fatalf("approve just inside window: %v", err)
	}

	// The second request is born at the advanced clock; its window runs
	// from its own creation instant.
	createdAt2 := createdAt.Add(Window - time.Second)
	ticket2, err := gate.Request(ctx, testOwner, "import_prompts", "", "")
	if err != nil {
		t.Fatalf("second request: %v", err)
	}

	advance(createdAt2.Add(Window + time.Second))
	if err := gate.Approve(ctx, testOwner, ticket2.ID, ticket2.Hash); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired past window, got %v", err)
	}
}

func TestRejectRequiresHash(t *testing.T) {
	gate := newTestGate(t)
	ctx := context.Background()

	ticket, err := gate.Request(ctx, testOwner, "delete_version", "prompt.cover_letter", "")
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	if err := gate.Reject(ctx, testOwner, ticket.ID, "nope"); !errors.Is(err, ErrHashMismatch) {
		t.Fatalf("expected ErrHashMismatch on reject, got %v", err)
	}

	if err := gate.Reject(ctx, testOwner, ticket.ID, ticket.Hash); err != nil {
		t.Fatalf("reject: %v", err)
	}

	req, err := gate.Get(ctx, testOwner, ticket.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if req.Status != StatusRejected || req.ApprovedAt != nil {
		t.Fatalf("unexpected request after reject: %+v", req)
	}
}

func TestRejectAllowedAfterExpiry(t *testing.T) {
	gate := newTestGate(t)
	ctx := context.Background()

	createdAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	advance := withClock(t, createdAt)

	ticket, err := gate.Request(ctx, testOwner, "delete_version", "", "")
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	advance(createdAt.Add(Window + time.Minute))
	if err := gate.Reject(ctx, testOwner, ticket.ID, ticket.Hash); err != nil {
		t.Fatalf("reject after expiry: %v", err)
	}
}

func TestListPendingOmitsExpiredAndForeign(t *testing.T) {
	gate := newTestGate(t)
	ctx := context.Background()

	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	advance := withClock(t, start)

	stale, err := gate.Request(ctx, testOwner, "promote_experiment", "", "")
	if err != nil {
		t.Fatalf("stale request: %v", err)
	}

	advance(start.Add(Window + time.Second))

	fresh, err := gate.Request(ctx, testOwner, "promote_experiment", "", "")
	if err != nil {
		t.Fatalf("fresh request: %v", err)
	}

	if _, err := gate.Request(ctx, "someone-else", "promote_experiment", "", ""); err != nil {
		t.Fatalf("foreign request: %v", err)
	}

	pending, err := gate.ListPending(ctx, testOwner)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}

	if len(pending) != 1 {
		t.Fatalf("expected 1 pending request, got %d", len(pending))
	}
	if pending[0].ID != fresh.ID {
		t.Fatalf("expected fresh request %s, got %s", fresh.ID, pending[0].ID)
	}

	// The stale row stays stored as pending; expiry is derived, not swept.
	req, err := gate.Get(ctx, testOwner, stale.ID)
	if err != nil {
		t.Fatalf("get stale: %v", err)
	}
	if req.Status != StatusPending {
		t.Fatalf("expiry must not be written back, got status %s", req.Status)
	}
	if !req.ExpiredAt(now()) {
		t.Fatalf("stale request should report expired")
	}
}

func TestCrossOwnerResolutionDenied(t *testing.T) {
	gate := newTestGate(t)
	ctx := context.Background()

	ticket, err := gate.Request(ctx, testOwner, "promote_experiment", "", "")
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	if err := gate.Approve(ctx, "intruder", ticket.ID, ticket.Hash); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}
