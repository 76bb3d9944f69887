package prompts

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/daskuntal75/CareerCoPilot-sub001/internal/versions"
)

const testOwner = "user-1"

func newTestStore(t *testing.T) *versions.Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "governance.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	if err := db.AutoMigrate(&versions.Version{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	return versions.NewStore(db, zap.NewNop())
}

func TestDecodeValidDocument(t *testing.T) {
	t.Parallel()

	raw := map[string]any{
		"exported_at": "2025-06-01T12:00:00Z",
		"version":     1,
		"prompts": map[string]any{
			KeyCoverLetter: "write a letter",
		},
	}

	doc, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if doc.Version != 1 || doc.Prompts[KeyCoverLetter] != "write a letter" {
		t.Fatalf("unexpected document: %+v", doc)
	}
}

func TestDecodeRejectsMalformedDocuments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  map[string]any
	}{
		{
			name: "nil document",
			raw:  nil,
		},
		{
			name: "missing version",
			raw: map[string]any{
				"prompts": map[string]any{KeyCoverLetter: "x"},
			},
		},
		{
			name: "missing prompts",
			raw: map[string]any{
				"version": 1,
			},
		},
		{
			name: "empty prompts",
			raw: map[string]any{
				"version": 1,
				"prompts": map[string]any{},
			},
		},
		{
			name: "unknown prompt key",
			raw: map[string]any{
				"version": 1,
				"prompts": map[string]any{"prompt.unknown": "x"},
			},
		},
		{
			name: "empty template",
			raw: map[string]any{
				"version": 1,
				"prompts": map[string]any{KeyCoverLetter: "   "},
			},
		},
		{
			name: "non-string template",
			raw: map[string]any{
				"version": 1,
				"prompts": map[string]any{KeyCoverLetter: 42},
			},
		},
		{
			name: "unsupported version",
			raw: map[string]any{
				"version": 99,
				"prompts": map[string]any{KeyCoverLetter: "x"},
			},
		},
		{
			name: "unknown top-level field",
			raw: map[string]any{
				"version":  1,
				"prompts":  map[string]any{KeyCoverLetter: "x"},
				"injected": true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := Decode(tt.raw); !errors.Is(err, ErrInvalidFormat) {
				t.Fatalf("expected ErrInvalidFormat, got %v", err)
			}
		})
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Create(ctx, testOwner, KeyCoverLetter, "letter template", ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.Create(ctx, testOwner, KeyInterviewPrep, "prep template", ""); err != nil {
		t.Fatalf("create: %v", err)
	}

	doc, err := Export(ctx, store, testOwner)
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	if doc.Version != DocumentVersion || doc.ExportedAt == "" {
		t.Fatalf("unexpected document header: %+v", doc)
	}
	if len(doc.Prompts) != 2 {
		t.Fatalf("expected 2 exported prompts, got %d", len(doc.Prompts))
	}

	// Change one template, then import the snapshot to roll it back.
	if _, err := store.Create(ctx, testOwner, KeyCoverLetter, "edited template", ""); err != nil {
		t.Fatalf("edit: %v", err)
	}

	applied, err := Import(ctx, store, testOwner, doc)
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	if len(applied) != 1 || applied[0] != KeyCoverLetter {
		t.Fatalf("expected only the edited key applied, got %v", applied)
	}

	current, err := store.Current(ctx, testOwner, KeyCoverLetter)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if current.Payload != "letter template" || current.VersionNumber != 3 {
		t.Fatalf("unexpected version after import: %+v", current)
	}

	// Unchanged keys are not re-versioned.
	prep, err := store.Current(ctx, testOwner, KeyInterviewPrep)
	if err != nil {
		t.Fatalf("current prep: %v", err)
	}
	if prep.VersionNumber != 1 {
		t.Fatalf("identical template must not bump version, got v%d", prep.VersionNumber)
	}
}

func TestImportRejectsInvalidDocumentWithoutWriting(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	doc := &Document{
		Version: DocumentVersion,
		Prompts: map[string]string{
			KeyCoverLetter:   "valid template",
			"prompt.unknown": "sneaky",
		},
	}

	if _, err := Import(ctx, store, testOwner, doc); !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat, got %v", err)
	}

	// Nothing may be applied from a rejected document.
	if _, err := store.Current(ctx, testOwner, KeyCoverLetter); !errors.Is(err, versions.ErrNotFound) {
		t.Fatalf("expected no versions written, got %v", err)
	}
}

func TestImportRollsBackOnBackendFailure(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "governance.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&versions.Version{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	// Fail the insert of the second key so the first key's write must be
	// rolled back with it.
	err = db.Callback().Create().Before("gorm:create").Register("fail_second_key", func(tx *gorm.DB) {
		if v, ok := tx.Statement.Dest.(*versions.Version); ok && v.ContentKey == KeyInterviewPrep {
			tx.AddError(errors.New("backend failure"))
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	store := versions.NewStore(db, zap.NewNop())
	ctx := context.Background()

	doc := &Document{
		Version: DocumentVersion,
		Prompts: map[string]string{
			KeyCoverLetter:   "letter template",
			KeyInterviewPrep: "prep template",
		},
	}

	if _, err := Import(ctx, store, testOwner, doc); err == nil {
		t.Fatal("expected import to fail")
	}

	// No key may keep a version from the failed import.
	for _, key := range []string{KeyCoverLetter, KeyInterviewPrep} {
		if _, err := store.Current(ctx, testOwner, key); !errors.Is(err, versions.ErrNotFound) {
			t.Fatalf("expected no versions for %s after rollback, got %v", key, err)
		}
	}
}

func TestSeedCreatesMissingDefaultsOnly(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Create(ctx, testOwner, KeyCoverLetter, "custom letter", ""); err != nil {
		t.Fatalf("create: %v", err)
	}

	seeded, err := Seed(ctx, store, testOwner)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	if len(seeded) != 2 {
		t.Fatalf("expected 2 seeded keys, got %v", seeded)
	}

	custom, err := store.Current(ctx, testOwner, KeyCoverLetter)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if custom.Payload != "custom letter" {
		t.Fatalf("seed must not overwrite existing versions: %+v", custom)
	}

	for _, key := range seeded {
		v, err := store.Current(ctx, testOwner, key)
		if err != nil {
			t.Fatalf("current %s: %v", key, err)
		}
		if v.VersionNumber != 1 || v.Label != "Default" {
			t.Fatalf("unexpected seeded version for %s: %+v", key, v)
		}
	}
}
