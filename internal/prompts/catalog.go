// Package prompts owns the catalog of governed prompt templates for the
// product's artifact families and the export/import document around them.
package prompts

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/daskuntal75/CareerCoPilot-sub001/internal/ai"
	"github.com/daskuntal75/CareerCoPilot-sub001/internal/versions"
)

const (
	KeyCoverLetter   = "prompt.cover_letter"
	KeyInterviewPrep = "prompt.interview_prep"
	KeyResumeSummary = "prompt.resume_summary"
)

//go:embed defaults/*.md
var defaultsFS embed.FS

var catalog = map[string]struct {
	file    string
	docType ai.DocumentType
}{
	KeyCoverLetter:   {file: "defaults/cover_letter.md", docType: ai.DocumentCoverLetter},
	KeyInterviewPrep: {file: "defaults/interview_prep.md", docType: ai.DocumentInterviewPrep},
	KeyResumeSummary: {file: "defaults/resume_summary.md", docType: ai.DocumentResumeSummary},
}

// Keys returns the known content keys in a stable order.
func Keys() []string {
	return []string{KeyCoverLetter, KeyInterviewPrep, KeyResumeSummary}
}

// IsKnown reports whether the content key belongs to the catalog.
func IsKnown(key string) bool {
	_, ok := catalog[key]
	return ok
}

// DocType returns the document type generated from the given key.
func DocType(key string) (ai.DocumentType, bool) {
	entry, ok := catalog[key]
	return entry.docType, ok
}

// Default returns the embedded default template for the key.
func Default(key string) (string, error) {
	entry, ok := catalog[key]
	if !ok {
		return "", fmt.Errorf("unknown content key: %s", key)
	}

	data, err := defaultsFS.ReadFile(entry.file)
	if err != nil {
		return "", fmt.Errorf("read default template for %s: %w", key, err)
	}

	return string(data), nil
}

// Seed creates version 1 from the embedded default for every catalog key the
// owner has no versions for yet. Existing keys are left untouched.
func Seed(ctx context.Context, store *versions.Store, owner string) ([]string, error) {
	var seeded []string

	for _, key := range Keys() {
		_, err := store.Current(ctx, owner, key)
		if err == nil {
			continue
		}
		if !errors.Is(err, versions.ErrNotFound) {
			return seeded, err
		}

		payload, err := Default(key)
		if err != nil {
			return seeded, err
		}

		if _, err := store.Create(ctx, owner, key, payload, "Default"); err != nil {
			return seeded, err
		}

		seeded = append(seeded, key)
	}

	return seeded, nil
}
