package prompts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/daskuntal75/CareerCoPilot-sub001/internal/versions"
)

// DocumentVersion is the current export document format version.
const DocumentVersion = 1

// ErrInvalidFormat indicates an export document that failed structural
// validation. Nothing is applied from such a document.
var ErrInvalidFormat = errors.New("invalid prompts document")

// Document is the portable snapshot of the current prompt templates.
type Document struct {
	ExportedAt string            `json:"exported_at" mapstructure:"exported_at"`
	Version    int               `json:"version" mapstructure:"version"`
	Prompts    map[string]string `json:"prompts" mapstructure:"prompts"`
}

// Export snapshots the current version of every catalog key the owner has.
func Export(ctx context.Context, store *versions.Store, owner string) (*Document, error) {
	doc := &Document{
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Version:    DocumentVersion,
		Prompts:    make(map[string]string),
	}

	for _, key := range Keys() {
		current, err := store.Current(ctx, owner, key)
		if err != nil {
			if errors.Is(err, versions.ErrNotFound) {
				continue
			}
			return nil, err
		}
		doc.Prompts[key] = current.Payload
	}

	return doc, nil
}

// Decode validates a loosely-typed payload and returns the typed document.
// The shape is trusted wholesale or not at all: unknown fields, a missing or
// unsupported version, a missing prompts map, unknown keys and empty
// templates are all ErrInvalidFormat.
func Decode(raw map[string]any) (*Document, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidFormat)
	}

	if _, ok := raw["version"]; !ok {
		return nil, fmt.Errorf("%w: missing version field", ErrInvalidFormat)
	}
	if _, ok := raw["prompts"]; !ok {
		return nil, fmt.Errorf("%w: missing prompts field", ErrInvalidFormat)
	}

	var doc Document
	cfg := &mapstructure.DecoderConfig{
		Result:      &doc,
		ErrorUnused: true,
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, fmt.Errorf("build document decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	if err := doc.validate(); err != nil {
		return nil, err
	}

	return &doc, nil
}

func (d *Document) validate() error {
	if d.Version < 1 || d.Version > DocumentVersion {
		return fmt.Errorf("%w: unsupported document version %d", ErrInvalidFormat, d.Version)
	}

	if len(d.Prompts) == 0 {
		return fmt.Errorf("%w: prompts map is empty", ErrInvalidFormat)
	}

	for key, payload := range d.Prompts {
		if !IsKnown(key) {
			return fmt.Errorf("%w: unknown prompt key %q", ErrInvalidFormat, key)
		}
		if strings.TrimSpace(payload) == "" {
			return fmt.Errorf("%w: prompt %q is empty", ErrInvalidFormat, key)
		}
	}

	return nil
}

// Import applies a validated document, saving a new version for every key
// whose template differs from the owner's current one. The document is
// re-validated first, and all keys are applied in one transaction: a failure
// on any key rolls every key back.
func Import(ctx context.Context, store *versions.Store, owner string, doc *Document) ([]string, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidFormat)
	}
	if err := doc.validate(); err != nil {
		return nil, err
	}

	var applied []string
	err := store.Transaction(func(tx *versions.Store) error {
		for _, key := range Keys() {
			payload, ok := doc.Prompts[key]
			if !ok {
				continue
			}

			current, err := tx.Current(ctx, owner, key)
			if err == nil && current.Payload == payload {
				continue
			}
			if err != nil && !errors.Is(err, versions.ErrNotFound) {
				return err
			}

			if _, err := tx.Create(ctx, owner, key, payload, "Imported"); err != nil {
				return err
			}

			applied = append(applied, key)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return applied, nil
}
