package versions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/daskuntal75/CareerCoPilot-sub001/internal/utils"
)

const (
	createAttempts = 3
	retryBaseDelay = 25 * time.Millisecond
)

// Store keeps the append-only version log with a single current pointer per
// owner and content key.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewStore(db *gorm.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger}
}

// Transaction runs fn with a Store bound to a single database transaction.
// Every write fn performs commits or rolls back as one unit.
func (s *Store) Transaction(fn func(tx *Store) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, logger: s.logger})
	})
}

// Create saves a new version and makes it current, demoting the previous
// current row in the same transaction. Saving a payload identical to the
// current one is a no-op that returns the current version unchanged. A
// concurrent writer racing on the same key trips the unique index on
// (owner, content_key, version_number); the write is retried with backoff
// before ErrConflict is surfaced.
func (s *Store) Create(ctx context.Context, owner, key, payload, label string) (*Version, error) {
	owner = strings.TrimSpace(owner)
	key = strings.TrimSpace(key)
	if owner == "" || key == "" {
		return nil, fmt.Errorf("%w: owner and content key are required", ErrInvalidOperation)
	}

	var result *Version
	var lastErr error

	for attempt := 1; attempt <= createAttempts; attempt++ {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var current Version
			err := tx.Where("owner = ? AND content_key = ? AND is_current = ?", owner, key, true).
				First(&current).Error
			switch {
			case err == nil:
				if current.Payload == payload {
					result = &current
					return nil
				}
			case errors.Is(err, gorm.ErrRecordNotFound):
				// First version for this key.
			default:
				return err
			}

			var maxNumber int
			if err := tx.Model(&Version{}).
				Where("owner = ? AND content_key = ?", owner, key).
				Select("COALESCE(MAX(version_number), 0)").
				Scan(&maxNumber).Error; err != nil {
				return err
			}

			if err := tx.Model(&Version{}).
				Where("owner = ? AND content_key = ? AND is_current = ?", owner, key, true).
				Update("is_current", false).Error; err != nil {
				return err
			}

			next := &Version{
				Owner:         owner,
				ContentKey:    key,
				VersionNumber: maxNumber + 1,
				Payload:       payload,
				Label:         strings.TrimSpace(label),
				IsCurrent:     true,
			}
			if err := tx.Create(next).Error; err != nil {
				return err
			}

			result = next
			return nil
		})
		if err == nil {
			return result, nil
		}

		if !isDuplicateError(err) {
			return nil, fmt.Errorf("create version: %w", err)
		}

		lastErr = err
		s.logger.Debug("version number collision, retrying",
			zap.String("content_key", key),
			zap.Int("attempt", attempt),
		)

		if waitErr := utils.WaitFor(ctx, time.Duration(attempt)*retryBaseDelay); waitErr != nil {
			return nil, waitErr
		}
	}

	return nil, fmt.Errorf("%w for %s: %v", ErrConflict, key, lastErr)
}

// List returns versions for the key, newest first. A limit <= 0 disables the
// limit. An unknown key is ErrNotFound.
func (s *Store) List(ctx context.Context, owner, key string, limit int) ([]*Version, error) {
	query := s.db.WithContext(ctx).
		Where("owner = ? AND content_key = ?", owner, key).
		Order("version_number DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var result []*Version
	if err := query.Find(&result).Error; err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("%w: no versions for key %s", ErrNotFound, key)
	}

	return result, nil
}

// Get returns one version by id, enforcing the owner scope.
func (s *Store) Get(ctx context.Context, owner string, id uint64) (*Version, error) {
	var v Version
	if err := s.db.WithContext(ctx).First(&v, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: version %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("get version: %w", err)
	}

	if v.Owner != owner {
		return nil, fmt.Errorf("%w: version %d belongs to another owner", ErrUnauthorized, id)
	}

	return &v, nil
}

// Current returns the current version for the key.
func (s *Store) Current(ctx context.Context, owner, key string) (*Version, error) {
	var v Version
	err := s.db.WithContext(ctx).
		Where("owner = ? AND content_key = ? AND is_current = ?", owner, key, true).
		First(&v).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no current version for key %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("get current version: %w", err)
	}

	return &v, nil
}

// Restore makes the payload of an older version current again by appending a
// new version. The history is never rewound: the restored-from version and
// everything after it stay in the log.
func (s *Store) Restore(ctx context.Context, owner, key string, id uint64) (*Version, error) {
	target, err := s.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	if target.ContentKey != key {
		return nil, fmt.Errorf("%w: version %d does not belong to key %s", ErrNotFound, id, key)
	}

	label := fmt.Sprintf("Restored from v%d", target.VersionNumber)
	restored, err := s.Create(ctx, owner, key, target.Payload, label)
	if err != nil {
		return nil, err
	}

	s.logger.Info("version restored",
		zap.String("content_key", key),
		zap.Int("from_version", target.VersionNumber),
		zap.Int("new_version", restored.VersionNumber),
	)

	return restored, nil
}

// Label updates the label of a version. Metadata only, no version-number
// side effect.
func (s *Store) Label(ctx context.Context, owner string, id uint64, label string) error {
	if _, err := s.Get(ctx, owner, id); err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Model(&Version{}).
		Where("id = ?", id).
		Update("label", strings.TrimSpace(label)).Error; err != nil {
		return fmt.Errorf("label version: %w", err)
	}

	return nil
}

// Delete removes a non-current version permanently.
func (s *Store) Delete(ctx context.Context, owner string, id uint64) error {
	target, err := s.Get(ctx, owner, id)
	if err != nil {
		return err
	}

	if target.IsCurrent {
		return fmt.Errorf("%w: cannot delete the current version", ErrInvalidOperation)
	}

	if err := s.db.WithContext(ctx).Delete(&Version{}, id).Error; err != nil {
		return fmt.Errorf("delete version: %w", err)
	}

	return nil
}

func isDuplicateError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// The sqlite driver does not always translate constraint errors.
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
