package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrNotFound indicates the telemetry record does not exist.
	ErrNotFound = errors.New("telemetry record not found")
	// ErrInvalidRating indicates a rating outside the 1..5 scale.
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
	// ErrUnauthorized indicates an attempt to rate another owner's record.
	ErrUnauthorized = errors.New("unauthorized")
)

// Record correlates one generation invocation with optional later feedback.
// Rows are append-only; the only mutation ever applied is the first rating.
type Record struct {
	ID            string    `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	Owner         string    `gorm:"column:owner;type:varchar(64);not null;index:idx_telemetry_owner_key" json:"-"`
	ContentKey    string    `gorm:"column:content_key;type:varchar(128);not null;index:idx_telemetry_owner_key" json:"content_key"`
	VersionNumber int       `gorm:"column:version_number;not null" json:"version_number"`
	ActionType    string    `gorm:"column:action_type;type:varchar(64);not null" json:"action_type"`
	Rating        *int      `gorm:"column:rating" json:"rating,omitempty"`
	Metadata      string    `gorm:"column:metadata;type:text" json:"metadata,omitempty"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Record) TableName() string { return "telemetry_records" }

// Metrics is derived per version by scanning records. It is recomputed on
// every read; keeping standalone counters would drift from the source rows.
type Metrics struct {
	TotalUses       int     `json:"total_uses"`
	PositiveRatings int     `json:"positive_ratings"`
	NegativeRatings int     `json:"negative_ratings"`
	AvgRating       float64 `json:"avg_quality_rating"`
}

// Aggregator records generation invocations and derives per-version
// satisfaction metrics.
type Aggregator struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewAggregator(db *gorm.DB, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{db: db, logger: logger}
}

// Track appends a record for one generation invocation and returns its id,
// used later to attach a rating.
func (a *Aggregator) Track(ctx context.Context, owner, key string, versionNumber int, actionType, metadata string) (string, error) {
	owner = strings.TrimSpace(owner)
	key = strings.TrimSpace(key)
	if owner == "" || key == "" {
		return "", errors.New("owner and content key are required")
	}

	record := &Record{
		ID:            uuid.NewString(),
		Owner:         owner,
		ContentKey:    key,
		VersionNumber: versionNumber,
		ActionType:    strings.TrimSpace(actionType),
		Metadata:      metadata,
	}

	if err := a.db.WithContext(ctx).Create(record).Error; err != nil {
		return "", fmt.Errorf("create telemetry record: %w", err)
	}

	return record.ID, nil
}

// Rate attaches feedback to a prior record. First write wins: once a record
// carries a rating, later calls are no-ops, keeping aggregates stable under
// double submission.
func (a *Aggregator) Rate(ctx context.Context, owner, id string, rating int) error {
	if rating < 1 || rating > 5 {
		return fmt.Errorf("%w: got %d", ErrInvalidRating, rating)
	}

	result := a.db.WithContext(ctx).Model(&Record{}).
		Where("id = ? AND owner = ? AND rating IS NULL", id, owner).
		Update("rating", rating)
	if result.Error != nil {
		return fmt.Errorf("rate telemetry record: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		return nil
	}

	// Nothing was written: either the record is already rated (no-op), it
	// belongs to another owner, or it does not exist.
	var existing Record
	if err := a.db.WithContext(ctx).First(&existing, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return fmt.Errorf("load telemetry record: %w", err)
	}

	if existing.Owner != owner {
		return fmt.Errorf("%w: record %s belongs to another owner", ErrUnauthorized, id)
	}

	a.logger.Debug("telemetry record already rated, keeping first rating",
		zap.String("telemetry_id", id),
		zap.Int("ignored_rating", rating),
	)

	return nil
}

// Metrics recomputes satisfaction metrics from the underlying records. A
// versionNumber of 0 aggregates across all versions of the key.
func (a *Aggregator) Metrics(ctx context.Context, owner, key string, versionNumber int) (*Metrics, error) {
	query := a.db.WithContext(ctx).
		Where("owner = ? AND content_key = ?", owner, key)
	if versionNumber > 0 {
		query = query.Where("version_number = ?", versionNumber)
	}

	var records []*Record
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("scan telemetry records: %w", err)
	}

	metrics := &Metrics{TotalUses: len(records)}

	rated := 0
	sum := 0
	for _, record := range records {
		if record.Rating == nil {
			continue
		}

		rated++
		sum += *record.Rating

		switch {
		case *record.Rating >= 4:
			metrics.PositiveRatings++
		case *record.Rating <= 2:
			metrics.NegativeRatings++
		}
	}

	if rated > 0 {
		metrics.AvgRating = float64(sum) / float64(rated)
	}

	return metrics, nil
}
