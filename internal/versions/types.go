package versions

import "time"

// Version is one immutable snapshot of a governed artifact. For a given
// owner and content key the version numbers form a gapless sequence from 1
// and exactly one row is current.
type Version struct {
	ID            uint64    `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Owner         string    `gorm:"column:owner;type:varchar(64);not null;uniqueIndex:idx_versions_owner_key_number;index:idx_versions_owner_key" json:"-"`
	ContentKey    string    `gorm:"column:content_key;type:varchar(128);not null;uniqueIndex:idx_versions_owner_key_number;index:idx_versions_owner_key" json:"content_key"`
	VersionNumber int       `gorm:"column:version_number;not null;uniqueIndex:idx_versions_owner_key_number" json:"version_number"`
	Payload       string    `gorm:"column:payload;type:text;not null" json:"payload"`
	Label         string    `gorm:"column:label;type:varchar(255)" json:"label,omitempty"`
	IsCurrent     bool      `gorm:"column:is_current;not null;default:false" json:"is_current"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Version) TableName() string { return "content_versions" }
