package approval

import "time"

// Status is the stored resolution state of a request. Expiry is derived from
// CreatedAt at read time and never stored.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Window is how long a pending request stays approvable.
const Window = 5 * time.Minute

// Request is one human-in-the-loop confirmation for a sensitive action.
type Request struct {
	ID           string     `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	Owner        string     `gorm:"column:owner;type:varchar(64);not null;index:idx_approvals_owner_status" json:"-"`
	ActionType   string     `gorm:"column:action_type;type:varchar(64);not null" json:"action_type"`
	ActionTarget string     `gorm:"column:action_target;type:varchar(128)" json:"action_target"`
	ActionData   string     `gorm:"column:action_data;type:text" json:"action_data,omitempty"`
	ApprovalHash string     `gorm:"column:approval_hash;type:varchar(64);not null" json:"-"`
	Status       Status     `gorm:"column:status;type:varchar(16);not null;index:idx_approvals_owner_status" json:"status"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	ApprovedAt   *time.Time `gorm:"column:approved_at" json:"approved_at,omitempty"`
}

func (Request) TableName() string { return "approval_requests" }

// ExpiresAt returns the moment the request stops being approvable.
func (r *Request) ExpiresAt() time.Time {
	return r.CreatedAt.Add(Window)
}

// ExpiredAt reports whether the request has outlived its window at the given
// moment.
func (r *Request) ExpiredAt(at time.Time) bool {
	return !at.Before(r.ExpiresAt())
}

// Ticket is handed back to the requester; the hash must be re-presented to
// resolve the request, so knowing an id alone is never enough.
type Ticket struct {
	ID   string
	Hash string
}
