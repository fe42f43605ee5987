package session

import (
	"time"

	"github.com/eduyeet/authgate/internal/database"
	"github.com/google/uuid"
)

// Revocation reasons recorded on the session row.
const (
	ReasonRefreshed        = "Token refreshed"
	ReasonLoggedOut        = "User logged out"
	ReasonRotationConflict = "Rotation conflict"
	ReasonAdminRevoked     = "Revoked by administrator"
)

// Session is the persisted record a token is bound to. The revocation columns
// are written once, together, and never cleared.
type Session struct {
	database.BaseModel

	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	IssuedAt  time.Time `gorm:"column:issued_at;not null"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null"`
	IPAddress string    `gorm:"column:ip_address;type:varchar(45)"`
	UserAgent string    `gorm:"column:user_agent;type:text"`
	LastUsed  time.Time `gorm:"column:last_used"`

	RevokedAt     *time.Time `gorm:"column:revoked_at"`
	RevokedBy     *uuid.UUID `gorm:"column:revoked_by;type:uuid;index"` // replacement session, audit only
	RevokedByIP   *string    `gorm:"column:revoked_by_ip;type:varchar(45)"`
	RevokedReason *string    `gorm:"column:revoked_reason;type:varchar(255)"`
}

func (Session) TableName() string {
	return "sessions"
}

// IsRevoked reports whether any revocation field is set.
func (s *Session) IsRevoked() bool {
	return s.RevokedAt != nil || s.RevokedBy != nil || s.RevokedByIP != nil || s.RevokedReason != nil
}

// IsExpired reports whether now is at or past the session's hard expiry.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// IsActive reports whether the session is neither revoked nor expired.
func (s *Session) IsActive(now time.Time) bool {
	return !s.IsRevoked() && !s.IsExpired(now)
}

// Revocation carries the four revocation fields applied in a single write.
type Revocation struct {
	At     time.Time
	By     *uuid.UUID
	ByIP   string
	Reason string
}
