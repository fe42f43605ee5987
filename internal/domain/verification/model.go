package verification

import (
	"time"

	"github.com/eduyeet/authgate/internal/database"
	"github.com/google/uuid"
)

// Verification is a pending email confirmation for an account.
type Verification struct {
	database.BaseModel

	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	Code      string    `gorm:"column:code;type:varchar(64);not null"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null"`
}

func (Verification) TableName() string {
	return "verifications"
}
