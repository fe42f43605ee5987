package user

import (
	"github.com/eduyeet/authgate/internal/database"
	"github.com/google/uuid"
)

// Type tags the kind of account. It travels in the token's type claim.
type Type string

const (
	TypeStudent Type = "student"
	TypeTutor   Type = "tutor"
)

// IsValid reports whether t is a known account type.
func (t Type) IsValid() bool {
	return t == TypeStudent || t == TypeTutor
}

type User struct {
	database.BaseModel
	Name       string `gorm:"column:name;not null"`
	Email      string `gorm:"column:email;unique;not null"`
	Password   string `gorm:"column:password;not null"`
	Type       Type   `gorm:"column:type;type:varchar(16);not null;default:student"`
	IsVerified bool   `gorm:"column:is_verified;default:false"`
}

func (User) TableName() string {
	return "users"
}

// UserResponse is the public view of a user.
type UserResponse struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Type       Type      `json:"type"`
	IsVerified bool      `json:"is_verified"`
}

// ToResponse strips the password hash.
func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		Type:       u.Type,
		IsVerified: u.IsVerified,
	}
}
