package user

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrEmailExists is returned when trying to register with an email that already exists
	ErrEmailExists = errors.New("email already exists")
	// ErrUserNotFound is returned when no user matches the lookup
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidEmail is returned when the email is not a valid address
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrPasswordTooShort is returned when the password is under the minimum length
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	// ErrNameRequired is returned when the name is empty
	ErrNameRequired = errors.New("name is required")
	// ErrInvalidType is returned when the account type is unknown
	ErrInvalidType = errors.New("type must be student or tutor")
)

const minPasswordLength = 8

// Service interface for user operations
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*User, error)
	Authenticate(ctx context.Context, email, password string) (*User, error)
	GetUserInfo(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	MarkVerified(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo Repository
}

// NewService creates a new user service
func NewService(repo Repository) Service {
	return &service{repo}
}

// Validate checks the registration form.
func (r RegisterRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrNameRequired
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return ErrInvalidEmail
	}
	if len(r.Password) < minPasswordLength {
		return ErrPasswordTooShort
	}
	if r.Type != "" && !r.Type.IsValid() {
		return ErrInvalidType
	}
	return nil
}

// Register creates an unverified user.
func (s *service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	email := NormalizeEmail(req.Email)
	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	hashedPassword, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	typ := req.Type
	if typ == "" {
		typ = TypeStudent
	}

	user := &User{
		Name:     strings.TrimSpace(req.Name),
		Email:    email,
		Password: hashedPassword,
		Type:     typ,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// Authenticate returns the user when password matches. Unknown emails still
// pay for a hash comparison and both failures return ErrUserNotFound.
func (s *service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			VerifyDummy(password)
		}
		return nil, err
	}

	if !VerifyPassword(password, user.Password) {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *service) GetUserInfo(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.GetByEmail(ctx, email)
}

func (s *service) MarkVerified(ctx context.Context, id uuid.UUID) error {
	return s.repo.MarkVerified(ctx, id)
}
