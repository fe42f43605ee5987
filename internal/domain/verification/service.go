package verification

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/eduyeet/authgate/internal/domain/user"
	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when the user has no pending verification
	ErrNotFound = errors.New("verification not found")
	// ErrInvalidCode is returned when the code does not match
	ErrInvalidCode = errors.New("invalid verification code")
	// ErrExpired is returned when the code is past its expiry
	ErrExpired = errors.New("verification expired")
	// ErrAlreadyVerified is returned for accounts that are already verified
	ErrAlreadyVerified = errors.New("user is already verified")
)

const defaultTTL = 24 * time.Hour

// Accounts is the slice of the user service verification needs.
type Accounts interface {
	GetUserInfo(ctx context.Context, id uuid.UUID) (*user.User, error)
	MarkVerified(ctx context.Context, id uuid.UUID) error
}

// Options configures the verification service.
type Options struct {
	BaseURL    string // public origin used to build links
	VerifyPath string
	TTL        time.Duration
	Clock      func() time.Time
}

type Service struct {
	repo     Repository
	accounts Accounts
	notifier Notifier
	opts     Options
}

func NewService(repo Repository, accounts Accounts, notifier Notifier, opts Options) *Service {
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.VerifyPath == "" {
		opts.VerifyPath = "/auth/verify"
	}
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Service{repo: repo, accounts: accounts, notifier: notifier, opts: opts}
}

// Create issues a new code for an unverified user and notifies them.
func (s *Service) Create(ctx context.Context, userID uuid.UUID) (*Verification, error) {
	u, err := s.pending(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, u)
}

// Resend replaces any outstanding code with a fresh one.
func (s *Service) Resend(ctx context.Context, userID uuid.UUID) (*Verification, error) {
	u, err := s.pending(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.DeleteByUserID(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to clear verification: %w", err)
	}
	return s.issue(ctx, u)
}

// Verify marks the user verified when code matches an unexpired verification.
func (s *Service) Verify(ctx context.Context, userID uuid.UUID, code string) error {
	if _, err := s.pending(ctx, userID); err != nil {
		return err
	}

	v, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(v.Code), []byte(strings.TrimSpace(code))) != 1 {
		return ErrInvalidCode
	}
	if !s.opts.Clock().Before(v.ExpiresAt) {
		return ErrExpired
	}

	if err := s.accounts.MarkVerified(ctx, userID); err != nil {
		return err
	}
	if err := s.repo.DeleteByUserID(ctx, userID); err != nil {
		slog.Warn("Failed to clear used verification", "error", err, "user_id", userID.String())
	}

	slog.Info("User verified", "user_id", userID.String())
	return nil
}

func (s *Service) pending(ctx context.Context, userID uuid.UUID) (*user.User, error) {
	u, err := s.accounts.GetUserInfo(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.IsVerified {
		return nil, ErrAlreadyVerified
	}
	return u, nil
}

func (s *Service) issue(ctx context.Context, u *user.User) (*Verification, error) {
	v := &Verification{
		UserID:    u.ID,
		Code:      uuid.NewString(),
		ExpiresAt: s.opts.Clock().Add(s.opts.TTL),
	}
	if err := s.repo.Create(ctx, v); err != nil {
		return nil, fmt.Errorf("failed to create verification: %w", err)
	}

	msg := Message{To: u.Email, Name: u.Name, Link: s.link(u.ID, v.Code), ExpiresAt: v.ExpiresAt}
	if err := s.notifier.SendVerification(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to send verification: %w", err)
	}
	return v, nil
}

func (s *Service) link(userID uuid.UUID, code string) string {
	q := url.Values{}
	q.Set("id", userID.String())
	q.Set("code", code)
	return strings.TrimRight(s.opts.BaseURL, "/") + s.opts.VerifyPath + "?" + q.Encode()
}
