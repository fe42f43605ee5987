package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/eduyeet/authgate/internal/domain/session"
	"github.com/eduyeet/authgate/internal/domain/token"
	"github.com/eduyeet/authgate/internal/domain/user"
	"github.com/eduyeet/authgate/internal/domain/verification"
	"github.com/google/uuid"
)

const (
	defaultSessionTTL = 7 * 24 * time.Hour

	// ReasonTokenRevoked is the reason reported by the validation boundary.
	ReasonTokenRevoked = "Token revoked"
)

// Verifications is the slice of the verification service used here.
type Verifications interface {
	Create(ctx context.Context, userID uuid.UUID) (*verification.Verification, error)
	Resend(ctx context.Context, userID uuid.UUID) (*verification.Verification, error)
	Verify(ctx context.Context, userID uuid.UUID, code string) error
}

// LoginParams carries the credentials and client metadata for a login.
type LoginParams struct {
	Email     string
	Password  string
	IPAddress string
	UserAgent string
}

// LoginResult is a freshly minted token and the user it belongs to.
type LoginResult struct {
	Token string
	User  *user.User
}

// ValidationResult is the answer of the validation boundary.
type ValidationResult struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// Identity is the authenticated principal of a request.
type Identity struct {
	UserID    uuid.UUID
	SessionID uuid.UUID
	Type      string
	Email     string
}

// Options tunes the credential service.
type Options struct {
	SessionTTL time.Duration
	// StrictRotation makes renew fail when another renew already revoked the
	// same session, instead of leaving two sibling sessions active.
	StrictRotation bool
}

// Service issues, rotates and revokes sessions. It is the only writer of the
// session store.
type Service struct {
	users         user.Service
	sessions      *session.Store
	codec         *token.Codec
	verifications Verifications
	opts          Options
}

// NewService creates a new auth service
func NewService(users user.Service, sessions *session.Store, codec *token.Codec, verifications Verifications, opts Options) *Service {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = defaultSessionTTL
	}
	return &Service{
		users:         users,
		sessions:      sessions,
		codec:         codec,
		verifications: verifications,
		opts:          opts,
	}
}

// Login checks the password, opens a session and returns a token bound to it.
// Unverified accounts get a fresh verification code and no session.
func (s *Service) Login(ctx context.Context, p LoginParams) (*LoginResult, error) {
	u, err := s.users.Authenticate(ctx, p.Email, p.Password)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, s.fail(newError(KindInvalidCredentials, "login rejected", nil, "email", p.Email, "ip", p.IPAddress))
		}
		return nil, s.fail(newError(KindUnknown, "login lookup failed", err, "email", p.Email, "ip", p.IPAddress))
	}

	if !u.IsVerified {
		if s.verifications != nil {
			if _, err := s.verifications.Resend(ctx, u.ID); err != nil {
				slog.Warn("Failed to resend verification", "error", err, "user_id", u.ID.String())
			}
		}
		return nil, s.fail(newError(KindUserNotVerified, "login of unverified user", nil, "user_id", u.ID.String(), "ip", p.IPAddress))
	}

	sess, err := s.sessions.Create(ctx, session.CreateParams{
		UserID:    u.ID,
		IPAddress: p.IPAddress,
		UserAgent: p.UserAgent,
		TTL:       s.opts.SessionTTL,
	})
	if err != nil {
		return nil, s.fail(newError(KindUnknown, "session creation failed", err, "user_id", u.ID.String()))
	}

	raw, err := s.sign(u, sess.ID)
	if err != nil {
		return nil, err
	}

	slog.Info("User logged in", "user_id", u.ID.String(), "session_id", sess.ID.String(), "ip", p.IPAddress)
	return &LoginResult{Token: raw, User: u}, nil
}

// Renew rotates the session bound to raw. The replacement session is created
// before the old one is revoked, so a failure between the two writes leaves
// both active rather than none.
func (s *Service) Renew(ctx context.Context, raw, ip, userAgent string) (string, error) {
	claims, err := s.decode(raw, ip)
	if err != nil {
		return "", err
	}

	old, err := s.activeSession(ctx, claims, ip)
	if err != nil {
		return "", err
	}

	u, err := s.users.GetUserInfo(ctx, old.UserID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return "", s.fail(newError(KindInvalidToken, "session owner no longer exists", err, "session_id", old.ID.String(), "ip", ip))
		}
		return "", s.fail(newError(KindUnknown, "user lookup failed", err, "session_id", old.ID.String()))
	}

	next, err := s.sessions.Create(ctx, session.CreateParams{
		UserID:    old.UserID,
		IPAddress: ip,
		UserAgent: userAgent,
		TTL:       s.opts.SessionTTL,
	})
	if err != nil {
		return "", s.fail(newError(KindUnknown, "replacement session creation failed", err, "session_id", old.ID.String()))
	}

	_, err = s.sessions.Revoke(ctx, old.ID, session.RevokeParams{
		ReplacedBy: &next.ID,
		IPAddress:  ip,
		Reason:     session.ReasonRefreshed,
	})
	switch {
	case errors.Is(err, session.ErrAlreadyRevoked):
		if s.opts.StrictRotation {
			s.abandon(ctx, next.ID, ip)
			return "", s.fail(newError(KindInvalidToken, "session rotated concurrently", err, "session_id", old.ID.String(), "ip", ip))
		}
		slog.Warn("Concurrent rotation left a sibling session", "session_id", old.ID.String(), "new_session_id", next.ID.String(), "ip", ip)
	case err != nil:
		return "", s.fail(newError(KindUnknown, "revoking rotated session failed", err, "session_id", old.ID.String()))
	}

	fresh, err := s.sign(u, next.ID)
	if err != nil {
		return "", err
	}

	slog.Info("Token renewed", "user_id", u.ID.String(), "session_id", old.ID.String(), "new_session_id", next.ID.String(), "ip", ip)
	return fresh, nil
}

func (s *Service) abandon(ctx context.Context, id uuid.UUID, ip string) {
	if _, err := s.sessions.Revoke(ctx, id, session.RevokeParams{IPAddress: ip, Reason: session.ReasonRotationConflict}); err != nil {
		slog.Error("Failed to revoke conflicting session", "error", err, "session_id", id.String())
	}
}

// Logout revokes the session bound to raw. Tokens whose signature has expired
// may still log out their session.
func (s *Service) Logout(ctx context.Context, raw, ip string) error {
	claims, err := s.decode(raw, ip)
	if err != nil {
		return err
	}

	sess, err := s.activeSession(ctx, claims, ip)
	if err != nil {
		return err
	}

	_, err = s.sessions.Revoke(ctx, sess.ID, session.RevokeParams{IPAddress: ip, Reason: session.ReasonLoggedOut})
	if err != nil {
		if errors.Is(err, session.ErrAlreadyRevoked) {
			return s.fail(newError(KindInvalidToken, "session already revoked", err, "session_id", sess.ID.String(), "ip", ip))
		}
		return s.fail(newError(KindUnknown, "logout failed", err, "session_id", sess.ID.String()))
	}

	slog.Info("User logged out", "user_id", sess.UserID.String(), "session_id", sess.ID.String(), "ip", ip)
	return nil
}

// RevokeAllForUser ends every active session of the account behind email.
// It returns how many sessions this call revoked.
func (s *Service) RevokeAllForUser(ctx context.Context, email, ip, reason string) (int, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return 0, s.fail(newError(KindInvalidInput, "unknown account", err, "email", email))
		}
		return 0, s.fail(newError(KindUnknown, "user lookup failed", err, "email", email))
	}
	if reason == "" {
		reason = session.ReasonAdminRevoked
	}

	n, err := s.sessions.RevokeAllForUser(ctx, u.ID, ip, reason)
	if err != nil {
		return 0, s.fail(newError(KindUnknown, "revoking user sessions failed", err, "user_id", u.ID.String()))
	}

	slog.Info("User sessions revoked", "user_id", u.ID.String(), "count", n, "reason", reason, "ip", ip)
	return n, nil
}

// IsSessionActive reports whether the session exists, is not revoked and has
// not passed its expiry.
func (s *Service) IsSessionActive(ctx context.Context, sessionID string) (bool, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return false, nil
	}
	return s.sessions.IsActive(ctx, id)
}

// ValidateSession answers the validation boundary and records the session as used.
func (s *Service) ValidateSession(ctx context.Context, sessionID string) (ValidationResult, error) {
	active, err := s.IsSessionActive(ctx, sessionID)
	if err != nil {
		return ValidationResult{}, err
	}
	if !active {
		return ValidationResult{Valid: false, Reason: ReasonTokenRevoked}, nil
	}

	id, _ := uuid.Parse(sessionID)
	if err := s.sessions.Touch(ctx, id); err != nil {
		slog.Warn("Failed to update session last use", "error", err, "session_id", sessionID)
	}
	return ValidationResult{Valid: true}, nil
}

// Authenticate resolves a bearer token to an identity. Unlike renew and
// logout it requires an unexpired signature.
func (s *Service) Authenticate(ctx context.Context, raw string) (*Identity, error) {
	claims, err := s.codec.Verify(raw)
	if err != nil {
		return nil, newError(KindInvalidToken, "token rejected", err)
	}

	sess, err := s.activeSession(ctx, claims, "")
	if err != nil {
		return nil, err
	}

	return &Identity{UserID: sess.UserID, SessionID: sess.ID, Type: claims.Type, Email: claims.Email}, nil
}

// Register creates an unverified account and sends its verification code.
func (s *Service) Register(ctx context.Context, req user.RegisterRequest) (*user.User, error) {
	u, err := s.users.Register(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrEmailExists):
			return nil, s.fail(newError(KindEmailInUse, "email already registered", err, "email", req.Email))
		case errors.Is(err, user.ErrNameRequired), errors.Is(err, user.ErrInvalidEmail),
			errors.Is(err, user.ErrPasswordTooShort), errors.Is(err, user.ErrInvalidType):
			return nil, newError(KindInvalidInput, err.Error(), err)
		default:
			return nil, s.fail(newError(KindUnknown, "registration failed", err, "email", req.Email))
		}
	}

	if s.verifications != nil {
		if _, err := s.verifications.Create(ctx, u.ID); err != nil {
			slog.Warn("Failed to create verification", "error", err, "user_id", u.ID.String())
		}
	}

	slog.Info("User registered", "user_id", u.ID.String(), "email", u.Email)
	return u, nil
}

// VerifyAccount confirms the account's email with the code it was sent.
func (s *Service) VerifyAccount(ctx context.Context, userID uuid.UUID, code string) error {
	if s.verifications == nil {
		return newError(KindInvalidInput, "verification is disabled", nil)
	}
	if err := s.verifications.Verify(ctx, userID, code); err != nil {
		switch {
		case errors.Is(err, verification.ErrInvalidCode), errors.Is(err, verification.ErrExpired),
			errors.Is(err, verification.ErrNotFound), errors.Is(err, verification.ErrAlreadyVerified),
			errors.Is(err, user.ErrUserNotFound):
			return s.fail(newError(KindInvalidInput, err.Error(), err, "user_id", userID.String()))
		default:
			return s.fail(newError(KindUnknown, "verification failed", err, "user_id", userID.String()))
		}
	}
	return nil
}

// ResendVerification issues a new code. It reports success for unknown or
// already verified addresses so the endpoint cannot be used to probe accounts.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	if s.verifications == nil {
		return nil
	}
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil
		}
		return s.fail(newError(KindUnknown, "user lookup failed", err, "email", email))
	}
	if u.IsVerified {
		return nil
	}
	if _, err := s.verifications.Resend(ctx, u.ID); err != nil {
		return s.fail(newError(KindUnknown, "resend failed", err, "user_id", u.ID.String()))
	}
	return nil
}

// decode verifies raw, tolerating an expired signature.
func (s *Service) decode(raw, ip string) (*token.Claims, error) {
	claims, err := s.codec.Verify(raw)
	if err != nil && !errors.Is(err, token.ErrExpiredSignature) {
		return nil, s.fail(newError(KindInvalidToken, "token rejected", err, "ip", ip))
	}
	return claims, nil
}

// activeSession loads the session bound to claims and requires it to be active
// and owned by the token subject. Every failure is reported as InvalidToken.
func (s *Service) activeSession(ctx context.Context, claims *token.Claims, ip string) (*session.Session, error) {
	id, err := uuid.Parse(claims.SessionID())
	if err != nil {
		return nil, s.fail(newError(KindInvalidToken, "token session id is not a uuid", err, "ip", ip))
	}

	sess, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			inner := newError(KindSessionNotFound, "session not found", err, "session_id", id.String())
			return nil, s.fail(newError(KindInvalidToken, "token session missing", inner, "session_id", id.String(), "ip", ip))
		}
		return nil, s.fail(newError(KindUnknown, "session lookup failed", err, "session_id", id.String()))
	}

	if !sess.IsActive(s.sessions.Now()) {
		return nil, s.fail(newError(KindInvalidToken, "session inactive", nil, "session_id", id.String(), "ip", ip))
	}
	if sess.UserID.String() != claims.UserID() {
		return nil, s.fail(newError(KindInvalidToken, "token subject does not own session", nil, "session_id", id.String(), "ip", ip))
	}
	return sess, nil
}

func (s *Service) sign(u *user.User, sessionID uuid.UUID) (string, error) {
	raw, err := s.codec.Sign(token.NewClaims(u.ID.String(), sessionID.String(), string(u.Type), u.Email))
	if err != nil {
		return "", s.fail(newError(KindUnknown, "token signing failed", err, "session_id", sessionID.String()))
	}
	return raw, nil
}

func (s *Service) fail(e *Error) *Error {
	if e.Kind == KindUnknown {
		slog.Error("Auth operation failed", e.LogAttrs()...)
	} else {
		slog.Warn("Auth request rejected", e.LogAttrs()...)
	}
	return e
}
