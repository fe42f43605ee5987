package auth

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Kind classifies every failure the credential service can return.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidCredentials
	KindInvalidToken
	KindEmailInUse
	KindSessionNotFound
	KindUserNotVerified
	KindInvalidInput
)

func (k Kind) String() string {
	switch k {
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindInvalidToken:
		return "invalid_token"
	case KindEmailInUse:
		return "email_in_use"
	case KindSessionNotFound:
		return "session_not_found"
	case KindUserNotVerified:
		return "user_not_verified"
	case KindInvalidInput:
		return "invalid_input"
	default:
		return "unknown"
	}
}

// Status is the HTTP status a kind maps to. SessionNotFound is reported as an
// invalid token so clients cannot tell why their credential was refused.
func (k Kind) Status() int {
	switch k {
	case KindInvalidCredentials, KindInvalidToken, KindSessionNotFound:
		return fiber.StatusUnauthorized
	case KindEmailInUse:
		return fiber.StatusConflict
	case KindUserNotVerified:
		return fiber.StatusForbidden
	case KindInvalidInput:
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

// Code is the stable error code sent to clients.
func (k Kind) Code() string {
	switch k {
	case KindInvalidCredentials:
		return "INVALID_CREDENTIALS"
	case KindInvalidToken, KindSessionNotFound:
		return "INVALID_TOKEN"
	case KindEmailInUse:
		return "EMAIL_IN_USE"
	case KindUserNotVerified:
		return "USER_NOT_VERIFIED"
	case KindInvalidInput:
		return "INVALID_INPUT"
	default:
		return "INTERNAL_SERVER_ERROR"
	}
}

// PublicMessage is safe to show to an end user.
func (k Kind) PublicMessage() string {
	switch k {
	case KindInvalidCredentials:
		return "Invalid email or password"
	case KindInvalidToken, KindSessionNotFound:
		return "Invalid or expired token"
	case KindEmailInUse:
		return "Email is already registered"
	case KindUserNotVerified:
		return "User not verified, please check your email"
	case KindInvalidInput:
		return "Invalid request"
	default:
		return "An unexpected error occurred"
	}
}

// Error is the only error type the credential service returns.
type Error struct {
	Kind    Kind
	Message string
	Context map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// LogAttrs flattens the error for slog.
func (e *Error) LogAttrs() []any {
	attrs := []any{"kind", e.Kind.String(), "error", e.Error()}
	for k, v := range e.Context {
		attrs = append(attrs, k, v)
	}
	return attrs
}

var (
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials, Message: "invalid credentials"}
	ErrInvalidToken       = &Error{Kind: KindInvalidToken, Message: "invalid token"}
	ErrEmailInUse         = &Error{Kind: KindEmailInUse, Message: "email in use"}
	ErrSessionNotFound    = &Error{Kind: KindSessionNotFound, Message: "session not found"}
	ErrUserNotVerified    = &Error{Kind: KindUserNotVerified, Message: "user not verified"}
	ErrInvalidInput       = &Error{Kind: KindInvalidInput, Message: "invalid input"}
)

func newError(kind Kind, message string, err error, kv ...string) *Error {
	e := &Error{Kind: kind, Message: message, Err: err}
	if len(kv) > 0 {
		e.Context = make(map[string]string, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			e.Context[kv[i]] = kv[i+1]
		}
	}
	return e
}

// KindOf returns the kind of err, or KindUnknown for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
