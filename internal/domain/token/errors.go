package token

import "errors"

var (
	// ErrInvalidSignature is returned when the signature does not match the secret
	ErrInvalidSignature = errors.New("invalid token signature")
	// ErrExpiredSignature is returned when the signature is valid but exp has passed.
	// Verify still returns the decoded claims alongside it.
	ErrExpiredSignature = errors.New("token signature expired")
	// ErrMissingSessionBinding is returned when a validly signed token has no jti
	ErrMissingSessionBinding = errors.New("token is not bound to a session")
	// ErrIncompleteClaims is returned when claims to be signed lack a subject or type
	ErrIncompleteClaims = errors.New("token claims require a subject and type")
	// ErrMalformed is returned when the token cannot be decoded
	ErrMalformed = errors.New("malformed token")
	// ErrMissingSecret is returned when no signing secret is configured
	ErrMissingSecret = errors.New("signing secret is not configured")
)

// Outcome is the closed set of results of checking a token against its session.
type Outcome int

const (
	OutcomeValid Outcome = iota
	OutcomeExpiredSignature
	OutcomeSessionRevoked
	OutcomeMalformed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeValid:
		return "valid"
	case OutcomeExpiredSignature:
		return "expired-signature"
	case OutcomeSessionRevoked:
		return "session-revoked"
	default:
		return "malformed"
	}
}

// OutcomeOf maps a Verify error onto an Outcome. Signature and binding
// failures are reported as malformed since neither can be recovered from.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeValid
	case errors.Is(err, ErrExpiredSignature):
		return OutcomeExpiredSignature
	default:
		return OutcomeMalformed
	}
}
