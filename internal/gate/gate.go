package gate

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/eduyeet/authgate/internal/domain/auth"
	"github.com/eduyeet/authgate/internal/domain/token"
)

// State is what the gate concluded about the request credential.
type State int

const (
	StateNoToken State = iota
	StateValid
	StateNeedsRotation
	StateInvalid
)

func (s State) String() string {
	switch s {
	case StateNoToken:
		return "NO_TOKEN"
	case StateValid:
		return "VALID"
	case StateNeedsRotation:
		return "NEEDS_ROTATION"
	default:
		return "INVALID"
	}
}

// Action tells the transport what to do with the request.
type Action int

const (
	ActionProceed Action = iota
	ActionRedirect
)

// DefaultRefreshThreshold is the remaining lifetime under which tokens are rotated.
const DefaultRefreshThreshold = 5 * time.Minute

// Config is the static part of gating. It never changes per request.
type Config struct {
	LoginPath        string
	HomePath         string
	VerifyPath       string
	PublicPaths      []string
	RefreshThreshold time.Duration
	Now              func() time.Time
}

// Request is everything the gate reads from an inbound request.
type Request struct {
	Token     string
	Path      string
	URL       string
	IP        string
	UserAgent string
}

// Decision is the outcome of Decide. Token is set when the credential was
// rotated and must replace the one held by the client. Outcome is the result
// of verifying the presented credential; an absent one counts as malformed.
type Decision struct {
	State      State
	Outcome    token.Outcome
	Action     Action
	Location   string
	Token      string
	ClearToken bool
	Claims     *token.Claims
}

// Verifier checks token signatures. *token.Codec implements it.
type Verifier interface {
	Verify(raw string) (*token.Claims, error)
}

// Checker reaches the credential service, in process or over HTTP.
type Checker interface {
	ValidateSession(ctx context.Context, sessionID string) (auth.ValidationResult, error)
	Rotate(ctx context.Context, raw, ip, userAgent string) (string, error)
}

// Decide resolves the gate state for req and the action to take. Any error
// from the checker resolves to StateInvalid.
func Decide(ctx context.Context, req Request, cfg Config, verifier Verifier, checker Checker) Decision {
	if req.Token == "" {
		return deny(StateNoToken, token.OutcomeMalformed, req, cfg)
	}

	claims, verifyErr := verifier.Verify(req.Token)
	outcome := token.OutcomeOf(verifyErr)
	if outcome == token.OutcomeMalformed {
		slog.Debug("Gate rejected token", "error", verifyErr, "outcome", outcome.String(), "path", req.Path, "ip", req.IP)
		return deny(StateInvalid, outcome, req, cfg)
	}

	// A session that cannot be confirmed active is treated as revoked.
	res, err := checker.ValidateSession(ctx, claims.SessionID())
	if err != nil {
		slog.Warn("Session validation failed, denying request", "error", err, "session_id", claims.SessionID(), "ip", req.IP)
		return deny(StateInvalid, token.OutcomeSessionRevoked, req, cfg)
	}
	if !res.Valid {
		slog.Info("Gate denied inactive session", "session_id", claims.SessionID(), "reason", res.Reason, "outcome", token.OutcomeSessionRevoked.String(), "ip", req.IP)
		return deny(StateInvalid, token.OutcomeSessionRevoked, req, cfg)
	}

	d := Decision{State: StateValid, Outcome: outcome, Claims: claims}
	if remaining(claims, cfg.clock()) <= cfg.threshold() {
		fresh, err := checker.Rotate(ctx, req.Token, req.IP, req.UserAgent)
		if err != nil {
			slog.Warn("Token rotation failed, denying request", "error", err, "session_id", claims.SessionID(), "ip", req.IP)
			return deny(StateInvalid, token.OutcomeSessionRevoked, req, cfg)
		}

		rotated, err := verifier.Verify(fresh)
		if err != nil {
			slog.Warn("Rotated token did not verify", "error", err, "session_id", claims.SessionID())
			return deny(StateInvalid, token.OutcomeOf(err), req, cfg)
		}
		d = Decision{State: StateNeedsRotation, Outcome: outcome, Token: fresh, Claims: rotated}
	}

	if req.Path == cfg.LoginPath {
		d.Action = ActionRedirect
		d.Location = cfg.HomePath
	}
	return d
}

// deny clears an invalid credential and sends the client to login unless the
// path is open.
func deny(state State, outcome token.Outcome, req Request, cfg Config) Decision {
	d := Decision{State: state, Outcome: outcome, ClearToken: state == StateInvalid}
	if cfg.isOpen(req.Path) {
		return d
	}
	d.Action = ActionRedirect
	d.Location = loginRedirect(cfg.LoginPath, req.URL)
	return d
}

func loginRedirect(login, target string) string {
	if target == "" {
		return login
	}
	return login + "?" + url.Values{"redirect": {target}}.Encode()
}

func remaining(claims *token.Claims, now time.Time) time.Duration {
	if claims.ExpiresAt == nil {
		return 0
	}
	return claims.ExpiresAt.Sub(now)
}

// isOpen reports whether path is reachable without a session. Public paths
// ending in "/*" match their whole subtree.
func (cfg Config) isOpen(path string) bool {
	if path == cfg.LoginPath || path == cfg.VerifyPath {
		return true
	}
	for _, p := range cfg.PublicPaths {
		if prefix, ok := strings.CutSuffix(p, "/*"); ok {
			if path == prefix || strings.HasPrefix(path, prefix+"/") {
				return true
			}
			continue
		}
		if path == p {
			return true
		}
	}
	return false
}

func (cfg Config) threshold() time.Duration {
	if cfg.RefreshThreshold <= 0 {
		return DefaultRefreshThreshold
	}
	return cfg.RefreshThreshold
}

func (cfg Config) clock() time.Time {
	if cfg.Now == nil {
		return time.Now()
	}
	return cfg.Now()
}
