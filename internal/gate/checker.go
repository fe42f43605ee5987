package gate

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/eduyeet/authgate/internal/domain/auth"
)

// CredentialService is the slice of auth.Service the local checker needs.
type CredentialService interface {
	ValidateSession(ctx context.Context, sessionID string) (auth.ValidationResult, error)
	Renew(ctx context.Context, raw, ip, userAgent string) (string, error)
}

// LocalChecker calls the credential service in process.
type LocalChecker struct {
	svc CredentialService
}

func NewLocalChecker(svc CredentialService) *LocalChecker {
	return &LocalChecker{svc: svc}
}

func (l *LocalChecker) ValidateSession(ctx context.Context, sessionID string) (auth.ValidationResult, error) {
	return l.svc.ValidateSession(ctx, sessionID)
}

func (l *LocalChecker) Rotate(ctx context.Context, raw, ip, userAgent string) (string, error) {
	return l.svc.Renew(ctx, raw, ip, userAgent)
}

const (
	validatePath = "/v1/auth/validate-token"
	refreshPath  = "/v1/auth/refresh"

	defaultUserAgent = "authgate-gate"
)

var ErrRemoteRejected = errors.New("credential service rejected the request")

// RemoteChecker talks to the validation and rotation endpoints of another
// authgate process.
type RemoteChecker struct {
	baseURL     string
	timeout     time.Duration
	internalKey string
}

// RemoteOption configures a RemoteChecker.
type RemoteOption func(*RemoteChecker)

// WithInternalKey sends key in auth.InternalKeyHeader on validation calls.
func WithInternalKey(key string) RemoteOption {
	return func(r *RemoteChecker) {
		r.internalKey = key
	}
}

// NewRemoteChecker targets the service at baseURL, e.g. "http://auth:8000".
func NewRemoteChecker(baseURL string, timeout time.Duration, opts ...RemoteOption) *RemoteChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	r := &RemoteChecker{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// timeoutFor shortens the configured timeout to the deadline of ctx.
func (r *RemoteChecker) timeoutFor(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		return r.timeout, nil
	}
	left := time.Until(deadline)
	if left <= 0 {
		return 0, context.DeadlineExceeded
	}
	return min(left, r.timeout), nil
}

func (r *RemoteChecker) ValidateSession(ctx context.Context, sessionID string) (auth.ValidationResult, error) {
	timeout, err := r.timeoutFor(ctx)
	if err != nil {
		return auth.ValidationResult{}, fmt.Errorf("validation request abandoned: %w", err)
	}

	agent := fiber.Get(r.baseURL + validatePath + "?" + url.Values{"jti": {sessionID}}.Encode())
	agent.Timeout(timeout)
	if r.internalKey != "" {
		agent.Set(auth.InternalKeyHeader, r.internalKey)
	}
	if err := agent.Parse(); err != nil {
		return auth.ValidationResult{}, fmt.Errorf("failed to build validation request: %w", err)
	}

	var res auth.ValidationResult
	code, _, errs := agent.Struct(&res)
	if len(errs) > 0 {
		return auth.ValidationResult{}, fmt.Errorf("validation request failed: %w", errors.Join(errs...))
	}
	if code != fiber.StatusOK {
		return auth.ValidationResult{}, fmt.Errorf("%w: validation status %d", ErrRemoteRejected, code)
	}
	return res, nil
}

type refreshResponse struct {
	Success bool `json:"success"`
	Data    struct {
		AccessToken string `json:"access_token"`
	} `json:"data"`
}

func (r *RemoteChecker) Rotate(ctx context.Context, raw, ip, userAgent string) (string, error) {
	timeout, err := r.timeoutFor(ctx)
	if err != nil {
		return "", fmt.Errorf("refresh request abandoned: %w", err)
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	agent := fiber.Post(r.baseURL + refreshPath)
	agent.Timeout(timeout)
	agent.Set(fiber.HeaderAuthorization, "Bearer "+raw)
	agent.Set(fiber.HeaderXForwardedFor, ip)
	agent.UserAgent(userAgent)
	if err := agent.Parse(); err != nil {
		return "", fmt.Errorf("failed to build refresh request: %w", err)
	}

	var res refreshResponse
	code, _, errs := agent.Struct(&res)
	if len(errs) > 0 {
		return "", fmt.Errorf("refresh request failed: %w", errors.Join(errs...))
	}
	if code != fiber.StatusOK || !res.Success || res.Data.AccessToken == "" {
		return "", fmt.Errorf("%w: refresh status %d", ErrRemoteRejected, code)
	}
	return res.Data.AccessToken, nil
}
