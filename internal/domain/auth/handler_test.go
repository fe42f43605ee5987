package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/eduyeet/authgate/internal/domain/user"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockAuthService is a mock implementation of AuthService
type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Authenticate(ctx context.Context, raw string) (*Identity, error) {
	args := m.Called(ctx, raw)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Identity), args.Error(1)
}

func (m *MockAuthService) Login(ctx context.Context, p LoginParams) (*LoginResult, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*LoginResult), args.Error(1)
}

func (m *MockAuthService) Register(ctx context.Context, req user.RegisterRequest) (*user.User, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockAuthService) Renew(ctx context.Context, raw, ip, userAgent string) (string, error) {
	args := m.Called(ctx, raw, ip, userAgent)
	return args.String(0), args.Error(1)
}

func (m *MockAuthService) Logout(ctx context.Context, raw, ip string) error {
	return m.Called(ctx, raw, ip).Error(0)
}

func (m *MockAuthService) ValidateSession(ctx context.Context, sessionID string) (ValidationResult, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).(ValidationResult), args.Error(1)
}

func (m *MockAuthService) VerifyAccount(ctx context.Context, userID uuid.UUID, code string) error {
	return m.Called(ctx, userID, code).Error(0)
}

func (m *MockAuthService) ResendVerification(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Register(ctx context.Context, req user.RegisterRequest) (*user.User, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockUserService) Authenticate(ctx context.Context, email, password string) (*user.User, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockUserService) GetUserInfo(ctx context.Context, id uuid.UUID) (*user.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockUserService) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockUserService) MarkVerified(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func newTestApp(svc *MockAuthService, users *MockUserService) *fiber.App {
	app := fiber.New()
	carrier := NewCarrier("accessToken", 15*time.Minute, true)
	h := NewHandler(svc, users, carrier)

	g := app.Group("/v1/auth")
	g.Post("/login", h.Login)
	g.Post("/register", h.Register)
	g.Post("/logout", h.Logout)
	g.Post("/refresh", h.Refresh)
	g.Get("/validate-token", h.ValidateToken)
	g.Post("/verify", h.Verify)
	g.Post("/verify/resend", h.ResendVerification)
	g.Get("/me", RequireSession(svc, carrier), h.Me)
	return app
}

func jsonRequest(method, target string, body any) *http.Request {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(method, target, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func cookieNamed(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestHandler_Login(t *testing.T) {
	t.Run("sets cookie on success", func(t *testing.T) {
		svc := new(MockAuthService)
		app := newTestApp(svc, new(MockUserService))

		u := &user.User{Name: "Ana", Email: "ana@example.com", Type: user.TypeStudent}
		svc.On("Login", mock.Anything, mock.MatchedBy(func(p LoginParams) bool {
			return p.Email == "ana@example.com" && p.Password == "pw-123456" && p.UserAgent == "Mozilla/5.0"
		})).Return(&LoginResult{Token: "signed.token.value", User: u}, nil)

		req := jsonRequest("POST", "/v1/auth/login", user.LoginRequest{Email: "ana@example.com", Password: "pw-123456"})
		req.Header.Set("User-Agent", "Mozilla/5.0")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		c := cookieNamed(resp, "accessToken")
		require.NotNil(t, c)
		assert.Equal(t, "signed.token.value", c.Value)
		assert.True(t, c.HttpOnly)
		assert.True(t, c.Secure)
		assert.Equal(t, "/", c.Path)
		assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
		assert.Equal(t, 900, c.MaxAge)
		svc.AssertExpectations(t)
	})

	t.Run("invalid credentials", func(t *testing.T) {
		svc := new(MockAuthService)
		app := newTestApp(svc, new(MockUserService))
		svc.On("Login", mock.Anything, mock.Anything).Return(nil, newError(KindInvalidCredentials, "login rejected", nil, "email", "x@example.com"))

		resp, err := app.Test(jsonRequest("POST", "/v1/auth/login", user.LoginRequest{Email: "x@example.com", Password: "nope-nope"}))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		assert.Nil(t, cookieNamed(resp, "accessToken"))

		body, _ := io.ReadAll(resp.Body)
		assert.Contains(t, string(body), "INVALID_CREDENTIALS")
		assert.NotContains(t, string(body), "x@example.com")
	})

	t.Run("unverified", func(t *testing.T) {
		svc := new(MockAuthService)
		app := newTestApp(svc, new(MockUserService))
		svc.On("Login", mock.Anything, mock.Anything).Return(nil, ErrUserNotVerified)

		resp, err := app.Test(jsonRequest("POST", "/v1/auth/login", user.LoginRequest{Email: "x@example.com", Password: "pw-123456"}))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	})

	t.Run("malformed body", func(t *testing.T) {
		svc := new(MockAuthService)
		app := newTestApp(svc, new(MockUserService))

		req := httptest.NewRequest("POST", "/v1/auth/login", bytes.NewReader([]byte(`{"email": "x", "password": }`)))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		svc.AssertNotCalled(t, "Login", mock.Anything, mock.Anything)
	})

	t.Run("missing fields", func(t *testing.T) {
		svc := new(MockAuthService)
		app := newTestApp(svc, new(MockUserService))

		resp, err := app.Test(jsonRequest("POST", "/v1/auth/login", user.LoginRequest{Email: "x@example.com"}))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})
}

func TestHandler_Register(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"created", nil, fiber.StatusCreated},
		{"email in use", ErrEmailInUse, fiber.StatusConflict},
		{"invalid input", newError(KindInvalidInput, "invalid email address", nil), fiber.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockAuthService)
			app := newTestApp(svc, new(MockUserService))

			req := user.RegisterRequest{Name: "Bo", Email: "bo@example.com", Password: "pw-123456", Type: user.TypeTutor}
			if tt.err != nil {
				svc.On("Register", mock.Anything, req).Return(nil, tt.err)
			} else {
				svc.On("Register", mock.Anything, req).Return(&user.User{Name: "Bo", Email: "bo@example.com", Type: user.TypeTutor}, nil)
			}

			resp, err := app.Test(jsonRequest("POST", "/v1/auth/register", req))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			svc.AssertExpectations(t)
		})
	}
}

func TestHandler_Logout(t *testing.T) {
	t.Run("revokes and clears cookie", func(t *testing.T) {
		svc := new(MockAuthService)
		app := newTestApp(svc, new(MockUserService))
		svc.On("Logout", mock.Anything, "tok", mock.Anything).Return(nil).Once()

		req := httptest.NewRequest("POST", "/v1/auth/logout", nil)
		req.AddCookie(&http.Cookie{Name: "accessToken", Value: "tok"})
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		c := cookieNamed(resp, "accessToken")
		require.NotNil(t, c)
		assert.Empty(t, c.Value)
		svc.AssertExpectations(t)
	})

	t.Run("already revoked", func(t *testing.T) {
		svc := new(MockAuthService)
		app := newTestApp(svc, new(MockUserService))
		svc.On("Logout", mock.Anything, "tok", mock.Anything).Return(ErrInvalidToken)

		req := httptest.NewRequest("POST", "/v1/auth/logout", nil)
		req.Header.Set("Authorization", "Bearer tok")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("no token", func(t *testing.T) {
		app := newTestApp(new(MockAuthService), new(MockUserService))
		resp, err := app.Test(httptest.NewRequest("POST", "/v1/auth/logout", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})
}

func TestHandler_Refresh(t *testing.T) {
	t.Run("rotates with bearer credential", func(t *testing.T) {
		svc := new(MockAuthService)
		app := newTestApp(svc, new(MockUserService))
		svc.On("Renew", mock.Anything, "old-token", mock.Anything, "gate/1.0").Return("new-token", nil)

		req := httptest.NewRequest("POST", "/v1/auth/refresh", nil)
		req.Header.Set("Authorization", "Bearer old-token")
		req.Header.Set("User-Agent", "gate/1.0")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		var body struct {
			Data struct {
				AccessToken string `json:"access_token"`
			} `json:"data"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "new-token", body.Data.AccessToken)
		assert.Equal(t, "new-token", cookieNamed(resp, "accessToken").Value)
	})

	t.Run("rejected", func(t *testing.T) {
		svc := new(MockAuthService)
		app := newTestApp(svc, new(MockUserService))
		svc.On("Renew", mock.Anything, "old-token", mock.Anything, mock.Anything).Return("", ErrInvalidToken)

		req := httptest.NewRequest("POST", "/v1/auth/refresh", nil)
		req.AddCookie(&http.Cookie{Name: "accessToken", Value: "old-token"})
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})
}

func TestHandler_ValidateToken(t *testing.T) {
	svc := new(MockAuthService)
	app := newTestApp(svc, new(MockUserService))
	svc.On("ValidateSession", mock.Anything, "active-id").Return(ValidationResult{Valid: true}, nil)
	svc.On("ValidateSession", mock.Anything, "revoked-id").Return(ValidationResult{Valid: false, Reason: ReasonTokenRevoked}, nil)

	tests := []struct {
		target string
		status int
		want   ValidationResult
	}{
		{"/v1/auth/validate-token?jti=active-id", fiber.StatusOK, ValidationResult{Valid: true}},
		{"/v1/auth/validate-token?jti=revoked-id", fiber.StatusOK, ValidationResult{Valid: false, Reason: "Token revoked"}},
		{"/v1/auth/validate-token", fiber.StatusBadRequest, ValidationResult{Valid: false, Reason: "Missing jti"}},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest("GET", tt.target, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)

			var got ValidationResult
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHandler_Verify(t *testing.T) {
	svc := new(MockAuthService)
	app := newTestApp(svc, new(MockUserService))
	id := uuid.New()
	svc.On("VerifyAccount", mock.Anything, id, "good").Return(nil)
	svc.On("VerifyAccount", mock.Anything, id, "bad").Return(newError(KindInvalidInput, "invalid verification code", nil))

	resp, err := app.Test(jsonRequest("POST", "/v1/auth/verify", VerifyRequest{UserID: id.String(), Code: "good"}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(jsonRequest("POST", "/v1/auth/verify", VerifyRequest{UserID: id.String(), Code: "bad"}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "invalid verification code")

	resp, err = app.Test(jsonRequest("POST", "/v1/auth/verify", VerifyRequest{UserID: "nope", Code: "good"}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestHandler_ResendVerification(t *testing.T) {
	svc := new(MockAuthService)
	app := newTestApp(svc, new(MockUserService))
	svc.On("ResendVerification", mock.Anything, "who@example.com").Return(nil)

	resp, err := app.Test(jsonRequest("POST", "/v1/auth/verify/resend", ResendRequest{Email: "who@example.com"}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	svc.AssertExpectations(t)
}

func TestHandler_Me(t *testing.T) {
	svc := new(MockAuthService)
	users := new(MockUserService)
	app := newTestApp(svc, users)

	u := &user.User{Name: "Cy", Email: "cy@example.com", Type: user.TypeStudent}
	u.ID = uuid.New()
	svc.On("Authenticate", mock.Anything, "good").Return(&Identity{UserID: u.ID, SessionID: uuid.New()}, nil)
	svc.On("Authenticate", mock.Anything, "bad").Return(nil, ErrInvalidToken)
	users.On("GetUserInfo", mock.Anything, u.ID).Return(u, nil)

	req := httptest.NewRequest("GET", "/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "cy@example.com")
	assert.NotContains(t, string(body), "password")

	req = httptest.NewRequest("GET", "/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer bad")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/v1/auth/me", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestErrorKinds(t *testing.T) {
	err := newError(KindInvalidToken, "token rejected", ErrSessionNotFound, "ip", "1.2.3.4")
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, KindInvalidToken, KindOf(err))
	assert.Equal(t, KindUnknown, KindOf(assert.AnError))
	assert.Contains(t, err.LogAttrs(), "1.2.3.4")

	assert.Equal(t, KindInvalidToken.Code(), KindSessionNotFound.Code(), "session state is not leaked")
	assert.Equal(t, fiber.StatusUnauthorized, KindSessionNotFound.Status())
	assert.Equal(t, fiber.StatusConflict, KindEmailInUse.Status())
}
