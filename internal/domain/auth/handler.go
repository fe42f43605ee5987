package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/eduyeet/authgate/internal/domain/user"
	"github.com/eduyeet/authgate/internal/utils"
)

// AuthService is what the HTTP handlers need from the credential service.
type AuthService interface {
	Authenticator
	Login(ctx context.Context, p LoginParams) (*LoginResult, error)
	Register(ctx context.Context, req user.RegisterRequest) (*user.User, error)
	Renew(ctx context.Context, raw, ip, userAgent string) (string, error)
	Logout(ctx context.Context, raw, ip string) error
	ValidateSession(ctx context.Context, sessionID string) (ValidationResult, error)
	VerifyAccount(ctx context.Context, userID uuid.UUID, code string) error
	ResendVerification(ctx context.Context, email string) error
}

type Handler struct {
	authService AuthService
	userService user.Service
	carrier     *Carrier
}

// NewHandler creates a new Handler
func NewHandler(s AuthService, userService user.Service, carrier *Carrier) *Handler {
	return &Handler{
		authService: s,
		userService: userService,
		carrier:     carrier,
	}
}

// VerifyRequest is the account confirmation form.
type VerifyRequest struct {
	UserID string `json:"user_id" form:"user_id"`
	Code   string `json:"code" form:"code"`
}

// ResendRequest asks for a new verification code.
type ResendRequest struct {
	Email string `json:"email" form:"email"`
}

func toAPIError(err error) *utils.APIError {
	kind := KindOf(err)
	msg := kind.PublicMessage()
	var e *Error
	if kind == KindInvalidInput && errors.As(err, &e) && e.Message != "" {
		msg = e.Message
	}
	return utils.NewAPIError(kind.Code(), msg, kind.Status())
}

func (h *Handler) Login(c *fiber.Ctx) error {
	var req user.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, utils.ErrBadRequest)
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return utils.ErrorResponse(c, utils.NewAPIError("INVALID_INPUT", "Email and password are required", fiber.StatusBadRequest))
	}

	res, err := h.authService.Login(c.UserContext(), LoginParams{
		Email:     req.Email,
		Password:  req.Password,
		IPAddress: c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	})
	if err != nil {
		return utils.ErrorResponse(c, toAPIError(err))
	}

	h.carrier.Set(c, res.Token)
	return utils.SuccessResponse(c, fiber.Map{
		"user":         res.User.ToResponse(),
		"access_token": res.Token,
	}, "Login successful")
}

func (h *Handler) Register(c *fiber.Ctx) error {
	var req user.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, utils.ErrBadRequest)
	}

	u, err := h.authService.Register(c.UserContext(), req)
	if err != nil {
		return utils.ErrorResponse(c, toAPIError(err))
	}

	return utils.SuccessResponse(c, fiber.Map{
		"user": u.ToResponse(),
	}, "User registered successfully, please check your email", fiber.StatusCreated)
}

func (h *Handler) Logout(c *fiber.Ctx) error {
	raw := h.carrier.Read(c)
	h.carrier.Clear(c)
	if raw == "" {
		return utils.ErrorResponse(c, utils.ErrUnauthorized)
	}

	if err := h.authService.Logout(c.UserContext(), raw, c.IP()); err != nil {
		return utils.ErrorResponse(c, toAPIError(err))
	}
	return utils.SuccessResponse(c, nil, "Logged out")
}

// Refresh is the rotation boundary. The current token authorizes the call.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	raw := BearerToken(c)
	if raw == "" {
		raw = h.carrier.Read(c)
	}
	if raw == "" {
		return utils.ErrorResponse(c, utils.ErrUnauthorized)
	}

	fresh, err := h.authService.Renew(c.UserContext(), raw, c.IP(), c.Get(fiber.HeaderUserAgent))
	if err != nil {
		h.carrier.Clear(c)
		return utils.ErrorResponse(c, toAPIError(err))
	}

	h.carrier.Set(c, fresh)
	return utils.SuccessResponse(c, fiber.Map{"access_token": fresh}, "Token refreshed")
}

// ValidateToken is the validation boundary: GET ?jti=<session id> -> {valid, reason}.
func (h *Handler) ValidateToken(c *fiber.Ctx) error {
	jti := strings.TrimSpace(c.Query("jti"))
	if jti == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ValidationResult{Valid: false, Reason: "Missing jti"})
	}

	res, err := h.authService.ValidateSession(c.UserContext(), jti)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ValidationResult{Valid: false})
	}
	return c.JSON(res)
}

func (h *Handler) Verify(c *fiber.Ctx) error {
	var req VerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, utils.ErrBadRequest)
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil || req.Code == "" {
		return utils.ErrorResponse(c, utils.NewAPIError("INVALID_INPUT", "user_id and code are required", fiber.StatusBadRequest))
	}

	if err := h.authService.VerifyAccount(c.UserContext(), userID, req.Code); err != nil {
		return utils.ErrorResponse(c, toAPIError(err))
	}
	return utils.SuccessResponse(c, nil, "Account verified")
}

func (h *Handler) ResendVerification(c *fiber.Ctx) error {
	var req ResendRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		return utils.ErrorResponse(c, utils.ErrBadRequest)
	}

	if err := h.authService.ResendVerification(c.UserContext(), req.Email); err != nil {
		return utils.ErrorResponse(c, toAPIError(err))
	}
	return utils.SuccessResponse(c, nil, "If the account exists, a verification email has been sent")
}

// Me returns the authenticated user
func (h *Handler) Me(c *fiber.Ctx) error {
	identity, ok := GetIdentity(c)
	if !ok {
		return utils.ErrorResponse(c, utils.ErrUnauthorized)
	}

	u, err := h.userService.GetUserInfo(c.UserContext(), identity.UserID)
	if err != nil {
		return utils.ErrorResponse(c, utils.ErrNotFound)
	}

	return utils.SuccessResponse(c, fiber.Map{
		"user": u.ToResponse(),
	}, "User information retrieved successfully")
}
