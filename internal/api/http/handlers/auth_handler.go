package handlers

import (
	"bytes"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/token-service/internal/api/dto"
	"github.com/spec-kit/token-service/internal/auth"
	"github.com/spec-kit/token-service/internal/domain"
	"github.com/spec-kit/token-service/internal/observability"
	"github.com/spec-kit/token-service/internal/service"
	apperrors "github.com/spec-kit/token-service/pkg/util"
	"github.com/spec-kit/token-service/pkg/validator"
)

// AuthHandler exposes login, refresh and whoami endpoints.
type AuthHandler struct {
	auth     *service.AuthService
	validate *validator.Validator
	logger   *zap.Logger
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, validate *validator.Validator, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: authService, validate: validate, logger: logger}
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	details, err := h.validate.Struct(req)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if details != nil {
		return apperrors.NewValidationError("username and password required", details)
	}

	pair, err := h.auth.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			h.logger.Warn("login failed",
				zap.String("correlation_id", observability.CorrelationIDFromContext(c)),
				zap.String("username", req.Username),
			)
			return apperrors.NewInvalidCredentials()
		}
		return apperrors.NewInternalError(err)
	}

	return c.JSON(dto.OK(h.tokenResponse(pair), "login succeeded"))
}

// Refresh handles POST /api/auth/refresh.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	if len(bytes.TrimSpace(c.Body())) == 0 {
		return apperrors.NewMissingToken("refresh token required")
	}
	var req dto.RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		return apperrors.NewMissingToken("refresh token required")
	}

	pair, err := h.auth.Refresh(c.UserContext(), strings.TrimSpace(req.RefreshToken))
	if err != nil {
		return h.tokenFailure(c, err)
	}

	return c.JSON(dto.OK(h.tokenResponse(pair), "token refreshed"))
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewInvalidToken()
	}
	roles := principal.Roles
	if roles == nil {
		roles = []string{}
	}
	return c.JSON(dto.OK(dto.PrincipalResponse{Subject: principal.Subject, Roles: roles}, "ok"))
}

func (h *AuthHandler) tokenResponse(pair domain.TokenPair) dto.TokenResponse {
	return dto.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    h.auth.AccessTokenTTLSeconds(),
	}
}

// tokenFailure collapses every token validation failure into one 401 and
// logs the specific reason.
func (h *AuthHandler) tokenFailure(c *fiber.Ctx, err error) error {
	reason := auth.Reason(err)
	if reason == "" && errors.Is(err, service.ErrUnknownSubject) {
		reason = "unknown_subject"
	}
	if reason == "" {
		return apperrors.NewInternalError(err)
	}
	h.logger.Warn("refresh token rejected",
		zap.String("correlation_id", observability.CorrelationIDFromContext(c)),
		zap.String("reason", reason),
	)
	return apperrors.NewInvalidToken()
}
