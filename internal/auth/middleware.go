package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	apperrors "github.com/spec-kit/token-service/pkg/util"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	Subject string
	Roles   []string
	TokenID string
}

// HasRole reports whether the principal carries role.
func (p *Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AccessTokenVerifier verifies a bearer string as an access token.
type AccessTokenVerifier interface {
	VerifyAccessToken(token string) (Claims, error)
}

// AuthMiddleware validates bearer tokens and stores the principal.
type AuthMiddleware struct {
	tokens AccessTokenVerifier
	logger *zap.Logger
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens AccessTokenVerifier, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, logger: logger}
}

// Handle enforces authentication for protected routes. Every token failure
// yields the same 401; the specific reason is only logged.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	token, err := BearerToken(c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return err
	}

	claims, err := m.tokens.VerifyAccessToken(token)
	if err != nil {
		m.logger.Warn("access token rejected",
			zap.String("reason", Reason(err)),
			zap.String("path", c.Path()),
		)
		return apperrors.NewInvalidToken()
	}

	c.Locals(principalKey, &Principal{
		Subject: claims.Subject(),
		Roles:   claims.Roles(),
		TokenID: claims.ID(),
	})
	return c.Next()
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", apperrors.NewMissingToken("missing authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", apperrors.NewMissingToken("invalid authorization header")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", apperrors.NewMissingToken("missing bearer token")
	}
	return token, nil
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
