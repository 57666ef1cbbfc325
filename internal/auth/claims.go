package auth

import (
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/token-service/internal/domain"
)

// Claim names carried in every token payload.
const (
	ClaimSubject   = "sub"
	ClaimIssuedAt  = "iat"
	ClaimExpiresAt = "exp"
	ClaimID        = "jti"
	ClaimIssuer    = "iss"
	ClaimType      = "type"
	ClaimRoles     = "roles"

	claimNotBefore = "nbf"
	claimAudience  = "aud"
)

// Claims is the verified payload of a token.
type Claims map[string]any

// Subject returns the principal identifier.
func (c Claims) Subject() string {
	sub, _ := c[ClaimSubject].(string)
	return sub
}

// Type returns the token purpose, or "" when the claim is absent.
func (c Claims) Type() domain.TokenType {
	typ, _ := c[ClaimType].(string)
	return domain.TokenType(typ)
}

// ID returns the unique token identifier.
func (c Claims) ID() string {
	id, _ := c[ClaimID].(string)
	return id
}

// Roles returns the role list of an access token.
func (c Claims) Roles() []string {
	switch roles := c[ClaimRoles].(type) {
	case []string:
		return append([]string(nil), roles...)
	case []any:
		out := make([]string, 0, len(roles))
		for _, r := range roles {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// IssuedAt returns the iat claim as a time, zero when absent.
func (c Claims) IssuedAt() time.Time {
	iat, err := jwt.MapClaims(c).GetIssuedAt()
	if err != nil || iat == nil {
		return time.Time{}
	}
	return iat.Time
}

// ExpiresAt returns the exp claim as a time, zero when absent.
func (c Claims) ExpiresAt() time.Time {
	exp, err := jwt.MapClaims(c).GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
