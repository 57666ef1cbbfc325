package service

import (
	"context"
	"fmt"
	"time"

	"github.com/spec-kit/token-service/internal/auth"
	"github.com/spec-kit/token-service/internal/config"
	"github.com/spec-kit/token-service/internal/domain"
	"github.com/spec-kit/token-service/internal/observability"
)

// ClaimsProvider returns the current authorization claims for a subject.
// Rotation calls it on every refresh so roles are never frozen into the
// long-lived refresh token.
type ClaimsProvider interface {
	Claims(ctx context.Context, subject string) (map[string]any, error)
}

// TokenService issues access/refresh pairs and rotates refresh tokens. It
// keeps no state besides its collaborators and is safe for concurrent use.
type TokenService struct {
	codec      *auth.TokenCodec
	claims     ClaimsProvider
	accessTTL  time.Duration
	refreshTTL time.Duration
	metrics    *observability.Metrics
}

// NewTokenService builds the service. metrics may be nil.
func NewTokenService(codec *auth.TokenCodec, claims ClaimsProvider, cfg config.AuthConfig, metrics *observability.Metrics) *TokenService {
	return &TokenService{
		codec:      codec,
		claims:     claims,
		accessTTL:  cfg.AccessTokenTTL(),
		refreshTTL: cfg.RefreshTokenTTL(),
		metrics:    metrics,
	}
}

// AccessTTL returns the lifetime of issued access tokens.
func (s *TokenService) AccessTTL() time.Duration {
	return s.accessTTL
}

// IssueAccessToken signs an access token carrying claims. A caller-supplied
// type claim is overridden.
func (s *TokenService) IssueAccessToken(subject string, claims map[string]any) (string, error) {
	payload := make(map[string]any, len(claims)+1)
	for k, v := range claims {
		payload[k] = v
	}
	payload[auth.ClaimType] = string(domain.TokenTypeAccess)

	token, err := s.codec.Sign(subject, payload, s.accessTTL)
	if err != nil {
		return "", fmt.Errorf("issue access token: %w", err)
	}
	s.metrics.RecordIssued(string(domain.TokenTypeAccess))
	return token, nil
}

// IssueRefreshToken signs a refresh token carrying nothing but its type.
func (s *TokenService) IssueRefreshToken(subject string) (string, error) {
	payload := map[string]any{auth.ClaimType: string(domain.TokenTypeRefresh)}

	token, err := s.codec.Sign(subject, payload, s.refreshTTL)
	if err != nil {
		return "", fmt.Errorf("issue refresh token: %w", err)
	}
	s.metrics.RecordIssued(string(domain.TokenTypeRefresh))
	return token, nil
}

// IssuePair signs a fresh access and refresh token for subject.
func (s *TokenService) IssuePair(subject string, claims map[string]any) (domain.TokenPair, error) {
	access, err := s.IssueAccessToken(subject, claims)
	if err != nil {
		return domain.TokenPair{}, err
	}
	refresh, err := s.IssueRefreshToken(subject)
	if err != nil {
		return domain.TokenPair{}, err
	}
	return domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Rotate exchanges a valid refresh token for a brand-new pair. The presented
// token is not consumed: there is no replay store, so it stays usable until
// it expires. Codec failures are returned unchanged. The verified claims of
// the presented token are returned alongside the pair for auditing.
func (s *TokenService) Rotate(ctx context.Context, refreshToken string) (domain.TokenPair, auth.Claims, error) {
	claims, err := s.verify(refreshToken, domain.TokenTypeRefresh)
	if err != nil {
		s.metrics.RecordRotation(auth.Reason(err))
		return domain.TokenPair{}, nil, err
	}

	subject := claims.Subject()
	fresh, err := s.claims.Claims(ctx, subject)
	if err != nil {
		s.metrics.RecordRotation("claims_unavailable")
		return domain.TokenPair{}, nil, fmt.Errorf("load claims: %w", err)
	}

	pair, err := s.IssuePair(subject, fresh)
	if err != nil {
		s.metrics.RecordRotation("sign_failed")
		return domain.TokenPair{}, nil, err
	}
	s.metrics.RecordRotation("ok")
	return pair, claims, nil
}

// VerifyAccessToken verifies token and requires it to be an access token.
func (s *TokenService) VerifyAccessToken(token string) (auth.Claims, error) {
	return s.verify(token, domain.TokenTypeAccess)
}

func (s *TokenService) verify(token string, want domain.TokenType) (auth.Claims, error) {
	claims, err := s.codec.Verify(token)
	if err != nil {
		s.metrics.RecordVerificationFailure(auth.Reason(err))
		return nil, err
	}
	if got := claims.Type(); got != want {
		err := fmt.Errorf("%w: got %q, want %q", auth.ErrWrongTokenType, got, want)
		s.metrics.RecordVerificationFailure(auth.Reason(err))
		return nil, err
	}
	return claims, nil
}
