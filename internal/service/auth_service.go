package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/token-service/internal/auth"
	"github.com/spec-kit/token-service/internal/domain"
	"github.com/spec-kit/token-service/internal/events"
)

// AuthService coordinates login and refresh flows on top of the token engine.
type AuthService struct {
	credentials CredentialVerifier
	claims      ClaimsProvider
	tokens      *TokenService
	dispatcher  events.Dispatcher
	logger      *zap.Logger
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	Credentials CredentialVerifier
	Claims      ClaimsProvider
	Tokens      *TokenService
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		credentials: deps.Credentials,
		claims:      deps.Claims,
		tokens:      deps.Tokens,
		dispatcher:  deps.Dispatcher,
		logger:      logger,
	}
}

// Login checks credentials and issues a token pair whose access token
// carries the subject's current claims.
func (s *AuthService) Login(ctx context.Context, username, password string) (domain.TokenPair, error) {
	ok, err := s.credentials.Verify(ctx, username, password)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("verify credentials: %w", err)
	}
	if !ok {
		s.publish(ctx, events.NewEvent(events.EventLoginFailed, username, nil))
		return domain.TokenPair{}, ErrInvalidCredentials
	}

	claims, err := s.claims.Claims(ctx, username)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("load claims: %w", err)
	}
	pair, err := s.tokens.IssuePair(username, claims)
	if err != nil {
		return domain.TokenPair{}, err
	}

	s.publish(ctx, events.NewEvent(events.EventLoginSucceeded, username, nil))
	return pair, nil
}

// Refresh rotates a refresh token into a new pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	pair, presented, err := s.tokens.Rotate(ctx, refreshToken)
	if err != nil {
		if reason := auth.Reason(err); reason != "" {
			s.publish(ctx, events.NewEvent(events.EventTokenRejected, "", events.TokenRejectedPayload{
				Operation: "refresh",
				Reason:    reason,
			}))
		}
		return domain.TokenPair{}, err
	}

	s.publish(ctx, events.NewEvent(events.EventTokenRotated, presented.Subject(), events.TokenRotatedPayload{
		RefreshTokenID: presented.ID(),
	}))
	return pair, nil
}

// AccessTokenTTLSeconds reports the lifetime of issued access tokens.
func (s *AuthService) AccessTokenTTLSeconds() int64 {
	return int64(s.tokens.AccessTTL().Seconds())
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("audit event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}
