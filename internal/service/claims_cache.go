package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const claimsCacheKeyPrefix = "claims:subject:"

// CachedClaimsProvider memoizes another provider in Redis for a short ttl.
// Redis failures fall through to the wrapped provider.
type CachedClaimsProvider struct {
	next   ClaimsProvider
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedClaimsProvider wraps next. With a nil client or a non-positive ttl
// it returns next unchanged.
func NewCachedClaimsProvider(next ClaimsProvider, client *redis.Client, ttl time.Duration, logger *zap.Logger) ClaimsProvider {
	if client == nil || ttl <= 0 {
		return next
	}
	return &CachedClaimsProvider{next: next, client: client, ttl: ttl, logger: logger}
}

// Claims implements ClaimsProvider.
func (p *CachedClaimsProvider) Claims(ctx context.Context, subject string) (map[string]any, error) {
	key := claimsCacheKeyPrefix + subject

	raw, err := p.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var claims map[string]any
		if jsonErr := json.Unmarshal(raw, &claims); jsonErr == nil {
			return claims, nil
		}
		p.logger.Warn("discarding corrupt claims cache entry", zap.String("subject", subject))
	case !errors.Is(err, redis.Nil):
		p.logger.Warn("claims cache read failed", zap.String("subject", subject), zap.Error(err))
	}

	claims, err := p.next.Claims(ctx, subject)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(claims)
	if err != nil {
		return claims, nil
	}
	if err := p.client.Set(ctx, key, encoded, p.ttl).Err(); err != nil {
		p.logger.Warn("claims cache write failed", zap.String("subject", subject), zap.Error(err))
	}
	return claims, nil
}
