package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/token-service/internal/auth"
	"github.com/spec-kit/token-service/internal/config"
	"github.com/spec-kit/token-service/internal/domain"
	"github.com/spec-kit/token-service/internal/observability"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

var testAuthConfig = config.AuthConfig{
	JWTSecret:              testSecret,
	AccessTokenTTLSeconds:  900,
	RefreshTokenTTLSeconds: 604800,
}

// staticClaims returns a role list per subject and counts lookups.
type staticClaims struct {
	mu    sync.Mutex
	roles map[string][]string
	calls int
	err   error
}

func (s *staticClaims) Claims(_ context.Context, subject string) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	roles, ok := s.roles[subject]
	if !ok {
		return nil, ErrUnknownSubject
	}
	return map[string]any{auth.ClaimRoles: roles}, nil
}

func (s *staticClaims) set(subject string, roles ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[subject] = roles
}

func newStaticClaims() *staticClaims {
	return &staticClaims{roles: map[string][]string{"user": {"ROLE_USER"}}}
}

func newTestTokenService(t *testing.T, provider ClaimsProvider, opts ...auth.CodecOption) (*TokenService, *auth.TokenCodec, *prometheus.Registry) {
	t.Helper()
	codec, err := auth.NewTokenCodec(testSecret, opts...)
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	return NewTokenService(codec, provider, testAuthConfig, observability.NewMetrics(reg)), codec, reg
}

func TestIssueAccessTokenInjectsType(t *testing.T) {
	svc, codec, _ := newTestTokenService(t, newStaticClaims())

	token, err := svc.IssueAccessToken("user", map[string]any{
		auth.ClaimType:  "refresh",
		auth.ClaimRoles: []string{"ROLE_USER"},
	})
	require.NoError(t, err)

	claims, err := codec.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, domain.TokenTypeAccess, claims.Type())
	assert.Equal(t, []string{"ROLE_USER"}, claims.Roles())
	assert.Equal(t, 900*time.Second, claims.ExpiresAt().Sub(claims.IssuedAt()))
}

func TestIssueRefreshTokenCarriesOnlyType(t *testing.T) {
	svc, codec, _ := newTestTokenService(t, newStaticClaims())

	token, err := svc.IssueRefreshToken("user")
	require.NoError(t, err)

	claims, err := codec.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, domain.TokenTypeRefresh, claims.Type())
	assert.Equal(t, "user", claims.Subject())
	assert.NotContains(t, claims, auth.ClaimRoles)
	assert.Equal(t, 7*24*time.Hour, claims.ExpiresAt().Sub(claims.IssuedAt()))
}

func TestIssuePair(t *testing.T) {
	svc, codec, reg := newTestTokenService(t, newStaticClaims())

	pair, err := svc.IssuePair("user", map[string]any{auth.ClaimRoles: []string{"ROLE_USER"}})
	require.NoError(t, err)

	access, err := codec.Verify(pair.AccessToken)
	require.NoError(t, err)
	refresh, err := codec.Verify(pair.RefreshToken)
	require.NoError(t, err)

	assert.Equal(t, domain.TokenTypeAccess, access.Type())
	assert.Equal(t, domain.TokenTypeRefresh, refresh.Type())
	assert.Equal(t, access.Subject(), refresh.Subject())
	assert.True(t, refresh.ExpiresAt().After(access.ExpiresAt()))

	assert.Equal(t, 1.0, counterValue(t, reg, "tokens_issued_total", "access"))
	assert.Equal(t, 1.0, counterValue(t, reg, "tokens_issued_total", "refresh"))
}

func TestIssuePairRejectsEmptySubject(t *testing.T) {
	svc, _, _ := newTestTokenService(t, newStaticClaims())

	_, err := svc.IssuePair("", nil)
	require.ErrorIs(t, err, auth.ErrInvalidArgument)
}

func TestRotateIssuesFreshPairWithCurrentClaims(t *testing.T) {
	provider := newStaticClaims()
	svc, codec, _ := newTestTokenService(t, provider)

	pair, err := svc.IssuePair("user", map[string]any{auth.ClaimRoles: []string{"ROLE_USER"}})
	require.NoError(t, err)

	provider.set("user", "ROLE_USER", "ROLE_ADMIN")

	rotated, presented, err := svc.Rotate(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "user", presented.Subject())

	assert.NotEqual(t, pair.AccessToken, rotated.AccessToken)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	access, err := codec.Verify(rotated.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, domain.TokenTypeAccess, access.Type())
	assert.Equal(t, []string{"ROLE_USER", "ROLE_ADMIN"}, access.Roles())

	refresh, err := codec.Verify(rotated.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, domain.TokenTypeRefresh, refresh.Type())
	assert.NotContains(t, refresh, auth.ClaimRoles)
}

func TestRotateRejectsAccessToken(t *testing.T) {
	provider := newStaticClaims()
	svc, _, reg := newTestTokenService(t, provider)

	pair, err := svc.IssuePair("user", map[string]any{auth.ClaimRoles: []string{"ROLE_USER"}})
	require.NoError(t, err)

	_, _, err = svc.Rotate(context.Background(), pair.AccessToken)
	require.ErrorIs(t, err, auth.ErrWrongTokenType)
	assert.Zero(t, provider.calls)
	assert.Equal(t, 1.0, counterValue(t, reg, "token_verifications_failed_total", "wrong_type"))
	assert.Equal(t, 1.0, counterValue(t, reg, "token_rotations_total", "wrong_type"))
}

func TestVerifyAccessTokenRejectsRefreshToken(t *testing.T) {
	svc, _, _ := newTestTokenService(t, newStaticClaims())

	refresh, err := svc.IssueRefreshToken("user")
	require.NoError(t, err)

	_, err = svc.VerifyAccessToken(refresh)
	require.ErrorIs(t, err, auth.ErrWrongTokenType)

	access, err := svc.IssueAccessToken("user", nil)
	require.NoError(t, err)
	claims, err := svc.VerifyAccessToken(access)
	require.NoError(t, err)
	assert.Equal(t, "user", claims.Subject())
}

func TestRotateTwiceWithSameTokenSucceedsBothTimes(t *testing.T) {
	svc, _, _ := newTestTokenService(t, newStaticClaims())

	refresh, err := svc.IssueRefreshToken("user")
	require.NoError(t, err)

	first, _, err := svc.Rotate(context.Background(), refresh)
	require.NoError(t, err)
	second, _, err := svc.Rotate(context.Background(), refresh)
	require.NoError(t, err)

	assert.NotEqual(t, first.AccessToken, second.AccessToken)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
}

func TestRotatePropagatesCodecFailures(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	svc, _, _ := newTestTokenService(t, newStaticClaims(), auth.WithClock(clock))

	refresh, err := svc.IssueRefreshToken("user")
	require.NoError(t, err)

	dot := strings.LastIndex(refresh, ".")
	flipped := byte('A')
	if refresh[dot+1] == 'A' {
		flipped = 'B'
	}
	tampered := refresh[:dot+1] + string(flipped) + refresh[dot+2:]

	_, _, err = svc.Rotate(context.Background(), tampered)
	require.ErrorIs(t, err, auth.ErrInvalidSignature)

	_, _, err = svc.Rotate(context.Background(), "garbage")
	require.ErrorIs(t, err, auth.ErrMalformedToken)

	now = now.Add(8 * 24 * time.Hour)
	_, _, err = svc.Rotate(context.Background(), refresh)
	require.ErrorIs(t, err, auth.ErrExpiredToken)
}

func TestRotateFailsWhenSubjectIsGone(t *testing.T) {
	provider := newStaticClaims()
	svc, _, _ := newTestTokenService(t, provider)

	refresh, err := svc.IssueRefreshToken("ghost")
	require.NoError(t, err)

	_, _, err = svc.Rotate(context.Background(), refresh)
	require.ErrorIs(t, err, ErrUnknownSubject)
}

func TestRotateWrapsProviderErrors(t *testing.T) {
	provider := newStaticClaims()
	provider.err = errors.New("directory offline")
	svc, _, _ := newTestTokenService(t, provider)

	refresh, err := svc.IssueRefreshToken("user")
	require.NoError(t, err)

	_, _, err = svc.Rotate(context.Background(), refresh)
	require.Error(t, err)
	assert.Empty(t, auth.Reason(err))
	assert.Contains(t, err.Error(), "directory offline")
}

func TestConcurrentIssuanceKeepsSubjectsApart(t *testing.T) {
	provider := newStaticClaims()
	const n = 32
	for i := 0; i < n; i++ {
		provider.set(fmt.Sprintf("user-%d", i), fmt.Sprintf("ROLE_%d", i))
	}
	svc, codec, _ := newTestTokenService(t, provider)

	pairs := make([]domain.TokenPair, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			subject := fmt.Sprintf("user-%d", i)
			pair, err := svc.IssuePair(subject, map[string]any{auth.ClaimRoles: []string{fmt.Sprintf("ROLE_%d", i)}})
			if err == nil {
				pair, _, err = svc.Rotate(context.Background(), pair.RefreshToken)
			}
			pairs[i], errs[i] = pair, err
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		subject := fmt.Sprintf("user-%d", i)

		access, err := codec.Verify(pairs[i].AccessToken)
		require.NoError(t, err)
		assert.Equal(t, subject, access.Subject())
		assert.Equal(t, []string{fmt.Sprintf("ROLE_%d", i)}, access.Roles())

		refresh, err := codec.Verify(pairs[i].RefreshToken)
		require.NoError(t, err)
		assert.Equal(t, subject, refresh.Subject())
	}
}

// counterValue sums the counter samples of name whose single label equals value.
func counterValue(t *testing.T, reg *prometheus.Registry, name, value string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetValue() == value {
					total += m.GetCounter().GetValue()
				}
			}
		}
	}
	return total
}
