package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenCodec signs and verifies HS256 JWTs with a single symmetric key.
// It holds no mutable state and is safe for concurrent use.
type TokenCodec struct {
	secret []byte
	issuer string
	now    func() time.Time
	parser *jwt.Parser
}

// CodecOption customizes a TokenCodec.
type CodecOption func(*TokenCodec)

// WithClock replaces the wall clock used for iat, exp and expiry checks.
func WithClock(now func() time.Time) CodecOption {
	return func(c *TokenCodec) {
		if now != nil {
			c.now = now
		}
	}
}

// WithIssuer stamps iss on signed tokens and requires it on verification.
func WithIssuer(issuer string) CodecOption {
	return func(c *TokenCodec) {
		c.issuer = strings.TrimSpace(issuer)
	}
}

// NewTokenCodec builds a codec over a copy of secret.
func NewTokenCodec(secret []byte, opts ...CodecOption) (*TokenCodec, error) {
	if len(secret) == 0 {
		return nil, errors.New("token codec requires a signing secret")
	}
	c := &TokenCodec{
		secret: append([]byte(nil), secret...),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
		jwt.WithStrictDecoding(),
	}
	if c.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(c.issuer))
	}
	c.parser = jwt.NewParser(parserOpts...)
	return c, nil
}

// Sign builds a token for subject carrying claims, valid for ttl.
// Registered claims (sub, iat, exp, jti, iss) in claims are overwritten;
// nbf and aud are dropped.
func (c *TokenCodec) Sign(subject string, claims map[string]any, ttl time.Duration) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", fmt.Errorf("%w: empty subject", ErrInvalidArgument)
	}
	if ttl < jwt.TimePrecision {
		return "", fmt.Errorf("%w: ttl %s below %s", ErrInvalidArgument, ttl, jwt.TimePrecision)
	}

	now := c.now()
	payload := make(jwt.MapClaims, len(claims)+5)
	for k, v := range claims {
		payload[k] = v
	}
	delete(payload, claimNotBefore)
	delete(payload, claimAudience)
	payload[ClaimSubject] = subject
	payload[ClaimIssuedAt] = jwt.NewNumericDate(now)
	payload[ClaimExpiresAt] = jwt.NewNumericDate(now.Add(ttl))
	payload[ClaimID] = uuid.NewString()
	if c.issuer != "" {
		payload[ClaimIssuer] = c.issuer
	} else {
		delete(payload, ClaimIssuer)
	}

	// MapClaims marshals with sorted keys, so the signed payload is canonical.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, payload)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the full claim set.
// The signature is checked before any claim, so a tampered expired token
// reports ErrInvalidSignature.
func (c *TokenCodec) Verify(tokenStr string) (Claims, error) {
	claims := jwt.MapClaims{}
	if token, err := c.parser.ParseWithClaims(tokenStr, claims, c.keyFunc); err != nil {
		return nil, classify(token, err)
	}
	if sub, _ := claims[ClaimSubject].(string); sub == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrMalformedToken)
	}
	return Claims(claims), nil
}

func (c *TokenCodec) keyFunc(token *jwt.Token) (interface{}, error) {
	if token.Method != jwt.SigningMethodHS256 {
		return nil, errors.New("unexpected signing method")
	}
	return c.secret, nil
}

// classify maps jwt/v5 errors onto the codec sentinels. jwt sets Method only
// after header and payload decode, so a malformed error on such a token came
// from the signature segment.
func classify(token *jwt.Token, err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed) && token != nil && token.Method != nil:
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpiredToken, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
}
