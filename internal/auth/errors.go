package auth

import "errors"

var (
	// ErrMalformedToken reports input that does not decode as a signed token.
	ErrMalformedToken = errors.New("malformed token")
	// ErrInvalidSignature reports a decodable token whose MAC does not match.
	ErrInvalidSignature = errors.New("invalid token signature")
	// ErrExpiredToken reports a correctly signed token past its expiry.
	ErrExpiredToken = errors.New("token expired")
	// ErrWrongTokenType reports a valid token presented where the other type is required.
	ErrWrongTokenType = errors.New("wrong token type")
	// ErrInvalidArgument reports a sign request with an empty subject or a ttl under one second.
	ErrInvalidArgument = errors.New("invalid token argument")
)

// Reason returns a stable label for a token validation failure, or "" when
// err is not one. Used for log fields and metric labels.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrMalformedToken):
		return "malformed"
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, ErrExpiredToken):
		return "expired"
	case errors.Is(err, ErrWrongTokenType):
		return "wrong_type"
	default:
		return ""
	}
}
