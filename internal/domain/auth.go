package domain

// TokenType discriminates access tokens from refresh tokens.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// TokenPair bundles an access token with the refresh token issued alongside it.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}
