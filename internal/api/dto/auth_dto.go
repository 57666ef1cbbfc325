package dto

import "time"

// LoginRequest payload for POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=128"`
	Password string `json:"password" validate:"required,max=256"`
}

// RefreshRequest payload for POST /api/auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// TokenResponse is returned by login and refresh.
type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// PrincipalResponse describes the caller of GET /api/auth/me.
type PrincipalResponse struct {
	Subject string   `json:"subject"`
	Roles   []string `json:"roles"`
}

// Envelope wraps every successful response body.
type Envelope struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Data      any       `json:"data,omitempty"`
	Status    int       `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// OK builds a SUCCESS envelope.
func OK(data any, message string) Envelope {
	return Envelope{
		Code:      "SUCCESS",
		Message:   message,
		Data:      data,
		Status:    200,
		Timestamp: time.Now().UTC(),
	}
}
