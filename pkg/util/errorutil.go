package util

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Error codes exposed to API clients.
const (
	CodeInvalidCredentials = "AUTH_001"
	CodeInvalidToken       = "AUTH_002"
	CodeMissingToken       = "AUTH_004"
	CodeAccessDenied       = "AUTH_005"
	CodeInvalidRequest     = "REQ_001"
	CodeNotFound           = "RES_001"
	CodeInternal           = "ERR_001"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeInvalidRequest, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string) error {
	return NewDomainError(CodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound, nil)
}

// NewInvalidCredentials is returned for any failed login.
func NewInvalidCredentials() error {
	return NewDomainError(CodeInvalidCredentials, "invalid username or password", http.StatusUnauthorized, nil)
}

// NewInvalidToken hides which token check failed.
func NewInvalidToken() error {
	return NewDomainError(CodeInvalidToken, "invalid or expired token", http.StatusUnauthorized, nil)
}

// NewMissingToken reports an absent or unparseable bearer credential.
func NewMissingToken(message string) error {
	return NewDomainError(CodeMissingToken, message, http.StatusBadRequest, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeAccessDenied, message, http.StatusForbidden, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		switch fiberErr.Code {
		case http.StatusNotFound:
			return NewDomainError(CodeNotFound, fiberErr.Message, fiberErr.Code, nil)
		case http.StatusMethodNotAllowed, http.StatusBadRequest, http.StatusUnprocessableEntity:
			return NewDomainError(CodeInvalidRequest, fiberErr.Message, fiberErr.Code, nil)
		}
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}
