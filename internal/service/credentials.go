package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/spec-kit/token-service/internal/auth"
	"github.com/spec-kit/token-service/internal/domain"
	"github.com/spec-kit/token-service/internal/repository"
)

var (
	// ErrInvalidCredentials is returned when a login does not match an active account.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnknownSubject is returned when a token subject no longer maps to an active account.
	ErrUnknownSubject = errors.New("unknown subject")
)

// CredentialVerifier decides whether a username/password pair is valid.
type CredentialVerifier interface {
	Verify(ctx context.Context, username, password string) (bool, error)
}

// PasswordCredentials checks bcrypt hashes stored in a UserRepository.
type PasswordCredentials struct {
	users repository.UserRepository
}

// NewPasswordCredentials builds a verifier over users.
func NewPasswordCredentials(users repository.UserRepository) *PasswordCredentials {
	return &PasswordCredentials{users: users}
}

// Verify implements CredentialVerifier. Unknown and disabled accounts are a
// plain mismatch, not an error.
func (p *PasswordCredentials) Verify(ctx context.Context, username, password string) (bool, error) {
	user, err := p.users.GetByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup user: %w", err)
	}
	if !user.Active() {
		return false, nil
	}
	return auth.PasswordMatches(user.PasswordHash, password)
}

// RoleClaimsProvider derives access token claims from the stored role list.
type RoleClaimsProvider struct {
	users repository.UserRepository
}

// NewRoleClaimsProvider builds a provider over users.
func NewRoleClaimsProvider(users repository.UserRepository) *RoleClaimsProvider {
	return &RoleClaimsProvider{users: users}
}

// Claims implements ClaimsProvider.
func (p *RoleClaimsProvider) Claims(ctx context.Context, subject string) (map[string]any, error) {
	user, err := p.users.GetByUsername(ctx, subject)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUnknownSubject
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !user.Active() {
		return nil, ErrUnknownSubject
	}
	return map[string]any{auth.ClaimRoles: append([]string{}, user.Roles...)}, nil
}

// SeedUser stores an account with a freshly hashed password. An existing
// account with the same username is left untouched.
func SeedUser(ctx context.Context, users repository.UserRepository, username, password string, roles []string, cost int) error {
	hash, err := auth.HashPassword(password, cost)
	if err != nil {
		return err
	}
	user := &domain.User{
		Username:     username,
		PasswordHash: hash,
		Roles:        roles,
		Status:       domain.UserStatusActive,
	}
	if err := users.Create(ctx, user); err != nil && !errors.Is(err, repository.ErrDuplicate) {
		return fmt.Errorf("seed user: %w", err)
	}
	return nil
}
