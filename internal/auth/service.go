// Package auth orchestrates the login, refresh, and logout flows over the
// token service and an external credential verifier.
package auth

import (
	"context"
	"errors"

	"authcore/internal/audit"
	"authcore/internal/token"
)

// ErrInvalidCredentials is returned for a failed login. It deliberately does
// not distinguish unknown usernames from wrong passwords or disabled accounts.
var ErrInvalidCredentials = errors.New("invalid credentials")

// PasswordVerifier checks a username/password pair. Implementations return
// (nil, nil) when the credentials do not match an active principal, and an
// error only for storage or transient failures.
type PasswordVerifier interface {
	Verify(ctx context.Context, username, password string) (*token.Principal, error)
}

// Service wires the authentication flows.
type Service struct {
	verifier PasswordVerifier
	tokens   *token.Service
	auditLog audit.AuditLogger
}

// NewService returns the auth service. auditLog may be nil.
func NewService(verifier PasswordVerifier, tokens *token.Service, auditLog audit.AuditLogger) *Service {
	return &Service{verifier: verifier, tokens: tokens, auditLog: auditLog}
}

// Login verifies the password and opens a new session family. Each login from
// each device gets its own family; concurrent sessions do not interact.
func (s *Service) Login(ctx context.Context, username, password string) (*token.Pair, error) {
	principal, err := s.verifier.Verify(ctx, username, password)
	if err != nil {
		return nil, err
	}
	if principal == nil {
		s.logAudit(ctx, "", audit.ActionLoginFailure, username, "")
		return nil, ErrInvalidCredentials
	}
	pair, err := s.tokens.IssueNewSession(ctx, principal)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, principal.ID, audit.ActionLogin, pair.FamilyID, "")
	return pair, nil
}

// Refresh rotates the refresh credential for a new pair. Semantics and error
// taxonomy are the token service's.
func (s *Service) Refresh(ctx context.Context, refreshCredential string) (*token.Pair, error) {
	pair, err := s.tokens.Rotate(ctx, refreshCredential)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "", audit.ActionRefresh, pair.FamilyID, "")
	return pair, nil
}

// Logout revokes the session family the refresh credential belongs to.
func (s *Service) Logout(ctx context.Context, refreshCredential string) error {
	return s.tokens.Logout(ctx, refreshCredential)
}

// LogoutAll revokes every session family of the principal.
func (s *Service) LogoutAll(ctx context.Context, principalID string) error {
	return s.tokens.LogoutAll(ctx, principalID)
}

func (s *Service) logAudit(ctx context.Context, principalID, action, resource, metadata string) {
	if s.auditLog != nil {
		s.auditLog.LogEvent(ctx, principalID, action, resource, metadata)
	}
}
