// Package principal provides the local account directory backing the
// authentication flows.
package principal

import (
	"context"

	"authcore/internal/principal/domain"
	"authcore/internal/principal/repository"
	"authcore/internal/security"
	"authcore/internal/token"
)

// LocalVerifier verifies passwords against the principal repository and
// resolves principals for token issuance. It implements both the
// auth.PasswordVerifier and token.PrincipalLookup interfaces.
type LocalVerifier struct {
	repo   repository.Repository
	hasher *security.Hasher
}

// NewLocalVerifier returns a LocalVerifier over repo using hasher for
// password comparison.
func NewLocalVerifier(repo repository.Repository, hasher *security.Hasher) *LocalVerifier {
	return &LocalVerifier{repo: repo, hasher: hasher}
}

// Verify checks the username/password pair. Returns (nil, nil) for unknown
// usernames, wrong passwords, and inactive principals; an error only for
// storage failures.
func (v *LocalVerifier) Verify(ctx context.Context, username, password string) (*token.Principal, error) {
	p, err := v.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if p == nil || !p.Active() {
		return nil, nil
	}
	if err := v.hasher.Compare(p.PasswordHash, []byte(password)); err != nil {
		return nil, nil
	}
	return toTokenPrincipal(p), nil
}

// ByID resolves the principal for token claims. Returns (nil, nil) when the
// principal does not exist.
func (v *LocalVerifier) ByID(ctx context.Context, id string) (*token.Principal, error) {
	p, err := v.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, nil
	}
	return toTokenPrincipal(p), nil
}

func toTokenPrincipal(p *domain.Principal) *token.Principal {
	return &token.Principal{
		ID:     p.ID,
		Roles:  p.Roles,
		Active: p.Active(),
	}
}
