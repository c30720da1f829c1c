package repository

import (
	"context"

	"authcore/internal/principal/domain"
)

// Repository defines persistence for principals.
type Repository interface {
	// Create persists a new principal. The principal must have ID set.
	Create(ctx context.Context, p *domain.Principal) error

	// GetByID returns the principal for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Principal, error)

	// GetByUsername returns the principal with the given username, or nil if
	// not found.
	GetByUsername(ctx context.Context, username string) (*domain.Principal, error)

	// UpdateStatus sets the principal's status.
	UpdateStatus(ctx context.Context, id, status string) error
}
