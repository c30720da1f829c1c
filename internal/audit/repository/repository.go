package repository

import (
	"context"

	"authcore/internal/audit/domain"
)

// Repository defines persistence for audit logs.
type Repository interface {
	// Create persists the audit log. The entry must have ID set.
	Create(ctx context.Context, entry *domain.AuditLog) error

	// GetByID returns the audit log for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.AuditLog, error)

	// ListByPrincipal returns audit logs for the principal, newest first,
	// paginated by limit and offset.
	ListByPrincipal(ctx context.Context, principalID string, limit, offset int32) ([]*domain.AuditLog, error)
}
