package repository

import (
	"context"
	"errors"
	"time"

	"authcore/internal/session/domain"
)

// ErrAlreadyConsumedOrRevoked is returned by ConsumeAndAdvance when the
// conditional update matched zero rows: the record was consumed by a
// concurrent rotation, explicitly revoked, or its family was revoked.
// Callers treat all three identically (see token service reuse handling).
var ErrAlreadyConsumedOrRevoked = errors.New("refresh record already consumed or revoked")

// Store defines persistence for session families and refresh records.
// All operations are atomic at the storage layer; ConsumeAndAdvance is the
// only one that must be linearizable per record.
type Store interface {
	// CreateFamily persists a new session family. The family must have ID,
	// PrincipalID, and CreatedAt set.
	CreateFamily(ctx context.Context, f *domain.Family) error

	// GetFamily returns the family for id, or nil if not found.
	// It returns an error only for storage failures, not for missing rows.
	GetFamily(ctx context.Context, id string) (*domain.Family, error)

	// ListFamiliesByPrincipal returns all families owned by the principal,
	// newest first, including revoked ones.
	ListFamiliesByPrincipal(ctx context.Context, principalID string) ([]*domain.Family, error)

	// InsertRefreshRecord persists a fresh refresh record (sequence 0 at
	// login). The record must have ID, FamilyID, CredentialHash, IssuedAt,
	// and ExpiresAt set.
	InsertRefreshRecord(ctx context.Context, r *domain.RefreshRecord) error

	// LookupByHash returns the refresh record with the given credential
	// hash, or nil if no such record exists.
	LookupByHash(ctx context.Context, credentialHash string) (*domain.RefreshRecord, error)

	// ConsumeAndAdvance marks the record identified by recordID consumed and
	// inserts successor as its replacement in a single atomic step. The
	// conditional update succeeds only if the record is currently unconsumed,
	// unrevoked, and its family is unrevoked; otherwise it affects zero rows
	// and ErrAlreadyConsumedOrRevoked is returned. successor must carry the
	// next sequence number; the unique (family, sequence) index resolves
	// races between concurrent rotations of the same record.
	ConsumeAndAdvance(ctx context.Context, recordID string, successor *domain.RefreshRecord, at time.Time) error

	// RevokeFamily sets the family's revocation timestamp and marks every
	// unconsumed refresh record in it revoked. Idempotent.
	RevokeFamily(ctx context.Context, familyID string, at time.Time) error

	// RevokeAllFamiliesForPrincipal revokes every family belonging to the
	// principal. Idempotent.
	RevokeAllFamiliesForPrincipal(ctx context.Context, principalID string, at time.Time) error
}
