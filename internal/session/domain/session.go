package domain

import "time"

// Family represents one continuous authenticated session (one device or
// browser) for a principal. It is the unit of revocation for single-session
// logout: revoking the family implicitly revokes every refresh record in it.
type Family struct {
	ID          string
	PrincipalID string
	CreatedAt   time.Time
	RevokedAt   *time.Time // nil while the session is active
}

// Revoked reports whether the family has been revoked.
func (f *Family) Revoked() bool {
	return f != nil && f.RevokedAt != nil
}

// RefreshRecord is one row per issued refresh credential. The cleartext is
// never stored; lookups compare by SHA-256 hash. Records are retained after
// consumption for replay detection and audit, never physically deleted while
// the family lives.
type RefreshRecord struct {
	ID             string
	FamilyID       string
	Sequence       int64 // monotonically increasing within the family, starts at 0
	CredentialHash string
	IssuedAt       time.Time
	ExpiresAt      time.Time
	ConsumedAt     *time.Time // set when exchanged for a successor
	RevokedAt      *time.Time // set by explicit revocation
	SuccessorID    *string    // record created by the rotation that consumed this one
}

// Expired reports whether the record's validity window has passed at now.
func (r *RefreshRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Consumed reports whether the record has already been exchanged.
func (r *RefreshRecord) Consumed() bool {
	return r.ConsumedAt != nil
}

// Revoked reports whether the record has been explicitly revoked.
func (r *RefreshRecord) Revoked() bool {
	return r.RevokedAt != nil
}
