package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"authcore/internal/session/domain"
)

const uniqueViolation = "23505"

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore returns a session store that uses the given db for persistence.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreateFamily persists the session family. The family must have ID set.
func (s *PostgresStore) CreateFamily(ctx context.Context, f *domain.Family) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_families (id, principal_id, created_at, revoked_at)
		 VALUES ($1, $2, $3, $4)`,
		f.ID, f.PrincipalID, f.CreatedAt, timeToNullTime(f.RevokedAt),
	)
	return err
}

// GetFamily returns the family for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (s *PostgresStore) GetFamily(ctx context.Context, id string) (*domain.Family, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, principal_id, created_at, revoked_at
		 FROM session_families WHERE id = $1`, id)
	f, err := scanFamily(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return f, nil
}

// ListFamiliesByPrincipal returns all families owned by the principal, newest
// first, including revoked ones. Returns (nil, error) only on database errors.
func (s *PostgresStore) ListFamiliesByPrincipal(ctx context.Context, principalID string) ([]*domain.Family, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, principal_id, created_at, revoked_at
		 FROM session_families WHERE principal_id = $1
		 ORDER BY created_at DESC`, principalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Family
	for rows.Next() {
		f, err := scanFamily(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// InsertRefreshRecord persists a fresh refresh record.
func (s *PostgresStore) InsertRefreshRecord(ctx context.Context, r *domain.RefreshRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO refresh_records
		   (id, family_id, sequence, credential_hash, issued_at, expires_at, consumed_at, revoked_at, successor_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.ID, r.FamilyID, r.Sequence, r.CredentialHash, r.IssuedAt, r.ExpiresAt,
		timeToNullTime(r.ConsumedAt), timeToNullTime(r.RevokedAt), strToNullString(r.SuccessorID),
	)
	return err
}

// LookupByHash returns the refresh record for the credential hash, or nil if
// not found. It returns an error only for database failures.
func (s *PostgresStore) LookupByHash(ctx context.Context, credentialHash string) (*domain.RefreshRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, family_id, sequence, credential_hash, issued_at, expires_at, consumed_at, revoked_at, successor_id
		 FROM refresh_records WHERE credential_hash = $1`, credentialHash)
	r, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return r, nil
}

// ConsumeAndAdvance marks recordID consumed and inserts successor in one
// transaction. The decision point is a conditional UPDATE guarded on
// consumed_at, revoked_at, and the family's revoked_at; zero rows affected
// means a concurrent rotation or revocation won, and the transaction rolls
// back with ErrAlreadyConsumedOrRevoked. A unique-violation on the successor
// insert (same family and sequence committed by the winner) maps to the same
// error so callers cannot distinguish losing the race from replay.
func (s *PostgresStore) ConsumeAndAdvance(ctx context.Context, recordID string, successor *domain.RefreshRecord, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO refresh_records
		   (id, family_id, sequence, credential_hash, issued_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		successor.ID, successor.FamilyID, successor.Sequence, successor.CredentialHash,
		successor.IssuedAt, successor.ExpiresAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyConsumedOrRevoked
		}
		return err
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE refresh_records r
		 SET consumed_at = $1, successor_id = $2
		 WHERE r.id = $3
		   AND r.consumed_at IS NULL
		   AND r.revoked_at IS NULL
		   AND EXISTS (
		     SELECT 1 FROM session_families f
		     WHERE f.id = r.family_id AND f.revoked_at IS NULL
		   )`,
		at, successor.ID, recordID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyConsumedOrRevoked
	}

	return tx.Commit()
}

// RevokeFamily sets the family's revocation timestamp and revokes every
// unconsumed record in it. Idempotent: already-revoked rows are untouched.
func (s *PostgresStore) RevokeFamily(ctx context.Context, familyID string, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`UPDATE session_families SET revoked_at = $1
		 WHERE id = $2 AND revoked_at IS NULL`, at, familyID)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE refresh_records SET revoked_at = $1
		 WHERE family_id = $2 AND consumed_at IS NULL AND revoked_at IS NULL`, at, familyID)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// RevokeAllFamiliesForPrincipal revokes every family belonging to the
// principal and the unconsumed records in them. Idempotent.
func (s *PostgresStore) RevokeAllFamiliesForPrincipal(ctx context.Context, principalID string, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`UPDATE session_families SET revoked_at = $1
		 WHERE principal_id = $2 AND revoked_at IS NULL`, at, principalID)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE refresh_records r SET revoked_at = $1
		 FROM session_families f
		 WHERE r.family_id = f.id AND f.principal_id = $2
		   AND r.consumed_at IS NULL AND r.revoked_at IS NULL`, at, principalID)
	if err != nil {
		return err
	}
	return tx.Commit()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFamily(row rowScanner) (*domain.Family, error) {
	var f domain.Family
	var revokedAt sql.NullTime
	if err := row.Scan(&f.ID, &f.PrincipalID, &f.CreatedAt, &revokedAt); err != nil {
		return nil, err
	}
	f.RevokedAt = nullTimeToPtr(revokedAt)
	return &f, nil
}

func scanRecord(row rowScanner) (*domain.RefreshRecord, error) {
	var r domain.RefreshRecord
	var consumedAt, revokedAt sql.NullTime
	var successorID sql.NullString
	if err := row.Scan(&r.ID, &r.FamilyID, &r.Sequence, &r.CredentialHash,
		&r.IssuedAt, &r.ExpiresAt, &consumedAt, &revokedAt, &successorID); err != nil {
		return nil, err
	}
	r.ConsumedAt = nullTimeToPtr(consumedAt)
	r.RevokedAt = nullTimeToPtr(revokedAt)
	if successorID.Valid {
		r.SuccessorID = &successorID.String
	}
	return &r, nil
}

func timeToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullTimeToPtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	return &n.Time
}

func strToNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
