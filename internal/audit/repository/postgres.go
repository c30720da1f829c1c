package repository

import (
	"context"
	"database/sql"
	"errors"

	"authcore/internal/audit/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit log repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the audit log to the database. The entry must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, entry *domain.AuditLog) error {
	pid := sql.NullString{String: entry.PrincipalID, Valid: entry.PrincipalID != ""}
	meta := sql.NullString{String: entry.Metadata, Valid: entry.Metadata != ""}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, principal_id, action, resource, ip, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, pid, entry.Action, entry.Resource, entry.IP, meta, entry.CreatedAt,
	)
	return err
}

// GetByID returns the audit log for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.AuditLog, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, principal_id, action, resource, ip, metadata, created_at
		 FROM audit_logs WHERE id = $1`, id)
	entry, err := scanAuditLog(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return entry, nil
}

// ListByPrincipal returns audit logs for the principal, newest first,
// paginated by limit and offset. Returns (nil, error) only on database errors.
func (r *PostgresRepository) ListByPrincipal(ctx context.Context, principalID string, limit, offset int32) ([]*domain.AuditLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, principal_id, action, resource, ip, metadata, created_at
		 FROM audit_logs WHERE principal_id = $1
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		principalID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.AuditLog
	for rows.Next() {
		entry, err := scanAuditLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuditLog(row rowScanner) (*domain.AuditLog, error) {
	var entry domain.AuditLog
	var pid, meta sql.NullString
	if err := row.Scan(&entry.ID, &pid, &entry.Action, &entry.Resource,
		&entry.IP, &meta, &entry.CreatedAt); err != nil {
		return nil, err
	}
	entry.PrincipalID = pid.String
	entry.Metadata = meta.String
	return &entry, nil
}
