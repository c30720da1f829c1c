package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"authcore/internal/principal/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a principal repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists a new principal. The principal must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, p *domain.Principal) error {
	roles, err := json.Marshal(p.Roles)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO principals (id, username, password_hash, status, roles, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.Username, p.PasswordHash, p.Status, roles, p.CreatedAt,
	)
	return err
}

// GetByID returns the principal for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Principal, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, status, roles, created_at
		 FROM principals WHERE id = $1`, id)
	return scanPrincipal(row)
}

// GetByUsername returns the principal with the given username, or nil if not found.
func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*domain.Principal, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, status, roles, created_at
		 FROM principals WHERE username = $1`, username)
	return scanPrincipal(row)
}

// UpdateStatus sets the principal's status.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id, status string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE principals SET status = $1 WHERE id = $2`, status, id)
	return err
}

func scanPrincipal(row *sql.Row) (*domain.Principal, error) {
	var p domain.Principal
	var roles []byte
	if err := row.Scan(&p.ID, &p.Username, &p.PasswordHash, &p.Status, &roles, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if len(roles) > 0 {
		if err := json.Unmarshal(roles, &p.Roles); err != nil {
			return nil, err
		}
	}
	return &p, nil
}
