package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/rryowa/tubeauth/internal/models"
	"github.com/rryowa/tubeauth/internal/storage"
)

const uniqueViolation = "23505"

const principalColumns = `id, username, email, full_name, password_hash, refresh_token_hash, created_at, updated_at`

type PrincipalRepository struct {
	db storage.DBTX
}

func NewPrincipalRepository(db storage.DBTX) *PrincipalRepository {
	return &PrincipalRepository{db: db}
}

func (r *PrincipalRepository) CreatePrincipal(ctx context.Context, p *models.Principal) error {
	query := `INSERT INTO users (id, username, email, full_name, password_hash, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(ctx, query, p.ID, p.Username, p.Email, p.FullName, p.PasswordHash, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return storage.ErrPrincipalExists
		}
		return fmt.Errorf("failed to create principal: %w", err)
	}
	return nil
}

func (r *PrincipalRepository) FindByID(ctx context.Context, id string) (*models.Principal, error) {
	query := `SELECT ` + principalColumns + ` FROM users WHERE id = $1`
	p, err := scanPrincipal(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get principal by id: %w", err)
	}
	return p, nil
}

// findByIDForUpdate locks the row until the surrounding transaction ends.
func (r *PrincipalRepository) findByIDForUpdate(ctx context.Context, id string) (*models.Principal, error) {
	query := `SELECT ` + principalColumns + ` FROM users WHERE id = $1 FOR UPDATE`
	p, err := scanPrincipal(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("lock principal: %w", err)
	}
	return p, nil
}

func (r *PrincipalRepository) FindByUsernameOrEmail(ctx context.Context, identifier string) (*models.Principal, error) {
	query := `SELECT ` + principalColumns + ` FROM users WHERE username = $1 OR email = $1 LIMIT 1`
	p, err := scanPrincipal(r.db.QueryRowContext(ctx, query, identifier))
	if err != nil {
		return nil, fmt.Errorf("get principal by identifier: %w", err)
	}
	return p, nil
}

func (r *PrincipalRepository) SetRefreshToken(ctx context.Context, id, tokenHash string) error {
	query := `UPDATE users SET refresh_token_hash = NULLIF($2, '') WHERE id = $1`
	return r.execOne(ctx, "set refresh token", query, id, tokenHash)
}

func (r *PrincipalRepository) SetPasswordHash(ctx context.Context, id, passwordHash string) error {
	query := `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`
	return r.execOne(ctx, "set password hash", query, id, passwordHash)
}

func (r *PrincipalRepository) UpdateAccountDetails(ctx context.Context, id, fullName, email string) error {
	query := `UPDATE users SET full_name = $2, email = $3, updated_at = now() WHERE id = $1`
	err := r.execOne(ctx, "update account details", query, id, fullName, email)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return storage.ErrPrincipalExists
	}
	return err
}

func (r *PrincipalRepository) execOne(ctx context.Context, op, query string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if n == 0 {
		return storage.ErrPrincipalNotFound
	}
	return nil
}

func scanPrincipal(row *sql.Row) (*models.Principal, error) {
	var (
		p           models.Principal
		refreshHash sql.NullString
	)
	err := row.Scan(
		&p.ID,
		&p.Username,
		&p.Email,
		&p.FullName,
		&p.PasswordHash,
		&refreshHash,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrPrincipalNotFound
		}
		return nil, err
	}
	p.RefreshTokenHash = refreshHash.String
	return &p, nil
}
