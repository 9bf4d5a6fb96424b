package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rryowa/tubeauth/internal/models"
)

var (
	ErrPrincipalNotFound    = errors.New("principal not found")
	ErrPrincipalExists      = errors.New("principal already exists")
	ErrRefreshTokenMismatch = errors.New("refresh token does not match the stored one")
)

// PrincipalStore persists principals and owns the single live refresh token
// digest of each of them.
//
// SetRefreshToken and SwapRefreshToken touch only the refresh token field and
// must not run any other validation of the principal record.
type PrincipalStore interface {
	CreatePrincipal(ctx context.Context, p *models.Principal) error
	FindByID(ctx context.Context, id string) (*models.Principal, error)
	// FindByUsernameOrEmail matches identifier against the username or the email.
	FindByUsernameOrEmail(ctx context.Context, identifier string) (*models.Principal, error)
	// SetRefreshToken overwrites the stored digest. An empty digest clears it.
	SetRefreshToken(ctx context.Context, id, tokenHash string) error
	// SwapRefreshToken replaces expectedHash with nextHash atomically; an
	// empty nextHash clears the digest. It returns ErrRefreshTokenMismatch
	// when the stored digest is not expectedHash.
	SwapRefreshToken(ctx context.Context, id, expectedHash, nextHash string) error
	SetPasswordHash(ctx context.Context, id, passwordHash string) error
	// UpdateAccountDetails replaces the full name and email. It returns
	// ErrPrincipalExists when the email belongs to another principal.
	UpdateAccountDetails(ctx context.Context, id, fullName, email string) error
}

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}
