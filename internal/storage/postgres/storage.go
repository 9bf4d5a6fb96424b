package postgres

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"fmt"

	"github.com/rryowa/tubeauth/internal/storage"
)

type Storage struct {
	db *sql.DB
	*PrincipalRepository
}

var _ storage.PrincipalStore = (*Storage)(nil)

func NewStorage(db *sql.DB) *Storage {
	return &Storage{
		db:                  db,
		PrincipalRepository: NewPrincipalRepository(db),
	}
}

// SwapRefreshToken выполняет ротацию refresh-токена в одной транзакции.
// Строка пользователя блокируется (FOR UPDATE), поэтому два конкурентных
// запроса с одним и тем же токеном не могут оба пройти сравнение.
func (s *Storage) SwapRefreshToken(ctx context.Context, id, expectedHash, nextHash string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	repoTx := NewPrincipalRepository(tx)

	p, err := repoTx.findByIDForUpdate(ctx, id)
	if err != nil {
		return err
	}

	if expectedHash == "" || subtle.ConstantTimeCompare([]byte(p.RefreshTokenHash), []byte(expectedHash)) != 1 {
		return storage.ErrRefreshTokenMismatch
	}

	if err := repoTx.SetRefreshToken(ctx, id, nextHash); err != nil {
		return fmt.Errorf("failed to swap refresh token in tx: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
