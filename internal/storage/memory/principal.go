package memory

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rryowa/tubeauth/internal/models"
	"github.com/rryowa/tubeauth/internal/storage"
)

// InMemoryPrincipalStore keeps principals in process memory. A single mutex
// makes SwapRefreshToken a true compare-and-swap.
type InMemoryPrincipalStore struct {
	mu         sync.RWMutex
	principals map[string]models.Principal
	log        *zap.SugaredLogger
}

var _ storage.PrincipalStore = (*InMemoryPrincipalStore)(nil)

func NewPrincipalStore(log *zap.SugaredLogger) *InMemoryPrincipalStore {
	return &InMemoryPrincipalStore{
		principals: make(map[string]models.Principal),
		log:        log,
	}
}

func (m *InMemoryPrincipalStore) CreatePrincipal(_ context.Context, p *models.Principal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.principals {
		if existing.ID == p.ID || existing.Username == p.Username || existing.Email == p.Email {
			return storage.ErrPrincipalExists
		}
	}
	m.principals[p.ID] = *p
	m.log.Debugw("Principal created", "principalID", p.ID, "username", p.Username)
	return nil
}

func (m *InMemoryPrincipalStore) FindByID(_ context.Context, id string) (*models.Principal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.principals[id]
	if !ok {
		return nil, storage.ErrPrincipalNotFound
	}
	return &p, nil
}

func (m *InMemoryPrincipalStore) FindByUsernameOrEmail(_ context.Context, identifier string) (*models.Principal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.principals {
		if p.Username == identifier || p.Email == identifier {
			return &p, nil
		}
	}
	return nil, storage.ErrPrincipalNotFound
}

func (m *InMemoryPrincipalStore) SetRefreshToken(_ context.Context, id, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.principals[id]
	if !ok {
		return storage.ErrPrincipalNotFound
	}
	p.RefreshTokenHash = tokenHash
	m.principals[id] = p
	return nil
}

func (m *InMemoryPrincipalStore) SwapRefreshToken(_ context.Context, id, expectedHash, nextHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.principals[id]
	if !ok {
		return storage.ErrPrincipalNotFound
	}
	if expectedHash == "" || p.RefreshTokenHash != expectedHash {
		m.log.Debugw("Refresh token swap rejected", "principalID", id)
		return storage.ErrRefreshTokenMismatch
	}
	p.RefreshTokenHash = nextHash
	m.principals[id] = p
	return nil
}

func (m *InMemoryPrincipalStore) SetPasswordHash(_ context.Context, id, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.principals[id]
	if !ok {
		return storage.ErrPrincipalNotFound
	}
	p.PasswordHash = passwordHash
	m.principals[id] = p
	return nil
}

func (m *InMemoryPrincipalStore) UpdateAccountDetails(_ context.Context, id, fullName, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.principals[id]
	if !ok {
		return storage.ErrPrincipalNotFound
	}
	for otherID, other := range m.principals {
		if otherID != id && other.Email == email {
			return storage.ErrPrincipalExists
		}
	}
	p.FullName = fullName
	p.Email = email
	p.UpdatedAt = time.Now().UTC()
	m.principals[id] = p
	return nil
}

// DeletePrincipal removes a principal. Deletion belongs to account
// management; the auth flows only observe its effect.
func (m *InMemoryPrincipalStore) DeletePrincipal(_ context.Context, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.principals, id)
}
