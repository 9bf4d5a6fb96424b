package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/rryowa/tubeauth/internal/metrics"
	"github.com/rryowa/tubeauth/internal/models"
	"github.com/rryowa/tubeauth/internal/storage"
)

type AuthConfig struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// UnifyLoginErrors reports an unknown identifier as ErrInvalidCredentials.
	UnifyLoginErrors bool
}

// AuthService owns the session lifecycle of principals: login, per-request
// authorization, refresh rotation and logout. Only one refresh token per
// principal is live at a time; every login or rotation replaces it.
type AuthService struct {
	cfg      AuthConfig
	store    storage.PrincipalStore
	hasher   *PasswordHasher
	tokens   *TokenCodec
	limiter  LoginLimiter
	notifier SecurityNotifier
	metrics  *metrics.AuthMetrics
	log      *zap.SugaredLogger
}

func NewAuthService(
	cfg AuthConfig,
	store storage.PrincipalStore,
	hasher *PasswordHasher,
	tokens *TokenCodec,
	limiter LoginLimiter,
	notifier SecurityNotifier,
	m *metrics.AuthMetrics,
	log *zap.SugaredLogger,
) *AuthService {
	if limiter == nil {
		limiter = NoopLimiter{}
	}
	return &AuthService{
		cfg:      cfg,
		store:    store,
		hasher:   hasher,
		tokens:   tokens,
		limiter:  limiter,
		notifier: notifier,
		metrics:  m,
		log:      log,
	}
}

// Register creates a principal. Username and email are stored lower-cased.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (models.PrincipalView, error) {
	fullName := strings.TrimSpace(req.FullName)
	username := normalizeIdentifier(req.Username)
	email := normalizeIdentifier(req.Email)

	if fullName == "" || username == "" || email == "" || strings.TrimSpace(req.Password) == "" {
		return models.PrincipalView{}, badRequest("all fields are required")
	}
	if strings.Contains(username, "@") {
		return models.PrincipalView{}, badRequest("username must not contain '@'")
	}
	if !strings.Contains(email, "@") {
		return models.PrincipalView{}, badRequest("email is invalid")
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return models.PrincipalView{}, err
	}

	now := time.Now().UTC()
	p := &models.Principal{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		FullName:     fullName,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreatePrincipal(ctx, p); err != nil {
		if errors.Is(err, storage.ErrPrincipalExists) {
			return models.PrincipalView{}, ErrPrincipalExists
		}
		return models.PrincipalView{}, fmt.Errorf("create principal: %w", err)
	}

	s.log.Infow("Principal registered", "principalID", p.ID)
	return p.View(), nil
}

// ChangePassword replaces the credential hash after checking the old secret.
func (s *AuthService) ChangePassword(ctx context.Context, principalID, oldPassword, newPassword string) error {
	if oldPassword == "" || strings.TrimSpace(newPassword) == "" {
		return badRequest("old and new passwords are required")
	}

	p, err := s.store.FindByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, storage.ErrPrincipalNotFound) {
			return unauthorized(err)
		}
		return fmt.Errorf("find principal: %w", err)
	}

	ok, err := s.hasher.Verify(oldPassword, p.PasswordHash)
	if err != nil {
		s.log.Errorw("Corrupt credential record", "principalID", p.ID, "error", err)
		return err
	}
	if !ok {
		return ErrInvalidCredentials
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.store.SetPasswordHash(ctx, p.ID, hash); err != nil {
		return fmt.Errorf("set password hash: %w", err)
	}
	return nil
}

// UpdateAccountDetails replaces the full name and email of the principal.
// Tokens already issued keep the old email until the next rotation.
func (s *AuthService) UpdateAccountDetails(ctx context.Context, principalID string, req models.UpdateAccountRequest) (models.PrincipalView, error) {
	fullName := strings.TrimSpace(req.FullName)
	email := normalizeIdentifier(req.Email)
	if fullName == "" || email == "" {
		return models.PrincipalView{}, badRequest("full name and email are required")
	}
	if !strings.Contains(email, "@") {
		return models.PrincipalView{}, badRequest("email is invalid")
	}

	err := s.store.UpdateAccountDetails(ctx, principalID, fullName, email)
	switch {
	case errors.Is(err, storage.ErrPrincipalNotFound):
		return models.PrincipalView{}, unauthorized(err)
	case errors.Is(err, storage.ErrPrincipalExists):
		return models.PrincipalView{}, ErrPrincipalExists
	case err != nil:
		return models.PrincipalView{}, fmt.Errorf("update account details: %w", err)
	}

	p, err := s.store.FindByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, storage.ErrPrincipalNotFound) {
			return models.PrincipalView{}, unauthorized(err)
		}
		return models.PrincipalView{}, fmt.Errorf("find principal: %w", err)
	}
	return p.View(), nil
}

func normalizeIdentifier(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

func record(vec *prometheus.CounterVec, err error) {
	vec.WithLabelValues(resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return metrics.ResultOK
	case errors.Is(err, ErrBadRequest):
		return metrics.ResultBadRequest
	case errors.Is(err, ErrPrincipalNotFound):
		return metrics.ResultNotFound
	case errors.Is(err, ErrInvalidCredentials):
		return metrics.ResultInvalid
	case errors.Is(err, ErrRefreshTokenReused):
		return metrics.ResultReused
	case errors.Is(err, ErrUnauthorized):
		return metrics.ResultUnauthorized
	case errors.Is(err, ErrRateLimited):
		return metrics.ResultRateLimited
	default:
		return metrics.ResultError
	}
}
