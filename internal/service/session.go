package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rryowa/tubeauth/internal/models"
	"github.com/rryowa/tubeauth/internal/storage"
)

// Login verifies the credentials and starts a new session. Persisting the new
// refresh token overwrites the previous one, which ends any other session of
// the principal.
func (s *AuthService) Login(ctx context.Context, identifier, secret string) (view models.PrincipalView, pair models.TokenPair, err error) {
	defer func() { record(s.metrics.Logins, err) }()

	identifier = normalizeIdentifier(identifier)
	if identifier == "" || secret == "" {
		return view, pair, badRequest("identifier and secret are required")
	}

	allowed, err := s.limiter.Allow(ctx, identifier)
	if err != nil {
		return view, pair, fmt.Errorf("login limiter: %w", err)
	}
	if !allowed {
		return view, pair, ErrRateLimited
	}

	p, err := s.store.FindByUsernameOrEmail(ctx, identifier)
	if err != nil {
		if errors.Is(err, storage.ErrPrincipalNotFound) {
			if s.cfg.UnifyLoginErrors {
				return view, pair, ErrInvalidCredentials
			}
			return view, pair, ErrPrincipalNotFound
		}
		return view, pair, fmt.Errorf("find principal: %w", err)
	}

	ok, err := s.hasher.Verify(secret, p.PasswordHash)
	if err != nil {
		s.log.Errorw("Corrupt credential record", "principalID", p.ID, "error", err)
		return view, pair, err
	}
	if !ok {
		return view, pair, ErrInvalidCredentials
	}

	pair, err = s.issuePair(p)
	if err != nil {
		return models.PrincipalView{}, models.TokenPair{}, err
	}
	if err := s.store.SetRefreshToken(ctx, p.ID, HashRefreshToken(pair.RefreshToken)); err != nil {
		return models.PrincipalView{}, models.TokenPair{}, fmt.Errorf("persist refresh token: %w", err)
	}

	if err := s.limiter.Reset(ctx, identifier); err != nil {
		s.log.Warnw("Failed to reset login attempts", "error", err)
	}

	return p.View(), pair, nil
}

// Authorize resolves an access token to its principal. It has no side effects
// on the store. Every failure is reported as ErrUnauthorized.
func (s *AuthService) Authorize(ctx context.Context, accessToken string) (view models.PrincipalView, err error) {
	defer func() { record(s.metrics.Authorizations, err) }()

	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return view, unauthorized(errMissingToken)
	}

	claims, err := s.tokens.Verify(accessToken, AccessKey)
	if err != nil {
		s.log.Debugw("Access token rejected", "error", err)
		return view, unauthorized(err)
	}

	p, err := s.store.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, storage.ErrPrincipalNotFound) {
			return view, unauthorized(err)
		}
		return view, fmt.Errorf("find principal: %w", err)
	}

	return p.View(), nil
}

// Rotate exchanges the live refresh token for a new pair. The presented token
// must equal the stored one. A well-signed but superseded token is a reuse
// signal and revokes the session, so the principal has to log in again.
// Two concurrent calls with the same token count as reuse too: one of them
// gets the new pair, the other gets ErrRefreshTokenReused, and the pair that
// was just issued is revoked with the session.
func (s *AuthService) Rotate(ctx context.Context, refreshToken string, meta RequestMeta) (pair models.TokenPair, err error) {
	defer func() { record(s.metrics.Rotations, err) }()

	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return pair, badRequest("refresh token is required")
	}

	claims, err := s.tokens.Verify(refreshToken, RefreshKey)
	if err != nil {
		s.log.Debugw("Refresh token rejected", "error", err)
		return pair, unauthorized(err)
	}

	p, err := s.store.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, storage.ErrPrincipalNotFound) {
			return pair, unauthorized(err)
		}
		return pair, fmt.Errorf("find principal: %w", err)
	}

	presented := HashRefreshToken(refreshToken)
	if p.RefreshTokenHash == "" {
		return pair, unauthorized(errNoActiveSession)
	}
	if !sameDigest(p.RefreshTokenHash, presented) {
		s.log.Warnw("Refresh token reuse detected, revoking session", "principalID", p.ID, "ip", meta.IPAddress)
		s.revoke(ctx, p.ID, p.RefreshTokenHash)
		s.notifyReuse(ctx, p.ID, meta)
		return pair, ErrRefreshTokenReused
	}

	pair, err = s.issuePair(p)
	if err != nil {
		return models.TokenPair{}, err
	}

	// Сравнение и запись выполняются одной атомарной операцией хранилища.
	err = s.store.SwapRefreshToken(ctx, p.ID, presented, HashRefreshToken(pair.RefreshToken))
	switch {
	case err == nil:
		return pair, nil
	case errors.Is(err, storage.ErrRefreshTokenMismatch):
		s.log.Warnw("Concurrent refresh with the same token, revoking session", "principalID", p.ID, "ip", meta.IPAddress)
		if current, err := s.store.FindByID(ctx, p.ID); err == nil {
			s.revoke(ctx, p.ID, current.RefreshTokenHash)
		}
		s.notifyReuse(ctx, p.ID, meta)
		return models.TokenPair{}, ErrRefreshTokenReused
	case errors.Is(err, storage.ErrPrincipalNotFound):
		return models.TokenPair{}, unauthorized(err)
	default:
		return models.TokenPair{}, fmt.Errorf("swap refresh token: %w", err)
	}
}

// Logout clears the stored refresh token. Logging out twice is not an error.
func (s *AuthService) Logout(ctx context.Context, principalID string) error {
	err := s.store.SetRefreshToken(ctx, principalID, "")
	if err != nil && !errors.Is(err, storage.ErrPrincipalNotFound) {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	return nil
}

func (s *AuthService) issuePair(p *models.Principal) (models.TokenPair, error) {
	access, err := s.tokens.Sign(Claims{
		Username:         p.Username,
		Email:            p.Email,
		RegisteredClaims: jwtSubject(p.ID),
	}, s.cfg.AccessTTL, AccessKey)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	refresh, err := s.tokens.Sign(Claims{RegisteredClaims: jwtSubject(p.ID)}, s.cfg.RefreshTTL, RefreshKey)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return models.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// revoke clears the session whose digest was observed. It is a swap, not a
// plain write: if a login replaced the digest in the meantime, that newer
// session is kept.
func (s *AuthService) revoke(ctx context.Context, principalID, observedHash string) {
	if observedHash == "" {
		return
	}
	err := s.store.SwapRefreshToken(ctx, principalID, observedHash, "")
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrRefreshTokenMismatch):
		s.log.Infow("Session changed before revocation, keeping it", "principalID", principalID)
	case errors.Is(err, storage.ErrPrincipalNotFound):
	default:
		s.log.Errorw("Failed to revoke session after reuse", "principalID", principalID, "error", err)
	}
}

func (s *AuthService) notifyReuse(ctx context.Context, principalID string, meta RequestMeta) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyTokenReuse(ctx, ReuseEvent{
		PrincipalID: principalID,
		IPAddress:   meta.IPAddress,
		UserAgent:   meta.UserAgent,
		At:          time.Now().UTC(),
	})
}
