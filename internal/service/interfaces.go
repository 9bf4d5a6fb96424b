package service

import (
	"context"
	"time"
)

// LoginLimiter throttles login attempts per identifier.
type LoginLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context, key string) error
}

// NoopLimiter allows everything. Used when no redis is configured.
type NoopLimiter struct{}

func (NoopLimiter) Allow(context.Context, string) (bool, error) { return true, nil }
func (NoopLimiter) Reset(context.Context, string) error         { return nil }

// SecurityNotifier receives security-significant events. Implementations must not block the caller.
type SecurityNotifier interface {
	NotifyTokenReuse(ctx context.Context, event ReuseEvent)
}

type ReuseEvent struct {
	PrincipalID string    `json:"principal_id"`
	IPAddress   string    `json:"ip"`
	UserAgent   string    `json:"user_agent"`
	At          time.Time `json:"at"`
}

// RequestMeta describes the client of the current request.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}
