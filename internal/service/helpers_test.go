package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/rryowa/tubeauth/internal/metrics"
	"github.com/rryowa/tubeauth/internal/models"
	"github.com/rryowa/tubeauth/internal/storage/memory"
)

const (
	testAccessTTL  = 15 * time.Minute
	testRefreshTTL = 24 * time.Hour
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1_700_000_000, 0).UTC()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []ReuseEvent
}

func (n *recordingNotifier) NotifyTokenReuse(_ context.Context, e ReuseEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

type fixture struct {
	svc      *AuthService
	store    *memory.InMemoryPrincipalStore
	clock    *fakeClock
	notifier *recordingNotifier
	metrics  *metrics.AuthMetrics
}

type fixtureOption func(*AuthConfig, *LoginLimiter)

func withSeparateLoginErrors() fixtureOption {
	return func(c *AuthConfig, _ *LoginLimiter) { c.UnifyLoginErrors = false }
}

func withLimiter(l LoginLimiter) fixtureOption {
	return func(_ *AuthConfig, dst *LoginLimiter) { *dst = l }
}

func newTestCodec(t *testing.T, clock *fakeClock) *TokenCodec {
	t.Helper()
	keys, err := NewSigningKeys("access-secret-for-tests", "refresh-secret-for-tests")
	if err != nil {
		t.Fatalf("NewSigningKeys: %v", err)
	}
	return NewTokenCodec(keys, "tubeauth-test", 0, clock.Now)
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	cfg := AuthConfig{AccessTTL: testAccessTTL, RefreshTTL: testRefreshTTL, UnifyLoginErrors: true}
	var limiter LoginLimiter = NoopLimiter{}
	for _, opt := range opts {
		opt(&cfg, &limiter)
	}

	log := zap.NewNop().Sugar()
	clock := newFakeClock()
	store := memory.NewPrincipalStore(log)
	notifier := &recordingNotifier{}
	m := metrics.NewAuthMetrics(prometheus.NewRegistry())

	svc := NewAuthService(cfg, store, NewPasswordHasher(bcrypt.MinCost), newTestCodec(t, clock), limiter, notifier, m, log)
	return &fixture{svc: svc, store: store, clock: clock, notifier: notifier, metrics: m}
}

func (f *fixture) register(t *testing.T, username, password string) models.PrincipalView {
	t.Helper()
	view, err := f.svc.Register(context.Background(), models.RegisterRequest{
		FullName: "Test " + username,
		Email:    username + "@example.com",
		Username: username,
		Password: password,
	})
	if err != nil {
		t.Fatalf("Register(%q): %v", username, err)
	}
	return view
}

func (f *fixture) login(t *testing.T, identifier, password string) models.TokenPair {
	t.Helper()
	_, pair, err := f.svc.Login(context.Background(), identifier, password)
	if err != nil {
		t.Fatalf("Login(%q): %v", identifier, err)
	}
	return pair
}
