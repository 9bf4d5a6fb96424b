package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestWebhookService_NotifyTokenReuse(t *testing.T) {
	received := make(chan webhookPayload, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		var p webhookPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("decode: %v", err)
		}
		received <- p
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	svc := NewWebhookService(zap.NewNop().Sugar(), srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	at := time.Unix(1_700_000_000, 0).UTC()
	svc.NotifyTokenReuse(ctx, ReuseEvent{PrincipalID: "p-1", IPAddress: "10.0.0.1", UserAgent: "curl/8", At: at})
	cancel()

	select {
	case p := <-received:
		if p.Event != EventRefreshTokenReuse {
			t.Fatalf("event = %q", p.Event)
		}
		if p.PrincipalID != "p-1" || p.IPAddress != "10.0.0.1" || p.UserAgent != "curl/8" || !p.At.Equal(at) {
			t.Fatalf("unexpected payload: %+v", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("webhook was not delivered")
	}
}

func TestWebhookService_DisabledWithoutURL(t *testing.T) {
	svc := NewWebhookService(zap.NewNop().Sugar(), "")
	// Must return immediately and not panic.
	svc.NotifyTokenReuse(context.Background(), ReuseEvent{PrincipalID: "p-1"})
}
