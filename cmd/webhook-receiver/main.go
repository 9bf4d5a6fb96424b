package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/caarlos0/env/v11"

	"github.com/rryowa/tubeauth/internal/service"
	"github.com/rryowa/tubeauth/internal/util"
)

type receiverConfig struct {
	Addr     string `env:"WEBHOOK_RECEIVER_ADDR" envDefault:":9090"`
	LogLevel string `env:"LOG_LEVEL"             envDefault:"info"`
}

type alert struct {
	Event string `json:"event"`
	service.ReuseEvent
}

// Development receiver for security webhooks. Prints every alert it gets.
func main() {
	var cfg receiverConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := util.NewZapLogger(cfg.LogLevel)

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Only POST method is accepted", http.StatusMethodNotAllowed)
			return
		}
		defer r.Body.Close()

		var a alert
		if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
			http.Error(w, "Error parsing JSON", http.StatusBadRequest)
			return
		}

		logger.Warnw("Received security alert",
			"event", a.Event,
			"principalID", a.PrincipalID,
			"ip", a.IPAddress,
			"userAgent", a.UserAgent,
			"at", a.At,
		)

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Webhook received!"))
	})

	logger.Infof("Webhook receiver listening on %s", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, nil); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
