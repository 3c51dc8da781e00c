package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/counterpos-backend/api/responses"
	"github.com/angelmondragon/counterpos-backend/pkg/config"
	"github.com/angelmondragon/counterpos-backend/pkg/enums"
	"github.com/angelmondragon/counterpos-backend/pkg/logger"
)

const readinessTimeout = 2 * time.Second

// Pinger is satisfied by the store clients and the redis client.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ModeSource reports the current connectivity mode.
type ModeSource interface {
	Current() enums.ConnectivityMode
}

// ReadinessCheck names one dependency probed by HealthReady. Only required checks can fail
// readiness; the remote store is optional because the register sells offline.
type ReadinessCheck struct {
	Name     string
	Pinger   Pinger
	Required bool
}

type readiness struct {
	Status string            `json:"status"`
	Mode   string            `json:"mode,omitempty"`
	Checks map[string]string `json:"checks"`
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-CounterPOS-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

func HealthReady(cfg *config.Config, mode ModeSource, checks []ReadinessCheck, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-CounterPOS-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		out := readiness{Status: "ready", Checks: make(map[string]string, len(checks))}
		if mode != nil {
			out.Mode = mode.Current().String()
			w.Header().Set("X-Sync-Mode", out.Mode)
		}

		status := http.StatusOK
		for _, check := range checks {
			if check.Pinger == nil {
				out.Checks[check.Name] = "disabled"
				continue
			}
			if err := check.Pinger.Ping(ctx); err != nil {
				out.Checks[check.Name] = "down"
				if logg != nil {
					logg.WarnErr(logg.WithField(ctx, "check", check.Name), "health.check_failed", err)
				}
				if check.Required {
					out.Status = "unavailable"
					status = http.StatusServiceUnavailable
				} else if out.Status == "ready" {
					out.Status = "degraded"
				}
				continue
			}
			out.Checks[check.Name] = "up"
		}

		responses.WriteSuccessStatus(w, status, out)
	}
}
