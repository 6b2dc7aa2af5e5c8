package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/freshmarket/grocery-backend/api/responses"
	"github.com/freshmarket/grocery-backend/pkg/config"
	pkgerrors "github.com/freshmarket/grocery-backend/pkg/errors"
	"github.com/freshmarket/grocery-backend/pkg/logger"
)

const readyTimeout = 2 * time.Second

// Pinger is anything the readiness check can check.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-FreshMarket-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every dependency and answers 503 with the failing ones.
func HealthReady(cfg *config.Config, deps map[string]Pinger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-FreshMarket-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		failed := map[string]string{}
		for name, dep := range deps {
			if dep == nil {
				failed[name] = "not configured"
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				failed[name] = err.Error()
			}
		}
		if len(failed) > 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "dependencies unavailable").WithDetails(failed))
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
