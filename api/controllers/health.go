package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/rocketshoes-cart/api/responses"
	pkgerrors "github.com/angelmondragon/rocketshoes-cart/pkg/errors"
	"github.com/angelmondragon/rocketshoes-cart/pkg/logger"
	"go.uber.org/multierr"
)

const (
	envHeader    = "X-Rocketshoes-Env"
	readyTimeout = 2 * time.Second
)

// Pinger is any dependency that can report its health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadinessCheck names a dependency probed by /health/ready.
type ReadinessCheck struct {
	Name   string
	Pinger Pinger
}

func HealthLive(env string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every check and answers 503 when any of them fails.
func HealthReady(env string, logg *logger.Logger, checks ...ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, env)
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		var errs error
		failed := map[string]string{}
		for _, check := range checks {
			if check.Pinger == nil {
				continue
			}
			if err := check.Pinger.Ping(ctx); err != nil {
				failed[check.Name] = err.Error()
				errs = multierr.Append(errs, err)
			}
		}
		if errs != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeDependency, errs, "not ready").WithDetails(failed))
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
