package httptransport

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	dErrors "markers/pkg/domain-errors"
	"markers/pkg/platform/httputil"
)

// HealthCheck probes one dependency. A nil error means healthy.
type HealthCheck func(ctx context.Context) error

// Registrar mounts a feature's routes.
type Registrar interface {
	Register(r chi.Router)
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// NewRouter wires the operational endpoints and every feature's routes.
func NewRouter(checks map[string]HealthCheck, features ...Registrar) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", handleHealth(checks))
	r.Handle("/metrics", promhttp.Handler())
	for _, f := range features {
		f.Register(r)
	}
	return r
}

func handleHealth(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok"}
		for name, check := range checks {
			if resp.Checks == nil {
				resp.Checks = make(map[string]string, len(checks))
			}
			if err := check(ctx); err != nil {
				resp.Status = "degraded"
				resp.Checks[name] = err.Error()
				continue
			}
			resp.Checks[name] = "ok"
		}
		if resp.Status != "ok" {
			httputil.WriteJSON(w, httputil.StatusFor(dErrors.CodeUnavailable), resp)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, resp)
	}
}
