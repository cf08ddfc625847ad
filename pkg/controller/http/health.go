package http

import (
	"encoding/json"
	"net/http"

	"github.com/m-mizutani/buildgate/pkg/domain/model"
	"github.com/m-mizutani/buildgate/pkg/domain/types"
	"github.com/m-mizutani/ctxlog"
)

// healthHandler reports liveness together with the active build strategies
func healthHandler(strategies []string) http.HandlerFunc {
	if strategies == nil {
		strategies = []string{}
	}

	return func(w http.ResponseWriter, r *http.Request) {
		status := &model.HealthStatus{
			Status:     "healthy",
			Service:    "buildgate",
			Version:    types.Version,
			Strategies: strategies,
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(status); err != nil {
			ctxlog.From(r.Context()).Error("Failed to encode health response", "error", err)
		}
	}
}
