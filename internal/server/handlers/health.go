package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/Bogunok/eudi-wallet/internal/logger"
	"github.com/Bogunok/eudi-wallet/internal/wallet"
)

const readinessTimeout = 2 * time.Second

// Pinger is implemented by the storage backends
type Pinger interface {
	Ping(ctx context.Context) error
}

// HandleHealth godoc
//
//	@Summary		Health (liveness) Check
//	@Description	Check if the HTTP service is alive and responding.
//	@Tags			Common
//	@Produce		plain
//
//	@Success		200	{string}	string	"OK"
//
//	@Router			/health/live [get]
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("OK"))
}

// ReadinessResponse is the body of GET /health/ready
type ReadinessResponse struct {
	Status string            `json:"status" example:"ready"`
	Checks map[string]string `json:"checks"`
}

// HandleReadiness godoc
//
//	@Summary		Readiness Check
//	@Description	Reports whether the credential store is reachable. Issuance and resolution need it.
//	@Tags			Common
//	@Produce		json
//	@Success		200	{object}	ReadinessResponse	"status ready"
//	@Failure		503	{object}	ReadinessResponse	"status not ready"
//	@Router			/health/ready [get]
func HandleReadiness(store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		if err := store.Ping(ctx); err != nil {
			logger.ContextRequestLogger(r.Context()).Warn("storage ping failed", slog.String("error", err.Error()))
			wallet.RespondWithJSONPayload(w, http.StatusServiceUnavailable, ReadinessResponse{
				Status: "not ready",
				Checks: map[string]string{"storage": "unavailable"},
			})
			return
		}
		wallet.RespondWithJSONPayload(w, http.StatusOK, ReadinessResponse{
			Status: "ready",
			Checks: map[string]string{"storage": "ok"},
		})
	}
}
