package handlers

import (
	"net/http"

	"github.com/Bogunok/eudi-wallet/internal/version"
	"github.com/Bogunok/eudi-wallet/internal/wallet"
)

// VersionResponse is the body of GET /version
type VersionResponse struct {
	version.Info
	Service string `json:"service" example:"wallet-server"`
}

// HandleVersion godoc
//
//	@Summary		Get version information
//	@Description	Returns the version and build information for the service
//	@Tags			Common
//	@Produce		json
//	@Success		200	{object}	VersionResponse	"Version information"
//	@Router			/version [get]
func HandleVersion(service string) http.HandlerFunc {
	// Pre-create the response to avoid allocating on every request
	response := VersionResponse{
		Info:    version.Get(),
		Service: service,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		wallet.RespondWithJSONPayload(w, http.StatusOK, response)
	}
}
