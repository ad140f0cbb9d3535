package handlers

import (
	"net/http"

	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/Bogunok/eudi-wallet/internal/crypto"
	"github.com/Bogunok/eudi-wallet/internal/did"
	"github.com/Bogunok/eudi-wallet/internal/wallet"
)

// HandleJWKS godoc
//
//	@Summary		Get JWK set
//	@Description	Returns the public keys of every active identity held by this wallet.
//	@Description
//	@Description	Verifiers use the kid of a credential token (<did>#key-1) to select the key.
//	@Description	Keys of deactivated identities are not published.
//	@Tags			Common
//
//	@Success		200	{object}	JWKSResponse	"JWK set"
//
//	@Router			/.well-known/jwks.json [get]
func HandleJWKS(identities *did.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := identities.ActiveRecords(r.Context())
		if err != nil {
			wallet.RespondWithErrorResponse(w, r, err)
			return
		}

		set := jwk.NewSet()
		for _, rec := range records {
			key, err := crypto.ParsePublicJWK(rec.PublicKeyJWK)
			if err != nil {
				wallet.RespondWithErrorResponse(w, r, wallet.WrapInternalError(err, "stored public key is invalid"))
				return
			}
			if err := set.AddKey(key); err != nil {
				wallet.RespondWithErrorResponse(w, r, wallet.WrapInternalError(err, "failed to build JWK set"))
				return
			}
		}

		w.Header().Set("Cache-Control", "public, max-age=300")
		wallet.RespondWithJSONPayload(w, http.StatusOK, set)
	}
}

// JWKSResponse is used for documentation as the jwk.Set interface type cannot be described.
type JWKSResponse struct {
	Keys []map[string]any `json:"keys"`
}
