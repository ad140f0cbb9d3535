package handlers

import (
	"net/http"

	"github.com/Bogunok/eudi-wallet/internal/did"
	"github.com/Bogunok/eudi-wallet/internal/wallet"
)

// GenerateDIDRequest is the body of POST /did/generate
type GenerateDIDRequest struct {
	PIN    string `json:"pin" example:"482913"`
	Domain string `json:"domain" example:"wallet.example.com"`
}

// RotatePinRequest is the body of POST /did/rotate-pin.
// When DID is empty every identity of the caller is re-sealed.
type RotatePinRequest struct {
	DID    string `json:"did,omitempty" example:"did:web:wallet.example.com"`
	OldPIN string `json:"oldPin" example:"482913"`
	NewPIN string `json:"newPin" example:"750316"`
}

// RotatePinResponse reports how many identities were re-sealed
type RotatePinResponse struct {
	Rotated int `json:"rotated" example:"1"`
}

// DIDHandler serves the identity endpoints
type DIDHandler struct {
	identities *did.Service
}

// NewDIDHandler creates a DIDHandler
func NewDIDHandler(identities *did.Service) *DIDHandler {
	return &DIDHandler{identities: identities}
}

// HandleGenerate godoc
//
//	@Summary		Create a DID
//	@Description	Generates an Ed25519 key pair for did:web:<domain> and stores the private key sealed under the PIN.
//	@Description	The PIN is never stored; it is needed again to sign with this DID.
//	@Tags			DID
//	@Accept			json
//	@Produce		json
//	@Param			request	body		GenerateDIDRequest		true	"PIN and domain"
//	@Success		201		{object}	did.PublicDescriptor
//	@Failure		400		{object}	wallet.ErrorResponse	"invalid PIN or domain"
//	@Failure		409		{object}	wallet.ErrorResponse	"DID already registered"
//	@Router			/did/generate [post]
func (h *DIDHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		wallet.RespondWithErrorResponse(w, r, err)
		return
	}

	var req GenerateDIDRequest
	if err := decodeJSON(r, &req); err != nil {
		wallet.RespondWithErrorResponse(w, r, err)
		return
	}

	rec, err := h.identities.CreateIdentity(r.Context(), caller.ID, req.PIN, req.Domain)
	if err != nil {
		wallet.RespondWithErrorResponse(w, r, err)
		return
	}
	wallet.RespondWithJSONPayload(w, http.StatusCreated, rec.Descriptor())
}

// HandleResolve godoc
//
//	@Summary		Resolve a DID
//	@Description	Returns the DID document and its metadata. Deactivated DIDs still resolve.
//	@Tags			DID
//	@Produce		json
//	@Param			did	path		string	true	"DID (did:web:...)"
//	@Success		200	{object}	did.ResolutionResult
//	@Failure		404	{object}	wallet.ErrorResponse
//	@Router			/did/resolve/{did} [get]
func (h *DIDHandler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	identifier, err := identifierParam(r, "did")
	if err != nil {
		wallet.RespondWithErrorResponse(w, r, err)
		return
	}

	result, err := h.identities.Document(r.Context(), identifier)
	if err != nil {
		wallet.RespondWithErrorResponse(w, r, err)
		return
	}
	wallet.RespondWithJSONPayload(w, http.StatusOK, result)
}

// HandleDeactivate godoc
//
//	@Summary		Deactivate a DID
//	@Description	Marks the caller's DID as deactivated. This cannot be undone.
//	@Tags			DID
//	@Produce		json
//	@Param			did	path		string	true	"DID (did:web:...)"
//	@Success		200	{object}	did.PublicDescriptor
//	@Failure		403	{object}	wallet.ErrorResponse	"not the owner"
//	@Failure		404	{object}	wallet.ErrorResponse
//	@Failure		400	{object}	wallet.ErrorResponse	"already deactivated"
//	@Router			/did/deactivate/{did} [patch]
func (h *DIDHandler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		wallet.RespondWithErrorResponse(w, r, err)
		return
	}
	identifier, err := identifierParam(r, "did")
	if err != nil {
		wallet.RespondWithErrorResponse(w, r, err)
		return
	}

	rec, err := h.identities.Deactivate(r.Context(), identifier, caller.ID)
	if err != nil {
		wallet.RespondWithErrorResponse(w, r, err)
		return
	}
	wallet.RespondWithJSONPayload(w, http.StatusOK, rec.Descriptor())
}

// HandleRotatePin godoc
//
//	@Summary		Change the PIN
//	@Description	Re-seals the private key of one DID (or of every DID of the caller) under a new PIN.
//	@Description	A wrong old PIN leaves the stored keys untouched.
//	@Tags			DID
//	@Accept			json
//	@Produce		json
//	@Param			request	body		RotatePinRequest	true	"old and new PIN"
//	@Success		200		{object}	RotatePinResponse
//	@Failure		401		{object}	wallet.ErrorResponse	"wrong PIN"
//	@Router			/did/rotate-pin [post]
func (h *DIDHandler) HandleRotatePin(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		wallet.RespondWithErrorResponse(w, r, err)
		return
	}

	var req RotatePinRequest
	if err := decodeJSON(r, &req); err != nil {
		wallet.RespondWithErrorResponse(w, r, err)
		return
	}

	if req.DID != "" {
		if err := h.identities.RotatePin(r.Context(), req.DID, caller.ID, req.OldPIN, req.NewPIN); err != nil {
			wallet.RespondWithErrorResponse(w, r, err)
			return
		}
		wallet.RespondWithJSONPayload(w, http.StatusOK, RotatePinResponse{Rotated: 1})
		return
	}

	n, err := h.identities.RotateOwnerPin(r.Context(), caller.ID, req.OldPIN, req.NewPIN)
	if err != nil {
		wallet.RespondWithErrorResponse(w, r, err)
		return
	}
	wallet.RespondWithJSONPayload(w, http.StatusOK, RotatePinResponse{Rotated: n})
}

// HandleListMine godoc
//
//	@Summary		List my DIDs
//	@Tags			DID
//	@Produce		json
//	@Success		200	{array}	did.PublicDescriptor
//	@Router			/did/mine [get]
func (h *DIDHandler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		wallet.RespondWithErrorResponse(w, r, err)
		return
	}

	records, err := h.identities.ListByOwner(r.Context(), caller.ID)
	if err != nil {
		wallet.RespondWithErrorResponse(w, r, err)
		return
	}

	descriptors := make([]*did.PublicDescriptor, 0, len(records))
	for _, rec := range records {
		descriptors = append(descriptors, rec.Descriptor())
	}
	wallet.RespondWithJSONPayload(w, http.StatusOK, descriptors)
}
