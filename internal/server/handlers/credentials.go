package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Bogunok/eudi-wallet/internal/issuance"
	"github.com/Bogunok/eudi-wallet/internal/wallet"
)

// CredentialResponse adds the wallet display status to a stored credential
type CredentialResponse struct {
	*issuance.Credential
	DisplayStatus issuance.CredentialStatus `json:"displayStatus" example:"ACTIVE"`
}

func newCredentialResponse(cred *issuance.Credential) CredentialResponse {
	return CredentialResponse{Credential: cred, DisplayStatus: cred.DisplayStatus()}
}

func newCredentialResponses(creds []*issuance.Credential) []CredentialResponse {
	out := make([]CredentialResponse, 0, len(creds))
	for _, c := range creds {
		out = append(out, newCredentialResponse(c))
	}
	return out
}

// DirectIssueBody is the body of POST /vc/issue
type DirectIssueBody struct {
	SubjectDID     string          `json:"subjectDid" example:"did:web:holder.example.com"`
	SchemaID       string          `json:"schemaId" example:"university-diploma"`
	Claims         json.RawMessage `json:"claims" swaggertype:"object"`
	OrganizationID string          `json:"organizationId,omitempty"`
	HolderID       string          `json:"holderId,omitempty"`
	PIN            string          `json:"pin" example:"482913"`
}

// VerifyBody is the body of POST /vc/verify
type VerifyBody struct {
	Token string `json:"jwt"`
}

// CredentialHandler serves the credential endpoints
type CredentialHandler struct {
	issuance *issuance.Service
}

// NewCredentialHandler creates a CredentialHandler
func NewCredentialHandler(svc *issuance.Service) *CredentialHandler {
	return &CredentialHandler{issuance: svc}
}

// HandleIssueDirect godoc
//
//	@Summary		Issue a credential directly
//	@Description	Signs a credential for the subject DID using one of the issuer's own schemas, without a prior request.
//	@Tags			Issuer
//	@Accept			json
//	@Produce		json
//	@Param			request	body		DirectIssueBody	true	"credential"
//	@Success		201		{object}	CredentialResponse
//	@Failure		401		{object}	wallet.ErrorResponse	"wrong PIN"
//	@Failure		403		{object}	wallet.ErrorResponse	"schema belongs to another issuer"
//	@Router			/vc/issue [post]
func (h *CredentialHandler) HandleIssueDirect(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		wallet.RespondWithErrorResponse(w, r, err)
		return
	}

	var body DirectIssueBody
	if err := decodeJSON(r, &body); err != nil {
		wallet.RespondWithErrorResponse(w, r, err)
		return
	}

	cred, err := h.issuance.IssueDirect(r.Context(), caller.ID, issuance.DirectIssueInput{
		SubjectIdentifier: body.SubjectDID,
		SchemaID:          body.SchemaID,
		Claims:            body.Claims,
		OrganizationID:    body.OrganizationID,
		HolderID:          body.HolderID,
		PIN:               body.PIN,
	})
	if err != nil {
		wallet.RespondWithErrorResponse(w, r, err)
		return
	}
	wallet.RespondWithJSONPayload(w, http.StatusCreated, newCredentialResponse(cred))
}

// HandleRevoke godoc
//
//	@Summary		Revoke a credential
//	@Description	Only the issuer of a credential can revoke it. Revocation is permanent.
//	@Tags			Issuer
//	@Produce		json
//	@Param			id	path		string	true	"credential id"
//	@Success		200	{object}	CredentialResponse
//	@Failure		400	{object}	wallet.ErrorResponse	"already revoked"
//	@Failure		403	{object}	wallet.ErrorResponse	"not the issuer"
//	@Failure		404	{object}	wallet.ErrorResponse
//	@Router			/issuer/vc/{id}/revoke [patch]
func (h *CredentialHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		wallet.RespondWithErrorResponse(w, r, err)
		return
	}

	cred, err := h.issuance.Revoke(r.Context(), chi.URLParam(r, "id"), caller.ID)
	if err != nil {
		wallet.RespondWithErrorResponse(w, r, err)
		return
	}
	wallet.RespondWithJSONPayload(w, http.StatusOK, newCredentialResponse(cred))
}

// HandleListMine godoc
//
//	@Summary		List my credentials
//	@Description	Deleted credentials are hidden unless includeDeleted=true.
//	@Tags			Holder
//	@Produce		json
//	@Param			includeDeleted	query	bool	false	"include credentials deleted from the wallet"
//	@Success		200				{array}	CredentialResponse
//	@Router			/vc [get]
func (h *CredentialHandler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		wallet.RespondWithErrorResponse(w, r, err)
		return
	}

	includeDeleted := false
	if v := r.URL.Query().Get("includeDeleted"); v != "" {
		includeDeleted, err = strconv.ParseBool(v)
		if err != nil {
			wallet.RespondWithErrorResponse(w, r, wallet.NewValidationError("includeDeleted must be true or false"))
			return
		}
	}

	creds, err := h.issuance.ListHolderCredentials(r.Context(), caller.ID, includeDeleted)
	if err != nil {
		wallet.RespondWithErrorResponse(w, r, err)
		return
	}
	wallet.RespondWithJSONPayload(w, http.StatusOK, newCredentialResponses(creds))
}

// HandleListOrganization godoc
//
//	@Summary		List my credentials for an organisation
//	@Description	Returns the caller's active credentials tagged with the organisation.
//	@Tags			Holder
//	@Produce		json
//	@Param			orgId	path	string	true	"organisation id"
//	@Success		200		{array}	CredentialResponse
//	@Router			/vc/org/{orgId} [get]
func (h *CredentialHandler) HandleListOrganization(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		wallet.RespondWithErrorResponse(w, r, err)
		return
	}

	creds, err := h.issuance.ListOrganizationCredentials(r.Context(), chi.URLParam(r, "orgId"), caller.ID)
	if err != nil {
		wallet.RespondWithErrorResponse(w, r, err)
		return
	}
	wallet.RespondWithJSONPayload(w, http.StatusOK, newCredentialResponses(creds))
}

// HandleGet godoc
//
//	@Summary		Get a credential
//	@Description	Visible to the holder that owns it and to its issuer.
//	@Tags			Holder
//	@Produce		json
//	@Param			id	path		string	true	"credential id"
//	@Success		200	{object}	CredentialResponse
//	@Failure		404	{object}	wallet.ErrorResponse
//	@Router			/vc/{id} [get]
func (h *CredentialHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		wallet.RespondWithErrorResponse(w, r, err)
		return
	}

	cred, err := h.issuance.GetCredential(r.Context(), chi.URLParam(r, "id"), caller.ID)
	if err != nil {
		wallet.RespondWithErrorResponse(w, r, err)
		return
	}
	wallet.RespondWithJSONPayload(w, http.StatusOK, newCredentialResponse(cred))
}

// HandleDelete godoc
//
//	@Summary		Delete a credential from the wallet
//	@Description	Hides the credential from the holder's wallet. The issuer's revocation status is unaffected.
//	@Tags			Holder
//	@Param			id	path	string	true	"credential id"
//	@Success		204
//	@Failure		404	{object}	wallet.ErrorResponse
//	@Router			/vc/{id} [delete]
func (h *CredentialHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		wallet.RespondWithErrorResponse(w, r, err)
		return
	}

	if err := h.issuance.DeleteLocally(r.Context(), chi.URLParam(r, "id"), caller.ID); err != nil {
		wallet.RespondWithErrorResponse(w, r, err)
		return
	}
	wallet.RespondWithStatusCodeOnly(w, http.StatusNoContent)
}

// HandleVerify godoc
//
//	@Summary		Verify a credential token
//	@Description	Checks the signature against the issuer's key (local or trusted remote JWKS).
//	@Description	A bad signature is reported as valid=false, not as an error.
//	@Tags			Common
//	@Accept			json
//	@Produce		json
//	@Param			request	body		VerifyBody	true	"token"
//	@Success		200		{object}	issuance.Verification
//	@Router			/vc/verify [post]
func (h *CredentialHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var body VerifyBody
	if err := decodeJSON(r, &body); err != nil {
		wallet.RespondWithErrorResponse(w, r, err)
		return
	}
	if body.Token == "" {
		wallet.RespondWithErrorResponse(w, r, wallet.NewValidationError("jwt is required"))
		return
	}

	result, err := h.issuance.VerifyToken(r.Context(), body.Token)
	if err != nil {
		wallet.RespondWithErrorResponse(w, r, err)
		return
	}
	wallet.RespondWithJSONPayload(w, http.StatusOK, result)
}
