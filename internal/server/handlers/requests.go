package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Bogunok/eudi-wallet/internal/issuance"
	"github.com/Bogunok/eudi-wallet/internal/wallet"
)

// SubmitRequestBody is the body of POST /vc/requests
type SubmitRequestBody struct {
	IssuerID       string          `json:"issuerId" example:"4f0c2b1e-issuer"`
	SchemaID       string          `json:"schemaId" example:"university-diploma"`
	OrganizationID string          `json:"organizationId,omitempty" example:"org-42"`
	ClaimData      json.RawMessage `json:"claimData" swaggertype:"object"`
}

// ApproveRequestBody is the body of POST /issuer/requests/{id}/approve
type ApproveRequestBody struct {
	PIN string `json:"pin" example:"482913"`
}

// RejectRequestBody is the body of POST /issuer/requests/{id}/reject
type RejectRequestBody struct {
	Reason string `json:"reason" example:"the diploma number does not match our records"`
}

// SchemaLister is implemented by the schema catalog
type SchemaLister interface {
	ListByIssuer(issuerID string) []issuance.Schema
}

// RequestHandler serves the credential request workflow
type RequestHandler struct {
	issuance *issuance.Service
	schemas  SchemaLister
}

// NewRequestHandler creates a RequestHandler
func NewRequestHandler(svc *issuance.Service, schemas SchemaLister) *RequestHandler {
	return &RequestHandler{issuance: svc, schemas: schemas}
}

// HandleSubmit godoc
//
//	@Summary		Request a credential
//	@Description	Records a PENDING credential request from the holder to an issuer.
//	@Tags			Holder
//	@Accept			json
//	@Produce		json
//	@Param			request	body		SubmitRequestBody	true	"request"
//	@Success		201		{object}	issuance.Request
//	@Failure		400		{object}	wallet.ErrorResponse
//	@Failure		404		{object}	wallet.ErrorResponse	"unknown schema"
//	@Router			/vc/requests [post]
func (h *RequestHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		wallet.RespondWithErrorResponse(w, r, err)
		return
	}

	var body SubmitRequestBody
	if err := decodeJSON(r, &body); err != nil {
		wallet.RespondWithErrorResponse(w, r, err)
		return
	}

	req, err := h.issuance.SubmitRequest(r.Context(), caller, issuance.SubmitInput{
		IssuerID:       body.IssuerID,
		SchemaID:       body.SchemaID,
		OrganizationID: body.OrganizationID,
		ClaimData:      body.ClaimData,
	})
	if err != nil {
		wallet.RespondWithErrorResponse(w, r, err)
		return
	}
	wallet.RespondWithJSONPayload(w, http.StatusCreated, req)
}

// HandleListHolder godoc
//
//	@Summary		List my credential requests
//	@Description	Returns every request of the holder, newest first.
//	@Tags			Holder
//	@Produce		json
//	@Success		200	{array}	issuance.Request
//	@Router			/vc/requests [get]
func (h *RequestHandler) HandleListHolder(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		wallet.RespondWithErrorResponse(w, r, err)
		return
	}

	reqs, err := h.issuance.ListHolderRequests(r.Context(), caller.ID)
	if err != nil {
		wallet.RespondWithErrorResponse(w, r, err)
		return
	}
	wallet.RespondWithJSONPayload(w, http.StatusOK, reqs)
}

// HandleListPending godoc
//
//	@Summary		List pending requests
//	@Description	Returns the PENDING requests addressed to the issuer, oldest first.
//	@Tags			Issuer
//	@Produce		json
//	@Success		200	{array}	issuance.Request
//	@Router			/issuer/requests [get]
func (h *RequestHandler) HandleListPending(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		wallet.RespondWithErrorResponse(w, r, err)
		return
	}

	reqs, err := h.issuance.ListPending(r.Context(), caller.ID)
	if err != nil {
		wallet.RespondWithErrorResponse(w, r, err)
		return
	}
	wallet.RespondWithJSONPayload(w, http.StatusOK, reqs)
}

// HandleApprove godoc
//
//	@Summary		Approve a request and issue the credential
//	@Description	Unseals the issuer's key with the PIN, signs the credential and marks the request APPROVED.
//	@Description	A request can only be decided once.
//	@Tags			Issuer
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"request id"
//	@Param			request	body		ApproveRequestBody	true	"issuer PIN"
//	@Success		201		{object}	issuance.Credential
//	@Failure		400		{object}	wallet.ErrorResponse	"already processed"
//	@Failure		401		{object}	wallet.ErrorResponse	"wrong PIN"
//	@Failure		403		{object}	wallet.ErrorResponse	"not addressed to this issuer"
//	@Router			/issuer/requests/{id}/approve [post]
func (h *RequestHandler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		wallet.RespondWithErrorResponse(w, r, err)
		return
	}

	var body ApproveRequestBody
	if err := decodeJSON(r, &body); err != nil {
		wallet.RespondWithErrorResponse(w, r, err)
		return
	}

	cred, err := h.issuance.ApproveAndIssue(r.Context(), chi.URLParam(r, "id"), caller.ID, body.PIN)
	if err != nil {
		wallet.RespondWithErrorResponse(w, r, err)
		return
	}
	wallet.RespondWithJSONPayload(w, http.StatusCreated, newCredentialResponse(cred))
}

// HandleReject godoc
//
//	@Summary		Reject a request
//	@Tags			Issuer
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"request id"
//	@Param			request	body		RejectRequestBody	true	"reason"
//	@Success		200		{object}	issuance.Request
//	@Failure		400		{object}	wallet.ErrorResponse	"already processed"
//	@Failure		403		{object}	wallet.ErrorResponse	"not addressed to this issuer"
//	@Router			/issuer/requests/{id}/reject [post]
func (h *RequestHandler) HandleReject(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		wallet.RespondWithErrorResponse(w, r, err)
		return
	}

	var body RejectRequestBody
	if err := decodeJSON(r, &body); err != nil {
		wallet.RespondWithErrorResponse(w, r, err)
		return
	}

	req, err := h.issuance.RejectRequest(r.Context(), chi.URLParam(r, "id"), caller.ID, body.Reason)
	if err != nil {
		wallet.RespondWithErrorResponse(w, r, err)
		return
	}
	wallet.RespondWithJSONPayload(w, http.StatusOK, req)
}

// HandleListSchemas godoc
//
//	@Summary		List my schemas
//	@Description	Returns the credential schemas the issuer may issue against.
//	@Tags			Issuer
//	@Produce		json
//	@Success		200	{array}	issuance.Schema
//	@Router			/issuer/schemas [get]
func (h *RequestHandler) HandleListSchemas(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		wallet.RespondWithErrorResponse(w, r, err)
		return
	}
	wallet.RespondWithJSONPayload(w, http.StatusOK, h.schemas.ListByIssuer(caller.ID))
}
