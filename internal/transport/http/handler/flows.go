package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-carrier-billing/internal/application/checkout"
	"github.com/go-carrier-billing/internal/application/flowmanager"
	"github.com/go-carrier-billing/internal/application/pinflow"
	"github.com/go-carrier-billing/internal/domain"
	"github.com/go-carrier-billing/internal/pkg/validate"
	"github.com/go-chi/chi/v5"
)

// InitiateRequest starts a billing flow for an operator.
type InitiateRequest struct {
	Operator    string `json:"operator" validate:"required"`
	Subject     string `json:"subject"`
	Operation   string `json:"operation" validate:"required,oneof=subscribe charge"`
	ServiceID   string `json:"service_id" validate:"required"`
	Merchant    string `json:"merchant"`
	ReturnURL   string `json:"return_url"`
	AmountMinor int64  `json:"amount_minor"`
	Locale      string `json:"locale"`
	FraudToken  string `json:"fraud_token"`
	UseCheckout bool   `json:"use_checkout"`
}

// VerifyRequest completes a PIN flow with the subscriber-entered code.
type VerifyRequest struct {
	Operator string `json:"operator" validate:"required"`
	Subject  string `json:"subject" validate:"required"`
	Code     string `json:"code" validate:"required"`
}

// CompleteCheckoutRequest exchanges a returned checkout token.
type CompleteCheckoutRequest struct {
	Operator  string `json:"operator" validate:"required"`
	Token     string `json:"token" validate:"required"`
	SessionID string `json:"session_id" validate:"required"`
}

// FlowHandler exposes flow initiation, verification and introspection.
type FlowHandler struct {
	manager  *flowmanager.Manager
	pin      pinflow.Service
	checkout checkout.Service
}

func NewFlowHandler(manager *flowmanager.Manager, pin pinflow.Service, co checkout.Service) *FlowHandler {
	return &FlowHandler{manager: manager, pin: pin, checkout: co}
}

func (h *FlowHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	var req InitiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.manager.Initiate(r.Context(), req.Operator, req.Subject, flowmanager.InitiateParams{
		Operation:   domain.Operation(req.Operation),
		ServiceID:   req.ServiceID,
		Merchant:    req.Merchant,
		ReturnURL:   req.ReturnURL,
		AmountMinor: req.AmountMinor,
		Locale:      req.Locale,
		FraudToken:  req.FraudToken,
		UseCheckout: req.UseCheckout,
	})
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *FlowHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.pin.VerifyAndComplete(r.Context(), req.Operator, req.Subject, req.Code)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *FlowHandler) CompleteCheckout(w http.ResponseWriter, r *http.Request) {
	var req CompleteCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.checkout.CompleteWithToken(r.Context(), req.Operator, req.Token, req.SessionID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *FlowHandler) GetReference(w http.ResponseWriter, r *http.Request) {
	operator := chi.URLParam(r, "operator")
	key := chi.URLParam(r, "key")
	ref, err := h.manager.GetFlowReference(operator, key)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ref)
}

func (h *FlowHandler) Recommended(w http.ResponseWriter, r *http.Request) {
	rec, err := h.manager.RecommendedFlow(chi.URLParam(r, "operator"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
