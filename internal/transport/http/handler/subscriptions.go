package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-carrier-billing/internal/application/flowmanager"
	"github.com/go-carrier-billing/internal/domain"
	"github.com/go-chi/chi/v5"
)

// SubscriptionReader loads a persisted lifecycle record.
type SubscriptionReader interface {
	Get(ctx context.Context, operator, subject string) (*domain.Subscription, error)
}

// RecordLister returns billing traces for a subject, newest first.
type RecordLister interface {
	ListBySubject(ctx context.Context, subject string, limit int32) ([]domain.BillingRecord, error)
}

// SubscriptionHandler exposes subscription termination and introspection.
type SubscriptionHandler struct {
	manager *flowmanager.Manager
	subs    SubscriptionReader
	records RecordLister
}

func NewSubscriptionHandler(manager *flowmanager.Manager, subs SubscriptionReader, records RecordLister) *SubscriptionHandler {
	return &SubscriptionHandler{manager: manager, subs: subs, records: records}
}

func (h *SubscriptionHandler) Terminate(w http.ResponseWriter, r *http.Request) {
	operator := chi.URLParam(r, "operator")
	subject := chi.URLParam(r, "subject")
	res, err := h.manager.Terminate(r.Context(), operator, subject)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *SubscriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	operator := chi.URLParam(r, "operator")
	subject := chi.URLParam(r, "subject")
	sub, err := h.subs.Get(r.Context(), operator, subject)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// Records lists billing traces for the subject. Cap the page at 200;
// the default of 50 covers a month of daily renewals.
func (h *SubscriptionHandler) Records(w http.ResponseWriter, r *http.Request) {
	subject := chi.URLParam(r, "subject")
	limit := int32(50)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || n < 1 || n > 200 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
		limit = int32(n)
	}
	recs, err := h.records.ListBySubject(r.Context(), subject, limit)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}
