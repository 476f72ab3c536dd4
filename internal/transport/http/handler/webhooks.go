package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-carrier-billing/internal/application/webhook"
	"github.com/go-chi/chi/v5"
)

// PayloadArchive stores raw webhook bodies for audit and replay.
type PayloadArchive interface {
	StorePayload(ctx context.Context, operator string, body []byte) (string, error)
	GetPayload(ctx context.Context, key string) (io.ReadCloser, error)
}

// WebhookHandler receives asynchronous operator notifications.
type WebhookHandler struct {
	reconciler *webhook.Reconciler
	archive    PayloadArchive
}

func NewWebhookHandler(reconciler *webhook.Reconciler, archive PayloadArchive) *WebhookHandler {
	return &WebhookHandler{reconciler: reconciler, archive: archive}
}

// Receive archives the raw body, decodes the flat notification payload
// and hands it to the reconciler. Archival is best-effort.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	operator := chi.URLParam(r, "operator")

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	if h.archive != nil {
		if _, aErr := h.archive.StorePayload(r.Context(), operator, body); aErr != nil {
			slog.Warn("webhook archive failed", "operator", operator, "err", aErr)
		}
	}

	var notification map[string]string
	if err := json.Unmarshal(body, &notification); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	res, err := h.reconciler.Reconcile(r.Context(), operator, notification)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Archived streams a stored webhook body back for audit. The id is the
// ULID segment of the key StorePayload returned.
func (h *WebhookHandler) Archived(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		writeError(w, http.StatusNotFound, "archive not configured")
		return
	}
	operator := chi.URLParam(r, "operator")
	payloadID := chi.URLParam(r, "id")
	key := fmt.Sprintf("webhooks/%s/%s.json", operator, payloadID)
	rc, err := h.archive.GetPayload(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusNotFound, "archived payload not found")
		return
	}
	defer rc.Close()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, rc)
}
