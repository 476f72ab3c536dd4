package handler

import (
	"net/http"

	"github.com/go-carrier-billing/internal/application/operators"
	"github.com/go-chi/chi/v5"
)

// OperatorHandler exposes capability introspection.
type OperatorHandler struct {
	table *operators.Table
}

func NewOperatorHandler(table *operators.Table) *OperatorHandler {
	return &OperatorHandler{table: table}
}

func (h *OperatorHandler) List(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.table.List())
}

func (h *OperatorHandler) Get(w http.ResponseWriter, r *http.Request) {
	cap, err := h.table.CapabilitiesOf(chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cap)
}
