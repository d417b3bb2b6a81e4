// Package handler is the thin HTTP mapping layer: it decodes requests,
// delegates to the ingestion pipeline, and translates domain errors to
// transport status codes. No business logic lives here.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/upstreamlab/order-pipeline/internal/domain/order"
)

// Handler serves the order API.
type Handler struct {
	orders *order.Service
}

// NewHandler constructs a Handler delegating to the given order service.
func NewHandler(orders *order.Service) *Handler {
	return &Handler{orders: orders}
}

// Routes returns the order API router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Route("/orders", func(r chi.Router) {
		r.Post("/receive", h.receive)
		r.Post("/receive/all", h.receiveAll)
		r.Get("/external-id/{id}", h.orderByExternalID)
		r.Get("/status/{status}", h.ordersByStatus)
	})
	return r
}

// errorResponse is the wire form of every error the API returns.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zctx.From(r.Context()).Error("Encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, errorResponse{Code: status, Message: msg})
}
