package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/upstreamlab/order-pipeline/internal/domain/order"
)

// orderRequest is the wire form of a single order submission.
type orderRequest struct {
	ExternalID string            `json:"externalId"`
	Items      []itemRequestBody `json:"items"`
}

type itemRequestBody struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

func (req orderRequest) toDomain() order.Request {
	items := make([]order.ItemRequest, len(req.Items))
	for i, it := range req.Items {
		items[i] = order.ItemRequest{
			Name:     it.Name,
			Price:    it.Price,
			Quantity: it.Quantity,
		}
	}
	return order.Request{ExternalID: req.ExternalID, Items: items}
}

// receive handles POST /orders/receive.
func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	o, err := h.orders.Receive(r.Context(), req.toDomain())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, o)
}

// receiveAll handles POST /orders/receive/all.
func (h *Handler) receiveAll(w http.ResponseWriter, r *http.Request) {
	var reqs []orderRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	domainReqs := make([]order.Request, len(reqs))
	for i, req := range reqs {
		domainReqs[i] = req.toDomain()
	}

	saved, err := h.orders.ReceiveAll(r.Context(), domainReqs)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, saved)
}

// orderByExternalID handles GET /orders/external-id/{id}.
func (h *Handler) orderByExternalID(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.OrderByExternalID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, o)
}

// ordersByStatus handles GET /orders/status/{status}.
func (h *Handler) ordersByStatus(w http.ResponseWriter, r *http.Request) {
	status, err := order.ParseStatus(chi.URLParam(r, "status"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	found, err := h.orders.OrdersByStatus(r.Context(), status)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if found == nil {
		found = []order.Order{}
	}
	writeJSON(w, r, http.StatusOK, found)
}

// writeDomainError maps ingestion pipeline errors to transport status codes.
// BadRequest covers malformed caller input, Conflict covers duplicate
// external ids and exhausted batches; anything else is an internal error.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var dupErr *order.DuplicateError

	switch {
	case errors.Is(err, order.ErrEmptyItems), errors.Is(err, order.ErrEmptyBatch):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.As(err, &dupErr), errors.Is(err, order.ErrNoValidOrders):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, order.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		zctx.From(r.Context()).Error("Unhandled order error", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
