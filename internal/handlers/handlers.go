package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"buildmarket/db"
	"buildmarket/internal/boq"
	"buildmarket/internal/money"
	"buildmarket/internal/payment"
	"buildmarket/internal/settlement"

	"github.com/go-playground/validator/v10"
)

// Handler wires the HTTP surface to storage and the settlement/BOQ services.
type Handler struct {
	Store      StorageInterface
	Settlement *settlement.Coordinator
	BOQ        *boq.Generator
	AllowRebid bool

	logger   *log.Logger
	validate *validator.Validate
}

func NewHandler(store StorageInterface, coordinator *settlement.Coordinator, generator *boq.Generator, allowRebid bool, logger *log.Logger) *Handler {
	return &Handler{
		Store:      store,
		Settlement: coordinator,
		BOQ:        generator,
		AllowRebid: allowRebid,
		logger:     logger,
		validate:   validator.New(),
	}
}

// PingHandler answers "ok" for liveness checks.
func (h *Handler) PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// respondError maps the error taxonomy onto HTTP statuses. Validation and
// conflict errors carry enough detail to correct the input; upstream
// failures tell the caller to retry; invariant violations stay opaque.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, db.ErrProjectNotOpen):
		http.Error(w, "Project is not open for bidding", http.StatusConflict)
	case errors.Is(err, db.ErrDuplicateActiveBid):
		http.Error(w, "You already have a pending bid on this project", http.StatusConflict)
	case errors.Is(err, db.ErrBidNotPending):
		http.Error(w, "Bid is not pending", http.StatusConflict)
	case errors.Is(err, db.ErrCartAlreadyOrdered):
		http.Error(w, "Cart was already converted to an order", http.StatusConflict)
	case errors.Is(err, db.ErrStaleStatus):
		http.Error(w, "State changed concurrently, refresh and retry", http.StatusConflict)
	case errors.Is(err, db.ErrEmptyCart), errors.Is(err, money.ErrEmptyOrder):
		http.Error(w, "Cart is empty", http.StatusBadRequest)
	case errors.Is(err, money.ErrInvalidRate):
		http.Error(w, "Invalid commission rate", http.StatusBadRequest)
	case errors.Is(err, boq.ErrNoEstimation):
		http.Error(w, "Project has no estimation items", http.StatusConflict)
	case errors.Is(err, payment.ErrUnavailable):
		http.Error(w, "Payment service temporarily unavailable, try again", http.StatusBadGateway)
	case errors.Is(err, payment.ErrRejected):
		http.Error(w, "Payment request rejected by gateway", http.StatusBadGateway)
	case errors.Is(err, settlement.ErrSplitMismatch), errors.Is(err, settlement.ErrOrderNotSettleable):
		h.logger.Printf("settlement error: %v", err)
		http.Error(w, "Settlement failed", http.StatusInternalServerError)
	default:
		h.logger.Printf("internal error: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

type PaginationParams struct {
	Limit  int
	Offset int
}

// parsePaginationParams reads limit and offset from query with defaults and caps.
func parsePaginationParams(r *http.Request) PaginationParams {
	params := PaginationParams{Limit: 20, Offset: 0}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			params.Limit = l
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			params.Offset = o
		}
	}
	return params
}
