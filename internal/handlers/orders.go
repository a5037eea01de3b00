package handlers

import (
	"encoding/json"
	"net/http"

	"buildmarket/internal/auth"

	"github.com/google/uuid"
)

// Sort keys accepted by GetUserOrdersHandler. Anything outside the
// allow-list is rejected before it reaches a query.
var allowedOrderSorts = map[string]bool{
	"createdAt": true,
	"total":     true,
}

// CheckoutHandler handles POST /api/orders/checkout: converts the user's
// active cart into an immutable order. Calling it twice on the same cart
// yields a conflict, never a second order.
func (h *Handler) CheckoutHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthenticated", http.StatusUnauthorized)
		return
	}

	var input struct {
		PaymentIntentRef string `json:"paymentIntentRef"`
	}
	if r.Body != nil {
		// Body is optional; a bare POST checks out with no payment intent.
		_ = json.NewDecoder(r.Body).Decode(&input)
		defer r.Body.Close()
	}

	// The intent ref is minted once here and frozen on the order; settlement
	// idempotency keys on the order id, not on this value.
	if input.PaymentIntentRef == "" {
		input.PaymentIntentRef = uuid.NewString()
	}

	cart, err := h.Store.GetOrCreateActiveCart(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	order, err := h.Store.PlaceOrder(r.Context(), cart.ID, userID, input.PaymentIntentRef)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// GetUserOrdersHandler handles GET /api/orders/my with pagination and a
// sort-key allow-list.
func (h *Handler) GetUserOrdersHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthenticated", http.StatusUnauthorized)
		return
	}
	params := parsePaginationParams(r)

	sortField := r.URL.Query().Get("sort")
	if sortField == "" {
		sortField = "createdAt"
	}
	if !allowedOrderSorts[sortField] {
		http.Error(w, "Invalid sort field, allowed: createdAt, total", http.StatusBadRequest)
		return
	}
	sortOrder := r.URL.Query().Get("order")
	if sortOrder != "asc" {
		sortOrder = "desc"
	}

	orders, err := h.Store.GetUserOrders(r.Context(), userID, params.Limit, params.Offset, sortField, sortOrder)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}
