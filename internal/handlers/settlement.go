package handlers

import (
	"net/http"
	"strconv"

	"buildmarket/internal/auth"

	"github.com/go-chi/chi/v5"
)

// InitiateSettlementHandler handles POST /api/orders/{orderId}/settle.
// Only the order's owner may initiate; retrying after a gateway timeout is
// safe, the coordinator dedupes on the order.
func (h *Handler) InitiateSettlementHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthenticated", http.StatusUnauthorized)
		return
	}

	orderID, err := strconv.Atoi(chi.URLParam(r, "orderId"))
	if err != nil || orderID <= 0 {
		http.Error(w, "Invalid orderId", http.StatusBadRequest)
		return
	}

	order, err := h.Store.GetOrder(r.Context(), orderID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if order.UserID != userID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	result, err := h.Settlement.InitiateSettlement(r.Context(), orderID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetSplitsHandler handles GET /api/splits/{orderId}.
func (h *Handler) GetSplitsHandler(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.Atoi(chi.URLParam(r, "orderId"))
	if err != nil || orderID <= 0 {
		http.Error(w, "Invalid orderId", http.StatusBadRequest)
		return
	}

	splits, err := h.Store.GetSplitsForOrder(r.Context(), orderID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, splits)
}

// CheckSplitHandler handles PUT /api/splits/{splitId}/check: the manual
// reconciliation confirmation. Monotonic; re-checking is a no-op success.
func (h *Handler) CheckSplitHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.UserID(r.Context()); !ok {
		http.Error(w, "Unauthenticated", http.StatusUnauthorized)
		return
	}

	splitID, err := strconv.Atoi(chi.URLParam(r, "splitId"))
	if err != nil || splitID <= 0 {
		http.Error(w, "Invalid splitId", http.StatusBadRequest)
		return
	}

	split, err := h.Settlement.Reconcile(r.Context(), splitID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, split)
}

// GetSplitsSummaryHandler handles GET /api/splits/summary: platform-wide
// totals over persisted split rows.
func (h *Handler) GetSplitsSummaryHandler(w http.ResponseWriter, r *http.Request) {
	commission, gross, err := h.Settlement.Totals(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{
		"totalPlatformCommission": commission,
		"totalGross":              gross,
	})
}
