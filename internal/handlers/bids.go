package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"buildmarket/internal/auth"
	"buildmarket/models"

	"github.com/go-chi/chi/v5"
)

// CreateBidHandler handles POST /api/bids/new. The seller identity comes
// from the bearer token, never from the body.
func (h *Handler) CreateBidHandler(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthenticated", http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1048576)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var bid models.Bid
	if err := json.Unmarshal(body, &bid); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&bid); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	bid.SellerID = sellerID

	if err := h.Store.SubmitBid(r.Context(), &bid, h.AllowRebid); err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bid)
}

// GetBidsForProjectHandler handles GET /api/bids/{projectId}/list: every
// bid, any status, newest first. Callers filter for active bids themselves.
func (h *Handler) GetBidsForProjectHandler(w http.ResponseWriter, r *http.Request) {
	projectID, err := strconv.Atoi(chi.URLParam(r, "projectId"))
	if err != nil || projectID <= 0 {
		http.Error(w, "Invalid projectId", http.StatusBadRequest)
		return
	}

	bids, err := h.Store.GetBidsForProject(r.Context(), projectID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bids)
}

// AcceptBidHandler handles PUT /api/bids/{bidId}/accept. Only the project
// owner may accept; on success every other pending bid is rejected and the
// project closes, all in one transaction.
func (h *Handler) AcceptBidHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthenticated", http.StatusUnauthorized)
		return
	}

	bidID, err := strconv.Atoi(chi.URLParam(r, "bidId"))
	if err != nil || bidID <= 0 {
		http.Error(w, "Invalid bidId", http.StatusBadRequest)
		return
	}

	var input struct {
		FinalAmount int64 `json:"finalAmount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	bid, err := h.Store.GetBid(r.Context(), bidID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	project, err := h.Store.GetProject(r.Context(), bid.ProjectID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if project.OwnerID != userID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	// Default to the bid amount when no negotiated final price is given.
	finalAmount := input.FinalAmount
	if finalAmount == 0 {
		finalAmount = bid.Amount
	}
	if finalAmount <= 0 {
		http.Error(w, "finalAmount must be positive", http.StatusBadRequest)
		return
	}

	accepted, err := h.Store.AcceptBid(r.Context(), bidID, finalAmount)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accepted)
}

// WithdrawBidHandler handles PUT /api/bids/{bidId}/withdraw.
func (h *Handler) WithdrawBidHandler(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthenticated", http.StatusUnauthorized)
		return
	}

	bidID, err := strconv.Atoi(chi.URLParam(r, "bidId"))
	if err != nil || bidID <= 0 {
		http.Error(w, "Invalid bidId", http.StatusBadRequest)
		return
	}

	if err := h.Store.WithdrawBid(r.Context(), bidID, sellerID); err != nil {
		h.respondError(w, err)
		return
	}

	bid, err := h.Store.GetBid(r.Context(), bidID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bid)
}
