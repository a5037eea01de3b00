package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"buildmarket/internal/auth"
	"buildmarket/models"

	"github.com/go-chi/chi/v5"
)

// GetProductsHandler handles GET /api/products.
func (h *Handler) GetProductsHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)

	products, err := h.Store.GetProducts(r.Context(), params.Limit, params.Offset)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

// GetCartHandler handles GET /api/cart: the user's active cart with items
// and computed totals.
func (h *Handler) GetCartHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthenticated", http.StatusUnauthorized)
		return
	}

	cart, err := h.loadCart(r, userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

func (h *Handler) loadCart(r *http.Request, userID int) (*models.Cart, error) {
	cart, err := h.Store.GetOrCreateActiveCart(r.Context(), userID)
	if err != nil {
		return nil, err
	}
	items, err := h.Store.GetCartItems(r.Context(), cart.ID)
	if err != nil {
		return nil, err
	}
	cart.Items = items
	for _, it := range items {
		cart.Subtotal += it.UnitPrice * int64(it.Quantity)
	}
	cart.Total = cart.Subtotal
	return cart, nil
}

// AddCartItemHandler handles POST /api/cart/items. Price and seller are
// snapshotted from the catalog at add time, not taken from the caller.
func (h *Handler) AddCartItemHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthenticated", http.StatusUnauthorized)
		return
	}

	var input struct {
		ProductID int `json:"productId" validate:"required"`
		Quantity  int `json:"quantity" validate:"required,gt=0"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()
	if err := h.validate.Struct(&input); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	product, err := h.Store.GetProduct(r.Context(), input.ProductID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	cart, err := h.Store.GetOrCreateActiveCart(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	item := models.CartItem{
		CartID:    cart.ID,
		ProductID: product.ID,
		SellerID:  product.SellerID,
		UnitPrice: product.Price,
		Quantity:  input.Quantity,
	}
	if err := h.Store.AddCartItem(r.Context(), &item); err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// UpdateCartItemHandler handles PATCH /api/cart/items/{itemId}.
func (h *Handler) UpdateCartItemHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthenticated", http.StatusUnauthorized)
		return
	}

	itemID, err := strconv.Atoi(chi.URLParam(r, "itemId"))
	if err != nil || itemID <= 0 {
		http.Error(w, "Invalid itemId", http.StatusBadRequest)
		return
	}

	var input struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()
	if input.Quantity <= 0 {
		http.Error(w, "quantity must be a positive integer", http.StatusBadRequest)
		return
	}

	cart, err := h.Store.GetOrCreateActiveCart(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	if err := h.Store.UpdateCartItemQuantity(r.Context(), cart.ID, itemID, input.Quantity); err != nil {
		h.respondError(w, err)
		return
	}

	updated, err := h.loadCart(r, userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// RemoveCartItemHandler handles DELETE /api/cart/items/{itemId}. Removing
// the last item empties the cart but keeps it.
func (h *Handler) RemoveCartItemHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthenticated", http.StatusUnauthorized)
		return
	}

	itemID, err := strconv.Atoi(chi.URLParam(r, "itemId"))
	if err != nil || itemID <= 0 {
		http.Error(w, "Invalid itemId", http.StatusBadRequest)
		return
	}

	cart, err := h.Store.GetOrCreateActiveCart(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	if err := h.Store.RemoveCartItem(r.Context(), cart.ID, itemID); err != nil {
		h.respondError(w, err)
		return
	}

	updated, err := h.loadCart(r, userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
