package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"buildmarket/internal/auth"

	"github.com/go-chi/chi/v5"
)

// GenerateBOQHandler handles POST /api/boq/{projectId}/generate. Repeat
// generations supersede the project's current document.
func (h *Handler) GenerateBOQHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.UserID(r.Context()); !ok {
		http.Error(w, "Unauthenticated", http.StatusUnauthorized)
		return
	}

	projectID, err := strconv.Atoi(chi.URLParam(r, "projectId"))
	if err != nil || projectID <= 0 {
		http.Error(w, "Invalid projectId", http.StatusBadRequest)
		return
	}

	var input struct {
		CompanyName string `json:"companyName" validate:"required,max=100"`
		CompanyLogo string `json:"companyLogo" validate:"max=500"`
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

	doc, err := h.BOQ.Generate(r.Context(), projectID, input.CompanyName, input.CompanyLogo)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// GetBOQHandler handles GET /api/boq/{projectId}.
func (h *Handler) GetBOQHandler(w http.ResponseWriter, r *http.Request) {
	projectID, err := strconv.Atoi(chi.URLParam(r, "projectId"))
	if err != nil || projectID <= 0 {
		http.Error(w, "Invalid projectId", http.StatusBadRequest)
		return
	}

	doc, err := h.BOQ.Get(r.Context(), projectID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}
