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

// CreateProjectHandler handles POST /api/projects/new. New projects start
// in Draft and must be published before bids can come in.
func (h *Handler) CreateProjectHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
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

	var project models.Project
	if err := json.Unmarshal(body, &project); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&project); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	project.OwnerID = userID
	project.Status = models.ProjectStatusDraft

	if err := h.Store.CreateProject(r.Context(), &project); err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// PublishProjectHandler handles PUT /api/projects/{projectId}/publish.
func (h *Handler) PublishProjectHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthenticated", http.StatusUnauthorized)
		return
	}

	projectID, err := strconv.Atoi(chi.URLParam(r, "projectId"))
	if err != nil || projectID <= 0 {
		http.Error(w, "Invalid projectId", http.StatusBadRequest)
		return
	}

	if err := h.Store.PublishProject(r.Context(), projectID, userID); err != nil {
		h.respondError(w, err)
		return
	}

	project, err := h.Store.GetProject(r.Context(), projectID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// GetProjectsHandler handles GET /api/projects: open projects, newest first.
func (h *Handler) GetProjectsHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)

	projects, err := h.Store.GetOpenProjects(r.Context(), params.Limit, params.Offset)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

// GetUserProjectsHandler handles GET /api/projects/my.
func (h *Handler) GetUserProjectsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthenticated", http.StatusUnauthorized)
		return
	}
	params := parsePaginationParams(r)

	projects, err := h.Store.GetUserProjects(r.Context(), userID, params.Limit, params.Offset)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

// AddEstimationItemHandler handles POST /api/projects/{projectId}/estimation.
// Only the project owner may extend the estimation.
func (h *Handler) AddEstimationItemHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthenticated", http.StatusUnauthorized)
		return
	}

	projectID, err := strconv.Atoi(chi.URLParam(r, "projectId"))
	if err != nil || projectID <= 0 {
		http.Error(w, "Invalid projectId", http.StatusBadRequest)
		return
	}

	project, err := h.Store.GetProject(r.Context(), projectID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if project.OwnerID != userID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	var item models.EstimationItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()
	if err := h.validate.Struct(&item); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.Store.AddEstimationItem(r.Context(), projectID, &item); err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}
