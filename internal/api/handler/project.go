package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/resreg/resreg/internal/api/middleware"
	"github.com/resreg/resreg/internal/api/response"
	"github.com/resreg/resreg/internal/api/validation"
	"github.com/resreg/resreg/internal/project"
	"github.com/resreg/resreg/internal/user"
)

type projectResponse struct {
	ID            string  `json:"id"`
	CorrelationID *string `json:"correlationId,omitempty"`
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	StartDate     string  `json:"startDate"`
	EndDate       *string `json:"endDate,omitempty"`
	LastEdited    string  `json:"lastEdited"`
}

type updateProjectRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	EndDate     *string `json:"endDate"`
}

// ProjectHandler handles project read/update endpoints.
type ProjectHandler struct {
	repo     project.Repository
	userRepo user.Repository
}

// NewProjectHandler creates a new ProjectHandler.
func NewProjectHandler(repo project.Repository, userRepo user.Repository) *ProjectHandler {
	return &ProjectHandler{repo: repo, userRepo: userRepo}
}

// List handles GET /projects.
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	projects, err := h.repo.List(r.Context())
	if err != nil {
		slog.Error("failed to list projects", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list projects", requestID)
		return
	}

	items := make([]projectResponse, 0, len(projects))
	for i := range projects {
		items = append(items, projectToResponse(&projects[i]))
	}

	response.Success(w, http.StatusOK, items, requestID)
}

// GetByID handles GET /projects/{id}. Viewing a project bumps it to the
// front of the caller's recent list, best effort.
func (h *ProjectHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_ID", "id must be a valid UUID", requestID)
		return
	}

	p, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, project.ErrProjectNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "Project not found", requestID)
			return
		}
		slog.Error("failed to get project", "error", err, "id", id)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get project", requestID)
		return
	}

	if si := middleware.GetIdentity(r.Context()); si != nil && si.User != nil {
		if err := h.userRepo.TouchRecent(r.Context(), si.User.ID, p.ID); err != nil {
			slog.Warn("failed to update recent projects", "error", err, "userId", si.User.ID)
		}
	}

	response.Success(w, http.StatusOK, projectToResponse(p), requestID)
}

// Update handles PATCH /projects/{id}.
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_ID", "id must be a valid UUID", requestID)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req updateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}

	fieldErrors := validation.ValidateUpdateProjectRequest(validation.UpdateProjectRequest{
		Title:       req.Title,
		Description: req.Description,
		EndDate:     req.EndDate,
	})
	if len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return
	}

	upd := project.Update{Description: req.Description}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		upd.Title = &title
	}
	if req.EndDate != nil {
		endDate, _ := time.Parse("2006-01-02", *req.EndDate) // already validated
		upd.EndDate = &endDate
	}

	p, err := h.repo.Update(r.Context(), id, upd)
	if err != nil {
		if errors.Is(err, project.ErrProjectNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "Project not found", requestID)
			return
		}
		slog.Error("failed to update project", "error", err, "id", id)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update project", requestID)
		return
	}

	response.Success(w, http.StatusOK, projectToResponse(p), requestID)
}

func projectToResponse(p *project.Project) projectResponse {
	resp := projectResponse{
		ID:            p.ID.String(),
		CorrelationID: p.CorrelationID,
		Title:         p.Title,
		Description:   p.Description,
		StartDate:     p.StartDate.UTC().Format("2006-01-02T15:04:05Z"),
		LastEdited:    p.LastEdited.UTC().Format("2006-01-02T15:04:05Z"),
	}
	if p.EndDate != nil {
		endDate := p.EndDate.UTC().Format("2006-01-02T15:04:05Z")
		resp.EndDate = &endDate
	}
	return resp
}
