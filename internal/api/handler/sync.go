package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/resreg/resreg/internal/api/middleware"
	"github.com/resreg/resreg/internal/api/response"
	"github.com/resreg/resreg/internal/directory"
	"github.com/resreg/resreg/internal/project"
	"github.com/resreg/resreg/internal/reconcile"
	"github.com/resreg/resreg/internal/role"
)

// SyncHandler handles targeted re-sync endpoints.
type SyncHandler struct {
	reconciler  *reconcile.Reconciler
	projectRepo project.Repository
	roleRepo    role.Repository
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(reconciler *reconcile.Reconciler, projectRepo project.Repository, roleRepo role.Repository) *SyncHandler {
	return &SyncHandler{reconciler: reconciler, projectRepo: projectRepo, roleRepo: roleRepo}
}

// Sync handles POST /projects/{id}/sync.
func (h *SyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_ID", "id must be a valid UUID", requestID)
		return
	}

	if err := h.reconciler.SyncProject(r.Context(), id); err != nil {
		if errors.Is(err, project.ErrProjectNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "Project not found", requestID)
			return
		}
		slog.Error("project sync failed", "error", err, "id", id)
		response.Err(w, http.StatusBadGateway, "SYNC_FAILED", "Directory synchronization failed", requestID)
		return
	}

	response.NoContent(w)
}

// SyncRole handles POST /projects/{id}/roles/{roleId}/sync.
func (h *SyncHandler) SyncRole(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	projectID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_ID", "id must be a valid UUID", requestID)
		return
	}
	roleID, err := uuid.Parse(chi.URLParam(r, "roleId"))
	if err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_ID", "roleId must be a valid UUID", requestID)
		return
	}

	p, err := h.projectRepo.GetByID(r.Context(), projectID)
	if err != nil {
		if errors.Is(err, project.ErrProjectNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "Project not found", requestID)
			return
		}
		slog.Error("failed to get project", "error", err, "id", projectID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to sync role", requestID)
		return
	}

	pr, err := h.roleRepo.GetByID(r.Context(), roleID)
	if err != nil || pr.ProjectID != p.ID {
		if err != nil && !errors.Is(err, role.ErrRoleNotFound) {
			slog.Error("failed to get role", "error", err, "id", roleID)
			response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to sync role", requestID)
			return
		}
		response.Err(w, http.StatusNotFound, "NOT_FOUND", "Role not found", requestID)
		return
	}

	if err := h.reconciler.SyncProjectRole(r.Context(), p, pr); err != nil {
		if errors.Is(err, directory.ErrGroupNotFound) {
			response.Err(w, http.StatusNotFound, "GROUP_NOT_FOUND", "Directory group not found", requestID)
			return
		}
		slog.Error("role sync failed", "error", err, "roleId", roleID)
		response.Err(w, http.StatusBadGateway, "SYNC_FAILED", "Directory synchronization failed", requestID)
		return
	}

	response.NoContent(w)
}
