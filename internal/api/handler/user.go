package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/resreg/resreg/internal/api/middleware"
	"github.com/resreg/resreg/internal/api/response"
	"github.com/resreg/resreg/internal/user"
)

type userResponse struct {
	ID               string   `json:"id"`
	DisplayName      string   `json:"displayName"`
	Email            string   `json:"email"`
	Tier             string   `json:"tier"`
	Lectorates       []string `json:"lectorates"`
	Organisations    []string `json:"organisations"`
	FavoriteProjects []string `json:"favoriteProjects"`
	RecentProjects   []string `json:"recentProjects"`
}

type setFavoritesRequest struct {
	ProjectIDs []string `json:"projectIds"`
}

// UserHandler handles account endpoints for the authenticated caller.
type UserHandler struct {
	repo user.Repository
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(repo user.Repository) *UserHandler {
	return &UserHandler{repo: repo}
}

// Me handles GET /users/me.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	si := middleware.GetIdentity(r.Context())
	if si == nil || si.User == nil {
		response.Err(w, http.StatusForbidden, "FORBIDDEN", "No local account for this session", requestID)
		return
	}

	response.Success(w, http.StatusOK, userToResponse(si.User), requestID)
}

// SetFavorites handles PUT /users/me/favorites.
func (h *UserHandler) SetFavorites(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	si := middleware.GetIdentity(r.Context())
	if si == nil || si.User == nil {
		response.Err(w, http.StatusForbidden, "FORBIDDEN", "No local account for this session", requestID)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req setFavoritesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}

	ids := make([]uuid.UUID, 0, len(req.ProjectIDs))
	for _, raw := range req.ProjectIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.Err(w, http.StatusBadRequest, "INVALID_ID", "projectIds must be valid UUIDs", requestID)
			return
		}
		ids = append(ids, id)
	}

	if err := h.repo.SetFavorites(r.Context(), si.User.ID, ids); err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "User not found", requestID)
			return
		}
		slog.Error("failed to set favorites", "error", err, "userId", si.User.ID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to set favorites", requestID)
		return
	}

	response.NoContent(w)
}

func userToResponse(u *user.User) userResponse {
	resp := userResponse{
		ID:               u.ID.String(),
		DisplayName:      u.DisplayName,
		Email:            u.Email,
		Tier:             u.Tier,
		Lectorates:       u.Lectorates,
		Organisations:    u.Organisations,
		FavoriteProjects: make([]string, 0, len(u.FavoriteIDs)),
		RecentProjects:   make([]string, 0, len(u.RecentIDs)),
	}
	if resp.Lectorates == nil {
		resp.Lectorates = []string{}
	}
	if resp.Organisations == nil {
		resp.Organisations = []string{}
	}
	for _, id := range u.FavoriteIDs {
		resp.FavoriteProjects = append(resp.FavoriteProjects, id.String())
	}
	for _, id := range u.RecentIDs {
		resp.RecentProjects = append(resp.RecentProjects, id.String())
	}
	return resp
}
