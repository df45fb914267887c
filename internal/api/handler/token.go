package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/resreg/resreg/internal/api/middleware"
	"github.com/resreg/resreg/internal/api/response"
	"github.com/resreg/resreg/internal/api/validation"
	"github.com/resreg/resreg/internal/token"
)

type createTokenRequest struct {
	Name string `json:"name"`
}

type tokenResponse struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Prefix    string  `json:"prefix"`
	CreatedAt string  `json:"createdAt"`
	RevokedAt *string `json:"revokedAt,omitempty"`
}

type tokenWithSecretResponse struct {
	tokenResponse
	Token string `json:"token"`
}

// TokenHandler handles personal access token endpoints.
type TokenHandler struct {
	service *token.Service
	repo    token.Repository
}

// NewTokenHandler creates a new TokenHandler.
func NewTokenHandler(service *token.Service, repo token.Repository) *TokenHandler {
	return &TokenHandler{service: service, repo: repo}
}

// Create handles POST /tokens. The raw token appears in this response only.
func (h *TokenHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	si := middleware.GetIdentity(r.Context())
	if si == nil || si.User == nil {
		response.Err(w, http.StatusForbidden, "FORBIDDEN", "No local account for this session", requestID)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req createTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}

	fieldErrors := validation.ValidateCreateTokenRequest(validation.CreateTokenRequest{Name: req.Name})
	if len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return
	}

	t, rawToken, err := h.service.Issue(r.Context(), si.User.ID, strings.TrimSpace(req.Name))
	if err != nil {
		slog.Error("failed to issue token", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create token", requestID)
		return
	}

	response.Success(w, http.StatusCreated, tokenWithSecretResponse{
		tokenResponse: tokenToResponse(t),
		Token:         rawToken,
	}, requestID)
}

// List handles GET /tokens.
func (h *TokenHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	si := middleware.GetIdentity(r.Context())
	if si == nil || si.User == nil {
		response.Err(w, http.StatusForbidden, "FORBIDDEN", "No local account for this session", requestID)
		return
	}

	tokens, err := h.repo.ListByUser(r.Context(), si.User.ID)
	if err != nil {
		slog.Error("failed to list tokens", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list tokens", requestID)
		return
	}

	items := make([]tokenResponse, 0, len(tokens))
	for i := range tokens {
		items = append(items, tokenToResponse(&tokens[i]))
	}

	response.Success(w, http.StatusOK, items, requestID)
}

// Delete handles DELETE /tokens/{id} (revoke).
func (h *TokenHandler) Delete(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	si := middleware.GetIdentity(r.Context())
	if si == nil || si.User == nil {
		response.Err(w, http.StatusForbidden, "FORBIDDEN", "No local account for this session", requestID)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_ID", "id must be a valid UUID", requestID)
		return
	}

	if err := h.repo.Revoke(r.Context(), id, si.User.ID); err != nil {
		if errors.Is(err, token.ErrTokenNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "Token not found", requestID)
			return
		}
		if errors.Is(err, token.ErrTokenRevoked) {
			// Already revoked, treat as success (idempotent)
			response.NoContent(w)
			return
		}
		slog.Error("failed to revoke token", "error", err, "id", id)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to revoke token", requestID)
		return
	}

	response.NoContent(w)
}

func tokenToResponse(t *token.Token) tokenResponse {
	resp := tokenResponse{
		ID:        t.ID.String(),
		Name:      t.Name,
		Prefix:    t.Prefix,
		CreatedAt: t.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
	if t.RevokedAt != nil {
		revoked := t.RevokedAt.UTC().Format("2006-01-02T15:04:05Z")
		resp.RevokedAt = &revoked
	}
	return resp
}
