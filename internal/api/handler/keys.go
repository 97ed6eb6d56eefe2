package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/kiranshivaraju/pushconsole/internal/api/middleware"
	"github.com/kiranshivaraju/pushconsole/internal/api/response"
	"github.com/kiranshivaraju/pushconsole/internal/store"
	"github.com/kiranshivaraju/pushconsole/pkg/models"
)

// KeyHandlers manages operator API keys under /api/v1/admin/keys.
type KeyHandlers struct {
	store store.Store
}

// NewKeyHandlers creates KeyHandlers.
func NewKeyHandlers(s store.Store) *KeyHandlers {
	return &KeyHandlers{store: s}
}

type createKeyRequest struct {
	Name   string   `json:"name"`
	Scopes []string `json:"scopes"`
}

// Create handles POST /api/v1/admin/keys. The raw key is only in this
// response.
func (h *KeyHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req createKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "name is required", nil)
		return
	}
	for _, s := range req.Scopes {
		if s != models.ScopeOperator && s != models.ScopeAdmin {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "unknown scope", map[string]string{
				"scope": s,
			})
			return
		}
	}

	raw, key, err := mw.GenerateAPIKey(req.Name, req.Scopes)
	if err != nil {
		slog.Error("generate api key failed", "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create key", nil)
		return
	}

	if err := h.store.CreateAPIKey(r.Context(), key); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			response.Error(w, http.StatusConflict, "DUPLICATE_KEY", "API key already exists", nil)
			return
		}
		slog.Error("create api key failed", "error", err, "request_id", mw.GetRequestID(r.Context()))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create key", nil)
		return
	}

	response.Created(w, map[string]any{
		"id":         key.ID.String(),
		"name":       key.Name,
		"key":        raw,
		"key_prefix": key.KeyPrefix,
		"scopes":     key.Scopes,
		"created_at": key.CreatedAt,
	})
}

// List handles GET /api/v1/admin/keys.
func (h *KeyHandlers) List(w http.ResponseWriter, r *http.Request) {
	keys, err := h.store.ListAPIKeys(r.Context())
	if err != nil {
		slog.Error("list api keys failed", "error", err, "request_id", mw.GetRequestID(r.Context()))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list keys", nil)
		return
	}
	if keys == nil {
		keys = []*models.APIKey{}
	}
	response.JSON(w, keys)
}

// Revoke handles DELETE /api/v1/admin/keys/{keyID}.
func (h *KeyHandlers) Revoke(w http.ResponseWriter, r *http.Request) {
	keyID, err := uuid.Parse(chi.URLParam(r, "keyID"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_KEY_ID", "Invalid key ID", nil)
		return
	}

	if err := h.store.RevokeAPIKey(r.Context(), keyID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "KEY_NOT_FOUND", "API key not found", nil)
			return
		}
		slog.Error("revoke api key failed", "error", err, "request_id", mw.GetRequestID(r.Context()))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to revoke key", nil)
		return
	}

	response.NoContent(w)
}
