package handler

import (
	"net/http"

	"github.com/kiranshivaraju/pushconsole/internal/api/response"
	"github.com/kiranshivaraju/pushconsole/pkg/models"
)

// NewTenantsHandler returns the handler for GET /api/v1/tenants.
func NewTenantsHandler(tenants []models.Tenant) http.HandlerFunc {
	list := append([]models.Tenant{}, tenants...)
	return func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, list)
	}
}
