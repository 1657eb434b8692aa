package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/aquafloor/projectguard/internal/catalog"
)

// CatalogHandler serves the read-only SKU reference data.
type CatalogHandler struct {
	Catalog *catalog.Catalog
}

// NewCatalogHandler constructs a CatalogHandler over a loaded catalog.
func NewCatalogHandler(cat *catalog.Catalog) *CatalogHandler {
	if cat == nil {
		cat = &catalog.Catalog{}
	}
	return &CatalogHandler{Catalog: cat}
}

// List handles GET /api/skus with an optional type filter
// (adhesive or lock).
func (h *CatalogHandler) List(c echo.Context) error {
	items := h.Catalog.Items(c.QueryParam("type"))
	return c.JSON(http.StatusOK, items)
}
