package model

// Catalog item types.  The type is taken as-is for display
// composition; it is never validated against at protection write time.
const (
	TypeAdhesive = "adhesive"
	TypeLock     = "lock"
)

// CatalogItem is one valid SKU/collection/type triple imported from the
// flat catalog file.  The catalog is read-only reference data.
type CatalogItem struct {
	SKU        string `json:"sku"`
	Collection string `json:"collection"`
	Type       string `json:"type"`
}
