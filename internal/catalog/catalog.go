// Package catalog loads the read-only SKU reference data served to
// clients.  The data never participates in reservation decisions; it
// only backs the SKU picker.
package catalog

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/aquafloor/projectguard/internal/model"
)

// Catalog is an immutable, sorted list of known SKUs.
type Catalog struct {
	items []model.CatalogItem
}

// Load reads reference data from a CSV file.  Two layouts are
// accepted: a header row naming sku/collection/type columns, or the
// matrix export where row 1 holds collection names, row 2 holds the
// type per column and every following row holds SKUs column-wise.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("catalog: parse %s: %w", path, err)
	}
	return FromRows(rows)
}

// FromRows builds a Catalog out of already parsed CSV rows.
func FromRows(rows [][]string) (*Catalog, error) {
	if len(rows) == 0 {
		return &Catalog{}, nil
	}

	var items []model.CatalogItem
	if cols, ok := headerColumns(rows[0]); ok {
		idx := func(name string) int {
			if i, present := cols[name]; present {
				return i
			}
			return -1
		}
		for _, row := range rows[1:] {
			item := model.CatalogItem{
				SKU:        cell(row, idx("sku")),
				Collection: cell(row, idx("collection")),
				Type:       normalizeType(cell(row, idx("type"))),
			}
			if item.SKU != "" {
				items = append(items, item)
			}
		}
	} else {
		items = fromMatrix(rows)
	}

	return &Catalog{items: dedupe(items)}, nil
}

// Items returns every catalog entry, optionally filtered by type.
func (c *Catalog) Items(typ string) []model.CatalogItem {
	if typ == "" {
		out := make([]model.CatalogItem, len(c.items))
		copy(out, c.items)
		return out
	}
	var out []model.CatalogItem
	for _, it := range c.items {
		if it.Type == typ {
			out = append(out, it)
		}
	}
	return out
}

// Len reports the number of loaded entries.
func (c *Catalog) Len() int { return len(c.items) }

func headerColumns(row []string) (map[string]int, bool) {
	cols := make(map[string]int)
	for i, name := range row {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "sku", "article":
			cols["sku"] = i
		case "collection":
			cols["collection"] = i
		case "type":
			cols["type"] = i
		}
	}
	_, ok := cols["sku"]
	return cols, ok
}

// fromMatrix handles the column-wise export: collection names on the
// first row, the type of each column on the second, SKUs below.
func fromMatrix(rows [][]string) []model.CatalogItem {
	if len(rows) < 3 {
		return nil
	}
	collections := rows[0]
	types := rows[1]
	var items []model.CatalogItem
	for _, row := range rows[2:] {
		for col, sku := range row {
			sku = strings.TrimSpace(sku)
			if sku == "" {
				continue
			}
			items = append(items, model.CatalogItem{
				SKU:        sku,
				Collection: strings.TrimSpace(cell(collections, col)),
				Type:       normalizeType(cell(types, col)),
			})
		}
	}
	return items
}

func dedupe(items []model.CatalogItem) []model.CatalogItem {
	seen := make(map[string]struct{}, len(items))
	out := items[:0]
	for _, it := range items {
		key := it.SKU + "\x00" + it.Type
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Collection != out[j].Collection {
			return out[i].Collection < out[j].Collection
		}
		return out[i].SKU < out[j].SKU
	})
	return out
}

func normalizeType(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case model.TypeLock, "click", "locking":
		return model.TypeLock
	default:
		return model.TypeAdhesive
	}
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
