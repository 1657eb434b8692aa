package engine

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/aquafloor/projectguard/internal/model"
)

// parenthetical matches "(...)" annotations composed into display
// strings (the catalog type, area suffixes).  skuNoise then removes
// Cyrillic letters and whitespace; what survives is the
// alphanumeric/Latin product code used as the matching key.
var (
	parenthetical = regexp.MustCompile(`\([^)]*\)`)
	skuNoise      = regexp.MustCompile(`[\x{0400}-\x{04FF}\s]+`)
)

// NormalizeSKU reduces a display SKU string to the bare product code
// used as the duplicate-matching key.
func NormalizeSKU(raw string) string {
	s := parenthetical.ReplaceAllString(raw, "")
	return strings.TrimSpace(skuNoise.ReplaceAllString(s, ""))
}

// formatArea renders an area without a trailing ".0" for whole values,
// matching how areas appear in display strings and conflict summaries.
func formatArea(a float64) string {
	if a == math.Trunc(a) {
		return fmt.Sprintf("%d", int64(a))
	}
	return fmt.Sprintf("%g", a)
}

// ComposeDisplay builds the display SKU string and the normalized total
// area from the submitted line items.  Three shapes are supported:
//
//   - items with individual areas: "SKU (type) — N m²; ..." with the
//     areas summed into the total;
//   - items sharing one area: "SKU (type) + SKU (type)" with the shared
//     area as the total;
//   - no items at all: the bare fallback SKU string is used as-is.
func ComposeDisplay(items []model.SKUItem, sharedArea *float64, fallbackSKU string) (string, float64) {
	shared := 0.0
	if sharedArea != nil {
		shared = *sharedArea
	}
	if len(items) == 0 {
		return strings.TrimSpace(fallbackSKU), shared
	}
	perItem := false
	for _, it := range items {
		if it.Area != nil {
			perItem = true
			break
		}
	}
	parts := make([]string, 0, len(items))
	if perItem {
		total := 0.0
		for _, it := range items {
			a := 0.0
			if it.Area != nil {
				a = *it.Area
			}
			total += a
			parts = append(parts, fmt.Sprintf("%s (%s) — %s m²", it.SKU, it.Type, formatArea(a)))
		}
		return strings.Join(parts, "; "), total
	}
	for _, it := range items {
		parts = append(parts, fmt.Sprintf("%s (%s)", it.SKU, it.Type))
	}
	return strings.Join(parts, " + "), shared
}
