package engine

import (
	"time"

	"github.com/aquafloor/projectguard/internal/model"
)

// overlapTolerance is the symmetric band applied around the existing
// record's area.  The band is centered on the existing row, not on the
// candidate: a candidate B conflicts with an existing area A iff
// 0.9*A <= B <= 1.1*A.  The asymmetry matters near the boundary and is
// preserved deliberately.
const overlapTolerance = 0.1

// Pair is one (normalized SKU, area) unit of duplicate checking.  A
// create carrying multiple line items produces one pair per item.
type Pair struct {
	Code string
	Area float64
}

// Match summarizes an existing active protection that collides with a
// candidate pair.  It carries enough detail for a human operator to
// resolve the conflict without re-querying the system.
type Match struct {
	ProtectionID uint64    `json:"id"`
	Manager      string    `json:"manager"`
	Partner      string    `json:"partner"`
	SKU          string    `json:"sku"`
	AreaM2       float64   `json:"area_m2"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// buildPairs derives the duplicate-check pairs from submitted line
// items, mirroring ComposeDisplay: per-item areas yield one pair each,
// a shared area applies the total to every item, and a bare display
// string yields a single pair.  Pairs with an empty code or
// non-positive area are dropped.
func buildPairs(items []model.SKUItem, total float64, display string) []Pair {
	var pairs []Pair
	add := func(code string, area float64) {
		if code == "" || area <= 0 {
			return
		}
		pairs = append(pairs, Pair{Code: code, Area: area})
	}
	if len(items) == 0 {
		add(NormalizeSKU(display), total)
		return pairs
	}
	perItem := false
	for _, it := range items {
		if it.Area != nil {
			perItem = true
			break
		}
	}
	for _, it := range items {
		if perItem {
			a := 0.0
			if it.Area != nil {
				a = *it.Area
			}
			add(NormalizeSKU(it.SKU), a)
		} else {
			add(NormalizeSKU(it.SKU), total)
		}
	}
	return pairs
}

// withinBand reports whether candidate falls inside the tolerance band
// centered on the existing area.
func withinBand(existing, candidate float64) bool {
	return candidate >= existing*(1-overlapTolerance) && candidate <= existing*(1+overlapTolerance)
}

// firstConflict runs the enforced duplicate check: every pair against
// every active row, failing fast on the first hit.  Rows without an
// area never match.
func firstConflict(pairs []Pair, active []model.Protection) *Match {
	for _, pr := range pairs {
		for i := range active {
			row := &active[i]
			if row.AreaM2 == nil {
				continue
			}
			if NormalizeSKU(row.SKU) != pr.Code {
				continue
			}
			if withinBand(*row.AreaM2, pr.Area) {
				return &Match{
					ProtectionID: row.ID,
					Manager:      row.Manager,
					Partner:      row.Partner,
					SKU:          row.SKU,
					AreaM2:       *row.AreaM2,
					ExpiresAt:    row.ExpiresAt,
				}
			}
		}
	}
	return nil
}

// allMatches is the softer pre-submission variant: the same band test,
// owner ignored, returning every match instead of failing fast.
func allMatches(pairs []Pair, active []model.Protection) []Match {
	out := make([]Match, 0)
	for _, pr := range pairs {
		for i := range active {
			row := &active[i]
			if row.AreaM2 == nil {
				continue
			}
			if NormalizeSKU(row.SKU) != pr.Code {
				continue
			}
			if withinBand(*row.AreaM2, pr.Area) {
				out = append(out, Match{
					ProtectionID: row.ID,
					Manager:      row.Manager,
					Partner:      row.Partner,
					SKU:          row.SKU,
					AreaM2:       *row.AreaM2,
					ExpiresAt:    row.ExpiresAt,
				})
			}
		}
	}
	return out
}
