package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquafloor/projectguard/internal/model"
)

func TestNormalizeSKU(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"AF2506", "AF2506"},
		{"  AF2506  ", "AF2506"},
		{"AF2506 (adhesive)", "AF2506"},
		{"AF2506 (adhesive) — 120 m²", "AF2506—120m²"},
		{"AF2506 клеевая", "AF2506"},
		{"Кварц-винил AF2506", "-AF2506"},
		{"AF 25 06", "AF2506"},
		{"", ""},
		{"(lock)", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeSKU(tc.raw), "raw=%q", tc.raw)
	}
}

func TestNormalizeSKUEquivalence(t *testing.T) {
	// The same product code must collapse to one key regardless of how
	// the display string was composed.
	variants := []string{
		"AF2506",
		"AF2506 (adhesive)",
		"AF2506 (lock)",
		"AF2506 клеевая (adhesive)",
		" AF2506 ",
	}
	for _, v := range variants {
		assert.Equal(t, "AF2506", NormalizeSKU(v), "variant=%q", v)
	}
}

func TestWithinBandCenteredOnExisting(t *testing.T) {
	// Band is 0.9*A <= B <= 1.1*A for existing area A.
	assert.True(t, withinBand(100, 90))
	assert.True(t, withinBand(100, 110))
	assert.True(t, withinBand(100, 100))
	assert.False(t, withinBand(100, 89.99))
	assert.False(t, withinBand(100, 110.01))

	// Asymmetry: 90 is inside the band of 100, but 100 is outside the
	// band of 90 (90*1.1 = 99).
	assert.True(t, withinBand(100, 90))
	assert.False(t, withinBand(90, 100))
}

func TestComposeDisplay(t *testing.T) {
	area := func(v float64) *float64 { return &v }

	t.Run("per-item areas", func(t *testing.T) {
		display, total := ComposeDisplay([]model.SKUItem{
			{SKU: "AF2506", Type: model.TypeAdhesive, Area: area(120)},
			{SKU: "AF3511", Type: model.TypeLock, Area: area(80.5)},
		}, nil, "")
		assert.Equal(t, "AF2506 (adhesive) — 120 m²; AF3511 (lock) — 80.5 m²", display)
		assert.InDelta(t, 200.5, total, 1e-9)
	})

	t.Run("shared area", func(t *testing.T) {
		display, total := ComposeDisplay([]model.SKUItem{
			{SKU: "AF2506", Type: model.TypeAdhesive},
			{SKU: "AF3511", Type: model.TypeLock},
		}, area(150), "")
		assert.Equal(t, "AF2506 (adhesive) + AF3511 (lock)", display)
		assert.Equal(t, 150.0, total)
	})

	t.Run("bare fallback", func(t *testing.T) {
		display, total := ComposeDisplay(nil, area(75), " AF2506 ")
		assert.Equal(t, "AF2506", display)
		assert.Equal(t, 75.0, total)
	})
}

func TestFirstConflict(t *testing.T) {
	area := func(v float64) *float64 { return &v }
	expires := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	active := []model.Protection{
		{ID: 1, Manager: "Ivanov", Partner: "FloorCo", SKU: "AF2506 (adhesive)", AreaM2: area(100), ExpiresAt: expires},
		{ID: 2, Manager: "Petrov", SKU: "AF3511 (lock)", AreaM2: area(300)},
		{ID: 3, Manager: "Sidorov", SKU: "AF9001"}, // no area recorded
	}

	t.Run("hit inside band", func(t *testing.T) {
		hit := firstConflict([]Pair{{Code: "AF2506", Area: 95}}, active)
		require.NotNil(t, hit)
		assert.Equal(t, uint64(1), hit.ProtectionID)
		assert.Equal(t, "Ivanov", hit.Manager)
		assert.Equal(t, 100.0, hit.AreaM2)
		assert.Equal(t, expires, hit.ExpiresAt)
	})

	t.Run("same sku outside band", func(t *testing.T) {
		assert.Nil(t, firstConflict([]Pair{{Code: "AF2506", Area: 200}}, active))
	})

	t.Run("different sku same area", func(t *testing.T) {
		assert.Nil(t, firstConflict([]Pair{{Code: "AF7777", Area: 100}}, active))
	})

	t.Run("rows without area never match", func(t *testing.T) {
		assert.Nil(t, firstConflict([]Pair{{Code: "AF9001", Area: 100}}, active))
	})

	t.Run("multi-item create checks every pair", func(t *testing.T) {
		hit := firstConflict([]Pair{
			{Code: "AF7777", Area: 100},
			{Code: "AF3511", Area: 310},
		}, active)
		require.NotNil(t, hit)
		assert.Equal(t, uint64(2), hit.ProtectionID)
	})
}

func TestAllMatches(t *testing.T) {
	area := func(v float64) *float64 { return &v }
	active := []model.Protection{
		{ID: 1, SKU: "AF2506", AreaM2: area(100)},
		{ID: 2, SKU: "AF2506 (adhesive)", AreaM2: area(105)},
		{ID: 3, SKU: "AF2506", AreaM2: area(500)},
	}
	matches := allMatches([]Pair{{Code: "AF2506", Area: 100}}, active)
	require.Len(t, matches, 2)
	assert.Equal(t, uint64(1), matches[0].ProtectionID)
	assert.Equal(t, uint64(2), matches[1].ProtectionID)
}
