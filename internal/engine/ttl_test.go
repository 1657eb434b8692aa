package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLeaseDays(t *testing.T) {
	cases := []struct {
		name string
		area float64
		want int
	}{
		{"zero area", 0, 5},
		{"tiny job", 12.5, 5},
		{"just under first boundary", 99.99, 5},
		{"first boundary goes to upper tier", 100, 10},
		{"mid second tier", 180, 10},
		{"just under second boundary", 249.5, 10},
		{"second boundary goes to upper tier", 250, 15},
		{"just under third boundary", 499.99, 15},
		{"third boundary goes to upper tier", 500, 30},
		{"large job", 501, 30},
		{"very large job", 10000, 30},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, LeaseDays(tc.area))
		})
	}
}

func TestLeaseDaysMonotonic(t *testing.T) {
	prev := 0
	for area := 0.0; area <= 600; area += 0.5 {
		days := LeaseDays(area)
		assert.GreaterOrEqual(t, days, prev, "lease shrank at area %g", area)
		prev = days
	}
}
