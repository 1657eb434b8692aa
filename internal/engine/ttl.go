package engine

import "time"

// Lease tiers.  The lease is a step function of the total reserved
// area; every boundary value belongs to the upper tier, so a larger
// area never yields a shorter lease.  An unknown or zero area gets the
// shortest lease.
const (
	leaseTier1Days = 5  // area < 100 m²
	leaseTier2Days = 10 // 100 <= area < 250
	leaseTier3Days = 15 // 250 <= area < 500
	leaseTier4Days = 30 // area >= 500
)

// LeaseDays returns the lease duration in days for the given total
// reserved area in m².
func LeaseDays(area float64) int {
	switch {
	case area < 100:
		return leaseTier1Days
	case area < 250:
		return leaseTier2Days
	case area < 500:
		return leaseTier3Days
	default:
		return leaseTier4Days
	}
}

// addDays advances t by a whole number of days.  Extensions compound on
// the current deadline, not on "now", so accrued slack is preserved.
func addDays(t time.Time, days int) time.Time {
	return t.Add(time.Duration(days) * 24 * time.Hour)
}
