// Package sweeper periodically scans active protections that are
// about to expire and pushes a reminder to the responsible manager
// and their assistants.
package sweeper

import (
	"context"
	"log"
	"time"

	"github.com/aquafloor/projectguard/internal/model"
)

// Source lists the active protections expiring within the window.
type Source interface {
	ExpiringWithin(ctx context.Context, window time.Duration) ([]model.Protection, error)
}

// Reminder delivers a single expiry reminder; failures stay inside.
type Reminder interface {
	SendReminder(ctx context.Context, p *model.Protection)
}

// Sweeper runs the reminder scan on a fixed interval.
type Sweeper struct {
	source   Source
	reminder Reminder
	interval time.Duration
	window   time.Duration
}

// New returns a Sweeper scanning every interval for protections that
// expire within window.  Non-positive values fall back to the
// defaults of one day and two days respectively.
func New(source Source, reminder Reminder, interval, window time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	if window <= 0 {
		window = 48 * time.Hour
	}
	return &Sweeper{source: source, reminder: reminder, interval: interval, window: window}
}

// Run blocks until ctx is cancelled, sweeping once immediately and
// then once per interval.  A failed scan is logged and retried on the
// next tick.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	expiring, err := s.source.ExpiringWithin(ctx, s.window)
	if err != nil {
		log.Printf("sweeper: scan failed: %v", err)
		return
	}
	for i := range expiring {
		s.reminder.SendReminder(ctx, &expiring[i])
	}
	if len(expiring) > 0 {
		log.Printf("sweeper: reminded %d expiring protections", len(expiring))
	}
}
