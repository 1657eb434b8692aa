package sweeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/aquafloor/projectguard/internal/model"
)

type fakeSource struct {
	items []model.Protection
	err   error
	calls int
	seen  []time.Duration
}

func (s *fakeSource) ExpiringWithin(_ context.Context, window time.Duration) ([]model.Protection, error) {
	s.calls++
	s.seen = append(s.seen, window)
	return s.items, s.err
}

type fakeReminder struct {
	reminded []uint64
}

func (r *fakeReminder) SendReminder(_ context.Context, p *model.Protection) {
	r.reminded = append(r.reminded, p.ID)
}

// A cancelled context still admits the immediate first sweep, which
// makes the loop testable without waiting out a tick.
func TestRunSweepsOnceImmediately(t *testing.T) {
	src := &fakeSource{items: []model.Protection{{ID: 1}, {ID: 2}}}
	rem := &fakeReminder{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	New(src, rem, time.Hour, 48*time.Hour).Run(ctx)

	assert.Equal(t, 1, src.calls)
	assert.Equal(t, []uint64{1, 2}, rem.reminded)
	assert.Equal(t, []time.Duration{48 * time.Hour}, src.seen)
}

func TestRunScanFailureIsNotFatal(t *testing.T) {
	src := &fakeSource{err: errors.New("db gone")}
	rem := &fakeReminder{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	New(src, rem, time.Hour, time.Hour).Run(ctx)

	assert.Equal(t, 1, src.calls)
	assert.Empty(t, rem.reminded)
}

func TestDefaults(t *testing.T) {
	s := New(&fakeSource{}, &fakeReminder{}, 0, 0)
	assert.Equal(t, 24*time.Hour, s.interval)
	assert.Equal(t, 48*time.Hour, s.window)
}
