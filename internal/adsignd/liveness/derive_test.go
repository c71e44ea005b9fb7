package liveness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wrale/adsign/internal/adsignd/display"
)

func TestDeriveActualStatus(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ago := func(d time.Duration) *time.Time {
		t := now.Add(-d)
		return &t
	}

	tests := []struct {
		name     string
		stored   display.Status
		lastSeen *time.Time
		want     display.Status
	}{
		{"never seen keeps stored online", display.StatusOnline, nil, display.StatusOnline},
		{"never seen keeps stored offline", display.StatusOffline, nil, display.StatusOffline},
		{"recent online", display.StatusOnline, ago(10 * time.Second), display.StatusOnline},
		{"recent offline report", display.StatusOffline, ago(time.Minute), display.StatusOffline},
		{"exactly two hours is still fresh", display.StatusOnline, ago(2 * time.Hour), display.StatusOnline},
		{"stale online becomes offline", display.StatusOnline, ago(2*time.Hour + time.Second), display.StatusOffline},
		{"three hours silent", display.StatusOnline, ago(3 * time.Hour), display.StatusOffline},
		{"inactive survives staleness", display.StatusInactive, ago(48 * time.Hour), display.StatusInactive},
		{"inactive when fresh", display.StatusInactive, ago(time.Minute), display.StatusInactive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveActualStatus(tt.stored, tt.lastSeen, now))
		})
	}
}

func TestDeriveIsPure(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seen := now.Add(-3 * time.Hour)
	d := &display.Display{Status: display.StatusOnline, LastSeen: &seen}

	first := Derive(d, now)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Derive(d, now))
	}
	assert.Equal(t, display.StatusOnline, d.Status)
	assert.Equal(t, seen, *d.LastSeen)
}

func TestFreshHeartbeatAlwaysYieldsStored(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, stored := range []display.Status{display.StatusOnline, display.StatusOffline, display.StatusInactive} {
		for age := time.Duration(0); age < OfflineAfter; age += 7 * time.Minute {
			seen := now.Add(-age)
			assert.Equal(t, stored, DeriveActualStatus(stored, &seen, now))
		}
	}
}
