// Package liveness ingests device heartbeats and derives the status an
// admin sees from the stored status and the time of the last heartbeat
package liveness

import (
	"time"

	"github.com/wrale/adsign/internal/adsignd/display"
)

// OfflineAfter is how long a display may go without a heartbeat before it
// is presented as offline
const OfflineAfter = 2 * time.Hour

// DeriveActualStatus is a pure function of its arguments. A display that has
// never reported keeps its stored status; one silent for more than
// OfflineAfter is offline unless an admin marked it inactive.
func DeriveActualStatus(stored display.Status, lastSeen *time.Time, now time.Time) display.Status {
	if lastSeen == nil {
		return stored
	}
	if now.Sub(*lastSeen) > OfflineAfter && stored != display.StatusInactive {
		return display.StatusOffline
	}
	return stored
}

// Derive applies DeriveActualStatus to d
func Derive(d *display.Display, now time.Time) display.Status {
	return DeriveActualStatus(d.Status, d.LastSeen, now)
}
