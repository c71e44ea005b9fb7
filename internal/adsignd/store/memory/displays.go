package memory

import (
	"context"
	"slices"
	"sort"
	"time"

	"github.com/wrale/adsign/internal/adsignd/display"
	"github.com/wrale/adsign/internal/adsignd/errors"
)

// Displays implements display.Repository
type Displays struct {
	s *Store
}

var _ display.Repository = (*Displays)(nil)

func (r *Displays) Create(ctx context.Context, d *display.Display) error {
	const op = "MemoryDisplays.Create"

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.displays[d.DisplayID]; exists {
		return errors.Conflict(op, "display id already exists")
	}
	if _, exists := r.s.tokens[d.ConnectionToken]; exists {
		return errors.Conflict(op, "connection token already exists")
	}
	r.s.displays[d.DisplayID] = cloneDisplay(d)
	r.s.tokens[d.ConnectionToken] = d.DisplayID
	return nil
}

// Save writes admin-managed fields. Liveness fields belong to heartbeats;
// status is written only when entering or leaving inactive.
func (r *Displays) Save(ctx context.Context, d *display.Display) error {
	const op = "MemoryDisplays.Save"

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.displays[d.DisplayID]
	if !ok {
		return errors.NotFound(op, "display not found")
	}
	if stored.Version != d.Version {
		return errors.NewError("VERSION_CONFLICT", "display was modified", op, errors.ErrVersionMismatch)
	}

	stored.Name = d.Name
	stored.Location = d.Location
	stored.PasswordHash = d.PasswordHash
	stored.AssignedAdmin = d.AssignedAdmin
	stored.Resolution = d.Resolution
	stored.Configuration = d.Configuration
	stored.CurrentLoop = d.CurrentLoop
	if d.Status == display.StatusInactive || stored.Status == display.StatusInactive {
		stored.Status = d.Status
	}
	if d.Status == display.StatusInactive {
		stored.IsConnected = false
	}
	stored.UpdatedAt = d.UpdatedAt
	stored.Version++

	*d = *cloneDisplay(stored)
	return nil
}

func (r *Displays) FindByID(ctx context.Context, displayID string) (*display.Display, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	d, ok := r.s.displays[displayID]
	if !ok {
		return nil, errors.NotFound("MemoryDisplays.FindByID", "display not found")
	}
	return cloneDisplay(d), nil
}

func (r *Displays) FindByToken(ctx context.Context, token string) (*display.Display, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, ok := r.s.tokens[token]
	if !ok {
		return nil, errors.NotFound("MemoryDisplays.FindByToken", "display not found")
	}
	return cloneDisplay(r.s.displays[id]), nil
}

func (r *Displays) List(ctx context.Context, filter display.Filter) ([]*display.Display, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []*display.Display
	for _, d := range r.s.displays {
		if filter.AssignedAdmin != "" && d.AssignedAdmin != filter.AssignedAdmin {
			continue
		}
		if filter.Unassigned && d.AssignedAdmin != "" {
			continue
		}
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, d.Status) {
			continue
		}
		if filter.CurrentLoop != "" && d.CurrentLoop != filter.CurrentLoop {
			continue
		}
		result = append(result, cloneDisplay(d))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].DisplayID < result[j].DisplayID
	})
	return result, nil
}

func (r *Displays) RecordHeartbeat(ctx context.Context, token string, reported display.Status, currentAd string, at time.Time) (*display.Display, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	id, ok := r.s.tokens[token]
	if !ok {
		return nil, errors.NotFound("MemoryDisplays.RecordHeartbeat", "display not found")
	}
	d := r.s.displays[id]
	d.Heartbeat(reported, currentAd, at)
	return cloneDisplay(d), nil
}

func (r *Displays) Delete(ctx context.Context, displayID string, version int) error {
	const op = "MemoryDisplays.Delete"

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d, ok := r.s.displays[displayID]
	if !ok {
		return errors.NotFound(op, "display not found")
	}
	if d.Version != version {
		return errors.NewError("VERSION_CONFLICT", "display was modified", op, errors.ErrVersionMismatch)
	}
	delete(r.s.tokens, d.ConnectionToken)
	delete(r.s.displays, displayID)
	return nil
}
