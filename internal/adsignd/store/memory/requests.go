package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/wrale/adsign/internal/adsignd/display"
	"github.com/wrale/adsign/internal/adsignd/display/approval"
	"github.com/wrale/adsign/internal/adsignd/errors"
)

// Requests implements approval.Repository
type Requests struct {
	s *Store
}

var _ approval.Repository = (*Requests)(nil)

func (r *Requests) Create(ctx context.Context, req *approval.ConnectionRequest) error {
	const op = "MemoryRequests.Create"

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.requests[req.ID]; exists {
		return errors.Conflict(op, "request id already exists")
	}
	if req.Status == approval.StatusPending && r.pendingLocked(req.DisplayID) != nil {
		return errors.Conflict(op, "display already has a pending request")
	}
	r.s.requests[req.ID] = cloneRequest(req)
	return nil
}

func (r *Requests) FindByID(ctx context.Context, id uuid.UUID) (*approval.ConnectionRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	req, ok := r.s.requests[id]
	if !ok {
		return nil, errors.NotFound("MemoryRequests.FindByID", "connection request not found")
	}
	return r.decorateLocked(req), nil
}

func (r *Requests) FindPending(ctx context.Context, displayID string) (*approval.ConnectionRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	req := r.pendingLocked(displayID)
	if req == nil {
		return nil, errors.NotFound("MemoryRequests.FindPending", "no pending request")
	}
	return r.decorateLocked(req), nil
}

func (r *Requests) FindLatest(ctx context.Context, displayID string) (*approval.ConnectionRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	req := r.latestLocked(displayID)
	if req == nil {
		return nil, errors.NotFound("MemoryRequests.FindLatest", "no connection request")
	}
	return r.decorateLocked(req), nil
}

func (r *Requests) List(ctx context.Context, filter approval.Filter) ([]*approval.ConnectionRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []*approval.ConnectionRequest
	for _, req := range r.s.requests {
		if filter.Status != "" && req.Status != filter.Status {
			continue
		}
		if filter.DisplayID != "" && req.DisplayID != filter.DisplayID {
			continue
		}
		result = append(result, r.decorateLocked(req))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].RequestedAt.After(result[j].RequestedAt)
	})
	return result, nil
}

func (r *Requests) Resolve(ctx context.Context, id uuid.UUID, decision approval.Decision) (*approval.ConnectionRequest, *display.Display, error) {
	const op = "MemoryRequests.Resolve"

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	req, ok := r.s.requests[id]
	if !ok {
		return nil, nil, errors.NotFound(op, "connection request not found")
	}
	if req.Status != approval.StatusPending {
		return nil, nil, errors.InvalidState(op, "connection request is not pending")
	}

	d, ok := r.s.displays[req.DisplayID]
	if decision.Outcome == approval.StatusApproved {
		if !ok {
			return nil, nil, errors.NotFound(op, "display not found")
		}
		if err := d.Assign(decision.AdminID, decision.At); err != nil {
			return nil, nil, err
		}
		d.Version++
	}

	at := decision.At
	req.Status = decision.Outcome
	req.RespondedAt = &at
	req.RespondedBy = decision.AdminID
	req.RejectionReason = decision.Reason

	var result *display.Display
	if ok {
		result = cloneDisplay(d)
	}
	return r.decorateLocked(req), result, nil
}

func (r *Requests) ListExpiredRejections(ctx context.Context, cutoff time.Time) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var ids []string
	for id, d := range r.s.displays {
		if !d.IsPending() {
			continue
		}
		latest := r.latestLocked(id)
		if latest == nil || latest.Status != approval.StatusRejected {
			continue
		}
		if latest.RespondedAt != nil && latest.RespondedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *Requests) pendingLocked(displayID string) *approval.ConnectionRequest {
	for _, req := range r.s.requests {
		if req.DisplayID == displayID && req.Status == approval.StatusPending {
			return req
		}
	}
	return nil
}

func (r *Requests) latestLocked(displayID string) *approval.ConnectionRequest {
	var latest *approval.ConnectionRequest
	for _, req := range r.s.requests {
		if req.DisplayID != displayID {
			continue
		}
		if latest == nil || req.RequestedAt.After(latest.RequestedAt) {
			latest = req
		}
	}
	return latest
}

// decorateLocked copies req and joins in the display's name and location
func (r *Requests) decorateLocked(req *approval.ConnectionRequest) *approval.ConnectionRequest {
	c := cloneRequest(req)
	if d, ok := r.s.displays[req.DisplayID]; ok {
		c.DisplayName = d.Name
		c.Location = d.Location
	}
	return c
}
