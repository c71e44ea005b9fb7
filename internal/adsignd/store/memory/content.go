package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/wrale/adsign/internal/adsignd/advertisement"
	"github.com/wrale/adsign/internal/adsignd/errors"
	"github.com/wrale/adsign/internal/adsignd/loop"
)

// Advertisements implements advertisement.Repository
type Advertisements struct {
	s *Store
}

var _ advertisement.Repository = (*Advertisements)(nil)

func (r *Advertisements) Create(ctx context.Context, ad *advertisement.Advertisement) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.ads[ad.ID]; exists {
		return errors.Conflict("MemoryAdvertisements.Create", "advertisement already exists")
	}
	r.s.ads[ad.ID] = cloneAd(ad)
	return nil
}

func (r *Advertisements) Save(ctx context.Context, ad *advertisement.Advertisement) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.ads[ad.ID]; !exists {
		return errors.NotFound("MemoryAdvertisements.Save", "advertisement not found")
	}
	r.s.ads[ad.ID] = cloneAd(ad)
	return nil
}

func (r *Advertisements) FindByID(ctx context.Context, id uuid.UUID) (*advertisement.Advertisement, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	ad, ok := r.s.ads[id]
	if !ok {
		return nil, errors.NotFound("MemoryAdvertisements.FindByID", "advertisement not found")
	}
	return cloneAd(ad), nil
}

func (r *Advertisements) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*advertisement.Advertisement, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	result := make(map[uuid.UUID]*advertisement.Advertisement, len(ids))
	for _, id := range ids {
		if ad, ok := r.s.ads[id]; ok {
			result[id] = cloneAd(ad)
		}
	}
	return result, nil
}

func (r *Advertisements) List(ctx context.Context, ownerAdmin string) ([]*advertisement.Advertisement, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []*advertisement.Advertisement
	for _, ad := range r.s.ads {
		if ad.OwnerAdmin == ownerAdmin {
			result = append(result, cloneAd(ad))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// Loops implements loop.Repository
type Loops struct {
	s *Store
}

var _ loop.Repository = (*Loops)(nil)

func (r *Loops) Create(ctx context.Context, l *loop.Loop) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.loops[l.ID]; exists {
		return errors.Conflict("MemoryLoops.Create", "loop already exists")
	}
	r.s.loops[l.ID] = cloneLoop(l)
	return nil
}

func (r *Loops) Save(ctx context.Context, l *loop.Loop) error {
	const op = "MemoryLoops.Save"

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.loops[l.ID]
	if !ok {
		return errors.NotFound(op, "loop not found")
	}
	if stored.Version != l.Version {
		return errors.NewError("VERSION_CONFLICT", "loop was modified", op, errors.ErrVersionMismatch)
	}
	l.Version++
	r.s.loops[l.ID] = cloneLoop(l)
	return nil
}

func (r *Loops) FindByID(ctx context.Context, id uuid.UUID) (*loop.Loop, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	l, ok := r.s.loops[id]
	if !ok {
		return nil, errors.NotFound("MemoryLoops.FindByID", "loop not found")
	}
	return cloneLoop(l), nil
}

func (r *Loops) ListByDisplay(ctx context.Context, displayID string) ([]*loop.Loop, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []*loop.Loop
	for _, l := range r.s.loops {
		if l.DisplayID == displayID {
			result = append(result, cloneLoop(l))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r *Loops) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.loops[id]; !ok {
		return errors.NotFound("MemoryLoops.Delete", "loop not found")
	}
	delete(r.s.loops, id)
	return nil
}
