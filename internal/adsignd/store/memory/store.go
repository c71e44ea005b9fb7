// Package memory implements every repository in process memory. It backs
// the memory storage driver and service tests; all repositories share one
// lock so multi-record operations are atomic.
package memory

import (
	"sync"

	"github.com/google/uuid"

	"github.com/wrale/adsign/internal/adsignd/advertisement"
	"github.com/wrale/adsign/internal/adsignd/display"
	"github.com/wrale/adsign/internal/adsignd/display/approval"
	"github.com/wrale/adsign/internal/adsignd/loop"
)

// Store holds all records
type Store struct {
	mu       sync.RWMutex
	displays map[string]*display.Display
	tokens   map[string]string
	requests map[uuid.UUID]*approval.ConnectionRequest
	ads      map[uuid.UUID]*advertisement.Advertisement
	loops    map[uuid.UUID]*loop.Loop
}

// New creates an empty store
func New() *Store {
	return &Store{
		displays: make(map[string]*display.Display),
		tokens:   make(map[string]string),
		requests: make(map[uuid.UUID]*approval.ConnectionRequest),
		ads:      make(map[uuid.UUID]*advertisement.Advertisement),
		loops:    make(map[uuid.UUID]*loop.Loop),
	}
}

// Displays returns the display repository
func (s *Store) Displays() *Displays { return &Displays{s: s} }

// Requests returns the connection request repository
func (s *Store) Requests() *Requests { return &Requests{s: s} }

// Advertisements returns the advertisement repository
func (s *Store) Advertisements() *Advertisements { return &Advertisements{s: s} }

// Loops returns the loop repository
func (s *Store) Loops() *Loops { return &Loops{s: s} }

func cloneDisplay(d *display.Display) *display.Display {
	c := *d
	if d.LastSeen != nil {
		t := *d.LastSeen
		c.LastSeen = &t
	}
	c.DeviceInfo = make(map[string]string, len(d.DeviceInfo))
	for k, v := range d.DeviceInfo {
		c.DeviceInfo[k] = v
	}
	return &c
}

func cloneRequest(r *approval.ConnectionRequest) *approval.ConnectionRequest {
	c := *r
	if r.RespondedAt != nil {
		t := *r.RespondedAt
		c.RespondedAt = &t
	}
	return &c
}

func cloneAd(a *advertisement.Advertisement) *advertisement.Advertisement {
	c := *a
	return &c
}

func cloneLoop(l *loop.Loop) *loop.Loop {
	c := *l
	c.Items = append([]loop.Item(nil), l.Items...)
	return &c
}
