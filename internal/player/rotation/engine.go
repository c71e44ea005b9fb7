// Package rotation decides which advertisement a display shows and advances
// it on a one-second tick
package rotation

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"
)

// ErrEmptyPlaylist is returned when a playlist has no active advertisements
var ErrEmptyPlaylist = errors.New("playlist has no active advertisements")

// StatusActive is the only advertisement status eligible for playback
const StatusActive = "active"

// Rotation selects how the engine advances
type Rotation string

const (
	Sequential Rotation = "sequential"
	Random     Rotation = "random"
	// Scheduled plays in loop order
	Scheduled Rotation = "scheduled"
)

// Ad is one playlist entry
type Ad struct {
	ID        string
	Title     string
	MediaURL  string
	MediaType string
	// Duration in seconds
	Duration int
	Status   string
}

// State is a snapshot of the engine
type State struct {
	Ad               Ad
	Index            int
	RemainingSeconds int
	Playing          bool
}

// Engine holds the playing position. It is safe for concurrent use; the
// playlist can be reloaded while Run is ticking.
type Engine struct {
	mu        sync.Mutex
	ads       []Ad
	rotation  Rotation
	index     int
	remaining int
	pick      func(n int) int
	onAdvance func(State)
}

// Option configures an Engine
type Option func(*Engine)

// WithPicker replaces the uniform random choice used by Random rotation
func WithPicker(pick func(n int) int) Option {
	return func(e *Engine) { e.pick = pick }
}

// OnAdvance registers fn to run whenever a new ad starts, including after a load
func OnAdvance(fn func(State)) Option {
	return func(e *Engine) { e.onAdvance = fn }
}

// New creates an engine with nothing to play
func New(opts ...Option) *Engine {
	e := &Engine{
		rotation: Sequential,
		pick:     rand.Intn,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// LoadPlaylist keeps the active ads and restarts at the first one. An empty
// result stops playback and returns ErrEmptyPlaylist.
func (e *Engine) LoadPlaylist(ads []Ad, rotation Rotation) error {
	playable := make([]Ad, 0, len(ads))
	for _, ad := range ads {
		if ad.Status != StatusActive {
			continue
		}
		if ad.Duration < 1 {
			ad.Duration = 1
		}
		playable = append(playable, ad)
	}

	e.mu.Lock()
	e.ads = playable
	e.rotation = rotation
	e.index = 0
	e.remaining = 0
	if len(playable) == 0 {
		e.mu.Unlock()
		return ErrEmptyPlaylist
	}
	e.remaining = playable[0].Duration
	state := e.stateLocked()
	e.mu.Unlock()

	e.notify(state)
	return nil
}

// Clear stops playback
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ads = nil
	e.index = 0
	e.remaining = 0
}

// Tick advances the clock by one second. With nothing loaded it does nothing.
func (e *Engine) Tick() {
	e.mu.Lock()
	if len(e.ads) == 0 {
		e.mu.Unlock()
		return
	}
	e.remaining--
	if e.remaining > 0 {
		e.mu.Unlock()
		return
	}

	switch e.rotation {
	case Random:
		e.index = e.pick(len(e.ads))
	default:
		e.index = (e.index + 1) % len(e.ads)
	}
	e.remaining = e.ads[e.index].Duration
	state := e.stateLocked()
	e.mu.Unlock()

	e.notify(state)
}

// Current returns the playing position
func (e *Engine) Current() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

// Len returns the number of playable ads
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.ads)
}

// Run ticks every interval until ctx is done
func (e *Engine) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Tick()
		}
	}
}

func (e *Engine) stateLocked() State {
	if len(e.ads) == 0 {
		return State{}
	}
	return State{
		Ad:               e.ads[e.index],
		Index:            e.index,
		RemainingSeconds: e.remaining,
		Playing:          true,
	}
}

func (e *Engine) notify(state State) {
	if e.onAdvance != nil {
		e.onAdvance(state)
	}
}
