package runner

import (
	"fmt"
	"io"
	"sync"

	"github.com/wrale/adsign/internal/player/rotation"
)

// Screen renders the player's visible state
type Screen interface {
	// Waiting shows a holding screen while the display awaits approval
	Waiting(message string)
	// Playing shows the ad that just started
	Playing(state rotation.State, total int)
	// NoContent replaces playback with an explicit empty state
	NoContent(reason string)
}

// TextScreen writes one line per visible change. It stands in for a real
// renderer on headless devices.
type TextScreen struct {
	mu   sync.Mutex
	out  io.Writer
	last string
}

// NewTextScreen creates a screen writing to out
func NewTextScreen(out io.Writer) *TextScreen {
	return &TextScreen{out: out}
}

func (s *TextScreen) Waiting(message string) {
	s.show("⏳ " + message)
}

func (s *TextScreen) Playing(state rotation.State, total int) {
	title := state.Ad.Title
	if title == "" {
		title = state.Ad.ID
	}
	s.show(fmt.Sprintf("▶ [%d/%d] %s (%s, %ds) %s",
		state.Index+1, total, title, state.Ad.MediaType, state.Ad.Duration, state.Ad.MediaURL))
}

func (s *TextScreen) NoContent(reason string) {
	s.show("■ no content: " + reason)
}

// show skips repeats so a steady state prints once
func (s *TextScreen) show(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if line == s.last {
		return
	}
	s.last = line
	fmt.Fprintln(s.out, line)
}
