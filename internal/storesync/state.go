package storesync

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/angelmondragon/counterpos-backend/pkg/enums"
)

// State holds the process-wide connectivity mode. Only the Worker mutates it; everything
// else reads it through Current.
type State struct {
	online atomic.Bool

	mu             sync.Mutex
	lastProbeAt    time.Time
	lastProbeErr   string
	lastTransition time.Time
}

// NewState returns a State starting in the given mode.
func NewState(initial enums.ConnectivityMode) *State {
	s := &State{}
	s.online.Store(initial == enums.ModeOnline)
	return s
}

// Current returns the mode at this instant.
func (s *State) Current() enums.ConnectivityMode {
	if s.online.Load() {
		return enums.ModeOnline
	}
	return enums.ModeOffline
}

// IsOnline is shorthand for Current() == ModeOnline.
func (s *State) IsOnline() bool {
	return s.online.Load()
}

func (s *State) set(mode enums.ConnectivityMode, at time.Time) bool {
	changed := s.online.Swap(mode == enums.ModeOnline) != (mode == enums.ModeOnline)
	if changed {
		s.mu.Lock()
		s.lastTransition = at
		s.mu.Unlock()
	}
	return changed
}

func (s *State) recordProbe(at time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastProbeAt = at
	s.lastProbeErr = ""
	if err != nil {
		s.lastProbeErr = err.Error()
	}
}

func (s *State) probeInfo() (probeAt time.Time, probeErr string, transitionAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastProbeAt, s.lastProbeErr, s.lastTransition
}
