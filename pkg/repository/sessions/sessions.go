// Package sessions keeps in-progress booking sessions between requests.
package sessions

import (
	"context"
	"sync"

	"github.com/napryag/clinic_booking_bot/pkg/domain/booking"
	"github.com/napryag/clinic_booking_bot/pkg/utils/errs"
)

// Screen is the front-end view a visitor is on outside the wizard steps.
type Screen string

const (
	ScreenMain         Screen = "main"
	ScreenBooking      Screen = "booking"
	ScreenLookupEmail  Screen = "lookup_email"
	ScreenLookup       Screen = "lookup"
	ScreenCancelReason Screen = "cancel_reason"
	ScreenHelp         Screen = "help"
)

// State is everything stored for one visitor.
type State struct {
	Booking booking.Session `json:"booking"`
	Screen  Screen          `json:"screen,omitempty"`
	// Email used for the last lookup.
	Email string `json:"email,omitempty"`
	// Pending is the appointment waiting for a cancellation reason.
	Pending string `json:"pending,omitempty"`
	// MessageID is the bot message that shows the current screen.
	MessageID int `json:"message_id,omitempty"`
}

type Store interface {
	// Get returns a NotFound error for unknown keys.
	Get(ctx context.Context, key string) (State, error)
	Save(ctx context.Context, key string, st State) error
	Delete(ctx context.Context, key string) error
}

// ---------- Memory store ----------

type MemoryStore struct {
	mu sync.RWMutex
	m  map[string]State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]State)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.m[key]
	if !ok {
		return State{}, errs.NotFound("session not found").Arg("session", key)
	}
	return st, nil
}

func (s *MemoryStore) Save(_ context.Context, key string, st State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = st
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}

// Load returns the stored state or a fresh one when the key is unknown.
func Load(ctx context.Context, store Store, key string) (State, bool, error) {
	st, err := store.Get(ctx, key)
	if err == nil {
		return st, true, nil
	}
	if errs.Is(err, errs.KindNotFound) {
		return State{Booking: booking.NewSession(key), Screen: ScreenMain}, false, nil
	}
	return State{}, false, err
}
