// Package testutil holds in-memory stand-ins for the Postgres store.
package testutil

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/turfwar-server/internal/domain"
)

// MemStore is an in-memory match and user store with the same versioning
// rules as the Postgres repository.
type MemStore struct {
	mu      sync.Mutex
	matches map[string]*domain.Match
	users   map[string]*domain.User
	events  []domain.MatchEvent

	// ConflictsToInject makes the next n SaveMatch calls fail with
	// ErrVersionConflict after bumping the stored version.
	ConflictsToInject int
	// Err, when set, is returned by every call.
	Err error

	SaveCalls int
}

// NewMemStore creates an empty store
func NewMemStore() *MemStore {
	return &MemStore{
		matches: make(map[string]*domain.Match),
		users:   make(map[string]*domain.User),
	}
}

func clone(m *domain.Match) *domain.Match {
	raw, err := json.Marshal(m)
	if err != nil {
		panic(err)
	}
	var out domain.Match
	if err := json.Unmarshal(raw, &out); err != nil {
		panic(err)
	}
	if out.Players == nil {
		out.Players = []domain.Player{}
	}
	if out.Comments == nil {
		out.Comments = []domain.Comment{}
	}
	return &out
}

// PutMatch stores a match as-is, defaulting its version to 1
func (s *MemStore) PutMatch(m domain.Match) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.Version == 0 {
		m.Version = 1
	}
	s.matches[m.ID] = clone(&m)
}

// PutUser stores a user
func (s *MemStore) PutUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = &u
}

// Match returns a copy of the stored match, or nil
func (s *MemStore) Match(id string) *domain.Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return nil
	}
	return clone(m)
}

// Events returns every recorded event in insertion order
func (s *MemStore) Events() []domain.MatchEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.MatchEvent(nil), s.events...)
}

func (s *MemStore) ListMatches(ctx context.Context) ([]domain.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]domain.Match, 0, len(s.matches))
	for _, m := range s.matches {
		out = append(out, *clone(m))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].ID < out[j].ID
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}

func (s *MemStore) GetMatch(ctx context.Context, matchID string) (*domain.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	m, ok := s.matches[matchID]
	if !ok {
		return nil, domain.ErrMatchNotFound
	}
	return clone(m), nil
}

func (s *MemStore) CreateMatch(ctx context.Context, match *domain.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	now := time.Now().UTC()
	match.Version = 1
	match.CreatedAt = now
	match.UpdatedAt = now
	s.matches[match.ID] = clone(match)
	return nil
}

func (s *MemStore) SaveMatch(ctx context.Context, match *domain.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.SaveCalls++

	stored, ok := s.matches[match.ID]
	if !ok {
		return domain.ErrMatchNotFound
	}
	if s.ConflictsToInject > 0 {
		s.ConflictsToInject--
		stored.Version++
		return domain.ErrVersionConflict
	}
	if stored.Version != match.Version {
		return domain.ErrVersionConflict
	}

	match.Version++
	match.UpdatedAt = time.Now().UTC()
	s.matches[match.ID] = clone(match)
	return nil
}

func (s *MemStore) RecordEvent(ctx context.Context, event domain.MatchEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *MemStore) ListEvents(ctx context.Context, matchID string, limit int) ([]domain.MatchEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := []domain.MatchEvent{}
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		if s.events[i].MatchID == matchID {
			out = append(out, s.events[i])
		}
	}
	return out, nil
}

func (s *MemStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	u, ok := s.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemStore) UpdateUserUPI(ctx context.Context, userID, upiID string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	u, ok := s.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	u.UPIID = upiID
	cp := *u
	return &cp, nil
}

// Publisher records published events
type Publisher struct {
	mu     sync.Mutex
	Events []domain.MatchEvent
	Err    error
}

func (p *Publisher) Publish(ctx context.Context, event domain.MatchEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.Events = append(p.Events, event)
	return nil
}

// Types returns the published event types in order
func (p *Publisher) Types() []domain.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.EventType, len(p.Events))
	for i, e := range p.Events {
		out[i] = e.Type
	}
	return out
}
