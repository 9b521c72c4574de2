package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/itbasis/go-clock"
	"github.com/turfwar-server/internal/config"
	"github.com/turfwar-server/internal/domain"
)

// MatchStore persists match documents and their activity trail
type MatchStore interface {
	ListMatches(ctx context.Context) ([]domain.Match, error)
	GetMatch(ctx context.Context, matchID string) (*domain.Match, error)
	CreateMatch(ctx context.Context, match *domain.Match) error
	SaveMatch(ctx context.Context, match *domain.Match) error
	RecordEvent(ctx context.Context, event domain.MatchEvent) error
	ListEvents(ctx context.Context, matchID string, limit int) ([]domain.MatchEvent, error)
}

// MatchCache is the optional read-through cache for the match list
type MatchCache interface {
	GetMatchList(ctx context.Context) ([]domain.Match, bool, error)
	MatchListGeneration(ctx context.Context) (int64, error)
	SetMatchList(ctx context.Context, matches []domain.Match, generation int64) (bool, error)
	InvalidateMatchList(ctx context.Context) error
}

// Publisher fans match events out to live subscribers
type Publisher interface {
	Publish(ctx context.Context, event domain.MatchEvent) error
}

const defaultActivityLimit = 50

// MatchService provides business logic for the match lifecycle
type MatchService struct {
	store     MatchStore
	cache     MatchCache
	publisher Publisher
	config    *config.StoreConfig
	clock     clock.Clock
	logger    *slog.Logger
}

// NewMatchService creates a new match service. cache and publisher may be nil.
func NewMatchService(
	store MatchStore,
	cache MatchCache,
	publisher Publisher,
	cfg *config.StoreConfig,
	clk clock.Clock,
	logger *slog.Logger,
) *MatchService {
	return &MatchService{
		store:     store,
		cache:     cache,
		publisher: publisher,
		config:    cfg,
		clock:     clk,
		logger:    logger,
	}
}

// ListMatches returns all matches ordered by date, earliest first
func (s *MatchService) ListMatches(ctx context.Context) ([]domain.Match, error) {
	if s.cache == nil {
		return s.loadMatches(ctx)
	}

	matches, ok, err := s.cache.GetMatchList(ctx)
	if err != nil {
		s.logger.Warn("match list cache read failed", "error", err)
		return s.loadMatches(ctx)
	}
	if ok {
		return matches, nil
	}

	// The generation is read before the store so a mutation that lands while
	// the list loads keeps this copy out of the cache.
	generation, genErr := s.cache.MatchListGeneration(ctx)
	matches, err = s.loadMatches(ctx)
	if err != nil {
		return nil, err
	}
	if genErr != nil {
		s.logger.Warn("match list generation read failed", "error", genErr)
		return matches, nil
	}
	if err := s.cacheMatches(ctx, matches, generation); err != nil {
		s.logger.Warn("match list cache write failed", "error", err)
	}
	return matches, nil
}

// RefreshMatchList reloads the match list from the store into the cache
func (s *MatchService) RefreshMatchList(ctx context.Context) (int, error) {
	if s.cache == nil {
		return 0, nil
	}
	generation, err := s.cache.MatchListGeneration(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading match list generation: %w", err)
	}
	matches, err := s.loadMatches(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.cacheMatches(ctx, matches, generation); err != nil {
		return 0, fmt.Errorf("caching match list: %w", err)
	}
	return len(matches), nil
}

func (s *MatchService) loadMatches(ctx context.Context) ([]domain.Match, error) {
	matches, err := s.store.ListMatches(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing matches: %w", err)
	}
	return matches, nil
}

func (s *MatchService) cacheMatches(ctx context.Context, matches []domain.Match, generation int64) error {
	stored, err := s.cache.SetMatchList(ctx, matches, generation)
	if err != nil {
		return err
	}
	if !stored {
		s.logger.Debug("match list changed while loading, not caching", "generation", generation)
	}
	return nil
}

// GetMatch returns a single match
func (s *MatchService) GetMatch(ctx context.Context, matchID string) (*domain.Match, error) {
	return s.store.GetMatch(ctx, matchID)
}

// Activity returns the most recent events recorded for a match
func (s *MatchService) Activity(ctx context.Context, matchID string, limit int) ([]domain.MatchEvent, error) {
	if _, err := s.store.GetMatch(ctx, matchID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > defaultActivityLimit {
		limit = defaultActivityLimit
	}
	return s.store.ListEvents(ctx, matchID, limit)
}

// CreateMatch creates a match owned by the caller, who must be an organizer
func (s *MatchService) CreateMatch(ctx context.Context, caller domain.Identity, req domain.CreateMatchRequest) (*domain.Match, error) {
	if !caller.IsOrganizer() {
		return nil, domain.ErrNotOrganizer
	}

	match := &domain.Match{
		ID:            uuid.New().String(),
		Title:         req.Title,
		TurfName:      req.TurfName,
		Date:          req.Date.Time,
		CostPerHour:   float64(req.CostPerHour),
		DurationHours: float64(req.DurationHours),
		Players:       []domain.Player{},
		Comments:      []domain.Comment{},
		CreatedBy:     caller.ID,
	}
	if err := s.store.CreateMatch(ctx, match); err != nil {
		return nil, fmt.Errorf("creating match: %w", err)
	}

	s.invalidateList(ctx)
	s.emit(ctx, match.ID, domain.EventMatchCreated, caller.ID, map[string]interface{}{
		"title": match.Title,
	})

	s.logger.Info("created match", "match_id", match.ID, "created_by", caller.ID)
	return match, nil
}

// JoinMatch adds the caller to the roster. A user may join a match once.
func (s *MatchService) JoinMatch(ctx context.Context, caller domain.Identity, matchID string, req domain.JoinRequest) (*domain.Match, error) {
	var playerID string
	match, err := s.mutate(ctx, matchID, func(m *domain.Match) error {
		if m.HasUser(caller.ID) {
			return domain.ErrAlreadyJoined
		}
		userID := caller.ID
		playerID = uuid.New().String()
		m.Players = append(m.Players, domain.Player{
			ID:            playerID,
			UserID:        &userID,
			Name:          caller.Name,
			Role:          roleOrDefault(req.Role),
			Skill:         req.Skill,
			PaymentStatus: domain.PaymentPending,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, matchID, domain.EventPlayerJoined, caller.ID, map[string]interface{}{
		"player_id": playerID,
		"name":      caller.Name,
	})
	return match, nil
}

// AddGuest adds a player without an account. Only the organizer may do this.
func (s *MatchService) AddGuest(ctx context.Context, caller domain.Identity, matchID string, req domain.GuestRequest) (*domain.Match, error) {
	var playerID string
	match, err := s.mutate(ctx, matchID, func(m *domain.Match) error {
		if !m.IsOwnedBy(caller.ID) {
			return domain.ErrNotMatchOwner
		}
		playerID = uuid.New().String()
		m.Players = append(m.Players, domain.Player{
			ID:            playerID,
			Name:          req.Name,
			Email:         req.Email,
			Role:          roleOrDefault(req.Role),
			IsGuest:       true,
			PaymentStatus: domain.PaymentPending,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, matchID, domain.EventGuestAdded, caller.ID, map[string]interface{}{
		"player_id": playerID,
		"name":      req.Name,
	})
	return match, nil
}

// AddComment appends a comment authored by the caller
func (s *MatchService) AddComment(ctx context.Context, caller domain.Identity, matchID string, req domain.CommentRequest) (*domain.Match, error) {
	match, err := s.mutate(ctx, matchID, func(m *domain.Match) error {
		m.Comments = append(m.Comments, domain.Comment{
			ID:        uuid.New().String(),
			User:      caller.Name,
			Text:      req.Text,
			CreatedAt: s.clock.Now().UTC(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, matchID, domain.EventCommentAdded, caller.ID, map[string]interface{}{
		"user": caller.Name,
		"text": req.Text,
	})
	return match, nil
}

// UpdateDetails merges the non-zero request fields into the match
func (s *MatchService) UpdateDetails(ctx context.Context, caller domain.Identity, matchID string, req domain.UpdateMatchRequest) (*domain.Match, error) {
	match, err := s.mutate(ctx, matchID, func(m *domain.Match) error {
		if !m.IsOwnedBy(caller.ID) {
			return domain.ErrNotMatchOwner
		}
		req.Apply(m)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, matchID, domain.EventMatchUpdated, caller.ID, nil)
	return match, nil
}

// FinalizeResult records the winner and score. A result can only be set once.
func (s *MatchService) FinalizeResult(ctx context.Context, caller domain.Identity, matchID string, req domain.ScoreRequest) (*domain.Match, error) {
	match, err := s.mutate(ctx, matchID, func(m *domain.Match) error {
		if !m.IsOwnedBy(caller.ID) {
			return domain.ErrNotMatchOwner
		}
		if m.Result.IsCompleted {
			return domain.ErrMatchCompleted
		}
		completedAt := s.clock.Now().UTC()
		m.Result = domain.Result{
			Winner:      req.Winner,
			Score:       req.Score,
			IsCompleted: true,
			CompletedAt: &completedAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, matchID, domain.EventResultFinalized, caller.ID, map[string]interface{}{
		"winner": req.Winner,
		"score":  req.Score,
	})
	return match, nil
}

// SetPaymentStatus sets a player's payment status. The status is stored as given.
func (s *MatchService) SetPaymentStatus(ctx context.Context, caller domain.Identity, matchID string, req domain.PaymentRequest) (*domain.Match, error) {
	match, err := s.mutate(ctx, matchID, func(m *domain.Match) error {
		if !m.IsOwnedBy(caller.ID) {
			return domain.ErrNotMatchOwner
		}
		player := m.FindPlayer(req.PlayerID)
		if player == nil {
			return domain.ErrPlayerNotFound
		}
		player.PaymentStatus = req.Status
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, matchID, domain.EventPaymentUpdated, caller.ID, map[string]interface{}{
		"player_id": req.PlayerID,
		"status":    string(req.Status),
	})
	return match, nil
}

// mutate reads the match, applies fn and writes the whole document back.
// A concurrent write makes the save fail with ErrVersionConflict, in which
// case the match is re-read and fn applied again.
func (s *MatchService) mutate(ctx context.Context, matchID string, fn func(*domain.Match) error) (*domain.Match, error) {
	attempts := s.config.MaxWriteAttempts
	if attempts <= 0 {
		attempts = 1
	}

	for attempt := 1; ; attempt++ {
		match, err := s.store.GetMatch(ctx, matchID)
		if err != nil {
			return nil, err
		}
		if err := fn(match); err != nil {
			return nil, err
		}

		err = s.store.SaveMatch(ctx, match)
		if err == nil {
			s.invalidateList(ctx)
			return match, nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) || attempt >= attempts {
			return nil, fmt.Errorf("saving match: %w", err)
		}
		s.logger.Debug("match write conflict, retrying", "match_id", matchID, "attempt", attempt)
	}
}

func (s *MatchService) invalidateList(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateMatchList(ctx); err != nil {
		s.logger.Warn("failed to invalidate match list", "error", err)
	}
}

// emit records the event and fans it out. Failures never fail the request.
func (s *MatchService) emit(ctx context.Context, matchID string, eventType domain.EventType, actorID string, data map[string]interface{}) {
	emitEvent(ctx, s.store, s.publisher, s.logger, domain.MatchEvent{
		MatchID:   matchID,
		Type:      eventType,
		ActorID:   actorID,
		Timestamp: s.clock.Now().UTC(),
		Data:      data,
	})
}

type eventRecorder interface {
	RecordEvent(ctx context.Context, event domain.MatchEvent) error
}

func emitEvent(ctx context.Context, recorder eventRecorder, publisher Publisher, logger *slog.Logger, event domain.MatchEvent) {
	if err := recorder.RecordEvent(ctx, event); err != nil {
		logger.Warn("failed to record match event", "match_id", event.MatchID, "type", event.Type, "error", err)
	}
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, event); err != nil {
		logger.Warn("failed to publish match event", "match_id", event.MatchID, "type", event.Type, "error", err)
	}
}

func roleOrDefault(role string) string {
	if role == "" {
		return domain.DefaultPlayerRole
	}
	return role
}
