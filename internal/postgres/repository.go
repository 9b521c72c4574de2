package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/turfwar-server/internal/config"
	"github.com/turfwar-server/internal/domain"
)

// dbPool is the part of *pgxpool.Pool the repository uses
type dbPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// Repository provides PostgreSQL-based data access. Matches are stored as
// JSONB documents so players and comments are always written with their
// match in a single statement.
type Repository struct {
	pool   dbPool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// Ping checks the database is reachable
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS matches (
			id VARCHAR(64) PRIMARY KEY,
			doc JSONB NOT NULL,
			match_date TIMESTAMPTZ,
			created_by VARCHAR(64) NOT NULL,
			version BIGINT NOT NULL DEFAULT 1,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			email VARCHAR(255) NOT NULL,
			role VARCHAR(32) NOT NULL DEFAULT 'participant',
			upi_id VARCHAR(255),
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS match_events (
			id BIGSERIAL PRIMARY KEY,
			match_id VARCHAR(64) NOT NULL,
			event_type VARCHAR(32) NOT NULL,
			actor_id VARCHAR(64),
			data JSONB,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_date ON matches(match_date ASC)`,
		`CREATE INDEX IF NOT EXISTS idx_match_events_match ON match_events(match_id, created_at DESC)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

const matchColumns = `id, doc, version, created_at, updated_at`

func scanMatch(row pgx.Row) (*domain.Match, error) {
	var (
		id        string
		doc       []byte
		version   int64
		createdAt time.Time
		updatedAt time.Time
	)
	if err := row.Scan(&id, &doc, &version, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var match domain.Match
	if err := json.Unmarshal(doc, &match); err != nil {
		return nil, fmt.Errorf("decoding match document: %w", err)
	}
	match.ID = id
	match.Version = version
	match.CreatedAt = createdAt
	match.UpdatedAt = updatedAt
	if match.Players == nil {
		match.Players = []domain.Player{}
	}
	if match.Comments == nil {
		match.Comments = []domain.Comment{}
	}
	return &match, nil
}

// CreateMatch inserts a new match document
func (r *Repository) CreateMatch(ctx context.Context, match *domain.Match) error {
	now := time.Now().UTC()
	match.Version = 1
	match.CreatedAt = now
	match.UpdatedAt = now

	doc, err := json.Marshal(match)
	if err != nil {
		return fmt.Errorf("marshaling match: %w", err)
	}

	query := `
		INSERT INTO matches (id, doc, match_date, created_by, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`
	_, err = r.pool.Exec(ctx, query, match.ID, doc, match.Date, match.CreatedBy, match.Version, now)
	if err != nil {
		return fmt.Errorf("creating match: %w", err)
	}
	return nil
}

// GetMatch retrieves a match document by ID
func (r *Repository) GetMatch(ctx context.Context, matchID string) (*domain.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`
	match, err := scanMatch(r.pool.QueryRow(ctx, query, matchID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMatchNotFound
		}
		return nil, fmt.Errorf("getting match: %w", err)
	}
	return match, nil
}

// ListMatches retrieves all matches ordered by match date, earliest first
func (r *Repository) ListMatches(ctx context.Context) ([]domain.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches ORDER BY match_date ASC NULLS LAST, created_at ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing matches: %w", err)
	}
	defer rows.Close()

	matches := []domain.Match{}
	for rows.Next() {
		match, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		matches = append(matches, *match)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing matches: %w", err)
	}
	return matches, nil
}

// SaveMatch writes the whole document back if nobody else has written it
// since it was read. On success the match's version is advanced.
func (r *Repository) SaveMatch(ctx context.Context, match *domain.Match) error {
	now := time.Now().UTC()
	next := match.Version + 1

	updated := *match
	updated.Version = next
	updated.UpdatedAt = now
	doc, err := json.Marshal(&updated)
	if err != nil {
		return fmt.Errorf("marshaling match: %w", err)
	}

	query := `
		UPDATE matches
		SET doc = $3, match_date = $4, version = $5, updated_at = $6
		WHERE id = $1 AND version = $2
	`
	result, err := r.pool.Exec(ctx, query, match.ID, match.Version, doc, match.Date, next, now)
	if err != nil {
		return fmt.Errorf("saving match: %w", err)
	}
	if result.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM matches WHERE id = $1)`, match.ID).Scan(&exists); err != nil {
			return fmt.Errorf("checking match: %w", err)
		}
		if !exists {
			return domain.ErrMatchNotFound
		}
		return domain.ErrVersionConflict
	}

	match.Version = next
	match.UpdatedAt = now
	return nil
}

// GetUser retrieves a user by ID
func (r *Repository) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `SELECT id, name, email, role, COALESCE(upi_id, '') FROM users WHERE id = $1`
	var user domain.User
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Role,
		&user.UPIID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return &user, nil
}

// UpdateUserUPI sets the user's UPI id and returns the updated user
func (r *Repository) UpdateUserUPI(ctx context.Context, userID, upiID string) (*domain.User, error) {
	query := `
		UPDATE users SET upi_id = $2, updated_at = $3
		WHERE id = $1
		RETURNING id, name, email, role, COALESCE(upi_id, '')
	`
	var user domain.User
	err := r.pool.QueryRow(ctx, query, userID, upiID, time.Now().UTC()).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Role,
		&user.UPIID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("updating upi id: %w", err)
	}
	return &user, nil
}

// RecordEvent records a match event for auditing
func (r *Repository) RecordEvent(ctx context.Context, event domain.MatchEvent) error {
	var dataJSON []byte
	var err error
	if event.Data != nil {
		dataJSON, err = json.Marshal(event.Data)
		if err != nil {
			return fmt.Errorf("marshaling event data: %w", err)
		}
	}

	query := `
		INSERT INTO match_events (match_id, event_type, actor_id, data, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = r.pool.Exec(ctx, query,
		event.MatchID,
		string(event.Type),
		event.ActorID,
		dataJSON,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("recording event: %w", err)
	}
	return nil
}

// ListEvents returns the most recent events for a match, newest first
func (r *Repository) ListEvents(ctx context.Context, matchID string, limit int) ([]domain.MatchEvent, error) {
	query := `
		SELECT match_id, event_type, COALESCE(actor_id, ''), data, created_at
		FROM match_events
		WHERE match_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, matchID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	events := []domain.MatchEvent{}
	for rows.Next() {
		var (
			event    domain.MatchEvent
			dataJSON []byte
		)
		if err := rows.Scan(&event.MatchID, &event.Type, &event.ActorID, &dataJSON, &event.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		if len(dataJSON) > 0 {
			if err := json.Unmarshal(dataJSON, &event.Data); err != nil {
				return nil, fmt.Errorf("decoding event data: %w", err)
			}
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
