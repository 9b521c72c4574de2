package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/turfwar-server/internal/config"
	"github.com/turfwar-server/internal/domain"
)

// MatchCache is a read-through cache in front of the match store. Every
// entry carries a TTL so a missed invalidation heals itself.
type MatchCache struct {
	client  *redis.Client
	listTTL time.Duration
	userTTL time.Duration
	logger  *slog.Logger
}

// NewMatchCache creates a new Redis match cache
func NewMatchCache(cfg *config.RedisConfig, cacheCfg *config.CacheConfig, logger *slog.Logger) (*MatchCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return NewMatchCacheFromClient(client, cacheCfg, logger), nil
}

// NewMatchCacheFromClient wraps an existing client
func NewMatchCacheFromClient(client *redis.Client, cacheCfg *config.CacheConfig, logger *slog.Logger) *MatchCache {
	return &MatchCache{
		client:  client,
		listTTL: cacheCfg.MatchListTTL,
		userTTL: cacheCfg.UserTTL,
		logger:  logger,
	}
}

// Close closes the Redis connection
func (c *MatchCache) Close() error {
	return c.client.Close()
}

// Ping checks Redis is reachable
func (c *MatchCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// matchListKey returns the Redis key for the cached match list
func (c *MatchCache) matchListKey() string {
	return "matches:list"
}

// matchListGenKey returns the Redis key of the match list generation. Every
// invalidation bumps it, so a list loaded before a write can't be cached
// after it.
func (c *MatchCache) matchListGenKey() string {
	return "matches:list:gen"
}

// userInfoKey returns the Redis key for user info cache
func (c *MatchCache) userInfoKey(userID string) string {
	return fmt.Sprintf("user:%s:info", userID)
}

// GetMatchList returns the cached match list. ok is false on a miss.
func (c *MatchCache) GetMatchList(ctx context.Context) (matches []domain.Match, ok bool, err error) {
	raw, err := c.client.Get(ctx, c.matchListKey()).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("getting match list: %w", err)
	}

	if err := json.Unmarshal(raw, &matches); err != nil {
		// A corrupt entry is treated as a miss and dropped.
		c.logger.Warn("dropping undecodable match list", "error", err)
		_ = c.client.Del(ctx, c.matchListKey()).Err()
		return nil, false, nil
	}
	return matches, true, nil
}

// MatchListGeneration returns the current list generation. Read it before
// loading the list from the store and pass it to SetMatchList.
func (c *MatchCache) MatchListGeneration(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, c.matchListGenKey()).Int64()
	if err != nil && err != redis.Nil {
		return 0, fmt.Errorf("getting match list generation: %w", err)
	}
	return gen, nil
}

// SetMatchList caches the full match list if no invalidation happened since
// generation was read. stored reports whether the list was written.
func (c *MatchCache) SetMatchList(ctx context.Context, matches []domain.Match, generation int64) (stored bool, err error) {
	raw, err := json.Marshal(matches)
	if err != nil {
		return false, fmt.Errorf("marshaling match list: %w", err)
	}

	genKey := c.matchListGenKey()
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && err != redis.Nil {
			return err
		}
		if current != generation {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, c.matchListKey(), raw, c.listTTL)
			return nil
		})
		if err == nil {
			stored = true
		}
		return err
	}, genKey)

	if err == redis.TxFailedErr {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("setting match list: %w", err)
	}
	return stored, nil
}

// InvalidateMatchList drops the cached match list and bumps the generation
func (c *MatchCache) InvalidateMatchList(ctx context.Context) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, c.matchListGenKey())
		pipe.Del(ctx, c.matchListKey())
		return nil
	})
	if err != nil {
		return fmt.Errorf("invalidating match list: %w", err)
	}
	return nil
}

// SetUserInfo caches user information
func (c *MatchCache) SetUserInfo(ctx context.Context, user *domain.User) error {
	key := c.userInfoKey(user.ID)

	pipe := c.client.Pipeline()
	pipe.HSet(ctx, key,
		"name", user.Name,
		"email", user.Email,
		"role", user.Role,
		"upi_id", user.UPIID,
	)
	pipe.Expire(ctx, key, c.userTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("setting user info: %w", err)
	}
	return nil
}

// GetUserInfo retrieves cached user information
func (c *MatchCache) GetUserInfo(ctx context.Context, userID string) (*domain.User, error) {
	key := c.userInfoKey(userID)
	result, err := c.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("getting user info: %w", err)
	}

	if len(result) == 0 {
		return nil, domain.ErrUserNotFound
	}

	return &domain.User{
		ID:    userID,
		Name:  result["name"],
		Email: result["email"],
		Role:  result["role"],
		UPIID: result["upi_id"],
	}, nil
}

// InvalidateUser drops a user's cached info
func (c *MatchCache) InvalidateUser(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, c.userInfoKey(userID)).Err(); err != nil {
		return fmt.Errorf("invalidating user info: %w", err)
	}
	return nil
}
