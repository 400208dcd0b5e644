package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"salon/internal/config"
	"salon/internal/domain"
	"salon/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	chatStateKey = "salon:chat:%d"
	rateLimitKey = "salon:ratelimit:%d"
)

// NewRedisClient builds a client from config. It does not dial.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// RedisStateRepository keeps bot conversations in redis with a sliding TTL.
type RedisStateRepository struct {
	client *redis.Client
	ttl    time.Duration
}

var _ domain.StateRepository = (*RedisStateRepository)(nil)

func NewRedisStateRepository(client *redis.Client, ttl time.Duration) *RedisStateRepository {
	return &RedisStateRepository{client: client, ttl: ttl}
}

var errNoRedis = errors.New("redis client is nil")

// GetState returns nil, nil when the chat has no conversation in progress.
func (r *RedisStateRepository) GetState(ctx context.Context, chatID int64) (*models.ChatState, error) {
	if r.client == nil {
		return nil, errNoRedis
	}
	val, err := r.client.Get(ctx, fmt.Sprintf(chatStateKey, chatID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chat state: %w", err)
	}

	var state models.ChatState
	if err := json.Unmarshal(val, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chat state: %w", err)
	}
	return &state, nil
}

func (r *RedisStateRepository) SetState(ctx context.Context, state *models.ChatState) error {
	if r.client == nil {
		return errNoRedis
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal chat state: %w", err)
	}
	if err := r.client.Set(ctx, fmt.Sprintf(chatStateKey, state.ChatID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set chat state: %w", err)
	}
	return nil
}

func (r *RedisStateRepository) ClearState(ctx context.Context, chatID int64) error {
	if r.client == nil {
		return errNoRedis
	}
	if err := r.client.Del(ctx, fmt.Sprintf(chatStateKey, chatID)).Err(); err != nil {
		return fmt.Errorf("failed to delete chat state: %w", err)
	}
	return nil
}

// CheckRateLimit is a fixed-window counter: the first hit opens the window.
func (r *RedisStateRepository) CheckRateLimit(ctx context.Context, chatID int64, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, errNoRedis
	}
	key := fmt.Sprintf(rateLimitKey, chatID)
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return false, fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}
	return count <= int64(limit), nil
}

// Ping checks the redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	return nil
}
