package repository

import (
	"context"
	"sync/atomic"
	"time"

	"salon/internal/domain"
	"salon/internal/models"

	"github.com/rs/zerolog"
)

const primaryRetryAfter = time.Minute

// FailoverStateRepository serves from primary (redis) and switches to
// fallback (memory) on the first error. The primary is probed again once
// primaryRetryAfter has passed.
type FailoverStateRepository struct {
	primary  domain.StateRepository
	fallback domain.StateRepository
	logger   *zerolog.Logger
	downAt   atomic.Int64 // unix nanos; zero while primary is healthy
	now      func() time.Time
}

var _ domain.StateRepository = (*FailoverStateRepository)(nil)

func NewFailoverStateRepository(primary, fallback domain.StateRepository, logger *zerolog.Logger) *FailoverStateRepository {
	return &FailoverStateRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

// usePrimary reports whether the next call should go to primary.
func (r *FailoverStateRepository) usePrimary() bool {
	down := r.downAt.Load()
	return down == 0 || r.now().Sub(time.Unix(0, down)) > primaryRetryAfter
}

func (r *FailoverStateRepository) markDown(op string, err error) {
	if r.downAt.Swap(r.now().UnixNano()) == 0 {
		r.logger.Error().Err(err).Str("op", op).Msg("primary state repository failed, using memory fallback")
	}
}

func (r *FailoverStateRepository) markUp() {
	if r.downAt.Swap(0) != 0 {
		r.logger.Info().Msg("primary state repository recovered")
	}
}

func (r *FailoverStateRepository) GetState(ctx context.Context, chatID int64) (*models.ChatState, error) {
	if r.usePrimary() {
		state, err := r.primary.GetState(ctx, chatID)
		if err == nil {
			r.markUp()
			return state, nil
		}
		r.markDown("get", err)
	}
	return r.fallback.GetState(ctx, chatID)
}

func (r *FailoverStateRepository) SetState(ctx context.Context, state *models.ChatState) error {
	if r.usePrimary() {
		err := r.primary.SetState(ctx, state)
		if err == nil {
			r.markUp()
			return nil
		}
		r.markDown("set", err)
	}
	return r.fallback.SetState(ctx, state)
}

func (r *FailoverStateRepository) ClearState(ctx context.Context, chatID int64) error {
	if r.usePrimary() {
		err := r.primary.ClearState(ctx, chatID)
		if err == nil {
			r.markUp()
			// keep the fallback consistent with what primary now says
			_ = r.fallback.ClearState(ctx, chatID)
			return nil
		}
		r.markDown("clear", err)
	}
	return r.fallback.ClearState(ctx, chatID)
}

func (r *FailoverStateRepository) CheckRateLimit(ctx context.Context, chatID int64, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, chatID, limit, window)
		if err == nil {
			r.markUp()
			return allowed, nil
		}
		r.markDown("rate_limit", err)
	}
	return r.fallback.CheckRateLimit(ctx, chatID, limit, window)
}
