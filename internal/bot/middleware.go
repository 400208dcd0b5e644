package bot

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

func (b *Bot) withRecovery(ctx context.Context, handler func()) {
	defer func() {
		if r := recover(); r != nil {
			zerolog.Ctx(ctx).Error().Interface("panic", r).Msg("Recovered from panic in update handler")
		}
	}()
	handler()
}

// allow applies the per-chat message limit. The state service already lets
// messages through when its store is down; the error is only logged here.
func (b *Bot) allow(ctx context.Context, chatID int64) bool {
	allowed, err := b.state.CheckRateLimit(ctx, chatID, b.cfg.RateLimitMessages, time.Duration(b.cfg.RateLimitWindow)*time.Second)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int64("chat_id", chatID).Msg("Rate limit check failed")
	}
	if !allowed {
		zerolog.Ctx(ctx).Warn().Int64("chat_id", chatID).Msg("Rate limit exceeded")
	}
	return allowed
}
