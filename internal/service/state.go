package service

import (
	"context"
	"time"

	"salon/internal/domain"
	"salon/internal/models"

	"github.com/rs/zerolog"
)

// StateService tracks where each chat is in the check-in conversation.
type StateService struct {
	stateRepo domain.StateRepository
	logger    *zerolog.Logger
	now       func() time.Time
}

var _ domain.StateManager = (*StateService)(nil)

func NewStateService(stateRepo domain.StateRepository, logger *zerolog.Logger) *StateService {
	return &StateService{
		stateRepo: stateRepo,
		logger:    logger,
		now:       time.Now,
	}
}

// GetChatState returns nil when the chat is idle.
func (s *StateService) GetChatState(ctx context.Context, chatID int64) (*models.ChatState, error) {
	state, err := s.stateRepo.GetState(ctx, chatID)
	if err != nil {
		s.logger.Error().Err(err).Int64("chat_id", chatID).Msg("failed to get chat state")
		return nil, err
	}
	return state, nil
}

func (s *StateService) SetChatState(ctx context.Context, chatID int64, step string, data map[string]interface{}) error {
	state := &models.ChatState{
		ChatID:    chatID,
		Step:      step,
		TempData:  data,
		UpdatedAt: s.now().UTC(),
	}
	if err := s.stateRepo.SetState(ctx, state); err != nil {
		s.logger.Error().Err(err).Int64("chat_id", chatID).Str("step", step).Msg("failed to set chat state")
		return err
	}
	return nil
}

func (s *StateService) ClearChatState(ctx context.Context, chatID int64) error {
	return s.stateRepo.ClearState(ctx, chatID)
}

// CheckRateLimit lets the message through when the limiter store fails.
func (s *StateService) CheckRateLimit(ctx context.Context, chatID int64, limit int, window time.Duration) (bool, error) {
	ok, err := s.stateRepo.CheckRateLimit(ctx, chatID, limit, window)
	if err != nil {
		s.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("rate limit check failed")
		return true, err
	}
	return ok, nil
}
