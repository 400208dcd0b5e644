package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"salon/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockStateRepository struct {
	mock.Mock
}

func (m *MockStateRepository) GetState(ctx context.Context, chatID int64) (*models.ChatState, error) {
	args := m.Called(ctx, chatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatState), args.Error(1)
}

func (m *MockStateRepository) SetState(ctx context.Context, state *models.ChatState) error {
	args := m.Called(ctx, state)
	return args.Error(0)
}

func (m *MockStateRepository) ClearState(ctx context.Context, chatID int64) error {
	args := m.Called(ctx, chatID)
	return args.Error(0)
}

func (m *MockStateRepository) CheckRateLimit(ctx context.Context, chatID int64, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, chatID, limit, window)
	return args.Bool(0), args.Error(1)
}

func TestStateService_GetChatState(t *testing.T) {
	mockRepo := new(MockStateRepository)
	logger := zerolog.Nop()
	s := NewStateService(mockRepo, &logger)
	ctx := context.Background()
	chatID := int64(123)

	t.Run("Success", func(t *testing.T) {
		expected := &models.ChatState{ChatID: chatID, Step: "awaiting_name"}
		mockRepo.On("GetState", ctx, chatID).Return(expected, nil).Once()

		state, err := s.GetChatState(ctx, chatID)
		assert.NoError(t, err)
		assert.Equal(t, expected, state)
	})

	t.Run("Idle", func(t *testing.T) {
		mockRepo.On("GetState", ctx, chatID).Return(nil, nil).Once()

		state, err := s.GetChatState(ctx, chatID)
		assert.NoError(t, err)
		assert.Nil(t, state)
	})

	t.Run("Error", func(t *testing.T) {
		mockRepo.On("GetState", ctx, chatID).Return(nil, errors.New("redis down")).Once()

		state, err := s.GetChatState(ctx, chatID)
		assert.Error(t, err)
		assert.Nil(t, state)
	})
}

func TestStateService_SetChatState(t *testing.T) {
	mockRepo := new(MockStateRepository)
	logger := zerolog.Nop()
	s := NewStateService(mockRepo, &logger)
	fixed := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	ctx := context.Background()

	mockRepo.On("SetState", ctx, mock.MatchedBy(func(state *models.ChatState) bool {
		return state.ChatID == 7 && state.Step == "awaiting_terms" &&
			state.GetString("name") == "Ana" && state.UpdatedAt.Equal(fixed)
	})).Return(nil).Once()

	err := s.SetChatState(ctx, 7, "awaiting_terms", map[string]interface{}{"name": "Ana"})
	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
}

func TestStateService_ClearChatState(t *testing.T) {
	mockRepo := new(MockStateRepository)
	logger := zerolog.Nop()
	s := NewStateService(mockRepo, &logger)
	ctx := context.Background()

	mockRepo.On("ClearState", ctx, int64(9)).Return(nil).Once()
	assert.NoError(t, s.ClearChatState(ctx, 9))
	mockRepo.AssertExpectations(t)
}

func TestStateService_CheckRateLimit(t *testing.T) {
	mockRepo := new(MockStateRepository)
	logger := zerolog.Nop()
	s := NewStateService(mockRepo, &logger)
	ctx := context.Background()
	chatID := int64(123)

	t.Run("Allowed", func(t *testing.T) {
		mockRepo.On("CheckRateLimit", ctx, chatID, 5, time.Minute).Return(true, nil).Once()
		allowed, err := s.CheckRateLimit(ctx, chatID, 5, time.Minute)
		assert.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("Limited", func(t *testing.T) {
		mockRepo.On("CheckRateLimit", ctx, chatID, 5, time.Minute).Return(false, nil).Once()
		allowed, err := s.CheckRateLimit(ctx, chatID, 5, time.Minute)
		assert.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("StoreErrorFailsOpen", func(t *testing.T) {
		mockRepo.On("CheckRateLimit", ctx, chatID, 5, time.Minute).Return(false, errors.New("boom")).Once()
		allowed, err := s.CheckRateLimit(ctx, chatID, 5, time.Minute)
		assert.Error(t, err)
		assert.True(t, allowed)
	})
}
