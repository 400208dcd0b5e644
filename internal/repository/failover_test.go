package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"salon/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) GetState(ctx context.Context, chatID int64) (*models.ChatState, error) {
	args := m.Called(ctx, chatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatState), args.Error(1)
}

func (m *mockRepo) SetState(ctx context.Context, state *models.ChatState) error {
	return m.Called(ctx, state).Error(0)
}

func (m *mockRepo) ClearState(ctx context.Context, chatID int64) error {
	return m.Called(ctx, chatID).Error(0)
}

func (m *mockRepo) CheckRateLimit(ctx context.Context, chatID int64, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, chatID, limit, window)
	return args.Bool(0), args.Error(1)
}

func newFailover(t *testing.T) (*FailoverStateRepository, *mockRepo, *mockRepo, *time.Time) {
	t.Helper()
	primary, fallback := new(mockRepo), new(mockRepo)
	logger := zerolog.New(io.Discard)
	repo := NewFailoverStateRepository(primary, fallback, &logger)
	clock := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return clock }
	t.Cleanup(func() {
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})
	return repo, primary, fallback, &clock
}

func TestFailover_PrimaryHealthy(t *testing.T) {
	repo, primary, _, _ := newFailover(t)
	ctx := context.Background()

	state := &models.ChatState{ChatID: 1}
	primary.On("GetState", ctx, int64(1)).Return(state, nil).Once()
	primary.On("SetState", ctx, state).Return(nil).Once()
	primary.On("CheckRateLimit", ctx, int64(1), 10, time.Minute).Return(true, nil).Once()

	got, err := repo.GetState(ctx, 1)
	require.NoError(t, err)
	assert.Same(t, state, got)
	require.NoError(t, repo.SetState(ctx, state))
	allowed, err := repo.CheckRateLimit(ctx, 1, 10, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.True(t, repo.usePrimary())
}

func TestFailover_SwitchesAndRecovers(t *testing.T) {
	repo, primary, fallback, clock := newFailover(t)
	ctx := context.Background()

	state := &models.ChatState{ChatID: 2}
	primary.On("GetState", ctx, int64(2)).Return(nil, errors.New("connection refused")).Once()
	fallback.On("GetState", ctx, int64(2)).Return(state, nil).Once()

	got, err := repo.GetState(ctx, 2)
	require.NoError(t, err)
	assert.Same(t, state, got)
	assert.False(t, repo.usePrimary())

	// while down, primary is not consulted
	fallback.On("SetState", ctx, state).Return(nil).Once()
	require.NoError(t, repo.SetState(ctx, state))

	*clock = clock.Add(2 * time.Minute)
	assert.True(t, repo.usePrimary())

	primary.On("ClearState", ctx, int64(2)).Return(nil).Once()
	fallback.On("ClearState", ctx, int64(2)).Return(nil).Once()
	require.NoError(t, repo.ClearState(ctx, 2))
	assert.True(t, repo.usePrimary())
}

func TestFailover_RecoveryProbeFails(t *testing.T) {
	repo, primary, fallback, clock := newFailover(t)
	ctx := context.Background()

	primary.On("CheckRateLimit", ctx, int64(3), 5, time.Minute).Return(false, errors.New("fail")).Twice()
	fallback.On("CheckRateLimit", ctx, int64(3), 5, time.Minute).Return(true, nil).Twice()

	allowed, err := repo.CheckRateLimit(ctx, 3, 5, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)

	*clock = clock.Add(2 * time.Minute)
	allowed, err = repo.CheckRateLimit(ctx, 3, 5, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.False(t, repo.usePrimary())
}
