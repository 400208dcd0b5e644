package database

import (
	"context"
	"testing"
	"time"

	"salon/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncQueueLifecycle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	task := &models.SyncTask{TaskType: "visit_log", EntityID: 7, Payload: `{"client_id":7}`}
	require.NoError(t, db.CreateSyncTask(ctx, task))
	assert.Equal(t, models.TaskStatusPending, task.Status)

	tasks, err := db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, int64(7), tasks[0].EntityID)
	assert.Nil(t, tasks[0].LastError)

	later := time.Now().Add(time.Hour)
	require.NoError(t, db.UpdateSyncTaskStatus(ctx, task.ID, models.TaskStatusRetry, "sheets down", &later))

	tasks, err = db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, tasks, "retry is not due yet")

	past := time.Now().Add(-time.Minute)
	require.NoError(t, db.UpdateSyncTaskStatus(ctx, task.ID, models.TaskStatusRetry, "sheets down", &past))

	tasks, err = db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, 2, tasks[0].RetryCount)
	require.NotNil(t, tasks[0].LastError)
	assert.Equal(t, "sheets down", *tasks[0].LastError)

	require.NoError(t, db.UpdateSyncTaskStatus(ctx, task.ID, models.TaskStatusCompleted, "", nil))
	tasks, err = db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestClaimSyncTask(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	task := &models.SyncTask{TaskType: "visit_log", EntityID: 7, Payload: `{}`}
	require.NoError(t, db.CreateSyncTask(ctx, task))

	claimed, err := db.ClaimSyncTask(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = db.ClaimSyncTask(ctx, task.ID)
	require.NoError(t, err)
	assert.False(t, claimed, "second claim must lose")

	tasks, err := db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, tasks, "processing tasks are not polled")

	released, err := db.ReleaseSyncTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), released)

	tasks, err = db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, models.TaskStatusPending, tasks[0].Status)

	require.NoError(t, db.UpdateSyncTaskStatus(ctx, task.ID, models.TaskStatusCompleted, "", nil))
	claimed, err = db.ClaimSyncTask(ctx, task.ID)
	require.NoError(t, err)
	assert.False(t, claimed, "completed tasks cannot be claimed")
}

func TestGetFailedSyncTasks(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	ok := &models.SyncTask{TaskType: "sheets_booking", EntityID: 1, Payload: "{}"}
	dead := &models.SyncTask{TaskType: "sheets_transaction", EntityID: 2, Payload: "{}"}
	require.NoError(t, db.CreateSyncTask(ctx, ok))
	require.NoError(t, db.CreateSyncTask(ctx, dead))

	require.NoError(t, db.UpdateSyncTaskStatus(ctx, dead.ID, models.TaskStatusFailed, "quota exceeded", nil))

	failed, err := db.GetFailedSyncTasks(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, int64(2), failed[0].EntityID)
	assert.NotNil(t, failed[0].ProcessedAt)

	pending, err := db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "sheets_booking", pending[0].TaskType)
}
