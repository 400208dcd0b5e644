package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"salon/internal/config"
	"salon/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupService(t *testing.T) {
	dir := t.TempDir()
	logger := zerolog.Nop()

	db, err := NewDB(filepath.Join(dir, "salon.db"), &logger)
	require.NoError(t, err)
	defer db.Close()

	c := &models.Client{Name: "Ana", Phone: "+56911111111", Token: "t"}
	require.NoError(t, db.CreateClient(context.Background(), c))

	storage := filepath.Join(dir, "backups")
	s := NewBackupService(db, config.BackupConfig{Enabled: true, StoragePath: storage, RetentionDays: 1}, &logger)

	t.Run("PerformBackup", func(t *testing.T) {
		path, err := s.PerformBackup(context.Background())
		require.NoError(t, err)
		assert.FileExists(t, path)

		restored, err := NewDB(path, &logger)
		require.NoError(t, err)
		defer restored.Close()

		got, err := restored.GetClient(context.Background(), c.ID)
		require.NoError(t, err)
		assert.Equal(t, "Ana", got.Name)
	})

	t.Run("CleanupOldBackups", func(t *testing.T) {
		old := filepath.Join(storage, "salon_20000101_000000.db")
		foreign := filepath.Join(storage, "keep.db")
		require.NoError(t, os.WriteFile(old, []byte("x"), 0o644))
		require.NoError(t, os.WriteFile(foreign, []byte("x"), 0o644))

		past := time.Now().AddDate(0, 0, -3)
		require.NoError(t, os.Chtimes(old, past, past))
		require.NoError(t, os.Chtimes(foreign, past, past))

		s.CleanupOldBackups()

		assert.NoFileExists(t, old)
		assert.FileExists(t, foreign)
	})

	t.Run("DisabledReturnsImmediately", func(t *testing.T) {
		off := NewBackupService(db, config.BackupConfig{Enabled: false}, &logger)
		done := make(chan struct{})
		go func() {
			off.Start(context.Background())
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("disabled backup service did not return")
		}
	})
}

func TestBackupInterval(t *testing.T) {
	logger := zerolog.Nop()
	s := NewBackupService(nil, config.BackupConfig{}, &logger)
	assert.Equal(t, 24*time.Hour, s.interval())

	s.config.Schedule = "6h"
	assert.Equal(t, 6*time.Hour, s.interval())

	s.config.Schedule = "nonsense"
	assert.Equal(t, 24*time.Hour, s.interval())
}
