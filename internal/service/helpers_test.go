package service

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"salon/internal/database"
	"salon/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *database.DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// recordingBus keeps every published event as its type and JSON payload.
type recordingBus struct {
	mu       sync.Mutex
	types    []string
	payloads []json.RawMessage
}

func (b *recordingBus) PublishJSON(eventType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.types = append(b.types, eventType)
	b.payloads = append(b.payloads, data)
	return nil
}

func (b *recordingBus) Types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.types...)
}

func (b *recordingBus) Count(eventType string) int {
	n := 0
	for _, t := range b.Types() {
		if t == eventType {
			n++
		}
	}
	return n
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func seedClient(t *testing.T, db *database.DB, name, phone string) *models.Client {
	t.Helper()
	c := &models.Client{Name: name, Phone: phone, Token: "tok-" + phone}
	require.NoError(t, db.CreateClient(context.Background(), c))
	return c
}
