package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"salon/internal/domain"
	"salon/internal/events"
	"salon/internal/metrics"
	"salon/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	TaskVisitLog          = "visit_log"
	TaskSheetsBooking     = "sheets_booking"
	TaskSheetsTransaction = "sheets_transaction"
)

const (
	BookingActionCreated = "created"
	BookingActionDeleted = "deleted"
)

// TaskStore is the part of the store the worker reads and writes.
type TaskStore interface {
	domain.SyncQueueRepository
	domain.VisitLogRepository
}

type visitLogPayload struct {
	ClientID int64     `json:"client_id"`
	Kind     string    `json:"kind"`
	At       time.Time `json:"at"`
}

type bookingPayload struct {
	Action  string          `json:"action"`
	Booking *models.Booking `json:"booking"`
}

type transactionPayload struct {
	Transaction *models.Transaction `json:"transaction"`
}

type handoff struct {
	taskType string
	entityID int64
	payload  interface{}
}

// SyncWorker drains sync_queue: audit log writes and the optional
// spreadsheet mirror. Tasks are durable in the store; redis or an in-memory
// channel only shortens the path to the worker.
type SyncWorker struct {
	store         TaskStore
	sheets        domain.SheetsWriter
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan models.SyncTask
	handoffs      chan handoff
	handoffOnce   sync.Once
	inFlight      sync.WaitGroup
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	logger        *zerolog.Logger
}

var _ domain.TaskQueue = (*SyncWorker)(nil)

// NewSyncWorker builds a worker with sane defaults. sheets and redisClient
// may be nil.
func NewSyncWorker(store TaskStore, sheets domain.SheetsWriter, redisClient *redis.Client, retry RetryPolicy, logger *zerolog.Logger) *SyncWorker {
	retry = retry.withDefaults()
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "sync_worker").Logger()

	return &SyncWorker{
		store:         store,
		sheets:        sheets,
		redis:         redisClient,
		retryPolicy:   retry,
		queue:         make(chan models.SyncTask, models.WorkerQueueSize),
		handoffs:      make(chan handoff, models.WorkerQueueSize),
		redisQueueKey: "salon:sync:queue",
		deadLetterKey: "salon:sync:deadletter",
		pollInterval:  2 * time.Second,
		batchSize:     20,
		logger:        &l,
	}
}

// Subscribe wires the worker to domain events. Spreadsheet tasks are only
// produced when a sheets writer is configured. Handlers return as soon as
// the task is handed to a background writer; Wait blocks until every
// handed-off task is persisted.
func (w *SyncWorker) Subscribe(bus *events.EventBus) {
	w.handoffOnce.Do(func() { go w.persistHandoffs() })
	bus.Subscribe(w.onLoyaltyEvent, events.EventVisitRegistered, events.EventHairServiceRegistered)
	if w.sheets == nil {
		return
	}
	bus.Subscribe(w.onBookingEvent, events.EventBookingCreated, events.EventBookingDeleted)
	bus.Subscribe(w.onSaleEvent, events.EventSaleCompleted)
}

func (w *SyncWorker) onLoyaltyEvent(e *events.Event) error {
	var p events.ClientEventPayload
	if err := e.Decode(&p); err != nil {
		return fmt.Errorf("decode %s: %w", e.Type, err)
	}
	kind := models.VisitKindVisit
	if e.Type == events.EventHairServiceRegistered {
		kind = models.VisitKindHairService
	}
	at := p.OccurredAt
	if at.IsZero() {
		at = e.CreatedAt
	}
	w.handOff(TaskVisitLog, p.ClientID, visitLogPayload{ClientID: p.ClientID, Kind: kind, At: at})
	return nil
}

func (w *SyncWorker) onBookingEvent(e *events.Event) error {
	var p events.BookingEventPayload
	if err := e.Decode(&p); err != nil {
		return fmt.Errorf("decode %s: %w", e.Type, err)
	}
	if p.Booking == nil {
		return errors.New("booking event without booking")
	}
	action := BookingActionCreated
	if e.Type == events.EventBookingDeleted {
		action = BookingActionDeleted
	}
	w.handOff(TaskSheetsBooking, p.Booking.ID, bookingPayload{Action: action, Booking: p.Booking})
	return nil
}

func (w *SyncWorker) onSaleEvent(e *events.Event) error {
	var p events.SaleEventPayload
	if err := e.Decode(&p); err != nil {
		return fmt.Errorf("decode %s: %w", e.Type, err)
	}
	for _, line := range p.Lines {
		w.handOff(TaskSheetsTransaction, line.ID, transactionPayload{Transaction: line})
	}
	return nil
}

// handOff passes the task to persistHandoffs. Only when that backlog is full
// does the publisher write the task itself.
func (w *SyncWorker) handOff(taskType string, entityID int64, payload interface{}) {
	h := handoff{taskType: taskType, entityID: entityID, payload: payload}
	w.inFlight.Add(1)
	select {
	case w.handoffs <- h:
	default:
		w.logger.Warn().Str("type", taskType).Msg("handoff backlog full, persisting inline")
		w.persistHandoff(h)
	}
}

// persistHandoffs writes handed-off tasks one at a time, in publish order.
// It lives as long as the process.
func (w *SyncWorker) persistHandoffs() {
	for h := range w.handoffs {
		w.persistHandoff(h)
	}
}

func (w *SyncWorker) persistHandoff(h handoff) {
	defer w.inFlight.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.EnqueueTask(ctx, h.taskType, h.entityID, h.payload); err != nil {
		w.logger.Error().Err(err).Str("type", h.taskType).Int64("entity_id", h.entityID).Msg("enqueue handed-off task")
	}
}

// Wait blocks until every task handed off by the event handlers is persisted.
func (w *SyncWorker) Wait() {
	w.inFlight.Wait()
}

// EnqueueTask persists the task and schedules it via redis or the in-memory queue.
func (w *SyncWorker) EnqueueTask(ctx context.Context, taskType string, entityID int64, payload interface{}) error {
	if taskType == "" {
		return errors.New("task type is required")
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	task := models.SyncTask{
		TaskType: taskType,
		EntityID: entityID,
		Payload:  string(raw),
		Status:   models.TaskStatusPending,
	}
	if err := w.store.CreateSyncTask(ctx, &task); err != nil {
		return fmt.Errorf("persist sync task: %w", err)
	}

	if w.redis != nil {
		if err := w.pushRedis(ctx, w.redisQueueKey, task); err != nil {
			w.logger.Warn().Err(err).Int64("task_id", task.ID).Msg("redis push failed, using memory queue")
		} else {
			return nil
		}
	}

	select {
	case w.queue <- task:
	default:
		w.logger.Warn().Int64("task_id", task.ID).Msg("memory queue full, task left to polling")
	}
	return nil
}

// Start runs the main loop until ctx is done.
func (w *SyncWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("started")
	defer w.logger.Info().Msg("stopped")

	if n, err := w.store.ReleaseSyncTasks(ctx); err != nil {
		w.logger.Error().Err(err).Msg("release interrupted tasks")
	} else if n > 0 {
		w.logger.Warn().Int64("count", n).Msg("released tasks interrupted by a previous run")
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, &t)
			continue
		}

		if t, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, &t)
			continue
		}

		tasks, err := w.store.GetPendingSyncTasks(ctx, w.batchSize)
		if err != nil {
			w.logger.Error().Err(err).Msg("fetch pending tasks")
			w.sleep(ctx)
			continue
		}
		if len(tasks) == 0 {
			w.sleep(ctx)
			continue
		}

		for i := range tasks {
			w.processTask(ctx, &tasks[i])
		}
	}
}

func (w *SyncWorker) sleep(ctx context.Context) {
	t := time.NewTimer(w.pollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (w *SyncWorker) tryLocalQueue() (models.SyncTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return models.SyncTask{}, false
	}
}

func (w *SyncWorker) tryRedis(ctx context.Context) (models.SyncTask, bool) {
	if w.redis == nil {
		return models.SyncTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			w.logger.Warn().Err(err).Msg("redis BRPOP failed")
		}
		return models.SyncTask{}, false
	}
	if len(res) != 2 {
		return models.SyncTask{}, false
	}
	var task models.SyncTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Warn().Err(err).Msg("decode redis task")
		return models.SyncTask{}, false
	}
	return task, true
}

// processTask runs a task only if it can claim it. The same task may arrive
// from the memory queue, redis and the poller.
func (w *SyncWorker) processTask(ctx context.Context, task *models.SyncTask) {
	claimed, err := w.store.ClaimSyncTask(ctx, task.ID)
	if err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("claim task")
		return
	}
	if !claimed {
		w.logger.Debug().Int64("task_id", task.ID).Msg("task already taken")
		return
	}

	err = w.handle(ctx, task)
	switch {
	case err == nil:
		if err := w.store.UpdateSyncTaskStatus(ctx, task.ID, models.TaskStatusCompleted, "", nil); err != nil {
			w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark completed")
		}
		metrics.IncWorkerTask(task.TaskType, models.TaskStatusCompleted)
	case errors.Is(err, errPermanent):
		w.fail(ctx, task, err)
	default:
		w.retryOrFail(ctx, task, err)
	}
}

// errPermanent marks failures that a retry cannot fix.
var errPermanent = errors.New("permanent task failure")

func (w *SyncWorker) handle(ctx context.Context, task *models.SyncTask) error {
	switch task.TaskType {
	case TaskVisitLog:
		var p visitLogPayload
		if err := json.Unmarshal([]byte(task.Payload), &p); err != nil {
			return fmt.Errorf("%w: decode payload: %v", errPermanent, err)
		}
		err := w.store.AppendVisitLog(ctx, &models.VisitLog{ClientID: p.ClientID, Kind: p.Kind, CreatedAt: p.At})
		if errors.Is(err, domain.ErrNotFound) {
			// client deleted in the meantime
			return fmt.Errorf("%w: %v", errPermanent, err)
		}
		return err

	case TaskSheetsBooking:
		if w.sheets == nil {
			return fmt.Errorf("%w: sheets mirror not configured", errPermanent)
		}
		var p bookingPayload
		if err := json.Unmarshal([]byte(task.Payload), &p); err != nil || p.Booking == nil {
			return fmt.Errorf("%w: bad booking payload", errPermanent)
		}
		return w.sheets.AppendBooking(ctx, p.Action, p.Booking)

	case TaskSheetsTransaction:
		if w.sheets == nil {
			return fmt.Errorf("%w: sheets mirror not configured", errPermanent)
		}
		var p transactionPayload
		if err := json.Unmarshal([]byte(task.Payload), &p); err != nil || p.Transaction == nil {
			return fmt.Errorf("%w: bad transaction payload", errPermanent)
		}
		return w.sheets.AppendTransaction(ctx, p.Transaction)

	default:
		return fmt.Errorf("%w: unknown task type %q", errPermanent, task.TaskType)
	}
}

func (w *SyncWorker) retryOrFail(ctx context.Context, task *models.SyncTask, cause error) {
	attempt := task.RetryCount + 1
	if w.retryPolicy.Exhausted(attempt) {
		w.fail(ctx, task, cause)
		return
	}

	next := time.Now().Add(w.retryPolicy.NextDelay(attempt))
	if err := w.store.UpdateSyncTaskStatus(ctx, task.ID, models.TaskStatusRetry, cause.Error(), &next); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark retry")
	}
	metrics.IncWorkerTask(task.TaskType, models.TaskStatusRetry)
	w.logger.Warn().Err(cause).Int64("task_id", task.ID).Str("type", task.TaskType).Int("attempt", attempt).Msg("task will be retried")
}

func (w *SyncWorker) fail(ctx context.Context, task *models.SyncTask, cause error) {
	if err := w.store.UpdateSyncTaskStatus(ctx, task.ID, models.TaskStatusFailed, cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark failed")
	}
	metrics.IncWorkerTask(task.TaskType, models.TaskStatusFailed)
	w.logger.Error().Err(cause).Int64("task_id", task.ID).Str("type", task.TaskType).Msg("task failed")
	if err := w.pushRedis(ctx, w.deadLetterKey, *task); err != nil && w.redis != nil {
		w.logger.Warn().Err(err).Int64("task_id", task.ID).Msg("deadletter push failed")
	}
}

func (w *SyncWorker) pushRedis(ctx context.Context, key string, task models.SyncTask) error {
	if w.redis == nil {
		return errors.New("redis client is nil")
	}
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, key, data).Err()
}
