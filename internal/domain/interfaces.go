package domain

import (
	"context"
	"io"
	"time"

	"salon/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ClientRepository is the client half of the persistence contract.
// UpdateClientIf writes fields only when every field set in guard matches the
// stored row; otherwise it returns ErrPreconditionFailed (ErrNotFound for a
// missing id).
type ClientRepository interface {
	GetClient(ctx context.Context, id int64) (*models.Client, error)
	GetClientByPhone(ctx context.Context, phone string) (*models.Client, error)
	GetClientByToken(ctx context.Context, token string) (*models.Client, error)
	CreateClient(ctx context.Context, client *models.Client) error
	UpdateClient(ctx context.Context, id int64, fields models.ClientPatch) error
	UpdateClientIf(ctx context.Context, id int64, guard, fields models.ClientPatch) error
	ListClients(ctx context.Context, search string, limit int) ([]*models.Client, error)
	DeleteClient(ctx context.Context, id int64) error
}

type BookingRepository interface {
	ListBookings(ctx context.Context, date string) ([]*models.Booking, error)
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	CreateBooking(ctx context.Context, booking *models.Booking) error
	DeleteBooking(ctx context.Context, id int64) error
}

type VisitLogRepository interface {
	AppendVisitLog(ctx context.Context, entry *models.VisitLog) error
	ListVisitLogs(ctx context.Context, clientID int64) ([]*models.VisitLog, error)
}

type TransactionRepository interface {
	CreateTransaction(ctx context.Context, tx *models.Transaction) error
	CreateSale(ctx context.Context, lines []*models.Transaction, staff string) error
	DeleteTransaction(ctx context.Context, id int64) error
	ListTransactions(ctx context.Context, from, to time.Time) ([]*models.Transaction, error)
}

type ProductRepository interface {
	CreateProduct(ctx context.Context, p *models.Product) error
	UpsertProductBySKU(ctx context.Context, p *models.Product) error
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	ListProducts(ctx context.Context, activeOnly bool) ([]*models.Product, error)
	AdjustStock(ctx context.Context, productID int64, delta int, reason, staff string) (*models.Product, error)
	ListStockMovements(ctx context.Context, productID int64) ([]*models.StockMovement, error)
}

type ReportRepository interface {
	ListTransactions(ctx context.Context, from, to time.Time) ([]*models.Transaction, error)
	CountBookings(ctx context.Context, fromDate, toDate string) (int, error)
	CountNewClients(ctx context.Context, from, to time.Time) (int, error)
}

type SyncQueueRepository interface {
	CreateSyncTask(ctx context.Context, task *models.SyncTask) error
	GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error)
	ClaimSyncTask(ctx context.Context, id int64) (bool, error)
	ReleaseSyncTasks(ctx context.Context) (int64, error)
	UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
}

// Repository is the full capability set of the store.
type Repository interface {
	ClientRepository
	BookingRepository
	VisitLogRepository
	TransactionRepository
	ProductRepository
	ReportRepository
	SyncQueueRepository
}

type StateRepository interface {
	GetState(ctx context.Context, chatID int64) (*models.ChatState, error)
	SetState(ctx context.Context, state *models.ChatState) error
	ClearState(ctx context.Context, chatID int64) error
	CheckRateLimit(ctx context.Context, chatID int64, limit int, window time.Duration) (bool, error)
}

type StateManager interface {
	GetChatState(ctx context.Context, chatID int64) (*models.ChatState, error)
	SetChatState(ctx context.Context, chatID int64, step string, data map[string]interface{}) error
	ClearChatState(ctx context.Context, chatID int64) error
	CheckRateLimit(ctx context.Context, chatID int64, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// TaskQueue accepts background work; it must not block the caller on delivery.
type TaskQueue interface {
	EnqueueTask(ctx context.Context, taskType string, entityID int64, payload interface{}) error
}

// SheetsWriter appends audit rows to the spreadsheet mirror. action is
// "created" or "deleted" for bookings.
type SheetsWriter interface {
	AppendBooking(ctx context.Context, action string, booking *models.Booking) error
	AppendTransaction(ctx context.Context, tx *models.Transaction) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetSelf() tgbotapi.User
	StopReceivingUpdates()
}

type TelegramService interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	SendMessage(chatID int64, text string) (tgbotapi.Message, error)
	SendMarkdown(chatID int64, text string) (tgbotapi.Message, error)
	SendWithKeyboard(chatID int64, text string, keyboard interface{}) (tgbotapi.Message, error)
	AnswerCallback(callbackID, text string) error
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetSelf() tgbotapi.User
	StopReceivingUpdates()
}

type LoyaltyService interface {
	RegisterClient(ctx context.Context, req models.RegisterClientRequest) (*models.ClientCard, error)
	Card(ctx context.Context, lookup models.CardLookup) (*models.ClientCard, error)
	GetCard(ctx context.Context, clientID int64) (*models.ClientCard, error)
	RegisterVisit(ctx context.Context, clientID int64) (*models.ClientCard, error)
	RegisterHairService(ctx context.Context, clientID int64, req models.HairServiceRequest) (*models.HairServiceResult, error)
	RedeemDiscount(ctx context.Context, clientID int64) (*models.ClientCard, error)
	RedeemFreeCut(ctx context.Context, clientID int64) (*models.ClientCard, error)
	ListClients(ctx context.Context, search string, limit int) ([]*models.ClientCard, error)
	DeleteClient(ctx context.Context, clientID int64) error
}

type BookingService interface {
	NextAvailableSlot(ctx context.Context, durationMinutes int) (string, error)
	FreeSlots(ctx context.Context, date string, durationMinutes int) ([]string, error)
	BookNextSlot(ctx context.Context, req models.WalkInRequest) (*models.Booking, error)
	CreateManualBooking(ctx context.Context, booking *models.Booking) error
	BlockSlot(ctx context.Context, date, start string, durationMinutes int) (*models.Booking, error)
	CancelBooking(ctx context.Context, id int64) error
	ListDay(ctx context.Context, date string) ([]*models.Booking, error)
}

type CheckInService interface {
	WalkIn(ctx context.Context, req models.WalkInRequest) (*models.WalkInResult, error)
}

type SalesService interface {
	Checkout(ctx context.Context, req models.CheckoutRequest) ([]*models.Transaction, error)
	DeleteTransaction(ctx context.Context, id int64) error
}

type InventoryService interface {
	CreateProduct(ctx context.Context, p *models.Product) error
	ListProducts(ctx context.Context, activeOnly bool) ([]*models.Product, error)
	AdjustStock(ctx context.Context, productID int64, delta int, reason, staff string) (*models.Product, error)
	LowStock(ctx context.Context) ([]*models.Product, error)
}

type ReportService interface {
	Summary(ctx context.Context, from, to time.Time) (*models.SalesSummary, error)
	Export(ctx context.Context, from, to time.Time, w io.Writer) error
}
