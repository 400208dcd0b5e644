package models

// BlockedName marks an administrator closure stored as a regular booking.
const BlockedName = "BLOQUEADO"

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

const (
	SourceWalkIn = "walk_in"
	SourceManual = "manual"
	SourceBlock  = "block"
)

const (
	KindProduct = "product"
	KindService = "service"
)

const (
	CategoryHair    = "hair"
	CategoryPerfume = "perfume"
	CategoryDecant  = "decant"
	CategoryGift    = "gift"
	CategoryOther   = "other"
)

const (
	PaymentCash     = "cash"
	PaymentDebit    = "debit"
	PaymentCredit   = "credit"
	PaymentTransfer = "transfer"
)

const (
	VisitKindVisit       = "visit"
	VisitKindHairService = "hair_service"
)

const (
	TaskStatusPending    = "pending"
	TaskStatusRetry      = "retry"
	TaskStatusProcessing = "processing"
	TaskStatusCompleted  = "completed"
	TaskStatusFailed     = "failed"
)

const (
	ParseModeMarkdown = "Markdown"
	ParseModeHTML     = "HTML"
)

const (
	// DefaultStateTTLMinutes is how long an idle bot conversation is kept.
	DefaultStateTTLMinutes = 30

	// WorkerQueueSize is the in-memory buffer of the sync worker.
	WorkerQueueSize = 256
)

// ValidCategory reports whether c is a known sales category.
func ValidCategory(c string) bool {
	switch c {
	case CategoryHair, CategoryPerfume, CategoryDecant, CategoryGift, CategoryOther:
		return true
	}
	return false
}

// ValidPaymentMethod reports whether m is an accepted payment method.
func ValidPaymentMethod(m string) bool {
	switch m {
	case PaymentCash, PaymentDebit, PaymentCredit, PaymentTransfer:
		return true
	}
	return false
}
