package bot

import (
	"context"
	"errors"
	"time"

	"salon/internal/config"
	"salon/internal/domain"
	"salon/internal/metrics"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Conversation steps kept in the state store.
const (
	StateAwaitContact = "await_contact"
	StateEnterName    = "enter_name"
	StateAcceptTerms  = "accept_terms"
	StateLinked       = "linked"
)

const (
	dataPhone = "phone"
	dataName  = "name"
)

const defaultSlotMinutes = 60

// Bot is the customer check-in bot: it links a chat to a loyalty card by
// phone number and registers new clients.
type Bot struct {
	tg       domain.TelegramService
	state    domain.StateManager
	loyalty  domain.LoyaltyService
	bookings domain.BookingService
	cfg      config.BotConfig
	slotMins int
	logger   *zerolog.Logger
}

func NewBot(
	tg domain.TelegramService,
	cfg *config.Config,
	state domain.StateManager,
	loyalty domain.LoyaltyService,
	bookings domain.BookingService,
	logger *zerolog.Logger,
) (*Bot, error) {
	if tg == nil || cfg == nil || state == nil || loyalty == nil || bookings == nil {
		return nil, errors.New("bot: missing dependency")
	}
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}

	slot := defaultSlotMinutes
	if len(cfg.Services) > 0 {
		slot = cfg.Services[0].DurationMinutes
	}

	return &Bot{
		tg:       tg,
		state:    state,
		loyalty:  loyalty,
		bookings: bookings,
		cfg:      cfg.Bot,
		slotMins: slot,
		logger:   logger,
	}, nil
}

// Start consumes updates until ctx is cancelled or the channel closes.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.tg.GetUpdatesChan(u)
	b.logger.Info().Str("username", b.tg.GetSelf().UserName).Msg("Authorized on account")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("Bot stopping...")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.processUpdate(ctx, update)
		}
	}
}

// Stop stops the long poll. Start returns once the channel drains.
func (b *Bot) Stop() {
	b.tg.StopReceivingUpdates()
}

func (b *Bot) processUpdate(ctx context.Context, update tgbotapi.Update) {
	kind := updateKind(update)
	start := time.Now()
	defer metrics.ObserveBotUpdate(kind, start)

	updateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	l := b.logger.With().Str("request_id", uuid.NewString()).Str("kind", kind).Logger()
	updateCtx = l.WithContext(updateCtx)

	b.withRecovery(updateCtx, func() {
		chatID := chatOf(update)
		if chatID == 0 {
			return
		}
		if !b.allow(updateCtx, chatID) {
			if update.Message != nil {
				b.send(updateCtx, chatID, msgSlowDown)
			}
			return
		}

		switch {
		case update.CallbackQuery != nil:
			b.handleCallback(updateCtx, update.CallbackQuery)
		case update.Message != nil:
			b.handleMessage(updateCtx, update.Message)
		}
	})
}

func updateKind(update tgbotapi.Update) string {
	switch {
	case update.CallbackQuery != nil:
		return "callback"
	case update.Message != nil && update.Message.Contact != nil:
		return "contact"
	case update.Message != nil && update.Message.IsCommand():
		return "command"
	case update.Message != nil:
		return "message"
	default:
		return "other"
	}
}

func chatOf(update tgbotapi.Update) int64 {
	switch {
	case update.Message != nil && update.Message.Chat != nil:
		return update.Message.Chat.ID
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil && update.CallbackQuery.Message.Chat != nil:
		return update.CallbackQuery.Message.Chat.ID
	default:
		return 0
	}
}
