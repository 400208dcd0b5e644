package bot

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"salon/internal/domain"
	"salon/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const (
	btnCard     = "🎟 Mi tarjeta"
	btnNextSlot = "🕐 Próxima hora"
	btnShare    = "📱 Compartir mi teléfono"
	btnCancel   = "❌ Cancelar"

	cbTermsYes = "terms:yes"
	cbTermsNo  = "terms:no"

	maxNameRunes = 80
)

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	if msg.Contact != nil {
		b.handleContact(ctx, msg)
		return
	}

	text := strings.TrimSpace(msg.Text)
	switch {
	case msg.IsCommand() && msg.Command() == "start":
		b.handleStart(ctx, chatID)
		return
	case msg.IsCommand() && msg.Command() == "tarjeta", text == btnCard:
		b.handleShowCard(ctx, chatID)
		return
	case msg.IsCommand() && msg.Command() == "hora", text == btnNextSlot:
		b.handleNextSlot(ctx, chatID)
		return
	case msg.IsCommand() && msg.Command() == "cancelar", text == btnCancel:
		b.clearState(ctx, chatID)
		b.sendKeyboard(ctx, chatID, msgCancelled, mainMenu())
		return
	case msg.IsCommand():
		b.sendKeyboard(ctx, chatID, msgHelp, mainMenu())
		return
	}

	state := b.getState(ctx, chatID)
	if state != nil && state.Step == StateEnterName {
		b.handleName(ctx, chatID, text, state)
		return
	}
	b.sendKeyboard(ctx, chatID, msgHelp, mainMenu())
}

func (b *Bot) handleStart(ctx context.Context, chatID int64) {
	b.setState(ctx, chatID, StateAwaitContact, nil)
	b.sendKeyboard(ctx, chatID, msgWelcome, mainMenu())
}

// handleContact looks the shared phone up. Only the sender's own contact is
// accepted, so nobody can open someone else's card.
func (b *Bot) handleContact(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	contact := msg.Contact
	if msg.From == nil || contact.UserID != msg.From.ID {
		b.sendKeyboard(ctx, chatID, msgOwnContact, mainMenu())
		return
	}

	phone := contactPhone(contact.PhoneNumber)
	card, err := b.loyalty.Card(ctx, models.CardLookup{Phone: phone})
	switch {
	case err == nil:
		b.setState(ctx, chatID, StateLinked, map[string]interface{}{dataPhone: card.Client.Phone})
		b.sendKeyboard(ctx, chatID, formatCard(card), mainMenu())
	case errors.Is(err, domain.ErrNotFound):
		b.setState(ctx, chatID, StateEnterName, map[string]interface{}{dataPhone: phone})
		name := strings.TrimSpace(contact.FirstName + " " + contact.LastName)
		b.sendKeyboard(ctx, chatID, askNameText(name), cancelMenu())
	default:
		b.sendError(ctx, chatID, err)
	}
}

// contactPhone adds the "+" Telegram leaves off international numbers.
func contactPhone(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw != "" && !strings.HasPrefix(raw, "+") {
		return "+" + raw
	}
	return raw
}

func (b *Bot) handleName(ctx context.Context, chatID int64, name string, state *models.ChatState) {
	if name == "" || utf8.RuneCountInString(name) > maxNameRunes {
		b.send(ctx, chatID, msgBadName)
		return
	}
	data := map[string]interface{}{
		dataPhone: state.GetString(dataPhone),
		dataName:  name,
	}
	b.setState(ctx, chatID, StateAcceptTerms, data)
	b.sendKeyboard(ctx, chatID, msgTerms, termsKeyboard())
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if err := b.tg.AnswerCallback(cq.ID, ""); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("answer callback failed")
	}
	// Telegram omits the message when it is too old to be returned.
	if cq.Message == nil || cq.Message.Chat == nil {
		zerolog.Ctx(ctx).Debug().Str("data", cq.Data).Msg("callback without message")
		return
	}
	chatID := cq.Message.Chat.ID

	state := b.getState(ctx, chatID)
	if state == nil || state.Step != StateAcceptTerms {
		b.sendKeyboard(ctx, chatID, msgSessionExpired, mainMenu())
		return
	}

	switch cq.Data {
	case cbTermsYes:
		b.register(ctx, chatID, state)
	case cbTermsNo:
		b.clearState(ctx, chatID)
		b.sendKeyboard(ctx, chatID, msgTermsDeclined, mainMenu())
	default:
		zerolog.Ctx(ctx).Warn().Str("data", cq.Data).Msg("unknown callback")
	}
}

func (b *Bot) register(ctx context.Context, chatID int64, state *models.ChatState) {
	card, err := b.loyalty.RegisterClient(ctx, models.RegisterClientRequest{
		Name:          state.GetString(dataName),
		Phone:         state.GetString(dataPhone),
		TermsAccepted: true,
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateClient) || errors.Is(err, domain.ErrInvalidInput) {
			b.clearState(ctx, chatID)
		}
		b.sendError(ctx, chatID, err)
		return
	}

	zerolog.Ctx(ctx).Info().Int64("client_id", card.Client.ID).Msg("client registered from telegram")
	b.setState(ctx, chatID, StateLinked, map[string]interface{}{dataPhone: card.Client.Phone})
	b.sendKeyboard(ctx, chatID, msgRegistered+"\n\n"+formatCard(card), mainMenu())
}

func (b *Bot) handleShowCard(ctx context.Context, chatID int64) {
	state := b.getState(ctx, chatID)
	phone := state.GetString(dataPhone)
	if state == nil || state.Step != StateLinked || phone == "" {
		b.handleStart(ctx, chatID)
		return
	}

	card, err := b.loyalty.Card(ctx, models.CardLookup{Phone: phone})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			b.clearState(ctx, chatID)
		}
		b.sendError(ctx, chatID, err)
		return
	}
	// refresh so the link outlives the state TTL while the client is active
	b.setState(ctx, chatID, StateLinked, map[string]interface{}{dataPhone: phone})
	b.sendKeyboard(ctx, chatID, formatCard(card), mainMenu())
}

func (b *Bot) handleNextSlot(ctx context.Context, chatID int64) {
	slot, err := b.bookings.NextAvailableSlot(ctx, b.slotMins)
	if err != nil {
		b.sendError(ctx, chatID, err)
		return
	}
	b.send(ctx, chatID, nextSlotText(slot))
}

func (b *Bot) getState(ctx context.Context, chatID int64) *models.ChatState {
	state, err := b.state.GetChatState(ctx, chatID)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("chat_id", chatID).Msg("read chat state")
		return nil
	}
	return state
}

func (b *Bot) setState(ctx context.Context, chatID int64, step string, data map[string]interface{}) {
	if err := b.state.SetChatState(ctx, chatID, step, data); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("chat_id", chatID).Str("step", step).Msg("save chat state")
	}
}

func (b *Bot) clearState(ctx context.Context, chatID int64) {
	if err := b.state.ClearChatState(ctx, chatID); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("chat_id", chatID).Msg("clear chat state")
	}
}

func (b *Bot) send(ctx context.Context, chatID int64, text string) {
	if _, err := b.tg.SendMarkdown(chatID, text); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("chat_id", chatID).Msg("send message")
	}
}

func (b *Bot) sendKeyboard(ctx context.Context, chatID int64, text string, keyboard interface{}) {
	if _, err := b.tg.SendWithKeyboard(chatID, text, keyboard); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("chat_id", chatID).Msg("send message")
	}
}

func (b *Bot) sendError(ctx context.Context, chatID int64, err error) {
	zerolog.Ctx(ctx).Warn().Err(err).Int64("chat_id", chatID).Msg("request failed")
	b.sendKeyboard(ctx, chatID, "⚠️ "+escape(domain.UserMessage(err)), mainMenu())
}

func mainMenu() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButtonContact(btnShare)),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCard),
			tgbotapi.NewKeyboardButton(btnNextSlot),
		),
	)
}

func cancelMenu() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCancel)))
}

func termsKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Acepto", cbTermsYes),
			tgbotapi.NewInlineKeyboardButtonData("No acepto", cbTermsNo),
		),
	)
}
