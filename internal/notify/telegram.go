// Package notify delivers owner notifications over Telegram. Delivery is
// best effort; a failed send is retried by the queue worker, never by the
// booking flow.
package notify

import (
	"context"
	"fmt"
	"strings"

	"villasole/internal/config"
	"villasole/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Sender is the slice of the Telegram API the notifier needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type TelegramNotifier struct {
	api    Sender
	chatID int64
	logger *zerolog.Logger
}

// NewTelegramNotifier connects to the Telegram API. Returns nil without
// error when no bot token is configured; callers treat a nil notifier as
// notifications disabled.
func NewTelegramNotifier(cfg config.TelegramConfig, logger *zerolog.Logger) (*TelegramNotifier, error) {
	if cfg.BotToken == "" || cfg.OwnerChatID == 0 {
		return nil, nil
	}

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("telegram init: %w", err)
	}
	api.Debug = cfg.Debug

	return &TelegramNotifier{api: api, chatID: cfg.OwnerChatID, logger: logger}, nil
}

// NewTelegramNotifierWithSender wires a prebuilt sender, used in tests.
func NewTelegramNotifierWithSender(sender Sender, chatID int64, logger *zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{api: sender, chatID: chatID, logger: logger}
}

func (n *TelegramNotifier) NotifyBookingCreated(ctx context.Context, booking *models.Booking) error {
	var b strings.Builder
	b.WriteString("🆕 *New booking*\n\n")
	writeBookingLines(&b, booking)
	fmt.Fprintf(&b, "\nAwaiting payment of %.2f (%s)", booking.PaymentAmount, booking.PaymentType)
	return n.send(b.String())
}

func (n *TelegramNotifier) NotifyBookingConfirmed(ctx context.Context, booking *models.Booking) error {
	var b strings.Builder
	b.WriteString("✅ *Booking confirmed*\n\n")
	writeBookingLines(&b, booking)
	fmt.Fprintf(&b, "\nPaid %.2f via %s", booking.PaymentAmount, booking.PaymentMethod)
	return n.send(b.String())
}

func (n *TelegramNotifier) NotifyEscalation(ctx context.Context, message string) error {
	return n.send("🚨 *Attention required*\n\n" + message)
}

func (n *TelegramNotifier) send(text string) error {
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = "Markdown"
	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func writeBookingLines(b *strings.Builder, booking *models.Booking) {
	fmt.Fprintf(b, "Ref: `%s`\n", booking.Reference)
	fmt.Fprintf(b, "Guest: %s\n", booking.GuestName)
	fmt.Fprintf(b, "Dates: %s → %s (%d nights)\n",
		booking.CheckIn.Format(models.DateFormat),
		booking.CheckOut.Format(models.DateFormat),
		booking.Nights)
	guests := booking.Adults + len(booking.ChildrenAges)
	fmt.Fprintf(b, "Guests: %d (%d adults)\n", guests, booking.Adults)
	fmt.Fprintf(b, "Total: %.2f", booking.TotalAmount)
}
