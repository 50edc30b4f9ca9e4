package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"villasole/internal/config"
	"villasole/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	err  error
	sent []tgbotapi.MessageConfig
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, f.err
}

func testBooking() *models.Booking {
	return &models.Booking{
		Reference:     "ref-1",
		GuestName:     "Anna Rossi",
		CheckIn:       time.Date(2026, 7, 10, 0, 0, 0, 0, time.UTC),
		CheckOut:      time.Date(2026, 7, 14, 0, 0, 0, 0, time.UTC),
		Adults:        2,
		ChildrenAges:  []int{5},
		Nights:        4,
		TotalAmount:   476,
		PaymentAmount: 142.8,
		PaymentType:   models.PaymentTypeDeposit,
		PaymentMethod: "bank_transfer",
	}
}

func TestNotifierDisabledWithoutToken(t *testing.T) {
	logger := zerolog.Nop()

	notifier, err := NewTelegramNotifier(config.TelegramConfig{}, &logger)
	require.NoError(t, err)
	assert.Nil(t, notifier)

	notifier, err = NewTelegramNotifier(config.TelegramConfig{BotToken: "token"}, &logger)
	require.NoError(t, err)
	assert.Nil(t, notifier, "owner chat id is also required")
}

func TestNotifyBookingCreated(t *testing.T) {
	logger := zerolog.Nop()
	sender := &fakeSender{}
	notifier := NewTelegramNotifierWithSender(sender, 42, &logger)

	require.NoError(t, notifier.NotifyBookingCreated(context.Background(), testBooking()))
	require.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Equal(t, "Markdown", msg.ParseMode)
	assert.Contains(t, msg.Text, "New booking")
	assert.Contains(t, msg.Text, "ref-1")
	assert.Contains(t, msg.Text, "Anna Rossi")
	assert.Contains(t, msg.Text, "2026-07-10")
	assert.Contains(t, msg.Text, "3 (2 adults)")
	assert.Contains(t, msg.Text, "142.80")
}

func TestNotifyBookingConfirmed(t *testing.T) {
	logger := zerolog.Nop()
	sender := &fakeSender{}
	notifier := NewTelegramNotifierWithSender(sender, 42, &logger)

	require.NoError(t, notifier.NotifyBookingConfirmed(context.Background(), testBooking()))
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Text, "Booking confirmed")
	assert.Contains(t, sender.sent[0].Text, "bank_transfer")
}

func TestNotifyEscalation(t *testing.T) {
	logger := zerolog.Nop()
	sender := &fakeSender{}
	notifier := NewTelegramNotifierWithSender(sender, 42, &logger)

	require.NoError(t, notifier.NotifyEscalation(context.Background(), "calendar sync degraded"))
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Text, "Attention required")
	assert.Contains(t, sender.sent[0].Text, "calendar sync degraded")
}

func TestNotifySendError(t *testing.T) {
	logger := zerolog.Nop()
	sender := &fakeSender{err: errors.New("telegram down")}
	notifier := NewTelegramNotifierWithSender(sender, 42, &logger)

	err := notifier.NotifyBookingCreated(context.Background(), testBooking())
	assert.Error(t, err)
}
