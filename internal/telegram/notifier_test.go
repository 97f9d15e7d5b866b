package telegram

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digkill/visionhub/internal/models"
)

type recordingBot struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (b *recordingBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if b.err != nil {
		return tgbotapi.Message{}, b.err
	}
	b.sent = append(b.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func TestPaymentSubmitted(t *testing.T) {
	bot := &recordingBot{}
	n := &Notifier{bot: bot, chatID: 42}

	err := n.PaymentSubmitted(context.Background(), &models.PaymentSubmission{
		ID: "s1", UserID: "u1", Plan: "Starter", Credits: 100, ReferenceID: "ref-9", PaymentSlipURL: "https://cdn/slip.png",
	})
	require.NoError(t, err)
	require.Len(t, bot.sent, 1)
	assert.Equal(t, int64(42), bot.sent[0].ChatID)
	assert.Contains(t, bot.sent[0].Text, "ref-9")
	assert.Contains(t, bot.sent[0].Text, "100 credits")
}

func TestSendError(t *testing.T) {
	boom := errors.New("blocked")
	n := &Notifier{bot: &recordingBot{err: boom}, chatID: 1}
	err := n.PaymentApproved(context.Background(), &models.PaymentSubmission{ID: "s1"})
	assert.ErrorIs(t, err, boom)
}
