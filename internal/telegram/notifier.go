// Package telegram pings the admin chat when something needs a human, such as
// a payment slip waiting for review.
package telegram

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/digkill/visionhub/internal/models"
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Notifier struct {
	bot    sender
	chatID int64
	log    *slog.Logger
}

func NewNotifier(token string, chatID int64, log *slog.Logger) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	log.Info("telegram notifier authorized", "bot", bot.Self.UserName)
	return &Notifier{bot: bot, chatID: chatID, log: log}, nil
}

func (n *Notifier) PaymentSubmitted(_ context.Context, sub *models.PaymentSubmission) error {
	text := fmt.Sprintf("New payment submission %s\nUser: %s\nPlan: %s (%d credits)\nReference: %s\nSlip: %s",
		sub.ID, sub.UserID, sub.Plan, sub.Credits, sub.ReferenceID, sub.PaymentSlipURL)
	return n.send(text)
}

func (n *Notifier) PaymentApproved(_ context.Context, sub *models.PaymentSubmission) error {
	return n.send(fmt.Sprintf("Payment %s approved: +%d credits for %s", sub.ID, sub.Credits, sub.UserID))
}

func (n *Notifier) send(text string) error {
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}
