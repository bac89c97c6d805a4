// Package notify delivers engine events to people: admin alerts about
// suspicious accounts and nudges to referred friends.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	telebot "gopkg.in/telebot.v3"

	apperrors "github.com/Proton-105/tapcoin-engine/internal/errors"
	"github.com/Proton-105/tapcoin-engine/internal/i18n"
)

// SuspiciousEvent describes an account that just crossed the anti-cheat threshold.
type SuspiciousEvent struct {
	AccountID int64
	Username  string
	MeanMS    int64
}

// Notifier is the outbound notification channel used by the engine.
type Notifier interface {
	SuspiciousActivity(ctx context.Context, ev SuspiciousEvent) error
	ReferralNudge(ctx context.Context, to int64, fromName string) error
}

// Nop discards every notification.
type Nop struct{}

func (Nop) SuspiciousActivity(context.Context, SuspiciousEvent) error { return nil }
func (Nop) ReferralNudge(context.Context, int64, string) error         { return nil }

// Sender is the part of *telebot.Bot used to deliver messages.
type Sender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// TelegramNotifier sends notifications through the Telegram Bot API behind a
// circuit breaker.
type TelegramNotifier struct {
	sender      Sender
	adminChatID int64
	tr          i18n.Translator
	breaker     *apperrors.CircuitBreaker
	log         *slog.Logger
}

var _ Notifier = (*TelegramNotifier)(nil)

func NewTelegramNotifier(sender Sender, adminChatID int64, tr i18n.Translator, breaker *apperrors.CircuitBreaker, log *slog.Logger) *TelegramNotifier {
	if log == nil {
		log = slog.Default()
	}
	if breaker == nil {
		breaker = apperrors.NewCircuitBreaker("telegram")
	}
	return &TelegramNotifier{
		sender:      sender,
		adminChatID: adminChatID,
		tr:          tr,
		breaker:     breaker,
		log:         log,
	}
}

// NewBot creates a telebot client that is only used for sending.
func NewBot(token string) (*telebot.Bot, error) {
	bot, err := telebot.NewBot(telebot.Settings{Token: token, Synchronous: true})
	if err != nil {
		return nil, fmt.Errorf("initialize telebot: %w", err)
	}
	return bot, nil
}

func (n *TelegramNotifier) SuspiciousActivity(ctx context.Context, ev SuspiciousEvent) error {
	if n.adminChatID == 0 {
		n.log.Warn("suspicious activity with no admin chat configured", slog.Int64("account_id", ev.AccountID))
		return nil
	}

	text := n.tr.Format("notify.suspicious", map[string]string{
		"id":       strconv.FormatInt(ev.AccountID, 10),
		"username": ev.Username,
		"mean":     strconv.FormatInt(ev.MeanMS, 10),
	})
	return n.send(ctx, n.adminChatID, text)
}

func (n *TelegramNotifier) ReferralNudge(ctx context.Context, to int64, fromName string) error {
	text := n.tr.Format("notify.nudge", map[string]string{"name": fromName})
	return n.send(ctx, to, text)
}

func (n *TelegramNotifier) send(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := n.breaker.Call(func() error {
		_, err := n.sender.Send(telebot.ChatID(chatID), text)
		return err
	})
	if err != nil {
		n.log.Error("failed to send telegram notification",
			slog.Int64("chat_id", chatID),
			slog.String("breaker_state", n.breaker.State().String()),
			slog.Any("error", err),
		)
		return apperrors.NewExternalAPIError("telegram", err)
	}
	return nil
}
