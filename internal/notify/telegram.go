package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Sender is the part of *tele.Bot the notifier needs.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Telegram delivers to the chat whose numeric ID is the subscriber ID.
type Telegram struct {
	Bot Sender
}

func NewTelegram(bot Sender) *Telegram {
	return &Telegram{Bot: bot}
}

func (t *Telegram) Notify(ctx context.Context, subscriberID, text string) error {
	chatID, err := strconv.ParseInt(strings.TrimSpace(subscriberID), 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: subscriber %q is not a chat id: %w", subscriberID, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := t.Bot.Send(tele.ChatID(chatID), text, &tele.SendOptions{DisableWebPagePreview: true}); err != nil {
		return fmt.Errorf("telegram send to %d: %w", chatID, err)
	}
	return nil
}
