// Package bot is the Telegram front end: chats register domains by sending
// them as text or by adding the bot to a group titled with the domain.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v4"

	"github.com/hamed0406/domainwatch/internal/domain"
	"github.com/hamed0406/domainwatch/internal/monitor"
	"github.com/hamed0406/domainwatch/internal/repo"
)

const Welcome = "Welcome! To start monitoring a website, add this bot to a group with the website domain as the group title or send the domain directly to this bot.\n\n" +
	"/list shows what this chat monitors, /remove <domain> stops monitoring."

// Registrar is satisfied by *monitor.Service.
type Registrar interface {
	Register(ctx context.Context, raw, subscriberID string) (*domain.Endpoint, bool, error)
}

type Handler struct {
	Registrar Registrar
	Store     repo.EndpointStore
	Logger    *zap.Logger
	Clock     func() time.Time
	Timeout   time.Duration // per update
}

func NewHandler(reg Registrar, store repo.EndpointStore, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Registrar: reg,
		Store:     store,
		Logger:    logger,
		Clock:     func() time.Time { return time.Now().UTC() },
		Timeout:   10 * time.Second,
	}
}

func subscriber(chatID int64) string { return strconv.FormatInt(chatID, 10) }

// RegisterText treats text as a domain owned by chatID and returns the reply.
func (h *Handler) RegisterText(ctx context.Context, chatID int64, text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "/") {
		return "Unknown command. Try /help."
	}
	ep, created, err := h.Registrar.Register(ctx, text, subscriber(chatID))
	switch {
	case errors.Is(err, domain.ErrInvalidDomain):
		return fmt.Sprintf("%q is not a domain I can monitor. Send a bare host name like example.com.", text)
	case err != nil:
		h.Logger.Warn("bot_register_error", zap.Int64("chat_id", chatID), zap.Error(err))
		return "Could not save that domain right now, please try again later."
	case !created:
		return fmt.Sprintf("Already monitoring %s.", ep.Domain)
	default:
		return fmt.Sprintf("Monitoring started for %s.", ep.Domain)
	}
}

// AddedToGroup registers the group title as a domain. It returns "" when the
// title is not a valid domain so the bot stays quiet in ordinary groups.
func (h *Handler) AddedToGroup(ctx context.Context, chatID int64, title string) string {
	if _, err := domain.ValidateDomain(title); err != nil {
		h.Logger.Debug("bot_group_title_ignored", zap.Int64("chat_id", chatID), zap.String("title", title))
		return ""
	}
	return h.RegisterText(ctx, chatID, title)
}

// List describes every endpoint chatID owns.
func (h *Handler) List(ctx context.Context, chatID int64) string {
	eps, err := h.Store.ListBySubscriber(ctx, subscriber(chatID))
	if err != nil {
		h.Logger.Warn("bot_list_error", zap.Int64("chat_id", chatID), zap.Error(err))
		return "Could not load your domains right now."
	}
	if len(eps) == 0 {
		return "This chat is not monitoring any domains yet."
	}
	now := h.Clock()
	var b strings.Builder
	for i, ep := range eps {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(ep.Domain)
		b.WriteString(": ")
		b.WriteString(ep.Status.String())
		if ep.Status == domain.StatusDown && ep.DowntimeStart != nil {
			secs := int64(now.Sub(*ep.DowntimeStart) / time.Second)
			b.WriteString(" for ")
			b.WriteString(monitor.FormatDuration(secs))
		}
	}
	return b.String()
}

// Remove deletes name if chatID owns it.
func (h *Handler) Remove(ctx context.Context, chatID int64, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "Usage: /remove example.com"
	}
	ep, err := h.Store.Get(ctx, name)
	if err != nil {
		h.Logger.Warn("bot_remove_error", zap.Int64("chat_id", chatID), zap.Error(err))
		return "Could not remove that domain right now."
	}
	if ep == nil || ep.SubscriberID != subscriber(chatID) {
		return fmt.Sprintf("%s is not monitored by this chat.", name)
	}
	if err := h.Store.Delete(ctx, name); err != nil && !errors.Is(err, repo.ErrNotFound) {
		h.Logger.Warn("bot_remove_error", zap.Int64("chat_id", chatID), zap.Error(err))
		return "Could not remove that domain right now."
	}
	h.Logger.Info("endpoint_removed", zap.String("domain", name), zap.String("via", "telegram"))
	return fmt.Sprintf("Stopped monitoring %s.", name)
}

// Attach installs the command and message handlers on b. Handler contexts
// derive from base so a shutdown cancels in-flight store calls.
func (h *Handler) Attach(base context.Context, b *tele.Bot) {
	wrap := func(fn func(ctx context.Context, c tele.Context) string) tele.HandlerFunc {
		return func(c tele.Context) error {
			if c.Chat() == nil {
				return nil
			}
			ctx, cancel := context.WithTimeout(base, h.Timeout)
			defer cancel()
			reply := fn(ctx, c)
			if reply == "" {
				return nil
			}
			return c.Reply(reply, &tele.SendOptions{DisableWebPagePreview: true})
		}
	}

	welcome := wrap(func(context.Context, tele.Context) string { return Welcome })
	b.Handle("/start", welcome)
	b.Handle("/help", welcome)
	b.Handle("/list", wrap(func(ctx context.Context, c tele.Context) string {
		return h.List(ctx, c.Chat().ID)
	}))
	b.Handle("/remove", wrap(func(ctx context.Context, c tele.Context) string {
		return h.Remove(ctx, c.Chat().ID, c.Message().Payload)
	}))
	b.Handle(tele.OnText, wrap(func(ctx context.Context, c tele.Context) string {
		return h.RegisterText(ctx, c.Chat().ID, c.Text())
	}))
	b.Handle(tele.OnAddedToGroup, wrap(func(ctx context.Context, c tele.Context) string {
		return h.AddedToGroup(ctx, c.Chat().ID, c.Chat().Title)
	}))
}

// Run polls until ctx is cancelled.
func Run(ctx context.Context, b *tele.Bot, logger *zap.Logger) {
	go func() {
		<-ctx.Done()
		b.Stop()
	}()
	name := ""
	if b.Me != nil {
		name = b.Me.Username
	}
	logger.Info("bot_polling_started", zap.String("username", name))
	b.Start()
	logger.Info("bot_polling_stopped")
}
