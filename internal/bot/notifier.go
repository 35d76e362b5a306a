package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"rotinas/internal/service"
)

// API is the subset of tgbotapi.BotAPI used to talk to a chat.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Notifier shows reminder notifications as chat messages with inline action
// buttons. Showing an id again replaces the previous message.
type Notifier struct {
	api    API
	chatID int64
	log    *zap.Logger

	mu       sync.Mutex
	messages map[int64]int
}

func NewNotifier(api API, chatID int64, log *zap.Logger) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{
		api:      api,
		chatID:   chatID,
		log:      log.Named("notifier"),
		messages: make(map[int64]int),
	}
}

func (n *Notifier) Show(ctx context.Context, notification service.Notification) error {
	if err := n.Dismiss(ctx, notification.ID); err != nil {
		n.log.Warn("replace notification", zap.Int64("notification_id", notification.ID), zap.Error(err))
	}

	msg := tgbotapi.NewMessage(n.chatID, notificationText(notification))
	msg.ParseMode = tgbotapi.ModeHTML
	if kb := actionKeyboard(notification.Actions); kb != nil {
		msg.ReplyMarkup = *kb
	}
	sent, err := n.api.Send(msg)
	if err != nil {
		return fmt.Errorf("send notification %d: %w", notification.ID, err)
	}

	n.mu.Lock()
	n.messages[notification.ID] = sent.MessageID
	n.mu.Unlock()
	return nil
}

// Dismiss deletes the message of a shown notification. Unknown ids are ignored.
func (n *Notifier) Dismiss(_ context.Context, id int64) error {
	n.mu.Lock()
	messageID, ok := n.messages[id]
	delete(n.messages, id)
	n.mu.Unlock()
	if !ok {
		return nil
	}

	if _, err := n.api.Request(tgbotapi.NewDeleteMessage(n.chatID, messageID)); err != nil {
		return fmt.Errorf("delete notification %d: %w", id, err)
	}
	return nil
}

func notificationText(n service.Notification) string {
	var b strings.Builder
	b.WriteString("🔔 <b>")
	b.WriteString(escape(normalizeTitle(n.Title)))
	b.WriteString("</b>")
	if body := strings.TrimSpace(n.Body); body != "" {
		b.WriteString("\n")
		b.WriteString(escape(body))
	}
	return b.String()
}

// actionKeyboard puts snooze presets three per row and every other action on
// its own row.
func actionKeyboard(actions []service.Action) *tgbotapi.InlineKeyboardMarkup {
	if len(actions) == 0 {
		return nil
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	var snoozes []tgbotapi.InlineKeyboardButton
	for _, a := range actions {
		button := tgbotapi.NewInlineKeyboardButtonData(a.Label, a.Data())
		if a.Kind == service.ActionSnooze {
			snoozes = append(snoozes, button)
			if len(snoozes) == 3 {
				rows = append(rows, snoozes)
				snoozes = nil
			}
			continue
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(button))
	}
	if len(snoozes) > 0 {
		rows = append(rows, snoozes)
	}

	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}
