// Package telegram adapts the Telegram Bot API to the chat package.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/FACorreiaa/ledger-bot/internal/chat"
)

// api is the subset of *tgbotapi.BotAPI the client needs.
type api interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Client implements chat.Messenger over the Bot API. The underlying library
// is not context aware, so ctx only bounds the update loop.
type Client struct {
	api    api
	logger *slog.Logger
}

// Timeouts bound Bot API calls. Poll is the long-poll duration requested
// from getUpdates; the HTTP deadline for that call adds pollSlack on top.
type Timeouts struct {
	Request time.Duration
	Poll    time.Duration
}

const (
	defaultRequestTimeout = 10 * time.Second
	pollSlack             = 10 * time.Second
)

// New authenticates with the Bot API and returns a client
func New(token string, timeouts Timeouts, logger *slog.Logger) (*Client, error) {
	httpClient := &http.Client{Transport: otelhttp.NewTransport(newDeadlineTransport(http.DefaultTransport, timeouts))}
	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}
	logger.Info("telegram bot authorized", slog.String("username", bot.Self.UserName))
	return newClient(bot, logger), nil
}

func newClient(a api, logger *slog.Logger) *Client {
	return &Client{api: a, logger: logger}
}

// deadlineTransport gives every Bot API request its own deadline, so a hung
// call cannot stall the dispatcher worker that issued it. getUpdates gets
// the long-poll duration plus slack, everything else the request timeout.
type deadlineTransport struct {
	next    http.RoundTripper
	request time.Duration
	poll    time.Duration
}

func newDeadlineTransport(next http.RoundTripper, t Timeouts) *deadlineTransport {
	if t.Request <= 0 {
		t.Request = defaultRequestTimeout
	}
	return &deadlineTransport{next: next, request: t.Request, poll: t.Poll + pollSlack}
}

func (t *deadlineTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	timeout := t.request
	if strings.HasSuffix(req.URL.Path, "/getUpdates") {
		timeout = t.poll
	}

	ctx, cancel := context.WithTimeout(req.Context(), timeout)
	resp, err := t.next.RoundTrip(req.WithContext(ctx))
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// cancelOnClose releases the request deadline once the body is consumed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

// DeleteWebhook removes any configured webhook so long polling can start.
func (c *Client) DeleteWebhook(_ context.Context) error {
	if _, err := c.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}
	return nil
}

// Updates long-polls for updates until ctx is cancelled. Updates that carry
// neither a text message nor a button press are dropped.
func (c *Client) Updates(ctx context.Context, pollTimeout int) <-chan chat.Update {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeout
	cfg.AllowedUpdates = []string{"message", "callback_query"}

	in := c.api.GetUpdatesChan(cfg)
	out := make(chan chat.Update)

	go func() {
		defer close(out)
		defer c.api.StopReceivingUpdates()

		for {
			select {
			case <-ctx.Done():
				return
			case u, ok := <-in:
				if !ok {
					return
				}
				update, ok := convertUpdate(u)
				if !ok {
					c.logger.Debug("ignoring update", slog.Int("update_id", u.UpdateID))
					continue
				}
				select {
				case out <- update:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

func (c *Client) Send(_ context.Context, chatID int64, text string, kb *chat.Keyboard) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	if !kb.Empty() {
		msg.ReplyMarkup = markup(kb)
	}
	sent, err := c.api.Send(msg)
	if err != nil {
		return 0, mapError(err)
	}
	return sent.MessageID, nil
}

func (c *Client) Reply(_ context.Context, chatID int64, replyTo int, text string) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = replyTo
	msg.AllowSendingWithoutReply = true
	sent, err := c.api.Send(msg)
	if err != nil {
		return 0, mapError(err)
	}
	return sent.MessageID, nil
}

func (c *Client) EditText(_ context.Context, chatID int64, messageID int, text string, kb *chat.Keyboard) error {
	var edit tgbotapi.EditMessageTextConfig
	if kb.Empty() {
		edit = tgbotapi.NewEditMessageText(chatID, messageID, text)
	} else {
		edit = tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, markup(kb))
	}
	_, err := c.api.Request(edit)
	return mapError(err)
}

func (c *Client) Delete(_ context.Context, chatID int64, messageID int) error {
	_, err := c.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID))
	return mapError(err)
}

func (c *Client) AnswerCallback(_ context.Context, callbackID, text string) error {
	_, err := c.api.Request(tgbotapi.NewCallback(callbackID, text))
	return mapError(err)
}

// markup converts a keyboard.
func markup(kb *chat.Keyboard) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0)
	if kb != nil {
		for _, row := range kb.Rows {
			buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
			for _, b := range row {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
			}
			rows = append(rows, buttons)
		}
	}
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// mapError translates Bot API failures about vanished messages into
// chat.ErrMessageGone and treats no-op edits as success.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return err
	}

	desc := strings.ToLower(apiErr.Message)
	switch {
	case strings.Contains(desc, "message is not modified"):
		return nil
	case strings.Contains(desc, "message to edit not found"),
		strings.Contains(desc, "message to delete not found"),
		strings.Contains(desc, "message can't be edited"),
		strings.Contains(desc, "message can't be deleted"):
		return fmt.Errorf("%w: %s", chat.ErrMessageGone, apiErr.Message)
	}
	return err
}

// convertUpdate maps a Bot API update onto a chat update.
func convertUpdate(u tgbotapi.Update) (chat.Update, bool) {
	switch {
	case u.Message != nil && u.Message.Chat != nil && u.Message.Text != "":
		m := u.Message
		return chat.Update{Message: &chat.Message{
			ID:         m.MessageID,
			ChatID:     m.Chat.ID,
			SenderName: senderName(m.From),
			Text:       m.Text,
		}}, true

	case u.CallbackQuery != nil && u.CallbackQuery.Message != nil && u.CallbackQuery.Message.Chat != nil:
		q := u.CallbackQuery
		return chat.Update{Callback: &chat.Callback{
			ID:         q.ID,
			ChatID:     q.Message.Chat.ID,
			MessageID:  q.Message.MessageID,
			SenderName: senderName(q.From),
			Data:       q.Data,
		}}, true
	}
	return chat.Update{}, false
}

func senderName(u *tgbotapi.User) string {
	if u == nil {
		return ""
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return u.UserName
}

var _ chat.Messenger = (*Client)(nil)
