// Package chat defines the transport-neutral chat model the bot talks to:
// inbound messages and callbacks, outbound operations and inline keyboards.
package chat

import (
	"context"
	"errors"
	"strings"
)

// MaxCallbackData is the largest callback payload the transport accepts, in bytes.
const MaxCallbackData = 64

// ErrMessageGone is returned when an edit or delete targets a message that
// no longer exists or can no longer be changed.
var ErrMessageGone = errors.New("message no longer exists")

// Message is an inbound text message
type Message struct {
	ID         int
	ChatID     int64
	SenderName string
	Text       string
}

// Command returns the bot command ("/edit 2" → "edit", "2") and its
// argument text. ok is false for plain text.
func (m Message) Command() (name, args string, ok bool) {
	text := strings.TrimSpace(m.Text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	head, rest, _ := strings.Cut(text[1:], " ")
	// "/edit@ledger_bot" addresses a specific bot in group chats
	name, _, _ = strings.Cut(head, "@")
	return strings.ToLower(name), strings.TrimSpace(rest), name != ""
}

// Callback is an inline-button press
type Callback struct {
	ID         string
	ChatID     int64
	MessageID  int // message carrying the pressed button
	SenderName string
	Data       string
}

// Button is one inline keyboard button
type Button struct {
	Text string
	Data string
}

// Keyboard is an inline keyboard laid out in rows
type Keyboard struct {
	Rows [][]Button
}

// Row appends a row of buttons; empty rows are skipped.
func (k *Keyboard) Row(buttons ...Button) *Keyboard {
	if len(buttons) > 0 {
		k.Rows = append(k.Rows, buttons)
	}
	return k
}

// Grid appends buttons perRow at a time.
func (k *Keyboard) Grid(perRow int, buttons ...Button) *Keyboard {
	if perRow <= 0 {
		perRow = 1
	}
	for start := 0; start < len(buttons); start += perRow {
		end := min(start+perRow, len(buttons))
		k.Row(buttons[start:end]...)
	}
	return k
}

// Empty reports whether the keyboard has no buttons.
func (k *Keyboard) Empty() bool {
	return k == nil || len(k.Rows) == 0
}

// Messenger sends outbound chat operations
type Messenger interface {
	// Send posts a message and returns its id. kb may be nil.
	Send(ctx context.Context, chatID int64, text string, kb *Keyboard) (int, error)

	// Reply posts a message quoting replyTo.
	Reply(ctx context.Context, chatID int64, replyTo int, text string) (int, error)

	// EditText replaces the text (and keyboard, nil removes it) of a message.
	EditText(ctx context.Context, chatID int64, messageID int, text string, kb *Keyboard) error

	// Delete removes a message.
	Delete(ctx context.Context, chatID int64, messageID int) error

	// AnswerCallback acknowledges a button press with an optional toast.
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// Handler processes inbound events
type Handler interface {
	HandleMessage(ctx context.Context, msg Message)
	HandleCallback(ctx context.Context, cb Callback)
}
