// Package chattest provides an in-memory chat.Messenger for tests.
package chattest

import (
	"context"
	"sync"

	"github.com/FACorreiaa/ledger-bot/internal/chat"
)

// Op names a recorded messenger call.
type Op string

const (
	OpSend     Op = "send"
	OpReply    Op = "reply"
	OpEditText Op = "edit_text"
	OpDelete   Op = "delete"
	OpAnswer   Op = "answer"
)

// Call is one recorded messenger call
type Call struct {
	Op         Op
	ChatID     int64
	MessageID  int // assigned id for sends, target id otherwise
	Text       string
	Keyboard   *chat.Keyboard
	CallbackID string
}

// Recorder records every call and hands out increasing message ids.
// Errors can be injected per operation.
type Recorder struct {
	mu     sync.Mutex
	nextID int
	calls  []Call
	fail   map[Op]error
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{nextID: 100, fail: make(map[Op]error)}
}

// FailOn makes every subsequent call of op return err; nil clears it.
func (r *Recorder) FailOn(op Op, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.fail, op)
		return
	}
	r.fail[op] = err
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// CallsOf returns the recorded calls of one kind.
func (r *Recorder) CallsOf(op Op) []Call {
	var out []Call
	for _, c := range r.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Last returns the most recent call of op, or a zero Call.
func (r *Recorder) Last(op Op) Call {
	calls := r.CallsOf(op)
	if len(calls) == 0 {
		return Call{}
	}
	return calls[len(calls)-1]
}

// Texts returns the text of every send and reply, in order.
func (r *Recorder) Texts() []string {
	var out []string
	for _, c := range r.Calls() {
		if c.Op == OpSend || c.Op == OpReply {
			out = append(out, c.Text)
		}
	}
	return out
}

// Reset forgets recorded calls.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

func (r *Recorder) record(c Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail[c.Op]; err != nil {
		return err
	}
	r.calls = append(r.calls, c)
	return nil
}

func (r *Recorder) newID() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	return r.nextID
}

func (r *Recorder) Send(_ context.Context, chatID int64, text string, kb *chat.Keyboard) (int, error) {
	id := r.newID()
	if err := r.record(Call{Op: OpSend, ChatID: chatID, MessageID: id, Text: text, Keyboard: kb}); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *Recorder) Reply(_ context.Context, chatID int64, _ int, text string) (int, error) {
	id := r.newID()
	if err := r.record(Call{Op: OpReply, ChatID: chatID, MessageID: id, Text: text}); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *Recorder) EditText(_ context.Context, chatID int64, messageID int, text string, kb *chat.Keyboard) error {
	return r.record(Call{Op: OpEditText, ChatID: chatID, MessageID: messageID, Text: text, Keyboard: kb})
}

func (r *Recorder) Delete(_ context.Context, chatID int64, messageID int) error {
	return r.record(Call{Op: OpDelete, ChatID: chatID, MessageID: messageID})
}

func (r *Recorder) AnswerCallback(_ context.Context, callbackID, text string) error {
	return r.record(Call{Op: OpAnswer, CallbackID: callbackID, Text: text})
}

var _ chat.Messenger = (*Recorder)(nil)
