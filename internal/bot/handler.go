// Package bot turns chat events into ledger operations: it parses
// transactions, drives the type menu, commits reports and runs the
// edit and delete conversations.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/ledger-bot/internal/chat"
	"github.com/FACorreiaa/ledger-bot/internal/domain/account"
	"github.com/FACorreiaa/ledger-bot/internal/domain/finance"
	"github.com/FACorreiaa/ledger-bot/internal/domain/ledger"
	"github.com/FACorreiaa/ledger-bot/internal/domain/ratelimit"
	"github.com/FACorreiaa/ledger-bot/internal/domain/session"
	"github.com/FACorreiaa/ledger-bot/internal/domain/txtype"
)

// Metrics receives event counters
type Metrics interface {
	IncUpdate(kind string)
	IncParseResult(result string)
	IncRateLimited(kind string)
	IncCommit(outcome string)
	SetTrackedUsers(n int)
}

// Services are the collaborators of a Handler
type Services struct {
	Messenger chat.Messenger
	Parser    *finance.Parser
	Accounts  *account.Resolver
	Catalog   *txtype.Catalog
	Selector  *txtype.Selector
	Sessions  *session.Store
	Limiter   *ratelimit.Limiter
	Ledger    *ledger.Ledger
	Metrics   Metrics
}

// Handler implements chat.Handler. Every failure is recovered inside the
// event that caused it.
type Handler struct {
	messenger chat.Messenger
	parser    *finance.Parser
	accounts  *account.Resolver
	catalog   *txtype.Catalog
	selector  *txtype.Selector
	sessions  *session.Store
	limiter   *ratelimit.Limiter
	ledger    *ledger.Ledger
	metrics   Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// NewHandler creates a handler
func NewHandler(s Services, logger *slog.Logger) *Handler {
	return &Handler{
		messenger: s.Messenger,
		parser:    s.Parser,
		accounts:  s.Accounts,
		catalog:   s.Catalog,
		selector:  s.Selector,
		sessions:  s.Sessions,
		limiter:   s.Limiter,
		ledger:    s.Ledger,
		metrics:   s.Metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// HandleMessage processes one inbound text message.
func (h *Handler) HandleMessage(ctx context.Context, msg chat.Message) {
	log := h.logger.With(
		slog.String("event_id", uuid.NewString()),
		slog.String("event", "message"),
		slog.Int64("chat_id", msg.ChatID),
	)
	h.metrics.IncUpdate("message")
	defer h.metrics.SetTrackedUsers(h.sessions.Len())

	if !h.limiter.Allow(msg.ChatID) {
		h.metrics.IncRateLimited("message")
		log.Warn("rate limited")
		h.reply(ctx, log, msg, msgRateLimited)
		return
	}

	if name, args, ok := msg.Command(); ok {
		h.handleCommand(ctx, log.With(slog.String("command", name)), msg, name, args)
		return
	}

	// a pending filter prompt consumes the next text
	if h.selector.AwaitingFilter(msg.ChatID) {
		if err := h.selector.ApplyFilter(ctx, msg.ChatID, msg.Text); err != nil {
			log.Error("type filter failed", slog.Any("error", err))
			h.reply(ctx, log, msg, msgGenericFailure)
		}
		return
	}

	if edit, ok := h.sessions.EditSession(msg.ChatID); ok {
		h.continueEdit(ctx, log, msg, edit)
		return
	}

	h.handleTransaction(ctx, log, msg)
}

// HandleCallback processes one inline button press.
func (h *Handler) HandleCallback(ctx context.Context, cb chat.Callback) {
	log := h.logger.With(
		slog.String("event_id", uuid.NewString()),
		slog.String("event", "callback"),
		slog.Int64("chat_id", cb.ChatID),
	)
	h.metrics.IncUpdate("callback")
	defer h.metrics.SetTrackedUsers(h.sessions.Len())

	if !h.limiter.Allow(cb.ChatID) {
		h.metrics.IncRateLimited("callback")
		log.Warn("rate limited")
		h.answer(ctx, log, cb, msgRateLimitedToast)
		return
	}

	action := txtype.ParseCallback(cb.Data)
	outcome, err := h.selector.HandleCallback(ctx, cb.ChatID, action)
	if err != nil {
		log.Error("type menu callback failed", slog.Any("error", err))
		h.answer(ctx, log, cb, "")
		h.send(ctx, log, cb.ChatID, msgGenericFailure)
		return
	}
	h.answer(ctx, log, cb, outcome.Toast)

	// an open filter prompt takes over the next message from an edit
	if action.Action == txtype.ActionFilter && h.selector.AwaitingFilter(cb.ChatID) {
		h.sessions.ClearEdit(cb.ChatID)
	}

	if outcome.Kind != txtype.OutcomeSelected {
		return
	}

	log.Info("type selected", slog.String("type", outcome.Option.Name))
	pending, ok := h.sessions.Pending(cb.ChatID)
	if !ok {
		h.send(ctx, log, cb.ChatID, msgTypeKept)
		return
	}
	h.commit(ctx, log, cb.ChatID, 0, pending, &outcome.Option)
}

// handleTransaction parses a message and either parks it behind the type
// menu or, when a type was chosen in advance, commits it at once. A new
// transaction replaces any earlier pending one.
func (h *Handler) handleTransaction(ctx context.Context, log *slog.Logger, msg chat.Message) {
	tx, err := h.parser.Parse(msg.Text)
	if err != nil {
		h.metrics.IncParseResult("incomplete")
		log.Info("message rejected", slog.Any("error", err))
		h.reply(ctx, log, msg, rejectionText(err))
		return
	}
	h.metrics.IncParseResult("complete")

	pending := session.Pending{
		Transaction: tx,
		UserName:    msg.SenderName,
		CapturedAt:  h.now(),
	}

	if selected, ok := h.selector.Selected(msg.ChatID); ok {
		h.commit(ctx, log, msg.ChatID, msg.ID, pending, &selected)
		return
	}

	if _, superseded := h.sessions.Pending(msg.ChatID); superseded {
		log.Info("pending transaction replaced")
	}
	h.sessions.SetPending(msg.ChatID, pending)

	switch err := h.selector.Open(ctx, msg.ChatID); {
	case err == nil:
	case errors.Is(err, txtype.ErrEmptyCatalog):
		h.commit(ctx, log, msg.ChatID, msg.ID, pending, nil)
	default:
		log.Error("failed to open type menu", slog.Any("error", err))
		h.reply(ctx, log, msg, msgTypesUnavailable)
	}
}

// commit resolves the counterpart, writes the report and reports back.
// The pending transaction and the type session are cleared whatever the
// outcome.
func (h *Handler) commit(ctx context.Context, log *slog.Logger, chatID int64, replyTo int, p session.Pending, typ *txtype.Option) {
	defer func() {
		h.sessions.ClearPending(chatID)
		h.selector.Clear(chatID)
	}()

	tx := p.Transaction
	entry := ledger.Entry{
		Date:        h.now(),
		Description: tx.Description,
		Amount:      tx.Amount.Decimal,
		Currency:    tx.Currency,
		UserName:    p.UserName,
	}
	if typ != nil {
		entry.TypeID = typ.ID
	}

	var notices []string
	if tx.HasCounterpart() {
		if id, ok := h.accounts.Resolve(ctx, tx.CounterpartName); ok {
			entry.AccountID = id
		} else {
			entry.Description = tx.Description + " (Акаунт: " + tx.CounterpartName + ")"
			notices = append(notices, fmt.Sprintf(msgAccountMiss, tx.CounterpartName))
		}
	}

	id, err := h.ledger.Create(ctx, entry)
	if err != nil {
		h.metrics.IncCommit("failed")
		log.Error("failed to create report", slog.Any("error", err))
		h.sendOrReply(ctx, log, chatID, replyTo, msgSaveFailed)
		return
	}

	h.metrics.IncCommit("created")
	h.sessions.AppendHistory(chatID, id)
	log.Info("transaction committed", slog.String("record_id", id))

	for _, n := range notices {
		h.sendOrReply(ctx, log, chatID, replyTo, n)
	}
	h.sendOrReply(ctx, log, chatID, replyTo, msgSaved)
}

func (h *Handler) reply(ctx context.Context, log *slog.Logger, msg chat.Message, text string) {
	h.sendOrReply(ctx, log, msg.ChatID, msg.ID, text)
}

func (h *Handler) send(ctx context.Context, log *slog.Logger, chatID int64, text string) {
	h.sendOrReply(ctx, log, chatID, 0, text)
}

// sendOrReply quotes replyTo when set. Delivery failures are logged only.
func (h *Handler) sendOrReply(ctx context.Context, log *slog.Logger, chatID int64, replyTo int, text string) {
	var err error
	if replyTo != 0 {
		_, err = h.messenger.Reply(ctx, chatID, replyTo, text)
	} else {
		_, err = h.messenger.Send(ctx, chatID, text, nil)
	}
	if err != nil {
		log.Warn("failed to send message", slog.Any("error", err))
	}
}

func (h *Handler) answer(ctx context.Context, log *slog.Logger, cb chat.Callback, text string) {
	if err := h.messenger.AnswerCallback(ctx, cb.ID, text); err != nil {
		log.Warn("failed to answer callback", slog.Any("error", err))
	}
}

var _ chat.Handler = (*Handler)(nil)
