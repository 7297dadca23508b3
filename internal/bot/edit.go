package bot

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/FACorreiaa/ledger-bot/internal/chat"
	"github.com/FACorreiaa/ledger-bot/internal/domain/account"
	"github.com/FACorreiaa/ledger-bot/internal/domain/finance"
	"github.com/FACorreiaa/ledger-bot/internal/domain/session"
)

// editFieldNames accepts the Cyrillic field names and their Latin spellings.
var editFieldNames = map[string]session.EditField{
	"описание":    session.EditDescription,
	"opisanie":    session.EditDescription,
	"description": session.EditDescription,
	"сума":        session.EditAmount,
	"suma":        session.EditAmount,
	"amount":      session.EditAmount,
	"акаунт":      session.EditAccount,
	"akaunt":      session.EditAccount,
	"account":     session.EditAccount,
}

var editPrompts = map[session.EditField]string{
	session.EditDescription: msgAskDescription,
	session.EditAmount:      msgAskAmount,
	session.EditAccount:     msgAskAccount,
}

// continueEdit advances the edit conversation by one message: first the
// field choice, then the new value. Invalid input re-prompts and keeps the
// session; an update attempt ends it.
func (h *Handler) continueEdit(ctx context.Context, log *slog.Logger, msg chat.Message, edit session.Edit) {
	log = log.With(slog.String("record_id", edit.RecordID))

	if edit.Field == session.EditNone {
		field, ok := editFieldNames[strings.ToLower(strings.TrimSpace(msg.Text))]
		if !ok {
			h.reply(ctx, log, msg, msgAskFieldAgain)
			return
		}
		edit.Field = field
		h.sessions.SetEdit(msg.ChatID, edit)
		h.reply(ctx, log, msg, editPrompts[field])
		return
	}

	switch edit.Field {
	case session.EditDescription:
		h.editDescription(ctx, log, msg, edit)
	case session.EditAmount:
		h.editAmount(ctx, log, msg, edit)
	case session.EditAccount:
		h.editAccount(ctx, log, msg, edit)
	default:
		h.sessions.ClearEdit(msg.ChatID)
	}
}

func (h *Handler) editDescription(ctx context.Context, log *slog.Logger, msg chat.Message, edit session.Edit) {
	description := strings.TrimSpace(msg.Text)
	if description == "" {
		h.reply(ctx, log, msg, msgEmptyDescription)
		return
	}

	h.sessions.ClearEdit(msg.ChatID)
	if err := h.ledger.UpdateDescription(ctx, edit.RecordID, description); err != nil {
		log.Error("failed to update description", slog.Any("error", err))
		h.reply(ctx, log, msg, msgEditFailed)
		return
	}
	h.reply(ctx, log, msg, msgDescriptionEdited)
}

func (h *Handler) editAmount(ctx context.Context, log *slog.Logger, msg chat.Message, edit session.Edit) {
	amount, currency, err := finance.ParseMoney(msg.Text)
	if err != nil {
		h.reply(ctx, log, msg, msgInvalidAmount)
		return
	}

	h.sessions.ClearEdit(msg.ChatID)
	if err := h.ledger.UpdateAmount(ctx, edit.RecordID, amount, currency); err != nil {
		log.Error("failed to update amount", slog.Any("error", err))
		h.reply(ctx, log, msg, msgEditFailed)
		return
	}
	h.reply(ctx, log, msg, msgAmountEdited)
}

func (h *Handler) editAccount(ctx context.Context, log *slog.Logger, msg chat.Message, edit session.Edit) {
	h.sessions.ClearEdit(msg.ChatID)

	accountID, err := h.accounts.Lookup(ctx, msg.Text)
	switch {
	case errors.Is(err, account.ErrNotFound), errors.Is(err, account.ErrUnsearchable):
		h.reply(ctx, log, msg, msgAccountNotFound)
		return
	case err != nil:
		log.Error("account lookup failed", slog.Any("error", err))
		h.reply(ctx, log, msg, msgAccountLookupFail)
		return
	}

	if err := h.ledger.UpdateAccount(ctx, edit.RecordID, accountID); err != nil {
		log.Error("failed to update account", slog.Any("error", err))
		h.reply(ctx, log, msg, msgEditFailed)
		return
	}
	h.reply(ctx, log, msg, msgAccountEdited)
}
