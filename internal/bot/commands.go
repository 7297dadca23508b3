package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/FACorreiaa/ledger-bot/internal/chat"
	"github.com/FACorreiaa/ledger-bot/internal/domain/session"
	"github.com/FACorreiaa/ledger-bot/internal/domain/txtype"
)

func (h *Handler) handleCommand(ctx context.Context, log *slog.Logger, msg chat.Message, name, args string) {
	switch name {
	case "start", "help":
		h.reply(ctx, log, msg, msgHelp)
	case "settype":
		h.openTypeMenu(ctx, log, msg)
	case "refreshtypes":
		h.refreshTypes(ctx, log, msg)
	case "edit":
		if args == "" {
			h.listRecords(ctx, log, msg, msgNoRecordsEdit, msgPickEdit)
			return
		}
		h.startEdit(ctx, log, msg, args)
	case "delete":
		if args == "" {
			h.listRecords(ctx, log, msg, msgNoRecordsDelete, msgPickDelete)
			return
		}
		h.deleteRecord(ctx, log, msg, args)
	default:
		h.reply(ctx, log, msg, msgUnknownCommand+"\n\n"+msgHelp)
	}
}

func (h *Handler) openTypeMenu(ctx context.Context, log *slog.Logger, msg chat.Message) {
	switch err := h.selector.Open(ctx, msg.ChatID); {
	case err == nil:
	case errors.Is(err, txtype.ErrEmptyCatalog):
		h.reply(ctx, log, msg, msgNoTypes)
	default:
		log.Error("failed to open type menu", slog.Any("error", err))
		h.reply(ctx, log, msg, msgGenericFailure)
	}
}

func (h *Handler) refreshTypes(ctx context.Context, log *slog.Logger, msg chat.Message) {
	h.catalog.Invalidate()
	opts, err := h.catalog.Get(ctx)
	if err != nil {
		log.Error("type catalog refresh failed", slog.Any("error", err))
		h.reply(ctx, log, msg, msgGenericFailure)
		return
	}
	h.reply(ctx, log, msg, fmt.Sprintf(msgTypesReloaded, len(opts)))
}

// listRecords shows the user's history with amounts, descriptions and
// account names fetched from the store.
func (h *Handler) listRecords(ctx context.Context, log *slog.Logger, msg chat.Message, empty, footer string) {
	history := h.sessions.History(msg.ChatID)
	if len(history) == 0 {
		h.reply(ctx, log, msg, empty)
		return
	}

	var b strings.Builder
	b.WriteString(msgRecordsHeader)
	for i, id := range history {
		summary, err := h.ledger.Get(ctx, id)
		if err != nil {
			log.Warn("failed to fetch report", slog.String("record_id", id), slog.Any("error", err))
			fmt.Fprintf(&b, msgRecordMissing, i+1)
			continue
		}

		accountName := ""
		if len(summary.AccountIDs) > 0 {
			accountName = h.accounts.Name(ctx, summary.AccountIDs[0])
		}
		if accountName == "" {
			accountName = msgUnknownAccount
		}
		fmt.Fprintf(&b, msgRecordLine, i+1, summary.AmountText(), summary.Description, accountName)
	}
	b.WriteString(footer)

	h.reply(ctx, log, msg, b.String())
}

// recordAt maps a 1-based index argument onto the user's history.
func (h *Handler) recordAt(chatID int64, arg string) (string, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	history := h.sessions.History(chatID)
	if err != nil || n < 1 || n > len(history) {
		return "", false
	}
	return history[n-1], true
}

func (h *Handler) startEdit(ctx context.Context, log *slog.Logger, msg chat.Message, arg string) {
	id, ok := h.recordAt(msg.ChatID, arg)
	if !ok {
		h.reply(ctx, log, msg, msgInvalidIndex)
		return
	}
	// the edit conversation takes over the next messages
	h.selector.CancelFilter(msg.ChatID)
	h.sessions.SetEdit(msg.ChatID, session.Edit{RecordID: id})
	log.Info("edit started", slog.String("record_id", id))
	h.reply(ctx, log, msg, msgAskField)
}

func (h *Handler) deleteRecord(ctx context.Context, log *slog.Logger, msg chat.Message, arg string) {
	id, ok := h.recordAt(msg.ChatID, arg)
	if !ok {
		h.reply(ctx, log, msg, msgInvalidIndex)
		return
	}

	if err := h.ledger.Delete(ctx, id); err != nil {
		log.Error("failed to delete report", slog.String("record_id", id), slog.Any("error", err))
		h.reply(ctx, log, msg, msgDeleteFailed)
		return
	}
	h.sessions.RemoveHistory(msg.ChatID, id)
	h.reply(ctx, log, msg, msgDeleted)
}
