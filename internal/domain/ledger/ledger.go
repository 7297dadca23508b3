// Package ledger writes transaction reports to the remote report table.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/ledger-bot/internal/domain/finance"
	"github.com/FACorreiaa/ledger-bot/pkg/money"
	"github.com/FACorreiaa/ledger-bot/pkg/store"
)

// Report table columns
const (
	FieldDate        = "Дата"
	FieldDescription = "Описание"
	FieldCurrency    = "Валута"
	FieldType        = "ВИД"
	FieldAccount     = "Акаунт"
	FieldUserName    = "Име на потребителя"
)

// DateLayout is the format of the date column.
const DateLayout = time.DateTime

// ErrUnknownCurrency is returned for a currency without an amount column.
var ErrUnknownCurrency = errors.New("no amount column for currency")

// amountFields routes an amount to its currency column; a record carries
// one amount column rather than an amount+currency pair.
var amountFields = map[finance.Currency]string{
	finance.BGN: "Сума (лв.)",
	finance.EUR: "Сума (EUR)",
	finance.GBP: "Сума (GBP)",
	finance.USD: "Сума (USD)",
}

// AmountField returns the column holding amounts in currency.
func AmountField(currency finance.Currency) (string, error) {
	field, ok := amountFields[currency]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownCurrency, currency)
	}
	return field, nil
}

// Entry is a report to create
type Entry struct {
	Date        time.Time
	Description string
	Amount      decimal.Decimal
	Currency    finance.Currency
	UserName    string
	TypeID      string // optional catalog record id
	AccountID   string // optional directory record id
}

// Summary is a stored report as shown to its author
type Summary struct {
	ID          string
	Date        string
	Description string
	Amount      decimal.Decimal
	Currency    finance.Currency
	AccountIDs  []string
}

// AmountText formats the amount with its currency symbol.
func (s Summary) AmountText() string {
	if !s.Currency.Known() {
		return s.Amount.StringFixed(2)
	}
	return money.Format(s.Amount, string(s.Currency))
}

// Ledger is the record mutation facade over the report table
type Ledger struct {
	store  store.Store
	table  string
	logger *slog.Logger
}

// New creates a ledger over table
func New(s store.Store, table string, logger *slog.Logger) *Ledger {
	return &Ledger{store: s, table: table, logger: logger}
}

// Create submits a report and returns its record id.
func (l *Ledger) Create(ctx context.Context, e Entry) (string, error) {
	amountField, err := AmountField(e.Currency)
	if err != nil {
		return "", err
	}

	date := e.Date
	if date.IsZero() {
		date = time.Now()
	}
	amount := money.NewFromDecimal(e.Amount, string(e.Currency))

	fields := store.Fields{
		FieldDate:        date.Format(DateLayout),
		FieldDescription: finance.Truncate(e.Description, finance.MaxDescriptionLength),
		amountField:      amount.ToFloat64(),
		FieldCurrency:    string(e.Currency),
		FieldUserName:    e.UserName,
	}
	if e.TypeID != "" {
		fields[FieldType] = []string{e.TypeID}
	}
	if e.AccountID != "" {
		fields[FieldAccount] = []string{e.AccountID}
	}

	id, err := l.store.Create(ctx, l.table, fields)
	if err != nil {
		return "", fmt.Errorf("create report: %w", err)
	}

	l.logger.Info("report created",
		slog.String("record_id", id),
		slog.String("amount", amount.String()),
		slog.String("currency", amount.Currency()),
		slog.Bool("expense", amount.IsNegative()),
		slog.Bool("has_account", e.AccountID != ""),
		slog.Bool("has_type", e.TypeID != ""),
	)
	return id, nil
}

// Get fetches a report summary.
func (l *Ledger) Get(ctx context.Context, id string) (Summary, error) {
	rec, err := l.store.Get(ctx, l.table, id)
	if err != nil {
		return Summary{}, fmt.Errorf("get report %s: %w", id, err)
	}
	return summarize(rec), nil
}

// UpdateDescription replaces the description.
func (l *Ledger) UpdateDescription(ctx context.Context, id, description string) error {
	description = strings.TrimSpace(description)
	return l.update(ctx, id, store.Fields{
		FieldDescription: finance.Truncate(description, finance.MaxDescriptionLength),
	})
}

// UpdateAmount writes amount, rounded to the currency's minor unit, to its
// currency column, sets the currency code and clears every other amount
// column.
func (l *Ledger) UpdateAmount(ctx context.Context, id string, amount decimal.Decimal, currency finance.Currency) error {
	field, err := AmountField(currency)
	if err != nil {
		return err
	}

	fields := store.Fields{FieldCurrency: string(currency)}
	for c, f := range amountFields {
		if c != currency {
			fields[f] = nil
		}
	}
	fields[field] = money.NewFromDecimal(amount, string(currency)).ToFloat64()

	return l.update(ctx, id, fields)
}

// UpdateAccount replaces the account link.
func (l *Ledger) UpdateAccount(ctx context.Context, id, accountID string) error {
	return l.update(ctx, id, store.Fields{FieldAccount: []string{accountID}})
}

// Delete removes a report.
func (l *Ledger) Delete(ctx context.Context, id string) error {
	if err := l.store.Delete(ctx, l.table, id); err != nil {
		return fmt.Errorf("delete report %s: %w", id, err)
	}
	l.logger.Info("report deleted", slog.String("record_id", id))
	return nil
}

func (l *Ledger) update(ctx context.Context, id string, fields store.Fields) error {
	if err := l.store.Update(ctx, l.table, id, fields); err != nil {
		return fmt.Errorf("update report %s: %w", id, err)
	}
	l.logger.Info("report updated", slog.String("record_id", id), slog.Int("fields", len(fields)))
	return nil
}

func summarize(rec *store.Record) Summary {
	s := Summary{
		ID:          rec.ID,
		Date:        rec.Fields.String(FieldDate),
		Description: rec.Fields.String(FieldDescription),
		Currency:    finance.Currency(rec.Fields.String(FieldCurrency)),
		AccountIDs:  rec.Fields.Links(FieldAccount),
	}

	// prefer the column of the recorded currency, else the first filled one
	order := finance.Currencies
	if s.Currency.Known() {
		order = append([]finance.Currency{s.Currency}, order...)
	}
	for _, c := range order {
		if v, ok := rec.Fields.Float(amountFields[c]); ok {
			s.Amount = money.NewFromFloat(v, string(c)).ToDecimal()
			s.Currency = c
			break
		}
	}
	return s
}
