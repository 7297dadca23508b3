// Package account resolves free-text counterpart names against the account
// directory.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/FACorreiaa/ledger-bot/internal/domain/finance"
	"github.com/FACorreiaa/ledger-bot/pkg/store"
)

// MaxTokens bounds the conjunctive query built from one name.
const MaxTokens = 10

// DefaultSearchField is the searchable name column of the directory.
const DefaultSearchField = "REG"

var (
	// ErrNotFound means the directory has no entry matching every token.
	ErrNotFound = errors.New("account not found")
	// ErrUnsearchable means the name normalizes to zero or too many tokens.
	ErrUnsearchable = errors.New("account name is not searchable")
)

// Resolver looks up account ids by name
type Resolver struct {
	store  store.Store
	table  string
	field  string
	logger *slog.Logger
}

// NewResolver creates a resolver over the given directory table
func NewResolver(s store.Store, table string, logger *slog.Logger) *Resolver {
	return &Resolver{
		store:  s,
		table:  table,
		field:  DefaultSearchField,
		logger: logger,
	}
}

// Tokens normalizes a raw name into its search keywords.
func Tokens(name string) []string {
	return strings.Fields(finance.Normalize(name, finance.MaxCounterpartLength))
}

// Lookup returns the id of the first directory entry whose search field
// contains every token of name. The store's native ordering breaks ties.
func (r *Resolver) Lookup(ctx context.Context, name string) (string, error) {
	tokens := Tokens(name)
	if len(tokens) == 0 || len(tokens) > MaxTokens {
		return "", fmt.Errorf("%w: %d tokens", ErrUnsearchable, len(tokens))
	}

	records, err := r.store.Query(ctx, r.table, store.Filter{Field: r.field, Terms: tokens})
	if err != nil {
		return "", fmt.Errorf("search accounts: %w", err)
	}
	if len(records) == 0 {
		return "", ErrNotFound
	}
	return records[0].ID, nil
}

// Resolve is Lookup with every failure collapsed into "unresolved". Transport
// errors are logged.
func (r *Resolver) Resolve(ctx context.Context, name string) (string, bool) {
	id, err := r.Lookup(ctx, name)
	switch {
	case err == nil:
		return id, true
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrUnsearchable):
		r.logger.Debug("account unresolved", slog.String("name", name), slog.Any("error", err))
	default:
		r.logger.Error("account lookup failed",
			slog.String("name", name),
			slog.String("table", r.table),
			slog.Any("error", err),
		)
	}
	return "", false
}

// Name returns the directory search name of an account record, or "" when
// it cannot be fetched.
func (r *Resolver) Name(ctx context.Context, id string) string {
	rec, err := r.store.Get(ctx, r.table, id)
	if err != nil {
		r.logger.Warn("account fetch failed", slog.String("record_id", id), slog.Any("error", err))
		return ""
	}
	return rec.Fields.String(r.field)
}
