package account

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/ledger-bot/pkg/store"
)

const accounts = "ВСИЧКИ АКАУНТИ"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seededStore() *store.MemoryStore {
	s := store.NewMemoryStore()
	s.Seed(accounts,
		store.Record{ID: "rec1", Fields: store.Fields{"REG": "Иван Иванов"}},
		store.Record{ID: "rec2", Fields: store.Fields{"REG": "Петров Иван ЕООД"}},
		store.Record{ID: "rec3", Fields: store.Fields{"REG": "Мария Петрова"}},
		store.Record{ID: "rec4", Fields: store.Fields{"REG": "Revolut EUR"}},
	)
	return s
}

// failingStore returns an error from every call.
type failingStore struct {
	store.Store
	err     error
	queries int
}

func (f *failingStore) Query(context.Context, string, store.Filter) ([]store.Record, error) {
	f.queries++
	return nil, f.err
}

func (f *failingStore) Get(context.Context, string, string) (*store.Record, error) {
	return nil, f.err
}

func TestResolver_Lookup(t *testing.T) {
	r := NewResolver(seededStore(), accounts, testLogger())
	ctx := context.Background()

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{"AND semantics require both tokens", "иван петров", "rec2", nil},
		{"first match wins", "иван", "rec1", nil},
		{"case and punctuation insensitive", "REVOLUT, eur!", "rec4", nil},
		{"substring match", "петр", "rec2", nil},
		{"one token missing excludes entry", "мария иван", "", ErrNotFound},
		{"empty name", "  ", "", ErrUnsearchable},
		{"punctuation only", "!!!", "", ErrUnsearchable},
		{"too many tokens", strings.Repeat("а ", MaxTokens+1), "", ErrUnsearchable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := r.Lookup(ctx, tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, id)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestResolver_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("hit", func(t *testing.T) {
		r := NewResolver(seededStore(), accounts, testLogger())
		id, ok := r.Resolve(ctx, "Мария")
		assert.True(t, ok)
		assert.Equal(t, "rec3", id)
	})

	t.Run("miss", func(t *testing.T) {
		r := NewResolver(seededStore(), accounts, testLogger())
		id, ok := r.Resolve(ctx, "Гошо")
		assert.False(t, ok)
		assert.Empty(t, id)
	})

	t.Run("transport failure is treated as a miss", func(t *testing.T) {
		fs := &failingStore{err: &store.APIError{Status: 503, Message: "unavailable"}}
		r := NewResolver(fs, accounts, testLogger())

		id, ok := r.Resolve(ctx, "Иван")
		assert.False(t, ok)
		assert.Empty(t, id)
		assert.Equal(t, 1, fs.queries)

		_, err := r.Lookup(ctx, "Иван")
		var apiErr *store.APIError
		require.True(t, errors.As(err, &apiErr))
		assert.NotErrorIs(t, err, ErrNotFound)
	})

	t.Run("degenerate input never queries", func(t *testing.T) {
		fs := &failingStore{err: errors.New("boom")}
		r := NewResolver(fs, accounts, testLogger())
		_, ok := r.Resolve(ctx, strings.Repeat("x ", 20))
		assert.False(t, ok)
		assert.Zero(t, fs.queries)
	})
}

func TestResolver_Name(t *testing.T) {
	ctx := context.Background()
	r := NewResolver(seededStore(), accounts, testLogger())

	assert.Equal(t, "Revolut EUR", r.Name(ctx, "rec4"))
	assert.Empty(t, r.Name(ctx, "missing"))
}

func TestTokens(t *testing.T) {
	assert.Equal(t, []string{"иван", "петров"}, Tokens("Иван-Петров"))
	assert.Empty(t, Tokens(""))
}
