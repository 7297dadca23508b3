// Package store provides a generic record store abstraction with Airtable and
// in-memory implementations.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Fields holds the column values of a record keyed by field name.
type Fields map[string]any

// Record is a single row of a table
type Record struct {
	ID          string    `json:"id"`
	CreatedTime time.Time `json:"createdTime"`
	Fields      Fields    `json:"fields"`
}

// Filter is a conjunction of case-insensitive substring predicates over a
// single field. A zero Filter matches every record.
type Filter struct {
	Field string
	Terms []string
}

// IsZero reports whether the filter has no predicates.
func (f Filter) IsZero() bool {
	return f.Field == "" || len(f.Terms) == 0
}

// Matches reports whether value contains every term, ignoring case.
func (f Filter) Matches(value string) bool {
	lower := strings.ToLower(value)
	for _, term := range f.Terms {
		if !strings.Contains(lower, strings.ToLower(term)) {
			return false
		}
	}
	return true
}

// Store defines the record operations used by the bot
type Store interface {
	// Query returns the records of table matching filter, in the store's native order
	Query(ctx context.Context, table string, filter Filter) ([]Record, error)

	// Get returns a single record by id
	Get(ctx context.Context, table, id string) (*Record, error)

	// Create inserts a record and returns its store-assigned id
	Create(ctx context.Context, table string, fields Fields) (string, error)

	// Update patches the given fields. A nil value clears the field.
	Update(ctx context.Context, table, id string, fields Fields) error

	// Delete removes a record
	Delete(ctx context.Context, table, id string) error
}

// Backend identifies the store implementation
type Backend string

const (
	BackendAirtable Backend = "airtable"
	BackendMemory   Backend = "memory"
)

// Config holds store configuration
type Config struct {
	Backend Backend

	// Airtable config
	APIURL            string
	Token             string
	BaseID            string
	RequestsPerSecond int
	Timeout           time.Duration

	// MaxRetries bounds re-attempts of throttled or failed requests
	MaxRetries     int
	RetryBaseDelay time.Duration
}

// New creates a Store implementation based on configuration
func New(cfg *Config, logger *slog.Logger, observer Observer) (Store, error) {
	switch cfg.Backend {
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendAirtable, "":
		return NewAirtableClient(cfg, logger, observer)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// String returns the field value as a string, or "" when absent.
func (f Fields) String(key string) string {
	switch v := f[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Float returns a numeric field value.
func (f Fields) Float(key string) (float64, bool) {
	switch v := f[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// Links returns the record ids of a linked-record field.
func (f Fields) Links(key string) []string {
	switch v := f[key].(type) {
	case []string:
		return v
	case []any:
		ids := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				ids = append(ids, s)
			}
		}
		return ids
	default:
		return nil
	}
}
