// Package txtype manages the transaction-type catalog and the paginated,
// filterable type menu users pick from.
package txtype

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/FACorreiaa/ledger-bot/pkg/store"
)

// DefaultTTL is how long a fetched catalog is served before re-fetching.
const DefaultTTL = 300 * time.Second

// Option is one transaction type: its display name and store record id.
type Option struct {
	Name string
	ID   string
}

// Catalog is the process-wide, read-mostly cache of transaction types.
// Concurrent refreshes are collapsed into one store query.
type Catalog struct {
	store  store.Store
	table  string
	field  string
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger

	mu        sync.RWMutex
	options   []Option
	fetchedAt time.Time

	group singleflight.Group
}

// CatalogOption customizes a Catalog
type CatalogOption func(*Catalog)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) CatalogOption {
	return func(c *Catalog) { c.now = now }
}

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) CatalogOption {
	return func(c *Catalog) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// NewCatalog creates a catalog reading names from field of table
func NewCatalog(s store.Store, table, field string, logger *slog.Logger, opts ...CatalogOption) *Catalog {
	c := &Catalog{
		store:  s,
		table:  table,
		field:  field,
		ttl:    DefaultTTL,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached options, fetching them when the cache is empty,
// expired or invalidated. The returned slice is a copy.
func (c *Catalog) Get(ctx context.Context) ([]Option, error) {
	if opts, ok := c.cached(); ok {
		return opts, nil
	}

	v, err, _ := c.group.Do("catalog", func() (any, error) {
		// another caller may have refreshed while we waited
		if opts, ok := c.cached(); ok {
			return opts, nil
		}
		opts, err := c.fetch(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.options = opts
		c.fetchedAt = c.now()
		c.mu.Unlock()

		c.logger.Info("type catalog refreshed", slog.Int("options", len(opts)))
		return opts, nil
	})
	if err != nil {
		return nil, err
	}
	return clone(v.([]Option)), nil
}

// Invalidate drops the cached options; the next Get re-fetches.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.options = nil
	c.fetchedAt = time.Time{}
}

// Filter returns the options whose name contains keyword, ignoring case.
func Filter(options []Option, keyword string) []Option {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" {
		return clone(options)
	}
	var out []Option
	for _, o := range options {
		if strings.Contains(strings.ToLower(o.Name), keyword) {
			out = append(out, o)
		}
	}
	return out
}

func (c *Catalog) cached() ([]Option, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.options == nil || c.now().Sub(c.fetchedAt) >= c.ttl {
		return nil, false
	}
	return clone(c.options), true
}

func (c *Catalog) fetch(ctx context.Context) ([]Option, error) {
	records, err := c.store.Query(ctx, c.table, store.Filter{})
	if err != nil {
		return nil, fmt.Errorf("fetch type catalog: %w", err)
	}

	seen := make(map[string]bool, len(records))
	opts := make([]Option, 0, len(records))
	for _, r := range records {
		name := strings.TrimSpace(r.Fields.String(c.field))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		opts = append(opts, Option{Name: name, ID: r.ID})
	}
	return opts, nil
}

func clone(opts []Option) []Option {
	if opts == nil {
		return nil
	}
	return append(make([]Option, 0, len(opts)), opts...)
}
