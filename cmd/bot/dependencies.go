package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/FACorreiaa/ledger-bot/internal/bot"
	"github.com/FACorreiaa/ledger-bot/internal/chat"
	"github.com/FACorreiaa/ledger-bot/internal/chat/telegram"
	"github.com/FACorreiaa/ledger-bot/internal/domain/account"
	"github.com/FACorreiaa/ledger-bot/internal/domain/finance"
	"github.com/FACorreiaa/ledger-bot/internal/domain/ledger"
	"github.com/FACorreiaa/ledger-bot/internal/domain/ratelimit"
	"github.com/FACorreiaa/ledger-bot/internal/domain/session"
	"github.com/FACorreiaa/ledger-bot/internal/domain/txtype"
	"github.com/FACorreiaa/ledger-bot/pkg/config"
	"github.com/FACorreiaa/ledger-bot/pkg/cron"
	"github.com/FACorreiaa/ledger-bot/pkg/metrics"
	"github.com/FACorreiaa/ledger-bot/pkg/store"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Infrastructure
	Store    store.Store
	Telegram *telegram.Client

	// Domain services
	Accounts *account.Resolver
	Catalog  *txtype.Catalog
	Selector *txtype.Selector
	Sessions *session.Store
	Limiter  *ratelimit.Limiter
	Ledger   *ledger.Ledger

	// Runtime
	Handler    *bot.Handler
	Dispatcher *chat.Dispatcher
	Scheduler  *cron.Scheduler
}

// InitDependencies initializes all application dependencies
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(),
	}

	if err := deps.initStore(); err != nil {
		return nil, fmt.Errorf("failed to init store: %w", err)
	}

	if err := deps.initTelegram(ctx); err != nil {
		return nil, fmt.Errorf("failed to init telegram: %w", err)
	}

	deps.initServices()
	deps.initRuntime()

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

// initStore connects the record store
func (d *Dependencies) initStore() error {
	at := d.Config.Airtable
	s, err := store.New(&store.Config{
		Backend:           store.Backend(at.Backend),
		APIURL:            at.APIURL,
		Token:             at.Token,
		BaseID:            at.BaseID,
		RequestsPerSecond: at.RequestsPerSecond,
		Timeout:           at.Timeout,
		MaxRetries:        at.MaxRetries,
		RetryBaseDelay:    at.RetryBaseDelay,
	}, d.Logger.With(slog.String("component", "store")), d.Metrics)
	if err != nil {
		return err
	}
	d.Store = s

	d.Logger.Info("store initialized", slog.String("backend", at.Backend))
	return nil
}

// initTelegram authenticates the bot and clears any webhook so polling works
func (d *Dependencies) initTelegram(ctx context.Context) error {
	tg := d.Config.Telegram
	client, err := telegram.New(tg.BotToken, telegram.Timeouts{
		Request: tg.RequestTimeout,
		Poll:    time.Duration(tg.PollTimeout) * time.Second,
	}, d.Logger.With(slog.String("component", "telegram")))
	if err != nil {
		return err
	}
	if err := client.DeleteWebhook(ctx); err != nil {
		return err
	}
	d.Telegram = client
	return nil
}

// initServices builds the domain layer
func (d *Dependencies) initServices() {
	at := d.Config.Airtable

	d.Sessions = session.NewStore(session.Config{
		MaxUsers:   d.Config.State.MaxUsers,
		MaxHistory: d.Config.State.MaxHistory,
	}, nil)
	d.Limiter = ratelimit.New(d.Config.RateLimit.MaxRequests, d.Config.RateLimit.Window, nil)

	d.Accounts = account.NewResolver(d.Store, at.AccountsTable, d.Logger.With(slog.String("component", "accounts")))
	d.Ledger = ledger.New(d.Store, at.ReportsTable, d.Logger.With(slog.String("component", "ledger")))

	typesLogger := d.Logger.With(slog.String("component", "types"))
	d.Catalog = txtype.NewCatalog(d.Store, at.TypesTable, at.TypesNameField, typesLogger,
		txtype.WithTTL(d.Config.TypeMenu.CatalogTTL))
	d.Selector = txtype.NewSelector(d.Catalog, d.Sessions, d.Telegram, d.Config.TypeMenu.PageSize, typesLogger)

	d.Logger.Info("services initialized")
}

// initRuntime wires the update handler, dispatcher and housekeeping jobs
func (d *Dependencies) initRuntime() {
	d.Handler = bot.NewHandler(bot.Services{
		Messenger: d.Telegram,
		Parser:    finance.NewParser(),
		Accounts:  d.Accounts,
		Catalog:   d.Catalog,
		Selector:  d.Selector,
		Sessions:  d.Sessions,
		Limiter:   d.Limiter,
		Ledger:    d.Ledger,
		Metrics:   d.Metrics,
	}, d.Logger.With(slog.String("component", "bot")))

	d.Dispatcher = chat.NewDispatcher(d.Handler, d.Config.Telegram.DispatchWorkers, d.Logger)

	d.Scheduler = cron.NewScheduler(cron.Config{
		Interval: d.Config.State.SweepInterval,
		MaxAge:   d.Config.State.MaxAge,
	}, d.Sessions, d.Limiter, d.Metrics, d.Logger.With(slog.String("component", "cron")))
}

// Cleanup releases resources
func (d *Dependencies) Cleanup() {
	if d.Scheduler != nil {
		<-d.Scheduler.Stop().Done()
	}
	d.Logger.Info("cleanup completed")
}
