package app

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/valentindosimont/keyquery/internal/config"
	"github.com/valentindosimont/keyquery/internal/export"
	"github.com/valentindosimont/keyquery/internal/logging"
	"github.com/valentindosimont/keyquery/internal/lookup"
	"github.com/valentindosimont/keyquery/internal/metrics"
	"github.com/valentindosimont/keyquery/internal/present"
	"github.com/valentindosimont/keyquery/internal/remote"
	"github.com/valentindosimont/keyquery/internal/store"
	"github.com/valentindosimont/keyquery/internal/token"
	"github.com/valentindosimont/keyquery/internal/tui"
)

// ErrHistoryDisabled is returned by History when the journal is off
var ErrHistoryDisabled = errors.New("history is disabled, set history.enabled: true in the config")

// LoadConfig loads configuration from path, or the default location when
// path is empty, and validates it.
func LoadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// App is the main application
type App struct {
	config    *config.Config
	logger    *zap.Logger
	closeLog  func() error
	store     *store.Store
	metrics   *metrics.Server
	session   *lookup.Session
	presenter *present.Presenter
	clipboard export.Clipboard
}

// New wires every component from cfg
func New(cfg *config.Config) (*App, error) {
	logger, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	a := &App{
		config:    cfg,
		logger:    logger,
		closeLog:  closeLog,
		clipboard: export.SystemClipboard{},
	}

	// left nil when history is off, never a typed nil
	var journal lookup.Journal
	if cfg.History.Enabled {
		st, err := store.New(cfg.History.DBPath)
		if err != nil {
			_ = closeLog()
			return nil, err
		}
		a.store = st
		journal = st
	}

	metrics.Register()
	if cfg.Metrics.ListenAddr != "" {
		a.metrics = metrics.NewServer(cfg.Metrics.ListenAddr)
		a.metrics.Start(func(err error) {
			logger.Error("metrics listener stopped", zap.Error(err))
		})
		logger.Info("metrics listening", zap.String("addr", cfg.Metrics.ListenAddr))
	}

	client := remote.NewClient(cfg.Lookup.BaseURL, cfg.Timeout(), logger.Named("remote"))
	fetcher := lookup.NewFetcher(client, lookup.FetcherConfig{
		ShowBalance: cfg.Lookup.ShowBalance,
		ShowDetail:  cfg.Lookup.ShowDetail,
	}, logger.Named("fetcher"))
	a.session = lookup.NewSession(token.NewValidator(cfg.Lookup.StrictToken), fetcher, journal, logger.Named("session"))

	a.presenter = present.New(present.Options{
		Location:     cfg.Location(),
		QuotaPerUnit: cfg.Display.QuotaPerUnit,
		InCurrency:   cfg.Display.DisplayInCurrency,
		QuotaDigits:  cfg.Display.QuotaDigits,
	})

	return a, nil
}

// Config returns the loaded configuration
func (a *App) Config() *config.Config {
	return a.config
}

// Presenter returns the display formatter
func (a *App) Presenter() *present.Presenter {
	return a.presenter
}

// Clipboard returns the clipboard used for copy actions
func (a *App) Clipboard() export.Clipboard {
	return a.clipboard
}

// Run starts the interactive UI
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var history tui.History
	if a.store != nil {
		history = a.store
	}
	model := tui.New(ctx, a.session, a.presenter, a.config, history, a.clipboard, a.logger.Named("tui"))

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// Lookup runs one lookup to completion
func (a *App) Lookup(ctx context.Context, input string) (lookup.State, error) {
	return a.session.Lookup(ctx, input)
}

// History returns up to limit recent journal entries, newest first
func (a *App) History(limit int) ([]store.LookupEntry, error) {
	if a.store == nil {
		return nil, ErrHistoryDisabled
	}
	if limit <= 0 {
		limit = a.config.HistoryLimit()
	}
	return a.store.RecentLookups(limit)
}

// HistorySummary returns journal entry counts by outcome
func (a *App) HistorySummary() (map[string]int, error) {
	if a.store == nil {
		return nil, ErrHistoryDisabled
	}
	return a.store.OutcomeCounts()
}

// Close cleans up resources
func (a *App) Close() error {
	var errs []error
	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		errs = append(errs, a.metrics.Stop(ctx))
		cancel()
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	_ = a.logger.Sync()
	errs = append(errs, a.closeLog())
	return errors.Join(errs...)
}
