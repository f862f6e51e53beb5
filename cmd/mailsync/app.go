package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/nhle/mailsync/internal/credential"
	"github.com/nhle/mailsync/internal/enrich"
	"github.com/nhle/mailsync/internal/fetch"
	"github.com/nhle/mailsync/internal/logging"
	"github.com/nhle/mailsync/internal/model"
	"github.com/nhle/mailsync/internal/source"
	"github.com/nhle/mailsync/internal/source/email"
	"github.com/nhle/mailsync/internal/source/gmail"
	"github.com/nhle/mailsync/internal/store"
	appsync "github.com/nhle/mailsync/internal/sync"
)

// app bundles everything a command needs. close must be called when done.
type app struct {
	cfg    *model.AppConfig
	logger *slog.Logger
	store  *store.Store
	svc    *appsync.Service
	runner *enrich.CommandRunner

	closers []func()
}

// openApp loads configuration and wires the service. The mailbox provider
// is only connected when withProvider is set; commands that only touch
// local state run without credentials.
func openApp(ctx context.Context, configPath string, withProvider bool) (*app, error) {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)

	a := &app{cfg: cfg, logger: logger}

	backend, err := openBackend(cfg.Store)
	if err != nil {
		return nil, err
	}
	a.store = store.New(backend)
	a.closers = append(a.closers, func() {
		if err := a.store.Close(); err != nil {
			logger.Warn("closing store", "error", err)
		}
	})

	opts := appsync.Options{
		Store:        a.store,
		RulesPath:    cfg.Paths.Rules,
		SettingsPath: cfg.Paths.Settings,
		Logger:       logger,
	}

	if withProvider {
		provider, err := newProvider(ctx, cfg, logger)
		if err != nil {
			a.close()
			return nil, err
		}

		var limiter fetch.Limiter
		if cfg.Sync.RatePerSec > 0 {
			tb := fetch.NewTokenBucket(cfg.Sync.RatePerSec)
			a.closers = append(a.closers, tb.Stop)
			limiter = tb
		}

		opts.Provider = provider
		opts.Fetcher = fetch.New(provider, fetch.Config{
			Window:      cfg.Sync.Window,
			Concurrency: cfg.Sync.Concurrency,
			Timeout:     cfg.Sync.FetchTimeout(),
		}, limiter, logger)

		a.runner = enrich.NewCommandRunner(cfg.Enrichment.Command, cfg.Enrichment.Dir, logger)
		opts.Trigger = a.runner
	}

	a.svc = appsync.New(opts)
	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func openBackend(cfg model.StoreConfig) (store.Backend, error) {
	switch cfg.Driver {
	case "sqlite":
		s, err := store.NewSQLiteStore(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		return s, nil
	default:
		return store.NewJSONFile(cfg.Path), nil
	}
}

func newProvider(ctx context.Context, cfg *model.AppConfig, logger *slog.Logger) (source.Provider, error) {
	switch cfg.Provider {
	case model.ProviderIMAP:
		if cfg.IMAP.Host == "" || cfg.IMAP.Username == "" {
			return nil, fmt.Errorf("%w: imap.host and imap.username are required", model.ErrInvalidConfig)
		}
		password, err := credential.Get(credential.IMAPPasswordKey(cfg.IMAP.Username))
		if err != nil {
			return nil, fmt.Errorf("loading IMAP password (run `mailsync credential set %s`): %w",
				credential.IMAPPasswordKey(cfg.IMAP.Username), err)
		}
		return email.NewProvider(cfg.IMAP, password), nil

	default:
		creds, err := os.ReadFile(cfg.Gmail.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("reading Gmail client credentials: %w", err)
		}
		tokData, err := loadGmailToken(cfg.Gmail)
		if err != nil {
			return nil, err
		}
		tok, err := gmail.ParseToken(tokData)
		if err != nil {
			return nil, err
		}
		svc, err := gmail.NewService(ctx, creds, tok)
		if err != nil {
			return nil, err
		}
		return gmail.New(gmail.NewMessagesAPI(svc), logger), nil
	}
}

// loadGmailToken reads the OAuth token from the token file, falling back
// to the keyring entry when the file does not exist.
func loadGmailToken(cfg model.GmailConfig) ([]byte, error) {
	if cfg.TokenFile != "" {
		data, err := os.ReadFile(cfg.TokenFile)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading Gmail token: %w", err)
		}
	}
	if cfg.TokenKey != "" {
		tok, err := credential.Get(cfg.TokenKey)
		if err == nil {
			return []byte(tok), nil
		}
		if !errors.Is(err, credential.ErrNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("no Gmail OAuth token: create %s or run `mailsync credential set %s`",
		cfg.TokenFile, cfg.TokenKey)
}
