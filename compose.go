package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/oauth2"

	"github.com/tonimelisma/gdrive-go/internal/config"
	"github.com/tonimelisma/gdrive-go/internal/exclude"
	"github.com/tonimelisma/gdrive-go/internal/ledger"
	"github.com/tonimelisma/gdrive-go/internal/mimetable"
	"github.com/tonimelisma/gdrive-go/internal/registry"
	"github.com/tonimelisma/gdrive-go/internal/remote"
	"github.com/tonimelisma/gdrive-go/internal/remote/gdrive"
	"github.com/tonimelisma/gdrive-go/internal/remote/memstore"
	"github.com/tonimelisma/gdrive-go/internal/resolve"
	"github.com/tonimelisma/gdrive-go/internal/session"
	"github.com/tonimelisma/gdrive-go/internal/transfer"
)

// Backend names.
const (
	backendGDrive = "gdrive"
	backendMemory = "memory"
)

// newRegistry returns the registry of every built-in backend. Google Drive
// is the default.
func newRegistry() *registry.Registry {
	reg := registry.New()

	mustRegister(reg.Register(backendGDrive, registry.ProviderFunc(openDrive), registry.Default()))
	mustRegister(reg.Register(backendMemory, registry.ProviderFunc(openMemory)))

	return reg
}

func mustRegister(err error) {
	if err != nil {
		panic(err)
	}
}

// openDrive connects to Google Drive with the saved OAuth2 token.
func openDrive(ctx context.Context, cfg *config.Config, logger *slog.Logger) (remote.Store, error) {
	oauthCfg, err := gdrive.OAuthConfig(cfg.ClientSecret)
	if err != nil {
		return nil, err
	}

	ts, err := gdrive.TokenSource(ctx, oauthCfg, cfg.TokenFile, logger)
	if err != nil {
		if errors.Is(err, gdrive.ErrNotLoggedIn) {
			return nil, fmt.Errorf("not logged in, run 'gdrive-go login' first: %w", err)
		}

		return nil, err
	}

	return gdrive.New(ctx, oauth2.NewClient(ctx, ts), gdrive.Config{
		UserAgent:      cfg.UserAgent,
		RequestTimeout: cfg.RequestTimeoutDuration(),
	}, logger)
}

// openMemory returns an empty in-memory store. Nothing outlives the
// process, which makes it a dry-run backend.
func openMemory(_ context.Context, cfg *config.Config, _ *slog.Logger) (remote.Store, error) {
	return memstore.New(memstore.WithPageSize(cfg.PageSize)), nil
}

// openStore opens the configured backend behind the search rate limit and
// the shared bandwidth limit.
func (cc *CLIContext) openStore(ctx context.Context) (remote.Store, error) {
	store, err := cc.Registry.Open(ctx, cc.Cfg.Backend, cc.Cfg, cc.Logger)
	if err != nil {
		return nil, err
	}

	return remote.Throttle(store,
		remote.WithSearchRate(cc.Cfg.SearchRate, cc.Cfg.SearchBurst),
		remote.WithBandwidth(remote.NewBandwidth(cc.Cfg.BandwidthBytes(), cc.Logger)),
		remote.WithThrottleLogger(cc.Logger),
	), nil
}

// loadTable loads the configured MIME table, or the built-in one.
func (cc *CLIContext) loadTable() (*mimetable.Table, error) {
	if cc.Cfg.MimeTable == "" {
		return mimetable.Default(), nil
	}

	return mimetable.Load(cc.Cfg.MimeTable, cc.Cfg.MimeDelimiter)
}

// newOrchestrator builds a session and an orchestrator over it. The
// returned cleanup terminates the session and closes the history database;
// callers defer it.
func (cc *CLIContext) newOrchestrator(ctx context.Context, workers int) (*transfer.Orchestrator, func(), error) {
	filter, err := exclude.New(cc.Cfg.ExcludedExtensions...)
	if err != nil {
		return nil, nil, fmt.Errorf("excluded extensions: %w", err)
	}

	sess := session.New(cc.openStore, cc.loadTable, cc.Logger)

	opts := []transfer.Option{
		transfer.WithLogger(cc.Logger),
		transfer.WithDownloadDir(cc.Cfg.DownloadDir),
		transfer.WithWorkers(workers),
		transfer.WithStrictPaths(cc.Cfg.StrictPaths),
		transfer.WithHashRetries(cc.Cfg.HashRetries),
		transfer.WithExclusions(filter),
		transfer.WithResolverOptions(
			resolve.WithRootAnchor(cc.Cfg.AnchorRoot),
			resolve.WithPageSize(cc.Cfg.PageSize),
		),
	}

	var hist *ledger.Ledger

	if cc.Cfg.History {
		hist, err = ledger.Open(ctx, cc.Cfg.HistoryDB, cc.Logger)
		if err != nil {
			cc.Logger.Warn("transfer history disabled",
				slog.String("path", cc.Cfg.HistoryDB),
				slog.String("error", err.Error()),
			)
		} else {
			opts = append(opts, transfer.WithRecorder(hist))
		}
	}

	cleanup := func() {
		if err := sess.Terminate(); err != nil {
			cc.Logger.Warn("terminating session", slog.String("error", err.Error()))
		}

		if hist != nil {
			if err := hist.Close(); err != nil {
				cc.Logger.Warn("closing history", slog.String("error", err.Error()))
			}
		}
	}

	return transfer.New(sess, opts...), cleanup, nil
}
