// Package app wires configuration, storage and services into a running
// curation node. Binaries under cmd/ share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/vncsmyrnk/curation/internal/adapters/cache/memory"
	"github.com/vncsmyrnk/curation/internal/adapters/cache/redis"
	"github.com/vncsmyrnk/curation/internal/adapters/events"
	handler "github.com/vncsmyrnk/curation/internal/adapters/handler/http"
	"github.com/vncsmyrnk/curation/internal/adapters/kv/badger"
	kvmemory "github.com/vncsmyrnk/curation/internal/adapters/kv/memory"
	"github.com/vncsmyrnk/curation/internal/adapters/kv/sqlkv"
	"github.com/vncsmyrnk/curation/internal/adapters/metrics"
	"github.com/vncsmyrnk/curation/internal/adapters/oracle"
	"github.com/vncsmyrnk/curation/internal/adapters/repository/ledger"
	"github.com/vncsmyrnk/curation/internal/config"
	"github.com/vncsmyrnk/curation/internal/core/ports"
	"github.com/vncsmyrnk/curation/internal/core/services"
)

type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Store    ports.LedgerStore
	Bus      *events.Bus
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry
	Oracle   *oracle.LocalOracle
	Wallet   *ledger.WalletPayer

	Sessions   ports.SessionService
	Tracker    ports.OperationTracker
	Lists      ports.ListService
	Votes      ports.VoteService
	Settlement ports.SettlementService
	Reconcile  ports.ReconcileService

	closers []func() error
}

// OpenStore opens the configured ledger backend. The returned func releases it.
func OpenStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (ports.LedgerStore, func() error, error) {
	switch cfg.StoreBackend {
	case config.StoreMemory:
		return kvmemory.NewStore(), func() error { return nil }, nil
	case config.StoreBadger:
		s, err := badger.Open(badger.WithDataDir(cfg.BadgerDir), badger.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.StorePostgres:
		p := cfg.Postgres
		s, err := sqlkv.OpenPostgres(ctx, sqlkv.PostgresConnString(p.User, p.Password, p.Host, p.Port, p.DB))
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.StoreSQLite:
		s, err := sqlkv.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	a := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	}

	store, closeStore, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.StoreBackend, err)
	}
	a.Store = store
	a.closers = append(a.closers, closeStore)

	keys, err := oracle.LoadOrCreateKeys(cfg.OracleKeyFile, cfg.OracleKeyBits)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load oracle keys: %w", err)
	}
	a.Oracle = oracle.NewLocalOracle(keys, cfg.OracleDelay, logger.With().Str("component", "oracle").Logger())
	a.closers = append(a.closers, func() error {
		a.Oracle.Close()
		return nil
	})

	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.New(a.Registry)
	a.Bus = events.NewBus(logger)
	a.Bus.SubscribeAll(events.LogHandler(logger.With().Str("component", "events").Logger()))
	a.Bus.SubscribeAll(a.Metrics.HandleEvent)

	var cache ports.SnapshotCache
	if cfg.RedisURL != "" {
		rc := redis.Connect(ctx, cfg.RedisURL, logger, redis.WithTTL(cfg.CacheTTL), redis.WithObserver(a.Metrics.ObserveCache))
		if rc.Enabled() {
			a.closers = append(a.closers, rc.Close)
			cache = rc
		}
	}
	if cache == nil {
		cache = memory.NewSnapshotCache(cfg.CacheTTL, a.Metrics.ObserveCache)
	}

	scheme := a.Oracle.Scheme()
	listRepo := ledger.NewListRepository(store)
	tallies := ledger.NewTallyRepository(store, scheme)
	escrow := ledger.NewEscrowRepository(store)
	a.Wallet = ledger.NewWalletPayer(store)

	a.Sessions = services.NewSessionService(cfg.JWTSecret, services.DefaultSessionTTL)
	a.Tracker = services.NewOperationTracker(cfg.StatusClearDelay)
	a.Lists = services.NewListService(listRepo, cache, a.Bus, logger.With().Str("component", "lists").Logger())
	a.Votes = services.NewVoteService(services.VoteDependencies{
		Lists:     listRepo,
		Tallies:   tallies,
		Escrow:    escrow,
		Scheme:    scheme,
		Snapshot:  a.Lists,
		Publisher: a.Bus,
	}, cfg.EnableSimpleVoting)
	a.Settlement = services.NewSettlementService(services.SettlementDependencies{
		Lists:     listRepo,
		Tallies:   tallies,
		Escrow:    escrow,
		Rewards:   ledger.NewRewardRepository(store),
		Requests:  ledger.NewDecryptionRequestRepository(store),
		Oracle:    a.Oracle,
		Verifier:  a.Oracle.Verifier(),
		Payer:     a.Wallet,
		Snapshot:  a.Lists,
		Publisher: a.Bus,
		Logger:    logger.With().Str("component", "settlement").Logger(),
	}, services.SettlementAccounts{
		Treasury: cfg.TreasuryAccount,
		Pool:     cfg.PoolAccount,
	})
	a.Reconcile = services.NewReconcileService(listRepo, a.Lists, a.Bus)

	return a, nil
}

func (a *App) HTTPHandler() http.Handler {
	return handler.NewHandler(handler.Handlers{
		Lists:      handler.NewListHandler(a.Lists, a.Tracker),
		Votes:      handler.NewVoteHandler(a.Votes, a.Tracker),
		Settlement: handler.NewSettlementHandler(a.Settlement, a.Tracker),
		Operations: handler.NewOperationHandler(a.Tracker),
	}, handler.RouterOptions{
		Sessions:    a.Sessions,
		Logger:      a.Logger,
		CORSOrigins: a.Config.CORSOrigins,
		Metrics:     a.Metrics,
		Gatherer:    a.Registry,
	})
}

// Close releases resources in reverse order of acquisition. The oracle is
// stopped before the store it writes to.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
