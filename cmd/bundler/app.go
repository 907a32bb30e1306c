package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pump-bundler/internal/blockchain/solbc"
	"github.com/rovshanmuradov/pump-bundler/internal/bot"
	"github.com/rovshanmuradov/pump-bundler/internal/config"
	"github.com/rovshanmuradov/pump-bundler/internal/domain"
	"github.com/rovshanmuradov/pump-bundler/internal/events"
	"github.com/rovshanmuradov/pump-bundler/internal/funding"
	"github.com/rovshanmuradov/pump-bundler/internal/holdings"
	"github.com/rovshanmuradov/pump-bundler/internal/jito"
	"github.com/rovshanmuradov/pump-bundler/internal/logger"
	"github.com/rovshanmuradov/pump-bundler/internal/metrics"
	"github.com/rovshanmuradov/pump-bundler/internal/storage"
	"github.com/rovshanmuradov/pump-bundler/internal/storage/memory"
	"github.com/rovshanmuradov/pump-bundler/internal/storage/postgres"
	"github.com/rovshanmuradov/pump-bundler/internal/transaction"
	"github.com/rovshanmuradov/pump-bundler/internal/wallet"
)

const (
	eventBufferSize   = 256
	balanceReadLimit  = 8
	funderKeyVariable = "PUMP_BUNDLER_FUNDER_KEY"
)

// app holds the collaborators shared by every command.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	client   *solbc.Client
	store    *wallet.Store
	ledger   *holdings.Ledger
	metrics  *metrics.Collector
	bus      *events.Bus
	journal  storage.Journal
	shutdown *bot.ShutdownHandler
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(&logger.Config{
		LogFile:    cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxAge:     cfg.Log.MaxAge,
		MaxBackups: cfg.Log.MaxBackups,
		Compress:   cfg.Log.Compress,
		Debug:      cfg.Log.Debug,
		Pretty:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	a := &app{
		cfg:      cfg,
		logger:   log,
		ledger:   holdings.NewLedger(),
		shutdown: bot.NewShutdownHandler(log, 10*time.Second),
	}
	a.shutdown.AddFunc("logger", func() error { return logger.Sync(log) })

	a.client, err = solbc.NewClient(cfg.RPCList, log)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("create rpc client: %w", err)
	}

	a.store = wallet.NewStore(cfg.WalletsFile, log)
	if err := a.store.Load(); err != nil {
		a.close()
		return nil, fmt.Errorf("load wallets: %w", err)
	}

	registry := prometheus.NewRegistry()
	a.metrics = metrics.NewCollector(registry)
	if cfg.MetricsAddr != "" {
		a.serveMetrics(registry)
	}

	a.bus = events.NewBus(log, eventBufferSize)
	a.bus.SubscribeFunc(events.BundleResolved, func(_ context.Context, ev events.Event) error {
		if b, ok := ev.(events.BundleEvent); ok {
			log.Debug("Bundle resolved",
				zap.String("bundle_id", b.BundleID),
				zap.String("status", b.Status),
				zap.Int("attempts", b.Attempts))
		}
		return nil
	})
	a.shutdown.AddFunc("event-bus", func() error {
		return a.bus.Shutdown(context.Background())
	})

	if err := a.openJournal(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) openJournal(ctx context.Context) error {
	if a.cfg.PostgresURL == "" {
		a.journal = memory.NewJournal()
		return nil
	}
	pool, err := postgres.NewPool(ctx, a.cfg.PostgresURL)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	a.shutdown.AddFunc("postgres", func() error {
		pool.Close()
		return nil
	})
	if err := postgres.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("migrate journal: %w", err)
	}
	a.journal = postgres.NewJournal(pool)
	return nil
}

func (a *app) serveMetrics(registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: a.cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Metrics server stopped", zap.Error(err))
		}
	}()
	a.shutdown.AddFunc("metrics-server", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	})
	a.logger.Info("Serving metrics", zap.String("addr", a.cfg.MetricsAddr))
}

func (a *app) close() {
	if err := a.shutdown.Shutdown(context.Background()); err != nil {
		a.logger.Warn("Shutdown finished with errors", zap.Error(err))
	}
}

func (a *app) assembler() *transaction.Assembler {
	seed := uint64(time.Now().UnixNano())
	return transaction.NewAssembler(a.client,
		transaction.Options{
			ComputeUnits:             a.cfg.ComputeUnits,
			PriorityFeeMicroLamports: a.cfg.PriorityFeeMicroLamports,
		},
		jito.TipAccounts(),
		rand.New(rand.NewPCG(seed, seed>>1|1)),
		a.logger,
	)
}

func (a *app) router() *funding.Router {
	sender := funding.NewChainSender(a.assembler(), a.client, a.cfg.ConfirmTimeout)
	r := funding.NewRouter(sender, a.client, a.metrics, a.logger)
	r.SetFeeReserve(a.cfg.FeeReserveLamports)
	return r
}

func (a *app) campaign(withBundles bool) (*bot.Campaign, error) {
	cfg := bot.CampaignConfig{
		Chain:          a.client,
		Builder:        a.assembler(),
		Ledger:         a.ledger,
		Metrics:        a.metrics,
		Journal:        a.journal,
		Bus:            a.bus,
		Observer:       events.NewLogObserver(a.logger),
		Logger:         a.logger,
		TipLamports:    a.cfg.TipLamports,
		ConfirmTimeout: a.cfg.ConfirmTimeout,
	}
	if withBundles {
		if err := a.cfg.RequireJito(); err != nil {
			return nil, err
		}
		engine, err := jito.NewEngine(jito.Config{
			Endpoints:    a.cfg.JitoEndpoints,
			MaxRetries:   a.cfg.MaxRetries,
			PollInterval: a.cfg.PollInterval,
			Timeout:      a.cfg.BundleTimeout,
		}, a.metrics, a.logger)
		if err != nil {
			return nil, fmt.Errorf("create bundle engine: %w", err)
		}
		cfg.Bundles = engine
	}
	return bot.NewCampaign(cfg), nil
}

// record journals funding sweeps, which do not go through a Campaign.
func (a *app) record(ctx context.Context, summary *domain.Summary) {
	if err := a.journal.SaveSummary(context.WithoutCancel(ctx), summary); err != nil {
		a.logger.Warn("Failed to journal summary",
			zap.String("summary_id", summary.ID), zap.Error(err))
	}
}
