package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rxtech-lab/argo-paper-trading/internal/config"
	"github.com/rxtech-lab/argo-paper-trading/internal/events"
	"github.com/rxtech-lab/argo-paper-trading/internal/executor"
	"github.com/rxtech-lab/argo-paper-trading/internal/hub"
	"github.com/rxtech-lab/argo-paper-trading/internal/ledger"
	"github.com/rxtech-lab/argo-paper-trading/internal/logger"
	"github.com/rxtech-lab/argo-paper-trading/internal/marketdata"
	"github.com/rxtech-lab/argo-paper-trading/internal/orchestrator"
	"github.com/rxtech-lab/argo-paper-trading/internal/storage"
	"github.com/rxtech-lab/argo-paper-trading/internal/types"
	"github.com/rxtech-lab/argo-paper-trading/pkg/errors"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func serveAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}

	if level := cmd.String("log-level"); level != "" {
		cfg.Log.Level = level
	}

	if address := cmd.String("address"); address != "" {
		cfg.Server.Address = address
	}

	log, err := logger.NewLoggerWithLevel(cfg.Log.Level)
	if err != nil {
		return err
	}

	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	gateway, err := storage.Open(ctx, cfg.Storage, log)
	if err != nil {
		return err
	}

	defer func() {
		if err := gateway.Close(); err != nil {
			log.Error("Failed to close storage", zap.Error(err))
		}
	}()

	provider, err := marketdata.New(cfg.MarketData, log)
	if err != nil {
		return err
	}

	settings := config.NewHolder(cfg.Trading)

	// every component publishes through the hub, which needs them all to be built first
	var server *hub.Hub

	publisher := events.PublisherFunc(func(event types.Event) {
		if server != nil {
			server.Publish(event)
		}
	})

	paperLedger := ledger.NewLedger(gateway, publisher, log)
	if err := paperLedger.Load(ctx); err != nil {
		return err
	}

	if err := bootstrapAccounts(ctx, paperLedger, cfg); err != nil {
		return err
	}

	orders := executor.NewExecutor(paperLedger, gateway, provider, settings, publisher, log)
	signals := orchestrator.NewOrchestrator(paperLedger, orders, provider, settings, publisher, log)

	server = hub.NewHub(hub.Services{
		Ledger:           paperLedger,
		Orders:           orders,
		Signals:          signals,
		Settings:         gateway,
		MarketData:       provider,
		Trading:          settings,
		DefaultTimeframe: cfg.MarketData.DefaultTimeframe,
	}, cfg.Server, log)

	httpServer := hub.NewServer(server, log)
	if err := httpServer.Start(cfg.Server.Address); err != nil {
		return err
	}

	go paperLedger.RunValuation(ctx, cfg.MarketData.ValuationInterval, provider)

	if path := cmd.String("signals"); path != "" {
		feed, err := openSignalFeed(path)
		if err != nil {
			return err
		}

		defer func() { _ = feed.Close() }()

		queue := make(chan types.Signal)

		go func() {
			if err := readSignals(ctx, feed, cfg.MarketData.DefaultTimeframe, queue); err != nil {
				log.Error("Signal feed stopped", zap.Error(err))
			}
		}()

		go signals.Run(ctx, queue)
	}

	log.Info("Paper trading server started",
		zap.String("address", httpServer.Address()),
		zap.String("storage", string(cfg.Storage.Driver)),
		zap.String("market_data", string(cfg.MarketData.Provider)),
		zap.Int("accounts", len(paperLedger.ListAccounts())),
	)

	<-ctx.Done()

	log.Info("Received interrupt signal, stopping...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return httpServer.Stop(shutdownCtx)
}

// bootstrapAccounts creates the configured accounts that do not exist yet.
func bootstrapAccounts(ctx context.Context, paperLedger *ledger.Ledger, cfg *config.Config) error {
	for _, account := range cfg.Accounts {
		_, err := paperLedger.EnsureAccount(ctx, ledger.BootstrapAccount{
			ID:             account.ID,
			OwnerID:        account.OwnerID,
			InitialBalance: account.InitialBalance,
			Currency:       cfg.Trading.QuoteCurrency,
			Active:         !account.Disabled,
		})
		if err != nil {
			return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to bootstrap account %s", account.ID)
		}
	}

	return nil
}

func openSignalFeed(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to open signal feed %s", path)
	}

	return file, nil
}
