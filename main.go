package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"go-bankledger/bank"
	"go-bankledger/cache"
	"go-bankledger/config"
	"go-bankledger/logging"
	"go-bankledger/store"
	"go-bankledger/store/postgres"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logging:", err)
		os.Exit(2)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, os.Stdin, os.Stdout); err != nil {
		logger.Error("bank ledger stopped", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

// run wires the configured store into a bank.Service and serves the console
// menu on in/out until the user exits or ctx is cancelled. Data is saved on
// the way out in both cases.
func run(ctx context.Context, cfg *config.Config, log *zap.Logger, in io.Reader, out io.Writer) error {
	be, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer be.close()

	var st store.Store = be.store
	if cfg.RedisAddr != "" {
		client, err := cache.NewClient(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer client.Close()
		st = cache.New(st, client, cfg.CacheTTL, log)
		log.Info("account cache enabled", zap.String("addr", cfg.RedisAddr), zap.Duration("ttl", cfg.CacheTTL))
	}

	svc := bank.NewService(st, log)
	con := newConsole(svc, in, out, log, be.persist)

	done := make(chan error, 1)
	go func() { done <- con.run(ctx) }()

	select {
	case err = <-done:
	case <-ctx.Done():
		log.Info("shutdown signal received")
		fmt.Fprintln(out)
	}
	if perr := be.persist(); perr != nil {
		return fmt.Errorf("save data: %w", perr)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

type backend struct {
	store   store.Store
	persist func() error
	close   func()
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (*backend, error) {
	switch cfg.Store {
	case config.StorePostgres:
		if err := postgres.Migrate(cfg.DBURL, log); err != nil {
			return nil, err
		}
		pg, err := postgres.Open(ctx, cfg.DBURL, log)
		if err != nil {
			return nil, err
		}
		return &backend{
			store:   pg,
			persist: func() error { return nil },
			close:   pg.Close,
		}, nil
	default:
		mem := store.NewMemoryStore()
		if cfg.DataFile == "" {
			return &backend{store: mem, persist: func() error { return nil }, close: func() {}}, nil
		}
		snap, err := store.LoadSnapshot(cfg.DataFile)
		if err != nil {
			return nil, err
		}
		mem.Restore(snap)
		log.Info("data loaded",
			zap.String("file", cfg.DataFile),
			zap.Int("customers", len(snap.Customers)),
			zap.Int("accounts", len(snap.Accounts)))

		var mu sync.Mutex
		persist := func() error {
			mu.Lock()
			defer mu.Unlock()
			return store.SaveSnapshot(cfg.DataFile, mem.Snapshot())
		}
		return &backend{store: mem, persist: persist, close: func() {}}, nil
	}
}
