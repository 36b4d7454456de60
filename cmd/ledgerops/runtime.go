package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"solana-ledger-ops/internal/domain"
	"solana-ledger-ops/internal/observability"
	"solana-ledger-ops/internal/orchestrator"
	"solana-ledger-ops/internal/solana"
	"solana-ledger-ops/internal/storage"
	chstore "solana-ledger-ops/internal/storage/clickhouse"
	pgstore "solana-ledger-ops/internal/storage/postgres"
	"solana-ledger-ops/internal/wallet"
)

// runtime holds the resources of one command invocation.
type runtime struct {
	svc     *orchestrator.Service
	closers []func()
}

// Close releases resources in reverse order of acquisition.
func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// commandContext is cancelled by SIGINT/SIGTERM and by --timeout.
// Runs observe cancellation between batches only.
func commandContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	if timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

// newRuntime builds the service from cfg. Configuration errors (missing or
// unreadable keypair, unreachable store) fail here, before any run starts.
func newRuntime(ctx context.Context) (*runtime, error) {
	rt := &runtime{}

	if cfg.KeypairPath == "" {
		return nil, fmt.Errorf("%w: no keypair configured (--keypair or LEDGEROPS_KEYPAIR)", domain.ErrSigner)
	}
	signer, err := wallet.LoadKeypair(cfg.KeypairPath)
	if err != nil {
		return nil, err
	}

	conn := solana.NewHTTPClient(cfg.RPCEndpoint,
		solana.WithCommitment(cfg.Commitment),
		solana.WithRateLimit(cfg.RateLimit, int(cfg.RateLimit)+1),
	)

	var sub solana.SignatureSubscriber
	if cfg.WSEndpoint != "" {
		ws, err := solana.NewWSClient(ctx, cfg.WSEndpoint, nil, logger)
		if err != nil {
			// Polling still confirms; the socket only shortens the wait.
			logger.Warn("websocket unavailable, confirming by polling", zap.Error(err))
		} else {
			sub = ws
			rt.closers = append(rt.closers, func() { _ = ws.Close() })
		}
	}

	store, err := openStore(ctx, rt)
	if err != nil {
		rt.Close()
		return nil, err
	}

	if cfg.MetricsAddr != "" {
		rt.closers = append(rt.closers, serveMetrics(cfg.MetricsAddr))
	}

	svc, err := orchestrator.New(orchestrator.Options{
		Conn:       conn,
		Signer:     signer,
		Subscriber: sub,
		Submit:     cfg.Submit(),
		Scanner:    cfg.Scanner(),
		Transfer:   cfg.Transfer(),
		Batch:      cfg.Batch(),
		Store:      store,
		OnProgress: func(kind domain.Kind, p domain.Progress) {
			fmt.Fprintf(os.Stderr, "%s: batch %d/%d, %d/%d done (%d ok, %d failed)\n",
				kind, p.Chunk, p.Chunks, p.Processed, p.Total, p.Succeeded, p.Failed)
		},
		Logger: logger,
	})
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.svc = svc
	return rt, nil
}

// openStore connects the configured run ledgers. PostgreSQL is the primary
// when both are set; ClickHouse alone is used as the only store.
func openStore(ctx context.Context, rt *runtime) (storage.RunStore, error) {
	var stores []storage.RunStore

	if cfg.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN, pgstore.WithApplicationName("ledgerops"))
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, pool.Close)
		stores = append(stores, pgstore.NewRunStore(pool))
	}
	if cfg.ClickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, cfg.ClickhouseDSN)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() { _ = conn.Close() })
		stores = append(stores, chstore.NewRunStore(conn))
	}

	if len(stores) == 0 {
		return nil, nil
	}
	return storage.Tee(stores[0], stores[1:]...), nil
}

// serveMetrics starts the /metrics and /health endpoints and returns a
// shutdown func.
func serveMetrics(addr string) func() {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
