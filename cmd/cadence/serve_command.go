package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ewilliams-labs/cadence/internal/adapters/rest"
	"github.com/ewilliams-labs/cadence/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("bind") {
				cfg.Server.Bind = bind
			}
			return runServer(cmd.Context(), ctx)
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Listen address (overrides server.bind)")
	return cmd
}

func runServer(parent context.Context, ctx *commandContext) error {
	signalCtx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}

	// Only one server may refresh against a given store.
	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another cadence server holds %s", cfg.LockPath())
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("failed to release server lock", zap.Error(err))
		}
	}()

	_, runs, err := ctx.ensureStore(signalCtx)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	so := stackOptions{registerer: reg}
	var pool *worker.Pool
	if runs != nil {
		pool = worker.NewPool(runs, cfg.Server.QueueSize, logger.Named("worker"))
		pool.Start(cfg.Server.Workers)
		defer pool.Stop()
		so.recorder = pool
	}

	st, err := ctx.build(signalCtx, so)
	if err != nil {
		return err
	}

	if cfg.Catalog.Watch {
		go func() {
			if err := st.catalog.Watch(signalCtx); err != nil {
				logger.Warn("catalog watch stopped", zap.Error(err))
			}
		}()
	}

	handler := rest.NewHandler(rest.Deps{
		Recommender: st.recommender,
		Auth:        st.flow,
		Session:     st.session,
		Catalog:     st.catalog,
		Defaults:    st.defaults,
		Metrics:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		Logger:      logger.Named("http"),
	})

	srv := &http.Server{
		Addr:              cfg.Server.Bind,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	logger.Info("cadence api listening",
		zap.String("bind", cfg.Server.Bind),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("catalog", cfg.Catalog.Source),
	)

	select {
	case err := <-serverErr:
		return err
	case <-signalCtx.Done():
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown error", zap.Error(err))
		}
		return nil
	}
}
