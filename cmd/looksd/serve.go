package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	httpapi "github.com/tbourn/looks-entitlements/internal/http"
	"github.com/tbourn/looks-entitlements/internal/observability"
	"github.com/tbourn/looks-entitlements/internal/repo"
)

// idempotencySweepEvery is how often expired Idempotency-Key rows are purged.
const idempotencySweepEvery = 15 * time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

func runServer(parent context.Context) error {
	a, cleanup, err := bootstrap(parent)
	if err != nil {
		return err
	}
	defer cleanup()
	lg := a.log

	ctx, stop := signal.NotifyContext(a.ctx(parent), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, a.cfg.OTEL, Version)
	if err != nil {
		lg.Warn().Err(err).Msg("tracing disabled: OTLP exporter setup failed")
	} else {
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownOTel(sctx)
		}()
	}

	if err := repo.AutoMigrate(a.db); err != nil {
		return err
	}

	gin.SetMode(a.cfg.Server.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{DB: a.db, Billing: a.billing, Catalog: a.catalog}, a.cfg)

	srv := &http.Server{
		Addr:              net.JoinHostPort("", a.cfg.Server.Port),
		Handler:           r,
		ReadTimeout:       a.cfg.Server.ReadTimeout,
		ReadHeaderTimeout: a.cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      a.cfg.Server.WriteTimeout,
		IdleTimeout:       a.cfg.Server.IdleTimeout,
		MaxHeaderBytes:    a.cfg.Server.MaxHeaderBytes,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go sweepIdempotency(ctx, a)

	errCh := make(chan error, 1)
	go func() {
		lg.Info().Str("addr", srv.Addr).Str("version", Version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	lg.Info().Msg("shutting down server")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}

// sweepIdempotency purges expired spend keys until ctx is done.
func sweepIdempotency(ctx context.Context, a *app) {
	t := time.NewTicker(idempotencySweepEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := repo.DeleteExpiredIdempotency(ctx, a.db, now.UTC())
			if err != nil {
				a.log.Warn().Err(err).Msg("idempotency sweep failed")
				continue
			}
			if n > 0 {
				a.log.Debug().Int64("deleted", n).Msg("expired idempotency keys purged")
			}
		}
	}
}
