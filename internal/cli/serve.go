package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/cv-autofill/internal/quota"
	"github.com/joseph-ayodele/cv-autofill/internal/server"
)

const shutdownTimeout = 30 * time.Second

func newServeCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the gRPC health endpoint and the extraction workers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := e.load()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx := cmd.Context()
			a, err := buildApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close(shutdownTimeout)

			if n, err := a.Jobs.ReconcileStuck(ctx, cfg.Queue.StuckAfter); err != nil {
				log.Warn("serve.reconcile_failed", zap.Error(err))
			} else {
				log.Info("serve.reconciled", zap.Int("failed_stuck", n))
			}

			srv := server.New(a.Jobs, a.Feedback, a.Export, a.DB, server.ConfigFrom(cfg), log)
			httpSrv := &http.Server{
				Addr:              cfg.Server.HTTPAddr,
				Handler:           srv.Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			health := server.NewHealthServer(a.DB, log)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				log.Info("serve.http.listening", zap.String("addr", cfg.Server.HTTPAddr))
				if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return httpSrv.Shutdown(sctx)
			})
			if cfg.Server.GRPCAddr != "" {
				g.Go(func() error { return health.Serve(gctx, cfg.Server.GRPCAddr) })
			}
			if sqlStore, ok := a.Quota.(*quota.SQLStore); ok {
				g.Go(func() error {
					purgeCounters(gctx, sqlStore, cfg.Quota.CleanupInterval, log)
					return nil
				})
			}

			err = g.Wait()
			log.Info("serve.stopped", zap.Error(err))
			return err
		},
	}
	return cmd
}

// purgeCounters drops expired quota rows on an interval.
func purgeCounters(ctx context.Context, s *quota.SQLStore, every time.Duration, log *zap.Logger) {
	if every <= 0 {
		every = 10 * time.Minute
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n, err := s.Purge(ctx); err != nil {
				log.Warn("quota.purge_failed", zap.Error(err))
			} else if n > 0 {
				log.Debug("quota.purged", zap.Int64("rows", n))
			}
		}
	}
}
