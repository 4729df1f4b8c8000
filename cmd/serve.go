package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/zipcode-cli/internal/api"
	"github.com/sells-group/zipcode-cli/internal/lookup"
	"github.com/sells-group/zipcode-cli/internal/monitoring"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the lookup HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		shutdownTracing, err := monitoring.InitTracing(ctx, cfg.Tracing)
		if err != nil {
			return err
		}
		defer monitoring.ShutdownTracing(context.WithoutCancel(ctx), shutdownTracing)

		metrics, err := monitoring.NewMetrics(prometheus.DefaultRegisterer)
		if err != nil {
			return err
		}

		accessor, closeFn, err := openAccessor(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeFn()

		handler := lookup.NewHandler(accessor, lookup.WithMetrics(metrics))

		// Warm the dataset so the first request does not pay for the load.
		if records, err := handler.Records(ctx); err != nil {
			zap.L().Warn("dataset not loaded at startup", zap.Error(err))
		} else {
			zap.L().Info("dataset loaded", zap.String("source", accessor.Name()), zap.Int("records", len(records)))
		}

		checker := monitoring.NewChecker(metrics, monitoring.NewAlerter(cfg.Monitoring), func(ctx context.Context) (int, error) {
			records, err := accessor.Fetch(ctx)
			return len(records), err
		}, cfg.Monitoring)
		go checker.Run(ctx)

		server := api.NewServer(handler, api.Options{
			CORSOrigins: cfg.Server.CORSOrigins,
			DefaultKm:   cfg.Radius.DefaultKm,
			Metrics:     metrics,
		})

		srv := &http.Server{
			Addr:         api.Addr(cfg.Server.Port),
			Handler:      server.Router(),
			ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
			WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
