package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "todo-api",
	Short:         "Todo CRUD service backed by MongoDB",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  "Connects to MongoDB and serves the todo API under /api",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("config", "", "path to a TOML config file")
	serveCmd.Flags().String("port", "", "port to listen on (overrides PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil {
		log.Info(".env file not found, using environment variables")
	}

	path, _ := cmd.Flags().GetString("config")
	cfg, err := LoadConfig(path)
	if err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}
	configureLogging(cfg)

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			AttachStacktrace: true,
		}); err != nil {
			log.Fatalf("Sentry initialization failed: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	client, store := ConnectMongo(cfg)
	defer disconnect(client, cfg.ShutdownTimeout)

	schemaCtx, cancelSchema := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	if err := store.EnsureSchema(schemaCtx); err != nil {
		log.WithError(err).Error("Failed to install todo schema validator")
	}
	cancelSchema()

	opts := RouterOptions{Sentry: cfg.SentryDSN != ""}
	var metricsServer *http.Server
	if cfg.MetricsEnabled() {
		metricRouter, monitor := NewMetricsRouter()
		opts.Metrics = monitor
		metricsServer = &http.Server{Addr: ":" + cfg.MetricsPort, Handler: metricRouter}
		go func() {
			log.Infof("Metrics listening on port %s", cfg.MetricsPort)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("Metrics server stopped")
			}
		}()
	}

	server := &http.Server{Addr: ":" + cfg.Port, Handler: NewRouter(store, opts)}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		log.Infof("Server running on port %s", cfg.Port)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	if metricsServer != nil {
		_ = metricsServer.Shutdown(shutdownCtx)
	}

	log.Info("HTTP server shut down gracefully")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
