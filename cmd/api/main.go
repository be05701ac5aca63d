package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dan9191/cashflow-service/internal/config"
	"github.com/Dan9191/cashflow-service/internal/handler"
	"github.com/Dan9191/cashflow-service/internal/integrations/analytics"
	"github.com/Dan9191/cashflow-service/internal/integrations/insights"
	"github.com/Dan9191/cashflow-service/internal/metrics"
	"github.com/Dan9191/cashflow-service/internal/middleware"
	"github.com/Dan9191/cashflow-service/internal/repository"
	"github.com/Dan9191/cashflow-service/internal/scheduler"
	"github.com/Dan9191/cashflow-service/internal/service"
	"github.com/Dan9191/cashflow-service/internal/utils/email"
	"github.com/getsentry/sentry-go"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var flagConfig string

var rootCmd = &cobra.Command{
	Use:   "cashflow-gateway",
	Short: "Cashflow forecasting gateway",
	Long:  "Fronts the forecast provider with a stable JSON API, keeps invoice reminders and paid markers, and sends due reminders.",
	RunE:  runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the reminder sweep",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the reminder store schema and exit",
	RunE:  runMigrate,
}

var remindCmd = &cobra.Command{
	Use:   "remind",
	Short: "Run one reminder sweep and exit",
	RunE:  runRemind,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "YAML config file (overrides CONFIG_FILE)")
	rootCmd.AddCommand(serveCmd, migrateCmd, remindCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads config and the logger shared by every command.
func setup() (*config.Config, *logrus.Logger, error) {
	if flagConfig != "" {
		if err := os.Setenv("CONFIG_FILE", flagConfig); err != nil {
			return nil, nil, err
		}
	}

	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	cfg, err := config.NewConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	return cfg, logger, nil
}

func openStore(ctx context.Context, cfg *config.Config) (*repository.Repository, error) {
	repo, err := repository.Open(cfg.StoreDriver, cfg.DBConn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.StoreDriver, err)
	}
	if err := repo.Migrate(ctx); err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("failed to migrate store: %w", err)
	}
	return repo, nil
}

// notifier is nil unless SMTP is fully configured.
func notifier(cfg *config.Config, logger *logrus.Logger) scheduler.Notifier {
	if !cfg.SMTPEnabled() {
		logger.Info("SMTP not configured, reminders will be logged")
		return nil
	}
	return email.NewSender(cfg, logger)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	repo, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer repo.Close()
	logger.WithField("driver", cfg.StoreDriver).Info("Store schema is up to date")
	return nil
}

func runRemind(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	metrics.Init()
	repo, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	sent, err := scheduler.New(repo, notifier(cfg, logger), logger).Sweep(cmd.Context())
	if err != nil {
		return err
	}
	logger.Infof("Reminder sweep delivered %d reminders", sent)
	return nil
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			ServerName:  cfg.ServiceName,
			Environment: os.Getenv("ENVIRONMENT"),
		}); err != nil {
			logger.WithError(err).Warn("Failed to initialize Sentry")
		}
		defer sentry.Flush(2 * time.Second)
	}
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	// Initialize layers
	var insighter service.Insighter
	if client := insights.NewClient(cfg, logger); client != nil {
		insighter = client
	}
	svc := service.NewService(analytics.NewClient(cfg, logger), repo, insighter, logger, cfg)
	h := handler.NewHandler(svc, logger, cfg.ServiceName, cfg.MaxUploadBytes)

	sched := scheduler.New(repo, notifier(cfg, logger), logger)
	if err := sched.Start(ctx, cfg.ReminderSchedule); err != nil {
		return err
	}
	defer sched.Stop()

	// Setup router
	r := mux.NewRouter()
	r.Use(middleware.RequestIDMiddleware, middleware.LoggingMiddleware(logger))
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	h.Routes(r)

	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.AnalyticsTimeout*time.Duration(cfg.AnalyticsRetries+1) + 10*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"provider": cfg.AnalyticsURL,
			"store":    cfg.StoreDriver,
		}).Infof("Starting gateway on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down gateway")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
