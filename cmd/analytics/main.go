package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dan9191/cashflow-service/internal/analytics"
	"github.com/Dan9191/cashflow-service/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	flagDataDir string
	flagPort    string
)

var rootCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Cashflow forecast provider",
	Long:  "Serves forecasts, simulations and due lists computed from branch statement CSVs.",
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringVarP(&flagDataDir, "data-dir", "d", "", "Statement directory (overrides DATA_DIR)")
	rootCmd.Flags().StringVarP(&flagPort, "port", "p", "", "Listen port (overrides ANALYTICS_PORT)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(_ *cobra.Command, _ []string) error {
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
		return fmt.Errorf("failed to load config: %w", err)
	}
	if flagDataDir != "" {
		cfg.DataDir = flagDataDir
	}
	if flagPort != "" {
		cfg.AnalyticsPort = flagPort
	}

	engine := analytics.NewEngine(cfg.DataDir)
	srv := analytics.NewServer(engine, cfg.AnalyticsTokenSecret, logger)

	addr := fmt.Sprintf(":%s", cfg.AnalyticsPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      srv.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("data_dir", cfg.DataDir).Infof("Starting analytics provider on %s", addr)
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

	logger.Info("Shutting down analytics provider")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
