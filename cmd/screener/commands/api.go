package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/astock-tools/screener/internal/api"
	"github.com/astock-tools/screener/internal/api/handlers"
)

var apiPort string

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the HTTP API server",
	Long: `Serves strategy runs and cached results over HTTP.

Endpoints:
  GET  /health                           - health check
  POST /api/strategies/{name}/run        - run a strategy (rps|ma|trend|combined)
  GET  /api/strategies/{name}/results    - latest cached candidates
  GET  /api/strategies/{name}/status     - latest cached run status

Example:
  go run ./cmd/screener api --port 8080`,
	RunE: runAPIServer,
}

func init() {
	apiCmd.Flags().StringVar(&apiPort, "port", "", "listen port (default: configured)")
	rootCmd.AddCommand(apiCmd)
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	strategyHandler := handlers.NewStrategyHandler(a.runner, a.cache, a.log)
	router := api.NewRouter(strategyHandler, a.log)
	server := api.New(a.cfg, a.log, router)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		a.log.WithField("signal", sig.String()).Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
