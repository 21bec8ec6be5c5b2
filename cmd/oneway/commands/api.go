package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/oneway/internal/api"
	"github.com/wonny/oneway/internal/api/handlers"
	"github.com/wonny/oneway/internal/backtest"
	"github.com/wonny/oneway/internal/dataset"
	"github.com/wonny/oneway/internal/metrics"
	"github.com/wonny/oneway/pkg/config"
	"github.com/wonny/oneway/pkg/httputil"
	"github.com/wonny/oneway/pkg/logger"
	"github.com/wonny/oneway/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

이 명령어는:
- HTTP API 서버 시작
- 백테스트 런 조회 엔드포인트 제공
- 백테스트/할당 실행 트리거 제공

Endpoints:
  GET  /health                   - Health check
  GET  /api/runs                 - 런 목록 조회
  GET  /api/runs/{id}            - 런 상세 조회
  GET  /api/runs/{id}/episodes   - 에피소드별 결과 조회
  POST /api/backtest             - 백테스트 실행
  POST /api/allocate             - 단일 에피소드 할당

Example:
  go run ./cmd/oneway api
  go run ./cmd/oneway api --port 8090`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본: 환경변수)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Oneway API Server ===")

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Override port if flag is set
	if apiPort != "" {
		cfg.Port = apiPort
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	log.WithFields(map[string]interface{}{
		"port": cfg.Port,
		"env":  cfg.Env,
	}).Info("Initializing API server")

	// 3. Open the result store
	repo, cleanup, err := openRepository(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	// 4. Connect Redis cache (no-op when disabled)
	redisClient, err := redis.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()
	cache := redis.NewCache(redisClient, "oneway")

	// 5. Create data loader and backtest engine
	httpClient := httputil.New(log)
	fetcher := dataset.NewFetcher(cfg.Data, httpClient, log)
	engine := backtest.NewEngine(repo, log)

	// 6. Create handlers
	runsHandler := handlers.NewRunsHandler(repo, cache, log)
	backtestHandler := handlers.NewBacktestHandler(engine, fetcher, log)
	allocateHandler := handlers.NewAllocateHandler(log)

	// 7. Create router and server
	router := api.NewRouter(runsHandler, backtestHandler, allocateHandler, log)
	server := api.New(cfg, log, router)

	// 8. Start metrics server when enabled
	var metricsServer *metrics.Server
	if cfg.MetricsEnabled {
		metricsServer = metrics.NewServer(cfg.MetricsPort, log)
		go func() {
			if err := metricsServer.Start(); err != nil {
				log.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	// 9. Start server with graceful shutdown
	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", cfg.Port)
	fmt.Println("\nAvailable endpoints:")
	fmt.Println("  GET  /health")
	fmt.Println("  GET  /api/runs")
	fmt.Println("  GET  /api/runs/{id}")
	fmt.Println("  GET  /api/runs/{id}/episodes")
	fmt.Println("  POST /api/backtest")
	fmt.Println("  POST /api/allocate")
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("Metrics server shutdown failed")
		}
	}

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
