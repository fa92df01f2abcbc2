package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/linhao/stockscan/internal/api"
	"github.com/linhao/stockscan/internal/api/handlers"
	"github.com/linhao/stockscan/internal/batch"
	"github.com/linhao/stockscan/internal/checkpoint"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

이 명령어는:
- HTTP API 서버 시작
- 스캔 런/리포트 조회 엔드포인트 제공
- 진행률 조회 제공

Endpoints:
  GET  /health                  - Health check
  GET  /api/runs                - 런 목록 조회
  GET  /api/runs/{id}           - 런 상태 조회
  GET  /api/runs/{id}/report    - 런 리포트 조회
  GET  /api/progress            - 진행률 조회
  GET  /ws/progress             - 진행률 WebSocket 스트림

스케줄러와 함께 실행하려면 scheduler start 를 사용하세요.

Example:
  go run ./cmd/stockscan api
  go run ./cmd/stockscan api --port 8090`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본: PORT 환경변수)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== stockscan API Server ===")

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if apiPort != "" {
		cfg.Port = apiPort
	}

	store, err := checkpoint.NewStore(cfg.Batch.CheckpointDir, log)
	if err != nil {
		return fmt.Errorf("init checkpoint store: %w", err)
	}

	// A standalone API process has no scan running; the tracker stays
	// idle until a scheduler process shares it.
	router := api.NewRouter(
		handlers.NewScanHandler(store, log),
		handlers.NewProgressHandler(batch.NewProgress(), log),
		log,
	)
	server := api.New(cfg, log, router)

	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
