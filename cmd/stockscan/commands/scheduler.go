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
	"github.com/linhao/stockscan/internal/scheduler"
	"github.com/linhao/stockscan/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `스케줄러 데몬을 시작합니다.

이 명령어는:
- 야간 전종목 스캔 스케줄 등록 (SCAN_SCHEDULE)
- API 서버 동시 기동 (런/진행률 조회)

스케줄러는 Ctrl+C로 종료할 수 있습니다.

Example:
  go run ./cmd/stockscan scheduler start
  go run ./cmd/stockscan scheduler start --run-now`,
}

var (
	schedulerRunNow bool

	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		RunE:  runScheduler,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)

	schedulerStartCmd.Flags().BoolVar(&schedulerRunNow, "run-now", false, "기동 직후 스캔 1회 즉시 실행")
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== stockscan Scheduler ===")

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	stack, err := buildScanStack(cfg, log)
	if err != nil {
		return err
	}
	defer stack.Close()

	// Scheduler
	sched := scheduler.New(log)

	var archiver jobs.Archiver
	if stack.repo != nil {
		archiver = stack.repo
	}
	scanJob := jobs.NewScanJob(stack.loader, stack.coordinator, stack.strategies, archiver, cfg.ScanSchedule, log)
	if err := sched.AddJob(scanJob); err != nil {
		return fmt.Errorf("register scan job: %w", err)
	}

	sched.Start()
	defer sched.Stop()

	if schedulerRunNow {
		if err := sched.RunJob(scanJob.Name()); err != nil {
			return err
		}
	}

	// API server in the same process so progress streams live scan state.
	router := api.NewRouter(
		handlers.NewScanHandler(stack.checkpoints, log),
		handlers.NewProgressHandler(stack.coordinator.Progress(), log),
		log,
	)
	server := api.New(cfg, log, router)

	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("\n✅ Scheduler running, scan schedule: %s\n", cfg.ScanSchedule)
	fmt.Printf("✅ API on http://localhost:%s\n", cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Scheduler stopped")
	return nil
}
