package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/linhao/stockscan/internal/report"
	"github.com/linhao/stockscan/internal/universe"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "전종목 스캔 실행",
	Long: `유니버스 전체를 대상으로 일봉 데이터를 수집하고
등록된 전략을 평가합니다.

이 명령어는:
- 유니버스 구성 (거래소 목록 또는 심볼 파일)
- 심볼별 fetch → 전략 평가
- 주기적 체크포인트 저장
- 스캔 리포트 출력 (옵션: DB 아카이브)

중단된 런은 --resume 으로 이어서 실행합니다.

Example:
  go run ./cmd/stockscan scan
  go run ./cmd/stockscan scan --symbols-file watchlist.txt
  go run ./cmd/stockscan scan --resume run_20260825_190000`,
	RunE: runScan,
}

var (
	scanSymbolsFile string
	scanResumeID    string
	scanOutFile     string
)

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVar(&scanSymbolsFile, "symbols-file", "", "스캔할 심볼 파일 (줄 단위, 미지정시 전체 유니버스)")
	scanCmd.Flags().StringVar(&scanResumeID, "resume", "", "이어서 실행할 run ID")
	scanCmd.Flags().StringVar(&scanOutFile, "out", "", "리포트 JSON 출력 파일")
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	stack, err := buildScanStack(cfg, log)
	if err != nil {
		return err
	}
	defer stack.Close()

	// Ctrl+C stops dispatching; in-flight symbols finish and the run can
	// be resumed later.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var symbols []string
	if scanResumeID == "" {
		symbols, err = resolveSymbols(ctx, stack, scanSymbolsFile)
		if err != nil {
			return err
		}
	}

	run, err := stack.coordinator.Run(ctx, symbols, stack.strategies, scanResumeID)
	if err != nil {
		return fmt.Errorf("scan run: %w", err)
	}

	rep := report.Build(run)
	printReport(rep)

	if !run.Terminal() {
		fmt.Printf("\n⚠  Run interrupted. Resume with:\n  go run ./cmd/stockscan scan --resume %s\n", run.ID)
	}

	if scanOutFile != "" {
		if err := writeReportFile(scanOutFile, rep); err != nil {
			return err
		}
		fmt.Printf("\nReport written to %s\n", scanOutFile)
	}

	if stack.repo != nil && run.Terminal() {
		if err := stack.repo.Archive(ctx, rep); err != nil {
			return fmt.Errorf("archive report: %w", err)
		}
		fmt.Println("Report archived to database")
	}

	return nil
}

// resolveSymbols picks the scan universe: a static file or the exchange
// listing.
func resolveSymbols(ctx context.Context, stack *scanStack, symbolsFile string) ([]string, error) {
	if symbolsFile != "" {
		symbols, err := universe.LoadFile(symbolsFile)
		if err != nil {
			return nil, err
		}
		fmt.Printf("Scanning %d symbols from %s\n", len(symbols), symbolsFile)
		return symbols, nil
	}

	u, err := stack.loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load universe: %w", err)
	}
	fmt.Printf("Scanning %d symbols (%d excluded by filters)\n", len(u.Symbols), len(u.Excluded))
	return u.Symbols, nil
}

func printReport(rep *report.Report) {
	fmt.Println("\n=== Scan Report ===")
	fmt.Printf("Run:       %s\n", rep.RunID)
	fmt.Printf("Universe:  %d\n", rep.Universe)
	fmt.Printf("Done:      %d (degraded: %d)\n", rep.Done, rep.Degraded)
	fmt.Printf("Failed:    %d\n", rep.Failed)
	fmt.Printf("Pending:   %d\n", rep.Pending)

	triggered := rep.TriggeredSymbols()
	fmt.Printf("Triggered: %d\n", len(triggered))
	if len(triggered) > 0 {
		fmt.Printf("\n  %s\n", strings.Join(triggered, ", "))
	}
}

func writeReportFile(path string, rep *report.Report) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
