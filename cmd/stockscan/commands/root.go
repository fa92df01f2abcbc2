package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stockscan",
	Short: "stockscan - A주 전종목 배치 스크리너",
	Long: `stockscan Unified CLI

A주 전체 유니버스를 대상으로 일봉 데이터를 수집하고
전략 시그널을 평가하는 배치 스크리너.

Usage:
  go run ./cmd/stockscan [command]

Examples:
  go run ./cmd/stockscan scan
  go run ./cmd/stockscan scan --resume run_20260825_190000
  go run ./cmd/stockscan api
  go run ./cmd/stockscan scheduler start
  go run ./cmd/stockscan universe`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
