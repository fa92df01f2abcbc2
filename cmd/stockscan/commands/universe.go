package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/linhao/stockscan/internal/universe"
	"github.com/linhao/stockscan/pkg/httputil"
)

// universeCmd represents the universe command
var universeCmd = &cobra.Command{
	Use:   "universe",
	Short: "스캔 유니버스 조회",
	Long: `오늘의 스캔 유니버스를 구성해 출력합니다.

거래소 목록은 하루 한 번 캐시되며, ST/퇴출 종목과
커버하지 않는 시장(과창판, 북교소)은 제외됩니다.

Example:
  go run ./cmd/stockscan universe
  go run ./cmd/stockscan universe --show-excluded`,
	RunE: runUniverse,
}

var universeShowExcluded bool

func init() {
	rootCmd.AddCommand(universeCmd)

	universeCmd.Flags().BoolVar(&universeShowExcluded, "show-excluded", false, "제외 종목과 사유 출력")
}

func runUniverse(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	loader, err := universe.NewLoader(httputil.New(log), cfg.Upstream, filepath.Join(cfg.Cache.Dir, "universe"), log)
	if err != nil {
		return fmt.Errorf("init universe loader: %w", err)
	}

	u, err := loader.Load(context.Background())
	if err != nil {
		return fmt.Errorf("load universe: %w", err)
	}

	fmt.Printf("Universe for %s: %d symbols (%d excluded)\n",
		u.Date.Format("2006-01-02"), len(u.Symbols), len(u.Excluded))

	for _, s := range u.Symbols {
		fmt.Println(s)
	}

	if universeShowExcluded {
		fmt.Println("\nExcluded:")
		codes := make([]string, 0, len(u.Excluded))
		for code := range u.Excluded {
			codes = append(codes, code)
		}
		sort.Strings(codes)
		for _, code := range codes {
			fmt.Printf("  %s  %s\n", code, u.Excluded[code])
		}
	}

	return nil
}
