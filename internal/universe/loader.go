package universe

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/linhao/stockscan/pkg/config"
	"github.com/linhao/stockscan/pkg/httputil"
	"github.com/linhao/stockscan/pkg/logger"
)

// coveredPrefixes are the board prefixes the scanner trades: Shanghai and
// Shenzhen main boards plus ChiNext. STAR market (688) and Beijing
// exchange (4/8) symbols are excluded.
var coveredPrefixes = []string{"000", "001", "002", "003", "300", "600", "601", "603", "605"}

// Stock is one listed security from the exchange listing page.
type Stock struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Universe is the filtered symbol set for one scan, with per-symbol
// exclusion reasons for the symbols that did not make it.
type Universe struct {
	Date     time.Time
	Symbols  []string
	Excluded map[string]string
}

// Loader builds the scan universe from the exchange listing page
// ⭐ SSOT: 종목 유니버스 생성은 여기서만
//
// The raw listing is cached to disk once per day; filters are applied on
// every load so filter changes never require a refetch.
type Loader struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	listingURL string
	cacheDir   string
	now        func() time.Time
}

// NewLoader creates a universe loader.
func NewLoader(httpClient *httputil.Client, cfg config.UpstreamConfig, cacheDir string, log *logger.Logger) (*Loader, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create universe cache dir: %w", err)
	}
	return &Loader{
		httpClient: httpClient,
		logger:     log.WithField("module", "universe"),
		listingURL: cfg.ListingURL,
		cacheDir:   cacheDir,
		now:        time.Now,
	}, nil
}

// WithNow overrides the clock. Test helper.
func (l *Loader) WithNow(now func() time.Time) *Loader {
	l.now = now
	return l
}

// Load returns today's filtered universe, fetching the listing page only
// when today's cache file does not exist yet.
func (l *Loader) Load(ctx context.Context) (*Universe, error) {
	today := l.now()

	stocks, err := l.readCache(today)
	if err != nil {
		return nil, err
	}
	if stocks == nil {
		stocks, err = l.fetchListing(ctx)
		if err != nil {
			return nil, err
		}
		if err := l.writeCache(today, stocks); err != nil {
			// A failed cache write costs one refetch tomorrow, nothing else.
			l.logger.WithError(err).Warn("Failed to cache stock listing")
		}
	}

	universe := filter(stocks)
	universe.Date = today

	l.logger.WithFields(map[string]interface{}{
		"listed":   len(stocks),
		"selected": len(universe.Symbols),
		"excluded": len(universe.Excluded),
	}).Info("Universe built")

	return universe, nil
}

// fetchListing downloads and parses the exchange listing page.
func (l *Loader) fetchListing(ctx context.Context) ([]Stock, error) {
	resp, err := l.httpClient.Get(ctx, l.listingURL)
	if err != nil {
		return nil, fmt.Errorf("fetch listing: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch listing: unexpected status code %d", resp.StatusCode)
	}

	return parseListing(resp.Body)
}

// parseListing extracts code/name pairs from the listing table rows.
func parseListing(r io.Reader) ([]Stock, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse listing HTML: %w", err)
	}

	stocks := make([]Stock, 0)
	doc.Find("table.stock-list tbody tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}
		code := strings.TrimSpace(cells.Eq(0).Text())
		name := strings.TrimSpace(cells.Eq(1).Text())
		if code == "" {
			return
		}
		stocks = append(stocks, Stock{Code: code, Name: name})
	})

	if len(stocks) == 0 {
		return nil, fmt.Errorf("parse listing HTML: no stock rows found")
	}
	return stocks, nil
}

// filter applies the exclusion rules and keeps the listing order.
func filter(stocks []Stock) *Universe {
	u := &Universe{
		Symbols:  make([]string, 0, len(stocks)),
		Excluded: make(map[string]string),
	}
	for _, s := range stocks {
		if reason := checkExclusion(s); reason != "" {
			u.Excluded[s.Code] = reason
			continue
		}
		u.Symbols = append(u.Symbols, s.Code)
	}
	return u
}

// checkExclusion returns a reason string if the stock is excluded,
// empty if it passes all filters.
func checkExclusion(s Stock) string {
	upper := strings.ToUpper(s.Name)
	if strings.Contains(upper, "ST") {
		return "special treatment"
	}
	if strings.Contains(s.Name, "退") {
		return "delisting"
	}
	for _, prefix := range coveredPrefixes {
		if strings.HasPrefix(s.Code, prefix) {
			return ""
		}
	}
	return "market not covered"
}

// listingCache is the daily on-disk snapshot of the raw listing.
type listingCache struct {
	Date   string  `json:"date"`
	Stocks []Stock `json:"stocks"`
}

func (l *Loader) cachePath(day time.Time) string {
	return filepath.Join(l.cacheDir, fmt.Sprintf("stock_list_%s.json", day.Format("20060102")))
}

// readCache returns today's cached listing, or nil when absent.
func (l *Loader) readCache(day time.Time) ([]Stock, error) {
	data, err := os.ReadFile(l.cachePath(day))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read listing cache: %w", err)
	}

	var cached listingCache
	if err := json.Unmarshal(data, &cached); err != nil {
		// A corrupt cache file is not fatal: refetch.
		l.logger.WithError(err).Warn("Corrupt listing cache, refetching")
		return nil, nil
	}
	return cached.Stocks, nil
}

func (l *Loader) writeCache(day time.Time, stocks []Stock) error {
	data, err := json.MarshalIndent(listingCache{
		Date:   day.Format("20060102"),
		Stocks: stocks,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(l.cachePath(day), data, 0o644)
}

// LoadFile reads a static symbol list, one symbol per line. Blank lines
// and #-comments are skipped. Used for targeted scans of a hand-picked set.
func LoadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open symbol file: %w", err)
	}
	defer f.Close()

	symbols := make([]string, 0)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		symbols = append(symbols, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read symbol file: %w", err)
	}
	return symbols, nil
}
