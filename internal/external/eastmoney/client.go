package eastmoney

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/linhao/stockscan/internal/fetch"
	"github.com/linhao/stockscan/internal/marketdata"
	"github.com/linhao/stockscan/pkg/config"
	"github.com/linhao/stockscan/pkg/httputil"
	"github.com/linhao/stockscan/pkg/logger"
)

// Client handles communication with the Eastmoney kline API
// ⭐ SSOT: Eastmoney API 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	startDate  string
}

// NewClient creates a new Eastmoney client. Retries stay with the caller;
// the underlying HTTP client only rate-limits.
func NewClient(httpClient *httputil.Client, cfg config.UpstreamConfig, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient.DisableRetry(),
		logger:     log.WithField("module", "eastmoney"),
		baseURL:    cfg.BaseURL,
		startDate:  cfg.StartDate,
	}
}

// klineResponse is the kline API envelope. Data is null for unknown symbols.
type klineResponse struct {
	Data *struct {
		Code   string   `json:"code"`
		Name   string   `json:"name"`
		Klines []string `json:"klines"`
	} `json:"data"`
}

// DailyBars fetches the forward-adjusted daily candles for one symbol.
func (c *Client) DailyBars(ctx context.Context, symbol string) ([]marketdata.Bar, error) {
	params := url.Values{}
	params.Set("secid", secID(symbol))
	params.Set("klt", "101") // daily
	params.Set("fqt", "1")   // forward adjusted
	params.Set("beg", c.startDate)
	params.Set("end", "20500101")
	params.Set("fields1", "f1,f2,f3,f4,f5,f6")
	params.Set("fields2", "f51,f52,f53,f54,f55,f56") // date,open,close,high,low,volume

	fullURL := fmt.Sprintf("%s/api/qt/stock/kline/get?%s", c.baseURL, params.Encode())

	resp, err := c.httpClient.Get(ctx, fullURL)
	if err != nil {
		return nil, fetch.Transient(symbol, fmt.Errorf("kline request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("kline request: unexpected status code %d", resp.StatusCode)
		if httputil.IsRetryableStatus(resp.StatusCode) {
			return nil, fetch.Transient(symbol, err)
		}
		return nil, fetch.Permanent(symbol, err)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fetch.Transient(symbol, fmt.Errorf("read kline response: %w", err))
	}

	var parsed klineResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fetch.Permanent(symbol, fmt.Errorf("decode kline response: %w", err))
	}
	if parsed.Data == nil {
		// The API answers 200 with a null payload for delisted or
		// unknown symbols.
		return nil, fetch.Permanent(symbol, fmt.Errorf("no kline data for symbol"))
	}

	bars, err := parseKlines(parsed.Data.Klines)
	if err != nil {
		return nil, fetch.Permanent(symbol, fmt.Errorf("parse klines: %w", err))
	}

	c.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"bars":   len(bars),
	}).Debug("Fetched daily klines")

	return bars, nil
}

// secID maps a symbol to Eastmoney's market-prefixed id:
// 1 = Shanghai (6xxxxx), 0 = Shenzhen (everything else).
func secID(symbol string) string {
	if strings.HasPrefix(symbol, "6") {
		return "1." + symbol
	}
	return "0." + symbol
}

// parseKlines parses "date,open,close,high,low,volume" candle lines.
func parseKlines(klines []string) ([]marketdata.Bar, error) {
	bars := make([]marketdata.Bar, 0, len(klines))
	for _, line := range klines {
		fields := strings.Split(line, ",")
		if len(fields) < 6 {
			return nil, fmt.Errorf("kline %q: expected 6 fields, got %d", line, len(fields))
		}

		date, err := time.Parse("2006-01-02", fields[0])
		if err != nil {
			return nil, fmt.Errorf("kline %q: bad date: %w", line, err)
		}

		values := make([]float64, 4)
		for i, f := range fields[1:5] {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("kline %q: bad price %q: %w", line, f, err)
			}
			values[i] = v
		}

		volume, err := strconv.ParseInt(fields[5], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("kline %q: bad volume %q: %w", line, fields[5], err)
		}

		bars = append(bars, marketdata.Bar{
			Date:   date,
			Open:   values[0],
			Close:  values[1],
			High:   values[2],
			Low:    values[3],
			Volume: volume,
		})
	}
	return bars, nil
}
