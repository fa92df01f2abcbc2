package eastmoney

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/linhao/stockscan/internal/fetch"
	"github.com/linhao/stockscan/pkg/config"
	"github.com/linhao/stockscan/pkg/httputil"
	"github.com/linhao/stockscan/pkg/logger"
)

func TestSecID(t *testing.T) {
	tests := []struct {
		symbol string
		want   string
	}{
		{"600519", "1.600519"}, // Shanghai main board
		{"601318", "1.601318"},
		{"000001", "0.000001"}, // Shenzhen main board
		{"002594", "0.002594"},
		{"300750", "0.300750"}, // ChiNext
	}

	for _, tt := range tests {
		if got := secID(tt.symbol); got != tt.want {
			t.Errorf("secID(%q) = %q, want %q", tt.symbol, got, tt.want)
		}
	}
}

func TestParseKlines(t *testing.T) {
	tests := []struct {
		name    string
		klines  []string
		want    int
		wantErr bool
	}{
		{
			name: "valid candles",
			klines: []string{
				"2026-01-05,10.00,10.50,10.80,9.90,123456",
				"2026-01-06,10.50,10.20,10.60,10.10,98765",
			},
			want: 2,
		},
		{
			name:   "empty list",
			klines: []string{},
			want:   0,
		},
		{
			name:    "missing fields",
			klines:  []string{"2026-01-05,10.00,10.50"},
			wantErr: true,
		},
		{
			name:    "bad date",
			klines:  []string{"20260105,10.00,10.50,10.80,9.90,123456"},
			wantErr: true,
		},
		{
			name:    "non-numeric price",
			klines:  []string{"2026-01-05,n/a,10.50,10.80,9.90,123456"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseKlines(tt.klines)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseKlines() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != tt.want {
				t.Fatalf("parseKlines() got %d bars, want %d", len(got), tt.want)
			}
		})
	}

	t.Run("field order is date,open,close,high,low,volume", func(t *testing.T) {
		bars, err := parseKlines([]string{"2026-01-05,10.00,10.50,10.80,9.90,123456"})
		if err != nil {
			t.Fatal(err)
		}
		bar := bars[0]
		if bar.Open != 10.00 || bar.Close != 10.50 || bar.High != 10.80 || bar.Low != 9.90 {
			t.Errorf("unexpected OHLC: %+v", bar)
		}
		if bar.Volume != 123456 {
			t.Errorf("Volume = %d, want 123456", bar.Volume)
		}
	})
}

func newTestClient(serverURL string) *Client {
	log := logger.NewNop()
	return NewClient(httputil.New(log), config.UpstreamConfig{
		BaseURL:   serverURL,
		StartDate: "20220101",
	}, log)
}

func TestDailyBars(t *testing.T) {
	t.Run("valid response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("secid"); got != "1.600519" {
				t.Errorf("secid = %q, want 1.600519", got)
			}
			w.Write([]byte(`{"data":{"code":"600519","name":"test","klines":[
				"2026-01-05,10.00,10.50,10.80,9.90,123456",
				"2026-01-06,10.50,10.20,10.60,10.10,98765"
			]}}`))
		}))
		defer server.Close()

		bars, err := newTestClient(server.URL).DailyBars(context.Background(), "600519")
		if err != nil {
			t.Fatal(err)
		}
		if len(bars) != 2 {
			t.Fatalf("got %d bars, want 2", len(bars))
		}
	})

	t.Run("null data is permanent", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"data":null}`))
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).DailyBars(context.Background(), "999999")
		if !fetch.IsPermanent(err) {
			t.Fatalf("expected permanent error, got %v", err)
		}
	})

	t.Run("server error is transient", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).DailyBars(context.Background(), "600519")
		if !fetch.IsTransient(err) {
			t.Fatalf("expected transient error, got %v", err)
		}
	})

	t.Run("rate limit is transient", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).DailyBars(context.Background(), "600519")
		if !fetch.IsTransient(err) {
			t.Fatalf("expected transient error, got %v", err)
		}
	})

	t.Run("malformed body is permanent", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html>not json</html>`))
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).DailyBars(context.Background(), "600519")
		if !fetch.IsPermanent(err) {
			t.Fatalf("expected permanent error, got %v", err)
		}
	})
}
