package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/r0zar/amm-price-engine/internal/apperror"
	"github.com/r0zar/amm-price-engine/internal/logger"
)

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func TestCoinbase_Fetch(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		want     float64
		wantCode apperror.Code
	}{
		{
			name:   "ok",
			status: http.StatusOK,
			body:   `{"data":{"base":"BTC","currency":"USD","amount":"60123.45"}}`,
			want:   60123.45,
		},
		{
			name:     "http_error",
			status:   http.StatusInternalServerError,
			body:     `{"errors":[{"message":"internal"}]}`,
			wantCode: apperror.CodeOracleSourceError,
		},
		{
			name:     "bad_amount",
			status:   http.StatusOK,
			body:     `{"data":{"amount":"not-a-number"}}`,
			wantCode: apperror.CodeOracleParseError,
		},
		{
			name:     "missing_amount",
			status:   http.StatusOK,
			body:     `{}`,
			wantCode: apperror.CodeOracleParseError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := serve(t, tt.status, tt.body)
			defer server.Close()

			src, err := NewCoinbase(Config{Name: "coinbase", URL: server.URL, Priority: 1}, logger.Nop())
			if err != nil {
				t.Fatalf("NewCoinbase failed: %v", err)
			}

			got, err := src.Fetch(context.Background())
			if tt.wantCode != "" {
				if err == nil {
					t.Fatal("expected error")
				}
				if apperror.CodeOf(err) != tt.wantCode {
					t.Errorf("code = %v, want %v", apperror.CodeOf(err), tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("Fetch failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Fetch = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKraken_Fetch(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		want     float64
		wantCode apperror.Code
	}{
		{
			name: "ok",
			body: `{"error":[],"result":{"XXBTZUSD":{"c":["60500.1","0.5"]}}}`,
			want: 60500.1,
		},
		{
			name:     "api_error",
			body:     `{"error":["EQuery:Unknown asset pair"]}`,
			wantCode: apperror.CodeOracleSourceError,
		},
		{
			name:     "empty_result",
			body:     `{"error":[],"result":{}}`,
			wantCode: apperror.CodeOracleParseError,
		},
		{
			name:     "bad_close_price",
			body:     `{"error":[],"result":{"XXBTZUSD":{"c":["zero","0.5"]}}}`,
			wantCode: apperror.CodeOracleParseError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := serve(t, http.StatusOK, tt.body)
			defer server.Close()

			src, err := NewKraken(Config{Name: "kraken", URL: server.URL, Priority: 2}, logger.Nop())
			if err != nil {
				t.Fatalf("NewKraken failed: %v", err)
			}

			got, err := src.Fetch(context.Background())
			if tt.wantCode != "" {
				if err == nil {
					t.Fatal("expected error")
				}
				if apperror.CodeOf(err) != tt.wantCode {
					t.Errorf("code = %v, want %v", apperror.CodeOf(err), tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("Fetch failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Fetch = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCoinGecko_Fetch(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		want     float64
		wantCode apperror.Code
	}{
		{
			name: "ok",
			body: `{"wrapped-bitcoin":{"usd":59980.2}}`,
			want: 59980.2,
		},
		{
			name:     "missing_asset",
			body:     `{}`,
			wantCode: apperror.CodeOracleParseError,
		},
		{
			name:     "zero_price",
			body:     `{"wrapped-bitcoin":{"usd":0}}`,
			wantCode: apperror.CodeOracleParseError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := serve(t, http.StatusOK, tt.body)
			defer server.Close()

			src, err := NewCoinGecko(Config{Name: "coingecko", URL: server.URL, Priority: 3}, logger.Nop())
			if err != nil {
				t.Fatalf("NewCoinGecko failed: %v", err)
			}

			got, err := src.Fetch(context.Background())
			if tt.wantCode != "" {
				if err == nil {
					t.Fatal("expected error")
				}
				if apperror.CodeOf(err) != tt.wantCode {
					t.Errorf("code = %v, want %v", apperror.CodeOf(err), tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("Fetch failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Fetch = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNew_UnknownSource(t *testing.T) {
	if _, err := New(Config{Name: "bogus"}, logger.Nop()); err == nil {
		t.Fatal("expected error for unknown source name")
	}
}

func TestNew_KnownSources(t *testing.T) {
	for _, name := range []string{"coinbase", "kraken", "coingecko"} {
		src, err := New(Config{Name: name, Priority: 1}, logger.Nop())
		if err != nil {
			t.Fatalf("New(%s) failed: %v", name, err)
		}
		if src.Name() != name {
			t.Errorf("Name() = %q, want %q", src.Name(), name)
		}
	}
}
