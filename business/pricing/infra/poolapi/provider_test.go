package poolapi

import (
	"context"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/r0zar/amm-price-engine/internal/apperror"
	"github.com/r0zar/amm-price-engine/internal/logger"
)

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

const tokenWBTC = "0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599"
const tokenUSDC = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
const poolAddr = "0x0000000000000000000000000000000000000101"

func validBody() string {
	return `{"pools":[{
		"poolId":"` + poolAddr + `",
		"protocol":"uniswap-v2",
		"type":"pool",
		"tokenA":{"id":"` + tokenWBTC + `","symbol":"WBTC","decimals":8},
		"tokenB":{"id":"` + tokenUSDC + `","symbol":"USDC","decimals":6},
		"reserveA":"100000000",
		"reserveB":"60000000000",
		"updatedAt":1756600000000
	}]}`
}

func TestListPools(t *testing.T) {
	srv := serve(t, http.StatusOK, validBody())

	p, err := NewProvider(DefaultProviderConfig(srv.URL), logger.Nop())
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}

	records, err := p.ListPools(context.Background(), "uniswap-v2")
	if err != nil {
		t.Fatalf("ListPools failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}

	rec := records[0]
	if rec.PoolID != common.HexToAddress(poolAddr) {
		t.Errorf("poolID = %s", rec.PoolID.Hex())
	}
	if rec.TokenA.Symbol != "WBTC" || rec.TokenA.Decimals != 8 {
		t.Errorf("tokenA = %+v", rec.TokenA)
	}
	if rec.ReserveA.Cmp(big.NewInt(100000000)) != 0 {
		t.Errorf("reserveA = %s", rec.ReserveA)
	}
	if rec.LastUpdated.IsZero() {
		t.Error("LastUpdated not set from updatedAt")
	}
}

func TestListPools_FiltersNonSwapTypes(t *testing.T) {
	body := `{"pools":[
		{"poolId":"` + poolAddr + `","type":"vault",
		 "tokenA":{"id":"` + tokenWBTC + `","symbol":"WBTC","decimals":8},
		 "tokenB":{"id":"` + tokenUSDC + `","symbol":"USDC","decimals":6},
		 "reserveA":"1","reserveB":"1"}
	]}`
	srv := serve(t, http.StatusOK, body)

	p, err := NewProvider(DefaultProviderConfig(srv.URL), logger.Nop())
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}

	records, err := p.ListPools(context.Background(), "")
	if err != nil {
		t.Fatalf("ListPools failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("records = %d, want vault record filtered out", len(records))
	}
}

func TestListPools_SkipsMalformedRecords(t *testing.T) {
	tests := []struct {
		name string
		pool string
	}{
		{
			name: "bad pool id",
			pool: `{"poolId":"not-an-address",
				"tokenA":{"id":"` + tokenWBTC + `","symbol":"WBTC","decimals":8},
				"tokenB":{"id":"` + tokenUSDC + `","symbol":"USDC","decimals":6},
				"reserveA":"1","reserveB":"1"}`,
		},
		{
			name: "bad token id",
			pool: `{"poolId":"` + poolAddr + `",
				"tokenA":{"id":"WBTC","symbol":"WBTC","decimals":8},
				"tokenB":{"id":"` + tokenUSDC + `","symbol":"USDC","decimals":6},
				"reserveA":"1","reserveB":"1"}`,
		},
		{
			name: "negative reserve",
			pool: `{"poolId":"` + poolAddr + `",
				"tokenA":{"id":"` + tokenWBTC + `","symbol":"WBTC","decimals":8},
				"tokenB":{"id":"` + tokenUSDC + `","symbol":"USDC","decimals":6},
				"reserveA":"-5","reserveB":"1"}`,
		},
		{
			name: "non-numeric reserve",
			pool: `{"poolId":"` + poolAddr + `",
				"tokenA":{"id":"` + tokenWBTC + `","symbol":"WBTC","decimals":8},
				"tokenB":{"id":"` + tokenUSDC + `","symbol":"USDC","decimals":6},
				"reserveA":"1.5e9","reserveB":"1"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serve(t, http.StatusOK, `{"pools":[`+tt.pool+`]}`)

			p, err := NewProvider(DefaultProviderConfig(srv.URL), logger.Nop())
			if err != nil {
				t.Fatalf("NewProvider failed: %v", err)
			}

			records, err := p.ListPools(context.Background(), "")
			if err != nil {
				t.Fatalf("ListPools failed: %v", err)
			}
			if len(records) != 0 {
				t.Errorf("records = %d, want malformed record skipped", len(records))
			}
		})
	}
}

func TestListPools_HTTPError(t *testing.T) {
	srv := serve(t, http.StatusBadGateway, `{"error":"upstream down"}`)

	p, err := NewProvider(DefaultProviderConfig(srv.URL), logger.Nop())
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}

	_, err = p.ListPools(context.Background(), "")
	if err == nil {
		t.Fatal("expected error")
	}
	if apperror.CodeOf(err) != apperror.CodePoolFetchFailed {
		t.Errorf("code = %v, want CodePoolFetchFailed", apperror.CodeOf(err))
	}
}

func TestListPools_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	srv := serve(t, http.StatusInternalServerError, `{}`)

	p, err := NewProvider(DefaultProviderConfig(srv.URL), logger.Nop())
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := p.ListPools(ctx, ""); err == nil {
			t.Fatalf("call %d: expected failure", i)
		}
	}

	_, err = p.ListPools(ctx, "")
	if apperror.CodeOf(err) != apperror.CodeCircuitOpen {
		t.Errorf("code = %v, want CodeCircuitOpen after 3 consecutive failures", apperror.CodeOf(err))
	}
}

func TestNewProvider_RequiresBaseURL(t *testing.T) {
	if _, err := NewProvider(ProviderConfig{}, logger.Nop()); err == nil {
		t.Fatal("expected configuration error")
	}
}
