package yahoo_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"optionsdata/internal/feed"
	"optionsdata/internal/httpx"
	"optionsdata/internal/provider/yahoo"
)

const chartPayload = `{
	"chart": {
		"result": [{
			"meta": {"symbol": "SPY", "longName": "SPDR S&P 500 ETF Trust", "exchangeName": "PCX"},
			"timestamp": [1754006400, 1754265600],
			"indicators": {"quote": [{
				"open":   [628.0, 631.1],
				"high":   [630.5, 633.2],
				"low":    [626.4, null],
				"close":  [629.1, 632.25],
				"volume": [61000000, 55000000]
			}]}
		}],
		"error": null
	}
}`

const chainPayload = `{
	"optionChain": {
		"result": [{
			"quote": {"regularMarketPrice": 650.00},
			"options": [{
				"calls": [
					{"strike": 650, "lastPrice": 3.10, "bid": 3.00, "ask": 3.20, "volume": 1200, "openInterest": 9000, "impliedVolatility": 0.141},
					{"strike": 655, "lastPrice": 1.70, "bid": 1.65, "ask": 1.95, "volume": 5400, "openInterest": 31000, "impliedVolatility": 0.132, "delta": 0.21}
				],
				"puts": [
					{"strike": 655, "lastPrice": 6.40, "bid": 6.30, "ask": 6.55, "volume": 800, "openInterest": 4000}
				]
			}]
		}],
		"error": null
	}
}`

func newProvider(t *testing.T, handler http.HandlerFunc) *yahoo.Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return yahoo.New(yahoo.Config{BaseURL: srv.URL}, httpx.New(5*time.Second))
}

func TestPriceHistory(t *testing.T) {
	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v8/finance/chart/SPY", r.URL.Path)
		require.Equal(t, "1d", r.URL.Query().Get("interval"))
		_, _ = w.Write([]byte(chartPayload))
	})

	got, err := p.PriceHistory(context.Background(), feed.PriceRequest{
		Symbol: "spy",
		Start:  time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
		End:    time.Date(2025, 8, 4, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Equal(t, "SPY", got.Symbol)
	require.Equal(t, "SPDR S&P 500 ETF Trust", got.Name)
	require.Len(t, got.Bars, 2)
	require.True(t, got.Bars[0].Close.Equal(decimal.RequireFromString("629.1")))
	// A null slot in the parallel arrays stays nil, never zero.
	require.Nil(t, got.Bars[1].Low)
	require.NotNil(t, got.Bars[1].High)
}

func TestPriceHistory_ChartErrorIsUnavailable(t *testing.T) {
	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`))
	})

	_, err := p.PriceHistory(context.Background(), feed.PriceRequest{Symbol: "NOPE"})
	require.ErrorIs(t, err, feed.ErrUnavailable)
	require.False(t, feed.IsTransport(err))
}

func TestOptionQuote(t *testing.T) {
	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v7/finance/options/SPY", r.URL.Path)
		_, _ = w.Write([]byte(chainPayload))
	})

	got, err := p.OptionQuote(context.Background(), feed.OptionRequest{
		Symbol: "SPY",
		Strike: decimal.NewFromInt(655),
		Expiry: time.Date(2025, 8, 29, 0, 0, 0, 0, time.UTC),
		Type:   feed.Call,
	})
	require.NoError(t, err)
	require.True(t, got.Bid.Equal(decimal.RequireFromString("1.65")))
	require.True(t, got.Ask.Equal(decimal.RequireFromString("1.95")))
	require.True(t, got.Mid.Equal(decimal.RequireFromString("1.80")), "mid=%s", got.Mid)
	require.True(t, got.UnderlyingPrice.Equal(decimal.NewFromInt(650)))
	require.True(t, got.IntrinsicValue.IsZero())
	require.EqualValues(t, 31000, got.OpenInterest)
	require.NotNil(t, got.ImpliedVolatility)
	require.InDelta(t, 0.132, *got.ImpliedVolatility, 1e-9)
	// Yahoo reported delta on this row but no other greeks.
	require.NotNil(t, got.Greeks.Delta)
	require.Nil(t, got.Greeks.Gamma)
}

func TestOptionQuote_PutSide(t *testing.T) {
	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(chainPayload))
	})

	got, err := p.OptionQuote(context.Background(), feed.OptionRequest{
		Symbol: "SPY",
		Strike: decimal.NewFromInt(655),
		Expiry: time.Date(2025, 8, 29, 0, 0, 0, 0, time.UTC),
		Type:   feed.Put,
	})
	require.NoError(t, err)
	require.True(t, got.Bid.Equal(decimal.RequireFromString("6.30")))
	// Put intrinsic = strike - underlying = 5.
	require.True(t, got.IntrinsicValue.Equal(decimal.NewFromInt(5)), "intrinsic=%s", got.IntrinsicValue)
}

func TestOptionQuote_StrikeNotInChain(t *testing.T) {
	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(chainPayload))
	})

	_, err := p.OptionQuote(context.Background(), feed.OptionRequest{
		Symbol: "SPY",
		Strike: decimal.NewFromInt(999),
		Expiry: time.Date(2025, 8, 29, 0, 0, 0, 0, time.UTC),
		Type:   feed.Call,
	})
	require.ErrorIs(t, err, feed.ErrUnavailable)
}

func TestUnsupportedCapabilities(t *testing.T) {
	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {})

	_, err := p.Fundamentals(context.Background(), feed.FundamentalsRequest{Symbol: "SPY"})
	require.ErrorIs(t, err, feed.ErrUnsupported)
	_, err = p.News(context.Background(), feed.NewsRequest{Symbols: []string{"SPY"}})
	require.ErrorIs(t, err, feed.ErrUnsupported)
}
