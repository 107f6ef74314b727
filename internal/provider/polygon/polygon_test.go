package polygon_test

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"optionsdata/internal/feed"
	"optionsdata/internal/provider/polygon"
)

func jsonResponse(code int, body string) *http.Response {
	return &http.Response{
		StatusCode: code,
		Header:     http.Header{"Content-Type": {"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

// routed answers each request by path prefix and fails the test on anything
// unexpected. It also checks the apiKey query parameter on every request.
func routed(t *testing.T, routes map[string]string) func(*http.Request) (*http.Response, error) {
	t.Helper()
	return func(req *http.Request) (*http.Response, error) {
		require.Equal(t, "test-key", req.URL.Query().Get("apiKey"))
		for prefix, body := range routes {
			if strings.HasPrefix(req.URL.Path, prefix) {
				return jsonResponse(http.StatusOK, body), nil
			}
		}
		return jsonResponse(http.StatusNotFound, `{"status":"NOT_FOUND"}`), nil
	}
}

func newProvider(t *testing.T, hc polygon.HTTPClient) *polygon.Provider {
	t.Helper()
	client, err := polygon.NewAPIClient("test-key", polygon.WithHTTPClient(hc))
	require.NoError(t, err)
	return polygon.New(polygon.Config{}, client)
}

func TestContractTicker(t *testing.T) {
	got := polygon.ContractTicker("SPY", decimal.NewFromInt(655),
		time.Date(2025, 8, 29, 0, 0, 0, 0, time.UTC), feed.Call)
	require.Equal(t, "O:SPY250829C00655000", got)

	got = polygon.ContractTicker("spy", decimal.RequireFromString("72.5"),
		time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC), feed.Put)
	require.Equal(t, "O:SPY260116P00072500", got)
}

func TestPriceHistory(t *testing.T) {
	ctrl := gomock.NewController(t)
	hc := NewMockHTTPClient(ctrl)
	hc.EXPECT().Do(gomock.Any()).DoAndReturn(routed(t, map[string]string{
		"/v2/aggs/ticker/SPY/range/1/day": `{
			"ticker": "SPY",
			"resultsCount": 2,
			"results": [
				{"t": 1754006400000, "o": 628.0, "h": 630.5, "l": 626.4, "c": 629.1, "v": 61000000},
				{"t": 1754265600000, "o": 631.1, "h": 633.2, "l": 629.9, "c": 632.25, "v": 55000000}
			],
			"status": "OK"
		}`,
		"/v3/reference/tickers/SPY": `{"results": {"name": "SPDR S&P 500 ETF Trust", "primary_exchange": "ARCX"}}`,
	})).Times(2)

	got, err := newProvider(t, hc).PriceHistory(context.Background(), feed.PriceRequest{
		Symbol: "spy",
		Start:  time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
		End:    time.Date(2025, 8, 4, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Equal(t, "SPY", got.Symbol)
	require.Equal(t, "SPDR S&P 500 ETF Trust", got.Name)
	require.Len(t, got.Bars, 2)
	require.True(t, got.Bars[0].Date.Before(got.Bars[1].Date))
	require.True(t, got.Bars[1].Close.Equal(decimal.NewFromFloat(632.25)))
	require.EqualValues(t, 61000000, *got.Bars[0].Volume)
}

func TestPriceHistory_404IsUnavailable(t *testing.T) {
	ctrl := gomock.NewController(t)
	hc := NewMockHTTPClient(ctrl)
	hc.EXPECT().Do(gomock.Any()).Return(jsonResponse(http.StatusNotFound, `{}`), nil)

	_, err := newProvider(t, hc).PriceHistory(context.Background(), feed.PriceRequest{Symbol: "NOPE"})
	require.ErrorIs(t, err, feed.ErrUnavailable)
	require.False(t, feed.IsTransport(err))
}

func TestPriceHistory_500IsTransport(t *testing.T) {
	ctrl := gomock.NewController(t)
	hc := NewMockHTTPClient(ctrl)
	hc.EXPECT().Do(gomock.Any()).Return(jsonResponse(http.StatusInternalServerError, `{}`), nil)

	_, err := newProvider(t, hc).PriceHistory(context.Background(), feed.PriceRequest{Symbol: "SPY"})
	require.True(t, feed.IsTransport(err), "got %v", err)
}

func TestOptionQuote(t *testing.T) {
	ctrl := gomock.NewController(t)
	hc := NewMockHTTPClient(ctrl)
	hc.EXPECT().Do(gomock.Any()).DoAndReturn(routed(t, map[string]string{
		"/v3/reference/options/contracts":          `{"results": [{"ticker": "O:SPY250829C00655000"}]}`,
		"/v2/aggs/ticker/O:SPY250829C00655000/prev": `{"results": [{"t": 1755820800000, "c": 1.70, "v": 5400}]}`,
		"/v2/aggs/ticker/SPY/prev":                  `{"results": [{"t": 1755820800000, "c": 650.00, "v": 61000000}]}`,
	})).Times(3)

	got, err := newProvider(t, hc).OptionQuote(context.Background(), feed.OptionRequest{
		Symbol: "SPY",
		Strike: decimal.NewFromInt(655),
		Expiry: time.Date(2025, 8, 29, 0, 0, 0, 0, time.UTC),
		Type:   feed.Call,
	})
	require.NoError(t, err)
	require.True(t, got.Last.Equal(decimal.NewFromFloat(1.70)))
	require.True(t, got.UnderlyingPrice.Equal(decimal.NewFromInt(650)))
	// Delayed feed has no bid/ask, so mid falls back to last.
	require.True(t, got.Mid.Equal(decimal.NewFromFloat(1.70)), "mid=%s", got.Mid)
	require.True(t, got.IntrinsicValue.IsZero())
	require.EqualValues(t, 5400, got.Volume)
}

func TestOptionQuote_UnlistedContractIsUnavailable(t *testing.T) {
	ctrl := gomock.NewController(t)
	hc := NewMockHTTPClient(ctrl)
	hc.EXPECT().Do(gomock.Any()).Return(jsonResponse(http.StatusOK, `{"results": []}`), nil)

	_, err := newProvider(t, hc).OptionQuote(context.Background(), feed.OptionRequest{
		Symbol: "SPY",
		Strike: decimal.NewFromInt(9999),
		Expiry: time.Date(2025, 8, 29, 0, 0, 0, 0, time.UTC),
		Type:   feed.Call,
	})
	require.ErrorIs(t, err, feed.ErrUnavailable)
}

func TestOptionQuote_NoPrintsIsValidIlliquidQuote(t *testing.T) {
	ctrl := gomock.NewController(t)
	hc := NewMockHTTPClient(ctrl)
	hc.EXPECT().Do(gomock.Any()).DoAndReturn(routed(t, map[string]string{
		"/v3/reference/options/contracts":          `{"results": [{"ticker": "O:SPY250829C00700000"}]}`,
		"/v2/aggs/ticker/O:SPY250829C00700000/prev": `{"results": []}`,
		"/v2/aggs/ticker/SPY/prev":                  `{"results": [{"t": 1755820800000, "c": 650.00, "v": 61000000}]}`,
	})).Times(3)

	got, err := newProvider(t, hc).OptionQuote(context.Background(), feed.OptionRequest{
		Symbol: "SPY",
		Strike: decimal.NewFromInt(700),
		Expiry: time.Date(2025, 8, 29, 0, 0, 0, 0, time.UTC),
		Type:   feed.Call,
	})
	require.NoError(t, err)
	require.True(t, got.Last.IsZero())
	require.True(t, got.Mid.IsZero())
	require.True(t, got.UnderlyingPrice.Equal(decimal.NewFromInt(650)))
}

func TestFundamentals_Unsupported(t *testing.T) {
	ctrl := gomock.NewController(t)
	hc := NewMockHTTPClient(ctrl) // no calls expected

	_, err := newProvider(t, hc).Fundamentals(context.Background(), feed.FundamentalsRequest{Symbol: "SPY"})
	require.ErrorIs(t, err, feed.ErrUnsupported)
}

func TestNews(t *testing.T) {
	ctrl := gomock.NewController(t)
	hc := NewMockHTTPClient(ctrl)
	hc.EXPECT().Do(gomock.Any()).DoAndReturn(routed(t, map[string]string{
		"/v2/reference/news": `{"results": [
			{"title": "b", "article_url": "https://example.com/b", "published_utc": "2025-08-20T10:00:00Z", "tickers": ["SPY"], "publisher": {"name": "Example"}},
			{"title": "a", "article_url": "https://example.com/a", "published_utc": "2025-08-21T10:00:00Z", "tickers": ["SPY"], "publisher": {"name": "Example"}}
		]}`,
	}))

	items, err := newProvider(t, hc).News(context.Background(), feed.NewsRequest{
		Symbols: []string{"spy"},
		Since:   time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "a", items[0].Title, "items must come back newest first")
	require.Equal(t, "Example", items[0].Source)
}
