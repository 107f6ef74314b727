// Package yahoo adapts Yahoo Finance's public chart and options endpoints.
// It needs no API key, which makes it the free fallback tier: price history
// and option chain quotes, nothing else. The payloads are deeply nested, so
// fields are pulled out with gjson paths instead of mirror structs.
package yahoo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"optionsdata/internal/feed"
	"optionsdata/internal/httpx"
	"optionsdata/internal/normalize"
)

type Config struct {
	Name    string
	BaseURL string
}

type Provider struct {
	cfg    Config
	client *httpx.Client
}

func New(cfg Config, hc *httpx.Client) *Provider {
	if cfg.Name == "" {
		cfg.Name = "Yahoo"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://query1.finance.yahoo.com"
	}
	return &Provider{cfg: cfg, client: hc}
}

func (p *Provider) Name() string { return p.cfg.Name }

func (p *Provider) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+path, http.NoBody)
	if err != nil {
		return nil, &feed.TransportError{Provider: p.cfg.Name, Err: err}
	}
	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return nil, &feed.TransportError{Provider: p.cfg.Name, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, &feed.TransportError{Provider: p.cfg.Name, Err: err}
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %s: %w", p.cfg.Name, path, feed.ErrUnavailable)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &feed.TransportError{
			Provider: p.cfg.Name,
			Err:      fmt.Errorf("GET %s -> %d", path, resp.StatusCode),
		}
	}
	return body, nil
}

func (p *Provider) PriceHistory(ctx context.Context, req feed.PriceRequest) (*feed.PriceSeries, error) {
	symbol := strings.ToUpper(req.Symbol)
	path := fmt.Sprintf("/v8/finance/chart/%s?period1=%d&period2=%d&interval=1d",
		symbol, req.Start.Unix(), req.End.Unix())
	body, err := p.get(ctx, path)
	if err != nil {
		return nil, err
	}

	if e := gjson.GetBytes(body, "chart.error"); e.Exists() && e.Type != gjson.Null {
		return nil, fmt.Errorf("%s: %s: %w", p.cfg.Name, e.Get("code").String(), feed.ErrUnavailable)
	}
	result := gjson.GetBytes(body, "chart.result.0")
	if !result.Exists() {
		return nil, feed.SchemaErr(p.cfg.Name, fmt.Errorf("chart.result missing"))
	}

	timestamps := result.Get("timestamp").Array()
	if len(timestamps) == 0 {
		return nil, fmt.Errorf("%s: no bars for %s: %w", p.cfg.Name, symbol, feed.ErrUnavailable)
	}
	quote := result.Get("indicators.quote.0")
	opens := quote.Get("open").Array()
	highs := quote.Get("high").Array()
	lows := quote.Get("low").Array()
	closes := quote.Get("close").Array()
	volumes := quote.Get("volume").Array()

	bars := make([]feed.Bar, 0, len(timestamps))
	for i, ts := range timestamps {
		bars = append(bars, feed.Bar{
			Date:   time.Unix(ts.Int(), 0).UTC().Truncate(24 * time.Hour),
			Open:   priceAt(opens, i),
			High:   priceAt(highs, i),
			Low:    priceAt(lows, i),
			Close:  priceAt(closes, i),
			Volume: volumeAt(volumes, i),
		})
	}

	return &feed.PriceSeries{
		Symbol:    symbol,
		Bars:      normalize.SortBars(bars),
		Name:      result.Get("meta.longName").String(),
		Exchange:  result.Get("meta.exchangeName").String(),
		Source:    p.cfg.Name,
		FetchedAt: time.Now().UTC(),
	}, nil
}

// priceAt reads one column value; a null slot (halted day, missing column)
// stays nil rather than becoming zero.
func priceAt(col []gjson.Result, i int) *decimal.Decimal {
	if i >= len(col) || col[i].Type == gjson.Null {
		return nil
	}
	d, err := decimal.NewFromString(col[i].Raw)
	if err != nil {
		return nil
	}
	return &d
}

func volumeAt(col []gjson.Result, i int) *int64 {
	if i >= len(col) || col[i].Type == gjson.Null {
		return nil
	}
	n := col[i].Int()
	return &n
}

func (p *Provider) OptionQuote(ctx context.Context, req feed.OptionRequest) (*feed.OptionQuote, error) {
	symbol := strings.ToUpper(req.Symbol)
	expiry := time.Date(req.Expiry.Year(), req.Expiry.Month(), req.Expiry.Day(), 0, 0, 0, 0, time.UTC)
	body, err := p.get(ctx, fmt.Sprintf("/v7/finance/options/%s?date=%d", symbol, expiry.Unix()))
	if err != nil {
		return nil, err
	}

	if e := gjson.GetBytes(body, "optionChain.error"); e.Exists() && e.Type != gjson.Null {
		return nil, fmt.Errorf("%s: %s: %w", p.cfg.Name, e.Get("code").String(), feed.ErrUnavailable)
	}
	result := gjson.GetBytes(body, "optionChain.result.0")
	if !result.Exists() {
		return nil, feed.SchemaErr(p.cfg.Name, fmt.Errorf("optionChain.result missing"))
	}

	side := "options.0.calls"
	if req.Type == feed.Put {
		side = "options.0.puts"
	}
	var contract gjson.Result
	for _, c := range result.Get(side).Array() {
		strike, err := decimal.NewFromString(c.Get("strike").Raw)
		if err == nil && strike.Equal(req.Strike) {
			contract = c
			break
		}
	}
	if !contract.Exists() {
		return nil, fmt.Errorf("%s: %s %s %s %s not in chain: %w",
			p.cfg.Name, symbol, req.Strike, req.Expiry.Format("2006-01-02"), req.Type, feed.ErrUnavailable)
	}

	q := &feed.OptionQuote{
		Symbol:          symbol,
		Strike:          req.Strike,
		Expiry:          expiry,
		Type:            req.Type,
		Last:            decimalField(contract, "lastPrice"),
		Bid:             decimalField(contract, "bid"),
		Ask:             decimalField(contract, "ask"),
		Volume:          contract.Get("volume").Int(),
		OpenInterest:    contract.Get("openInterest").Int(),
		UnderlyingPrice: decimalField(result, "quote.regularMarketPrice"),
		Source:          p.cfg.Name,
		FetchedAt:       time.Now().UTC(),
	}
	if iv := contract.Get("impliedVolatility"); iv.Exists() && iv.Type != gjson.Null {
		v := iv.Float()
		q.ImpliedVolatility = &v
	}
	q.Greeks = Greeks(contract)

	normalize.FinishOption(q, time.Now().UTC())
	return q, nil
}

// Greeks pulls optional sensitivities out of a chain row. Yahoo only reports
// them on some contracts; absent means nil, never zero.
func Greeks(contract gjson.Result) feed.Greeks {
	var g feed.Greeks
	if v := contract.Get("delta"); v.Exists() && v.Type != gjson.Null {
		f := v.Float()
		g.Delta = &f
	}
	if v := contract.Get("gamma"); v.Exists() && v.Type != gjson.Null {
		f := v.Float()
		g.Gamma = &f
	}
	if v := contract.Get("theta"); v.Exists() && v.Type != gjson.Null {
		f := v.Float()
		g.Theta = &f
	}
	if v := contract.Get("vega"); v.Exists() && v.Type != gjson.Null {
		f := v.Float()
		g.Vega = &f
	}
	return g
}

func decimalField(r gjson.Result, path string) decimal.Decimal {
	v := r.Get(path)
	if !v.Exists() || v.Type != gjson.Number {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(v.Raw)
	if err != nil {
		return decimal.NewFromFloat(v.Float())
	}
	return d
}

func (p *Provider) Fundamentals(ctx context.Context, req feed.FundamentalsRequest) (*feed.Fundamentals, error) {
	return nil, fmt.Errorf("%s: fundamentals: %w", p.cfg.Name, feed.ErrUnsupported)
}

func (p *Provider) News(ctx context.Context, req feed.NewsRequest) ([]feed.NewsItem, error) {
	return nil, fmt.Errorf("%s: news: %w", p.cfg.Name, feed.ErrUnsupported)
}
