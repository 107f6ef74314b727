// Package tiingo adapts the Tiingo REST API. It is the premium tier: daily
// price history, fundamentals and curated news. It has no options coverage.
package tiingo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"optionsdata/internal/feed"
	"optionsdata/internal/normalize"
)

type Config struct {
	Name    string
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

type Provider struct {
	cfg    Config
	client *resty.Client
}

func New(cfg Config) *Provider {
	if cfg.Name == "" {
		cfg.Name = "Tiingo"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.tiingo.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	client := resty.New()
	client.SetBaseURL(cfg.BaseURL)
	client.SetTimeout(cfg.Timeout)
	client.SetHeader("Accept", "application/json")
	return &Provider{cfg: cfg, client: client}
}

func (p *Provider) Name() string { return p.cfg.Name }

// get performs one authenticated GET and maps HTTP failures onto the shared
// error taxonomy: 404 is Unavailable, everything else network-ish is transport.
func (p *Provider) get(ctx context.Context, path string, params map[string]string) ([]byte, error) {
	req := p.client.R().SetContext(ctx).SetQueryParam("token", p.cfg.APIKey)
	if params != nil {
		req.SetQueryParams(params)
	}
	resp, err := req.Get(path)
	if err != nil {
		return nil, &feed.TransportError{Provider: p.cfg.Name, Err: err}
	}
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %s: %w", p.cfg.Name, path, feed.ErrUnavailable)
	case resp.StatusCode() < 200 || resp.StatusCode() >= 300:
		return nil, &feed.TransportError{
			Provider: p.cfg.Name,
			Err:      fmt.Errorf("GET %s -> %d", path, resp.StatusCode()),
		}
	}
	return resp.Body(), nil
}

func (p *Provider) PriceHistory(ctx context.Context, req feed.PriceRequest) (*feed.PriceSeries, error) {
	body, err := p.get(ctx, "/tiingo/daily/"+req.Symbol+"/prices", map[string]string{
		"startDate": req.Start.Format("2006-01-02"),
		"endDate":   req.End.Format("2006-01-02"),
	})
	if err != nil {
		return nil, err
	}

	var rows []map[string]any
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, feed.SchemaErr(p.cfg.Name, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: no bars for %s: %w", p.cfg.Name, req.Symbol, feed.ErrUnavailable)
	}
	bars, err := normalize.Bars(rows)
	if err != nil {
		return nil, feed.SchemaErr(p.cfg.Name, err)
	}

	series := &feed.PriceSeries{
		Symbol:    strings.ToUpper(req.Symbol),
		Bars:      bars,
		Source:    p.cfg.Name,
		FetchedAt: time.Now().UTC(),
	}
	// Display metadata is best effort; a missing ticker page is not fatal.
	if meta, err := p.get(ctx, "/tiingo/daily/"+req.Symbol, nil); err == nil {
		var m struct {
			Name         string `json:"name"`
			ExchangeCode string `json:"exchangeCode"`
		}
		if json.Unmarshal(meta, &m) == nil {
			series.Name = m.Name
			series.Exchange = m.ExchangeCode
		}
	}
	return series, nil
}

func (p *Provider) OptionQuote(ctx context.Context, req feed.OptionRequest) (*feed.OptionQuote, error) {
	return nil, fmt.Errorf("%s: options: %w", p.cfg.Name, feed.ErrUnsupported)
}

func (p *Provider) Fundamentals(ctx context.Context, req feed.FundamentalsRequest) (*feed.Fundamentals, error) {
	body, err := p.get(ctx, "/tiingo/fundamentals/"+req.Symbol+"/daily", nil)
	if err != nil {
		return nil, err
	}

	var rows []map[string]any
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, feed.SchemaErr(p.cfg.Name, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: no fundamentals for %s: %w", p.cfg.Name, req.Symbol, feed.ErrUnavailable)
	}

	periods := make([]feed.FundamentalsPeriod, 0, len(rows))
	for _, row := range rows {
		date, err := normalize.DateColumn(row, "date")
		if err != nil {
			return nil, feed.SchemaErr(p.cfg.Name, err)
		}
		ratios := make(map[string]float64, len(row))
		for k, v := range row {
			if strings.EqualFold(k, "date") {
				continue
			}
			if f, ok := v.(float64); ok {
				ratios[k] = f
			}
		}
		periods = append(periods, feed.FundamentalsPeriod{Date: date, Ratios: ratios})
	}

	return &feed.Fundamentals{
		Symbol:    strings.ToUpper(req.Symbol),
		Periods:   normalize.SortPeriods(periods),
		Source:    p.cfg.Name,
		FetchedAt: time.Now().UTC(),
	}, nil
}

type newsRow struct {
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	URL           string   `json:"url"`
	PublishedDate string   `json:"publishedDate"`
	Source        string   `json:"source"`
	Tickers       []string `json:"tickers"`
}

func (p *Provider) News(ctx context.Context, req feed.NewsRequest) ([]feed.NewsItem, error) {
	body, err := p.get(ctx, "/tiingo/news", map[string]string{
		"tickers":   strings.ToLower(strings.Join(req.Symbols, ",")),
		"startDate": req.Since.Format("2006-01-02"),
		"limit":     "100",
	})
	if err != nil {
		return nil, err
	}

	var rows []newsRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, feed.SchemaErr(p.cfg.Name, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: no news: %w", p.cfg.Name, feed.ErrUnavailable)
	}

	items := make([]feed.NewsItem, 0, len(rows))
	for _, r := range rows {
		ts, err := time.Parse(time.RFC3339, r.PublishedDate)
		if err != nil {
			ts = time.Now().UTC()
		}
		tickers := make([]string, 0, len(r.Tickers))
		for _, t := range r.Tickers {
			tickers = append(tickers, strings.ToUpper(t))
		}
		items = append(items, feed.NewsItem{
			Title:       r.Title,
			Body:        r.Description,
			URL:         r.URL,
			PublishedAt: ts.UTC(),
			Source:      r.Source,
			Tickers:     tickers,
		})
	}
	return normalize.DedupeNews(items), nil
}
