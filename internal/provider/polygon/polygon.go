// Package polygon adapts the Polygon.io REST API: stock aggregates, option
// contract quotes (delayed), and market news. It has no fundamentals coverage.
package polygon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"optionsdata/internal/feed"
	"optionsdata/internal/normalize"
)

type Config struct {
	Name string
}

type Provider struct {
	cfg    Config
	client *APIClient
}

func New(cfg Config, client *APIClient) *Provider {
	if cfg.Name == "" {
		cfg.Name = "Polygon"
	}
	return &Provider{cfg: cfg, client: client}
}

func (p *Provider) Name() string { return p.cfg.Name }

// mapErr folds wire-level failures into the shared taxonomy: a 404 means the
// symbol or contract is not listed, anything else is a transport failure.
func (p *Provider) mapErr(err error) error {
	var se *StatusError
	if errors.As(err, &se) && se.Code == 404 {
		return fmt.Errorf("%s: %s: %w", p.cfg.Name, se.Path, feed.ErrUnavailable)
	}
	return &feed.TransportError{Provider: p.cfg.Name, Err: err}
}

const dateLayout = "2006-01-02"

func (p *Provider) PriceHistory(ctx context.Context, req feed.PriceRequest) (*feed.PriceSeries, error) {
	symbol := strings.ToUpper(req.Symbol)
	aggs, err := p.client.DailyAggs(ctx, symbol, req.Start.Format(dateLayout), req.End.Format(dateLayout))
	if err != nil {
		return nil, p.mapErr(err)
	}
	if len(aggs) == 0 {
		return nil, fmt.Errorf("%s: no bars for %s: %w", p.cfg.Name, symbol, feed.ErrUnavailable)
	}

	bars := make([]feed.Bar, 0, len(aggs))
	for _, a := range aggs {
		open := decimal.NewFromFloat(a.Open)
		high := decimal.NewFromFloat(a.High)
		low := decimal.NewFromFloat(a.Low)
		clos := decimal.NewFromFloat(a.Close)
		vol := int64(a.Volume)
		bars = append(bars, feed.Bar{
			Date:   time.UnixMilli(a.Timestamp).UTC().Truncate(24 * time.Hour),
			Open:   &open,
			High:   &high,
			Low:    &low,
			Close:  &clos,
			Volume: &vol,
		})
	}

	series := &feed.PriceSeries{
		Symbol:    symbol,
		Bars:      normalize.SortBars(bars),
		Source:    p.cfg.Name,
		FetchedAt: time.Now().UTC(),
	}
	if details, err := p.client.TickerDetails(ctx, symbol); err == nil {
		series.Name = details.Name
		series.Exchange = details.PrimaryExchange
	}
	return series, nil
}

// ContractTicker builds Polygon's option contract identifier, e.g. a 655 call
// on SPY expiring 2025-08-29 becomes O:SPY250829C00655000.
func ContractTicker(symbol string, strike decimal.Decimal, expiry time.Time, typ feed.OptionType) string {
	side := "C"
	if typ == feed.Put {
		side = "P"
	}
	return fmt.Sprintf("O:%s%s%s%08d",
		strings.ToUpper(symbol), expiry.Format("060102"), side,
		strike.Mul(decimal.NewFromInt(1000)).IntPart())
}

func (p *Provider) OptionQuote(ctx context.Context, req feed.OptionRequest) (*feed.OptionQuote, error) {
	symbol := strings.ToUpper(req.Symbol)

	// Resolve the logical contract via reference data rather than trusting the
	// constructed ticker blindly; an unlisted contract is Unavailable, not an
	// error.
	contract, err := p.client.OptionContractTicker(ctx, symbol,
		req.Expiry.Format(dateLayout), req.Strike.String(), strings.ToLower(string(req.Type)))
	if err != nil {
		return nil, p.mapErr(err)
	}
	if contract == "" {
		return nil, fmt.Errorf("%s: contract %s not listed: %w",
			p.cfg.Name, ContractTicker(symbol, req.Strike, req.Expiry, req.Type), feed.ErrUnavailable)
	}

	underlying, err := p.client.PrevClose(ctx, symbol)
	if err != nil {
		return nil, p.mapErr(err)
	}
	if underlying == nil {
		return nil, fmt.Errorf("%s: no underlying close for %s: %w", p.cfg.Name, symbol, feed.ErrUnavailable)
	}

	q := &feed.OptionQuote{
		Symbol:          symbol,
		Strike:          req.Strike,
		Expiry:          req.Expiry,
		Type:            req.Type,
		UnderlyingPrice: decimal.NewFromFloat(underlying.Close),
		Source:          p.cfg.Name,
		FetchedAt:       time.Now().UTC(),
	}

	// Delayed data carries no bid/ask; the last trade is all there is, and a
	// contract with no prints stays all-zero (a valid illiquid quote).
	if prev, err := p.client.PrevClose(ctx, contract); err != nil {
		return nil, p.mapErr(err)
	} else if prev != nil {
		q.Last = decimal.NewFromFloat(prev.Close)
		q.Volume = int64(prev.Volume)
	}

	normalize.FinishOption(q, time.Now().UTC())
	return q, nil
}

func (p *Provider) Fundamentals(ctx context.Context, req feed.FundamentalsRequest) (*feed.Fundamentals, error) {
	return nil, fmt.Errorf("%s: fundamentals: %w", p.cfg.Name, feed.ErrUnsupported)
}

func (p *Provider) News(ctx context.Context, req feed.NewsRequest) ([]feed.NewsItem, error) {
	symbols := make([]string, 0, len(req.Symbols))
	for _, s := range req.Symbols {
		symbols = append(symbols, strings.ToUpper(s))
	}
	results, err := p.client.News(ctx, symbols, req.Since.UTC().Format(time.RFC3339), 50)
	if err != nil {
		return nil, p.mapErr(err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%s: no news: %w", p.cfg.Name, feed.ErrUnavailable)
	}

	items := make([]feed.NewsItem, 0, len(results))
	for _, r := range results {
		ts, err := time.Parse(time.RFC3339, r.PublishedUTC)
		if err != nil {
			ts = time.Now().UTC()
		}
		items = append(items, feed.NewsItem{
			Title:       r.Title,
			Body:        r.Description,
			URL:         r.ArticleURL,
			PublishedAt: ts.UTC(),
			Source:      r.Publisher.Name,
			Tickers:     r.Tickers,
		})
	}
	return normalize.DedupeNews(items), nil
}
