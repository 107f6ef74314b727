// Package normalize maps raw provider rows into canonical shapes and computes
// the derived option fields, so capability and naming differences between
// upstreams are resolved once, at the boundary, instead of in every consumer.
package normalize

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"optionsdata/internal/feed"
)

// lookup finds a column in a raw row regardless of capitalization convention
// ("Close" vs "close" vs "CLOSE"). Exact match wins over case-folded match.
func lookup(row map[string]any, name string) (any, bool) {
	if v, ok := row[name]; ok {
		return v, true
	}
	for k, v := range row {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

// PriceColumn extracts a price column as a decimal. nil means the column is
// absent or unparseable; absence is never defaulted to zero.
func PriceColumn(row map[string]any, name string) *decimal.Decimal {
	v, ok := lookup(row, name)
	if !ok || v == nil {
		return nil
	}
	d, err := toDecimal(v)
	if err != nil {
		return nil
	}
	return &d
}

// VolumeColumn extracts an integral column. nil means absent.
func VolumeColumn(row map[string]any, name string) *int64 {
	v, ok := lookup(row, name)
	if !ok || v == nil {
		return nil
	}
	d, err := toDecimal(v)
	if err != nil {
		return nil
	}
	n := d.IntPart()
	return &n
}

// DateColumn extracts and parses a date column. Providers send either bare
// dates or full timestamps; both are accepted and truncated to the day in UTC.
func DateColumn(row map[string]any, name string) (time.Time, error) {
	v, ok := lookup(row, name)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: missing %q column", feed.ErrSchemaMismatch, name)
	}
	s, ok := v.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %q is not a string", feed.ErrSchemaMismatch, name)
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05.000Z", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Truncate(24 * time.Hour), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unparseable date %q", feed.ErrSchemaMismatch, s)
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case float64:
		return decimal.NewFromFloat(x), nil
	case int:
		return decimal.NewFromInt(int64(x)), nil
	case int64:
		return decimal.NewFromInt(x), nil
	case json.Number:
		return decimal.NewFromString(x.String())
	case string:
		return decimal.NewFromString(x)
	}
	return decimal.Decimal{}, fmt.Errorf("cannot convert %T to decimal", v)
}

// Bars maps raw provider rows into canonical bars. Each row needs a date;
// OHLCV columns are optional and stay nil when the provider omits them.
func Bars(rows []map[string]any) ([]feed.Bar, error) {
	out := make([]feed.Bar, 0, len(rows))
	for _, row := range rows {
		date, err := DateColumn(row, "date")
		if err != nil {
			return nil, err
		}
		out = append(out, feed.Bar{
			Date:   date,
			Open:   PriceColumn(row, "open"),
			High:   PriceColumn(row, "high"),
			Low:    PriceColumn(row, "low"),
			Close:  PriceColumn(row, "close"),
			Volume: VolumeColumn(row, "volume"),
		})
	}
	return SortBars(out), nil
}

// SortBars enforces the series invariant: strictly increasing dates, no
// duplicates. When a date appears twice the later input wins.
func SortBars(bars []feed.Bar) []feed.Bar {
	byDate := make(map[time.Time]feed.Bar, len(bars))
	for _, b := range bars {
		byDate[b.Date] = b
	}
	out := make([]feed.Bar, 0, len(byDate))
	for _, b := range byDate {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// SortPeriods orders fundamentals snapshots ascending by date.
func SortPeriods(periods []feed.FundamentalsPeriod) []feed.FundamentalsPeriod {
	sort.Slice(periods, func(i, j int) bool { return periods[i].Date.Before(periods[j].Date) })
	return periods
}

// DedupeNews collapses articles by URL, newest publication wins, and returns
// them newest-first. Articles without a URL are kept as-is.
func DedupeNews(items []feed.NewsItem) []feed.NewsItem {
	byURL := make(map[string]feed.NewsItem, len(items))
	out := make([]feed.NewsItem, 0, len(items))
	for _, it := range items {
		if it.URL == "" {
			out = append(out, it)
			continue
		}
		if cur, ok := byURL[it.URL]; !ok || it.PublishedAt.After(cur.PublishedAt) {
			byURL[it.URL] = it
		}
	}
	for _, it := range byURL {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PublishedAt.After(out[j].PublishedAt) })
	return out
}

// ParseStrike parses a strike from query/CLI input.
func ParseStrike(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("bad strike %q: %w", s, err)
	}
	if d.Sign() <= 0 {
		return decimal.Decimal{}, fmt.Errorf("bad strike %q: must be positive", s)
	}
	return d, nil
}
