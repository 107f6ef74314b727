package feed

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OptionType distinguishes calls from puts.
type OptionType string

const (
	Call OptionType = "CALL"
	Put  OptionType = "PUT"
)

// ParseOptionType accepts the common spellings ("call", "C", "PUT", "p").
func ParseOptionType(s string) (OptionType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CALL", "C":
		return Call, nil
	case "PUT", "P":
		return Put, nil
	}
	return "", fmt.Errorf("unknown option type %q", s)
}

// Bar is one day of OHLCV data. Pointer fields distinguish "column absent
// upstream" (nil) from a real zero; they are never silently defaulted.
type Bar struct {
	Date   time.Time        `json:"date"`
	Open   *decimal.Decimal `json:"open"`
	High   *decimal.Decimal `json:"high"`
	Low    *decimal.Decimal `json:"low"`
	Close  *decimal.Decimal `json:"close"`
	Volume *int64           `json:"volume"`
}

// PriceSeries is the canonical price history for one symbol.
// Bars are strictly increasing by date with no duplicates.
type PriceSeries struct {
	Symbol    string    `json:"symbol"`
	Bars      []Bar     `json:"bars"`
	Name      string    `json:"name,omitempty"`
	Exchange  string    `json:"exchange,omitempty"`
	Source    string    `json:"source"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Greeks are optional per-contract sensitivities. nil means the provider did
// not report the value, which is distinct from a reported zero.
type Greeks struct {
	Delta *float64 `json:"delta,omitempty"`
	Gamma *float64 `json:"gamma,omitempty"`
	Theta *float64 `json:"theta,omitempty"`
	Vega  *float64 `json:"vega,omitempty"`
}

// OptionQuote is the canonical quote for a single option contract.
// Mid, IntrinsicValue, TimeValue, Moneyness and DaysToExpiry are derived by
// normalize.FinishOption so every provider yields identical derived fields.
type OptionQuote struct {
	Symbol       string          `json:"symbol"`
	Strike       decimal.Decimal `json:"strike"`
	Expiry       time.Time       `json:"expiry"`
	Type         OptionType      `json:"option_type"`
	Last         decimal.Decimal `json:"last"`
	Bid          decimal.Decimal `json:"bid"`
	Ask          decimal.Decimal `json:"ask"`
	Mid          decimal.Decimal `json:"mid"`
	Volume       int64           `json:"volume"`
	OpenInterest int64           `json:"open_interest"`

	ImpliedVolatility *float64 `json:"implied_volatility,omitempty"`
	Greeks            Greeks   `json:"greeks"`

	IntrinsicValue  decimal.Decimal `json:"intrinsic_value"`
	TimeValue       decimal.Decimal `json:"time_value"`
	Moneyness       float64         `json:"moneyness"`
	DaysToExpiry    int             `json:"days_to_expiry"`
	UnderlyingPrice decimal.Decimal `json:"underlying_price"`

	Source    string    `json:"source"`
	FetchedAt time.Time `json:"fetched_at"`
}

// FundamentalsPeriod is one dated snapshot of ratio-name -> value.
type FundamentalsPeriod struct {
	Date   time.Time          `json:"date"`
	Ratios map[string]float64 `json:"ratios"`
}

// Fundamentals is the canonical fundamentals history for one symbol,
// periods ordered ascending by date.
type Fundamentals struct {
	Symbol    string               `json:"symbol"`
	Periods   []FundamentalsPeriod `json:"periods"`
	Source    string               `json:"source"`
	FetchedAt time.Time            `json:"fetched_at"`
}

// NewsItem is one canonical news article.
type NewsItem struct {
	Title       string    `json:"title"`
	Body        string    `json:"body,omitempty"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
	Source      string    `json:"source"`
	Tickers     []string  `json:"tickers,omitempty"`
}

const dateLayout = "2006-01-02"

// PriceRequest asks for daily bars over [Start, End].
type PriceRequest struct {
	Symbol string
	Start  time.Time
	End    time.Time
}

func (r PriceRequest) Key() string {
	return fmt.Sprintf("price|%s|%s|%s",
		strings.ToUpper(r.Symbol), r.Start.Format(dateLayout), r.End.Format(dateLayout))
}

// OptionRequest identifies a single option contract logically; adapters map it
// to whatever contract identifier their upstream requires.
type OptionRequest struct {
	Symbol string
	Strike decimal.Decimal
	Expiry time.Time
	Type   OptionType
}

func (r OptionRequest) Key() string {
	return fmt.Sprintf("option|%s|%s|%s|%s",
		strings.ToUpper(r.Symbol), r.Strike.String(), r.Expiry.Format(dateLayout), r.Type)
}

type FundamentalsRequest struct {
	Symbol string
}

func (r FundamentalsRequest) Key() string {
	return "fundamentals|" + strings.ToUpper(r.Symbol)
}

// NewsRequest asks for articles mentioning any of Symbols since Since.
type NewsRequest struct {
	Symbols []string
	Since   time.Time
}

func (r NewsRequest) Key() string {
	syms := make([]string, 0, len(r.Symbols))
	for _, s := range r.Symbols {
		syms = append(syms, strings.ToUpper(s))
	}
	sort.Strings(syms)
	return fmt.Sprintf("news|%s|%s", strings.Join(syms, ","), r.Since.Format(dateLayout))
}
