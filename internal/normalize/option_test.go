package normalize

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"optionsdata/internal/feed"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestFinishOption_MidFromBidAsk(t *testing.T) {
	q := &feed.OptionQuote{
		Type: feed.Call,
		Bid:  dec("1.65"),
		Ask:  dec("1.95"),
		Last: dec("1.70"),
	}
	FinishOption(q, time.Now())
	if !q.Mid.Equal(dec("1.80")) {
		t.Fatalf("mid: want 1.80, got %s", q.Mid)
	}
}

func TestFinishOption_MidFallsBackToLastNotZero(t *testing.T) {
	// A zero bid/ask is a real illiquid state; mid must become last, never 0.
	q := &feed.OptionQuote{
		Type: feed.Call,
		Last: dec("1.50"),
	}
	FinishOption(q, time.Now())
	if !q.Mid.Equal(dec("1.50")) {
		t.Fatalf("mid fallback: want 1.50, got %s", q.Mid)
	}
}

func TestFinishOption_Intrinsic(t *testing.T) {
	cases := []struct {
		typ        feed.OptionType
		strike     string
		underlying string
		want       string
	}{
		{feed.Call, "100", "105", "5"},
		{feed.Put, "100", "105", "0"},
		{feed.Call, "100", "95", "0"},
		{feed.Put, "100", "95", "5"},
	}
	for _, tc := range cases {
		q := &feed.OptionQuote{
			Type:            tc.typ,
			Strike:          dec(tc.strike),
			UnderlyingPrice: dec(tc.underlying),
		}
		FinishOption(q, time.Now())
		if !q.IntrinsicValue.Equal(dec(tc.want)) {
			t.Fatalf("%s strike=%s underlying=%s: want intrinsic %s, got %s",
				tc.typ, tc.strike, tc.underlying, tc.want, q.IntrinsicValue)
		}
	}
}

func TestFinishOption_ScenarioSPYCall(t *testing.T) {
	// SPY 655 CALL expiring 2025-08-29, underlying last close 650.00,
	// bid 1.65 / ask 1.95.
	now := time.Date(2025, 8, 22, 15, 0, 0, 0, time.UTC)
	q := &feed.OptionQuote{
		Symbol:          "SPY",
		Type:            feed.Call,
		Strike:          dec("655"),
		Expiry:          time.Date(2025, 8, 29, 0, 0, 0, 0, time.UTC),
		Bid:             dec("1.65"),
		Ask:             dec("1.95"),
		UnderlyingPrice: dec("650.00"),
	}
	FinishOption(q, now)

	if !q.Mid.Equal(dec("1.80")) {
		t.Fatalf("mid: want 1.80, got %s", q.Mid)
	}
	if !q.IntrinsicValue.Equal(dec("0")) {
		t.Fatalf("intrinsic: want 0, got %s", q.IntrinsicValue)
	}
	if !q.TimeValue.Equal(dec("1.80")) {
		t.Fatalf("time value: want 1.80, got %s", q.TimeValue)
	}
	if math.Abs(q.Moneyness-650.0/655.0) > 1e-9 {
		t.Fatalf("moneyness: want %.6f, got %.6f", 650.0/655.0, q.Moneyness)
	}
	if q.DaysToExpiry != 6 {
		t.Fatalf("days to expiry: want 6, got %d", q.DaysToExpiry)
	}
}

func TestFinishOption_TimeValueNeverNegative(t *testing.T) {
	q := &feed.OptionQuote{
		Type:            feed.Call,
		Strike:          dec("100"),
		UnderlyingPrice: dec("110"),
		Last:            dec("8"), // below intrinsic 10
	}
	FinishOption(q, time.Now())
	if !q.TimeValue.Equal(dec("0")) {
		t.Fatalf("time value: want 0, got %s", q.TimeValue)
	}
}
