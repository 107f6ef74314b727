package normalize

import (
	"time"

	"github.com/shopspring/decimal"

	"optionsdata/internal/feed"
)

var two = decimal.NewFromInt(2)

// FinishOption fills the derived fields of a quote from its raw ones. Every
// adapter calls this exactly once before returning, so equivalent raw inputs
// produce bit-identical derived values regardless of provider.
//
// Rules:
//   - mid = (bid+ask)/2 when both bid > 0 and ask > 0, else mid = last.
//     A zero bid/ask is a real (illiquid) market state, not "unknown", so the
//     fallback keys off positivity, never off absence-as-zero.
//   - intrinsic: CALL max(0, underlying-strike); PUT max(0, strike-underlying).
//   - time value = max(0, mid - intrinsic).
//   - moneyness: CALL underlying/strike; PUT strike/underlying.
func FinishOption(q *feed.OptionQuote, now time.Time) {
	if q.Bid.IsPositive() && q.Ask.IsPositive() {
		q.Mid = q.Bid.Add(q.Ask).Div(two)
	} else {
		q.Mid = q.Last
	}

	switch q.Type {
	case feed.Put:
		q.IntrinsicValue = decimal.Max(decimal.Zero, q.Strike.Sub(q.UnderlyingPrice))
		if q.UnderlyingPrice.IsPositive() {
			q.Moneyness, _ = q.Strike.Div(q.UnderlyingPrice).Float64()
		}
	default:
		q.IntrinsicValue = decimal.Max(decimal.Zero, q.UnderlyingPrice.Sub(q.Strike))
		if q.Strike.IsPositive() {
			q.Moneyness, _ = q.UnderlyingPrice.Div(q.Strike).Float64()
		}
	}

	q.TimeValue = decimal.Max(decimal.Zero, q.Mid.Sub(q.IntrinsicValue))

	if d := int(q.Expiry.Sub(now).Hours() / 24); d > 0 {
		q.DaysToExpiry = d
	} else {
		q.DaysToExpiry = 0
	}
}
