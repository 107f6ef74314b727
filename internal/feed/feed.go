package feed

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors shared by all adapters. The resolver keys its fallback
// decisions off these, so adapters must not invent their own taxonomy.
var (
	// ErrUnavailable means the provider has no data for the request
	// (unknown symbol, contract does not exist, capability missing).
	// It is not retriable against the same provider until the request changes.
	ErrUnavailable = errors.New("feed: data unavailable")

	// ErrSchemaMismatch means the provider answered with a shape we could not
	// decode. Adapters wrap it in ErrUnavailable so the resolver just moves on.
	ErrSchemaMismatch = errors.New("feed: unexpected payload shape")

	// ErrUnsupported marks a capability the adapter never implements, as
	// opposed to data that happens to be missing. It unwraps to ErrUnavailable;
	// the resolver additionally skips budget accounting for it because no
	// upstream call was made.
	ErrUnsupported = fmt.Errorf("capability not implemented: %w", ErrUnavailable)
)

// SchemaErr builds the error adapters return when a payload does not decode:
// it reads as Unavailable to the resolver (skip this provider, try the next)
// while still matching ErrSchemaMismatch for diagnostics.
func SchemaErr(provider string, err error) error {
	return fmt.Errorf("%s: %w: %w: %v", provider, ErrUnavailable, ErrSchemaMismatch, err)
}

// TransportError is a network or HTTP-level failure talking to a provider.
// It is retriable on a later top-level request, never within the same one.
type TransportError struct {
	Provider string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// Adapter is the capability contract every upstream provider implements.
// Provider-specific field names and endpoint paths never cross this boundary:
// adapters decode their own wire structs and emit canonical types only.
// Capabilities a provider does not offer return ErrUnsupported.
type Adapter interface {
	Name() string
	PriceHistory(ctx context.Context, req PriceRequest) (*PriceSeries, error)
	OptionQuote(ctx context.Context, req OptionRequest) (*OptionQuote, error)
	Fundamentals(ctx context.Context, req FundamentalsRequest) (*Fundamentals, error)
	News(ctx context.Context, req NewsRequest) ([]NewsItem, error)
}
