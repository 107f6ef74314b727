package polygon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
)

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=polygon_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

const defaultBaseURL = "https://api.polygon.io"

// StatusError is a non-2xx answer from the API. The adapter maps 404 onto the
// shared Unavailable sentinel and everything else onto a transport failure.
type StatusError struct {
	Code int
	Path string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("polygon: GET %s -> %d", e.Path, e.Code)
}

// APIClient is a thin wire client for the Polygon REST API. It knows endpoint
// paths and raw payload shapes; it never produces canonical types.
type APIClient struct {
	baseURL    string
	httpClient HTTPClient
	query      url.Values
	header     http.Header
}

type APIClientOption func(*APIClient)

func WithBaseURL(baseURL string) APIClientOption {
	return func(c *APIClient) { c.baseURL = baseURL }
}

func WithHTTPClient(httpClient HTTPClient) APIClientOption {
	return func(c *APIClient) { c.httpClient = httpClient }
}

// NewAPIClient creates a client. The key is sent as the apiKey query
// parameter on every request, per https://polygon.io/docs.
func NewAPIClient(key string, options ...APIClientOption) (*APIClient, error) {
	c := &APIClient{
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
		query:      url.Values{},
		header:     http.Header{},
	}
	if key != "" {
		c.query.Add("apiKey", key)
	}
	for _, option := range options {
		option(c)
	}
	return c, nil
}

func (c *APIClient) get(ctx context.Context, path string, query url.Values, into any) error {
	q := maps.Clone(c.query)
	for k, vs := range query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u := fmt.Sprintf("%s%s?%s", c.baseURL, path, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header = c.header.Clone()

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(res.Body, 2<<10))
		return &StatusError{Code: res.StatusCode, Path: path}
	}
	if err := json.NewDecoder(res.Body).Decode(into); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

type agg struct {
	Timestamp int64   `json:"t"` // epoch millis
	Open      float64 `json:"o"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	Close     float64 `json:"c"`
	Volume    float64 `json:"v"`
}

type aggsResponse struct {
	Ticker       string `json:"ticker"`
	ResultsCount int    `json:"resultsCount"`
	Results      []agg  `json:"results"`
	Status       string `json:"status"`
}

// DailyAggs fetches daily bars for any ticker, stock or option contract.
func (c *APIClient) DailyAggs(ctx context.Context, ticker, start, end string) ([]agg, error) {
	path := fmt.Sprintf("/v2/aggs/ticker/%s/range/1/day/%s/%s", ticker, start, end)
	var resp aggsResponse
	err := c.get(ctx, path, url.Values{
		"adjusted": {"true"},
		"sort":     {"asc"},
		"limit":    {"5000"},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// PrevClose fetches the previous day's bar for a ticker.
func (c *APIClient) PrevClose(ctx context.Context, ticker string) (*agg, error) {
	var resp aggsResponse
	if err := c.get(ctx, fmt.Sprintf("/v2/aggs/ticker/%s/prev", ticker), url.Values{"adjusted": {"true"}}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, nil
	}
	return &resp.Results[0], nil
}

type tickerDetails struct {
	Name            string `json:"name"`
	PrimaryExchange string `json:"primary_exchange"`
}

// TickerDetails fetches display metadata for a stock ticker.
func (c *APIClient) TickerDetails(ctx context.Context, ticker string) (*tickerDetails, error) {
	var resp struct {
		Results tickerDetails `json:"results"`
	}
	if err := c.get(ctx, "/v3/reference/tickers/"+ticker, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Results, nil
}

// OptionContractTicker resolves a logical contract into Polygon's contract
// identifier via the reference endpoint. Empty string means not listed.
func (c *APIClient) OptionContractTicker(ctx context.Context, underlying, expiry, strike, contractType string) (string, error) {
	var resp struct {
		Results []struct {
			Ticker string `json:"ticker"`
		} `json:"results"`
	}
	err := c.get(ctx, "/v3/reference/options/contracts", url.Values{
		"underlying_ticker": {underlying},
		"expiration_date":   {expiry},
		"strike_price":      {strike},
		"contract_type":     {contractType},
		"limit":             {"1"},
	}, &resp)
	if err != nil {
		return "", err
	}
	if len(resp.Results) == 0 {
		return "", nil
	}
	return resp.Results[0].Ticker, nil
}

type newsResult struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	ArticleURL   string   `json:"article_url"`
	PublishedUTC string   `json:"published_utc"`
	Tickers      []string `json:"tickers"`
	Publisher    struct {
		Name string `json:"name"`
	} `json:"publisher"`
}

// News fetches recent articles, optionally filtered by tickers.
func (c *APIClient) News(ctx context.Context, tickers []string, sinceUTC string, limit int) ([]newsResult, error) {
	q := url.Values{
		"published_utc.gte": {sinceUTC},
		"limit":             {fmt.Sprintf("%d", limit)},
		"order":             {"desc"},
	}
	if len(tickers) == 1 {
		q.Set("ticker", tickers[0])
	} else if len(tickers) > 1 {
		q.Set("ticker.any_of", joinComma(tickers))
	}
	var resp struct {
		Results []newsResult `json:"results"`
	}
	if err := c.get(ctx, "/v2/reference/news", q, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

func joinComma(in []string) string {
	out := ""
	for i, s := range in {
		if i > 0 {
			out += ","
		}
		out += s
	}
	return out
}
