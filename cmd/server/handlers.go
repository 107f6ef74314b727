package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"optionsdata/internal/budget"
	"optionsdata/internal/feed"
	"optionsdata/internal/normalize"
	"optionsdata/internal/resolver"
)

// dataSource is what the handlers need from the resolver; tests substitute a
// fake.
type dataSource interface {
	PriceHistory(ctx context.Context, req feed.PriceRequest) (*feed.PriceSeries, error)
	OptionQuote(ctx context.Context, req feed.OptionRequest) (*feed.OptionQuote, error)
	Fundamentals(ctx context.Context, req feed.FundamentalsRequest) (*feed.Fundamentals, error)
	News(ctx context.Context, req feed.NewsRequest) ([]feed.NewsItem, error)
	Usage() []budget.Usage
	Health() map[string]bool
}

type server struct {
	data dataSource
}

const dateLayout = "2006-01-02"

func (s *server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/price", s.handlePrice)
	mux.HandleFunc("GET /v1/option", s.handleOption)
	mux.HandleFunc("GET /v1/fundamentals", s.handleFundamentals)
	mux.HandleFunc("GET /v1/news", s.handleNews)
	mux.HandleFunc("GET /v1/usage", s.handleUsage)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
}

func (s *server) handlePrice(w http.ResponseWriter, r *http.Request) {
	symbol := strings.TrimSpace(r.URL.Query().Get("symbol"))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	end := time.Now().UTC()
	start := end.AddDate(-1, 0, 0)
	if v := r.URL.Query().Get("start"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad start date")
			return
		}
		start = t
	}
	if v := r.URL.Query().Get("end"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad end date")
			return
		}
		end = t
	}

	series, err := s.data.PriceHistory(r.Context(), feed.PriceRequest{Symbol: symbol, Start: start, End: end})
	if err != nil {
		writeResolveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, series)
}

func (s *server) handleOption(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	symbol := strings.TrimSpace(q.Get("symbol"))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	strike, err := normalize.ParseStrike(q.Get("strike"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	expiry, err := time.Parse(dateLayout, q.Get("expiry"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad expiry date")
		return
	}
	typ, err := feed.ParseOptionType(q.Get("type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	quote, err := s.data.OptionQuote(r.Context(), feed.OptionRequest{
		Symbol: symbol, Strike: strike, Expiry: expiry, Type: typ,
	})
	if err != nil {
		writeResolveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (s *server) handleFundamentals(w http.ResponseWriter, r *http.Request) {
	symbol := strings.TrimSpace(r.URL.Query().Get("symbol"))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	f, err := s.data.Fundamentals(r.Context(), feed.FundamentalsRequest{Symbol: symbol})
	if err != nil {
		writeResolveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *server) handleNews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	symbols := splitCSV(q.Get("symbols"))
	if len(symbols) == 0 {
		writeError(w, http.StatusBadRequest, "symbols is required")
		return
	}
	since := time.Now().UTC().AddDate(0, 0, -7)
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad since date")
			return
		}
		since = t
	}
	items, err := s.data.News(r.Context(), feed.NewsRequest{Symbols: symbols, Since: since})
	if err != nil {
		writeResolveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *server) handleUsage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"providers": s.data.Usage()})
}

func (s *server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "providers": s.data.Health()})
}

func writeResolveError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, resolver.ErrNoData):
		writeError(w, http.StatusNotFound, "no data available")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "request timed out")
	case errors.Is(err, context.Canceled):
		// client went away; nothing sensible to write
		writeError(w, 499, "request canceled")
	default:
		log.Printf("server: resolve: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
