// Command polygon_dump fetches raw Polygon payloads for a symbol and writes
// them to disk unmodified, for inspecting what the upstream actually sends
// before touching the normalizer.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"

	"optionsdata/internal/config"
)

func main() {
	var (
		symbol     string
		expiry     string
		outPath    string
		cfgPath    string
		timeoutSec int
	)
	flag.StringVar(&symbol, "symbol", "SPY", "underlying ticker")
	flag.StringVar(&expiry, "expiry", "", "option expiration date YYYY-MM-DD (optional)")
	flag.StringVar(&outPath, "out", "polygon_dump.json", "output file path")
	flag.StringVar(&cfgPath, "config", "", "path to config.json (optional)")
	flag.IntVar(&timeoutSec, "timeout", 20, "HTTP timeout seconds")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Polygon.APIKey == "" {
		log.Fatal("POLYGON_API_KEY not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSec)*time.Second)
	defer cancel()
	client := &http.Client{Timeout: time.Duration(timeoutSec) * time.Second}

	get := func(path string, q url.Values) json.RawMessage {
		q.Set("apiKey", cfg.Polygon.APIKey)
		u := fmt.Sprintf("%s%s?%s", cfg.Polygon.Endpoint, path, q.Encode())
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
		if err != nil {
			log.Fatalf("request: %v", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			log.Fatalf("GET %s: %v", path, err)
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
		if err != nil {
			log.Fatalf("read %s: %v", path, err)
		}
		log.Printf("GET %s -> %d (%d bytes)", path, resp.StatusCode, len(body))
		return body
	}

	today := time.Now().UTC().Format("2006-01-02")
	yearAgo := time.Now().UTC().AddDate(-1, 0, 0).Format("2006-01-02")

	dump := map[string]json.RawMessage{
		"aggs":    get(fmt.Sprintf("/v2/aggs/ticker/%s/range/1/day/%s/%s", symbol, yearAgo, today), url.Values{"adjusted": {"true"}, "sort": {"asc"}}),
		"details": get("/v3/reference/tickers/"+symbol, url.Values{}),
		"prev":    get(fmt.Sprintf("/v2/aggs/ticker/%s/prev", symbol), url.Values{"adjusted": {"true"}}),
	}
	if expiry != "" {
		dump["contracts"] = get("/v3/reference/options/contracts", url.Values{
			"underlying_ticker": {symbol},
			"expiration_date":   {expiry},
			"limit":             {"50"},
		})
	}

	out, err := json.MarshalIndent(dump, "", "  ")
	if err != nil {
		log.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(outPath, out, 0o644); err != nil {
		log.Fatalf("write %s: %v", outPath, err)
	}
	log.Printf("wrote %s", outPath)
}
