// Command fetch resolves one request through the full provider stack and
// prints the canonical JSON result. Handy for smoke tests and cron jobs:
//
//	fetch -kind price -symbol SPY -start 2025-01-02 -end 2025-08-01
//	fetch -kind option -symbol SPY -strike 655 -expiry 2025-08-29 -type CALL
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"optionsdata/internal/budget"
	"optionsdata/internal/cache"
	"optionsdata/internal/config"
	"optionsdata/internal/feed"
	"optionsdata/internal/httpx"
	"optionsdata/internal/normalize"
	"optionsdata/internal/provider/polygon"
	"optionsdata/internal/provider/tiingo"
	"optionsdata/internal/provider/yahoo"
	"optionsdata/internal/resolver"
)

const dateLayout = "2006-01-02"

func main() {
	var (
		kind       string
		symbol     string
		symbolsCSV string
		start      string
		end        string
		strike     string
		expiry     string
		optType    string
		since      string
		timeout    int
		configPath string
	)

	flag.StringVar(&kind, "kind", "price", "data kind: price|option|fundamentals|news")
	flag.StringVar(&symbol, "symbol", getenv("SYMBOL", "SPY"), "ticker symbol")
	flag.StringVar(&symbolsCSV, "symbols", "", "comma-separated symbols (news)")
	flag.StringVar(&start, "start", "", "start date YYYY-MM-DD (price; default 1y ago)")
	flag.StringVar(&end, "end", "", "end date YYYY-MM-DD (price; default today)")
	flag.StringVar(&strike, "strike", "", "strike price (option)")
	flag.StringVar(&expiry, "expiry", "", "expiry YYYY-MM-DD (option)")
	flag.StringVar(&optType, "type", "CALL", "option type: CALL|PUT")
	flag.StringVar(&since, "since", "", "news since YYYY-MM-DD (default 7d ago)")
	flag.IntVar(&timeout, "timeout", 30, "overall timeout seconds")
	flag.StringVar(&configPath, "config", getenv("CONFIG_FILE", ""), "path to config.json (optional)")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	hc := httpx.New(time.Duration(cfg.Resolver.ProviderTimeoutSec) * time.Second)
	tiers, limits := buildTiers(cfg, hc)
	if len(tiers) == 0 {
		log.Fatal("no providers enabled")
	}
	res := resolver.New(tiers, cache.NewMemory(cfg.Cache.MaxEntries), budget.New(limits), resolver.Options{
		CallTimeout: time.Duration(cfg.Resolver.ProviderTimeoutSec) * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
	defer cancel()

	var out any
	switch kind {
	case "price":
		endT := time.Now().UTC()
		startT := endT.AddDate(-1, 0, 0)
		if start != "" {
			startT = mustDate(start)
		}
		if end != "" {
			endT = mustDate(end)
		}
		out, err = res.PriceHistory(ctx, feed.PriceRequest{Symbol: symbol, Start: startT, End: endT})

	case "option":
		st, serr := normalize.ParseStrike(strike)
		if serr != nil {
			log.Fatalf("option: %v", serr)
		}
		typ, terr := feed.ParseOptionType(optType)
		if terr != nil {
			log.Fatalf("option: %v", terr)
		}
		out, err = res.OptionQuote(ctx, feed.OptionRequest{
			Symbol: symbol, Strike: st, Expiry: mustDate(expiry), Type: typ,
		})

	case "fundamentals":
		out, err = res.Fundamentals(ctx, feed.FundamentalsRequest{Symbol: symbol})

	case "news":
		syms := splitCSV(symbolsCSV)
		if len(syms) == 0 {
			syms = []string{symbol}
		}
		sinceT := time.Now().UTC().AddDate(0, 0, -7)
		if since != "" {
			sinceT = mustDate(since)
		}
		out, err = res.News(ctx, feed.NewsRequest{Symbols: syms, Since: sinceT})

	default:
		log.Fatalf("unknown kind %q", kind)
	}
	if err != nil {
		log.Fatalf("fetch: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatalf("encode: %v", err)
	}
}

func buildTiers(cfg config.Config, hc *httpx.Client) ([]resolver.Tier, map[string]budget.Limits) {
	var tiers []resolver.Tier
	limits := make(map[string]budget.Limits)

	if cfg.Tiingo.Enabled && cfg.Tiingo.APIKey != "" {
		p := tiingo.New(tiingo.Config{APIKey: cfg.Tiingo.APIKey, BaseURL: cfg.Tiingo.Endpoint})
		tiers = append(tiers, resolver.Tier{Adapter: p, Priority: cfg.Tiingo.Priority})
		limits[p.Name()] = budget.Limits{Hourly: cfg.Tiingo.HourlyLimit, Daily: cfg.Tiingo.DailyLimit}
	}
	if cfg.Polygon.Enabled && cfg.Polygon.APIKey != "" {
		client, err := polygon.NewAPIClient(cfg.Polygon.APIKey,
			polygon.WithBaseURL(cfg.Polygon.Endpoint),
			polygon.WithHTTPClient(hc.HTTP))
		if err == nil {
			p := polygon.New(polygon.Config{}, client)
			tiers = append(tiers, resolver.Tier{Adapter: p, Priority: cfg.Polygon.Priority})
			limits[p.Name()] = budget.Limits{Hourly: cfg.Polygon.HourlyLimit, Daily: cfg.Polygon.DailyLimit}
		}
	}
	if cfg.Yahoo.Enabled {
		p := yahoo.New(yahoo.Config{BaseURL: cfg.Yahoo.Endpoint}, hc)
		tiers = append(tiers, resolver.Tier{Adapter: p, Priority: cfg.Yahoo.Priority})
		limits[p.Name()] = budget.Limits{Hourly: cfg.Yahoo.HourlyLimit, Daily: cfg.Yahoo.DailyLimit}
	}
	return tiers, limits
}

func mustDate(s string) time.Time {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		log.Fatalf("bad date %q (want YYYY-MM-DD)", s)
	}
	return t
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

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
