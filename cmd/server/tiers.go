package main

import (
	"log"

	"optionsdata/internal/budget"
	"optionsdata/internal/config"
	"optionsdata/internal/httpx"
	"optionsdata/internal/provider/polygon"
	"optionsdata/internal/provider/tiingo"
	"optionsdata/internal/provider/yahoo"
	"optionsdata/internal/resolver"
)

func buildTiers(cfg config.Config, hc *httpx.Client) ([]resolver.Tier, map[string]budget.Limits) {
	var tiers []resolver.Tier
	limits := make(map[string]budget.Limits)

	if cfg.Tiingo.Enabled {
		if cfg.Tiingo.APIKey == "" {
			log.Println("warning: tiingo.enabled=true but TIINGO_API_KEY not set; skipping")
		} else {
			p := tiingo.New(tiingo.Config{APIKey: cfg.Tiingo.APIKey, BaseURL: cfg.Tiingo.Endpoint})
			tiers = append(tiers, resolver.Tier{Adapter: p, Priority: cfg.Tiingo.Priority})
			limits[p.Name()] = budget.Limits{Hourly: cfg.Tiingo.HourlyLimit, Daily: cfg.Tiingo.DailyLimit}
		}
	}

	if cfg.Polygon.Enabled {
		if cfg.Polygon.APIKey == "" {
			log.Println("warning: polygon.enabled=true but POLYGON_API_KEY not set; skipping")
		} else {
			client, err := polygon.NewAPIClient(cfg.Polygon.APIKey,
				polygon.WithBaseURL(cfg.Polygon.Endpoint),
				polygon.WithHTTPClient(hc.HTTP))
			if err != nil {
				log.Printf("polygon client: %v", err)
			} else {
				p := polygon.New(polygon.Config{}, client)
				tiers = append(tiers, resolver.Tier{Adapter: p, Priority: cfg.Polygon.Priority})
				limits[p.Name()] = budget.Limits{Hourly: cfg.Polygon.HourlyLimit, Daily: cfg.Polygon.DailyLimit}
			}
		}
	}

	if cfg.Yahoo.Enabled {
		p := yahoo.New(yahoo.Config{BaseURL: cfg.Yahoo.Endpoint}, hc)
		tiers = append(tiers, resolver.Tier{Adapter: p, Priority: cfg.Yahoo.Priority})
		limits[p.Name()] = budget.Limits{Hourly: cfg.Yahoo.HourlyLimit, Daily: cfg.Yahoo.DailyLimit}
	}

	return tiers, limits
}
