package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

type Server struct {
	Port              string `json:"port"`
	RequestTimeoutSec int    `json:"request_timeout_sec"`
}

type Resolver struct {
	ProviderTimeoutSec int `json:"provider_timeout_sec"`
}

// Cache selects the backend and per-kind TTLs. Fundamentals live much longer
// than price history because they change far less often.
type Cache struct {
	Backend            string `json:"backend"` // "memory" or "redis"
	MaxEntries         int    `json:"max_entries"`
	RedisAddr          string `json:"redis_addr"`
	RedisDB            int    `json:"redis_db"`
	RedisPrefix        string `json:"redis_prefix"`
	PriceTTLMin        int    `json:"price_ttl_min"`
	OptionTTLMin       int    `json:"option_ttl_min"`
	FundamentalsTTLMin int    `json:"fundamentals_ttl_min"`
	NewsTTLMin         int    `json:"news_ttl_min"`
}

// Tiingo is the premium prices/fundamentals/news tier.
// API keys are never defaulted; they come from env or the config file.
type Tiingo struct {
	Enabled     bool   `json:"enabled"`
	APIKey      string `json:"api_key"`
	Endpoint    string `json:"endpoint"`
	Priority    int    `json:"priority"`
	HourlyLimit int    `json:"hourly_limit"`
	DailyLimit  int    `json:"daily_limit"`
}

// Polygon is the low-latency options tier.
type Polygon struct {
	Enabled     bool   `json:"enabled"`
	APIKey      string `json:"api_key"`
	Endpoint    string `json:"endpoint"`
	Priority    int    `json:"priority"`
	HourlyLimit int    `json:"hourly_limit"`
	DailyLimit  int    `json:"daily_limit"`
}

// Yahoo is the free fallback tier; no key, no hard quota by default.
type Yahoo struct {
	Enabled     bool   `json:"enabled"`
	Endpoint    string `json:"endpoint"`
	Priority    int    `json:"priority"`
	HourlyLimit int    `json:"hourly_limit"`
	DailyLimit  int    `json:"daily_limit"`
}

type Config struct {
	Server   Server   `json:"server"`
	Resolver Resolver `json:"resolver"`
	Cache    Cache    `json:"cache"`
	Tiingo   Tiingo   `json:"tiingo"`
	Polygon  Polygon  `json:"polygon"`
	Yahoo    Yahoo    `json:"yahoo"`
}

func Default() Config {
	return Config{
		Server:   Server{Port: "8080", RequestTimeoutSec: 30},
		Resolver: Resolver{ProviderTimeoutSec: 10},
		Cache: Cache{
			Backend:            "memory",
			MaxEntries:         4096,
			RedisPrefix:        "optionsdata",
			PriceTTLMin:        60,
			OptionTTLMin:       5,
			FundamentalsTTLMin: 240,
			NewsTTLMin:         30,
		},
		Tiingo: Tiingo{
			Enabled:     true,
			Endpoint:    "https://api.tiingo.com",
			Priority:    30,
			HourlyLimit: 50,
			DailyLimit:  1000,
		},
		Polygon: Polygon{
			Enabled:     true,
			Endpoint:    "https://api.polygon.io",
			Priority:    20,
			HourlyLimit: 300,
			DailyLimit:  5000,
		},
		Yahoo: Yahoo{
			Enabled:  true,
			Endpoint: "https://query1.finance.yahoo.com",
			Priority: 10,
		},
	}
}

// Load reads JSON config from path. If path is empty or the file does not
// exist, defaults apply. Environment variables override select fields so
// secrets never need to live in the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := json.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := envInt("REQUEST_TIMEOUT_SEC"); v > 0 {
		cfg.Server.RequestTimeoutSec = v
	}
	if v := envInt("PROVIDER_TIMEOUT_SEC"); v > 0 {
		cfg.Resolver.ProviderTimeoutSec = v
	}

	if v := os.Getenv("CACHE_BACKEND"); v != "" {
		cfg.Cache.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := envInt("REDIS_DB"); v > 0 {
		cfg.Cache.RedisDB = v
	}
	if v := envInt("CACHE_MAX_ENTRIES"); v > 0 {
		cfg.Cache.MaxEntries = v
	}

	if v := os.Getenv("TIINGO_API_KEY"); v != "" {
		cfg.Tiingo.APIKey = v
	}
	if v := os.Getenv("TIINGO_ENDPOINT"); v != "" {
		cfg.Tiingo.Endpoint = v
	}
	if b, ok := envBool("TIINGO_ENABLED"); ok {
		cfg.Tiingo.Enabled = b
	}
	if v := envInt("TIINGO_HOURLY_LIMIT"); v > 0 {
		cfg.Tiingo.HourlyLimit = v
	}
	if v := envInt("TIINGO_DAILY_LIMIT"); v > 0 {
		cfg.Tiingo.DailyLimit = v
	}

	if v := os.Getenv("POLYGON_API_KEY"); v != "" {
		cfg.Polygon.APIKey = v
	}
	if v := os.Getenv("POLYGON_ENDPOINT"); v != "" {
		cfg.Polygon.Endpoint = v
	}
	if b, ok := envBool("POLYGON_ENABLED"); ok {
		cfg.Polygon.Enabled = b
	}
	if v := envInt("POLYGON_HOURLY_LIMIT"); v > 0 {
		cfg.Polygon.HourlyLimit = v
	}
	if v := envInt("POLYGON_DAILY_LIMIT"); v > 0 {
		cfg.Polygon.DailyLimit = v
	}

	if b, ok := envBool("YAHOO_ENABLED"); ok {
		cfg.Yahoo.Enabled = b
	}
	if v := os.Getenv("YAHOO_ENDPOINT"); v != "" {
		cfg.Yahoo.Endpoint = v
	}
	if v := envInt("YAHOO_HOURLY_LIMIT"); v > 0 {
		cfg.Yahoo.HourlyLimit = v
	}
	if v := envInt("YAHOO_DAILY_LIMIT"); v > 0 {
		cfg.Yahoo.DailyLimit = v
	}
}

func envInt(name string) int {
	v := os.Getenv(name)
	if v == "" {
		return 0
	}
	var x int
	fmt.Sscanf(v, "%d", &x)
	return x
}

func envBool(name string) (bool, bool) {
	switch strings.ToLower(os.Getenv(name)) {
	case "1", "true", "yes", "y":
		return true, true
	case "0", "false", "no", "n":
		return false, true
	}
	return false, false
}
