package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"optionsdata/internal/budget"
	"optionsdata/internal/cache"
	"optionsdata/internal/config"
	"optionsdata/internal/httpx"
	"optionsdata/internal/resolver"
)

func main() {
	// Credentials live in the environment, optionally seeded from .env.
	// A missing .env is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	res, err := buildResolver(cfg)
	if err != nil {
		log.Fatalf("setup: %v", err)
	}

	srv := &server{data: res}
	mux := http.NewServeMux()
	srv.routes(mux)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           http.TimeoutHandler(mux, time.Duration(cfg.Server.RequestTimeoutSec)*time.Second, `{"error":"request timed out"}`),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("listening on :%s", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

// buildResolver wires the provider tiers, budget tracker and cache store from
// config. Providers that need a key and don't have one are left out rather
// than constructed with a guessable default.
func buildResolver(cfg config.Config) (*resolver.Resolver, error) {
	hc := httpx.New(time.Duration(cfg.Resolver.ProviderTimeoutSec) * time.Second)

	tiers, limits := buildTiers(cfg, hc)
	if len(tiers) == 0 {
		log.Println("warning: no providers enabled; every request will fail")
	}

	var store cache.Store
	switch cfg.Cache.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr, DB: cfg.Cache.RedisDB})
		store = cache.NewRedis(client, cfg.Cache.RedisPrefix)
		log.Printf("cache: redis at %s", cfg.Cache.RedisAddr)
	default:
		store = cache.NewMemory(cfg.Cache.MaxEntries)
	}

	return resolver.New(tiers, store, budget.New(limits), resolver.Options{
		CallTimeout: time.Duration(cfg.Resolver.ProviderTimeoutSec) * time.Second,
		TTL: resolver.TTLs{
			Price:        time.Duration(cfg.Cache.PriceTTLMin) * time.Minute,
			Option:       time.Duration(cfg.Cache.OptionTTLMin) * time.Minute,
			Fundamentals: time.Duration(cfg.Cache.FundamentalsTTLMin) * time.Minute,
			News:         time.Duration(cfg.Cache.NewsTTLMin) * time.Minute,
		},
	}), nil
}
