package cache

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Store backed by a shared Redis instance, so several screener
// processes can share one cache and it survives restarts. Entries are stored
// as JSON with a server-side expiry; Redis enforces the TTL, the client only
// records StoredAt for age reporting.
type Redis struct {
	client *redis.Client
	prefix string
}

func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "optionsdata"
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) key(k string) string { return r.prefix + ":" + k }

func (r *Redis) Get(ctx context.Context, key string) (Entry, bool) {
	raw, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("cache: redis get %s: %v", key, err)
		}
		return Entry{}, false
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		log.Printf("cache: redis entry %s undecodable, dropping: %v", key, err)
		r.client.Del(ctx, r.key(key))
		return Entry{}, false
	}
	return e, true
}

func (r *Redis) Put(ctx context.Context, key string, payload json.RawMessage, source string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	e := Entry{Key: key, Payload: payload, Source: source, StoredAt: time.Now().UTC()}
	raw, err := json.Marshal(e)
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, r.key(key), raw, ttl).Err(); err != nil {
		// A cache write failure only costs a refetch later.
		log.Printf("cache: redis set %s: %v", key, err)
	}
}
