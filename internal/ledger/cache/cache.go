// Package cache serves the registry listing payload from Redis so hot reads
// skip the ledger store. Writers invalidate after committing; readers fall
// through to the store on miss.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var listingLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "geoseal_listing_cache_lookups_total",
	Help: "Listing cache lookups by outcome",
}, []string{"outcome"})

const listingKey = "geoseal:listing:v1"

// Redis caches the serialized listing in a shared Redis instance so all
// replicas serve the same snapshot.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis constructs a Redis-backed listing cache. Client lifecycle is
// managed externally.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

// Get returns the cached listing payload and whether it was a hit.
func (c *Redis) Get(ctx context.Context) ([]byte, bool, error) {
	payload, err := c.client.Get(ctx, listingKey).Bytes()
	if errors.Is(err, redis.Nil) {
		listingLookups.WithLabelValues("miss").Inc()
		return nil, false, nil
	}
	if err != nil {
		listingLookups.WithLabelValues("error").Inc()
		return nil, false, err
	}
	listingLookups.WithLabelValues("hit").Inc()
	return payload, true, nil
}

// Set stores the listing payload with the configured TTL.
func (c *Redis) Set(ctx context.Context, payload []byte) error {
	return c.client.Set(ctx, listingKey, payload, c.ttl).Err()
}

// Invalidate drops the cached listing. Called after every committed write so
// the next read rebuilds from the ledger.
func (c *Redis) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, listingKey).Err()
}

// Memory is a single-node fallback used when Redis is not configured.
type Memory struct {
	mu      sync.Mutex
	payload []byte
	expires time.Time
	ttl     time.Duration
}

// NewMemory constructs an in-process listing cache.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl}
}

// Get returns the cached listing payload and whether it was a hit.
func (c *Memory) Get(_ context.Context) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.payload == nil || time.Now().After(c.expires) {
		listingLookups.WithLabelValues("miss").Inc()
		return nil, false, nil
	}
	listingLookups.WithLabelValues("hit").Inc()
	return c.payload, true, nil
}

// Set stores the listing payload with the configured TTL.
func (c *Memory) Set(_ context.Context, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.payload = append([]byte(nil), payload...)
	c.expires = time.Now().Add(c.ttl)
	return nil
}

// Invalidate drops the cached listing.
func (c *Memory) Invalidate(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.payload = nil
	return nil
}
