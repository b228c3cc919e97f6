package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching operations.
// Supports two-phase caching: local LRU in front of Redis.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, key string) error

	// GetReport retrieves a cached normalized report by ID number.
	GetReport(ctx context.Context, idNumber string) (*CachedReport, error)

	// SetReport caches a fetched report so repeat enquiries within the
	// TTL do not hit the bureau again.
	SetReport(ctx context.Context, idNumber string, rpt *CachedReport, ttl time.Duration) error

	// IncrementCounter atomically increments a counter and returns new value.
	// Used for enquiry rate limits (enquiries per ID number per window).
	IncrementCounter(ctx context.Context, key string, window time.Duration) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CachedReport holds a previously fetched bureau report plus the raw
// payload needed for report download.
type CachedReport struct {
	Report     *CreditReport `json:"report"`
	RawPayload string        `json:"rawPayload,omitempty"`
	FetchedAt  time.Time     `json:"fetchedAt"`
	MockMode   bool          `json:"mockMode"`
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings
	LocalMaxSize int
	LocalTTL     time.Duration

	// Redis settings
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Two-phase settings
	EnableTwoPhase bool // If true, check local first, then Redis
}
