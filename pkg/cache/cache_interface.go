package cache

import (
	"context"
	"time"
)

// Cache is the port used by read-model caching. Implementations must treat
// a miss as (false, nil) so callers can fall through to the database.
type Cache interface {
	// Get unmarshals the cached value into dest. found=false on miss.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)

	// Set stores value as JSON with a TTL.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	Delete(ctx context.Context, keys ...string) error

	// DeletePattern removes every key matching a glob pattern such as "coupon:stats:*".
	DeletePattern(ctx context.Context, pattern string) error

	Ping(ctx context.Context) error
}
