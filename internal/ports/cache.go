package ports

import (
	"context"
	"time"
)

// Producer computes a value on a cache miss.
type Producer func(ctx context.Context) (any, error)

// Cache is the coalescing result cache the engine stores aggregation
// results in. Implementations could be in-memory or backed by an external
// store; the engine only relies on the contract below.
type Cache interface {
	// GetOrCompute returns the cached value for key, or invokes producer
	// and stores its result for ttl. Concurrent misses for the same key
	// must coalesce into a single producer invocation whose result every
	// caller receives. Cancellation of one caller must not abort an
	// in-flight computation other callers depend on; a completed
	// computation is stored even if the original caller has gone away.
	// Producer errors are returned to all coalesced callers and nothing
	// is stored.
	GetOrCompute(ctx context.Context, key string, ttl time.Duration, producer Producer) (any, error)

	// Invalidate drops the cached value for key, if any. In-flight
	// computations for the key are forgotten so the next caller recomputes.
	Invalidate(key string)
}
