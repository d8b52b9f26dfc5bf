// Package metrics provides the Prometheus collectors used across SkyBound.
package metrics

// Label values shared by several collectors.
const (
	StatusSuccess = "success"
	StatusError   = "error"

	CacheHit  = "hit"
	CacheMiss = "miss"
)

// Histogram bucket configuration.
const (
	// BucketStart1ms is the starting bucket for 1ms histograms (1ms to ~2s range).
	BucketStart1ms = 0.001

	BucketFactor2 = 2

	BucketCount10 = 10
	BucketCount12 = 12
)
