package osm

import "errors"

// Sentinel errors for upstream failures. Ingest loops match on these to
// decide between retrying and skipping a run.
var (
	// ErrUpstreamUnavailable indicates a fetch failure or non-2xx response.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrMalformedDiff indicates an unparsable osmChange document.
	ErrMalformedDiff = errors.New("malformed diff")
	// ErrMalformedSnapshot indicates an unparsable or empty Overpass response.
	ErrMalformedSnapshot = errors.New("malformed snapshot")
	// ErrSuspiciousFeed indicates a feed that failed a sanity check.
	ErrSuspiciousFeed = errors.New("suspicious feed")
)
