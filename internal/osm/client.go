// Package osm fetches upstream OpenStreetMap data: Overpass snapshots,
// minute replication diffs and the country polygon bundle.
package osm

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/openaedmap/openaedmap-go/internal/metrics"
)

const (
	// ProductName identifies this service to upstream servers.
	ProductName = "openaedmap-backend"
	// Website is advertised in the User-Agent per OSM API usage policy.
	Website = "https://openaedmap.org"

	connectTimeout = 15 * time.Second
	// DefaultTimeout bounds a single upstream request unless the endpoint
	// overrides it (the Overpass snapshot runs much longer).
	DefaultTimeout = 60 * time.Second
)

// Config holds the upstream endpoints consumed by the client.
type Config struct {
	OverpassURL    string
	ReplicationURL string // base URL with trailing slash
	CountriesURL   string
	Version        string
}

// Client talks to the Overpass API, the minute replication stream and the
// country polygon feed. All methods map transport and status failures to
// ErrUpstreamUnavailable.
type Client struct {
	http      *http.Client
	cfg       Config
	userAgent string
	logger    zerolog.Logger
}

// NewClient creates an upstream client with a stable User-Agent.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &Client{
		// Per-request deadlines come from the caller's context; a client
		// timeout here would cut the hour-long Overpass snapshot short.
		http:      &http.Client{Transport: transport},
		cfg:       cfg,
		userAgent: fmt.Sprintf("%s/%s (+%s)", ProductName, cfg.Version, Website),
		logger:    logger.With().Str("component", "osm_client").Logger(),
	}
}

// get fetches a URL with the given timeout and returns the response body.
// The endpoint label feeds the upstream request counter.
func (c *Client) get(ctx context.Context, endpoint, url string, timeout time.Duration) ([]byte, error) {
	body, err := c.getBody(ctx, url, timeout)

	outcome := metrics.OutcomeOK
	if err != nil {
		outcome = metrics.OutcomeError
	}
	metrics.UpstreamRequests.WithLabelValues(endpoint, outcome).Inc()

	return body, err
}

func (c *Client) getBody(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", ErrUpstreamUnavailable, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: get %s: status %d", ErrUpstreamUnavailable, url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrUpstreamUnavailable, url, err)
	}
	return body, nil
}
