package osm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/openaedmap/openaedmap-go/internal/metrics"
)

// DefibrillatorQuery selects every defibrillator node with full metadata.
const DefibrillatorQuery = "node[emergency=defibrillator];out meta qt;"

// SnapshotTimeout is the Overpass-side execution limit for the bulk query.
const SnapshotTimeout = 3600 * time.Second

// OverpassElement is one element of an Overpass JSON response.
type OverpassElement struct {
	Type    string            `json:"type"`
	ID      int64             `json:"id"`
	Lon     float64           `json:"lon"`
	Lat     float64           `json:"lat"`
	Version int64             `json:"version"`
	Tags    map[string]string `json:"tags"`
}

type overpassResponse struct {
	OSM3S struct {
		TimestampOSMBase string `json:"timestamp_osm_base"`
	} `json:"osm3s"`
	Elements []OverpassElement `json:"elements"`
}

// QueryOverpass POSTs a query to the Overpass interpreter and returns the
// elements along with the data timestamp in epoch seconds. With mustReturn
// set, an empty result is a failure; refusing empty results prevents
// accidental truncation while upstream is under maintenance.
func (c *Client) QueryOverpass(ctx context.Context, query string, timeout time.Duration, mustReturn bool) (_ []OverpassElement, _ float64, err error) {
	defer func() {
		outcome := metrics.OutcomeOK
		if err != nil {
			outcome = metrics.OutcomeError
		}
		metrics.UpstreamRequests.WithLabelValues("overpass", outcome).Inc()
	}()

	join := ";"
	if strings.HasPrefix(query, "[") {
		join = ""
	}
	query = fmt.Sprintf("[out:json][timeout:%d]%s%s", int(timeout.Seconds()), join, query)

	// the HTTP deadline doubles the interpreter limit to cover queueing
	ctx, cancel := context.WithTimeout(ctx, 2*timeout)
	defer cancel()

	form := url.Values{"data": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.OverpassURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	c.logger.Info().Str("url", c.cfg.OverpassURL).Msg("querying overpass")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: overpass: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, 0, fmt.Errorf("%w: overpass: status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}

	var data overpassResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, 0, fmt.Errorf("%w: decode overpass response: %v", ErrMalformedSnapshot, err)
	}

	base, err := time.Parse("2006-01-02T15:04:05Z", data.OSM3S.TimestampOSMBase)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: parse osm_base timestamp %q: %v", ErrMalformedSnapshot, data.OSM3S.TimestampOSMBase, err)
	}

	if mustReturn && len(data.Elements) == 0 {
		return nil, 0, fmt.Errorf("%w: overpass returned no elements", ErrSuspiciousFeed)
	}

	return data.Elements, float64(base.Unix()), nil
}
