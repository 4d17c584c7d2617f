package osm

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// ReplicationSequence is one point on the minute replication stream.
type ReplicationSequence struct {
	Number    int64
	Timestamp float64 // epoch seconds
}

var (
	sequenceNumberRe    = regexp.MustCompile(`sequenceNumber=(\d+)`)
	sequenceTimestampRe = regexp.MustCompile(`timestamp=(\S+)`)
)

// sequencePath formats a sequence number as the zero-padded nine-digit
// path used by the replication server, e.g. 5929168 -> "005/929/168".
func sequencePath(number int64) string {
	s := fmt.Sprintf("%09d", number)
	return s[0:3] + "/" + s[3:6] + "/" + s[6:9]
}

// FetchReplicationState reads the state file for the given sequence number,
// or the most recent state when number is negative.
func (c *Client) FetchReplicationState(ctx context.Context, number int64) (ReplicationSequence, error) {
	path := "state.txt"
	if number >= 0 {
		path = sequencePath(number) + ".state.txt"
	}

	body, err := c.get(ctx, "replication", c.cfg.ReplicationURL+path, DefaultTimeout)
	if err != nil {
		return ReplicationSequence{}, err
	}

	// the timestamp value carries an escaped colon
	text := strings.ReplaceAll(string(body), `\:`, ":")

	m := sequenceNumberRe.FindStringSubmatch(text)
	if m == nil {
		return ReplicationSequence{}, fmt.Errorf("%w: no sequenceNumber in %s", ErrUpstreamUnavailable, path)
	}
	parsed, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return ReplicationSequence{}, fmt.Errorf("%w: parse sequenceNumber: %v", ErrUpstreamUnavailable, err)
	}

	m = sequenceTimestampRe.FindStringSubmatch(text)
	if m == nil {
		return ReplicationSequence{}, fmt.Errorf("%w: no timestamp in %s", ErrUpstreamUnavailable, path)
	}
	ts, err := time.Parse("2006-01-02T15:04:05Z", m[1])
	if err != nil {
		return ReplicationSequence{}, fmt.Errorf("%w: parse timestamp %q: %v", ErrUpstreamUnavailable, m[1], err)
	}

	return ReplicationSequence{Number: parsed, Timestamp: float64(ts.Unix())}, nil
}

// FetchDiff downloads and parses the osmChange document for one sequence.
func (c *Client) FetchDiff(ctx context.Context, number int64) ([]NodeAction, error) {
	body, err := c.get(ctx, "replication", c.cfg.ReplicationURL+sequencePath(number)+".osc.gz", DefaultTimeout)
	if err != nil {
		return nil, err
	}

	gz, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: gunzip diff %d: %v", ErrMalformedDiff, number, err)
	}
	defer gz.Close()

	actions, err := ParseOSMChange(gz)
	if err != nil {
		return nil, fmt.Errorf("parse diff %d: %w", number, err)
	}
	return actions, nil
}

// GetPlanetDiffs walks the replication stream backwards from the head until
// it reaches lastUpdate, fetches the covered diffs in parallel and returns
// their node actions merged in ascending sequence order, together with the
// timestamp of the newest applied sequence. An up-to-date stream yields no
// actions and the unchanged lastUpdate.
func (c *Client) GetPlanetDiffs(ctx context.Context, lastUpdate float64) ([]NodeAction, float64, error) {
	var sequences []ReplicationSequence

	next := int64(-1)
	for {
		seq, err := c.FetchReplicationState(ctx, next)
		if err != nil {
			return nil, 0, err
		}
		if seq.Timestamp <= lastUpdate {
			break
		}
		sequences = append(sequences, seq)
		next = seq.Number - 1
	}

	if len(sequences) == 0 {
		return nil, lastUpdate, nil
	}

	c.logger.Info().Int("diffs", len(sequences)).Msg("fetching replication diffs")

	results := make([][]NodeAction, len(sequences))
	g, gctx := errgroup.WithContext(ctx)
	for i, seq := range sequences {
		g.Go(func() error {
			actions, err := c.FetchDiff(gctx, seq.Number)
			if err != nil {
				return err
			}
			results[i] = actions
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	// sequences were discovered newest-first; apply oldest-first so later
	// versions supersede earlier ones
	order := make([]int, len(sequences))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return sequences[order[a]].Number < sequences[order[b]].Number
	})

	var merged []NodeAction
	for _, i := range order {
		merged = append(merged, results[i]...)
	}

	return merged, sequences[0].Timestamp, nil
}
