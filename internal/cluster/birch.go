// Package cluster groups nearby AEDs into representative tile features
// using threshold-based incremental (Birch-style) clustering.
package cluster

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/openaedmap/openaedmap-go/internal/models"
)

// maxFitSamples caps the number of points used to build the subclusters;
// remaining points are only assigned to the nearest existing center.
const maxFitSamples = 7000

// birch holds flat subcluster features: a running sum and count per
// subcluster, with centroids derived on the fly. There is no cluster-count
// target; the threshold alone decides when a new subcluster opens.
type birch struct {
	threshold float64
	sumX      []float64
	sumY      []float64
	counts    []int
}

func newBirch(threshold float64) *birch {
	return &birch{threshold: threshold}
}

func (b *birch) center(i int) orb.Point {
	n := float64(b.counts[i])
	return orb.Point{b.sumX[i] / n, b.sumY[i] / n}
}

// nearest returns the closest subcluster index and its distance, or -1
// when no subcluster exists yet.
func (b *birch) nearest(p orb.Point) (int, float64) {
	best := -1
	bestDist := math.Inf(1)
	for i := range b.counts {
		c := b.center(i)
		dx := c[0] - p[0]
		dy := c[1] - p[1]
		if dist := math.Hypot(dx, dy); dist < bestDist {
			best = i
			bestDist = dist
		}
	}
	return best, bestDist
}

// insert merges the point into the nearest subcluster within the threshold
// or opens a new one.
func (b *birch) insert(p orb.Point) {
	if i, dist := b.nearest(p); i >= 0 && dist <= b.threshold {
		b.sumX[i] += p[0]
		b.sumY[i] += p[1]
		b.counts[i]++
		return
	}
	b.sumX = append(b.sumX, p[0])
	b.sumY = append(b.sumY, p[1])
	b.counts = append(b.counts, 1)
}

func (b *birch) fit(points []orb.Point) {
	for _, p := range points {
		b.insert(p)
	}
}

// predict assigns each point to its nearest subcluster without modifying
// the model.
func (b *birch) predict(points []orb.Point) []int {
	labels := make([]int, len(points))
	for i, p := range points {
		labels[i], _ = b.nearest(p)
	}
	return labels
}

// sampleIndices returns n evenly-spaced indices in [0, total), mirroring
// linspace with the endpoint excluded so sampling is deterministic.
func sampleIndices(total, n int) []int {
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i * total / n
	}
	return indices
}

// Group clusters the AEDs with the given epsilon and returns a mix of
// singletons and groups. Point sets of size one and below come back
// unclustered.
func Group(aeds []models.AED, eps float64) []models.SearchResult {
	if len(aeds) <= 1 || eps <= 0 {
		results := make([]models.SearchResult, len(aeds))
		for i := range aeds {
			results[i] = models.SingleResult(&aeds[i])
		}
		return results
	}

	positions := make([]orb.Point, len(aeds))
	for i := range aeds {
		positions[i] = aeds[i].Position
	}

	fitPositions := positions
	if len(positions) > maxFitSamples {
		fitPositions = make([]orb.Point, maxFitSamples)
		for i, idx := range sampleIndices(len(positions), maxFitSamples) {
			fitPositions[i] = positions[idx]
		}
	}

	model := newBirch(eps)
	model.fit(fitPositions)
	labels := model.predict(positions)

	members := make([][]*models.AED, len(model.counts))
	for i, label := range labels {
		members[label] = append(members[label], &aeds[i])
	}

	var results []models.SearchResult
	for label, group := range members {
		switch len(group) {
		case 0:
			continue
		case 1:
			results = append(results, models.SingleResult(group[0]))
		default:
			accesses := make([]string, len(group))
			for i, aed := range group {
				accesses[i] = aed.Access()
			}
			results = append(results, models.GroupResult(&models.AEDGroup{
				Position: model.center(label),
				Count:    len(group),
				Access:   models.DecideAccess(accesses),
			}))
		}
	}
	return results
}
