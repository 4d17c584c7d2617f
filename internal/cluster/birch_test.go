package cluster

import (
	"fmt"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openaedmap/openaedmap-go/internal/models"
)

func makeAED(id int64, lon, lat float64, access string) models.AED {
	tags := map[string]string{"emergency": "defibrillator"}
	if access != "" {
		tags["access"] = access
	}
	return models.AED{
		ID:       id,
		Version:  1,
		Tags:     tags,
		Position: orb.Point{lon, lat},
	}
}

func TestGroupNearbyPoints(t *testing.T) {
	// three points within a couple of meters, one roughly 2 km away;
	// eps matches zoom 10 (9.6 / 2^10)
	aeds := []models.AED{
		makeAED(1, 21.00000, 52.00000, "yes"),
		makeAED(2, 21.00001, 52.00001, "private"),
		makeAED(3, 21.00002, 52.00000, ""),
		makeAED(4, 21.02, 52.00000, "no"),
	}

	results := Group(aeds, 9.6/1024)
	require.Len(t, results, 2)

	var group *models.AEDGroup
	var single *models.AED
	for _, r := range results {
		if r.Group != nil {
			group = r.Group
		} else {
			single = r.AED
		}
	}

	require.NotNil(t, group)
	require.NotNil(t, single)
	assert.Equal(t, 3, group.Count)
	assert.Equal(t, "yes", group.Access)
	assert.InDelta(t, 21.00001, group.Position[0], 1e-4)
	assert.InDelta(t, 52.0, group.Position[1], 1e-4)
	assert.Equal(t, int64(4), single.ID)
}

func TestGroupPreservesTotalCount(t *testing.T) {
	var aeds []models.AED
	for i := range 500 {
		aeds = append(aeds, makeAED(int64(i), float64(i%25)*0.01, float64(i/25)*0.01, ""))
	}

	results := Group(aeds, 0.02)
	total := 0
	for _, r := range results {
		total += r.Count()
	}
	assert.Equal(t, len(aeds), total)
}

func TestGroupSmallInputsPassThrough(t *testing.T) {
	assert.Empty(t, Group(nil, 0.1))

	one := []models.AED{makeAED(1, 0, 0, "")}
	results := Group(one, 0.1)
	require.Len(t, results, 1)
	assert.NotNil(t, results[0].AED)
}

func TestGroupDisabledEps(t *testing.T) {
	aeds := []models.AED{
		makeAED(1, 0, 0, ""),
		makeAED(2, 0.000001, 0, ""),
	}

	// eps of zero means clustering is off
	results := Group(aeds, 0)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.NotNil(t, r.AED)
	}
}

func TestSampleIndices(t *testing.T) {
	indices := sampleIndices(14000, 7000)
	require.Len(t, indices, 7000)
	assert.Equal(t, 0, indices[0])
	assert.Equal(t, 2, indices[1])
	assert.Equal(t, 13998, indices[6999])

	for i := 1; i < len(indices); i++ {
		assert.LessOrEqual(t, indices[i-1], indices[i])
	}
}

func TestGroupDeterministic(t *testing.T) {
	var aeds []models.AED
	for i := range 200 {
		aeds = append(aeds, makeAED(int64(i), float64(i%10)*0.5, float64(i/10)*0.5, ""))
	}

	first := Group(aeds, 0.3)
	second := Group(aeds, 0.3)
	require.Equal(t, len(first), len(second))

	key := func(rs []models.SearchResult) []string {
		keys := make([]string, len(rs))
		for i, r := range rs {
			keys[i] = fmt.Sprintf("%v/%d", r.Position(), r.Count())
		}
		return keys
	}
	assert.Equal(t, key(first), key(second))
}
