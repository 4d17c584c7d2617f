package aed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openaedmap/openaedmap-go/internal/osm"
)

func defibNode(id, version int64) osm.Node {
	return osm.Node{
		ID:      id,
		Version: version,
		Lon:     21.0,
		Lat:     52.2,
		Tags:    map[string]string{"emergency": "defibrillator"},
	}
}

func TestPlanDiffKeepsHighestVersion(t *testing.T) {
	upserts, removed := planDiff([]osm.NodeAction{
		{Type: osm.ActionCreate, Node: defibNode(1, 1)},
		{Type: osm.ActionModify, Node: defibNode(1, 3)},
		{Type: osm.ActionModify, Node: defibNode(1, 2)},
	})

	require.Len(t, upserts, 1)
	assert.EqualValues(t, 3, upserts[0].Version)
	assert.Empty(t, removed)
}

func TestPlanDiffLaterEntryWinsVersionTie(t *testing.T) {
	first := defibNode(1, 2)
	first.Tags = map[string]string{"emergency": "defibrillator", "access": "private"}
	second := defibNode(1, 2)
	second.Tags = map[string]string{"emergency": "defibrillator", "access": "yes"}

	upserts, _ := planDiff([]osm.NodeAction{
		{Type: osm.ActionModify, Node: first},
		{Type: osm.ActionModify, Node: second},
	})

	require.Len(t, upserts, 1)
	assert.Equal(t, "yes", upserts[0].Tags["access"])
}

func TestPlanDiffDeleteAction(t *testing.T) {
	upserts, removed := planDiff([]osm.NodeAction{
		{Type: osm.ActionCreate, Node: defibNode(1, 1)},
		{Type: osm.ActionDelete, Node: osm.Node{ID: 2, Version: 5}},
	})

	require.Len(t, upserts, 1)
	assert.Equal(t, []int64{2}, removed)
}

func TestPlanDiffMarkerRemoved(t *testing.T) {
	// a modification that drops the defibrillator tag removes the node
	vending := osm.Node{
		ID:      7,
		Version: 2,
		Tags:    map[string]string{"amenity": "vending_machine"},
	}

	upserts, removed := planDiff([]osm.NodeAction{
		{Type: osm.ActionModify, Node: vending},
	})

	assert.Empty(t, upserts)
	assert.Equal(t, []int64{7}, removed)
}

func TestPlanDiffRemovalWinsOverEarlierUpsert(t *testing.T) {
	// the node appears as a defibrillator first and is deleted later in
	// the same window; it must end up in both sets, with the delete
	// applied last
	upserts, removed := planDiff([]osm.NodeAction{
		{Type: osm.ActionCreate, Node: defibNode(1, 1)},
		{Type: osm.ActionDelete, Node: osm.Node{ID: 1, Version: 2}},
	})

	require.Len(t, upserts, 1)
	assert.Equal(t, []int64{1}, removed)
}

func TestPlanDiffDeterministicOrder(t *testing.T) {
	upserts, removed := planDiff([]osm.NodeAction{
		{Type: osm.ActionCreate, Node: defibNode(30, 1)},
		{Type: osm.ActionCreate, Node: defibNode(10, 1)},
		{Type: osm.ActionCreate, Node: defibNode(20, 1)},
		{Type: osm.ActionDelete, Node: osm.Node{ID: 9}},
		{Type: osm.ActionDelete, Node: osm.Node{ID: 3}},
	})

	require.Len(t, upserts, 3)
	assert.EqualValues(t, 10, upserts[0].ID)
	assert.EqualValues(t, 20, upserts[1].ID)
	assert.EqualValues(t, 30, upserts[2].ID)
	assert.Equal(t, []int64{3, 9}, removed)
}
