package models

import (
	"github.com/paulmach/orb"
)

// SearchResult is one entry of a spatial query result: either a single AED
// or a group of clustered ones. Exactly one field is set.
type SearchResult struct {
	AED   *AED
	Group *AEDGroup
}

// SingleResult wraps one AED.
func SingleResult(aed *AED) SearchResult {
	return SearchResult{AED: aed}
}

// GroupResult wraps a cluster.
func GroupResult(group *AEDGroup) SearchResult {
	return SearchResult{Group: group}
}

// Position returns the feature position for tile encoding.
func (r SearchResult) Position() orb.Point {
	if r.AED != nil {
		return r.AED.Position
	}
	return r.Group.Position
}

// Access returns the shared access label.
func (r SearchResult) Access() string {
	if r.AED != nil {
		return r.AED.Access()
	}
	return r.Group.Access
}

// Count returns the number of AEDs the result stands for.
func (r SearchResult) Count() int {
	if r.AED != nil {
		return 1
	}
	return r.Group.Count
}
