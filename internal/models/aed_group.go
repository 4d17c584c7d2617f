package models

import (
	"github.com/paulmach/orb"
)

// AEDGroup is a cluster of nearby AEDs rendered as a single tile feature.
type AEDGroup struct {
	Position orb.Point `json:"position"`
	Count    int       `json:"count"`
	Access   string    `json:"access"`
}

// accessTiers orders access values from most to least public. Unknown
// values rank below everything tiered.
var accessTiers = map[string]int{
	"yes":        0,
	"permissive": 1,
	"customers":  2,
	"":           3,
	"unknown":    3,
	"private":    4,
	"no":         5,
}

const untieredRank = 1 << 30

// DecideAccess picks the most public access value present in the group.
// Values outside the tier table never win, so a group of exclusively
// unrecognized values resolves to "".
func DecideAccess(accesses []string) string {
	best := ""
	bestTier := untieredRank

	for _, access := range accesses {
		if access == "yes" {
			return "yes" // early stopping
		}

		tier, ok := accessTiers[access]
		if !ok {
			tier = untieredRank
		}
		if tier < bestTier {
			best, bestTier = access, tier
		}
	}

	return best
}
