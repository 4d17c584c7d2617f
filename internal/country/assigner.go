// Package country ingests the OSM country polygon feed and serves
// country lookups for scoping defibrillators by territory.
package country

import "strconv"

// codePriority lists the ISO tags considered for a country code, most
// specific first.
var codePriority = [...]string{"ISO3166-2", "ISO3166-1", "ISO3166-1:alpha2", "ISO3166-1:alpha3"}

// CodeAssigner picks a country code from OSM tags, preferring codes not
// yet handed out. Disputed territories often carry the same ISO tags, so
// a first pass requires uniqueness and a second pass relaxes it.
type CodeAssigner struct {
	used map[string]struct{}
}

// NewCodeAssigner creates an assigner with an empty used set.
func NewCodeAssigner() *CodeAssigner {
	return &CodeAssigner{used: make(map[string]struct{})}
}

// Assign returns the best available code for tags. When no ISO tag
// qualifies it falls back to "XX", suffixed with a counter once taken
// ("XX0", "XX1", ...) so codeless features never collide on the code
// primary key.
func (a *CodeAssigner) Assign(tags map[string]string) string {
	for _, checkUsed := range [...]bool{true, false} {
		for _, key := range codePriority {
			code := tags[key]
			if len(code) < 2 {
				continue
			}
			if checkUsed {
				if _, taken := a.used[code]; taken {
					continue
				}
			}
			a.used[code] = struct{}{}
			return code
		}
	}

	code := "XX"
	for n := 0; ; n++ {
		if _, taken := a.used[code]; !taken {
			break
		}
		code = "XX" + strconv.Itoa(n)
	}
	a.used[code] = struct{}{}
	return code
}
