// Package models contains the shared data structures for the OpenAEDMap server.
package models

import (
	"github.com/paulmach/orb"
)

// DefibrillatorTag is the OSM tag that marks a node as an AED.
const (
	DefibrillatorTagKey   = "emergency"
	DefibrillatorTagValue = "defibrillator"
)

// AED is a single defibrillator node as tracked in the store.
type AED struct {
	ID           int64             `json:"id"`
	Version      int64             `json:"version"`
	Tags         map[string]string `json:"tags"`
	Position     orb.Point         `json:"position"`
	CountryCodes []string          `json:"country_codes"` // nil means not yet assigned
}

// Access returns the value of the access tag, or "" when untagged.
func (a *AED) Access() string {
	return a.Tags["access"]
}

// IsDefibrillator reports whether a tag set carries the defibrillator marker.
func IsDefibrillator(tags map[string]string) bool {
	return tags[DefibrillatorTagKey] == DefibrillatorTagValue
}
