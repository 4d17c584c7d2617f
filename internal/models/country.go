package models

import (
	"strings"

	"github.com/paulmach/orb"
)

// Country is a country polygon with localized names, used to scope AEDs
// by territory.
type Country struct {
	Code          string            `json:"code"`
	Names         map[string]string `json:"names"`
	Geometry      orb.Geometry      `json:"-"` // Polygon or MultiPolygon
	LabelPosition orb.Point         `json:"label_position"`
}

// Name returns the default (international) name.
func (c *Country) Name() string {
	return c.Names["default"]
}

// GetName returns the name localized for lang, falling back to the default.
func (c *Country) GetName(lang string) string {
	if name, ok := c.Names[strings.ToUpper(lang)]; ok {
		return name
	}
	return c.Name()
}
