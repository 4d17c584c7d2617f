package handlers

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"github.com/openaedmap/openaedmap-go/internal/api/middleware"
	"github.com/openaedmap/openaedmap-go/internal/models"
)

// worldCode is the synthetic country covering the whole dataset.
const worldCode = "WORLD"

// countConcurrency bounds the parallel per-country count queries.
const countConcurrency = 8

// CountriesHandler serves country listings and per-country GeoJSON dumps.
type CountriesHandler struct {
	countries CountryService
	aeds      AEDService
	logger    zerolog.Logger
}

// NewCountriesHandler creates a CountriesHandler.
func NewCountriesHandler(countries CountryService, aeds AEDService, logger zerolog.Logger) *CountriesHandler {
	return &CountriesHandler{
		countries: countries,
		aeds:      aeds,
		logger:    logger.With().Str("component", "countries_handler").Logger(),
	}
}

// RegisterRoutes registers the country routes on the given group.
func (h *CountriesHandler) RegisterRoutes(r *gin.RouterGroup) {
	countries := r.Group("/countries")
	{
		countries.GET("/names", h.Names)
		countries.GET("/:code", h.GeoJSON)
	}
}

type countryNamesEntry struct {
	CountryCode  string            `json:"country_code"`
	CountryNames map[string]string `json:"country_names"`
	FeatureCount int               `json:"feature_count"`
	DataPath     string            `json:"data_path"`
}

// Names returns every country with its localized names and AED count,
// plus the synthetic WORLD entry summing the whole dataset.
// GET /api/v1/countries/names?language=XX
func (h *CountriesHandler) Names(c *gin.Context) {
	lang := normalizeLanguage(c.Query("language"))

	countries, err := h.countries.GetAll(c.Request.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("list countries failed")
		Error(c, http.StatusInternalServerError, "failed to list countries")
		return
	}

	counts := make(map[string]int, len(countries))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(c.Request.Context())
	g.SetLimit(countConcurrency)
	for _, country := range countries {
		g.Go(func() error {
			count, err := h.aeds.CountByCountryCode(ctx, country.Code)
			if err != nil {
				return err
			}
			mu.Lock()
			counts[country.Code] = count
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		h.logger.Error().Err(err).Msg("count aeds failed")
		Error(c, http.StatusInternalServerError, "failed to count defibrillators")
		return
	}

	total := 0
	entries := make([]countryNamesEntry, 0, len(countries)+1)
	for _, country := range countries {
		total += counts[country.Code]
		entries = append(entries, countryNamesEntry{
			CountryCode:  country.Code,
			CountryNames: limitNames(country.Names, lang),
			FeatureCount: counts[country.Code],
			DataPath:     "/api/v1/countries/" + country.Code + ".geojson",
		})
	}
	entries = append(entries, countryNamesEntry{
		CountryCode:  worldCode,
		CountryNames: map[string]string{"default": "World"},
		FeatureCount: total,
		DataPath:     "/api/v1/countries/WORLD.geojson",
	})

	middleware.SetCacheControl(c, time.Hour, 7*24*time.Hour)
	c.JSON(http.StatusOK, entries)
}

// GeoJSON streams all AEDs of one country (or WORLD) as a GeoJSON
// FeatureCollection download.
// GET /api/v1/countries/{code}.geojson
func (h *CountriesHandler) GeoJSON(c *gin.Context) {
	code, ok := strings.CutSuffix(c.Param("code"), ".geojson")
	if !ok || len(code) < 2 || len(code) > 5 {
		Error(c, http.StatusNotFound, "country not found")
		return
	}

	var aeds []models.AED
	var err error
	if code == worldCode {
		aeds, err = h.aeds.GetAll(c.Request.Context())
	} else {
		aeds, err = h.aeds.GetByCountryCode(c.Request.Context(), code)
	}
	if err != nil {
		h.logger.Error().Err(err).Str("code", code).Msg("list aeds failed")
		Error(c, http.StatusInternalServerError, "failed to list defibrillators")
		return
	}

	features := make([]gin.H, 0, len(aeds))
	for _, aed := range aeds {
		properties := gin.H{
			"@osm_type":    "node",
			"@osm_id":      aed.ID,
			"@osm_version": aed.Version,
		}
		for key, value := range aed.Tags {
			properties[key] = value
		}
		features = append(features, gin.H{
			"type": "Feature",
			"geometry": gin.H{
				"type":        "Point",
				"coordinates": []float64{aed.Position[0], aed.Position[1]},
			},
			"properties": properties,
		})
	}

	middleware.SetCacheControl(c, time.Hour, 0)
	c.Header("Content-Disposition", "attachment")
	c.Header("Content-Type", "application/geo+json; charset=utf-8")
	c.JSON(http.StatusOK, gin.H{
		"type":     "FeatureCollection",
		"features": features,
	})
}

// normalizeLanguage maps a requested language to the upper-cased form the
// country names are keyed by, e.g. "pl" and "pl-PL" both become "PL".
func normalizeLanguage(raw string) string {
	if raw == "" {
		return ""
	}
	tag, err := language.Parse(raw)
	if err != nil {
		return strings.ToUpper(raw)
	}
	base, _ := tag.Base()
	return strings.ToUpper(base.String())
}

// limitNames narrows a names map to one language when that localization
// exists.
func limitNames(names map[string]string, lang string) map[string]string {
	if lang != "" {
		if name, ok := names[lang]; ok {
			return map[string]string{lang: name}
		}
	}
	return names
}
