package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/openaedmap/openaedmap-go/internal/api/middleware"
	"github.com/openaedmap/openaedmap-go/internal/config"
	"github.com/openaedmap/openaedmap-go/internal/db"
)

// OSM envelope boilerplate mirroring the public API responses the data
// comes from.
const (
	osmAPIVersion  = 0.6
	osmCopyright   = "OpenStreetMap and contributors"
	osmAttribution = "http://www.openstreetmap.org/copyright"
	osmLicense     = "http://opendatacommons.org/licenses/odbl/1-0/"
)

// TimezoneFinder resolves a timezone name from coordinates.
type TimezoneFinder interface {
	GetTimezoneName(lng, lat float64) string
}

// NodeHandler serves single-node lookups enriched with timezone hints.
type NodeHandler struct {
	aeds     AEDService
	timezone TimezoneFinder
	logger   zerolog.Logger
}

// NewNodeHandler creates a NodeHandler. The timezone finder is optional.
func NewNodeHandler(aeds AEDService, timezone TimezoneFinder, logger zerolog.Logger) *NodeHandler {
	return &NodeHandler{
		aeds:     aeds,
		timezone: timezone,
		logger:   logger.With().Str("component", "node_handler").Logger(),
	}
}

// RegisterRoutes registers the node routes on the given group.
func (h *NodeHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/node/:id", h.Get)
}

// Get returns one node wrapped in an OSM-style envelope.
// GET /api/v1/node/{id}
func (h *NodeHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		Error(c, http.StatusNotFound, "node %q not found", c.Param("id"))
		return
	}

	aed, err := h.aeds.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			Error(c, http.StatusNotFound, "node %q not found", c.Param("id"))
			return
		}
		h.logger.Error().Err(err).Int64("id", id).Msg("get aed failed")
		Error(c, http.StatusInternalServerError, "failed to get node")
		return
	}

	tzName, tzOffset := h.resolveTimezone(aed.Position[0], aed.Position[1])

	element := gin.H{
		"type":    "node",
		"id":      aed.ID,
		"lat":     aed.Position[1],
		"lon":     aed.Position[0],
		"tags":    aed.Tags,
		"version": 0,
	}
	if tzName != "" {
		element["@timezone_name"] = tzName
	}
	if tzOffset != "" {
		element["@timezone_offset"] = tzOffset
	}

	middleware.SetCacheControl(c, config.DefaultCacheMaxAge, config.DefaultCacheStale)
	c.JSON(http.StatusOK, gin.H{
		"version":     osmAPIVersion,
		"copyright":   osmCopyright,
		"attribution": osmAttribution,
		"license":     osmLicense,
		"elements":    []gin.H{element},
	})
}

// resolveTimezone returns the IANA name and the current UTC offset, like
// "Europe/Warsaw" and "UTC+02:00".
func (h *NodeHandler) resolveTimezone(lon, lat float64) (string, string) {
	if h.timezone == nil {
		return "", ""
	}

	name := h.timezone.GetTimezoneName(lon, lat)
	if name == "" {
		return "", ""
	}

	location, err := time.LoadLocation(name)
	if err != nil {
		h.logger.Warn().Err(err).Str("timezone", name).Msg("unknown timezone name")
		return name, ""
	}

	return name, "UTC" + time.Now().In(location).Format("-07:00")
}
