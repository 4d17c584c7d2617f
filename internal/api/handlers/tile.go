package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/openaedmap/openaedmap-go/internal/api/middleware"
	"github.com/openaedmap/openaedmap-go/internal/config"
	"github.com/openaedmap/openaedmap-go/internal/metrics"
	"github.com/openaedmap/openaedmap-go/internal/tile"
)

const mvtContentType = "application/vnd.mapbox-vector-tile"

// aedTileExtend widens the AED tile query box so clusters straddling the
// tile edge keep a stable center.
const aedTileExtend = 0.5

// TileHandler renders vector tiles: country polygons at low zoom,
// individual and clustered defibrillators above.
type TileHandler struct {
	countries CountryService
	aeds      AEDService
	logger    zerolog.Logger
}

// NewTileHandler creates a TileHandler.
func NewTileHandler(countries CountryService, aeds AEDService, logger zerolog.Logger) *TileHandler {
	return &TileHandler{
		countries: countries,
		aeds:      aeds,
		logger:    logger.With().Str("component", "tile_handler").Logger(),
	}
}

// RegisterRoutes registers the tile route on the given group.
func (h *TileHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/tile/:z/:x/:y", h.Get)
}

// Get renders one slippy-map tile.
// GET /api/v1/tile/{z}/{x}/{y}.mvt
func (h *TileHandler) Get(c *gin.Context) {
	z, x, y, ok := parseTilePath(c)
	if !ok {
		Error(c, http.StatusBadRequest, "invalid tile coordinates")
		return
	}

	var data []byte
	var err error
	if z <= config.TileCountriesMaxZ {
		timer := prometheus.NewTimer(metrics.TileEncodes.WithLabelValues("countries"))
		data, err = h.countryTile(c, z, x, y)
		timer.ObserveDuration()
		middleware.SetCacheControlNoTransform(c, config.TileCountriesCacheMaxAge, config.TileCountriesCacheStale)
	} else {
		timer := prometheus.NewTimer(metrics.TileEncodes.WithLabelValues("aeds"))
		data, err = h.aedTile(c, z, x, y)
		timer.ObserveDuration()
		middleware.SetCacheControlNoTransform(c, config.DefaultCacheMaxAge, config.TileAEDsCacheStale)
	}
	if err != nil {
		h.logger.Error().Err(err).Uint32("z", z).Uint32("x", x).Uint32("y", y).Msg("tile render failed")
		Error(c, http.StatusInternalServerError, "failed to render tile")
		return
	}

	c.Data(http.StatusOK, mvtContentType, data)
}

// parseTilePath validates the z/x/y.mvt path parameters.
func parseTilePath(c *gin.Context) (z, x, y uint32, ok bool) {
	zv, err := strconv.ParseUint(c.Param("z"), 10, 32)
	if err != nil || zv < config.TileMinZ || zv > config.TileMaxZ {
		return 0, 0, 0, false
	}

	yParam, found := strings.CutSuffix(c.Param("y"), ".mvt")
	if !found {
		return 0, 0, 0, false
	}

	xv, err := strconv.ParseUint(c.Param("x"), 10, 32)
	if err != nil {
		return 0, 0, 0, false
	}
	yv, err := strconv.ParseUint(yParam, 10, 32)
	if err != nil {
		return 0, 0, 0, false
	}

	if limit := uint64(1) << zv; xv >= limit || yv >= limit {
		return 0, 0, 0, false
	}

	return uint32(zv), uint32(xv), uint32(yv), true
}

func (h *TileHandler) countryTile(c *gin.Context, z, x, y uint32) ([]byte, error) {
	bbox := tile.ToBBox(z, x, y)

	countries, err := h.countries.GetIntersectingBBox(c.Request.Context(), bbox)
	if err != nil {
		return nil, err
	}

	features := make([]tile.CountryFeature, len(countries))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(c.Request.Context())
	g.SetLimit(countConcurrency)
	for i, country := range countries {
		g.Go(func() error {
			count, err := h.aeds.CountByCountryCode(ctx, country.Code)
			if err != nil {
				return err
			}
			mu.Lock()
			features[i] = tile.CountryFeature{Country: country, Count: count}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return tile.EncodeCountryTile(z, x, y, features)
}

func (h *TileHandler) aedTile(c *gin.Context, z, x, y uint32) ([]byte, error) {
	bbox := tile.ToBBox(z, x, y).Extend(aedTileExtend)

	results, err := h.aeds.GetIntersectingBBox(c.Request.Context(), bbox, tile.GroupEps(z))
	if err != nil {
		return nil, err
	}

	return tile.EncodeAEDTile(z, x, y, results)
}
