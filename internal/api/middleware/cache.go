package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/zstd"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/openaedmap/openaedmap-go/internal/metrics"
)

// cachedResponse is the stored form of one cacheable response.
type cachedResponse struct {
	Date   time.Time     `json:"date"`
	MaxAge time.Duration `json:"max_age"`
	Stale  time.Duration `json:"stale"`
	Status int           `json:"status"`
	Header http.Header   `json:"header"`
	Body   []byte        `json:"body"`
}

// captureWriter buffers the response body so it can be stored after the
// handler completes. In silent mode nothing reaches the client; that is
// how a stale hit refreshes the cache in the same request.
type captureWriter struct {
	gin.ResponseWriter
	buf     bytes.Buffer
	silent  bool
	status  int
	written bool
}

func (w *captureWriter) WriteHeader(code int) {
	w.status = code
	w.written = true
	if !w.silent {
		w.ResponseWriter.WriteHeader(code)
	}
}

func (w *captureWriter) WriteHeaderNow() {
	if !w.silent {
		w.ResponseWriter.WriteHeaderNow()
	}
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	if w.silent {
		return len(b), nil
	}
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	if w.silent {
		return len(s), nil
	}
	return w.ResponseWriter.WriteString(s)
}

func (w *captureWriter) Status() int {
	if w.status != 0 {
		return w.status
	}
	return w.ResponseWriter.Status()
}

func (w *captureWriter) Size() int {
	return w.buf.Len()
}

func (w *captureWriter) Written() bool {
	return w.written || w.ResponseWriter.Written()
}

// ResponseCache caches GET and HEAD responses in Redis, keyed by the full
// request URL, for as long as their Cache-Control class allows. A fresh
// entry is served directly; a stale one is served immediately with a
// trimmed Cache-Control while the handler re-runs silently to refresh the
// entry.
func ResponseCache(client *redis.Client, logger zerolog.Logger) gin.HandlerFunc {
	log := logger.With().Str("component", "response_cache").Logger()

	encoder, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	decoder, _ := zstd.NewReader(nil)

	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.Next()
			return
		}

		key := "cache:" + c.Request.URL.Path + ":" + c.Request.URL.RawQuery
		cached := getCached(c.Request.Context(), client, decoder, key, log)

		silentRefresh := false
		if cached != nil {
			age := time.Since(cached.Date)
			if age < cached.MaxAge {
				metrics.ResponseCache.WithLabelValues("hit").Inc()
				replay(c, cached, age, "HIT", "")
				c.Abort()
				return
			}
			if age < cached.MaxAge+cached.Stale {
				metrics.ResponseCache.WithLabelValues("stale").Inc()
				replay(c, cached, age, "STALE", FormatCacheControl(0, cached.Stale))
				silentRefresh = true
			}
		}
		if !silentRefresh {
			metrics.ResponseCache.WithLabelValues("miss").Inc()
			c.Header("X-Cache", "MISS")
			c.Header("Age", "0")
		}

		writer := &captureWriter{ResponseWriter: c.Writer, silent: silentRefresh}
		c.Writer = writer

		c.Next()

		status := writer.Status()
		if status < 200 || status >= 300 {
			return
		}

		maxAge, stale, ok := ParseCacheControl(writer.Header().Get("Cache-Control"))
		if !ok || maxAge <= 0 {
			return
		}

		header := writer.Header().Clone()
		header.Del("Age")
		header.Del("X-Cache")

		setCached(c.Request.Context(), client, encoder, key, &cachedResponse{
			Date:   time.Now().UTC(),
			MaxAge: maxAge,
			Stale:  stale,
			Status: status,
			Header: header,
			Body:   bytes.Clone(writer.buf.Bytes()),
		}, log)
	}
}

// replay writes a stored response to the client. A non-empty
// cacheControl overrides the stored header for stale deliveries.
func replay(c *gin.Context, cached *cachedResponse, age time.Duration, verdict, cacheControl string) {
	header := c.Writer.Header()
	for name, values := range cached.Header {
		header[name] = values
	}
	header.Set("Age", strconv.Itoa(int(age.Seconds())))
	header.Set("X-Cache", verdict)
	if cacheControl != "" {
		header.Set("Cache-Control", cacheControl)
	}

	c.Status(cached.Status)
	_, _ = c.Writer.Write(cached.Body)
}

func getCached(ctx context.Context, client *redis.Client, decoder *zstd.Decoder, key string, log zerolog.Logger) *cachedResponse {
	value, err := client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("key", key).Msg("cache read failed")
		}
		return nil
	}

	raw, err := decoder.DecodeAll(value, nil)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache entry corrupt")
		return nil
	}

	var cached cachedResponse
	if err := json.Unmarshal(raw, &cached); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache entry corrupt")
		return nil
	}
	return &cached
}

func setCached(ctx context.Context, client *redis.Client, encoder *zstd.Encoder, key string, cached *cachedResponse, log zerolog.Logger) {
	raw, err := json.Marshal(cached)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache entry marshal failed")
		return
	}

	ttl := cached.MaxAge + cached.Stale
	if err := client.Set(ctx, key, encoder.EncodeAll(raw, nil), ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}
