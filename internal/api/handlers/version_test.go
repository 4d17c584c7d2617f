package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionGet(t *testing.T) {
	h := NewVersionHandler("1.2.3", "abc1234", "2026-01-02", testLogger())
	engine := newTestEngine(h.RegisterRoutes)

	rec := doRequest(t, engine, "/api/v1/version")
	require.Equal(t, http.StatusOK, rec.Code)

	var info VersionInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "1.2.3", info.Version)
	assert.Equal(t, "abc1234", info.Commit)
	assert.Equal(t, "2026-01-02", info.BuildDate)
}
