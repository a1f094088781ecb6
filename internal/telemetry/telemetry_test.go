package telemetry

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baseplate/tracker/config"
)

func TestNewLogger_JSONAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(config.LogConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info().Msg("dropped")
	assert.Zero(t, buf.Len())

	component := Component(logger, "resource")
	component.Warn().Str("resource", "teams").Msg("kept")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "kept", line["message"])
	assert.Equal(t, "resource", line["component"])
	assert.Equal(t, "teams", line["resource"])
}

func TestMetrics_Disabled(t *testing.T) {
	m := NewMetrics(config.MetricsConfig{Enabled: false})
	m.ObserveOperation("teams", "list", "ok", time.Millisecond)

	var nilMetrics *Metrics
	nilMetrics.ObserveOperation("teams", "list", "ok", time.Millisecond)
	nilMetrics.ObserveRequest("GET", "/", "200")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetrics_Enabled(t *testing.T) {
	m := NewMetrics(config.MetricsConfig{Enabled: true, Namespace: "tracker"})
	m.ObserveOperation("teams", "create", "ok", 5*time.Millisecond)
	m.ObserveOperation("teams", "create", "ok", 5*time.Millisecond)
	m.ObserveOperation("teams", "create", "not_found", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.operations.WithLabelValues("teams", "create", "ok")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tracker_resource_operations_total")
}
