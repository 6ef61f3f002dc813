package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCollector_RecordAttempt(t *testing.T) {
	c := NewCollector("pilot", zap.NewNop())

	c.RecordAttempt(ModeLaunch, OutcomeSuccess)
	c.RecordAttempt(ModeLaunch, OutcomeSuccess)
	c.RecordAttempt(ModeBuild, OutcomeFailure)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.attemptsTotal.WithLabelValues(ModeLaunch, OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.attemptsTotal.WithLabelValues(ModeBuild, OutcomeFailure)))
}

func TestCollector_Durations(t *testing.T) {
	c := NewCollector("pilot", nil)
	c.ObserveGeneration(ModeBuild, 1500*time.Millisecond)
	c.ObserveExecution(ModeBuild, 20*time.Millisecond)

	assert.Equal(t, 1, testutil.CollectAndCount(c.generationDuration))
	assert.Equal(t, 1, testutil.CollectAndCount(c.executionDuration))
}

func TestCollector_NilIsSafe(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordAttempt(ModeLaunch, OutcomeError)
		c.ObserveGeneration(ModeLaunch, time.Second)
		c.ObserveExecution(ModeLaunch, time.Second)
		c.RecordStateTransition("idle", "generating")
		c.RecordTelemetryDropped()
	})

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// Two collectors never clash: each has its own registry.
func TestCollector_HandlerExposesMetrics(t *testing.T) {
	_ = NewCollector("pilot", nil)
	c := NewCollector("pilot", nil)
	c.RecordStateTransition("idle", "url_submitted")
	c.RecordTelemetryDropped()

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `pilot_runner_state_transitions_total{from_state="idle",to_state="url_submitted"} 1`)
	assert.Contains(t, string(body), "pilot_telemetry_dropped_total 1")
}
