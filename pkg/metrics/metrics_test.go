package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterDefaultIsIdempotent(t *testing.T) {
	RegisterDefault()
	assert.NotPanics(t, RegisterDefault)
}

func TestHandlerExposesCounters(t *testing.T) {
	RegisterDefault()
	before := testutil.ToFloat64(TrafficUpdates.WithLabelValues("ok"))
	TrafficUpdates.WithLabelValues("ok").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(TrafficUpdates.WithLabelValues("ok")))

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ecoflow_traffic_update_cycles_total")
}
