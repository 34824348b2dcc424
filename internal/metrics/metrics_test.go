package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveFlatten(t *testing.T) {
	m := New("bimscene")

	m.ObserveFlatten("house", 12, 20*time.Millisecond)
	m.ObserveFlatten("house", 3, 10*time.Millisecond)

	assert.Equal(t, 15.0, testutil.ToFloat64(m.ViewsTotal.WithLabelValues("house")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.FlattenDuration))
}

func TestObserveBuild(t *testing.T) {
	m := New("bimscene")

	m.ObserveBuild(4, time.Millisecond)
	m.ObserveBuild(6, time.Millisecond)

	assert.Equal(t, 6.0, testutil.ToFloat64(m.Phases))
}

func TestCountAnomalyAndLoad(t *testing.T) {
	m := New("bimscene")

	m.CountAnomaly(ComponentScene, "cycle_avoided")
	m.CountAnomaly(ComponentScene, "cycle_avoided")
	m.CountAnomaly(ComponentPhase, "unknown_phase")
	m.CountLoad(nil)
	m.CountLoad(errors.New("fetch failed"))
	m.CountLoad(nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AnomaliesTotal.WithLabelValues("scene", "cycle_avoided")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AnomaliesTotal.WithLabelValues("phase", "unknown_phase")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.LoadsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoadsTotal.WithLabelValues("error")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveFlatten("house", 1, time.Second)
		m.ObserveBuild(1, time.Second)
		m.CountAnomaly(ComponentScene, "depth_limit")
		m.CountLoad(nil)
	})
}

func TestHandler(t *testing.T) {
	m := New("bimscene")
	m.CountLoad(nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `bimscene_loads_total{result="ok"} 1`))
}

func TestIndependentRegistries(t *testing.T) {
	a := New("bimscene")
	b := New("bimscene")

	a.CountLoad(nil)
	assert.Equal(t, 0.0, testutil.ToFloat64(b.LoadsTotal.WithLabelValues("ok")))
}
