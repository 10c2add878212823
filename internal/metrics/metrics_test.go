package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSnapshotMetrics(t *testing.T) {
	t.Run("SnapshotRefreshes", func(t *testing.T) {
		before := testutil.ToFloat64(SnapshotRefreshes.WithLabelValues("failure"))
		SnapshotRefreshes.WithLabelValues("failure").Inc()
		assert.Equal(t, before+1, testutil.ToFloat64(SnapshotRefreshes.WithLabelValues("failure")))
	})

	t.Run("SnapshotLastSuccess", func(t *testing.T) {
		SnapshotLastSuccess.Set(1700000000)
		assert.Equal(t, float64(1700000000), testutil.ToFloat64(SnapshotLastSuccess))
	})

	t.Run("SnapshotFetchDuration", func(t *testing.T) {
		assert.NotPanics(t, func() {
			SnapshotFetchDuration.Observe(0.25)
		})
	})

	t.Run("ColdStartFetches", func(t *testing.T) {
		before := testutil.ToFloat64(ColdStartFetches)
		ColdStartFetches.Inc()
		assert.Equal(t, before+1, testutil.ToFloat64(ColdStartFetches))
	})
}

func TestMetricsRegistration(t *testing.T) {
	// Registering an already registered collector must fail.
	collectors := []prometheus.Collector{
		EndpointResponses,
		SnapshotRefreshes,
		SnapshotFetchDuration,
		SnapshotLastSuccess,
		ColdStartFetches,
		WidgetRenders,
	}

	for _, c := range collectors {
		err := prometheus.Register(c)
		assert.Error(t, err)
		var already prometheus.AlreadyRegisteredError
		assert.ErrorAs(t, err, &already)
	}
}

func TestMiddleware(t *testing.T) {
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusOK) // ignored by net/http, must not relabel
	}), "/teapot")

	before := testutil.ToFloat64(EndpointResponses.WithLabelValues("/teapot", "418"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/teapot", nil))

	assert.Equal(t, http.StatusTeapot, rr.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(EndpointResponses.WithLabelValues("/teapot", "418")))
}

func TestMiddlewareDefaultStatus(t *testing.T) {
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}), "/ok")

	before := testutil.ToFloat64(EndpointResponses.WithLabelValues("/ok", "200"))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, before+1, testutil.ToFloat64(EndpointResponses.WithLabelValues("/ok", "200")))
}
