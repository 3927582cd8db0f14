package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveGeneration(t *testing.T) {
	m := New()

	m.ObserveGeneration("post", OutcomeSuccess, 2*time.Second)
	m.ObserveGeneration("post", OutcomeFailed, time.Second)
	m.ObserveGeneration("post", OutcomeMissingCredential, 0)

	assert.InDelta(t, 1, testutil.ToFloat64(m.Generations.WithLabelValues("post", OutcomeSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Generations.WithLabelValues("post", OutcomeMissingCredential)), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.GenerationDuration))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveGeneration("image", OutcomeSuccess, time.Second)
		m.SetRecordCount("history", 3)
	})
}

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Delete("/api/v1/schedule/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	for _, id := range []string{"1", "2"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/schedule/"+id, nil))
		require.Equal(t, http.StatusNoContent, rec.Code)
	}

	got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues(http.MethodDelete, "/api/v1/schedule/{id}", "204"))
	assert.InDelta(t, 2, got, 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.HTTPInFlight), 0)
}

func TestHandler_ServesRegistry(t *testing.T) {
	m := New()
	m.SetRecordCount("history", 12)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `postsmith_records{collection="history"} 12`))
	assert.Contains(t, body, "go_goroutines")
}
