package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveSolve(t *testing.T) {
	r := NewRegistry()

	r.ObserveSolve("native", 3*time.Millisecond, 2, 1, nil)
	r.ObserveSolve("native", time.Millisecond, 3, 2, nil)
	r.ObserveSolve("1w", 0, 0, 0, errors.New("degenerate"))

	assert.Equal(t, 2.0, testutil.ToFloat64(r.Solves.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Solves.WithLabelValues(OutcomeError)))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.Outliers))

	done := r.Track()
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ActiveAnalyses))
	done()
	assert.Equal(t, 0.0, testutil.ToFloat64(r.ActiveAnalyses))

	r.ObserveStaged("body", 10)
	assert.Equal(t, 10.0, testutil.ToFloat64(r.RowsStaged.WithLabelValues("body")))
}

func TestNilRegistryIsNoop(t *testing.T) {
	var r *Registry
	r.ObserveSolve("native", time.Second, 1, 0, nil)
	r.ObserveStaged("body", 1)
	r.Track()()
}

func TestHandler(t *testing.T) {
	r := NewRegistry()
	r.ObserveSolve("native", time.Millisecond, 1, 0, nil)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "spc_solves_total")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
