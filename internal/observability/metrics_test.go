package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreMetrics_RecordRequest(t *testing.T) {
	m := NewStoreMetrics()
	m.RecordRequest("list", OutcomeOK, 10*time.Millisecond)
	m.RecordRequest("list", OutcomeOK, 10*time.Millisecond)
	m.RecordRequest("archive", OutcomeDisguised, time.Millisecond)
	m.RecordSaved("archive", 128)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestTotal.WithLabelValues("list", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestTotal.WithLabelValues("archive", OutcomeDisguised)))
	assert.Equal(t, 128.0, testutil.ToFloat64(m.savedBytes.WithLabelValues("archive")))
}

func TestStoreMetrics_NilIsNoop(t *testing.T) {
	var m *StoreMetrics
	assert.NotPanics(t, func() {
		m.RecordRequest("list", OutcomeOK, time.Second)
		m.RecordSaved("single", 10)
	})
}

func TestHTTPServerMetrics_Middleware(t *testing.T) {
	m := NewHTTPServerMetrics()
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	req := httptest.NewRequest(http.MethodGet, "/delegated/bidder-42/artifacts", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	got := testutil.ToFloat64(m.requestTotal.WithLabelValues(http.MethodGet, "/delegated/{bidderId}/artifacts", "403"))
	assert.Equal(t, 1.0, got)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "resume_vault_http_requests_total")
}

func TestNormalizePath(t *testing.T) {
	tests := map[string]string{
		"/artifacts":                      "/artifacts",
		"/delegated/b1/artifacts/archive": "/delegated/{bidderId}/artifacts/archive",
		"/delegated/bidders":              "/delegated/bidders",
		"/admin/users/u-9/role":           "/admin/users/{userId}/role",
		"/admin/users":                    "/admin/users",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizePath(in), in)
	}
}
