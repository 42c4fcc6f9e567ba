package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_CountersAppearInExposition(t *testing.T) {
	m := New()

	m.RequestsTotal.WithLabelValues("POST", "/login", "200").Inc()
	m.AuthFailuresTotal.Inc()
	m.AuthFailuresTotal.Inc()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()

	assert.True(t, strings.Contains(body,
		`credkeeper_http_requests_total{method="POST",route="/login",status="200"} 1`), body)
	assert.True(t, strings.Contains(body, `credkeeper_auth_failures_total 2`), body)
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	// two instances must not panic on duplicate registration
	a := New()
	b := New()

	a.AuthFailuresTotal.Inc()

	rec := httptest.NewRecorder()
	b.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.True(t, strings.Contains(rec.Body.String(), `credkeeper_auth_failures_total 0`))
}
