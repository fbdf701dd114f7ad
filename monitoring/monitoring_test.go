package monitoring_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/donor-crm/bonus"
	"github.com/warp/donor-crm/monitoring"
)

var _ bonus.Observer = (*monitoring.MetricsCollector)(nil)

func TestMetrics_HTTPRequestsByRoutePattern(t *testing.T) {
	mc := monitoring.NewMetricsCollector("donor-crm", "test")

	r := chi.NewRouter()
	r.Use(mc.Middleware)
	r.Get("/api/payments/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Handle("/metrics", mc.Handler())

	for _, id := range []string{"1", "2", "3"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/payments/"+id, nil))
	}

	expected := `
# HELP donor_crm_http_requests_total Total number of HTTP requests
# TYPE donor_crm_http_requests_total counter
donor_crm_http_requests_total{endpoint="/api/payments/{id}",method="GET",status="404"} 3
`
	require.NoError(t, testutil.GatherAndCompare(mc.Registry(), strings.NewReader(expected), "donor_crm_http_requests_total"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "donor_crm_service_info")
}

func TestMetrics_AssignmentOutcomes(t *testing.T) {
	mc := monitoring.NewMetricsCollector("donor-crm", "test")

	mc.AssignmentRecorded(bonus.OutcomeBonus, decimal.RequireFromString("50.00"))
	mc.AssignmentRecorded(bonus.OutcomeBonus, decimal.RequireFromString("6.00"))
	mc.AssignmentRecorded(bonus.OutcomeNoBonus, decimal.Zero)

	expected := `
# HELP donor_crm_bonus_assignments_total Solicitor assignment operations by outcome
# TYPE donor_crm_bonus_assignments_total counter
donor_crm_bonus_assignments_total{outcome="bonus"} 2
donor_crm_bonus_assignments_total{outcome="no_bonus"} 1
# HELP donor_crm_bonus_amount_total Sum of bonus amounts calculated on assignment
# TYPE donor_crm_bonus_amount_total counter
donor_crm_bonus_amount_total 56
`
	require.NoError(t, testutil.GatherAndCompare(mc.Registry(), strings.NewReader(expected),
		"donor_crm_bonus_assignments_total", "donor_crm_bonus_amount_total"))
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	hc := monitoring.NewHealthChecker("donor-crm", "test")
	hc.AddCheck("database", monitoring.DatabaseHealthCheck(pinger{}))

	rec := httptest.NewRecorder()
	hc.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var status monitoring.HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, monitoring.StatusHealthy, status.Status)
	assert.Equal(t, monitoring.StatusHealthy, status.Checks["database"].Status)

	hc.AddCheck("database", monitoring.DatabaseHealthCheck(pinger{err: errors.New("connection refused")}))
	rec = httptest.NewRecorder()
	hc.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}
