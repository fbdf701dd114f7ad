/*
scenarios_test.go - Tests for demo scenarios and the seed loader

PURPOSE:
	Checks that each embedded scenario loads and produces the bonuses its
	comments promise, and that the scenario endpoints are guarded. These
	double as integration tests of the assigner through real rules.
*/
package api

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/donor-crm/crm"
)

// bonusesByAmount maps payment amount to bonus amount for assigned payments.
func bonusesByAmount(t *testing.T, env *testEnv) map[string]string {
	t.Helper()
	payments, err := env.store.ListPayments(context.Background(), crm.Filter{}.Where(crm.NotNull("p.solicitor_id")))
	require.NoError(t, err)
	out := make(map[string]string, len(payments))
	for _, p := range payments {
		require.NotNil(t, p.BonusAmount)
		out[p.Amount.StringFixed(2)+"@"+p.Date.String()] = p.BonusAmount.StringFixed(2)
	}
	return out
}

func TestScenario_TwoCampuses(t *testing.T) {
	// GIVEN: A running server
	env := newTestEnv(t)

	// WHEN: Loading two-campuses
	summary, err := env.handler.LoadScenarioByID(context.Background(), "two-campuses")
	require.NoError(t, err)

	// THEN: Every row was created
	assert.Equal(t, SeedSummary{
		Locations: 2, Users: 3, Contacts: 5, Solicitors: 2, Rules: 3,
		Pledges: 3, Payments: 6, Assigned: 4, Calculations: 3,
	}, *summary)

	// AND: Bonuses follow the rules
	assert.Equal(t, map[string]string{
		"1000.00@2025-03-01": "50.00", // Boston major donation, 5%
		"300.00@2025-04-15":  "0.00",  // below the 500 minimum
		"200.00@2025-03-10":  "6.00",  // Boston tuition, 3%
		"2500.00@2025-02-01": "62.50", // Denver, 2.5% on everything
	}, bonusesByAmount(t, env))

	// AND: The fixture data is gone
	user, err := env.store.GetUserByEmail(context.Background(), root)
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestScenario_TieredRules(t *testing.T) {
	env := newTestEnv(t)

	summary, err := env.handler.LoadScenarioByID(context.Background(), "tiered-rules")
	require.NoError(t, err)
	assert.Equal(t, 6, summary.Assigned)
	assert.Equal(t, 5, summary.Calculations)

	assert.Equal(t, map[string]string{
		"500.00@2024-06-01":   "50.00",   // 2024 promo outranks base
		"500.00@2025-02-01":   "10.00",   // base only
		"2000.00@2025-03-01":  "80.00",   // large gifts
		"20000.00@2025-04-01": "1200.00", // jumbo gifts
		"750.00@2025-05-01":   "0.00",    // CHI-002 has no rules
		"1000.00@2025-03-01":  "20.00",   // tuition falls back to base
	}, bonusesByAmount(t, env))
}

func TestScenario_AllLoadWithoutError(t *testing.T) {
	for _, s := range scenarios {
		t.Run(s.ID, func(t *testing.T) {
			env := newTestEnv(t)
			_, err := env.handler.LoadScenarioByID(context.Background(), s.ID)
			require.NoError(t, err)

			env.handler.mu.Lock()
			defer env.handler.mu.Unlock()
			assert.Equal(t, s.ID, env.handler.currentScenario)
		})
	}
}

func TestScenario_Unknown(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.handler.LoadScenarioByID(context.Background(), "nope")
	assert.ErrorIs(t, err, crm.ErrValidation)

	// The store was not reset
	user, err := env.store.GetUserByEmail(context.Background(), root)
	require.NoError(t, err)
	assert.NotNil(t, user)
}

// =============================================================================
// ENDPOINTS
// =============================================================================

func TestScenarioEndpoints_SuperAdminOnly(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do("GET", "/api/scenarios", boston, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = env.do("POST", "/api/scenarios/load", "", LoadScenarioRequest{ScenarioID: "two-campuses"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = env.do("POST", "/api/scenarios/reset", boston, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestScenarioEndpoints_LoadAndCurrent(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do("GET", "/api/scenarios", root, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]ScenarioDTO](t, rec), len(scenarios))

	rec = env.do("GET", "/api/scenarios/current", root, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null", strings.TrimSpace(rec.Body.String()))

	rec = env.do("POST", "/api/scenarios/load", root, LoadScenarioRequest{ScenarioID: "tiered-rules"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// The old session's user no longer exists; log in as the seeded root
	rec = env.do("POST", "/api/auth/login", "", LoginRequest{Email: "root@donor-crm.local", Password: "changeme123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	seeded := "root@donor-crm.local"

	rec = env.do("GET", "/api/scenarios/current", seeded, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tiered-rules", decode[ScenarioDTO](t, rec).ID)

	rec = env.do("POST", "/api/scenarios/load", seeded, LoadScenarioRequest{ScenarioID: "bogus"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScenarioEndpoints_Reset(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do("POST", "/api/scenarios/reset", root, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	payments, err := env.store.ListPayments(context.Background(), crm.Filter{})
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestScenarioEndpoints_Disabled(t *testing.T) {
	env := newTestEnv(t)
	env.handler.EnableScenarios = false
	env.router = NewRouter(env.handler)

	rec := env.do("GET", "/api/scenarios", root, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// SEED LOADER
// =============================================================================

func TestLoadSeed_Errors(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{"malformed", "locations: [", "seed"},
		{"unknown field", "colour: blue", "seed"},
		{"unknown contact", `
locations:
  - name: Austin
    pledges:
      - {contact: nobody, amount: 5, date: 2025-01-01}
`, "contact"},
		{"unknown solicitor", `
locations:
  - name: Austin
    contacts: [{key: a, firstName: A, lastName: B}]
    pledges:
      - contact: a
        amount: 5
        payments: [{amount: 5, date: 2025-01-01, solicitor: NOPE}]
`, "solicitor"},
		{"bad rule", `
locations:
  - name: Austin
    solicitors:
      - code: AUS-1
        rules: [{ruleName: X, bonusPercentage: 500}]
`, "bonusPercentage"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			_, err := env.handler.LoadSeed(context.Background(), strings.NewReader(tt.yaml))
			require.Error(t, err)

			var ve *crm.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestLoadSeed_EmptyDocument(t *testing.T) {
	env := newTestEnv(t)
	summary, err := env.handler.LoadSeed(context.Background(), strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, SeedSummary{}, *summary)
}
