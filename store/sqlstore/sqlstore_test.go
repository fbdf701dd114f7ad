package sqlstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/donor-crm/crm"
	"github.com/warp/donor-crm/store/sqlstore"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlstore.Store {
	store, err := sqlstore.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decp(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func i64(n int64) *int64 { return &n }

type fixture struct {
	store    *sqlstore.Store
	location crm.Location
	contact  crm.Contact
	donation crm.Category
	tuition  crm.Category
}

func newFixture(t *testing.T, store *sqlstore.Store, locationName string) fixture {
	ctx := context.Background()
	loc, err := store.CreateLocation(ctx, crm.Location{Name: locationName})
	require.NoError(t, err)
	contact, err := store.CreateContact(ctx, crm.Contact{FirstName: "Ada", LastName: locationName, LocationID: loc.ID})
	require.NoError(t, err)

	donation, err := store.CreateCategory(ctx, crm.Category{Name: "General Donation " + locationName})
	require.NoError(t, err)
	tuition, err := store.CreateCategory(ctx, crm.Category{Name: "Tuition " + locationName})
	require.NoError(t, err)

	return fixture{store: store, location: *loc, contact: *contact, donation: *donation, tuition: *tuition}
}

func (f fixture) payment(t *testing.T, category crm.Category, amount string, day crm.Date) crm.Payment {
	ctx := context.Background()
	pledge, err := f.store.CreatePledge(ctx, crm.Pledge{
		ContactID:      f.contact.ID,
		CategoryID:     &category.ID,
		OriginalAmount: dec(amount),
		PledgeDate:     day,
	})
	require.NoError(t, err)
	p, err := f.store.CreatePayment(ctx, crm.Payment{PledgeID: pledge.ID, Amount: dec(amount), Date: day})
	require.NoError(t, err)
	return *p
}

func (f fixture) solicitor(t *testing.T, code string) crm.Solicitor {
	s, err := f.store.CreateSolicitor(context.Background(), crm.Solicitor{Code: code, LocationID: f.location.ID})
	require.NoError(t, err)
	return *s
}

// =============================================================================
// DIRECTORY
// =============================================================================

func TestStore_UserEmailIsCaseInsensitive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.CreateUser(ctx, crm.User{Email: "Admin@Example.com", PasswordHash: "x", Role: crm.RoleSuperAdmin})
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", created.Email)

	got, err := store.GetUserByEmail(ctx, "ADMIN@example.COM")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, created.ID, got.ID)
	assert.Nil(t, got.LocationID)

	missing, err := store.GetUserByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_DuplicateEmailIsConflict(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateUser(ctx, crm.User{Email: "a@example.com", PasswordHash: "x", Role: crm.RoleUser})
	require.NoError(t, err)
	_, err = store.CreateUser(ctx, crm.User{Email: "A@example.com", PasswordHash: "y", Role: crm.RoleUser})
	assert.True(t, errors.Is(err, crm.ErrConflict), "got %v", err)
}

func TestStore_GetPledgeReturnsLocation(t *testing.T) {
	store := newTestStore(t)
	f := newFixture(t, store, "Boston")
	p := f.payment(t, f.donation, "100", crm.DateOf(2025, 3, 1))

	pledge, loc, err := store.GetPledge(context.Background(), p.PledgeID)
	require.NoError(t, err)
	require.NotNil(t, pledge)
	assert.Equal(t, f.location.ID, loc)
	assert.True(t, pledge.OriginalAmount.Equal(dec("100")))
}

func TestStore_ListContactsScopedByLocation(t *testing.T) {
	store := newTestStore(t)
	boston := newFixture(t, store, "Boston")
	newFixture(t, store, "Denver")

	scoped := crm.LocationScope(boston.location.ID).Apply(crm.Filter{}, "c.location_id")
	contacts, err := store.ListContacts(context.Background(), scoped)
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, boston.contact.ID, contacts[0].ID)

	all, err := store.ListContacts(context.Background(), crm.Unrestricted.Apply(crm.Filter{}, "c.location_id"))
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestStore_FilterRejectsUnsafeColumn(t *testing.T) {
	store := newTestStore(t)
	_, err := store.ListContacts(context.Background(), crm.Filter{}.Where(crm.Eq("c.id; DROP TABLE contacts", 1)))
	assert.Error(t, err)
}

// =============================================================================
// PAYMENTS
// =============================================================================

func TestStore_PaymentContextCarriesLocationAndCategory(t *testing.T) {
	store := newTestStore(t)
	f := newFixture(t, store, "Boston")
	p := f.payment(t, f.tuition, "200", crm.DateOf(2025, 3, 1))

	pc, err := store.GetPaymentContext(context.Background(), p.ID)
	require.NoError(t, err)
	require.NotNil(t, pc)
	assert.Equal(t, f.location.ID, pc.LocationID)
	assert.Equal(t, f.contact.ID, pc.ContactID)
	assert.False(t, pc.IsDonation())
	assert.Equal(t, crm.PaymentCompleted, pc.Payment.Status)
	assert.Equal(t, "USD", pc.Payment.Currency)
	assert.False(t, pc.Payment.IsAssigned())

	missing, err := store.GetPaymentContext(context.Background(), 9999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_SetPaymentBonusOverwritesAndClears(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	f := newFixture(t, store, "Boston")
	s := f.solicitor(t, "SOL-1")
	p := f.payment(t, f.donation, "1000", crm.DateOf(2025, 3, 1))

	updated, err := store.SetPaymentBonus(ctx, p.ID, crm.PaymentBonus{
		SolicitorID:     &s.ID,
		BonusPercentage: decp("5"),
		BonusAmount:     decp("50.00"),
		BonusRuleID:     i64(7),
	})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, s.ID, *updated.SolicitorID)
	assert.True(t, updated.BonusAmount.Equal(dec("50")))
	assert.Equal(t, int64(7), *updated.BonusRuleID)

	cleared, err := store.SetPaymentBonus(ctx, p.ID, crm.PaymentBonus{})
	require.NoError(t, err)
	assert.Nil(t, cleared.SolicitorID)
	assert.Nil(t, cleared.BonusPercentage)
	assert.Nil(t, cleared.BonusAmount)
	assert.Nil(t, cleared.BonusRuleID)

	none, err := store.SetPaymentBonus(ctx, 9999, crm.PaymentBonus{})
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestStore_ListPaymentsByAssignment(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	f := newFixture(t, store, "Boston")
	s := f.solicitor(t, "SOL-1")
	assigned := f.payment(t, f.donation, "10", crm.DateOf(2025, 3, 1))
	f.payment(t, f.donation, "20", crm.DateOf(2025, 3, 2))

	_, err := store.SetPaymentBonus(ctx, assigned.ID, crm.PaymentBonus{SolicitorID: &s.ID})
	require.NoError(t, err)

	unassigned, err := store.ListPayments(ctx, crm.Filter{}.Where(crm.IsNull("p.solicitor_id")))
	require.NoError(t, err)
	require.Len(t, unassigned, 1)
	assert.True(t, unassigned[0].Amount.Equal(dec("20")))

	bySolicitor, err := store.ListPayments(ctx, crm.Filter{}.Where(crm.Eq("p.solicitor_id", s.ID)))
	require.NoError(t, err)
	require.Len(t, bySolicitor, 1)
	assert.Equal(t, assigned.ID, bySolicitor[0].ID)

	n, err := store.CountPaymentsBySolicitor(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// =============================================================================
// SOLICITORS & RULES
// =============================================================================

func TestStore_SolicitorCodeIsUnique(t *testing.T) {
	store := newTestStore(t)
	f := newFixture(t, store, "Boston")
	f.solicitor(t, "SOL-1")

	_, err := store.CreateSolicitor(context.Background(), crm.Solicitor{Code: "SOL-1", LocationID: f.location.ID})
	assert.True(t, errors.Is(err, crm.ErrConflict), "got %v", err)
}

func TestStore_UpdateAndDeleteSolicitor(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	f := newFixture(t, store, "Boston")
	s := f.solicitor(t, "SOL-1")

	s.Status = crm.SolicitorInactive
	s.CommissionRate = decp("2.5")
	hire := crm.DateOf(2024, 6, 1)
	s.HireDate = &hire
	updated, err := store.UpdateSolicitor(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, crm.SolicitorInactive, updated.Status)
	assert.True(t, updated.CommissionRate.Equal(dec("2.5")))
	assert.Equal(t, "2024-06-01", updated.HireDate.String())

	_, err = store.CreateRule(ctx, crm.BonusRule{
		SolicitorID: s.ID, BonusPercentage: dec("5"), PaymentType: crm.PaymentTypeBoth,
		EffectiveFrom: crm.DateOf(2025, 1, 1), IsActive: true,
	})
	require.NoError(t, err)

	require.NoError(t, store.DeleteSolicitor(ctx, s.ID))
	gone, err := store.GetSolicitor(ctx, s.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	rules, err := store.RulesForSolicitor(ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, rules)

	assert.True(t, crm.IsNotFound(store.DeleteSolicitor(ctx, s.ID)))
}

func TestStore_CandidateRulesFiltersWindowAndActivity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	f := newFixture(t, store, "Boston")
	s := f.solicitor(t, "SOL-1")

	march := crm.DateOf(2025, 3, 15)
	endFeb := crm.DateOf(2025, 2, 28)
	endMarch := crm.DateOf(2025, 3, 15)

	mk := func(name string, from crm.Date, to *crm.Date, active bool, priority int) int64 {
		r, err := store.CreateRule(ctx, crm.BonusRule{
			SolicitorID: s.ID, Name: name, BonusPercentage: dec("5"), PaymentType: crm.PaymentTypeBoth,
			EffectiveFrom: from, EffectiveTo: to, IsActive: active, Priority: priority,
		})
		require.NoError(t, err)
		return r.ID
	}

	open := mk("open", crm.DateOf(2025, 1, 1), nil, true, 0)
	mk("expired", crm.DateOf(2025, 1, 1), &endFeb, true, 5)
	mk("inactive", crm.DateOf(2025, 1, 1), nil, false, 9)
	mk("future", crm.DateOf(2025, 4, 1), nil, true, 9)
	lastDay := mk("ends today", crm.DateOf(2025, 3, 1), &endMarch, true, 3)

	rules, err := store.CandidateRules(ctx, s.ID, march)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, lastDay, rules[0].ID, "higher priority first")
	assert.Equal(t, open, rules[1].ID)
}

func TestStore_RuleRoundTripsOptionalFields(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	f := newFixture(t, store, "Boston")
	s := f.solicitor(t, "SOL-1")
	to := crm.DateOf(2025, 12, 31)

	created, err := store.CreateRule(ctx, crm.BonusRule{
		SolicitorID: s.ID, Name: "Band", BonusPercentage: dec("3.5"), PaymentType: crm.PaymentTypeTuition,
		MinAmount: decp("100"), MaxAmount: decp("500"), EffectiveFrom: crm.DateOf(2025, 1, 1),
		EffectiveTo: &to, IsActive: true, Priority: 2, Notes: "tuition band",
	})
	require.NoError(t, err)

	got, err := store.GetRule(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Band", got.Name)
	assert.True(t, got.BonusPercentage.Equal(dec("3.5")))
	assert.Equal(t, crm.PaymentTypeTuition, got.PaymentType)
	assert.True(t, got.MinAmount.Equal(dec("100")))
	assert.True(t, got.MaxAmount.Equal(dec("500")))
	assert.Equal(t, "2025-12-31", got.EffectiveTo.String())
	assert.True(t, got.IsActive)
	assert.Equal(t, 2, got.Priority)

	got.IsActive = false
	got.MaxAmount = nil
	updated, err := store.UpdateRule(ctx, *got)
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.Nil(t, updated.MaxAmount)

	require.NoError(t, store.DeleteRule(ctx, created.ID))
	assert.True(t, crm.IsNotFound(store.DeleteRule(ctx, created.ID)))
}

// =============================================================================
// CALCULATIONS & TRANSACTIONS
// =============================================================================

func TestStore_OneCalculationPerPayment(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	f := newFixture(t, store, "Boston")
	s := f.solicitor(t, "SOL-1")
	p := f.payment(t, f.donation, "1000", crm.DateOf(2025, 3, 1))

	calc := crm.BonusCalculation{
		PaymentID: p.ID, SolicitorID: s.ID, PaymentAmount: dec("1000"),
		BonusPercentage: dec("5"), BonusAmount: dec("50.00"),
	}
	first, err := store.InsertCalculation(ctx, calc)
	require.NoError(t, err)

	_, err = store.InsertCalculation(ctx, calc)
	assert.True(t, errors.Is(err, crm.ErrConflict), "got %v", err)

	byPayment, err := store.GetCalculationForPayment(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, byPayment)
	assert.Equal(t, first.ID, byPayment.ID)
	assert.False(t, byPayment.IsPaid)
	assert.Nil(t, byPayment.PaidAt)

	paidAt := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	paid, err := store.MarkCalculationPaid(ctx, first.ID, paidAt)
	require.NoError(t, err)
	assert.True(t, paid.IsPaid)
	assert.True(t, paid.PaidAt.Equal(paidAt))

	n, err := store.DeleteCalculationsForPayment(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = store.DeleteCalculationsForPayment(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestStore_WithTxRollsBackOnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	f := newFixture(t, store, "Boston")
	s := f.solicitor(t, "SOL-1")
	p := f.payment(t, f.donation, "1000", crm.DateOf(2025, 3, 1))

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(tx crm.Tx) error {
		if _, err := tx.SetPaymentBonus(ctx, p.ID, crm.PaymentBonus{SolicitorID: &s.ID, BonusAmount: decp("50")}); err != nil {
			return err
		}
		if _, err := tx.InsertCalculation(ctx, crm.BonusCalculation{
			PaymentID: p.ID, SolicitorID: s.ID, PaymentAmount: dec("1000"),
			BonusPercentage: dec("5"), BonusAmount: dec("50"),
		}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	pc, err := store.GetPaymentContext(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, pc.Payment.SolicitorID, "payment update rolled back")

	calc, err := store.GetCalculationForPayment(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, calc, "calculation insert rolled back")
}

func TestStore_ResetEmptiesEveryTable(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	f := newFixture(t, store, "Boston")
	f.payment(t, f.donation, "10", crm.DateOf(2025, 3, 1))

	require.NoError(t, store.Reset(ctx))

	locs, err := store.ListLocations(ctx)
	require.NoError(t, err)
	assert.Empty(t, locs)
	payments, err := store.ListPayments(ctx, crm.Filter{})
	require.NoError(t, err)
	assert.Empty(t, payments)
}

// =============================================================================
// REPORTS
// =============================================================================

func TestStore_DashboardSummaryIsScoped(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	boston := newFixture(t, store, "Boston")
	denver := newFixture(t, store, "Denver")
	s := boston.solicitor(t, "SOL-B")

	p1 := boston.payment(t, boston.donation, "1000", crm.DateOf(2025, 3, 1))
	boston.payment(t, boston.tuition, "200.50", crm.DateOf(2025, 3, 2))
	denver.payment(t, denver.donation, "999", crm.DateOf(2025, 3, 3))

	_, err := store.SetPaymentBonus(ctx, p1.ID, crm.PaymentBonus{SolicitorID: &s.ID, BonusPercentage: decp("5"), BonusAmount: decp("50.00")})
	require.NoError(t, err)
	_, err = store.InsertCalculation(ctx, crm.BonusCalculation{
		PaymentID: p1.ID, SolicitorID: s.ID, PaymentAmount: dec("1000"),
		BonusPercentage: dec("5"), BonusAmount: dec("50.00"),
	})
	require.NoError(t, err)

	sum, err := store.DashboardSummary(ctx, crm.LocationScope(boston.location.ID))
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Contacts)
	assert.Equal(t, 2, sum.Pledges)
	assert.Equal(t, "1200.5", sum.PledgedTotal.String())
	assert.Equal(t, 2, sum.Payments)
	assert.Equal(t, "1200.5", sum.PaidTotal.String())
	assert.Equal(t, 1, sum.AssignedPayments)
	assert.Equal(t, "50", sum.BonusTotal.String())
	assert.Equal(t, "50", sum.UnpaidBonusTotal.String())

	all, err := store.DashboardSummary(ctx, crm.Unrestricted)
	require.NoError(t, err)
	assert.Equal(t, 2, all.Contacts)
	assert.Equal(t, 3, all.Payments)
	assert.Equal(t, "2199.5", all.PaidTotal.String())

	empty, err := store.DashboardSummary(ctx, crm.LocationScope(9999))
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Payments)
	assert.True(t, empty.PaidTotal.IsZero())
}

func TestStore_PaymentTrendGroupsByMonth(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	f := newFixture(t, store, "Boston")
	f.payment(t, f.donation, "100", crm.DateOf(2025, 1, 10))
	f.payment(t, f.donation, "50", crm.DateOf(2025, 1, 20))
	f.payment(t, f.donation, "25", crm.DateOf(2025, 2, 5))
	f.payment(t, f.donation, "999", crm.DateOf(2024, 12, 31))

	points, err := store.PaymentTrend(ctx, crm.Unrestricted, crm.DateOf(2025, 1, 1), crm.DateOf(2025, 12, 31))
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, "2025-01", points[0].Month)
	assert.Equal(t, 2, points[0].Count)
	assert.Equal(t, "150", points[0].Total.String())
	assert.Equal(t, "2025-02", points[1].Month)
}

func TestStore_SolicitorPerformance(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	boston := newFixture(t, store, "Boston")
	denver := newFixture(t, store, "Denver")
	busy := boston.solicitor(t, "A-BUSY")
	boston.solicitor(t, "B-IDLE")
	denver.solicitor(t, "C-AWAY")

	p := boston.payment(t, boston.donation, "1000", crm.DateOf(2025, 3, 1))
	_, err := store.SetPaymentBonus(ctx, p.ID, crm.PaymentBonus{SolicitorID: &busy.ID})
	require.NoError(t, err)
	calc, err := store.InsertCalculation(ctx, crm.BonusCalculation{
		PaymentID: p.ID, SolicitorID: busy.ID, PaymentAmount: dec("1000"),
		BonusPercentage: dec("5"), BonusAmount: dec("50"),
	})
	require.NoError(t, err)
	_, err = store.MarkCalculationPaid(ctx, calc.ID, time.Now())
	require.NoError(t, err)

	perf, err := store.SolicitorPerformance(ctx, crm.LocationScope(boston.location.ID))
	require.NoError(t, err)
	require.Len(t, perf, 2)
	assert.Equal(t, "A-BUSY", perf[0].Code)
	assert.Equal(t, 1, perf[0].Payments)
	assert.Equal(t, "1000", perf[0].Raised.String())
	assert.Equal(t, "50", perf[0].BonusTotal.String())
	assert.True(t, perf[0].UnpaidBonusTotal.IsZero())
	assert.Equal(t, "B-IDLE", perf[1].Code)
	assert.Equal(t, 0, perf[1].Payments)
}
