package crm_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/donor-crm/crm"
)

func TestParseDate(t *testing.T) {
	d, err := crm.ParseDate("2025-03-15")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-15", d.String())

	d, err = crm.ParseDate("2025-03-15T23:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-15", d.String(), "timestamps truncate to the day")

	_, err = crm.ParseDate("15/03/2025")
	assert.Error(t, err)
}

func TestNewDate_TruncatesToUTCDay(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	d := crm.NewDate(time.Date(2025, 3, 15, 22, 0, 0, 0, est))
	assert.Equal(t, "2025-03-16", d.String())
}

func TestIsDonationCategory(t *testing.T) {
	assert.True(t, crm.IsDonationCategory("Donation"))
	assert.True(t, crm.IsDonationCategory("General donations"))
	assert.False(t, crm.IsDonationCategory("Tuition"))
	assert.False(t, crm.IsDonationCategory(""))
}

func TestPaymentType_Covers(t *testing.T) {
	assert.True(t, crm.PaymentTypeBoth.Covers(true))
	assert.True(t, crm.PaymentTypeBoth.Covers(false))
	assert.True(t, crm.PaymentTypeDonation.Covers(true))
	assert.False(t, crm.PaymentTypeDonation.Covers(false))
	assert.True(t, crm.PaymentTypeTuition.Covers(false))
	assert.False(t, crm.PaymentTypeTuition.Covers(true))
	assert.False(t, crm.PaymentType("pledge").Valid())
}

func TestBonusRule_InEffectInclusive(t *testing.T) {
	to := crm.DateOf(2025, 3, 31)
	r := crm.BonusRule{EffectiveFrom: crm.DateOf(2025, 3, 1), EffectiveTo: &to}

	assert.False(t, r.InEffect(crm.DateOf(2025, 2, 28)))
	assert.True(t, r.InEffect(crm.DateOf(2025, 3, 1)))
	assert.True(t, r.InEffect(crm.DateOf(2025, 3, 31)))
	assert.False(t, r.InEffect(crm.DateOf(2025, 4, 1)))

	r.EffectiveTo = nil
	assert.True(t, r.InEffect(crm.DateOf(2030, 1, 1)))
}

func TestBonusRule_InBandInclusive(t *testing.T) {
	lo, hi := decimal.NewFromInt(100), decimal.NewFromInt(500)
	r := crm.BonusRule{MinAmount: &lo, MaxAmount: &hi}

	assert.False(t, r.InBand(decimal.RequireFromString("99.99")))
	assert.True(t, r.InBand(lo))
	assert.True(t, r.InBand(hi))
	assert.False(t, r.InBand(decimal.RequireFromString("500.01")))

	assert.True(t, crm.BonusRule{}.InBand(decimal.NewFromInt(1_000_000)))
}

func TestFilter_WhereCopies(t *testing.T) {
	base := crm.Filter{}.Page(10, 20)
	a := base.Where(crm.Eq("p.id", 1))
	b := base.Where(crm.Like("c.first_name", "ad"))

	assert.Len(t, a.Predicates, 1)
	assert.Len(t, b.Predicates, 1)
	assert.Equal(t, crm.OpLike, b.Predicates[0].Op)
	assert.Equal(t, 10, a.Limit)
	assert.Equal(t, 20, b.Offset)
	assert.True(t, a.Has("p.id"))
	assert.False(t, b.Has("p.id"))
}
