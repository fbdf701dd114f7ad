package bonus

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/donor-crm/crm"
)

var hundred = decimal.NewFromInt(100)

// Result is the outcome of running a payment through the calculator.
type Result struct {
	Rule       *crm.BonusRule // nil when nothing matched
	Percentage decimal.Decimal
	Amount     decimal.Decimal
}

// Calculated reports whether a calculation row should exist.
func (r Result) Calculated() bool { return r.Amount.IsPositive() }

// Calculate applies rule to amount. A nil rule yields a zero result.
func Calculate(rule *crm.BonusRule, amount decimal.Decimal) Result {
	if rule == nil {
		return Result{Percentage: decimal.Zero, Amount: decimal.Zero}
	}
	return Result{
		Rule:       rule,
		Percentage: rule.BonusPercentage,
		Amount:     Amount(amount, rule.BonusPercentage),
	}
}

// Amount is amount * pct / 100 rounded half-up to cents.
func Amount(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct).Div(hundred).Round(2)
}

// PaymentBonus turns a result into the payment's derived fields.
func (r Result) PaymentBonus(solicitorID int64, now time.Time) crm.PaymentBonus {
	pct, amt := r.Percentage, r.Amount
	b := crm.PaymentBonus{
		SolicitorID:     &solicitorID,
		BonusPercentage: &pct,
		BonusAmount:     &amt,
		UpdatedAt:       now,
	}
	if r.Rule != nil {
		id := r.Rule.ID
		b.BonusRuleID = &id
	}
	return b
}

// Calculation builds the row to persist. Only meaningful when Calculated().
func (r Result) Calculation(paymentID, solicitorID int64, paymentAmount decimal.Decimal, now time.Time) crm.BonusCalculation {
	c := crm.BonusCalculation{
		PaymentID:       paymentID,
		SolicitorID:     solicitorID,
		PaymentAmount:   paymentAmount,
		BonusPercentage: r.Percentage,
		BonusAmount:     r.Amount,
		IsPaid:          false,
		CalculatedAt:    now,
	}
	if r.Rule != nil {
		id := r.Rule.ID
		c.BonusRuleID = &id
		c.Notes = fmt.Sprintf("Auto-calculated using rule: %s", ruleLabel(*r.Rule))
	}
	return c
}

func ruleLabel(r crm.BonusRule) string {
	if r.Name != "" {
		return r.Name
	}
	return fmt.Sprintf("#%d", r.ID)
}
