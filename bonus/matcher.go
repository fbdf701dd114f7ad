/*
Package bonus resolves solicitor bonus rules and assigns solicitors to payments.

PURPOSE:
  When an admin attaches a solicitor to a payment, the solicitor earns a
  percentage of it. Which percentage depends on the solicitor's bonus
  rules. This package picks the rule, computes the bonus, and persists
  both the payment's bonus fields and the calculation row atomically.

PIPELINE:
  Assigner.Assign
    -> scope check (crm.Identity.Scope)
    -> Match (this file)        pick the winning rule
    -> Calculate (calculator.go) amount = round(amount * pct / 100, 2)
    -> Store.WithTx             update payment + insert calculation

MATCH PREDICATE:
  A rule matches a payment iff ALL hold:
    - same solicitor, IsActive
    - EffectiveFrom <= date <= EffectiveTo (nil EffectiveTo = open)
    - PaymentType is both, or donation for donations, or tuition otherwise
    - MinAmount <= amount <= MaxAmount (nil bound = unbounded)

SELECTION:
  Highest Priority wins. Equal priorities fall back to the lowest rule ID,
  which keeps the outcome stable across databases and insertion orders.

SEE ALSO:
  - calculator.go: Bonus arithmetic
  - service.go: Assign / Unassign
*/
package bonus

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/donor-crm/crm"
)

// PaymentFacts is what the matcher needs to know about a payment.
type PaymentFacts struct {
	SolicitorID int64
	Amount      decimal.Decimal
	Date        crm.Date
	IsDonation  bool
}

// FactsFor extracts matcher input from a loaded payment.
func FactsFor(pc crm.PaymentContext, solicitorID int64) PaymentFacts {
	return PaymentFacts{
		SolicitorID: solicitorID,
		Amount:      pc.Payment.Amount,
		Date:        pc.Payment.Date,
		IsDonation:  pc.IsDonation(),
	}
}

// Matches reports whether rule applies to the payment.
func Matches(rule crm.BonusRule, p PaymentFacts) bool {
	if rule.SolicitorID != p.SolicitorID || !rule.IsActive {
		return false
	}
	if !rule.InEffect(p.Date) {
		return false
	}
	if !rule.PaymentType.Covers(p.IsDonation) {
		return false
	}
	return rule.InBand(p.Amount)
}

// Match returns the winning rule among candidates, or nil when none match.
// candidates is not modified.
func Match(candidates []crm.BonusRule, p PaymentFacts) *crm.BonusRule {
	var matched []crm.BonusRule
	for _, r := range candidates {
		if Matches(r, p) {
			matched = append(matched, r)
		}
	}
	if len(matched) == 0 {
		return nil
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Priority != matched[j].Priority {
			return matched[i].Priority > matched[j].Priority
		}
		return matched[i].ID < matched[j].ID
	})

	winner := matched[0]
	return &winner
}
