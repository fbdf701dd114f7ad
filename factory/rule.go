/*
Package factory provides JSON/YAML to Go bonus rule conversion.

PURPOSE:
  Converts bonus rule definitions into validated crm.BonusRule values. The
  same definition shape is used by the HTTP API (JSON bodies) and by seed
  scenario files (YAML), so a rule can be authored once and loaded either
  way.

SCHEMA:
  {
    "ruleName": "Major gifts",
    "bonusPercentage": "5.00",
    "paymentType": "donation",       // donation | tuition | both (default)
    "minAmount": "1000",              // optional, omitted = unbounded
    "maxAmount": null,                // optional
    "effectiveFrom": "2025-01-01",    // default: today
    "effectiveTo": null,              // optional, omitted = open-ended
    "isActive": true,                 // default true
    "priority": 10,                   // default 0, higher wins
    "notes": "..."
  }

  Amounts may be JSON numbers or numeric strings.

VALIDATION:
  - 0 <= bonusPercentage <= 100
  - minAmount, maxAmount >= 0 and minAmount <= maxAmount
  - effectiveFrom <= effectiveTo
  - paymentType in {donation, tuition, both}

USAGE:
  f := factory.NewRuleFactory()
  rule, err := f.ParseRule(jsonString)
  rule.SolicitorID = 42

SEE ALSO:
  - crm/types.go: BonusRule
  - api/scenarios.go: YAML seeds
*/
package factory

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/donor-crm/crm"
)

// =============================================================================
// SCHEMA TYPES
// =============================================================================

// RuleJSON is the wire representation of a bonus rule.
type RuleJSON struct {
	Name            string       `json:"ruleName" yaml:"ruleName"`
	BonusPercentage json.Number  `json:"bonusPercentage" yaml:"bonusPercentage"`
	PaymentType     string       `json:"paymentType,omitempty" yaml:"paymentType,omitempty"`
	MinAmount       *json.Number `json:"minAmount,omitempty" yaml:"minAmount,omitempty"`
	MaxAmount       *json.Number `json:"maxAmount,omitempty" yaml:"maxAmount,omitempty"`
	EffectiveFrom   string       `json:"effectiveFrom,omitempty" yaml:"effectiveFrom,omitempty"`
	EffectiveTo     *string      `json:"effectiveTo,omitempty" yaml:"effectiveTo,omitempty"`
	IsActive        *bool        `json:"isActive,omitempty" yaml:"isActive,omitempty"`
	Priority        int          `json:"priority" yaml:"priority"`
	Notes           string       `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// =============================================================================
// RULE FACTORY
// =============================================================================

// RuleFactory converts rule definitions to crm.BonusRule.
type RuleFactory struct {
	today func() crm.Date
}

// NewRuleFactory creates a new rule factory.
func NewRuleFactory() *RuleFactory {
	return &RuleFactory{today: crm.Today}
}

// ParseRule parses a JSON document into a BonusRule.
func (f *RuleFactory) ParseRule(jsonStr string) (*crm.BonusRule, error) {
	var rj RuleJSON
	if err := json.Unmarshal([]byte(jsonStr), &rj); err != nil {
		return nil, crm.Invalid("body", "malformed rule JSON: %v", err)
	}
	return f.FromJSON(rj)
}

// FromJSON validates rj and converts it. SolicitorID is left for the caller.
func (f *RuleFactory) FromJSON(rj RuleJSON) (*crm.BonusRule, error) {
	rule := &crm.BonusRule{
		Name:     strings.TrimSpace(rj.Name),
		Priority: rj.Priority,
		Notes:    rj.Notes,
		IsActive: true,
	}
	if rj.IsActive != nil {
		rule.IsActive = *rj.IsActive
	}

	pct, err := parseAmount("bonusPercentage", string(rj.BonusPercentage))
	if err != nil {
		return nil, err
	}
	if pct.GreaterThan(decimal.NewFromInt(100)) {
		return nil, crm.Invalid("bonusPercentage", "must be between 0 and 100")
	}
	rule.BonusPercentage = pct

	rule.PaymentType = crm.PaymentTypeBoth
	if rj.PaymentType != "" {
		rule.PaymentType = crm.PaymentType(strings.ToLower(rj.PaymentType))
		if !rule.PaymentType.Valid() {
			return nil, crm.Invalid("paymentType", "must be donation, tuition or both")
		}
	}

	if rj.MinAmount != nil {
		v, err := parseAmount("minAmount", string(*rj.MinAmount))
		if err != nil {
			return nil, err
		}
		rule.MinAmount = &v
	}
	if rj.MaxAmount != nil {
		v, err := parseAmount("maxAmount", string(*rj.MaxAmount))
		if err != nil {
			return nil, err
		}
		rule.MaxAmount = &v
	}
	if rule.MinAmount != nil && rule.MaxAmount != nil && rule.MinAmount.GreaterThan(*rule.MaxAmount) {
		return nil, crm.Invalid("maxAmount", "must not be below minAmount")
	}

	rule.EffectiveFrom = f.today()
	if rj.EffectiveFrom != "" {
		d, err := crm.ParseDate(rj.EffectiveFrom)
		if err != nil {
			return nil, crm.Invalid("effectiveFrom", "use YYYY-MM-DD")
		}
		rule.EffectiveFrom = d
	}
	if rj.EffectiveTo != nil && *rj.EffectiveTo != "" {
		d, err := crm.ParseDate(*rj.EffectiveTo)
		if err != nil {
			return nil, crm.Invalid("effectiveTo", "use YYYY-MM-DD")
		}
		if d.Before(rule.EffectiveFrom) {
			return nil, crm.Invalid("effectiveTo", "must not be before effectiveFrom")
		}
		rule.EffectiveTo = &d
	}

	return rule, nil
}

// ToJSON converts a BonusRule back to its wire form.
func (f *RuleFactory) ToJSON(rule crm.BonusRule) RuleJSON {
	active := rule.IsActive
	rj := RuleJSON{
		Name:            rule.Name,
		BonusPercentage: json.Number(rule.BonusPercentage.StringFixed(2)),
		PaymentType:     string(rule.PaymentType),
		EffectiveFrom:   rule.EffectiveFrom.String(),
		IsActive:        &active,
		Priority:        rule.Priority,
		Notes:           rule.Notes,
	}
	if rule.MinAmount != nil {
		n := json.Number(rule.MinAmount.StringFixed(2))
		rj.MinAmount = &n
	}
	if rule.MaxAmount != nil {
		n := json.Number(rule.MaxAmount.StringFixed(2))
		rj.MaxAmount = &n
	}
	if rule.EffectiveTo != nil {
		s := rule.EffectiveTo.String()
		rj.EffectiveTo = &s
	}
	return rj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseAmount(field, s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, crm.Invalid(field, "is required")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, crm.Invalid(field, "must be a number")
	}
	if d.IsNegative() {
		return decimal.Zero, crm.Invalid(field, "must not be negative")
	}
	return d, nil
}
