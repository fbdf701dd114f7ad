package sqlstore

import (
	"context"
	"database/sql"

	"github.com/warp/donor-crm/crm"
)

const ruleColumns = `id, solicitor_id, rule_name, bonus_percentage, payment_type, min_amount, max_amount,
	effective_from, effective_to, is_active, priority, notes, created_at, updated_at`

// CreateRule inserts a bonus rule.
func (qs queries) CreateRule(ctx context.Context, r crm.BonusRule) (*crm.BonusRule, error) {
	created := formatTime(r.CreatedAt)
	id, err := qs.insert(ctx, `
		INSERT INTO bonus_rules (solicitor_id, rule_name, bonus_percentage, payment_type, min_amount, max_amount,
			effective_from, effective_to, is_active, priority, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.SolicitorID, r.Name, r.BonusPercentage.String(), string(r.PaymentType),
		nullDecimal(r.MinAmount), nullDecimal(r.MaxAmount),
		r.EffectiveFrom.String(), nullDate(r.EffectiveTo), r.IsActive, r.Priority,
		nullString(r.Notes), created, created,
	)
	if err != nil {
		return nil, err
	}
	r.ID = id
	r.CreatedAt = parseTime(created)
	r.UpdatedAt = r.CreatedAt
	return &r, nil
}

// GetRule retrieves a rule by ID.
func (qs queries) GetRule(ctx context.Context, id int64) (*crm.BonusRule, error) {
	rules, err := qs.queryRules(ctx, "SELECT "+ruleColumns+" FROM bonus_rules WHERE id = ?", id)
	if err != nil || len(rules) == 0 {
		return nil, err
	}
	return &rules[0], nil
}

// UpdateRule overwrites a rule. solicitor_id never moves.
func (qs queries) UpdateRule(ctx context.Context, r crm.BonusRule) (*crm.BonusRule, error) {
	res, err := qs.exec(ctx, `
		UPDATE bonus_rules
		SET rule_name = ?, bonus_percentage = ?, payment_type = ?, min_amount = ?, max_amount = ?,
			effective_from = ?, effective_to = ?, is_active = ?, priority = ?, notes = ?, updated_at = ?
		WHERE id = ?`,
		r.Name, r.BonusPercentage.String(), string(r.PaymentType),
		nullDecimal(r.MinAmount), nullDecimal(r.MaxAmount),
		r.EffectiveFrom.String(), nullDate(r.EffectiveTo), r.IsActive, r.Priority,
		nullString(r.Notes), formatTime(r.UpdatedAt), r.ID,
	)
	if err != nil {
		return nil, translate(err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return nil, err
	}
	return qs.GetRule(ctx, r.ID)
}

// DeleteRule removes a rule. Existing calculations keep their rule id.
func (qs queries) DeleteRule(ctx context.Context, id int64) error {
	res, err := qs.exec(ctx, "DELETE FROM bonus_rules WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return crm.NotFound("bonus rule", id)
	}
	return nil
}

// RulesForSolicitor returns every rule of a solicitor.
func (qs queries) RulesForSolicitor(ctx context.Context, solicitorID int64) ([]crm.BonusRule, error) {
	return qs.queryRules(ctx,
		"SELECT "+ruleColumns+" FROM bonus_rules WHERE solicitor_id = ? ORDER BY priority DESC, id ASC",
		solicitorID)
}

// CandidateRules narrows by solicitor, activity and window in SQL; amount
// band and payment type are left to the matcher.
func (qs queries) CandidateRules(ctx context.Context, solicitorID int64, day crm.Date) ([]crm.BonusRule, error) {
	d := day.String()
	return qs.queryRules(ctx, `
		SELECT `+ruleColumns+` FROM bonus_rules
		WHERE solicitor_id = ? AND is_active = ?
		  AND effective_from <= ?
		  AND (effective_to IS NULL OR effective_to >= ?)
		ORDER BY priority DESC, id ASC`,
		solicitorID, true, d, d)
}

func (qs queries) queryRules(ctx context.Context, query string, args ...any) ([]crm.BonusRule, error) {
	rows, err := qs.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []crm.BonusRule
	for rows.Next() {
		var r crm.BonusRule
		var pct, paymentType, from, created, updated string
		var minAmt, maxAmt, to, notes sql.NullString
		if err := rows.Scan(&r.ID, &r.SolicitorID, &r.Name, &pct, &paymentType, &minAmt, &maxAmt,
			&from, &to, &r.IsActive, &r.Priority, &notes, &created, &updated); err != nil {
			return nil, err
		}
		r.BonusPercentage = parseDecimal(pct)
		r.PaymentType = crm.PaymentType(paymentType)
		r.MinAmount = decimalPtr(minAmt)
		r.MaxAmount = decimalPtr(maxAmt)
		r.EffectiveFrom = parseDate(from)
		r.EffectiveTo = datePtr(to)
		r.Notes = notes.String
		r.CreatedAt = parseTime(created)
		r.UpdatedAt = parseTime(updated)
		out = append(out, r)
	}
	return out, rows.Err()
}
