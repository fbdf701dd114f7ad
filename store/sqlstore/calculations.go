package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/warp/donor-crm/crm"
)

const calculationColumns = `bc.id, bc.payment_id, bc.solicitor_id, bc.bonus_rule_id, bc.payment_amount,
	bc.bonus_percentage, bc.bonus_amount, bc.is_paid, bc.paid_at, bc.calculated_at, bc.notes`

// InsertCalculation inserts a calculation. payment_id is unique.
func (qs queries) InsertCalculation(ctx context.Context, c crm.BonusCalculation) (*crm.BonusCalculation, error) {
	calculated := formatTime(c.CalculatedAt)
	var paidAt sql.NullString
	if c.PaidAt != nil {
		paidAt = nullString(formatTime(*c.PaidAt))
	}
	id, err := qs.insert(ctx, `
		INSERT INTO bonus_calculations (payment_id, solicitor_id, bonus_rule_id, payment_amount,
			bonus_percentage, bonus_amount, is_paid, paid_at, calculated_at, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.PaymentID, c.SolicitorID, nullInt(c.BonusRuleID), c.PaymentAmount.String(),
		c.BonusPercentage.String(), c.BonusAmount.String(), c.IsPaid, paidAt, calculated, nullString(c.Notes),
	)
	if err != nil {
		return nil, err
	}
	c.ID = id
	c.CalculatedAt = parseTime(calculated)
	return &c, nil
}

// DeleteCalculationsForPayment removes a payment's calculation, if any.
func (qs queries) DeleteCalculationsForPayment(ctx context.Context, paymentID int64) (int64, error) {
	res, err := qs.exec(ctx, "DELETE FROM bonus_calculations WHERE payment_id = ?", paymentID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// GetCalculation retrieves a calculation by ID.
func (qs queries) GetCalculation(ctx context.Context, id int64) (*crm.BonusCalculation, error) {
	return qs.firstCalculation(ctx, crm.Filter{}.Where(crm.Eq("bc.id", id)))
}

// GetCalculationForPayment retrieves the calculation of a payment.
func (qs queries) GetCalculationForPayment(ctx context.Context, paymentID int64) (*crm.BonusCalculation, error) {
	return qs.firstCalculation(ctx, crm.Filter{}.Where(crm.Eq("bc.payment_id", paymentID)))
}

func (qs queries) firstCalculation(ctx context.Context, f crm.Filter) (*crm.BonusCalculation, error) {
	list, err := qs.ListCalculations(ctx, f)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

// ListCalculations filters on bc.* and s.* columns.
func (qs queries) ListCalculations(ctx context.Context, f crm.Filter) ([]crm.BonusCalculation, error) {
	where, args, err := whereClause(f)
	if err != nil {
		return nil, err
	}
	page, pageArgs := pageClause(f)

	rows, err := qs.query(ctx, "SELECT "+calculationColumns+
		" FROM bonus_calculations bc JOIN solicitors s ON s.id = bc.solicitor_id"+where+
		" ORDER BY bc.calculated_at DESC, bc.id DESC"+page, append(args, pageArgs...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []crm.BonusCalculation
	for rows.Next() {
		var c crm.BonusCalculation
		var ruleID sql.NullInt64
		var amount, pct, bonus, calculated string
		var paidAt, notes sql.NullString
		if err := rows.Scan(&c.ID, &c.PaymentID, &c.SolicitorID, &ruleID, &amount, &pct, &bonus,
			&c.IsPaid, &paidAt, &calculated, &notes); err != nil {
			return nil, err
		}
		c.BonusRuleID = intPtr(ruleID)
		c.PaymentAmount = parseDecimal(amount)
		c.BonusPercentage = parseDecimal(pct)
		c.BonusAmount = parseDecimal(bonus)
		if paidAt.Valid {
			t := parseTime(paidAt.String)
			c.PaidAt = &t
		}
		c.CalculatedAt = parseTime(calculated)
		c.Notes = notes.String
		out = append(out, c)
	}
	return out, rows.Err()
}

// MarkCalculationPaid sets is_paid and paid_at.
func (qs queries) MarkCalculationPaid(ctx context.Context, id int64, paidAt time.Time) (*crm.BonusCalculation, error) {
	res, err := qs.exec(ctx, "UPDATE bonus_calculations SET is_paid = ?, paid_at = ? WHERE id = ?", true, formatTime(paidAt), id)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return nil, err
	}
	return qs.GetCalculation(ctx, id)
}
