package sqlstore

import (
	"context"
	"database/sql"

	"github.com/warp/donor-crm/crm"
)

const paymentColumns = `p.id, p.pledge_id, p.payer_contact_id, p.amount, p.currency, p.amount_usd,
	p.payment_date, p.status, p.payment_method, p.reference_number,
	p.solicitor_id, p.bonus_percentage, p.bonus_amount, p.bonus_rule_id,
	p.created_at, p.updated_at`

// paymentJoin reaches the owning contact (location) and category.
const paymentJoin = ` FROM payments p
	JOIN pledges pl ON pl.id = p.pledge_id
	JOIN contacts c ON c.id = pl.contact_id
	LEFT JOIN categories cat ON cat.id = pl.category_id`

// CreatePayment inserts a payment. Bonus fields are never written here.
func (qs queries) CreatePayment(ctx context.Context, p crm.Payment) (*crm.Payment, error) {
	if p.Currency == "" {
		p.Currency = "USD"
	}
	if p.Status == "" {
		p.Status = crm.PaymentCompleted
	}
	created := formatTime(p.CreatedAt)
	id, err := qs.insert(ctx, `
		INSERT INTO payments (pledge_id, payer_contact_id, amount, currency, amount_usd, payment_date,
			status, payment_method, reference_number, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.PledgeID, nullInt(p.PayerContactID), p.Amount.String(), p.Currency, nullDecimal(p.AmountUSD),
		p.Date.String(), string(p.Status), nullString(p.Method), nullString(p.Reference), created, created,
	)
	if err != nil {
		return nil, err
	}
	p.ID = id
	p.CreatedAt = parseTime(created)
	p.UpdatedAt = p.CreatedAt
	p.SolicitorID, p.BonusPercentage, p.BonusAmount, p.BonusRuleID = nil, nil, nil, nil
	return &p, nil
}

// GetPaymentContext loads a payment with its location and category name.
func (qs queries) GetPaymentContext(ctx context.Context, id int64) (*crm.PaymentContext, error) {
	rows, err := qs.query(ctx, "SELECT "+paymentColumns+", c.id, c.location_id, COALESCE(cat.name, '')"+paymentJoin+" WHERE p.id = ?", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	var pc crm.PaymentContext
	if err := scanPayment(rows, &pc.Payment, &pc.ContactID, &pc.LocationID, &pc.CategoryName); err != nil {
		return nil, err
	}
	return &pc, rows.Err()
}

// ListPayments filters on p.*, pl.*, c.* and cat.* columns.
func (qs queries) ListPayments(ctx context.Context, f crm.Filter) ([]crm.Payment, error) {
	where, args, err := whereClause(f)
	if err != nil {
		return nil, err
	}
	page, pageArgs := pageClause(f)

	rows, err := qs.query(ctx, "SELECT "+paymentColumns+paymentJoin+where+" ORDER BY p.payment_date DESC, p.id DESC"+page, append(args, pageArgs...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []crm.Payment
	for rows.Next() {
		var p crm.Payment
		if err := scanPayment(rows, &p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SetPaymentBonus overwrites solicitor_id and the bonus columns.
func (qs queries) SetPaymentBonus(ctx context.Context, paymentID int64, b crm.PaymentBonus) (*crm.Payment, error) {
	res, err := qs.exec(ctx, `
		UPDATE payments
		SET solicitor_id = ?, bonus_percentage = ?, bonus_amount = ?, bonus_rule_id = ?, updated_at = ?
		WHERE id = ?`,
		nullInt(b.SolicitorID), nullDecimal(b.BonusPercentage), nullDecimal(b.BonusAmount),
		nullInt(b.BonusRuleID), formatTime(b.UpdatedAt), paymentID,
	)
	if err != nil {
		return nil, translate(err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, nil
	}

	pc, err := qs.GetPaymentContext(ctx, paymentID)
	if err != nil || pc == nil {
		return nil, err
	}
	return &pc.Payment, nil
}

// CountPaymentsBySolicitor counts payments referencing a solicitor.
func (qs queries) CountPaymentsBySolicitor(ctx context.Context, solicitorID int64) (int, error) {
	var n int
	err := qs.queryRow(ctx, "SELECT COUNT(*) FROM payments WHERE solicitor_id = ?", solicitorID).Scan(&n)
	return n, err
}

func scanPayment(rows *sql.Rows, p *crm.Payment, extra ...any) error {
	var payer, solicitor, ruleID sql.NullInt64
	var amount, paymentDate, status, createdAt, updatedAt string
	var amountUSD, method, reference, pct, bonus sql.NullString

	dest := []any{
		&p.ID, &p.PledgeID, &payer, &amount, &p.Currency, &amountUSD,
		&paymentDate, &status, &method, &reference,
		&solicitor, &pct, &bonus, &ruleID,
		&createdAt, &updatedAt,
	}
	if err := rows.Scan(append(dest, extra...)...); err != nil {
		return err
	}

	p.PayerContactID = intPtr(payer)
	p.Amount = parseDecimal(amount)
	p.AmountUSD = decimalPtr(amountUSD)
	p.Date = parseDate(paymentDate)
	p.Status = crm.PaymentStatus(status)
	p.Method = method.String
	p.Reference = reference.String
	p.SolicitorID = intPtr(solicitor)
	p.BonusPercentage = decimalPtr(pct)
	p.BonusAmount = decimalPtr(bonus)
	p.BonusRuleID = intPtr(ruleID)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return nil
}
