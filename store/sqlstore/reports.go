package sqlstore

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/warp/donor-crm/crm"
)

// =============================================================================
// REPORTS - Location-scoped aggregations
// =============================================================================
//
// Contact-owned rows are scoped through c.location_id, solicitor rows through
// s.location_id. Sums are taken over CAST(... AS NUMERIC) and rounded to
// cents after scanning.

// DashboardSummary computes headline totals for the scope.
func (qs queries) DashboardSummary(ctx context.Context, scope crm.Scope) (*crm.DashboardSummary, error) {
	var out crm.DashboardSummary

	where, args, err := whereClause(scope.Apply(crm.Filter{}, "c.location_id"))
	if err != nil {
		return nil, err
	}
	if err := qs.queryRow(ctx, "SELECT COUNT(*) FROM contacts c"+where, args...).Scan(&out.Contacts); err != nil {
		return nil, err
	}

	var pledged decimal.NullDecimal
	if err := qs.queryRow(ctx, `
		SELECT COUNT(*), SUM(CAST(pl.original_amount AS NUMERIC))
		FROM pledges pl JOIN contacts c ON c.id = pl.contact_id`+where, args...).Scan(&out.Pledges, &pledged); err != nil {
		return nil, err
	}
	out.PledgedTotal = sumDecimal(pledged)

	completed, cargs, err := whereClause(scope.Apply(crm.Filter{}, "c.location_id").Where(crm.Eq("p.status", string(crm.PaymentCompleted))))
	if err != nil {
		return nil, err
	}
	var paid decimal.NullDecimal
	if err := qs.queryRow(ctx, "SELECT COUNT(*), SUM(CAST(p.amount AS NUMERIC))"+paymentJoin+completed, cargs...).Scan(&out.Payments, &paid); err != nil {
		return nil, err
	}
	out.PaidTotal = sumDecimal(paid)

	assigned, aargs, err := whereClause(scope.Apply(crm.Filter{}, "c.location_id").Where(crm.NotNull("p.solicitor_id")))
	if err != nil {
		return nil, err
	}
	if err := qs.queryRow(ctx, "SELECT COUNT(*)"+paymentJoin+assigned, aargs...).Scan(&out.AssignedPayments); err != nil {
		return nil, err
	}

	var bonus, unpaid decimal.NullDecimal
	if err := qs.queryRow(ctx, `
		SELECT SUM(CAST(bc.bonus_amount AS NUMERIC)),
		       SUM(CASE WHEN bc.is_paid THEN 0 ELSE CAST(bc.bonus_amount AS NUMERIC) END)
		FROM bonus_calculations bc
		JOIN payments p ON p.id = bc.payment_id
		JOIN pledges pl ON pl.id = p.pledge_id
		JOIN contacts c ON c.id = pl.contact_id`+where, args...).Scan(&bonus, &unpaid); err != nil {
		return nil, err
	}
	out.BonusTotal = sumDecimal(bonus)
	out.UnpaidBonusTotal = sumDecimal(unpaid)

	return &out, nil
}

// PaymentTrend groups completed payments by month. Zero dates leave that
// end of the range open.
func (qs queries) PaymentTrend(ctx context.Context, scope crm.Scope, from, to crm.Date) ([]crm.TrendPoint, error) {
	f := scope.Apply(crm.Filter{}, "c.location_id").Where(crm.Eq("p.status", string(crm.PaymentCompleted)))
	if !from.IsZero() {
		f = f.Where(crm.Gte("p.payment_date", from.String()))
	}
	if !to.IsZero() {
		f = f.Where(crm.Lte("p.payment_date", to.String()))
	}
	where, args, err := whereClause(f)
	if err != nil {
		return nil, err
	}

	rows, err := qs.query(ctx, `
		SELECT substr(p.payment_date, 1, 7) AS month, COUNT(*), SUM(CAST(p.amount AS NUMERIC))`+
		paymentJoin+where+` GROUP BY substr(p.payment_date, 1, 7) ORDER BY month`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []crm.TrendPoint
	for rows.Next() {
		var tp crm.TrendPoint
		var total decimal.NullDecimal
		if err := rows.Scan(&tp.Month, &tp.Count, &total); err != nil {
			return nil, err
		}
		tp.Total = sumDecimal(total)
		out = append(out, tp)
	}
	return out, rows.Err()
}

// SolicitorPerformance aggregates assigned payments and bonuses per
// solicitor in scope, including solicitors with nothing assigned.
func (qs queries) SolicitorPerformance(ctx context.Context, scope crm.Scope) ([]crm.SolicitorPerformance, error) {
	where, args, err := whereClause(scope.Apply(crm.Filter{}, "s.location_id"))
	if err != nil {
		return nil, err
	}

	rows, err := qs.query(ctx, `
		SELECT s.id, s.solicitor_code, COUNT(p.id), SUM(CAST(p.amount AS NUMERIC))
		FROM solicitors s
		LEFT JOIN payments p ON p.solicitor_id = s.id`+where+`
		GROUP BY s.id, s.solicitor_code
		ORDER BY s.solicitor_code`, args...)
	if err != nil {
		return nil, err
	}
	var out []crm.SolicitorPerformance
	index := make(map[int64]int)
	for rows.Next() {
		var sp crm.SolicitorPerformance
		var raised decimal.NullDecimal
		if err := rows.Scan(&sp.SolicitorID, &sp.Code, &sp.Payments, &raised); err != nil {
			rows.Close()
			return nil, err
		}
		sp.Raised = sumDecimal(raised)
		index[sp.SolicitorID] = len(out)
		out = append(out, sp)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	bonusRows, err := qs.query(ctx, `
		SELECT bc.solicitor_id,
		       SUM(CAST(bc.bonus_amount AS NUMERIC)),
		       SUM(CASE WHEN bc.is_paid THEN 0 ELSE CAST(bc.bonus_amount AS NUMERIC) END)
		FROM bonus_calculations bc
		JOIN solicitors s ON s.id = bc.solicitor_id`+where+`
		GROUP BY bc.solicitor_id`, args...)
	if err != nil {
		return nil, err
	}
	defer bonusRows.Close()

	for bonusRows.Next() {
		var id int64
		var bonus, unpaid decimal.NullDecimal
		if err := bonusRows.Scan(&id, &bonus, &unpaid); err != nil {
			return nil, err
		}
		if i, ok := index[id]; ok {
			out[i].BonusTotal = sumDecimal(bonus)
			out[i].UnpaidBonusTotal = sumDecimal(unpaid)
		}
	}
	return out, bonusRows.Err()
}
