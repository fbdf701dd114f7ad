package sqlstore

import (
	"context"
	"database/sql"

	"github.com/warp/donor-crm/crm"
)

const solicitorColumns = `s.id, s.contact_id, s.solicitor_code, s.status, s.commission_rate,
	s.hire_date, s.notes, s.location_id, s.created_at, s.updated_at`

// CreateSolicitor inserts a solicitor.
func (qs queries) CreateSolicitor(ctx context.Context, s crm.Solicitor) (*crm.Solicitor, error) {
	if s.Status == "" {
		s.Status = crm.SolicitorActive
	}
	created := formatTime(s.CreatedAt)
	id, err := qs.insert(ctx, `
		INSERT INTO solicitors (contact_id, solicitor_code, status, commission_rate, hire_date, notes,
			location_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullInt(s.ContactID), s.Code, string(s.Status), nullDecimal(s.CommissionRate), nullDate(s.HireDate),
		nullString(s.Notes), s.LocationID, created, created,
	)
	if err != nil {
		return nil, err
	}
	s.ID = id
	s.CreatedAt = parseTime(created)
	s.UpdatedAt = s.CreatedAt
	return &s, nil
}

// GetSolicitor retrieves a solicitor by ID.
func (qs queries) GetSolicitor(ctx context.Context, id int64) (*crm.Solicitor, error) {
	list, err := qs.ListSolicitors(ctx, crm.Filter{}.Where(crm.Eq("s.id", id)))
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

// ListSolicitors filters on s.* columns.
func (qs queries) ListSolicitors(ctx context.Context, f crm.Filter) ([]crm.Solicitor, error) {
	where, args, err := whereClause(f)
	if err != nil {
		return nil, err
	}
	page, pageArgs := pageClause(f)

	rows, err := qs.query(ctx, "SELECT "+solicitorColumns+" FROM solicitors s"+where+" ORDER BY s.solicitor_code, s.id"+page, append(args, pageArgs...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []crm.Solicitor
	for rows.Next() {
		var s crm.Solicitor
		var contact sql.NullInt64
		var status, created, updated string
		var rate, hire, notes sql.NullString
		if err := rows.Scan(&s.ID, &contact, &s.Code, &status, &rate, &hire, &notes, &s.LocationID, &created, &updated); err != nil {
			return nil, err
		}
		s.ContactID = intPtr(contact)
		s.Status = crm.SolicitorStatus(status)
		s.CommissionRate = decimalPtr(rate)
		s.HireDate = datePtr(hire)
		s.Notes = notes.String
		s.CreatedAt = parseTime(created)
		s.UpdatedAt = parseTime(updated)
		out = append(out, s)
	}
	return out, rows.Err()
}

// UpdateSolicitor overwrites the mutable fields. location_id never moves.
func (qs queries) UpdateSolicitor(ctx context.Context, s crm.Solicitor) (*crm.Solicitor, error) {
	res, err := qs.exec(ctx, `
		UPDATE solicitors
		SET contact_id = ?, solicitor_code = ?, status = ?, commission_rate = ?, hire_date = ?, notes = ?, updated_at = ?
		WHERE id = ?`,
		nullInt(s.ContactID), s.Code, string(s.Status), nullDecimal(s.CommissionRate), nullDate(s.HireDate),
		nullString(s.Notes), formatTime(s.UpdatedAt), s.ID,
	)
	if err != nil {
		return nil, translate(err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return nil, err
	}
	return qs.GetSolicitor(ctx, s.ID)
}

// DeleteSolicitor removes a solicitor and its rules.
func (qs queries) DeleteSolicitor(ctx context.Context, id int64) error {
	if _, err := qs.exec(ctx, "DELETE FROM bonus_rules WHERE solicitor_id = ?", id); err != nil {
		return err
	}
	res, err := qs.exec(ctx, "DELETE FROM solicitors WHERE id = ?", id)
	if err != nil {
		return translate(err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return crm.NotFound("solicitor", id)
	}
	return nil
}
