package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/warp/donor-crm/crm"
)

// =============================================================================
// LOCATIONS
// =============================================================================

// CreateLocation inserts a location.
func (qs queries) CreateLocation(ctx context.Context, l crm.Location) (*crm.Location, error) {
	createdAt := formatTime(l.CreatedAt)
	id, err := qs.insert(ctx, "INSERT INTO locations (name, created_at) VALUES (?, ?)", l.Name, createdAt)
	if err != nil {
		return nil, err
	}
	l.ID = id
	l.CreatedAt = parseTime(createdAt)
	return &l, nil
}

// ListLocations returns all locations by name.
func (qs queries) ListLocations(ctx context.Context) ([]crm.Location, error) {
	rows, err := qs.query(ctx, "SELECT id, name, created_at FROM locations ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []crm.Location
	for rows.Next() {
		var l crm.Location
		var createdAt string
		if err := rows.Scan(&l.ID, &l.Name, &createdAt); err != nil {
			return nil, err
		}
		l.CreatedAt = parseTime(createdAt)
		out = append(out, l)
	}
	return out, rows.Err()
}

// =============================================================================
// USERS
// =============================================================================

const userColumns = "id, email, name, password_hash, role, location_id, created_at"

// CreateUser inserts a user. Emails are stored lowercase.
func (qs queries) CreateUser(ctx context.Context, u crm.User) (*crm.User, error) {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	createdAt := formatTime(u.CreatedAt)
	id, err := qs.insert(ctx, `
		INSERT INTO users (email, name, password_hash, role, location_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		u.Email, u.Name, u.PasswordHash, string(u.Role), nullInt(u.LocationID), createdAt,
	)
	if err != nil {
		return nil, err
	}
	u.ID = id
	u.CreatedAt = parseTime(createdAt)
	return &u, nil
}

// GetUserByEmail looks a user up case-insensitively.
func (qs queries) GetUserByEmail(ctx context.Context, email string) (*crm.User, error) {
	return qs.getUser(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", strings.ToLower(strings.TrimSpace(email)))
}

// GetUser retrieves a user by ID.
func (qs queries) GetUser(ctx context.Context, id int64) (*crm.User, error) {
	return qs.getUser(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
}

func (qs queries) getUser(ctx context.Context, query string, args ...any) (*crm.User, error) {
	var u crm.User
	var role, createdAt string
	var loc sql.NullInt64
	err := qs.queryRow(ctx, query, args...).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &role, &loc, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.Role = crm.Role(role)
	u.LocationID = intPtr(loc)
	u.CreatedAt = parseTime(createdAt)
	return &u, nil
}

// =============================================================================
// CONTACTS
// =============================================================================

const contactColumns = "c.id, c.first_name, c.last_name, c.email, c.location_id, c.created_at"

// CreateContact inserts a contact.
func (qs queries) CreateContact(ctx context.Context, c crm.Contact) (*crm.Contact, error) {
	createdAt := formatTime(c.CreatedAt)
	id, err := qs.insert(ctx, `
		INSERT INTO contacts (first_name, last_name, email, location_id, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		c.FirstName, c.LastName, nullString(c.Email), c.LocationID, createdAt,
	)
	if err != nil {
		return nil, err
	}
	c.ID = id
	c.CreatedAt = parseTime(createdAt)
	return &c, nil
}

// GetContact retrieves a contact by ID.
func (qs queries) GetContact(ctx context.Context, id int64) (*crm.Contact, error) {
	contacts, err := qs.ListContacts(ctx, crm.Filter{}.Where(crm.Eq("c.id", id)))
	if err != nil || len(contacts) == 0 {
		return nil, err
	}
	return &contacts[0], nil
}

// ListContacts filters on c.* columns.
func (qs queries) ListContacts(ctx context.Context, f crm.Filter) ([]crm.Contact, error) {
	where, args, err := whereClause(f)
	if err != nil {
		return nil, err
	}
	page, pageArgs := pageClause(f)

	rows, err := qs.query(ctx, "SELECT "+contactColumns+" FROM contacts c"+where+" ORDER BY c.last_name, c.first_name, c.id"+page, append(args, pageArgs...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []crm.Contact
	for rows.Next() {
		var c crm.Contact
		var email sql.NullString
		var createdAt string
		if err := rows.Scan(&c.ID, &c.FirstName, &c.LastName, &email, &c.LocationID, &createdAt); err != nil {
			return nil, err
		}
		c.Email = email.String
		c.CreatedAt = parseTime(createdAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

// =============================================================================
// CATEGORIES
// =============================================================================

// CreateCategory inserts a category.
func (qs queries) CreateCategory(ctx context.Context, c crm.Category) (*crm.Category, error) {
	id, err := qs.insert(ctx, "INSERT INTO categories (name) VALUES (?)", c.Name)
	if err != nil {
		return nil, err
	}
	c.ID = id
	return &c, nil
}

// GetCategory retrieves a category by ID.
func (qs queries) GetCategory(ctx context.Context, id int64) (*crm.Category, error) {
	var c crm.Category
	err := qs.queryRow(ctx, "SELECT id, name FROM categories WHERE id = ?", id).Scan(&c.ID, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCategories returns all categories by name.
func (qs queries) ListCategories(ctx context.Context) ([]crm.Category, error) {
	rows, err := qs.query(ctx, "SELECT id, name FROM categories ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []crm.Category
	for rows.Next() {
		var c crm.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// =============================================================================
// PLEDGES
// =============================================================================

const pledgeColumns = `pl.id, pl.contact_id, pl.category_id, pl.original_amount, pl.currency,
	pl.description, pl.pledge_date, pl.created_at, c.location_id`

// CreatePledge inserts a pledge.
func (qs queries) CreatePledge(ctx context.Context, p crm.Pledge) (*crm.Pledge, error) {
	if p.Currency == "" {
		p.Currency = "USD"
	}
	if p.PledgeDate.IsZero() {
		p.PledgeDate = crm.Today()
	}
	createdAt := formatTime(p.CreatedAt)
	id, err := qs.insert(ctx, `
		INSERT INTO pledges (contact_id, category_id, original_amount, currency, description, pledge_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ContactID, nullInt(p.CategoryID), p.OriginalAmount.String(), p.Currency,
		nullString(p.Description), p.PledgeDate.String(), createdAt,
	)
	if err != nil {
		return nil, err
	}
	p.ID = id
	p.CreatedAt = parseTime(createdAt)
	return &p, nil
}

// GetPledge returns the pledge and its contact's location.
func (qs queries) GetPledge(ctx context.Context, id int64) (*crm.Pledge, int64, error) {
	rows, err := qs.query(ctx, "SELECT "+pledgeColumns+" FROM pledges pl JOIN contacts c ON c.id = pl.contact_id WHERE pl.id = ?", id)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, 0, rows.Err()
	}
	p, loc, err := scanPledge(rows)
	if err != nil {
		return nil, 0, err
	}
	return &p, loc, nil
}

// ListPledges filters on pl.* and c.* columns.
func (qs queries) ListPledges(ctx context.Context, f crm.Filter) ([]crm.Pledge, error) {
	where, args, err := whereClause(f)
	if err != nil {
		return nil, err
	}
	page, pageArgs := pageClause(f)

	rows, err := qs.query(ctx, "SELECT "+pledgeColumns+" FROM pledges pl JOIN contacts c ON c.id = pl.contact_id"+where+" ORDER BY pl.pledge_date DESC, pl.id DESC"+page, append(args, pageArgs...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []crm.Pledge
	for rows.Next() {
		p, _, err := scanPledge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPledge(rows *sql.Rows) (crm.Pledge, int64, error) {
	var p crm.Pledge
	var category sql.NullInt64
	var amount, pledgeDate, createdAt string
	var description sql.NullString
	var loc int64
	if err := rows.Scan(&p.ID, &p.ContactID, &category, &amount, &p.Currency, &description, &pledgeDate, &createdAt, &loc); err != nil {
		return p, 0, err
	}
	p.CategoryID = intPtr(category)
	p.OriginalAmount = parseDecimal(amount)
	p.Description = description.String
	p.PledgeDate = parseDate(pledgeDate)
	p.CreatedAt = parseTime(createdAt)
	return p, loc, nil
}
