package sqlstore

import "strings"

// schema is shared by both dialects. {{PK}} expands to the dialect's
// auto-increment primary key.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS locations (
		id {{PK}},
		name TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS users (
		id {{PK}},
		email TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'user',
		location_id BIGINT REFERENCES locations(id),
		created_at TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS contacts (
		id {{PK}},
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL DEFAULT '',
		email TEXT,
		location_id BIGINT NOT NULL REFERENCES locations(id),
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_contacts_location ON contacts(location_id)`,

	`CREATE TABLE IF NOT EXISTS categories (
		id {{PK}},
		name TEXT NOT NULL UNIQUE
	)`,

	`CREATE TABLE IF NOT EXISTS pledges (
		id {{PK}},
		contact_id BIGINT NOT NULL REFERENCES contacts(id),
		category_id BIGINT REFERENCES categories(id),
		original_amount TEXT NOT NULL,
		currency TEXT NOT NULL DEFAULT 'USD',
		description TEXT,
		pledge_date TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_pledges_contact ON pledges(contact_id)`,

	`CREATE TABLE IF NOT EXISTS solicitors (
		id {{PK}},
		contact_id BIGINT REFERENCES contacts(id),
		solicitor_code TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL DEFAULT 'active',
		commission_rate TEXT,
		hire_date TEXT,
		notes TEXT,
		location_id BIGINT NOT NULL REFERENCES locations(id),
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_solicitors_location ON solicitors(location_id)`,

	`CREATE TABLE IF NOT EXISTS payments (
		id {{PK}},
		pledge_id BIGINT NOT NULL REFERENCES pledges(id),
		payer_contact_id BIGINT REFERENCES contacts(id),
		amount TEXT NOT NULL,
		currency TEXT NOT NULL DEFAULT 'USD',
		amount_usd TEXT,
		payment_date TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'completed',
		payment_method TEXT,
		reference_number TEXT,
		solicitor_id BIGINT REFERENCES solicitors(id),
		bonus_percentage TEXT,
		bonus_amount TEXT,
		bonus_rule_id BIGINT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_pledge ON payments(pledge_id)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_solicitor ON payments(solicitor_id) WHERE solicitor_id IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS idx_payments_date ON payments(payment_date)`,

	`CREATE TABLE IF NOT EXISTS bonus_rules (
		id {{PK}},
		solicitor_id BIGINT NOT NULL REFERENCES solicitors(id) ON DELETE CASCADE,
		rule_name TEXT NOT NULL DEFAULT '',
		bonus_percentage TEXT NOT NULL,
		payment_type TEXT NOT NULL DEFAULT 'both',
		min_amount TEXT,
		max_amount TEXT,
		effective_from TEXT NOT NULL,
		effective_to TEXT,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		priority INTEGER NOT NULL DEFAULT 0,
		notes TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	// Candidate lookup (hot path of assign)
	`CREATE INDEX IF NOT EXISTS idx_bonus_rules_lookup
		ON bonus_rules(solicitor_id, is_active, effective_from)`,

	`CREATE TABLE IF NOT EXISTS bonus_calculations (
		id {{PK}},
		payment_id BIGINT NOT NULL UNIQUE REFERENCES payments(id),
		solicitor_id BIGINT NOT NULL REFERENCES solicitors(id),
		bonus_rule_id BIGINT,
		payment_amount TEXT NOT NULL,
		bonus_percentage TEXT NOT NULL,
		bonus_amount TEXT NOT NULL,
		is_paid BOOLEAN NOT NULL DEFAULT FALSE,
		paid_at TEXT,
		calculated_at TEXT NOT NULL,
		notes TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bonus_calculations_solicitor ON bonus_calculations(solicitor_id)`,
}

// resetOrder lists tables children first.
var resetOrder = []string{
	"bonus_calculations",
	"bonus_rules",
	"payments",
	"solicitors",
	"pledges",
	"categories",
	"contacts",
	"users",
	"locations",
}

func schemaFor(d Dialect) []string {
	pk := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if d == DialectPostgres {
		pk = "BIGSERIAL PRIMARY KEY"
	}
	out := make([]string, len(schema))
	for i, stmt := range schema {
		out[i] = strings.ReplaceAll(stmt, "{{PK}}", pk)
	}
	return out
}
