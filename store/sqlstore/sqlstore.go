/*
Package sqlstore provides the SQL implementation of crm.Store.

PURPOSE:
  Persists the CRM entities in SQLite (default, single file or :memory:)
  or PostgreSQL. Both dialects share the same queries; placeholders are
  written as "?" and rebound to "$n" for PostgreSQL.

INTERFACES IMPLEMENTED:
  crm.Store (and through it crm.Tx, crm.DirectoryStore, crm.ReportStore)

STORAGE CONVENTIONS:
  - Money and percentages are TEXT holding decimal strings, so neither
    dialect ever rounds them. Reports CAST to NUMERIC for SUMs.
  - Calendar dates are TEXT "YYYY-MM-DD", timestamps TEXT RFC3339 (UTC).
    Both sort and compare correctly as strings.
  - IDs are auto-increment integers obtained with RETURNING.

TRANSACTIONS:
  WithTx runs fn against a view of the store bound to one *sql.Tx. On
  PostgreSQL the transaction is SERIALIZABLE. On SQLite the pool is
  limited to one connection, which both serializes writers and keeps a
  ":memory:" database shared between calls.

USAGE:
  store, err := sqlstore.Open(sqlstore.Config{Driver: "sqlite", DSN: "crm.db"})
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on Open (CREATE ... IF NOT EXISTS). NewWithDB
  skips migration; call Migrate explicitly.

SEE ALSO:
  - crm/store.go: Interface definitions
  - schema.go: DDL per dialect
  - filter.go: crm.Filter to SQL
*/
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/donor-crm/crm"
)

// =============================================================================
// DIALECT
// =============================================================================

// Dialect selects SQL flavour.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// ParseDialect accepts the usual driver names.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(s) {
	case "", "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pq":
		return DialectPostgres, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", s)
}

func (d Dialect) driverName() string {
	if d == DialectPostgres {
		return "postgres"
	}
	return "sqlite3"
}

// rebind rewrites "?" placeholders as "$1".."$n" for PostgreSQL.
func (d Dialect) rebind(query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (d Dialect) txOptions() *sql.TxOptions {
	if d == DialectPostgres {
		return &sql.TxOptions{Isolation: sql.LevelSerializable}
	}
	return nil
}

// =============================================================================
// STORE
// =============================================================================

// Config holds connection settings.
type Config struct {
	Driver string // sqlite | postgres
	DSN    string // file path, ":memory:" or postgres URL

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Store implements crm.Store.
type Store struct {
	queries
	db *sql.DB
}

var _ crm.Store = (*Store)(nil)

// Open connects, configures the pool and migrates the schema.
func Open(cfg Config) (*Store, error) {
	dialect, err := ParseDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}

	dsn := cfg.DSN
	if dialect == DialectSQLite {
		if dsn == "" {
			dsn = "crm.db"
		}
		if !strings.Contains(dsn, "?") {
			dsn += "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"
		}
	} else if dsn == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if dialect == DialectSQLite {
		db.SetMaxOpenConns(1)
	} else {
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		}
	}

	store := NewWithDB(db, dialect)
	if err := store.Ping(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := store.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// NewSQLite opens a SQLite store. Use ":memory:" for an in-memory database.
func NewSQLite(path string) (*Store, error) {
	return Open(Config{Driver: string(DialectSQLite), DSN: path})
}

// NewWithDB wraps an existing handle without migrating.
func NewWithDB(db *sql.DB, dialect Dialect) *Store {
	return &Store{queries: queries{q: db, dialect: dialect}, db: db}
}

// Dialect reports the SQL flavour in use.
func (s *Store) Dialect() Dialect { return s.dialect }

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate creates the schema.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schemaFor(s.dialect) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(crm.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, s.dialect.txOptions())
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(queries{q: sqlTx, dialect: s.dialect}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Reset deletes every row. Dev/demo only.
func (s *Store) Reset(ctx context.Context) error {
	sqlTx, err := s.db.BeginTx(ctx, s.dialect.txOptions())
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, table := range resetOrder {
		if _, err := sqlTx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return sqlTx.Commit()
}

// =============================================================================
// QUERIES - shared by Store and the transaction view
// =============================================================================

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	q       querier
	dialect Dialect
}

func (qs queries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return qs.q.ExecContext(ctx, qs.dialect.rebind(query), args...)
}

func (qs queries) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return qs.q.QueryContext(ctx, qs.dialect.rebind(query), args...)
}

func (qs queries) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return qs.q.QueryRowContext(ctx, qs.dialect.rebind(query), args...)
}

// insert runs an INSERT ... RETURNING id.
func (qs queries) insert(ctx context.Context, query string, args ...any) (int64, error) {
	var id int64
	if err := qs.queryRow(ctx, query+" RETURNING id", args...).Scan(&id); err != nil {
		return 0, translate(err)
	}
	return id, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// translate maps driver constraint errors onto the crm taxonomy.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return crm.Conflict("duplicate value: %s", liteErr.Error())
		case sqlite3.ErrConstraintForeignKey:
			return &crm.ValidationError{Field: "reference", Message: "referenced row does not exist"}
		}
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return crm.Conflict("duplicate value: %s", pqErr.Message)
		case "23503":
			return &crm.ValidationError{Field: "reference", Message: "referenced row does not exist"}
		}
	}
	return err
}

func now() string { return time.Now().UTC().Format(time.RFC3339) }

func formatTime(t time.Time) string {
	if t.IsZero() {
		return now()
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func intPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func decimalPtr(s sql.NullString) *decimal.Decimal {
	if !s.Valid || s.String == "" {
		return nil
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return nil
	}
	return &d
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func nullDate(d *crm.Date) sql.NullString {
	if d == nil || d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func datePtr(s sql.NullString) *crm.Date {
	if !s.Valid || s.String == "" {
		return nil
	}
	d, err := crm.ParseDate(s.String)
	if err != nil {
		return nil
	}
	return &d
}

func parseDate(s string) crm.Date {
	d, _ := crm.ParseDate(s)
	return d
}

func sumDecimal(n decimal.NullDecimal) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	return n.Decimal.Round(2)
}
