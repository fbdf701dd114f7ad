/*
store.go - Persistence interfaces for the CRM core

PURPOSE:
  Defines the boundary between domain logic and the database. Every read
  that touches location-partitioned data takes a Filter (already carrying
  the caller's scope) or is followed by a Scope.Authorize check.

KEY INTERFACES:
  DirectoryStore:   locations, users, contacts, categories, pledges
  PaymentStore:     payments and their bonus fields
  SolicitorStore:   solicitors
  RuleStore:        bonus rules
  CalculationStore: bonus calculations
  ReportStore:      dashboard aggregations
  Store:            all of the above + WithTx

UNIT OF WORK:
  Assign and unassign touch two tables. They run inside WithTx: if fn
  returns an error, every write made through the Tx is rolled back.

  err := store.WithTx(ctx, func(tx crm.Tx) error {
      if _, err := tx.SetPaymentBonus(ctx, id, bonus); err != nil {
          return err
      }
      _, err := tx.InsertCalculation(ctx, calc)
      return err
  })

NOT-FOUND CONVENTION:
  Single-row getters return (nil, nil) when the row does not exist, the way
  database/sql callers usually expect to branch on it. Callers turn that
  into a NotFoundError with the right entity name.

IMPLEMENTATIONS:
  - store/sqlstore: SQLite and PostgreSQL

SEE ALSO:
  - bonus/service.go: main WithTx user
*/
package crm

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DIRECTORY - Tenancy, users and payment context
// =============================================================================

type DirectoryStore interface {
	CreateLocation(ctx context.Context, l Location) (*Location, error)
	ListLocations(ctx context.Context) ([]Location, error)

	CreateUser(ctx context.Context, u User) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUser(ctx context.Context, id int64) (*User, error)

	CreateContact(ctx context.Context, c Contact) (*Contact, error)
	GetContact(ctx context.Context, id int64) (*Contact, error)
	ListContacts(ctx context.Context, f Filter) ([]Contact, error)

	CreateCategory(ctx context.Context, c Category) (*Category, error)
	GetCategory(ctx context.Context, id int64) (*Category, error)
	ListCategories(ctx context.Context) ([]Category, error)

	CreatePledge(ctx context.Context, p Pledge) (*Pledge, error)
	// GetPledge returns the pledge with its owning contact's location.
	GetPledge(ctx context.Context, id int64) (*Pledge, int64, error)
	ListPledges(ctx context.Context, f Filter) ([]Pledge, error)
}

// =============================================================================
// PAYMENTS
// =============================================================================

// PaymentBonus is the set of derived bonus fields on a payment. All nil
// clears the assignment.
type PaymentBonus struct {
	SolicitorID     *int64
	BonusPercentage *decimal.Decimal
	BonusAmount     *decimal.Decimal
	BonusRuleID     *int64
	UpdatedAt       time.Time
}

type PaymentStore interface {
	CreatePayment(ctx context.Context, p Payment) (*Payment, error)

	// GetPaymentContext loads a payment joined with pledge, contact and
	// category. Returns (nil, nil) if the payment does not exist.
	GetPaymentContext(ctx context.Context, id int64) (*PaymentContext, error)

	// ListPayments filters on the columns p.*, pl.*, c.* (contact).
	ListPayments(ctx context.Context, f Filter) ([]Payment, error)

	// SetPaymentBonus overwrites the derived bonus fields. Returns (nil, nil)
	// when no row was updated.
	SetPaymentBonus(ctx context.Context, paymentID int64, b PaymentBonus) (*Payment, error)

	// CountPaymentsBySolicitor counts payments referencing a solicitor.
	CountPaymentsBySolicitor(ctx context.Context, solicitorID int64) (int, error)
}

// =============================================================================
// SOLICITORS & RULES
// =============================================================================

type SolicitorStore interface {
	CreateSolicitor(ctx context.Context, s Solicitor) (*Solicitor, error)
	GetSolicitor(ctx context.Context, id int64) (*Solicitor, error)
	ListSolicitors(ctx context.Context, f Filter) ([]Solicitor, error)
	UpdateSolicitor(ctx context.Context, s Solicitor) (*Solicitor, error)
	DeleteSolicitor(ctx context.Context, id int64) error
}

type RuleStore interface {
	CreateRule(ctx context.Context, r BonusRule) (*BonusRule, error)
	GetRule(ctx context.Context, id int64) (*BonusRule, error)
	UpdateRule(ctx context.Context, r BonusRule) (*BonusRule, error)
	DeleteRule(ctx context.Context, id int64) error

	// RulesForSolicitor returns every rule of a solicitor, newest first.
	RulesForSolicitor(ctx context.Context, solicitorID int64) ([]BonusRule, error)

	// CandidateRules returns the active rules of a solicitor whose window
	// covers day. The matcher applies the rest of the predicate.
	CandidateRules(ctx context.Context, solicitorID int64, day Date) ([]BonusRule, error)
}

// =============================================================================
// CALCULATIONS
// =============================================================================

type CalculationStore interface {
	InsertCalculation(ctx context.Context, c BonusCalculation) (*BonusCalculation, error)

	// DeleteCalculationsForPayment removes the calculation of a payment and
	// returns how many rows went away (0 or 1).
	DeleteCalculationsForPayment(ctx context.Context, paymentID int64) (int64, error)

	GetCalculation(ctx context.Context, id int64) (*BonusCalculation, error)
	GetCalculationForPayment(ctx context.Context, paymentID int64) (*BonusCalculation, error)

	// ListCalculations filters on bc.* and s.* (solicitor) columns.
	ListCalculations(ctx context.Context, f Filter) ([]BonusCalculation, error)

	MarkCalculationPaid(ctx context.Context, id int64, paidAt time.Time) (*BonusCalculation, error)
}

// =============================================================================
// REPORTS
// =============================================================================

type ReportStore interface {
	DashboardSummary(ctx context.Context, scope Scope) (*DashboardSummary, error)
	PaymentTrend(ctx context.Context, scope Scope, from, to Date) ([]TrendPoint, error)
	SolicitorPerformance(ctx context.Context, scope Scope) ([]SolicitorPerformance, error)
}

// =============================================================================
// STORE - Everything plus transactions
// =============================================================================

// Tx is the view of the store available inside a unit of work.
type Tx interface {
	PaymentStore
	SolicitorStore
	RuleStore
	CalculationStore
}

type Store interface {
	DirectoryStore
	Tx
	ReportStore

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Tx) error) error

	Ping(ctx context.Context) error
	Close() error
}
