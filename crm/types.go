/*
Package crm provides the domain model of the donor CRM.

PURPOSE:
  Holds the entities every other package speaks in: locations (tenants),
  users, contacts, pledges, payments, solicitors, bonus rules and bonus
  calculations. Nothing here talks to a database or to HTTP.

KEY CONCEPTS IN THIS FILE (types.go):
  - Location: the tenant partition. Every contact (and through it every
    pledge and payment) and every solicitor belongs to exactly one.
  - Payment: money received against a pledge. Carries derived bonus fields
    (SolicitorID, BonusPercentage, BonusAmount, BonusRuleID) that only the
    bonus service writes.
  - BonusRule: a solicitor's bonus policy row, matched per payment.
  - BonusCalculation: the persisted result of a successful match with a
    positive bonus. At most one per payment.

MONEY:
  All amounts are decimal.Decimal. Floats never touch money.

DATES:
  Payment dates and rule windows are calendar dates (Date), compared as
  whole days in UTC.

SEE ALSO:
  - identity.go: Identity, Role and location Scope
  - filter.go: Filter specification used by list queries
  - store.go: Persistence interfaces
  - errors.go: Error taxonomy
*/
package crm

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DATE - Calendar day without time of day
// =============================================================================

// DateLayout is the wire and storage format of a Date.
const DateLayout = "2006-01-02"

// Date is a calendar day. The zero value is "no date".
type Date struct {
	time.Time
}

// NewDate truncates t to its UTC calendar day.
func NewDate(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// DateOf builds a Date from its components.
func DateOf(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses YYYY-MM-DD. RFC3339 timestamps are accepted and truncated.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		ts, err2 := time.Parse(time.RFC3339, s)
		if err2 != nil {
			return Date{}, err
		}
		t = ts
	}
	return NewDate(t), nil
}

// Today returns the current UTC day.
func Today() Date { return NewDate(time.Now()) }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }
func (d Date) After(o Date) bool  { return d.Time.After(o.Time) }

// =============================================================================
// TENANCY & USERS
// =============================================================================

type Location struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	Role         Role
	LocationID   *int64
	CreatedAt    time.Time
}

// Identity returns the session identity for this user.
func (u User) Identity() Identity {
	return Identity{UserID: u.ID, Email: u.Email, Role: u.Role, LocationID: u.LocationID}
}

// =============================================================================
// CONTACTS, CATEGORIES & PLEDGES - read-only context for payments
// =============================================================================

type Contact struct {
	ID         int64
	FirstName  string
	LastName   string
	Email      string
	LocationID int64
	CreatedAt  time.Time
}

func (c Contact) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

type Category struct {
	ID   int64
	Name string
}

// IsDonation reports whether payments under this category count as
// donations for bonus purposes. Anything else is tuition.
func (c Category) IsDonation() bool {
	return IsDonationCategory(c.Name)
}

// IsDonationCategory is the category-name test used for payments.
func IsDonationCategory(name string) bool {
	return strings.Contains(strings.ToLower(name), "donation")
}

type Pledge struct {
	ID             int64
	ContactID      int64
	CategoryID     *int64
	OriginalAmount decimal.Decimal
	Currency       string
	Description    string
	PledgeDate     Date
	CreatedAt      time.Time
}

// =============================================================================
// PAYMENT
// =============================================================================

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
	PaymentCancelled PaymentStatus = "cancelled"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentCompleted, PaymentFailed, PaymentRefunded, PaymentCancelled:
		return true
	}
	return false
}

type Payment struct {
	ID        int64
	PledgeID  int64
	Amount    decimal.Decimal
	Currency  string
	AmountUSD *decimal.Decimal
	Date      Date
	Status    PaymentStatus
	Method    string
	Reference string

	// PayerContactID is set when a contact pays on behalf of the pledge owner.
	PayerContactID *int64

	// Derived by the bonus service. Never edited directly.
	SolicitorID     *int64
	BonusPercentage *decimal.Decimal
	BonusAmount     *decimal.Decimal
	BonusRuleID     *int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsThirdParty reports whether someone other than the pledge owner paid.
func (p Payment) IsThirdParty() bool { return p.PayerContactID != nil }

// IsAssigned reports whether a solicitor is attached.
func (p Payment) IsAssigned() bool { return p.SolicitorID != nil }

// PaymentContext is a payment joined with the context the bonus engine and
// the location filter need: the owning location and the category flag.
type PaymentContext struct {
	Payment      Payment
	ContactID    int64
	LocationID   int64
	CategoryName string
}

func (pc PaymentContext) IsDonation() bool { return IsDonationCategory(pc.CategoryName) }

// =============================================================================
// SOLICITORS
// =============================================================================

type SolicitorStatus string

const (
	SolicitorActive    SolicitorStatus = "active"
	SolicitorInactive  SolicitorStatus = "inactive"
	SolicitorSuspended SolicitorStatus = "suspended"
)

func (s SolicitorStatus) Valid() bool {
	switch s {
	case SolicitorActive, SolicitorInactive, SolicitorSuspended:
		return true
	}
	return false
}

type Solicitor struct {
	ID             int64
	ContactID      *int64
	Code           string
	Status         SolicitorStatus
	CommissionRate *decimal.Decimal
	HireDate       *Date
	Notes          string
	LocationID     int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// =============================================================================
// BONUS RULES & CALCULATIONS
// =============================================================================

// PaymentType selects which payments a rule applies to.
type PaymentType string

const (
	PaymentTypeDonation PaymentType = "donation"
	PaymentTypeTuition  PaymentType = "tuition"
	PaymentTypeBoth     PaymentType = "both"
)

func (t PaymentType) Valid() bool {
	switch t {
	case PaymentTypeDonation, PaymentTypeTuition, PaymentTypeBoth:
		return true
	}
	return false
}

// Covers reports whether a rule of this type applies to a payment with the
// given donation flag.
func (t PaymentType) Covers(isDonation bool) bool {
	switch t {
	case PaymentTypeBoth:
		return true
	case PaymentTypeDonation:
		return isDonation
	case PaymentTypeTuition:
		return !isDonation
	}
	return false
}

type BonusRule struct {
	ID              int64
	SolicitorID     int64
	Name            string
	BonusPercentage decimal.Decimal
	PaymentType     PaymentType

	// nil = unbounded
	MinAmount *decimal.Decimal
	MaxAmount *decimal.Decimal

	EffectiveFrom Date
	EffectiveTo   *Date // nil = open-ended

	IsActive bool
	Priority int
	Notes    string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// InEffect reports whether the rule window covers day.
func (r BonusRule) InEffect(day Date) bool {
	if day.Before(r.EffectiveFrom) {
		return false
	}
	if r.EffectiveTo != nil && day.After(*r.EffectiveTo) {
		return false
	}
	return true
}

// InBand reports whether amount falls within [MinAmount, MaxAmount].
func (r BonusRule) InBand(amount decimal.Decimal) bool {
	if r.MinAmount != nil && r.MinAmount.GreaterThan(amount) {
		return false
	}
	if r.MaxAmount != nil && r.MaxAmount.LessThan(amount) {
		return false
	}
	return true
}

type BonusCalculation struct {
	ID              int64
	PaymentID       int64
	SolicitorID     int64
	BonusRuleID     *int64
	PaymentAmount   decimal.Decimal
	BonusPercentage decimal.Decimal
	BonusAmount     decimal.Decimal
	IsPaid          bool
	PaidAt          *time.Time
	CalculatedAt    time.Time
	Notes           string
}
