/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the domain model in crm/ from the external API contract. Field names are
  camelCase on the wire.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Response wrappers

MONEY:
  Amounts and percentages go out as strings with two decimals ("50.00") so
  clients never see float rounding. Requests accept either JSON numbers or
  numeric strings (json.Number).

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/rule.go: RuleJSON, the bonus rule wire shape
*/
package api

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/donor-crm/crm"
	"github.com/warp/donor-crm/factory"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// AUTH & USERS
// =============================================================================

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string  `json:"token"`
	ExpiresAt string  `json:"expiresAt"`
	User      UserDTO `json:"user"`
}

type UserDTO struct {
	ID         int64  `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	LocationID *int64 `json:"locationId"`
	CreatedAt  string `json:"createdAt,omitempty"`
}

type CreateUserRequest struct {
	Email      string `json:"email"`
	Name       string `json:"name"`
	Password   string `json:"password"`
	Role       string `json:"role"`
	LocationID *int64 `json:"locationId"`
}

// =============================================================================
// DIRECTORY
// =============================================================================

type LocationDTO struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt,omitempty"`
}

type CreateLocationRequest struct {
	Name string `json:"name"`
}

type ContactDTO struct {
	ID         int64  `json:"id"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	FullName   string `json:"fullName"`
	Email      string `json:"email,omitempty"`
	LocationID int64  `json:"locationId"`
	CreatedAt  string `json:"createdAt,omitempty"`
}

type CreateContactRequest struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Email      string `json:"email"`
	LocationID *int64 `json:"locationId"`
}

type CategoryDTO struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	IsDonation bool   `json:"isDonation"`
}

type CreateCategoryRequest struct {
	Name string `json:"name"`
}

type PledgeDTO struct {
	ID             int64  `json:"id"`
	ContactID      int64  `json:"contactId"`
	CategoryID     *int64 `json:"categoryId"`
	OriginalAmount string `json:"originalAmount"`
	Currency       string `json:"currency"`
	Description    string `json:"description,omitempty"`
	PledgeDate     string `json:"pledgeDate"`
	CreatedAt      string `json:"createdAt,omitempty"`
}

type CreatePledgeRequest struct {
	ContactID      int64       `json:"contactId"`
	CategoryID     *int64      `json:"categoryId"`
	OriginalAmount json.Number `json:"originalAmount"`
	Currency       string      `json:"currency"`
	Description    string      `json:"description"`
	PledgeDate     string      `json:"pledgeDate"`
}

// =============================================================================
// PAYMENTS & ASSIGNMENT
// =============================================================================

type PaymentDTO struct {
	ID              int64   `json:"id"`
	PledgeID        int64   `json:"pledgeId"`
	PayerContactID  *int64  `json:"payerContactId"`
	IsThirdParty    bool    `json:"isThirdParty"`
	Amount          string  `json:"amount"`
	Currency        string  `json:"currency"`
	AmountUSD       *string `json:"amountUsd"`
	PaymentDate     string  `json:"paymentDate"`
	Status          string  `json:"status"`
	PaymentMethod   string  `json:"paymentMethod,omitempty"`
	ReferenceNumber string  `json:"referenceNumber,omitempty"`
	SolicitorID     *int64  `json:"solicitorId"`
	BonusPercentage *string `json:"bonusPercentage"`
	BonusAmount     *string `json:"bonusAmount"`
	BonusRuleID     *int64  `json:"bonusRuleId"`
	CreatedAt       string  `json:"createdAt"`
	UpdatedAt       string  `json:"updatedAt"`
}

// PaymentDetailDTO is a payment with its bonus calculation, if any.
type PaymentDetailDTO struct {
	PaymentDTO
	Calculation *BonusCalculationDTO `json:"calculation"`
}

type CreatePaymentRequest struct {
	PledgeID        int64        `json:"pledgeId"`
	PayerContactID  *int64       `json:"payerContactId"`
	Amount          json.Number  `json:"amount"`
	Currency        string       `json:"currency"`
	AmountUSD       *json.Number `json:"amountUsd"`
	PaymentDate     string       `json:"paymentDate"`
	Status          string       `json:"status"`
	PaymentMethod   string       `json:"paymentMethod"`
	ReferenceNumber string       `json:"referenceNumber"`
}

type AssignRequest struct {
	SolicitorID int64 `json:"solicitorId"`
}

type AssignResponse struct {
	Payment         PaymentDTO           `json:"payment"`
	BonusCalculated bool                 `json:"bonusCalculated"`
	Calculation     *BonusCalculationDTO `json:"calculation,omitempty"`
}

type UnassignResponse struct {
	Payment PaymentDTO `json:"payment"`
}

// =============================================================================
// SOLICITORS, RULES & CALCULATIONS
// =============================================================================

type SolicitorDTO struct {
	ID             int64   `json:"id"`
	ContactID      *int64  `json:"contactId"`
	SolicitorCode  string  `json:"solicitorCode"`
	Status         string  `json:"status"`
	CommissionRate *string `json:"commissionRate"`
	HireDate       *string `json:"hireDate"`
	Notes          string  `json:"notes,omitempty"`
	LocationID     int64   `json:"locationId"`
	CreatedAt      string  `json:"createdAt"`
	UpdatedAt      string  `json:"updatedAt"`
}

// SolicitorRequest is used by create and update. On update, nil fields are
// left unchanged.
type SolicitorRequest struct {
	ContactID      *int64       `json:"contactId"`
	SolicitorCode  *string      `json:"solicitorCode"`
	Status         *string      `json:"status"`
	CommissionRate *json.Number `json:"commissionRate"`
	HireDate       *string      `json:"hireDate"`
	Notes          *string      `json:"notes"`
	LocationID     *int64       `json:"locationId"`
}

// BonusRuleDTO flattens the rule definition next to its identifiers.
type BonusRuleDTO struct {
	ID          int64 `json:"id"`
	SolicitorID int64 `json:"solicitorId"`
	factory.RuleJSON
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

type BonusCalculationDTO struct {
	ID              int64   `json:"id"`
	PaymentID       int64   `json:"paymentId"`
	SolicitorID     int64   `json:"solicitorId"`
	BonusRuleID     *int64  `json:"bonusRuleId"`
	PaymentAmount   string  `json:"paymentAmount"`
	BonusPercentage string  `json:"bonusPercentage"`
	BonusAmount     string  `json:"bonusAmount"`
	IsPaid          bool    `json:"isPaid"`
	PaidAt          *string `json:"paidAt"`
	CalculatedAt    string  `json:"calculatedAt"`
	Notes           string  `json:"notes,omitempty"`
}

// =============================================================================
// DASHBOARD
// =============================================================================

type DashboardSummaryDTO struct {
	Contacts         int    `json:"contacts"`
	Pledges          int    `json:"pledges"`
	PledgedTotal     string `json:"pledgedTotal"`
	Payments         int    `json:"payments"`
	PaidTotal        string `json:"paidTotal"`
	AssignedPayments int    `json:"assignedPayments"`
	BonusTotal       string `json:"bonusTotal"`
	UnpaidBonusTotal string `json:"unpaidBonusTotal"`
}

type TrendPointDTO struct {
	Month string `json:"month"`
	Count int    `json:"count"`
	Total string `json:"total"`
}

type SolicitorPerformanceDTO struct {
	SolicitorID      int64  `json:"solicitorId"`
	SolicitorCode    string `json:"solicitorCode"`
	Payments         int    `json:"payments"`
	Raised           string `json:"raised"`
	BonusTotal       string `json:"bonusTotal"`
	UnpaidBonusTotal string `json:"unpaidBonusTotal"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo data set.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenarioId"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func moneyPtr(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := money(*d)
	return &s
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func toUserDTO(u crm.User) UserDTO {
	return UserDTO{
		ID:         u.ID,
		Email:      u.Email,
		Name:       u.Name,
		Role:       string(u.Role),
		LocationID: u.LocationID,
		CreatedAt:  timestamp(u.CreatedAt),
	}
}

func toLocationDTO(l crm.Location) LocationDTO {
	return LocationDTO{ID: l.ID, Name: l.Name, CreatedAt: timestamp(l.CreatedAt)}
}

func toContactDTO(c crm.Contact) ContactDTO {
	return ContactDTO{
		ID:         c.ID,
		FirstName:  c.FirstName,
		LastName:   c.LastName,
		FullName:   c.FullName(),
		Email:      c.Email,
		LocationID: c.LocationID,
		CreatedAt:  timestamp(c.CreatedAt),
	}
}

func toCategoryDTO(c crm.Category) CategoryDTO {
	return CategoryDTO{ID: c.ID, Name: c.Name, IsDonation: c.IsDonation()}
}

func toPledgeDTO(p crm.Pledge) PledgeDTO {
	return PledgeDTO{
		ID:             p.ID,
		ContactID:      p.ContactID,
		CategoryID:     p.CategoryID,
		OriginalAmount: money(p.OriginalAmount),
		Currency:       p.Currency,
		Description:    p.Description,
		PledgeDate:     p.PledgeDate.String(),
		CreatedAt:      timestamp(p.CreatedAt),
	}
}

func toPaymentDTO(p crm.Payment) PaymentDTO {
	return PaymentDTO{
		ID:              p.ID,
		PledgeID:        p.PledgeID,
		PayerContactID:  p.PayerContactID,
		IsThirdParty:    p.IsThirdParty(),
		Amount:          money(p.Amount),
		Currency:        p.Currency,
		AmountUSD:       moneyPtr(p.AmountUSD),
		PaymentDate:     p.Date.String(),
		Status:          string(p.Status),
		PaymentMethod:   p.Method,
		ReferenceNumber: p.Reference,
		SolicitorID:     p.SolicitorID,
		BonusPercentage: moneyPtr(p.BonusPercentage),
		BonusAmount:     moneyPtr(p.BonusAmount),
		BonusRuleID:     p.BonusRuleID,
		CreatedAt:       timestamp(p.CreatedAt),
		UpdatedAt:       timestamp(p.UpdatedAt),
	}
}

func toSolicitorDTO(s crm.Solicitor) SolicitorDTO {
	dto := SolicitorDTO{
		ID:             s.ID,
		ContactID:      s.ContactID,
		SolicitorCode:  s.Code,
		Status:         string(s.Status),
		CommissionRate: moneyPtr(s.CommissionRate),
		Notes:          s.Notes,
		LocationID:     s.LocationID,
		CreatedAt:      timestamp(s.CreatedAt),
		UpdatedAt:      timestamp(s.UpdatedAt),
	}
	if s.HireDate != nil {
		d := s.HireDate.String()
		dto.HireDate = &d
	}
	return dto
}

func toBonusRuleDTO(f *factory.RuleFactory, r crm.BonusRule) BonusRuleDTO {
	return BonusRuleDTO{
		ID:          r.ID,
		SolicitorID: r.SolicitorID,
		RuleJSON:    f.ToJSON(r),
		CreatedAt:   timestamp(r.CreatedAt),
		UpdatedAt:   timestamp(r.UpdatedAt),
	}
}

func toCalculationDTO(c crm.BonusCalculation) BonusCalculationDTO {
	dto := BonusCalculationDTO{
		ID:              c.ID,
		PaymentID:       c.PaymentID,
		SolicitorID:     c.SolicitorID,
		BonusRuleID:     c.BonusRuleID,
		PaymentAmount:   money(c.PaymentAmount),
		BonusPercentage: money(c.BonusPercentage),
		BonusAmount:     money(c.BonusAmount),
		IsPaid:          c.IsPaid,
		CalculatedAt:    timestamp(c.CalculatedAt),
		Notes:           c.Notes,
	}
	if c.PaidAt != nil {
		s := timestamp(*c.PaidAt)
		dto.PaidAt = &s
	}
	return dto
}

func toCalculationDTOPtr(c *crm.BonusCalculation) *BonusCalculationDTO {
	if c == nil {
		return nil
	}
	dto := toCalculationDTO(*c)
	return &dto
}
