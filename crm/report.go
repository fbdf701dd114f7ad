package crm

import "github.com/shopspring/decimal"

// DashboardSummary holds headline totals for one scope.
type DashboardSummary struct {
	Contacts         int
	Pledges          int
	PledgedTotal     decimal.Decimal
	Payments         int // completed only
	PaidTotal        decimal.Decimal
	AssignedPayments int
	BonusTotal       decimal.Decimal
	UnpaidBonusTotal decimal.Decimal
}

// TrendPoint is one month of completed payments. Month is YYYY-MM.
type TrendPoint struct {
	Month string
	Count int
	Total decimal.Decimal
}

// SolicitorPerformance aggregates a solicitor's assigned payments.
type SolicitorPerformance struct {
	SolicitorID      int64
	Code             string
	Payments         int
	Raised           decimal.Decimal
	BonusTotal       decimal.Decimal
	UnpaidBonusTotal decimal.Decimal
}
