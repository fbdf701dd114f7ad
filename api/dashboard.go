package api

import (
	"net/http"

	"github.com/warp/donor-crm/crm"
)

// DashboardSummary returns headline totals for the caller's scope.
func (h *Handler) DashboardSummary(w http.ResponseWriter, r *http.Request) {
	scope, _, ok := h.scope(w, r)
	if !ok {
		return
	}

	s, err := h.Store.DashboardSummary(r.Context(), scope)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DashboardSummaryDTO{
		Contacts:         s.Contacts,
		Pledges:          s.Pledges,
		PledgedTotal:     money(s.PledgedTotal),
		Payments:         s.Payments,
		PaidTotal:        money(s.PaidTotal),
		AssignedPayments: s.AssignedPayments,
		BonusTotal:       money(s.BonusTotal),
		UnpaidBonusTotal: money(s.UnpaidBonusTotal),
	})
}

// PaymentTrend returns completed payments per month, ?from= and ?to=
// bounding the range.
func (h *Handler) PaymentTrend(w http.ResponseWriter, r *http.Request) {
	scope, _, ok := h.scope(w, r)
	if !ok {
		return
	}
	from, err := queryDate(r, "from")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	to, err := queryDate(r, "to")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		h.fail(w, r, crm.Invalid("to", "must not be before from"))
		return
	}

	points, err := h.Store.PaymentTrend(r.Context(), scope, from, to)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	dtos := make([]TrendPointDTO, len(points))
	for i, p := range points {
		dtos[i] = TrendPointDTO{Month: p.Month, Count: p.Count, Total: money(p.Total)}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SolicitorPerformance returns per-solicitor totals.
func (h *Handler) SolicitorPerformance(w http.ResponseWriter, r *http.Request) {
	scope, _, ok := h.scope(w, r)
	if !ok {
		return
	}

	rows, err := h.Store.SolicitorPerformance(r.Context(), scope)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	dtos := make([]SolicitorPerformanceDTO, len(rows))
	for i, p := range rows {
		dtos[i] = SolicitorPerformanceDTO{
			SolicitorID:      p.SolicitorID,
			SolicitorCode:    p.Code,
			Payments:         p.Payments,
			Raised:           money(p.Raised),
			BonusTotal:       money(p.BonusTotal),
			UnpaidBonusTotal: money(p.UnpaidBonusTotal),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}
