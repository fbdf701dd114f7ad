package api

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/donor-crm/crm"
)

// =============================================================================
// SOLICITORS
// =============================================================================

// ListSolicitors returns solicitors in scope, optionally by ?status=.
func (h *Handler) ListSolicitors(w http.ResponseWriter, r *http.Request) {
	scope, _, ok := h.scope(w, r)
	if !ok {
		return
	}

	f := scope.Apply(paged(r, crm.Filter{}), "s.location_id")
	if status := r.URL.Query().Get("status"); status != "" {
		if !crm.SolicitorStatus(status).Valid() {
			h.fail(w, r, crm.Invalid("status", "must be active, inactive or suspended"))
			return
		}
		f = f.Where(crm.Eq("s.status", status))
	}

	solicitors, err := h.Store.ListSolicitors(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	dtos := make([]SolicitorDTO, len(solicitors))
	for i, s := range solicitors {
		dtos[i] = toSolicitorDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetSolicitor returns a single solicitor.
func (h *Handler) GetSolicitor(w http.ResponseWriter, r *http.Request) {
	scope, _, ok := h.scope(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	sol, err := h.visibleSolicitor(r, scope, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSolicitorDTO(*sol))
}

// CreateSolicitor creates a solicitor in the caller's location.
func (h *Handler) CreateSolicitor(w http.ResponseWriter, r *http.Request) {
	scope, _, ok := h.scope(w, r)
	if !ok {
		return
	}

	var req SolicitorRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.SolicitorCode == nil || strings.TrimSpace(*req.SolicitorCode) == "" {
		h.fail(w, r, crm.Invalid("solicitorCode", "is required"))
		return
	}
	loc, err := ownLocation(scope, req.LocationID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	sol := crm.Solicitor{LocationID: loc, Status: crm.SolicitorActive}
	if err := h.applySolicitorRequest(r, scope, &sol, req); err != nil {
		h.fail(w, r, err)
		return
	}

	created, err := h.Store.CreateSolicitor(r.Context(), sol)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSolicitorDTO(*created))
}

// UpdateSolicitor applies a partial update. A solicitor outside the
// caller's location is reported as not found. The location never changes.
func (h *Handler) UpdateSolicitor(w http.ResponseWriter, r *http.Request) {
	scope, _, ok := h.scope(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req SolicitorRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sol, err := h.visibleSolicitor(r, scope, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if req.LocationID != nil && *req.LocationID != sol.LocationID {
		h.fail(w, r, crm.Invalid("locationId", "cannot be changed"))
		return
	}
	if err := h.applySolicitorRequest(r, scope, sol, req); err != nil {
		h.fail(w, r, err)
		return
	}
	sol.UpdatedAt = time.Now().UTC()

	updated, err := h.Store.UpdateSolicitor(r.Context(), *sol)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if updated == nil {
		h.fail(w, r, crm.NotFound("solicitor", id))
		return
	}
	writeJSON(w, http.StatusOK, toSolicitorDTO(*updated))
}

// DeleteSolicitor removes a solicitor and its rules. Blocked while any
// payment still references the solicitor.
func (h *Handler) DeleteSolicitor(w http.ResponseWriter, r *http.Request) {
	scope, _, ok := h.scope(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ctx := r.Context()
	if _, err := h.visibleSolicitor(r, scope, id); err != nil {
		h.fail(w, r, err)
		return
	}

	err = h.Store.WithTx(ctx, func(tx crm.Tx) error {
		n, err := tx.CountPaymentsBySolicitor(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return crm.Conflict("solicitor is still assigned to payments")
		}
		return tx.DeleteSolicitor(ctx, id)
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// visibleSolicitor loads a solicitor, hiding other locations behind 404.
func (h *Handler) visibleSolicitor(r *http.Request, scope crm.Scope, id int64) (*crm.Solicitor, error) {
	sol, err := h.Store.GetSolicitor(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if sol == nil || !scope.Allows(sol.LocationID) {
		return nil, crm.NotFound("solicitor", id)
	}
	return sol, nil
}

// applySolicitorRequest copies the non-nil request fields onto sol.
func (h *Handler) applySolicitorRequest(r *http.Request, scope crm.Scope, sol *crm.Solicitor, req SolicitorRequest) error {
	if req.SolicitorCode != nil {
		code := strings.TrimSpace(*req.SolicitorCode)
		if code == "" {
			return crm.Invalid("solicitorCode", "must not be empty")
		}
		sol.Code = code
	}
	if req.Status != nil {
		status := crm.SolicitorStatus(strings.ToLower(*req.Status))
		if !status.Valid() {
			return crm.Invalid("status", "must be active, inactive or suspended")
		}
		sol.Status = status
	}
	if req.CommissionRate != nil {
		if *req.CommissionRate == "" {
			sol.CommissionRate = nil
		} else {
			rate, err := decimal.NewFromString(string(*req.CommissionRate))
			if err != nil || rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100)) {
				return crm.Invalid("commissionRate", "must be between 0 and 100")
			}
			sol.CommissionRate = &rate
		}
	}
	if req.HireDate != nil {
		if *req.HireDate == "" {
			sol.HireDate = nil
		} else {
			d, err := crm.ParseDate(*req.HireDate)
			if err != nil {
				return crm.Invalid("hireDate", "use YYYY-MM-DD")
			}
			sol.HireDate = &d
		}
	}
	if req.Notes != nil {
		sol.Notes = *req.Notes
	}
	if req.ContactID != nil {
		contact, err := h.visibleContact(r, scope, *req.ContactID)
		if err != nil {
			return err
		}
		if contact.LocationID != sol.LocationID {
			return crm.Invalid("contactId", "contact belongs to another location")
		}
		sol.ContactID = &contact.ID
	}
	return nil
}

// =============================================================================
// BONUS RULES
// =============================================================================

// ListBonusRules returns every rule of a solicitor.
func (h *Handler) ListBonusRules(w http.ResponseWriter, r *http.Request) {
	scope, _, ok := h.scope(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if _, err := h.visibleSolicitor(r, scope, id); err != nil {
		h.fail(w, r, err)
		return
	}

	rules, err := h.Store.RulesForSolicitor(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	dtos := make([]BonusRuleDTO, len(rules))
	for i, rule := range rules {
		dtos[i] = toBonusRuleDTO(h.RuleFactory, rule)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateBonusRule parses a rule definition and attaches it to a solicitor.
func (h *Handler) CreateBonusRule(w http.ResponseWriter, r *http.Request) {
	scope, _, ok := h.scope(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if _, err := h.visibleSolicitor(r, scope, id); err != nil {
		h.fail(w, r, err)
		return
	}

	rule, err := h.parseRuleBody(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rule.SolicitorID = id

	created, err := h.Store.CreateRule(r.Context(), *rule)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBonusRuleDTO(h.RuleFactory, *created))
}

// UpdateBonusRule replaces a rule's definition. Existing calculations keep
// the values they were computed with.
func (h *Handler) UpdateBonusRule(w http.ResponseWriter, r *http.Request) {
	scope, _, ok := h.scope(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	existing, err := h.visibleRule(r, scope, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rule, err := h.parseRuleBody(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rule.ID = existing.ID
	rule.SolicitorID = existing.SolicitorID
	rule.CreatedAt = existing.CreatedAt
	rule.UpdatedAt = time.Now().UTC()

	updated, err := h.Store.UpdateRule(r.Context(), *rule)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if updated == nil {
		h.fail(w, r, crm.NotFound("bonus rule", id))
		return
	}
	writeJSON(w, http.StatusOK, toBonusRuleDTO(h.RuleFactory, *updated))
}

// DeleteBonusRule removes a rule.
func (h *Handler) DeleteBonusRule(w http.ResponseWriter, r *http.Request) {
	scope, _, ok := h.scope(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if _, err := h.visibleRule(r, scope, id); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Store.DeleteRule(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// visibleRule loads a rule whose solicitor is in scope.
func (h *Handler) visibleRule(r *http.Request, scope crm.Scope, id int64) (*crm.BonusRule, error) {
	rule, err := h.Store.GetRule(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, crm.NotFound("bonus rule", id)
	}
	if _, err := h.visibleSolicitor(r, scope, rule.SolicitorID); err != nil {
		return nil, crm.NotFound("bonus rule", id)
	}
	return rule, nil
}

func (h *Handler) parseRuleBody(r *http.Request) (*crm.BonusRule, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err != nil {
		return nil, crm.Invalid("body", "unreadable: %v", err)
	}
	return h.RuleFactory.ParseRule(string(body))
}

// =============================================================================
// BONUS CALCULATIONS
// =============================================================================

// ListBonusCalculations returns calculations in scope.
//
// Query: ?solicitorId= ?isPaid=true|false ?limit= ?offset=
func (h *Handler) ListBonusCalculations(w http.ResponseWriter, r *http.Request) {
	scope, _, ok := h.scope(w, r)
	if !ok {
		return
	}

	f := scope.Apply(paged(r, crm.Filter{}), "s.location_id")
	solicitorID, has, err := queryID(r, "solicitorId")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if has {
		f = f.Where(crm.Eq("bc.solicitor_id", solicitorID))
	}
	isPaid, has, err := queryBool(r, "isPaid")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if has {
		f = f.Where(crm.Eq("bc.is_paid", isPaid))
	}

	calcs, err := h.Store.ListCalculations(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	dtos := make([]BonusCalculationDTO, len(calcs))
	for i, c := range calcs {
		dtos[i] = toCalculationDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// MarkBonusPaid flags a calculation as paid out.
func (h *Handler) MarkBonusPaid(w http.ResponseWriter, r *http.Request) {
	_, id, ok := h.scope(w, r)
	if !ok {
		return
	}
	calcID, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	calc, err := h.Assigner.MarkPaid(r.Context(), id, calcID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCalculationDTO(*calc))
}
