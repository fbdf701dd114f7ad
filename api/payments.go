package api

import (
	"net/http"
	"strings"

	"github.com/warp/donor-crm/crm"
)

// =============================================================================
// PAYMENTS
// =============================================================================

// ListPayments returns payments in scope.
//
// Query: ?pledgeId= ?status= ?from=YYYY-MM-DD ?to=YYYY-MM-DD ?limit= ?offset=
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	scope, _, ok := h.scope(w, r)
	if !ok {
		return
	}

	f := scope.Apply(paged(r, crm.Filter{}), "c.location_id")
	f, err := paymentFilters(r, f)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.writePayments(w, r, f)
}

// GetPayment returns a payment with its bonus calculation.
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
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
	pc, err := h.Store.GetPaymentContext(ctx, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if pc == nil || !scope.Allows(pc.LocationID) {
		h.fail(w, r, crm.NotFound("payment", id))
		return
	}

	calc, err := h.Store.GetCalculationForPayment(ctx, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PaymentDetailDTO{
		PaymentDTO:  toPaymentDTO(pc.Payment),
		Calculation: toCalculationDTOPtr(calc),
	})
}

// CreatePayment records a payment against a pledge in scope. Bonus fields
// are only ever set by assignment.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	scope, _, ok := h.scope(w, r)
	if !ok {
		return
	}

	var req CreatePaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.PledgeID <= 0 {
		h.fail(w, r, crm.Invalid("pledgeId", "is required"))
		return
	}
	amount, err := positiveAmount("amount", string(req.Amount))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	payment := crm.Payment{
		PledgeID:       req.PledgeID,
		PayerContactID: req.PayerContactID,
		Amount:         amount,
		Currency:       strings.ToUpper(strings.TrimSpace(req.Currency)),
		Date:           crm.Today(),
		Status:         crm.PaymentCompleted,
		Method:         strings.TrimSpace(req.PaymentMethod),
		Reference:      strings.TrimSpace(req.ReferenceNumber),
	}
	if req.AmountUSD != nil {
		usd, err := positiveAmount("amountUsd", string(*req.AmountUSD))
		if err != nil {
			h.fail(w, r, err)
			return
		}
		payment.AmountUSD = &usd
	}
	if req.PaymentDate != "" {
		if payment.Date, err = crm.ParseDate(req.PaymentDate); err != nil {
			h.fail(w, r, crm.Invalid("paymentDate", "use YYYY-MM-DD"))
			return
		}
	}
	if req.Status != "" {
		payment.Status = crm.PaymentStatus(strings.ToLower(req.Status))
		if !payment.Status.Valid() {
			h.fail(w, r, crm.Invalid("status", "must be pending, completed, failed, refunded or cancelled"))
			return
		}
	}

	ctx := r.Context()
	pledge, loc, err := h.Store.GetPledge(ctx, req.PledgeID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if pledge == nil || !scope.Allows(loc) {
		h.fail(w, r, crm.NotFound("pledge", req.PledgeID))
		return
	}
	if req.PayerContactID != nil {
		if _, err := h.visibleContact(r, scope, *req.PayerContactID); err != nil {
			h.fail(w, r, err)
			return
		}
	}

	created, err := h.Store.CreatePayment(ctx, payment)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentDTO(*created))
}

// =============================================================================
// SOLICITOR ASSIGNMENT
// =============================================================================

// ListSolicitorPayments lists payments by assignment state.
//
// Query: ?assigned=true|false ?solicitorId= plus the ListPayments filters.
func (h *Handler) ListSolicitorPayments(w http.ResponseWriter, r *http.Request) {
	scope, _, ok := h.scope(w, r)
	if !ok {
		return
	}

	f := scope.Apply(paged(r, crm.Filter{}), "c.location_id")
	f, err := paymentFilters(r, f)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	assigned, has, err := queryBool(r, "assigned")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if has {
		if assigned {
			f = f.Where(crm.NotNull("p.solicitor_id"))
		} else {
			f = f.Where(crm.IsNull("p.solicitor_id"))
		}
	}
	solicitorID, has, err := queryID(r, "solicitorId")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if has {
		f = f.Where(crm.Eq("p.solicitor_id", solicitorID))
	}

	h.writePayments(w, r, f)
}

// AssignSolicitor attaches a solicitor to a payment and computes its bonus.
func (h *Handler) AssignSolicitor(w http.ResponseWriter, r *http.Request) {
	_, id, ok := h.scope(w, r)
	if !ok {
		return
	}
	paymentID, err := pathID(r, "paymentId")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req AssignRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.Assigner.Assign(r.Context(), id, paymentID, req.SolicitorID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AssignResponse{
		Payment:         toPaymentDTO(res.Payment),
		BonusCalculated: res.BonusCalculated(),
		Calculation:     toCalculationDTOPtr(res.Calculation),
	})
}

// UnassignSolicitor detaches the solicitor and drops the bonus.
func (h *Handler) UnassignSolicitor(w http.ResponseWriter, r *http.Request) {
	_, id, ok := h.scope(w, r)
	if !ok {
		return
	}
	paymentID, err := pathID(r, "paymentId")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	payment, err := h.Assigner.Unassign(r.Context(), id, paymentID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UnassignResponse{Payment: toPaymentDTO(*payment)})
}

// =============================================================================
// HELPERS
// =============================================================================

func paymentFilters(r *http.Request, f crm.Filter) (crm.Filter, error) {
	pledgeID, has, err := queryID(r, "pledgeId")
	if err != nil {
		return f, err
	}
	if has {
		f = f.Where(crm.Eq("p.pledge_id", pledgeID))
	}
	if status := r.URL.Query().Get("status"); status != "" {
		if !crm.PaymentStatus(status).Valid() {
			return f, crm.Invalid("status", "unknown payment status")
		}
		f = f.Where(crm.Eq("p.status", status))
	}
	from, err := queryDate(r, "from")
	if err != nil {
		return f, err
	}
	if !from.IsZero() {
		f = f.Where(crm.Gte("p.payment_date", from.String()))
	}
	to, err := queryDate(r, "to")
	if err != nil {
		return f, err
	}
	if !to.IsZero() {
		f = f.Where(crm.Lte("p.payment_date", to.String()))
	}
	return f, nil
}

func (h *Handler) writePayments(w http.ResponseWriter, r *http.Request, f crm.Filter) {
	payments, err := h.Store.ListPayments(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	dtos := make([]PaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = toPaymentDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}
