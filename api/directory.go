package api

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/donor-crm/auth"
	"github.com/warp/donor-crm/crm"
)

// =============================================================================
// LOCATIONS
// =============================================================================

// ListLocations returns every location to super admins and the caller's own
// location to admins.
func (h *Handler) ListLocations(w http.ResponseWriter, r *http.Request) {
	scope, _, ok := h.scope(w, r)
	if !ok {
		return
	}

	locations, err := h.Store.ListLocations(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	dtos := make([]LocationDTO, 0, len(locations))
	for _, l := range locations {
		if scope.Allows(l.ID) {
			dtos = append(dtos, toLocationDTO(l))
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateLocation creates a location. Super admins only.
func (h *Handler) CreateLocation(w http.ResponseWriter, r *http.Request) {
	if err := auth.IdentityFrom(r.Context()).RequireSuperAdmin(); err != nil {
		h.fail(w, r, err)
		return
	}

	var req CreateLocationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		h.fail(w, r, crm.Invalid("name", "is required"))
		return
	}

	loc, err := h.Store.CreateLocation(r.Context(), crm.Location{Name: name})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLocationDTO(*loc))
}

// =============================================================================
// CONTACTS
// =============================================================================

// ListContacts returns contacts in scope. ?search= matches the last name.
func (h *Handler) ListContacts(w http.ResponseWriter, r *http.Request) {
	scope, _, ok := h.scope(w, r)
	if !ok {
		return
	}

	f := scope.Apply(paged(r, crm.Filter{}), "c.location_id")
	if search := strings.TrimSpace(r.URL.Query().Get("search")); search != "" {
		f = f.Where(crm.Like("c.last_name", search))
	}

	contacts, err := h.Store.ListContacts(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	dtos := make([]ContactDTO, len(contacts))
	for i, c := range contacts {
		dtos[i] = toContactDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetContact returns a single contact.
func (h *Handler) GetContact(w http.ResponseWriter, r *http.Request) {
	scope, _, ok := h.scope(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	contact, err := h.visibleContact(r, scope, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toContactDTO(*contact))
}

// CreateContact creates a contact in the caller's location.
func (h *Handler) CreateContact(w http.ResponseWriter, r *http.Request) {
	scope, _, ok := h.scope(w, r)
	if !ok {
		return
	}

	var req CreateContactRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.FirstName) == "" {
		h.fail(w, r, crm.Invalid("firstName", "is required"))
		return
	}
	loc, err := ownLocation(scope, req.LocationID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	contact, err := h.Store.CreateContact(r.Context(), crm.Contact{
		FirstName:  strings.TrimSpace(req.FirstName),
		LastName:   strings.TrimSpace(req.LastName),
		Email:      strings.TrimSpace(req.Email),
		LocationID: loc,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toContactDTO(*contact))
}

// visibleContact loads a contact, hiding other locations behind 404.
func (h *Handler) visibleContact(r *http.Request, scope crm.Scope, id int64) (*crm.Contact, error) {
	contact, err := h.Store.GetContact(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if contact == nil || !scope.Allows(contact.LocationID) {
		return nil, crm.NotFound("contact", id)
	}
	return contact, nil
}

// =============================================================================
// CATEGORIES
// =============================================================================

// ListCategories returns every category. Categories are shared by all
// locations.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := h.scope(w, r); !ok {
		return
	}

	categories, err := h.Store.ListCategories(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	dtos := make([]CategoryDTO, len(categories))
	for i, c := range categories {
		dtos[i] = toCategoryDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateCategory creates a category. Super admins only.
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	if err := auth.IdentityFrom(r.Context()).RequireSuperAdmin(); err != nil {
		h.fail(w, r, err)
		return
	}

	var req CreateCategoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		h.fail(w, r, crm.Invalid("name", "is required"))
		return
	}

	category, err := h.Store.CreateCategory(r.Context(), crm.Category{Name: name})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCategoryDTO(*category))
}

// =============================================================================
// PLEDGES
// =============================================================================

// ListPledges returns pledges in scope, optionally for one ?contactId=.
func (h *Handler) ListPledges(w http.ResponseWriter, r *http.Request) {
	scope, _, ok := h.scope(w, r)
	if !ok {
		return
	}

	f := scope.Apply(paged(r, crm.Filter{}), "c.location_id")
	contactID, has, err := queryID(r, "contactId")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if has {
		f = f.Where(crm.Eq("pl.contact_id", contactID))
	}

	pledges, err := h.Store.ListPledges(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	dtos := make([]PledgeDTO, len(pledges))
	for i, p := range pledges {
		dtos[i] = toPledgeDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreatePledge records a pledge for a contact in scope.
func (h *Handler) CreatePledge(w http.ResponseWriter, r *http.Request) {
	scope, _, ok := h.scope(w, r)
	if !ok {
		return
	}

	var req CreatePledgeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ContactID <= 0 {
		h.fail(w, r, crm.Invalid("contactId", "is required"))
		return
	}
	amount, err := positiveAmount("originalAmount", string(req.OriginalAmount))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	pledgeDate := crm.Today()
	if req.PledgeDate != "" {
		if pledgeDate, err = crm.ParseDate(req.PledgeDate); err != nil {
			h.fail(w, r, crm.Invalid("pledgeDate", "use YYYY-MM-DD"))
			return
		}
	}

	ctx := r.Context()
	if _, err := h.visibleContact(r, scope, req.ContactID); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.CategoryID != nil {
		category, err := h.Store.GetCategory(ctx, *req.CategoryID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if category == nil {
			h.fail(w, r, crm.NotFound("category", *req.CategoryID))
			return
		}
	}

	pledge, err := h.Store.CreatePledge(ctx, crm.Pledge{
		ContactID:      req.ContactID,
		CategoryID:     req.CategoryID,
		OriginalAmount: amount,
		Currency:       strings.ToUpper(strings.TrimSpace(req.Currency)),
		Description:    req.Description,
		PledgeDate:     pledgeDate,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPledgeDTO(*pledge))
}

// positiveAmount parses a money field that must be > 0.
func positiveAmount(field, raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, crm.Invalid(field, "is required")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, crm.Invalid(field, "must be a number")
	}
	if !d.IsPositive() {
		return decimal.Zero, crm.Invalid(field, "must be positive")
	}
	return d, nil
}
