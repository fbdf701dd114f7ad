/*
scenarios.go - Demo scenarios and YAML seed loading

PURPOSE:
  Populates the database with realistic data for demos and manual testing.
  A scenario is a YAML seed document embedded in the binary; the same
  format can be loaded from disk at startup (-seed / SEED_FILE).

AVAILABLE SCENARIOS:
  two-campuses:  Boston and Denver, one admin each, donation and tuition
                 rules, a mix of assigned and unassigned payments
  tiered-rules:  One location, overlapping rules by priority, amount bands
                 and a rule whose window already ended

SEED FORMAT:
  categories: [General Donation, Tuition]
  users:                      # users without a location (super admins)
    - {email, name, password, role}
  locations:
    - name: Boston
      users: [{email, name, password, role}]
      contacts: [{key, firstName, lastName, email}]
      solicitors:
        - code: BOS-001
          contact: <contact key>
          rules: [<factory.RuleJSON>]
      pledges:
        - contact: <contact key>
          category: <category name>
          amount: 5000
          date: 2025-01-15
          payments:
            - {amount, date, status, method, payer, solicitor: <code>}

  Payments naming a solicitor are assigned through the bonus Assigner, so
  seeded bonuses are computed exactly as the API would compute them.

USAGE VIA API (ENABLE_SCENARIOS=true, super admin):
  POST /api/scenarios/load
  {"scenarioId": "two-campuses"}

NOTE:
  Scenarios reset the database, including users. The caller's session no
  longer resolves afterwards; log in again with a seeded account.

SEE ALSO:
  - factory/rule.go: Rule definitions used under solicitors[].rules
  - cmd/server/main.go: -seed flag
*/
package api

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/donor-crm/auth"
	"github.com/warp/donor-crm/crm"
	"github.com/warp/donor-crm/factory"
	"gopkg.in/yaml.v3"
)

//go:embed scenarios/*.yaml
var scenarioFS embed.FS

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "two-campuses",
		Name:        "Two Campuses",
		Description: "Boston and Denver admins, donation and tuition rules, assigned and unassigned payments",
	},
	{
		ID:          "tiered-rules",
		Name:        "Tiered Rules",
		Description: "Overlapping rules resolved by priority, amount bands and an expired rule window",
	},
}

// seedIdentity is the caller used while seeding.
var seedIdentity = crm.Identity{UserID: -1, Email: "seed", Role: crm.RoleSuperAdmin}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	if err := auth.IdentityFrom(r.Context()).RequireSuperAdmin(); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if err := auth.IdentityFrom(r.Context()).RequireSuperAdmin(); err != nil {
		h.fail(w, r, err)
		return
	}

	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the database and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	if err := auth.IdentityFrom(r.Context()).RequireSuperAdmin(); err != nil {
		h.fail(w, r, err)
		return
	}

	var req LoadScenarioRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	summary, err := h.LoadScenarioByID(r.Context(), req.ScenarioID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"scenario": req.ScenarioID,
		"summary":  summary,
	})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := auth.IdentityFrom(r.Context()).RequireSuperAdmin(); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Store.Reset(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}

	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// LoadScenarioByID resets the store and loads the named embedded scenario.
func (h *Handler) LoadScenarioByID(ctx context.Context, id string) (*SeedSummary, error) {
	known := false
	for _, s := range scenarios {
		if s.ID == id {
			known = true
			break
		}
	}
	if !known {
		return nil, crm.Invalid("scenarioId", "unknown scenario %q", id)
	}

	f, err := scenarioFS.Open("scenarios/" + id + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to open scenario %s: %w", id, err)
	}
	defer f.Close()

	if err := h.Store.Reset(ctx); err != nil {
		return nil, err
	}
	summary, err := h.LoadSeed(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to load scenario %s: %w", id, err)
	}

	h.mu.Lock()
	h.currentScenario = id
	h.mu.Unlock()

	h.Logger.WithFields(logrus.Fields{
		"scenario":   id,
		"locations":  summary.Locations,
		"payments":   summary.Payments,
		"assigned":   summary.Assigned,
		"bonus_rows": summary.Calculations,
	}).Info("Scenario loaded")
	return summary, nil
}

// =============================================================================
// SEED FORMAT
// =============================================================================

// Seed is a YAML seed document.
type Seed struct {
	Categories []string       `yaml:"categories"`
	Users      []SeedUser     `yaml:"users"`
	Locations  []SeedLocation `yaml:"locations"`
}

type SeedUser struct {
	Email    string `yaml:"email"`
	Name     string `yaml:"name"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

type SeedLocation struct {
	Name       string          `yaml:"name"`
	Users      []SeedUser      `yaml:"users"`
	Contacts   []SeedContact   `yaml:"contacts"`
	Solicitors []SeedSolicitor `yaml:"solicitors"`
	Pledges    []SeedPledge    `yaml:"pledges"`
}

type SeedContact struct {
	Key       string `yaml:"key"`
	FirstName string `yaml:"firstName"`
	LastName  string `yaml:"lastName"`
	Email     string `yaml:"email"`
}

type SeedSolicitor struct {
	Code           string             `yaml:"code"`
	Status         string             `yaml:"status"`
	Contact        string             `yaml:"contact"`
	CommissionRate string             `yaml:"commissionRate"`
	HireDate       string             `yaml:"hireDate"`
	Notes          string             `yaml:"notes"`
	Rules          []factory.RuleJSON `yaml:"rules"`
}

type SeedPledge struct {
	Contact     string        `yaml:"contact"`
	Category    string        `yaml:"category"`
	Amount      string        `yaml:"amount"`
	Currency    string        `yaml:"currency"`
	Date        string        `yaml:"date"`
	Description string        `yaml:"description"`
	Payments    []SeedPayment `yaml:"payments"`
}

type SeedPayment struct {
	Amount    string `yaml:"amount"`
	Date      string `yaml:"date"`
	Status    string `yaml:"status"`
	Method    string `yaml:"method"`
	Payer     string `yaml:"payer"`
	Solicitor string `yaml:"solicitor"`
}

// SeedSummary counts what a seed created.
type SeedSummary struct {
	Locations    int `json:"locations"`
	Users        int `json:"users"`
	Contacts     int `json:"contacts"`
	Solicitors   int `json:"solicitors"`
	Rules        int `json:"rules"`
	Pledges      int `json:"pledges"`
	Payments     int `json:"payments"`
	Assigned     int `json:"assigned"`
	Calculations int `json:"calculations"`
}

// =============================================================================
// SEED LOADER
// =============================================================================

// LoadSeed decodes a YAML seed document from r and writes it to the store.
// It does not reset first.
func (h *Handler) LoadSeed(ctx context.Context, r io.Reader) (*SeedSummary, error) {
	var seed Seed
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil && !errors.Is(err, io.EOF) {
		return nil, crm.Invalid("seed", "malformed YAML: %v", err)
	}

	sl := &seedLoader{h: h, categories: make(map[string]int64)}
	if err := sl.load(ctx, seed); err != nil {
		return nil, err
	}
	return &sl.summary, nil
}

type seedLoader struct {
	h          *Handler
	categories map[string]int64
	summary    SeedSummary
}

func (sl *seedLoader) load(ctx context.Context, seed Seed) error {
	existing, err := sl.h.Store.ListCategories(ctx)
	if err != nil {
		return err
	}
	for _, c := range existing {
		sl.categories[c.Name] = c.ID
	}
	for _, name := range seed.Categories {
		if _, ok := sl.categories[name]; ok {
			continue
		}
		c, err := sl.h.Store.CreateCategory(ctx, crm.Category{Name: name})
		if err != nil {
			return fmt.Errorf("category %q: %w", name, err)
		}
		sl.categories[name] = c.ID
	}

	for _, u := range seed.Users {
		if err := sl.user(ctx, u, nil); err != nil {
			return err
		}
	}
	for _, loc := range seed.Locations {
		if err := sl.location(ctx, loc); err != nil {
			return fmt.Errorf("location %q: %w", loc.Name, err)
		}
	}
	return nil
}

func (sl *seedLoader) user(ctx context.Context, u SeedUser, locationID *int64) error {
	role := crm.Role(u.Role)
	if role == "" {
		role = crm.RoleUser
	}
	if _, err := sl.h.Auth.CreateUser(ctx, seedIdentity, auth.NewUser{
		Email:      u.Email,
		Name:       u.Name,
		Password:   u.Password,
		Role:       role,
		LocationID: locationID,
	}); err != nil {
		return fmt.Errorf("user %q: %w", u.Email, err)
	}
	sl.summary.Users++
	return nil
}

func (sl *seedLoader) location(ctx context.Context, in SeedLocation) error {
	store := sl.h.Store
	loc, err := store.CreateLocation(ctx, crm.Location{Name: in.Name})
	if err != nil {
		return err
	}
	sl.summary.Locations++

	for _, u := range in.Users {
		if err := sl.user(ctx, u, &loc.ID); err != nil {
			return err
		}
	}

	contacts := make(map[string]int64, len(in.Contacts))
	for _, c := range in.Contacts {
		created, err := store.CreateContact(ctx, crm.Contact{
			FirstName:  c.FirstName,
			LastName:   c.LastName,
			Email:      c.Email,
			LocationID: loc.ID,
		})
		if err != nil {
			return fmt.Errorf("contact %q: %w", c.Key, err)
		}
		key := c.Key
		if key == "" {
			key = created.FullName()
		}
		contacts[key] = created.ID
		sl.summary.Contacts++
	}

	solicitors := make(map[string]int64, len(in.Solicitors))
	for _, s := range in.Solicitors {
		id, err := sl.solicitor(ctx, s, loc.ID, contacts)
		if err != nil {
			return fmt.Errorf("solicitor %q: %w", s.Code, err)
		}
		solicitors[s.Code] = id
	}

	for i, p := range in.Pledges {
		if err := sl.pledge(ctx, p, contacts, solicitors); err != nil {
			return fmt.Errorf("pledge #%d: %w", i+1, err)
		}
	}
	return nil
}

func (sl *seedLoader) solicitor(ctx context.Context, in SeedSolicitor, locationID int64, contacts map[string]int64) (int64, error) {
	sol := crm.Solicitor{
		Code:       in.Code,
		Status:     crm.SolicitorStatus(in.Status),
		Notes:      in.Notes,
		LocationID: locationID,
	}
	if in.Contact != "" {
		id, ok := contacts[in.Contact]
		if !ok {
			return 0, crm.Invalid("contact", "unknown contact key %q", in.Contact)
		}
		sol.ContactID = &id
	}
	if in.CommissionRate != "" {
		rate, err := decimal.NewFromString(in.CommissionRate)
		if err != nil {
			return 0, crm.Invalid("commissionRate", "must be a number")
		}
		sol.CommissionRate = &rate
	}
	if in.HireDate != "" {
		d, err := crm.ParseDate(in.HireDate)
		if err != nil {
			return 0, crm.Invalid("hireDate", "use YYYY-MM-DD")
		}
		sol.HireDate = &d
	}

	created, err := sl.h.Store.CreateSolicitor(ctx, sol)
	if err != nil {
		return 0, err
	}
	sl.summary.Solicitors++

	for _, rj := range in.Rules {
		rule, err := sl.h.RuleFactory.FromJSON(rj)
		if err != nil {
			return 0, fmt.Errorf("rule %q: %w", rj.Name, err)
		}
		rule.SolicitorID = created.ID
		if _, err := sl.h.Store.CreateRule(ctx, *rule); err != nil {
			return 0, fmt.Errorf("rule %q: %w", rj.Name, err)
		}
		sl.summary.Rules++
	}
	return created.ID, nil
}

func (sl *seedLoader) pledge(ctx context.Context, in SeedPledge, contacts, solicitors map[string]int64) error {
	store := sl.h.Store
	contactID, ok := contacts[in.Contact]
	if !ok {
		return crm.Invalid("contact", "unknown contact key %q", in.Contact)
	}
	amount, err := positiveAmount("amount", in.Amount)
	if err != nil {
		return err
	}
	pledge := crm.Pledge{
		ContactID:      contactID,
		OriginalAmount: amount,
		Currency:       strings.ToUpper(in.Currency),
		Description:    in.Description,
	}
	if in.Category != "" {
		id, ok := sl.categories[in.Category]
		if !ok {
			return crm.Invalid("category", "unknown category %q", in.Category)
		}
		pledge.CategoryID = &id
	}
	pledge.PledgeDate = crm.Today()
	if in.Date != "" {
		if pledge.PledgeDate, err = crm.ParseDate(in.Date); err != nil {
			return crm.Invalid("date", "use YYYY-MM-DD")
		}
	}

	created, err := store.CreatePledge(ctx, pledge)
	if err != nil {
		return err
	}
	sl.summary.Pledges++

	for i, p := range in.Payments {
		if err := sl.payment(ctx, created.ID, p, contacts, solicitors); err != nil {
			return fmt.Errorf("payment #%d: %w", i+1, err)
		}
	}
	return nil
}

func (sl *seedLoader) payment(ctx context.Context, pledgeID int64, in SeedPayment, contacts, solicitors map[string]int64) error {
	amount, err := positiveAmount("amount", in.Amount)
	if err != nil {
		return err
	}
	payment := crm.Payment{
		PledgeID: pledgeID,
		Amount:   amount,
		Status:   crm.PaymentStatus(in.Status),
		Method:   in.Method,
	}
	if payment.Date, err = crm.ParseDate(in.Date); err != nil {
		return crm.Invalid("date", "use YYYY-MM-DD")
	}
	if in.Payer != "" {
		id, ok := contacts[in.Payer]
		if !ok {
			return crm.Invalid("payer", "unknown contact key %q", in.Payer)
		}
		payment.PayerContactID = &id
	}

	created, err := sl.h.Store.CreatePayment(ctx, payment)
	if err != nil {
		return err
	}
	sl.summary.Payments++

	if in.Solicitor == "" {
		return nil
	}
	solicitorID, ok := solicitors[in.Solicitor]
	if !ok {
		return crm.Invalid("solicitor", "unknown solicitor code %q", in.Solicitor)
	}
	res, err := sl.h.Assigner.Assign(ctx, seedIdentity, created.ID, solicitorID)
	if err != nil {
		return err
	}
	sl.summary.Assigned++
	if res.BonusCalculated() {
		sl.summary.Calculations++
	}
	return nil
}
