/*
handlers.go - HTTP API handlers for the donor CRM

PURPOSE:
  Exposes the bonus engine and its supporting CRUD via REST API. Handles
  HTTP request/response, JSON serialization, and delegates to the store,
  the bonus assigner and the auth service.

ENDPOINTS:
  Auth:
    POST   /api/auth/login                              Issue a session
    POST   /api/auth/logout                             Clear the session cookie
    GET    /api/auth/me                                 Current user
    POST   /api/users                                   Create user (super admin)

  Directory (directory.go):
    GET/POST /api/locations, /api/contacts, /api/categories, /api/pledges

  Payments (payments.go):
    GET/POST /api/payments, GET /api/payments/{id}
    GET    /api/solicitor-payments                      Assigned/unassigned list
    POST   /api/solicitor-payments/{paymentId}/assign   Attach solicitor + bonus
    POST   /api/solicitor-payments/{paymentId}/unassign Detach solicitor

  Solicitors (solicitors.go):
    CRUD   /api/solicitors, rules under /api/solicitors/{id}/bonus-rules
    PUT/DELETE /api/bonus-rules/{id}
    GET    /api/bonus-calculations, POST /api/bonus-calculations/{id}/mark-paid

  Dashboard (dashboard.go):
    GET    /api/dashboard/summary | trend | solicitors

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Database access (crm.Store)
  - Assigner: Assign/unassign/mark-paid units of work
  - Auth: Login and user creation
  - RuleFactory: JSON to BonusRule conversion

REQUEST FLOW:
  1. Resolve the caller's location scope (401/403 before any query)
  2. Parse and validate input
  3. Call the store or the assigner
  4. Serialize response
  5. Map errors with statusFor

ERROR HANDLING:
  Errors are returned as JSON ErrorResponse with the status from statusFor:
  - 400: Validation errors, invalid input
  - 401: No session
  - 403: Role too low or other location
  - 404: Resource not found (or not visible to the caller)
  - 409: Conflict (duplicate, already paid, still referenced)
  - 500: Internal errors, logged with the request id, generic message

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - crm/errors.go: Error taxonomy
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/warp/donor-crm/auth"
	"github.com/warp/donor-crm/bonus"
	"github.com/warp/donor-crm/crm"
	"github.com/warp/donor-crm/factory"
	"github.com/warp/donor-crm/logging"
	"github.com/warp/donor-crm/monitoring"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is what the handlers need from persistence. Reset backs the demo
// scenarios.
type Store interface {
	crm.Store
	Reset(ctx context.Context) error
}

// Options configures a Handler.
type Options struct {
	Logger          logrus.FieldLogger
	Metrics         *monitoring.MetricsCollector
	CORSOrigins     []string
	EnableScenarios bool
	Version         string
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store       Store
	Assigner    *bonus.Assigner
	Auth        *auth.Service
	RuleFactory *factory.RuleFactory
	Metrics     *monitoring.MetricsCollector
	Health      *monitoring.HealthChecker
	Logger      logrus.FieldLogger

	CORSOrigins     []string
	EnableScenarios bool

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler wires a handler. The assigner reports to opts.Metrics when set.
func NewHandler(store Store, authSvc *auth.Service, opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	version := opts.Version
	if version == "" {
		version = "dev"
	}

	assignerOpts := []bonus.Option{bonus.WithLogger(logger)}
	if opts.Metrics != nil {
		assignerOpts = append(assignerOpts, bonus.WithObserver(opts.Metrics))
	}

	health := monitoring.NewHealthChecker("donor-crm", version)
	health.AddCheck("database", monitoring.DatabaseHealthCheck(store))

	return &Handler{
		Store:           store,
		Assigner:        bonus.NewAssigner(store, assignerOpts...),
		Auth:            authSvc,
		RuleFactory:     factory.NewRuleFactory(),
		Metrics:         opts.Metrics,
		Health:          health,
		Logger:          logger,
		CORSOrigins:     opts.CORSOrigins,
		EnableScenarios: opts.EnableScenarios,
	}
}

// =============================================================================
// AUTH HANDLERS
// =============================================================================

// Login checks credentials, sets the session cookie and returns the token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, LoginResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt.UTC().Format(time.RFC3339),
		User:      toUserDTO(session.User),
	})
}

// Logout clears the session cookie. Bearer tokens simply expire.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the caller's user record.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFrom(r.Context())
	if !id.IsAuthenticated() {
		h.fail(w, r, crm.ErrUnauthenticated)
		return
	}

	user, err := h.Store.GetUser(r.Context(), id.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if user == nil {
		h.fail(w, r, crm.ErrUnauthenticated)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(*user))
}

// CreateUser creates a user. Super admins only.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.Auth.CreateUser(r.Context(), auth.IdentityFrom(r.Context()), auth.NewUser{
		Email:      req.Email,
		Name:       req.Name,
		Password:   req.Password,
		Role:       crm.Role(strings.ToLower(strings.TrimSpace(req.Role))),
		LocationID: req.LocationID,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserDTO(*user))
}

// =============================================================================
// HELPERS
// =============================================================================

// scope resolves the caller's location scope, writing the error response
// when there is none.
func (h *Handler) scope(w http.ResponseWriter, r *http.Request) (crm.Scope, crm.Identity, bool) {
	id := auth.IdentityFrom(r.Context())
	scope, err := id.Scope()
	if err != nil {
		h.fail(w, r, err)
		return crm.Scope{}, id, false
	}
	return scope, id, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// statusFor maps the crm error taxonomy to HTTP.
func statusFor(err error) int {
	switch {
	case errors.Is(err, crm.ErrUnauthenticated), errors.Is(err, crm.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, crm.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, crm.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, crm.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, crm.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with its mapped status. Server errors are logged and
// hidden from the caller.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logging.FromContext(r.Context()).WithError(err).Error("Request failed")
		writeError(w, status, "Internal server error", nil)
		return
	}

	var ve *crm.ValidationError
	if errors.As(err, &ve) {
		writeJSON(w, status, ErrorResponse{Error: ve.Error(), Field: ve.Field})
		return
	}
	writeError(w, status, err.Error(), nil)
}

// decodeJSON decodes the body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// pathID parses a positive int64 URL parameter.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, crm.Invalid(name, "must be a positive integer")
	}
	return id, nil
}

// queryID parses an optional positive int64 query parameter.
func queryID(r *http.Request, name string) (int64, bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, false, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false, crm.Invalid(name, "must be a positive integer")
	}
	return id, true, nil
}

// queryBool parses an optional boolean query parameter.
func queryBool(r *http.Request, name string) (bool, bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false, crm.Invalid(name, "must be true or false")
	}
	return b, true, nil
}

// queryDate parses an optional YYYY-MM-DD query parameter.
func queryDate(r *http.Request, name string) (crm.Date, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return crm.Date{}, nil
	}
	d, err := crm.ParseDate(raw)
	if err != nil {
		return crm.Date{}, crm.Invalid(name, "use YYYY-MM-DD")
	}
	return d, nil
}

// paged applies ?limit=&offset= to f.
func paged(r *http.Request, f crm.Filter) crm.Filter {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit > 500 {
		limit = 500
	}
	return f.Page(limit, offset)
}

// ownLocation decides which location a new row belongs to. Admins always
// write to their own; super admins must name one.
func ownLocation(scope crm.Scope, requested *int64) (int64, error) {
	if loc, ok := scope.LocationID(); ok {
		if requested != nil && *requested != loc {
			return 0, &crm.AccessError{Entity: "location", ID: *requested, Reason: "belongs to another location"}
		}
		return loc, nil
	}
	if requested == nil || *requested <= 0 {
		return 0, crm.Invalid("locationId", "is required")
	}
	return *requested, nil
}
