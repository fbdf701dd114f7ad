/*
identity.go - Caller identity and location scoping

PURPOSE:
  Every core operation receives the caller's Identity explicitly. From it
  the operation derives a Scope, which is the location-scoped access filter:
  admins see only their own location, super admins see everything, plain
  users and anonymous callers get nothing.

ROLES:
  user         authenticated, no access to CRM data
  admin        full access within LocationID
  super_admin  full access to every location

SCOPE USAGE:
  scope, err := id.Scope()
  if err != nil {
      return err // 401 / 403
  }
  filter = scope.Apply(filter, "c.location_id")
  if !scope.Allows(solicitor.LocationID) { ... }

SEE ALSO:
  - filter.go: Filter specification the scope appends to
  - auth/middleware.go: builds Identity from the session
*/
package crm

// Role is the caller's authorization level.
type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// Identity is the immutable session identity of a caller.
type Identity struct {
	UserID     int64
	Email      string
	Role       Role
	LocationID *int64
}

// Anonymous is the zero identity.
var Anonymous = Identity{}

func (id Identity) IsAuthenticated() bool { return id.UserID != 0 && id.Role != "" }
func (id Identity) IsSuperAdmin() bool    { return id.Role == RoleSuperAdmin }

// Scope resolves the location scope for CRM data access.
func (id Identity) Scope() (Scope, error) {
	if !id.IsAuthenticated() {
		return Scope{}, ErrUnauthenticated
	}
	switch id.Role {
	case RoleSuperAdmin:
		return Scope{all: true}, nil
	case RoleAdmin:
		if id.LocationID == nil {
			return Scope{}, &AccessError{Reason: "admin has no location"}
		}
		return Scope{locationID: *id.LocationID}, nil
	default:
		return Scope{}, &AccessError{Reason: "admin role required"}
	}
}

// RequireSuperAdmin fails unless the caller is a super admin.
func (id Identity) RequireSuperAdmin() error {
	if !id.IsAuthenticated() {
		return ErrUnauthenticated
	}
	if !id.IsSuperAdmin() {
		return &AccessError{Reason: "super admin role required"}
	}
	return nil
}

// =============================================================================
// SCOPE
// =============================================================================

// Scope restricts data access to one location, or to none for super admins.
type Scope struct {
	all        bool
	locationID int64
}

// Unrestricted is the scope of a super admin. Meant for internal jobs and seeds.
var Unrestricted = Scope{all: true}

// LocationScope returns a scope locked to one location.
func LocationScope(locationID int64) Scope { return Scope{locationID: locationID} }

// IsUnrestricted reports whether the scope bypasses location filtering.
func (s Scope) IsUnrestricted() bool { return s.all }

// LocationID returns the scoped location, ok=false when unrestricted.
func (s Scope) LocationID() (int64, bool) {
	if s.all {
		return 0, false
	}
	return s.locationID, true
}

// Allows reports whether a row owned by locationID is visible.
func (s Scope) Allows(locationID int64) bool {
	return s.all || s.locationID == locationID
}

// Apply appends the location predicate on column to f.
func (s Scope) Apply(f Filter, column string) Filter {
	if s.all {
		return f
	}
	return f.Where(Eq(column, s.locationID))
}

// Authorize returns an AccessError when the row is outside the scope.
func (s Scope) Authorize(entity string, id, locationID int64) error {
	if s.Allows(locationID) {
		return nil
	}
	return &AccessError{Entity: entity, ID: id, Reason: "belongs to another location"}
}
