package auth

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/donor-crm/crm"
)

// UserStore is the slice of crm.DirectoryStore that sessions need.
type UserStore interface {
	CreateUser(ctx context.Context, u crm.User) (*crm.User, error)
	GetUserByEmail(ctx context.Context, email string) (*crm.User, error)
	GetUser(ctx context.Context, id int64) (*crm.User, error)
}

// Service issues sessions and manages users.
type Service struct {
	users      UserStore
	secret     []byte
	ttl        time.Duration
	bcryptCost int
	logger     logrus.FieldLogger

	// dummyHash is compared against when the email is unknown so that
	// both branches of Login cost one bcrypt comparison.
	dummyHash string
}

// Session is the result of a successful login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      crm.User
}

// NewUser is the input of CreateUser.
type NewUser struct {
	Email      string
	Name       string
	Password   string
	Role       crm.Role
	LocationID *int64
}

// NewService creates a session service. bcryptCost 0 means bcrypt.DefaultCost.
func NewService(users UserStore, secret []byte, ttl time.Duration, bcryptCost int, logger logrus.FieldLogger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &Service{users: users, secret: secret, ttl: ttl, bcryptCost: bcryptCost, logger: logger}
	s.dummyHash, _ = s.hash("not-a-real-password")
	return s
}

// Secret exposes the signing key to the middleware.
func (s *Service) Secret() []byte { return s.secret }

// Login checks the credentials and signs a session token.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, crm.Invalid("email", "email and password are required")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		CheckPassword(password, s.dummyHash)
		return nil, crm.ErrInvalidCredentials
	}
	if !CheckPassword(password, user.PasswordHash) {
		s.logger.WithField("user_id", user.ID).Info("Login rejected")
		return nil, crm.ErrInvalidCredentials
	}

	token, expires, err := GenerateJWT(*user, s.secret, s.ttl)
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{"user_id": user.ID, "role": user.Role}).Info("User logged in")
	return &Session{Token: token, ExpiresAt: expires, User: *user}, nil
}

// CreateUser registers a user. Only super admins may call it.
func (s *Service) CreateUser(ctx context.Context, caller crm.Identity, in NewUser) (*crm.User, error) {
	if err := caller.RequireSuperAdmin(); err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return nil, crm.Invalid("email", "must be a valid email address")
	}
	if len(in.Password) < MinPasswordLength {
		return nil, crm.Invalid("password", "must be at least %d characters", MinPasswordLength)
	}
	role := in.Role
	if role == "" {
		role = crm.RoleUser
	}
	if !role.Valid() {
		return nil, crm.Invalid("role", "must be user, admin or super_admin")
	}
	if role == crm.RoleAdmin && in.LocationID == nil {
		return nil, crm.Invalid("locationId", "is required for admins")
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, err
	}
	user, err := s.users.CreateUser(ctx, crm.User{
		Email:        email,
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: hash,
		Role:         role,
		LocationID:   in.LocationID,
	})
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{"user_id": user.ID, "role": role, "created_by": caller.UserID}).Info("User created")
	return user, nil
}

// Resolve turns a token into the caller's current identity. The user row
// is re-read so that role and location changes apply immediately.
func (s *Service) Resolve(ctx context.Context, token string) (crm.Identity, error) {
	claims, err := ValidateJWT(token, s.secret)
	if err != nil {
		return crm.Anonymous, err
	}
	user, err := s.users.GetUser(ctx, claims.UserID)
	if err != nil {
		return crm.Anonymous, err
	}
	if user == nil {
		return crm.Anonymous, ErrInvalidJWT
	}
	return user.Identity(), nil
}

func (s *Service) hash(password string) (string, error) {
	if s.bcryptCost > 0 {
		return HashPassword(password, s.bcryptCost)
	}
	return HashPassword(password)
}
