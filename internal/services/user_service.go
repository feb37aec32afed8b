package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"haushaltsbuch/internal/auth"
	"haushaltsbuch/internal/core"
	"haushaltsbuch/internal/log"
	"haushaltsbuch/internal/storage"
)

const (
	MinPasswordLength = 8
	// MaxPasswordBytes is the bcrypt input limit.
	MaxPasswordBytes = 72
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrWeakPassword       = errors.New("password too short")
	ErrPasswordTooLong    = errors.New("password too long")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrSelfDemotion       = errors.New("admins cannot revoke their own role")
)

type UserOptions struct {
	// AdminEmail is granted the admin role on registration and login.
	AdminEmail string
	BcryptCost int
}

type UserService struct {
	store      storage.UserStore
	adminEmail string
	cost       int
	logger     *log.Logger
}

func NewUserService(store storage.UserStore, opts UserOptions, logger *log.Logger) *UserService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &UserService{
		store:      store,
		adminEmail: NormalizeEmail(opts.AdminEmail),
		cost:       opts.BcryptCost,
		logger:     logger.WithComponent(log.ComponentAuth),
	}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *UserService) isBootstrapAdmin(email string) bool {
	return s.adminEmail != "" && email == s.adminEmail
}

// Register creates an account. The configured admin address becomes admin
// immediately.
func (s *UserService) Register(ctx context.Context, email, password string) (core.User, error) {
	email = NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return core.User{}, ErrInvalidEmail
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return core.User{}, ErrWeakPassword
	}
	if len(password) > MaxPasswordBytes {
		return core.User{}, ErrPasswordTooLong
	}

	hash, err := auth.HashPassword(password, s.cost)
	if err != nil {
		return core.User{}, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.store.CreateUser(ctx, email, hash, s.isBootstrapAdmin(email))
	if err != nil {
		if errors.Is(err, storage.ErrEmailTaken) {
			return core.User{}, ErrEmailTaken
		}
		return core.User{}, fmt.Errorf("create user: %w", err)
	}

	s.logger.InfoContext(ctx, "User registered", log.FieldUserID, u.ID, "admin", u.IsAdmin)
	return u, nil
}

// Authenticate verifies credentials. Unknown addresses and wrong passwords are
// indistinguishable to the caller.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (core.User, error) {
	email = NormalizeEmail(email)
	u, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.User{}, ErrInvalidCredentials
		}
		return core.User{}, fmt.Errorf("load user: %w", err)
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return core.User{}, ErrInvalidCredentials
	}

	if s.isBootstrapAdmin(email) && !u.IsAdmin {
		if err := s.store.SetAdmin(ctx, u.ID, true); err != nil {
			return core.User{}, fmt.Errorf("elevate bootstrap admin: %w", err)
		}
		u.IsAdmin = true
		s.logger.InfoContext(ctx, "Bootstrap admin elevated", log.FieldUserID, u.ID)
	}
	return u, nil
}

// VerifyPassword re-checks the password of an already authenticated user.
func (s *UserService) VerifyPassword(ctx context.Context, userID int64, password string) error {
	u, err := s.store.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("load user: %w", err)
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return ErrInvalidCredentials
	}
	return nil
}

func (s *UserService) UserByID(ctx context.Context, id int64) (core.User, error) {
	return s.store.UserByID(ctx, id)
}

func (s *UserService) UserByEmail(ctx context.Context, email string) (core.User, error) {
	return s.store.UserByEmail(ctx, NormalizeEmail(email))
}

func (s *UserService) ListUsers(ctx context.Context) ([]core.User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// SetRole grants or revokes admin on target. actor is the acting admin, or 0
// for operator tools; an admin cannot revoke their own role.
func (s *UserService) SetRole(ctx context.Context, actor, target int64, isAdmin bool) error {
	if actor != 0 && actor == target && !isAdmin {
		return ErrSelfDemotion
	}
	if err := s.store.SetAdmin(ctx, target, isAdmin); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.ErrNotFound
		}
		return fmt.Errorf("set role: %w", err)
	}
	s.logger.InfoContext(ctx, "User role changed", log.FieldUserID, target, "admin", isAdmin, "actor", actor)
	return nil
}
