package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"github.com/harentsoaR/dentist-booking/internal/models"
	"github.com/harentsoaR/dentist-booking/internal/store"
)

// BootstrapAdminEmail is the reserved login that creates the first ADMIN
// account when none exists yet.
const BootstrapAdminEmail = "adminAccount@gmail.com"

const bootstrapAdminPassword = "admin123"

type PasswordHasher interface {
	HashPassword(password string) (string, error)
	CheckPasswordHash(password, hash string) bool
}

type UserService struct {
	users  store.Users
	tokens *TokenService
	hasher PasswordHasher
	logger *zap.Logger
}

func NewUserService(users store.Users, tokens *TokenService, hasher PasswordHasher, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{users: users, tokens: tokens, hasher: hasher, logger: logger.Named("users")}
}

type LoginResult struct {
	Token string
	User  models.User
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Login verifies credentials and issues a token. The reserved admin email
// bootstraps the first ADMIN before the credential check runs.
func (s *UserService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		v := &ValidationError{}
		if email == "" {
			v.add("userName", "required")
		}
		if password == "" {
			v.add("password", "required")
		}
		return LoginResult{}, v
	}

	if email == normalizeEmail(BootstrapAdminEmail) {
		if err := s.ensureBootstrapAdmin(ctx); err != nil {
			return LoginResult{}, err
		}
	}

	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, fmt.Errorf("find user: %w", err)
	}
	if !s.hasher.CheckPasswordHash(password, u.Password) {
		s.logger.Info("login rejected", zap.Int64("user_id", u.ID))
		return LoginResult{}, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(ctx, u.ID)
	if err != nil {
		return LoginResult{}, err
	}
	s.logger.Info("login succeeded", zap.Int64("user_id", u.ID), zap.String("role", u.Role.String()))
	return LoginResult{Token: token, User: u}, nil
}

func (s *UserService) ensureBootstrapAdmin(ctx context.Context) error {
	admins, err := s.users.CountByRole(ctx, models.RoleAdmin)
	if err != nil {
		return fmt.Errorf("count admins: %w", err)
	}
	if admins > 0 {
		return nil
	}
	hash, err := s.hasher.HashPassword(bootstrapAdminPassword)
	if err != nil {
		return fmt.Errorf("hash bootstrap password: %w", err)
	}
	u, err := s.users.Create(ctx, models.User{
		Email:     normalizeEmail(BootstrapAdminEmail),
		Password:  hash,
		FirstName: "Admin",
		LastName:  "User",
		Role:      models.RoleAdmin,
	})
	if errors.Is(err, store.ErrDuplicate) {
		// a concurrent login created it first
		return nil
	}
	if err != nil {
		return fmt.Errorf("create bootstrap admin: %w", err)
	}
	s.logger.Warn("bootstrap admin created, change its password", zap.Int64("user_id", u.ID))
	return nil
}

// Me returns the caller's own profile.
func (s *UserService) Me(ctx context.Context, caller Principal) (models.User, error) {
	u, err := s.users.FindByID(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.User{}, notFound("User not found")
		}
		return models.User{}, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

// requireAdmin re-reads the caller's role; a token minted before a demotion
// must not keep admin rights.
func (s *UserService) requireAdmin(ctx context.Context, caller Principal) error {
	u, err := s.users.FindByID(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return forbidden("Admin access required")
		}
		return fmt.Errorf("find caller: %w", err)
	}
	if u.Role != models.RoleAdmin {
		return forbidden("Admin access required")
	}
	return nil
}

func (s *UserService) ListUsers(ctx context.Context, caller Principal) ([]models.User, error) {
	if err := s.requireAdmin(ctx, caller); err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// UpdateRole changes another user's role. Changing one's own role is always
// refused, whatever role is requested.
func (s *UserService) UpdateRole(ctx context.Context, caller Principal, targetID int64, role string) (models.User, error) {
	if caller.UserID == targetID {
		return models.User{}, forbidden("Cannot modify your own role")
	}
	if err := s.requireAdmin(ctx, caller); err != nil {
		return models.User{}, err
	}
	newRole, ok := models.ParseRole(role)
	if !ok {
		return models.User{}, invalid("role", "must be one of ADMIN, DENTIST, STAFF, PATIENT")
	}

	u, err := s.users.UpdateRole(ctx, targetID, newRole)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.User{}, notFound("User not found")
		}
		return models.User{}, fmt.Errorf("update role: %w", err)
	}
	s.logger.Info("role changed",
		zap.Int64("by", caller.UserID),
		zap.Int64("user_id", targetID),
		zap.String("role", newRole.String()),
	)
	return u, nil
}

type RegisterUserRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
	Role      string `json:"role" binding:"required"`
}

// Register creates an account on behalf of an admin.
func (s *UserService) Register(ctx context.Context, caller Principal, req RegisterUserRequest) (models.User, error) {
	if err := s.requireAdmin(ctx, caller); err != nil {
		return models.User{}, err
	}

	v := &ValidationError{}
	email := normalizeEmail(req.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		v.add("email", "must be a valid email address")
	}
	if len(req.Password) < 8 {
		v.add("password", "must be at least 8 characters")
	}
	if strings.TrimSpace(req.FirstName) == "" {
		v.add("firstName", "required")
	}
	if strings.TrimSpace(req.LastName) == "" {
		v.add("lastName", "required")
	}
	role, ok := models.ParseRole(req.Role)
	if !ok {
		v.add("role", "must be one of ADMIN, DENTIST, STAFF, PATIENT")
	}
	if err := v.orNil(); err != nil {
		return models.User{}, err
	}

	hash, err := s.hasher.HashPassword(req.Password)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}
	u, err := s.users.Create(ctx, models.User{
		Email:     email,
		Password:  hash,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Role:      role,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return models.User{}, conflict("An account with this email already exists")
		}
		return models.User{}, fmt.Errorf("create user: %w", err)
	}
	s.logger.Info("user registered", zap.Int64("by", caller.UserID), zap.Int64("user_id", u.ID))
	return u, nil
}
