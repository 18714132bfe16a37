package service

import (
	"context"
	"crypto/subtle"
	"log"
	"net/http"
	"net/mail"
	"strings"

	"gorm.io/gorm"
	"libraryhub.com/internal/auth"
	"libraryhub.com/internal/config"
	"libraryhub.com/internal/constants"
	"libraryhub.com/internal/domain"
	"libraryhub.com/internal/model"
)

// AuthServiceImpl implements domain.AuthService
type AuthServiceImpl struct {
	db     *gorm.DB
	tokens *auth.TokenManager
	cfg    config.AuthConfig
	events domain.EventPublisher
}

func NewAuthService(db *gorm.DB, tokens *auth.TokenManager, cfg config.AuthConfig, events domain.EventPublisher) *AuthServiceImpl {
	return &AuthServiceImpl{db: db, tokens: tokens, cfg: cfg, events: events}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateRegistration(in *domain.RegisterInput) error {
	in.Email = normalizeEmail(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)

	var v domain.Validator
	addr, err := mail.ParseAddress(in.Email)
	v.Check(err == nil && addr.Address == in.Email, "email", "must be a valid email address")
	v.Check(len(in.Password) >= 6, "password", "must be at least 6 characters")
	v.Check(len(in.FirstName) >= 2, "firstName", "must be at least 2 characters")
	v.Check(len(in.LastName) >= 2, "lastName", "must be at least 2 characters")
	return v.Err()
}

func (s *AuthServiceImpl) createUser(ctx context.Context, in domain.RegisterInput, role model.UserRole, verified bool) (*model.User, error) {
	if err := validateRegistration(&in); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password, s.cfg.BcryptCost)
	if err != nil {
		return nil, domain.NewInternalError("failed to hash password", err)
	}

	user := model.User{
		Email:      in.Email,
		Password:   hash,
		FirstName:  in.FirstName,
		LastName:   in.LastName,
		Role:       role,
		IsActive:   true,
		IsVerified: verified,
	}

	// soft-deleted accounts still hold their email
	var taken int64
	if err := s.db.WithContext(ctx).Unscoped().Model(&model.User{}).Where("email = ?", user.Email).Count(&taken).Error; err != nil {
		return nil, domain.NewInternalError("failed to check email", err)
	}
	if taken > 0 {
		return nil, domain.NewConflictError("User already exists")
	}

	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isDuplicate(err) {
			return nil, domain.NewConflictError("User already exists")
		}
		return nil, domain.NewInternalError("failed to create user", err)
	}

	log.Printf("AuthService: Registered %s user %s", user.Role, user.Email)
	s.events.Publish(ctx, constants.EventUserRegistered, map[string]interface{}{
		"userId": user.ID,
		"role":   user.Role,
	})
	return &user, nil
}

func (s *AuthServiceImpl) issue(user *model.User) (*domain.AuthResult, error) {
	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, domain.NewInternalError("failed to issue token", err)
	}
	return &domain.AuthResult{Token: token, User: user}, nil
}

// Register creates an active MEMBER; verification depends on auth.auto_verify.
func (s *AuthServiceImpl) Register(ctx context.Context, in domain.RegisterInput) (*domain.AuthResult, error) {
	user, err := s.createUser(ctx, in, model.RoleMember, s.cfg.AutoVerify)
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

// RegisterAdmin creates a verified ADMIN when code matches the configured one.
// An empty configured code disables the endpoint.
func (s *AuthServiceImpl) RegisterAdmin(ctx context.Context, in domain.RegisterInput, code string) (*domain.AuthResult, error) {
	if s.cfg.AdminRegistrationCode == "" {
		return nil, domain.NewForbiddenError("Admin registration is disabled")
	}
	if subtle.ConstantTimeCompare([]byte(code), []byte(s.cfg.AdminRegistrationCode)) != 1 {
		return nil, domain.NewForbiddenError("Invalid registration code")
	}

	user, err := s.createUser(ctx, in, model.RoleAdmin, true)
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

func (s *AuthServiceImpl) Login(ctx context.Context, email, password string) (*domain.AuthResult, error) {
	invalid := &domain.AppError{Code: http.StatusUnauthorized, Message: "Invalid credentials", Err: domain.ErrInvalidCredentials}

	var user model.User
	if err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error; err != nil {
		if isNotFound(err) {
			return nil, invalid
		}
		return nil, domain.NewInternalError("failed to load user", err)
	}

	if !auth.CheckPassword(user.Password, password) {
		return nil, invalid
	}
	if !user.IsActive {
		return nil, &domain.AppError{Code: http.StatusUnauthorized, Message: "Account is deactivated", Err: domain.ErrAccountDisabled}
	}

	return s.issue(&user)
}

// Authenticate loads the current user for a verified token.
func (s *AuthServiceImpl) Authenticate(ctx context.Context, userID string) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if isNotFound(err) {
			return nil, domain.NewUnauthorizedError("User not found")
		}
		return nil, domain.NewInternalError("failed to load user", err)
	}
	if !user.IsActive {
		return nil, &domain.AppError{Code: http.StatusUnauthorized, Message: "Account is deactivated", Err: domain.ErrAccountDisabled}
	}
	return &user, nil
}

// CreateAdmin creates a verified ADMIN without a registration code. CLI only.
func (s *AuthServiceImpl) CreateAdmin(ctx context.Context, in domain.RegisterInput) (*model.User, error) {
	return s.createUser(ctx, in, model.RoleAdmin, true)
}

// EnsureAdminUser creates the given admin if the users table is empty.
func (s *AuthServiceImpl) EnsureAdminUser(ctx context.Context, in domain.RegisterInput) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Unscoped().Model(&model.User{}).Count(&count).Error; err != nil {
		return false, domain.NewInternalError("failed to count users", err)
	}
	if count > 0 {
		return false, nil
	}

	log.Println("AuthService: No users found. Creating default admin user...")
	user, err := s.CreateAdmin(ctx, in)
	if err != nil {
		return false, err
	}
	log.Printf("AuthService: Created default admin: %s", user.Email)
	return true, nil
}

// Ensure interface implementation
var _ domain.AuthService = (*AuthServiceImpl)(nil)
