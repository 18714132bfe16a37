package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"libraryhub.com/internal/auth"
	"libraryhub.com/internal/config"
	"libraryhub.com/internal/domain"
	"libraryhub.com/internal/model"
)

func newAuthService(t *testing.T, db *gorm.DB, mutate func(*config.AuthConfig)) *AuthServiceImpl {
	t.Helper()
	cfg := config.AuthConfig{
		JWTSecret:             "test-secret",
		JWTExpireHours:        1,
		AdminRegistrationCode: "let-me-in",
		BcryptCost:            bcrypt.MinCost,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL())
	return NewAuthService(db, tokens, cfg, domain.NopPublisher{})
}

func registration(email string) domain.RegisterInput {
	return domain.RegisterInput{Email: email, Password: "secret1", FirstName: "Ada", LastName: "Lovelace"}
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := newAuthService(t, db, nil)

	res, err := svc.Register(ctx, registration("  Ada@Example.com "))

	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "ada@example.com", res.User.Email)
	assert.Equal(t, model.RoleMember, res.User.Role)
	assert.True(t, res.User.IsActive)
	assert.False(t, res.User.IsVerified)
	assert.NotEqual(t, "secret1", res.User.Password)

	claims, err := auth.NewTokenManager("test-secret", time.Hour).Parse(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID)
	assert.Equal(t, model.RoleMember, claims.Role)

	_, err = svc.Register(ctx, registration("ada@example.com"))
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	assert.Equal(t, http.StatusConflict, appCode(t, err))
}

func TestRegister_Validation(t *testing.T) {
	svc := newAuthService(t, newTestDB(t), nil)

	_, err := svc.Register(context.Background(), domain.RegisterInput{Email: "nope", Password: "123", FirstName: "A", LastName: ""})

	require.ErrorIs(t, err, domain.ErrInvalidInput)
	var appErr *domain.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Len(t, appErr.Details, 4)
}

func TestRegister_AutoVerify(t *testing.T) {
	svc := newAuthService(t, newTestDB(t), func(c *config.AuthConfig) { c.AutoVerify = true })

	res, err := svc.Register(context.Background(), registration("auto@example.com"))

	require.NoError(t, err)
	assert.True(t, res.User.IsVerified)
}

func TestRegisterAdmin(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := newAuthService(t, db, nil)

	_, err := svc.RegisterAdmin(ctx, registration("root@example.com"), "wrong")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	res, err := svc.RegisterAdmin(ctx, registration("root@example.com"), "let-me-in")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, res.User.Role)
	assert.True(t, res.User.IsVerified)

	disabled := newAuthService(t, db, func(c *config.AuthConfig) { c.AdminRegistrationCode = "" })
	_, err = disabled.RegisterAdmin(ctx, registration("other@example.com"), "")
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := newAuthService(t, db, nil)
	reg, err := svc.Register(ctx, registration("login@example.com"))
	require.NoError(t, err)

	res, err := svc.Login(ctx, "LOGIN@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, res.User.ID)
	assert.NotEmpty(t, res.Token)

	_, err = svc.Login(ctx, "login@example.com", "wrong")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	assert.Equal(t, http.StatusUnauthorized, appCode(t, err))

	_, err = svc.Login(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	require.NoError(t, db.Model(&model.User{}).Where("id = ?", reg.User.ID).Update("is_active", false).Error)
	_, err = svc.Login(ctx, "login@example.com", "secret1")
	assert.ErrorIs(t, err, domain.ErrAccountDisabled)
	assert.Equal(t, http.StatusUnauthorized, appCode(t, err))

	_, err = svc.Authenticate(ctx, reg.User.ID)
	assert.ErrorIs(t, err, domain.ErrAccountDisabled)
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := newAuthService(t, db, nil)
	u := givenUser(t, db)

	got, err := svc.Authenticate(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Email, got.Email)

	require.NoError(t, db.Delete(u).Error)
	_, err = svc.Authenticate(ctx, u.ID)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestEnsureAdminUser(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := newAuthService(t, db, nil)

	created, err := svc.EnsureAdminUser(ctx, registration("admin@example.com"))
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.EnsureAdminUser(ctx, registration("second@example.com"))
	require.NoError(t, err)
	assert.False(t, created)

	res, err := svc.Login(ctx, "admin@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, res.User.Role)
}
