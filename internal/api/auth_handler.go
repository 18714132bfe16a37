package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"libraryhub.com/internal/api/middleware"
	"libraryhub.com/internal/domain"
)

type AuthHandler struct {
	authSvc domain.AuthService
	userSvc domain.UserService
	revoker domain.TokenRevoker
}

func NewAuthHandler(authSvc domain.AuthService, userSvc domain.UserService, revoker domain.TokenRevoker) *AuthHandler {
	return &AuthHandler{authSvc: authSvc, userSvc: userSvc, revoker: revoker}
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterAdminRequest struct {
	domain.RegisterInput
	RegistrationCode string `json:"registrationCode"`
}

// Register 会员注册
// POST /api/auth/register
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req domain.RegisterInput
	if err := parseBody(c, &req); err != nil {
		return err
	}

	result, err := h.authSvc.Register(c.UserContext(), req)
	if err != nil {
		return err
	}
	return sendData(c, fiber.StatusCreated, "User registered successfully", result)
}

// RegisterAdmin 管理员注册（需要注册码）
// POST /api/auth/register-admin
func (h *AuthHandler) RegisterAdmin(c *fiber.Ctx) error {
	var req RegisterAdminRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	result, err := h.authSvc.RegisterAdmin(c.UserContext(), req.RegisterInput, req.RegistrationCode)
	if err != nil {
		return err
	}
	return sendData(c, fiber.StatusCreated, "Admin registered successfully", result)
}

// Login 登录并签发 JWT
// POST /api/auth/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	result, err := h.authSvc.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return sendData(c, fiber.StatusOK, "Login successful", result)
}

// GetMe 当前用户信息
// GET /api/auth/me
func (h *AuthHandler) GetMe(c *fiber.Ctx) error {
	user, err := h.userSvc.GetUser(c.UserContext(), currentUser(c).ID)
	if err != nil {
		return err
	}
	return sendData(c, fiber.StatusOK, "User retrieved successfully", user)
}

// Logout 吊销当前 Token（未配置 Redis 时仅由客户端丢弃）
// POST /api/auth/logout
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if h.revoker != nil {
		claims := middleware.CurrentClaims(c)
		if claims != nil && claims.ExpiresAt != nil {
			if err := h.revoker.Revoke(c.UserContext(), claims.ID, time.Until(claims.ExpiresAt.Time)); err != nil {
				return domain.NewInternalError("failed to revoke token", err)
			}
		}
	}
	return sendData(c, fiber.StatusOK, "Logged out successfully", nil)
}
