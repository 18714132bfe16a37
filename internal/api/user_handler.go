package api

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"libraryhub.com/internal/config"
	"libraryhub.com/internal/domain"
	"libraryhub.com/internal/model"
)

type UserHandler struct {
	userSvc domain.UserService
	rules   config.LibraryConfig
}

func NewUserHandler(userSvc domain.UserService, rules config.LibraryConfig) *UserHandler {
	return &UserHandler{userSvc: userSvc, rules: rules}
}

// GetUsers 用户列表
// GET /api/users?search=&role=&isActive=
func (h *UserHandler) GetUsers(c *fiber.Ctx) error {
	var v domain.Validator
	filter := domain.UserFilter{Search: c.Query("search")}

	if role := strings.ToUpper(c.Query("role")); role != "" {
		filter.Role = model.UserRole(role)
		v.Check(filter.Role.Valid(), "role", "must be MEMBER or ADMIN")
	}
	if raw := c.Query("isActive"); raw != "" {
		active, err := strconv.ParseBool(raw)
		v.Check(err == nil, "isActive", "must be true or false")
		filter.IsActive = &active
	}
	if err := v.Err(); err != nil {
		return err
	}

	page, limit := pageParams(c, h.rules)
	users, total, err := h.userSvc.ListUsers(c.UserContext(), filter, page, limit)
	if err != nil {
		return err
	}
	return SendPaginatedResponse(c, "Users retrieved successfully", users, page, limit, total)
}

// GetMe 当前用户资料
// GET /api/users/me
func (h *UserHandler) GetMe(c *fiber.Ctx) error {
	user, err := h.userSvc.GetUser(c.UserContext(), currentUser(c).ID)
	if err != nil {
		return err
	}
	return sendData(c, fiber.StatusOK, "User retrieved successfully", user)
}

// GetUser 用户详情
// GET /api/users/:id
func (h *UserHandler) GetUser(c *fiber.Ctx) error {
	user, err := h.userSvc.GetUser(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return sendData(c, fiber.StatusOK, "User retrieved successfully", user)
}

// UpdateUser 更新用户
// PATCH /api/users/:id
func (h *UserHandler) UpdateUser(c *fiber.Ctx) error {
	var req domain.UserUpdate
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, err := h.userSvc.UpdateUser(c.UserContext(), c.Params("id"), req)
	if err != nil {
		return err
	}
	return sendData(c, fiber.StatusOK, "User updated successfully", user)
}

// ToggleStatus 启用/停用用户
// POST /api/users/:id/toggle-status
func (h *UserHandler) ToggleStatus(c *fiber.Ctx) error {
	user, err := h.userSvc.ToggleStatus(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return sendData(c, fiber.StatusOK, "User status updated successfully", user)
}

// VerifyUser 标记用户已验证
// POST /api/users/:id/verify
func (h *UserHandler) VerifyUser(c *fiber.Ctx) error {
	user, err := h.userSvc.VerifyUser(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return sendData(c, fiber.StatusOK, "User verified successfully", user)
}

// DeleteUser 软删除用户
// DELETE /api/users/:id
func (h *UserHandler) DeleteUser(c *fiber.Ctx) error {
	if err := h.userSvc.DeleteUser(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetBorrowingStats 用户借阅统计
// GET /api/users/:id/borrowing-stats
func (h *UserHandler) GetBorrowingStats(c *fiber.Ctx) error {
	return h.borrowingStats(c, c.Params("id"))
}

// GetMyBorrowingStats 当前用户借阅统计
// GET /api/users/me/borrowing-stats
func (h *UserHandler) GetMyBorrowingStats(c *fiber.Ctx) error {
	return h.borrowingStats(c, currentUser(c).ID)
}

func (h *UserHandler) borrowingStats(c *fiber.Ctx, id string) error {
	stats, err := h.userSvc.GetBorrowingStats(c.UserContext(), id)
	if err != nil {
		return err
	}
	return sendData(c, fiber.StatusOK, "Borrowing stats retrieved successfully", stats)
}
