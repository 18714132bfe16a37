package api

import (
	"github.com/gofiber/fiber/v2"
	"libraryhub.com/internal/config"
	"libraryhub.com/internal/domain"
)

// NameRequest is the body for author and category writes.
type NameRequest struct {
	Name string `json:"name"`
}

type AuthorHandler struct {
	authorSvc domain.AuthorService
	rules     config.LibraryConfig
}

func NewAuthorHandler(authorSvc domain.AuthorService, rules config.LibraryConfig) *AuthorHandler {
	return &AuthorHandler{authorSvc: authorSvc, rules: rules}
}

// GetAuthors 作者列表
// GET /api/authors?search=
func (h *AuthorHandler) GetAuthors(c *fiber.Ctx) error {
	page, limit := pageParams(c, h.rules)
	authors, total, err := h.authorSvc.ListAuthors(c.UserContext(), c.Query("search"), page, limit)
	if err != nil {
		return err
	}
	return SendPaginatedResponse(c, "Authors retrieved successfully", authors, page, limit, total)
}

// GetAuthor 作者详情
// GET /api/authors/:id
func (h *AuthorHandler) GetAuthor(c *fiber.Ctx) error {
	author, err := h.authorSvc.GetAuthor(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return sendData(c, fiber.StatusOK, "Author retrieved successfully", author)
}

// CreateAuthor 新增作者
// POST /api/authors
func (h *AuthorHandler) CreateAuthor(c *fiber.Ctx) error {
	var req NameRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	author, err := h.authorSvc.CreateAuthor(c.UserContext(), req.Name)
	if err != nil {
		return err
	}
	return sendData(c, fiber.StatusCreated, "Author created successfully", author)
}

// UpdateAuthor 更新作者
// PUT /api/authors/:id
func (h *AuthorHandler) UpdateAuthor(c *fiber.Ctx) error {
	var req NameRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	author, err := h.authorSvc.UpdateAuthor(c.UserContext(), c.Params("id"), req.Name)
	if err != nil {
		return err
	}
	return sendData(c, fiber.StatusOK, "Author updated successfully", author)
}

// DeleteAuthor 软删除作者
// DELETE /api/authors/:id
func (h *AuthorHandler) DeleteAuthor(c *fiber.Ctx) error {
	if err := h.authorSvc.DeleteAuthor(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type CategoryHandler struct {
	categorySvc domain.CategoryService
	rules       config.LibraryConfig
}

func NewCategoryHandler(categorySvc domain.CategoryService, rules config.LibraryConfig) *CategoryHandler {
	return &CategoryHandler{categorySvc: categorySvc, rules: rules}
}

// GetCategories 分类列表
// GET /api/categories?search=
func (h *CategoryHandler) GetCategories(c *fiber.Ctx) error {
	page, limit := pageParams(c, h.rules)
	categories, total, err := h.categorySvc.ListCategories(c.UserContext(), c.Query("search"), page, limit)
	if err != nil {
		return err
	}
	return SendPaginatedResponse(c, "Categories retrieved successfully", categories, page, limit, total)
}

// GetCategory 分类详情
// GET /api/categories/:id
func (h *CategoryHandler) GetCategory(c *fiber.Ctx) error {
	category, err := h.categorySvc.GetCategory(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return sendData(c, fiber.StatusOK, "Category retrieved successfully", category)
}

// CreateCategory 新增分类
// POST /api/categories
func (h *CategoryHandler) CreateCategory(c *fiber.Ctx) error {
	var req NameRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	category, err := h.categorySvc.CreateCategory(c.UserContext(), req.Name)
	if err != nil {
		return err
	}
	return sendData(c, fiber.StatusCreated, "Category created successfully", category)
}

// UpdateCategory 更新分类
// PUT /api/categories/:id
func (h *CategoryHandler) UpdateCategory(c *fiber.Ctx) error {
	var req NameRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	category, err := h.categorySvc.UpdateCategory(c.UserContext(), c.Params("id"), req.Name)
	if err != nil {
		return err
	}
	return sendData(c, fiber.StatusOK, "Category updated successfully", category)
}

// DeleteCategory 软删除分类
// DELETE /api/categories/:id
func (h *CategoryHandler) DeleteCategory(c *fiber.Ctx) error {
	if err := h.categorySvc.DeleteCategory(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
