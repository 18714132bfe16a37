package api

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"libraryhub.com/internal/config"
	"libraryhub.com/internal/domain"
)

type BookHandler struct {
	bookSvc domain.BookService
	rules   config.LibraryConfig
}

func NewBookHandler(bookSvc domain.BookService, rules config.LibraryConfig) *BookHandler {
	return &BookHandler{bookSvc: bookSvc, rules: rules}
}

// GetBooks 图书列表
// GET /api/books?search=&categoryId=&authorId=&available=
func (h *BookHandler) GetBooks(c *fiber.Ctx) error {
	filter := domain.BookFilter{
		Search:     c.Query("search"),
		CategoryID: c.Query("categoryId"),
		AuthorID:   c.Query("authorId"),
	}
	if raw := c.Query("available"); raw != "" {
		available, err := strconv.ParseBool(raw)
		if err != nil {
			return domain.NewValidationError([]domain.FieldError{{Field: "available", Message: "must be true or false"}})
		}
		filter.Available = available
	}

	page, limit := pageParams(c, h.rules)
	books, total, err := h.bookSvc.ListBooks(c.UserContext(), filter, page, limit)
	if err != nil {
		return err
	}
	return SendPaginatedResponse(c, "Books retrieved successfully", books, page, limit, total)
}

// GetBook 图书详情
// GET /api/books/:id
func (h *BookHandler) GetBook(c *fiber.Ctx) error {
	book, err := h.bookSvc.GetBook(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return sendData(c, fiber.StatusOK, "Book retrieved successfully", book)
}

// CreateBook 新增图书
// POST /api/books
func (h *BookHandler) CreateBook(c *fiber.Ctx) error {
	var req domain.BookInput
	if err := parseBody(c, &req); err != nil {
		return err
	}

	book, err := h.bookSvc.CreateBook(c.UserContext(), req)
	if err != nil {
		return err
	}
	return sendData(c, fiber.StatusCreated, "Book created successfully", book)
}

// UpdateBook 更新图书
// PUT /api/books/:id
func (h *BookHandler) UpdateBook(c *fiber.Ctx) error {
	var req domain.BookUpdate
	if err := parseBody(c, &req); err != nil {
		return err
	}

	book, err := h.bookSvc.UpdateBook(c.UserContext(), c.Params("id"), req)
	if err != nil {
		return err
	}
	return sendData(c, fiber.StatusOK, "Book updated successfully", book)
}

// DeleteBook 软删除图书
// DELETE /api/books/:id
func (h *BookHandler) DeleteBook(c *fiber.Ctx) error {
	if err := h.bookSvc.DeleteBook(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
