package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"libraryhub.com/internal/config"
	"libraryhub.com/internal/domain"
	"libraryhub.com/internal/model"
)

type BorrowHandler struct {
	borrowSvc domain.BorrowService
	rules     config.LibraryConfig
}

func NewBorrowHandler(borrowSvc domain.BorrowService, rules config.LibraryConfig) *BorrowHandler {
	return &BorrowHandler{borrowSvc: borrowSvc, rules: rules}
}

type BookRequest struct {
	BookID string `json:"bookId"`
}

func (r BookRequest) validate() error {
	var v domain.Validator
	_, err := uuid.Parse(r.BookID)
	v.Check(err == nil, "bookId", "must be a valid UUID")
	return v.Err()
}

// BorrowBook 借书
// POST /api/borrow
func (h *BorrowHandler) BorrowBook(c *fiber.Ctx) error {
	var req BookRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := req.validate(); err != nil {
		return err
	}

	record, err := h.borrowSvc.BorrowBook(c.UserContext(), currentUser(c).ID, req.BookID)
	if err != nil {
		return err
	}
	return sendData(c, fiber.StatusCreated, "Book borrowed successfully", record)
}

// ReturnBook 还书（逾期自动生成罚款）
// POST /api/borrow/return
func (h *BorrowHandler) ReturnBook(c *fiber.Ctx) error {
	var req BookRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := req.validate(); err != nil {
		return err
	}

	record, err := h.borrowSvc.ReturnBook(c.UserContext(), currentUser(c).ID, req.BookID)
	if err != nil {
		return err
	}
	return sendData(c, fiber.StatusOK, "Book returned successfully", record)
}

// GetHistory 借阅历史；会员只能查看自己的记录
// GET /api/borrow/history?userId=&status=
func (h *BorrowHandler) GetHistory(c *fiber.Ctx) error {
	filter := domain.HistoryFilter{UserID: currentUser(c).ID}
	if isAdmin(c) {
		filter.UserID = c.Query("userId")
	}
	if status := strings.ToUpper(c.Query("status")); status != "" {
		filter.Status = model.BorrowStatus(status)
		if !filter.Status.Valid() {
			return domain.NewValidationError([]domain.FieldError{{Field: "status", Message: "must be ACTIVE, RETURNED or OVERDUE"}})
		}
	}

	page, limit := pageParams(c, h.rules)
	records, total, err := h.borrowSvc.GetHistory(c.UserContext(), filter, page, limit)
	if err != nil {
		return err
	}
	return SendPaginatedResponse(c, "Borrowing history retrieved successfully", records, page, limit, total)
}
