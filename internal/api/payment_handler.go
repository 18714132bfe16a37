package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"libraryhub.com/internal/config"
	"libraryhub.com/internal/domain"
	"libraryhub.com/internal/model"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type PaymentHandler struct {
	paymentSvc domain.PaymentService
	rules      config.LibraryConfig
}

func NewPaymentHandler(paymentSvc domain.PaymentService, rules config.LibraryConfig) *PaymentHandler {
	return &PaymentHandler{paymentSvc: paymentSvc, rules: rules}
}

type CreatePaymentRequest struct {
	Amount float64               `json:"amount"`
	Type   model.TransactionType `json:"type"`
}

type UpdatePaymentStatusRequest struct {
	Status model.TransactionStatus `json:"status"`
}

// paymentFilter reads the history query. Members are pinned to their own records.
func (h *PaymentHandler) paymentFilter(c *fiber.Ctx) (domain.PaymentFilter, error) {
	var v domain.Validator
	filter := domain.PaymentFilter{UserID: currentUser(c).ID}
	if isAdmin(c) {
		filter.UserID = c.Query("userId")
	}

	if raw := strings.ToUpper(c.Query("type")); raw != "" {
		filter.Type = model.TransactionType(raw)
		switch filter.Type {
		case model.TransactionTypeFine, model.TransactionTypeFinePayment, model.TransactionTypeDeposit:
		default:
			v.Check(false, "type", "must be FINE, FINE_PAYMENT or DEPOSIT")
		}
	}
	if raw := strings.ToUpper(c.Query("status")); raw != "" {
		filter.Status = model.TransactionStatus(raw)
		switch filter.Status {
		case model.TransactionStatusPending, model.TransactionStatusCompleted, model.TransactionStatusFailed:
		default:
			v.Check(false, "status", "must be PENDING, COMPLETED or FAILED")
		}
	}
	if err := v.Err(); err != nil {
		return filter, err
	}

	r, err := dateRange(c)
	if err != nil {
		return filter, err
	}
	filter.DateRange = r
	return filter, nil
}

// CreatePayment 创建支付（待处理）
// POST /api/payments
func (h *PaymentHandler) CreatePayment(c *fiber.Ctx) error {
	var req CreatePaymentRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	payment, err := h.paymentSvc.CreatePayment(c.UserContext(), currentUser(c).ID, req.Amount, req.Type)
	if err != nil {
		return err
	}
	return sendData(c, fiber.StatusCreated, "Payment created successfully", payment)
}

// UpdatePaymentStatus 更新支付状态
// PATCH /api/payments/:id/status
func (h *PaymentHandler) UpdatePaymentStatus(c *fiber.Ctx) error {
	var req UpdatePaymentStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	payment, err := h.paymentSvc.UpdatePaymentStatus(c.UserContext(), c.Params("id"), req.Status)
	if err != nil {
		return err
	}
	return sendData(c, fiber.StatusOK, "Payment status updated successfully", payment)
}

// GetPaymentHistory 支付历史
// GET /api/payments/history?userId=&type=&status=&startDate=&endDate=
func (h *PaymentHandler) GetPaymentHistory(c *fiber.Ctx) error {
	filter, err := h.paymentFilter(c)
	if err != nil {
		return err
	}

	page, limit := pageParams(c, h.rules)
	payments, total, err := h.paymentSvc.GetPaymentHistory(c.UserContext(), filter, page, limit)
	if err != nil {
		return err
	}
	return SendPaginatedResponse(c, "Payment history retrieved successfully", payments, page, limit, total)
}

// GetPaymentStats 全馆支付统计
// GET /api/payments/stats
func (h *PaymentHandler) GetPaymentStats(c *fiber.Ctx) error {
	stats, err := h.paymentSvc.GetPaymentStats(c.UserContext(), "")
	if err != nil {
		return err
	}
	return sendData(c, fiber.StatusOK, "Payment stats retrieved successfully", stats)
}

// GetUserPaymentStats 用户支付统计；会员只能查看自己
// GET /api/payments/stats/:userId
func (h *PaymentHandler) GetUserPaymentStats(c *fiber.Ctx) error {
	userID := c.Params("userId")
	if !isAdmin(c) && userID != currentUser(c).ID {
		return domain.NewForbiddenError("Access denied")
	}

	stats, err := h.paymentSvc.GetPaymentStats(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return sendData(c, fiber.StatusOK, "Payment stats retrieved successfully", stats)
}

// GenerateInvoice 生成发票
// GET /api/payments/:id/invoice
func (h *PaymentHandler) GenerateInvoice(c *fiber.Ctx) error {
	invoice, err := h.paymentSvc.GenerateInvoice(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	if !isAdmin(c) && invoice.Payment.UserID != currentUser(c).ID {
		return domain.NewForbiddenError("Access denied")
	}
	return sendData(c, fiber.StatusOK, "Invoice generated successfully", invoice)
}

// ExportPaymentHistory 导出支付历史为 Excel
// GET /api/payments/export?userId=&type=&status=&startDate=&endDate=
func (h *PaymentHandler) ExportPaymentHistory(c *fiber.Ctx) error {
	filter, err := h.paymentFilter(c)
	if err != nil {
		return err
	}

	buf, err := h.paymentSvc.ExportPaymentHistory(c.UserContext(), filter)
	if err != nil {
		return err
	}

	c.Attachment(fmt.Sprintf("payments-%s.xlsx", time.Now().UTC().Format("20060102")))
	c.Set(fiber.HeaderContentType, xlsxContentType)
	return c.Send(buf.Bytes())
}
