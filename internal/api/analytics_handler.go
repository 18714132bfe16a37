package api

import (
	"github.com/gofiber/fiber/v2"
	"libraryhub.com/internal/domain"
)

type AnalyticsHandler struct {
	analyticsSvc domain.AnalyticsService
}

func NewAnalyticsHandler(analyticsSvc domain.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analyticsSvc: analyticsSvc}
}

// GetMostBorrowedBooks 借阅排行
// GET /api/analytics/books/most-borrowed?limit=
func (h *AnalyticsHandler) GetMostBorrowedBooks(c *fiber.Ctx) error {
	books, err := h.analyticsSvc.MostBorrowedBooks(c.UserContext(), c.QueryInt("limit"))
	if err != nil {
		return err
	}
	return sendData(c, fiber.StatusOK, "Most borrowed books retrieved successfully", books)
}

// GetMonthlyReport 月度报表
// GET /api/analytics/reports/monthly/:year/:month
func (h *AnalyticsHandler) GetMonthlyReport(c *fiber.Ctx) error {
	var v domain.Validator
	year, err := c.ParamsInt("year")
	v.Check(err == nil, "year", "must be a number")
	month, err := c.ParamsInt("month")
	v.Check(err == nil, "month", "must be a number")
	if err := v.Err(); err != nil {
		return err
	}

	report, err := h.analyticsSvc.MonthlyReport(c.UserContext(), year, month)
	if err != nil {
		return err
	}
	return sendData(c, fiber.StatusOK, "Monthly report retrieved successfully", report)
}

// GetUserActivity 用户活跃度
// GET /api/analytics/users/activity?limit=
func (h *AnalyticsHandler) GetUserActivity(c *fiber.Ctx) error {
	stats, err := h.analyticsSvc.UserActivity(c.UserContext(), c.QueryInt("limit"))
	if err != nil {
		return err
	}
	return sendData(c, fiber.StatusOK, "User activity retrieved successfully", stats)
}

// GetRevenueStats 罚款收入统计
// GET /api/analytics/revenue?startDate=&endDate=
func (h *AnalyticsHandler) GetRevenueStats(c *fiber.Ctx) error {
	r, err := dateRange(c)
	if err != nil {
		return err
	}

	stats, err := h.analyticsSvc.RevenueStats(c.UserContext(), r)
	if err != nil {
		return err
	}
	return sendData(c, fiber.StatusOK, "Revenue stats retrieved successfully", stats)
}
