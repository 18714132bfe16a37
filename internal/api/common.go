package api

import (
	"errors"
	"log"
	"math"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"libraryhub.com/internal/api/middleware"
	"libraryhub.com/internal/config"
	"libraryhub.com/internal/domain"
	"libraryhub.com/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Response 统一响应结构
type Response struct {
	Success    bool                `json:"success"`
	Message    string              `json:"message"`
	Data       interface{}         `json:"data,omitempty"`
	Errors     []domain.FieldError `json:"errors,omitempty"`
	Pagination *Pagination         `json:"pagination,omitempty"`
}

// Pagination 元数据结构
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

func sendData(c *fiber.Ctx, status int, message string, data interface{}) error {
	return c.Status(status).JSON(Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// SendPaginatedResponse 发送标准的分页响应
func SendPaginatedResponse(c *fiber.Ctx, message string, data interface{}, page, limit int, total int64) error {
	totalPages := 0
	if limit > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(limit)))
	}

	return c.JSON(Response{
		Success: true,
		Message: message,
		Data:    data,
		Pagination: &Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: totalPages,
		},
	})
}

// handleError is the fiber.Config ErrorHandler: every error returned by a
// handler or middleware is rendered here.
func handleError(c *fiber.Ctx, err error) error {
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		message := appErr.Message
		if appErr.Code >= fiber.StatusInternalServerError {
			log.Printf("API: %s %s failed: %v", c.Method(), c.Path(), err)
			message = "Internal server error"
		}
		return c.Status(appErr.Code).JSON(Response{
			Success: false,
			Message: message,
			Errors:  appErr.Details,
		})
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(Response{Success: false, Message: fiberErr.Message})
	}

	log.Printf("API: %s %s failed: %v", c.Method(), c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(Response{
		Success: false,
		Message: "Internal server error",
	})
}

func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return domain.NewBadRequestError("Invalid request body")
	}
	return nil
}

// pageParams reads ?page and ?limit, falling back to the configured defaults.
func pageParams(c *fiber.Ctx, rules config.LibraryConfig) (int, int) {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", rules.DefaultPageSize)
	if limit < 1 {
		limit = rules.DefaultPageSize
	}
	if limit > rules.MaxPageSize {
		limit = rules.MaxPageSize
	}
	return page, limit
}

func currentUser(c *fiber.Ctx) *model.User {
	return middleware.CurrentUser(c)
}

func isAdmin(c *fiber.Ctx) bool {
	user := currentUser(c)
	return user != nil && user.Role == model.RoleAdmin
}

// parseDate accepts RFC 3339 timestamps and plain dates (UTC midnight).
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(time.DateOnly, s)
}

// dateRange reads ?startDate and ?endDate.
func dateRange(c *fiber.Ctx) (domain.DateRange, error) {
	var (
		r domain.DateRange
		v domain.Validator
	)
	for _, q := range []struct {
		name string
		dst  **time.Time
	}{{"startDate", &r.Start}, {"endDate", &r.End}} {
		raw := strings.TrimSpace(c.Query(q.name))
		if raw == "" {
			continue
		}
		t, err := parseDate(raw)
		v.Check(err == nil, q.name, "must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
		if err == nil {
			*q.dst = &t
		}
	}
	return r, v.Err()
}
