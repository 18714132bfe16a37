package domain

import (
	"bytes"
	"context"
	"time"

	"libraryhub.com/internal/model"
)

// ===========================
// Auth
// ===========================

// AuthService handles registration, login and the identity checks behind the auth middleware.
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*AuthResult, error)
	// RegisterAdmin requires the configured registration code.
	RegisterAdmin(ctx context.Context, in RegisterInput, code string) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	// Authenticate loads the user behind a token and rejects missing or inactive accounts.
	Authenticate(ctx context.Context, userID string) (*model.User, error)
	CreateAdmin(ctx context.Context, in RegisterInput) (*model.User, error)
	// EnsureAdminUser creates the given admin when no user exists yet.
	EnsureAdminUser(ctx context.Context, in RegisterInput) (bool, error)
}

// TokenRevoker remembers logged-out tokens until they expire.
type TokenRevoker interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// ===========================
// Users
// ===========================

type UserService interface {
	ListUsers(ctx context.Context, filter UserFilter, page, pageSize int) ([]UserView, int64, error)
	GetUser(ctx context.Context, id string) (*UserView, error)
	UpdateUser(ctx context.Context, id string, in UserUpdate) (*UserView, error)
	ToggleStatus(ctx context.Context, id string) (*UserView, error)
	VerifyUser(ctx context.Context, id string) (*UserView, error)
	DeleteUser(ctx context.Context, id string) error
	GetBorrowingStats(ctx context.Context, id string) (*BorrowingStats, error)
}

// ===========================
// Catalog
// ===========================

type BookService interface {
	CreateBook(ctx context.Context, in BookInput) (*model.Book, error)
	UpdateBook(ctx context.Context, id string, in BookUpdate) (*model.Book, error)
	DeleteBook(ctx context.Context, id string) error
	GetBook(ctx context.Context, id string) (*model.Book, error)
	ListBooks(ctx context.Context, filter BookFilter, page, pageSize int) ([]model.Book, int64, error)
}

type AuthorService interface {
	CreateAuthor(ctx context.Context, name string) (*AuthorView, error)
	UpdateAuthor(ctx context.Context, id, name string) (*AuthorView, error)
	DeleteAuthor(ctx context.Context, id string) error
	GetAuthor(ctx context.Context, id string) (*AuthorView, error)
	ListAuthors(ctx context.Context, search string, page, pageSize int) ([]AuthorView, int64, error)
}

type CategoryService interface {
	CreateCategory(ctx context.Context, name string) (*CategoryView, error)
	UpdateCategory(ctx context.Context, id, name string) (*CategoryView, error)
	DeleteCategory(ctx context.Context, id string) error
	GetCategory(ctx context.Context, id string) (*CategoryView, error)
	ListCategories(ctx context.Context, search string, page, pageSize int) ([]CategoryView, int64, error)
}

// ===========================
// Borrowing
// ===========================

// BorrowService is the lending engine: loans, returns and fines.
type BorrowService interface {
	BorrowBook(ctx context.Context, userID, bookID string) (*BorrowView, error)
	ReturnBook(ctx context.Context, userID, bookID string) (*BorrowView, error)
	GetHistory(ctx context.Context, filter HistoryFilter, page, pageSize int) ([]BorrowView, int64, error)
}

// ===========================
// Payments
// ===========================

type PaymentService interface {
	CreatePayment(ctx context.Context, userID string, amount float64, txType model.TransactionType) (*model.Transaction, error)
	UpdatePaymentStatus(ctx context.Context, id string, status model.TransactionStatus) (*model.Transaction, error)
	GetPayment(ctx context.Context, id string) (*model.Transaction, error)
	GetPaymentHistory(ctx context.Context, filter PaymentFilter, page, pageSize int) ([]model.Transaction, int64, error)
	GetPaymentStats(ctx context.Context, userID string) (*PaymentStats, error)
	GenerateInvoice(ctx context.Context, id string) (*Invoice, error)
	ExportPaymentHistory(ctx context.Context, filter PaymentFilter) (*bytes.Buffer, error)
}

// ===========================
// Analytics
// ===========================

type AnalyticsService interface {
	MostBorrowedBooks(ctx context.Context, limit int) ([]BookAnalytics, error)
	MonthlyReport(ctx context.Context, year, month int) (*MonthlyReport, error)
	UserActivity(ctx context.Context, limit int) (*UserActivityStats, error)
	RevenueStats(ctx context.Context, filter DateRange) (*RevenueStats, error)
}

// ===========================
// Events
// ===========================

// EventPublisher announces committed state changes. Failures never affect the caller.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload any)
}

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) {}
