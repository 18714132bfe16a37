package domain

import (
	"time"

	"libraryhub.com/internal/model"
)

type RegisterInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type AuthResult struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

type UserFilter struct {
	Search   string
	Role     model.UserRole
	IsActive *bool
}

type UserUpdate struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	IsActive  *bool   `json:"isActive"`
}

// UserView is a user with its current loan and fine totals.
type UserView struct {
	model.User
	BorrowedBooksCount int64   `json:"borrowedBooksCount"`
	TotalFines         float64 `json:"totalFines"`
}

type BorrowingStats struct {
	CurrentlyBorrowed int64   `json:"currentlyBorrowed"`
	OverdueBooksCount int64   `json:"overdueBooksCount"`
	TotalFinesPending float64 `json:"totalFinesPending"`
}

type BookInput struct {
	ISBN        string   `json:"isbn"`
	Title       string   `json:"title"`
	TotalCopies int      `json:"totalCopies"`
	AuthorIDs   []string `json:"authorIds"`
	CategoryIDs []string `json:"categoryIds"`
}

// BookUpdate leaves nil fields unchanged.
type BookUpdate struct {
	Title       *string  `json:"title"`
	TotalCopies *int     `json:"totalCopies"`
	AuthorIDs   []string `json:"authorIds"`
	CategoryIDs []string `json:"categoryIds"`
}

type BookFilter struct {
	Search     string
	CategoryID string
	AuthorID   string
	Available  bool
}

type AuthorView struct {
	model.Author
	BookCount int64 `json:"bookCount"`
}

type CategoryView struct {
	model.Category
	BookCount int64 `json:"bookCount"`
}

type HistoryFilter struct {
	UserID string
	Status model.BorrowStatus
}

// BorrowView is a loan annotated for the client. Fine and DaysOverdue are
// only set once the book is back.
type BorrowView struct {
	model.BorrowRecord
	IsOverdue   bool     `json:"isOverdue"`
	Fine        *float64 `json:"fine,omitempty"`
	DaysOverdue *int     `json:"daysOverdue,omitempty"`
}

type DateRange struct {
	Start *time.Time
	End   *time.Time
}

type PaymentFilter struct {
	UserID string
	Type   model.TransactionType
	Status model.TransactionStatus
	DateRange
}

type PaymentStats struct {
	TotalCollected     float64 `json:"totalCollected"`
	PendingAmount      float64 `json:"pendingAmount"`
	FailedPayments     int64   `json:"failedPayments"`
	SuccessfulPayments int64   `json:"successfulPayments"`
}

type Invoice struct {
	InvoiceNumber string             `json:"invoiceNumber"`
	IssuedAt      time.Time          `json:"issuedAt"`
	Payment       *model.Transaction `json:"payment"`
}

type BookAnalytics struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	ISBN              string `json:"isbn"`
	TotalBorrows      int64  `json:"totalBorrows"`
	CurrentlyBorrowed int64  `json:"currentlyBorrowed"`
	AvailableCopies   int    `json:"availableCopies"`
}

type MonthlyReport struct {
	Month               string  `json:"month"`
	Year                int     `json:"year"`
	TotalBorrows        int64   `json:"totalBorrows"`
	TotalReturns        int64   `json:"totalReturns"`
	TotalFinesCollected float64 `json:"totalFinesCollected"`
	OverdueBooksCount   int64   `json:"overdueBooksCount"`
	NewMembersCount     int64   `json:"newMembersCount"`
}

type BorrowerSummary struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type TopBorrower struct {
	User        BorrowerSummary `json:"user"`
	BorrowCount int64           `json:"borrowCount"`
}

type UserActivityStats struct {
	ActiveUsers   int64         `json:"activeUsers"`
	InactiveUsers int64         `json:"inactiveUsers"`
	TopBorrowers  []TopBorrower `json:"topBorrowers"`
}

type MonthlyAmount struct {
	Month  string  `json:"month"`
	Year   int     `json:"year"`
	Amount float64 `json:"amount"`
}

type RevenueStats struct {
	TotalRevenue   float64         `json:"totalRevenue"`
	FinesByMonth   []MonthlyAmount `json:"finesByMonth"`
	PendingFines   float64         `json:"pendingFines"`
	CollectionRate float64         `json:"collectionRate"`
}

// CollectionRate returns completed as a percentage of completed+pending, or 0 when both are 0.
func CollectionRate(completed, pending float64) float64 {
	if completed+pending == 0 {
		return 0
	}
	return completed / (completed + pending) * 100
}
