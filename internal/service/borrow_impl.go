package service

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"gorm.io/gorm"
	"libraryhub.com/internal/config"
	"libraryhub.com/internal/constants"
	"libraryhub.com/internal/domain"
	"libraryhub.com/internal/model"
)

// BorrowServiceImpl implements domain.BorrowService.
//
// Borrow and return each run as one database transaction. Availability is
// never cached: the decrement is conditional on available_copies > 0, so two
// requests racing for the last copy cannot both succeed.
type BorrowServiceImpl struct {
	db     *gorm.DB
	rules  config.LibraryConfig
	events domain.EventPublisher
	now    func() time.Time
}

func NewBorrowService(db *gorm.DB, rules config.LibraryConfig, events domain.EventPublisher) *BorrowServiceImpl {
	return &BorrowServiceImpl{
		db:     db,
		rules:  rules,
		events: events,
		now:    time.Now,
	}
}

// BorrowBook lends one copy of bookID to userID. Eligibility is checked in
// a fixed order and the first failing rule is reported.
func (s *BorrowServiceImpl) BorrowBook(ctx context.Context, userID, bookID string) (*domain.BorrowView, error) {
	now := s.now()
	record := model.BorrowRecord{
		UserID:     userID,
		BookID:     bookID,
		BorrowDate: now,
		DueDate:    now.Add(s.rules.LoanPeriod()),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. borrower
		var user model.User
		if err := tx.Clauses(forUpdate).First(&user, "id = ?", userID).Error; err != nil {
			if isNotFound(err) {
				return domain.NewNotFoundError("User not found")
			}
			return domain.NewInternalError("failed to load user", err)
		}
		if !user.IsVerified {
			return domain.NewRuleError(domain.ErrVerificationRequired, "Please verify your account before borrowing books")
		}
		if !user.IsActive {
			return domain.NewRuleError(domain.ErrAccountDisabled, "Your account is deactivated")
		}

		// 2. borrow limit
		var active int64
		if err := tx.Model(&model.BorrowRecord{}).
			Where("user_id = ? AND return_date IS NULL", userID).
			Count(&active).Error; err != nil {
			return domain.NewInternalError("failed to count loans", err)
		}
		if active >= int64(s.rules.BorrowLimit) {
			return domain.NewRuleError(domain.ErrBorrowLimitExceeded,
				fmt.Sprintf("You cannot borrow more than %d books at a time", s.rules.BorrowLimit))
		}

		// 3. book and availability
		var book model.Book
		if err := tx.First(&book, "id = ?", bookID).Error; err != nil {
			if isNotFound(err) {
				return domain.NewNotFoundError("Book not found")
			}
			return domain.NewInternalError("failed to load book", err)
		}
		if book.AvailableCopies <= 0 {
			return noCopies()
		}

		// 4. one open loan per (user, book)
		var open int64
		if err := tx.Model(&model.BorrowRecord{}).
			Where("user_id = ? AND book_id = ? AND return_date IS NULL", userID, bookID).
			Count(&open).Error; err != nil {
			return domain.NewInternalError("failed to check existing loan", err)
		}
		if open > 0 {
			return alreadyBorrowed()
		}

		// 5. take the copy; zero rows means a concurrent borrower got it first
		result := tx.Model(&model.Book{}).
			Where("id = ? AND available_copies > 0", bookID).
			Update("available_copies", gorm.Expr("available_copies - 1"))
		if result.Error != nil {
			return domain.NewInternalError("failed to update book availability", result.Error)
		}
		if result.RowsAffected == 0 {
			return noCopies()
		}

		if err := tx.Create(&record).Error; err != nil {
			if isDuplicate(err) {
				return alreadyBorrowed()
			}
			return domain.NewInternalError("failed to create borrow record", err)
		}

		book.AvailableCopies--
		record.Book = &book
		return nil
	})
	if err != nil {
		return nil, passThrough("failed to borrow book", err)
	}

	log.Printf("BorrowService: User %s borrowed book %s (due %s)", userID, bookID, record.DueDate.Format(time.RFC3339))
	s.events.Publish(ctx, constants.EventBookBorrowed, map[string]interface{}{
		"recordId": record.ID,
		"userId":   userID,
		"bookId":   bookID,
		"dueDate":  record.DueDate,
	})

	return &domain.BorrowView{BorrowRecord: record, IsOverdue: false}, nil
}

// ReturnBook closes the open loan for (userID, bookID), puts the copy back
// and records a pending fine when the book is late. The three writes commit
// or roll back together.
func (s *BorrowServiceImpl) ReturnBook(ctx context.Context, userID, bookID string) (*domain.BorrowView, error) {
	now := s.now()
	var (
		record model.BorrowRecord
		fine   domain.FineCalculation
		fineTx *model.Transaction
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(forUpdate).
			Where("user_id = ? AND book_id = ? AND return_date IS NULL", userID, bookID).
			First(&record).Error; err != nil {
			if isNotFound(err) {
				return domain.NewNotFoundError("No active borrow record found")
			}
			return domain.NewInternalError("failed to load borrow record", err)
		}

		result := tx.Model(&model.BorrowRecord{}).
			Where("id = ? AND return_date IS NULL", record.ID).
			Update("return_date", now)
		if result.Error != nil {
			return domain.NewInternalError("failed to update borrow record", result.Error)
		}
		if result.RowsAffected == 0 {
			return domain.NewNotFoundError("No active borrow record found")
		}
		record.ReturnDate = &now

		result = tx.Model(&model.Book{}).
			Unscoped().
			Where("id = ? AND available_copies < total_copies", bookID).
			Update("available_copies", gorm.Expr("available_copies + 1"))
		if result.Error != nil {
			return domain.NewInternalError("failed to update book availability", result.Error)
		}
		if result.RowsAffected == 0 {
			log.Printf("BorrowService: Warning - book %s already had all copies on the shelf", bookID)
		}

		fine = domain.CalculateFine(record.DueDate, now, s.rules.FinePerDay)
		if fine.Amount > 0 {
			fineTx = &model.Transaction{
				UserID: userID,
				Amount: fine.Amount,
				Type:   model.TransactionTypeFine,
				Status: model.TransactionStatusPending,
			}
			if err := tx.Create(fineTx).Error; err != nil {
				return domain.NewInternalError("failed to record fine", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, passThrough("failed to return book", err)
	}

	log.Printf("BorrowService: User %s returned book %s (fine %.2f)", userID, bookID, fine.Amount)
	s.events.Publish(ctx, constants.EventBookReturned, map[string]interface{}{
		"recordId":    record.ID,
		"userId":      userID,
		"bookId":      bookID,
		"daysOverdue": fine.DaysOverdue,
	})
	if fineTx != nil {
		s.events.Publish(ctx, constants.EventFineIssued, map[string]interface{}{
			"transactionId": fineTx.ID,
			"userId":        userID,
			"amount":        fineTx.Amount,
		})
	}

	return &domain.BorrowView{
		BorrowRecord: record,
		IsOverdue:    fine.DaysOverdue > 0,
		Fine:         &fine.Amount,
		DaysOverdue:  &fine.DaysOverdue,
	}, nil
}

// GetHistory lists loans newest first. Returned loans carry their fine,
// recomputed from the dates.
func (s *BorrowServiceImpl) GetHistory(ctx context.Context, filter domain.HistoryFilter, page, pageSize int) ([]domain.BorrowView, int64, error) {
	now := s.now()
	query := s.db.WithContext(ctx).Model(&model.BorrowRecord{})

	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	switch filter.Status {
	case model.BorrowStatusActive:
		query = query.Where("return_date IS NULL")
	case model.BorrowStatusReturned:
		query = query.Where("return_date IS NOT NULL")
	case model.BorrowStatusOverdue:
		query = query.Where("return_date IS NULL AND due_date < ?", now)
	case "":
	default:
		return nil, 0, domain.NewBadRequestError("status must be one of ACTIVE, RETURNED, OVERDUE")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, domain.NewInternalError("failed to count borrow records", err)
	}

	var records []model.BorrowRecord
	if err := query.
		Preload("Book", func(db *gorm.DB) *gorm.DB {
			// history keeps showing titles of books removed from the catalog
			return db.Unscoped().Select("id", "title", "isbn")
		}).
		Order("borrow_date DESC").Order("id DESC").
		Scopes(paginate(page, pageSize)).
		Find(&records).Error; err != nil {
		return nil, 0, domain.NewInternalError("failed to fetch borrow records", err)
	}

	views := make([]domain.BorrowView, len(records))
	for i, r := range records {
		views[i] = s.annotate(r, now)
	}
	return views, total, nil
}

func (s *BorrowServiceImpl) annotate(r model.BorrowRecord, now time.Time) domain.BorrowView {
	view := domain.BorrowView{BorrowRecord: r, IsOverdue: r.IsOverdue(now)}
	if r.ReturnDate != nil {
		fine := domain.CalculateFine(r.DueDate, *r.ReturnDate, s.rules.FinePerDay)
		view.Fine = &fine.Amount
		view.DaysOverdue = &fine.DaysOverdue
	}
	return view
}

func noCopies() error {
	return domain.NewRuleError(domain.ErrNoCopiesAvailable, "Book is not available for borrowing")
}

func alreadyBorrowed() error {
	return &domain.AppError{Code: http.StatusConflict, Message: "You have already borrowed this book", Err: domain.ErrAlreadyBorrowed}
}

// Ensure interface implementation
var _ domain.BorrowService = (*BorrowServiceImpl)(nil)
