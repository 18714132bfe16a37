package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"libraryhub.com/internal/domain"
	"libraryhub.com/internal/model"
)

var start = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func appCode(t *testing.T, err error) int {
	t.Helper()
	var appErr *domain.AppError
	require.True(t, errors.As(err, &appErr), "expected *domain.AppError, got %v", err)
	return appErr.Code
}

func TestBorrowBook_LendsOneCopy(t *testing.T) {
	db := newTestDB(t)
	now, _ := fixedClock(start)
	svc := newBorrowService(db, now)
	user := givenUser(t, db)
	book := givenBook(t, db, 2)

	view, err := svc.BorrowBook(context.Background(), user.ID, book.ID)

	require.NoError(t, err)
	assert.Equal(t, user.ID, view.UserID)
	assert.Equal(t, book.ID, view.BookID)
	assert.True(t, view.BorrowDate.Equal(start))
	assert.True(t, view.DueDate.Equal(start.Add(14*24*time.Hour)))
	assert.Nil(t, view.ReturnDate)
	assert.False(t, view.IsOverdue)
	assert.Equal(t, 1, reloadBook(t, db, book.ID).AvailableCopies)
}

func TestBorrowBook_PreconditionOrder(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := newBorrowService(db, nil)
	empty := givenBook(t, db, 0)
	shelf := givenBook(t, db, 3)

	t.Run("unknown user", func(t *testing.T) {
		_, err := svc.BorrowBook(ctx, "missing", empty.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.Equal(t, http.StatusNotFound, appCode(t, err))
	})

	t.Run("verification before everything else", func(t *testing.T) {
		u := givenUser(t, db, unverified, inactive)
		_, err := svc.BorrowBook(ctx, u.ID, empty.ID)
		assert.ErrorIs(t, err, domain.ErrVerificationRequired)
		assert.Equal(t, http.StatusBadRequest, appCode(t, err))
	})

	t.Run("inactive before limit and book", func(t *testing.T) {
		u := givenUser(t, db, inactive)
		_, err := svc.BorrowBook(ctx, u.ID, "missing")
		assert.ErrorIs(t, err, domain.ErrAccountDisabled)
	})

	t.Run("limit before book", func(t *testing.T) {
		u := givenUser(t, db)
		for i := 0; i < 5; i++ {
			b := givenBook(t, db, 1)
			_, err := svc.BorrowBook(ctx, u.ID, b.ID)
			require.NoError(t, err)
		}
		_, err := svc.BorrowBook(ctx, u.ID, "missing")
		assert.ErrorIs(t, err, domain.ErrBorrowLimitExceeded)
	})

	t.Run("unknown book", func(t *testing.T) {
		u := givenUser(t, db)
		_, err := svc.BorrowBook(ctx, u.ID, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("no copies", func(t *testing.T) {
		u := givenUser(t, db)
		_, err := svc.BorrowBook(ctx, u.ID, empty.ID)
		assert.ErrorIs(t, err, domain.ErrNoCopiesAvailable)
		assert.Equal(t, http.StatusBadRequest, appCode(t, err))
	})

	t.Run("already borrowed", func(t *testing.T) {
		u := givenUser(t, db)
		_, err := svc.BorrowBook(ctx, u.ID, shelf.ID)
		require.NoError(t, err)

		_, err = svc.BorrowBook(ctx, u.ID, shelf.ID)
		assert.ErrorIs(t, err, domain.ErrAlreadyBorrowed)
		assert.Equal(t, http.StatusConflict, appCode(t, err))
		assert.Equal(t, 2, reloadBook(t, db, shelf.ID).AvailableCopies)
	})
}

func TestBorrowBook_LimitIsExact(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := newBorrowService(db, nil)
	user := givenUser(t, db)

	for i := 0; i < 5; i++ {
		b := givenBook(t, db, 1)
		_, err := svc.BorrowBook(ctx, user.ID, b.ID)
		require.NoError(t, err, "borrow %d", i+1)
	}

	sixth := givenBook(t, db, 4)
	_, err := svc.BorrowBook(ctx, user.ID, sixth.ID)

	assert.ErrorIs(t, err, domain.ErrBorrowLimitExceeded)
	assert.Equal(t, 4, reloadBook(t, db, sixth.ID).AvailableCopies)

	// returning one frees a slot
	var first model.BorrowRecord
	require.NoError(t, db.Where("user_id = ?", user.ID).Order("borrow_date").First(&first).Error)
	_, err = svc.ReturnBook(ctx, user.ID, first.BookID)
	require.NoError(t, err)

	_, err = svc.BorrowBook(ctx, user.ID, sixth.ID)
	assert.NoError(t, err)
	assert.Equal(t, 3, reloadBook(t, db, sixth.ID).AvailableCopies)
}

func TestBorrowBook_NoCopiesRegardlessOfOtherRules(t *testing.T) {
	db := newTestDB(t)
	svc := newBorrowService(db, nil)
	user := givenUser(t, db)
	book := givenBook(t, db, 0)

	_, err := svc.BorrowBook(context.Background(), user.ID, book.ID)

	assert.ErrorIs(t, err, domain.ErrNoCopiesAvailable)
	assert.Equal(t, 0, reloadBook(t, db, book.ID).AvailableCopies)
	var records int64
	require.NoError(t, db.Model(&model.BorrowRecord{}).Count(&records).Error)
	assert.Zero(t, records)
}

func TestBorrowBook_ConcurrentRequestsForLastCopy(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := newBorrowService(db, nil)
	book := givenBook(t, db, 1)

	const borrowers = 6
	users := make([]*model.User, borrowers)
	for i := range users {
		users[i] = givenUser(t, db)
	}

	var (
		wg   sync.WaitGroup
		errs = make([]error, borrowers)
	)
	for i := range users {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.BorrowBook(ctx, users[i].ID, book.ID)
		}(i)
	}
	wg.Wait()

	var ok, noCopies int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrNoCopiesAvailable):
			noCopies++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, borrowers-1, noCopies)
	assert.Equal(t, 0, reloadBook(t, db, book.ID).AvailableCopies)
}

func TestReturnBook_WithoutActiveLoan(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := newBorrowService(db, nil)
	user := givenUser(t, db)
	book := givenBook(t, db, 2)
	other := givenUser(t, db)
	_, err := svc.BorrowBook(ctx, other.ID, book.ID)
	require.NoError(t, err)

	_, err = svc.ReturnBook(ctx, user.ID, book.ID)

	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 1, reloadBook(t, db, book.ID).AvailableCopies)
	var open int64
	require.NoError(t, db.Model(&model.BorrowRecord{}).Where("return_date IS NULL").Count(&open).Error)
	assert.Equal(t, int64(1), open)
}

func TestReturnBook_OnTimeCreatesNoFine(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	now, advance := fixedClock(start)
	svc := newBorrowService(db, now)
	user := givenUser(t, db)
	book := givenBook(t, db, 1)

	_, err := svc.BorrowBook(ctx, user.ID, book.ID)
	require.NoError(t, err)
	advance(14 * 24 * time.Hour) // exactly on the due date

	view, err := svc.ReturnBook(ctx, user.ID, book.ID)

	require.NoError(t, err)
	require.NotNil(t, view.ReturnDate)
	assert.Equal(t, 0.0, *view.Fine)
	assert.Equal(t, 0, *view.DaysOverdue)
	assert.False(t, view.IsOverdue)
	assert.Zero(t, countTransactions(t, db, user.ID, model.TransactionTypeFine))
	assert.Equal(t, 1, reloadBook(t, db, book.ID).AvailableCopies)
}

func TestReturnBook_LateReturnScenario(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	now, advance := fixedClock(start)
	svc := newBorrowService(db, now)
	book := givenBook(t, db, 1)
	userA := givenUser(t, db)
	userB := givenUser(t, db)

	borrowed, err := svc.BorrowBook(ctx, userA.ID, book.ID)
	require.NoError(t, err)
	assert.True(t, borrowed.DueDate.Equal(start.AddDate(0, 0, 14)))
	assert.Equal(t, 0, reloadBook(t, db, book.ID).AvailableCopies)

	_, err = svc.BorrowBook(ctx, userB.ID, book.ID)
	assert.ErrorIs(t, err, domain.ErrNoCopiesAvailable)

	advance(20 * 24 * time.Hour)
	returned, err := svc.ReturnBook(ctx, userA.ID, book.ID)

	require.NoError(t, err)
	assert.Equal(t, 6, *returned.DaysOverdue)
	assert.Equal(t, 6.0, *returned.Fine)
	assert.True(t, returned.IsOverdue)
	assert.Equal(t, 1, reloadBook(t, db, book.ID).AvailableCopies)

	var fines []model.Transaction
	require.NoError(t, db.Where("user_id = ? AND type = ?", userA.ID, model.TransactionTypeFine).Find(&fines).Error)
	require.Len(t, fines, 1)
	assert.Equal(t, 6.0, fines[0].Amount)
	assert.Equal(t, model.TransactionStatusPending, fines[0].Status)
}

func TestReturnBook_PartialDayCountsAsFullDay(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	now, advance := fixedClock(start)
	svc := newBorrowService(db, now)
	user := givenUser(t, db)
	book := givenBook(t, db, 1)

	_, err := svc.BorrowBook(ctx, user.ID, book.ID)
	require.NoError(t, err)
	advance(14*24*time.Hour + time.Hour)

	view, err := svc.ReturnBook(ctx, user.ID, book.ID)

	require.NoError(t, err)
	assert.Equal(t, 1, *view.DaysOverdue)
	assert.Equal(t, 1.0, *view.Fine)
	assert.Equal(t, int64(1), countTransactions(t, db, user.ID, model.TransactionTypeFine))
}

func TestReturnBook_FineFailureRollsBackEverything(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	now, advance := fixedClock(start)
	svc := newBorrowService(db, now)
	user := givenUser(t, db)
	book := givenBook(t, db, 1)

	_, err := svc.BorrowBook(ctx, user.ID, book.ID)
	require.NoError(t, err)
	advance(30 * 24 * time.Hour)

	// the fine insert is the last write; fail it after the loan and book rows were updated
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:fail_fine", func(tx *gorm.DB) {
		if tx.Statement.Table == "transactions" {
			tx.AddError(errors.New("disk full"))
		}
	}))

	_, err = svc.ReturnBook(ctx, user.ID, book.ID)

	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, appCode(t, err))
	assert.Equal(t, 0, reloadBook(t, db, book.ID).AvailableCopies)
	var record model.BorrowRecord
	require.NoError(t, db.Where("user_id = ? AND book_id = ?", user.ID, book.ID).First(&record).Error)
	assert.Nil(t, record.ReturnDate)
	assert.Zero(t, countTransactions(t, db, user.ID, model.TransactionTypeFine))
}

func TestGetHistory_Pagination(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := newBorrowService(db, nil)
	user := givenUser(t, db)
	book := givenBook(t, db, 1)

	ids := make([]string, 25)
	for i := range ids {
		borrowed := start.Add(time.Duration(i) * time.Hour)
		returned := borrowed.Add(time.Minute)
		r := model.BorrowRecord{UserID: user.ID, BookID: book.ID, BorrowDate: borrowed, DueDate: borrowed.AddDate(0, 0, 14), ReturnDate: &returned}
		require.NoError(t, db.Create(&r).Error)
		ids[i] = r.ID
	}

	page, total, err := svc.GetHistory(ctx, domain.HistoryFilter{UserID: user.ID}, 2, 10)

	require.NoError(t, err)
	assert.Equal(t, int64(25), total)
	require.Len(t, page, 10)
	// newest first: page 2 holds the 11th..20th newest
	for i, v := range page {
		assert.Equal(t, ids[24-10-i], v.ID)
		require.NotNil(t, v.Book)
		assert.Equal(t, book.Title, v.Book.Title)
	}
}

func TestGetHistory_StatusFilters(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	now, advance := fixedClock(start)
	svc := newBorrowService(db, now)
	user := givenUser(t, db)
	late := givenBook(t, db, 1)
	back := givenBook(t, db, 1)
	current := givenBook(t, db, 1)

	_, err := svc.BorrowBook(ctx, user.ID, late.ID)
	require.NoError(t, err)
	_, err = svc.BorrowBook(ctx, user.ID, back.ID)
	require.NoError(t, err)
	advance(16 * 24 * time.Hour)
	_, err = svc.ReturnBook(ctx, user.ID, back.ID)
	require.NoError(t, err)
	_, err = svc.BorrowBook(ctx, user.ID, current.ID)
	require.NoError(t, err)

	cases := []struct {
		status model.BorrowStatus
		books  []string
	}{
		{"", []string{current.ID, back.ID, late.ID}},
		{model.BorrowStatusActive, []string{current.ID, late.ID}},
		{model.BorrowStatusReturned, []string{back.ID}},
		{model.BorrowStatusOverdue, []string{late.ID}},
	}
	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			views, total, err := svc.GetHistory(ctx, domain.HistoryFilter{UserID: user.ID, Status: tc.status}, 1, 10)
			require.NoError(t, err)
			assert.Equal(t, int64(len(tc.books)), total)
			got := make([]string, len(views))
			for i, v := range views {
				got[i] = v.BookID
			}
			assert.ElementsMatch(t, tc.books, got)
		})
	}

	views, _, err := svc.GetHistory(ctx, domain.HistoryFilter{UserID: user.ID, Status: model.BorrowStatusReturned}, 1, 10)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, 2, *views[0].DaysOverdue)
	assert.Equal(t, 2.0, *views[0].Fine)

	views, _, err = svc.GetHistory(ctx, domain.HistoryFilter{UserID: user.ID, Status: model.BorrowStatusOverdue}, 1, 10)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.True(t, views[0].IsOverdue)
	assert.Nil(t, views[0].Fine)

	_, _, err = svc.GetHistory(ctx, domain.HistoryFilter{Status: "LOST"}, 1, 10)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
