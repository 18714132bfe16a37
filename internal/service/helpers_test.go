package service

import (
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"libraryhub.com/internal/config"
	"libraryhub.com/internal/domain"
	"libraryhub.com/internal/infra"
	"libraryhub.com/internal/model"
)

var seq atomic.Int64

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := infra.NewDatabase(config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "library.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, infra.Migrate(db.DB))
	return db.DB
}

func testRules() config.LibraryConfig {
	return config.LibraryConfig{
		BorrowLimit:        5,
		BorrowDurationDays: 14,
		FinePerDay:         1.0,
		DefaultPageSize:    10,
		MaxPageSize:        100,
	}
}

// fixedClock returns a clock that can be moved forward by the test.
func fixedClock(start time.Time) (func() time.Time, func(time.Duration)) {
	now := start
	return func() time.Time { return now }, func(d time.Duration) { now = now.Add(d) }
}

func newBorrowService(db *gorm.DB, now func() time.Time) *BorrowServiceImpl {
	svc := NewBorrowService(db, testRules(), domain.NopPublisher{})
	if now != nil {
		svc.now = now
	}
	return svc
}

type userOpt func(*model.User)

func unverified(u *model.User) { u.IsVerified = false }
func inactive(u *model.User)   { u.IsActive = false }
func admin(u *model.User)      { u.Role = model.RoleAdmin }

func givenUser(t *testing.T, db *gorm.DB, opts ...userOpt) *model.User {
	t.Helper()
	n := seq.Add(1)
	u := model.User{
		Email:      fmt.Sprintf("member%d@example.com", n),
		Password:   "not-a-real-hash",
		FirstName:  "Member",
		LastName:   fmt.Sprintf("No%d", n),
		Role:       model.RoleMember,
		IsActive:   true,
		IsVerified: true,
	}
	for _, opt := range opts {
		opt(&u)
	}
	require.NoError(t, db.Create(&u).Error)
	return &u
}

func givenBook(t *testing.T, db *gorm.DB, copies int) *model.Book {
	t.Helper()
	n := seq.Add(1)
	b := model.Book{
		ISBN:            fmt.Sprintf("978%010d", n),
		Title:           fmt.Sprintf("Book %03d", n),
		TotalCopies:     copies,
		AvailableCopies: copies,
	}
	require.NoError(t, db.Create(&b).Error)
	return &b
}

func reloadBook(t *testing.T, db *gorm.DB, id string) model.Book {
	t.Helper()
	var b model.Book
	require.NoError(t, db.Unscoped().First(&b, "id = ?", id).Error)
	return b
}

func countTransactions(t *testing.T, db *gorm.DB, userID string, txType model.TransactionType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&model.Transaction{}).Where("user_id = ? AND type = ?", userID, txType).Count(&n).Error)
	return n
}
