package service

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
	"libraryhub.com/internal/domain"
	"libraryhub.com/internal/model"
)

func givenFine(t *testing.T, db *gorm.DB, userID string, amount float64, at time.Time) *model.Transaction {
	t.Helper()
	tx := model.Transaction{
		UserID: userID,
		Amount: amount,
		Type:   model.TransactionTypeFine,
		Status: model.TransactionStatusPending,
	}
	tx.CreatedAt = at
	require.NoError(t, db.Create(&tx).Error)
	return &tx
}

func TestCreatePayment_Validation(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	payments := NewPaymentService(db, domain.NopPublisher{})
	u := givenUser(t, db)

	_, err := payments.CreatePayment(ctx, u.ID, 0, model.TransactionTypeDeposit)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = payments.CreatePayment(ctx, u.ID, 5, model.TransactionTypeFine)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = payments.CreatePayment(ctx, "missing", 5, model.TransactionTypeDeposit)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// nothing to pay yet
	_, err = payments.CreatePayment(ctx, u.ID, 1, model.TransactionTypeFinePayment)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCreatePayment_Deposit(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	payments := NewPaymentService(db, domain.NopPublisher{})
	u := givenUser(t, db)

	p, err := payments.CreatePayment(ctx, u.ID, 20, model.TransactionTypeDeposit)

	require.NoError(t, err)
	assert.Equal(t, model.TransactionStatusPending, p.Status)
	assert.Equal(t, 20.0, p.Amount)
	require.NotNil(t, p.User)
	assert.Equal(t, u.Email, p.User.Email)
	assert.Empty(t, p.User.Password)
}

func TestUpdatePaymentStatus_SettlesOldestFines(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	payments := NewPaymentService(db, domain.NopPublisher{})
	u := givenUser(t, db)
	oldest := givenFine(t, db, u.ID, 2, start)
	middle := givenFine(t, db, u.ID, 3, start.Add(time.Hour))
	newest := givenFine(t, db, u.ID, 4, start.Add(2*time.Hour))

	_, err := payments.CreatePayment(ctx, u.ID, 9.5, model.TransactionTypeFinePayment)
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "more than the outstanding 9.00")

	p, err := payments.CreatePayment(ctx, u.ID, 6, model.TransactionTypeFinePayment)
	require.NoError(t, err)

	done, err := payments.UpdatePaymentStatus(ctx, p.ID, model.TransactionStatusCompleted)

	require.NoError(t, err)
	assert.Equal(t, model.TransactionStatusCompleted, done.Status)
	status := func(id string) model.TransactionStatus {
		var tx model.Transaction
		require.NoError(t, db.First(&tx, "id = ?", id).Error)
		return tx.Status
	}
	assert.Equal(t, model.TransactionStatusCompleted, status(oldest.ID))
	assert.Equal(t, model.TransactionStatusCompleted, status(middle.ID))
	assert.Equal(t, model.TransactionStatusPending, status(newest.ID))

	_, err = payments.UpdatePaymentStatus(ctx, p.ID, model.TransactionStatusFailed)
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "only pending payments change status")
}

func TestUpdatePaymentStatus_FailedLeavesFines(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	payments := NewPaymentService(db, domain.NopPublisher{})
	u := givenUser(t, db)
	fine := givenFine(t, db, u.ID, 2, start)
	p, err := payments.CreatePayment(ctx, u.ID, 2, model.TransactionTypeFinePayment)
	require.NoError(t, err)

	_, err = payments.UpdatePaymentStatus(ctx, p.ID, model.TransactionStatusPending)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	failed, err := payments.UpdatePaymentStatus(ctx, p.ID, model.TransactionStatusFailed)
	require.NoError(t, err)
	assert.Equal(t, model.TransactionStatusFailed, failed.Status)

	var still model.Transaction
	require.NoError(t, db.First(&still, "id = ?", fine.ID).Error)
	assert.Equal(t, model.TransactionStatusPending, still.Status)

	_, err = payments.UpdatePaymentStatus(ctx, "missing", model.TransactionStatusCompleted)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPaymentHistoryAndStats(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	payments := NewPaymentService(db, domain.NopPublisher{})
	alice := givenUser(t, db)
	bob := givenUser(t, db)
	givenFine(t, db, alice.ID, 10, start)

	paid, err := payments.CreatePayment(ctx, alice.ID, 4, model.TransactionTypeFinePayment)
	require.NoError(t, err)
	_, err = payments.UpdatePaymentStatus(ctx, paid.ID, model.TransactionStatusCompleted)
	require.NoError(t, err)
	failed, err := payments.CreatePayment(ctx, alice.ID, 1, model.TransactionTypeDeposit)
	require.NoError(t, err)
	_, err = payments.UpdatePaymentStatus(ctx, failed.ID, model.TransactionStatusFailed)
	require.NoError(t, err)
	_, err = payments.CreatePayment(ctx, bob.ID, 7, model.TransactionTypeDeposit)
	require.NoError(t, err)

	history, total, err := payments.GetPaymentHistory(ctx, domain.PaymentFilter{UserID: alice.ID}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total, "fines are listed with the payments")
	require.Len(t, history, 3)
	assert.Equal(t, failed.ID, history[0].ID, "newest first")
	assert.Equal(t, model.TransactionTypeFine, history[2].Type)

	deposits, total, err := payments.GetPaymentHistory(ctx, domain.PaymentFilter{Type: model.TransactionTypeDeposit, Status: model.TransactionStatusPending}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, bob.ID, deposits[0].UserID)

	all, err := payments.GetPaymentStats(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 4.0, all.TotalCollected)
	assert.Equal(t, 17.0, all.PendingAmount) // alice's unsettled fine plus bob's deposit
	assert.Equal(t, int64(1), all.SuccessfulPayments)
	assert.Equal(t, int64(1), all.FailedPayments)

	mine, err := payments.GetPaymentStats(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 7.0, mine.PendingAmount)
	assert.Zero(t, mine.TotalCollected)
}

func TestPaymentStats_SettledFineCountsOnce(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	payments := NewPaymentService(db, domain.NopPublisher{})
	u := givenUser(t, db)
	fine := givenFine(t, db, u.ID, 6, start)

	p, err := payments.CreatePayment(ctx, u.ID, 6, model.TransactionTypeFinePayment)
	require.NoError(t, err)
	_, err = payments.UpdatePaymentStatus(ctx, p.ID, model.TransactionStatusCompleted)
	require.NoError(t, err)

	var settled model.Transaction
	require.NoError(t, db.First(&settled, "id = ?", fine.ID).Error)
	require.Equal(t, model.TransactionStatusCompleted, settled.Status)

	for _, userID := range []string{u.ID, ""} {
		stats, err := payments.GetPaymentStats(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, 6.0, stats.TotalCollected)
		assert.Equal(t, int64(1), stats.SuccessfulPayments)
		assert.Zero(t, stats.PendingAmount)
	}

	history, total, err := payments.GetPaymentHistory(ctx, domain.PaymentFilter{UserID: u.ID}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total, "the settled fine stays in the history")
	assert.Len(t, history, 2)
}

func TestGenerateInvoice(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	payments := NewPaymentService(db, domain.NopPublisher{})
	u := givenUser(t, db)
	p, err := payments.CreatePayment(ctx, u.ID, 12, model.TransactionTypeDeposit)
	require.NoError(t, err)

	invoice, err := payments.GenerateInvoice(ctx, p.ID)

	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^INV-\d{8}-[0-9A-F]{8}$`), invoice.InvoiceNumber)
	assert.Equal(t, u.Email, invoice.Payment.User.Email)

	again, err := payments.GenerateInvoice(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, invoice.InvoiceNumber, again.InvoiceNumber)

	_, err = payments.GenerateInvoice(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestExportPaymentHistory(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	payments := NewPaymentService(db, domain.NopPublisher{})
	u := givenUser(t, db)
	_, err := payments.CreatePayment(ctx, u.ID, 3, model.TransactionTypeDeposit)
	require.NoError(t, err)
	_, err = payments.CreatePayment(ctx, u.ID, 8, model.TransactionTypeDeposit)
	require.NoError(t, err)

	buf, err := payments.ExportPaymentHistory(ctx, domain.PaymentFilter{UserID: u.ID})
	require.NoError(t, err)

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(paymentsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, paymentsHeader, rows[0])
	assert.Equal(t, u.Email, rows[1][2])
	assert.Equal(t, "DEPOSIT", rows[1][4])
	assert.Equal(t, "PENDING", rows[1][5])
	assert.Equal(t, "8", rows[1][6])
}
