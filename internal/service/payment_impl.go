package service

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"
	"libraryhub.com/internal/constants"
	"libraryhub.com/internal/domain"
	"libraryhub.com/internal/model"
)

// amounts closer than this are treated as equal
const amountEpsilon = 1e-9

// maxExportRows caps a single spreadsheet export.
const maxExportRows = 10000

// PaymentServiceImpl implements domain.PaymentService
type PaymentServiceImpl struct {
	db     *gorm.DB
	events domain.EventPublisher
	now    func() time.Time
}

func NewPaymentService(db *gorm.DB, events domain.EventPublisher) *PaymentServiceImpl {
	return &PaymentServiceImpl{db: db, events: events, now: time.Now}
}

func withPayer(db *gorm.DB) *gorm.DB {
	return db.Unscoped().Select("id", "email", "first_name", "last_name")
}

// CreatePayment records a PENDING fine payment or deposit.
func (s *PaymentServiceImpl) CreatePayment(ctx context.Context, userID string, amount float64, txType model.TransactionType) (*model.Transaction, error) {
	var v domain.Validator
	v.Check(amount > 0, "amount", "must be greater than 0")
	v.Check(txType == model.TransactionTypeFinePayment || txType == model.TransactionTypeDeposit,
		"type", "must be FINE_PAYMENT or DEPOSIT")
	if err := v.Err(); err != nil {
		return nil, err
	}

	payment := model.Transaction{
		UserID: userID,
		Amount: amount,
		Type:   txType,
		Status: model.TransactionStatusPending,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user model.User
		if err := tx.First(&user, "id = ?", userID).Error; err != nil {
			if isNotFound(err) {
				return domain.NewNotFoundError("User not found")
			}
			return domain.NewInternalError("failed to load user", err)
		}

		if txType == model.TransactionTypeFinePayment {
			outstanding, err := pendingFines(tx, userID)
			if err != nil {
				return err
			}
			if amount > outstanding+amountEpsilon {
				return domain.NewBadRequestError(fmt.Sprintf("Payment exceeds outstanding fines of %.2f", outstanding))
			}
		}

		if err := tx.Create(&payment).Error; err != nil {
			return domain.NewInternalError("failed to create payment", err)
		}
		return nil
	})
	if err != nil {
		return nil, passThrough("failed to create payment", err)
	}

	log.Printf("PaymentService: Payment created: %s (%s %.2f)", payment.ID, payment.Type, payment.Amount)
	s.events.Publish(ctx, constants.EventPaymentCreated, map[string]interface{}{
		"transactionId": payment.ID,
		"userId":        userID,
		"type":          payment.Type,
		"amount":        payment.Amount,
	})
	return s.GetPayment(ctx, payment.ID)
}

// UpdatePaymentStatus moves a PENDING transaction to COMPLETED or FAILED.
// A completed fine payment settles the oldest pending fines it covers.
func (s *PaymentServiceImpl) UpdatePaymentStatus(ctx context.Context, id string, status model.TransactionStatus) (*model.Transaction, error) {
	if status != model.TransactionStatusCompleted && status != model.TransactionStatusFailed {
		return nil, domain.NewValidationError([]domain.FieldError{{Field: "status", Message: "must be COMPLETED or FAILED"}})
	}

	var settled int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var payment model.Transaction
		if err := tx.Clauses(forUpdate).First(&payment, "id = ?", id).Error; err != nil {
			if isNotFound(err) {
				return domain.NewNotFoundError("Payment not found")
			}
			return domain.NewInternalError("failed to load payment", err)
		}
		if payment.Status != model.TransactionStatusPending {
			return domain.NewBadRequestError(fmt.Sprintf("Payment is already %s", strings.ToLower(string(payment.Status))))
		}

		if err := tx.Model(&payment).Update("status", status).Error; err != nil {
			return domain.NewInternalError("failed to update payment status", err)
		}

		if status == model.TransactionStatusCompleted && payment.Type == model.TransactionTypeFinePayment {
			n, err := settleFines(tx, payment.UserID, payment.Amount)
			if err != nil {
				return err
			}
			settled = n
		}
		return nil
	})
	if err != nil {
		return nil, passThrough("failed to update payment status", err)
	}

	log.Printf("PaymentService: Payment %s -> %s (%d fines settled)", id, status, settled)
	eventType := constants.EventPaymentFailed
	if status == model.TransactionStatusCompleted {
		eventType = constants.EventPaymentCompleted
	}
	s.events.Publish(ctx, eventType, map[string]interface{}{"transactionId": id, "finesSettled": settled})

	return s.GetPayment(ctx, id)
}

func (s *PaymentServiceImpl) GetPayment(ctx context.Context, id string) (*model.Transaction, error) {
	var payment model.Transaction
	if err := s.db.WithContext(ctx).Preload("User", withPayer).First(&payment, "id = ?", id).Error; err != nil {
		if isNotFound(err) {
			return nil, domain.NewNotFoundError("Payment not found")
		}
		return nil, domain.NewInternalError("failed to load payment", err)
	}
	return &payment, nil
}

func (s *PaymentServiceImpl) filtered(ctx context.Context, filter domain.PaymentFilter) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&model.Transaction{})
	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Start != nil {
		query = query.Where("created_at >= ?", *filter.Start)
	}
	if filter.End != nil {
		query = query.Where("created_at <= ?", *filter.End)
	}
	return query
}

// GetPaymentHistory lists transactions newest first.
func (s *PaymentServiceImpl) GetPaymentHistory(ctx context.Context, filter domain.PaymentFilter, page, pageSize int) ([]model.Transaction, int64, error) {
	query := s.filtered(ctx, filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, domain.NewInternalError("failed to count payments", err)
	}

	var payments []model.Transaction
	if err := query.Preload("User", withPayer).
		Order("created_at DESC").Order("id DESC").
		Scopes(paginate(page, pageSize)).
		Find(&payments).Error; err != nil {
		return nil, 0, domain.NewInternalError("failed to fetch payments", err)
	}
	return payments, total, nil
}

// GetPaymentStats summarizes all transactions, or one user's when userID is set.
// Settled FINE rows are left out: the FINE_PAYMENT that settled them is the money collected.
func (s *PaymentServiceImpl) GetPaymentStats(ctx context.Context, userID string) (*domain.PaymentStats, error) {
	type row struct {
		Status model.TransactionStatus
		Total  float64
		Count  int64
	}

	query := s.db.WithContext(ctx).Model(&model.Transaction{}).
		Where("NOT (type = ? AND status = ?)", model.TransactionTypeFine, model.TransactionStatusCompleted)
	if userID != "" {
		query = query.Where("user_id = ?", userID)
	}

	var rows []row
	if err := query.Select("status, COALESCE(SUM(amount), 0) AS total, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, domain.NewInternalError("failed to aggregate payments", err)
	}

	var stats domain.PaymentStats
	for _, r := range rows {
		switch r.Status {
		case model.TransactionStatusCompleted:
			stats.TotalCollected = r.Total
			stats.SuccessfulPayments = r.Count
		case model.TransactionStatusPending:
			stats.PendingAmount = r.Total
		case model.TransactionStatusFailed:
			stats.FailedPayments = r.Count
		}
	}
	return &stats, nil
}

// GenerateInvoice returns the payment with payer details and a stable invoice number.
func (s *PaymentServiceImpl) GenerateInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	payment, err := s.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}

	return &domain.Invoice{
		InvoiceNumber: invoiceNumber(payment),
		IssuedAt:      s.now().UTC(),
		Payment:       payment,
	}, nil
}

// ExportPaymentHistory renders the filtered history as an XLSX workbook.
func (s *PaymentServiceImpl) ExportPaymentHistory(ctx context.Context, filter domain.PaymentFilter) (*bytes.Buffer, error) {
	var payments []model.Transaction
	if err := s.filtered(ctx, filter).
		Preload("User", withPayer).
		Order("created_at DESC").
		Limit(maxExportRows).
		Find(&payments).Error; err != nil {
		return nil, domain.NewInternalError("failed to fetch payments", err)
	}

	buf, err := renderPaymentsWorkbook(payments)
	if err != nil {
		return nil, domain.NewInternalError("failed to render workbook", err)
	}
	return buf, nil
}

func invoiceNumber(t *model.Transaction) string {
	short := strings.ToUpper(strings.ReplaceAll(t.ID, "-", ""))
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("INV-%s-%s", t.CreatedAt.UTC().Format("20060102"), short)
}

func pendingFines(tx *gorm.DB, userID string) (float64, error) {
	var total float64
	if err := tx.Model(&model.Transaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ? AND type = ? AND status = ?", userID, model.TransactionTypeFine, model.TransactionStatusPending).
		Scan(&total).Error; err != nil {
		return 0, domain.NewInternalError("failed to sum fines", err)
	}
	return total, nil
}

// settleFines completes the user's oldest pending fines while amount covers them.
func settleFines(tx *gorm.DB, userID string, amount float64) (int, error) {
	var fines []model.Transaction
	if err := tx.Clauses(forUpdate).
		Where("user_id = ? AND type = ? AND status = ?", userID, model.TransactionTypeFine, model.TransactionStatusPending).
		Order("created_at ASC").Order("id ASC").
		Find(&fines).Error; err != nil {
		return 0, domain.NewInternalError("failed to load fines", err)
	}

	var ids []string
	remaining := amount
	for _, f := range fines {
		if f.Amount > remaining+amountEpsilon {
			break
		}
		remaining -= f.Amount
		ids = append(ids, f.ID)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	if err := tx.Model(&model.Transaction{}).
		Where("id IN ?", ids).
		Update("status", model.TransactionStatusCompleted).Error; err != nil {
		return 0, domain.NewInternalError("failed to settle fines", err)
	}
	return len(ids), nil
}

// Ensure interface implementation
var _ domain.PaymentService = (*PaymentServiceImpl)(nil)
