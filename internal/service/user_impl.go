package service

import (
	"context"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"
	"libraryhub.com/internal/constants"
	"libraryhub.com/internal/domain"
	"libraryhub.com/internal/model"
)

// UserServiceImpl implements domain.UserService
type UserServiceImpl struct {
	db     *gorm.DB
	events domain.EventPublisher
	now    func() time.Time
}

func NewUserService(db *gorm.DB, events domain.EventPublisher) *UserServiceImpl {
	return &UserServiceImpl{db: db, events: events, now: time.Now}
}

// ListUsers returns users matching the filter, newest first.
func (s *UserServiceImpl) ListUsers(ctx context.Context, filter domain.UserFilter, page, pageSize int) ([]domain.UserView, int64, error) {
	query := s.db.WithContext(ctx).Model(&model.User{})

	if filter.Search != "" {
		p := containsPattern(filter.Search)
		query = query.Where("LOWER(email) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?", p, p, p)
	}
	if filter.Role != "" {
		query = query.Where("role = ?", filter.Role)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, domain.NewInternalError("failed to count users", err)
	}

	var users []model.User
	if err := query.Order("created_at DESC").Scopes(paginate(page, pageSize)).Find(&users).Error; err != nil {
		return nil, 0, domain.NewInternalError("failed to fetch users", err)
	}

	views, err := s.withTotals(ctx, users)
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

func (s *UserServiceImpl) GetUser(ctx context.Context, id string) (*domain.UserView, error) {
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	views, err := s.withTotals(ctx, []model.User{*user})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// UpdateUser applies the non-nil fields of in.
func (s *UserServiceImpl) UpdateUser(ctx context.Context, id string, in domain.UserUpdate) (*domain.UserView, error) {
	var v domain.Validator
	updates := map[string]interface{}{}
	if in.FirstName != nil {
		name := strings.TrimSpace(*in.FirstName)
		v.Check(len(name) >= 2, "firstName", "must be at least 2 characters")
		updates["first_name"] = name
	}
	if in.LastName != nil {
		name := strings.TrimSpace(*in.LastName)
		v.Check(len(name) >= 2, "lastName", "must be at least 2 characters")
		updates["last_name"] = name
	}
	if in.IsActive != nil {
		updates["is_active"] = *in.IsActive
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	wasActive := user.IsActive

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
			return nil, domain.NewInternalError("failed to update user", err)
		}
		log.Printf("UserService: User updated: %s", id)
	}
	if in.IsActive != nil && *in.IsActive != wasActive {
		s.events.Publish(ctx, constants.EventUserStatusChanged, map[string]interface{}{"userId": id, "isActive": *in.IsActive})
	}
	return s.GetUser(ctx, id)
}

// ToggleStatus flips IsActive.
func (s *UserServiceImpl) ToggleStatus(ctx context.Context, id string) (*domain.UserView, error) {
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	active := !user.IsActive
	if err := s.db.WithContext(ctx).Model(user).Update("is_active", active).Error; err != nil {
		return nil, domain.NewInternalError("failed to update user status", err)
	}

	log.Printf("UserService: User %s active=%t", id, active)
	s.events.Publish(ctx, constants.EventUserStatusChanged, map[string]interface{}{"userId": id, "isActive": active})
	return s.GetUser(ctx, id)
}

// VerifyUser marks the account verified so it may borrow.
func (s *UserServiceImpl) VerifyUser(ctx context.Context, id string) (*domain.UserView, error) {
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if !user.IsVerified {
		if err := s.db.WithContext(ctx).Model(user).Update("is_verified", true).Error; err != nil {
			return nil, domain.NewInternalError("failed to verify user", err)
		}
		log.Printf("UserService: User verified: %s", id)
	}
	return s.GetUser(ctx, id)
}

// DeleteUser soft-deletes a user who has no books out.
func (s *UserServiceImpl) DeleteUser(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user model.User
		if err := tx.Clauses(forUpdate).First(&user, "id = ?", id).Error; err != nil {
			if isNotFound(err) {
				return domain.NewNotFoundError("User not found")
			}
			return domain.NewInternalError("failed to load user", err)
		}

		var active int64
		if err := tx.Model(&model.BorrowRecord{}).
			Where("user_id = ? AND return_date IS NULL", id).
			Count(&active).Error; err != nil {
			return domain.NewInternalError("failed to count loans", err)
		}
		if active > 0 {
			return domain.NewBadRequestError("Cannot delete a user with borrowed books")
		}

		if err := tx.Delete(&user).Error; err != nil {
			return domain.NewInternalError("failed to delete user", err)
		}
		log.Printf("UserService: User deleted: %s", id)
		return nil
	})
}

func (s *UserServiceImpl) GetBorrowingStats(ctx context.Context, id string) (*domain.BorrowingStats, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	var stats domain.BorrowingStats

	if err := db.Model(&model.BorrowRecord{}).
		Where("user_id = ? AND return_date IS NULL", id).
		Count(&stats.CurrentlyBorrowed).Error; err != nil {
		return nil, domain.NewInternalError("failed to count loans", err)
	}

	if err := db.Model(&model.BorrowRecord{}).
		Where("user_id = ? AND return_date IS NULL AND due_date < ?", id, s.now()).
		Count(&stats.OverdueBooksCount).Error; err != nil {
		return nil, domain.NewInternalError("failed to count overdue loans", err)
	}

	if err := db.Model(&model.Transaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ? AND type = ? AND status = ?", id, model.TransactionTypeFine, model.TransactionStatusPending).
		Scan(&stats.TotalFinesPending).Error; err != nil {
		return nil, domain.NewInternalError("failed to sum fines", err)
	}

	return &stats, nil
}

func (s *UserServiceImpl) load(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if isNotFound(err) {
			return nil, domain.NewNotFoundError("User not found")
		}
		return nil, domain.NewInternalError("failed to load user", err)
	}
	return &user, nil
}

// withTotals attaches active loan counts and pending fines in two grouped queries.
func (s *UserServiceImpl) withTotals(ctx context.Context, users []model.User) ([]domain.UserView, error) {
	views := make([]domain.UserView, len(users))
	if len(users) == 0 {
		return views, nil
	}

	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}

	db := s.db.WithContext(ctx)

	var loans []idCount
	if err := db.Model(&model.BorrowRecord{}).
		Select("user_id AS id, COUNT(*) AS count").
		Where("user_id IN ? AND return_date IS NULL", ids).
		Group("user_id").
		Scan(&loans).Error; err != nil {
		return nil, domain.NewInternalError("failed to count loans", err)
	}

	var fines []idSum
	if err := db.Model(&model.Transaction{}).
		Select("user_id AS id, SUM(amount) AS sum").
		Where("user_id IN ? AND type = ? AND status = ?", ids, model.TransactionTypeFine, model.TransactionStatusPending).
		Group("user_id").
		Scan(&fines).Error; err != nil {
		return nil, domain.NewInternalError("failed to sum fines", err)
	}

	loanByUser := make(map[string]int64, len(loans))
	for _, l := range loans {
		loanByUser[l.ID] = l.Count
	}
	fineByUser := make(map[string]float64, len(fines))
	for _, f := range fines {
		fineByUser[f.ID] = f.Sum
	}

	for i, u := range users {
		views[i] = domain.UserView{
			User:               u,
			BorrowedBooksCount: loanByUser[u.ID],
			TotalFines:         fineByUser[u.ID],
		}
	}
	return views, nil
}

// Ensure interface implementation
var _ domain.UserService = (*UserServiceImpl)(nil)
