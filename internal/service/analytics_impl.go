package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3" // dialect import
	"gorm.io/gorm"
	"libraryhub.com/internal/domain"
	"libraryhub.com/internal/model"
)

const (
	dialectSqlite3 = "sqlite3"
	// postgres quoting with "?" placeholders, which gorm rebinds to $n itself
	dialectGormPostgres = "gorm-postgres"

	defaultAnalyticsLimit = 10
	maxAnalyticsLimit     = 100
)

func init() {
	opts := postgres.DialectOptions()
	opts.PlaceHolderFragment = []byte("?")
	opts.IncludePlaceholderNum = false
	goqu.RegisterDialect(dialectGormPostgres, opts)
}

// AnalyticsServiceImpl implements domain.AnalyticsService
type AnalyticsServiceImpl struct {
	db      *gorm.DB
	dialect goqu.DialectWrapper
	tables  analyticsTables
}

type analyticsTables struct {
	users        string
	books        string
	borrows      string
	transactions string
}

func NewAnalyticsService(db *gorm.DB) (*AnalyticsServiceImpl, error) {
	name := dialectSqlite3
	if db.Dialector.Name() == "postgres" {
		name = dialectGormPostgres
	}

	s := &AnalyticsServiceImpl{db: db, dialect: goqu.Dialect(name)}

	var err error
	if s.tables.users, err = tableOf(db, &model.User{}); err != nil {
		return nil, err
	}
	if s.tables.books, err = tableOf(db, &model.Book{}); err != nil {
		return nil, err
	}
	if s.tables.borrows, err = tableOf(db, &model.BorrowRecord{}); err != nil {
		return nil, err
	}
	if s.tables.transactions, err = tableOf(db, &model.Transaction{}); err != nil {
		return nil, err
	}
	return s, nil
}

// tableOf resolves the table name through gorm so a configured prefix applies.
func tableOf(db *gorm.DB, value interface{}) (string, error) {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(value); err != nil {
		return "", fmt.Errorf("analytics: resolve table for %T: %w", value, err)
	}
	return stmt.Schema.Table, nil
}

func (s *AnalyticsServiceImpl) scan(ctx context.Context, ds *goqu.SelectDataset, dest interface{}) error {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return domain.NewInternalError("failed to build analytics query", err)
	}
	if err := s.db.WithContext(ctx).Raw(query, args...).Scan(dest).Error; err != nil {
		return domain.NewInternalError("failed to run analytics query", err)
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultAnalyticsLimit
	}
	if limit > maxAnalyticsLimit {
		return maxAnalyticsLimit
	}
	return limit
}

// MostBorrowedBooks ranks live books by how many times they were ever borrowed.
func (s *AnalyticsServiceImpl) MostBorrowedBooks(ctx context.Context, limit int) ([]domain.BookAnalytics, error) {
	ds := s.dialect.
		From(goqu.T(s.tables.borrows).As("r")).
		InnerJoin(goqu.T(s.tables.books).As("b"), goqu.On(goqu.I("b.id").Eq(goqu.I("r.book_id")))).
		Select(
			goqu.I("b.id"),
			goqu.I("b.title"),
			goqu.I("b.isbn"),
			goqu.I("b.available_copies"),
			goqu.COUNT(goqu.I("r.id")).As("total_borrows"),
			goqu.SUM(goqu.Case().When(goqu.I("r.return_date").IsNull(), goqu.L("1")).Else(goqu.L("0"))).As("currently_borrowed"),
		).
		Where(goqu.I("b.deleted_at").IsNull()).
		GroupBy(goqu.I("b.id"), goqu.I("b.title"), goqu.I("b.isbn"), goqu.I("b.available_copies")).
		Order(goqu.I("total_borrows").Desc(), goqu.I("b.title").Asc()).
		Limit(uint(clampLimit(limit)))

	books := make([]domain.BookAnalytics, 0)
	if err := s.scan(ctx, ds, &books); err != nil {
		return nil, err
	}
	return books, nil
}

func (s *AnalyticsServiceImpl) count(ctx context.Context, table string, where ...goqu.Expression) (int64, error) {
	var n int64
	ds := s.dialect.From(table).Select(goqu.COUNT(goqu.Star())).Where(where...)
	if err := s.scan(ctx, ds, &n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *AnalyticsServiceImpl) sumPayments(ctx context.Context, status model.TransactionStatus, where ...goqu.Expression) (float64, error) {
	var total float64
	where = append(where, goqu.Ex{
		"type":   model.TransactionTypeFinePayment,
		"status": status,
	})
	ds := s.dialect.From(s.tables.transactions).
		Select(goqu.COALESCE(goqu.SUM("amount"), goqu.L("0"))).
		Where(where...)
	if err := s.scan(ctx, ds, &total); err != nil {
		return 0, err
	}
	return total, nil
}

func between(col string, start, end time.Time) goqu.Expression {
	return goqu.And(goqu.C(col).Gte(start), goqu.C(col).Lt(end))
}

// MonthlyReport summarizes one calendar month (UTC).
func (s *AnalyticsServiceImpl) MonthlyReport(ctx context.Context, year, month int) (*domain.MonthlyReport, error) {
	var v domain.Validator
	v.Check(year >= 2000 && year <= 2100, "year", "must be between 2000 and 2100")
	v.Check(month >= 1 && month <= 12, "month", "must be between 1 and 12")
	if err := v.Err(); err != nil {
		return nil, err
	}

	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	report := &domain.MonthlyReport{Month: time.Month(month).String(), Year: year}

	var err error
	if report.TotalBorrows, err = s.count(ctx, s.tables.borrows, between("borrow_date", start, end)); err != nil {
		return nil, err
	}
	if report.TotalReturns, err = s.count(ctx, s.tables.borrows, between("return_date", start, end)); err != nil {
		return nil, err
	}
	if report.OverdueBooksCount, err = s.count(ctx, s.tables.borrows,
		between("return_date", start, end),
		goqu.C("return_date").Gt(goqu.C("due_date")),
	); err != nil {
		return nil, err
	}
	if report.NewMembersCount, err = s.count(ctx, s.tables.users,
		between("created_at", start, end),
		goqu.C("deleted_at").IsNull(),
	); err != nil {
		return nil, err
	}
	if report.TotalFinesCollected, err = s.sumPayments(ctx, model.TransactionStatusCompleted,
		between("created_at", start, end),
	); err != nil {
		return nil, err
	}
	return report, nil
}

// UserActivity counts live members by status and ranks the heaviest borrowers.
func (s *AnalyticsServiceImpl) UserActivity(ctx context.Context, limit int) (*domain.UserActivityStats, error) {
	stats := &domain.UserActivityStats{TopBorrowers: make([]domain.TopBorrower, 0)}

	var err error
	live := goqu.C("deleted_at").IsNull()
	if stats.ActiveUsers, err = s.count(ctx, s.tables.users, live, goqu.C("is_active").Eq(true)); err != nil {
		return nil, err
	}
	if stats.InactiveUsers, err = s.count(ctx, s.tables.users, live, goqu.C("is_active").Eq(false)); err != nil {
		return nil, err
	}

	type row struct {
		ID          string
		Email       string
		FirstName   string
		LastName    string
		BorrowCount int64
	}
	ds := s.dialect.
		From(goqu.T(s.tables.borrows).As("r")).
		InnerJoin(goqu.T(s.tables.users).As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("r.user_id")))).
		Select(
			goqu.I("u.id"),
			goqu.I("u.email"),
			goqu.I("u.first_name"),
			goqu.I("u.last_name"),
			goqu.COUNT(goqu.I("r.id")).As("borrow_count"),
		).
		Where(goqu.I("u.deleted_at").IsNull()).
		GroupBy(goqu.I("u.id"), goqu.I("u.email"), goqu.I("u.first_name"), goqu.I("u.last_name")).
		Order(goqu.I("borrow_count").Desc(), goqu.I("u.email").Asc()).
		Limit(uint(clampLimit(limit)))

	var rows []row
	if err := s.scan(ctx, ds, &rows); err != nil {
		return nil, err
	}
	for _, r := range rows {
		stats.TopBorrowers = append(stats.TopBorrowers, domain.TopBorrower{
			User: domain.BorrowerSummary{
				ID:        r.ID,
				Email:     r.Email,
				FirstName: r.FirstName,
				LastName:  r.LastName,
			},
			BorrowCount: r.BorrowCount,
		})
	}
	return stats, nil
}

// RevenueStats reports fine payments. The range applies only when both bounds are set.
func (s *AnalyticsServiceImpl) RevenueStats(ctx context.Context, filter domain.DateRange) (*domain.RevenueStats, error) {
	var where []goqu.Expression
	if filter.Start != nil && filter.End != nil {
		if filter.End.Before(*filter.Start) {
			return nil, domain.NewBadRequestError("endDate must not be before startDate")
		}
		where = append(where, goqu.C("created_at").Gte(*filter.Start), goqu.C("created_at").Lte(*filter.End))
	}

	completed, err := s.sumPayments(ctx, model.TransactionStatusCompleted, where...)
	if err != nil {
		return nil, err
	}
	pending, err := s.sumPayments(ctx, model.TransactionStatusPending, where...)
	if err != nil {
		return nil, err
	}

	type row struct {
		CreatedAt time.Time
		Amount    float64
	}
	ds := s.dialect.From(s.tables.transactions).
		Select("created_at", "amount").
		Where(append(where, goqu.Ex{
			"type":   model.TransactionTypeFinePayment,
			"status": model.TransactionStatusCompleted,
		})...)
	var rows []row
	if err := s.scan(ctx, ds, &rows); err != nil {
		return nil, err
	}

	return &domain.RevenueStats{
		TotalRevenue:   completed,
		FinesByMonth:   groupByMonth(rows, func(r row) (time.Time, float64) { return r.CreatedAt, r.Amount }),
		PendingFines:   pending,
		CollectionRate: domain.CollectionRate(completed, pending),
	}, nil
}

// groupByMonth sums amounts per calendar month (UTC), oldest first.
func groupByMonth[T any](rows []T, get func(T) (time.Time, float64)) []domain.MonthlyAmount {
	type key struct {
		year  int
		month time.Month
	}
	sums := make(map[key]float64)
	for _, r := range rows {
		at, amount := get(r)
		at = at.UTC()
		sums[key{at.Year(), at.Month()}] += amount
	}

	keys := make([]key, 0, len(sums))
	for k := range sums {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].year != keys[j].year {
			return keys[i].year < keys[j].year
		}
		return keys[i].month < keys[j].month
	})

	out := make([]domain.MonthlyAmount, 0, len(keys))
	for _, k := range keys {
		out = append(out, domain.MonthlyAmount{Month: k.month.String(), Year: k.year, Amount: sums[k]})
	}
	return out
}

// Ensure interface implementation
var _ domain.AnalyticsService = (*AnalyticsServiceImpl)(nil)
