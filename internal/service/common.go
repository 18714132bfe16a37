package service

import (
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"libraryhub.com/internal/domain"
)

// paginate assumes page and pageSize were already clamped by the caller.
func paginate(page, pageSize int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if page < 1 {
			page = 1
		}
		return db.Limit(pageSize).Offset((page - 1) * pageSize)
	}
}

// containsPattern builds a case-insensitive LIKE operand; match it against LOWER(column).
func containsPattern(s string) string {
	return "%" + strings.ToLower(strings.TrimSpace(s)) + "%"
}

// forUpdate locks selected rows on Postgres; sqlite ignores it and serializes writers anyway.
var forUpdate = clause.Locking{Strength: "UPDATE"}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// passThrough keeps AppErrors returned from inside a transaction and wraps anything else.
func passThrough(msg string, err error) error {
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return domain.NewInternalError(msg, err)
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

type idCount struct {
	ID    string
	Count int64
}

type idSum struct {
	ID  string
	Sum float64
}
