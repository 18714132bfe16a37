package service

import (
	"gorm.io/gorm"
	"libraryhub.com/internal/model"
)

// countLiveBooks counts, per owner id, the non-deleted books linked through
// joinModel. column is the owner column on the join table.
func countLiveBooks(db *gorm.DB, joinModel interface{}, column string, ids []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(ids))
	if len(ids) == 0 {
		return counts, nil
	}

	var rows []idCount
	err := db.Model(joinModel).
		Select(column+" AS id, COUNT(*) AS count").
		Where(column+" IN ?", ids).
		Where("book_id IN (?)", db.Model(&model.Book{}).Select("id")).
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, r := range rows {
		counts[r.ID] = r.Count
	}
	return counts, nil
}
