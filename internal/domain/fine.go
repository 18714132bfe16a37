package domain

import (
	"math"
	"time"
)

// FineCalculation is the result of CalculateFine.
type FineCalculation struct {
	Amount      float64 `json:"fine"`
	DaysOverdue int     `json:"daysOverdue"`
}

// CalculateFine charges perDay for every started day past dueDate.
// Nothing is owed when returnedAt is not after dueDate.
func CalculateFine(dueDate, returnedAt time.Time, perDay float64) FineCalculation {
	if !returnedAt.After(dueDate) {
		return FineCalculation{}
	}

	days := int(math.Ceil(returnedAt.Sub(dueDate).Hours() / 24))
	return FineCalculation{
		Amount:      float64(days) * perDay,
		DaysOverdue: days,
	}
}
