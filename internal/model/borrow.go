package model

import "time"

// BorrowStatus is derived from ReturnDate and DueDate, never stored.
type BorrowStatus string

const (
	BorrowStatusActive   BorrowStatus = "ACTIVE"
	BorrowStatusReturned BorrowStatus = "RETURNED"
	BorrowStatusOverdue  BorrowStatus = "OVERDUE"
)

func (s BorrowStatus) Valid() bool {
	switch s {
	case BorrowStatusActive, BorrowStatusReturned, BorrowStatusOverdue:
		return true
	}
	return false
}

// BorrowRecord is one loan. It is written twice: on borrow and on return.
// idx_borrow_records_active allows one open loan per (user, book).
type BorrowRecord struct {
	Base
	UserID     string     `gorm:"size:36;not null;index;index:idx_borrow_records_active,unique,where:return_date IS NULL" json:"userId"`
	BookID     string     `gorm:"size:36;not null;index;index:idx_borrow_records_active,unique,where:return_date IS NULL" json:"bookId"`
	BorrowDate time.Time  `gorm:"not null;index" json:"borrowDate"`
	DueDate    time.Time  `gorm:"not null" json:"dueDate"`
	ReturnDate *time.Time `gorm:"index" json:"returnDate"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Book *Book `gorm:"foreignKey:BookID" json:"book,omitempty"`
}

func (r *BorrowRecord) Returned() bool {
	return r.ReturnDate != nil
}

// IsOverdue reports whether an open loan is past due at now.
func (r *BorrowRecord) IsOverdue(now time.Time) bool {
	return r.ReturnDate == nil && r.DueDate.Before(now)
}
