package model

import (
	"time"

	"gorm.io/gorm"
)

// Book is a catalog entry. AvailableCopies stays within [0, TotalCopies].
type Book struct {
	Base
	ISBN            string         `gorm:"column:isbn;uniqueIndex;size:32;not null" json:"isbn"`
	Title           string         `gorm:"size:255;not null;index" json:"title"`
	TotalCopies     int            `gorm:"not null" json:"totalCopies"`
	AvailableCopies int            `gorm:"not null" json:"availableCopies"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`

	Authors    []Author   `gorm:"many2many:book_authors;" json:"authors"`
	Categories []Category `gorm:"many2many:book_categories;" json:"categories"`
}

type Author struct {
	Base
	Name      string         `gorm:"size:255;not null;index" json:"name"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

type Category struct {
	Base
	Name      string         `gorm:"uniqueIndex;size:100;not null" json:"name"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// BookAuthor is the join row between books and authors.
type BookAuthor struct {
	BookID    string `gorm:"primaryKey;size:36"`
	AuthorID  string `gorm:"primaryKey;size:36;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BookCategory is the join row between books and categories.
type BookCategory struct {
	BookID     string `gorm:"primaryKey;size:36"`
	CategoryID string `gorm:"primaryKey;size:36;index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
