package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"gorm.io/gorm"
	"libraryhub.com/internal/domain"
	"libraryhub.com/internal/model"
)

// BookServiceImpl implements domain.BookService
type BookServiceImpl struct {
	db *gorm.DB
}

func NewBookService(db *gorm.DB) *BookServiceImpl {
	return &BookServiceImpl{db: db}
}

func validateBookInput(in *domain.BookInput) error {
	in.ISBN = strings.TrimSpace(in.ISBN)
	in.Title = strings.TrimSpace(in.Title)
	in.AuthorIDs = uniqueIDs(in.AuthorIDs)
	in.CategoryIDs = uniqueIDs(in.CategoryIDs)

	var v domain.Validator
	v.Check(len(in.ISBN) >= 10, "isbn", "must be at least 10 characters")
	v.Check(len(in.ISBN) <= 32, "isbn", "must be at most 32 characters")
	v.Check(in.Title != "", "title", "is required")
	v.Check(in.TotalCopies >= 1, "totalCopies", "must be at least 1")
	v.Check(len(in.AuthorIDs) >= 1, "authorIds", "at least one author is required")
	v.Check(len(in.CategoryIDs) >= 1, "categoryIds", "at least one category is required")
	return v.Err()
}

// CreateBook adds a catalog entry with all copies on the shelf.
func (s *BookServiceImpl) CreateBook(ctx context.Context, in domain.BookInput) (*model.Book, error) {
	if err := validateBookInput(&in); err != nil {
		return nil, err
	}

	book := model.Book{
		ISBN:            in.ISBN,
		Title:           in.Title,
		TotalCopies:     in.TotalCopies,
		AvailableCopies: in.TotalCopies,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		authors, err := loadAuthors(tx, in.AuthorIDs)
		if err != nil {
			return err
		}
		categories, err := loadCategories(tx, in.CategoryIDs)
		if err != nil {
			return err
		}

		book.Authors = authors
		book.Categories = categories
		if err := tx.Omit("Authors.*", "Categories.*").Create(&book).Error; err != nil {
			if isDuplicate(err) {
				return domain.NewConflictError("Book with this ISBN already exists")
			}
			return domain.NewInternalError("failed to create book", err)
		}
		return nil
	})
	if err != nil {
		return nil, passThrough("failed to create book", err)
	}

	log.Printf("BookService: Book created: %s (%s)", book.ID, book.ISBN)
	return s.GetBook(ctx, book.ID)
}

// UpdateBook changes title, copy count and associations. Copies on loan
// are preserved: availableCopies moves by the same delta as totalCopies.
func (s *BookServiceImpl) UpdateBook(ctx context.Context, id string, in domain.BookUpdate) (*model.Book, error) {
	var v domain.Validator
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		in.Title = &title
		v.Check(title != "", "title", "must not be empty")
	}
	if in.TotalCopies != nil {
		v.Check(*in.TotalCopies >= 1, "totalCopies", "must be at least 1")
	}
	if in.AuthorIDs != nil {
		in.AuthorIDs = uniqueIDs(in.AuthorIDs)
		v.Check(len(in.AuthorIDs) >= 1, "authorIds", "at least one author is required")
	}
	if in.CategoryIDs != nil {
		in.CategoryIDs = uniqueIDs(in.CategoryIDs)
		v.Check(len(in.CategoryIDs) >= 1, "categoryIds", "at least one category is required")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var book model.Book
		if err := tx.Clauses(forUpdate).First(&book, "id = ?", id).Error; err != nil {
			if isNotFound(err) {
				return domain.NewNotFoundError("Book not found")
			}
			return domain.NewInternalError("failed to load book", err)
		}

		updates := map[string]interface{}{}
		if in.Title != nil {
			updates["title"] = *in.Title
		}
		if in.TotalCopies != nil {
			onLoan := book.TotalCopies - book.AvailableCopies
			if *in.TotalCopies < onLoan {
				return domain.NewBadRequestError(fmt.Sprintf("Total copies cannot be less than the %d copies on loan", onLoan))
			}
			updates["total_copies"] = *in.TotalCopies
			updates["available_copies"] = *in.TotalCopies - onLoan
		}
		if len(updates) > 0 {
			if err := tx.Model(&book).Updates(updates).Error; err != nil {
				return domain.NewInternalError("failed to update book", err)
			}
		}

		if in.AuthorIDs != nil {
			authors, err := loadAuthors(tx, in.AuthorIDs)
			if err != nil {
				return err
			}
			if err := tx.Model(&book).Association("Authors").Replace(authors); err != nil {
				return domain.NewInternalError("failed to update authors", err)
			}
		}
		if in.CategoryIDs != nil {
			categories, err := loadCategories(tx, in.CategoryIDs)
			if err != nil {
				return err
			}
			if err := tx.Model(&book).Association("Categories").Replace(categories); err != nil {
				return domain.NewInternalError("failed to update categories", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, passThrough("failed to update book", err)
	}

	log.Printf("BookService: Book updated: %s", id)
	return s.GetBook(ctx, id)
}

// DeleteBook soft-deletes a book that has every copy on the shelf.
func (s *BookServiceImpl) DeleteBook(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var book model.Book
		if err := tx.Clauses(forUpdate).First(&book, "id = ?", id).Error; err != nil {
			if isNotFound(err) {
				return domain.NewNotFoundError("Book not found")
			}
			return domain.NewInternalError("failed to load book", err)
		}
		if book.AvailableCopies < book.TotalCopies {
			return domain.NewBadRequestError("Cannot delete a book with copies on loan")
		}
		if err := tx.Delete(&book).Error; err != nil {
			return domain.NewInternalError("failed to delete book", err)
		}
		return nil
	})
	if err != nil {
		return passThrough("failed to delete book", err)
	}

	log.Printf("BookService: Book deleted: %s", id)
	return nil
}

func (s *BookServiceImpl) GetBook(ctx context.Context, id string) (*model.Book, error) {
	var book model.Book
	err := s.db.WithContext(ctx).
		Preload("Authors").
		Preload("Categories").
		First(&book, "id = ?", id).Error
	if err != nil {
		if isNotFound(err) {
			return nil, domain.NewNotFoundError("Book not found")
		}
		return nil, domain.NewInternalError("failed to load book", err)
	}
	return &book, nil
}

// ListBooks filters by title/ISBN search, author, category and availability.
func (s *BookServiceImpl) ListBooks(ctx context.Context, filter domain.BookFilter, page, pageSize int) ([]model.Book, int64, error) {
	db := s.db.WithContext(ctx)
	query := db.Model(&model.Book{})

	if filter.Search != "" {
		p := containsPattern(filter.Search)
		query = query.Where("LOWER(title) LIKE ? OR LOWER(isbn) LIKE ?", p, p)
	}
	if filter.Available {
		query = query.Where("available_copies > 0")
	}
	if filter.CategoryID != "" {
		query = query.Where("id IN (?)", db.Model(&model.BookCategory{}).Select("book_id").Where("category_id = ?", filter.CategoryID))
	}
	if filter.AuthorID != "" {
		query = query.Where("id IN (?)", db.Model(&model.BookAuthor{}).Select("book_id").Where("author_id = ?", filter.AuthorID))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, domain.NewInternalError("failed to count books", err)
	}

	var books []model.Book
	if err := query.Preload("Authors").Preload("Categories").
		Order("title ASC").Order("id ASC").
		Scopes(paginate(page, pageSize)).
		Find(&books).Error; err != nil {
		return nil, 0, domain.NewInternalError("failed to fetch books", err)
	}

	return books, total, nil
}

func loadAuthors(tx *gorm.DB, ids []string) ([]model.Author, error) {
	var authors []model.Author
	if err := tx.Where("id IN ?", ids).Find(&authors).Error; err != nil {
		return nil, domain.NewInternalError("failed to load authors", err)
	}
	if len(authors) != len(ids) {
		return nil, domain.NewBadRequestError("One or more authors not found")
	}
	return authors, nil
}

func loadCategories(tx *gorm.DB, ids []string) ([]model.Category, error) {
	var categories []model.Category
	if err := tx.Where("id IN ?", ids).Find(&categories).Error; err != nil {
		return nil, domain.NewInternalError("failed to load categories", err)
	}
	if len(categories) != len(ids) {
		return nil, domain.NewBadRequestError("One or more categories not found")
	}
	return categories, nil
}

// Ensure interface implementation
var _ domain.BookService = (*BookServiceImpl)(nil)
