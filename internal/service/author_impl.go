package service

import (
	"context"
	"log"
	"strings"

	"gorm.io/gorm"
	"libraryhub.com/internal/domain"
	"libraryhub.com/internal/model"
)

// AuthorServiceImpl implements domain.AuthorService
type AuthorServiceImpl struct {
	db *gorm.DB
}

func NewAuthorService(db *gorm.DB) *AuthorServiceImpl {
	return &AuthorServiceImpl{db: db}
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	var v domain.Validator
	v.Check(name != "", "name", "is required")
	v.Check(len(name) <= 255, "name", "must be at most 255 characters")
	return name, v.Err()
}

func (s *AuthorServiceImpl) CreateAuthor(ctx context.Context, name string) (*domain.AuthorView, error) {
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}

	author := model.Author{Name: name}
	if err := s.db.WithContext(ctx).Create(&author).Error; err != nil {
		return nil, domain.NewInternalError("failed to create author", err)
	}

	log.Printf("AuthorService: Author created: %s", author.ID)
	return &domain.AuthorView{Author: author}, nil
}

func (s *AuthorServiceImpl) UpdateAuthor(ctx context.Context, id, name string) (*domain.AuthorView, error) {
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}

	result := s.db.WithContext(ctx).Model(&model.Author{}).Where("id = ?", id).Update("name", name)
	if result.Error != nil {
		return nil, domain.NewInternalError("failed to update author", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, domain.NewNotFoundError("Author not found")
	}

	return s.GetAuthor(ctx, id)
}

// DeleteAuthor soft-deletes the author; books keep their other authors.
func (s *AuthorServiceImpl) DeleteAuthor(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Author{})
	if result.Error != nil {
		return domain.NewInternalError("failed to delete author", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("Author not found")
	}

	log.Printf("AuthorService: Author deleted: %s", id)
	return nil
}

func (s *AuthorServiceImpl) GetAuthor(ctx context.Context, id string) (*domain.AuthorView, error) {
	db := s.db.WithContext(ctx)

	var author model.Author
	if err := db.First(&author, "id = ?", id).Error; err != nil {
		if isNotFound(err) {
			return nil, domain.NewNotFoundError("Author not found")
		}
		return nil, domain.NewInternalError("failed to load author", err)
	}

	counts, err := countLiveBooks(db, &model.BookAuthor{}, "author_id", []string{id})
	if err != nil {
		return nil, domain.NewInternalError("failed to count books", err)
	}
	return &domain.AuthorView{Author: author, BookCount: counts[id]}, nil
}

func (s *AuthorServiceImpl) ListAuthors(ctx context.Context, search string, page, pageSize int) ([]domain.AuthorView, int64, error) {
	db := s.db.WithContext(ctx)
	query := db.Model(&model.Author{})
	if search != "" {
		query = query.Where("LOWER(name) LIKE ?", containsPattern(search))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, domain.NewInternalError("failed to count authors", err)
	}

	var authors []model.Author
	if err := query.Order("name ASC").Scopes(paginate(page, pageSize)).Find(&authors).Error; err != nil {
		return nil, 0, domain.NewInternalError("failed to fetch authors", err)
	}

	ids := make([]string, len(authors))
	for i, a := range authors {
		ids[i] = a.ID
	}
	counts, err := countLiveBooks(db, &model.BookAuthor{}, "author_id", ids)
	if err != nil {
		return nil, 0, domain.NewInternalError("failed to count books", err)
	}

	views := make([]domain.AuthorView, len(authors))
	for i, a := range authors {
		views[i] = domain.AuthorView{Author: a, BookCount: counts[a.ID]}
	}
	return views, total, nil
}

// Ensure interface implementation
var _ domain.AuthorService = (*AuthorServiceImpl)(nil)
