package service

import (
	"context"
	"log"

	"gorm.io/gorm"
	"libraryhub.com/internal/domain"
	"libraryhub.com/internal/model"
)

// CategoryServiceImpl implements domain.CategoryService
type CategoryServiceImpl struct {
	db *gorm.DB
}

func NewCategoryService(db *gorm.DB) *CategoryServiceImpl {
	return &CategoryServiceImpl{db: db}
}

func (s *CategoryServiceImpl) CreateCategory(ctx context.Context, name string) (*domain.CategoryView, error) {
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}

	category := model.Category{Name: name}
	if err := s.db.WithContext(ctx).Create(&category).Error; err != nil {
		if isDuplicate(err) {
			return nil, domain.NewConflictError("Category with this name already exists")
		}
		return nil, domain.NewInternalError("failed to create category", err)
	}

	log.Printf("CategoryService: Category created: %s", category.ID)
	return &domain.CategoryView{Category: category}, nil
}

func (s *CategoryServiceImpl) UpdateCategory(ctx context.Context, id, name string) (*domain.CategoryView, error) {
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}

	result := s.db.WithContext(ctx).Model(&model.Category{}).Where("id = ?", id).Update("name", name)
	if result.Error != nil {
		if isDuplicate(result.Error) {
			return nil, domain.NewConflictError("Category with this name already exists")
		}
		return nil, domain.NewInternalError("failed to update category", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, domain.NewNotFoundError("Category not found")
	}

	return s.GetCategory(ctx, id)
}

// DeleteCategory soft-deletes the category; books keep their other categories.
func (s *CategoryServiceImpl) DeleteCategory(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Category{})
	if result.Error != nil {
		return domain.NewInternalError("failed to delete category", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("Category not found")
	}

	log.Printf("CategoryService: Category deleted: %s", id)
	return nil
}

func (s *CategoryServiceImpl) GetCategory(ctx context.Context, id string) (*domain.CategoryView, error) {
	db := s.db.WithContext(ctx)

	var category model.Category
	if err := db.First(&category, "id = ?", id).Error; err != nil {
		if isNotFound(err) {
			return nil, domain.NewNotFoundError("Category not found")
		}
		return nil, domain.NewInternalError("failed to load category", err)
	}

	counts, err := countLiveBooks(db, &model.BookCategory{}, "category_id", []string{id})
	if err != nil {
		return nil, domain.NewInternalError("failed to count books", err)
	}
	return &domain.CategoryView{Category: category, BookCount: counts[id]}, nil
}

func (s *CategoryServiceImpl) ListCategories(ctx context.Context, search string, page, pageSize int) ([]domain.CategoryView, int64, error) {
	db := s.db.WithContext(ctx)
	query := db.Model(&model.Category{})
	if search != "" {
		query = query.Where("LOWER(name) LIKE ?", containsPattern(search))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, domain.NewInternalError("failed to count categories", err)
	}

	var categories []model.Category
	if err := query.Order("name ASC").Scopes(paginate(page, pageSize)).Find(&categories).Error; err != nil {
		return nil, 0, domain.NewInternalError("failed to fetch categories", err)
	}

	ids := make([]string, len(categories))
	for i, c := range categories {
		ids[i] = c.ID
	}
	counts, err := countLiveBooks(db, &model.BookCategory{}, "category_id", ids)
	if err != nil {
		return nil, 0, domain.NewInternalError("failed to count books", err)
	}

	views := make([]domain.CategoryView, len(categories))
	for i, c := range categories {
		views[i] = domain.CategoryView{Category: c, BookCount: counts[c.ID]}
	}
	return views, total, nil
}

// Ensure interface implementation
var _ domain.CategoryService = (*CategoryServiceImpl)(nil)
