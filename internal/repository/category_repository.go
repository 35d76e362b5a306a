package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rotinas/internal/model"
)

// CategoryRepository manages reminder categories.
type CategoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

func (r *CategoryRepository) GetOrCreate(ctx context.Context, userID, name string) (*model.Category, error) {
	if name == "" {
		return nil, nil
	}

	var category model.Category
	db := r.db.WithContext(ctx)
	err := db.Where("user_id = ? AND name = ?", userID, name).First(&category).Error
	switch {
	case err == nil:
		return &category, nil
	case IsNotFound(err):
		now := model.Millis(time.Now())
		category = model.Category{UserID: userID, Name: name, CreatedAt: now, UpdatedAt: now}
		if err := db.Omit(clause.Associations).Create(&category).Error; err != nil {
			return nil, fmt.Errorf("create category: %w", err)
		}
		return &category, nil
	default:
		return nil, fmt.Errorf("find category: %w", err)
	}
}

// Upsert inserts or overwrites a category by id, keeping its timestamps as given.
func (r *CategoryRepository) Upsert(ctx context.Context, category *model.Category) error {
	err := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(category).Error
	if err != nil {
		return fmt.Errorf("upsert category %d: %w", category.ID, err)
	}
	return nil
}

func (r *CategoryRepository) ListByUser(ctx context.Context, userID string) ([]model.Category, error) {
	var categories []model.Category
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("name ASC").Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

func (r *CategoryRepository) GetByID(ctx context.Context, id uint) (*model.Category, error) {
	var category model.Category
	if err := r.db.WithContext(ctx).First(&category, id).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *CategoryRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Category{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count categories: %w", err)
	}
	return n, nil
}

func (r *CategoryRepository) ReassignUser(ctx context.Context, from, to string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Category{}).Where("user_id = ?", from).UpdateColumn("user_id", to)
	if res.Error != nil {
		return 0, fmt.Errorf("reassign categories: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *CategoryRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.Category{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete categories: %w", res.Error)
	}
	return res.RowsAffected, nil
}
