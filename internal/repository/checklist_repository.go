package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rotinas/internal/model"
)

// ChecklistRepository handles checklist items of reminders.
type ChecklistRepository struct {
	db *gorm.DB
}

func NewChecklistRepository(db *gorm.DB) *ChecklistRepository {
	return &ChecklistRepository{db: db}
}

func (r *ChecklistRepository) Create(ctx context.Context, item *model.ChecklistItem) error {
	now := model.Millis(time.Now())
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = now
	}
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		return fmt.Errorf("create checklist item: %w", err)
	}
	return nil
}

// Upsert inserts or overwrites an item by id, keeping its timestamps as given.
func (r *ChecklistRepository) Upsert(ctx context.Context, item *model.ChecklistItem) error {
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(item).Error; err != nil {
		return fmt.Errorf("upsert checklist item %d: %w", item.ID, err)
	}
	return nil
}

func (r *ChecklistRepository) ListByUser(ctx context.Context, userID string) ([]model.ChecklistItem, error) {
	var items []model.ChecklistItem
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("reminder_id ASC, position ASC, id ASC").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list checklist items: %w", err)
	}
	return items, nil
}

func (r *ChecklistRepository) ListByReminder(ctx context.Context, reminderID uint) ([]model.ChecklistItem, error) {
	var items []model.ChecklistItem
	if err := r.db.WithContext(ctx).Where("reminder_id = ?", reminderID).
		Order("position ASC, id ASC").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list checklist of %d: %w", reminderID, err)
	}
	return items, nil
}

func (r *ChecklistRepository) ReassignUser(ctx context.Context, from, to string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.ChecklistItem{}).Where("user_id = ?", from).UpdateColumn("user_id", to)
	if res.Error != nil {
		return 0, fmt.Errorf("reassign checklist items: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *ChecklistRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.ChecklistItem{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete checklist items: %w", res.Error)
	}
	return res.RowsAffected, nil
}
