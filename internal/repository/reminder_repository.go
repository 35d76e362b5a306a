package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rotinas/internal/model"
)

// ReminderRepository handles CRUD for reminders, Rotinas and their tasks.
type ReminderRepository struct {
	db *gorm.DB
}

func NewReminderRepository(db *gorm.DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

// Create inserts a reminder, stamping CreatedAt/UpdatedAt when unset.
func (r *ReminderRepository) Create(ctx context.Context, reminder *model.Reminder) error {
	now := model.Millis(time.Now())
	if reminder.CreatedAt.IsZero() {
		reminder.CreatedAt = now
	}
	if reminder.UpdatedAt.IsZero() {
		reminder.UpdatedAt = now
	}
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(reminder).Error; err != nil {
		return fmt.Errorf("create reminder: %w", err)
	}
	return nil
}

// Update persists every column of reminder and bumps UpdatedAt.
func (r *ReminderRepository) Update(ctx context.Context, reminder *model.Reminder) error {
	reminder.UpdatedAt = model.Millis(time.Now())
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Save(reminder).Error; err != nil {
		return fmt.Errorf("update reminder %d: %w", reminder.ID, err)
	}
	return nil
}

// Upsert inserts or overwrites a reminder by id, keeping its timestamps as given.
func (r *ReminderRepository) Upsert(ctx context.Context, reminder *model.Reminder) error {
	err := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(reminder).Error
	if err != nil {
		return fmt.Errorf("upsert reminder %d: %w", reminder.ID, err)
	}
	return nil
}

func (r *ReminderRepository) FindByID(ctx context.Context, id uint) (*model.Reminder, error) {
	var reminder model.Reminder
	if err := r.db.WithContext(ctx).First(&reminder, id).Error; err != nil {
		return nil, err
	}
	return &reminder, nil
}

// ListByUser returns all reminders of a user, Rotinas before their tasks.
func (r *ReminderRepository) ListByUser(ctx context.Context, userID string) ([]model.Reminder, error) {
	var reminders []model.Reminder
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("parent_reminder_id IS NOT NULL, due_at ASC, id ASC").
		Find(&reminders).Error; err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	return reminders, nil
}

func (r *ReminderRepository) ListActiveByUser(ctx context.Context, userID string) ([]model.Reminder, error) {
	var reminders []model.Reminder
	if err := r.db.WithContext(ctx).Where("user_id = ? AND status = ?", userID, model.StatusActive).
		Order("due_at ASC, id ASC").
		Find(&reminders).Error; err != nil {
		return nil, fmt.Errorf("list active reminders: %w", err)
	}
	return reminders, nil
}

func (r *ReminderRepository) ListTasks(ctx context.Context, parentID uint) ([]model.Reminder, error) {
	var tasks []model.Reminder
	if err := r.db.WithContext(ctx).Where("parent_reminder_id = ?", parentID).
		Order("due_at ASC, id ASC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks of %d: %w", parentID, err)
	}
	return tasks, nil
}

func (r *ReminderRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Reminder{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count reminders: %w", err)
	}
	return n, nil
}

// ReassignUser moves ownership of every row of from to to. UpdatedAt is left untouched.
func (r *ReminderRepository) ReassignUser(ctx context.Context, from, to string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Reminder{}).Where("user_id = ?", from).UpdateColumn("user_id", to)
	if res.Error != nil {
		return 0, fmt.Errorf("reassign reminders: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteByUser removes every reminder of a user, tasks before their Rotinas.
func (r *ReminderRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	db := r.db.WithContext(ctx)
	tasks := db.Where("user_id = ? AND parent_reminder_id IS NOT NULL", userID).Delete(&model.Reminder{})
	if tasks.Error != nil {
		return 0, fmt.Errorf("delete tasks: %w", tasks.Error)
	}
	rest := db.Where("user_id = ?", userID).Delete(&model.Reminder{})
	if rest.Error != nil {
		return 0, fmt.Errorf("delete reminders: %w", rest.Error)
	}
	return tasks.RowsAffected + rest.RowsAffected, nil
}

// Delete removes a reminder; its tasks and checklist items cascade.
func (r *ReminderRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&model.Reminder{}, id).Error; err != nil {
		return fmt.Errorf("delete reminder %d: %w", id, err)
	}
	return nil
}
