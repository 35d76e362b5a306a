// Package migration reconciles local-only data with an account on its first
// sign-in on this device.
package migration

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"rotinas/internal/model"
	"rotinas/internal/repository"
)

var ErrUnknownStrategy = errors.New("unknown migration strategy")

// Syncer is the part of the sync service a migration drives.
type Syncer interface {
	SyncAll(ctx context.Context, userID string) error
	UploadAll(ctx context.Context, userID string) error
}

type Helper struct {
	reminders  *repository.ReminderRepository
	categories *repository.CategoryRepository
	checklist  *repository.ChecklistRepository
	prefs      *repository.PreferenceRepository
	sync       Syncer
	log        *zap.Logger
}

func NewHelper(
	reminders *repository.ReminderRepository,
	categories *repository.CategoryRepository,
	checklist *repository.ChecklistRepository,
	prefs *repository.PreferenceRepository,
	sync Syncer,
	log *zap.Logger,
) *Helper {
	if log == nil {
		log = zap.NewNop()
	}
	return &Helper{
		reminders:  reminders,
		categories: categories,
		checklist:  checklist,
		prefs:      prefs,
		sync:       sync,
		log:        log.Named("migration"),
	}
}

// NeedsMigration reports whether userID has not migrated on this device yet and
// local-only reminders or categories exist.
func (h *Helper) NeedsMigration(ctx context.Context, userID string) (bool, error) {
	if userID == "" || userID == model.LocalUserID {
		return false, nil
	}
	done, err := h.prefs.MigrationCompleted(ctx, userID)
	if err != nil {
		return false, err
	}
	if done {
		return false, nil
	}

	reminders, err := h.reminders.CountByUser(ctx, model.LocalUserID)
	if err != nil {
		return false, err
	}
	if reminders > 0 {
		return true, nil
	}
	categories, err := h.categories.CountByUser(ctx, model.LocalUserID)
	if err != nil {
		return false, err
	}
	return categories > 0, nil
}

// Execute applies strategy for userID and marks the migration completed. On
// failure the flag stays unset so the caller can retry.
func (h *Helper) Execute(ctx context.Context, userID string, strategy model.MigrationStrategy) error {
	if userID == "" || userID == model.LocalUserID {
		return fmt.Errorf("execute migration: invalid user %q", userID)
	}

	var err error
	switch strategy {
	case model.MigrationUploadLocal:
		if err = h.reassign(ctx, userID); err == nil {
			err = h.sync.UploadAll(ctx, userID)
		}
	case model.MigrationMergeWithCloud:
		if err = h.reassign(ctx, userID); err == nil {
			err = h.sync.SyncAll(ctx, userID)
		}
	case model.MigrationStartFresh:
		if err = h.deleteLocal(ctx); err == nil {
			err = h.sync.SyncAll(ctx, userID)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
	if err != nil {
		h.log.Error("migration failed", zap.String("user_id", userID), zap.String("strategy", string(strategy)), zap.Error(err))
		return err
	}

	if err := h.prefs.SetMigrationCompleted(ctx, userID); err != nil {
		return err
	}
	h.log.Info("migration completed", zap.String("user_id", userID), zap.String("strategy", string(strategy)))
	return nil
}

// reassign moves local-only rows to userID.
func (h *Helper) reassign(ctx context.Context, userID string) error {
	items, err := h.checklist.ReassignUser(ctx, model.LocalUserID, userID)
	if err != nil {
		return err
	}
	categories, err := h.categories.ReassignUser(ctx, model.LocalUserID, userID)
	if err != nil {
		return err
	}
	reminders, err := h.reminders.ReassignUser(ctx, model.LocalUserID, userID)
	if err != nil {
		return err
	}
	h.log.Info("reassigned local data",
		zap.String("user_id", userID),
		zap.Int64("reminders", reminders),
		zap.Int64("categories", categories),
		zap.Int64("checklist_items", items),
	)
	return nil
}

// deleteLocal removes local-only rows children first.
func (h *Helper) deleteLocal(ctx context.Context) error {
	if _, err := h.checklist.DeleteByUser(ctx, model.LocalUserID); err != nil {
		return err
	}
	reminders, err := h.reminders.DeleteByUser(ctx, model.LocalUserID)
	if err != nil {
		return err
	}
	if _, err := h.categories.DeleteByUser(ctx, model.LocalUserID); err != nil {
		return err
	}
	h.log.Info("deleted local data", zap.Int64("reminders", reminders))
	return nil
}
