package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rotinas/internal/model"
)

const (
	keyCurrentUserID    = "current_user_id"
	keyCurrentUserEmail = "current_user_email"
	keyDeviceID         = "device_id"
	keyMigrationPrefix  = "migration_completed:"
)

// PreferenceRepository stores key/value settings that must survive restarts.
type PreferenceRepository struct {
	db *gorm.DB
}

func NewPreferenceRepository(db *gorm.DB) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

// Get returns the stored value, or "" when the key is unset.
func (r *PreferenceRepository) Get(ctx context.Context, key string) (string, error) {
	var pref model.Preference
	err := r.db.WithContext(ctx).Where("name = ?", key).First(&pref).Error
	switch {
	case err == nil:
		return pref.Value, nil
	case IsNotFound(err):
		return "", nil
	default:
		return "", fmt.Errorf("get preference %q: %w", key, err)
	}
}

func (r *PreferenceRepository) Set(ctx context.Context, key, value string) error {
	pref := model.Preference{Name: key, Value: value}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&pref).Error
	if err != nil {
		return fmt.Errorf("set preference %q: %w", key, err)
	}
	return nil
}

// CurrentUser returns the last signed-in account, or model.LocalUserID.
func (r *PreferenceRepository) CurrentUser(ctx context.Context) (string, error) {
	id, err := r.Get(ctx, keyCurrentUserID)
	if err != nil {
		return model.LocalUserID, err
	}
	if strings.TrimSpace(id) == "" {
		return model.LocalUserID, nil
	}
	return id, nil
}

func (r *PreferenceRepository) CurrentEmail(ctx context.Context) (string, error) {
	return r.Get(ctx, keyCurrentUserEmail)
}

func (r *PreferenceRepository) SetCurrentUser(ctx context.Context, userID, email string) error {
	if err := r.Set(ctx, keyCurrentUserID, userID); err != nil {
		return err
	}
	return r.Set(ctx, keyCurrentUserEmail, email)
}

// DeviceID returns a stable per-installation id, generating it on first use.
func (r *PreferenceRepository) DeviceID(ctx context.Context) (string, error) {
	id, err := r.Get(ctx, keyDeviceID)
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}
	id = uuid.NewString()
	if err := r.Set(ctx, keyDeviceID, id); err != nil {
		return "", err
	}
	return id, nil
}

func (r *PreferenceRepository) MigrationCompleted(ctx context.Context, userID string) (bool, error) {
	v, err := r.Get(ctx, keyMigrationPrefix+userID)
	if err != nil {
		return false, err
	}
	return v == "true", nil
}

func (r *PreferenceRepository) SetMigrationCompleted(ctx context.Context, userID string) error {
	return r.Set(ctx, keyMigrationPrefix+userID, "true")
}
