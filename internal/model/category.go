package model

import "time"

// Category groups reminders by area (work, health, study, etc.).
type Category struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    string `gorm:"index;not null;default:local"`
	Name      string `gorm:"not null"`
	Color     string
	CreatedAt time.Time  `gorm:"autoCreateTime:false"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime:false"`
	Reminders []Reminder `gorm:"foreignKey:CategoryID;constraint:OnDelete:SET NULL"`
}

// List is a local-only grouping. It is never synced.
type List struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"not null"`
	CreatedAt time.Time
	Reminders []Reminder `gorm:"foreignKey:ListID;constraint:OnDelete:SET NULL"`
}

// ChecklistItem is a sub-step of a reminder and is deleted with it.
type ChecklistItem struct {
	ID         uint      `gorm:"primaryKey"`
	ReminderID uint      `gorm:"index;not null"`
	UserID     string    `gorm:"index;not null;default:local"`
	Text       string    `gorm:"not null"`
	IsChecked  bool      `gorm:"not null;default:false"`
	Position   int       `gorm:"not null;default:0"`
	CreatedAt  time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime:false"`
}
