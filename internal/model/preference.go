package model

import "time"

// Preference is a persisted key/value setting.
type Preference struct {
	Name      string `gorm:"primaryKey"`
	Value     string
	UpdatedAt time.Time
}

// MigrationStrategy is the one-time choice for reconciling local-only data with an account.
type MigrationStrategy string

const (
	MigrationUploadLocal    MigrationStrategy = "upload"
	MigrationMergeWithCloud MigrationStrategy = "merge"
	MigrationStartFresh     MigrationStrategy = "fresh"
)

// SyncState is the transient state of the sync service.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncSyncing
	SyncSynced
	SyncError
)

func (s SyncState) String() string {
	switch s {
	case SyncSyncing:
		return "syncing"
	case SyncSynced:
		return "synced"
	case SyncError:
		return "error"
	default:
		return "idle"
	}
}

// SyncStatus is the current sync state plus the message of the last failure.
type SyncStatus struct {
	State    SyncState
	Message  string
	LastSync time.Time
}
