package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"rotinas/internal/model"
	"rotinas/internal/repository"
)

const pendingSummaryTitles = 5

// PendingService finds reminders that are due but not yet confirmed and raises
// a single summary notification for them.
type PendingService struct {
	reminders *repository.ReminderRepository
	prefs     *repository.PreferenceRepository
	notifier  Notifier
	now       func() time.Time
	log       *zap.Logger
}

func NewPendingService(reminders *repository.ReminderRepository, prefs *repository.PreferenceRepository, notifier Notifier, log *zap.Logger) *PendingService {
	if log == nil {
		log = zap.NewNop()
	}
	return &PendingService{
		reminders: reminders,
		prefs:     prefs,
		notifier:  notifier,
		now:       time.Now,
		log:       log.Named("pending"),
	}
}

// Pending lists reminders of the current user awaiting confirmation, oldest due first.
func (s *PendingService) Pending(ctx context.Context) ([]model.Reminder, error) {
	userID, err := s.prefs.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("pending: %w", err)
	}

	active, err := s.reminders.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("pending: %w", err)
	}

	now := s.now()
	var pending []model.Reminder
	for _, r := range active {
		if IsPendingConfirmation(r, now) {
			pending = append(pending, r)
		}
	}

	sort.SliceStable(pending, func(i, j int) bool {
		if !pending[i].DueAt.Equal(pending[j].DueAt) {
			return pending[i].DueAt.Before(pending[j].DueAt)
		}
		return pending[i].ID < pending[j].ID
	})
	return pending, nil
}

// CheckPending runs one pass of the hourly check. It returns the number of
// pending reminders found.
func (s *PendingService) CheckPending(ctx context.Context) (int, error) {
	pending, err := s.Pending(ctx)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	s.log.Info("pending reminders", zap.Int("count", len(pending)))
	if s.notifier == nil {
		return len(pending), nil
	}

	n := Notification{
		ID:      PendingNotificationID,
		Title:   fmt.Sprintf("%d lembrete(s) aguardando confirmação", len(pending)),
		Body:    PendingSummary(pending),
		Actions: []Action{{Kind: ActionPending, Label: "📋 Abrir lista"}},
	}
	if err := s.notifier.Show(ctx, n); err != nil {
		return len(pending), fmt.Errorf("show pending summary: %w", err)
	}
	return len(pending), nil
}

// IsPendingConfirmation reports whether r is an ACTIVE one-shot reminder (or
// Rotina task) whose due time and snooze have both passed. Rotinas never are.
func IsPendingConfirmation(r model.Reminder, now time.Time) bool {
	if !r.IsActive() || r.IsRoutine || r.IsRecurring() {
		return false
	}
	if r.DueAt.After(now) {
		return false
	}
	if r.SnoozedUntil != nil && r.SnoozedUntil.After(now) {
		return false
	}
	return true
}

// PendingSummary lists up to five titles and a "+N" suffix for the rest.
func PendingSummary(pending []model.Reminder) string {
	var sb strings.Builder
	for i, r := range pending {
		if i == pendingSummaryTitles {
			sb.WriteString(fmt.Sprintf("+%d mais", len(pending)-pendingSummaryTitles))
			break
		}
		sb.WriteString("• ")
		sb.WriteString(strings.TrimSpace(r.Title))
		sb.WriteByte('\n')
	}
	return strings.TrimSpace(sb.String())
}
