package cloudsync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"rotinas/internal/model"
	"rotinas/internal/repository"
)

// Service uploads, downloads and merges a user's data. Merges are
// last-writer-wins for reminders and remote-wins for categories and
// checklist items.
type Service struct {
	remote     RemoteStore
	reminders  *repository.ReminderRepository
	categories *repository.CategoryRepository
	checklist  *repository.ChecklistRepository
	prefs      *repository.PreferenceRepository
	now        func() time.Time
	log        *zap.Logger

	// merged is told which reminders a merge wrote.
	merged func(ctx context.Context, ids []uint)

	statusMu sync.Mutex
	status   model.SyncStatus

	// listenMu serializes EnableAutoSync and DisableAutoSync.
	listenMu   sync.Mutex
	listenUser string
	stop       context.CancelFunc
	listeners  sync.WaitGroup

	base       context.Context
	baseCancel context.CancelFunc
}

func NewService(
	remote RemoteStore,
	reminders *repository.ReminderRepository,
	categories *repository.CategoryRepository,
	checklist *repository.ChecklistRepository,
	prefs *repository.PreferenceRepository,
	log *zap.Logger,
) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Service{
		remote:     remote,
		reminders:  reminders,
		categories: categories,
		checklist:  checklist,
		prefs:      prefs,
		now:        time.Now,
		log:        log.Named("sync"),
		base:       base,
		baseCancel: cancel,
	}
}

// OnRemindersMerged registers fn to receive the ids of reminders written by
// each merge, so their alarms can be armed. Call it before syncing starts.
func (s *Service) OnRemindersMerged(fn func(ctx context.Context, ids []uint)) {
	s.merged = fn
}

func (s *Service) Status() model.SyncStatus {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	return s.status
}

func (s *Service) setStatus(state model.SyncState, message string) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.status.State = state
	s.status.Message = message
	if state == model.SyncSynced {
		s.status.LastSync = s.now()
	}
}

// UploadReminders writes the full local reminder snapshot of userID.
func (s *Service) UploadReminders(ctx context.Context, userID string) error {
	return wrap(ctx, "upload reminders", s.uploadReminders(ctx, userID))
}

func (s *Service) UploadCategories(ctx context.Context, userID string) error {
	return wrap(ctx, "upload categories", s.uploadCategories(ctx, userID))
}

func (s *Service) UploadChecklistItems(ctx context.Context, userID string) error {
	return wrap(ctx, "upload checklist items", s.uploadChecklist(ctx, userID))
}

// UploadAll uploads every collection concurrently.
func (s *Service) UploadAll(ctx context.Context, userID string) error {
	return wrap(ctx, "upload", s.uploadAll(ctx, userID))
}

func (s *Service) uploadAll(ctx context.Context, userID string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.uploadCategories(gctx, userID) })
	g.Go(func() error { return s.uploadReminders(gctx, userID) })
	g.Go(func() error { return s.uploadChecklist(gctx, userID) })
	return g.Wait()
}

func (s *Service) uploadReminders(ctx context.Context, userID string) error {
	device, err := s.prefs.DeviceID(ctx)
	if err != nil {
		return err
	}
	reminders, err := s.reminders.ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	docs := make([]Document, 0, len(reminders))
	for _, r := range reminders {
		docs = append(docs, reminderDocument(r, device))
	}
	return s.put(ctx, userID, CollectionReminders, docs)
}

func (s *Service) uploadCategories(ctx context.Context, userID string) error {
	device, err := s.prefs.DeviceID(ctx)
	if err != nil {
		return err
	}
	categories, err := s.categories.ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	docs := make([]Document, 0, len(categories))
	for _, c := range categories {
		docs = append(docs, categoryDocument(c, device))
	}
	return s.put(ctx, userID, CollectionCategories, docs)
}

func (s *Service) uploadChecklist(ctx context.Context, userID string) error {
	device, err := s.prefs.DeviceID(ctx)
	if err != nil {
		return err
	}
	items, err := s.checklist.ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	docs := make([]Document, 0, len(items))
	for _, item := range items {
		docs = append(docs, checklistDocument(item, device))
	}
	return s.put(ctx, userID, CollectionChecklist, docs)
}

func (s *Service) put(ctx context.Context, userID, collection string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	if err := s.remote.Put(ctx, userID, collection, docs); err != nil {
		return fmt.Errorf("put %s: %w", collection, err)
	}
	s.log.Debug("uploaded", zap.String("collection", collection), zap.String("user_id", userID), zap.Int("count", len(docs)))
	return nil
}

// DownloadReminders fetches the remote reminders of userID, skipping malformed documents.
func (s *Service) DownloadReminders(ctx context.Context, userID string) ([]model.Reminder, error) {
	docs, err := s.fetch(ctx, userID, CollectionReminders)
	if err != nil {
		return nil, wrap(ctx, "download reminders", err)
	}
	return s.decodeReminders(docs), nil
}

func (s *Service) DownloadCategories(ctx context.Context, userID string) ([]model.Category, error) {
	docs, err := s.fetch(ctx, userID, CollectionCategories)
	if err != nil {
		return nil, wrap(ctx, "download categories", err)
	}
	return s.decodeCategories(docs), nil
}

func (s *Service) DownloadChecklistItems(ctx context.Context, userID string) ([]model.ChecklistItem, error) {
	docs, err := s.fetch(ctx, userID, CollectionChecklist)
	if err != nil {
		return nil, wrap(ctx, "download checklist items", err)
	}
	return s.decodeChecklist(docs), nil
}

func (s *Service) fetch(ctx context.Context, userID, collection string) ([]Document, error) {
	docs, err := s.remote.Fetch(ctx, userID, collection)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", collection, err)
	}
	return docs, nil
}

func (s *Service) decodeReminders(docs []Document) []model.Reminder {
	out := make([]model.Reminder, 0, len(docs))
	for _, doc := range docs {
		r, err := decodeReminder(doc)
		if err != nil {
			s.log.Warn("skip malformed document", zap.String("collection", CollectionReminders), zap.Error(err))
			continue
		}
		out = append(out, r)
	}
	return out
}

func (s *Service) decodeCategories(docs []Document) []model.Category {
	out := make([]model.Category, 0, len(docs))
	for _, doc := range docs {
		c, err := decodeCategory(doc)
		if err != nil {
			s.log.Warn("skip malformed document", zap.String("collection", CollectionCategories), zap.Error(err))
			continue
		}
		out = append(out, c)
	}
	return out
}

func (s *Service) decodeChecklist(docs []Document) []model.ChecklistItem {
	out := make([]model.ChecklistItem, 0, len(docs))
	for _, doc := range docs {
		item, err := decodeChecklistItem(doc)
		if err != nil {
			s.log.Warn("skip malformed document", zap.String("collection", CollectionChecklist), zap.Error(err))
			continue
		}
		out = append(out, item)
	}
	return out
}

// MergeCategories upserts every remote category as owned by userID.
func (s *Service) MergeCategories(ctx context.Context, userID string, remote []model.Category) error {
	return wrap(ctx, "merge categories", s.mergeCategories(ctx, userID, remote))
}

func (s *Service) mergeCategories(ctx context.Context, userID string, remote []model.Category) error {
	for i := range remote {
		c := remote[i]
		c.UserID = userID
		if err := s.categories.Upsert(ctx, &c); err != nil {
			return err
		}
	}
	return nil
}

// MergeReminders applies remote reminders whose UpdatedAt is not older than the
// local row. Rotinas are applied before their tasks; list assignment is local
// only and is cleared. It returns the number of rows written.
func (s *Service) MergeReminders(ctx context.Context, userID string, remote []model.Reminder) (int, error) {
	n, err := s.mergeReminders(ctx, userID, remote)
	return n, wrap(ctx, "merge reminders", err)
}

func (s *Service) mergeReminders(ctx context.Context, userID string, remote []model.Reminder) (int, error) {
	ids, err := s.mergeReminderRows(ctx, userID, remote)
	if s.merged != nil && len(ids) > 0 && ctx.Err() == nil {
		s.merged(ctx, ids)
	}
	return len(ids), err
}

func (s *Service) mergeReminderRows(ctx context.Context, userID string, remote []model.Reminder) ([]uint, error) {
	ordered := make([]model.Reminder, len(remote))
	copy(ordered, remote)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ParentReminderID == nil && ordered[j].ParentReminderID != nil
	})

	var applied []uint
	for i := range ordered {
		r := ordered[i]

		local, err := s.reminders.FindByID(ctx, r.ID)
		switch {
		case err == nil:
			if r.UpdatedAt.Before(local.UpdatedAt) {
				continue
			}
		case repository.IsNotFound(err):
		default:
			return applied, fmt.Errorf("load reminder %d: %w", r.ID, err)
		}

		if r.ParentReminderID != nil {
			ok, err := s.reminderExists(ctx, *r.ParentReminderID)
			if err != nil {
				return applied, err
			}
			if !ok {
				s.log.Warn("skip task without parent", zap.Uint("reminder_id", r.ID), zap.Uint("parent_id", *r.ParentReminderID))
				continue
			}
		}
		if r.CategoryID != nil {
			if _, err := s.categories.GetByID(ctx, *r.CategoryID); err != nil {
				if !repository.IsNotFound(err) {
					return applied, fmt.Errorf("load category %d: %w", *r.CategoryID, err)
				}
				r.CategoryID = nil
			}
		}

		r.UserID = userID
		r.ListID = nil
		if err := s.reminders.Upsert(ctx, &r); err != nil {
			return applied, err
		}
		applied = append(applied, r.ID)
	}
	return applied, nil
}

// MergeChecklistItems upserts every remote item whose reminder exists locally.
func (s *Service) MergeChecklistItems(ctx context.Context, userID string, remote []model.ChecklistItem) error {
	return wrap(ctx, "merge checklist items", s.mergeChecklist(ctx, userID, remote))
}

func (s *Service) mergeChecklist(ctx context.Context, userID string, remote []model.ChecklistItem) error {
	for i := range remote {
		item := remote[i]
		ok, err := s.reminderExists(ctx, item.ReminderID)
		if err != nil {
			return err
		}
		if !ok {
			s.log.Warn("skip checklist item without reminder", zap.Uint("item_id", item.ID), zap.Uint("reminder_id", item.ReminderID))
			continue
		}
		item.UserID = userID
		if err := s.checklist.Upsert(ctx, &item); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) reminderExists(ctx context.Context, id uint) (bool, error) {
	_, err := s.reminders.FindByID(ctx, id)
	switch {
	case err == nil:
		return true, nil
	case repository.IsNotFound(err):
		return false, nil
	default:
		return false, fmt.Errorf("load reminder %d: %w", id, err)
	}
}

// SyncAll downloads and merges categories, reminders and checklist items in
// that order, then uploads the merged local snapshot.
func (s *Service) SyncAll(ctx context.Context, userID string) error {
	s.setStatus(model.SyncSyncing, "")
	s.log.Info("sync started", zap.String("user_id", userID))

	if err := s.syncAll(ctx, userID); err != nil {
		err = wrap(ctx, "all", err)
		var syncErr *Error
		if errors.As(err, &syncErr) {
			s.setStatus(model.SyncError, syncErr.Error())
			s.log.Error("sync failed", zap.String("user_id", userID), zap.Error(err))
		} else {
			s.setStatus(model.SyncIdle, "")
		}
		return err
	}

	s.setStatus(model.SyncSynced, "")
	s.log.Info("sync finished", zap.String("user_id", userID))
	return nil
}

func (s *Service) syncAll(ctx context.Context, userID string) error {
	docs, err := s.fetch(ctx, userID, CollectionCategories)
	if err != nil {
		return err
	}
	if err := s.mergeCategories(ctx, userID, s.decodeCategories(docs)); err != nil {
		return err
	}

	docs, err = s.fetch(ctx, userID, CollectionReminders)
	if err != nil {
		return err
	}
	if _, err := s.mergeReminders(ctx, userID, s.decodeReminders(docs)); err != nil {
		return err
	}

	docs, err = s.fetch(ctx, userID, CollectionChecklist)
	if err != nil {
		return err
	}
	if err := s.mergeChecklist(ctx, userID, s.decodeChecklist(docs)); err != nil {
		return err
	}

	return s.uploadAll(ctx, userID)
}

// EnableAutoSync attaches live listeners for userID that merge every remote
// change. Listeners run until DisableAutoSync or Close, independent of any
// caller context.
func (s *Service) EnableAutoSync(userID string) error {
	s.listenMu.Lock()
	defer s.listenMu.Unlock()

	if s.base.Err() != nil {
		return errors.New("sync service closed")
	}
	if s.stop != nil {
		if s.listenUser == userID {
			return nil
		}
		s.stopListeners()
	}

	ctx, cancel := context.WithCancel(s.base)
	s.stop = cancel
	s.listenUser = userID

	for _, collection := range []string{CollectionCategories, CollectionReminders, CollectionChecklist} {
		s.listeners.Add(1)
		go func() {
			defer s.listeners.Done()
			err := s.remote.Listen(ctx, userID, collection, func(docs []Document) {
				s.apply(ctx, userID, collection, docs)
			})
			if err != nil && ctx.Err() == nil {
				s.setStatus(model.SyncError, err.Error())
				s.log.Error("listener stopped", zap.String("collection", collection), zap.Error(err))
			}
		}()
	}

	s.log.Info("auto-sync enabled", zap.String("user_id", userID))
	return nil
}

// DisableAutoSync detaches all listeners and waits for them to return. It is
// safe to call when auto-sync is not enabled.
func (s *Service) DisableAutoSync() {
	s.listenMu.Lock()
	defer s.listenMu.Unlock()

	if s.stop == nil {
		return
	}
	s.stopListeners()
	s.log.Info("auto-sync disabled")
}

func (s *Service) stopListeners() {
	s.stop()
	s.listeners.Wait()
	s.stop = nil
	s.listenUser = ""
}

// Close stops auto-sync for good.
func (s *Service) Close() {
	s.DisableAutoSync()
	s.baseCancel()
}

func (s *Service) apply(ctx context.Context, userID, collection string, docs []Document) {
	var err error
	switch collection {
	case CollectionCategories:
		err = s.mergeCategories(ctx, userID, s.decodeCategories(docs))
	case CollectionReminders:
		_, err = s.mergeReminders(ctx, userID, s.decodeReminders(docs))
	case CollectionChecklist:
		err = s.mergeChecklist(ctx, userID, s.decodeChecklist(docs))
	}
	if err != nil {
		if ctx.Err() == nil {
			s.log.Error("apply remote change", zap.String("collection", collection), zap.Error(err))
		}
		return
	}
	s.setStatus(model.SyncSynced, "")
}

// DeleteReminder removes the cloud copy of a reminder and of its checklist items.
func (s *Service) DeleteReminder(ctx context.Context, userID string, id uint) error {
	return wrap(ctx, "delete reminder", s.deleteReminder(ctx, userID, id))
}

func (s *Service) deleteReminder(ctx context.Context, userID string, id uint) error {
	items, err := s.fetch(ctx, userID, CollectionChecklist)
	if err != nil {
		return err
	}
	for _, doc := range items {
		owner := optionalIDField(doc.Data, "reminderId")
		if owner == nil || *owner != id {
			continue
		}
		if err := s.remote.Delete(ctx, userID, CollectionChecklist, doc.ID); err != nil {
			return fmt.Errorf("delete %s/%s: %w", CollectionChecklist, doc.ID, err)
		}
	}
	if err := s.remote.Delete(ctx, userID, CollectionReminders, docID(id)); err != nil {
		return fmt.Errorf("delete %s/%s: %w", CollectionReminders, docID(id), err)
	}
	return nil
}
