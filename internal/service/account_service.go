package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"rotinas/internal/model"
	"rotinas/internal/repository"
)

var (
	ErrCloudDisabled     = errors.New("cloud sync is not configured")
	ErrMigrationRequired = errors.New("local data needs a migration strategy")
)

// Account is a verified identity from the account provider.
type Account struct {
	UID   string
	Email string
}

// IdentityVerifier checks an ID token issued by the account provider.
type IdentityVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (Account, error)
}

type Migrator interface {
	NeedsMigration(ctx context.Context, userID string) (bool, error)
	Execute(ctx context.Context, userID string, strategy model.MigrationStrategy) error
}

type CloudSync interface {
	SyncAll(ctx context.Context, userID string) error
	EnableAutoSync(userID string) error
	DisableAutoSync()
}

type SignInResult struct {
	Account        Account
	NeedsMigration bool
}

// AccountService drives sign-in, first-sign-in migration and sign-out.
type AccountService struct {
	verifier  IdentityVerifier
	prefs     *repository.PreferenceRepository
	reminders *repository.ReminderRepository
	migrator  Migrator
	sync      CloudSync
	alarms    *AlarmScheduler
	autoSync  bool
	log       *zap.Logger
}

// NewAccountService wires the account flow. verifier, migrator and sync may be
// nil when cloud sync is not configured; autoSync controls whether live
// listeners are attached after sign-in.
func NewAccountService(
	verifier IdentityVerifier,
	prefs *repository.PreferenceRepository,
	reminders *repository.ReminderRepository,
	migrator Migrator,
	sync CloudSync,
	alarms *AlarmScheduler,
	autoSync bool,
	log *zap.Logger,
) *AccountService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AccountService{
		verifier:  verifier,
		prefs:     prefs,
		reminders: reminders,
		migrator:  migrator,
		sync:      sync,
		alarms:    alarms,
		autoSync:  autoSync,
		log:       log.Named("account"),
	}
}

// SignIn verifies idToken and reports whether local-only data is waiting for a
// migration decision. The account becomes current right away only when no
// migration is needed; otherwise CompleteSignIn switches to it.
func (s *AccountService) SignIn(ctx context.Context, idToken string) (SignInResult, error) {
	if s.verifier == nil || s.migrator == nil || s.sync == nil {
		return SignInResult{}, ErrCloudDisabled
	}

	account, err := s.verifier.VerifyIDToken(ctx, idToken)
	if err != nil {
		return SignInResult{}, fmt.Errorf("verify id token: %w", err)
	}

	needs, err := s.migrator.NeedsMigration(ctx, account.UID)
	if err != nil {
		return SignInResult{}, err
	}
	if !needs {
		if err := s.prefs.SetCurrentUser(ctx, account.UID, account.Email); err != nil {
			return SignInResult{}, err
		}
	}

	s.log.Info("signed in", zap.String("user_id", account.UID), zap.Bool("needs_migration", needs))
	return SignInResult{Account: account, NeedsMigration: needs}, nil
}

// CompleteSignIn runs the chosen migration strategy, or a plain full sync when
// strategy is nil, then makes account current. Auto-sync is detached for the
// duration. A nil strategy is refused while migration is still needed.
func (s *AccountService) CompleteSignIn(ctx context.Context, account Account, strategy *model.MigrationStrategy) error {
	if s.migrator == nil || s.sync == nil {
		return ErrCloudDisabled
	}
	if strategy == nil {
		needs, err := s.migrator.NeedsMigration(ctx, account.UID)
		if err != nil {
			return err
		}
		if needs {
			return ErrMigrationRequired
		}
	}

	s.sync.DisableAutoSync()

	var err error
	if strategy != nil {
		err = s.migrator.Execute(ctx, account.UID, *strategy)
	} else {
		err = s.sync.SyncAll(ctx, account.UID)
	}
	if err != nil {
		return err
	}

	if err := s.prefs.SetCurrentUser(ctx, account.UID, account.Email); err != nil {
		return err
	}
	if s.alarms != nil {
		if _, err := s.alarms.RescheduleAllUpcomingReminders(ctx); err != nil {
			s.log.Warn("reschedule after sign-in", zap.Error(err))
		}
	}
	return s.Resume(ctx)
}

// Resume attaches auto-sync for an already signed-in account. It stays
// detached while that account still has a migration pending.
func (s *AccountService) Resume(ctx context.Context) error {
	if !s.autoSync || s.sync == nil {
		return nil
	}
	userID, err := s.prefs.CurrentUser(ctx)
	if err != nil {
		return err
	}
	if userID == model.LocalUserID {
		return nil
	}
	if s.migrator != nil {
		needs, err := s.migrator.NeedsMigration(ctx, userID)
		if err != nil {
			return err
		}
		if needs {
			s.log.Warn("auto-sync held until migration completes", zap.String("user_id", userID))
			return ErrMigrationRequired
		}
	}
	return s.sync.EnableAutoSync(userID)
}

// SignOut detaches auto-sync, cancels the account's alarms and switches back
// to local-only data.
func (s *AccountService) SignOut(ctx context.Context) error {
	if s.sync != nil {
		s.sync.DisableAutoSync()
	}

	userID, err := s.prefs.CurrentUser(ctx)
	if err != nil {
		return err
	}
	if userID == model.LocalUserID {
		return nil
	}

	if s.alarms != nil {
		active, err := s.reminders.ListActiveByUser(ctx, userID)
		if err != nil {
			return err
		}
		for _, r := range active {
			s.alarms.CancelReminder(r.ID)
		}
	}

	if err := s.prefs.SetCurrentUser(ctx, model.LocalUserID, ""); err != nil {
		return err
	}

	if s.alarms != nil {
		if _, err := s.alarms.RescheduleAllUpcomingReminders(ctx); err != nil {
			s.log.Warn("reschedule after sign-out", zap.Error(err))
		}
	}
	s.log.Info("signed out", zap.String("user_id", userID))
	return nil
}

func (s *AccountService) CurrentUser(ctx context.Context) (Account, error) {
	uid, err := s.prefs.CurrentUser(ctx)
	if err != nil {
		return Account{}, err
	}
	if uid == model.LocalUserID {
		return Account{UID: uid}, nil
	}
	email, err := s.prefs.CurrentEmail(ctx)
	if err != nil {
		return Account{}, err
	}
	return Account{UID: uid, Email: email}, nil
}
