package main

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"rotinas/internal/bot"
	"rotinas/internal/cloud"
	"rotinas/internal/cloudsync"
	"rotinas/internal/config"
	"rotinas/internal/logger"
	"rotinas/internal/migration"
	"rotinas/internal/repository"
	"rotinas/internal/service"
)

// app holds the wired components shared by all commands.
type app struct {
	cfg config.Config
	log *zap.Logger
	db  *gorm.DB
	loc *time.Location

	reminders *repository.ReminderRepository
	prefs     *repository.PreferenceRepository

	scheduler  *service.SchedulerService
	alarms     *service.AlarmScheduler
	tasks      *service.TaskService
	pending    *service.PendingService
	actions    *service.ActionService
	categories *service.CategoryService
	account    *service.AccountService

	store    *cloud.Store
	sync     *cloudsync.Service
	telegram *tgbotapi.BotAPI
}

// newApp loads configuration and wires storage, scheduling and services. With
// withBot set, notifications go to Telegram; otherwise they are only logged.
func newApp(ctx context.Context, configPath string, withBot bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Env, cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	weekStart, err := cfg.FirstWeekday()
	if err != nil {
		return nil, err
	}

	db, err := repository.NewDB(cfg.DatabaseURL, logger.Gorm(log))
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, db: db, loc: loc}
	a.reminders = repository.NewReminderRepository(db)
	a.prefs = repository.NewPreferenceRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	checklistRepo := repository.NewChecklistRepository(db)

	a.scheduler = service.NewSchedulerService(loc)
	a.alarms = service.NewAlarmScheduler(a.scheduler, a.reminders, a.prefs, loc, log)

	var notifier service.Notifier = logNotifier{log: log.Named("notifications")}
	if withBot {
		if err := cfg.ValidateBot(); err != nil {
			a.close()
			return nil, err
		}
		a.telegram, err = bot.NewAPI(cfg.Telegram.Token)
		if err != nil {
			a.close()
			return nil, err
		}
		notifier = bot.NewNotifier(a.telegram, cfg.Telegram.ChatID, log)
	}

	var (
		verifier       service.IdentityVerifier
		migrator       service.Migrator
		syncer         service.CloudSync
		cloudReminders service.CloudReminders
	)
	if cfg.CloudEnabled() {
		fbApp, err := cloud.NewApp(ctx, cfg.Firebase, log)
		if err != nil {
			a.close()
			return nil, err
		}
		a.store, err = cloud.NewStore(ctx, fbApp, log)
		if err != nil {
			a.close()
			return nil, err
		}
		v, err := cloud.NewVerifier(ctx, fbApp)
		if err != nil {
			a.close()
			return nil, err
		}
		a.sync = cloudsync.NewService(a.store, a.reminders, categoryRepo, checklistRepo, a.prefs, log)
		if withBot {
			a.sync.OnRemindersMerged(a.alarms.ArmReminders)
		}

		verifier = v
		migrator = migration.NewHelper(a.reminders, categoryRepo, checklistRepo, a.prefs, a.sync, log)
		syncer = a.sync
		cloudReminders = a.sync
	}

	a.tasks = service.NewTaskService(a.reminders, categoryRepo, a.prefs, a.alarms, notifier, cloudReminders, loc, weekStart, log)
	a.pending = service.NewPendingService(a.reminders, a.prefs, notifier, log)
	a.actions = service.NewActionService(a.reminders, a.alarms, notifier, loc, log)
	a.categories = service.NewCategoryService(categoryRepo, a.prefs)
	a.account = service.NewAccountService(verifier, a.prefs, a.reminders, migrator, syncer, a.alarms, cfg.Firebase.SyncEnabled, log)

	return a, nil
}

func (a *app) chatBot() *bot.Bot {
	svc := bot.Services{
		Tasks:      a.tasks,
		Pending:    a.pending,
		Actions:    a.actions,
		Categories: a.categories,
		Account:    a.account,
	}
	if a.sync != nil {
		svc.Sync = a.sync
	}
	return bot.New(a.telegram, a.cfg.Telegram.ChatID, a.loc, svc, a.log)
}

func (a *app) close() {
	if a.sync != nil {
		a.sync.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("close firestore", zap.Error(err))
		}
	}
	if sqlDB, err := a.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			a.log.Warn("close db", zap.Error(err))
		}
	}
	_ = logger.Sync(a.log)
}

// logNotifier stands in for the chat when a command runs without the bot.
type logNotifier struct {
	log *zap.Logger
}

func (n logNotifier) Show(_ context.Context, notification service.Notification) error {
	n.log.Info("notification", zap.Int64("id", notification.ID), zap.String("title", notification.Title), zap.String("body", notification.Body))
	return nil
}

func (n logNotifier) Dismiss(_ context.Context, id int64) error {
	n.log.Debug("dismiss notification", zap.Int64("id", id))
	return nil
}
