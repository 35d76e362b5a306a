package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config keeps runtime settings for the reminders service.
type Config struct {
	Env         string         `yaml:"env" env:"APP_ENV" env-default:"development"`
	Debug       bool           `yaml:"debug" env:"LOG_DEBUG" env-default:"false"`
	DatabaseURL string         `yaml:"database_url" env:"DATABASE_URL" env-default:"rotinas.db"`
	Timezone    string         `yaml:"timezone" env:"TIMEZONE" env-default:"Local"`
	WeekStart   string         `yaml:"week_start" env:"WEEK_START" env-default:"monday"`
	Telegram    TelegramConfig `yaml:"telegram"`
	Firebase    FirebaseConfig `yaml:"firebase"`
}

type TelegramConfig struct {
	Token  string `yaml:"token" env:"TELEGRAM_TOKEN"`
	ChatID int64  `yaml:"chat_id" env:"TELEGRAM_CHAT_ID"`
}

type FirebaseConfig struct {
	SyncEnabled     bool   `yaml:"sync_enabled" env:"SYNC_ENABLED" env-default:"true"`
	ProjectID       string `yaml:"project_id" env:"FIREBASE_PROJECT_ID"`
	CredentialsFile string `yaml:"credentials_file" env:"FIREBASE_CREDENTIALS_FILE"`
}

// Load reads an optional YAML file and overlays environment variables on top.
// An empty path falls back to CONFIG_PATH, and then to environment only.
func Load(path string) (Config, error) {
	var cfg Config

	if path == "" {
		path = strings.TrimSpace(os.Getenv("CONFIG_PATH"))
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return cfg, fmt.Errorf("config file %q: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return cfg, fmt.Errorf("read config %q: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return cfg, fmt.Errorf("read env: %w", err)
	}

	if _, err := cfg.Location(); err != nil {
		return cfg, err
	}
	if _, err := cfg.FirstWeekday(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Location resolves the configured timezone used for calendar arithmetic.
func (c Config) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Timezone)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", name, err)
	}
	return loc, nil
}

// FirstWeekday returns the first day of the calendar week.
func (c Config) FirstWeekday() (time.Weekday, error) {
	raw := strings.ToLower(strings.TrimSpace(c.WeekStart))
	for d := time.Sunday; d <= time.Saturday; d++ {
		if raw == strings.ToLower(d.String()) {
			return d, nil
		}
	}
	if raw == "" {
		return time.Monday, nil
	}
	return time.Monday, fmt.Errorf("invalid week start %q", c.WeekStart)
}

// ValidateBot checks the settings the notification bot cannot run without.
func (c Config) ValidateBot() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	if c.Telegram.ChatID == 0 {
		return fmt.Errorf("TELEGRAM_CHAT_ID is required")
	}
	return nil
}

// CloudEnabled reports whether Firebase-backed sync and sign-in are configured.
func (c Config) CloudEnabled() bool {
	if !c.Firebase.SyncEnabled {
		return false
	}
	return c.Firebase.ProjectID != "" || c.Firebase.CredentialsFile != ""
}
