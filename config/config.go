// ABOUTME: Immutable application configuration loaded once at startup
// ABOUTME: Defaults, then YAML file, then .env, then LEADSYNC_* environment, then validation
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/harperreed/leadsync/db"
	"github.com/harperreed/leadsync/detect"
	"github.com/harperreed/leadsync/llm"
	"github.com/harperreed/leadsync/reconcile"
)

// MinDaemonInterval is the shortest allowed period between daemon passes.
const MinDaemonInterval = 5 * time.Minute

// Config is the full application configuration.
type Config struct {
	Environment       string `yaml:"environment" validate:"oneof=development production test"`
	DatabasePath      string `yaml:"database_path" validate:"required"`
	StoreIdentity     string `yaml:"store_identity" validate:"required"`
	QuestionnairePath string `yaml:"questionnaire_path"`

	Business  BusinessConfig  `yaml:"business"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	LLM       LLMConfig       `yaml:"llm"`
	SMTP      SMTPConfig      `yaml:"smtp"`
	Redis     RedisConfig     `yaml:"redis"`
	Google    GoogleConfig    `yaml:"google"`
}

// BusinessConfig describes who the leads are talking to.
type BusinessConfig struct {
	Name           string `yaml:"name"`
	OwnerEmail     string `yaml:"owner_email" validate:"required,email"`
	OperatorEmail  string `yaml:"operator_email" validate:"omitempty,email"`
	SchedulingLink string `yaml:"scheduling_link" validate:"omitempty,url"`
	PhoneRegion    string `yaml:"phone_region" validate:"len=2"`
}

// ReconcileConfig tunes the reconciliation driver.
type ReconcileConfig struct {
	ReminderAfter  time.Duration `yaml:"reminder_after" validate:"gt=0"`
	BookingWindow  time.Duration `yaml:"booking_window" validate:"gt=0"`
	LockTTL        time.Duration `yaml:"lock_ttl" validate:"gt=0"`
	DaemonInterval time.Duration `yaml:"daemon_interval"`
}

// LLMConfig configures the Gemini provider.
type LLMConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key" validate:"required_if=Enabled true"`
	Model   string `yaml:"model"`
}

// SMTPConfig configures outgoing mail. An empty host logs mail instead.
type SMTPConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port" validate:"omitempty,min=1,max=65535"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	FromEmail string `yaml:"from_email" validate:"omitempty,email"`
	FromName  string `yaml:"from_name"`
}

// RedisConfig selects the Redis run lock. An empty URL uses the SQLite lock.
type RedisConfig struct {
	URL string `yaml:"url" validate:"omitempty,url"`
}

// GoogleConfig configures the Gmail and Calendar clients.
type GoogleConfig struct {
	ClientID          string  `yaml:"client_id"`
	ClientSecret      string  `yaml:"client_secret"`
	TokenPath         string  `yaml:"token_path"`
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gt=0"`
	Burst             int     `yaml:"burst" validate:"min=1"`
}

// SMTPEnabled reports whether real mail delivery is configured.
func (c Config) SMTPEnabled() bool {
	return c.SMTP.Host != ""
}

// GoogleEnabled reports whether OAuth client credentials are configured.
func (c Config) GoogleEnabled() bool {
	return c.Google.ClientID != "" && c.Google.ClientSecret != ""
}

// DefaultPath returns the config file location under the XDG config directory.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, "leadsync", "config.yaml")
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Environment:   "production",
		DatabasePath:  db.DefaultPath(),
		StoreIdentity: "default",
		Business: BusinessConfig{
			PhoneRegion: "US",
		},
		Reconcile: ReconcileConfig{
			ReminderAfter:  reconcile.DefaultReminderAfter,
			BookingWindow:  detect.DefaultBookingWindow,
			LockTTL:        reconcile.DefaultLockTTL,
			DaemonInterval: 15 * time.Minute,
		},
		LLM: LLMConfig{
			Model: llm.DefaultModel,
		},
		SMTP: SMTPConfig{
			Port: 587,
		},
		Google: GoogleConfig{
			RequestsPerSecond: 5,
			Burst:             5,
		},
	}
}

// Load builds the configuration. An empty path reads DefaultPath when it
// exists; an explicit path must exist.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if err := loadFile(&cfg, path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return Config{}, err
		}
	}

	// A missing .env is normal outside development.
	_ = godotenv.Load()

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

var validate = validator.New()

// Validate checks field constraints and cross-field rules.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.SMTP.Host != "" && c.SMTP.FromEmail == "" {
		return errors.New("invalid config: smtp from_email is required when smtp host is set")
	}
	if c.Reconcile.DaemonInterval != 0 && c.Reconcile.DaemonInterval < MinDaemonInterval {
		return fmt.Errorf("invalid config: daemon interval %s is below the %s minimum", c.Reconcile.DaemonInterval, MinDaemonInterval)
	}
	return nil
}
