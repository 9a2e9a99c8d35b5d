// ABOUTME: LEADSYNC_* environment overrides applied after the config file
// ABOUTME: Each variable binds to one field; malformed values are load errors
package config

import (
	"fmt"
	"strconv"
	"time"
)

// EnvPrefix is the prefix of every recognized environment variable.
const EnvPrefix = "LEADSYNC_"

type binding struct {
	key string
	set func(c *Config, v string) error
}

func str(field func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*field(c) = v
		return nil
	}
}

func dur(field func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*field(c) = d
		return nil
	}
}

var bindings = []binding{
	{"ENV", str(func(c *Config) *string { return &c.Environment })},
	{"DB_PATH", str(func(c *Config) *string { return &c.DatabasePath })},
	{"STORE_IDENTITY", str(func(c *Config) *string { return &c.StoreIdentity })},
	{"QUESTIONNAIRE_PATH", str(func(c *Config) *string { return &c.QuestionnairePath })},

	{"BUSINESS_NAME", str(func(c *Config) *string { return &c.Business.Name })},
	{"OWNER_EMAIL", str(func(c *Config) *string { return &c.Business.OwnerEmail })},
	{"OPERATOR_EMAIL", str(func(c *Config) *string { return &c.Business.OperatorEmail })},
	{"SCHEDULING_LINK", str(func(c *Config) *string { return &c.Business.SchedulingLink })},
	{"PHONE_REGION", str(func(c *Config) *string { return &c.Business.PhoneRegion })},

	{"REMINDER_AFTER", dur(func(c *Config) *time.Duration { return &c.Reconcile.ReminderAfter })},
	{"BOOKING_WINDOW", dur(func(c *Config) *time.Duration { return &c.Reconcile.BookingWindow })},
	{"LOCK_TTL", dur(func(c *Config) *time.Duration { return &c.Reconcile.LockTTL })},
	{"DAEMON_INTERVAL", dur(func(c *Config) *time.Duration { return &c.Reconcile.DaemonInterval })},

	{"LLM_ENABLED", func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		c.LLM.Enabled = b
		return nil
	}},
	{"GEMINI_API_KEY", str(func(c *Config) *string { return &c.LLM.APIKey })},
	{"GEMINI_MODEL", str(func(c *Config) *string { return &c.LLM.Model })},

	{"SMTP_HOST", str(func(c *Config) *string { return &c.SMTP.Host })},
	{"SMTP_PORT", func(c *Config, v string) error {
		p, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		c.SMTP.Port = p
		return nil
	}},
	{"SMTP_USERNAME", str(func(c *Config) *string { return &c.SMTP.Username })},
	{"SMTP_PASSWORD", str(func(c *Config) *string { return &c.SMTP.Password })},
	{"SMTP_FROM", str(func(c *Config) *string { return &c.SMTP.FromEmail })},
	{"SMTP_FROM_NAME", str(func(c *Config) *string { return &c.SMTP.FromName })},

	{"REDIS_URL", str(func(c *Config) *string { return &c.Redis.URL })},

	{"GOOGLE_CLIENT_ID", str(func(c *Config) *string { return &c.Google.ClientID })},
	{"GOOGLE_CLIENT_SECRET", str(func(c *Config) *string { return &c.Google.ClientSecret })},
	{"GOOGLE_TOKEN_PATH", str(func(c *Config) *string { return &c.Google.TokenPath })},
	{"GOOGLE_RPS", func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		c.Google.RequestsPerSecond = f
		return nil
	}},
}

// applyEnv overrides fields from set variables. Empty values are ignored.
func applyEnv(c *Config, lookup func(string) (string, bool)) error {
	for _, b := range bindings {
		v, ok := lookup(EnvPrefix + b.key)
		if !ok || v == "" {
			continue
		}
		if err := b.set(c, v); err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, b.key, err)
		}
	}
	return nil
}
