package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
	BackendFile     = "file"
)

type Config struct {
	Port         string   `mapstructure:"PORT"`
	Env          string   `mapstructure:"ENV"`
	StoreBackend string   `mapstructure:"STORE_BACKEND"`
	StoreDir     string   `mapstructure:"STORE_DIR"`
	DatabaseURL  string   `mapstructure:"DATABASE_URL"`
	DBMaxConns   int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns   int32    `mapstructure:"DB_MIN_CONNS"`
	JWTSecret    string   `mapstructure:"AUTH_JWT_SECRET"`
	AuthIssuer   string   `mapstructure:"AUTH_ISSUER"`
	AuthAudience string   `mapstructure:"AUTH_AUDIENCE"`
	CORSOrigins  []string `mapstructure:"CORS_ORIGINS"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`

	ClinicTimezone   string `mapstructure:"CLINIC_TIMEZONE"`
	ReminderSchedule string `mapstructure:"REMINDER_SCHEDULE"`
	ReminderEnabled  bool   `mapstructure:"REMINDER_ENABLED"`

	EmailAPIURL string `mapstructure:"EMAIL_API_URL"`
	EmailAPIKey string `mapstructure:"EMAIL_API_KEY"`
	EmailFrom   string `mapstructure:"EMAIL_FROM"`

	TwilioAccountSID string `mapstructure:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken  string `mapstructure:"TWILIO_AUTH_TOKEN"`
	TwilioFromNumber string `mapstructure:"TWILIO_FROM_NUMBER"`

	AssistantAPIURL string `mapstructure:"ASSISTANT_API_URL"`
	AssistantModel  string `mapstructure:"ASSISTANT_MODEL"`
	AssistantRPM    int    `mapstructure:"ASSISTANT_RPM"`

	MetricsEnabled bool `mapstructure:"METRICS_ENABLED"`
}

var defaults = map[string]any{
	"PORT":              "8000",
	"ENV":               "development",
	"STORE_BACKEND":     BackendPostgres,
	"STORE_DIR":         "./data",
	"DB_MAX_CONNS":      20,
	"DB_MIN_CONNS":      2,
	"CORS_ORIGINS":      "http://localhost:3000",
	"RATE_LIMIT_RPS":    20,
	"RATE_LIMIT_BURST":  40,
	"CLINIC_TIMEZONE":   "UTC",
	"REMINDER_SCHEDULE": "@every 5m",
	"REMINDER_ENABLED":  true,
	"EMAIL_FROM":        "Vet Clinic <no-reply@vetclinic.local>",
	"ASSISTANT_API_URL": "https://api.openai.com/v1/chat/completions",
	"ASSISTANT_MODEL":   "gpt-4o-mini",
	"ASSISTANT_RPM":     10,
	"METRICS_ENABLED":   true,
}

var keys = []string{
	"PORT", "ENV", "STORE_BACKEND", "STORE_DIR", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"AUTH_JWT_SECRET", "AUTH_ISSUER", "AUTH_AUDIENCE", "CORS_ORIGINS",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"CLINIC_TIMEZONE", "REMINDER_SCHEDULE", "REMINDER_ENABLED",
	"EMAIL_API_URL", "EMAIL_API_KEY", "EMAIL_FROM",
	"TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN", "TWILIO_FROM_NUMBER",
	"ASSISTANT_API_URL", "ASSISTANT_MODEL", "ASSISTANT_RPM",
	"METRICS_ENABLED",
}

// Load reads an optional .env file and the environment. It does not
// validate; callers run Validate once they know which command needs what.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// A missing .env is fine.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = nil
	for _, o := range strings.Split(v.GetString("CORS_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, o)
		}
	}
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Location resolves CLINIC_TIMEZONE. Day boundaries, slot start times and
// reminder windows are all computed in it.
func (c *Config) Location() (*time.Location, error) {
	if c.ClinicTimezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.ClinicTimezone)
	if err != nil {
		return nil, fmt.Errorf("CLINIC_TIMEZONE %q: %w", c.ClinicTimezone, err)
	}
	return loc, nil
}

func (c *Config) EmailConfigured() bool {
	return c.EmailAPIURL != "" && c.EmailAPIKey != ""
}

func (c *Config) SMSConfigured() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioFromNumber != ""
}

// Validate refuses configurations that cannot run safely. Outside
// development a JWT secret is mandatory, since the dev header auth would
// otherwise be the only gate.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND is %q", BackendPostgres)
		}
	case BackendFile:
		if c.StoreDir == "" {
			return fmt.Errorf("STORE_DIR is required when STORE_BACKEND is %q", BackendFile)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("STORE_BACKEND must be %q, %q or %q, got %q",
			BackendPostgres, BackendMemory, BackendFile, c.StoreBackend)
	}

	if !c.IsDev() && c.JWTSecret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET is required when ENV=%q", c.Env)
	}
	if c.JWTSecret != "" && len(c.JWTSecret) < 32 {
		return fmt.Errorf("AUTH_JWT_SECRET must be at least 32 bytes")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.ReminderEnabled {
		if _, err := cron.ParseStandard(c.ReminderSchedule); err != nil {
			return fmt.Errorf("REMINDER_SCHEDULE %q: %w", c.ReminderSchedule, err)
		}
	}
	if c.AssistantRPM < 0 {
		return fmt.Errorf("ASSISTANT_RPM must not be negative")
	}
	return nil
}
