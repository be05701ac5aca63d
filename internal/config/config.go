package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	Port        string `yaml:"port"`
	ServiceName string `yaml:"service_name"`
	LogLevel    string `yaml:"log_level"`

	// Forecast provider
	AnalyticsURL         string        `yaml:"analytics_url"`
	AnalyticsTimeout     time.Duration `yaml:"analytics_timeout"`
	AnalyticsRetries     int           `yaml:"analytics_retries"`
	AnalyticsTokenSecret string        `yaml:"analytics_token_secret"`

	// Reminder store
	StoreDriver string `yaml:"store_driver"`
	DBConn      string `yaml:"db_conn"`

	// Insight generation, best-effort
	InsightsURL     string        `yaml:"insights_url"`
	InsightsAPIKey  string        `yaml:"insights_api_key"`
	InsightsModel   string        `yaml:"insights_model"`
	InsightsTimeout time.Duration `yaml:"insights_timeout"`

	ReminderSchedule string `yaml:"reminder_schedule"`
	ReminderLeadDays int    `yaml:"reminder_lead_days"`
	ReminderEmail    string `yaml:"reminder_email"`

	SMTPHost     string `yaml:"smtp_host"`
	SMTPPort     string `yaml:"smtp_port"`
	SMTPUsername string `yaml:"smtp_username"`
	SMTPPassword string `yaml:"smtp_password"`
	SenderEmail  string `yaml:"sender_email"`

	SentryDSN      string `yaml:"sentry_dsn"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`

	// Local analytics provider
	DataDir       string `yaml:"data_dir"`
	AnalyticsPort string `yaml:"analytics_port"`
}

const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// NewConfig loads configuration from environment variables, overlaid by the
// YAML file named in CONFIG_FILE when it is set.
func NewConfig() (*Config, error) {
	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		ServiceName:          getEnv("SERVICE_NAME", "cashflow-gateway"),
		LogLevel:             getEnv("LOG_LEVEL", "INFO"),
		AnalyticsURL:         getEnv("ANALYTICS_URL", "http://localhost:8000"),
		AnalyticsTimeout:     getEnvDuration("ANALYTICS_TIMEOUT", 30*time.Second),
		AnalyticsRetries:     getEnvInt("ANALYTICS_RETRIES", 2),
		AnalyticsTokenSecret: os.Getenv("ANALYTICS_TOKEN_SECRET"),
		StoreDriver:          getEnv("STORE_DRIVER", StoreSQLite),
		DBConn:               getEnv("DB_CONN", "cashflow.db"),
		InsightsURL:          os.Getenv("INSIGHTS_URL"),
		InsightsAPIKey:       os.Getenv("INSIGHTS_API_KEY"),
		InsightsModel:        getEnv("INSIGHTS_MODEL", "gpt-4o-mini"),
		InsightsTimeout:      getEnvDuration("INSIGHTS_TIMEOUT", 10*time.Second),
		ReminderSchedule:     getEnv("REMINDER_SCHEDULE", "@every 1m"),
		ReminderLeadDays:     getEnvInt("REMINDER_LEAD_DAYS", 1),
		ReminderEmail:        os.Getenv("REMINDER_EMAIL"),
		SMTPHost:             os.Getenv("SMTP_HOST"),
		SMTPPort:             getEnv("SMTP_PORT", "587"),
		SMTPUsername:         os.Getenv("SMTP_USERNAME"),
		SMTPPassword:         os.Getenv("SMTP_PASSWORD"),
		SenderEmail:          os.Getenv("SENDER_EMAIL"),
		SentryDSN:            os.Getenv("SENTRY_DSN"),
		MaxUploadBytes:       int64(getEnvInt("MAX_UPLOAD_BYTES", 10<<20)),
		DataDir:              getEnv("DATA_DIR", "data"),
		AnalyticsPort:        getEnv("ANALYTICS_PORT", "8000"),
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// overlayFile applies the non-zero values of a YAML file on top of cfg.
func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	overlayString(&c.Port, file.Port)
	overlayString(&c.ServiceName, file.ServiceName)
	overlayString(&c.LogLevel, file.LogLevel)
	overlayString(&c.AnalyticsURL, file.AnalyticsURL)
	overlayString(&c.AnalyticsTokenSecret, file.AnalyticsTokenSecret)
	overlayString(&c.StoreDriver, file.StoreDriver)
	overlayString(&c.DBConn, file.DBConn)
	overlayString(&c.InsightsURL, file.InsightsURL)
	overlayString(&c.InsightsAPIKey, file.InsightsAPIKey)
	overlayString(&c.InsightsModel, file.InsightsModel)
	overlayString(&c.ReminderSchedule, file.ReminderSchedule)
	overlayString(&c.ReminderEmail, file.ReminderEmail)
	overlayString(&c.SMTPHost, file.SMTPHost)
	overlayString(&c.SMTPPort, file.SMTPPort)
	overlayString(&c.SMTPUsername, file.SMTPUsername)
	overlayString(&c.SMTPPassword, file.SMTPPassword)
	overlayString(&c.SenderEmail, file.SenderEmail)
	overlayString(&c.SentryDSN, file.SentryDSN)
	overlayString(&c.DataDir, file.DataDir)
	overlayString(&c.AnalyticsPort, file.AnalyticsPort)
	if file.AnalyticsTimeout > 0 {
		c.AnalyticsTimeout = file.AnalyticsTimeout
	}
	if file.AnalyticsRetries > 0 {
		c.AnalyticsRetries = file.AnalyticsRetries
	}
	if file.InsightsTimeout > 0 {
		c.InsightsTimeout = file.InsightsTimeout
	}
	if file.ReminderLeadDays > 0 {
		c.ReminderLeadDays = file.ReminderLeadDays
	}
	if file.MaxUploadBytes > 0 {
		c.MaxUploadBytes = file.MaxUploadBytes
	}
	return nil
}

func (c *Config) validate() error {
	if c.AnalyticsURL == "" {
		return fmt.Errorf("ANALYTICS_URL is required")
	}
	u, err := url.Parse(c.AnalyticsURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("ANALYTICS_URL is not a valid URL: %q", c.AnalyticsURL)
	}
	if c.AnalyticsTimeout <= 0 {
		return fmt.Errorf("ANALYTICS_TIMEOUT must be positive")
	}
	if c.AnalyticsRetries < 0 {
		return fmt.Errorf("ANALYTICS_RETRIES must not be negative")
	}
	switch c.StoreDriver {
	case StoreSQLite, StorePostgres:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreSQLite, StorePostgres, c.StoreDriver)
	}
	if c.DBConn == "" {
		return fmt.Errorf("DB_CONN is required")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	return nil
}

// SMTPEnabled reports whether reminder mail can be sent.
func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != "" && c.SenderEmail != "" && c.ReminderEmail != ""
}

func overlayString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultVal
	}
	return d
}
