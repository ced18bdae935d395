package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	DatabaseURL         string
	HTTPAddr            string
	LogLevel            string
	Environment         string
	CronSpecCycles      string // Cycle progression, hourly by default
	CronSpecObligations string // Overdue obligations, daily by default
	JobTimeout          time.Duration
	BusinessLocation    *time.Location // Calendar used to decide what "today" is

	Policy Policy

	// Ops bot. All optional; alerts and commands are disabled without a token.
	TelegramToken   string
	AdminTelegramID int64
	OpsTelegramChat int64
}

// Policy holds the business constants of both engines.
type Policy struct {
	GracePeriodDays       int             // Obligation grace window after the due date
	LateFeeRate           decimal.Decimal // Fraction of the remaining balance
	XnScoreOverduePenalty int             // Points deducted when an obligation turns overdue
	CycleGracePeriodDays  int             // Cycle grace window after the contribution deadline
}

// DefaultPolicy returns the documented defaults.
func DefaultPolicy() Policy {
	return Policy{
		GracePeriodDays:       5,
		LateFeeRate:           decimal.RequireFromString("0.05"),
		XnScoreOverduePenalty: 5,
		CycleGracePeriodDays:  2,
	}
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{Policy: DefaultPolicy()}
	var err error

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.HTTPAddr = envOr("HTTP_ADDR", ":8080")
	cfg.LogLevel = strings.ToLower(envOr("LOG_LEVEL", "info"))
	cfg.Environment = strings.ToLower(envOr("ENVIRONMENT", "development"))
	cfg.CronSpecCycles = envOr("CRON_SPEC_CYCLES", "0 * * * *")           // Default: top of every hour
	cfg.CronSpecObligations = envOr("CRON_SPEC_OBLIGATIONS", "15 0 * * *") // Default: 00:15 daily

	cfg.JobTimeout, err = time.ParseDuration(envOr("JOB_TIMEOUT", "5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid JOB_TIMEOUT: %w", err)
	}

	cfg.BusinessLocation, err = time.LoadLocation(envOr("BUSINESS_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid BUSINESS_TIMEZONE: %w", err)
	}

	if cfg.Policy.GracePeriodDays, err = envInt("GRACE_PERIOD_DAYS", cfg.Policy.GracePeriodDays); err != nil {
		return nil, err
	}
	if cfg.Policy.XnScoreOverduePenalty, err = envInt("XNSCORE_OVERDUE_PENALTY", cfg.Policy.XnScoreOverduePenalty); err != nil {
		return nil, err
	}
	if cfg.Policy.CycleGracePeriodDays, err = envInt("CYCLE_GRACE_PERIOD_DAYS", cfg.Policy.CycleGracePeriodDays); err != nil {
		return nil, err
	}
	if rate := os.Getenv("LATE_FEE_RATE"); rate != "" {
		cfg.Policy.LateFeeRate, err = decimal.NewFromString(rate)
		if err != nil {
			return nil, fmt.Errorf("invalid LATE_FEE_RATE: %w", err)
		}
	}
	if err := cfg.Policy.Validate(); err != nil {
		return nil, err
	}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.AdminTelegramID, err = envInt64("ADMIN_TELEGRAM_ID"); err != nil {
		return nil, err
	}
	if cfg.OpsTelegramChat, err = envInt64("OPS_TELEGRAM_CHAT_ID"); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects values that would make the engines misbehave.
func (p Policy) Validate() error {
	if p.GracePeriodDays < 0 {
		return fmt.Errorf("GRACE_PERIOD_DAYS must not be negative, got %d", p.GracePeriodDays)
	}
	if p.CycleGracePeriodDays < 0 {
		return fmt.Errorf("CYCLE_GRACE_PERIOD_DAYS must not be negative, got %d", p.CycleGracePeriodDays)
	}
	if p.XnScoreOverduePenalty < 0 {
		return fmt.Errorf("XNSCORE_OVERDUE_PENALTY must not be negative, got %d", p.XnScoreOverduePenalty)
	}
	if p.LateFeeRate.IsNegative() || p.LateFeeRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("LATE_FEE_RATE must be between 0 and 1, got %s", p.LateFeeRate)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envInt64(key string) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
