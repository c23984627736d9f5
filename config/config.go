// Package config reads the lotctl settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/etnz/costbasis"
	"github.com/etnz/costbasis/date"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Environment variables, all optional.
const (
	EnvStore             = "COSTBASIS_STORE"
	EnvLogLevel          = "COSTBASIS_LOG_LEVEL"
	EnvLogPretty         = "COSTBASIS_LOG_PRETTY"
	EnvCurrency          = "COSTBASIS_CURRENCY"
	EnvCommissionRate    = "COSTBASIS_COMMISSION_RATE"
	EnvMinCommission     = "COSTBASIS_MIN_COMMISSION"
	EnvStampDutyRate     = "COSTBASIS_STAMP_DUTY_RATE"
	EnvTransferFeeRate   = "COSTBASIS_TRANSFER_FEE_RATE"
	EnvTransferMarkets   = "COSTBASIS_TRANSFER_FEE_MARKETS"
	EnvTransferSides     = "COSTBASIS_TRANSFER_FEE_SIDES"
	EnvSettlementLag     = "COSTBASIS_SETTLEMENT_LAG"
	EnvHolidays          = "COSTBASIS_HOLIDAYS"
	EnvEnforceSettlement = "COSTBASIS_ENFORCE_SETTLEMENT"
)

// DefaultStore is the journal used when no store is configured.
const DefaultStore = "costbasis.jsonl"

// Config holds application configuration
type Config struct {
	StorePath         string // .jsonl for a journal, anything else is a sqlite database
	LogLevel          string
	LogPretty         bool
	Fees              costbasis.FeeConfig
	Settlement        costbasis.SettlementConfig
	EnforceSettlement bool
}

// Load reads the configuration from the environment after loading the
// given dotenv files, or ".env" when none is given. A missing default ".env"
// is not an error, a missing explicit file is.
//
// Variables already set in the environment win over dotenv files.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		_ = godotenv.Load()
	} else if err := godotenv.Load(files...); err != nil {
		return nil, fmt.Errorf("cannot load %s: %w", strings.Join(files, ", "), err)
	}

	def := costbasis.DefaultFeeConfig()
	cfg := &Config{
		StorePath:         getEnv(EnvStore, DefaultStore),
		LogLevel:          getEnv(EnvLogLevel, "info"),
		LogPretty:         getEnvAsBool(EnvLogPretty, false),
		EnforceSettlement: getEnvAsBool(EnvEnforceSettlement, false),
		Fees: costbasis.FeeConfig{
			Currency:    getEnv(EnvCurrency, def.Currency),
			TransferFee: def.TransferFee,
		},
		Settlement: costbasis.DefaultSettlementConfig(),
	}

	var err error
	if cfg.Fees.CommissionRate, err = getEnvAsDecimal(EnvCommissionRate, def.CommissionRate); err != nil {
		return nil, err
	}
	if cfg.Fees.MinCommission, err = getEnvAsDecimal(EnvMinCommission, def.MinCommission); err != nil {
		return nil, err
	}
	if cfg.Fees.StampDutyRate, err = getEnvAsDecimal(EnvStampDutyRate, def.StampDutyRate); err != nil {
		return nil, err
	}
	if cfg.Fees.TransferFeeRate, err = getEnvAsDecimal(EnvTransferFeeRate, def.TransferFeeRate); err != nil {
		return nil, err
	}
	if v := getEnv(EnvTransferMarkets, ""); v != "" {
		for _, m := range splitList(v) {
			cfg.Fees.TransferFee.Markets = append(cfg.Fees.TransferFee.Markets, costbasis.Market(strings.ToUpper(m)))
		}
	}
	if v := getEnv(EnvTransferSides, ""); v != "" {
		cfg.Fees.TransferFee.Sides = costbasis.SideScope(strings.ToLower(v))
	}

	if v := getEnv(EnvSettlementLag, ""); v != "" {
		lag, err := strconv.Atoi(v)
		if err != nil {
			return nil, &costbasis.ConfigurationError{Field: EnvSettlementLag, Reason: fmt.Sprintf("%q is not an integer", v)}
		}
		cfg.Settlement.Lag = lag
	}
	if cfg.Settlement.Holidays, err = parseHolidays(getEnv(EnvHolidays, "")); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fee and settlement settings.
func (c *Config) Validate() error {
	if err := c.Fees.Validate(); err != nil {
		return err
	}
	if c.Settlement.Lag < 0 {
		return &costbasis.ConfigurationError{Field: EnvSettlementLag, Reason: fmt.Sprintf("must not be negative, got %d", c.Settlement.Lag)}
	}
	return nil
}

// parseHolidays reads "sse" for the bundled exchange closures or a comma
// separated list of dates. Both can be combined.
func parseHolidays(v string) ([]date.Date, error) {
	var days []date.Date
	for _, item := range splitList(v) {
		if strings.EqualFold(item, "sse") {
			days = append(days, costbasis.SSEClosures2025_2026...)
			continue
		}
		d, err := date.Parse(item)
		if err != nil {
			return nil, &costbasis.ConfigurationError{Field: EnvHolidays, Reason: fmt.Sprintf("%q is not a date", item)}
		}
		days = append(days, d)
	}
	return days, nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvAsDecimal fails on malformed values instead of using the default.
func getEnvAsDecimal(key string, defaultValue decimal.Decimal) (decimal.Decimal, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, &costbasis.ConfigurationError{Field: key, Reason: fmt.Sprintf("%q is not a number", value)}
	}
	return d, nil
}
