package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/etnz/costbasis"
	"github.com/etnz/costbasis/date"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allEnv = []string{
	EnvStore, EnvLogLevel, EnvLogPretty, EnvCurrency, EnvCommissionRate,
	EnvMinCommission, EnvStampDutyRate, EnvTransferFeeRate, EnvTransferMarkets,
	EnvTransferSides, EnvSettlementLag, EnvHolidays, EnvEnforceSettlement,
}

// clearEnv unsets every variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allEnv {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	def := costbasis.DefaultFeeConfig()
	assert.Equal(t, DefaultStore, cfg.StorePath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.LogPretty)
	assert.False(t, cfg.EnforceSettlement)
	assert.Equal(t, "CNY", cfg.Fees.Currency)
	assert.True(t, def.CommissionRate.Equal(cfg.Fees.CommissionRate))
	assert.True(t, def.MinCommission.Equal(cfg.Fees.MinCommission))
	assert.True(t, def.StampDutyRate.Equal(cfg.Fees.StampDutyRate))
	assert.True(t, def.TransferFeeRate.Equal(cfg.Fees.TransferFeeRate))
	assert.Empty(t, cfg.Fees.TransferFee.Markets)
	assert.Equal(t, 1, cfg.Settlement.Lag)
	assert.Empty(t, cfg.Settlement.Holidays)
}

func TestLoad_FromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvStore, "book.db")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvLogPretty, "true")
	t.Setenv(EnvCommissionRate, "0.0003")
	t.Setenv(EnvMinCommission, "0")
	t.Setenv(EnvTransferMarkets, "sh")
	t.Setenv(EnvTransferSides, "SELL")
	t.Setenv(EnvSettlementLag, "2")
	t.Setenv(EnvHolidays, "sse, 2027-01-01")
	t.Setenv(EnvEnforceSettlement, "1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "book.db", cfg.StorePath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.LogPretty)
	assert.True(t, cfg.EnforceSettlement)
	assert.True(t, decimal.RequireFromString("0.0003").Equal(cfg.Fees.CommissionRate))
	assert.True(t, cfg.Fees.MinCommission.IsZero())
	assert.Equal(t, []costbasis.Market{costbasis.Shanghai}, cfg.Fees.TransferFee.Markets)
	assert.Equal(t, costbasis.SellOnly, cfg.Fees.TransferFee.Sides)
	assert.Equal(t, 2, cfg.Settlement.Lag)
	assert.Len(t, cfg.Settlement.Holidays, len(costbasis.SSEClosures2025_2026)+1)
	assert.Contains(t, cfg.Settlement.Holidays, date.New(2027, 1, 1))
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"malformed rate", EnvStampDutyRate, "ten"},
		{"negative rate", EnvCommissionRate, "-0.1"},
		{"malformed lag", EnvSettlementLag, "one"},
		{"negative lag", EnvSettlementLag, "-1"},
		{"bad holiday", EnvHolidays, "2025-13-45,xmas"},
		{"unknown side", EnvTransferSides, "sometimes"},
		{"unknown market", EnvTransferMarkets, "SH,HK"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tc.key, tc.value)

			_, err := Load()
			var cfgErr *costbasis.ConfigurationError
			require.True(t, errors.As(err, &cfgErr), "got %v", err)
		})
	}
}

func TestLoad_DotenvFile(t *testing.T) {
	clearEnv(t)
	file := filepath.Join(t.TempDir(), "lotctl.env")
	require.NoError(t, os.WriteFile(file, []byte("COSTBASIS_STORE=from-file.db\nCOSTBASIS_SETTLEMENT_LAG=0\nCOSTBASIS_LOG_LEVEL=warn\n"), 0o644))
	// the environment wins over the file.
	os.Setenv(EnvLogLevel, "error")

	cfg, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, "from-file.db", cfg.StorePath)
	assert.Equal(t, 0, cfg.Settlement.Lag)
	assert.Equal(t, "error", cfg.LogLevel)
}

func TestLoad_MissingDotenvFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}
