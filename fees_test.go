package costbasis

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// CNY is a helper for tests to create yuan money from a const.
func CNY(v float64) Money { return M(v, "CNY") }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func defaultFees(t *testing.T) *FeeSchedule {
	t.Helper()
	fees, err := NewFeeSchedule(DefaultFeeConfig())
	require.NoError(t, err)
	return fees
}

func TestFeeSchedule_Fees(t *testing.T) {
	fees := defaultFees(t)

	testCases := []struct {
		name        string
		amount      Money
		side        Side
		market      Market
		commission  string
		stampDuty   string
		transferFee string
		total       string
	}{
		{
			name:        "buy under the minimum commission",
			amount:      CNY(1859),
			side:        Buy,
			market:      Shanghai,
			commission:  "5",
			stampDuty:   "0",
			transferFee: "0.03718",
			total:       "5.03718",
		},
		{
			name:        "sell pays stamp duty",
			amount:      CNY(2008),
			side:        Sell,
			market:      Shanghai,
			commission:  "5",
			stampDuty:   "2.008",
			transferFee: "0.04016",
			total:       "7.04816",
		},
		{
			name:        "large buy over the minimum commission",
			amount:      CNY(100000),
			side:        Buy,
			market:      Shenzhen,
			commission:  "25",
			stampDuty:   "0",
			transferFee: "2",
			total:       "27",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := fees.Fees(tc.amount, tc.side, tc.market)
			assert.True(t, f.Commission.Decimal().Equal(dec(tc.commission)), "commission %s", f.Commission.Decimal())
			assert.True(t, f.StampDuty.Decimal().Equal(dec(tc.stampDuty)), "stamp duty %s", f.StampDuty.Decimal())
			assert.True(t, f.TransferFee.Decimal().Equal(dec(tc.transferFee)), "transfer fee %s", f.TransferFee.Decimal())
			assert.True(t, f.Total.Decimal().Equal(dec(tc.total)), "total %s", f.Total.Decimal())
			assert.Equal(t, "CNY", f.Total.Currency())
		})
	}
}

func TestFeeSchedule_TransferFeePolicy(t *testing.T) {
	cfg := DefaultFeeConfig()
	cfg.TransferFee = TransferFeePolicy{Markets: []Market{Shanghai}, Sides: SellOnly}
	fees, err := NewFeeSchedule(cfg)
	require.NoError(t, err)

	testCases := []struct {
		side    Side
		market  Market
		charged bool
	}{
		{Sell, Shanghai, true},
		{Buy, Shanghai, false},
		{Sell, Shenzhen, false},
		{Buy, Beijing, false},
	}
	for _, tc := range testCases {
		f := fees.Fees(CNY(10000), tc.side, tc.market)
		assert.Equal(t, tc.charged, f.TransferFee.IsPositive(), "%s on %s", tc.side, tc.market)
	}
}

func TestFees_Rounded(t *testing.T) {
	f := defaultFees(t).Fees(CNY(2008), Sell, Shanghai).Rounded()
	assert.Equal(t, "7.05", f.Total.Decimal().StringFixed(2))
	assert.Equal(t, "0.04", f.TransferFee.Decimal().StringFixed(2))
}

func TestFees_Share(t *testing.T) {
	f := defaultFees(t).Fees(CNY(2008), Sell, Shanghai)
	whole := f.share(Q(200), Q(200))
	assert.True(t, whole.Total.Equal(f.Total))

	half := f.share(Q(100), Q(200))
	assert.True(t, half.Total.Add(half.Total).Equal(f.Total))
}

func TestFeeConfig_Validate(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(*FeeConfig)
		field  string
	}{
		{"missing currency", func(c *FeeConfig) { c.Currency = "" }, "currency"},
		{"negative commission", func(c *FeeConfig) { c.CommissionRate = dec("-0.1") }, "commission rate"},
		{"negative minimum", func(c *FeeConfig) { c.MinCommission = dec("-5") }, "minimum commission"},
		{"negative stamp duty", func(c *FeeConfig) { c.StampDutyRate = dec("-0.001") }, "stamp duty rate"},
		{"negative transfer fee", func(c *FeeConfig) { c.TransferFeeRate = dec("-0.00002") }, "transfer fee rate"},
		{"unknown side scope", func(c *FeeConfig) { c.TransferFee.Sides = "never" }, "transfer fee sides"},
		{"unknown market", func(c *FeeConfig) { c.TransferFee.Markets = []Market{"HK"} }, "transfer fee markets"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultFeeConfig()
			tc.modify(&cfg)
			_, err := NewFeeSchedule(cfg)
			var cerr *ConfigurationError
			require.True(t, errors.As(err, &cerr), "got %v", err)
			assert.Equal(t, tc.field, cerr.Field)
		})
	}
	assert.NoError(t, DefaultFeeConfig().Validate())
}

func TestMarketOf(t *testing.T) {
	testCases := []struct {
		code string
		want Market
	}{
		{"600519", Shanghai},
		{"688981", Shanghai},
		{"510300", Shanghai},
		{"000001", Shenzhen},
		{"300750", Shenzhen},
		{"sz000001", Shenzhen},
		{"SH600519", Shanghai},
		{"600519.SH", Shanghai},
		{"430047", Beijing},
		{"830799", Beijing},
		{"", ""},
		{"AAPL", ""},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, MarketOf(tc.code), tc.code)
	}
}
