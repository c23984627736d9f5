package costbasis

import (
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// Market is the exchange an instrument is listed on.
type Market string

const (
	Shanghai Market = "SH"
	Shenzhen Market = "SZ"
	Beijing  Market = "BJ"
)

// MarketOf guesses the listing exchange of an A-share code such as "600519",
// "sz000001" or "430047". It returns "" when the code is not recognized.
func MarketOf(code string) Market {
	c := strings.ToUpper(strings.TrimSpace(code))
	for _, m := range []Market{Shanghai, Shenzhen, Beijing} {
		if strings.HasPrefix(c, string(m)) {
			return m
		}
		if strings.HasSuffix(c, "."+string(m)) {
			return m
		}
	}
	c = strings.TrimLeft(c, "SHZBJ.")
	if c == "" {
		return ""
	}
	switch c[0] {
	case '5', '6', '9':
		return Shanghai
	case '0', '1', '2', '3':
		return Shenzhen
	case '4', '8':
		return Beijing
	}
	return ""
}

// SideScope selects which trade sides a fee applies to.
type SideScope string

const (
	BothSides SideScope = "both"
	BuyOnly   SideScope = "buy"
	SellOnly  SideScope = "sell"
)

func (s SideScope) covers(side Side) bool {
	switch s {
	case BothSides, "":
		return true
	case BuyOnly:
		return side == Buy
	case SellOnly:
		return side == Sell
	}
	return false
}

// TransferFeePolicy scopes the transfer fee. Brokers disagree on whether it
// is charged on every exchange or only on Shanghai listings, and on one side
// or both, so the integrator decides.
type TransferFeePolicy struct {
	Markets []Market  // empty means every market
	Sides   SideScope // "" means BothSides
}

func (p TransferFeePolicy) applies(side Side, market Market) bool {
	if !p.Sides.covers(side) {
		return false
	}
	return len(p.Markets) == 0 || slices.Contains(p.Markets, market)
}

// FeeConfig holds the brokerage rates. Rates are ratios (0.00025 for 2.5 bps).
type FeeConfig struct {
	Currency        string
	CommissionRate  decimal.Decimal
	MinCommission   decimal.Decimal
	StampDutyRate   decimal.Decimal
	TransferFeeRate decimal.Decimal
	TransferFee     TransferFeePolicy
}

// DefaultFeeConfig returns the A-share rates used by most retail brokers:
// 2.5 bps commission with a 5 CNY minimum, 0.1% stamp duty on sells and a
// 0.2 bps transfer fee on both sides of every market.
func DefaultFeeConfig() FeeConfig {
	return FeeConfig{
		Currency:        "CNY",
		CommissionRate:  decimal.RequireFromString("0.00025"),
		MinCommission:   decimal.NewFromInt(5),
		StampDutyRate:   decimal.RequireFromString("0.001"),
		TransferFeeRate: decimal.RequireFromString("0.00002"),
		TransferFee:     TransferFeePolicy{Sides: BothSides},
	}
}

// Validate reports the first invalid setting as a ConfigurationError.
func (c FeeConfig) Validate() error {
	if c.Currency == "" {
		return &ConfigurationError{Field: "currency", Reason: "is missing"}
	}
	rates := []struct {
		name string
		rate decimal.Decimal
	}{
		{"commission rate", c.CommissionRate},
		{"minimum commission", c.MinCommission},
		{"stamp duty rate", c.StampDutyRate},
		{"transfer fee rate", c.TransferFeeRate},
	}
	for _, r := range rates {
		if r.rate.IsNegative() {
			return &ConfigurationError{Field: r.name, Reason: fmt.Sprintf("must not be negative, got %s", r.rate)}
		}
	}
	switch c.TransferFee.Sides {
	case "", BothSides, BuyOnly, SellOnly:
	default:
		return &ConfigurationError{Field: "transfer fee sides", Reason: fmt.Sprintf("unknown scope %q", c.TransferFee.Sides)}
	}
	for _, m := range c.TransferFee.Markets {
		switch m {
		case Shanghai, Shenzhen, Beijing:
		default:
			return &ConfigurationError{Field: "transfer fee markets", Reason: fmt.Sprintf("unknown market %q", m)}
		}
	}
	return nil
}

// Fees is the cost of one trade, at full precision.
type Fees struct {
	Commission  Money `json:"commission"`
	StampDuty   Money `json:"stampDuty"`
	TransferFee Money `json:"transferFee"`
	Total       Money `json:"total"`
}

// Rounded returns the fees rounded to the currency minor unit. The total is
// rounded from the exact sum, not summed from rounded parts.
func (f Fees) Rounded() Fees {
	return Fees{
		Commission:  f.Commission.Round(),
		StampDuty:   f.StampDuty.Round(),
		TransferFee: f.TransferFee.Round(),
		Total:       f.Total.Round(),
	}
}

// share returns the fees prorated to part/whole.
func (f Fees) share(part, whole Quantity) Fees {
	if part.Equal(whole) {
		return f
	}
	return Fees{
		Commission:  f.Commission.Mul(part).Div(whole),
		StampDuty:   f.StampDuty.Mul(part).Div(whole),
		TransferFee: f.TransferFee.Mul(part).Div(whole),
		Total:       f.Total.Mul(part).Div(whole),
	}
}

// FeeSchedule computes trade fees. It is stateless and safe for concurrent use.
type FeeSchedule struct {
	cfg FeeConfig
}

// NewFeeSchedule validates cfg and returns a schedule.
func NewFeeSchedule(cfg FeeConfig) (*FeeSchedule, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &FeeSchedule{cfg: cfg}, nil
}

// Currency returns the currency fees are charged in.
func (s *FeeSchedule) Currency() string { return s.cfg.Currency }

// Config returns a copy of the configuration.
func (s *FeeSchedule) Config() FeeConfig { return s.cfg }

// Fees computes the fees of a trade of the given gross amount.
// Amounts are assumed positive, the ledger rejects anything else beforehand.
func (s *FeeSchedule) Fees(amount Money, side Side, market Market) Fees {
	zero := M(0, amount.Currency())
	f := Fees{StampDuty: zero, TransferFee: zero}

	f.Commission = MaxMoney(amount.Rate(s.cfg.CommissionRate), M(s.cfg.MinCommission, amount.Currency()))
	if side == Sell {
		f.StampDuty = amount.Rate(s.cfg.StampDutyRate)
	}
	if s.cfg.TransferFee.applies(side, market) {
		f.TransferFee = amount.Rate(s.cfg.TransferFeeRate)
	}
	f.Total = f.Commission.Add(f.StampDuty).Add(f.TransferFee)
	return f
}
