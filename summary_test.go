package costbasis

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/PaesslerAG/jsonpath"
	"github.com/etnz/costbasis/date"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustSummary(t *testing.T, l *LotLedger, on string, price Money) PositionSummary {
	t.Helper()
	s, err := BuildSummary(l, date.MustParse(on), price)
	require.NoError(t, err)
	return s
}

func TestBuildSummary(t *testing.T) {
	l := newTestLedger(t)
	mustBuy(t, l, "2025-06-03", 100, "6.95")

	s := mustSummary(t, l, "2025-06-03", CNY(6.95))
	assert.Equal(t, "alice", s.Holder)
	assert.Equal(t, "600519", s.Instrument)
	assert.True(t, s.Quantity.Equal(Q(100)))
	assert.True(t, s.SellableQuantity.IsZero())
	assert.True(t, s.UnsellableQuantity.Equal(Q(100)))
	assert.Equal(t, 1, s.OpenLots)
	assert.True(t, s.TotalCost.Decimal().Equal(dec("700.0139")))
	assert.True(t, s.AverageCost.Decimal().Equal(dec("7.000139")))
	assert.True(t, s.RemainingFees.Decimal().Equal(dec("5.0139")))
	assert.True(t, s.MarketValue.Decimal().Equal(dec("695")))
	assert.True(t, s.UnrealizedPL.Decimal().Equal(dec("-5.0139")), "unrealized %s", s.UnrealizedPL.Decimal())
	assert.True(t, s.RealizedPL.IsZero())
	assert.InDelta(t, -0.7162, float64(s.UnrealizedRate), 0.001)

	r := s.Rounded()
	assert.Equal(t, "-5.01", r.UnrealizedPL.Decimal().StringFixed(2))
	assert.Equal(t, "7.00", r.AverageCost.Decimal().StringFixed(2))

	next := mustSummary(t, l, "2025-06-04", CNY(6.95))
	assert.True(t, next.SellableQuantity.Equal(Q(100)))
	assert.True(t, next.UnsellableQuantity.IsZero())
}

func TestBuildSummary_Closed(t *testing.T) {
	l := newTestLedger(t)
	mustBuy(t, l, "2025-06-03", 200, "9.295")
	_, err := l.ApplySell(trade(Sell, "2025-06-17", 200, "10.04"))
	require.NoError(t, err)

	s := mustSummary(t, l, "2025-06-17", CNY(11))
	assert.True(t, s.Quantity.IsZero())
	assert.Equal(t, 0, s.OpenLots)
	assert.True(t, s.AverageCost.IsZero())
	assert.True(t, s.TotalCost.IsZero())
	assert.True(t, s.MarketValue.IsZero())
	assert.True(t, s.UnrealizedPL.IsZero())
	assert.Zero(t, s.UnrealizedRate)
	assert.True(t, s.RealizedPL.Decimal().Equal(dec("136.91466")))
}

func TestBuildSummary_AsOf(t *testing.T) {
	l := newTestLedger(t)
	mustBuy(t, l, "2025-06-03", 100, "10")
	mustBuy(t, l, "2025-06-10", 100, "12")

	s := mustSummary(t, l, "2025-06-05", CNY(11))
	assert.True(t, s.Quantity.Equal(Q(100)))
	assert.Equal(t, 1, s.OpenLots)
	assert.True(t, s.AverageCost.Equal(l.WeightedAverageCost(date.MustParse("2025-06-05"))))

	empty := mustSummary(t, l, "2025-06-02", CNY(11))
	assert.Equal(t, 0, empty.OpenLots)
	assert.True(t, empty.Quantity.IsZero())
}

func TestBuildSummary_PriceCurrency(t *testing.T) {
	l := newTestLedger(t)
	mustBuy(t, l, "2025-06-03", 100, "10")

	testCases := []struct {
		name      string
		price     Money
		wantField string
	}{
		{"fee currency", CNY(11), ""},
		{"no currency", M(11, ""), ""},
		{"foreign currency", M(11, "USD"), "price"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := BuildSummary(l, date.MustParse("2025-06-10"), tc.price)
			if tc.wantField == "" {
				require.NoError(t, err)
				assert.Equal(t, "CNY", s.Price.Currency())
				assert.Equal(t, "CNY", s.MarketValue.Currency())
				assert.True(t, s.MarketValue.Decimal().Equal(dec("1100")))
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tc.wantField, verr.Field)
		})
	}
}

func TestLotLedger_CostSummary(t *testing.T) {
	l := newTestLedger(t)
	mustBuy(t, l, "2025-06-03", 3, "10")
	mustBuy(t, l, "2025-06-04", 7, "10.01")

	s := l.CostSummary(date.MustParse("2025-06-10"))
	assert.Equal(t, 2, s.OpenLots)
	assert.True(t, s.Price.Equal(s.AverageCost))
	assert.True(t, s.MarketValue.Equal(s.TotalCost))
	assert.True(t, s.UnrealizedPL.IsZero(), "unrealized %s", s.UnrealizedPL.Decimal())
	assert.Zero(t, s.UnrealizedRate)

	// only the first lot is held on 2025-06-03.
	first := l.CostSummary(date.MustParse("2025-06-03"))
	assert.True(t, first.Quantity.Equal(Q(3)))
	assert.True(t, first.Price.Equal(l.WeightedAverageCost(date.MustParse("2025-06-03"))))

	none := l.CostSummary(date.MustParse("2025-06-02"))
	assert.Equal(t, 0, none.OpenLots)
	assert.True(t, none.Price.IsZero())
}

func TestPositionSummary_MarshalJSON(t *testing.T) {
	l := newTestLedger(t)
	mustBuy(t, l, "2025-06-03", 100, "6.95")
	s := mustSummary(t, l, "2025-06-03", CNY(6.95))

	data, err := json.Marshal(s)
	require.NoError(t, err)
	var v any
	require.NoError(t, json.Unmarshal(data, &v))

	testCases := []struct {
		path string
		want any
	}{
		{"$.holder", "alice"},
		{"$.asOf", "2025-06-03"},
		{"$.quantity", 100.0},
		{"$.openLots", 1.0},
		{"$.unrealizedPL.amount", -5.0139},
		{"$.unrealizedPL.currency", "CNY"},
	}
	for _, tc := range testCases {
		got, err := jsonpath.Get(tc.path, v)
		require.NoError(t, err, tc.path)
		assert.Equal(t, tc.want, got, tc.path)
	}
}
