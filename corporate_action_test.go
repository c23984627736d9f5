package costbasis

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/etnz/costbasis/date"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorporateAction_Validate(t *testing.T) {
	on := date.MustParse("2025-06-20")
	testCases := []struct {
		name   string
		action CorporateAction
		field  string
	}{
		{"valid dividend", CorporateAction{Instrument: "600519", Date: on, Kind: Dividend, Amount: CNY(0.5)}, ""},
		{"valid bonus", CorporateAction{Instrument: "600519", Date: on, Kind: Bonus, Ratio: dec("3")}, ""},
		{"valid rights", CorporateAction{Instrument: "600519", Date: on, Kind: Rights, Ratio: dec("2"), Price: CNY(8)}, ""},
		{"missing instrument", CorporateAction{Date: on, Kind: Dividend, Amount: CNY(0.5)}, "instrument"},
		{"missing date", CorporateAction{Instrument: "600519", Kind: Dividend, Amount: CNY(0.5)}, "date"},
		{"zero dividend", CorporateAction{Instrument: "600519", Date: on, Kind: Dividend}, "amount"},
		{"negative bonus", CorporateAction{Instrument: "600519", Date: on, Kind: Bonus, Ratio: dec("-1")}, "ratio"},
		{"rights without price", CorporateAction{Instrument: "600519", Date: on, Kind: Rights, Ratio: dec("2")}, "price"},
		{"unknown kind", CorporateAction{Instrument: "600519", Date: on, Kind: "split", Ratio: dec("2")}, "kind"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.action.Validate()
			if tc.field == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestParseActionKind(t *testing.T) {
	k, err := ParseActionKind("Bonus")
	require.NoError(t, err)
	assert.Equal(t, Bonus, k)

	_, err = ParseActionKind("split")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestCorporateActionProcessor_Dividend(t *testing.T) {
	l := newTestLedger(t)
	lot := mustBuy(t, l, "2025-06-03", 100, "10")

	out, warnings, err := CorporateActionProcessor{}.Apply(CorporateAction{
		Instrument: "600519",
		Date:       date.MustParse("2025-06-20"),
		Kind:       Dividend,
		Amount:     CNY(0.5),
	}, []CostLot{lot})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, out, 1)
	assert.True(t, out[0].RemainingQuantity.Equal(lot.RemainingQuantity))
	assert.True(t, out[0].Cost.Equal(lot.Cost.Sub(CNY(50))))
	assert.True(t, out[0].UnitPrice.Equal(CNY(9.5)))

	// the input is left untouched.
	assert.True(t, lot.Cost.Decimal().Equal(dec("1005.02")))
}

func TestCorporateActionProcessor_NegativeCost(t *testing.T) {
	l := newTestLedger(t)
	lot := mustBuy(t, l, "2025-06-03", 100, "1")

	out, warnings, err := CorporateActionProcessor{}.Apply(CorporateAction{
		Instrument: "600519",
		Date:       date.MustParse("2025-06-20"),
		Kind:       Dividend,
		Amount:     CNY(2),
	}, []CostLot{lot})
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], lot.ID)
	assert.True(t, out[0].Cost.IsNegative())
}

func TestCorporateActionProcessor_Bonus(t *testing.T) {
	l := newTestLedger(t)
	a := mustBuy(t, l, "2025-06-03", 100, "10")
	b := mustBuy(t, l, "2025-06-04", 200, "12.34")
	before := lots{a, b}

	out, _, err := CorporateActionProcessor{}.Apply(CorporateAction{
		Instrument: "600519",
		Date:       date.MustParse("2025-06-20"),
		Kind:       Bonus,
		Ratio:      dec("3"),
	}, before)
	require.NoError(t, err)
	after := lots(out)

	assert.True(t, after.quantity(nil).Equal(Q(390)))
	assert.True(t, after[0].RemainingQuantity.Equal(Q(130)))
	assert.True(t, after[0].OriginalQuantity.Equal(Q(130)))
	// total cost is conserved, the unit cost drops by the factor.
	diff := after.cost().Sub(before.cost()).AsFloat()
	assert.InDelta(t, 0, diff, 0.01)
	assert.True(t, after[0].Cost.Equal(a.Cost))
	assert.InDelta(t, 10/1.3, after[0].UnitPrice.AsFloat(), 1e-9)
}

func TestCorporateActionProcessor_Rights(t *testing.T) {
	l := newTestLedger(t)
	lot := mustBuy(t, l, "2025-06-03", 100, "10")

	out, _, err := CorporateActionProcessor{}.Apply(CorporateAction{
		Instrument: "600519",
		Date:       date.MustParse("2025-06-20"),
		Kind:       Rights,
		Ratio:      dec("2"),
		Price:      CNY(8),
	}, []CostLot{lot})
	require.NoError(t, err)
	assert.True(t, out[0].RemainingQuantity.Equal(Q(120)))
	// 20 new shares at 8.
	assert.True(t, out[0].Cost.Equal(lot.Cost.Add(CNY(160))))
	assert.InDelta(t, (1000.0+160)/120, out[0].UnitPrice.AsFloat(), 1e-9)
}

func TestCorporateActionProcessor_RetiredLots(t *testing.T) {
	l := newTestLedger(t)
	mustBuy(t, l, "2025-06-03", 100, "10")
	_, err := l.ApplySell(trade(Sell, "2025-06-10", 100, "11"))
	require.NoError(t, err)
	retired := l.Lots()[0]

	out, _, err := CorporateActionProcessor{}.Apply(CorporateAction{
		Instrument: "600519",
		Date:       date.MustParse("2025-06-20"),
		Kind:       Bonus,
		Ratio:      dec("10"),
	}, []CostLot{retired})
	require.NoError(t, err)
	assert.Equal(t, retired, out[0])
}

func TestCorporateActionProcessor_WrongInstrument(t *testing.T) {
	l := newTestLedger(t)
	lot := mustBuy(t, l, "2025-06-03", 100, "10")
	_, _, err := CorporateActionProcessor{}.Apply(CorporateAction{
		Instrument: "000001",
		Date:       date.MustParse("2025-06-20"),
		Kind:       Bonus,
		Ratio:      dec("3"),
	}, []CostLot{lot})
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestLotLedger_ApplyCorporateAction(t *testing.T) {
	l := newTestLedger(t)
	mustBuy(t, l, "2025-06-03", 100, "10")
	late := mustBuy(t, l, "2025-06-25", 100, "12")

	adj, err := l.ApplyCorporateAction(CorporateAction{
		Instrument: "600519",
		Date:       date.MustParse("2025-06-20"),
		Kind:       Bonus,
		Ratio:      dec("5"),
	})
	require.NoError(t, err)
	assert.False(t, adj.Empty())
	assert.Len(t, adj.Lots, 1)
	assert.True(t, adj.QuantityBefore.Equal(Q(100)))
	assert.True(t, adj.QuantityAfter.Equal(Q(150)))
	assert.True(t, adj.CostBefore.Equal(adj.CostAfter))
	assert.Contains(t, adj.Description, "100 shares")

	assert.True(t, l.OpenQuantity().Equal(Q(250)))
	for _, lot := range l.Lots() {
		if lot.ID == late.ID {
			assert.Equal(t, late, lot, "lots bought after the action are not entitled")
		}
	}
	require.Len(t, l.Adjustments(), 1)
}

func TestLotLedger_ApplyCorporateAction_NotEntitled(t *testing.T) {
	l := newTestLedger(t)
	mustBuy(t, l, "2025-06-25", 100, "10")

	adj, err := l.ApplyCorporateAction(CorporateAction{
		Instrument: "600519",
		Date:       date.MustParse("2025-06-20"),
		Kind:       Dividend,
		Amount:     CNY(1),
	})
	require.NoError(t, err)
	assert.True(t, adj.Empty())
	assert.Empty(t, l.Adjustments())
}

func TestLotLedger_ApplyCorporateAction_Currency(t *testing.T) {
	on := date.MustParse("2025-06-20")
	testCases := []struct {
		name      string
		action    CorporateAction
		wantField string
	}{
		{"dividend in fee currency", CorporateAction{Instrument: "600519", Date: on, Kind: Dividend, Amount: CNY(0.5)}, ""},
		{"dividend without currency", CorporateAction{Instrument: "600519", Date: on, Kind: Dividend, Amount: M(0.5, "")}, ""},
		{"foreign dividend", CorporateAction{Instrument: "600519", Date: on, Kind: Dividend, Amount: M(0.5, "USD")}, "amount"},
		{"rights without currency", CorporateAction{Instrument: "600519", Date: on, Kind: Rights, Ratio: dec("2"), Price: M(8, "")}, ""},
		{"foreign rights price", CorporateAction{Instrument: "600519", Date: on, Kind: Rights, Ratio: dec("2"), Price: M(8, "HKD")}, "price"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			l := newTestLedger(t)
			mustBuy(t, l, "2025-06-03", 100, "10")
			before := l.Lots()

			adj, err := l.ApplyCorporateAction(tc.action)
			if tc.wantField != "" {
				var verr *ValidationError
				require.True(t, errors.As(err, &verr), "got %v", err)
				assert.Equal(t, tc.wantField, verr.Field)
				assert.Equal(t, before, l.Lots())
				assert.Empty(t, l.Adjustments())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "CNY", adj.CostAfter.Currency())
			for _, lot := range l.Lots() {
				assert.Equal(t, "CNY", lot.Cost.Currency())
				assert.Equal(t, "CNY", lot.UnitPrice.Currency())
			}
		})
	}
}

func TestLotLedger_TradesAfterCorporateAction(t *testing.T) {
	l := newTestLedger(t)
	mustBuy(t, l, "2025-06-03", 100, "10")
	_, err := l.ApplyCorporateAction(CorporateAction{
		Instrument: "600519",
		Date:       date.MustParse("2025-06-20"),
		Kind:       Bonus,
		Ratio:      dec("5"),
	})
	require.NoError(t, err)

	testCases := []struct {
		name    string
		op      TradeOperation
		wantErr bool
	}{
		{"buy before the action", trade(Buy, "2025-06-19", 100, "10"), true},
		{"buy on the action date", trade(Buy, "2025-06-20", 100, "10"), true},
		{"sell before the action", trade(Sell, "2025-06-10", 100, "11"), true},
		{"sell on the action date", trade(Sell, "2025-06-20", 100, "11"), true},
		{"buy after the action", trade(Buy, "2025-06-23", 100, "8"), false},
		{"sell after the action", trade(Sell, "2025-06-24", 150, "9"), false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var err error
			if tc.op.Side == Buy {
				_, err = l.ApplyBuy(tc.op)
			} else {
				_, err = l.ApplySell(tc.op)
			}
			if !tc.wantErr {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, "date", verr.Field)
		})
	}
	// 150 bonus adjusted shares sold, the 2025-06-23 lot is left.
	require.Len(t, l.OpenLots(), 1)
	assert.True(t, l.OpenQuantity().Equal(Q(100)))
	assert.Equal(t, date.MustParse("2025-06-23"), l.OpenLots()[0].AcquiredOn)
}

func TestLotLedger_TradesAfterUnentitledAction(t *testing.T) {
	l := newTestLedger(t)
	mustBuy(t, l, "2025-06-25", 100, "10")
	adj, err := l.ApplyCorporateAction(CorporateAction{
		Instrument: "600519",
		Date:       date.MustParse("2025-06-20"),
		Kind:       Bonus,
		Ratio:      dec("5"),
	})
	require.NoError(t, err)
	require.True(t, adj.Empty())

	_, err = l.ApplyBuy(trade(Buy, "2025-06-18", 100, "10"))
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "got %v", err)
	assert.True(t, l.OpenQuantity().Equal(Q(100)))
}

func TestCorporateAction_JSON(t *testing.T) {
	a := CorporateAction{
		Instrument:  "600519",
		Date:        date.MustParse("2025-06-20"),
		Kind:        Rights,
		Ratio:       dec("2"),
		Price:       CNY(8),
		Description: "rights issue",
	}
	data, err := json.Marshal(a)
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"rights","date":"2025-06-20","instrument":"600519","ratio":2,"price":{"amount":8,"currency":"CNY"},"description":"rights issue"}`, string(data))

	var back CorporateAction
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, a.String(), back.String())
	assert.True(t, back.Ratio.Equal(a.Ratio))
	assert.True(t, back.Price.Equal(a.Price))
}
