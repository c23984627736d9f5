package costbasis

import (
	"github.com/etnz/costbasis/date"
)

// PositionSummary is the view of one position at a given date and price.
// It is computed on demand and never stored.
type PositionSummary struct {
	Holder     string
	Instrument string
	AsOf       date.Date
	Price      Money

	Quantity           Quantity
	SellableQuantity   Quantity
	UnsellableQuantity Quantity
	OpenLots           int

	AverageCost   Money // per share, fees included
	TotalCost     Money
	RemainingFees Money // buy fees still attached to open lots

	MarketValue    Money
	RealizedPL     Money
	UnrealizedPL   Money
	UnrealizedRate Percent // unrealized P&L over total cost
}

// BuildSummary summarizes the lots of ledger held on asOf, valued at price.
// A price without currency is taken in the fee currency, any other currency
// is rejected.
//
// All figures come from a single snapshot of the ledger. When nothing is
// held every open figure is zero, realized P&L is still reported.
func BuildSummary(ledger *LotLedger, asOf date.Date, price Money) (PositionSummary, error) {
	switch currency := ledger.fees.Currency(); price.Currency() {
	case "":
		price = M(price.Decimal(), currency)
	case currency:
	default:
		return PositionSummary{}, invalid("price", "currency %s does not match fee currency %s", price.Currency(), currency)
	}
	return ledger.summarize(ledger.snapshot(), asOf, &price), nil
}

// CostSummary summarizes the lots of ledger held on asOf, valued at their
// average cost.
func (l *LotLedger) CostSummary(asOf date.Date) PositionSummary {
	return l.summarize(l.snapshot(), asOf, nil)
}

// summarize builds the summary of st. A nil price values the position at
// its average cost, leaving no unrealized P&L.
func (l *LotLedger) summarize(st ledgerState, asOf date.Date, price *Money) PositionSummary {
	currency := l.fees.Currency()
	zero := M(0, currency)

	s := PositionSummary{
		Holder:        l.key.Holder,
		Instrument:    l.key.Instrument,
		AsOf:          asOf,
		Price:         zero,
		AverageCost:   zero,
		TotalCost:     zero,
		RemainingFees: zero,
		MarketValue:   zero,
		UnrealizedPL:  zero,
		RealizedPL:    realized(st.sells, currency),
	}

	for _, lot := range st.lots {
		if !lot.Open() || lot.AcquiredOn.After(asOf) {
			continue
		}
		s.OpenLots++
		s.Quantity = s.Quantity.Add(lot.RemainingQuantity)
		if l.cal.Sellable(asOf, lot.SettlesOn) {
			s.SellableQuantity = s.SellableQuantity.Add(lot.RemainingQuantity)
		} else {
			s.UnsellableQuantity = s.UnsellableQuantity.Add(lot.RemainingQuantity)
		}
		s.TotalCost = s.TotalCost.Add(lot.Cost)
		s.RemainingFees = s.RemainingFees.Add(lot.RemainingFees())
	}
	if price != nil {
		s.Price = *price
	}
	if s.OpenLots == 0 {
		return s
	}

	s.AverageCost = s.TotalCost.Div(s.Quantity)
	if price == nil {
		s.Price = s.AverageCost
		s.MarketValue = s.TotalCost
		return s
	}
	s.MarketValue = s.Price.Mul(s.Quantity)
	// same as (price - average) * quantity, without rounding the average.
	s.UnrealizedPL = s.MarketValue.Sub(s.TotalCost)
	s.UnrealizedRate = percentOf(s.UnrealizedPL, s.TotalCost)
	return s
}

// Rounded returns the summary with every amount rounded to the currency
// minor unit, for reporting.
func (s PositionSummary) Rounded() PositionSummary {
	s.AverageCost = s.AverageCost.Round()
	s.TotalCost = s.TotalCost.Round()
	s.RemainingFees = s.RemainingFees.Round()
	s.MarketValue = s.MarketValue.Round()
	s.RealizedPL = s.RealizedPL.Round()
	s.UnrealizedPL = s.UnrealizedPL.Round()
	return s
}

// MarshalJSON implements the json.Marshaler interface for PositionSummary.
func (s PositionSummary) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("holder", s.Holder)
	w.Append("instrument", s.Instrument)
	w.Append("asOf", s.AsOf)
	w.Append("price", s.Price)
	w.Append("quantity", s.Quantity)
	w.Append("sellableQuantity", s.SellableQuantity)
	w.Append("unsellableQuantity", s.UnsellableQuantity)
	w.Append("openLots", s.OpenLots)
	w.Append("averageCost", s.AverageCost)
	w.Append("totalCost", s.TotalCost)
	w.Append("remainingFees", s.RemainingFees)
	w.Append("marketValue", s.MarketValue)
	w.Append("realizedPL", s.RealizedPL)
	w.Append("unrealizedPL", s.UnrealizedPL)
	w.Append("unrealizedRate", float64(s.UnrealizedRate))
	return w.MarshalJSON()
}
