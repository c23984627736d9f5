package costbasis

import (
	"slices"

	"github.com/etnz/costbasis/date"
)

// CostLot is a batch of shares acquired by one buy.
//
// Cost is the cost basis of the remaining shares, buy fees included. It is
// reduced proportionally on partial sells and rewritten by corporate actions.
// A lot whose remaining quantity reaches zero is retired but kept for audit.
type CostLot struct {
	ID                string    `json:"id"`
	Holder            string    `json:"holder"`
	Instrument        string    `json:"instrument"`
	Seq               int64     `json:"seq"`
	AcquiredOn        date.Date `json:"acquiredOn"`
	SettlesOn         date.Date `json:"settlesOn"`
	OriginalQuantity  Quantity  `json:"originalQuantity"`
	RemainingQuantity Quantity  `json:"remainingQuantity"`
	UnitPrice         Money     `json:"unitPrice"`
	Fees              Fees      `json:"fees"`
	Cost              Money     `json:"cost"`
}

// Key returns the (holder, instrument) key owning the lot.
func (l CostLot) Key() Key { return Key{Holder: l.Holder, Instrument: l.Instrument} }

// Open reports whether the lot still holds shares.
func (l CostLot) Open() bool { return l.RemainingQuantity.IsPositive() }

// Sellable reports whether the lot has settled on asOf.
func (l CostLot) Sellable(asOf date.Date) bool { return !asOf.Before(l.SettlesOn) }

// CostPerShare is the unit cost of the remaining shares, fees included.
func (l CostLot) CostPerShare() Money {
	if !l.Open() {
		return M(0, l.Cost.Currency())
	}
	return l.Cost.Div(l.RemainingQuantity)
}

// RemainingFees is the part of the buy fees attached to the remaining shares.
func (l CostLot) RemainingFees() Money {
	if !l.Open() || !l.OriginalQuantity.IsPositive() {
		return M(0, l.Fees.Total.Currency())
	}
	return l.Fees.Total.Mul(l.RemainingQuantity).Div(l.OriginalQuantity)
}

// SellMatch is the part of a sell attributed to one lot.
type SellMatch struct {
	LotID      string    `json:"lotId"`
	AcquiredOn date.Date `json:"acquiredOn"`
	Quantity   Quantity  `json:"quantity"`
	SellFee    Money     `json:"sellFee"`    // prorated share of the sell fees
	CostBasis  Money     `json:"costBasis"`  // cost of the slice, buy fees included
	RealizedPL Money     `json:"realizedPL"` // proceeds - sell fee - cost basis
}

// lots is a FIFO ordered collection of cost lots of a single key.
type lots []CostLot

// fifoLess orders by acquisition date, then creation sequence. Price never matters.
func fifoLess(a, b CostLot) int {
	if c := a.AcquiredOn.Compare(b.AcquiredOn); c != 0 {
		return c
	}
	switch {
	case a.Seq < b.Seq:
		return -1
	case a.Seq > b.Seq:
		return 1
	}
	return 0
}

func (l lots) clone() lots { return slices.Clone(l) }

// insert adds a lot keeping the FIFO order. Backdated buys land before
// younger lots.
func (l lots) insert(lot CostLot) lots {
	i, _ := slices.BinarySearchFunc(l, lot, fifoLess)
	return slices.Insert(l.clone(), i, lot)
}

// open returns the lots still holding shares, in FIFO order.
func (l lots) open() lots {
	var out lots
	for _, lot := range l {
		if lot.Open() {
			out = append(out, lot)
		}
	}
	return out
}

// quantity sums the remaining quantities of lots accepted by keep (all when nil).
func (l lots) quantity(keep func(CostLot) bool) Quantity {
	var total Quantity
	for _, lot := range l {
		if lot.Open() && (keep == nil || keep(lot)) {
			total = total.Add(lot.RemainingQuantity)
		}
	}
	return total
}

// cost sums the remaining cost of open lots.
func (l lots) cost() Money {
	var total Money
	for _, lot := range l {
		if lot.Open() {
			total = total.Add(lot.Cost)
		}
	}
	return total
}

// slice is a quantity taken from the lot at index.
type slice struct {
	index    int
	quantity Quantity
	cost     Money
}

// sell takes quantityToSell from the lots accepted by keep, oldest first.
// It returns a new collection and leaves l untouched. The caller checks that
// enough quantity is available.
func (l lots) sell(quantityToSell Quantity, keep func(CostLot) bool) (lots, []slice) {
	next := l.clone()
	var taken []slice

	for i, currentLot := range next {
		if !quantityToSell.IsPositive() {
			break
		}
		if !currentLot.Open() || (keep != nil && !keep(currentLot)) {
			continue
		}

		if currentLot.RemainingQuantity.GreaterThan(quantityToSell) {
			// Partial sale from this lot
			costOfSoldPortion := currentLot.Cost.Mul(quantityToSell).Div(currentLot.RemainingQuantity)
			next[i].RemainingQuantity = currentLot.RemainingQuantity.Sub(quantityToSell)
			next[i].Cost = currentLot.Cost.Sub(costOfSoldPortion)
			taken = append(taken, slice{index: i, quantity: quantityToSell, cost: costOfSoldPortion})
			quantityToSell = Quantity{}
		} else {
			// Full sale of this lot
			next[i].RemainingQuantity = Q(0)
			next[i].Cost = M(0, currentLot.Cost.Currency())
			taken = append(taken, slice{index: i, quantity: currentLot.RemainingQuantity, cost: currentLot.Cost})
			quantityToSell = quantityToSell.Sub(currentLot.RemainingQuantity)
		}
	}
	return next, taken
}
