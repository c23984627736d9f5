package costbasis

import (
	"fmt"
	"slices"
	"sync"

	"github.com/etnz/costbasis/date"
	"github.com/google/uuid"
)

// SellResult is the outcome of a sell: the lots it consumed and the profit it realized.
type SellResult struct {
	Operation  TradeOperation `json:"operation"`
	Fees       Fees           `json:"fees"`
	Proceeds   Money          `json:"proceeds"` // gross, before fees
	Matches    []SellMatch    `json:"matches"`
	RealizedPL Money          `json:"realizedPL"`
	// Sellable is true when every consumed lot had settled on the trade date.
	Sellable bool `json:"sellable"`
}

// ledgerState is never modified in place: every mutation builds a new one.
// Readers can therefore keep a state after releasing the lock.
type ledgerState struct {
	lots        lots // FIFO ordered, retired lots included
	sells       []SellResult
	adjustments []Adjustment
	seq         int64
	actedOn     date.Date // date of the latest corporate action applied
}

// commitFunc persists an entry before the ledger swaps in its new state.
// A failing commit leaves the ledger unchanged.
type commitFunc func(Entry) error

// LotLedger holds the cost lots of one (holder, instrument) key.
//
// All mutations are serialized by the ledger lock, reads share it.
type LotLedger struct {
	key     Key
	fees    *FeeSchedule
	cal     *SettlementCalendar
	actions CorporateActionProcessor

	mu                sync.RWMutex
	st                ledgerState
	enforceSettlement bool
}

// NewLotLedger creates an empty ledger for key.
func NewLotLedger(key Key, fees *FeeSchedule, cal *SettlementCalendar) *LotLedger {
	return &LotLedger{key: key, fees: fees, cal: cal}
}

// Key returns the key of the ledger.
func (l *LotLedger) Key() Key { return l.key }

// SetEnforceSettlement restricts sells to lots settled on the trade date.
// It is off by default: the ledger then reports unsettled sells through
// SellResult.Sellable instead of rejecting them.
func (l *LotLedger) SetEnforceSettlement(on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enforceSettlement = on
}

func (l *LotLedger) snapshot() ledgerState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.st
}

// checkTrade validates op against this ledger and normalizes its currency.
func (l *LotLedger) checkTrade(op TradeOperation, side Side) (TradeOperation, error) {
	if err := op.Validate(); err != nil {
		return op, err
	}
	if op.Side != side {
		return op, invalid("side", "expected %s, got %s", side, op.Side)
	}
	if op.Key() != l.key {
		return op, invalid("key", "operation for %s applied to ledger %s", op.Key(), l.key)
	}
	switch op.Price.Currency() {
	case "":
		op.Price = M(op.Price.Decimal(), l.fees.Currency())
	case l.fees.Currency():
	default:
		return op, invalid("price", "currency %s does not match fee currency %s", op.Price.Currency(), l.fees.Currency())
	}
	return op, nil
}

// checkActedOn rejects trades dated on or before the latest corporate action
// applied to the ledger: lots already adjusted would not reflect them.
func (st ledgerState) checkActedOn(op TradeOperation) error {
	if st.actedOn.IsZero() || op.Date.After(st.actedOn) {
		return nil
	}
	return invalid("date", "%s on %s is not after the corporate action of %s", op.Side, op.Date, st.actedOn)
}

// ApplyBuy records a buy as a new lot and returns it.
func (l *LotLedger) ApplyBuy(op TradeOperation) (CostLot, error) {
	return l.applyBuy(op, nil)
}

func (l *LotLedger) applyBuy(op TradeOperation, commit commitFunc) (CostLot, error) {
	op, err := l.checkTrade(op, Buy)
	if err != nil {
		return CostLot{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.st.checkActedOn(op); err != nil {
		return CostLot{}, err
	}

	amount := op.Amount()
	fees := l.fees.Fees(amount, Buy, op.market())
	lot := CostLot{
		ID:                uuid.NewString(),
		Holder:            op.Holder,
		Instrument:        op.Instrument,
		Seq:               l.st.seq + 1,
		AcquiredOn:        op.Date,
		SettlesOn:         l.cal.Settle(op.Date),
		OriginalQuantity:  op.Quantity,
		RemainingQuantity: op.Quantity,
		UnitPrice:         op.Price,
		Fees:              fees,
		Cost:              amount.Add(fees.Total),
	}

	next := l.st
	next.lots = l.st.lots.insert(lot)
	next.seq = lot.Seq

	if commit != nil {
		if err := commit(Entry{Key: l.key, Kind: EntryBuy, Operation: &op, Lots: []CostLot{lot}}); err != nil {
			return CostLot{}, fmt.Errorf("cannot record buy of %s: %w", l.key, err)
		}
	}
	l.st = next
	return lot, nil
}

// ApplySell consumes open lots oldest first. It fails with an
// InsufficientLotError, leaving every lot untouched, when the open quantity
// does not cover the sell.
func (l *LotLedger) ApplySell(op TradeOperation) (SellResult, error) {
	return l.applySell(op, nil)
}

func (l *LotLedger) applySell(op TradeOperation, commit commitFunc) (SellResult, error) {
	op, err := l.checkTrade(op, Sell)
	if err != nil {
		return SellResult{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.st.checkActedOn(op); err != nil {
		return SellResult{}, err
	}

	// shares bought after the trade date cannot be sold by it.
	keep := func(lot CostLot) bool {
		if lot.AcquiredOn.After(op.Date) {
			return false
		}
		return !l.enforceSettlement || l.cal.Sellable(op.Date, lot.SettlesOn)
	}
	available := l.st.lots.quantity(keep)
	if available.LessThan(op.Quantity) {
		return SellResult{}, &InsufficientLotError{
			Key:       l.key,
			Requested: op.Quantity,
			Available: available,
			Shortfall: op.Quantity.Sub(available),
		}
	}

	amount := op.Amount()
	fees := l.fees.Fees(amount, Sell, op.market())
	nextLots, taken := l.st.lots.sell(op.Quantity, keep)

	res := SellResult{
		Operation:  op,
		Fees:       fees,
		Proceeds:   amount,
		Matches:    make([]SellMatch, 0, len(taken)),
		RealizedPL: M(0, amount.Currency()),
		Sellable:   true,
	}
	touched := make([]CostLot, 0, len(taken))
	allocated := M(0, amount.Currency())
	for i, s := range taken {
		lot := l.st.lots[s.index]
		// the last slice takes the remainder so the slices add up to the fee exactly.
		fee := fees.share(s.quantity, op.Quantity).Total
		if i == len(taken)-1 {
			fee = fees.Total.Sub(allocated)
		}
		allocated = allocated.Add(fee)

		pl := op.Price.Mul(s.quantity).Sub(fee).Sub(s.cost)
		res.Matches = append(res.Matches, SellMatch{
			LotID:      lot.ID,
			AcquiredOn: lot.AcquiredOn,
			Quantity:   s.quantity,
			SellFee:    fee,
			CostBasis:  s.cost,
			RealizedPL: pl,
		})
		res.RealizedPL = res.RealizedPL.Add(pl)
		res.Sellable = res.Sellable && l.cal.Sellable(op.Date, lot.SettlesOn)
		touched = append(touched, nextLots[s.index])
	}

	next := l.st
	next.lots = nextLots
	next.sells = append(slices.Clip(l.st.sells), res)

	if commit != nil {
		if err := commit(Entry{Key: l.key, Kind: EntrySell, Operation: &op, Sell: &res, Lots: touched}); err != nil {
			return SellResult{}, fmt.Errorf("cannot record sell of %s: %w", l.key, err)
		}
	}
	l.st = next
	return res, nil
}

// ApplyCorporateAction adjusts the lots open on the action date. Lots bought
// after that date are not entitled and stay untouched. When no lot is
// entitled the returned adjustment is empty and nothing is recorded.
//
// Once applied, trades dated on or before the action date are rejected.
func (l *LotLedger) ApplyCorporateAction(action CorporateAction) (Adjustment, error) {
	return l.applyCorporateAction(action, nil)
}

func (l *LotLedger) applyCorporateAction(action CorporateAction, commit commitFunc) (Adjustment, error) {
	if err := action.Validate(); err != nil {
		return Adjustment{}, err
	}
	if action.Instrument != l.key.Instrument {
		return Adjustment{}, invalid("instrument", "action on %s applied to ledger %s", action.Instrument, l.key)
	}
	action, err := action.inCurrency(l.fees.Currency())
	if err != nil {
		return Adjustment{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var entitled lots
	for _, lot := range l.st.lots {
		if lot.Open() && !lot.AcquiredOn.After(action.Date) {
			entitled = append(entitled, lot)
		}
	}
	adj := Adjustment{Action: action, Key: l.key}
	if len(entitled) == 0 {
		next := l.st
		next.actedOn = latest(next.actedOn, action.Date)
		l.st = next
		return adj, nil
	}

	adjusted, warnings, err := l.actions.Apply(action, entitled)
	if err != nil {
		return Adjustment{}, err
	}
	adj.record(entitled, adjusted, warnings)

	byID := make(map[string]CostLot, len(adjusted))
	for _, lot := range adjusted {
		byID[lot.ID] = lot
	}
	nextLots := l.st.lots.clone()
	for i, lot := range nextLots {
		if a, ok := byID[lot.ID]; ok {
			nextLots[i] = a
		}
	}

	next := l.st
	next.lots = nextLots
	next.adjustments = append(slices.Clip(l.st.adjustments), adj)
	next.actedOn = latest(next.actedOn, action.Date)

	if commit != nil {
		if err := commit(Entry{Key: l.key, Kind: EntryAction, Action: &action, Adjustment: &adj, Lots: adjusted}); err != nil {
			return Adjustment{}, fmt.Errorf("cannot record %s of %s: %w", action.Kind, l.key, err)
		}
	}
	l.st = next
	return adj, nil
}

// restore replaces the state with persisted lots and sells.
func (l *LotLedger) restore(s State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	restored := lots(slices.Clone(s.Lots))
	slices.SortStableFunc(restored, fifoLess)
	next := ledgerState{lots: restored, sells: slices.Clone(s.Sells), adjustments: slices.Clone(s.Adjustments)}
	for _, lot := range restored {
		next.seq = max(next.seq, lot.Seq)
	}
	for _, adj := range s.Adjustments {
		next.actedOn = latest(next.actedOn, adj.Action.Date)
	}
	l.st = next
}

func latest(a, b date.Date) date.Date {
	if b.After(a) {
		return b
	}
	return a
}

// empty reports whether no lot was ever recorded.
func (l *LotLedger) empty() bool { return len(l.snapshot().lots) == 0 }

// held keeps the open lots already acquired on asOf.
func held(asOf date.Date) func(CostLot) bool {
	return func(lot CostLot) bool { return !lot.AcquiredOn.After(asOf) }
}

// WeightedAverageCost is the cost per share, fees included, of the lots held
// on asOf. It is zero when nothing is held.
func (l *LotLedger) WeightedAverageCost(asOf date.Date) Money {
	return weightedAverage(l.snapshot().lots, asOf, l.fees.Currency())
}

func weightedAverage(ls lots, asOf date.Date, currency string) Money {
	total, cost := Q(0), M(0, currency)
	for _, lot := range ls {
		if lot.Open() && held(asOf)(lot) {
			total = total.Add(lot.RemainingQuantity)
			cost = cost.Add(lot.Cost)
		}
	}
	if total.IsZero() {
		return M(0, currency)
	}
	return cost.Div(total)
}

// SellableQuantity is the quantity held on asOf whose settlement date has passed.
func (l *LotLedger) SellableQuantity(asOf date.Date) Quantity {
	return l.snapshot().lots.quantity(func(lot CostLot) bool {
		return held(asOf)(lot) && l.cal.Sellable(asOf, lot.SettlesOn)
	})
}

// UnsellableQuantity is the quantity held on asOf still waiting for settlement.
func (l *LotLedger) UnsellableQuantity(asOf date.Date) Quantity {
	return l.snapshot().lots.quantity(func(lot CostLot) bool {
		return held(asOf)(lot) && !l.cal.Sellable(asOf, lot.SettlesOn)
	})
}

// OpenQuantity is the remaining quantity of every open lot.
func (l *LotLedger) OpenQuantity() Quantity { return l.snapshot().lots.quantity(nil) }

// OpenLots returns a copy of the open lots in FIFO order.
func (l *LotLedger) OpenLots() []CostLot { return l.snapshot().lots.open() }

// Lots returns a copy of every lot, retired ones included, in FIFO order.
func (l *LotLedger) Lots() []CostLot { return l.snapshot().lots.clone() }

// Sells returns the sells applied so far, oldest first.
func (l *LotLedger) Sells() []SellResult { return slices.Clone(l.snapshot().sells) }

// Adjustments returns the corporate actions applied so far.
func (l *LotLedger) Adjustments() []Adjustment { return slices.Clone(l.snapshot().adjustments) }

// RealizedPL sums the realized profit of every sell.
func (l *LotLedger) RealizedPL() Money { return realized(l.snapshot().sells, l.fees.Currency()) }

func realized(sells []SellResult, currency string) Money {
	total := M(0, currency)
	for _, s := range sells {
		total = total.Add(s.RealizedPL)
	}
	return total
}
