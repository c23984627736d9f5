package costbasis

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/etnz/costbasis/date"
	"github.com/rs/zerolog"
)

// Book routes operations to the ledger of their (holder, instrument) key.
//
// Mutations of one key are serialized by its ledger, different keys run in
// parallel. When a store is set every mutation is committed to it before it
// becomes visible.
type Book struct {
	fees  *FeeSchedule
	cal   *SettlementCalendar
	store Store
	log   zerolog.Logger

	mu                sync.RWMutex
	ledgers           map[Key]*LotLedger
	actedOn           map[string]date.Date // latest action per instrument
	enforceSettlement bool
}

// NewBook creates an empty book. store may be nil for an in-memory book.
func NewBook(fees *FeeSchedule, cal *SettlementCalendar, store Store, log zerolog.Logger) *Book {
	return &Book{
		fees:    fees,
		cal:     cal,
		store:   store,
		log:     log.With().Str("component", "book").Logger(),
		ledgers: make(map[Key]*LotLedger),
		actedOn: make(map[string]date.Date),
	}
}

// SetEnforceSettlement applies LotLedger.SetEnforceSettlement to every
// current and future ledger.
func (b *Book) SetEnforceSettlement(on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.enforceSettlement = on
	for _, l := range b.ledgers {
		l.SetEnforceSettlement(on)
	}
}

// Load rebuilds the ledgers from the store. It is meant to be called once,
// before any operation.
func (b *Book) Load(ctx context.Context) error {
	if b.store == nil {
		return nil
	}
	states, err := b.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("cannot load book: %w", err)
	}
	for _, st := range states {
		b.ledger(st.Key).restore(st)
		for _, adj := range st.Adjustments {
			b.actOn(adj.Action)
		}
	}
	b.log.Info().Int("keys", len(states)).Msg("book loaded")
	return nil
}

// ledger returns the ledger of key, creating it when missing.
func (b *Book) ledger(key Key) *LotLedger {
	b.mu.RLock()
	l, ok := b.ledgers[key]
	b.mu.RUnlock()
	if ok {
		return l
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if l, ok := b.ledgers[key]; ok {
		return l
	}
	l = NewLotLedger(key, b.fees, b.cal)
	l.enforceSettlement = b.enforceSettlement
	l.st.actedOn = b.actedOn[key.Instrument]
	b.ledgers[key] = l
	return l
}

// actOn records the action date of its instrument and returns every ledger
// of the instrument, sorted by holder. Ledgers created afterwards start with
// that date.
func (b *Book) actOn(action CorporateAction) []*LotLedger {
	b.mu.Lock()
	b.actedOn[action.Instrument] = latest(b.actedOn[action.Instrument], action.Date)
	var out []*LotLedger
	for k, l := range b.ledgers {
		if k.Instrument == action.Instrument {
			out = append(out, l)
		}
	}
	b.mu.Unlock()
	slices.SortFunc(out, func(x, y *LotLedger) int { return cmp.Compare(x.key.Holder, y.key.Holder) })
	return out
}

// Ledger returns the ledger of key if a lot was ever recorded for it.
func (b *Book) Ledger(key Key) (*LotLedger, bool) {
	b.mu.RLock()
	l, ok := b.ledgers[key]
	b.mu.RUnlock()
	if !ok || l.empty() {
		return nil, false
	}
	return l, true
}

// Keys returns the keys holding at least one lot, open or retired, sorted by
// holder then instrument.
func (b *Book) Keys() []Key {
	b.mu.RLock()
	keys := make([]Key, 0, len(b.ledgers))
	for k, l := range b.ledgers {
		if !l.empty() {
			keys = append(keys, k)
		}
	}
	b.mu.RUnlock()
	slices.SortFunc(keys, func(a, b Key) int {
		return cmp.Or(cmp.Compare(a.Holder, b.Holder), cmp.Compare(a.Instrument, b.Instrument))
	})
	return keys
}

func (b *Book) commit(ctx context.Context) commitFunc {
	if b.store == nil {
		return nil
	}
	return func(e Entry) error { return b.store.Commit(ctx, e) }
}

// Buy records a buy and returns the new lot.
func (b *Book) Buy(ctx context.Context, op TradeOperation) (CostLot, error) {
	if err := op.Validate(); err != nil {
		return CostLot{}, err
	}
	lot, err := b.ledger(op.Key()).applyBuy(op, b.commit(ctx))
	if err != nil {
		return CostLot{}, err
	}
	b.log.Debug().
		Str("key", op.Key().String()).
		Str("lot", lot.ID).
		Str("quantity", lot.OriginalQuantity.String()).
		Str("cost", lot.Cost.Decimal().String()).
		Str("settles", lot.SettlesOn.String()).
		Msg("buy recorded")
	return lot, nil
}

// Sell records a sell against the open lots of its key.
func (b *Book) Sell(ctx context.Context, op TradeOperation) (SellResult, error) {
	if err := op.Validate(); err != nil {
		return SellResult{}, err
	}
	l, ok := b.Ledger(op.Key())
	if !ok {
		return SellResult{}, &InsufficientLotError{Key: op.Key(), Requested: op.Quantity, Available: Q(0), Shortfall: op.Quantity}
	}
	res, err := l.applySell(op, b.commit(ctx))
	if err != nil {
		return SellResult{}, err
	}
	ev := b.log.Debug()
	if !res.Sellable {
		ev = b.log.Warn()
	}
	ev.Str("key", op.Key().String()).
		Int("lots", len(res.Matches)).
		Str("quantity", op.Quantity.String()).
		Str("realized", res.RealizedPL.Decimal().String()).
		Bool("settled", res.Sellable).
		Msg("sell recorded")
	return res, nil
}

// ApplyCorporateAction adjusts every holder of the action instrument and
// returns one adjustment per holder that had entitled lots.
//
// Holders are processed one by one in key order. On error the adjustments
// already applied are returned with it and stay in place. A currency
// mismatch is reported before any holder is adjusted.
func (b *Book) ApplyCorporateAction(ctx context.Context, action CorporateAction) ([]Adjustment, error) {
	if err := action.Validate(); err != nil {
		return nil, err
	}
	action, err := action.inCurrency(b.fees.Currency())
	if err != nil {
		return nil, err
	}
	var adjustments []Adjustment
	for _, l := range b.actOn(action) {
		key := l.Key()
		adj, err := l.applyCorporateAction(action, b.commit(ctx))
		if err != nil {
			return adjustments, err
		}
		if adj.Empty() {
			continue
		}
		for _, w := range adj.Warnings {
			b.log.Warn().Str("key", key.String()).Str("action", string(action.Kind)).Msg(w)
		}
		b.log.Debug().Str("key", key.String()).Msg(adj.Description)
		adjustments = append(adjustments, adj)
	}
	return adjustments, nil
}

// Summary builds the summary of key. It fails with ErrUnknownKey when no lot
// was ever recorded for key.
func (b *Book) Summary(key Key, asOf date.Date, price Money) (PositionSummary, error) {
	l, ok := b.Ledger(key)
	if !ok {
		return PositionSummary{}, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return BuildSummary(l, asOf, price)
}

// Summaries builds the summaries of every position held by holder on asOf,
// sorted by instrument. Instruments missing from prices are valued at their
// average cost, their unrealized P&L is then zero.
func (b *Book) Summaries(holder string, asOf date.Date, prices map[string]Money) ([]PositionSummary, error) {
	var out []PositionSummary
	for _, key := range b.Keys() {
		if key.Holder != holder {
			continue
		}
		l, _ := b.Ledger(key)
		var s PositionSummary
		if price, ok := prices[key.Instrument]; ok {
			var err error
			if s, err = BuildSummary(l, asOf, price); err != nil {
				return nil, fmt.Errorf("cannot value %s: %w", key, err)
			}
		} else {
			s = l.CostSummary(asOf)
			b.log.Debug().Str("key", key.String()).Msg("no price, valued at average cost")
		}
		if s.OpenLots == 0 {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}
