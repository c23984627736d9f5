package costbasis

import (
	"context"
	"encoding/json"
)

// EntryKind tells which mutation produced an entry.
type EntryKind string

const (
	EntryBuy    EntryKind = "buy"
	EntrySell   EntryKind = "sell"
	EntryAction EntryKind = "action"
)

// Entry is one committed mutation of a ledger. Lots holds the state, after the
// mutation, of every lot it created or changed.
type Entry struct {
	Key        Key
	Kind       EntryKind
	Operation  *TradeOperation
	Action     *CorporateAction
	Sell       *SellResult
	Adjustment *Adjustment
	Lots       []CostLot
}

// State is what a store hands back to rebuild one ledger.
type State struct {
	Key         Key
	Lots        []CostLot
	Sells       []SellResult
	Adjustments []Adjustment
}

// Store persists ledger mutations. Commit is called while the ledger lock is
// held and before the new state is visible: when it fails the mutation is
// dropped. Implementations must be safe for concurrent use by different keys.
type Store interface {
	Commit(ctx context.Context, e Entry) error
	Load(ctx context.Context) ([]State, error)
}

// MarshalJSON implements the json.Marshaler interface for Entry.
func (e Entry) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("kind", e.Kind)
	w.Append("holder", e.Key.Holder)
	w.Append("instrument", e.Key.Instrument)
	w.Optional("operation", e.Operation)
	w.Optional("action", e.Action)
	w.Optional("sell", e.Sell)
	w.Optional("adjustment", e.Adjustment)
	w.Append("lots", e.Lots)
	return w.MarshalJSON()
}

// UnmarshalJSON implements the json.Unmarshaler interface for Entry.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var tmp struct {
		Kind       EntryKind        `json:"kind"`
		Holder     string           `json:"holder"`
		Instrument string           `json:"instrument"`
		Operation  *TradeOperation  `json:"operation"`
		Action     *CorporateAction `json:"action"`
		Sell       *SellResult      `json:"sell"`
		Adjustment *Adjustment      `json:"adjustment"`
		Lots       []CostLot        `json:"lots"`
	}
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	*e = Entry{
		Key:        Key{Holder: tmp.Holder, Instrument: tmp.Instrument},
		Kind:       tmp.Kind,
		Operation:  tmp.Operation,
		Action:     tmp.Action,
		Sell:       tmp.Sell,
		Adjustment: tmp.Adjustment,
		Lots:       tmp.Lots,
	}
	return nil
}

// replay folds entries into one state per key, in order of first appearance.
// Lots are upserted by id so the last entry touching a lot wins.
func replay(entries []Entry) []State {
	var states []State
	index := make(map[Key]int)
	lotIndex := make(map[string]int)
	for _, e := range entries {
		i, ok := index[e.Key]
		if !ok {
			i = len(states)
			index[e.Key] = i
			states = append(states, State{Key: e.Key})
		}
		st := &states[i]
		for _, lot := range e.Lots {
			if j, ok := lotIndex[lot.ID]; ok {
				st.Lots[j] = lot
				continue
			}
			lotIndex[lot.ID] = len(st.Lots)
			st.Lots = append(st.Lots, lot)
		}
		if e.Sell != nil {
			st.Sells = append(st.Sells, *e.Sell)
		}
		if e.Adjustment != nil {
			st.Adjustments = append(st.Adjustments, *e.Adjustment)
		}
	}
	return states
}
