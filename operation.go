package costbasis

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/etnz/costbasis/date"
)

// Side is the direction of a trade.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// ParseSide parses "buy" or "sell".
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToLower(s)) {
	case Buy:
		return Buy, nil
	case Sell:
		return Sell, nil
	default:
		return "", &ValidationError{Field: "side", Reason: fmt.Sprintf("%q is neither buy nor sell", s), Err: ErrUnknownKind}
	}
}

// Key identifies the lots of one holder in one instrument.
type Key struct {
	Holder     string `json:"holder"`
	Instrument string `json:"instrument"`
}

func (k Key) String() string { return k.Holder + "/" + k.Instrument }

// TradeOperation is a buy or sell as reported by the caller. It is consumed
// by the ledger and never stored as-is.
type TradeOperation struct {
	Holder     string
	Instrument string
	Name       string // display name of the instrument, optional
	Side       Side
	Date       date.Date
	Quantity   Quantity
	Price      Money // unit price
	Market     Market // derived from Instrument when empty
	Notes      string
}

// Key returns the (holder, instrument) key of the operation.
func (op TradeOperation) Key() Key { return Key{Holder: op.Holder, Instrument: op.Instrument} }

// Amount is quantity times unit price, before fees.
func (op TradeOperation) Amount() Money { return op.Price.Mul(op.Quantity) }

// market returns the listing exchange used for fee scoping.
func (op TradeOperation) market() Market {
	if op.Market != "" {
		return op.Market
	}
	return MarketOf(op.Instrument)
}

// Validate checks the operation fields.
func (op TradeOperation) Validate() error {
	if strings.TrimSpace(op.Holder) == "" {
		return invalid("holder", "is missing")
	}
	if strings.TrimSpace(op.Instrument) == "" {
		return invalid("instrument", "is missing")
	}
	if op.Side != Buy && op.Side != Sell {
		return &ValidationError{Field: "side", Reason: fmt.Sprintf("%q is neither buy nor sell", op.Side), Err: ErrUnknownKind}
	}
	if op.Date.IsZero() {
		return invalid("date", "is missing")
	}
	if !op.Quantity.IsPositive() {
		return invalid("quantity", "must be positive, got %s", op.Quantity)
	}
	if !op.Price.IsPositive() {
		return invalid("price", "must be positive, got %s", op.Price.Decimal())
	}
	return nil
}

// MarshalJSON implements the json.Marshaler interface for TradeOperation.
func (op TradeOperation) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("side", op.Side)
	w.Append("date", op.Date)
	w.Append("holder", op.Holder)
	w.Append("instrument", op.Instrument)
	w.Optional("name", op.Name)
	w.Append("quantity", op.Quantity)
	w.Append("price", op.Price)
	w.Optional("market", op.Market)
	w.Optional("notes", op.Notes)
	return w.MarshalJSON()
}

// UnmarshalJSON implements the json.Unmarshaler interface for TradeOperation.
func (op *TradeOperation) UnmarshalJSON(data []byte) error {
	var tmp struct {
		Side       Side      `json:"side"`
		Date       date.Date `json:"date"`
		Holder     string    `json:"holder"`
		Instrument string    `json:"instrument"`
		Name       string    `json:"name"`
		Quantity   Quantity  `json:"quantity"`
		Price      Money     `json:"price"`
		Market     Market    `json:"market"`
		Notes      string    `json:"notes"`
	}
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	*op = TradeOperation{
		Holder:     tmp.Holder,
		Instrument: tmp.Instrument,
		Name:       tmp.Name,
		Side:       tmp.Side,
		Date:       tmp.Date,
		Quantity:   tmp.Quantity,
		Price:      tmp.Price,
		Market:     tmp.Market,
		Notes:      tmp.Notes,
	}
	return nil
}
