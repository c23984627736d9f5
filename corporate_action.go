package costbasis

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/etnz/costbasis/date"
	"github.com/shopspring/decimal"
)

// ActionKind is the type of a corporate action.
type ActionKind string

const (
	Dividend ActionKind = "dividend" // cash per share
	Bonus    ActionKind = "bonus"    // free shares per 10 held
	Rights   ActionKind = "rights"   // paid shares per 10 held
)

// ParseActionKind parses "dividend", "bonus" or "rights".
func ParseActionKind(s string) (ActionKind, error) {
	switch k := ActionKind(strings.ToLower(s)); k {
	case Dividend, Bonus, Rights:
		return k, nil
	}
	return "", &ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown corporate action %q", s), Err: ErrUnknownKind}
}

// CorporateAction is an instrument level event. It is not tied to a holder:
// every holder of the instrument is adjusted.
type CorporateAction struct {
	Instrument  string
	Date        date.Date
	Kind        ActionKind
	Amount      Money           // dividend per share
	Ratio       decimal.Decimal // bonus or rights shares per 10 held
	Price       Money           // rights subscription price
	Description string
}

// Validate checks the parameters required by the action kind.
func (a CorporateAction) Validate() error {
	if strings.TrimSpace(a.Instrument) == "" {
		return invalid("instrument", "is missing")
	}
	if a.Date.IsZero() {
		return invalid("date", "is missing")
	}
	switch a.Kind {
	case Dividend:
		if !a.Amount.IsPositive() {
			return invalid("amount", "dividend per share must be positive, got %s", a.Amount.Decimal())
		}
	case Bonus:
		if !a.Ratio.IsPositive() {
			return invalid("ratio", "bonus ratio must be positive, got %s", a.Ratio)
		}
	case Rights:
		if !a.Ratio.IsPositive() {
			return invalid("ratio", "rights ratio must be positive, got %s", a.Ratio)
		}
		if !a.Price.IsPositive() {
			return invalid("price", "rights price must be positive, got %s", a.Price.Decimal())
		}
	default:
		return &ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown corporate action %q", a.Kind), Err: ErrUnknownKind}
	}
	return nil
}

// inCurrency returns the action with its amounts in currency. A missing
// currency is taken as currency, any other one is rejected.
func (a CorporateAction) inCurrency(currency string) (CorporateAction, error) {
	convert := func(field string, m Money) (Money, error) {
		switch m.Currency() {
		case "":
			return M(m.Decimal(), currency), nil
		case currency:
			return m, nil
		}
		return m, invalid(field, "currency %s does not match fee currency %s", m.Currency(), currency)
	}
	var err error
	switch a.Kind {
	case Dividend:
		a.Amount, err = convert("amount", a.Amount)
	case Rights:
		a.Price, err = convert("price", a.Price)
	}
	return a, err
}

// String describes the action, e.g. "bonus 3 per 10 on 2025-06-10".
func (a CorporateAction) String() string {
	if a.Description != "" {
		return a.Description
	}
	switch a.Kind {
	case Dividend:
		return fmt.Sprintf("dividend %s per share on %s", a.Amount.Decimal(), a.Date)
	case Bonus:
		return fmt.Sprintf("bonus %s per 10 on %s", a.Ratio, a.Date)
	case Rights:
		return fmt.Sprintf("rights %s per 10 at %s on %s", a.Ratio, a.Price.Decimal(), a.Date)
	}
	return string(a.Kind)
}

// factor is the quantity multiplier of bonus and rights issues.
func (a CorporateAction) factor() decimal.Decimal {
	return decimal.NewFromInt(1).Add(a.Ratio.Div(decimal.NewFromInt(10)))
}

// MarshalJSON implements the json.Marshaler interface for CorporateAction.
func (a CorporateAction) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("kind", a.Kind)
	w.Append("date", a.Date)
	w.Append("instrument", a.Instrument)
	switch a.Kind {
	case Dividend:
		w.Append("amount", a.Amount)
	case Bonus:
		w.Append("ratio", a.Ratio)
	case Rights:
		w.Append("ratio", a.Ratio)
		w.Append("price", a.Price)
	}
	w.Optional("description", a.Description)
	return w.MarshalJSON()
}

// UnmarshalJSON implements the json.Unmarshaler interface for CorporateAction.
func (a *CorporateAction) UnmarshalJSON(data []byte) error {
	var tmp struct {
		Instrument  string          `json:"instrument"`
		Date        date.Date       `json:"date"`
		Kind        ActionKind      `json:"kind"`
		Amount      Money           `json:"amount"`
		Ratio       decimal.Decimal `json:"ratio"`
		Price       Money           `json:"price"`
		Description string          `json:"description"`
	}
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	*a = CorporateAction(tmp)
	return nil
}

// CorporateActionProcessor rewrites lots for a corporate action. It holds no
// state.
type CorporateActionProcessor struct{}

// Apply returns the lots adjusted for action, in the same order. The input
// is never modified. Retired lots are returned unchanged. Warnings flag
// lots whose cost went negative, which is allowed.
func (CorporateActionProcessor) Apply(action CorporateAction, openLots []CostLot) ([]CostLot, []string, error) {
	if err := action.Validate(); err != nil {
		return nil, nil, err
	}
	out := make([]CostLot, len(openLots))
	var warnings []string
	for i, lot := range openLots {
		if lot.Instrument != action.Instrument {
			return nil, nil, invalid("instrument", "lot %s is on %s, not %s", lot.ID, lot.Instrument, action.Instrument)
		}
		out[i] = lot
		if !lot.Open() {
			continue
		}
		switch action.Kind {
		case Dividend:
			out[i] = applyDividend(lot, action.Amount)
			if out[i].Cost.IsNegative() {
				warnings = append(warnings, fmt.Sprintf("lot %s of %s has a negative cost of %s after %s",
					lot.ID, lot.Key(), out[i].Cost.Round(), action))
			}
		case Bonus:
			out[i] = applyBonus(lot, action.factor())
		case Rights:
			out[i] = applyRights(lot, action.factor(), action.Price)
		}
	}
	return out, warnings, nil
}

// applyDividend lowers the cost per share by the dividend, quantities stay.
func applyDividend(lot CostLot, perShare Money) CostLot {
	lot.Cost = lot.Cost.Sub(perShare.Mul(lot.RemainingQuantity))
	lot.UnitPrice = lot.UnitPrice.Sub(perShare)
	return lot
}

// applyBonus scales quantities by factor and keeps the total cost.
func applyBonus(lot CostLot, factor decimal.Decimal) CostLot {
	lot.OriginalQuantity = lot.OriginalQuantity.scale(factor)
	lot.RemainingQuantity = lot.RemainingQuantity.scale(factor)
	lot.UnitPrice = lot.UnitPrice.Div(Q(factor))
	return lot
}

// applyRights scales quantities by factor and adds the subscription cost of
// the new shares.
func applyRights(lot CostLot, factor decimal.Decimal, price Money) CostLot {
	added := lot.RemainingQuantity.scale(factor).Sub(lot.RemainingQuantity)
	lot.Cost = lot.Cost.Add(price.Mul(added))

	original := lot.OriginalQuantity.scale(factor)
	addedOriginal := original.Sub(lot.OriginalQuantity)
	lot.UnitPrice = lot.UnitPrice.Mul(lot.OriginalQuantity).Add(price.Mul(addedOriginal)).Div(original)
	lot.OriginalQuantity = original
	lot.RemainingQuantity = lot.RemainingQuantity.Add(added)
	return lot
}

// Adjustment is the audit record of a corporate action on one key.
type Adjustment struct {
	Action            CorporateAction `json:"action"`
	Key               Key             `json:"key"`
	QuantityBefore    Quantity        `json:"quantityBefore"`
	QuantityAfter     Quantity        `json:"quantityAfter"`
	CostBefore        Money           `json:"costBefore"`
	CostAfter         Money           `json:"costAfter"`
	AverageCostBefore Money           `json:"averageCostBefore"`
	AverageCostAfter  Money           `json:"averageCostAfter"`
	Description       string          `json:"description"`
	Warnings          []string        `json:"warnings,omitempty"`
	Lots              []string        `json:"lots"` // ids of the adjusted lots
}

// Empty reports whether the action found no lot to adjust.
func (a Adjustment) Empty() bool { return len(a.Lots) == 0 }

func (a *Adjustment) record(before, after lots, warnings []string) {
	a.QuantityBefore, a.QuantityAfter = before.quantity(nil), after.quantity(nil)
	a.CostBefore, a.CostAfter = before.cost(), after.cost()
	a.AverageCostBefore = averageOf(a.CostBefore, a.QuantityBefore)
	a.AverageCostAfter = averageOf(a.CostAfter, a.QuantityAfter)
	a.Description = fmt.Sprintf("%s: %s shares at %s become %s shares at %s", a.Action,
		a.QuantityBefore, a.AverageCostBefore.Round().Decimal(), a.QuantityAfter, a.AverageCostAfter.Round().Decimal())
	a.Warnings = warnings
	a.Lots = make([]string, 0, len(after))
	for _, lot := range after {
		a.Lots = append(a.Lots, lot.ID)
	}
}

func averageOf(cost Money, q Quantity) Money {
	if q.IsZero() {
		return M(0, cost.Currency())
	}
	return cost.Div(q)
}
