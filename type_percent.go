package costbasis

import "fmt"

// Percent is a display ratio, 1.5 means 1.5%. It is never used in cost
// arithmetic.
type Percent float64

// percentOf returns part/whole in percent, 0 when whole is zero.
func percentOf(part, whole Money) Percent {
	if whole.IsZero() {
		return 0
	}
	return Percent(100 * part.DivMoney(whole).InexactFloat64())
}

func (p Percent) String() string {
	return fmt.Sprintf("%.2f%%", p)
}

func (p Percent) SignedString() string {
	res := fmt.Sprintf("%+.2f%%", p)
	if res == "+0.00%" || res == "-0.00%" {
		return "-"
	}
	return res
}
