package costbasis

import (
	"fmt"
	"time"

	"github.com/etnz/costbasis/date"
)

// SettlementConfig configures when bought shares become sellable.
type SettlementConfig struct {
	// Lag is N in T+N, counted in business days. A-shares settle T+1.
	Lag int
	// Holidays are closed days on top of weekends.
	Holidays []date.Date
	// BusinessDay replaces the weekday rule when set. Holidays still apply.
	BusinessDay func(date.Date) bool
}

// DefaultSettlementConfig is T+1 on a weekday-only calendar.
func DefaultSettlementConfig() SettlementConfig {
	return SettlementConfig{Lag: 1}
}

// maxClosedRun bounds the search for the next business day, a predicate that
// never opens would otherwise loop forever.
const maxClosedRun = 366

// SettlementCalendar resolves T+N settlement dates.
type SettlementCalendar struct {
	lag         int
	holidays    map[date.Date]struct{}
	businessDay func(date.Date) bool
}

// NewSettlementCalendar validates cfg and returns a calendar.
func NewSettlementCalendar(cfg SettlementConfig) (*SettlementCalendar, error) {
	if cfg.Lag < 0 {
		return nil, &ConfigurationError{Field: "settlement lag", Reason: fmt.Sprintf("must not be negative, got %d", cfg.Lag)}
	}
	c := &SettlementCalendar{
		lag:         cfg.Lag,
		holidays:    make(map[date.Date]struct{}, len(cfg.Holidays)),
		businessDay: cfg.BusinessDay,
	}
	for _, h := range cfg.Holidays {
		c.holidays[h] = struct{}{}
	}
	if c.businessDay == nil {
		c.businessDay = isWeekday
	}
	return c, nil
}

func isWeekday(d date.Date) bool {
	wd := d.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// Lag returns the configured N.
func (c *SettlementCalendar) Lag() int { return c.lag }

// IsBusinessDay reports whether the exchange is open on d.
func (c *SettlementCalendar) IsBusinessDay(d date.Date) bool {
	if _, closed := c.holidays[d]; closed {
		return false
	}
	return c.businessDay(d)
}

// NextBusinessDay returns the first business day strictly after d.
func (c *SettlementCalendar) NextBusinessDay(d date.Date) date.Date {
	next := d.Add(1)
	for i := 0; i < maxClosedRun && !c.IsBusinessDay(next); i++ {
		next = next.Add(1)
	}
	return next
}

// SettlementDate advances trade by n business days. With n == 0 the trade
// date itself is returned, whatever day it is.
func (c *SettlementCalendar) SettlementDate(trade date.Date, n int) date.Date {
	d := trade
	for range n {
		d = c.NextBusinessDay(d)
	}
	return d
}

// Settle returns the settlement date of a trade using the configured lag.
func (c *SettlementCalendar) Settle(trade date.Date) date.Date {
	return c.SettlementDate(trade, c.lag)
}

// Sellable reports whether shares settling on settles can be sold on asOf.
func (c *SettlementCalendar) Sellable(asOf, settles date.Date) bool {
	return !asOf.Before(settles)
}
