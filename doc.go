// Package costbasis keeps the cost lots of equity positions and derives
// their cost basis and profit and loss, fees included.
//
// The main pieces are:
//   - FeeSchedule: commission, stamp duty and transfer fee of a trade, from
//     an injected FeeConfig.
//   - SettlementCalendar: T+N settlement dates over business days, with an
//     optional holiday list.
//   - LotLedger: the FIFO ordered lots of one (holder, instrument) key. Buys
//     open lots, sells consume the oldest ones first and are rejected as a
//     whole when the open quantity is short.
//   - CorporateActionProcessor: dividend, bonus and rights adjustments of
//     open lots.
//   - BuildSummary: quantity, sellable split, average cost and P&L of a
//     position at a given price.
//   - Book: the set of ledgers, with persistence through a Store such as
//     the JSONL Journal.
//
// Amounts are kept at full decimal precision and only rounded for reports.
//
// This package is the foundation of the `lotctl` command-line tool.
package costbasis
