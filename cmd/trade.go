package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/costbasis"
	"github.com/etnz/costbasis/date"
	"github.com/etnz/costbasis/renderer"
	"github.com/google/subcommands"
)

// tradeFlags are shared by buy and sell.
type tradeFlags struct {
	date       string
	holder     string
	instrument string
	name       string
	quantity   string
	price      string
	market     string
	memo       string
}

func (c *tradeFlags) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", date.Today().String(), "Trade date (YYYY-MM-DD)")
	f.StringVar(&c.holder, "h", "", "Holder id")
	f.StringVar(&c.instrument, "s", "", "Instrument code, e.g. 600519")
	f.StringVar(&c.name, "n", "", "Optional instrument name")
	f.StringVar(&c.quantity, "q", "", "Number of shares")
	f.StringVar(&c.price, "p", "", "Price per share")
	f.StringVar(&c.market, "market", "", "Exchange (SH, SZ, BJ). Derived from the code when empty")
	f.StringVar(&c.memo, "m", "", "An optional note for the operation")
}

// operation parses the flags. The operation itself is validated by the book.
func (c *tradeFlags) operation(side costbasis.Side, currency string) (costbasis.TradeOperation, error) {
	day, err := date.Parse(c.date)
	if err != nil {
		return costbasis.TradeOperation{}, fmt.Errorf("parsing date: %w", err)
	}
	q, err := costbasis.ParseQuantity(c.quantity)
	if err != nil {
		return costbasis.TradeOperation{}, fmt.Errorf("parsing quantity %q: %w", c.quantity, err)
	}
	p, err := costbasis.ParseMoney(c.price, currency)
	if err != nil {
		return costbasis.TradeOperation{}, fmt.Errorf("parsing price %q: %w", c.price, err)
	}
	return costbasis.TradeOperation{
		Holder:     c.holder,
		Instrument: c.instrument,
		Name:       c.name,
		Side:       side,
		Date:       day,
		Quantity:   q,
		Price:      p,
		Market:     costbasis.Market(c.market),
		Notes:      c.memo,
	}, nil
}

func (c *tradeFlags) missing() bool {
	return c.holder == "" || c.instrument == "" || c.quantity == "" || c.price == ""
}

// --- Buy Command ---

type buyCmd struct{ tradeFlags }

func (*buyCmd) Name() string     { return "buy" }
func (*buyCmd) Synopsis() string { return "record a purchase as a new cost lot" }
func (*buyCmd) Usage() string {
	return `lotctl buy -h <holder> -s <instrument> -q <quantity> -p <price> [-d <date>] [-m <memo>]

  Records a purchase. Fees are computed from the configured schedule and
  added to the lot cost. The lot becomes sellable on its settlement date.
`
}

func (c *buyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.missing() {
		f.Usage()
		return subcommands.ExitUsageError
	}
	return run(ctx, func(a *app) error {
		op, err := c.operation(costbasis.Buy, a.cfg.Fees.Currency)
		if err != nil {
			return err
		}
		lot, err := a.book.Buy(ctx, op)
		if err != nil {
			return err
		}
		l, _ := a.book.Ledger(op.Key())
		fmt.Printf("Lot %s: %s shares for %s, sellable on %s\n", lot.ID, lot.OriginalQuantity, lot.Cost, lot.SettlesOn)
		printMarkdown(renderer.RenderLots(renderer.NewLots(op.Key(), op.Date, l.OpenLots())))
		return nil
	})
}

// --- Sell Command ---

type sellCmd struct{ tradeFlags }

func (*sellCmd) Name() string     { return "sell" }
func (*sellCmd) Synopsis() string { return "record a sale against the oldest lots" }
func (*sellCmd) Usage() string {
	return `lotctl sell -h <holder> -s <instrument> -q <quantity> -p <price> [-d <date>] [-m <memo>]

  Records a sale. Open lots are consumed oldest first and the realized
  profit, net of buy and sell fees, is reported. A sale larger than the open
  quantity is rejected and nothing is recorded.
`
}

func (c *sellCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.missing() {
		f.Usage()
		return subcommands.ExitUsageError
	}
	return run(ctx, func(a *app) error {
		op, err := c.operation(costbasis.Sell, a.cfg.Fees.Currency)
		if err != nil {
			return err
		}
		res, err := a.book.Sell(ctx, op)
		if err != nil {
			return err
		}
		if !res.Sellable {
			fmt.Fprintln(os.Stderr, "Warning: the sale consumed lots that had not settled yet.")
		}
		printMarkdown(renderer.RenderSell(res))
		return nil
	})
}
