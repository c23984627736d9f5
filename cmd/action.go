package cmd

import (
	"context"
	"flag"
	"fmt"

	"github.com/etnz/costbasis"
	"github.com/etnz/costbasis/date"
	"github.com/etnz/costbasis/renderer"
	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
)

type actionCmd struct {
	date        string
	instrument  string
	kind        string
	amount      string
	ratio       string
	price       string
	description string
}

func (*actionCmd) Name() string     { return "action" }
func (*actionCmd) Synopsis() string { return "apply a dividend, bonus or rights issue to every holder" }
func (*actionCmd) Usage() string {
	return `lotctl action -s <instrument> -k dividend -a <per share> [-d <date>]
lotctl action -s <instrument> -k bonus -r <per 10> [-d <date>]
lotctl action -s <instrument> -k rights -r <per 10> -p <price> [-d <date>]

  Adjusts the lots of every holder of the instrument acquired on or before
  the action date.
`
}

func (c *actionCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", date.Today().String(), "Action date (YYYY-MM-DD)")
	f.StringVar(&c.instrument, "s", "", "Instrument code")
	f.StringVar(&c.kind, "k", "", "Kind of action: dividend, bonus or rights")
	f.StringVar(&c.amount, "a", "", "Dividend per share")
	f.StringVar(&c.ratio, "r", "", "Bonus or rights shares per 10 held")
	f.StringVar(&c.price, "p", "", "Rights subscription price")
	f.StringVar(&c.description, "m", "", "Optional description")
}

func (c *actionCmd) action(currency string) (costbasis.CorporateAction, error) {
	a := costbasis.CorporateAction{Instrument: c.instrument, Description: c.description}
	var err error
	if a.Date, err = date.Parse(c.date); err != nil {
		return a, fmt.Errorf("parsing date: %w", err)
	}
	if a.Kind, err = costbasis.ParseActionKind(c.kind); err != nil {
		return a, err
	}
	if c.amount != "" {
		if a.Amount, err = costbasis.ParseMoney(c.amount, currency); err != nil {
			return a, fmt.Errorf("parsing amount %q: %w", c.amount, err)
		}
	}
	if c.ratio != "" {
		if a.Ratio, err = decimal.NewFromString(c.ratio); err != nil {
			return a, fmt.Errorf("parsing ratio %q: %w", c.ratio, err)
		}
	}
	if c.price != "" {
		if a.Price, err = costbasis.ParseMoney(c.price, currency); err != nil {
			return a, fmt.Errorf("parsing price %q: %w", c.price, err)
		}
	}
	return a, nil
}

func (c *actionCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.instrument == "" || c.kind == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	return run(ctx, func(a *app) error {
		action, err := c.action(a.cfg.Fees.Currency)
		if err != nil {
			return err
		}
		adjs, err := a.book.ApplyCorporateAction(ctx, action)
		// adjustments applied before a failure are still reported.
		printMarkdown(renderer.RenderAdjustments(adjs))
		return err
	})
}
