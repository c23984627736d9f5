package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/etnz/costbasis"
	"github.com/etnz/costbasis/date"
	"github.com/etnz/costbasis/renderer"
	"github.com/google/subcommands"
)

// priceFlags collects repeated -price instrument=price flags.
type priceFlags map[string]string

func (p priceFlags) String() string {
	var pairs []string
	for k, v := range p {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ",")
}

func (p priceFlags) Set(s string) error {
	k, v, ok := strings.Cut(s, "=")
	if !ok || k == "" || v == "" {
		return fmt.Errorf("expected instrument=price, got %q", s)
	}
	p[k] = v
	return nil
}

func (p priceFlags) parse(currency string) (map[string]costbasis.Money, error) {
	prices := make(map[string]costbasis.Money, len(p))
	for k, v := range p {
		m, err := costbasis.ParseMoney(v, currency)
		if err != nil {
			return nil, fmt.Errorf("parsing price of %s: %w", k, err)
		}
		prices[k] = m
	}
	return prices, nil
}

// summaryCmd holds the flags for the 'summary' subcommand.
type summaryCmd struct {
	date       string
	holder     string
	instrument string
	prices     priceFlags
}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "display the positions of a holder with their P&L" }
func (*summaryCmd) Usage() string {
	return `lotctl summary -h <holder> [-s <instrument>] [-d <date>] [-price <instrument>=<price>]...

  Displays quantity, sellable split, average cost and P&L of every open
  position of the holder, or of a single instrument with -s. Positions
  without a price are valued at their average cost.
`
}

func (c *summaryCmd) SetFlags(f *flag.FlagSet) {
	c.prices = make(priceFlags)
	f.StringVar(&c.date, "d", date.Today().String(), "Date for the summary (YYYY-MM-DD)")
	f.StringVar(&c.holder, "h", "", "Holder id")
	f.StringVar(&c.instrument, "s", "", "Only this instrument")
	f.Var(c.prices, "price", "Current price as instrument=price, repeatable")
}

func (c *summaryCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.holder == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	on, err := date.Parse(c.date)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing date: %v\n", err)
		return subcommands.ExitUsageError
	}
	return run(ctx, func(a *app) error {
		prices, err := c.prices.parse(a.cfg.Fees.Currency)
		if err != nil {
			return err
		}
		if c.instrument == "" {
			summaries, err := a.book.Summaries(c.holder, on, prices)
			if err != nil {
				return err
			}
			printMarkdown(renderer.RenderPositions(renderer.NewPositions(c.holder, on, summaries)))
			return nil
		}

		key := costbasis.Key{Holder: c.holder, Instrument: c.instrument}
		if price, ok := prices[c.instrument]; ok {
			s, err := a.book.Summary(key, on, price)
			if err != nil {
				return err
			}
			printMarkdown(renderer.RenderPosition(s))
			return nil
		}
		l, ok := a.book.Ledger(key)
		if !ok {
			return fmt.Errorf("%w: %s", costbasis.ErrUnknownKey, key)
		}
		printMarkdown(renderer.RenderPosition(l.CostSummary(on)))
		return nil
	})
}
