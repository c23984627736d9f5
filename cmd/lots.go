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

type lotsCmd struct {
	date       string
	holder     string
	instrument string
	all        bool
}

func (*lotsCmd) Name() string     { return "lots" }
func (*lotsCmd) Synopsis() string { return "list the cost lots of a position" }
func (*lotsCmd) Usage() string {
	return `lotctl lots -h <holder> -s <instrument> [-d <date>] [-all]

  Lists the open lots of a position in selling order, with their settlement
  status on the given date. -all includes the lots already sold.
`
}

func (c *lotsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", date.Today().String(), "Date for the settlement status (YYYY-MM-DD)")
	f.StringVar(&c.holder, "h", "", "Holder id")
	f.StringVar(&c.instrument, "s", "", "Instrument code")
	f.BoolVar(&c.all, "all", false, "Include sold lots")
}

func (c *lotsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.holder == "" || c.instrument == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	on, err := date.Parse(c.date)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing date: %v\n", err)
		return subcommands.ExitUsageError
	}
	return run(ctx, func(a *app) error {
		key := costbasis.Key{Holder: c.holder, Instrument: c.instrument}
		l, ok := a.book.Ledger(key)
		if !ok {
			return fmt.Errorf("no operation recorded for %s", key)
		}
		lots := l.OpenLots()
		if c.all {
			lots = l.Lots()
		}
		printMarkdown(renderer.RenderLots(renderer.NewLots(key, on, lots)))
		return nil
	})
}
