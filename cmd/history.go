package cmd

import (
	"context"
	"flag"
	"fmt"

	"github.com/etnz/costbasis"
	"github.com/etnz/costbasis/renderer"
	"github.com/etnz/costbasis/sqlite"
	"github.com/google/subcommands"
)

type historyCmd struct {
	holder     string
	instrument string
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "list the recorded operations of a position" }
func (*historyCmd) Usage() string {
	return `lotctl history -h <holder> -s <instrument>

  Lists the operations recorded for a position, in recording order. Needs a
  sqlite store.
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.holder, "h", "", "Holder id")
	f.StringVar(&c.instrument, "s", "", "Instrument code")
}

func (c *historyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.holder == "" || c.instrument == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	return run(ctx, func(a *app) error {
		s, ok := a.store.(*sqlite.Store)
		if !ok {
			return fmt.Errorf("history needs a sqlite store, %q is a journal", a.cfg.StorePath)
		}
		key := costbasis.Key{Holder: c.holder, Instrument: c.instrument}
		ops, err := s.Operations(ctx, key)
		if err != nil {
			return err
		}
		adjs, err := s.Adjustments(ctx, key)
		if err != nil {
			return err
		}

		h := &renderer.History{Key: key, Adjustments: adjs}
		for _, op := range ops {
			row := renderer.HistoryRow{ID: op.ID, Kind: string(op.Kind), Date: op.Date, RecordedAt: op.RecordedAt}
			switch {
			case op.Trade != nil:
				row.Description = fmt.Sprintf("%s %s at %s", op.Trade.Side, op.Trade.Quantity, op.Trade.Price)
				row.Notes = op.Trade.Notes
			case op.Action != nil:
				row.Description = op.Action.String()
			}
			h.Rows = append(h.Rows, row)
		}
		printMarkdown(renderer.RenderHistory(h))
		return nil
	})
}
