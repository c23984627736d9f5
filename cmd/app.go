// Package cmd implements the lotctl subcommands.
package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/etnz/costbasis"
	"github.com/etnz/costbasis/config"
	"github.com/etnz/costbasis/logger"
	"github.com/etnz/costbasis/sqlite"
	"github.com/google/subcommands"
	"github.com/rs/zerolog"
)

// Register the subcommands.
// A main package will call Register() to allow subcommands, and Execute() on the user-selected one.
func Register(c *subcommands.Commander) {
	c.Register(&buyCmd{}, "operations")
	c.Register(&sellCmd{}, "operations")
	c.Register(&actionCmd{}, "operations")

	c.Register(&summaryCmd{}, "reports")
	c.Register(&lotsCmd{}, "reports")
	c.Register(&historyCmd{}, "reports")

	c.Register(&topicCmd{}, "help")
}

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var (
	storeFlag = flag.String("store", "", "Store file: a .jsonl journal or a sqlite database. Overrides "+config.EnvStore+".")
	envFile   = flag.String("env", "", "Dotenv file to load instead of .env")
	verbose   = flag.Bool("v", false, "Log at debug level")
)

// app is what a subcommand needs to run.
type app struct {
	cfg   *config.Config
	log   zerolog.Logger
	book  *costbasis.Book
	store costbasis.Store
	close func() error
}

// open loads the configuration, the store and the book.
func open(ctx context.Context) (*app, error) {
	var files []string
	if *envFile != "" {
		files = append(files, *envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return nil, err
	}
	if *storeFlag != "" {
		cfg.StorePath = *storeFlag
	}
	if *verbose {
		cfg.LogLevel = "debug"
	}
	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	logger.SetGlobalLogger(log)

	fees, err := costbasis.NewFeeSchedule(cfg.Fees)
	if err != nil {
		return nil, err
	}
	cal, err := costbasis.NewSettlementCalendar(cfg.Settlement)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, close: func() error { return nil }}
	if strings.HasSuffix(cfg.StorePath, ".jsonl") {
		a.store = costbasis.NewJournal(cfg.StorePath)
	} else {
		db, err := sqlite.Open(cfg.StorePath)
		if err != nil {
			return nil, err
		}
		s, err := sqlite.New(ctx, db, log)
		if err != nil {
			db.Close()
			return nil, err
		}
		a.store, a.close = s, s.Close
	}

	a.book = costbasis.NewBook(fees, cal, a.store, log)
	a.book.SetEnforceSettlement(cfg.EnforceSettlement)
	if err := a.book.Load(ctx); err != nil {
		a.close()
		return nil, err
	}
	log.Debug().Str("store", cfg.StorePath).Msg("book opened")
	return a, nil
}

// run opens the app, calls fn and closes the store.
func run(ctx context.Context, fn func(*app) error) subcommands.ExitStatus {
	a, err := open(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.close()

	if err := fn(a); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// printMarkdown renders md for the terminal, raw when rendering fails.
func printMarkdown(md string) {
	out, err := glamour.Render(md, "auto")
	if err != nil {
		fmt.Print(md)
		return
	}
	fmt.Print(out)
}
