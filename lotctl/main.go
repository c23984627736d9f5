// Command lotctl records equity trades and corporate actions and reports
// the cost basis and P&L of each position.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/etnz/costbasis/cmd"
	"github.com/google/subcommands"
)

func main() {
	cmd.Completion().Complete("lotctl")

	commander := subcommands.NewCommander(flag.CommandLine, "lotctl")
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	cmd.Register(commander)

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
