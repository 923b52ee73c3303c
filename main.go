package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path"
	"syscall"

	"stocktrader/cmd"

	"github.com/google/subcommands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	for _, c := range cmd.Commands {
		commander.Register(c, "")
	}

	// Serving is the default when no subcommand is given
	args := os.Args[1:]
	if len(args) == 0 {
		args = []string{"serve"}
	}
	_ = flag.CommandLine.Parse(args)

	status := commander.Execute(ctx)
	stop()
	os.Exit(int(status))
}
