package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"stocktrader/config"
	"stocktrader/database"

	"github.com/google/subcommands"
	log "github.com/sirupsen/logrus"
)

// Commands lists the subcommands of the server binary
var Commands = []subcommands.Command{
	&serveCmd{},
	&migrateCmd{},
}

type serveCmd struct {
	memory bool
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "runs the trading ledger server" }
func (*serveCmd) Usage() string {
	return `stocktrader serve [-memory]

  Starts the TCP trading ledger. Configuration is read from the environment
  and an optional .env file. Runs until a client sends SHUTDOWN or the process
  receives SIGINT/SIGTERM.

`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.memory, "memory", false, "Use the in-memory store instead of PostgreSQL.")
}

func (c *serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	var opts []config.Option
	if c.memory {
		opts = append(opts, config.WithStoreDriver(config.StoreDriverMemory))
	}

	cfg, err := config.Load(opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	ConfigureLogging(cfg)

	if err := Run(ctx, cfg); err != nil {
		log.WithError(err).Error("Server failed")
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type migrateCmd struct{}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "applies, reverts or inspects database migrations" }
func (*migrateCmd) Usage() string {
	return `stocktrader migrate up | down [steps] | status

  up      applies all pending migrations
  down    reverts the given number of migrations (default 1)
  status  prints the current schema version

`
}

func (*migrateCmd) SetFlags(*flag.FlagSet) {}

func (*migrateCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Error: missing migration command\n")
		return subcommands.ExitUsageError
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	if cfg.StoreDriver != config.StoreDriverPostgres {
		fmt.Fprintf(os.Stderr, "Error: migrations require STORE_DRIVER=%s\n", config.StoreDriverPostgres)
		return subcommands.ExitFailure
	}
	databaseURL := database.ConstructDatabaseURL(cfg.DatabaseURL, cfg.DatabaseName)

	switch f.Arg(0) {
	case "up":
		err = database.MigrateUp(databaseURL)
	case "down":
		steps := 1
		if f.NArg() > 1 {
			steps, err = strconv.Atoi(f.Arg(1))
			if err != nil || steps < 1 {
				fmt.Fprintf(os.Stderr, "Error: invalid step count %q\n", f.Arg(1))
				return subcommands.ExitUsageError
			}
		}
		err = database.MigrateDown(databaseURL, steps)
	case "status":
		var status *database.MigrationStatus
		status, err = database.MigrateStatus(databaseURL)
		if err == nil {
			printMigrationStatus(status)
		}
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown migration command %q\n", f.Arg(0))
		return subcommands.ExitUsageError
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Migration error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func printMigrationStatus(status *database.MigrationStatus) {
	if !status.Applied {
		fmt.Println("No migrations applied")
		return
	}
	fmt.Printf("Current version: %d\n", status.Version)
	if status.Dirty {
		fmt.Println("WARNING: database is in a dirty state")
	}
}
