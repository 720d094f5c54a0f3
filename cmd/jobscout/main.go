// Command jobscout discovers, scores and tracks job postings from company
// career pages.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"jobscout/internal/config"
	"jobscout/internal/logging"
)

const usage = `usage: jobscout <command> [flags]

commands:
  discover   run one discovery batch and print its report
  schedule   run discovery batches on the configured cron schedule
  serve      start the HTTP API (add -schedule to also run the scheduler)
  list       list stored jobs
  show       show one job
  update     change a job's status or notes
  stats      print stored-data and quota statistics
  export     write jobs and companies as CSV
  recover    replay jobs from the recovery spool

run "jobscout <command> -h" for command flags`

type command func(ctx context.Context, cfg *config.Config, args []string) error

var commands = map[string]command{
	"discover": runDiscover,
	"schedule": runSchedule,
	"serve":    runServe,
	"list":     runList,
	"show":     runShow,
	"update":   runUpdate,
	"stats":    runStats,
	"export":   runExport,
	"recover":  runRecover,
}

func main() {
	global := flag.NewFlagSet("jobscout", flag.ExitOnError)
	configPath := global.String("config", config.DefaultPath, "path to the YAML configuration file")
	global.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	global.Parse(os.Args[1:])

	if global.NArg() == 0 {
		global.Usage()
		os.Exit(2)
	}
	name, args := global.Arg(0), global.Args()[1:]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s\n", name, usage)
		os.Exit(2)
	}

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	// Initialize logger
	if err := logging.InitializeLogging(cfg); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.CloseLogging()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd(ctx, cfg, args); err != nil {
		logging.GetGlobalLogger().Error("Command failed", map[string]interface{}{
			"command": name,
			"error":   err.Error(),
		})
		fmt.Fprintf(os.Stderr, "jobscout %s: %v\n", name, err)
		logging.CloseLogging()
		os.Exit(1)
	}
}
