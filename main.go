// ABOUTME: Entry point for the leadsync CLI and MCP server
// ABOUTME: Loads configuration once and routes to reconcile, lead, auth, and MCP commands
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/harperreed/leadsync/cli"
	"github.com/harperreed/leadsync/config"
)

const version = "0.2.0"

func main() {
	// Global flags
	showVersion := flag.Bool("version", false, "Show version and exit")
	configPath := flag.String("config", "", "Config file (default: ~/.config/leadsync/config.yaml)")
	dbPath := flag.String("db-path", "", "Database path (default: ~/.local/share/leadsync/leads.db)")

	_ = flag.CommandLine.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("leadsync version %s\n", version)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}

	command := args[0]
	commandArgs := args[1:]

	// auth needs no database
	if command == "auth" {
		if err := cli.AuthCommand(cfg, commandArgs); err != nil {
			log.Fatalf("Error: %v", err)
		}
		return
	}

	if !knownCommand(command) {
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	app, err := cli.NewApp(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}

	if err := run(app, command, commandArgs); err != nil {
		_ = app.Close()
		log.Fatalf("Error: %v", err)
	}
	_ = app.Close()
}

func knownCommand(command string) bool {
	switch command {
	case "mcp", "reconcile", "daemon", "status", "leads", "record-response", "record-booking":
		return true
	}
	return false
}

func run(app *cli.App, command string, args []string) error {
	switch command {
	case "mcp":
		return cli.MCPCommand(app, version)
	case "reconcile":
		return cli.ReconcileCommand(app, args)
	case "daemon":
		return cli.DaemonCommand(app, args)
	case "status":
		return cli.StatusCommand(app, args)
	case "record-response":
		return cli.RecordResponseCommand(app, args)
	case "record-booking":
		return cli.RecordBookingCommand(app, args)
	case "leads":
		if len(args) == 0 {
			return fmt.Errorf("leads requires a subcommand (list, show, add)")
		}
		switch args[0] {
		case "list":
			return cli.LeadsListCommand(app, args[1:])
		case "show":
			return cli.LeadsShowCommand(app, args[1:])
		case "add":
			return cli.LeadsAddCommand(app, args[1:])
		default:
			return fmt.Errorf("unknown leads command: %s", args[0])
		}
	}
	return fmt.Errorf("unknown command: %s", command)
}

func printUsage() {
	fmt.Printf(`leadsync v%s - Follow-up reconciliation for intake leads

USAGE:
  leadsync [global flags] <command> [flags]

GLOBAL FLAGS:
  --config <path>     Config file (default: ~/.config/leadsync/config.yaml)
  --db-path <path>    Database path (default: ~/.local/share/leadsync/leads.db)
  --version           Show version and exit

Configuration can also come from LEADSYNC_* environment variables or a .env file.

RECONCILE COMMANDS:
  leadsync reconcile          Run one reconciliation pass
    --json                      Print stats as JSON

  leadsync daemon             Run passes on an interval until interrupted
    --interval <duration>       Time between passes (default from config, minimum 5m)

  leadsync status             Show recent passes
    --limit <n>                 Number of passes (default: 10)

LEAD COMMANDS:
  leadsync leads list         List leads
    --status <status>           not_started, questionnaire_only, scheduled_only, fully_complete
    --limit <n>                 Max results (default: 50)

  leadsync leads show <email> Show one lead

  leadsync leads add          Add a lead
    --email <email>             Email address (required)
    --name <name>               Full name
    --phone <phone>             Phone number
    --day <day>                 Preferred day
    --time <time>               Preferred time
    --services <a,b>            Service categories
    --message <text>            Intake message
    --thread-id <id>            Mail thread of the intake confirmation

  leadsync record-response    Mark a questionnaire answered
    --email <email>             Email address (required)
    --field <q=a>               Answer; repeat a question for a list answer
    --summary <text>            Synopsis (generated when omitted)
    --text <text>               Cleaned reply text

  leadsync record-booking     Mark an appointment scheduled
    --email <email>             Email address (required)
    --at <RFC3339>              Appointment time
    --event-id <id>             Calendar event id

SETUP:
  leadsync auth               Authorize Gmail and Calendar read access
    --addr <addr>               Callback listen address (default: :8080)
    --no-browser                Print the URL only

  leadsync mcp                Start the MCP server on stdio

EXAMPLES:
  # Check every lead once
  leadsync reconcile

  # Run every 15 minutes
  leadsync daemon --interval 15m

  # Record a booking confirmed by phone
  leadsync record-booking --email jane@example.com --at 2026-03-10T15:00:00-05:00

`, version)
}
