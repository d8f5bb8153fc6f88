package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mcpadapter "github.com/kirillkom/invoice-agent/internal/adapters/mcp"
	"github.com/kirillkom/invoice-agent/internal/bootstrap"
	"github.com/kirillkom/invoice-agent/internal/config"
	"github.com/kirillkom/invoice-agent/internal/core/domain"
	"github.com/kirillkom/invoice-agent/internal/infrastructure/queue/nats"
	"github.com/kirillkom/invoice-agent/internal/observability/logging"
)

var version = "dev"

const usage = `usage: invoice-agent <command> [arguments]

commands:
  parse <file.pdf>                 print the text of an invoice
  process <file.pdf|file.xlsx>     parse, submit and archive one invoice file
  update                           install a newer release if there is one
  config get <api-key|api-base-url>
  config set <api-key|api-base-url> <value>
  mcp                              serve the tools over MCP stdio
  events                           print processing events from NATS
  version                          print the build version
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("invoice-agent", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Usage = func() { fmt.Fprint(stderr, usage) }
	if err := flags.Parse(args); err != nil {
		return 2
	}
	if flags.NArg() == 0 {
		flags.Usage()
		return 2
	}

	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger(bootstrap.ServiceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, rest := flags.Arg(0), flags.Args()[1:]
	if cmd == "version" {
		fmt.Fprintln(stdout, version)
		return 0
	}

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Version: version, Ingestion: cmd == "process"})
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	defer app.Close()

	if err := dispatch(ctx, app, cmd, rest, stdout); err != nil {
		var usageErr usageError
		if errors.As(err, &usageErr) {
			fmt.Fprintf(stderr, "%s\n\n%s", usageErr, usage)
			return 2
		}
		fmt.Fprintf(stderr, "error: %s\n", domain.PublicMessage(err))
		slog.Debug("command_failed", "command", cmd, "error", err)
		return 1
	}
	return 0
}

type usageError string

func (e usageError) Error() string { return string(e) }

func dispatch(ctx context.Context, app *bootstrap.App, cmd string, args []string, stdout io.Writer) error {
	switch cmd {
	case "parse":
		if len(args) != 1 {
			return usageError("parse expects exactly one file path")
		}
		result, err := app.ParseUC.ParseInvoice(ctx, args[0])
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(stdout, result.Text)
		return err
	case "process":
		if len(args) != 1 {
			return usageError("process expects exactly one file path")
		}
		event, err := app.IngestUC.ProcessFile(ctx, args[0])
		if err != nil {
			return err
		}
		return writeJSON(stdout, event)
	case "update":
		outcome, err := app.UpdateUC.Update(ctx)
		if err != nil {
			return err
		}
		if err := writeJSON(stdout, outcome); err != nil {
			return err
		}
		if outcome.State == domain.UpdateRestartPending {
			// The restarter replaces or exits this process; it exits with
			// code 1 if no new instance could be started.
			<-ctx.Done()
		}
		return nil
	case "config":
		return configCommand(ctx, app, args, stdout)
	case "mcp":
		tools := mcpadapter.NewTools(app.ParseUC, app.UpdateUC, app.Settings)
		return mcpadapter.ServeStdio(ctx, tools.Server(bootstrap.ServiceName, version), os.Stdin, stdout)
	case "events":
		if app.Config.NATSURL == "" {
			return domain.WrapError(domain.ErrNotConfigured, "follow events", errors.New("NATS_URL is empty"))
		}
		bus, err := nats.New(app.Config.NATSURL, app.Config.NATSSubject, nats.Options{})
		if err != nil {
			return err
		}
		defer bus.Close()
		return bus.SubscribeProcessingEvents(ctx, func(_ context.Context, event domain.ProcessingEvent) error {
			return writeJSON(stdout, event)
		})
	default:
		return usageError(fmt.Sprintf("unknown command %q", cmd))
	}
}

func configCommand(ctx context.Context, app *bootstrap.App, args []string, stdout io.Writer) error {
	if len(args) < 2 {
		return usageError("config expects get or set and a setting name")
	}
	action, name := args[0], args[1]

	var (
		load func(context.Context) (string, error)
		save func(context.Context, string) error
	)
	switch name {
	case "api-key":
		load, save = app.Settings.LoadAPIKey, app.Settings.SaveAPIKey
	case "api-base-url":
		load, save = app.Settings.LoadAPIBaseURL, app.Settings.SaveAPIBaseURL
	default:
		return usageError(fmt.Sprintf("unknown setting %q", name))
	}

	switch {
	case action == "get" && len(args) == 2:
		value, err := load(ctx)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(stdout, value)
		return err
	case action == "set" && len(args) == 3:
		return save(ctx, args[2])
	default:
		return usageError("usage: config get <name> | config set <name> <value>")
	}
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
