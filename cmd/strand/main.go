// Command strand validates, plans, runs, and serves workflow definitions.
//
//	strand validate <definition>
//	strand plan <definition>
//	strand run [flags] <definition>
//	strand serve
//
// Definitions are JSON documents, or HCL when the file ends in .hcl.
// The serve command reads its configuration from the environment; see the
// STRAND_* variables documented on the api package.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/strandlabs/strand/blocks"
	"github.com/strandlabs/strand/internal/adapters/hcldef"
	"github.com/strandlabs/strand/internal/api"
	"github.com/strandlabs/strand/internal/core"
	"github.com/strandlabs/strand/internal/domain"
	json "github.com/strandlabs/strand/internal/xjson"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "validate":
		err = runValidate(os.Args[2:])
	case "plan":
		err = runPlan(os.Args[2:])
	case "run":
		err = runExecute(os.Args[2:])
	case "serve":
		err = runServe(os.Args[2:])
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `usage: strand <command> [flags] [arguments]

commands:
  validate <definition>   check a workflow definition and print every finding
  plan <definition>       print the layered execution plan
  run <definition>        execute a workflow and print the result
  serve                   start the HTTP server, configured from STRAND_* env

run flags:
  -input <json>           workflow input as a JSON value
  -mode <mode>            production, demo, or test (default production)
  -var key=value          workflow variable, repeatable
`)
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// loadDefinition reads a workflow document, choosing the codec by extension.
func loadDefinition(path string) (*domain.WorkflowDefinition, error) {
	if filepath.Ext(path) == ".hcl" {
		return hcldef.LoadFile(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return domain.ParseDefinition(data)
}

// newLocalManager wires an in-memory engine for one-shot CLI commands.
func newLocalManager(mode domain.ExecutionMode, logger *slog.Logger) (*core.Manager, error) {
	cfg := domain.DefaultConfig()
	cfg.Logger = logger
	cfg.Mode = mode
	cfg.InMemory = true

	manager, err := core.NewManager(cfg)
	if err != nil {
		return nil, err
	}
	if err := blocks.RegisterBuiltins(manager.Registry(), blocksOptions()); err != nil {
		return nil, err
	}
	return manager, nil
}

// blocksOptions configures built-in blocks from the environment. The AI model
// is left nil here; email falls back to suppressed sends outside production.
func blocksOptions() blocks.Options {
	opts := blocks.Options{}
	if host := os.Getenv("STRAND_SMTP_HOST"); host != "" {
		opts.SMTP = &blocks.SMTPOptions{
			Host:     host,
			Port:     587,
			Username: os.Getenv("STRAND_SMTP_USER"),
			Password: os.Getenv("STRAND_SMTP_PASS"),
			From:     os.Getenv("STRAND_SMTP_FROM"),
		}
	}
	return opts
}

func printJSON(value interface{}) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func runValidate(args []string) error {
	flags := flag.NewFlagSet("validate", flag.ExitOnError)
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return fmt.Errorf("validate expects exactly one definition file")
	}

	def, err := loadDefinition(flags.Arg(0))
	if err != nil {
		return err
	}

	manager, err := newLocalManager(domain.ModeTest, newLogger(slog.LevelWarn))
	if err != nil {
		return err
	}
	defer closeManager(manager)

	report := manager.Validate(def)
	if err := printJSON(report); err != nil {
		return err
	}
	if !report.Valid {
		return fmt.Errorf("definition has %d error(s)", len(report.Errors))
	}
	return nil
}

func runPlan(args []string) error {
	flags := flag.NewFlagSet("plan", flag.ExitOnError)
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return fmt.Errorf("plan expects exactly one definition file")
	}

	def, err := loadDefinition(flags.Arg(0))
	if err != nil {
		return err
	}

	manager, err := newLocalManager(domain.ModeTest, newLogger(slog.LevelWarn))
	if err != nil {
		return err
	}
	defer closeManager(manager)

	plan, err := manager.Plan(def)
	if err != nil {
		return err
	}
	return printJSON(plan)
}

type varFlags map[string]interface{}

func (v varFlags) String() string { return "" }

func (v varFlags) Set(raw string) error {
	key, value, ok := strings.Cut(raw, "=")
	if !ok {
		return fmt.Errorf("variable %q is not key=value", raw)
	}
	v[key] = value
	return nil
}

func runExecute(args []string) error {
	flags := flag.NewFlagSet("run", flag.ExitOnError)
	inputRaw := flags.String("input", "", "workflow input as a JSON value")
	modeRaw := flags.String("mode", string(domain.ModeProduction), "execution mode")
	variables := varFlags{}
	flags.Var(variables, "var", "workflow variable as key=value, repeatable")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return fmt.Errorf("run expects exactly one definition file")
	}

	def, err := loadDefinition(flags.Arg(0))
	if err != nil {
		return err
	}

	var input interface{}
	if *inputRaw != "" {
		if err := json.Unmarshal([]byte(*inputRaw), &input); err != nil {
			return fmt.Errorf("input is not valid JSON: %w", err)
		}
	}

	mode := domain.ExecutionMode(*modeRaw)
	logger := newLogger(slog.LevelInfo)
	manager, err := newLocalManager(mode, logger)
	if err != nil {
		return err
	}
	defer closeManager(manager)

	if err := manager.Start(context.Background()); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := manager.Execute(ctx, def, core.RunOptions{
		Input:     input,
		Variables: variables,
		Mode:      mode,
		Progress: func(percent int, event domain.TimelineEvent) {
			logger.Info("layer completed", "layer", event.Layer, "progress", percent)
		},
	})
	if err != nil {
		return err
	}
	if err := printJSON(result); err != nil {
		return err
	}
	if result.Status != domain.RunStatusCompleted {
		return fmt.Errorf("run finished with status %s", result.Status)
	}
	return nil
}

func runServe(args []string) error {
	flags := flag.NewFlagSet("serve", flag.ExitOnError)
	if err := flags.Parse(args); err != nil {
		return err
	}

	logger := newLogger(slog.LevelInfo)
	cfg := api.ConfigFromEnv(logger)

	manager, err := core.NewManager(cfg)
	if err != nil {
		return err
	}
	if err := blocks.RegisterBuiltins(manager.Registry(), blocksOptions()); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := manager.Start(ctx); err != nil {
		return err
	}
	defer closeManager(manager)

	server := api.NewServer(manager, cfg.Server, cfg.Mode, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func closeManager(manager *core.Manager) {
	if err := manager.Stop(); err != nil && err != domain.ErrNotStarted {
		fmt.Fprintln(os.Stderr, "shutdown:", err)
	}
}
