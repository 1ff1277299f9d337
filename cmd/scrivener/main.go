// Scrivener is a Slack assistant with durable notes and per-user memory.
//
// It connects to a workspace over Socket Mode, answers @-mentions and
// direct messages through an OpenAI tool-calling loop, and persists
// notes and user facts as plain files. Configuration is loaded from a
// single YAML file discovered automatically (see
// [config.DefaultSearchPaths]).
//
// Usage:
//
//	scrivener serve            Connect to Slack and serve conversations
//	scrivener init [dir]       Initialize a working directory with defaults
//	scrivener ask <question>   Ask a single question (for testing)
//	scrivener version          Print version and build information
//	scrivener -o json version  Output version information as JSON
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/wrenware/scrivener/internal/agent"
	"github.com/wrenware/scrivener/internal/buildinfo"
	"github.com/wrenware/scrivener/internal/config"
	"github.com/wrenware/scrivener/internal/events"
	"github.com/wrenware/scrivener/internal/llm"
	"github.com/wrenware/scrivener/internal/memory"
	"github.com/wrenware/scrivener/internal/notes"
	"github.com/wrenware/scrivener/internal/slack"
	"github.com/wrenware/scrivener/internal/tools"
	"github.com/wrenware/scrivener/internal/usage"
)

// main is intentionally minimal. It constructs the OS-level environment
// (context, stdio, argv) and delegates immediately to [run]. This keeps
// os.Exit, os.Stdout, and os.Args out of the application logic so that
// the full startup-to-shutdown lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point for the scrivener command. All OS-level
// dependencies are injected as parameters: ctx controls the process
// lifetime, stdout and stderr receive all output, and args is
// os.Args[1:]. Arguments are parsed by hand — the flag package relies
// on package-level globals, which makes it impossible to call run()
// concurrently from tests, and the argument surface is small.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string // "text" (default) or "json"
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "serve":
		return runServe(ctx, stdout, configPath)
	case "init":
		dir := "."
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runInit(stdout, dir)
	case "ask":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: scrivener ask <question>")
		}
		return runAsk(ctx, stdout, configPath, cmdArgs)
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	for _, k := range []string{"version", "git_commit", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

// printUsage writes the top-level help text to w.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Scrivener - Slack assistant with notes and memory")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: scrivener [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve        Connect to Slack and serve conversations")
	fmt.Fprintln(w, "  init [dir]   Initialize working directory with defaults (default: .)")
	fmt.Fprintln(w, "  ask          Ask a single question (for testing)")
	fmt.Fprintln(w, "  version      Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./scrivener.yaml, ~/.config/scrivener/config.yaml, /etc/scrivener/config.yaml")
	return nil
}

// buildLoop assembles the stores, tool registry, and conversation loop
// shared by serve and ask.
func buildLoop(cfg *config.Config, usageStore *usage.Store, bus *events.Bus, logger *slog.Logger) *agent.Loop {
	noteStore := notes.NewStore(cfg.NotesDir, logger)
	memStore := memory.NewStore(cfg.MemoryDir, logger)

	registry := tools.NewRegistry(logger)
	if cfg.OpenAI.WebSearch {
		registry.RegisterHosted("web_search")
	}
	registry.RegisterAll(notes.Tools(noteStore))
	registry.Register(memory.SaveTool(memStore))

	client := llm.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, logger)

	return agent.New(agent.Config{
		Client:    client,
		Registry:  registry,
		Memory:    memStore,
		Usage:     usageStore,
		Bus:       bus,
		Model:     cfg.OpenAI.Model,
		MaxRounds: cfg.Agent.MaxRounds,
		Logger:    logger,
	})
}

// runAsk handles the "scrivener ask <question>" subcommand. It boots a
// minimal loop (no Slack, no usage database) and answers one question,
// printing the reply to stdout. Useful for smoke tests without a
// workspace.
func runAsk(ctx context.Context, stdout io.Writer, configPath string, args []string) error {
	logger := newLogger(stdout, slog.LevelWarn)

	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	loop := buildLoop(cfg, nil, nil, logger)

	question := strings.Join(args, " ")
	reply, err := loop.Run(ctx, agent.Request{
		User:  "cli",
		Turns: []llm.InputItem{llm.UserMessage("[cli]: " + question)},
	})
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}

	fmt.Fprintln(stdout, reply)
	return nil
}

// runServe handles the "scrivener serve" subcommand: loads config,
// opens the stores, connects to Slack over Socket Mode, and blocks
// until a shutdown signal arrives.
func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	logger := newLogger(stdout, slog.LevelInfo)
	logger.Info("starting scrivener",
		"version", buildinfo.Version,
		"commit", buildinfo.GitCommit,
		"built", buildinfo.BuildTime,
	)

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", cfgPath, err)
	}

	// Reconfigure logging now that the desired level is known. The
	// initial Info-level logger covers only the startup banner.
	if cfg.LogLevel != "" {
		level, err := config.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("invalid config %s: %w", cfgPath, err)
		}
		logger = newLogger(stdout, level)
	}
	logger.Info("config loaded", "path", cfgPath, "model", cfg.OpenAI.Model)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory %s: %w", cfg.DataDir, err)
	}

	usageStore, err := usage.NewStore(filepath.Join(cfg.DataDir, "usage.db"))
	if err != nil {
		return fmt.Errorf("open usage database: %w", err)
	}
	defer usageStore.Close()

	// Operational events feed the debug log; future consumers (metrics,
	// an admin surface) subscribe the same way.
	bus := events.New()
	eventCh := bus.Subscribe(256)
	defer bus.Unsubscribe(eventCh)
	go func() {
		for e := range eventCh {
			logger.Debug("event", "source", e.Source, "kind", e.Kind, "data", e.Data)
		}
	}()

	loop := buildLoop(cfg, usageStore, bus, logger)

	// A failed ping is worth knowing about at startup, but transient
	// endpoint trouble should not prevent the bridge from coming up.
	pingCtx, pingCancel := context.WithTimeout(ctx, 15*time.Second)
	client := llm.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, logger)
	if err := client.Ping(pingCtx); err != nil {
		logger.Warn("completion endpoint unreachable at startup", "error", err)
	}
	pingCancel()

	api := slack.NewClient(cfg.Slack.BotToken, cfg.Slack.AppToken, "", logger)
	socket := slack.NewSocketClient(api, logger)
	bridge := slack.NewBridge(slack.BridgeConfig{
		API:           api,
		Events:        socket.Events(),
		Runner:        loop,
		Bus:           bus,
		Logger:        logger,
		RateLimit:     cfg.Slack.RateLimit,
		UserCacheSize: cfg.Slack.UserCacheSize,
		UserCacheTTL:  time.Duration(cfg.Slack.UserCacheTTLMinutes) * time.Minute,
	})

	errCh := make(chan error, 2)
	go func() { errCh <- socket.Run(ctx) }()
	go func() { errCh <- bridge.Start(ctx) }()

	err = <-errCh
	stop()
	// Let the second goroutine wind down before returning.
	<-errCh

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("shutdown complete", "uptime", buildinfo.Uptime())
	return nil
}

// newLogger builds a text slog logger with TRACE level naming.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
}

// loadConfig locates and parses the YAML configuration file. If
// explicit is non-empty, that exact path is used (and must exist).
// Otherwise [config.FindConfig] searches the default locations.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}
