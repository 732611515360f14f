package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/Makepad-fr/tada-client/internal/auth"
	"github.com/Makepad-fr/tada-client/internal/cli"
	"github.com/Makepad-fr/tada-client/internal/config"
	"github.com/Makepad-fr/tada-client/internal/logging"
	"github.com/Makepad-fr/tada-client/internal/ui"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Root flags (apply to every subcommand)
	groupPending := flag.Bool("group", false, "group find output by pending/done")
	apiURL := flag.String("api", "", "API base URL")
	configFile := flag.String("config", "", "extra config file")
	theme := flag.String("theme", "", "classic | neon | mono")
	logLevel := flag.String("log-level", "", "debug | info | warn | error")
	flag.Usage = func() { cli.PrintHelp(os.Stderr) }
	flag.Parse()

	// Hand the remaining args to the CLI runner.
	args := flag.Args()
	if len(args) == 0 {
		cli.PrintHelp(os.Stderr)
		return 2
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		ui.Fail(os.Stderr, "config: "+err.Error())
		return 2
	}
	if *apiURL != "" {
		cfg.APIURL = *apiURL
	}
	if *theme != "" {
		cfg.Theme = *theme
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		ui.Fail(os.Stderr, "config: "+err.Error())
		return 2
	}
	ui.SetTheme(cfg.Theme)

	logOpts := logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile}
	if args[0] != "ls" {
		// The list view owns the terminal; everything else may log to stderr.
		logOpts.Fallback = os.Stderr
	}
	logger, closeLog, err := logging.New(logOpts)
	if err != nil {
		ui.Fail(os.Stderr, "log: "+err.Error())
		return 1
	}
	defer func() { _ = closeLog() }()
	logger.Debug("config loaded", "api", cfg.APIURL, "files", cfg.Files)

	store, err := auth.DefaultStore()
	var sessionFile string
	if err != nil {
		logger.Warn("no credentials store", "err", err)
	} else {
		sessionFile = filepath.Join(store.Dir, "session.json")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code := cli.Run(ctx, args, cli.Options{
		Group:  *groupPending,
		Config: cfg,
		Logger: logger,
		Auth:   store,

		SessionFile: sessionFile,
	})
	if code != 0 {
		fmt.Fprintln(os.Stderr)
	}
	return code
}
