// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// hoststream is the streaming client. It lists the hosts a directory
// broker announces, requests a session with the one the user picks, and
// forwards keyboard and mouse input to it from the terminal.
//
// With --headless HOST it runs without a terminal UI and keeps a session
// open to the named host, reconnecting whenever the host reappears.
// --list-hosts prints the broker's current host list and exits.
package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path"
	"syscall"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/hoststream/lib/config"
	"github.com/bureau-foundation/hoststream/lib/hostdir"
	"github.com/bureau-foundation/hoststream/lib/schema"
	"github.com/bureau-foundation/hoststream/lib/stream"
	"github.com/bureau-foundation/hoststream/lib/tui"
	"github.com/bureau-foundation/hoststream/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath    string
		headlessHost  string
		metricsListen string
		logOutput     string
		listHosts     bool
	)

	flagSet := pflag.NewFlagSet("hoststream", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to hoststream.yaml (default: $"+config.EnvironmentVariable+", then built-in defaults)")
	flagSet.StringVar(&headlessHost, "headless", "", "run without a UI, keeping a session open to the named host")
	flagSet.StringVar(&metricsListen, "metrics-listen", "", "serve Prometheus metrics on this address (overrides metrics.listen)")
	flagSet.StringVar(&logOutput, "log-output", "", "also write JSON log records to this file")
	flagSet.BoolVar(&listHosts, "list-hosts", false, "print the directory's hosts and exit")
	flagSet.BoolP("help", "h", false, "show help")

	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Println(version.Banner("hoststream"))
		return nil
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if metricsListen != "" {
		cfg.Metrics.Listen = metricsListen
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch {
	case listHosts:
		return printHosts(ctx, cfg)
	case headlessHost != "":
		return runHeadless(ctx, cfg, headlessHost, logOutput)
	default:
		return runInteractive(ctx, cfg, logOutput)
	}
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `hoststream: stream a remote host from the terminal.

Connects to the host directory, lists announced hosts, and streams the
selected one. While streaming, keys and mouse input go to the host;
ctrl+b holds or releases the virtual back button (hold it to open the
stream menu) and f10 opens the menu directly.

Usage:
  hoststream [flags]

Examples:
  # Browse hosts from the default local broker
  hoststream

  # Keep a session open to "den" without a UI
  hoststream --headless den --metrics-listen 127.0.0.1:9464

  # Show what the broker announces
  hoststream --config ~/.config/hoststream.yaml --list-hosts

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}

// loadConfig resolves configuration: an explicit path wins, then the
// environment variable, then the defaults.
func loadConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	if os.Getenv(config.EnvironmentVariable) != "" {
		return config.Load()
	}
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runInteractive runs the terminal UI until the user quits or ctx is
// done.
func runInteractive(ctx context.Context, cfg *config.Config, logOutput string) error {
	level, err := cfg.Log.SlogLevel()
	if err != nil {
		return err
	}
	tuiHandler := tui.NewLogHandler(level)
	logger, closer, err := newLogger(tuiHandler, logOutput)
	if err != nil {
		return fmt.Errorf("opening log file %s: %w", logOutput, err)
	}
	defer closer.Close()

	dispatcher := newTeaDispatcher()
	board := &statusBoard{}
	var program *tea.Program

	c, err := newClient(ctx, clientOptions{
		Config:         cfg,
		Logger:         logger,
		Dispatcher:     dispatcher,
		NewMedia:       func() stream.Media { return &terminalMedia{board: board} },
		InputProviders: []stream.InputProvider{virtualPad{}},
		OnHostsChanged: func(hosts []schema.HostInfo) {
			program.Send(hostsMsg(hosts))
		},
	})
	if err != nil {
		return err
	}
	c.controller.RegisterListener(uiListener{board: board})

	program = tea.NewProgram(newModel(c.controller, board),
		tea.WithAltScreen(),
		tea.WithMouseAllMotion(),
		tea.WithContext(ctx),
	)
	dispatcher.attach(program)
	tuiHandler.SetSender(program)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		dispatcher.run(runCtx)
	}()
	if err := c.start(runCtx); err != nil {
		return err
	}

	_, runErr := program.Run()
	dispatcher.programExited()
	// Close runs teardown the program never got to, so the pump and the
	// directory stop only after it returns.
	c.close()
	cancel()
	<-pumpDone

	if runErr != nil && ctx.Err() == nil {
		return runErr
	}
	return nil
}

// printHosts fetches the broker's host list over HTTP.
func printHosts(ctx context.Context, cfg *config.Config) error {
	endpoint, err := hostsURL(cfg.Directory.URL)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	hosts, err := hostdir.FetchHosts(ctx, http.DefaultClient, endpoint)
	if err != nil {
		return err
	}
	minimum := cfg.Directory.MinimumVersion()
	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "NAME\tADDRESS\tVERSION\tSUPPORTED")
	for _, host := range hosts {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%t\n", host.Name, host.Address, host.Version, hostdir.Supported(host, minimum))
	}
	return writer.Flush()
}

// hostsURL derives the broker's HTTP host list endpoint from its
// WebSocket URL: ws://h/directory becomes http://h/hosts.
func hostsURL(directoryURL string) (string, error) {
	parsed, err := url.Parse(directoryURL)
	if err != nil {
		return "", fmt.Errorf("directory url: %w", err)
	}
	switch parsed.Scheme {
	case "ws":
		parsed.Scheme = "http"
	case "wss":
		parsed.Scheme = "https"
	default:
		return "", fmt.Errorf("directory url %q: scheme must be ws or wss", directoryURL)
	}
	parsed.Path = path.Join(path.Dir(parsed.Path), "hosts")
	parsed.RawQuery = ""
	return parsed.String(), nil
}
