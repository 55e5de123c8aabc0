// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// hoststream-host is a development host. It runs the directory broker
// that clients connect to, announces itself as the only host, issues
// session tokens, and accepts stream connections over TCP or WebRTC.
// Input arriving from clients is logged and counted rather than
// injected, which makes it a test peer for the client.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/hoststream/lib/config"
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
		configPath string
		logInput   bool
		logOutput  string
	)

	flagSet := pflag.NewFlagSet("hoststream-host", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to hoststream.yaml (default: $"+config.EnvironmentVariable+", then built-in defaults)")
	flagSet.BoolVar(&logInput, "log-input", false, "log every input message at debug level")
	flagSet.StringVar(&logOutput, "log-output", "", "write JSON log records to this file instead of stderr")
	flagSet.BoolP("help", "h", false, "show help")

	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Println(version.Banner("hoststream-host"))
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

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	level, err := cfg.Log.SlogLevel()
	if err != nil {
		return err
	}

	output := os.Stderr
	if logOutput != "" {
		file, err := os.OpenFile(logOutput, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer file.Close()
		output = file
	}
	var handler slog.Handler = slog.NewTextHandler(output, &slog.HandlerOptions{Level: level})
	if logOutput != "" {
		handler = slog.NewJSONHandler(output, &slog.HandlerOptions{Level: level})
	}
	logger := slog.New(handler)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server, err := newHostServer(cfg, logger, logInput)
	if err != nil {
		return err
	}
	return server.run(ctx)
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `hoststream-host: development streaming host.

Serves the host directory at ws://<host.broker_listen>/directory, the
host list at /hosts, and Prometheus metrics at /metrics. Stream
connections arrive on host.stream_listen (TCP) or through the broker's
WebRTC signaling, per transport.kind.

Usage:
  hoststream-host [flags]

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}

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
