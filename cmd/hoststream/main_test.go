// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestHostsURL(t *testing.T) {
	tests := []struct {
		directory string
		want      string
	}{
		{"ws://127.0.0.1:27035/directory", "http://127.0.0.1:27035/hosts"},
		{"wss://broker.example/stream/directory?client=tv", "https://broker.example/stream/hosts"},
		{"ws://broker.example", "http://broker.example/hosts"},
	}
	for _, test := range tests {
		got, err := hostsURL(test.directory)
		if err != nil {
			t.Errorf("hostsURL(%q): %v", test.directory, err)
			continue
		}
		if got != test.want {
			t.Errorf("hostsURL(%q) = %q, want %q", test.directory, got, test.want)
		}
	}

	if _, err := hostsURL("http://broker.example/directory"); err == nil {
		t.Error("hostsURL accepted an http URL")
	}
}

func TestLoadConfigPrecedence(t *testing.T) {
	directory := t.TempDir()
	flagPath := filepath.Join(directory, "flag.yaml")
	envPath := filepath.Join(directory, "env.yaml")
	if err := os.WriteFile(flagPath, []byte("client:\n  name: from-flag\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(envPath, []byte("client:\n  name: from-env\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HOSTSTREAM_CONFIG", envPath)

	cfg, err := loadConfig(flagPath)
	if err != nil {
		t.Fatalf("loadConfig(flag): %v", err)
	}
	if cfg.Client.Name != "from-flag" {
		t.Errorf("flag config name = %q, want from-flag", cfg.Client.Name)
	}

	cfg, err = loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig(env): %v", err)
	}
	if cfg.Client.Name != "from-env" {
		t.Errorf("env config name = %q, want from-env", cfg.Client.Name)
	}

	t.Setenv("HOSTSTREAM_CONFIG", "")
	if _, err := loadConfig(""); err != nil {
		t.Errorf("loadConfig(defaults): %v", err)
	}
}
