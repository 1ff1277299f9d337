package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wrenware/scrivener/internal/config"
)

func TestRunInit_CreatesWorkspace(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer

	if err := run(context.Background(), &out, &out, []string{"init", dir}); err != nil {
		t.Fatalf("init: %v", err)
	}

	for _, sub := range []string{"notes", "memory", "data"} {
		if fi, err := os.Stat(filepath.Join(dir, sub)); err != nil || !fi.IsDir() {
			t.Errorf("missing directory %s", sub)
		}
	}

	// The written config parses.
	cfgPath := filepath.Join(dir, "scrivener.yaml")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("generated config does not load: %v", err)
	}
	if cfg.OpenAI.Model != "gpt-4o" {
		t.Errorf("model = %q", cfg.OpenAI.Model)
	}
	if cfg.Agent.MaxRounds != 8 {
		t.Errorf("max_rounds = %d", cfg.Agent.MaxRounds)
	}
}

func TestRunInit_NeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "scrivener.yaml")
	if err := os.WriteFile(cfgPath, []byte("# customized\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := runInit(&out, dir); err != nil {
		t.Fatalf("init: %v", err)
	}

	data, err := os.ReadFile(cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "# customized") {
		t.Error("init overwrote an existing config")
	}
}
