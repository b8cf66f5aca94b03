package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"towline/internal/tasks"
)

func TestRemoteFilename(t *testing.T) {
	cases := []struct {
		locator string
		want    string
	}{
		{"https://example.com/pub/file.iso", "file.iso"},
		{"https://example.com/file.iso?token=abc", "file.iso"},
		{"https://example.com/", ""},
		{"https://example.com", ""},
		{"ftp://mirror.example.org/a/b/c.tar.gz", "c.tar.gz"},
	}
	for _, tc := range cases {
		if got := remoteFilename(tc.locator); got != tc.want {
			t.Errorf("remoteFilename(%q) = %q, want %q", tc.locator, got, tc.want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	cases := []struct {
		value int64
		want  string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{2048, "2.0 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
	}
	for _, tc := range cases {
		if got := formatBytes(tc.value); got != tc.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tc.value, got, tc.want)
		}
	}
}

func TestFormatProgress(t *testing.T) {
	total := int64(1000)
	task := &tasks.Task{SizeTransferred: 500, SizeTotal: &total}
	if got := formatProgress(task); !strings.Contains(got, "50%") {
		t.Errorf("expected percentage in %q", got)
	}

	unknown := &tasks.Task{SizeTransferred: 0}
	if got := formatProgress(unknown); got != "-" {
		t.Errorf("expected placeholder for no progress, got %q", got)
	}
}

func TestConfigInitAndShow(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")

	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"--config", configPath, "config", "init"})
	if err := root.Execute(); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, err := os.Stat(configPath); err != nil {
		t.Fatalf("expected config file written: %v", err)
	}

	// A second init must refuse to overwrite.
	root = newRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"--config", configPath, "config", "init"})
	if err := root.Execute(); err == nil {
		t.Fatal("expected refusal to overwrite existing config")
	}

	root = newRootCommand()
	out.Reset()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"--config", configPath, "config", "show"})
	if err := root.Execute(); err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out.String(), "[paths]") {
		t.Fatalf("expected TOML output, got %q", out.String())
	}
}

func TestRenderTablePlain(t *testing.T) {
	rendered := renderTable(
		[]string{"id", "state"},
		[][]string{{"abc", "waiting"}},
		[]columnAlignment{alignLeft, alignLeft},
	)
	if !strings.Contains(rendered, "ID") || !strings.Contains(rendered, "waiting") {
		t.Fatalf("unexpected table output: %q", rendered)
	}
}
