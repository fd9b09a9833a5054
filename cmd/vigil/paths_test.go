package main

import (
	"path/filepath"
	"testing"

	"vigil/pkg/engine"
)

func TestResolvePaths_Defaults(t *testing.T) {
	t.Setenv("VIGIL_HOME", "/tmp/vigil-test-home")

	paths, err := ResolvePaths()
	if err != nil {
		t.Fatalf("ResolvePaths: %v", err)
	}
	if paths.VigilHome != "/tmp/vigil-test-home" {
		t.Errorf("home = %q", paths.VigilHome)
	}
	want := map[string]string{
		"config": filepath.Join(paths.VigilHome, "vigil.toml"),
		"db":     filepath.Join(paths.VigilHome, "audit.db"),
		"socket": filepath.Join(paths.VigilHome, "vigil.sock"),
		"spool":  filepath.Join(paths.VigilHome, "spool"),
	}
	got := map[string]string{
		"config": paths.ConfigPath,
		"db":     paths.DBPath,
		"socket": paths.SocketPath,
		"spool":  paths.SpoolDir,
	}
	for k, w := range want {
		if got[k] != w {
			t.Errorf("%s path = %q, want %q", k, got[k], w)
		}
	}
}

func TestResolvePaths_SpecificOverrides(t *testing.T) {
	t.Setenv("VIGIL_HOME", "/tmp/vigil-test-home")
	t.Setenv("VIGIL_DB_PATH", "/elsewhere/audit.db")
	t.Setenv("VIGIL_SOCKET_PATH", "/run/vigil.sock")

	paths, err := ResolvePaths()
	if err != nil {
		t.Fatalf("ResolvePaths: %v", err)
	}
	if paths.DBPath != "/elsewhere/audit.db" {
		t.Errorf("db = %q", paths.DBPath)
	}
	if paths.SocketPath != "/run/vigil.sock" {
		t.Errorf("socket = %q", paths.SocketPath)
	}
	// Unoverridden paths still follow VIGIL_HOME.
	if paths.ConfigPath != filepath.Join("/tmp/vigil-test-home", "vigil.toml") {
		t.Errorf("config = %q", paths.ConfigPath)
	}
}

func TestApplyPathDefaults_NoConfigResolvesUnderHome(t *testing.T) {
	t.Setenv("VIGIL_HOME", "/tmp/vigil-test-home")

	paths, err := ResolvePaths()
	if err != nil {
		t.Fatalf("ResolvePaths: %v", err)
	}
	cfg, err := engine.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg = applyPathDefaults(cfg, paths)

	// A no-config run must land on the same files the read-side commands
	// open, or status shows nothing against a live engine.
	if cfg.DBPath != paths.DBPath {
		t.Errorf("db = %q, want %q", cfg.DBPath, paths.DBPath)
	}
	if cfg.SocketPath != paths.SocketPath {
		t.Errorf("socket = %q, want %q", cfg.SocketPath, paths.SocketPath)
	}
	if cfg.SpoolDir != paths.SpoolDir {
		t.Errorf("spool = %q, want %q", cfg.SpoolDir, paths.SpoolDir)
	}
	if cfg.LogFile != paths.LogPath {
		t.Errorf("log = %q, want %q", cfg.LogFile, paths.LogPath)
	}
}

func TestApplyPathDefaults_ConfigValuesWin(t *testing.T) {
	t.Setenv("VIGIL_HOME", "/tmp/vigil-test-home")

	paths, err := ResolvePaths()
	if err != nil {
		t.Fatalf("ResolvePaths: %v", err)
	}
	cfg := applyPathDefaults(engine.Config{DBPath: "/data/other.db"}, paths)
	if cfg.DBPath != "/data/other.db" {
		t.Errorf("db = %q, configured path overridden", cfg.DBPath)
	}
	if cfg.SocketPath != paths.SocketPath {
		t.Errorf("socket = %q, want %q", cfg.SocketPath, paths.SocketPath)
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"debug":   "DEBUG",
		"info":    "INFO",
		"warn":    "WARN",
		"error":   "ERROR",
		"":        "INFO",
		"verbose": "INFO",
	}
	for in, want := range tests {
		if got := parseLevel(in).String(); got != want {
			t.Errorf("parseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
