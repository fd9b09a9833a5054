package main

import (
	"fmt"
	"os"
	"path/filepath"

	"vigil/pkg/engine"
)

// Paths holds all resolved vigil state file paths.
// Use ResolvePaths() to populate this struct with defaults + env overrides.
type Paths struct {
	VigilHome  string // ~/.vigil or VIGIL_HOME
	ConfigPath string // vigil.toml or VIGIL_CONFIG
	DBPath     string // audit.db or VIGIL_DB_PATH
	SocketPath string // vigil.sock or VIGIL_SOCKET_PATH
	SpoolDir   string // spool/ (respects VIGIL_HOME)
	LogPath    string // vigil.log (respects VIGIL_HOME)
}

// ResolvePaths returns all vigil paths, respecting env var overrides.
// Environment variables:
//   - VIGIL_HOME: base directory for all vigil state (default: ~/.vigil)
//   - VIGIL_CONFIG: config file (default: $VIGIL_HOME/vigil.toml)
//   - VIGIL_DB_PATH: audit database (default: $VIGIL_HOME/audit.db)
//   - VIGIL_SOCKET_PATH: collaborator feed socket (default: $VIGIL_HOME/vigil.sock)
//
// If VIGIL_HOME is set, it becomes the base for all default paths.
// Specific env vars override both the default and the VIGIL_HOME base.
func ResolvePaths() (*Paths, error) {
	home, err := resolveVigilHome()
	if err != nil {
		return nil, err
	}

	return &Paths{
		VigilHome:  home,
		ConfigPath: resolvePathWithEnv("VIGIL_CONFIG", home, "vigil.toml"),
		DBPath:     resolvePathWithEnv("VIGIL_DB_PATH", home, "audit.db"),
		SocketPath: resolvePathWithEnv("VIGIL_SOCKET_PATH", home, "vigil.sock"),
		SpoolDir:   filepath.Join(home, "spool"),
		LogPath:    filepath.Join(home, "vigil.log"),
	}, nil
}

// applyPathDefaults fills any path the config file left unset with the
// resolved default, so a no-config engine and the read-side commands agree
// on the same database, socket, spool, and log files.
func applyPathDefaults(cfg engine.Config, paths *Paths) engine.Config {
	if cfg.DBPath == "" {
		cfg.DBPath = paths.DBPath
	}
	if cfg.SocketPath == "" {
		cfg.SocketPath = paths.SocketPath
	}
	if cfg.SpoolDir == "" {
		cfg.SpoolDir = paths.SpoolDir
	}
	if cfg.LogFile == "" {
		cfg.LogFile = paths.LogPath
	}
	return cfg
}

// resolveVigilHome returns the vigil home directory from VIGIL_HOME or ~/.vigil.
func resolveVigilHome() (string, error) {
	if v := os.Getenv("VIGIL_HOME"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".vigil"), nil
}

// resolvePathWithEnv returns the path from envKey if set, otherwise joins base + suffix.
func resolvePathWithEnv(envKey, base, suffix string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return filepath.Join(base, suffix)
}
