package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"vigil/pkg/dispatch"
	"vigil/pkg/engine"
	"vigil/pkg/feed"
	"vigil/pkg/store"

	"github.com/spf13/cobra"
)

// newRunCmd creates the "vigil run" subcommand.
func newRunCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the escalation engine",
		Long:  "Starts the engine: opens the audit database, listens on the\ncollaborator feed socket, and watches the spool directory.\nRuns until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file (default $VIGIL_HOME/vigil.toml)")

	return cmd
}

func runEngine(cmd *cobra.Command, configPath string) error {
	paths, err := ResolvePaths()
	if err != nil {
		return fmt.Errorf("resolve paths: %w", err)
	}
	if err := os.MkdirAll(paths.VigilHome, 0o755); err != nil {
		return fmt.Errorf("create vigil home: %w", err)
	}

	if configPath == "" {
		if _, statErr := os.Stat(paths.ConfigPath); statErr == nil {
			configPath = paths.ConfigPath
		}
	}
	cfg, err := engine.Load(configPath)
	if err != nil {
		return err
	}
	cfg = applyPathDefaults(cfg, paths)

	log, closeLog := setupLogger(cfg.LogFile, parseLevel(cfg.LogLevel))
	defer func() { _ = closeLog() }()

	lex, err := cfg.Lexicon()
	if err != nil {
		return err
	}

	db, err := openDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	st, err := store.New(db)
	if err != nil {
		return err
	}

	notifier := newFileNotifier(filepath.Join(paths.VigilHome, "notifications.jsonl"), log)
	disp := dispatch.New(cfg.DispatchRuntimeConfig(), st, notifier, dispatch.DefaultCatalog(), log)
	eng := engine.New(cfg, lex, st, disp, log)
	srv := feed.NewServer(eng, log)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.SpoolDir, 0o755); err != nil {
		return fmt.Errorf("create spool dir: %w", err)
	}
	spool := feed.NewSpool(cfg.SpoolDir, srv, log)
	go func() {
		if err := spool.Run(ctx); err != nil {
			log.Error("spool watcher stopped", "error", err)
		}
	}()

	log.Info("vigil engine started",
		"socket", cfg.SocketPath, "db", cfg.DBPath, "spool", cfg.SpoolDir)

	err = srv.Run(ctx, cfg.SocketPath)

	// Let in-flight async interventions drain before the audit db closes.
	disp.Wait()
	log.Info("vigil engine stopped")
	return err
}
