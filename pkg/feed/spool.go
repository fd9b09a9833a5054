package feed

import (
	"bufio"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Spool ingests message files dropped into a directory by offline
// collaborators: each *.jsonl file holds line-delimited feed messages and is
// renamed to *.done after ingest. Changes are picked up via fsnotify with a
// periodic fallback poll as a safety net.
type Spool struct {
	dir     string
	handler *Server
	log     *slog.Logger

	// PollInterval is the fallback poll cadence (default 30s).
	PollInterval time.Duration
}

// NewSpool creates a Spool over dir.
func NewSpool(dir string, handler *Server, log *slog.Logger) *Spool {
	if log == nil {
		log = slog.Default()
	}
	return &Spool{dir: dir, handler: handler, log: log, PollInterval: 30 * time.Second}
}

// Run watches the spool directory until ctx is cancelled. Falls back to pure
// polling when fsnotify is unavailable.
func (sp *Spool) Run(ctx context.Context) error {
	// Ingest whatever is already waiting before watching.
	sp.Sweep(ctx)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		sp.runPoll(ctx)
		return nil
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(sp.dir); err != nil {
		sp.runPoll(ctx)
		return nil
	}

	ticker := time.NewTicker(sp.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-watcher.Events:
			sp.Sweep(ctx)
		case werr := <-watcher.Errors:
			if werr != nil {
				sp.log.Warn("spool watcher error", "error", werr)
			}
		case <-ticker.C:
			// Safety net poll.
			sp.Sweep(ctx)
		}
	}
}

func (sp *Spool) runPoll(ctx context.Context) {
	ticker := time.NewTicker(sp.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sp.Sweep(ctx)
		}
	}
}

// Sweep ingests every pending *.jsonl file in name order, so multi-file
// drops replay in a stable sequence.
func (sp *Spool) Sweep(ctx context.Context) {
	entries, err := os.ReadDir(sp.dir)
	if err != nil {
		sp.log.Warn("spool read failed", "dir", sp.dir, "error", err)
		return
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".jsonl") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		sp.ingestFile(ctx, filepath.Join(sp.dir, name))
	}
}

// ingestFile replays one message file through the shared handler and marks
// it done. Individual bad lines are logged and skipped; the file is still
// consumed so a poison line cannot wedge the spool.
func (sp *Spool) ingestFile(ctx context.Context, path string) {
	f, err := os.Open(path)
	if err != nil {
		sp.log.Warn("spool open failed", "file", path, "error", err)
		return
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lines, failed := 0, 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		msg, err := Decode([]byte(line))
		if err != nil {
			sp.log.Warn("spool line dropped", "file", path, "error", err)
			failed++
			continue
		}
		if reply := sp.handler.Handle(ctx, msg); reply.Type == MsgErr {
			sp.log.Warn("spool message rejected", "file", path, "error", reply.Ack.Error)
			failed++
		}
		lines++
	}
	_ = f.Close()

	if err := os.Rename(path, path+".done"); err != nil {
		sp.log.Warn("spool rename failed", "file", path, "error", err)
		return
	}
	sp.log.Info("spool file ingested", "file", path, "messages", lines, "failed", failed)
}
