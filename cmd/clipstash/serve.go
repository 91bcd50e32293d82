package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipstash/internal/gate"
	"go.klb.dev/clipstash/internal/history"
	"go.klb.dev/clipstash/internal/server"
)

// saveDelay batches bursts of history mutations into one write.
const saveDelay = 1 * time.Second

func newServeCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the clipboard history server",
		Long: `Starts the clipstash history server on the per-user socket.

If another instance is already serving under the same user, this process
sends it a hand-off probe and exits 0. Otherwise it binds the socket, loads
persisted history, and spawns the clipboard monitor process (disable with
--no-monitor).`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runServe(v) },
	}

	f := cmd.Flags()
	f.Int("max-items", history.DefaultCapacity, "maximum number of history entries")
	f.String("history-file", defaultHistoryFile(), "path of the persisted history")
	f.Bool("no-monitor", false, "do not spawn the clipboard monitor process")
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runServe(v *viper.Viper) error {
	setupLogging(v)

	maxItems := v.GetInt("max-items")
	histFile := v.GetString("history-file")

	g, state, err := gate.TryBecomeServer(gate.HistoryServer)
	if err != nil {
		return err
	}
	if state == gate.Yielded {
		slog.Info("another instance is running, handing off")
		return nil
	}
	defer g.Close()

	store := history.New(maxItems)
	loadHistory(store, histFile)

	owner := server.NewOwner(store)
	saver := &delayedSaver{owner: owner, path: histFile}
	store.Listen(func(history.Change) { saver.arm() })
	go owner.Run()
	defer owner.Stop()

	if !v.GetBool("no-monitor") {
		spawnMonitor()
	}

	slog.Info("clipstash server ready",
		"version", Version,
		"socket", g.Name(),
		"max_items", maxItems,
		"entries", store.Len(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loop := server.New(g.Listener(), server.HistoryHandler(owner))
	errCh := make(chan error, 1)
	go func() { errCh <- loop.Serve() }()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("accept loop: %w", err)
		}
	}

	saver.flush()
	return nil
}

// loadHistory tops the store up from the persisted file. Failures are
// logged, never fatal: the server starts with whatever subset loaded.
func loadHistory(store *history.Store, path string) {
	f, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("history file unavailable", "path", path, "err", err)
		}
		return
	}
	defer f.Close()

	if err := store.Load(f); err != nil {
		slog.Warn("history load incomplete", "path", path, "err", err)
	}
}

// spawnMonitor starts the clipboard monitor as a child process. The
// monitor gates on its own per-user socket, so a duplicate spawn hands
// off and exits.
func spawnMonitor() {
	exe, err := os.Executable()
	if err != nil {
		slog.Warn("cannot locate own binary, monitor not started", "err", err)
		return
	}
	cmd := exec.Command(exe, "monitor")
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		slog.Warn("monitor start failed", "err", err)
		return
	}
	slog.Info("monitor spawned", "pid", cmd.Process.Pid)
	go func() {
		if err := cmd.Wait(); err != nil {
			slog.Warn("monitor exited", "err", err)
		}
	}()
}

// delayedSaver persists the store at most once per saveDelay. Mutations
// arm a single-shot timer; further mutations while the timer is pending
// are absorbed into the same write.
type delayedSaver struct {
	owner *server.Owner
	path  string

	mu    sync.Mutex
	timer *time.Timer
}

func (ds *delayedSaver) arm() {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if ds.timer != nil {
		return
	}
	ds.timer = time.AfterFunc(saveDelay, ds.fire)
}

func (ds *delayedSaver) fire() {
	ds.mu.Lock()
	ds.timer = nil
	ds.mu.Unlock()
	ds.save()
}

// flush cancels any pending timer and saves immediately.
func (ds *delayedSaver) flush() {
	ds.mu.Lock()
	if ds.timer != nil {
		ds.timer.Stop()
		ds.timer = nil
	}
	ds.mu.Unlock()
	ds.save()
}

func (ds *delayedSaver) save() {
	ds.owner.Do(func(s *history.Store) {
		if err := saveStore(s, ds.path); err != nil {
			slog.Warn("history save failed", "path", ds.path, "err", err)
		}
	})
}

// saveStore writes the history atomically: temp file in the same
// directory, then rename.
func saveStore(s *history.Store, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".history-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := s.Save(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
