package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.design/x/clipboard"

	"go.klb.dev/clipstash/internal/gate"
	"go.klb.dev/clipstash/internal/item"
	"go.klb.dev/clipstash/internal/message"
	"go.klb.dev/clipstash/internal/server"
	"go.klb.dev/clipstash/internal/wire"
)

const defaultPollInterval = 250 * time.Millisecond

func newMonitorCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Watch the OS clipboard and forward captures to the server",
		Long: `Polls the OS clipboard and sends every new capture to the history
server socket as one framed message.

The monitor binds its own per-user socket so only one monitor runs per
user; a second monitor hands off and exits. The server may push runtime
settings (poll interval) to that socket.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runMonitor(v) },
	}

	f := cmd.Flags()
	f.Duration("poll-interval", defaultPollInterval, "clipboard poll interval")
	f.Int("max-item-size", 8*1024*1024, "skip captures larger than this many bytes")
	f.String("source", defaultSource(), "name reported for captures from this host")
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runMonitor(v *viper.Viper) error {
	setupLogging(v)

	mg, state, err := gate.TryBecomeServer(gate.MonitorServer)
	if err != nil {
		return err
	}
	if state == gate.Yielded {
		slog.Info("monitor already running, handing off")
		return nil
	}
	defer mg.Close()

	if err := clipboard.Init(); err != nil {
		return fmt.Errorf("clipboard unavailable: %w", err)
	}

	m := &monitor{
		source:  v.GetString("source"),
		maxSize: v.GetInt("max-item-size"),
	}
	m.interval.Store(int64(v.GetDuration("poll-interval")))

	loop := server.New(mg.Listener(), m.handleControl)
	go func() {
		if err := loop.Serve(); err != nil {
			slog.Error("monitor control socket failed", "err", err)
		}
	}()

	slog.Info("clipboard monitor ready", "socket", mg.Name(), "interval", m.pollInterval())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	m.poll(ctx)
	return nil
}

// monitor owns the clipboard poll loop of this process.
type monitor struct {
	source   string
	maxSize  int
	interval atomic.Int64 // poll interval in nanoseconds
	lastHash uint64
}

func (m *monitor) pollInterval() time.Duration {
	return time.Duration(m.interval.Load())
}

func (m *monitor) poll(ctx context.Context) {
	t := time.NewTicker(m.pollInterval())
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.check()
			t.Reset(m.pollInterval())
		}
	}
}

// check reads the current clipboard and forwards it if it differs from
// the last forwarded capture.
func (m *monitor) check() {
	raw := item.New()
	if text := clipboard.Read(clipboard.FmtText); len(text) > 0 {
		raw.SetFormat(item.FormatText, text)
	}
	if img := clipboard.Read(clipboard.FmtImage); len(img) > 0 {
		raw.SetFormat(item.FormatImage, img)
	}

	capture := raw.Clone(nil)
	if capture.Empty() {
		return
	}

	size := 0
	for _, key := range capture.Formats() {
		size += len(capture.Format(key))
	}
	if size > m.maxSize {
		slog.Debug("capture too large, skipped", "bytes", size, "max", m.maxSize)
		return
	}

	h := capture.Hash()
	if h == m.lastHash {
		return
	}
	m.lastHash = h

	if err := m.send(capture); err != nil {
		slog.Warn("history server unreachable", "err", err)
	} else {
		slog.Debug("capture forwarded", "formats", capture.Len(), "bytes", size)
	}
}

func (m *monitor) send(it *item.Item) error {
	conn, err := gate.Dial(gate.HistoryServer)
	if err != nil {
		return err
	}
	wc := wire.New(conn)
	defer wc.Close()

	raw, err := message.FromItem(m.source, it).Encode()
	if err != nil {
		return err
	}
	return wc.WriteMessage(raw)
}

// handleControl serves the monitor's own socket: settings pushes from the
// main process and liveness pings.
func (m *monitor) handleControl(msg *message.Message) *message.Message {
	switch msg.Type {
	case message.TypeSettings:
		if msg.PollIntervalMS > 0 {
			m.interval.Store(int64(time.Duration(msg.PollIntervalMS) * time.Millisecond))
			slog.Info("poll interval updated", "interval", m.pollInterval())
		}
		return nil
	case message.TypePing:
		return &message.Message{Type: message.TypePong}
	default:
		slog.Warn("unexpected message on monitor socket", "type", msg.Type)
		return nil
	}
}
