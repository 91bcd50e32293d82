// Package gate enforces single-instance semantics for the local servers.
//
// On startup a process probes the well-known per-user socket. If a live
// server answers the dial, the prober sends one zero-length frame (the
// hand-off signal) and yields; otherwise it removes any stale socket file
// and binds the name itself. The bound listener is exclusively owned by
// the winning process; a yielding process never touches the socket file.
package gate

import (
	"fmt"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"go.klb.dev/clipstash/internal/wire"
)

// Well-known server base names. Each gets its own per-user socket: one for
// the history server, one for the clipboard monitor.
const (
	HistoryServer = "clipstash_server"
	MonitorServer = "clipstash_monitor_server"
)

// probeTimeout bounds the connect attempt to a possibly-live server.
const probeTimeout = 2000 * time.Millisecond

// State is the outcome of TryBecomeServer.
type State int

const (
	// Yielded means another instance is authoritative; the probe frame has
	// been sent and this process should exit cleanly.
	Yielded State = iota
	// Serving means this process now owns the socket.
	Serving
)

// Gate is a bound single-instance listener.
type Gate struct {
	name string
	path string
	ln   net.Listener
}

// ServerName derives the per-user server name, so each OS user gets an
// independent instance domain.
func ServerName(base string) string {
	return base + "_" + userName()
}

func userName() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	for _, env := range []string{"USER", "USERNAME"} {
		if v := os.Getenv(env); v != "" {
			return v
		}
	}
	return "unknown"
}

// SocketPath returns the filesystem path backing the named server.
// Prefers XDG_RUNTIME_DIR, falling back to the system temp dir.
func SocketPath(name string) string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, name+".sock")
	}
	return filepath.Join(os.TempDir(), name+".sock")
}

// TryBecomeServer probes the per-user socket for base. If a server is
// already listening it hands off (one probe frame) and returns a nil Gate
// with state Yielded. Otherwise it removes any stale socket artifact,
// binds the name and returns the owning Gate with state Serving.
func TryBecomeServer(base string) (*Gate, State, error) {
	name := ServerName(base)
	path := SocketPath(name)

	conn, err := net.DialTimeout("unix", path, probeTimeout)
	if err == nil {
		wc := wire.New(conn)
		_ = wc.WriteProbe()
		_ = wc.Close()
		return nil, Yielded, nil
	}

	if err := removeStale(path); err != nil {
		return nil, Yielded, fmt.Errorf("remove stale socket: %w", err)
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, Yielded, fmt.Errorf("listen %s: %w", path, err)
	}
	return &Gate{name: name, path: path, ln: ln}, Serving, nil
}

// Dial connects to the per-user server for base, or fails if none is
// listening.
func Dial(base string) (net.Conn, error) {
	return net.DialTimeout("unix", SocketPath(ServerName(base)), probeTimeout)
}

// IsRunning reports whether a server for base appears to be listening.
// A cheap dial-and-close; no data is exchanged.
func IsRunning(base string) bool {
	c, err := Dial(base)
	if err != nil {
		return false
	}
	_ = c.Close()
	return true
}

// Name returns the per-user server name this gate is bound to.
func (g *Gate) Name() string { return g.name }

// Listener returns the bound listener.
func (g *Gate) Listener() net.Listener { return g.ln }

// Close releases the listener and removes the socket file.
func (g *Gate) Close() error {
	err := g.ln.Close()
	_ = removeStale(g.path)
	return err
}

// removeStale unlinks a leftover socket file from a crashed run. Paths
// that exist but are not sockets are left alone and reported as an error.
func removeStale(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.Mode()&os.ModeSocket == 0 {
		return fmt.Errorf("path exists but is not a socket: %s", path)
	}
	return os.Remove(path)
}
