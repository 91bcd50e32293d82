// Package server runs the accept loop for a bound instance socket and
// serializes all history mutations through a single owner goroutine.
package server

import (
	"errors"
	"log/slog"
	"net"

	"go.klb.dev/clipstash/internal/history"
	"go.klb.dev/clipstash/internal/message"
	"go.klb.dev/clipstash/internal/wire"
)

// Owner is the sole mutator of a history.Store. The store has no internal
// locking, so every access from connection handlers, timers or CLI
// plumbing is posted here and executed on one goroutine.
type Owner struct {
	store *history.Store
	ops   chan func(*history.Store)
	done  chan struct{}
}

// NewOwner wraps store. Run must be started before Do is called from
// other goroutines.
func NewOwner(store *history.Store) *Owner {
	return &Owner{
		store: store,
		ops:   make(chan func(*history.Store), 64),
		done:  make(chan struct{}),
	}
}

// Run executes posted operations until Stop is called. Call in a
// dedicated goroutine.
func (o *Owner) Run() {
	for {
		select {
		case <-o.done:
			return
		case fn := <-o.ops:
			fn(o.store)
		}
	}
}

// Stop shuts the owner down. Pending and future Do calls return false.
func (o *Owner) Stop() { close(o.done) }

// Do posts fn to the owner goroutine and waits for it to finish. Returns
// false if the owner has stopped.
func (o *Owner) Do(fn func(*history.Store)) bool {
	ran := make(chan struct{})
	wrapped := func(s *history.Store) {
		defer close(ran)
		fn(s)
	}
	select {
	case o.ops <- wrapped:
	case <-o.done:
		return false
	}
	select {
	case <-ran:
		return true
	case <-o.done:
		return false
	}
}

// Handler dispatches one decoded message and returns an optional reply.
type Handler func(msg *message.Message) *message.Message

// Loop accepts connections on a bound instance socket. Connections are
// handled to completion one at a time: read one message, dispatch, reply
// if the handler produced one. This matches the protocol's one-shot
// request/response style.
type Loop struct {
	ln     net.Listener
	handle Handler
}

// New returns a Loop serving ln with handle.
func New(ln net.Listener, handle Handler) *Loop {
	return &Loop{ln: ln, handle: handle}
}

// Serve accepts until the listener is closed.
func (l *Loop) Serve() error {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		l.serveConn(conn)
	}
}

func (l *Loop) serveConn(conn net.Conn) {
	defer conn.Close()
	wc := wire.New(conn)

	payload, err := wc.ReadMessage()
	if err != nil {
		// Timeouts and truncated frames kill the exchange; nothing partial
		// is ever dispatched.
		slog.Debug("dropping unusable connection", "err", err)
		return
	}
	if len(payload) == 0 {
		// Probe frame from a yielding instance. Read and discarded.
		slog.Debug("instance probe received")
		return
	}

	msg, err := message.Decode(payload)
	if err != nil {
		slog.Warn("malformed message discarded", "err", err)
		return
	}

	resp := l.handle(msg)
	if resp == nil {
		return
	}
	raw, err := resp.Encode()
	if err != nil {
		slog.Error("encode response failed", "err", err)
		return
	}
	if err := wc.WriteMessage(raw); err != nil {
		slog.Debug("response write failed", "err", err)
	}
}

// HistoryHandler dispatches clipboard captures into the store: decoded
// payloads are inserted at row 0, the current-clipboard slot, subject to
// the store's capacity eviction and front-entry dedup.
func HistoryHandler(owner *Owner) Handler {
	return func(msg *message.Message) *message.Message {
		switch msg.Type {
		case message.TypeClipboard:
			it, err := msg.Item()
			if err != nil {
				slog.Warn("clipboard payload discarded", "err", err)
				return nil
			}
			var accepted bool
			owner.Do(func(s *history.Store) {
				accepted = s.Add(it, false, 0)
			})
			slog.Debug("clipboard update",
				"source", msg.Source,
				"formats", len(msg.Formats),
				"accepted", accepted,
			)
			return nil

		case message.TypePing:
			return &message.Message{Type: message.TypePong}

		default:
			slog.Warn("unexpected message type", "type", msg.Type)
			return nil
		}
	}
}
