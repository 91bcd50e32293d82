// Package wire frames opaque byte payloads over a stream socket.
//
// Wire format (one frame):
//
//	uint32 length (big-endian) | length raw bytes
//
// A frame with length 0 is the probe/no-op used by the single-instance
// hand-off; it carries no payload and is never forwarded to the history
// store. Reads are all-or-nothing: a frame is either delivered complete or
// the read fails and the connection must be considered dead.
package wire

import (
	"encoding/binary"
	"fmt"
	"net"
	"time"
)

const (
	// MaxMessageSize is the largest payload we will read (16 MiB).
	MaxMessageSize = 16 * 1024 * 1024

	// DefaultReadTimeout bounds each wait for more socket data. The wait
	// restarts whenever bytes arrive, so a slow sender fails only when it
	// stalls completely.
	DefaultReadTimeout = 1000 * time.Millisecond

	writeTimeout = 5 * time.Second
)

// Conn wraps a net.Conn with length-prefixed framing.
type Conn struct {
	conn        net.Conn
	readTimeout time.Duration
}

// New wraps conn with the default per-wait read timeout.
func New(conn net.Conn) *Conn {
	return &Conn{conn: conn, readTimeout: DefaultReadTimeout}
}

// SetReadTimeout overrides the per-wait read timeout. Zero or negative
// restores the default.
func (c *Conn) SetReadTimeout(d time.Duration) {
	if d <= 0 {
		d = DefaultReadTimeout
	}
	c.readTimeout = d
}

// Close closes the underlying connection.
func (c *Conn) Close() error { return c.conn.Close() }

// ReadMessage reads one complete frame and returns its payload. A probe
// frame yields an empty payload and nil error. Any timeout or short read
// fails the whole message; no partial payload is ever returned.
func (c *Conn) ReadMessage() ([]byte, error) {
	var prefix [4]byte
	if err := c.readFull(prefix[:]); err != nil {
		return nil, fmt.Errorf("read length prefix: %w", err)
	}

	length := binary.BigEndian.Uint32(prefix[:])
	if length == 0 {
		return nil, nil
	}
	if length > MaxMessageSize {
		return nil, fmt.Errorf("message too large (%d bytes)", length)
	}

	payload := make([]byte, length)
	if err := c.readFull(payload); err != nil {
		return nil, fmt.Errorf("read payload (%d bytes): %w", length, err)
	}
	return payload, nil
}

// WriteMessage writes the 4-byte length prefix followed by payload as one
// logical write.
func (c *Conn) WriteMessage(payload []byte) error {
	if len(payload) > MaxMessageSize {
		return fmt.Errorf("message too large (%d bytes)", len(payload))
	}

	frame := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[4:], payload)

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_, err := c.conn.Write(frame)
	_ = c.conn.SetWriteDeadline(time.Time{})
	return err
}

// WriteProbe writes one zero-length frame, the hand-off/no-op signal.
func (c *Conn) WriteProbe() error { return c.WriteMessage(nil) }

// readFull fills buf completely, restarting the read deadline before each
// wait so the timeout bounds silence, not total transfer time.
func (c *Conn) readFull(buf []byte) error {
	for read := 0; read < len(buf); {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			return err
		}
		n, err := c.conn.Read(buf[read:])
		read += n
		if err != nil && read < len(buf) {
			return err
		}
	}
	_ = c.conn.SetReadDeadline(time.Time{})
	return nil
}
