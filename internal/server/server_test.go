package server

import (
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/clipstash/internal/history"
	"go.klb.dev/clipstash/internal/item"
	"go.klb.dev/clipstash/internal/message"
	"go.klb.dev/clipstash/internal/wire"
)

func startOwner(t *testing.T, store *history.Store) *Owner {
	t.Helper()
	owner := NewOwner(store)
	go owner.Run()
	t.Cleanup(owner.Stop)
	return owner
}

func startLoop(t *testing.T, handle Handler) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.sock")
	ln, err := net.Listen("unix", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() { _ = New(ln, handle).Serve() }()
	return path
}

func send(t *testing.T, path string, msg *message.Message) *message.Message {
	t.Helper()
	conn, err := net.Dial("unix", path)
	require.NoError(t, err)
	wc := wire.New(conn)
	defer wc.Close()

	raw, err := msg.Encode()
	require.NoError(t, err)
	require.NoError(t, wc.WriteMessage(raw))

	payload, err := wc.ReadMessage()
	if err != nil || len(payload) == 0 {
		return nil
	}
	resp, err := message.Decode(payload)
	require.NoError(t, err)
	return resp
}

func TestOwnerSerializesMutations(t *testing.T) {
	store := history.New(1000)
	owner := startOwner(t, store)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				owner.Do(func(s *history.Store) {
					s.Add(item.NewText("x"), true, 0)
				})
			}
		}()
	}
	wg.Wait()

	var n int
	require.True(t, owner.Do(func(s *history.Store) { n = s.Len() }))
	assert.Equal(t, 500, n)
}

func TestOwnerDoAfterStop(t *testing.T) {
	owner := NewOwner(history.New(10))
	go owner.Run()
	owner.Stop()
	assert.False(t, owner.Do(func(*history.Store) {}))
}

func TestClipboardMessageLandsAtRowZero(t *testing.T) {
	store := history.New(10)
	owner := startOwner(t, store)
	path := startLoop(t, HistoryHandler(owner))

	resp := send(t, path, message.NewText("testhost", "first"))
	assert.Nil(t, resp, "clipboard updates are fire-and-forget")
	resp = send(t, path, message.NewText("testhost", "second"))
	assert.Nil(t, resp)

	require.Eventually(t, func() bool {
		var n int
		owner.Do(func(s *history.Store) { n = s.Len() })
		return n == 2
	}, 2*time.Second, 10*time.Millisecond)

	var front string
	owner.Do(func(s *history.Store) { front = s.At(0).Text() })
	assert.Equal(t, "second", front)
}

func TestDuplicateCaptureIsDropped(t *testing.T) {
	store := history.New(10)
	owner := startOwner(t, store)
	path := startLoop(t, HistoryHandler(owner))

	send(t, path, message.NewText("testhost", "same"))
	send(t, path, message.NewText("testhost", "same"))

	time.Sleep(50 * time.Millisecond)
	var n int
	owner.Do(func(s *history.Store) { n = s.Len() })
	assert.Equal(t, 1, n)
}

func TestPingGetsPong(t *testing.T) {
	owner := startOwner(t, history.New(10))
	path := startLoop(t, HistoryHandler(owner))

	resp := send(t, path, &message.Message{Type: message.TypePing})
	require.NotNil(t, resp)
	assert.Equal(t, message.TypePong, resp.Type)
}

func TestProbeFrameIsNotDispatched(t *testing.T) {
	store := history.New(10)
	owner := startOwner(t, store)
	path := startLoop(t, HistoryHandler(owner))

	conn, err := net.Dial("unix", path)
	require.NoError(t, err)
	wc := wire.New(conn)
	require.NoError(t, wc.WriteProbe())
	_ = wc.Close()

	// a real message after the probe proves the loop survived it
	send(t, path, message.NewText("testhost", "after"))
	require.Eventually(t, func() bool {
		var n int
		owner.Do(func(s *history.Store) { n = s.Len() })
		return n == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMalformedPayloadIsDiscarded(t *testing.T) {
	owner := startOwner(t, history.New(10))
	path := startLoop(t, HistoryHandler(owner))

	conn, err := net.Dial("unix", path)
	require.NoError(t, err)
	wc := wire.New(conn)
	require.NoError(t, wc.WriteMessage([]byte("{not json")))
	_ = wc.Close()

	send(t, path, message.NewText("testhost", "still alive"))
	require.Eventually(t, func() bool {
		var n int
		owner.Do(func(s *history.Store) { n = s.Len() })
		return n == 1
	}, 2*time.Second, 10*time.Millisecond)
}
