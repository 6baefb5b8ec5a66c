package reload

import (
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/extkit/cli/internal/entry"
	"github.com/extkit/cli/internal/output"
)

func testEntries() *entry.Entries {
	ents := &entry.Entries{
		Background: entry.NewMap(),
		Content:    entry.NewMap(),
		Pages:      entry.NewMap(),
	}
	ents.Background.Add("src/background", "src/background.ts")
	ents.Content.Add("src/content", "src/content.ts")
	ents.Pages.Add("src/popup", "src/popup.ts")
	ents.HTMLFiles = []string{"popup.html"}
	return ents
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func startSession(t *testing.T) *Session {
	t.Helper()
	s := NewSession(output.NewTest(io.Discard))
	s.delay = 10 * time.Millisecond
	require.NoError(t, s.Start(freePort(t)))
	t.Cleanup(func() { s.Close() })
	return s
}

func dial(t *testing.T, s *Session) *websocket.Conn {
	t.Helper()
	url := fmt.Sprintf("ws://127.0.0.1:%d/reload", s.Port())
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	return string(data)
}

func TestSessionLifecycle(t *testing.T) {
	s := NewSession(output.NewTest(io.Discard))
	assert.Equal(t, StateInit, s.State())

	require.NoError(t, s.Start(freePort(t)))
	assert.Equal(t, StateActive, s.State())

	require.Error(t, s.Start(freePort(t)))

	require.NoError(t, s.Close())
	assert.Equal(t, StateClosed, s.State())
}

func TestStartSkipsBusyPort(t *testing.T) {
	port := freePort(t)
	busy, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	require.NoError(t, err)
	defer busy.Close()

	s := NewSession(output.NewTest(io.Discard))
	require.NoError(t, s.Start(port))
	defer s.Close()

	assert.Equal(t, port+1, s.Port())
}

func TestNotifyExtensionChange(t *testing.T) {
	s := startSession(t)
	conn := dial(t, s)

	require.Eventually(t, func() bool { return s.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	s.Notify([]string{"src/background.ts"}, testEntries())

	assert.Equal(t, MessageReloadBackground, readMessage(t, conn))
	assert.Equal(t, MessageReloadContent, readMessage(t, conn))
}

func TestNotifyPageOnlyChange(t *testing.T) {
	s := startSession(t)
	conn := dial(t, s)

	require.Eventually(t, func() bool { return s.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	s.Notify([]string{"src/popup.ts", "popup.html"}, testEntries())

	assert.Equal(t, MessageReloadPage, readMessage(t, conn))

	// Nothing else follows a page-only reload.
	conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
}

func TestNotifyUnattributableChange(t *testing.T) {
	s := startSession(t)
	conn := dial(t, s)

	require.Eventually(t, func() bool { return s.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	s.Notify([]string{"data/rules.json"}, testEntries())

	assert.Equal(t, MessageReloadBackground, readMessage(t, conn))
	assert.Equal(t, MessageReloadContent, readMessage(t, conn))
}

func TestNotifyReachesEveryClient(t *testing.T) {
	s := startSession(t)
	first := dial(t, s)
	second := dial(t, s)

	require.Eventually(t, func() bool { return s.ClientCount() == 2 },
		time.Second, 10*time.Millisecond)

	s.Notify([]string{"popup.html"}, testEntries())

	assert.Equal(t, MessageReloadPage, readMessage(t, first))
	assert.Equal(t, MessageReloadPage, readMessage(t, second))
}

func TestDisconnectedClientIsDropped(t *testing.T) {
	s := startSession(t)
	conn := dial(t, s)

	require.Eventually(t, func() bool { return s.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	conn.Close()

	require.Eventually(t, func() bool { return s.ClientCount() == 0 },
		time.Second, 10*time.Millisecond)
}

func TestCloseNotifiesClients(t *testing.T) {
	s := startSession(t)
	conn := dial(t, s)

	require.Eventually(t, func() bool { return s.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	require.NoError(t, s.Close())
	assert.Equal(t, StateClosed, s.State())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "expected going-away close, got %v", err)
}

func TestNotifyAfterClose(t *testing.T) {
	s := startSession(t)
	require.NoError(t, s.Close())

	// Must not panic or block.
	s.Notify([]string{"src/background.ts"}, testEntries())
}
