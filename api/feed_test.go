package api

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vainnor/airspace-engine/engine"
)

type feedMessage struct {
	RegistryVersion uint64           `json:"registry_version"`
	Conflicts       []map[string]any `json:"conflicts"`
	Error           string           `json:"error"`
}

func dialFeed(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(url, "http")+"/ws/conflicts", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFeed(t *testing.T, conn *websocket.Conn) feedMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg feedMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func startFeed(t *testing.T) (*engine.Engine, *Feed, *httptest.Server) {
	t.Helper()
	e := engine.New(nil)
	_, err := e.LoadTestData()
	require.NoError(t, err)

	feed := NewFeed(e, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		feed.Run(ctx)
		close(done)
	}()

	ts := httptest.NewServer(NewRouter(NewServer(e, WithFeed(feed))))
	t.Cleanup(func() {
		cancel()
		<-done
		ts.Close()
	})
	return e, feed, ts
}

func TestFeed_InitialReport(t *testing.T) {
	e, _, ts := startFeed(t)
	conn := dialFeed(t, ts.URL)

	msg := readFeed(t, conn)
	assert.Equal(t, e.Snapshot().Version, msg.RegistryVersion)
	assert.Len(t, msg.Conflicts, 8)
	assert.Empty(t, msg.Error)
}

func TestFeed_ReportAfterChange(t *testing.T) {
	e, feed, ts := startFeed(t)
	conn := dialFeed(t, ts.URL)
	first := readFeed(t, conn)
	require.Eventually(t, func() bool { return feed.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, e.RemoveFlight("TEST004"))

	msg := readFeed(t, conn)
	assert.Equal(t, first.RegistryVersion+1, msg.RegistryVersion)
	// TEST004 was in the head-on on A-B and the crossing at B.
	assert.Len(t, msg.Conflicts, 6)
	for _, c := range msg.Conflicts {
		assert.NotEqual(t, "head-on", c["type"])
		assert.NotEqual(t, "TEST004", c["flight1"])
		assert.NotEqual(t, "TEST004", c["flight2"])
	}
}

func TestFeed_ClientsDisconnectOnClose(t *testing.T) {
	_, feed, ts := startFeed(t)
	conn := dialFeed(t, ts.URL)
	readFeed(t, conn)
	require.Eventually(t, func() bool { return feed.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return feed.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}
