package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vainnor/airspace-engine/engine"
	"github.com/vainnor/airspace-engine/flight"
	"github.com/vainnor/airspace-engine/logger"
)

const (
	feedWriteWait  = 10 * time.Second
	feedPongWait   = 60 * time.Second
	feedPingPeriod = (feedPongWait * 9) / 10
	feedSendBuffer = 16
)

// Feed pushes a conflict report to websocket clients after every registry
// change. Reports are computed by Run, never on the goroutine that mutated
// the registry; bursts of changes collapse into one report of the newest
// snapshot.
type Feed struct {
	engine   *engine.Engine
	lg       *logger.Logger
	upgrader websocket.Upgrader
	wake     chan struct{}

	mu        sync.Mutex
	pending   *flight.Snapshot
	published uint64
	latest    []byte
	clients   map[*feedClient]struct{}
}

type feedClient struct {
	conn *websocket.Conn
	send chan []byte
}

func NewFeed(e *engine.Engine, lg *logger.Logger) *Feed {
	f := &Feed{
		engine:   e,
		lg:       lg,
		upgrader: websocket.Upgrader{EnableCompression: false},
		wake:     make(chan struct{}, 1),
		clients:  make(map[*feedClient]struct{}),
	}
	e.Subscribe(f.notify)
	return f
}

func (f *Feed) notify(ev flight.Event) {
	f.mu.Lock()
	if f.pending == nil || ev.Snapshot.Version > f.pending.Version {
		f.pending = ev.Snapshot
	}
	f.mu.Unlock()

	select {
	case f.wake <- struct{}{}:
	default:
	}
}

// Run publishes reports until ctx is done, then disconnects every client.
func (f *Feed) Run(ctx context.Context) error {
	f.publish(ctx, f.engine.Snapshot())
	for {
		select {
		case <-ctx.Done():
			f.closeAll()
			return nil
		case <-f.wake:
			f.mu.Lock()
			snap := f.pending
			f.pending = nil
			f.mu.Unlock()
			if snap != nil {
				f.publish(ctx, snap)
			}
		}
	}
}

func (f *Feed) report(ctx context.Context, snap *flight.Snapshot) []byte {
	msg := ConflictFeedMessage{RegistryVersion: snap.Version}
	cs, err := f.engine.ConflictsIn(ctx, snap)
	if err != nil {
		msg.Error = err.Error()
	} else {
		msg.Conflicts = cs
	}
	b, err := json.Marshal(msg)
	if err != nil {
		f.lg.Error("Error encoding conflict report", "error", err)
		return nil
	}
	return b
}

func (f *Feed) publish(ctx context.Context, snap *flight.Snapshot) {
	f.mu.Lock()
	stale := f.latest != nil && snap.Version <= f.published
	f.mu.Unlock()
	if stale {
		return
	}

	b := f.report(ctx, snap)
	if b == nil {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.latest != nil && snap.Version <= f.published {
		return
	}
	f.published = snap.Version
	f.latest = b
	for c := range f.clients {
		select {
		case c.send <- b:
		default:
			// Too slow to keep up; drop it.
			delete(f.clients, c)
			close(c.send)
		}
	}
}

// Clients returns the number of connected clients.
func (f *Feed) Clients() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

func (f *Feed) closeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for c := range f.clients {
		delete(f.clients, c)
		close(c.send)
	}
}

func (f *Feed) unregister(c *feedClient) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.clients[c]; ok {
		delete(f.clients, c)
		close(c.send)
	}
}

// ServeHTTP upgrades the request and sends the latest report followed by
// one report per registry change.
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.lg.Warn("Unable to upgrade conflict feed", "error", err)
		return
	}

	f.mu.Lock()
	ready := f.latest != nil
	f.mu.Unlock()
	if !ready {
		f.publish(r.Context(), f.engine.Snapshot())
	}

	c := &feedClient{conn: conn, send: make(chan []byte, feedSendBuffer)}
	f.mu.Lock()
	if f.latest != nil {
		c.send <- f.latest
	}
	f.clients[c] = struct{}{}
	f.mu.Unlock()

	go c.writePump()
	c.readPump(f)
}

// readPump discards client messages and unregisters on disconnect.
func (c *feedClient) readPump(f *Feed) {
	defer f.unregister(c)
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(feedPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(feedPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *feedClient) writePump() {
	ticker := time.NewTicker(feedPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
