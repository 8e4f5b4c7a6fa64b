package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/matthewbaird/jigtrack/internal/event"
)

// liveWriteTimeout bounds a push to one browser.
const liveWriteTimeout = 2 * time.Second

// LiveMessage is pushed to every open page after a change.
type LiveMessage struct {
	Type      string `json:"type"` // always "changed"
	EventType string `json:"event_type"`
	JigID     int64  `json:"jig_id,omitempty"`
}

// Live tells open pages to reload when the data changes. It subscribes to
// the event bus and only ever pushes; client messages are ignored.
type Live struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
	log   *zap.Logger
}

// NewLive creates an empty notifier.
func NewLive(log *zap.Logger) *Live {
	if log == nil {
		log = zap.NewNop()
	}
	return &Live{conns: map[*websocket.Conn]struct{}{}, log: log}
}

// ServeHTTP upgrades to WebSocket and holds the connection until the
// browser goes away.
func (l *Live) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		l.log.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	ctx := conn.CloseRead(r.Context())
	l.add(conn)
	defer l.remove(conn)
	<-ctx.Done()
}

// Clients returns the number of open connections.
func (l *Live) Clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.conns)
}

func (l *Live) add(c *websocket.Conn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.conns[c] = struct{}{}
}

func (l *Live) remove(c *websocket.Conn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.conns, c)
}

// HandleEvent pushes a change notice for evt to every connection. A
// connection that cannot be written is dropped.
func (l *Live) HandleEvent(ctx context.Context, evt event.DomainEvent) error {
	msg := LiveMessage{Type: "changed", EventType: evt.EventType, JigID: evt.JigID}

	l.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(l.conns))
	for c := range l.conns {
		conns = append(conns, c)
	}
	l.mu.Unlock()

	for _, c := range conns {
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), liveWriteTimeout)
		err := wsjson.Write(wctx, c, msg)
		cancel()
		if err != nil {
			l.log.Debug("dropping live connection", zap.Error(err))
			l.remove(c)
			c.CloseNow()
		}
	}
	return nil
}
