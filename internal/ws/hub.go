package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nyameri/octreport/internal/analysis"
	"github.com/nyameri/octreport/internal/api"
	"github.com/nyameri/octreport/internal/store"
)

// Event names carried in Message.Event.
const (
	EventConnected = "connected"
	EventTick      = "tick"
	EventRefresh   = "refresh"
)

const (
	writeWait       = 10 * time.Second
	idleTimeout     = 60 * time.Second
	pingEvery       = idleTimeout * 9 / 10
	queueDepth      = 8
	maxInboundBytes = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  512,
	WriteBufferSize: 8192,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Message is the JSON envelope sent to subscribers.
type Message struct {
	Event string `json:"event"`
	// Sources lists the sources recomputed since the previous refresh.
	// Only set on refresh events.
	Sources []string             `json:"sources,omitempty"`
	Data    api.SnapshotResponse `json:"data"`
}

// Hub streams store snapshots to WebSocket subscribers.
type Hub struct {
	store    *store.Store
	interval time.Duration
	wake     chan struct{}

	pendingMu sync.Mutex
	pending   map[string]struct{}

	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

type subscriber struct {
	conn  *websocket.Conn
	queue chan []byte
}

// New creates a Hub that reads from st and pushes a tick snapshot every
// interval.
func New(st *store.Store, interval time.Duration) *Hub {
	return &Hub{
		store:    st,
		interval: interval,
		wake:     make(chan struct{}, 1),
		pending:  make(map[string]struct{}),
		subs:     make(map[*subscriber]struct{}),
	}
}

// Notify records that sourceID was recomputed and requests a refresh push.
// It never blocks; sources notified before the push is sent share one
// message.
func (h *Hub) Notify(sourceID string) {
	h.pendingMu.Lock()
	h.pending[sourceID] = struct{}{}
	h.pendingMu.Unlock()

	select {
	case h.wake <- struct{}{}:
	default:
	}
}

// Publish is Notify in the shape of a pipeline subscriber.
func (h *Hub) Publish(a *analysis.Analysis) { h.Notify(a.SourceID) }

// Run pushes tick and refresh snapshots until ctx is cancelled, then
// disconnects every subscriber.
func (h *Hub) Run(ctx context.Context) {
	tick := time.NewTicker(h.interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			h.disconnectAll()
			return
		case <-tick.C:
			h.publish(EventTick, nil)
		case <-h.wake:
			h.publish(EventRefresh, h.takePending())
		}
	}
}

// ServeHTTP upgrades the request, sends a connected snapshot and keeps the
// subscriber registered until the peer goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	sub := &subscriber{conn: conn, queue: make(chan []byte, queueDepth)}
	if msg, err := h.encode(EventConnected, nil); err != nil {
		slog.Error("ws: encode snapshot", "err", err)
	} else {
		sub.queue <- msg
	}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	defer h.drop(sub)

	slog.Debug("ws: subscriber connected", "remote", conn.RemoteAddr().String())
	go sub.deliver()
	sub.awaitClose()
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) takePending() []string {
	h.pendingMu.Lock()
	defer h.pendingMu.Unlock()
	ids := make([]string, 0, len(h.pending))
	for id := range h.pending {
		ids = append(ids, id)
	}
	clear(h.pending)
	sort.Strings(ids)
	return ids
}

func (h *Hub) encode(event string, sources []string) ([]byte, error) {
	return json.Marshal(Message{Event: event, Sources: sources, Data: api.BuildSnapshot(h.store)})
}

func (h *Hub) publish(event string, sources []string) {
	msg, err := h.encode(event, sources)
	if err != nil {
		slog.Error("ws: encode snapshot", "event", event, "err", err)
		return
	}

	// Queues are only closed under the write lock, so sending under the read
	// lock never hits a closed channel.
	var lagging []*subscriber
	h.mu.RLock()
	for sub := range h.subs {
		select {
		case sub.queue <- msg:
		default:
			lagging = append(lagging, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range lagging {
		slog.Warn("ws: dropping lagging subscriber", "remote", sub.conn.RemoteAddr().String())
		h.drop(sub)
	}
}

func (h *Hub) drop(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		close(sub.queue)
	}
}

func (h *Hub) disconnectAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		delete(h.subs, sub)
		close(sub.queue)
	}
}

// deliver writes queued snapshots and keepalive pings. A closed queue ends
// the session with a going-away close frame.
func (s *subscriber) deliver() {
	ping := time.NewTicker(pingEvery)
	defer ping.Stop()
	defer s.conn.Close()

	for {
		var err error
		select {
		case msg, open := <-s.queue:
			if !open {
				bye := websocket.FormatCloseMessage(websocket.CloseGoingAway, "")
				s.conn.WriteControl(websocket.CloseMessage, bye, time.Now().Add(writeWait)) //nolint:errcheck
				return
			}
			s.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			err = s.conn.WriteMessage(websocket.TextMessage, msg)
		case <-ping.C:
			err = s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
		}
		if err != nil {
			return
		}
	}
}

// awaitClose discards inbound frames until the connection fails or idles
// past idleTimeout without a pong.
func (s *subscriber) awaitClose() {
	defer s.conn.Close()
	s.conn.SetReadLimit(maxInboundBytes)
	s.conn.SetReadDeadline(time.Now().Add(idleTimeout)) //nolint:errcheck
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	})
	for {
		if _, _, err := s.conn.NextReader(); err != nil {
			return
		}
	}
}
