package ws_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nyameri/octreport/internal/analysis"
	"github.com/nyameri/octreport/internal/analysis/analysistest"
	"github.com/nyameri/octreport/internal/store"
	wsHub "github.com/nyameri/octreport/internal/ws"
)

const testInterval = 20 * time.Millisecond

// --- helpers ----------------------------------------------------------------

func newStore(analyses ...*analysis.Analysis) *store.Store {
	st := store.New()
	for _, a := range analyses {
		st.Put(a)
	}
	return st
}

// startHub serves the hub over httptest and starts its Run loop.
func startHub(t *testing.T, st *store.Store, interval time.Duration) (wsURL string, hub *wsHub.Hub, cancel func()) {
	t.Helper()

	hub = wsHub.New(st, interval)
	ctx, cancelFn := context.WithCancel(context.Background())

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	go hub.Run(ctx)

	t.Cleanup(func() {
		cancelFn()
		srv.Close()
	})

	return "ws" + strings.TrimPrefix(srv.URL, "http"), hub, cancelFn
}

func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readSnapshot reads one message and returns its decoded envelope.
func readSnapshot(t *testing.T, conn *websocket.Conn, wait time.Duration) wsHub.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(wait)) //nolint:errcheck
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var m wsHub.Message
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return m
}

func waitForCount(t *testing.T, hub *wsHub.Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.Count() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Count: got %d, want %d", hub.Count(), want)
}

// --- tests ------------------------------------------------------------------

func TestHub_Connect_ReceivesImmediateSnapshot(t *testing.T) {
	wsURL, _, _ := startHub(t, newStore(analysistest.Build("od"), analysistest.Build("os")), time.Hour)

	m := readSnapshot(t, dial(t, wsURL), 2*time.Second)
	if m.Event != wsHub.EventConnected {
		t.Errorf("event: got %q, want %s", m.Event, wsHub.EventConnected)
	}
	if m.Data.GeneratedAt == "" {
		t.Error("generated_at missing")
	}
	if len(m.Data.Analyses) != 2 {
		t.Errorf("analyses: got %d, want 2", len(m.Data.Analyses))
	}
}

func TestHub_EmptyStore(t *testing.T) {
	wsURL, _, _ := startHub(t, newStore(), time.Hour)
	m := readSnapshot(t, dial(t, wsURL), 2*time.Second)
	if len(m.Data.Analyses) != 0 {
		t.Errorf("analyses: got %d, want 0", len(m.Data.Analyses))
	}
}

func TestHub_ReceivesBroadcastOnTick(t *testing.T) {
	st := newStore()
	wsURL, _, _ := startHub(t, st, testInterval)

	conn := dial(t, wsURL)
	readSnapshot(t, conn, 2*time.Second)

	st.Put(analysistest.Build("new-source"))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		m := readSnapshot(t, conn, 2*time.Second)
		if m.Event != wsHub.EventTick {
			t.Fatalf("event: got %q, want %s", m.Event, wsHub.EventTick)
		}
		if len(m.Data.Analyses) == 1 {
			if got := m.Data.Analyses[0].SourceID; got != "new-source" {
				t.Errorf("source_id: got %q, want new-source", got)
			}
			return
		}
	}
	t.Fatal("no broadcast carried the new analysis")
}

func TestHub_NotifyBroadcastsImmediately(t *testing.T) {
	st := newStore()
	wsURL, hub, _ := startHub(t, st, time.Hour)

	conn := dial(t, wsURL)
	readSnapshot(t, conn, 2*time.Second)
	waitForCount(t, hub, 1)

	st.Put(analysistest.BuildThinned("od"))
	hub.Notify("od")

	m := readSnapshot(t, conn, time.Second)
	if m.Event != wsHub.EventRefresh {
		t.Errorf("event: got %q, want %s", m.Event, wsHub.EventRefresh)
	}
	if len(m.Sources) != 1 || m.Sources[0] != "od" {
		t.Errorf("sources: got %v, want [od]", m.Sources)
	}
	if len(m.Data.Analyses) != 1 {
		t.Fatalf("analyses: got %d, want 1", len(m.Data.Analyses))
	}
	if m.Data.Analyses[0].Counts().Thinned != 1 {
		t.Error("expected the thinned analysis in the pushed snapshot")
	}
}

func TestHub_PublishReportsEverySource(t *testing.T) {
	st := newStore()
	wsURL, hub, _ := startHub(t, st, time.Hour)

	conn := dial(t, wsURL)
	readSnapshot(t, conn, 2*time.Second)
	waitForCount(t, hub, 1)

	left, right := analysistest.Build("os"), analysistest.Build("od")
	st.Put(left)
	st.Put(right)
	hub.Publish(left)
	hub.Publish(right)

	seen := map[string]bool{}
	for len(seen) < 2 {
		m := readSnapshot(t, conn, time.Second)
		if m.Event != wsHub.EventRefresh {
			t.Fatalf("event: got %q, want %s", m.Event, wsHub.EventRefresh)
		}
		for i, id := range m.Sources {
			if i > 0 && m.Sources[i-1] >= id {
				t.Errorf("sources not sorted: %v", m.Sources)
			}
			seen[id] = true
		}
	}
	if !seen["od"] || !seen["os"] {
		t.Errorf("sources seen: got %v, want od and os", seen)
	}
}

func TestHub_NotifyNeverBlocks(t *testing.T) {
	hub := wsHub.New(newStore(), time.Hour)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			hub.Notify("od")
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked without a running hub")
	}
}

func TestHub_CountClients(t *testing.T) {
	wsURL, hub, _ := startHub(t, newStore(), time.Hour)

	conns := make([]*websocket.Conn, 3)
	for i := range conns {
		conns[i] = dial(t, wsURL)
		readSnapshot(t, conns[i], 2*time.Second)
	}
	waitForCount(t, hub, 3)

	conns[0].Close()
	waitForCount(t, hub, 2)
}

func TestHub_CancelContextClosesConnections(t *testing.T) {
	wsURL, hub, cancel := startHub(t, newStore(), time.Hour)

	conn := dial(t, wsURL)
	readSnapshot(t, conn, 2*time.Second)
	waitForCount(t, hub, 1)

	cancel()
	waitForCount(t, hub, 0)
}

func TestHub_NonWebSocketRequest_Returns400(t *testing.T) {
	hub := wsHub.New(newStore(), testInterval)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", resp.StatusCode)
	}
}
