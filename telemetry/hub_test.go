package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/NV7150/ImOTAR-sub000/depth"
	"github.com/NV7150/ImOTAR-sub000/errors"
	"github.com/NV7150/ImOTAR-sub000/stream"
)

// startTestHub binds a hub on an ephemeral port and tears it down with
// the test.
func startTestHub(t *testing.T, origins []string) *Hub {
	t.Helper()
	hub, err := NewHub("127.0.0.1:0", origins, nil)
	if err != nil {
		t.Fatalf("NewHub: %v", err)
	}
	if err := hub.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		hub.Shutdown(ctx)
	})
	return hub
}

func dialTestHub(t *testing.T, hub *Hub, header http.Header) *websocket.Conn {
	t.Helper()
	url := fmt.Sprintf("ws://%s/ws", hub.Addr())
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("Dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	return conn
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("hub has %d clients, want %d", hub.ClientCount(), want)
}

func TestNewHub_Validation(t *testing.T) {
	if _, err := NewHub("", nil, nil); !errors.IsInvalidConfigError(err) {
		t.Errorf("empty addr: got %v, want invalid config", err)
	}
}

func TestHub_BroadcastReachesSubscriber(t *testing.T) {
	hub := startTestHub(t, nil)
	conn := dialTestHub(t, hub, nil)
	waitForClients(t, hub, 1)

	hub.Publish(Envelope{Type: MessageEvent, Data: map[string]string{"job_id": "j1"}})

	var env struct {
		Type string            `json:"type"`
		Data map[string]string `json:"data"`
	}
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if env.Type != MessageEvent {
		t.Errorf("envelope type = %q, want %q", env.Type, MessageEvent)
	}
	if env.Data["job_id"] != "j1" {
		t.Errorf("payload = %v, want job_id j1", env.Data)
	}
}

func TestHub_FanOutToAllSubscribers(t *testing.T) {
	hub := startTestHub(t, nil)
	a := dialTestHub(t, hub, nil)
	b := dialTestHub(t, hub, nil)
	waitForClients(t, hub, 2)

	hub.Publish(Envelope{Type: MessageEvent, Data: "ping"})

	for i, conn := range []*websocket.Conn{a, b} {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			t.Fatalf("subscriber %d ReadJSON: %v", i, err)
		}
		if env.Data != "ping" {
			t.Errorf("subscriber %d payload = %v, want ping", i, env.Data)
		}
	}
}

func TestHub_OriginPolicy(t *testing.T) {
	hub := startTestHub(t, []string{"http://localhost"})

	// Allowed prefix matches any port.
	conn := dialTestHub(t, hub, http.Header{"Origin": []string{"http://localhost:5173"}})
	conn.Close()

	// Disallowed origin is refused at the handshake.
	url := fmt.Sprintf("ws://%s/ws", hub.Addr())
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{
		"Origin": []string{"http://evil.example"},
	})
	if err == nil {
		t.Fatal("dial with disallowed origin succeeded")
	}
	if resp != nil && resp.StatusCode != http.StatusForbidden {
		t.Errorf("handshake status = %d, want %d", resp.StatusCode, http.StatusForbidden)
	}
}

func TestHub_PublishNeverBlocks(t *testing.T) {
	// No run loop: the backlog fills and the rest must drop, not block.
	hub, err := NewHub("127.0.0.1:0", nil, nil)
	if err != nil {
		t.Fatalf("NewHub: %v", err)
	}

	done := make(chan struct{})
	go func() {
		for i := 0; i < broadcastBacklog+10; i++ {
			hub.Publish(Envelope{Type: MessageStats, Data: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full backlog")
	}
	if hub.Drops() != 10 {
		t.Errorf("Drops() = %d, want 10", hub.Drops())
	}
}

func TestHub_HealthEndpoint(t *testing.T) {
	hub := startTestHub(t, nil)

	resp, err := http.Get(fmt.Sprintf("http://%s/health", hub.Addr()))
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	hub, err := NewHub("127.0.0.1:0", nil, nil)
	if err != nil {
		t.Fatalf("NewHub: %v", err)
	}
	if err := hub.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	conn := dialTestHub(t, hub, nil)
	waitForClients(t, hub, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := hub.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount after shutdown = %d, want 0", hub.ClientCount())
	}
	// The peer sees a close frame or a dropped connection.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("read after shutdown succeeded, want close")
	}
}

func TestSink_ForwardsLifecycleEvents(t *testing.T) {
	hub := startTestHub(t, nil)
	conn := dialTestHub(t, hub, nil)
	waitForClients(t, hub, 1)

	sink := NewSink(hub)
	sink.OnEvent(depth.Event{
		Type:  depth.EventStarted,
		JobID: depth.JobID("j-telemetry"),
		Tick:  7,
		At:    time.Now(),
	})

	var env struct {
		Type string      `json:"type"`
		Data depth.Event `json:"data"`
	}
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if env.Type != MessageEvent {
		t.Errorf("envelope type = %q, want %q", env.Type, MessageEvent)
	}
	if env.Data.Type != depth.EventStarted || env.Data.JobID != "j-telemetry" {
		t.Errorf("event = %+v, want started j-telemetry", env.Data)
	}
	if env.Data.Tick != 7 {
		t.Errorf("tick = %d, want 7", env.Data.Tick)
	}
}

func TestHub_PublishStats(t *testing.T) {
	hub := startTestHub(t, nil)
	conn := dialTestHub(t, hub, nil)
	waitForClients(t, hub, 1)

	hub.PublishStats(
		depth.ProcessorStats{Tick: 42, JobsCompleted: 3},
		stream.SyncStats{PairsYielded: 5},
	)

	var env struct {
		Type string       `json:"type"`
		Data StatsMessage `json:"data"`
	}
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if env.Type != MessageStats {
		t.Errorf("envelope type = %q, want %q", env.Type, MessageStats)
	}
	if env.Data.Processor.Tick != 42 || env.Data.Processor.JobsCompleted != 3 {
		t.Errorf("processor stats = %+v", env.Data.Processor)
	}
	if env.Data.Sync.PairsYielded != 5 {
		t.Errorf("sync stats = %+v", env.Data.Sync)
	}
	if env.Data.Clients != 1 {
		t.Errorf("clients = %d, want 1", env.Data.Clients)
	}
}

func TestCaptureSystem(t *testing.T) {
	snap := CaptureSystem()
	if snap.Goroutines <= 0 {
		t.Errorf("Goroutines = %d, want > 0", snap.Goroutines)
	}
	if snap.MemoryTotalGB > 0 {
		if snap.MemoryUsedGB > snap.MemoryTotalGB {
			t.Errorf("used %.2f GB exceeds total %.2f GB", snap.MemoryUsedGB, snap.MemoryTotalGB)
		}
		if snap.MemoryPercent < 0 || snap.MemoryPercent > 100 {
			t.Errorf("MemoryPercent = %.1f, want within [0, 100]", snap.MemoryPercent)
		}
	}
}
