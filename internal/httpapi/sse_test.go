package httpapi

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSSEHub_Subscribe_Publish_Unsubscribe(t *testing.T) {
	hub := NewSSEHub()
	ch := hub.Subscribe()
	hub.PublishJSON(map[string]string{"type": "test"})
	msg := <-ch
	if !strings.Contains(string(msg), "test") {
		t.Errorf("PublishJSON: got %s", msg)
	}
	hub.Unsubscribe(ch)
	// After unsubscribe, channel is closed
	_, ok := <-ch
	if ok {
		t.Error("expected channel closed after Unsubscribe")
	}
}

func TestSSEHub_Handler(t *testing.T) {
	hub := NewSSEHub()
	handler := hub.Handler()
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequestWithContext(ctx, http.MethodGet, "/stream", nil)
	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		handler(rec, req)
		close(done)
	}()
	// Wait for handler to send "connected" then stop (avoid reading rec.Body while handler writes - race).
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done
	// Read response body only after handler has finished writing.
	sc := bufio.NewScanner(rec.Body)
	var found bool
	for sc.Scan() {
		if strings.Contains(sc.Text(), "connected") {
			found = true
			break
		}
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !found {
		t.Error("expected response to contain \"connected\"")
	}
}

func TestSSEHub_HandlerDeliversEventsAndKeepalive(t *testing.T) {
	hub := NewSSEHub()
	hub.keepalive = 20 * time.Millisecond
	ts := httptest.NewServer(hub.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	sc := bufio.NewScanner(resp.Body)
	var sawKeepalive, sawEvent, published bool
	for sc.Scan() && !(sawKeepalive && sawEvent) {
		line := sc.Text()
		switch {
		case strings.Contains(line, `"type":"connected"`) && !published:
			published = true
			hub.PublishJSON(map[string]string{"type": "task_update", "task": "task1"})
		case strings.HasPrefix(line, ": keepalive"):
			sawKeepalive = true
		case strings.Contains(line, `"task":"task1"`):
			sawEvent = true
		}
	}
	if !sawEvent || !sawKeepalive {
		t.Fatalf("event=%v keepalive=%v", sawEvent, sawKeepalive)
	}
}

func TestSSEHub_dropsForSlowSubscriber(t *testing.T) {
	hub := NewSSEHub()
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)
	for i := 0; i < cap(ch)+10; i++ {
		hub.PublishJSON(map[string]int{"n": i})
	}
	if len(ch) != cap(ch) {
		t.Fatalf("buffered %d, want %d", len(ch), cap(ch))
	}
	if hub.Subscribers() != 1 {
		t.Fatalf("Subscribers = %d", hub.Subscribers())
	}
}
