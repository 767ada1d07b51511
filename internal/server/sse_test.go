package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/schedview/internal/events"
)

func TestHub_BroadcastAndReceive(t *testing.T) {
	hub := NewHub()

	client := hub.subscribe(nil) // all topics
	defer hub.unsubscribe(client)

	hub.broadcast(events.TopicFrameRendered, []byte(`{"job_id":"job-1"}`))

	select {
	case evt := <-client.ch:
		if evt.Topic != events.TopicFrameRendered {
			t.Fatalf("expected topic=%q, got %q", events.TopicFrameRendered, evt.Topic)
		}
		if string(evt.Data) != `{"job_id":"job-1"}` {
			t.Fatalf("expected data=%q, got %q", `{"job_id":"job-1"}`, string(evt.Data))
		}
		if evt.ID != 1 {
			t.Fatalf("expected id=1, got %d", evt.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestHub_Publish(t *testing.T) {
	hub := NewHub()
	var _ events.Publisher = hub

	client := hub.subscribe([]string{events.TopicPollStopped})
	defer hub.unsubscribe(client)
	if hub.Clients() != 1 {
		t.Fatalf("Clients() = %d, want 1", hub.Clients())
	}

	ev := events.PollStopped{SessionID: "sv-1", JobID: "job-1", Reason: "not solving"}
	if err := hub.Publish(context.Background(), events.TopicPollStopped, ev); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case evt := <-client.ch:
		var got events.PollStopped
		if err := json.Unmarshal(evt.Data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got != ev {
			t.Errorf("got %+v, want %+v", got, ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	if err := hub.Publish(context.Background(), "x", func() {}); err == nil {
		t.Error("expected marshal error for a func payload")
	}
}

func TestHub_TopicFiltering(t *testing.T) {
	hub := NewHub()

	client := hub.subscribe([]string{"schedview.frame.*"})
	defer hub.unsubscribe(client)

	hub.broadcast(events.TopicJobsUpdated, []byte(`{}`))
	hub.broadcast(events.TopicFrameRendered, []byte(`{}`))

	select {
	case evt := <-client.ch:
		if evt.Topic != events.TopicFrameRendered {
			t.Fatalf("expected topic=%q, got %q", events.TopicFrameRendered, evt.Topic)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	select {
	case evt := <-client.ch:
		t.Fatalf("unexpected event: topic=%q", evt.Topic)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_Unsubscribe(t *testing.T) {
	hub := NewHub()

	client := hub.subscribe(nil)
	hub.unsubscribe(client)

	hub.broadcast(events.TopicFrameRendered, []byte(`{}`))

	select {
	case <-client.ch:
		t.Fatal("should not receive events after unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_EventsSince(t *testing.T) {
	hub := NewHub()

	for i := range 5 {
		hub.broadcast(events.TopicFrameRendered, []byte(`{"n":`+string(rune('0'+i))+`}`))
	}

	evts := hub.eventsSince(2)
	if len(evts) != 3 {
		t.Fatalf("expected 3 events, got %d", len(evts))
	}
	if evts[0].ID != 3 || evts[1].ID != 4 || evts[2].ID != 5 {
		t.Fatalf("expected IDs [3,4,5], got [%d,%d,%d]", evts[0].ID, evts[1].ID, evts[2].ID)
	}

	if evts := NewHub().eventsSince(0); len(evts) != 0 {
		t.Fatalf("empty hub: expected 0 events, got %d", len(evts))
	}
}

func TestHub_RingBufferWrap(t *testing.T) {
	hub := NewHub()

	for range sseRingBufferSize + 100 {
		hub.broadcast(events.TopicFrameRendered, []byte(`{}`))
	}

	evts := hub.eventsSince(0)
	if len(evts) != sseRingBufferSize {
		t.Fatalf("expected %d events, got %d", sseRingBufferSize, len(evts))
	}
	if evts[0].ID != 101 {
		t.Fatalf("expected oldest event ID=101, got %d", evts[0].ID)
	}
}

func TestMatchTopicPattern(t *testing.T) {
	for _, tc := range []struct {
		pattern string
		topic   string
		want    bool
	}{
		{"schedview.frame.rendered", "schedview.frame.rendered", true},
		{"schedview.frame.rendered", "schedview.analysis.updated", false},
		{"schedview.*.rendered", "schedview.frame.rendered", true},
		{"schedview.*.updated", "schedview.jobs.updated", true},
		{"schedview.*.updated", "schedview.poll.stopped", false},
		{"schedview.>", "schedview.frame.rendered", true},
		{"schedview.>", "schedview.state", true},
		{"schedview.>", "other.topic", false},
		{"*.*.*", "schedview.frame.rendered", true},
		{"*.*.*", "schedview.state", false},
	} {
		t.Run(tc.pattern+"_"+tc.topic, func(t *testing.T) {
			got := matchTopicPattern(tc.pattern, tc.topic)
			if got != tc.want {
				t.Fatalf("matchTopicPattern(%q, %q) = %v, want %v", tc.pattern, tc.topic, got, tc.want)
			}
		})
	}
}

// streamFor runs the SSE handler for req until fn returns, then returns the
// response body.
func streamFor(t *testing.T, handler http.Handler, req *http.Request, fn func()) (*httptest.ResponseRecorder, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		handler.ServeHTTP(rec, req)
	}()

	// Give the handler time to register the subscription.
	time.Sleep(50 * time.Millisecond)
	fn()
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done
	return rec, rec.Body.String()
}

func TestHandleEventStream_SSE(t *testing.T) {
	srv, _, handler := newTestServer(t)

	req := httptest.NewRequest("GET", "/v1/events/stream", nil)
	rec, body := streamFor(t, handler, req, func() {
		srv.hub.broadcast(events.TopicFrameRendered, []byte(`{"job_id":"job-sse1"}`))
	})

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected Content-Type=text/event-stream, got %q", ct)
	}
	if !strings.HasPrefix(body, "event:"+TopicState+"\n") {
		t.Fatalf("expected the state event first, got:\n%s", body)
	}
	if !strings.Contains(body, "event:"+events.TopicFrameRendered) {
		t.Fatalf("expected frame event in body, got:\n%s", body)
	}
	if !strings.Contains(body, `data:{"job_id":"job-sse1"}`) {
		t.Fatalf("expected data with job-sse1 in body, got:\n%s", body)
	}
	if !strings.Contains(body, "id:1\n") {
		t.Fatalf("expected id: field in body, got:\n%s", body)
	}
}

func TestHandleEventStream_TopicFilter(t *testing.T) {
	srv, _, handler := newTestServer(t)

	req := httptest.NewRequest("GET", "/v1/events/stream?topics=schedview.analysis.*", nil)
	_, body := streamFor(t, handler, req, func() {
		srv.hub.broadcast(events.TopicFrameRendered, []byte(`{}`))
		srv.hub.broadcast(events.TopicAnalysisUpdated, []byte(`{"stale":false}`))
	})

	if strings.Contains(body, events.TopicFrameRendered) {
		t.Fatalf("expected frame event to be filtered out, got:\n%s", body)
	}
	if strings.Contains(body, TopicState) {
		t.Fatalf("expected state event to be filtered out, got:\n%s", body)
	}
	if !strings.Contains(body, events.TopicAnalysisUpdated) {
		t.Fatalf("expected analysis event in body, got:\n%s", body)
	}
}

func TestHandleEventStream_LastEventID(t *testing.T) {
	srv, _, handler := newTestServer(t)

	srv.hub.broadcast(events.TopicFrameRendered, []byte(`{"n":1}`))
	srv.hub.broadcast(events.TopicAnalysisUpdated, []byte(`{"n":2}`))
	srv.hub.broadcast(events.TopicFrameRendered, []byte(`{"n":3}`))

	req := httptest.NewRequest("GET", "/v1/events/stream", nil)
	req.Header.Set("Last-Event-ID", "1")
	_, body := streamFor(t, handler, req, func() {})

	if strings.Contains(body, `data:{"n":1}`) {
		t.Fatalf("expected event 1 to be skipped, got:\n%s", body)
	}
	if !strings.Contains(body, `data:{"n":2}`) || !strings.Contains(body, `data:{"n":3}`) {
		t.Fatalf("expected events 2 and 3 in body, got:\n%s", body)
	}
	if strings.Contains(body, TopicState) {
		t.Fatalf("reconnecting client should not get the state event, got:\n%s", body)
	}
}

func TestHandleEventStream_MultipleClients(t *testing.T) {
	srv, _, handler := newTestServer(t)

	bodies := make(chan string, 2)
	for range 2 {
		go func() {
			req := httptest.NewRequest("GET", "/v1/events/stream", nil)
			_, body := streamFor(t, handler, req, func() { time.Sleep(50 * time.Millisecond) })
			bodies <- body
		}()
	}

	time.Sleep(70 * time.Millisecond)
	srv.hub.broadcast(events.TopicJobsUpdated, []byte(`{"jobs":["job-1"]}`))

	for i := range 2 {
		body := <-bodies
		if !strings.Contains(body, events.TopicJobsUpdated) {
			t.Fatalf("client %d: expected jobs event, got:\n%s", i+1, body)
		}
	}
}

func TestSSEEventFormat(t *testing.T) {
	srv, _, handler := newTestServer(t)

	req := httptest.NewRequest("GET", "/v1/events/stream?topics=schedview.frame.rendered", nil)
	_, body := streamFor(t, handler, req, func() {
		srv.hub.broadcast(events.TopicFrameRendered, []byte(`{"job_id":"job-fmt"}`))
	})

	scanner := bufio.NewScanner(strings.NewReader(body))
	var id, event, data string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "id:") {
			id = strings.TrimPrefix(line, "id:")
		} else if strings.HasPrefix(line, "event:") {
			event = strings.TrimPrefix(line, "event:")
		} else if strings.HasPrefix(line, "data:") {
			data = strings.TrimPrefix(line, "data:")
		}
	}

	if id == "" {
		t.Fatal("expected non-empty id field")
	}
	if event != events.TopicFrameRendered {
		t.Fatalf("expected event=%s, got %q", events.TopicFrameRendered, event)
	}
	if !json.Valid([]byte(data)) {
		t.Fatalf("expected valid JSON data, got %q", data)
	}
	if data != `{"job_id":"job-fmt"}` {
		t.Fatalf("expected data=%q, got %q", `{"job_id":"job-fmt"}`, data)
	}
}

func TestParseTopicFilter(t *testing.T) {
	f := parseTopicFilter(" schedview.frame.* ,, schedview.jobs.updated")
	if len(f) != 2 {
		t.Fatalf("filter = %q, want 2 patterns", f)
	}
	if !f.matches(events.TopicFrameRendered) || !f.matches(events.TopicJobsUpdated) {
		t.Errorf("filter %q misses a listed topic", f)
	}
	if f.matches(events.TopicPollStopped) {
		t.Errorf("filter %q matches %s", f, events.TopicPollStopped)
	}
	if !parseTopicFilter("").matches(TopicState) {
		t.Error("empty filter should match every topic")
	}
}
