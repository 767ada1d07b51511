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

// sseEventParsed represents a single parsed SSE event from the stream.
type sseEventParsed struct {
	ID    string
	Event string
	Data  string
}

// sseReader reads SSE events from an HTTP response body using a bufio.Scanner.
// It sends parsed events to the returned channel and stops when the context is cancelled
// or the body is closed.
func sseReader(ctx context.Context, resp *http.Response) <-chan sseEventParsed {
	ch := make(chan sseEventParsed, 32)
	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(resp.Body)
		var current sseEventParsed
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return
			default:
			}

			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "id:"):
				current.ID = strings.TrimPrefix(line, "id:")
			case strings.HasPrefix(line, "event:"):
				current.Event = strings.TrimPrefix(line, "event:")
			case strings.HasPrefix(line, "data:"):
				current.Data = strings.TrimPrefix(line, "data:")
			case line == "":
				// Empty line marks end of SSE event block.
				if current.Event != "" || current.Data != "" {
					ch <- current
					current = sseEventParsed{}
				}
			}
		}
	}()
	return ch
}

// waitForEvent reads from the SSE event channel until an event with the given
// topic is received, or the timeout expires.
func waitForEvent(t *testing.T, ch <-chan sseEventParsed, topic string, timeout time.Duration) sseEventParsed {
	t.Helper()
	timer := time.After(timeout)
	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				t.Fatalf("SSE channel closed before receiving event %q", topic)
			}
			if evt.Event == topic {
				return evt
			}
			// Keep reading; may receive other events first.
		case <-timer:
			t.Fatalf("timed out waiting for SSE event %q", topic)
		}
	}
}

// startSSEClient opens an SSE connection to the test server and returns a channel
// of parsed events plus a cancel function. The caller must call cancel when done.
func startSSEClient(t *testing.T, serverURL string, queryParams string) (<-chan sseEventParsed, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	url := serverURL + "/v1/events/stream"
	if queryParams != "" {
		url += "?" + queryParams
	}

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		cancel()
		t.Fatalf("failed to create SSE request: %v", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		cancel()
		t.Fatalf("failed to connect to SSE stream: %v", err)
	}

	if resp.Header.Get("Content-Type") != "text/event-stream" {
		resp.Body.Close()
		cancel()
		t.Fatalf("expected Content-Type=text/event-stream, got %q", resp.Header.Get("Content-Type"))
	}

	ch := sseReader(ctx, resp)

	// Return a wrapped cancel that also closes the body.
	cleanup := func() {
		cancel()
		resp.Body.Close()
	}

	return ch, cleanup
}

// startIntegrationServer serves a test server over a real TCP listener and
// returns its URL with the fake backend behind it.
func startIntegrationServer(t *testing.T) (string, *fakeBackend) {
	t.Helper()
	_, b, handler := newTestServer(t)
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts.URL, b
}

// doHTTPJSON performs an HTTP request with an optional JSON body against a real server URL.
func doHTTPJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var req *http.Request
	var err error
	if body != nil {
		b, _ := json.Marshal(body)
		req, err = http.NewRequest(method, url, strings.NewReader(string(b)))
		if err != nil {
			t.Fatalf("failed to create request: %v", err)
		}
		req.Header.Set("Content-Type", "application/json")
	} else {
		req, err = http.NewRequest(method, url, nil)
		if err != nil {
			t.Fatalf("failed to create request: %v", err)
		}
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("HTTP request failed: %v", err)
	}
	return resp
}

// requireHTTPStatus asserts the response has the expected status code.
func requireHTTPStatus(t *testing.T, resp *http.Response, code int) {
	t.Helper()
	if resp.StatusCode != code {
		t.Fatalf("expected status %d, got %d", code, resp.StatusCode)
	}
}

// decodeHTTPJSON decodes the response body JSON into v.
func decodeHTTPJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
}

// --- Integration Tests ---

func TestSSEIntegration_SelectJobStreamsRender(t *testing.T) {
	url, b := startIntegrationServer(t)
	b.snaps["job-1"] = testSnapshot(t, "NOT_SOLVING")

	ch, cancel := startSSEClient(t, url, "")
	defer cancel()
	waitForEvent(t, ch, TopicState, 2*time.Second)

	resp := doHTTPJSON(t, http.MethodPut, url+"/v1/jobs/current", map[string]string{"job_id": "job-1"})
	requireHTTPStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	// The analysis result and the poll stop race each other.
	got := make(map[string]sseEventParsed)
	deadline := time.After(2 * time.Second)
	for len(got) < 3 {
		select {
		case evt, ok := <-ch:
			if !ok {
				t.Fatalf("stream closed after %d events", len(got))
			}
			got[evt.Event] = evt
		case <-deadline:
			t.Fatalf("timed out; received %v", got)
		}
	}

	var frame events.FrameRendered
	if err := json.Unmarshal([]byte(got[events.TopicFrameRendered].Data), &frame); err != nil {
		t.Fatalf("unmarshal frame event: %v", err)
	}
	if frame.JobID != "job-1" || frame.Reason != "first" || frame.Bars != 1 {
		t.Errorf("frame event = %+v", frame)
	}
	if frame.Frame == nil || len(frame.Frame.Rows) != 2 {
		t.Errorf("frame payload missing or wrong: %+v", frame.Frame)
	}

	var upd events.AnalysisUpdated
	if err := json.Unmarshal([]byte(got[events.TopicAnalysisUpdated].Data), &upd); err != nil {
		t.Fatalf("unmarshal analysis event: %v", err)
	}
	if upd.Digest != frame.Digest || upd.Stale {
		t.Errorf("analysis digest = %q stale=%v, want %q fresh", upd.Digest, upd.Stale, frame.Digest)
	}
	if upd.Report == nil || !upd.Report.Initialized {
		t.Errorf("analysis report = %+v", upd.Report)
	}

	// NOT_SOLVING under onlyWhenSolving ends polling.
	if stopped := got[events.TopicPollStopped]; !strings.Contains(stopped.Data, `"job-1"`) {
		t.Errorf("poll stopped event = %s", stopped.Data)
	}
}

func TestSSEIntegration_ViewChangeStreamsFrame(t *testing.T) {
	url, b := startIntegrationServer(t)
	b.snaps["job-1"] = testSnapshot(t, "NOT_SOLVING")

	resp := doHTTPJSON(t, http.MethodPut, url+"/v1/jobs/current", map[string]string{"job_id": "job-1"})
	requireHTTPStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	// Wait for the first render before listening for the view change.
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp := doHTTPJSON(t, http.MethodGet, url+"/v1/frame", nil)
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for first render")
		}
		time.Sleep(10 * time.Millisecond)
	}

	ch, cancel := startSSEClient(t, url, "topics=schedview.frame.*")
	defer cancel()
	time.Sleep(50 * time.Millisecond)

	resp = doHTTPJSON(t, http.MethodPut, url+"/v1/view", map[string]string{"view_mode": "employee"})
	requireHTTPStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	evt := waitForEvent(t, ch, events.TopicFrameRendered, 2*time.Second)
	var frame events.FrameRendered
	if err := json.Unmarshal([]byte(evt.Data), &frame); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if frame.Reason != "view" || frame.ViewMode != "employee" || frame.Rows != 1 {
		t.Errorf("frame event = reason %q mode %q rows %d", frame.Reason, frame.ViewMode, frame.Rows)
	}
}

func TestSSEIntegration_MultipleClientsReceiveSameEvents(t *testing.T) {
	url, b := startIntegrationServer(t)
	b.jobs = []string{"job-1", "job-2"}

	ch1, cancel1 := startSSEClient(t, url, "topics=schedview.jobs.updated")
	defer cancel1()
	ch2, cancel2 := startSSEClient(t, url, "topics=schedview.jobs.updated")
	defer cancel2()
	time.Sleep(50 * time.Millisecond)

	resp := doHTTPJSON(t, http.MethodGet, url+"/v1/jobs?refresh=1", nil)
	requireHTTPStatus(t, resp, http.StatusOK)
	var got struct {
		Jobs []string `json:"jobs"`
	}
	decodeHTTPJSON(t, resp, &got)
	if len(got.Jobs) != 2 {
		t.Fatalf("jobs = %v", got.Jobs)
	}

	for i, ch := range []<-chan sseEventParsed{ch1, ch2} {
		evt := waitForEvent(t, ch, events.TopicJobsUpdated, 2*time.Second)
		if !strings.Contains(evt.Data, "job-2") {
			t.Errorf("client %d: jobs event = %s", i+1, evt.Data)
		}
	}
}
