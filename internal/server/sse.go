package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	sseRingBufferSize    = 1000
	sseClientBuffer      = 64
	sseKeepaliveInterval = 15 * time.Second

	// TopicState is the event sent to a new stream before any live event.
	TopicState = "schedview.state"
)

type sseEvent struct {
	ID    uint64
	Topic string
	Data  []byte
}

// replayRing keeps the last sseRingBufferSize events for Last-Event-ID.
type replayRing struct {
	mu   sync.RWMutex
	buf  [sseRingBufferSize]sseEvent
	next int
	full bool
}

func (r *replayRing) push(evt sseEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = evt
	r.next++
	if r.next == sseRingBufferSize {
		r.next = 0
		r.full = true
	}
}

// since returns the kept events newer than id, oldest first.
func (r *replayRing) since(id uint64) []*sseEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, first := r.next, 0
	if r.full {
		n, first = sseRingBufferSize, r.next
	}
	var out []*sseEvent
	for i := range n {
		evt := &r.buf[(first+i)%sseRingBufferSize]
		if evt.ID > id {
			out = append(out, evt)
		}
	}
	return out
}

// topicFilter is a list of NATS-style subject patterns. Empty matches all.
type topicFilter []string

func parseTopicFilter(q string) topicFilter {
	var f topicFilter
	for _, t := range strings.Split(q, ",") {
		if t = strings.TrimSpace(t); t != "" {
			f = append(f, t)
		}
	}
	return f
}

func (f topicFilter) matches(topic string) bool {
	if len(f) == 0 {
		return true
	}
	for _, p := range f {
		if matchTopicPattern(p, topic) {
			return true
		}
	}
	return false
}

// matchTopicPattern matches a dotted topic against a pattern where "*" is
// one segment and a trailing ">" is one or more segments.
func matchTopicPattern(pattern, topic string) bool {
	if pattern == topic {
		return true
	}
	want := strings.Split(pattern, ".")
	have := strings.Split(topic, ".")
	for i, seg := range want {
		switch {
		case seg == ">":
			return i < len(have)
		case i >= len(have):
			return false
		case seg != "*" && seg != have[i]:
			return false
		}
	}
	return len(want) == len(have)
}

type sseClient struct {
	filter topicFilter
	ch     chan *sseEvent
}

// Hub fans session events out to connected SSE clients. It implements
// events.Publisher.
type Hub struct {
	mu      sync.RWMutex
	clients map[*sseClient]struct{}
	seq     atomic.Uint64
	ring    replayRing
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*sseClient]struct{})}
}

// Publish encodes event as JSON and broadcasts it.
func (h *Hub) Publish(_ context.Context, topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event for %s: %w", topic, err)
	}
	h.broadcast(topic, payload)
	return nil
}

// Close is a no-op; streams end with their requests.
func (h *Hub) Close() error { return nil }

// Clients returns the number of connected SSE clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcast(topic string, payload []byte) {
	evt := sseEvent{ID: h.seq.Add(1), Topic: topic, Data: payload}
	h.ring.push(evt)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.filter.matches(topic) {
			continue
		}
		select {
		case c.ch <- &evt:
		default: // slow client
		}
	}
}

func (h *Hub) subscribe(topics []string) *sseClient {
	c := &sseClient{filter: topics, ch: make(chan *sseEvent, sseClientBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *Hub) unsubscribe(c *sseClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

func (h *Hub) eventsSince(id uint64) []*sseEvent {
	return h.ring.since(id)
}

// sseStream writes events to one response.
type sseStream struct {
	w http.ResponseWriter
	f http.Flusher
}

func (s sseStream) send(evts ...*sseEvent) {
	for _, evt := range evts {
		if evt.ID != 0 {
			fmt.Fprintf(s.w, "id:%d\n", evt.ID)
		}
		fmt.Fprintf(s.w, "event:%s\ndata:%s\n\n", evt.Topic, evt.Data)
	}
	s.f.Flush()
}

// handleEventStream handles GET /v1/events/stream.
//
// A fresh client first gets a schedview.state event; a client sending
// Last-Event-ID gets the buffered events it missed instead.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	client := s.hub.subscribe(parseTopicFilter(r.URL.Query().Get("topics")))
	defer s.hub.unsubscribe(client)

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	stream := sseStream{w: w, f: flusher}
	stream.send()

	if last := r.Header.Get("Last-Event-ID"); last != "" {
		if id, err := strconv.ParseUint(last, 10, 64); err == nil {
			var missed []*sseEvent
			for _, evt := range s.hub.eventsSince(id) {
				if client.filter.matches(evt.Topic) {
					missed = append(missed, evt)
				}
			}
			stream.send(missed...)
		}
	} else if client.filter.matches(TopicState) {
		if payload, err := json.Marshal(s.viewer.State()); err == nil {
			stream.send(&sseEvent{Topic: TopicState, Data: payload})
		}
	}

	keepalive := time.NewTicker(sseKeepaliveInterval)
	defer keepalive.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case evt := <-client.ch:
			stream.send(evt)
		case <-keepalive.C:
			fmt.Fprint(w, ":keepalive\n\n")
			flusher.Flush()
		}
	}
}
