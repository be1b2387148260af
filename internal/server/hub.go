package server

import (
	"io"
	"strings"
	"sync"
)

// subscriberBuffer is how many lines a slow subscriber may fall behind
// before further lines are dropped for it
const subscriberBuffer = 256

// Hub fans log lines out to the live log subscribers of each callback id
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan string]struct{}
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan string]struct{})}
}

// Subscribe returns a channel receiving every line published for id.
// The returned function unsubscribes and closes the channel.
func (h *Hub) Subscribe(id string) (<-chan string, func()) {
	ch := make(chan string, subscriberBuffer)

	h.mu.Lock()
	if h.subs[id] == nil {
		h.subs[id] = make(map[chan string]struct{})
	}
	h.subs[id][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[id], ch)
			if len(h.subs[id]) == 0 {
				delete(h.subs, id)
			}
			close(ch)
		})
	}
}

// Publish sends line to the current subscribers of id without blocking
func (h *Hub) Publish(id, line string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[id] {
		select {
		case ch <- line:
		default:
		}
	}
}

// Subscribers returns how many subscribers id has
func (h *Hub) Subscribers(id string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[id])
}

// Writer returns an io.Writer publishing each write as one line for id
func (h *Hub) Writer(id string) io.Writer {
	return hubWriter{hub: h, id: id}
}

type hubWriter struct {
	hub *Hub
	id  string
}

func (w hubWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		w.hub.Publish(w.id, line)
	}
	return len(p), nil
}
