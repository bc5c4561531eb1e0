package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/cortexuvula/lfgbot/internal/lfg"
	"github.com/google/uuid"
)

const (
	// sendBuffer is how many events a watcher may lag before it is dropped.
	sendBuffer   = 32
	writeTimeout = 5 * time.Second
)

// allContexts is the registry key for watchers without a context filter.
const allContexts = ""

type watcher struct {
	send    chan []byte
	dropped chan struct{}
	once    sync.Once
}

func newWatcher(buffer int) *watcher {
	return &watcher{send: make(chan []byte, buffer), dropped: make(chan struct{})}
}

func (w *watcher) drop() {
	w.once.Do(func() { close(w.dropped) })
}

// Hub tracks WebSocket watchers of the live event stream, keyed by the
// context they filter on, and fans dispatcher events out to them.
// Thread-safe via sync.RWMutex.
type Hub struct {
	mu       sync.RWMutex
	watchers map[string]map[string]*watcher
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		watchers: make(map[string]map[string]*watcher),
	}
}

// register adds a watcher for contextID ("" for every context).
func (h *Hub) register(contextID, id string, w *watcher) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.watchers[contextID] == nil {
		h.watchers[contextID] = make(map[string]*watcher)
	}
	h.watchers[contextID][id] = w
	slog.Debug("feed: registered", "context_id", contextID, "watcher", id)
}

// unregister removes a watcher. It reports whether the watcher was present.
func (h *Hub) unregister(contextID, id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	ws := h.watchers[contextID]
	if _, ok := ws[id]; !ok {
		return false
	}
	delete(ws, id)
	if len(ws) == 0 {
		delete(h.watchers, contextID)
	}
	slog.Debug("feed: unregistered", "context_id", contextID, "watcher", id)
	return true
}

// Count returns the number of watchers filtering on contextID.
func (h *Hub) Count(contextID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.watchers[contextID])
}

// Len returns the total number of watchers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, ws := range h.watchers {
		n += len(ws)
	}
	return n
}

// Observe queues ev for every watcher of its context and every unfiltered
// watcher. It never blocks: a watcher whose queue is full is disconnected.
// It satisfies lfg.Observer.
func (h *Hub) Observe(ev lfg.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		slog.Error("feed: marshal event", "error", err)
		return
	}

	type target struct {
		contextID, id string
		w             *watcher
	}
	h.mu.RLock()
	var targets []target
	for _, key := range []string{allContexts, ev.ContextID} {
		for id, w := range h.watchers[key] {
			targets = append(targets, target{key, id, w})
		}
		if ev.ContextID == allContexts {
			break
		}
	}
	h.mu.RUnlock()

	for _, t := range targets {
		select {
		case t.w.send <- payload:
		default:
			slog.Warn("feed: watcher too slow, disconnecting", "watcher", t.id)
			h.unregister(t.contextID, t.id)
			t.w.drop()
		}
	}
}

// ServeHTTP upgrades the request to a WebSocket and streams events as JSON
// text frames until the client goes away. ?context= restricts the stream
// to one context.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Debug("feed: accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	contextID := r.URL.Query().Get("context")
	id := uuid.NewString()
	wt := newWatcher(sendBuffer)
	h.register(contextID, id, wt)
	defer h.unregister(contextID, id)

	// The stream is one-way; CloseRead handles control frames and cancels
	// ctx when the client disconnects.
	ctx := conn.CloseRead(r.Context())

	for {
		select {
		case <-ctx.Done():
			return
		case <-wt.dropped:
			conn.Close(websocket.StatusPolicyViolation, "too slow")
			return
		case payload := <-wt.send:
			if err := writeWithTimeout(ctx, conn, payload); err != nil {
				slog.Debug("feed: write failed", "watcher", id, "error", err)
				return
			}
		}
	}
}

func writeWithTimeout(ctx context.Context, conn *websocket.Conn, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, payload)
}
