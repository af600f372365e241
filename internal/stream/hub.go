package stream

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/kapu/llm-chess-arena/internal/match"
	"github.com/kapu/llm-chess-arena/internal/obslog"
)

const subscriberBuffer = 64

// Hub fans match events out to websocket subscribers. Publishing never
// blocks: a subscriber that cannot keep up loses events.
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan match.Event
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan match.Event)}
}

// Publish implements match.Sink.
func (h *Hub) Publish(ev match.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			// Slow subscriber; drop the event.
		}
	}
}

func (h *Hub) subscribe() (int, chan match.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	ch := make(chan match.Event, subscriberBuffer)
	h.subs[id] = ch
	return id, ch
}

func (h *Hub) unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, id)
}

// ServeHTTP upgrades the request and streams events as JSON frames until the
// client disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		obslog.L().Warn("events_ws_accept_error", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	id, ch := h.subscribe()
	defer h.unsubscribe(id)
	obslog.L().Info("events_subscriber_connected", zap.Int("subscriber", id))

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-ch:
			wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(wctx, conn, ev)
			cancel()
			if err != nil {
				obslog.L().Debug("events_subscriber_dropped", zap.Int("subscriber", id), zap.Error(err))
				return
			}
		}
	}
}

// Serve starts the event feed on its own listener.
func Serve(addr string, h *Hub) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/events", h)
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			obslog.L().Error("events_server_error", zap.Error(err))
		}
	}()
	return srv
}
