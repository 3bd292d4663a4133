package serve

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"calmh.dev/qibla/internal/chime"
	"calmh.dev/qibla/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/exp/slog"
)

const (
	wsBufferSize   = 64
	wsWriteTimeout = 5 * time.Second
)

var (
	wsClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "qibla",
		Subsystem: "http",
		Name:      "websocket_clients",
	})
	wsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "qibla",
		Subsystem: "http",
		Name:      "websocket_dropped_total",
	})
)

// hub fans published snapshots out to websocket subscribers.
type hub struct {
	mut  sync.Mutex
	subs map[chan session.Snapshot]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[chan session.Snapshot]struct{})}
}

// Publish never blocks; a subscriber that is behind misses the update.
func (h *hub) Publish(snap session.Snapshot) {
	h.mut.Lock()
	defer h.mut.Unlock()
	for c := range h.subs {
		select {
		case c <- snap:
		default:
			wsDropped.Inc()
		}
	}
}

func (h *hub) subscribe() chan session.Snapshot {
	c := make(chan session.Snapshot, wsBufferSize)
	h.mut.Lock()
	h.subs[c] = struct{}{}
	h.mut.Unlock()
	wsClients.Inc()
	return c
}

func (h *hub) unsubscribe(c chan session.Snapshot) {
	h.mut.Lock()
	delete(h.subs, c)
	h.mut.Unlock()
	wsClients.Dec()
}

type httpServer struct {
	addr   string
	loop   *session.Loop
	hub    *hub
	logger *slog.Logger
	up     websocket.Upgrader
}

func (s *httpServer) String() string {
	return fmt.Sprintf("http-server(%s)@%p", s.addr, s)
}

func (s *httpServer) Serve(ctx context.Context) error {
	list, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		list.Close()
	}()

	return http.Serve(list, s.router())
}

func (s *httpServer) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/state", s.getState)
	r.Get("/ws", s.getWebsocket)
	r.Post("/chime/test", s.postTestChime)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func (s *httpServer) getState(w http.ResponseWriter, _ *http.Request) {
	cur := s.loop.Current()
	if cur == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no active session"})
		return
	}
	writeJSON(w, http.StatusOK, cur.Snapshot())
}

func (s *httpServer) postTestChime(w http.ResponseWriter, _ *http.Request) {
	cur := s.loop.Current()
	if cur == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no active session"})
		return
	}
	outcome := cur.TestSound(time.Now())
	status := http.StatusOK
	if outcome == chime.Unavailable {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"outcome": outcome.String()})
}

func (s *httpServer) getWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.up.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("Websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	updates := s.hub.subscribe()
	defer s.hub.unsubscribe(updates)

	// Reads only serve to notice the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if cur := s.loop.Current(); cur != nil {
		if err := writeWebsocket(conn, cur.Snapshot()); err != nil {
			return
		}
	}

	for {
		select {
		case snap := <-updates:
			if err := writeWebsocket(conn, snap); err != nil {
				s.logger.Debug("Websocket write failed", "error", err)
				return
			}
		case <-gone:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func writeWebsocket(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
