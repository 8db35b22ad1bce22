// Package httpapi exposes the small admin HTTP surface that sits beside
// the JSON-RPC tool front-end: a health probe, db_stats mirrored as JSON,
// Prometheus metrics, and the websocket upgrade endpoint for realtime
// change notifications.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"webmemcore/internal/realtime"
	"webmemcore/internal/store"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Router builds the admin HTTP mux for the server.
type Router struct {
	st  *store.Store
	hub *realtime.Hub
	mux *chi.Mux
}

// New wires the health/stats/metrics/websocket routes.
func New(st *store.Store, hub *realtime.Hub) *Router {
	r := &Router{st: st, hub: hub, mux: chi.NewRouter()}

	r.mux.Use(chimiddleware.Recoverer)
	r.mux.Use(chimiddleware.Logger)
	r.mux.Use(chimiddleware.Timeout(10 * time.Second))

	r.mux.Get("/healthz", r.handleHealthz)
	r.mux.Get("/stats", r.handleStats)
	r.mux.Handle("/metrics", promhttp.Handler())
	r.mux.Get("/ws", r.handleWebSocket)

	return r
}

// Handler returns the http.Handler to mount on a net/http.Server.
func (r *Router) Handler() http.Handler { return r.mux }

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (r *Router) handleStats(w http.ResponseWriter, req *http.Request) {
	stats, err := r.st.CollectStats(req.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(stats)
}

func (r *Router) handleWebSocket(w http.ResponseWriter, req *http.Request) {
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}
	clientID := req.RemoteAddr
	r.hub.Register(context.Background(), clientID, conn)
}
