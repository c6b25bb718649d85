// Package api provides the HTTP intake and WebSocket notification
// endpoints of the order engine.
package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"swap-enginev1/internal/metrics"
	"swap-enginev1/internal/model"
	"swap-enginev1/internal/notify"
	"swap-enginev1/internal/store/sqlite"
)

// Enqueuer hands an accepted order to the durable queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, order model.Order) error
}

// Server holds the handlers' collaborators.
type Server struct {
	queue   Enqueuer
	hub     *notify.Hub
	journal *sqlite.Journal
	prom    *metrics.Metrics
}

// NewServer creates the API server.
func NewServer(queue Enqueuer, hub *notify.Hub, journal *sqlite.Journal, prom *metrics.Metrics) *Server {
	return &Server{queue: queue, hub: hub, journal: journal, prom: prom}
}

// Routes builds the HTTP handler: order intake, WS endpoints, and the
// operator's dead-letter listing, wrapped in CORS and request logging.
func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/orders", s.handleCreateOrder).Methods(http.MethodPost)
	r.HandleFunc("/api/deadletters", s.handleDeadLetters).Methods(http.MethodGet)
	r.HandleFunc("/ws/orders/{orderId}", s.handleOrderWS).Methods(http.MethodGet)
	r.HandleFunc("/ws/ping", s.handlePingWS).Methods(http.MethodGet)

	r.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":"order engine is running"}`))
	}).Methods(http.MethodGet)

	return cors.AllowAll().Handler(logRequests(r))
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("[api] %s %s (%v)", r.Method, r.URL.Path, time.Since(start).Round(time.Microsecond))
	})
}
