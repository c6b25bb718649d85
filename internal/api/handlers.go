package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"swap-enginev1/internal/model"
	"swap-enginev1/internal/store/sqlite"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type createOrderRequest struct {
	InputToken  string   `json:"inputToken"`
	OutputToken string   `json:"outputToken"`
	Amount      *float64 `json:"amount"`
}

type createOrderResponse struct {
	Message string `json:"message"`
	OrderID string `json:"orderId"`
}

// handleCreateOrder validates the intake request, assigns an id, enqueues
// a PENDING order and returns immediately. The caller is never blocked on
// routing or execution.
func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.reject(w, "invalid JSON body")
		return
	}
	if req.InputToken == "" || req.OutputToken == "" || req.Amount == nil {
		s.reject(w, "Missing required fields")
		return
	}
	if *req.Amount <= 0 {
		s.reject(w, "amount must be positive")
		return
	}

	order := model.Order{
		ID:          uuid.NewString(),
		Type:        model.OrderTypeMarket,
		Side:        model.SideBuy,
		InputToken:  req.InputToken,
		OutputToken: req.OutputToken,
		Amount:      *req.Amount,
		Status:      model.StatusPending,
	}

	if err := s.queue.Enqueue(r.Context(), order); err != nil {
		log.Printf("[api] enqueue failed for order %s: %v", order.ID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to queue order"})
		return
	}

	if s.prom != nil {
		s.prom.OrdersAccepted.Inc()
	}
	writeJSON(w, http.StatusCreated, createOrderResponse{
		Message: "Order queued successfully",
		OrderID: order.ID,
	})
}

func (s *Server) reject(w http.ResponseWriter, msg string) {
	if s.prom != nil {
		s.prom.OrdersRejected.Inc()
	}
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

// handleOrderWS upgrades the connection and registers it as the order's
// subscriber. Any valid-looking order id is accepted; the hub has no
// knowledge of authentication.
func (s *Server) handleOrderWS(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["orderId"]
	if orderID == "" {
		http.Error(w, "missing order id", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[api] ws upgrade error: %v", err)
		return
	}
	s.hub.Register(orderID, conn)
}

// handlePingWS is a connectivity probe: answers a single "pong" frame.
func (s *Server) handlePingWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn.WriteMessage(websocket.TextMessage, []byte("pong"))
	conn.Close()
}

// handleDeadLetters lists recently dead-lettered orders for operators.
func (s *Server) handleDeadLetters(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	entries, err := s.journal.Recent(r.Context(), 50)
	if err != nil {
		log.Printf("[api] dead-letter query failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "query failed"})
		return
	}
	if entries == nil {
		entries = []sqlite.DeadLetter{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
