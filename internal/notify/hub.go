// Package notify owns the order-id → subscriber registry and pushes status
// updates to whichever connection is currently registered for an order.
// Delivery is best-effort: nothing is queued or replayed for late joiners.
package notify

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"swap-enginev1/internal/model"
)

// Outcome is the first-class result of a delivery attempt.
type Outcome int

const (
	// Delivered means the event was handed to the subscriber's send queue.
	Delivered Outcome = iota
	// NoSubscriber means nobody is registered for the order id.
	NoSubscriber
	// SubscriberGone means a subscriber exists but its queue is saturated
	// or the connection is on its way down; the event is dropped.
	SubscriberGone
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case NoSubscriber:
		return "no_subscriber"
	case SubscriberGone:
		return "subscriber_gone"
	}
	return "unknown"
}

const (
	sendQueueSize = 64
	writeTimeout  = 10 * time.Second
	pongTimeout   = 60 * time.Second
	pingInterval  = 30 * time.Second
)

// Hub maps order ids to live subscribers. It is owned explicitly by main
// and injected into both the connection-accept path and the worker pool.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]*subscriber

	// OnCountChange, when set, observes the subscriber count after every
	// register/remove. Used to feed the connected-clients gauge.
	OnCountChange func(n int)
}

type subscriber struct {
	orderID string
	conn    *websocket.Conn
	send    chan []byte
}

// NewHub creates an empty registry.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]*subscriber)}
}

// Register stores conn as the subscriber for orderID and starts its read
// and write pumps. A prior subscriber for the same order id is closed and
// replaced; leaving it orphaned would leak its pumps until a network timeout.
func (h *Hub) Register(orderID string, conn *websocket.Conn) {
	sub := &subscriber{
		orderID: orderID,
		conn:    conn,
		send:    make(chan []byte, sendQueueSize),
	}

	h.mu.Lock()
	prior := h.subs[orderID]
	h.subs[orderID] = sub
	count := len(h.subs)
	h.mu.Unlock()

	if prior != nil {
		prior.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "superseded"),
			time.Now().Add(time.Second))
		prior.conn.Close()
		log.Printf("[notify] replaced subscriber for order %s", orderID)
	}

	log.Printf("[notify] subscriber connected for order %s (%d total)", orderID, count)
	h.notifyCount(count)

	go sub.writePump()
	go sub.readPump(h)
}

// Notify delivers an ORDER_UPDATE for orderID if a subscriber is currently
// registered. The send is bounded and non-blocking; the worker pipeline is
// never stalled on a slow or absent client.
func (h *Hub) Notify(orderID string, status model.Status, extra Extra) Outcome {
	frame := NewEvent(orderID, status, extra).Marshal()

	h.mu.RLock()
	defer h.mu.RUnlock()

	sub, ok := h.subs[orderID]
	if !ok {
		return NoSubscriber
	}
	select {
	case sub.send <- frame:
		return Delivered
	default:
		return SubscriberGone
	}
}

// Count returns the number of live subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// remove drops sub from the registry if it is still the current entry for
// its order id. A replaced subscriber must not evict its replacement.
func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	current := h.subs[sub.orderID] == sub
	if current {
		delete(h.subs, sub.orderID)
	}
	// Safe: Notify only ever reaches the current entry, and it holds the
	// read lock for the duration of its send.
	close(sub.send)
	count := len(h.subs)
	h.mu.Unlock()

	if current {
		log.Printf("[notify] subscriber disconnected for order %s", sub.orderID)
		h.notifyCount(count)
	}
}

func (h *Hub) notifyCount(n int) {
	if h.OnCountChange != nil {
		h.OnCountChange(n)
	}
}

func (s *subscriber) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-s.send:
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes control frames and detects closure. Subscribers never
// send application data; anything readable is discarded.
func (s *subscriber) readPump(h *Hub) {
	defer func() {
		h.remove(s)
		s.conn.Close()
	}()

	s.conn.SetReadLimit(512)
	s.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}
