package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"swap-enginev1/internal/model"
)

var testUpgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

// startHubServer serves WS upgrades at /{orderId} and registers each
// connection with the hub, mirroring the API boundary.
func startHubServer(t *testing.T, h *Hub) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		orderID := strings.TrimPrefix(r.URL.Path, "/")
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		h.Register(orderID, conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, orderID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/" + orderID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(frame, &ev); err != nil {
		t.Fatalf("frame decode: %v\nraw: %s", err, frame)
	}
	return ev
}

func waitForCount(t *testing.T, h *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Count() != want {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber count: got %d, want %d", h.Count(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNotifyDeliversToSubscriber(t *testing.T) {
	h := NewHub()
	srv := startHubServer(t, h)

	conn := dial(t, srv, "order-1")
	defer conn.Close()
	waitForCount(t, h, 1)

	if out := h.Notify("order-1", model.StatusRouting, Extra{}); out != Delivered {
		t.Fatalf("outcome: got %v, want Delivered", out)
	}

	ev := readEvent(t, conn)
	if ev.Type != "ORDER_UPDATE" {
		t.Errorf("type: got %q, want ORDER_UPDATE", ev.Type)
	}
	if ev.OrderID != "order-1" {
		t.Errorf("orderId: got %q, want order-1", ev.OrderID)
	}
	if ev.Status != model.StatusRouting {
		t.Errorf("status: got %q, want ROUTING", ev.Status)
	}
}

func TestNotifyWithoutSubscriber(t *testing.T) {
	h := NewHub()
	if out := h.Notify("nobody", model.StatusRouting, Extra{}); out != NoSubscriber {
		t.Errorf("outcome: got %v, want NoSubscriber", out)
	}
}

func TestNotifyAfterDisconnect(t *testing.T) {
	h := NewHub()
	srv := startHubServer(t, h)

	conn := dial(t, srv, "order-2")
	waitForCount(t, h, 1)
	conn.Close()
	waitForCount(t, h, 0)

	if out := h.Notify("order-2", model.StatusConfirmed, Extra{}); out != NoSubscriber {
		t.Errorf("outcome: got %v, want NoSubscriber after disconnect", out)
	}
}

// TestNoCrossDelivery: order A never receives order B's updates.
func TestNoCrossDelivery(t *testing.T) {
	h := NewHub()
	srv := startHubServer(t, h)

	connA := dial(t, srv, "order-A")
	defer connA.Close()
	connB := dial(t, srv, "order-B")
	defer connB.Close()
	waitForCount(t, h, 2)

	h.Notify("order-A", model.StatusRouting, Extra{})
	h.Notify("order-B", model.StatusConfirmed, Extra{TxHash: "solana_tx_b"})

	evA := readEvent(t, connA)
	if evA.OrderID != "order-A" || evA.Status != model.StatusRouting {
		t.Errorf("A received %s/%s", evA.OrderID, evA.Status)
	}
	evB := readEvent(t, connB)
	if evB.OrderID != "order-B" || evB.Status != model.StatusConfirmed {
		t.Errorf("B received %s/%s", evB.OrderID, evB.Status)
	}
}

// TestRegisterReplacesAndClosesPrior: a second connection for the same
// order id supersedes the first, and the first is actively closed.
func TestRegisterReplacesAndClosesPrior(t *testing.T) {
	h := NewHub()
	srv := startHubServer(t, h)

	first := dial(t, srv, "order-3")
	defer first.Close()
	waitForCount(t, h, 1)

	second := dial(t, srv, "order-3")
	defer second.Close()

	// The prior connection gets a close frame.
	first.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := first.ReadMessage(); err == nil {
		t.Error("expected close on superseded connection")
	}

	if out := h.Notify("order-3", model.StatusBuilding, Extra{}); out != Delivered {
		t.Fatalf("outcome: got %v, want Delivered", out)
	}
	ev := readEvent(t, second)
	if ev.Status != model.StatusBuilding {
		t.Errorf("status: got %q, want BUILDING", ev.Status)
	}
}

// TestPerOrderDeliveryOrder: events for one order arrive in emission order.
func TestPerOrderDeliveryOrder(t *testing.T) {
	h := NewHub()
	srv := startHubServer(t, h)

	conn := dial(t, srv, "order-4")
	defer conn.Close()
	waitForCount(t, h, 1)

	sequence := []model.Status{
		model.StatusRouting, model.StatusRoutingComplete,
		model.StatusBuilding, model.StatusSubmitted, model.StatusConfirmed,
	}
	for _, st := range sequence {
		if out := h.Notify("order-4", st, Extra{}); out != Delivered {
			t.Fatalf("notify %s: got %v, want Delivered", st, out)
		}
	}
	for i, want := range sequence {
		ev := readEvent(t, conn)
		if ev.Status != want {
			t.Fatalf("event %d: got %q, want %q", i, ev.Status, want)
		}
	}
}
