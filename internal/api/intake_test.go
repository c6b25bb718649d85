package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"swap-enginev1/internal/model"
	"swap-enginev1/internal/notify"
)

type fakeEnqueuer struct {
	orders []model.Order
	err    error
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, order model.Order) error {
	if f.err != nil {
		return f.err
	}
	f.orders = append(f.orders, order)
	return nil
}

func postOrder(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func newTestHandler(q Enqueuer) http.Handler {
	return NewServer(q, notify.NewHub(), nil, nil).Routes()
}

func TestIntakeAcceptsValidOrder(t *testing.T) {
	q := &fakeEnqueuer{}
	h := newTestHandler(q)

	rec := postOrder(t, h, `{"inputToken":"SOL","outputToken":"USDC","amount":10}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want 201 (body: %s)", rec.Code, rec.Body)
	}

	var resp createOrderResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response decode: %v", err)
	}
	if resp.OrderID == "" {
		t.Error("expected non-empty orderId")
	}

	if len(q.orders) != 1 {
		t.Fatalf("enqueued %d orders, want 1", len(q.orders))
	}
	order := q.orders[0]
	if order.ID != resp.OrderID {
		t.Errorf("enqueued id %q != returned id %q", order.ID, resp.OrderID)
	}
	if order.Status != model.StatusPending {
		t.Errorf("status: got %s, want PENDING", order.Status)
	}
	if order.Type != model.OrderTypeMarket {
		t.Errorf("type: got %s, want MARKET", order.Type)
	}
	if order.Amount != 10 {
		t.Errorf("amount: got %v, want 10", order.Amount)
	}
}

func TestIntakeOrderIDsUnique(t *testing.T) {
	q := &fakeEnqueuer{}
	h := newTestHandler(q)

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		rec := postOrder(t, h, `{"inputToken":"SOL","outputToken":"USDC","amount":1}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("status: got %d, want 201", rec.Code)
		}
		var resp createOrderResponse
		json.Unmarshal(rec.Body.Bytes(), &resp)
		if seen[resp.OrderID] {
			t.Fatalf("duplicate order id %q", resp.OrderID)
		}
		seen[resp.OrderID] = true
	}
}

func TestIntakeRejectsMissingFields(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing inputToken", `{"outputToken":"USDC","amount":10}`},
		{"missing outputToken", `{"inputToken":"SOL","amount":10}`},
		{"missing amount", `{"inputToken":"SOL","outputToken":"USDC"}`},
		{"zero amount", `{"inputToken":"SOL","outputToken":"USDC","amount":0}`},
		{"negative amount", `{"inputToken":"SOL","outputToken":"USDC","amount":-5}`},
		{"not json", `{{{`},
	}

	for _, c := range cases {
		q := &fakeEnqueuer{}
		h := newTestHandler(q)

		rec := postOrder(t, h, c.body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status got %d, want 400", c.name, rec.Code)
		}
		if len(q.orders) != 0 {
			t.Errorf("%s: rejected request must not enqueue", c.name)
		}
	}
}

func TestIntakeEnqueueFailure(t *testing.T) {
	q := &fakeEnqueuer{err: context.DeadlineExceeded}
	h := newTestHandler(q)

	rec := postOrder(t, h, `{"inputToken":"SOL","outputToken":"USDC","amount":10}`)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status: got %d, want 500", rec.Code)
	}
}
