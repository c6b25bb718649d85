package pipeline

import (
	"context"
	"errors"
	"testing"

	"swap-enginev1/internal/model"
	"swap-enginev1/internal/notify"
	"swap-enginev1/internal/queue"
)

type fakeRouter struct {
	quote model.Quote
	err   error
}

func (f *fakeRouter) FindBestRoute(ctx context.Context, in, out string, amount float64) (model.Quote, error) {
	return f.quote, f.err
}

type fakeExecutor struct {
	result model.ExecutionResult
	err    error
}

func (f *fakeExecutor) ExecuteSwap(ctx context.Context, venue string, order model.Order, finalPrice float64) (model.ExecutionResult, error) {
	if f.err != nil {
		return model.ExecutionResult{}, f.err
	}
	res := f.result
	res.ExecutedPrice = finalPrice
	return res, nil
}

type recordedEvent struct {
	orderID string
	status  model.Status
	extra   notify.Extra
}

type recordingNotifier struct {
	events []recordedEvent
}

func (r *recordingNotifier) Notify(orderID string, status model.Status, extra notify.Extra) notify.Outcome {
	r.events = append(r.events, recordedEvent{orderID, status, extra})
	return notify.Delivered
}

func (r *recordingNotifier) statuses() []model.Status {
	out := make([]model.Status, len(r.events))
	for i, e := range r.events {
		out[i] = e.status
	}
	return out
}

func marketJob(id string, amount float64) queue.Job {
	return queue.Job{
		Order: model.Order{
			ID: id, Type: model.OrderTypeMarket, Side: model.SideBuy,
			InputToken: "SOL", OutputToken: "USDC", Amount: amount,
			Status: model.StatusPending,
		},
		Attempt: 1,
	}
}

func equalStatuses(got, want []model.Status) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestProcessHappyPath(t *testing.T) {
	quote := model.Quote{Venue: "RAYDIUM", Price: 151.5, Fee: 0.003, AmountOut: 1515}
	rec := &recordingNotifier{}
	p := New(
		&fakeRouter{quote: quote},
		&fakeExecutor{result: model.ExecutionResult{TxID: "solana_tx_ok", Success: true}},
		rec, nil,
	)

	if err := p.Process(context.Background(), marketJob("order-1", 10)); err != nil {
		t.Fatalf("Process: %v", err)
	}

	want := []model.Status{
		model.StatusRouting, model.StatusRoutingComplete,
		model.StatusBuilding, model.StatusSubmitted, model.StatusConfirmed,
	}
	if got := rec.statuses(); !equalStatuses(got, want) {
		t.Fatalf("transitions: got %v, want %v", got, want)
	}

	rc := rec.events[1]
	if rc.extra.Route != "RAYDIUM" || rc.extra.Price != 151.5 {
		t.Errorf("ROUTING_COMPLETE extras: got %+v", rc.extra)
	}
	final := rec.events[len(rec.events)-1]
	if final.extra.TxHash != "solana_tx_ok" {
		t.Errorf("CONFIRMED txHash: got %q", final.extra.TxHash)
	}
	if final.extra.ExecutedPrice != quote.Price {
		t.Errorf("executedPrice: got %v, want %v", final.extra.ExecutedPrice, quote.Price)
	}
	for _, e := range rec.events {
		if e.orderID != "order-1" {
			t.Errorf("event for wrong order: %q", e.orderID)
		}
	}
}

func TestProcessRoutingFailure(t *testing.T) {
	rec := &recordingNotifier{}
	p := New(&fakeRouter{err: errors.New("venue down")}, &fakeExecutor{}, rec, nil)

	err := p.Process(context.Background(), marketJob("order-2", 10))
	if err == nil {
		t.Fatal("expected routing error")
	}
	if errors.Is(err, queue.ErrNonRetryable) {
		t.Error("routing failures must stay retryable")
	}

	want := []model.Status{model.StatusRouting, model.StatusFailed}
	if got := rec.statuses(); !equalStatuses(got, want) {
		t.Fatalf("transitions: got %v, want %v", got, want)
	}
	if reason := rec.events[1].extra.Reason; reason == "" {
		t.Error("FAILED event missing reason")
	}
}

func TestProcessExecutionFailure(t *testing.T) {
	quote := model.Quote{Venue: "METEORA", Price: 150, AmountOut: 1500}
	rec := &recordingNotifier{}
	p := New(&fakeRouter{quote: quote}, &fakeExecutor{err: errors.New("settlement failed")}, rec, nil)

	err := p.Process(context.Background(), marketJob("order-3", 10))
	if err == nil {
		t.Fatal("expected execution error")
	}
	if errors.Is(err, queue.ErrNonRetryable) {
		t.Error("execution failures must stay retryable")
	}

	want := []model.Status{
		model.StatusRouting, model.StatusRoutingComplete,
		model.StatusBuilding, model.StatusSubmitted, model.StatusFailed,
	}
	if got := rec.statuses(); !equalStatuses(got, want) {
		t.Fatalf("transitions: got %v, want %v", got, want)
	}
	if reason := rec.events[len(rec.events)-1].extra.Reason; reason == "" {
		t.Error("FAILED event missing reason")
	}
}

// TestProcessRejectsReservedTypes: LIMIT and SNIPER are reserved and must
// not be retried.
func TestProcessRejectsReservedTypes(t *testing.T) {
	for _, typ := range []model.OrderType{model.OrderTypeLimit, model.OrderTypeSniper} {
		rec := &recordingNotifier{}
		p := New(&fakeRouter{}, &fakeExecutor{}, rec, nil)

		job := marketJob("order-4", 10)
		job.Order.Type = typ

		err := p.Process(context.Background(), job)
		if !errors.Is(err, queue.ErrNonRetryable) {
			t.Errorf("%s: got %v, want ErrNonRetryable", typ, err)
		}
		want := []model.Status{model.StatusFailed}
		if got := rec.statuses(); !equalStatuses(got, want) {
			t.Errorf("%s transitions: got %v, want %v", typ, got, want)
		}
	}
}
