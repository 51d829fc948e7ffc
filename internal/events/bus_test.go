package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/noah-isme/backend-pos/internal/events"
)

type memStore struct {
	inserted []events.Event
	fail     error
}

func (m *memStore) InsertDomainEvent(_ context.Context, topic, aggregateID string, payload []byte) (events.Event, error) {
	if m.fail != nil {
		return events.Event{}, m.fail
	}
	ev := events.Event{
		ID:          int64(len(m.inserted) + 1),
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     payload,
		OccurredAt:  time.Now(),
	}
	m.inserted = append(m.inserted, ev)
	return ev, nil
}

type recordingNotifier struct {
	seen []events.Event
	fail error
}

func (n *recordingNotifier) Notify(_ context.Context, ev events.Event) error {
	n.seen = append(n.seen, ev)
	return n.fail
}

func TestEmitPersistsAndNotifies(t *testing.T) {
	store := &memStore{}
	notifier := &recordingNotifier{}
	bus := &events.Bus{Store: store, Notifiers: []events.Notifier{notifier}}

	ev, err := bus.Emit(context.Background(), events.TopicSaleCompleted, "TRX-1", map[string]any{"grand_total": "112.00"})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if ev.ID != 1 || ev.Topic != events.TopicSaleCompleted {
		t.Fatalf("unexpected event %+v", ev)
	}
	if len(store.inserted) != 1 {
		t.Fatalf("expected 1 persisted event, got %d", len(store.inserted))
	}
	if len(notifier.seen) != 1 {
		t.Fatalf("expected notifier to run, saw %d", len(notifier.seen))
	}
	var payload map[string]any
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["grand_total"] != "112.00" {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestEmitValidation(t *testing.T) {
	bus := &events.Bus{Store: &memStore{}}
	if _, err := bus.Emit(context.Background(), "  ", "agg", nil); err == nil {
		t.Fatal("expected error for blank topic")
	}
	if _, err := bus.Emit(context.Background(), events.TopicPriceUpdated, "", nil); err == nil {
		t.Fatal("expected error for blank aggregate id")
	}
}

func TestEmitStoreFailure(t *testing.T) {
	storeErr := errors.New("db down")
	notifier := &recordingNotifier{}
	bus := &events.Bus{Store: &memStore{fail: storeErr}, Notifiers: []events.Notifier{notifier}}

	if _, err := bus.Emit(context.Background(), events.TopicStockAdjusted, "1", nil); err == nil {
		t.Fatal("expected persistence failure to surface")
	}
	if len(notifier.seen) != 0 {
		t.Fatal("notifiers must not run when persistence fails")
	}
}

func TestEmitNotifierErrorsDoNotLoseEvent(t *testing.T) {
	store := &memStore{}
	bad := &recordingNotifier{fail: errors.New("webhook down")}
	good := &recordingNotifier{}
	bus := &events.Bus{Store: store, Notifiers: []events.Notifier{bad, good}}

	ev, err := bus.Emit(context.Background(), events.TopicStockAdjusted, "1", nil)
	if err == nil {
		t.Fatal("expected joined notifier error")
	}
	if ev.ID == 0 {
		t.Fatal("event must still be persisted and returned")
	}
	if len(good.seen) != 1 {
		t.Fatal("remaining notifiers must still run")
	}
}
