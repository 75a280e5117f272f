package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/gapcheck/internal/assessment"
	"github.com/felixgeelhaar/gapcheck/internal/events"
	amqp "github.com/rabbitmq/amqp091-go"
)

// fakeAcknowledger records how a delivery was settled
type fakeAcknowledger struct {
	mu       sync.Mutex
	acked    bool
	nacked   bool
	rejected bool
	requeue  bool
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = true
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nacked = true
	f.requeue = requeue
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejected = true
	f.requeue = requeue
	return nil
}

func delivery(t *testing.T, body any, ack *fakeAcknowledger) amqp.Delivery {
	t.Helper()
	var data []byte
	switch b := body.(type) {
	case []byte:
		data = b
	default:
		var err error
		data, err = json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
	}
	return amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: data}
}

func testEvent() *events.Event {
	return events.NewAssessmentCompleted("sess-1", assessment.Report{
		Catalog:          "c",
		Score:            50,
		Band:             assessment.BandModerate,
		ImplementedCount: 1,
		TotalQuestions:   2,
	})
}

func TestConsumerConfig_Defaults(t *testing.T) {
	cfg := ConsumerConfig{}.withDefaults()

	if cfg.Workers != 3 {
		t.Errorf("Workers = %d; want 3", cfg.Workers)
	}
	if cfg.Prefetch != 1 {
		t.Errorf("Prefetch = %d; want 1", cfg.Prefetch)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v; want 30s", cfg.Timeout)
	}
}

func TestConsumerConfig_PreservesCustom(t *testing.T) {
	cfg := ConsumerConfig{Workers: 10, Prefetch: 5, Timeout: time.Second}.withDefaults()

	if cfg.Workers != 10 || cfg.Prefetch != 5 || cfg.Timeout != time.Second {
		t.Errorf("withDefaults() = %+v; want custom values kept", cfg)
	}
}

func TestProcessMessage_Success(t *testing.T) {
	var got *events.Event
	c := NewConsumer(nil, func(ctx context.Context, ev *events.Event) error {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("handler context has no deadline")
		}
		got = ev
		return nil
	}, ConsumerConfig{})

	ack := &fakeAcknowledger{}
	c.processMessage(context.Background(), 0, delivery(t, testEvent(), ack))

	if !ack.acked {
		t.Error("message was not acked")
	}
	if got == nil {
		t.Fatal("handler was not called")
	}
	if got.SessionID != "sess-1" || got.Score != 50 {
		t.Errorf("event = %+v; want session sess-1 with score 50", got)
	}
	if got.Report == nil || got.Report.Band != assessment.BandModerate {
		t.Errorf("event report = %+v; want band moderate", got.Report)
	}
}

func TestProcessMessage_MalformedIsRejected(t *testing.T) {
	called := false
	c := NewConsumer(nil, func(context.Context, *events.Event) error {
		called = true
		return nil
	}, ConsumerConfig{})

	ack := &fakeAcknowledger{}
	c.processMessage(context.Background(), 0, delivery(t, []byte("{not json"), ack))

	if called {
		t.Error("handler called for malformed message")
	}
	if !ack.rejected || ack.requeue {
		t.Errorf("rejected = %v, requeue = %v; want rejected without requeue", ack.rejected, ack.requeue)
	}
}

func TestProcessMessage_InvalidEventIsRejected(t *testing.T) {
	c := NewConsumer(nil, func(context.Context, *events.Event) error { return nil }, ConsumerConfig{})

	ack := &fakeAcknowledger{}
	c.processMessage(context.Background(), 0, delivery(t, map[string]string{"type": "assessment.completed"}, ack))

	if !ack.rejected {
		t.Error("event without session id should be rejected")
	}
}

func TestProcessMessage_HandlerErrorRequeuesOnce(t *testing.T) {
	c := NewConsumer(nil, func(context.Context, *events.Event) error {
		return errors.New("archive unavailable")
	}, ConsumerConfig{})

	first := &fakeAcknowledger{}
	c.processMessage(context.Background(), 0, delivery(t, testEvent(), first))
	if !first.nacked || !first.requeue {
		t.Errorf("first failure: nacked = %v, requeue = %v; want requeue", first.nacked, first.requeue)
	}

	second := &fakeAcknowledger{}
	msg := delivery(t, testEvent(), second)
	msg.Redelivered = true
	c.processMessage(context.Background(), 0, msg)
	if !second.nacked || second.requeue {
		t.Errorf("redelivered failure: nacked = %v, requeue = %v; want drop", second.nacked, second.requeue)
	}
}

func TestConsumer_StopWithoutStart(t *testing.T) {
	c := NewConsumer(nil, func(context.Context, *events.Event) error { return nil }, DefaultConsumerConfig())
	c.Stop()
}
