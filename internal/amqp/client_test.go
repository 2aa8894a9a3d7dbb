package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"boekhouding/internal/core"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},  // capped at 30s
		{40, 30 * time.Second}, // no overflow
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			if got := exponentialBackoff(tt.attempt); got != tt.expected {
				t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, got, tt.expected)
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"EOF", errors.New("unexpected EOF"), true},
		{"broken pipe", errors.New("write: broken pipe"), true},
		{"closed delivery channel", errors.New("message channel closed"), true},
		{"handler error", errors.New("some other error"), false},
		{"cancelled", context.Canceled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConnectionError(tt.err); got != tt.expected {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestClient_CircuitBreaker(t *testing.T) {
	client := &Client{exchangeName: "test_exchange", queueName: "test_queue"}

	if client.isCircuitOpen() {
		t.Fatal("circuit breaker should be closed initially")
	}

	for i := 0; i < maxFailures; i++ {
		client.recordFailure()
	}
	if !client.isCircuitOpen() {
		t.Fatal("circuit breaker should be open after max failures")
	}

	client.lastFailure = time.Now().Add(-openTimeout - time.Second)
	if client.isCircuitOpen() {
		t.Fatal("circuit should allow a probe after the timeout")
	}
	if atomic.LoadInt32(&client.state) != StateHalfOpen {
		t.Fatal("state should be half-open after the timeout")
	}

	client.recordFailure()
	if atomic.LoadInt32(&client.state) != StateOpen {
		t.Fatal("a failed probe should reopen the circuit")
	}

	client.recordSuccess()
	if client.isCircuitOpen() || atomic.LoadInt64(&client.failureCount) != 0 {
		t.Fatal("success should reset the breaker")
	}
}

func TestClient_PublishShortCircuits(t *testing.T) {
	client := &Client{exchangeName: "test_exchange", queueName: "test_queue"}
	msg := NewTransactionChangedMessage(ActionCreated, "tx-1", core.NewDate(2024, 1, 2))

	atomic.StoreInt32(&client.state, StateOpen)
	client.lastFailure = time.Now()
	err := client.PublishTransactionChanged(context.Background(), msg)
	if err == nil || !strings.Contains(err.Error(), "circuit breaker is open") {
		t.Fatalf("expected circuit breaker error, got %v", err)
	}

	client.recordSuccess()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := client.PublishTransactionChanged(ctx, msg); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewTransactionChangedMessageDedupesDates(t *testing.T) {
	d := core.NewDate(2024, 3, 31)
	msg := NewTransactionChangedMessage(ActionUpdated, "tx", d, d, core.NewDate(2024, 4, 1), core.Date{})

	if len(msg.Dates) != 2 || msg.Dates[0] != "2024-03-31" || msg.Dates[1] != "2024-04-01" {
		t.Fatalf("unexpected dates: %v", msg.Dates)
	}
	if msg.Timestamp.IsZero() || time.Since(msg.Timestamp) > time.Second {
		t.Fatalf("timestamp should be recent: %v", msg.Timestamp)
	}
}

func TestTransactionChangedMessage_JSON(t *testing.T) {
	msg := NewTransactionChangedMessage(ActionDeleted, "abc", core.NewDate(2024, 7, 1))
	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsed, err := TransactionChangedMessageFromJSON(body)
	if err != nil {
		t.Fatalf("FromJSON() error = %v", err)
	}
	dates, err := parsed.AffectedDates()
	if err != nil || len(dates) != 1 || dates[0].Quarter() != 3 {
		t.Fatalf("unexpected dates %v err=%v", dates, err)
	}
	if parsed.Action != ActionDeleted || parsed.TransactionID != "abc" {
		t.Fatalf("unexpected message %+v", parsed)
	}
}

func TestTransactionChangedMessageFromJSON_Invalid(t *testing.T) {
	cases := map[string]string{
		"malformed":      `{"action":`,
		"unknown action": `{"action":"archived","transactionId":"x","dates":[]}`,
		"missing id":     `{"action":"created","dates":["2024-01-01"]}`,
		"bad date":       `{"action":"created","transactionId":"x","dates":["01-01-2024"]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := TransactionChangedMessageFromJSON([]byte(body)); err == nil {
				t.Fatalf("expected error for %s", body)
			}
		})
	}
}

type fakeAck struct {
	acked, nacked, requeued bool
}

func (f *fakeAck) Ack(bool) error { f.acked = true; return nil }
func (f *fakeAck) Nack(_, requeue bool) error {
	f.nacked, f.requeued = true, requeue
	return nil
}

func TestDispatch(t *testing.T) {
	good, _ := NewTransactionChangedMessage(ActionCreated, "tx", core.NewDate(2024, 1, 1)).ToJSON()
	ctx := context.Background()

	saved := retryDelay
	retryDelay = time.Millisecond
	t.Cleanup(func() { retryDelay = saved })

	t.Run("success acks", func(t *testing.T) {
		ack := &fakeAck{}
		var got string
		dispatch(ctx, good, false, ack, func(_ context.Context, m *TransactionChangedMessage) error {
			got = m.TransactionID
			return nil
		})
		if !ack.acked || ack.nacked || got != "tx" {
			t.Fatalf("unexpected ack state %+v got=%q", ack, got)
		}
	})

	t.Run("handler error requeues", func(t *testing.T) {
		ack := &fakeAck{}
		dispatch(ctx, good, false, ack, func(context.Context, *TransactionChangedMessage) error {
			return errors.New("sheets down")
		})
		if !ack.nacked || !ack.requeued {
			t.Fatalf("expected requeue, got %+v", ack)
		}
	})

	t.Run("second failure is dropped", func(t *testing.T) {
		ack := &fakeAck{}
		dispatch(ctx, good, true, ack, func(context.Context, *TransactionChangedMessage) error {
			return errors.New("sheets forbidden")
		})
		if !ack.nacked || ack.requeued {
			t.Fatalf("expected drop without requeue, got %+v", ack)
		}
	})

	t.Run("redelivery that succeeds acks", func(t *testing.T) {
		ack := &fakeAck{}
		dispatch(ctx, good, true, ack, func(context.Context, *TransactionChangedMessage) error { return nil })
		if !ack.acked || ack.nacked {
			t.Fatalf("unexpected ack state %+v", ack)
		}
	})

	t.Run("malformed is dropped", func(t *testing.T) {
		ack := &fakeAck{}
		called := false
		dispatch(ctx, []byte("nope"), false, ack, func(context.Context, *TransactionChangedMessage) error {
			called = true
			return nil
		})
		if called || !ack.nacked || ack.requeued {
			t.Fatalf("expected drop without requeue, got %+v called=%v", ack, called)
		}
	})
}
