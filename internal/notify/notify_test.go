package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thanksdoc/payrecon/internal/domain"
)

type message struct {
	subject string
	data    []byte
}

type fakeConn struct {
	mu            sync.Mutex
	failures      []error
	flushFailures []error
	attempts      int
	flushes       int
	messages      []message
}

func (c *fakeConn) Publish(subj string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts++
	if len(c.failures) > 0 {
		err := c.failures[0]
		c.failures = c.failures[1:]
		return err
	}
	c.messages = append(c.messages, message{subject: subj, data: data})
	return nil
}

func (c *fakeConn) FlushWithContext(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushes++
	if len(c.flushFailures) > 0 {
		err := c.flushFailures[0]
		c.flushFailures = c.flushFailures[1:]
		return err
	}
	return ctx.Err()
}

func quickRetry() backoff.BackOff {
	return backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), 3)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var outcome = domain.PaymentOutcome{
	EventID:     "evt_1",
	IntentID:    "pi_1",
	AmountMinor: 1999,
	Currency:    "gbp",
	Metadata:    map[string]string{"appointment_id": "appt_1"},
	OccurredAt:  time.Unix(1740819600, 0).UTC(),
}

func TestNATSNotifier_Subjects(t *testing.T) {
	conn := &fakeConn{}
	n := NewNATSNotifier(conn, "", discard(), WithBackOff(quickRetry))
	ctx := context.Background()

	require.NoError(t, n.PaymentSucceeded(ctx, outcome))
	require.NoError(t, n.PaymentFailed(ctx, outcome))

	require.Len(t, conn.messages, 2)
	assert.Equal(t, "payments.payment_intent.succeeded", conn.messages[0].subject)
	assert.Equal(t, "payments.payment_intent.payment_failed", conn.messages[1].subject)

	var got domain.PaymentOutcome
	require.NoError(t, json.Unmarshal(conn.messages[0].data, &got))
	assert.Equal(t, outcome, got)
}

func TestNATSNotifier_CustomPrefix(t *testing.T) {
	n := NewNATSNotifier(&fakeConn{}, "clinic", discard())
	assert.Equal(t, "clinic.payment_intent.succeeded", n.Subject(SubjectSucceeded))
}

func TestNATSNotifier_RetriesTransientErrors(t *testing.T) {
	conn := &fakeConn{failures: []error{nats.ErrTimeout, nats.ErrReconnectBufExceeded}}
	n := NewNATSNotifier(conn, "", discard(), WithBackOff(quickRetry))

	require.NoError(t, n.PaymentSucceeded(context.Background(), outcome))
	assert.Equal(t, 3, conn.attempts)
	assert.Len(t, conn.messages, 1)
}

func TestNATSNotifier_PermanentErrorNotRetried(t *testing.T) {
	conn := &fakeConn{failures: []error{nats.ErrConnectionClosed}}
	n := NewNATSNotifier(conn, "", discard(), WithBackOff(quickRetry))

	err := n.PaymentSucceeded(context.Background(), outcome)
	require.Error(t, err)
	assert.True(t, errors.Is(err, nats.ErrConnectionClosed))
	assert.Equal(t, 1, conn.attempts)
}

func TestNATSNotifier_GivesUp(t *testing.T) {
	conn := &fakeConn{failures: []error{nats.ErrTimeout, nats.ErrTimeout, nats.ErrTimeout, nats.ErrTimeout, nats.ErrTimeout}}
	n := NewNATSNotifier(conn, "", discard(), WithBackOff(quickRetry))

	err := n.PaymentFailed(context.Background(), outcome)
	require.Error(t, err)
	assert.Equal(t, 4, conn.attempts)
	assert.Empty(t, conn.messages)
}

func TestNATSNotifier_CanceledContext(t *testing.T) {
	conn := &fakeConn{failures: []error{nats.ErrTimeout, nats.ErrTimeout}}
	n := NewNATSNotifier(conn, "", discard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := n.PaymentSucceeded(ctx, outcome)
	require.Error(t, err)
	assert.Empty(t, conn.messages)
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewTextHandler(&buf, nil)))
	ctx := context.Background()

	require.NoError(t, n.PaymentSucceeded(ctx, outcome))
	failed := outcome
	failed.FailureCode = "card_declined"
	require.NoError(t, n.PaymentFailed(ctx, failed))

	assert.Contains(t, buf.String(), `msg="payment succeeded"`)
	assert.Contains(t, buf.String(), "intent_id=pi_1")
	assert.Contains(t, buf.String(), "failure_code=card_declined")
}

func TestNATSNotifier_FlushFailureDoesNotRepublish(t *testing.T) {
	conn := &fakeConn{flushFailures: []error{nats.ErrTimeout}}
	n := NewNATSNotifier(conn, "", discard(), WithBackOff(quickRetry))

	require.NoError(t, n.PaymentSucceeded(context.Background(), outcome))
	assert.Equal(t, 1, conn.attempts)
	assert.Equal(t, 2, conn.flushes)
	assert.Len(t, conn.messages, 1)
}

func TestNATSNotifier_ClosedConnectionOnFlushNotRetried(t *testing.T) {
	conn := &fakeConn{flushFailures: []error{nats.ErrConnectionClosed}}
	n := NewNATSNotifier(conn, "", discard(), WithBackOff(quickRetry))

	err := n.PaymentFailed(context.Background(), outcome)
	require.ErrorIs(t, err, nats.ErrConnectionClosed)
	assert.Equal(t, 1, conn.flushes)
}
