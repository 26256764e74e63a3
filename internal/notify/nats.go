// Package notify delivers payment outcomes to the business backend.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nats-io/nats.go"

	"github.com/thanksdoc/payrecon/internal/domain"
)

const (
	SubjectSucceeded = "payment_intent.succeeded"
	SubjectFailed    = "payment_intent.payment_failed"

	DefaultSubjectPrefix = "payments"
)

// Publisher is the subset of *nats.Conn the notifier needs.
type Publisher interface {
	Publish(subj string, data []byte) error
	FlushWithContext(ctx context.Context) error
}

// NATSNotifier publishes payment outcomes as JSON on NATS subjects.
type NATSNotifier struct {
	conn       Publisher
	prefix     string
	logger     *slog.Logger
	newBackOff func() backoff.BackOff
}

// Option configures a NATSNotifier.
type Option func(*NATSNotifier)

// WithBackOff replaces the retry policy used for transient publish errors.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(n *NATSNotifier) {
		n.newBackOff = fn
	}
}

// NewNATSNotifier wraps an established connection. An empty prefix uses DefaultSubjectPrefix.
func NewNATSNotifier(conn Publisher, prefix string, logger *slog.Logger, opts ...Option) *NATSNotifier {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	n := &NATSNotifier{
		conn:       conn,
		prefix:     prefix,
		logger:     logger,
		newBackOff: defaultBackOff,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Connect dials NATS with reconnect handling that logs through logger.
func Connect(url string, logger *slog.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("payrecon"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return nc, nil
}

func (n *NATSNotifier) PaymentSucceeded(ctx context.Context, outcome domain.PaymentOutcome) error {
	return n.publish(ctx, SubjectSucceeded, outcome)
}

func (n *NATSNotifier) PaymentFailed(ctx context.Context, outcome domain.PaymentOutcome) error {
	return n.publish(ctx, SubjectFailed, outcome)
}

// Subject returns the full subject an outcome kind is published on.
func (n *NATSNotifier) Subject(kind string) string {
	return n.prefix + "." + kind
}

func (n *NATSNotifier) publish(ctx context.Context, kind string, outcome domain.PaymentOutcome) error {
	subject := n.Subject(kind)
	data, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("encode outcome %s: %w", outcome.IntentID, err)
	}

	// Once the message is buffered only the flush is retried, so a slow
	// server does not receive it twice.
	published := false
	operation := func() error {
		if !published {
			if err := n.conn.Publish(subject, data); err != nil {
				if isPermanent(err) {
					return backoff.Permanent(err)
				}
				return err
			}
			published = true
		}
		if err := n.conn.FlushWithContext(ctx); err != nil {
			if isPermanent(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	}
	notify := func(err error, wait time.Duration) {
		n.logger.Warn("publish failed, retrying",
			"subject", subject,
			"intent_id", outcome.IntentID,
			"wait", wait,
			"error", err,
		)
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(n.newBackOff(), ctx), notify); err != nil {
		return fmt.Errorf("publish %s for %s: %w", subject, outcome.IntentID, err)
	}

	n.logger.Debug("outcome published", "subject", subject, "intent_id", outcome.IntentID, "event_id", outcome.EventID)
	return nil
}

func isPermanent(err error) bool {
	return errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, nats.ErrBadSubject) ||
		errors.Is(err, nats.ErrMaxPayload)
}

func defaultBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	bo.MaxElapsedTime = 10 * time.Second
	return bo
}
