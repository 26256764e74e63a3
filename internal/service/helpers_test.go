package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/thanksdoc/payrecon/internal/domain"
)

func testOptions() Options {
	return Options{
		GatewayTimeout: time.Second,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingNotifier captures dispatched outcomes.
type recordingNotifier struct {
	mu        sync.Mutex
	succeeded []domain.PaymentOutcome
	failed    []domain.PaymentOutcome
	err       error
}

func (n *recordingNotifier) PaymentSucceeded(ctx context.Context, outcome domain.PaymentOutcome) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.succeeded = append(n.succeeded, outcome)
	return n.err
}

func (n *recordingNotifier) PaymentFailed(ctx context.Context, outcome domain.PaymentOutcome) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, outcome)
	return n.err
}

func (n *recordingNotifier) counts() (int, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.succeeded), len(n.failed)
}
