package service

import (
	"context"
	"time"

	"tgforward/internal/models"

	"github.com/sirupsen/logrus"
)

// TestSignal is the canned payload returned by the synthetic test path.
type TestSignal struct {
	Pattern   string `json:"pattern"`
	Trade     string `json:"trade"`
	Direction string `json:"direction"`
}

// ForwardingService is the user-facing façade over the scheduler. It adds
// uptime tracking and the synthetic test path the API exposes.
type ForwardingService struct {
	scheduler *ForwardingScheduler
	conn      *ConnectionManager
	logger    *logrus.Logger
	startedAt time.Time
}

func NewForwardingService(scheduler *ForwardingScheduler, conn *ConnectionManager, logger *logrus.Logger) *ForwardingService {
	return &ForwardingService{
		scheduler: scheduler,
		conn:      conn,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Start begins forwarding. Idempotent.
func (f *ForwardingService) Start(ctx context.Context) error {
	return f.scheduler.Start(ctx)
}

// Stop halts forwarding. Idempotent.
func (f *ForwardingService) Stop() {
	f.scheduler.Stop()
}

// Status reports the current forwarding state and counters.
func (f *ForwardingService) Status() models.ForwardingStatus {
	count, last := f.scheduler.Stats()

	status := models.ForwardingStatus{
		Running:        f.scheduler.IsRunning(),
		ForwardedCount: count,
	}
	if !last.IsZero() {
		status.LastForwardedAt = &last
	}
	return status
}

// IsAuthenticated reports whether an authorized provider session exists.
func (f *ForwardingService) IsAuthenticated(ctx context.Context) bool {
	return f.conn.IsAuthenticated(ctx)
}

// Uptime returns how long the process has been serving.
func (f *ForwardingService) Uptime() time.Duration {
	return time.Since(f.startedAt)
}

// Test exercises the matching and counting path without touching the
// provider. It bumps the forwarded counter and returns the example signal so
// operators can verify the pipeline end to end before going live.
func (f *ForwardingService) Test() TestSignal {
	f.scheduler.MarkForwarded()
	f.logger.Info("Test signal generated")

	return TestSignal{
		Pattern:   "🔔 NEW SIGNAL!",
		Trade:     "EUR/CAD",
		Direction: "SELL",
	}
}
