package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"tgforward/internal/errors"
	"tgforward/internal/metrics"
	"tgforward/internal/retry"
	"tgforward/internal/tracing"
	"tgforward/pkg/telegram/types"

	"github.com/sirupsen/logrus"
)

// SchedulerConfig holds the polling parameters for one source channel.
type SchedulerConfig struct {
	SourceChannel string
	TargetChannel string
	PollInterval  time.Duration
	FetchLimit    int
	FetchWindow   time.Duration
	TickTimeout   time.Duration
	Backoff       retry.BackoffConfig
}

// ForwardingScheduler polls the source channel on a fixed interval, matches
// signals and relays them to the target. Ticks never overlap: a tick that is
// still running when the next fires makes the new tick a no-op.
type ForwardingScheduler struct {
	conn    *ConnectionManager
	matcher *SignalMatcher
	cfg     SchedulerConfig
	logger  *logrus.Logger

	mu              sync.Mutex
	running         bool
	inFlight        bool
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	lastSeenID      int64
	forwardedCount  int64
	lastForwardedAt time.Time
}

func NewForwardingScheduler(conn *ConnectionManager, matcher *SignalMatcher, cfg SchedulerConfig, logger *logrus.Logger) *ForwardingScheduler {
	return &ForwardingScheduler{
		conn:    conn,
		matcher: matcher,
		cfg:     cfg,
		logger:  logger,
	}
}

// Start begins polling. It requires an authorized client up front so the
// caller learns immediately when no session is available. Starting an
// already-running scheduler is a no-op success. The last-seen watermark
// survives a Stop/Start cycle so a restart does not re-relay signals still
// inside the fetch window.
func (s *ForwardingScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.conn.EnsureAuthorized(ctx); err != nil {
		return err
	}

	// The loop outlives the Start call, so it runs on its own context; only
	// the verbose-consent value carries over from the caller.
	loopCtx, cancel := context.WithCancel(context.Background())
	if IsVerboseLogging(ctx) {
		loopCtx = context.WithValue(loopCtx, VerboseContextKey, true)
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		cancel()
		return nil
	}
	s.running = true
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.pollLoop(loopCtx)

	s.logger.WithFields(logrus.Fields{
		"source":        s.cfg.SourceChannel,
		"target":        s.cfg.TargetChannel,
		"poll_interval": s.cfg.PollInterval.String(),
	}).Info("Forwarding started")

	return nil
}

// Stop halts polling and waits for an in-flight tick to finish.
func (s *ForwardingScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.wg.Wait()

	s.logger.Info("Forwarding stopped")
}

// IsRunning reports whether the poll loop is active.
func (s *ForwardingScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stats returns the forwarded counter and the time of the last relay.
func (s *ForwardingScheduler) Stats() (int64, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forwardedCount, s.lastForwardedAt
}

// MarkForwarded bumps the counter outside the poll loop, for relays performed
// on behalf of the operator rather than by a tick.
func (s *ForwardingScheduler) MarkForwarded() {
	s.mu.Lock()
	s.forwardedCount++
	s.lastForwardedAt = time.Now()
	s.mu.Unlock()

	metrics.IncrementCounter("messages_forwarded_total", nil, "Total signals relayed to the target channel")
}

func (s *ForwardingScheduler) pollLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	// First tick fires immediately so starting is observable right away.
	s.runTick(ctx)

	for {
		select {
		case <-ticker.C:
			s.runTick(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// runTick executes one poll pass unless the previous one is still in flight.
func (s *ForwardingScheduler) runTick(ctx context.Context) {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		s.logger.Debug("Previous tick still in flight, skipping")
		metrics.IncrementCounter("poll_ticks_skipped_total", nil, "Ticks skipped because the previous one was still running")
		return
	}
	s.inFlight = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
	}()

	tickCtx, cancel := context.WithTimeout(ctx, s.cfg.TickTimeout)
	defer cancel()

	start := time.Now()
	err := s.tick(tickCtx)
	metrics.RecordTimer("poll_tick_duration", time.Since(start), nil, "Poll tick duration")

	if err == nil {
		return
	}
	if tickCtx.Err() != nil && ctx.Err() != nil {
		// Shutting down, not a failure.
		return
	}

	if errors.IsAuthorizationRevoked(err) {
		s.logger.WithError(err).Warn("Session revoked by provider, stopping forwarding")
		s.conn.Clear()
		s.selfStop()
		return
	}

	metrics.IncrementCounter("poll_tick_errors_total", nil, "Poll ticks that ended in error")
	s.logger.WithError(err).Warn("Poll tick failed")
}

// selfStop flips the running flag from inside the loop goroutine. It must not
// wait on the WaitGroup since the caller is the goroutine being stopped.
func (s *ForwardingScheduler) selfStop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *ForwardingScheduler) tick(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "scheduler.tick")
	defer span.End()

	start := time.Now()

	client, err := s.conn.ActiveClient()
	if err != nil {
		return err
	}

	messages, err := client.GetMessages(ctx, s.cfg.SourceChannel, types.FetchOptions{
		Limit: s.cfg.FetchLimit,
		Since: time.Now().Add(-s.cfg.FetchWindow),
	})
	if err != nil {
		tracing.RecordError(ctx, err)
		return err
	}

	// Oldest first, so relays preserve channel order.
	sort.Slice(messages, func(i, j int) bool { return messages[i].ID < messages[j].ID })

	s.mu.Lock()
	lastSeen := s.lastSeenID
	s.mu.Unlock()

	backoff := retry.NewBackoff(s.cfg.Backoff)
	var relayed int

	for _, msg := range messages {
		if msg.ID <= lastSeen {
			continue
		}

		if !s.matcher.IsSignal(msg.Text, msg.Sender) {
			lastSeen = msg.ID
			continue
		}

		fields := logrus.Fields{
			LogFieldMessageID: msg.ID,
			LogFieldChannel:   s.cfg.SourceChannel,
		}
		if IsVerboseLogging(ctx) {
			fields["text"] = msg.Text
		}

		var attempts int
		err := backoff.RetryWithPredicate(ctx, func() error {
			attempts++
			return client.ForwardMessage(ctx, s.cfg.TargetChannel, s.cfg.SourceChannel, msg.ID)
		}, func(err error) bool {
			return errors.IsRetryable(err) && !errors.IsAuthorizationRevoked(err)
		})
		if err != nil {
			if errors.IsAuthorizationRevoked(err) {
				// Leave the failed message pending so a re-login retries it.
				s.mu.Lock()
				s.lastSeenID = lastSeen
				s.mu.Unlock()
				return err
			}

			// Per-message failures are isolated: log, skip, keep relaying
			// the rest of the batch.
			lastSeen = msg.ID
			metrics.IncrementCounter("messages_forward_failed_total", nil, "Signals dropped after exhausting forward retries")
			s.logger.WithError(err).WithFields(fields).WithField(LogFieldAttempt, attempts).Error("Failed to forward signal, skipping message")
			continue
		}

		lastSeen = msg.ID
		s.logger.WithFields(fields).Info("Signal forwarded")
		s.MarkForwarded()
		relayed++
	}

	s.mu.Lock()
	s.lastSeenID = lastSeen
	s.mu.Unlock()

	if relayed > 0 {
		s.logger.WithFields(logrus.Fields{
			LogFieldCount:    relayed,
			LogFieldDuration: time.Since(start).Milliseconds(),
		}).Debug("Tick relayed signals")
	}

	return nil
}
