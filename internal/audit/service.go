// Pathfinder - Career Management SaaS Backend
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/czhaoca/pathfinder-sub009

package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/czhaoca/pathfinder-sub009/internal/logging"
	"github.com/czhaoca/pathfinder-sub009/internal/metrics"
)

// Config holds configuration for the audit service.
type Config struct {
	// BufferSize is the number of buffered events that triggers a flush.
	BufferSize int `koanf:"buffer_size"`

	// FlushInterval is how often the periodic timer flushes the buffer.
	FlushInterval time.Duration `koanf:"flush_interval"`

	// FallbackPath is the local JSON-lines file written when the durable
	// store is unreachable during a flush.
	FallbackPath string `koanf:"fallback_path"`

	// BreakerFailureThreshold is the number of consecutive store failures
	// that opens the flush circuit breaker.
	BreakerFailureThreshold uint32 `koanf:"breaker_failure_threshold"`

	// BreakerTimeout is how long the breaker stays open before probing.
	BreakerTimeout time.Duration `koanf:"breaker_timeout"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BufferSize:              100,
		FlushInterval:           10 * time.Second,
		FallbackPath:            "audit_fallback.log",
		BreakerFailureThreshold: 5,
		BreakerTimeout:          30 * time.Second,
	}
}

// Service is the audit pipeline entry point. Log validates, enriches,
// chain-links, scores, and buffers events; flushing to durable storage is
// batched and driven by buffer occupancy, critical events, and a periodic
// timer.
//
// The buffer and the hash-chain head are shared mutable state guarded by a
// single mutex, so no two Log calls observe the same previous hash. A
// separate in-flight guard serializes flushes so concurrent Flush calls
// never double-write a batch.
type Service struct {
	cfg      *Config
	store    Store
	enricher *Enricher
	scorer   *RiskScorer
	detector *CriticalDetector
	fallback *FallbackWriter
	breaker  *gobreaker.CircuitBreaker[any]

	// mu guards buffer and chain.
	mu     sync.Mutex
	chain  *IntegrityChain
	buffer []*Event

	// flushMu admits one in-flight flush; events appended while a flush
	// is running stay buffered for the next cycle.
	flushMu sync.Mutex

	notifyMu  sync.RWMutex
	notifiers []Notifier

	stopCh   chan struct{}
	stopOnce sync.Once
	stopped  atomic.Bool
	wg       sync.WaitGroup
}

// NewService creates an audit service backed by the given store. The store
// also serves as the failure-history source for risk scoring.
func NewService(store Store, cfg *Config) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	s := &Service{
		cfg:      cfg,
		store:    store,
		enricher: NewEnricher(),
		scorer:   NewRiskScorer(store),
		detector: NewCriticalDetector(),
		fallback: NewFallbackWriter(cfg.FallbackPath),
		chain:    NewIntegrityChain(),
		stopCh:   make(chan struct{}),
	}

	s.breaker = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:    "audit-store",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailureThreshold
		},
		OnStateChange: func(name string, _, to gobreaker.State) {
			metrics.BreakerState.WithLabelValues(name).Set(float64(to))
			logging.Info().Str("breaker", name).Str("state", to.String()).Msg("circuit breaker state changed")
		},
	})

	return s
}

// RegisterNotifier adds an alert consumer. Notifiers are invoked
// asynchronously for every critical event.
func (s *Service) RegisterNotifier(n Notifier) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.notifiers = append(s.notifiers, n)
	logging.Info().Str("notifier", n.Name()).Msg("registered alert notifier")
}

// Start launches the periodic flush timer. The timer is owned by the
// service lifecycle and stops on Shutdown.
func (s *Service) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.cfg.FlushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopCh:
				return
			case <-ticker.C:
				if err := s.Flush(context.Background()); err != nil {
					logging.Err(err).Msg("periodic audit flush failed")
				}
			}
		}
	}()
}

// Log records one audit event and returns its opaque id. Validation and
// serialization failures are returned immediately and nothing is buffered.
// Log returns without waiting for a durable write unless the buffer has
// just filled or the event is critical, in which case the triggered flush
// is awaited.
func (s *Service) Log(ctx context.Context, raw *RawEvent) (string, error) {
	if s.stopped.Load() {
		return "", ErrServiceStopped
	}

	event, err := s.enricher.Enrich(raw)
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			metrics.AuditValidationFailures.WithLabelValues(ve.Field).Inc()
		}
		return "", err
	}

	// The risk score is not part of the hash digest, so the history lookup
	// runs before the critical section rather than inside it.
	event.RiskScore = s.scorer.Score(ctx, event)

	s.mu.Lock()
	s.chain.Link(event)
	s.buffer = append(s.buffer, event)
	full := len(s.buffer) >= s.cfg.BufferSize
	metrics.AuditBufferSize.Set(float64(len(s.buffer)))
	s.mu.Unlock()

	metrics.AuditEventsLogged.WithLabelValues(string(event.Type), string(event.Severity)).Inc()

	threat, critical := s.detector.Detect(event)
	if critical {
		s.handleCritical(ctx, event, threat)
	}

	if full || critical {
		if err := s.Flush(ctx); err != nil {
			// Recovered locally: the batch is back in the buffer and in
			// the fallback log. Not surfaced to the Log caller.
			logging.Err(err).Str("event_id", event.EventID).Msg("awaited audit flush failed")
		}
	}

	return event.ID, nil
}

// handleCritical persists the critical-event record directly, bypassing
// the buffer so evidence survives a crash before the next flush, and fans
// the alert out to registered notifiers without blocking the caller.
func (s *Service) handleCritical(ctx context.Context, event *Event, threat ThreatType) {
	metrics.AuditCriticalEvents.WithLabelValues(string(threat)).Inc()

	if err := s.store.SaveCritical(ctx, s.detector.Record(event, threat)); err != nil {
		logging.Err(err).Str("audit_log_id", event.ID).Msg("failed to persist critical event record")
	}

	alert := s.detector.Alert(event, threat)

	s.notifyMu.RLock()
	notifiers := make([]Notifier, 0, len(s.notifiers))
	for _, n := range s.notifiers {
		if n.Enabled() {
			notifiers = append(notifiers, n)
		}
	}
	s.notifyMu.RUnlock()

	for _, n := range notifiers {
		s.wg.Add(1)
		go func(n Notifier) {
			defer s.wg.Done()
			sendCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			if err := n.Send(sendCtx, alert); err != nil {
				metrics.AuditAlertsSent.WithLabelValues(n.Name(), "error").Inc()
				logging.Err(err).Str("notifier", n.Name()).Str("alert_id", alert.AlertID).Msg("failed to send security alert")
				return
			}
			metrics.AuditAlertsSent.WithLabelValues(n.Name(), "success").Inc()
		}(n)
	}
}

// Flush writes all currently buffered events to the store in one batch.
// Concurrent calls serialize on the in-flight guard; the second caller
// flushes whatever remains, which may be nothing. On store failure the
// batch is restored to the head of the buffer and appended to the fallback
// log, so nothing is silently lost.
func (s *Service) Flush(ctx context.Context) error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	batch := s.buffer
	s.buffer = nil
	metrics.AuditBufferSize.Set(0)
	s.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	start := time.Now()
	_, err := s.breaker.Execute(func() (any, error) {
		return nil, s.store.SaveBatch(ctx, batch)
	})
	if err != nil {
		s.mu.Lock()
		s.buffer = append(batch, s.buffer...)
		metrics.AuditBufferSize.Set(float64(len(s.buffer)))
		s.mu.Unlock()

		metrics.AuditFlushes.WithLabelValues("failure").Inc()
		if _, ferr := s.fallback.WriteBatch(batch, err); ferr != nil {
			logging.Err(ferr).Msg("failed to write audit fallback log")
		}
		return fmt.Errorf("flush %d audit events: %w", len(batch), err)
	}

	metrics.AuditFlushes.WithLabelValues("success").Inc()
	metrics.AuditFlushDuration.Observe(time.Since(start).Seconds())
	metrics.AuditFlushBatchSize.Observe(float64(len(batch)))
	return nil
}

// BufferedEvents returns the current buffer occupancy.
func (s *Service) BufferedEvents() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buffer)
}

// ChainHead returns the hash of the most recently linked event.
func (s *Service) ChainHead() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chain.Head()
}

// Shutdown performs the two-phase drain: stop the periodic timer and any
// in-flight alert deliveries, then run one final flush and block until it
// completes. After Shutdown returns, Log rejects new events.
func (s *Service) Shutdown(ctx context.Context) error {
	var flushErr error
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.wg.Wait()

		flushErr = s.Flush(ctx)
		s.stopped.Store(true)

		if err := s.fallback.Close(); err != nil {
			logging.Err(err).Msg("failed to close audit fallback log")
		}
	})
	return flushErr
}
