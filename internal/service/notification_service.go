package service

import (
	"context"
	"time"

	"splatchain-ledger/internal/core/domain"
	"splatchain-ledger/internal/core/ports"

	"github.com/rs/zerolog"
)

const enqueueTimeout = 2 * time.Second

// Notification outcomes reported to metrics.
const (
	NotificationQueued        = "queued"
	NotificationEnqueueFailed = "enqueue_failed"
	NotificationDelivered     = "delivered"
	NotificationFailed        = "failed"
)

// NotificationServiceImpl implements ports.NotificationService on top of a
// queue. Enqueueing outlives the request that caused it.
type NotificationServiceImpl struct {
	queue   ports.NotificationQueue
	metrics ports.LedgerMetrics
	log     zerolog.Logger
}

// NewNotificationService creates a queue-backed notification service.
func NewNotificationService(queue ports.NotificationQueue, metrics ports.LedgerMetrics, log zerolog.Logger) *NotificationServiceImpl {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &NotificationServiceImpl{queue: queue, metrics: metrics, log: log}
}

// Notify enqueues n. Failures are logged and counted, never returned.
func (s *NotificationServiceImpl) Notify(ctx context.Context, n *domain.Notification) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), enqueueTimeout)
	defer cancel()

	if err := s.queue.Enqueue(ctx, n); err != nil {
		s.metrics.ObserveNotification(NotificationEnqueueFailed)
		s.log.Warn().Err(err).
			Str("notification_id", n.ID.String()).
			Str("owner", n.Owner).
			Msg("failed to enqueue notification")
		return
	}
	s.metrics.ObserveNotification(NotificationQueued)
}

// NotificationDispatcher drains the queue and hands each notification to a
// Notifier. Each notification gets a single delivery attempt.
type NotificationDispatcher struct {
	queue       ports.NotificationQueue
	notifier    ports.Notifier
	metrics     ports.LedgerMetrics
	pollTimeout time.Duration
	log         zerolog.Logger
}

// NewNotificationDispatcher creates a new dispatcher.
func NewNotificationDispatcher(
	queue ports.NotificationQueue,
	notifier ports.Notifier,
	metrics ports.LedgerMetrics,
	pollTimeout time.Duration,
	log zerolog.Logger,
) *NotificationDispatcher {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if pollTimeout <= 0 {
		pollTimeout = 5 * time.Second
	}
	return &NotificationDispatcher{
		queue:       queue,
		notifier:    notifier,
		metrics:     metrics,
		pollTimeout: pollTimeout,
		log:         log.With().Str("component", "notify").Logger(),
	}
}

// Run dispatches until ctx is cancelled.
func (d *NotificationDispatcher) Run(ctx context.Context) {
	d.log.Info().Dur("poll_timeout", d.pollTimeout).Msg("notification dispatcher started")
	for {
		if ctx.Err() != nil {
			d.log.Info().Msg("notification dispatcher stopped")
			return
		}
		d.dispatchOne(ctx)
	}
}

// dispatchOne waits for at most one notification and delivers it.
func (d *NotificationDispatcher) dispatchOne(ctx context.Context) {
	n, err := d.queue.Dequeue(ctx, d.pollTimeout)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		d.log.Warn().Err(err).Msg("notification dequeue failed")
		select {
		case <-ctx.Done():
		case <-time.After(d.pollTimeout):
		}
		return
	}
	if n == nil {
		return
	}

	if err := d.notifier.Deliver(ctx, n); err != nil {
		d.metrics.ObserveNotification(NotificationFailed)
		d.log.Warn().Err(err).
			Str("notification_id", n.ID.String()).
			Str("owner", n.Owner).
			Str("action", string(n.Action)).
			Msg("notification delivery failed")
		return
	}
	d.metrics.ObserveNotification(NotificationDelivered)
}
