// Package activity is the cheap write path that keeps a verified member's
// last-activity timestamp fresh. It is invoked from unrelated traffic and
// must never block or fail loudly: a missed update only delays expiry, it
// can never falsely trigger it.
package activity

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"gatekeeper/pkg/domain"
)

var (
	eventsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gatekeeper_activity_events_total",
		Help: "Activity events accepted into the recorder queue",
	})
	eventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gatekeeper_activity_events_dropped_total",
		Help: "Activity events dropped because the recorder queue was full",
	})
)

// Buffer is the staging area activity lands in before being flushed to the
// verification store. Redis in production, in-memory in tests and when Redis
// is not configured.
type Buffer interface {
	Touch(ctx context.Context, member domain.MemberID, group domain.GroupID, at time.Time) error
	// Drain visits every buffered entry and removes it. Entries that fail
	// to visit are dropped; see the package comment for why that is safe.
	Drain(ctx context.Context, visit func(member domain.MemberID, group domain.GroupID, at time.Time) error) error
}

type event struct {
	member domain.MemberID
	group  domain.GroupID
	at     time.Time
}

// Recorder accepts activity events without blocking the caller and hands
// them to the buffer from a single worker goroutine.
type Recorder struct {
	inbox  chan event
	buffer Buffer
	logger *slog.Logger
	now    func() time.Time
}

// NewRecorder builds a recorder with the given queue depth.
func NewRecorder(buffer Buffer, queueDepth int, logger *slog.Logger) *Recorder {
	return &Recorder{
		inbox:  make(chan event, queueDepth),
		buffer: buffer,
		logger: logger,
		now:    time.Now,
	}
}

// Record enqueues an activity event. When the queue is full the event is
// dropped and counted; callers are unrelated traffic paths and must not
// stall on us.
func (r *Recorder) Record(member domain.MemberID, group domain.GroupID) {
	select {
	case r.inbox <- event{member: member, group: group, at: r.now().UTC()}:
		eventsRecorded.Inc()
	default:
		eventsDropped.Inc()
	}
}

// Run drains the queue into the buffer until the context is cancelled.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e := <-r.inbox:
			if err := r.buffer.Touch(ctx, e.member, e.group, e.at); err != nil {
				r.logger.Warn("activity buffer write failed, dropping",
					"member_id", e.member,
					"group_id", e.group,
					"error", err,
				)
			}
		}
	}
}
