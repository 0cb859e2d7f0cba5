package leave

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Notifier delivers a message to an employee. Delivery mechanics live
// behind the interface (see package sink).
type Notifier interface {
	Notify(ctx context.Context, employeeID, title, message string) error
}

// AuditAction names what happened to a request.
type AuditAction string

const (
	AuditSubmit  AuditAction = "leave.submit"
	AuditApprove AuditAction = "leave.approve"
	AuditReject  AuditAction = "leave.reject"
	AuditHold    AuditAction = "leave.hold"
	AuditCancel  AuditAction = "leave.cancel"
	AuditDelete  AuditAction = "leave.delete"
)

// AuditEntry records one change. Before is nil on creation, After on deletion.
type AuditEntry struct {
	ID     string        `json:"id"`
	Actor  string        `json:"actor"`
	Action AuditAction   `json:"action"`
	Before *LeaveRequest `json:"before,omitempty"`
	After  *LeaveRequest `json:"after,omitempty"`
	At     time.Time     `json:"at"`
}

// AuditSink persists audit entries.
type AuditSink interface {
	Record(ctx context.Context, entry AuditEntry) error
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string, string, string) error { return nil }

type nopAudit struct{}

func (nopAudit) Record(context.Context, AuditEntry) error { return nil }

// =============================================================================
// NOTIFICATION OUTBOX
// =============================================================================

const (
	outboxSize    = 256
	notifyTimeout = 10 * time.Second
)

type notifyJob struct {
	employeeID string
	title      string
	message    string
	action     AuditAction
	flushed    chan struct{} // set on flush markers only
}

// notifyOutbox hands notifications to a single delivery goroutine so a slow
// notifier never holds up a transition. Delivery order is submission order.
// When the buffer is full the notification is dropped and logged.
type notifyOutbox struct {
	notifier Notifier
	logger   *zap.Logger
	jobs     chan notifyJob
	start    sync.Once
}

func newNotifyOutbox(n Notifier, logger *zap.Logger) *notifyOutbox {
	return &notifyOutbox{notifier: n, logger: logger, jobs: make(chan notifyJob, outboxSize)}
}

func (o *notifyOutbox) enqueue(job notifyJob) {
	if _, nop := o.notifier.(nopNotifier); nop {
		return
	}
	o.start.Do(func() { go o.run() })
	select {
	case o.jobs <- job:
	default:
		o.logger.Warn("notification dropped, outbox full",
			zap.String("employee_id", job.employeeID),
			zap.String("action", string(job.action)),
		)
	}
}

// flush waits until everything enqueued before the call has been delivered.
func (o *notifyOutbox) flush(ctx context.Context) error {
	o.start.Do(func() { go o.run() })
	marker := notifyJob{flushed: make(chan struct{})}
	select {
	case o.jobs <- marker:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-marker.flushed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *notifyOutbox) run() {
	for job := range o.jobs {
		if job.flushed != nil {
			close(job.flushed)
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		err := o.notifier.Notify(ctx, job.employeeID, job.title, job.message)
		cancel()
		if err != nil {
			o.logger.Warn("notify failed",
				zap.String("employee_id", job.employeeID),
				zap.String("action", string(job.action)),
				zap.Error(err),
			)
		}
	}
}
