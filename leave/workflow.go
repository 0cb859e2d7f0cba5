/*
workflow.go - Leave request lifecycle

PURPOSE:
  Owns every state change of a leave request. It layers the guards the
  Ledger does not know about (capabilities, identity, balance, overlap) on
  top of the Ledger's transition table and emits notification and audit
  events once a change has been stored.

TRANSITIONS:
  (new)    -> pending    create:leave, valid fields, resolvable employee,
                         days within balance (paid types), no overlap
  pending  -> approved   approve:leave, days within balance at approval time
  pending  -> rejected   reject:leave, reason defaults to "No reason provided"
  pending  -> hold       approve:leave
  pending  -> cancelled  owner holding cancel:own_leave
  approved -> cancelled  approve:leave (days come back on the next read)
  hold     -> approved / rejected, same guards as from pending

SUBMISSION CHECK ORDER (first failure wins):
  1. required fields, leave type label normalized
  2. endDate >= startDate
  3. employee resolved
  4. days <= available balance for paid types
  5. no overlap with the employee's pending, hold or approved requests

SINKS:
  AuditSink runs after the Ledger write. Notifications are queued and
  delivered in order by a background goroutine, so a slow notifier never
  delays the caller; Flush waits for the queue. Sink errors are logged and
  dropped; a stored transition is never rolled back.

SEE ALSO:
  - transitions.go: The transition table
  - queue.go: Reviewer-facing wrapper
*/
package leave

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/warp/leave-engine/generic"
	"go.uber.org/zap"
)

// SubmitInput is what an employee fills in.
type SubmitInput struct {
	// EmployeeID lets an approver file on behalf of someone else.
	// Empty means the acting employee.
	EmployeeID        generic.EntityID
	LeaveType         string
	StartDate         generic.TimePoint
	EndDate           generic.TimePoint
	Reason            string
	AttachedDocuments []string
}

// Workflow drives leave requests through their lifecycle.
type Workflow struct {
	ledger   Ledger
	resolver *Resolver
	authz    Authorizer
	calc     *Calculator
	notifier Notifier
	outbox   *notifyOutbox
	audit    AuditSink
	logger   *zap.Logger
	now      func() time.Time
}

// WorkflowOption configures optional collaborators.
type WorkflowOption func(*Workflow)

func WithNotifier(n Notifier) WorkflowOption {
	return func(w *Workflow) {
		if n != nil {
			w.notifier = n
		}
	}
}

func WithAuditSink(a AuditSink) WorkflowOption {
	return func(w *Workflow) {
		if a != nil {
			w.audit = a
		}
	}
}

func WithLogger(l *zap.Logger) WorkflowOption {
	return func(w *Workflow) {
		if l != nil {
			w.logger = l.Named("leave.workflow")
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) WorkflowOption {
	return func(w *Workflow) { w.now = now }
}

func NewWorkflow(ledger Ledger, dir Directory, authz Authorizer, calc *Calculator, opts ...WorkflowOption) *Workflow {
	w := &Workflow{
		ledger:   ledger,
		resolver: NewResolver(dir),
		authz:    authz,
		calc:     calc,
		notifier: nopNotifier{},
		audit:    nopAudit{},
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.outbox = newNotifyOutbox(w.notifier, w.logger)
	return w
}

// Flush blocks until every notification queued so far has been handed to
// the notifier, or ctx ends.
func (w *Workflow) Flush(ctx context.Context) error {
	return w.outbox.flush(ctx)
}

// Resolver exposes the identity resolver the workflow uses.
func (w *Workflow) Resolver() *Resolver { return w.resolver }

// Authorizer exposes the capability table the workflow uses.
func (w *Workflow) Authorizer() Authorizer { return w.authz }

// Calculator exposes the balance calculator and its policy.
func (w *Workflow) Calculator() *Calculator { return w.calc }

// =============================================================================
// SUBMIT
// =============================================================================

// Submit validates and stores a new pending request.
func (w *Workflow) Submit(ctx context.Context, s Session, in SubmitInput) (LeaveRequest, error) {
	if err := require(w.authz, s.Role, CapCreateLeave); err != nil {
		return LeaveRequest{}, err
	}

	// 1. required fields
	switch {
	case strings.TrimSpace(in.LeaveType) == "":
		return LeaveRequest{}, generic.NewValidationError("leaveType", "is required")
	case in.StartDate.IsZero():
		return LeaveRequest{}, generic.NewValidationError("startDate", "is required")
	case in.EndDate.IsZero():
		return LeaveRequest{}, generic.NewValidationError("endDate", "is required")
	case strings.TrimSpace(in.Reason) == "":
		return LeaveRequest{}, generic.NewValidationError("reason", "is required")
	}
	leaveType, err := ParseType(in.LeaveType)
	if err != nil {
		return LeaveRequest{}, err
	}

	// 2. date order
	if in.EndDate.Before(in.StartDate) {
		return LeaveRequest{}, generic.NewValidationError("endDate", "must not be before startDate")
	}

	// 3. identity
	emp, err := w.subject(ctx, s, in.EmployeeID)
	if err != nil {
		return LeaveRequest{}, err
	}

	req := LeaveRequest{
		EmployeeID:          emp.ID,
		EmployeeDisplayName: emp.Name,
		LeaveType:           leaveType,
		StartDate:           in.StartDate,
		EndDate:             in.EndDate,
		TotalDays:           generic.InclusiveDays(in.StartDate, in.EndDate),
		Reason:              strings.TrimSpace(in.Reason),
		Status:              StatusPending,
		AttachedDocuments:   in.AttachedDocuments,
	}

	existing, err := w.ledger.GetRequestsByEmployee(ctx, emp.ID)
	if err != nil {
		return LeaveRequest{}, fmt.Errorf("load requests: %w", err)
	}

	// 4. balance
	if err := w.checkBalance(ctx, req, existing); err != nil {
		w.logger.Warn("submit leave insufficient balance",
			zap.String("employee_id", emp.ID.String()),
			zap.String("leave_type", string(leaveType)),
			zap.Int("total_days", req.TotalDays),
		)
		return LeaveRequest{}, err
	}

	// 5. overlap
	for _, other := range existing {
		if other.IsOpen() && other.Period().Overlaps(req.Period()) {
			w.logger.Warn("submit leave overlap detected",
				zap.String("employee_id", emp.ID.String()),
				zap.String("conflicting_id", other.ID),
			)
			return LeaveRequest{}, generic.NewValidationError("startDate",
				fmt.Sprintf("overlaps request %s (%s to %s)", other.ID, other.StartDate, other.EndDate))
		}
	}

	req.AppliedDate = w.now().UTC()
	created, err := w.ledger.CreateRequest(ctx, req)
	if err != nil {
		w.logger.Error("submit leave persist failed", zap.Error(err))
		return LeaveRequest{}, err
	}
	w.logger.Info("submit leave success",
		zap.String("leave_id", created.ID),
		zap.String("employee_id", created.EmployeeID.String()),
		zap.String("leave_type", string(created.LeaveType)),
		zap.Int("total_days", created.TotalDays),
	)

	w.emit(ctx, s, AuditSubmit, nil, &created)
	return created, nil
}

// =============================================================================
// REVIEWER TRANSITIONS
// =============================================================================

// Approve moves a pending or held request to approved after re-checking
// the balance against what has been approved since submission.
func (w *Workflow) Approve(ctx context.Context, s Session, id string) (LeaveRequest, error) {
	if err := require(w.authz, s.Role, CapApproveLeave); err != nil {
		return LeaveRequest{}, err
	}
	req, err := w.ledger.GetRequest(ctx, id)
	if err != nil {
		return LeaveRequest{}, err
	}
	if err := CheckTransition(req.ID, req.Status, StatusApproved); err != nil {
		return LeaveRequest{}, err
	}
	existing, err := w.ledger.GetRequestsByEmployee(ctx, req.EmployeeID)
	if err != nil {
		return LeaveRequest{}, fmt.Errorf("load requests: %w", err)
	}
	if err := w.checkBalance(ctx, req, existing); err != nil {
		return LeaveRequest{}, err
	}
	return w.transition(ctx, s, req, StatusApproved, "", AuditApprove)
}

// Reject moves a pending or held request to rejected.
func (w *Workflow) Reject(ctx context.Context, s Session, id, reason string) (LeaveRequest, error) {
	if err := require(w.authz, s.Role, CapRejectLeave); err != nil {
		return LeaveRequest{}, err
	}
	req, err := w.ledger.GetRequest(ctx, id)
	if err != nil {
		return LeaveRequest{}, err
	}
	if strings.TrimSpace(reason) == "" {
		reason = DefaultRejectionReason
	}
	return w.transition(ctx, s, req, StatusRejected, reason, AuditReject)
}

// Hold parks a pending request.
func (w *Workflow) Hold(ctx context.Context, s Session, id string) (LeaveRequest, error) {
	if err := require(w.authz, s.Role, CapApproveLeave); err != nil {
		return LeaveRequest{}, err
	}
	req, err := w.ledger.GetRequest(ctx, id)
	if err != nil {
		return LeaveRequest{}, err
	}
	return w.transition(ctx, s, req, StatusHold, "", AuditHold)
}

// Cancel withdraws a request. Owners cancel their own pending requests;
// cancelling an approved request needs the approval capability.
func (w *Workflow) Cancel(ctx context.Context, s Session, id string) (LeaveRequest, error) {
	req, err := w.ledger.GetRequest(ctx, id)
	if err != nil {
		return LeaveRequest{}, err
	}
	if err := CheckTransition(req.ID, req.Status, StatusCancelled); err != nil {
		return LeaveRequest{}, err
	}
	if req.Status == StatusApproved {
		if err := require(w.authz, s.Role, CapApproveLeave); err != nil {
			return LeaveRequest{}, err
		}
	} else if err := w.requireOwner(ctx, s, req, CapCancelOwnLeave); err != nil {
		return LeaveRequest{}, err
	}
	return w.transition(ctx, s, req, StatusCancelled, "", AuditCancel)
}

// Delete removes a pending request. Only its owner or an approver may.
func (w *Workflow) Delete(ctx context.Context, s Session, id string) error {
	req, err := w.ledger.GetRequest(ctx, id)
	if err != nil {
		return err
	}
	if req.Status != StatusPending {
		return &generic.InvalidTransitionError{ID: req.ID, From: string(req.Status), To: "deleted"}
	}
	if !IsApprover(w.authz, s.Role) {
		if err := w.requireOwner(ctx, s, req, CapCreateLeave); err != nil {
			return err
		}
	}
	if err := w.ledger.DeleteRequest(ctx, id); err != nil {
		return err
	}
	w.logger.Info("delete leave success", zap.String("leave_id", id))
	w.emit(ctx, s, AuditDelete, &req, nil)
	return nil
}

// =============================================================================
// BALANCE
// =============================================================================

// Balance returns the derived balance snapshot. An empty employeeID means
// the acting employee; non-approvers may only read their own.
func (w *Workflow) Balance(ctx context.Context, s Session, employeeID generic.EntityID, year int) (BalanceSnapshot, error) {
	emp, err := w.subject(ctx, s, employeeID)
	if err != nil {
		return BalanceSnapshot{}, err
	}
	reqs, err := w.ledger.GetRequestsByEmployee(ctx, emp.ID)
	if err != nil {
		return BalanceSnapshot{}, fmt.Errorf("load requests: %w", err)
	}
	return w.snapshot(ctx, emp.ID, year, reqs)
}

func (w *Workflow) snapshot(ctx context.Context, employeeID generic.EntityID, year int, reqs []LeaveRequest) (BalanceSnapshot, error) {
	base, err := w.ledger.GetBalance(ctx, employeeID, year)
	if err != nil {
		return BalanceSnapshot{}, fmt.Errorf("load balance: %w", err)
	}
	return w.calc.Calculate(base, reqs), nil
}

func (w *Workflow) checkBalance(ctx context.Context, req LeaveRequest, existing []LeaveRequest) error {
	if !req.LeaveType.IsPaid() {
		return nil
	}
	snap, err := w.snapshot(ctx, req.EmployeeID, req.BalanceYear(), existing)
	if err != nil {
		return err
	}
	return w.calc.Check(snap, req.LeaveType, req.TotalDays)
}

// =============================================================================
// HELPERS
// =============================================================================

// subject resolves who an operation is about. Non-approvers are always
// the subject themselves.
func (w *Workflow) subject(ctx context.Context, s Session, target generic.EntityID) (*Employee, error) {
	self, selfErr := w.resolver.Resolve(ctx, s)
	if target == "" || (self != nil && self.ID == target) {
		return self, selfErr
	}
	if !IsApprover(w.authz, s.Role) {
		if selfErr != nil {
			return nil, selfErr
		}
		return nil, &generic.UnauthorizedError{Capability: string(CapApproveLeave)}
	}
	emp, err := w.resolver.Directory.ResolveByID(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("resolve employee: %w", err)
	}
	if emp == nil {
		return nil, &generic.NotFoundError{Kind: "employee", ID: target.String()}
	}
	return emp, nil
}

func (w *Workflow) requireOwner(ctx context.Context, s Session, req LeaveRequest, c Capability) error {
	if err := require(w.authz, s.Role, c); err != nil {
		return err
	}
	self, err := w.resolver.Resolve(ctx, s)
	if err != nil {
		return err
	}
	if self.ID != req.EmployeeID {
		return &generic.UnauthorizedError{Capability: string(c)}
	}
	return nil
}

// actorID is what gets written as approverId: the resolved employee when
// there is one, else whatever the session identifies.
func (w *Workflow) actorID(ctx context.Context, s Session) string {
	if emp, err := w.resolver.Resolve(ctx, s); err == nil {
		return emp.ID.String()
	}
	switch {
	case s.UserID != "":
		return s.UserID
	case s.Email != "":
		return s.Email
	default:
		return string(s.Role)
	}
}

func (w *Workflow) transition(ctx context.Context, s Session, req LeaveRequest, to Status, reason string, action AuditAction) (LeaveRequest, error) {
	if err := CheckTransition(req.ID, req.Status, to); err != nil {
		return LeaveRequest{}, err
	}
	updated, err := w.ledger.UpdateRequestStatus(ctx, req.ID, to, StatusUpdate{
		ActorID:         w.actorID(ctx, s),
		RejectionReason: reason,
		At:              w.now(),
	})
	if err != nil {
		if !errors.Is(err, generic.ErrInvalidTransition) {
			w.logger.Error("leave transition failed",
				zap.String("leave_id", req.ID),
				zap.String("to", string(to)),
				zap.Error(err),
			)
		}
		return LeaveRequest{}, err
	}
	w.logger.Info("leave transition success",
		zap.String("leave_id", updated.ID),
		zap.String("from", string(req.Status)),
		zap.String("to", string(updated.Status)),
		zap.String("approver_id", updated.ApproverID),
	)
	w.emit(ctx, s, action, &req, &updated)
	return updated, nil
}

func (w *Workflow) emit(ctx context.Context, s Session, action AuditAction, before, after *LeaveRequest) {
	entry := AuditEntry{
		ID:     uuid.NewString(),
		Actor:  w.actorID(ctx, s),
		Action: action,
		Before: before,
		After:  after,
		At:     w.now().UTC(),
	}
	if err := w.audit.Record(ctx, entry); err != nil {
		w.logger.Warn("audit record failed", zap.String("action", string(action)), zap.Error(err))
	}

	subject := after
	if subject == nil {
		subject = before
	}
	title, message := notification(action, *subject)
	w.outbox.enqueue(notifyJob{
		employeeID: subject.EmployeeID.String(),
		title:      title,
		message:    message,
		action:     action,
	})
}

func notification(action AuditAction, r LeaveRequest) (string, string) {
	span := fmt.Sprintf("%s leave from %s to %s (%d days)", r.LeaveType, r.StartDate, r.EndDate, r.TotalDays)
	switch action {
	case AuditSubmit:
		return "Leave request submitted", "Your " + span + " is pending review."
	case AuditApprove:
		return "Leave request approved", "Your " + span + " has been approved."
	case AuditReject:
		return "Leave request rejected", "Your " + span + " was rejected: " + r.RejectionReason
	case AuditHold:
		return "Leave request on hold", "Your " + span + " has been put on hold."
	case AuditCancel:
		return "Leave request cancelled", "Your " + span + " has been cancelled."
	default:
		return "Leave request deleted", "Your " + span + " has been deleted."
	}
}
