/*
ledger.go - Persistence contracts for leave requests, balances and employees

PURPOSE:
  Defines the Ledger (requests + balance records) and Directory (employee
  records) interfaces. The Workflow, Queue and Rollover depend only on these,
  so the same logic runs over sqlite on the server, over the in-memory store
  in tests, and over the remote-with-local-mirror stack in the CLI.

IMPLEMENTATIONS:
  - store/sqlite.Store:  durable, server side
  - store/memory.Store:  in-process, tests and the mirror's working set
  - client.Remote:       HTTP, talks to the server's /api/ledger endpoints
  - mirror.Fallback:     Remote orElse Local

CONTRACT:
  - CreateRequest validates required fields and date order, assigns an id
    and appliedDate when missing, and fills totalDays. Requests are always
    born pending; decisions only arrive through UpdateRequestStatus.
  - Listings are reverse-chronological by appliedDate.
  - UpdateRequestStatus enforces the transition table atomically.
  - GetBalance never fails with NotFound: missing records are materialized
    from policy defaults.

SEE ALSO:
  - transitions.go: The state machine UpdateRequestStatus enforces
  - workflow.go: Capability and balance guards layered on top
*/
package leave

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/warp/leave-engine/generic"
)

// StatusUpdate carries the side fields of a status transition.
type StatusUpdate struct {
	ActorID         string
	RejectionReason string
	At              time.Time
}

// Ledger is the system of record for leave requests and balances.
type Ledger interface {
	CreateRequest(ctx context.Context, req LeaveRequest) (LeaveRequest, error)
	GetRequest(ctx context.Context, id string) (LeaveRequest, error)
	GetRequestsByEmployee(ctx context.Context, employeeID generic.EntityID) ([]LeaveRequest, error)
	GetAllRequests(ctx context.Context) ([]LeaveRequest, error)
	UpdateRequestStatus(ctx context.Context, id string, status Status, upd StatusUpdate) (LeaveRequest, error)
	DeleteRequest(ctx context.Context, id string) error
	GetBalance(ctx context.Context, employeeID generic.EntityID, year int) (LeaveBalance, error)
	SaveBalance(ctx context.Context, balance LeaveBalance) error
}

// Directory resolves employee records.
type Directory interface {
	ResolveByEmail(ctx context.Context, email string) (*Employee, error)
	ResolveByID(ctx context.Context, id generic.EntityID) (*Employee, error)
	ListAll(ctx context.Context) ([]Employee, error)
}

// =============================================================================
// HELPERS SHARED BY LEDGER IMPLEMENTATIONS
// =============================================================================

// PrepareNew validates a request about to be stored and fills the fields the
// ledger owns. Every Ledger implementation calls it before writing.
func PrepareNew(req LeaveRequest, now time.Time) (LeaveRequest, error) {
	if err := ValidateFields(req); err != nil {
		return LeaveRequest{}, err
	}
	req.LeaveType, _ = ParseType(string(req.LeaveType))
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.AppliedDate.IsZero() {
		req.AppliedDate = now.UTC()
	}
	req.Status = StatusPending
	req.ApproverID = ""
	req.DecisionDate = nil
	req.RejectionReason = ""
	req.TotalDays = generic.InclusiveDays(req.StartDate, req.EndDate)
	req.UpdatedAt = now.UTC()
	return req, nil
}

// ValidateFields checks required fields, then date order. A new request may
// only carry the pending status, or none.
func ValidateFields(req LeaveRequest) error {
	switch {
	case req.Status != "" && req.Status != StatusPending:
		return generic.NewValidationError("status", "must be pending on create")
	case req.EmployeeID == "":
		return generic.NewValidationError("employeeId", "is required")
	case req.LeaveType == "":
		return generic.NewValidationError("leaveType", "is required")
	case req.StartDate.IsZero():
		return generic.NewValidationError("startDate", "is required")
	case req.EndDate.IsZero():
		return generic.NewValidationError("endDate", "is required")
	case strings.TrimSpace(req.Reason) == "":
		return generic.NewValidationError("reason", "is required")
	}
	if _, err := ParseType(string(req.LeaveType)); err != nil {
		return err
	}
	if req.EndDate.Before(req.StartDate) {
		return generic.NewValidationError("endDate", "must not be before startDate")
	}
	return nil
}

// ApplyStatus moves req to status after checking the transition table.
func ApplyStatus(req LeaveRequest, status Status, upd StatusUpdate) (LeaveRequest, error) {
	if err := CheckTransition(req.ID, req.Status, status); err != nil {
		return LeaveRequest{}, err
	}
	at := upd.At
	if at.IsZero() {
		at = time.Now()
	}
	at = at.UTC()
	req.Status = status
	if upd.ActorID != "" {
		req.ApproverID = upd.ActorID
	}
	if status == StatusApproved || status == StatusRejected {
		req.DecisionDate = &at
	}
	if status == StatusRejected {
		req.RejectionReason = upd.RejectionReason
		if strings.TrimSpace(req.RejectionReason) == "" {
			req.RejectionReason = DefaultRejectionReason
		}
	}
	req.UpdatedAt = at
	return req, nil
}

// SortNewestFirst orders requests by appliedDate, newest first. Ties keep
// the id order so listings are stable.
func SortNewestFirst(reqs []LeaveRequest) {
	sort.SliceStable(reqs, func(i, j int) bool {
		if !reqs[i].AppliedDate.Equal(reqs[j].AppliedDate) {
			return reqs[i].AppliedDate.After(reqs[j].AppliedDate)
		}
		return reqs[i].ID < reqs[j].ID
	})
}
