package leave

import (
	"context"
	"strings"

	"github.com/warp/leave-engine/generic"
)

// StatusFilterAll disables status filtering in reviewer listings.
const StatusFilterAll = "all"

// View is a reviewer's current listing parameters, reused to refresh the
// list after an action.
type View struct {
	Status string
	Search string
}

// QueueResult pairs the request an action changed with the refreshed list.
type QueueResult struct {
	Request LeaveRequest   `json:"request"`
	Items   []LeaveRequest `json:"items"`
}

// Queue is the reviewer-facing listing over the Ledger. Actions delegate to
// the Workflow and re-read the list; nothing is pushed.
type Queue struct {
	ledger   Ledger
	workflow *Workflow
}

func NewQueue(ledger Ledger, workflow *Workflow) *Queue {
	return &Queue{ledger: ledger, workflow: workflow}
}

// ListForReviewer returns requests matching the status filter (pending when
// empty, everything for "all") and the case-insensitive search text.
// Callers without the approval capability only ever see their own requests.
func (q *Queue) ListForReviewer(ctx context.Context, s Session, statusFilter, searchText string) ([]LeaveRequest, error) {
	var (
		reqs []LeaveRequest
		err  error
	)
	if IsApprover(q.workflow.authz, s.Role) {
		reqs, err = q.ledger.GetAllRequests(ctx)
	} else {
		self, rerr := q.workflow.resolver.Resolve(ctx, s)
		if rerr != nil {
			return nil, rerr
		}
		reqs, err = q.ledger.GetRequestsByEmployee(ctx, self.ID)
		reqs = onlyEmployee(reqs, self.ID)
	}
	if err != nil {
		return nil, err
	}

	status, err := statusFilterOf(statusFilter)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(searchText))

	out := make([]LeaveRequest, 0, len(reqs))
	for _, r := range reqs {
		if status != "" && r.Status != status {
			continue
		}
		if needle != "" && !matches(r, needle) {
			continue
		}
		out = append(out, r)
	}
	SortNewestFirst(out)
	return out, nil
}

// ListForEmployee returns every request of one employee. Non-approvers may
// only list their own.
func (q *Queue) ListForEmployee(ctx context.Context, s Session, employeeID generic.EntityID) ([]LeaveRequest, error) {
	emp, err := q.workflow.subject(ctx, s, employeeID)
	if err != nil {
		return nil, err
	}
	reqs, err := q.ledger.GetRequestsByEmployee(ctx, emp.ID)
	if err != nil {
		return nil, err
	}
	SortNewestFirst(reqs)
	return reqs, nil
}

func (q *Queue) Approve(ctx context.Context, s Session, id string, v View) (QueueResult, error) {
	return q.act(ctx, s, v, func() (LeaveRequest, error) { return q.workflow.Approve(ctx, s, id) })
}

func (q *Queue) Reject(ctx context.Context, s Session, id, reason string, v View) (QueueResult, error) {
	return q.act(ctx, s, v, func() (LeaveRequest, error) { return q.workflow.Reject(ctx, s, id, reason) })
}

func (q *Queue) Hold(ctx context.Context, s Session, id string, v View) (QueueResult, error) {
	return q.act(ctx, s, v, func() (LeaveRequest, error) { return q.workflow.Hold(ctx, s, id) })
}

func (q *Queue) act(ctx context.Context, s Session, v View, do func() (LeaveRequest, error)) (QueueResult, error) {
	req, err := do()
	if err != nil {
		return QueueResult{}, err
	}
	items, err := q.ListForReviewer(ctx, s, v.Status, v.Search)
	if err != nil {
		return QueueResult{Request: req}, err
	}
	return QueueResult{Request: req, Items: items}, nil
}

func statusFilterOf(f string) (Status, error) {
	f = strings.TrimSpace(f)
	switch {
	case f == "":
		return StatusPending, nil
	case strings.EqualFold(f, StatusFilterAll):
		return "", nil
	default:
		return ParseStatus(f)
	}
}

func matches(r LeaveRequest, needle string) bool {
	return strings.Contains(strings.ToLower(r.EmployeeDisplayName), needle) ||
		strings.Contains(strings.ToLower(string(r.LeaveType)), needle) ||
		strings.Contains(strings.ToLower(r.Reason), needle)
}

func onlyEmployee(reqs []LeaveRequest, id generic.EntityID) []LeaveRequest {
	out := reqs[:0:0]
	for _, r := range reqs {
		if r.EmployeeID == id {
			out = append(out, r)
		}
	}
	return out
}
