/*
handlers.go - HTTP API handlers for the leave workflow

PURPOSE:
  Exposes leave.Workflow and leave.Queue via REST. Handles HTTP
  request/response and JSON serialization, and delegates every rule
  (capabilities, validation, balances, transitions) to the leave package.

ENDPOINTS:
  Workflow:
    POST   /api/leave/requests                    Submit a request
    POST   /api/leave/requests/{id}/approve       Approve (reviewer)
    POST   /api/leave/requests/{id}/reject        Reject with optional reason
    POST   /api/leave/requests/{id}/hold          Put on hold
    POST   /api/leave/requests/{id}/cancel        Cancel
    DELETE /api/leave/requests/{id}               Delete a pending request
    GET    /api/leave/requests/{id}/audit         Audit trail (reviewer)

  Queue:
    GET    /api/leave/requests?status=&q=         Reviewer listing
    GET    /api/leave/employees/{id}/requests     One employee's requests
    GET    /api/leave/employees/{id}/balance      Derived balance for ?year=

  Admin:
    POST   /api/admin/rollover                    Year-end carry-over

  Approve, reject and hold accept the reviewer's current ?status=&q= and
  answer with the changed request plus the refreshed list.

ERROR HANDLING:
  Errors are returned as {"error": {"code", "message", "details"}}:
  - 400: Validation
  - 403: Unauthorized, employee record not linked
  - 404: Unknown request or employee
  - 409: Request already finalized
  - 422: Insufficient balance

SEE ALSO:
  - dto.go: Request/response data structures
  - ledger.go: Ledger and directory endpoints
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
	"go.uber.org/zap"
)

// Actor headers.
const (
	HeaderEmployeeID = "X-Actor-Employee-ID"
	HeaderEmail      = "X-Actor-Email"
	HeaderUserID     = "X-Actor-User-ID"
	HeaderRole       = "X-Actor-Role"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is what the server persists to; store/sqlite.Store satisfies it.
type Store interface {
	leave.Ledger
	leave.Directory
	SaveEmployee(ctx context.Context, e leave.Employee) error
	GetAuditLog(ctx context.Context, requestID string) ([]leave.AuditEntry, error)
	Reset(ctx context.Context) error
	Ping(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    Store
	Workflow *leave.Workflow
	Queue    *leave.Queue
	Rollover *leave.Rollover

	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time

	mu              sync.Mutex
	currentScenario string
}

// NewHandler wires the workflow, queue and rollover over store. Extra
// workflow options (sinks, clock) are passed through.
func NewHandler(store Store, calc *leave.Calculator, logger *zap.Logger, opts ...leave.WorkflowOption) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	wf := leave.NewWorkflow(store, store, leave.MustDefaultAuthorizer(), calc,
		append([]leave.WorkflowOption{leave.WithLogger(logger)}, opts...)...)

	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Handler{
		Store:    store,
		Workflow: wf,
		Queue:    leave.NewQueue(store, wf),
		Rollover: leave.NewRollover(store, store, calc, logger),
		validate: v,
		logger:   logger.Named("api"),
		now:      time.Now,
	}
}

// sessionFrom reads the actor headers. A missing role means employee.
func sessionFrom(r *http.Request) leave.Session {
	role := leave.Role(strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderRole))))
	if role == "" {
		role = leave.RoleEmployee
	}
	return leave.Session{
		EmployeeID: generic.EntityID(strings.TrimSpace(r.Header.Get(HeaderEmployeeID))),
		Email:      strings.TrimSpace(r.Header.Get(HeaderEmail)),
		UserID:     strings.TrimSpace(r.Header.Get(HeaderUserID)),
		Role:       role,
	}
}

func viewFrom(r *http.Request) leave.View {
	q := r.URL.Query()
	return leave.View{Status: q.Get("status"), Search: q.Get("q")}
}

func parseOptionalDate(field, s string) (generic.TimePoint, error) {
	if s == "" {
		return generic.TimePoint{}, nil
	}
	tp, err := generic.ParseDate(s)
	if err != nil {
		return generic.TimePoint{}, generic.NewValidationError(field, "must be a date (YYYY-MM-DD)")
	}
	return tp, nil
}

func (h *Handler) yearParam(raw string) (int, error) {
	if raw == "" {
		return h.now().Year(), nil
	}
	year, err := strconv.Atoi(raw)
	if err != nil || year < 1 {
		return 0, generic.NewValidationError("year", "must be a positive integer")
	}
	return year, nil
}

// =============================================================================
// WORKFLOW HANDLERS
// =============================================================================

// SubmitRequest creates a pending request for the actor (or, for reviewers,
// for body.employeeId).
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	var body SubmitLeaveRequest
	if err := h.decode(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	start, err := parseOptionalDate("startDate", body.StartDate)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	end, err := parseOptionalDate("endDate", body.EndDate)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	req, err := h.Workflow.Submit(r.Context(), sessionFrom(r), leave.SubmitInput{
		EmployeeID:        generic.EntityID(body.EmployeeID),
		LeaveType:         body.LeaveType,
		StartDate:         start,
		EndDate:           end,
		Reason:            body.Reason,
		AttachedDocuments: body.AttachedDocuments,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// ApproveRequest approves and returns the refreshed reviewer list.
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	res, err := h.Queue.Approve(r.Context(), sessionFrom(r), chi.URLParam(r, "id"), viewFrom(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// RejectRequest rejects; the body and its reason are optional.
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	var body RejectLeaveRequest
	if r.ContentLength != 0 {
		if err := h.decode(r, &body); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	res, err := h.Queue.Reject(r.Context(), sessionFrom(r), chi.URLParam(r, "id"), body.Reason, viewFrom(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) HoldRequest(w http.ResponseWriter, r *http.Request) {
	res, err := h.Queue.Hold(r.Context(), sessionFrom(r), chi.URLParam(r, "id"), viewFrom(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.Workflow.Cancel(r.Context(), sessionFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *Handler) DeleteRequest(w http.ResponseWriter, r *http.Request) {
	if err := h.Workflow.Delete(r.Context(), sessionFrom(r), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetAuditLog returns a request's audit trail, oldest first. Reviewers only.
func (h *Handler) GetAuditLog(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	if !leave.IsApprover(h.Workflow.Authorizer(), s.Role) {
		h.writeError(w, r, &generic.UnauthorizedError{Capability: string(leave.CapApproveLeave)})
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := h.Store.GetRequest(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	entries, err := h.Store.GetAuditLog(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// =============================================================================
// QUEUE HANDLERS
// =============================================================================

// ListQueue is the reviewer listing. status defaults to pending; "all"
// disables the filter.
func (h *Handler) ListQueue(w http.ResponseWriter, r *http.Request) {
	v := viewFrom(r)
	items, err := h.Queue.ListForReviewer(r.Context(), sessionFrom(r), v.Status, v.Search)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	status := v.Status
	if status == "" {
		status = string(leave.StatusPending)
	}
	writeJSON(w, http.StatusOK, QueueDTO{Status: status, Search: v.Search, Items: items})
}

func (h *Handler) ListEmployeeRequests(w http.ResponseWriter, r *http.Request) {
	items, err := h.Queue.ListForEmployee(r.Context(), sessionFrom(r), generic.EntityID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// GetBalance returns the derived balance for ?year= (default: this year).
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	year, err := h.yearParam(r.URL.Query().Get("year"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	snap, err := h.Workflow.Balance(r.Context(), sessionFrom(r), generic.EntityID(chi.URLParam(r, "id")), year)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(snap))
}

// =============================================================================
// ADMIN
// =============================================================================

// TriggerRollover runs the year-end carry-over for from_year. Reviewers only.
func (h *Handler) TriggerRollover(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	if !leave.IsApprover(h.Workflow.Authorizer(), s.Role) {
		h.writeError(w, r, &generic.UnauthorizedError{Capability: string(leave.CapApproveLeave)})
		return
	}
	var body RolloverRequest
	if err := h.decode(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	report, err := h.Rollover.Run(r.Context(), body.FromYear)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// =============================================================================
// HEALTH
// =============================================================================

// Health reports whether the database answers.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		h.logger.Error("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "database": "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": "healthy"})
}
