package mirror

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/memory"
	"go.uber.org/zap"
)

// Result is a value plus whether it came from the local copy because the
// primary could not be reached.
type Result[T any] struct {
	Value     T
	OutOfSync bool
}

// OrElse runs primary and, only when it fails with a transport error, runs
// local instead. onPrimary sees every successful primary value, which is how
// the mirror stays current. Any other primary error is returned unchanged.
func OrElse[T any](
	ctx context.Context,
	primary func(context.Context) (T, error),
	local func(context.Context) (T, error),
	onPrimary func(T),
) (Result[T], error) {
	v, err := primary(ctx)
	if err == nil {
		if onPrimary != nil {
			onPrimary(v)
		}
		return Result[T]{Value: v}, nil
	}
	if !generic.IsTransport(err) {
		return Result[T]{}, err
	}
	lv, lerr := local(ctx)
	if lerr != nil {
		return Result[T]{OutOfSync: true}, lerr
	}
	return Result[T]{Value: lv, OutOfSync: true}, nil
}

// Fallback is primary orElse local, exposed as a leave.Ledger and
// leave.Directory so the Workflow and Queue run over it unchanged.
type Fallback struct {
	primary   Primary
	local     *Local
	logger    *zap.Logger
	outOfSync atomic.Bool
	now       func() time.Time
}

var (
	_ leave.Ledger    = (*Fallback)(nil)
	_ leave.Directory = (*Fallback)(nil)
)

// Primary is what Fallback wraps; client.Remote satisfies it.
type Primary interface {
	leave.Ledger
	leave.Directory
}

func NewFallback(primary Primary, local *Local, logger *zap.Logger) *Fallback {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fallback{primary: primary, local: local, logger: logger.Named("mirror.fallback"), now: time.Now}
}

// OutOfSync reports whether any call since the last Refresh was answered
// from the local copy.
func (f *Fallback) OutOfSync() bool { return f.outOfSync.Load() }

func track[T any](f *Fallback, op string, r Result[T], err error) (T, error) {
	if r.OutOfSync {
		f.outOfSync.Store(true)
		f.logger.Warn("served from local mirror", zap.String("op", op))
	}
	return r.Value, err
}

// =============================================================================
// LEDGER
// =============================================================================

func (f *Fallback) CreateRequest(ctx context.Context, req leave.LeaveRequest) (leave.LeaveRequest, error) {
	r, err := OrElse(ctx,
		func(ctx context.Context) (leave.LeaveRequest, error) { return f.primary.CreateRequest(ctx, req) },
		func(ctx context.Context) (leave.LeaveRequest, error) { return f.local.CreateRequest(ctx, req) },
		func(v leave.LeaveRequest) { f.local.absorbRequest(ctx, v) },
	)
	return track(f, "create_request", r, err)
}

func (f *Fallback) GetRequest(ctx context.Context, id string) (leave.LeaveRequest, error) {
	r, err := OrElse(ctx,
		func(ctx context.Context) (leave.LeaveRequest, error) { return f.primary.GetRequest(ctx, id) },
		func(ctx context.Context) (leave.LeaveRequest, error) { return f.local.GetRequest(ctx, id) },
		func(v leave.LeaveRequest) { f.local.absorbRequest(ctx, v) },
	)
	return track(f, "get_request", r, err)
}

func (f *Fallback) GetRequestsByEmployee(ctx context.Context, employeeID generic.EntityID) ([]leave.LeaveRequest, error) {
	r, err := OrElse(ctx,
		func(ctx context.Context) ([]leave.LeaveRequest, error) {
			return f.primary.GetRequestsByEmployee(ctx, employeeID)
		},
		func(ctx context.Context) ([]leave.LeaveRequest, error) {
			return f.local.GetRequestsByEmployee(ctx, employeeID)
		},
		func(v []leave.LeaveRequest) { f.local.absorbEmployeeRequests(ctx, employeeID, v) },
	)
	return track(f, "get_requests_by_employee", r, err)
}

func (f *Fallback) GetAllRequests(ctx context.Context) ([]leave.LeaveRequest, error) {
	r, err := OrElse(ctx,
		f.primary.GetAllRequests,
		f.local.GetAllRequests,
		func(v []leave.LeaveRequest) { f.local.absorbAllRequests(ctx, v) },
	)
	return track(f, "get_all_requests", r, err)
}

func (f *Fallback) UpdateRequestStatus(ctx context.Context, id string, status leave.Status, upd leave.StatusUpdate) (leave.LeaveRequest, error) {
	r, err := OrElse(ctx,
		func(ctx context.Context) (leave.LeaveRequest, error) {
			return f.primary.UpdateRequestStatus(ctx, id, status, upd)
		},
		func(ctx context.Context) (leave.LeaveRequest, error) {
			return f.local.UpdateRequestStatus(ctx, id, status, upd)
		},
		func(v leave.LeaveRequest) { f.local.absorbRequest(ctx, v) },
	)
	return track(f, "update_request_status", r, err)
}

func (f *Fallback) DeleteRequest(ctx context.Context, id string) error {
	r, err := OrElse(ctx,
		func(ctx context.Context) (struct{}, error) { return struct{}{}, f.primary.DeleteRequest(ctx, id) },
		func(ctx context.Context) (struct{}, error) { return struct{}{}, f.local.DeleteRequest(ctx, id) },
		func(struct{}) { f.local.absorbDelete(ctx, id) },
	)
	_, err = track(f, "delete_request", r, err)
	return err
}

func (f *Fallback) GetBalance(ctx context.Context, employeeID generic.EntityID, year int) (leave.LeaveBalance, error) {
	r, err := OrElse(ctx,
		func(ctx context.Context) (leave.LeaveBalance, error) { return f.primary.GetBalance(ctx, employeeID, year) },
		func(ctx context.Context) (leave.LeaveBalance, error) { return f.local.GetBalance(ctx, employeeID, year) },
		func(v leave.LeaveBalance) { f.local.absorbBalance(ctx, v) },
	)
	return track(f, "get_balance", r, err)
}

func (f *Fallback) SaveBalance(ctx context.Context, b leave.LeaveBalance) error {
	r, err := OrElse(ctx,
		func(ctx context.Context) (struct{}, error) { return struct{}{}, f.primary.SaveBalance(ctx, b) },
		func(ctx context.Context) (struct{}, error) { return struct{}{}, f.local.SaveBalance(ctx, b) },
		func(struct{}) { f.local.absorbBalance(ctx, b) },
	)
	_, err = track(f, "save_balance", r, err)
	return err
}

// =============================================================================
// DIRECTORY
// =============================================================================

func (f *Fallback) ResolveByEmail(ctx context.Context, email string) (*leave.Employee, error) {
	r, err := OrElse(ctx,
		func(ctx context.Context) (*leave.Employee, error) { return f.primary.ResolveByEmail(ctx, email) },
		func(ctx context.Context) (*leave.Employee, error) { return f.local.ResolveByEmail(ctx, email) },
		func(v *leave.Employee) { f.local.absorbEmployee(ctx, v) },
	)
	return track(f, "resolve_by_email", r, err)
}

func (f *Fallback) ResolveByID(ctx context.Context, id generic.EntityID) (*leave.Employee, error) {
	r, err := OrElse(ctx,
		func(ctx context.Context) (*leave.Employee, error) { return f.primary.ResolveByID(ctx, id) },
		func(ctx context.Context) (*leave.Employee, error) { return f.local.ResolveByID(ctx, id) },
		func(v *leave.Employee) { f.local.absorbEmployee(ctx, v) },
	)
	return track(f, "resolve_by_id", r, err)
}

func (f *Fallback) ListAll(ctx context.Context) ([]leave.Employee, error) {
	r, err := OrElse(ctx,
		f.primary.ListAll,
		f.local.ListAll,
		func(v []leave.Employee) { f.local.absorbEmployees(ctx, v) },
	)
	return track(f, "list_employees", r, err)
}

// =============================================================================
// REFRESH
// =============================================================================

// Refresh re-reads everything from the primary and replaces the local copy,
// discarding whatever was done locally while offline. Balance records are
// fetched for the current year.
func (f *Fallback) Refresh(ctx context.Context) error {
	reqs, err := f.primary.GetAllRequests(ctx)
	if err != nil {
		return fmt.Errorf("refresh requests: %w", err)
	}
	emps, err := f.primary.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("refresh employees: %w", err)
	}
	year := f.now().Year()
	balances := make([]leave.LeaveBalance, 0, len(emps))
	for _, e := range emps {
		b, err := f.primary.GetBalance(ctx, e.ID, year)
		if err != nil {
			return fmt.Errorf("refresh balance %s: %w", e.ID, err)
		}
		balances = append(balances, b)
	}

	f.local.replace(ctx, memory.Snapshot{Requests: reqs, Balances: balances, Employees: emps})
	f.outOfSync.Store(false)
	f.logger.Info("mirror refreshed",
		zap.Int("requests", len(reqs)),
		zap.Int("employees", len(emps)),
	)
	return nil
}
