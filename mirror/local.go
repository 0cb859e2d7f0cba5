/*
Package mirror is the client-side synchronization layer.

PURPOSE:
  Keeps a local copy of what the client last saw from the server, and
  serves from it when the server cannot be reached. There is no retry
  queue and no reconciliation: a successful network call overwrites the
  local copy, a failed one is answered locally and flagged out of sync.

PIECES:
  SlotStore:  Where the copy lives (redis keys or JSON files), one slot per
              collection holding a flat JSON array
  Local:      leave.Ledger + leave.Directory over store/memory, written to
              the slots after every change
  Fallback:   primary.orElse(local). Transport failures fall back, domain
              errors (validation, not found, ...) are returned as-is

USAGE:
  slots, _ := mirror.NewFileSlots("~/.leavectl")
  local, _ := mirror.OpenLocal(ctx, slots, leave.DefaultPolicy(), logger)
  ledger := mirror.NewFallback(client.New(baseURL), local, logger)
  wf := leave.NewWorkflow(ledger, ledger, authz, calc)

SEE ALSO:
  - client: The primary
  - store/memory: The working set inside Local
*/
package mirror

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/memory"
	"go.uber.org/zap"
)

// Local is the mirror's own Ledger and Directory.
type Local struct {
	mem    *memory.Store
	slots  SlotStore
	logger *zap.Logger
}

var (
	_ leave.Ledger    = (*Local)(nil)
	_ leave.Directory = (*Local)(nil)
)

// OpenLocal loads whatever the slots hold into a fresh working set.
func OpenLocal(ctx context.Context, slots SlotStore, policy leave.Policy, logger *zap.Logger) (*Local, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Local{mem: memory.New(policy), slots: slots, logger: logger.Named("mirror.local")}

	var snap memory.Snapshot
	if err := l.loadSlot(ctx, SlotRequests, &snap.Requests); err != nil {
		return nil, err
	}
	if err := l.loadSlot(ctx, SlotBalances, &snap.Balances); err != nil {
		return nil, err
	}
	if err := l.loadSlot(ctx, SlotEmployees, &snap.Employees); err != nil {
		return nil, err
	}
	l.mem.Restore(snap)
	return l, nil
}

func (l *Local) loadSlot(ctx context.Context, name string, into any) error {
	b, err := l.slots.Load(ctx, name)
	if err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, into); err != nil {
		return fmt.Errorf("decode slot %s: %w", name, err)
	}
	return nil
}

// persist writes the whole working set back. Failures are logged; the
// in-memory copy stays authoritative for this process.
func (l *Local) persist(ctx context.Context) {
	snap := l.mem.Snapshot()
	slots := []struct {
		name string
		v    any
	}{
		{SlotRequests, snap.Requests},
		{SlotBalances, snap.Balances},
		{SlotEmployees, snap.Employees},
	}
	for _, s := range slots {
		b, err := json.Marshal(s.v)
		if err == nil {
			err = l.slots.Save(ctx, s.name, b)
		}
		if err != nil {
			l.logger.Warn("mirror persist failed", zap.String("slot", s.name), zap.Error(err))
		}
	}
}

// =============================================================================
// LEDGER
// =============================================================================

func (l *Local) CreateRequest(ctx context.Context, req leave.LeaveRequest) (leave.LeaveRequest, error) {
	created, err := l.mem.CreateRequest(ctx, req)
	if err != nil {
		return leave.LeaveRequest{}, err
	}
	l.persist(ctx)
	return created, nil
}

func (l *Local) GetRequest(ctx context.Context, id string) (leave.LeaveRequest, error) {
	return l.mem.GetRequest(ctx, id)
}

func (l *Local) GetRequestsByEmployee(ctx context.Context, employeeID generic.EntityID) ([]leave.LeaveRequest, error) {
	return l.mem.GetRequestsByEmployee(ctx, employeeID)
}

func (l *Local) GetAllRequests(ctx context.Context) ([]leave.LeaveRequest, error) {
	return l.mem.GetAllRequests(ctx)
}

func (l *Local) UpdateRequestStatus(ctx context.Context, id string, status leave.Status, upd leave.StatusUpdate) (leave.LeaveRequest, error) {
	updated, err := l.mem.UpdateRequestStatus(ctx, id, status, upd)
	if err != nil {
		return leave.LeaveRequest{}, err
	}
	l.persist(ctx)
	return updated, nil
}

func (l *Local) DeleteRequest(ctx context.Context, id string) error {
	if err := l.mem.DeleteRequest(ctx, id); err != nil {
		return err
	}
	l.persist(ctx)
	return nil
}

func (l *Local) GetBalance(ctx context.Context, employeeID generic.EntityID, year int) (leave.LeaveBalance, error) {
	return l.mem.GetBalance(ctx, employeeID, year)
}

func (l *Local) SaveBalance(ctx context.Context, b leave.LeaveBalance) error {
	if err := l.mem.SaveBalance(ctx, b); err != nil {
		return err
	}
	l.persist(ctx)
	return nil
}

// =============================================================================
// DIRECTORY
// =============================================================================

func (l *Local) ResolveByEmail(ctx context.Context, email string) (*leave.Employee, error) {
	return l.mem.ResolveByEmail(ctx, email)
}

func (l *Local) ResolveByID(ctx context.Context, id generic.EntityID) (*leave.Employee, error) {
	return l.mem.ResolveByID(ctx, id)
}

func (l *Local) ListAll(ctx context.Context) ([]leave.Employee, error) {
	return l.mem.ListAll(ctx)
}

// =============================================================================
// WRITE-THROUGH FROM THE PRIMARY
// =============================================================================

func (l *Local) absorbRequest(ctx context.Context, r leave.LeaveRequest) {
	l.mem.PutRequest(r)
	l.persist(ctx)
}

func (l *Local) absorbEmployeeRequests(ctx context.Context, employeeID generic.EntityID, reqs []leave.LeaveRequest) {
	l.mem.ReplaceRequests(employeeID, reqs)
	l.persist(ctx)
}

func (l *Local) absorbAllRequests(ctx context.Context, reqs []leave.LeaveRequest) {
	l.mem.ReplaceAllRequests(reqs)
	l.persist(ctx)
}

func (l *Local) absorbDelete(ctx context.Context, id string) {
	if err := l.mem.DeleteRequest(ctx, id); err == nil {
		l.persist(ctx)
	}
}

func (l *Local) absorbBalance(ctx context.Context, b leave.LeaveBalance) {
	if err := l.mem.SaveBalance(ctx, b); err == nil {
		l.persist(ctx)
	}
}

func (l *Local) absorbEmployee(ctx context.Context, e *leave.Employee) {
	if e == nil {
		return
	}
	if err := l.mem.SaveEmployee(ctx, *e); err == nil {
		l.persist(ctx)
	}
}

func (l *Local) absorbEmployees(ctx context.Context, es []leave.Employee) {
	l.mem.ReplaceEmployees(es)
	l.persist(ctx)
}

// replace discards everything local and installs snap.
func (l *Local) replace(ctx context.Context, snap memory.Snapshot) {
	l.mem.Restore(snap)
	l.persist(ctx)
}
