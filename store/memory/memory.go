// Package memory provides in-process implementations of leave.Ledger and
// leave.Directory. Tests use it directly; the client mirror uses it as the
// working set it persists to slots.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Store struct {
	mu        sync.RWMutex
	policy    leave.Policy
	requests  map[string]leave.LeaveRequest
	balances  map[leave.BalanceKey]leave.LeaveBalance
	employees map[generic.EntityID]leave.Employee
	now       func() time.Time
}

var (
	_ leave.Ledger    = (*Store)(nil)
	_ leave.Directory = (*Store)(nil)
)

func New(policy leave.Policy) *Store {
	return &Store{
		policy:    policy,
		requests:  make(map[string]leave.LeaveRequest),
		balances:  make(map[leave.BalanceKey]leave.LeaveBalance),
		employees: make(map[generic.EntityID]leave.Employee),
		now:       time.Now,
	}
}

// =============================================================================
// LEDGER
// =============================================================================

func (m *Store) CreateRequest(_ context.Context, req leave.LeaveRequest) (leave.LeaveRequest, error) {
	req, err := leave.PrepareNew(req, m.now())
	if err != nil {
		return leave.LeaveRequest{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[req.ID] = cloneRequest(req)
	return req, nil
}

func (m *Store) GetRequest(_ context.Context, id string) (leave.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.requests[id]
	if !ok {
		return leave.LeaveRequest{}, &generic.NotFoundError{Kind: "request", ID: id}
	}
	return cloneRequest(r), nil
}

func (m *Store) GetRequestsByEmployee(_ context.Context, employeeID generic.EntityID) ([]leave.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []leave.LeaveRequest{}
	for _, r := range m.requests {
		if r.EmployeeID == employeeID {
			out = append(out, cloneRequest(r))
		}
	}
	leave.SortNewestFirst(out)
	return out, nil
}

func (m *Store) GetAllRequests(_ context.Context) ([]leave.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]leave.LeaveRequest, 0, len(m.requests))
	for _, r := range m.requests {
		out = append(out, cloneRequest(r))
	}
	leave.SortNewestFirst(out)
	return out, nil
}

// UpdateRequestStatus checks and applies the transition under the write
// lock, so concurrent transitions of the same request serialize.
func (m *Store) UpdateRequestStatus(_ context.Context, id string, status leave.Status, upd leave.StatusUpdate) (leave.LeaveRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return leave.LeaveRequest{}, &generic.NotFoundError{Kind: "request", ID: id}
	}
	if upd.At.IsZero() {
		upd.At = m.now()
	}
	updated, err := leave.ApplyStatus(r, status, upd)
	if err != nil {
		return leave.LeaveRequest{}, err
	}
	m.requests[id] = updated
	return cloneRequest(updated), nil
}

func (m *Store) DeleteRequest(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requests[id]; !ok {
		return &generic.NotFoundError{Kind: "request", ID: id}
	}
	delete(m.requests, id)
	return nil
}

// GetBalance returns the stored record, or the policy defaults when the
// employee has none for the year yet. Defaults are not written back.
func (m *Store) GetBalance(_ context.Context, employeeID generic.EntityID, year int) (leave.LeaveBalance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if b, ok := m.balances[leave.BalanceKey{EmployeeID: employeeID, Year: year}]; ok {
		return cloneBalance(b), nil
	}
	return m.policy.NewBalance(employeeID, year), nil
}

func (m *Store) SaveBalance(_ context.Context, b leave.LeaveBalance) error {
	if b.EmployeeID == "" {
		return generic.NewValidationError("employeeId", "is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[b.Key()] = cloneBalance(b)
	return nil
}

// =============================================================================
// DIRECTORY
// =============================================================================

// ResolveByEmail matches case-insensitively. Returns nil, nil when absent.
func (m *Store) ResolveByEmail(_ context.Context, email string) (*leave.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.employees {
		if strings.EqualFold(e.Email, strings.TrimSpace(email)) {
			e := e
			return &e, nil
		}
	}
	return nil, nil
}

// ResolveByID returns nil, nil when absent.
func (m *Store) ResolveByID(_ context.Context, id generic.EntityID) (*leave.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.employees[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (m *Store) ListAll(_ context.Context) ([]leave.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]leave.Employee, 0, len(m.employees))
	for _, e := range m.employees {
		out = append(out, e)
	}
	sortEmployees(out)
	return out, nil
}

func (m *Store) SaveEmployee(_ context.Context, e leave.Employee) error {
	if e.ID == "" {
		return generic.NewValidationError("id", "is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[e.ID] = e
	return nil
}

// =============================================================================
// SNAPSHOT / RESTORE
// =============================================================================

// Snapshot is a full copy of the store's contents.
type Snapshot struct {
	Requests  []leave.LeaveRequest
	Balances  []leave.LeaveBalance
	Employees []leave.Employee
}

func (m *Store) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := Snapshot{
		Requests:  make([]leave.LeaveRequest, 0, len(m.requests)),
		Balances:  make([]leave.LeaveBalance, 0, len(m.balances)),
		Employees: make([]leave.Employee, 0, len(m.employees)),
	}
	for _, r := range m.requests {
		s.Requests = append(s.Requests, cloneRequest(r))
	}
	for _, b := range m.balances {
		s.Balances = append(s.Balances, cloneBalance(b))
	}
	for _, e := range m.employees {
		s.Employees = append(s.Employees, e)
	}
	leave.SortNewestFirst(s.Requests)
	sortEmployees(s.Employees)
	return s
}

// Restore replaces the store's contents.
func (m *Store) Restore(s Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = make(map[string]leave.LeaveRequest, len(s.Requests))
	m.balances = make(map[leave.BalanceKey]leave.LeaveBalance, len(s.Balances))
	m.employees = make(map[generic.EntityID]leave.Employee, len(s.Employees))
	for _, r := range s.Requests {
		m.requests[r.ID] = cloneRequest(r)
	}
	for _, b := range s.Balances {
		m.balances[b.Key()] = cloneBalance(b)
	}
	for _, e := range s.Employees {
		m.employees[e.ID] = e
	}
}

// PutRequest stores a request as-is, replacing any with the same id.
func (m *Store) PutRequest(r leave.LeaveRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[r.ID] = cloneRequest(r)
}

// ReplaceAllRequests swaps out every request.
func (m *Store) ReplaceAllRequests(reqs []leave.LeaveRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = make(map[string]leave.LeaveRequest, len(reqs))
	for _, r := range reqs {
		m.requests[r.ID] = cloneRequest(r)
	}
}

// ReplaceEmployees swaps out the directory.
func (m *Store) ReplaceEmployees(es []leave.Employee) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees = make(map[generic.EntityID]leave.Employee, len(es))
	for _, e := range es {
		m.employees[e.ID] = e
	}
}

// ReplaceRequests swaps out every request of one employee.
func (m *Store) ReplaceRequests(employeeID generic.EntityID, reqs []leave.LeaveRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.requests {
		if r.EmployeeID == employeeID {
			delete(m.requests, id)
		}
	}
	for _, r := range reqs {
		m.requests[r.ID] = cloneRequest(r)
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func cloneRequest(r leave.LeaveRequest) leave.LeaveRequest {
	if r.AttachedDocuments != nil {
		r.AttachedDocuments = append([]string(nil), r.AttachedDocuments...)
	}
	if r.DecisionDate != nil {
		d := *r.DecisionDate
		r.DecisionDate = &d
	}
	return r
}

func cloneBalance(b leave.LeaveBalance) leave.LeaveBalance {
	b.Entitlement = cloneAmounts(b.Entitlement)
	b.CarriedOver = cloneAmounts(b.CarriedOver)
	return b
}

func cloneAmounts(in map[leave.Type]decimal.Decimal) map[leave.Type]decimal.Decimal {
	out := make(map[leave.Type]decimal.Decimal, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func sortEmployees(es []leave.Employee) {
	sort.Slice(es, func(i, j int) bool { return es[i].ID < es[j].ID })
}
