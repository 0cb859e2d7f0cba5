package mirror_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/mirror"
	"github.com/warp/leave-engine/store/memory"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// flakyPrimary is a memory store that can be taken offline.
type flakyPrimary struct {
	*memory.Store
	down bool
}

func (p *flakyPrimary) fail(op string) error {
	if p.down {
		return &generic.TransportError{Op: op, Err: errors.New("connection refused")}
	}
	return nil
}

func (p *flakyPrimary) CreateRequest(ctx context.Context, r leave.LeaveRequest) (leave.LeaveRequest, error) {
	if err := p.fail("create"); err != nil {
		return leave.LeaveRequest{}, err
	}
	return p.Store.CreateRequest(ctx, r)
}

func (p *flakyPrimary) GetRequest(ctx context.Context, id string) (leave.LeaveRequest, error) {
	if err := p.fail("get"); err != nil {
		return leave.LeaveRequest{}, err
	}
	return p.Store.GetRequest(ctx, id)
}

func (p *flakyPrimary) GetRequestsByEmployee(ctx context.Context, id generic.EntityID) ([]leave.LeaveRequest, error) {
	if err := p.fail("list"); err != nil {
		return nil, err
	}
	return p.Store.GetRequestsByEmployee(ctx, id)
}

func (p *flakyPrimary) GetAllRequests(ctx context.Context) ([]leave.LeaveRequest, error) {
	if err := p.fail("list"); err != nil {
		return nil, err
	}
	return p.Store.GetAllRequests(ctx)
}

func (p *flakyPrimary) UpdateRequestStatus(ctx context.Context, id string, s leave.Status, u leave.StatusUpdate) (leave.LeaveRequest, error) {
	if err := p.fail("status"); err != nil {
		return leave.LeaveRequest{}, err
	}
	return p.Store.UpdateRequestStatus(ctx, id, s, u)
}

func (p *flakyPrimary) DeleteRequest(ctx context.Context, id string) error {
	if err := p.fail("delete"); err != nil {
		return err
	}
	return p.Store.DeleteRequest(ctx, id)
}

func (p *flakyPrimary) GetBalance(ctx context.Context, id generic.EntityID, year int) (leave.LeaveBalance, error) {
	if err := p.fail("balance"); err != nil {
		return leave.LeaveBalance{}, err
	}
	return p.Store.GetBalance(ctx, id, year)
}

func (p *flakyPrimary) SaveBalance(ctx context.Context, b leave.LeaveBalance) error {
	if err := p.fail("balance"); err != nil {
		return err
	}
	return p.Store.SaveBalance(ctx, b)
}

func (p *flakyPrimary) ResolveByEmail(ctx context.Context, email string) (*leave.Employee, error) {
	if err := p.fail("employee"); err != nil {
		return nil, err
	}
	return p.Store.ResolveByEmail(ctx, email)
}

func (p *flakyPrimary) ResolveByID(ctx context.Context, id generic.EntityID) (*leave.Employee, error) {
	if err := p.fail("employee"); err != nil {
		return nil, err
	}
	return p.Store.ResolveByID(ctx, id)
}

func (p *flakyPrimary) ListAll(ctx context.Context) ([]leave.Employee, error) {
	if err := p.fail("employees"); err != nil {
		return nil, err
	}
	return p.Store.ListAll(ctx)
}

var emp = leave.Employee{ID: "emp-1", Name: "Ana", Email: "ana@example.com", Role: leave.RoleEmployee}

func newRequest() leave.LeaveRequest {
	return leave.LeaveRequest{
		EmployeeID: emp.ID,
		LeaveType:  leave.TypeAnnual,
		StartDate:  generic.NewTimePoint(2025, time.March, 3),
		EndDate:    generic.NewTimePoint(2025, time.March, 4),
		Reason:     "trip",
	}
}

func setup(t *testing.T) (*flakyPrimary, *mirror.Local, *mirror.FileSlots, *mirror.Fallback) {
	t.Helper()
	ctx := context.Background()
	primary := &flakyPrimary{Store: memory.New(leave.DefaultPolicy())}
	require.NoError(t, primary.SaveEmployee(ctx, emp))

	slots, err := mirror.NewFileSlots(t.TempDir())
	require.NoError(t, err)
	local, err := mirror.OpenLocal(ctx, slots, leave.DefaultPolicy(), nil)
	require.NoError(t, err)
	return primary, local, slots, mirror.NewFallback(primary, local, nil)
}

// =============================================================================
// ORELSE
// =============================================================================

func TestOrElse(t *testing.T) {
	ctx := context.Background()
	ok := func(v int) func(context.Context) (int, error) {
		return func(context.Context) (int, error) { return v, nil }
	}
	failing := func(err error) func(context.Context) (int, error) {
		return func(context.Context) (int, error) { return 0, err }
	}

	t.Run("primary success is written through", func(t *testing.T) {
		var seen int
		r, err := mirror.OrElse(ctx, ok(1), ok(2), func(v int) { seen = v })
		require.NoError(t, err)
		assert.Equal(t, mirror.Result[int]{Value: 1}, r)
		assert.Equal(t, 1, seen)
	})

	t.Run("transport failure falls back", func(t *testing.T) {
		r, err := mirror.OrElse(ctx, failing(&generic.TransportError{Op: "x", StatusCode: 503, Err: errors.New("unavailable")}), ok(2), nil)
		require.NoError(t, err)
		assert.Equal(t, mirror.Result[int]{Value: 2, OutOfSync: true}, r)
	})

	t.Run("domain errors are never masked", func(t *testing.T) {
		_, err := mirror.OrElse(ctx, failing(&generic.NotFoundError{Kind: "request", ID: "r"}), ok(2), nil)
		assert.ErrorIs(t, err, generic.ErrNotFound)

		_, err = mirror.OrElse(ctx, failing(generic.NewValidationError("endDate", "bad")), ok(2), nil)
		assert.ErrorIs(t, err, generic.ErrValidation)
	})
}

// =============================================================================
// FALLBACK
// =============================================================================

func TestFallback_WritesThroughWhileOnline(t *testing.T) {
	// GIVEN: The primary is reachable
	// WHEN: A request is created and listed
	// THEN: The local mirror holds the primary's copy and nothing is out of sync
	primary, local, _, fb := setup(t)
	ctx := context.Background()

	created, err := fb.CreateRequest(ctx, newRequest())
	require.NoError(t, err)
	assert.False(t, fb.OutOfSync())

	mirrored, err := local.GetRequest(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, mirrored.ID)

	primary.down = true
	got, err := fb.GetRequest(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.True(t, fb.OutOfSync())
}

func TestFallback_OfflineMutationsStayLocal(t *testing.T) {
	primary, _, _, fb := setup(t)
	ctx := context.Background()
	_, err := fb.ListAll(ctx)
	require.NoError(t, err)

	primary.down = true
	created, err := fb.CreateRequest(ctx, newRequest())
	require.NoError(t, err)
	assert.True(t, fb.OutOfSync())

	primary.down = false
	_, err = primary.Store.GetRequest(ctx, created.ID)
	assert.ErrorIs(t, err, generic.ErrNotFound, "no background reconciliation")
}

func TestFallback_DomainErrorsPropagate(t *testing.T) {
	_, _, _, fb := setup(t)
	ctx := context.Background()

	_, err := fb.UpdateRequestStatus(ctx, "missing", leave.StatusApproved, leave.StatusUpdate{})
	assert.ErrorIs(t, err, generic.ErrNotFound)
	assert.False(t, fb.OutOfSync())
}

func TestFallback_RefreshDiscardsLocalDivergence(t *testing.T) {
	primary, local, _, fb := setup(t)
	ctx := context.Background()

	primary.down = true
	offline, err := fb.CreateRequest(ctx, newRequest())
	require.NoError(t, err)

	primary.down = false
	online, err := primary.Store.CreateRequest(ctx, newRequest())
	require.NoError(t, err)

	require.NoError(t, fb.Refresh(ctx))
	assert.False(t, fb.OutOfSync())

	_, err = local.GetRequest(ctx, offline.ID)
	assert.ErrorIs(t, err, generic.ErrNotFound)
	_, err = local.GetRequest(ctx, online.ID)
	assert.NoError(t, err)
	e, err := local.ResolveByID(ctx, emp.ID)
	require.NoError(t, err)
	assert.Equal(t, emp.Name, e.Name)
}

func TestFallback_WorkflowRunsOfflineFromMirror(t *testing.T) {
	// GIVEN: The mirror was populated while online
	// WHEN: The network drops and the employee submits
	// THEN: Submission succeeds against the local copy
	primary, _, _, fb := setup(t)
	ctx := context.Background()
	_, err := fb.ListAll(ctx)
	require.NoError(t, err)

	primary.down = true
	wf := leave.NewWorkflow(fb, fb, leave.MustDefaultAuthorizer(), leave.NewCalculator(leave.DefaultPolicy()))
	req, err := wf.Submit(ctx, leave.Session{Email: "ANA@example.com", Role: leave.RoleEmployee}, leave.SubmitInput{
		LeaveType: "annual",
		StartDate: generic.NewTimePoint(2025, time.June, 2),
		EndDate:   generic.NewTimePoint(2025, time.June, 3),
		Reason:    "offline",
	})
	require.NoError(t, err)
	assert.Equal(t, emp.ID, req.EmployeeID)
	assert.True(t, fb.OutOfSync())
}

// =============================================================================
// SLOTS
// =============================================================================

func TestLocal_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	slots, err := mirror.NewFileSlots(t.TempDir())
	require.NoError(t, err)

	local, err := mirror.OpenLocal(ctx, slots, leave.DefaultPolicy(), nil)
	require.NoError(t, err)
	created, err := local.CreateRequest(ctx, newRequest())
	require.NoError(t, err)

	raw, err := slots.Load(ctx, mirror.SlotRequests)
	require.NoError(t, err)
	var flat []leave.LeaveRequest
	require.NoError(t, json.Unmarshal(raw, &flat))
	require.Len(t, flat, 1)
	assert.Equal(t, "2025-03-03", flat[0].StartDate.String())

	reopened, err := mirror.OpenLocal(ctx, slots, leave.DefaultPolicy(), nil)
	require.NoError(t, err)
	got, err := reopened.GetRequest(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.TotalDays)
}

func TestFileSlots_MissingSlot(t *testing.T) {
	slots, err := mirror.NewFileSlots(t.TempDir())
	require.NoError(t, err)

	b, err := slots.Load(context.Background(), mirror.SlotEmployees)
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestRedisSlots(t *testing.T) {
	db, mock := redismock.NewClientMock()
	slots := mirror.NewRedisSlots(db)
	ctx := context.Background()
	payload := []byte(`[{"id":"emp-1"}]`)

	t.Run("save", func(t *testing.T) {
		mock.ExpectSet("leave:mirror:employees", payload, 0).SetVal("OK")
		require.NoError(t, slots.Save(ctx, mirror.SlotEmployees, payload))
	})

	t.Run("load", func(t *testing.T) {
		mock.ExpectGet("leave:mirror:employees").SetVal(string(payload))
		b, err := slots.Load(ctx, mirror.SlotEmployees)
		require.NoError(t, err)
		assert.Equal(t, payload, b)
	})

	t.Run("missing key", func(t *testing.T) {
		mock.ExpectGet("leave:mirror:leave_requests").RedisNil()
		b, err := slots.Load(ctx, mirror.SlotRequests)
		require.NoError(t, err)
		assert.Nil(t, b)
	})

	t.Run("redis error", func(t *testing.T) {
		mock.ExpectGet("leave:mirror:leave_balances").SetErr(errors.New("READONLY"))
		_, err := slots.Load(ctx, mirror.SlotBalances)
		assert.Error(t, err)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
