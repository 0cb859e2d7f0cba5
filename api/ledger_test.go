package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/client"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

func TestLedger_StatusUpdateFollowsTransitionTable(t *testing.T) {
	_, router := setupTestHandler(t)
	req := submit(t, router, asAlice, "casual", "2025-07-01", "2025-07-01")

	rec := call(t, router, http.MethodPatch, "/api/ledger/requests/"+req.ID+"/status",
		StatusChangeRequest{Status: "rejected", ActorID: "emp-hana", RejectionReason: "No cover"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeBody[leave.LeaveRequest](t, rec)
	assert.Equal(t, leave.StatusRejected, got.Status)
	assert.Equal(t, "No cover", got.RejectionReason)

	rec = call(t, router, http.MethodPatch, "/api/ledger/requests/"+req.ID+"/status",
		StatusChangeRequest{Status: "approved", ActorID: "emp-hana"}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, generic.CodeInvalidTransition, wireError(t, rec).Code)
}

func TestLedger_CreateIsAlwaysPending(t *testing.T) {
	h, router := setupTestHandler(t)
	body := map[string]any{
		"employeeId": "emp-alice",
		"leaveType":  "annual",
		"startDate":  "2025-01-01",
		"endDate":    "2025-02-09",
		"reason":     "Skip the queue",
		"status":     "approved",
		"approverId": "emp-alice",
	}

	rec := call(t, router, http.MethodPost, "/api/ledger/requests", body, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "status", wireError(t, rec).Details["field"])

	body["status"] = "bogus"
	rec = call(t, router, http.MethodPost, "/api/ledger/requests", body, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	snap, err := h.Workflow.Balance(context.Background(), leave.Session{EmployeeID: "emp-hana", Role: leave.RoleHR}, "emp-alice", 2025)
	require.NoError(t, err)
	assert.Equal(t, "20", snap.Remaining(leave.TypeAnnual).Value.String())

	delete(body, "status")
	rec = call(t, router, http.MethodPost, "/api/ledger/requests", body, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[leave.LeaveRequest](t, rec)
	assert.Equal(t, leave.StatusPending, created.Status)
	assert.Empty(t, created.ApproverID)
}

func TestLedger_TokenGuard(t *testing.T) {
	h, _ := setupTestHandler(t)
	router := NewRouter(h, RouterOptions{LedgerToken: "s3cret"})
	token := map[string]string{HeaderLedgerToken: "s3cret"}

	rec := call(t, router, http.MethodGet, "/api/ledger/requests", nil, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, generic.CodeUnauthorized, wireError(t, rec).Code)

	rec = call(t, router, http.MethodGet, "/api/ledger/requests", nil, map[string]string{HeaderLedgerToken: "guess"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	assert.Equal(t, http.StatusOK, call(t, router, http.MethodGet, "/api/ledger/requests", nil, token).Code)

	employee := SaveEmployeeRequest{ID: "emp-zed", Name: "Zed Ora", Email: "zed@example.com"}
	assert.Equal(t, http.StatusForbidden, call(t, router, http.MethodPost, "/api/employees", employee, nil).Code)
	assert.Equal(t, http.StatusCreated, call(t, router, http.MethodPost, "/api/employees", employee, token).Code)

	// reads and the workflow endpoints stay on their own guards
	assert.Equal(t, http.StatusOK, call(t, router, http.MethodGet, "/api/employees", nil, nil).Code)
	assert.Equal(t, http.StatusOK, call(t, router, http.MethodGet, "/api/leave/requests", nil, asHR).Code)
}

func TestLedger_Disabled(t *testing.T) {
	h, _ := setupTestHandler(t)
	router := NewRouter(h, RouterOptions{DisableLedger: true})

	assert.Equal(t, http.StatusNotFound, call(t, router, http.MethodGet, "/api/ledger/requests", nil, nil).Code)
	assert.Equal(t, http.StatusOK, call(t, router, http.MethodGet, "/api/leave/requests", nil, asHR).Code)
}

func TestLedger_StatusValueValidated(t *testing.T) {
	_, router := setupTestHandler(t)
	req := submit(t, router, asAlice, "casual", "2025-07-01", "2025-07-01")

	rec := call(t, router, http.MethodPatch, "/api/ledger/requests/"+req.ID+"/status",
		StatusChangeRequest{Status: "archived"}, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "status", wireError(t, rec).Details["field"])
}

func TestLedger_SaveBalanceRejectsNegative(t *testing.T) {
	_, router := setupTestHandler(t)

	rec := call(t, router, http.MethodPut, "/api/ledger/balances/emp-alice/2025", leave.LeaveBalance{
		Entitlement: map[leave.Type]decimal.Decimal{leave.TypeAnnual: decimal.NewFromInt(-1)},
	}, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDirectory_Endpoints(t *testing.T) {
	_, router := setupTestHandler(t)

	rec := call(t, router, http.MethodGet, "/api/employees/lookup?email=HANA@example.com", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, generic.EntityID("emp-hana"), decodeBody[leave.Employee](t, rec).ID)

	assert.Equal(t, http.StatusBadRequest, call(t, router, http.MethodGet, "/api/employees/lookup", nil, nil).Code)
	assert.Equal(t, http.StatusNotFound, call(t, router, http.MethodGet, "/api/employees/emp-zed", nil, nil).Code)

	rec = call(t, router, http.MethodPost, "/api/employees", SaveEmployeeRequest{
		ID: "emp-zed", Name: "Zed Ora", Email: "zed@example.com", HireDate: "2024-09-01",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, leave.RoleEmployee, decodeBody[leave.Employee](t, rec).Role)

	rec = call(t, router, http.MethodGet, "/api/employees", nil, nil)
	assert.Len(t, decodeBody[[]leave.Employee](t, rec), 4)
}

// =============================================================================
// CLIENT ROUND TRIP
// =============================================================================

func TestRemoteWorkflowAgainstServer(t *testing.T) {
	// GIVEN: A workflow whose ledger and directory live behind the HTTP API
	h, router := setupTestHandler(t)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	remote := client.New(srv.URL, client.WithTimeout(2*time.Second))
	wf := leave.NewWorkflow(remote, remote, leave.MustDefaultAuthorizer(), h.Workflow.Calculator())
	ctx := context.Background()
	alice := leave.Session{Email: "alice@example.com", Role: leave.RoleEmployee}
	hr := leave.Session{EmployeeID: "emp-hana", Role: leave.RoleHR}

	// WHEN: Alice submits and HR approves through the remote ledger
	req, err := wf.Submit(ctx, alice, leave.SubmitInput{
		LeaveType: "annual",
		StartDate: generic.NewTimePoint(2025, time.August, 4),
		EndDate:   generic.NewTimePoint(2025, time.August, 8),
		Reason:    "Summer",
	})
	require.NoError(t, err)
	_, err = wf.Approve(ctx, hr, req.ID)
	require.NoError(t, err)

	// THEN: The server-side store holds the approved request
	stored, err := h.Store.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusApproved, stored.Status)
	assert.Equal(t, "emp-hana", stored.ApproverID)

	// AND: Domain errors come back typed
	_, err = wf.Approve(ctx, hr, req.ID)
	var transition *generic.InvalidTransitionError
	assert.ErrorAs(t, err, &transition)

	snap, err := wf.Balance(ctx, alice, "emp-alice", 2025)
	require.NoError(t, err)
	assert.Equal(t, "15", snap.Remaining(leave.TypeAnnual).Value.String())
}
