package leave_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

func seedQueue(t *testing.T, f *fixture) (aliceAnnual, aliceSick, bobCasual leave.LeaveRequest) {
	t.Helper()
	ctx := context.Background()
	var err error
	aliceAnnual, err = f.workflow.Submit(ctx, aliceSession, leave.SubmitInput{
		LeaveType: "annual", StartDate: date(2025, time.March, 3), EndDate: date(2025, time.March, 7), Reason: "Beach holiday"})
	require.NoError(t, err)
	aliceSick, err = f.workflow.Submit(ctx, aliceSession, leave.SubmitInput{
		LeaveType: "sick", StartDate: date(2025, time.April, 1), EndDate: date(2025, time.April, 1), Reason: "Dentist"})
	require.NoError(t, err)
	bobCasual, err = f.workflow.Submit(ctx, bobSession, leave.SubmitInput{
		LeaveType: "Personal Leave", StartDate: date(2025, time.May, 2), EndDate: date(2025, time.May, 2), Reason: "Moving house"})
	require.NoError(t, err)
	return aliceAnnual, aliceSick, bobCasual
}

func ids(reqs []leave.LeaveRequest) []string {
	out := make([]string, len(reqs))
	for i, r := range reqs {
		out[i] = r.ID
	}
	return out
}

func TestListForReviewer_DefaultsToPendingNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	aAnnual, aSick, bCasual := seedQueue(t, f)
	_, err := f.workflow.Approve(ctx, hrSession, aSick.ID)
	require.NoError(t, err)

	items, err := f.queue.ListForReviewer(ctx, hrSession, "", "")
	require.NoError(t, err)
	assert.Equal(t, []string{bCasual.ID, aAnnual.ID}, ids(items))

	all, err := f.queue.ListForReviewer(ctx, hrSession, "all", "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	approved, err := f.queue.ListForReviewer(ctx, hrSession, "approved", "")
	require.NoError(t, err)
	assert.Equal(t, []string{aSick.ID}, ids(approved))
}

func TestListForReviewer_SearchIsCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	aAnnual, _, bCasual := seedQueue(t, f)

	tests := []struct {
		search string
		want   []string
	}{
		{"BOB", []string{bCasual.ID}},
		{"casual", []string{bCasual.ID}},
		{"beach", []string{aAnnual.ID}},
		{"zzz", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.search, func(t *testing.T) {
			items, err := f.queue.ListForReviewer(ctx, hrSession, "pending", tt.search)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(items))
		})
	}
}

func TestListForReviewer_NonApproverSeesOnlyOwn(t *testing.T) {
	// GIVEN: Requests from Alice and Bob
	// WHEN: Bob lists with any filter
	// THEN: Only Bob's requests come back
	f := newFixture(t)
	ctx := context.Background()
	_, _, bCasual := seedQueue(t, f)

	for _, filter := range []string{"", "all", "pending", "approved"} {
		items, err := f.queue.ListForReviewer(ctx, bobSession, filter, "")
		require.NoError(t, err)
		for _, r := range items {
			assert.Equal(t, bob.ID, r.EmployeeID, "filter %q", filter)
		}
	}

	items, err := f.queue.ListForReviewer(ctx, leave.Session{Email: "BOB@EXAMPLE.COM", Role: leave.RoleEmployee}, "all", "")
	require.NoError(t, err)
	assert.Equal(t, []string{bCasual.ID}, ids(items))
}

func TestListForReviewer_InvalidFilter(t *testing.T) {
	f := newFixture(t)

	_, err := f.queue.ListForReviewer(context.Background(), hrSession, "archived", "")
	assert.ErrorIs(t, err, generic.ErrValidation)
}

func TestListForEmployee_Scoping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	aAnnual, aSick, _ := seedQueue(t, f)

	own, err := f.queue.ListForEmployee(ctx, aliceSession, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{aSick.ID, aAnnual.ID}, ids(own))

	_, err = f.queue.ListForEmployee(ctx, bobSession, alice.ID)
	assert.ErrorIs(t, err, generic.ErrUnauthorized)

	viaHR, err := f.queue.ListForEmployee(ctx, hrSession, alice.ID)
	require.NoError(t, err)
	assert.Len(t, viaHR, 2)
}

func TestQueueActions_ReturnRefreshedList(t *testing.T) {
	// GIVEN: Three pending requests
	// WHEN: HR approves one, rejects one and holds one from the pending view
	// THEN: Each action returns the changed request and the shrinking list
	f := newFixture(t)
	ctx := context.Background()
	aAnnual, aSick, bCasual := seedQueue(t, f)
	view := leave.View{Status: "pending"}

	res, err := f.queue.Approve(ctx, hrSession, aAnnual.ID, view)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusApproved, res.Request.Status)
	assert.Len(t, res.Items, 2)

	res, err = f.queue.Reject(ctx, hrSession, aSick.ID, "", view)
	require.NoError(t, err)
	assert.Equal(t, leave.DefaultRejectionReason, res.Request.RejectionReason)
	assert.Equal(t, []string{bCasual.ID}, ids(res.Items))

	res, err = f.queue.Hold(ctx, hrSession, bCasual.ID, view)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusHold, res.Request.Status)
	assert.Empty(t, res.Items)

	res, err = f.queue.Approve(ctx, bobSession, bCasual.ID, view)
	assert.ErrorIs(t, err, generic.ErrUnauthorized)
	assert.Empty(t, res.Request.ID)
}
