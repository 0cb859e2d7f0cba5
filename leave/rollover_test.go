package leave_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/leave"
)

func TestRollover_CarriesCappedRemainder(t *testing.T) {
	// GIVEN: Alice used 3 of 20 annual days in 2025, Bob used 18
	// WHEN: Rollover runs for 2025
	// THEN: Alice carries 5 (capped), Bob carries 2, casual never rolls
	f := newFixture(t)
	ctx := context.Background()

	r1, err := f.workflow.Submit(ctx, aliceSession, submitInput("annual", date(2025, time.March, 3), date(2025, time.March, 5)))
	require.NoError(t, err)
	_, err = f.workflow.Approve(ctx, hrSession, r1.ID)
	require.NoError(t, err)
	r2, err := f.workflow.Submit(ctx, bobSession, submitInput("annual", date(2025, time.July, 1), date(2025, time.July, 18)))
	require.NoError(t, err)
	_, err = f.workflow.Approve(ctx, hrSession, r2.ID)
	require.NoError(t, err)

	roll := leave.NewRollover(f.store, f.store, leave.NewCalculator(leave.DefaultPolicy()), nil)
	report, err := roll.Run(ctx, 2025)
	require.NoError(t, err)
	assert.Equal(t, 2026, report.ToYear)
	assert.Len(t, report.Employees, 3)

	assert.Equal(t, int64(25), f.remaining(t, alice.ID, leave.TypeAnnual, 2026))
	assert.Equal(t, int64(22), f.remaining(t, bob.ID, leave.TypeAnnual, 2026))
	assert.Equal(t, int64(12), f.remaining(t, alice.ID, leave.TypeCasual, 2026))

	// running again does not stack
	_, err = roll.Run(ctx, 2025)
	require.NoError(t, err)
	assert.Equal(t, int64(25), f.remaining(t, alice.ID, leave.TypeAnnual, 2026))

	next, err := f.store.GetBalance(ctx, alice.ID, 2026)
	require.NoError(t, err)
	assert.True(t, next.CarriedOver[leave.TypeAnnual].Equal(decimal.NewFromInt(5)))
	assert.True(t, next.Entitlement[leave.TypeAnnual].Equal(decimal.NewFromInt(20)))
}

func TestRollover_KeepsCustomEntitlementOfNextYear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SaveBalance(ctx, leave.LeaveBalance{
		EmployeeID:  alice.ID,
		Year:        2026,
		Entitlement: map[leave.Type]decimal.Decimal{leave.TypeAnnual: decimal.NewFromInt(30)},
	}))

	_, err := leave.NewRollover(f.store, f.store, leave.NewCalculator(leave.DefaultPolicy()), nil).Run(ctx, 2025)
	require.NoError(t, err)

	assert.Equal(t, int64(35), f.remaining(t, alice.ID, leave.TypeAnnual, 2026))
}
