package leave_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

func approvedRequest(id string, emp generic.EntityID, lt leave.Type, start, end generic.TimePoint) leave.LeaveRequest {
	return leave.LeaveRequest{
		ID:         id,
		EmployeeID: emp,
		LeaveType:  lt,
		StartDate:  start,
		EndDate:    end,
		TotalDays:  generic.InclusiveDays(start, end),
		Status:     leave.StatusApproved,
	}
}

func TestCalculator_DefaultsWhenNothingTaken(t *testing.T) {
	calc := leave.NewCalculator(leave.DefaultPolicy())
	base := leave.DefaultPolicy().NewBalance("emp-1", 2025)

	snap := calc.Calculate(base, nil)

	want := map[leave.Type]int64{
		leave.TypeAnnual:    20,
		leave.TypeCasual:    12,
		leave.TypeSick:      10,
		leave.TypeMaternity: 180,
		leave.TypePaternity: 7,
	}
	for lt, days := range want {
		assert.Equal(t, days, snap.Remaining(lt).Value.IntPart(), string(lt))
	}
	assert.True(t, snap.Lines[leave.TypeUnpaid].Unlimited)
}

func TestCalculator_OnlyApprovedInYearForEmployee(t *testing.T) {
	// GIVEN: A mix of requests
	// THEN: Only approved, same employee, start in 2025 count
	calc := leave.NewCalculator(leave.DefaultPolicy())
	base := leave.DefaultPolicy().NewBalance("emp-1", 2025)

	pending := approvedRequest("p", "emp-1", leave.TypeAnnual, date(2025, time.May, 1), date(2025, time.May, 9))
	pending.Status = leave.StatusPending
	cancelled := approvedRequest("c", "emp-1", leave.TypeAnnual, date(2025, time.May, 1), date(2025, time.May, 9))
	cancelled.Status = leave.StatusCancelled

	reqs := []leave.LeaveRequest{
		approvedRequest("a", "emp-1", leave.TypeAnnual, date(2025, time.March, 3), date(2025, time.March, 7)),
		approvedRequest("b", "emp-1", leave.TypeAnnual, date(2024, time.December, 30), date(2025, time.January, 3)),
		approvedRequest("other", "emp-2", leave.TypeAnnual, date(2025, time.March, 3), date(2025, time.March, 7)),
		approvedRequest("sick", "emp-1", leave.TypeSick, date(2025, time.June, 2), date(2025, time.June, 3)),
		pending,
		cancelled,
	}

	snap := calc.Calculate(base, reqs)

	assert.Equal(t, int64(15), snap.Remaining(leave.TypeAnnual).Value.IntPart())
	assert.Equal(t, int64(5), snap.Lines[leave.TypeAnnual].Used.Value.IntPart())
	assert.Equal(t, int64(8), snap.Remaining(leave.TypeSick).Value.IntPart())
}

func TestCalculator_CarriedOverAddsAndRemainingClamps(t *testing.T) {
	calc := leave.NewCalculator(leave.DefaultPolicy())
	base := leave.LeaveBalance{
		EmployeeID:  "emp-1",
		Year:        2025,
		Entitlement: map[leave.Type]decimal.Decimal{leave.TypeAnnual: decimal.NewFromInt(20), leave.TypePaternity: decimal.NewFromInt(2)},
		CarriedOver: map[leave.Type]decimal.Decimal{leave.TypeAnnual: decimal.NewFromInt(5)},
	}
	reqs := []leave.LeaveRequest{
		approvedRequest("a", "emp-1", leave.TypeAnnual, date(2025, time.March, 3), date(2025, time.March, 12)),
		approvedRequest("p", "emp-1", leave.TypePaternity, date(2025, time.July, 1), date(2025, time.July, 5)),
	}

	snap := calc.Calculate(base, reqs)

	assert.Equal(t, int64(15), snap.Remaining(leave.TypeAnnual).Value.IntPart())
	assert.True(t, snap.Available(leave.TypePaternity).Value.Equal(decimal.NewFromInt(-3)))
	assert.True(t, snap.Remaining(leave.TypePaternity).IsZero())

	err := calc.Check(snap, leave.TypePaternity, 1)
	var ib *generic.InsufficientBalanceError
	require.ErrorAs(t, err, &ib)
	assert.True(t, ib.Available.IsZero())
	assert.True(t, ib.Shortfall.Value.Equal(decimal.NewFromInt(4)))
}

func TestCalculator_CheckBoundaries(t *testing.T) {
	calc := leave.NewCalculator(leave.DefaultPolicy())
	snap := calc.Calculate(leave.DefaultPolicy().NewBalance("emp-1", 2025), nil)

	assert.NoError(t, calc.Check(snap, leave.TypeCasual, 12))
	assert.ErrorIs(t, calc.Check(snap, leave.TypeCasual, 13), generic.ErrInsufficientBalance)
	assert.NoError(t, calc.Check(snap, leave.TypeUnpaid, 365))
}

func TestCalculator_CustomPolicy(t *testing.T) {
	policy := leave.DefaultPolicy()
	policy.Defaults[leave.TypeAnnual] = decimal.NewFromInt(25)
	calc := leave.NewCalculator(policy)

	snap := calc.Calculate(policy.NewBalance("emp-1", 2025), nil)
	assert.Equal(t, int64(25), snap.Remaining(leave.TypeAnnual).Value.IntPart())
}
