/*
balance.go - Derived leave balance

PURPOSE:
  Computes what an employee has left for a calendar year. Nothing here is
  stored: every read folds the approved requests over the stored
  entitlement record, so approving or cancelling a request is reflected on
  the next read without any bookkeeping.

FORMULA (per paid type):
  Available = Entitlement + CarriedOver - sum(TotalDays of approved requests
              of that type whose startDate falls in the year)
  Remaining = max(Available, 0)     (display)

  Validation uses Available, so an over-drawn pool (possible after a
  policy change) still blocks further requests.

  Unpaid leave is never tracked and always passes Check.

SEE ALSO:
  - policy.go: Default entitlements
  - workflow.go: Calls Check at submission and approval
*/
package leave

import (
	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/generic"
)

// BalanceLine is the state of one leave type's pool.
type BalanceLine struct {
	Type        Type           `json:"leaveType"`
	Entitlement generic.Amount `json:"entitlement"`
	CarriedOver generic.Amount `json:"carriedOver"`
	Used        generic.Amount `json:"used"`
	Available   generic.Amount `json:"available"`
	Remaining   generic.Amount `json:"remaining"`
	Unlimited   bool           `json:"unlimited,omitempty"`
}

// BalanceSnapshot is the derived balance of an employee for a year.
type BalanceSnapshot struct {
	EmployeeID generic.EntityID     `json:"employeeId"`
	Year       int                  `json:"year"`
	Lines      map[Type]BalanceLine `json:"lines"`
}

// Remaining returns the clamped remaining days for a type. Unpaid and
// unknown types report zero.
func (s BalanceSnapshot) Remaining(t Type) generic.Amount {
	if l, ok := s.Lines[t]; ok {
		return l.Remaining
	}
	return generic.Days(0)
}

// Available returns the unclamped figure validation works with.
func (s BalanceSnapshot) Available(t Type) generic.Amount {
	if l, ok := s.Lines[t]; ok {
		return l.Available
	}
	return generic.Days(0)
}

// Calculator derives balance snapshots. It is pure and safe for concurrent use.
type Calculator struct {
	Policy Policy
}

func NewCalculator(policy Policy) *Calculator {
	return &Calculator{Policy: policy}
}

// Calculate folds the employee's approved requests over the stored record.
// Requests belonging to other employees or years are ignored, so callers
// may pass an unfiltered list.
func (c *Calculator) Calculate(base LeaveBalance, requests []LeaveRequest) BalanceSnapshot {
	snap := BalanceSnapshot{
		EmployeeID: base.EmployeeID,
		Year:       base.Year,
		Lines:      make(map[Type]BalanceLine),
	}

	used := make(map[Type]decimal.Decimal)
	for _, r := range requests {
		if r.EmployeeID != base.EmployeeID || r.Status != StatusApproved || r.BalanceYear() != base.Year {
			continue
		}
		t, err := ParseType(string(r.LeaveType))
		if err != nil {
			continue
		}
		used[t] = used[t].Add(decimal.NewFromInt(int64(r.TotalDays)))
	}

	for _, t := range AllTypes {
		if c.Policy.IsUnlimited(t) {
			snap.Lines[t] = BalanceLine{
				Type:        t,
				Entitlement: generic.Days(0),
				CarriedOver: generic.Days(0),
				Used:        generic.NewAmount(used[t], generic.UnitDays),
				Available:   generic.Days(0),
				Remaining:   generic.Days(0),
				Unlimited:   true,
			}
			continue
		}
		ent, ok := base.Entitlement[t]
		if !ok {
			ent = c.Policy.Defaults[t]
		}
		carried := base.CarriedOver[t]
		available := ent.Add(carried).Sub(used[t])
		line := BalanceLine{
			Type:        t,
			Entitlement: generic.NewAmount(ent, generic.UnitDays),
			CarriedOver: generic.NewAmount(carried, generic.UnitDays),
			Used:        generic.NewAmount(used[t], generic.UnitDays),
			Available:   generic.NewAmount(available, generic.UnitDays),
		}
		line.Remaining = line.Available.ClampZero()
		snap.Lines[t] = line
	}
	return snap
}

// Check returns an InsufficientBalanceError when days exceed what the
// snapshot allows for the type.
func (c *Calculator) Check(snap BalanceSnapshot, t Type, days int) error {
	if c.Policy.IsUnlimited(t) {
		return nil
	}
	requested := generic.Days(days)
	available := snap.Available(t)
	if requested.GreaterThan(available) {
		return &generic.InsufficientBalanceError{
			EntityID:  snap.EmployeeID,
			Resource:  t,
			Available: available.ClampZero(),
			Requested: requested,
			Shortfall: requested.Sub(available),
		}
	}
	return nil
}
