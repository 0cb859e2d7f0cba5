/*
policy.go - Leave entitlement policy

PURPOSE:
  Holds the per-type yearly allowance a fresh balance record is
  materialized with, and the caps applied when unused days roll into the
  next year.

DEFAULTS:
  annual 20, casual 12, sick 10, maternity 180, paternity 7, unpaid unbounded.
  Only annual days roll over (up to 5).

CUSTOMIZATION:
  config.PolicyConfig overrides any allowance or cap; see cmd/server.

SEE ALSO:
  - balance.go: Uses the policy when computing snapshots
  - rollover.go: Uses CarryOverCaps
*/
package leave

import (
	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/generic"
)

// Policy defines the yearly entitlement per leave type.
type Policy struct {
	// Defaults is the yearly allowance per paid type.
	Defaults map[Type]decimal.Decimal

	// CarryOverCaps bounds how many unused days roll into the next year.
	// Missing types do not roll over.
	CarryOverCaps map[Type]decimal.Decimal
}

// DefaultPolicy returns the standard HR allowances.
func DefaultPolicy() Policy {
	return Policy{
		Defaults: map[Type]decimal.Decimal{
			TypeAnnual:    decimal.NewFromInt(20),
			TypeCasual:    decimal.NewFromInt(12),
			TypeSick:      decimal.NewFromInt(10),
			TypeMaternity: decimal.NewFromInt(180),
			TypePaternity: decimal.NewFromInt(7),
		},
		CarryOverCaps: map[Type]decimal.Decimal{
			TypeAnnual: decimal.NewFromInt(5),
		},
	}
}

// IsUnlimited reports whether the type is exempt from balance tracking.
func (p Policy) IsUnlimited(t Type) bool {
	return !t.IsPaid()
}

// NewBalance materializes a default record for an employee and year.
func (p Policy) NewBalance(employeeID generic.EntityID, year int) LeaveBalance {
	ent := make(map[Type]decimal.Decimal, len(p.Defaults))
	for t, d := range p.Defaults {
		if p.IsUnlimited(t) {
			continue
		}
		ent[t] = d
	}
	return LeaveBalance{
		EmployeeID:  employeeID,
		Year:        year,
		Entitlement: ent,
		CarriedOver: map[Type]decimal.Decimal{},
	}
}
