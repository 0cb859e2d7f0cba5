/*
Package generic provides the domain-agnostic kernel shared by the leave engine.

PURPOSE:
  This package holds the small set of types every other package speaks:
  day amounts, calendar dates, year periods, type-safe identifiers and the
  error taxonomy. It knows nothing about leave types, statuses or policies;
  the leave package builds those on top.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A quantity of days backed by decimal.Decimal
  - EntityID: Identifier of an employee record

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal so carry-over and balance maths never drift
  2. Type Safety: EntityID is its own type so it cannot be mixed with request ids

USAGE:
  remaining := generic.Days(20).Sub(generic.Days(5))

SEE ALSO:
  - time.go: Calendar dates and inclusive day counting
  - period.go: Calendar-year periods used for balance attribution
  - errors.go: Error taxonomy shared by ledger, workflow and transport
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Quantity with unit (always days for leave)
// =============================================================================

type Amount struct {
	Value decimal.Decimal `json:"value"`
	Unit  Unit            `json:"unit"`
}

type Unit string

const (
	UnitDays Unit = "days"
)

func NewAmount(value decimal.Decimal, unit Unit) Amount {
	return Amount{Value: value, Unit: unit}
}

func Days(n int) Amount { return Amount{Value: decimal.NewFromInt(int64(n)), Unit: UnitDays} }

func (a Amount) Add(b Amount) Amount       { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) Sub(b Amount) Amount       { return Amount{Value: a.Value.Sub(b.Value), Unit: a.Unit} }
func (a Amount) IsNegative() bool          { return a.Value.IsNegative() }
func (a Amount) IsZero() bool              { return a.Value.IsZero() }
func (a Amount) IsPositive() bool          { return a.Value.IsPositive() }
func (a Amount) GreaterThan(b Amount) bool { return a.Value.GreaterThan(b.Value) }
func (a Amount) LessThan(b Amount) bool    { return a.Value.LessThan(b.Value) }
func (a Amount) Equal(b Amount) bool       { return a.Value.Equal(b.Value) }

func (a Amount) Min(b Amount) Amount {
	if a.LessThan(b) {
		return a
	}
	return b
}

// ClampZero floors the amount at zero. Used for display only.
func (a Amount) ClampZero() Amount {
	if a.IsNegative() {
		return Amount{Value: decimal.Zero, Unit: a.Unit}
	}
	return a
}

func (a Amount) String() string { return a.Value.String() + " " + string(a.Unit) }

// =============================================================================
// IDENTIFIERS
// =============================================================================

// EntityID identifies an employee record in the directory.
type EntityID string

func (id EntityID) String() string { return string(id) }
