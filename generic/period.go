package generic

// =============================================================================
// PERIOD - The boundary for balance attribution
// =============================================================================

// Period is a closed date range [Start, End].
//
// Balances are kept per calendar year. A request belongs to the period that
// contains its start date, even when it runs past End.
type Period struct {
	Start TimePoint
	End   TimePoint
}

// Overlaps reports whether two closed ranges share at least one day.
func (p Period) Overlaps(other Period) bool {
	return p.Start.BeforeOrEqual(other.End) && other.Start.BeforeOrEqual(p.End)
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
