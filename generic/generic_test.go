package generic

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testResource string

func (r testResource) ResourceID() string     { return string(r) }
func (r testResource) ResourceDomain() string { return "test" }

func init() {
	RegisterResource(testResource("widget"), "gadget", "thing-a-ma-bob")
}

// =============================================================================
// TIME
// =============================================================================

func TestInclusiveDays(t *testing.T) {
	tests := []struct {
		name     string
		from, to TimePoint
		want     int
	}{
		{"same day", NewTimePoint(2025, time.March, 3), NewTimePoint(2025, time.March, 3), 1},
		{"weekend counts", NewTimePoint(2025, time.March, 7), NewTimePoint(2025, time.March, 10), 4},
		{"across year end", NewTimePoint(2024, time.December, 30), NewTimePoint(2025, time.January, 2), 4},
		{"leap day", NewTimePoint(2024, time.February, 28), NewTimePoint(2024, time.March, 1), 3},
		{"before the epoch", NewTimePoint(1969, time.December, 31), NewTimePoint(1970, time.January, 1), 2},
		{"four centuries", NewTimePoint(1900, time.January, 1), NewTimePoint(2300, time.January, 1), 146098},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InclusiveDays(tt.from, tt.to))
		})
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate(" 2025-07-01 ")
	require.NoError(t, err)
	assert.Equal(t, "2025-07-01", d.String())

	d, err = ParseDate("2025-07-01T22:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, "2025-07-01", d.String())

	_, err = ParseDate("01/07/2025")
	assert.Error(t, err)
}

func TestTimePointJSON(t *testing.T) {
	type doc struct {
		Start TimePoint `json:"start"`
		End   TimePoint `json:"end"`
	}

	raw, err := json.Marshal(doc{Start: NewTimePoint(2025, time.July, 1)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"start":"2025-07-01","end":""}`, string(raw))

	var back doc
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.True(t, back.Start.Equal(NewTimePoint(2025, time.July, 1)))
	assert.True(t, back.End.IsZero())

	assert.Error(t, json.Unmarshal([]byte(`{"start":"July 1st"}`), &back))
}

func TestPeriodOverlaps(t *testing.T) {
	p := Period{Start: NewTimePoint(2025, time.July, 1), End: NewTimePoint(2025, time.July, 5)}

	assert.True(t, p.Overlaps(Period{Start: NewTimePoint(2025, time.July, 5), End: NewTimePoint(2025, time.July, 8)}))
	assert.True(t, p.Overlaps(Period{Start: NewTimePoint(2025, time.June, 1), End: NewTimePoint(2025, time.August, 1)}))
	assert.False(t, p.Overlaps(Period{Start: NewTimePoint(2025, time.July, 6), End: NewTimePoint(2025, time.July, 8)}))
	assert.Equal(t, "[2025-07-01, 2025-07-05]", p.String())
}

// =============================================================================
// RESOURCES
// =============================================================================

func TestLookupResource_NormalizesLabels(t *testing.T) {
	for _, label := range []string{"widget", "WIDGET", " Gadget ", "gadget leave", "thing_a_ma_bob", "Thing A  Ma Bob"} {
		t.Run(label, func(t *testing.T) {
			assert.Equal(t, testResource("widget"), LookupResource(label))
		})
	}
	assert.Nil(t, LookupResource("sprocket"))
}

// =============================================================================
// AMOUNTS
// =============================================================================

func TestAmount(t *testing.T) {
	a := Days(3).Sub(Days(5))

	assert.True(t, a.IsNegative())
	assert.True(t, a.ClampZero().IsZero())
	assert.Equal(t, "-2 days", a.String())
	assert.True(t, Days(4).Min(Days(2)).Equal(Days(2)))
	assert.True(t, Days(2).Min(Days(4)).Equal(Days(2)))
}

// =============================================================================
// ERRORS
// =============================================================================

func TestCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{NewValidationError("reason", "is required"), CodeValidation},
		{&InvalidTransitionError{ID: "r1", From: "rejected", To: "approved"}, CodeInvalidTransition},
		{&InsufficientBalanceError{}, CodeInsufficientBalance},
		{fmt.Errorf("load: %w", &NotFoundError{Kind: "request", ID: "r1"}), CodeNotFound},
		{&UnauthorizedError{Capability: "approve:leave"}, CodeUnauthorized},
		{ErrEmployeeNotLinked, CodeNotLinked},
		{&TransportError{Op: "GET /x", Err: errors.New("connection refused")}, CodeTransport},
		{ErrRateLimited, CodeRateLimited},
		{errors.New("boom"), CodeInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Code(tt.err), "%v", tt.err)
	}
}

func TestTransportError(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("create: %w", &TransportError{Op: "POST /api/ledger/requests", Err: cause})

	assert.True(t, IsTransport(err))
	assert.ErrorIs(t, err, cause)
	assert.False(t, IsTransport(NewValidationError("x", "y")))
}

func TestUnauthorizedHidesCapability(t *testing.T) {
	err := &UnauthorizedError{Capability: "approve:leave"}

	assert.Equal(t, "permission denied", err.Error())
	assert.Equal(t, "permission denied", ToWire(err).Message)
}

func TestWireRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"validation", NewValidationError("endDate", "must not be before startDate")},
		{"transition", &InvalidTransitionError{ID: "r1", From: "approved", To: "approved"}},
		{"not found", &NotFoundError{Kind: "employee", ID: "emp-9"}},
		{"rate limited", ErrRateLimited},
		{"insufficient", &InsufficientBalanceError{
			EntityID:  "emp-1",
			Resource:  testResource("widget"),
			Available: Days(12),
			Requested: Days(13),
			Shortfall: Days(1),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ToWire(tt.err)
			raw, err := json.Marshal(w)
			require.NoError(t, err)

			var back WireError
			require.NoError(t, json.Unmarshal(raw, &back))
			got := back.Err(400)

			assert.Equal(t, tt.err.Error(), got.Error())
			assert.Equal(t, Code(tt.err), Code(got))
		})
	}
}

func TestWireUnknownCode(t *testing.T) {
	err := WireError{Code: "TEAPOT", Message: "short and stout"}.Err(418)

	assert.Equal(t, CodeInternal, Code(err))
	assert.Contains(t, err.Error(), "418")
}
