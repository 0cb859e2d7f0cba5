package generic

import (
	"errors"
	"strconv"

	"github.com/shopspring/decimal"
)

// WireError is the JSON form of an error: {"error": WireError}. Details
// carry the structured fields so the receiving side can rebuild the same
// Go error type.
type WireError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// ToWire converts an error into its wire form.
func ToWire(err error) WireError {
	w := WireError{Code: Code(err), Message: err.Error()}

	var (
		ve *ValidationError
		it *InvalidTransitionError
		ib *InsufficientBalanceError
		nf *NotFoundError
		ua *UnauthorizedError
	)
	switch {
	case errors.As(err, &ve):
		w.Details = map[string]string{"field": ve.Field, "reason": ve.Reason}
	case errors.As(err, &it):
		w.Details = map[string]string{"id": it.ID, "from": it.From, "to": it.To}
	case errors.As(err, &ib):
		w.Details = map[string]string{
			"entityId":  string(ib.EntityID),
			"available": ib.Available.Value.String(),
			"requested": ib.Requested.Value.String(),
			"shortfall": ib.Shortfall.Value.String(),
		}
		if ib.Resource != nil {
			w.Details["resource"] = ib.Resource.ResourceID()
		}
	case errors.As(err, &nf):
		w.Details = map[string]string{"kind": nf.Kind, "id": nf.ID}
	case errors.As(err, &ua):
		w.Message = ua.Error()
	}
	return w
}

// Err rebuilds the error a WireError was made from. statusCode is only
// used for codes this package does not know.
func (w WireError) Err(statusCode int) error {
	d := w.Details
	switch w.Code {
	case CodeValidation:
		if d == nil {
			return &ValidationError{Reason: w.Message}
		}
		return &ValidationError{Field: d["field"], Reason: d["reason"]}
	case CodeInvalidTransition:
		return &InvalidTransitionError{ID: d["id"], From: d["from"], To: d["to"]}
	case CodeInsufficientBalance:
		e := &InsufficientBalanceError{
			EntityID:  EntityID(d["entityId"]),
			Available: wireDays(d["available"]),
			Requested: wireDays(d["requested"]),
			Shortfall: wireDays(d["shortfall"]),
		}
		if r := d["resource"]; r != "" {
			e.Resource = LookupResource(r)
		}
		return e
	case CodeNotFound:
		return &NotFoundError{Kind: d["kind"], ID: d["id"]}
	case CodeUnauthorized:
		return &UnauthorizedError{}
	case CodeNotLinked:
		return ErrEmployeeNotLinked
	case CodeRateLimited:
		return ErrRateLimited
	default:
		return errors.New(w.Message + " (status " + strconv.Itoa(statusCode) + ")")
	}
}

func wireDays(s string) Amount {
	v, err := decimal.NewFromString(s)
	if err != nil {
		v = decimal.Zero
	}
	return NewAmount(v, UnitDays)
}
