// Package leave implements the leave-balance and approval workflow.
// It builds leave types, requests, balances and the request state machine on
// top of the generic kernel, and defines the Ledger and Directory contracts
// the stores implement.
package leave

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// LEAVE TYPE
// =============================================================================

// Type is the canonical leave type token.
// Implements generic.ResourceType interface.
type Type string

func (t Type) ResourceID() string     { return string(t) }
func (t Type) ResourceDomain() string { return "leave" }

// Compile-time check that Type implements generic.ResourceType
var _ generic.ResourceType = Type("")

const (
	TypeSick      Type = "sick"
	TypeCasual    Type = "casual"
	TypeAnnual    Type = "annual"
	TypeMaternity Type = "maternity"
	TypePaternity Type = "paternity"
	TypeUnpaid    Type = "unpaid"
)

// AllTypes lists every leave type in display order.
var AllTypes = []Type{TypeAnnual, TypeCasual, TypeSick, TypeMaternity, TypePaternity, TypeUnpaid}

// Register leave types and the labels the HR screens use for them.
func init() {
	generic.RegisterResource(TypeSick, "sick day", "medical")
	generic.RegisterResource(TypeCasual, "personal", "casual personal")
	generic.RegisterResource(TypeAnnual, "vacation", "earned", "privilege")
	generic.RegisterResource(TypeMaternity, "maternal")
	generic.RegisterResource(TypePaternity, "paternal")
	generic.RegisterResource(TypeUnpaid, "lwp", "without pay", "leave without pay")
}

// ParseType normalizes a free-text label to its canonical Type.
func ParseType(label string) (Type, error) {
	r := generic.LookupResource(label)
	if r == nil || r.ResourceDomain() != "leave" {
		return "", generic.NewValidationError("leaveType", fmt.Sprintf("unknown leave type %q", label))
	}
	return Type(r.ResourceID()), nil
}

// IsPaid reports whether the type draws from a balance pool.
func (t Type) IsPaid() bool { return t != TypeUnpaid }

// =============================================================================
// REQUEST STATUS
// =============================================================================

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
	StatusHold      Status = "hold"
)

// ParseStatus accepts the lower-case token (and the "canceled" spelling).
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusPending, StatusApproved, StatusRejected, StatusCancelled, StatusHold:
		return st, nil
	case "canceled":
		return StatusCancelled, nil
	default:
		return "", generic.NewValidationError("status", fmt.Sprintf("unknown status %q", s))
	}
}

// DefaultRejectionReason is recorded when a reviewer rejects without a reason.
const DefaultRejectionReason = "No reason provided"

// =============================================================================
// LEAVE REQUEST
// =============================================================================

// LeaveRequest is the stored document. Its JSON shape is the one the ledger
// API and the local mirror slots use.
type LeaveRequest struct {
	ID                  string            `json:"id"`
	EmployeeID          generic.EntityID  `json:"employeeId"`
	EmployeeDisplayName string            `json:"employeeDisplayName"`
	LeaveType           Type              `json:"leaveType"`
	StartDate           generic.TimePoint `json:"startDate"`
	EndDate             generic.TimePoint `json:"endDate"`
	TotalDays           int               `json:"totalDays"`
	Reason              string            `json:"reason"`
	Status              Status            `json:"status"`
	AppliedDate         time.Time         `json:"appliedDate"`
	ApproverID          string            `json:"approverId,omitempty"`
	DecisionDate        *time.Time        `json:"decisionDate,omitempty"`
	RejectionReason     string            `json:"rejectionReason,omitempty"`
	AttachedDocuments   []string          `json:"attachedDocuments,omitempty"`
	UpdatedAt           time.Time         `json:"updatedAt"`
}

// Period returns the request's [StartDate, EndDate] range.
func (r LeaveRequest) Period() generic.Period {
	return generic.Period{Start: r.StartDate, End: r.EndDate}
}

// Days returns TotalDays as an amount.
func (r LeaveRequest) Days() generic.Amount { return generic.Days(r.TotalDays) }

// BalanceYear is the year the request is charged to: its start date's year.
func (r LeaveRequest) BalanceYear() int { return r.StartDate.Year() }

// IsOpen reports whether the request still occupies its dates.
func (r LeaveRequest) IsOpen() bool {
	return r.Status == StatusPending || r.Status == StatusHold || r.Status == StatusApproved
}

// =============================================================================
// LEAVE BALANCE (stored record)
// =============================================================================

// LeaveBalance is the per-employee, per-year entitlement record. Remaining
// days are never stored; the Calculator derives them from approved requests.
type LeaveBalance struct {
	EmployeeID  generic.EntityID         `json:"employeeId"`
	Year        int                      `json:"year"`
	Entitlement map[Type]decimal.Decimal `json:"entitlement"`
	CarriedOver map[Type]decimal.Decimal `json:"carriedOver,omitempty"`
}

// Key is the composite identity of a balance record.
type BalanceKey struct {
	EmployeeID generic.EntityID
	Year       int
}

func (b LeaveBalance) Key() BalanceKey { return BalanceKey{EmployeeID: b.EmployeeID, Year: b.Year} }

// =============================================================================
// EMPLOYEE DIRECTORY RECORDS
// =============================================================================

type Role string

const (
	RoleEmployee Role = "employee"
	RoleHR       Role = "hr"
	RoleAdmin    Role = "admin"
	RoleEmployer Role = "employer"
)

// Employee is a directory entry.
type Employee struct {
	ID       generic.EntityID  `json:"id"`
	Name     string            `json:"name"`
	Email    string            `json:"email"`
	Role     Role              `json:"role"`
	HireDate generic.TimePoint `json:"hireDate"`
}

// Session is what the caller knows about the acting user. Any field may be
// empty; the Resolver decides which one identifies the employee.
type Session struct {
	EmployeeID generic.EntityID
	Email      string
	UserID     string
	Role       Role
}
