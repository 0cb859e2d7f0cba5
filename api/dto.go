/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures of the workflow endpoints. The ledger and
  directory endpoints exchange the stored documents (leave.LeaveRequest,
  leave.LeaveBalance, leave.Employee) as they are.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Struct tags (go-playground/validator) check shape only: formats and
  lengths. Required-field and business rules stay in leave.Workflow so
  every entry point reports them the same way.

SEE ALSO:
  - handlers.go: Uses these types
  - errors.go: Maps validator failures to ValidationError
*/
package api

import (
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// SubmitLeaveRequest is the body of POST /api/leave/requests.
type SubmitLeaveRequest struct {
	EmployeeID        string   `json:"employeeId" validate:"omitempty,max=64"`
	LeaveType         string   `json:"leaveType" validate:"omitempty,max=64"`
	StartDate         string   `json:"startDate" validate:"omitempty,datetime=2006-01-02"`
	EndDate           string   `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
	Reason            string   `json:"reason" validate:"max=1000"`
	AttachedDocuments []string `json:"attachedDocuments" validate:"omitempty,max=10,dive,max=512"`
}

// RejectLeaveRequest is the optional body of POST .../reject.
type RejectLeaveRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

// StatusChangeRequest is the body of PATCH /api/ledger/requests/{id}/status.
type StatusChangeRequest struct {
	Status          string `json:"status" validate:"required,oneof=pending approved rejected cancelled canceled hold"`
	ActorID         string `json:"actorId" validate:"max=128"`
	RejectionReason string `json:"rejectionReason" validate:"max=1000"`
	At              string `json:"at" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

// SaveEmployeeRequest is the body of POST /api/employees.
type SaveEmployeeRequest struct {
	ID       string `json:"id" validate:"required,max=64"`
	Name     string `json:"name" validate:"required,max=200"`
	Email    string `json:"email" validate:"omitempty,email"`
	Role     string `json:"role" validate:"omitempty,oneof=employee hr admin employer"`
	HireDate string `json:"hireDate" validate:"omitempty,datetime=2006-01-02"`
}

// RolloverRequest is the body of POST /api/admin/rollover.
type RolloverRequest struct {
	FromYear int `json:"from_year" validate:"required,gte=2000,lte=2100"`
}

// BalanceDTO lists balance lines in a fixed type order.
type BalanceDTO struct {
	EmployeeID generic.EntityID    `json:"employeeId"`
	Year       int                 `json:"year"`
	Lines      []leave.BalanceLine `json:"lines"`
}

func toBalanceDTO(s leave.BalanceSnapshot) BalanceDTO {
	dto := BalanceDTO{EmployeeID: s.EmployeeID, Year: s.Year, Lines: []leave.BalanceLine{}}
	for _, t := range leave.AllTypes {
		if line, ok := s.Lines[t]; ok {
			dto.Lines = append(dto.Lines, line)
		}
	}
	return dto
}

// QueueDTO is a reviewer listing.
type QueueDTO struct {
	Status string               `json:"status"`
	Search string               `json:"search,omitempty"`
	Items  []leave.LeaveRequest `json:"items"`
}

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the body of POST /api/scenarios/load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}
