package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// The ledger endpoints expose the Store as a document store for
// client.Remote. They enforce the ledger's own contract (field validation,
// the transition table) but no capabilities: a caller of these endpoints
// runs the workflow itself.

// =============================================================================
// LEDGER: REQUESTS
// =============================================================================

// LedgerListRequests returns all requests, or one employee's with ?employee_id=.
func (h *Handler) LedgerListRequests(w http.ResponseWriter, r *http.Request) {
	var (
		reqs []leave.LeaveRequest
		err  error
	)
	if id := r.URL.Query().Get("employee_id"); id != "" {
		reqs, err = h.Store.GetRequestsByEmployee(r.Context(), generic.EntityID(id))
	} else {
		reqs, err = h.Store.GetAllRequests(r.Context())
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reqs)
}

func (h *Handler) LedgerCreateRequest(w http.ResponseWriter, r *http.Request) {
	var req leave.LeaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, generic.NewValidationError("", "invalid request body"))
		return
	}
	created, err := h.Store.CreateRequest(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) LedgerGetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.Store.GetRequest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *Handler) LedgerUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var body StatusChangeRequest
	if err := h.decode(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	status, err := leave.ParseStatus(body.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	at := h.now().UTC()
	if body.At != "" {
		if t, err := time.Parse(time.RFC3339Nano, body.At); err == nil && !t.IsZero() {
			at = t
		}
	}

	updated, err := h.Store.UpdateRequestStatus(r.Context(), chi.URLParam(r, "id"), status, leave.StatusUpdate{
		ActorID:         body.ActorID,
		RejectionReason: body.RejectionReason,
		At:              at,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) LedgerDeleteRequest(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteRequest(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// LEDGER: BALANCE RECORDS
// =============================================================================

func (h *Handler) LedgerGetBalance(w http.ResponseWriter, r *http.Request) {
	year, err := h.yearParam(chi.URLParam(r, "year"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	b, err := h.Store.GetBalance(r.Context(), generic.EntityID(chi.URLParam(r, "employeeID")), year)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// LedgerSaveBalance stores a balance record. The path decides which record.
func (h *Handler) LedgerSaveBalance(w http.ResponseWriter, r *http.Request) {
	year, err := h.yearParam(chi.URLParam(r, "year"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var b leave.LeaveBalance
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		h.writeError(w, r, generic.NewValidationError("", "invalid request body"))
		return
	}
	b.EmployeeID = generic.EntityID(chi.URLParam(r, "employeeID"))
	b.Year = year
	for t, days := range b.Entitlement {
		if days.IsNegative() {
			h.writeError(w, r, generic.NewValidationError("entitlement", string(t)+" must not be negative"))
			return
		}
	}

	if err := h.Store.SaveBalance(r.Context(), b); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// DIRECTORY
// =============================================================================

func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	emps, err := h.Store.ListAll(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emps)
}

func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	emp, err := h.Store.ResolveByID(r.Context(), generic.EntityID(id))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if emp == nil {
		h.writeError(w, r, &generic.NotFoundError{Kind: "employee", ID: id})
		return
	}
	writeJSON(w, http.StatusOK, emp)
}

// LookupEmployee finds an employee by ?email=, case-insensitively.
func (h *Handler) LookupEmployee(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		h.writeError(w, r, generic.NewValidationError("email", "is required"))
		return
	}
	emp, err := h.Store.ResolveByEmail(r.Context(), email)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if emp == nil {
		h.writeError(w, r, &generic.NotFoundError{Kind: "employee", ID: email})
		return
	}
	writeJSON(w, http.StatusOK, emp)
}

// SaveEmployee creates or replaces a directory entry.
func (h *Handler) SaveEmployee(w http.ResponseWriter, r *http.Request) {
	var body SaveEmployeeRequest
	if err := h.decode(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	hire, err := parseOptionalDate("hireDate", body.HireDate)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	role := leave.Role(body.Role)
	if role == "" {
		role = leave.RoleEmployee
	}

	emp := leave.Employee{
		ID:       generic.EntityID(body.ID),
		Name:     body.Name,
		Email:    body.Email,
		Role:     role,
		HireDate: hire,
	}
	if err := h.Store.SaveEmployee(r.Context(), emp); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, emp)
}
