/*
Package sqlite provides a SQLite-backed implementation of the leave storage interfaces.

PURPOSE:
  The server's system of record. Implements leave.Ledger (requests and
  balance records), leave.Directory (employees) and leave.AuditSink
  (audit_log) on one database file.

INTERFACES IMPLEMENTED:
  leave.Ledger:     Leave requests and per-year balance records
  leave.Directory:  Employee lookup by id and email
  leave.AuditSink:  Append-only audit trail

KEY TABLES:
  leave_requests:  One row per request, status updated in place
  leave_balances:  Entitlement and carried-over days per employee and year
  employees:       Directory records
  audit_log:       Before/after JSON of every workflow change

STATUS UPDATES:
  UpdateRequestStatus is a conditional update:
    UPDATE leave_requests SET status = ? ... WHERE id = ? AND status = ?
  with the status that was read. If another writer moved the request in
  between, no row matches and the caller gets InvalidTransitionError, so
  two reviewers cannot both approve the same request.

BALANCES:
  Remaining days are not stored. GetBalance returns the stored entitlement
  record or policy defaults when there is none; leave.Calculator derives
  the rest from approved requests.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. WAL mode lets readers proceed while
  a write is in flight.

USAGE:
  store, err := sqlite.New("./data/leave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - leave/ledger.go: Interface definitions
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// Store implements the leave storage interfaces using SQLite.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	policy leave.Policy
	now    func() time.Time
}

var (
	_ leave.Ledger    = (*Store)(nil)
	_ leave.Directory = (*Store)(nil)
	_ leave.AuditSink = (*Store)(nil)
)

// New creates a SQLite store with the default leave policy.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	return Open(dbPath, leave.DefaultPolicy())
}

// Open creates a SQLite store whose missing balance records are filled
// from the given policy.
func Open(dbPath string, policy leave.Policy) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every pooled connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, policy: policy, now: time.Now}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'employee',
		hire_date TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_employees_email
		ON employees(email COLLATE NOCASE);

	CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		employee_display_name TEXT NOT NULL DEFAULT '',
		leave_type TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		total_days INTEGER NOT NULL,
		reason TEXT NOT NULL,
		status TEXT NOT NULL,
		applied_date TEXT NOT NULL,
		approver_id TEXT NOT NULL DEFAULT '',
		decision_date TEXT,
		rejection_reason TEXT NOT NULL DEFAULT '',
		attached_documents_json TEXT NOT NULL DEFAULT '[]',
		updated_at TEXT NOT NULL
	);

	-- Per-employee listing and balance derivation (hot path)
	CREATE INDEX IF NOT EXISTS idx_leave_requests_employee
		ON leave_requests(employee_id, applied_date DESC);

	-- Reviewer queue
	CREATE INDEX IF NOT EXISTS idx_leave_requests_status
		ON leave_requests(status, applied_date DESC);

	CREATE TABLE IF NOT EXISTS leave_balances (
		employee_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		entitlement_json TEXT NOT NULL,
		carried_over_json TEXT NOT NULL DEFAULT '{}',
		updated_at TEXT NOT NULL,
		PRIMARY KEY (employee_id, year)
	);

	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		actor TEXT NOT NULL,
		action TEXT NOT NULL,
		request_id TEXT NOT NULL DEFAULT '',
		before_json TEXT,
		after_json TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_log_request
		ON audit_log(request_id, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// LEAVE REQUESTS (leave.Ledger)
// =============================================================================

const requestColumns = `id, employee_id, employee_display_name, leave_type, start_date, end_date,
	total_days, reason, status, applied_date, approver_id, decision_date, rejection_reason,
	attached_documents_json, updated_at`

// CreateRequest validates and inserts a new request.
func (s *Store) CreateRequest(ctx context.Context, req leave.LeaveRequest) (leave.LeaveRequest, error) {
	req, err := leave.PrepareNew(req, s.now())
	if err != nil {
		return leave.LeaveRequest{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := json.Marshal(nonNil(req.AttachedDocuments))
	if err != nil {
		return leave.LeaveRequest{}, fmt.Errorf("encode attached documents: %w", err)
	}

	query := `INSERT INTO leave_requests (` + requestColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query,
		req.ID, string(req.EmployeeID), req.EmployeeDisplayName, string(req.LeaveType),
		req.StartDate.String(), req.EndDate.String(), req.TotalDays, req.Reason,
		string(req.Status), formatTime(req.AppliedDate), req.ApproverID,
		formatTimePtr(req.DecisionDate), req.RejectionReason, string(docs),
		formatTime(req.UpdatedAt),
	)
	if err != nil {
		return leave.LeaveRequest{}, fmt.Errorf("insert leave request: %w", err)
	}
	return req, nil
}

// GetRequest retrieves a request by ID.
func (s *Store) GetRequest(ctx context.Context, id string) (leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getRequestLocked(ctx, id)
}

func (s *Store) getRequestLocked(ctx context.Context, id string) (leave.LeaveRequest, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM leave_requests WHERE id = ?`, id)
	r, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return leave.LeaveRequest{}, &generic.NotFoundError{Kind: "request", ID: id}
	}
	return r, err
}

// GetRequestsByEmployee returns all requests of an employee, newest first.
func (s *Store) GetRequestsByEmployee(ctx context.Context, employeeID generic.EntityID) ([]leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + requestColumns + ` FROM leave_requests
		WHERE employee_id = ?
		ORDER BY applied_date DESC, id ASC`
	return s.queryRequests(ctx, query, string(employeeID))
}

// GetAllRequests returns every request, newest first.
func (s *Store) GetAllRequests(ctx context.Context) ([]leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + requestColumns + ` FROM leave_requests
		ORDER BY applied_date DESC, id ASC`
	return s.queryRequests(ctx, query)
}

// UpdateRequestStatus applies a transition with a conditional update on the
// status that was read.
func (s *Store) UpdateRequestStatus(ctx context.Context, id string, status leave.Status, upd leave.StatusUpdate) (leave.LeaveRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.getRequestLocked(ctx, id)
	if err != nil {
		return leave.LeaveRequest{}, err
	}
	if upd.At.IsZero() {
		upd.At = s.now()
	}
	updated, err := leave.ApplyStatus(current, status, upd)
	if err != nil {
		return leave.LeaveRequest{}, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE leave_requests
		SET status = ?, approver_id = ?, decision_date = ?, rejection_reason = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(updated.Status), updated.ApproverID, formatTimePtr(updated.DecisionDate),
		updated.RejectionReason, formatTime(updated.UpdatedAt),
		id, string(current.Status),
	)
	if err != nil {
		return leave.LeaveRequest{}, fmt.Errorf("update leave request status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return leave.LeaveRequest{}, err
	}
	if n == 0 {
		latest, err := s.getRequestLocked(ctx, id)
		if err != nil {
			return leave.LeaveRequest{}, err
		}
		return leave.LeaveRequest{}, &generic.InvalidTransitionError{ID: id, From: string(latest.Status), To: string(status)}
	}
	return updated, nil
}

// DeleteRequest removes a request.
func (s *Store) DeleteRequest(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM leave_requests WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &generic.NotFoundError{Kind: "request", ID: id}
	}
	return nil
}

func (s *Store) queryRequests(ctx context.Context, query string, args ...any) ([]leave.LeaveRequest, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := []leave.LeaveRequest{}
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, r)
	}
	return requests, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRequest(sc scanner) (leave.LeaveRequest, error) {
	var r leave.LeaveRequest
	var employeeID, leaveType, status, startDate, endDate, appliedDate, updatedAt, docs string
	var decisionDate sql.NullString
	if err := sc.Scan(
		&r.ID, &employeeID, &r.EmployeeDisplayName, &leaveType, &startDate, &endDate,
		&r.TotalDays, &r.Reason, &status, &appliedDate, &r.ApproverID, &decisionDate,
		&r.RejectionReason, &docs, &updatedAt,
	); err != nil {
		return leave.LeaveRequest{}, err
	}

	r.EmployeeID = generic.EntityID(employeeID)
	r.LeaveType = leave.Type(leaveType)
	r.Status = leave.Status(status)
	r.StartDate, _ = generic.ParseDate(startDate)
	r.EndDate, _ = generic.ParseDate(endDate)
	r.AppliedDate, _ = time.Parse(time.RFC3339Nano, appliedDate)
	r.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	if decisionDate.Valid && decisionDate.String != "" {
		t, _ := time.Parse(time.RFC3339Nano, decisionDate.String)
		r.DecisionDate = &t
	}
	if docs != "" && docs != "[]" {
		if err := json.Unmarshal([]byte(docs), &r.AttachedDocuments); err != nil {
			return leave.LeaveRequest{}, fmt.Errorf("decode attached documents: %w", err)
		}
	}
	return r, nil
}

// =============================================================================
// LEAVE BALANCES (leave.Ledger)
// =============================================================================

// GetBalance returns the stored record or policy defaults for the year.
func (s *Store) GetBalance(ctx context.Context, employeeID generic.EntityID, year int) (leave.LeaveBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entJSON, carriedJSON string
	err := s.db.QueryRowContext(ctx,
		"SELECT entitlement_json, carried_over_json FROM leave_balances WHERE employee_id = ? AND year = ?",
		string(employeeID), year,
	).Scan(&entJSON, &carriedJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return s.policy.NewBalance(employeeID, year), nil
	}
	if err != nil {
		return leave.LeaveBalance{}, err
	}

	b := leave.LeaveBalance{EmployeeID: employeeID, Year: year}
	if err := json.Unmarshal([]byte(entJSON), &b.Entitlement); err != nil {
		return leave.LeaveBalance{}, fmt.Errorf("decode entitlement: %w", err)
	}
	if err := json.Unmarshal([]byte(carriedJSON), &b.CarriedOver); err != nil {
		return leave.LeaveBalance{}, fmt.Errorf("decode carried over: %w", err)
	}
	if b.CarriedOver == nil {
		b.CarriedOver = map[leave.Type]decimal.Decimal{}
	}
	return b, nil
}

// SaveBalance upserts a balance record.
func (s *Store) SaveBalance(ctx context.Context, b leave.LeaveBalance) error {
	if b.EmployeeID == "" {
		return generic.NewValidationError("employeeId", "is required")
	}
	ent, err := json.Marshal(nonNilAmounts(b.Entitlement))
	if err != nil {
		return err
	}
	carried, err := json.Marshal(nonNilAmounts(b.CarriedOver))
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO leave_balances (employee_id, year, entitlement_json, carried_over_json, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(employee_id, year) DO UPDATE SET
			entitlement_json = excluded.entitlement_json,
			carried_over_json = excluded.carried_over_json,
			updated_at = excluded.updated_at
	`
	_, err = s.db.ExecContext(ctx, query,
		string(b.EmployeeID), b.Year, string(ent), string(carried), formatTime(s.now()),
	)
	return err
}

// =============================================================================
// EMPLOYEE DIRECTORY (leave.Directory)
// =============================================================================

// SaveEmployee upserts an employee.
func (s *Store) SaveEmployee(ctx context.Context, emp leave.Employee) error {
	if emp.ID == "" {
		return generic.NewValidationError("id", "is required")
	}
	if emp.Role == "" {
		emp.Role = leave.RoleEmployee
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO employees (id, name, email, role, hire_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			role = excluded.role,
			hire_date = excluded.hire_date
	`
	_, err := s.db.ExecContext(ctx, query,
		string(emp.ID), emp.Name, strings.TrimSpace(emp.Email), string(emp.Role),
		emp.HireDate.String(), formatTime(s.now()),
	)
	return err
}

// ResolveByID retrieves an employee by ID. Returns nil, nil when absent.
func (s *Store) ResolveByID(ctx context.Context, id generic.EntityID) (*leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, role, hire_date FROM employees WHERE id = ?", string(id))
	return scanEmployee(row)
}

// ResolveByEmail matches case-insensitively. Returns nil, nil when absent.
func (s *Store) ResolveByEmail(ctx context.Context, email string) (*leave.Employee, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, role, hire_date FROM employees WHERE email = ? COLLATE NOCASE ORDER BY id LIMIT 1",
		email)
	return scanEmployee(row)
}

// ListAll returns all employees ordered by name.
func (s *Store) ListAll(ctx context.Context) ([]leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, email, role, hire_date FROM employees ORDER BY name, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	employees := []leave.Employee{}
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, *emp)
	}
	return employees, rows.Err()
}

func scanEmployee(sc scanner) (*leave.Employee, error) {
	var emp leave.Employee
	var id, role string
	var hireDate sql.NullString
	err := sc.Scan(&id, &emp.Name, &emp.Email, &role, &hireDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	emp.ID = generic.EntityID(id)
	emp.Role = leave.Role(role)
	if hireDate.Valid && hireDate.String != "" {
		emp.HireDate, _ = generic.ParseDate(hireDate.String)
	}
	return &emp, nil
}

// =============================================================================
// AUDIT LOG (leave.AuditSink)
// =============================================================================

// Record appends an audit entry.
func (s *Store) Record(ctx context.Context, e leave.AuditEntry) error {
	before, err := marshalOptional(e.Before)
	if err != nil {
		return err
	}
	after, err := marshalOptional(e.After)
	if err != nil {
		return err
	}
	requestID := ""
	switch {
	case e.After != nil:
		requestID = e.After.ID
	case e.Before != nil:
		requestID = e.Before.ID
	}
	at := e.At
	if at.IsZero() {
		at = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, actor, action, request_id, before_json, after_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Actor, string(e.Action), requestID, before, after, formatTime(at),
	)
	return err
}

// GetAuditLog returns the audit entries of a request, oldest first.
func (s *Store) GetAuditLog(ctx context.Context, requestID string) ([]leave.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor, action, before_json, after_json, created_at
		FROM audit_log WHERE request_id = ?
		ORDER BY created_at ASC, rowid ASC`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []leave.AuditEntry{}
	for rows.Next() {
		var e leave.AuditEntry
		var action, createdAt string
		var before, after sql.NullString
		if err := rows.Scan(&e.ID, &e.Actor, &action, &before, &after, &createdAt); err != nil {
			return nil, err
		}
		e.Action = leave.AuditAction(action)
		e.At, _ = time.Parse(time.RFC3339Nano, createdAt)
		if e.Before, err = unmarshalOptional(before); err != nil {
			return nil, err
		}
		if e.After, err = unmarshalOptional(after); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"leave_requests", "leave_balances", "employees", "audit_log"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// timeLayout is fixed-width so ORDER BY on the text column is chronological.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilAmounts(m map[leave.Type]decimal.Decimal) map[leave.Type]decimal.Decimal {
	if m == nil {
		return map[leave.Type]decimal.Decimal{}
	}
	return m
}

func marshalOptional(r *leave.LeaveRequest) (any, error) {
	if r == nil {
		return nil, nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func unmarshalOptional(ns sql.NullString) (*leave.LeaveRequest, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var r leave.LeaveRequest
	if err := json.Unmarshal([]byte(ns.String), &r); err != nil {
		return nil, err
	}
	return &r, nil
}
