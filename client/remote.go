/*
Package client talks to the leave server's ledger and directory endpoints.

PURPOSE:
  Remote implements leave.Ledger and leave.Directory over HTTP so the CLI
  can run the same Workflow and Queue the server runs, against the
  server's data.

ERROR MAPPING:
  - No response (dial, timeout, reset)  -> *generic.TransportError
  - 5xx, 429                            -> *generic.TransportError{StatusCode}
  - 4xx with {"error": {...}} body      -> the matching taxonomy error
                                           (ValidationError, NotFoundError, ...)

  Only transport errors are recoverable; mirror.Fallback relies on that.

SEE ALSO:
  - api/ledger.go: The server side of these endpoints
  - generic/wire.go: Error body encoding
  - mirror/fallback.go: Wraps Remote with the local copy
*/
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
	"go.uber.org/zap"
)

// DefaultTimeout bounds every remote call.
const DefaultTimeout = 15 * time.Second

// Remote is the HTTP-backed Ledger and Directory.
type Remote struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *zap.Logger
}

// TokenHeader carries the server's ledger token.
const TokenHeader = "X-Ledger-Token"

var (
	_ leave.Ledger    = (*Remote)(nil)
	_ leave.Directory = (*Remote)(nil)
)

type Option func(*Remote)

func WithTimeout(d time.Duration) Option {
	return func(r *Remote) { r.http.Timeout = d }
}

// WithHTTPClient replaces the underlying client, timeout included.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Remote) { r.http = c }
}

// WithToken sends token on every call. Servers configured with a ledger
// token refuse calls without it.
func WithToken(token string) Option {
	return func(r *Remote) { r.token = token }
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Remote) {
		if l != nil {
			r.logger = l.Named("client.remote")
		}
	}
}

// New builds a Remote for the server at baseURL (e.g. http://localhost:8080).
func New(baseURL string, opts ...Option) *Remote {
	r := &Remote{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// =============================================================================
// LEDGER
// =============================================================================

func (r *Remote) CreateRequest(ctx context.Context, req leave.LeaveRequest) (leave.LeaveRequest, error) {
	var out leave.LeaveRequest
	err := r.do(ctx, "create request", http.MethodPost, "/api/ledger/requests", req, &out)
	return out, err
}

func (r *Remote) GetRequest(ctx context.Context, id string) (leave.LeaveRequest, error) {
	var out leave.LeaveRequest
	err := r.do(ctx, "get request", http.MethodGet, "/api/ledger/requests/"+url.PathEscape(id), nil, &out)
	return out, err
}

func (r *Remote) GetRequestsByEmployee(ctx context.Context, employeeID generic.EntityID) ([]leave.LeaveRequest, error) {
	q := url.Values{"employee_id": {string(employeeID)}}
	out := []leave.LeaveRequest{}
	err := r.do(ctx, "list requests", http.MethodGet, "/api/ledger/requests?"+q.Encode(), nil, &out)
	return out, err
}

func (r *Remote) GetAllRequests(ctx context.Context) ([]leave.LeaveRequest, error) {
	out := []leave.LeaveRequest{}
	err := r.do(ctx, "list requests", http.MethodGet, "/api/ledger/requests", nil, &out)
	return out, err
}

// StatusChange is the body of PATCH /api/ledger/requests/{id}/status.
type StatusChange struct {
	Status          leave.Status `json:"status"`
	ActorID         string       `json:"actorId,omitempty"`
	RejectionReason string       `json:"rejectionReason,omitempty"`
	At              time.Time    `json:"at"`
}

func (r *Remote) UpdateRequestStatus(ctx context.Context, id string, status leave.Status, upd leave.StatusUpdate) (leave.LeaveRequest, error) {
	body := StatusChange{Status: status, ActorID: upd.ActorID, RejectionReason: upd.RejectionReason, At: upd.At}
	var out leave.LeaveRequest
	err := r.do(ctx, "update status", http.MethodPatch, "/api/ledger/requests/"+url.PathEscape(id)+"/status", body, &out)
	return out, err
}

func (r *Remote) DeleteRequest(ctx context.Context, id string) error {
	return r.do(ctx, "delete request", http.MethodDelete, "/api/ledger/requests/"+url.PathEscape(id), nil, nil)
}

func (r *Remote) GetBalance(ctx context.Context, employeeID generic.EntityID, year int) (leave.LeaveBalance, error) {
	var out leave.LeaveBalance
	err := r.do(ctx, "get balance", http.MethodGet, balancePath(employeeID, year), nil, &out)
	return out, err
}

func (r *Remote) SaveBalance(ctx context.Context, b leave.LeaveBalance) error {
	return r.do(ctx, "save balance", http.MethodPut, balancePath(b.EmployeeID, b.Year), b, nil)
}

func balancePath(employeeID generic.EntityID, year int) string {
	return "/api/ledger/balances/" + url.PathEscape(string(employeeID)) + "/" + strconv.Itoa(year)
}

// =============================================================================
// DIRECTORY
// =============================================================================

func (r *Remote) ResolveByEmail(ctx context.Context, email string) (*leave.Employee, error) {
	q := url.Values{"email": {email}}
	return r.employee(ctx, "/api/employees/lookup?"+q.Encode())
}

func (r *Remote) ResolveByID(ctx context.Context, id generic.EntityID) (*leave.Employee, error) {
	return r.employee(ctx, "/api/employees/"+url.PathEscape(string(id)))
}

// employee maps a 404 to "no such employee" rather than an error, matching
// the other Directory implementations.
func (r *Remote) employee(ctx context.Context, path string) (*leave.Employee, error) {
	var out leave.Employee
	err := r.do(ctx, "resolve employee", http.MethodGet, path, nil, &out)
	if generic.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Remote) ListAll(ctx context.Context) ([]leave.Employee, error) {
	out := []leave.Employee{}
	err := r.do(ctx, "list employees", http.MethodGet, "/api/employees", nil, &out)
	return out, err
}

// SaveEmployee creates or replaces a directory entry.
func (r *Remote) SaveEmployee(ctx context.Context, e leave.Employee) error {
	return r.do(ctx, "save employee", http.MethodPost, "/api/employees", e, nil)
}

// =============================================================================
// TRANSPORT
// =============================================================================

type errorBody struct {
	Error generic.WireError `json:"error"`
}

func (r *Remote) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if r.token != "" {
		req.Header.Set(TokenHeader, r.token)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.http.Do(req)
	if err != nil {
		r.logger.Warn("remote call failed", zap.String("op", op), zap.Error(err))
		return &generic.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return &generic.TransportError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	switch {
	case resp.StatusCode >= 500, resp.StatusCode == http.StatusTooManyRequests:
		r.logger.Warn("remote server error", zap.String("op", op), zap.Int("status", resp.StatusCode))
		return &generic.TransportError{Op: op, StatusCode: resp.StatusCode, Err: errors.New(serverMessage(payload, resp.Status))}
	case resp.StatusCode >= 400:
		var eb errorBody
		if err := json.Unmarshal(payload, &eb); err != nil || eb.Error.Code == "" {
			return fmt.Errorf("%s: unexpected status %d", op, resp.StatusCode)
		}
		return eb.Error.Err(resp.StatusCode)
	}

	if out == nil || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func serverMessage(payload []byte, fallback string) string {
	var eb errorBody
	if err := json.Unmarshal(payload, &eb); err == nil && eb.Error.Message != "" {
		return eb.Error.Message
	}
	return fallback
}
