/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
	Provides pre-built scenarios that populate the database with realistic
	data for demos: a small directory with roles and a few requests in
	different states.

AVAILABLE SCENARIOS:
	small-team:  Two employees and an HR reviewer, requests in every state
	year-end:    Last year's approved leave, ready for a rollover run

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create employees
 3. Create balance records where the default does not apply
 4. Create requests and move them through the ledger

USAGE VIA API:
	POST /api/scenarios/load
	{"scenario_id": "small-team"}

NOTE:
	Scenarios reset the database. Only use in development/demo environments.
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "small-team",
		Name:        "Small Team",
		Description: "Two employees and an HR reviewer with pending, held, approved and rejected requests",
	},
	{
		ID:          "year-end",
		Name:        "Year-End Rollover",
		Description: "Annual leave taken last year; run the rollover to carry unused days forward",
	},
}

var scenarioLoaders = map[string]func(h *Handler, ctx context.Context) error{
	"small-team": loadSmallTeam,
	"year-end":   loadYearEnd,
}

// ListScenarios returns available demo scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"scenarios": scenarios, "current": current})
}

// LoadScenario resets the database and loads a scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var body LoadScenarioRequest
	if err := h.decode(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.loadScenario(r.Context(), body.ScenarioID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario_id": body.ScenarioID})
}

func (h *Handler) loadScenario(ctx context.Context, id string) error {
	load, ok := scenarioLoaders[id]
	if !ok {
		return &generic.NotFoundError{Kind: "scenario", ID: id}
	}
	if err := h.Store.Reset(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	if err := load(h, ctx); err != nil {
		return fmt.Errorf("load scenario %s: %w", id, err)
	}

	h.mu.Lock()
	h.currentScenario = id
	h.mu.Unlock()
	return nil
}

// =============================================================================
// LOADERS
// =============================================================================

var demoEmployees = []leave.Employee{
	{ID: "emp-alice", Name: "Alice Doe", Email: "alice@example.com", Role: leave.RoleEmployee},
	{ID: "emp-bob", Name: "Bob Roe", Email: "bob@example.com", Role: leave.RoleEmployee},
	{ID: "emp-hana", Name: "Hana Kim", Email: "hana@example.com", Role: leave.RoleHR},
}

func (h *Handler) seedEmployees(ctx context.Context) error {
	for _, e := range demoEmployees {
		e.HireDate = generic.NewTimePoint(h.now().Year()-2, time.March, 1)
		if err := h.Store.SaveEmployee(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

type seedRequest struct {
	employee   leave.Employee
	leaveType  leave.Type
	start, end generic.TimePoint
	reason     string
	status     leave.Status
	note       string
}

func (h *Handler) seedRequests(ctx context.Context, seeds []seedRequest) error {
	applied := h.now().UTC().Add(-time.Duration(len(seeds)) * time.Hour)
	for i, s := range seeds {
		req, err := h.Store.CreateRequest(ctx, leave.LeaveRequest{
			EmployeeID:          s.employee.ID,
			EmployeeDisplayName: s.employee.Name,
			LeaveType:           s.leaveType,
			StartDate:           s.start,
			EndDate:             s.end,
			Reason:              s.reason,
			AppliedDate:         applied.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			return err
		}
		if s.status == leave.StatusPending {
			continue
		}
		if _, err := h.Store.UpdateRequestStatus(ctx, req.ID, s.status, leave.StatusUpdate{
			ActorID:         "emp-hana",
			RejectionReason: s.note,
			At:              h.now().UTC(),
		}); err != nil {
			return err
		}
	}
	return nil
}

func loadSmallTeam(h *Handler, ctx context.Context) error {
	if err := h.seedEmployees(ctx); err != nil {
		return err
	}
	year := h.now().Year()
	d := func(m time.Month, day int) generic.TimePoint { return generic.NewTimePoint(year, m, day) }
	alice, bob := demoEmployees[0], demoEmployees[1]

	return h.seedRequests(ctx, []seedRequest{
		{alice, leave.TypeAnnual, d(time.February, 10), d(time.February, 14), "Ski trip", leave.StatusApproved, ""},
		{alice, leave.TypeSick, d(time.March, 3), d(time.March, 3), "Flu", leave.StatusApproved, ""},
		{alice, leave.TypeCasual, d(time.April, 18), d(time.April, 18), "Moving house", leave.StatusPending, ""},
		{bob, leave.TypeAnnual, d(time.May, 5), d(time.May, 9), "Family visit", leave.StatusHold, ""},
		{bob, leave.TypeCasual, d(time.June, 2), d(time.June, 3), "Concert", leave.StatusRejected, "Release week"},
		{bob, leave.TypePaternity, d(time.July, 7), d(time.July, 11), "Newborn", leave.StatusPending, ""},
	})
}

func loadYearEnd(h *Handler, ctx context.Context) error {
	if err := h.seedEmployees(ctx); err != nil {
		return err
	}
	last := h.now().Year() - 1
	d := func(m time.Month, day int) generic.TimePoint { return generic.NewTimePoint(last, m, day) }
	alice, bob := demoEmployees[0], demoEmployees[1]

	// Bob had a reduced allowance last year.
	reduced := h.Workflow.Calculator().Policy.NewBalance(bob.ID, last)
	reduced.Entitlement[leave.TypeAnnual] = decimal.NewFromInt(15)
	if err := h.Store.SaveBalance(ctx, reduced); err != nil {
		return err
	}

	return h.seedRequests(ctx, []seedRequest{
		{alice, leave.TypeAnnual, d(time.August, 4), d(time.August, 15), "Summer holiday", leave.StatusApproved, ""},
		{alice, leave.TypeAnnual, d(time.December, 22), d(time.December, 23), "Holidays", leave.StatusApproved, ""},
		{bob, leave.TypeAnnual, d(time.October, 6), d(time.October, 17), "Road trip", leave.StatusApproved, ""},
	})
}
