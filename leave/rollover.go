package leave

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/generic"
	"go.uber.org/zap"
)

// RolloverResult reports what one employee carried into the next year.
type RolloverResult struct {
	EmployeeID generic.EntityID         `json:"employeeId"`
	Carried    map[Type]decimal.Decimal `json:"carried"`
}

// RolloverReport summarizes a year-end run.
type RolloverReport struct {
	FromYear  int              `json:"fromYear"`
	ToYear    int              `json:"toYear"`
	Employees []RolloverResult `json:"employees"`
}

// Rollover carries unused days into the next year's balance record, up to
// the policy's per-type cap. Running it twice for the same year gives the
// same result: the carried amounts are overwritten, never added.
type Rollover struct {
	ledger    Ledger
	directory Directory
	calc      *Calculator
	logger    *zap.Logger
}

func NewRollover(ledger Ledger, dir Directory, calc *Calculator, logger *zap.Logger) *Rollover {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rollover{ledger: ledger, directory: dir, calc: calc, logger: logger.Named("leave.rollover")}
}

func (r *Rollover) Run(ctx context.Context, fromYear int) (RolloverReport, error) {
	report := RolloverReport{FromYear: fromYear, ToYear: fromYear + 1}

	emps, err := r.directory.ListAll(ctx)
	if err != nil {
		return report, fmt.Errorf("list employees: %w", err)
	}
	for _, emp := range emps {
		res, err := r.runOne(ctx, emp.ID, fromYear)
		if err != nil {
			r.logger.Error("rollover failed", zap.String("employee_id", emp.ID.String()), zap.Error(err))
			return report, err
		}
		report.Employees = append(report.Employees, res)
	}
	r.logger.Info("rollover complete",
		zap.Int("from_year", fromYear),
		zap.Int("employees", len(report.Employees)),
	)
	return report, nil
}

func (r *Rollover) runOne(ctx context.Context, employeeID generic.EntityID, fromYear int) (RolloverResult, error) {
	base, err := r.ledger.GetBalance(ctx, employeeID, fromYear)
	if err != nil {
		return RolloverResult{}, fmt.Errorf("load balance %d: %w", fromYear, err)
	}
	reqs, err := r.ledger.GetRequestsByEmployee(ctx, employeeID)
	if err != nil {
		return RolloverResult{}, fmt.Errorf("load requests: %w", err)
	}
	snap := r.calc.Calculate(base, reqs)

	next, err := r.ledger.GetBalance(ctx, employeeID, fromYear+1)
	if err != nil {
		return RolloverResult{}, fmt.Errorf("load balance %d: %w", fromYear+1, err)
	}
	carried := make(map[Type]decimal.Decimal)
	next.CarriedOver = make(map[Type]decimal.Decimal)
	for t, limit := range r.calc.Policy.CarryOverCaps {
		if !limit.IsPositive() || r.calc.Policy.IsUnlimited(t) {
			continue
		}
		amount := snap.Remaining(t).Min(generic.NewAmount(limit, generic.UnitDays)).Value
		if amount.IsPositive() {
			next.CarriedOver[t] = amount
			carried[t] = amount
		}
	}
	if err := r.ledger.SaveBalance(ctx, next); err != nil {
		return RolloverResult{}, fmt.Errorf("save balance %d: %w", fromYear+1, err)
	}
	return RolloverResult{EmployeeID: employeeID, Carried: carried}, nil
}
