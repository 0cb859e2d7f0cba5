package leave

import (
	"context"
	"fmt"
	"strings"

	"github.com/warp/leave-engine/generic"
)

// Strategy resolves a session to an employee. It returns (nil, nil) when it
// does not apply or finds nothing, so the next strategy is tried.
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, dir Directory, s Session) (*Employee, error)
}

// ByExplicitID uses the employee id carried by the session.
type ByExplicitID struct{}

func (ByExplicitID) Name() string { return "explicit_id" }

func (ByExplicitID) Resolve(ctx context.Context, dir Directory, s Session) (*Employee, error) {
	if s.EmployeeID == "" {
		return nil, nil
	}
	return dir.ResolveByID(ctx, s.EmployeeID)
}

// ByEmail matches the session email case-insensitively.
type ByEmail struct{}

func (ByEmail) Name() string { return "email" }

func (ByEmail) Resolve(ctx context.Context, dir Directory, s Session) (*Employee, error) {
	email := strings.TrimSpace(s.Email)
	if email == "" {
		return nil, nil
	}
	return dir.ResolveByEmail(ctx, strings.ToLower(email))
}

// ByDirectoryID treats the auth user id as a directory key.
type ByDirectoryID struct{}

func (ByDirectoryID) Name() string { return "directory_id" }

func (ByDirectoryID) Resolve(ctx context.Context, dir Directory, s Session) (*Employee, error) {
	if s.UserID == "" {
		return nil, nil
	}
	return dir.ResolveByID(ctx, generic.EntityID(s.UserID))
}

// DefaultStrategies is the resolution order.
func DefaultStrategies() []Strategy {
	return []Strategy{ByExplicitID{}, ByEmail{}, ByDirectoryID{}}
}

// Resolver tries its strategies in order. When none matches the session is
// unresolved and ErrEmployeeNotLinked is returned.
type Resolver struct {
	Directory  Directory
	Strategies []Strategy
}

func NewResolver(dir Directory) *Resolver {
	return &Resolver{Directory: dir, Strategies: DefaultStrategies()}
}

func (r *Resolver) Resolve(ctx context.Context, s Session) (*Employee, error) {
	for _, st := range r.Strategies {
		emp, err := st.Resolve(ctx, r.Directory, s)
		if err != nil {
			return nil, fmt.Errorf("resolve employee (%s): %w", st.Name(), err)
		}
		if emp != nil {
			return emp, nil
		}
	}
	return nil, generic.ErrEmployeeNotLinked
}
