package leave

import (
	"fmt"
	"strings"
	"sync"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/warp/leave-engine/generic"
)

// Capability is an action the authorizer decides on, written "action:object".
type Capability string

const (
	CapApproveLeave   Capability = "approve:leave"
	CapRejectLeave    Capability = "reject:leave"
	CapCreateLeave    Capability = "create:leave"
	CapCancelOwnLeave Capability = "cancel:own_leave"
)

// Authorizer answers can(role, capability). The Workflow and Queue consult
// it for every guarded operation.
type Authorizer interface {
	Can(role Role, capability Capability) bool
}

const rbacModel = `[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && r.obj == p.obj && r.act == p.act
`

// DefaultGrants is the role to capability table.
var DefaultGrants = map[Role][]Capability{
	RoleHR:       {CapApproveLeave, CapRejectLeave, CapCreateLeave, CapCancelOwnLeave},
	RoleAdmin:    {CapApproveLeave, CapRejectLeave, CapCreateLeave, CapCancelOwnLeave},
	RoleEmployer: {CapApproveLeave, CapRejectLeave, CapCreateLeave, CapCancelOwnLeave},
	RoleEmployee: {CapCreateLeave, CapCancelOwnLeave},
}

// CasbinAuthorizer backs Authorizer with a casbin enforcer loaded from an
// in-code model and grant table.
type CasbinAuthorizer struct {
	mu       sync.RWMutex
	enforcer *casbin.Enforcer
}

// NewCasbinAuthorizer builds the enforcer. A nil grants map loads DefaultGrants.
func NewCasbinAuthorizer(grants map[Role][]Capability) (*CasbinAuthorizer, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("load rbac model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create enforcer: %w", err)
	}
	if grants == nil {
		grants = DefaultGrants
	}
	for role, caps := range grants {
		for _, c := range caps {
			act, obj := c.split()
			if _, err := e.AddPolicy(string(role), obj, act); err != nil {
				return nil, fmt.Errorf("add policy %s %s: %w", role, c, err)
			}
		}
	}
	return &CasbinAuthorizer{enforcer: e}, nil
}

// MustDefaultAuthorizer panics if the built-in model fails to load.
func MustDefaultAuthorizer() *CasbinAuthorizer {
	a, err := NewCasbinAuthorizer(nil)
	if err != nil {
		panic(err)
	}
	return a
}

func (a *CasbinAuthorizer) Can(role Role, capability Capability) bool {
	act, obj := capability.split()
	a.mu.RLock()
	defer a.mu.RUnlock()
	ok, err := a.enforcer.Enforce(strings.ToLower(string(role)), obj, act)
	return err == nil && ok
}

func (c Capability) split() (act, obj string) {
	act, obj, _ = strings.Cut(string(c), ":")
	return act, obj
}

// IsApprover reports whether the role holds the approval capability.
func IsApprover(a Authorizer, role Role) bool {
	return a.Can(role, CapApproveLeave)
}

// require returns UnauthorizedError when the role lacks the capability.
func require(a Authorizer, role Role, c Capability) error {
	if a.Can(role, c) {
		return nil
	}
	return &generic.UnauthorizedError{Capability: string(c)}
}
