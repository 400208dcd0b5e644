package auth

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

// ActionCall is the action used for gRPC methods.
const ActionCall = "CALL"

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch2(r.obj, p.obj) && r.act == p.act
`

// staffPolicies is what the front desk may do. Admin inherits all of it.
var staffPolicies = [][]string{
	{"/api/v1/clients/:id/visits", "POST"},
	{"/api/v1/clients/:id/hair-services", "POST"},
	{"/api/v1/clients/:id/redeem/:reward", "POST"},
	{"/api/v1/slots", "GET"},
	{"/api/v1/slots/next", "GET"},
	{"/api/v1/bookings", "GET"},
	{"/api/v1/services", "GET"},
	{"/api/v1/walk-ins", "POST"},
	{"/api/v1/sales/checkout", "POST"},
	{"/api/v1/products", "GET"},
	{"/api/v1/products/low-stock", "GET"},
	{"/salon.v1.Loyalty/*", ActionCall},
}

var adminPolicies = [][]string{
	{"/api/v1/clients", "GET"},
	{"/api/v1/clients/:id", "DELETE"},
	{"/api/v1/bookings", "POST"},
	{"/api/v1/bookings/block", "POST"},
	{"/api/v1/bookings/:id", "DELETE"},
	{"/api/v1/transactions/:id", "DELETE"},
	{"/api/v1/products", "POST"},
	{"/api/v1/products/:id/stock", "POST"},
	{"/api/v1/reports/*", "GET"},
}

// Authorizer answers whether a role may perform act on obj.
type Authorizer struct {
	enforcer *casbin.Enforcer
}

func NewAuthorizer() (*Authorizer, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("load rbac model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create enforcer: %w", err)
	}

	for _, p := range staffPolicies {
		if _, err := e.AddPolicy(string(RoleStaff), p[0], p[1]); err != nil {
			return nil, fmt.Errorf("add policy %v: %w", p, err)
		}
	}
	for _, p := range adminPolicies {
		if _, err := e.AddPolicy(string(RoleAdmin), p[0], p[1]); err != nil {
			return nil, fmt.Errorf("add policy %v: %w", p, err)
		}
	}
	if _, err := e.AddGroupingPolicy(string(RoleAdmin), string(RoleStaff)); err != nil {
		return nil, fmt.Errorf("add role inheritance: %w", err)
	}
	return &Authorizer{enforcer: e}, nil
}

func (a *Authorizer) Allowed(role Role, obj, act string) (bool, error) {
	if role == "" {
		return false, nil
	}
	return a.enforcer.Enforce(string(role), obj, act)
}
