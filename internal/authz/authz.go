// Package authz decides whether a verified identity may perform an action and
// what data scope applies. Authorize is a pure function over its inputs; it
// never mutates identity or request state.
package authz

import (
	"citypulse.org/internal/identity"
)

// Action names one gate-checked operation.
type Action string

const (
	ActionListTeams    Action = "teams.list"
	ActionListTickets  Action = "tickets.list"
	ActionReadTicket   Action = "tickets.read"
	ActionCreateTicket Action = "tickets.create"
	ActionUpdateTicket Action = "tickets.update"
	ActionUpdateStatus Action = "tickets.status.update"
	ActionAssessTicket Action = "tickets.assess"
	ActionReadSummary  Action = "tickets.summary"
	ActionReadAudit    Action = "audit.read"
	ActionSubscribe    Action = "stream.subscribe"
)

// superAdminOnly lists actions closed to every other role. The audit trail is
// read-restricted by contract, not convention.
var superAdminOnly = map[Action]struct{}{
	ActionReadAudit: {},
}

// departmentScoped lists the resource-list actions that department_hq sees
// narrowed to its own department.
var departmentScoped = map[Action]struct{}{
	ActionListTeams:   {},
	ActionListTickets: {},
	ActionReadSummary: {},
}

// Denial reasons. Deliberately coarse; the caller must not learn which
// specific check failed beyond this.
const (
	ReasonUnauthenticated = "unauthenticated"
	ReasonForbidden       = "forbidden"
)

// Decision is derived, never stored. Scoped=true with an empty Department
// means the identity's department key is unknown and nothing is visible.
type Decision struct {
	Allowed    bool
	Reason     string // set only when !Allowed
	Scoped     bool
	Department string // display label to filter by when Scoped
}

func deny(reason string) Decision {
	return Decision{Reason: reason}
}

func allowUnscoped() Decision {
	return Decision{Allowed: true}
}

// Authorize evaluates the rule set in order, first match wins:
//
//  1. no identity → unauthenticated
//  2. super-admin-only action, other role → forbidden
//  3. department_hq on a scoped list → allow, narrowed to own department;
//     department_hq touching a resource of another department → forbidden
//  4. otherwise → allow, unscoped
//
// resourceDepartment is the department key of the targeted resource, empty
// when the action has no single target.
func Authorize(id *identity.Identity, action Action, resourceDepartment string) Decision {
	if id == nil || id.Subject == "" {
		return deny(ReasonUnauthenticated)
	}
	if _, restricted := superAdminOnly[action]; restricted && id.Role != identity.RoleSuperAdmin {
		return deny(ReasonForbidden)
	}

	// Exhaustive over the Role enum: a role added to the identity package
	// must be handled here before it can reach an allow branch.
	switch id.Role {
	case identity.RoleSuperAdmin:
		return allowUnscoped()
	case identity.RoleDepartmentHQ:
		if _, scoped := departmentScoped[action]; scoped {
			label, ok := DepartmentLabel(id.Department)
			if !ok {
				// Unknown department key degrades to an empty visible
				// set rather than an error.
				return Decision{Allowed: true, Scoped: true}
			}
			return Decision{Allowed: true, Scoped: true, Department: label}
		}
		if resourceDepartment != "" && resourceDepartment != id.Department {
			return deny(ReasonForbidden)
		}
		return allowUnscoped()
	case identity.RoleOperator, identity.RoleViewer:
		return allowUnscoped()
	default:
		return deny(ReasonForbidden)
	}
}
