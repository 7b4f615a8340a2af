// Package identity is the boundary to the credential verifier. The rest of
// the service consumes decoded identities only and never parses a bearer
// credential itself.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidToken indicates the credential failed verification.
var ErrInvalidToken = errors.New("invalid token")

// Role is the closed set of dashboard roles. Adding a role means revisiting
// every switch over this type; the authorizer never lets an unknown value
// fall through to an allow branch.
type Role string

const (
	RoleSuperAdmin   Role = "super_admin"
	RoleDepartmentHQ Role = "department_hq"
	RoleOperator     Role = "operator"
	RoleViewer       Role = "viewer"
)

// ParseRole maps a wire string to a Role or fails. Unknown roles are a
// verification error, not a default.
func ParseRole(s string) (Role, error) {
	switch Role(strings.TrimSpace(strings.ToLower(s))) {
	case RoleSuperAdmin:
		return RoleSuperAdmin, nil
	case RoleDepartmentHQ:
		return RoleDepartmentHQ, nil
	case RoleOperator:
		return RoleOperator, nil
	case RoleViewer:
		return RoleViewer, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Identity is the verified (subject, role, department) tuple decoded from a
// bearer credential. Immutable for the remainder of the request.
type Identity struct {
	Subject    string
	Name       string
	Role       Role
	Department string // department key, empty unless department-bound
}

// Verifier turns an opaque bearer credential into an Identity. The default
// implementation verifies HS256 JWTs; tests substitute fakes.
type Verifier interface {
	Verify(ctx context.Context, credential string) (Identity, error)
}
