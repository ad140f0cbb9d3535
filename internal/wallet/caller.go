package wallet

import (
	"context"
	"fmt"
)

// Role is the account role carried in the caller's bearer token
type Role string

const (
	RoleHolder Role = "HOLDER"
	RoleIssuer Role = "ISSUER"
	RoleAdmin  Role = "ADMIN"
)

// ParseRole converts a role claim to a Role
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleHolder, RoleIssuer, RoleAdmin:
		return Role(s), nil
	default:
		return "", NewUnauthorizedError(fmt.Sprintf("unknown role %q", s))
	}
}

// Caller is the authenticated account making a request.
// It is supplied by the authentication layer; the services never look up accounts themselves.
type Caller struct {
	ID   string
	Role Role
}

// Is reports whether the caller holds role. Admins hold every role.
func (c Caller) Is(role Role) bool {
	return c.Role == role || c.Role == RoleAdmin
}

type callerKey struct{}

// ContextWithCaller returns a copy of ctx carrying caller
func ContextWithCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFromContext returns the caller stored by the auth middleware
func CallerFromContext(ctx context.Context) (Caller, bool) {
	caller, ok := ctx.Value(callerKey{}).(Caller)
	return caller, ok && caller.ID != ""
}
